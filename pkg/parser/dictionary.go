package parser

import "strings"

// canonicalFields are the fields the parser tries to populate from the
// input sheet.
const (
	FieldCustomer = "customer"
	FieldSKU      = "sku"
	FieldGTIN     = "gtin"
	FieldProduct  = "product"
	FieldQty      = "qty"
	FieldPrice    = "price"
	FieldTotal    = "total"
	FieldCurrency = "currency"
	FieldDate     = "date"
)

// headerSynonyms maps each canonical field to its recognized EN/FA header
// tokens, lowercased. Persian tokens are listed alongside common transliterations.
var headerSynonyms = map[string][]string{
	FieldCustomer: {"customer", "client", "bill to", "bill-to", "buyer", "مشتری", "خریدار"},
	FieldSKU:      {"sku", "item code", "item no", "part number", "کد کالا", "کد"},
	FieldGTIN:     {"gtin", "barcode", "ean", "upc", "بارکد"},
	FieldProduct:  {"product", "item", "description", "item name", "کالا", "شرح کالا", "نام کالا"},
	FieldQty:      {"qty", "quantity", "count", "تعداد", "مقدار"},
	FieldPrice:    {"unit price", "price", "rate", "قیمت واحد", "قیمت"},
	FieldTotal:    {"total", "line total", "amount", "جمع", "مبلغ کل"},
	FieldCurrency: {"currency", "ccy", "ارز"},
	FieldDate:     {"date", "order date", "تاریخ"},
}

// totalRowKeywords flags a row as a totals row rather than a line item.
var totalRowKeywords = []string{"total", "subtotal", "grand total", "sum", "جمع کل", "جمع"}

func matchHeaderField(header string) (string, bool) {
	h := strings.ToLower(strings.TrimSpace(header))
	for field, synonyms := range headerSynonyms {
		for _, syn := range synonyms {
			if strings.Contains(h, syn) {
				return field, true
			}
		}
	}
	return "", false
}

func looksLikeTotalRow(cells []string) bool {
	for _, cell := range cells {
		lc := strings.ToLower(strings.TrimSpace(cell))
		for _, kw := range totalRowKeywords {
			if strings.Contains(lc, kw) {
				return true
			}
		}
	}
	return false
}
