// Package fingerprint computes the order fingerprint that guarantees
// at-most-once draft creation (§3, I4).
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"

	"github.com/CoronovirusG10/zoho-order-processing/pkg/contracts"
)

// Compute derives the order fingerprint from a file hash, a resolved
// customer id, the line items of the order, and the UTC date bucket of
// receivedAt. The result is stable across platforms and independent of the
// input ordering of line items — callers must not rely on the fingerprint
// to detect row-order changes.
func Compute(fileSHA256, customerID string, lineItems []contracts.LineItem, receivedAt time.Time) contracts.OrderFingerprint {
	bucket := receivedAt.UTC().Format("2006-01-02")
	itemsHash := sortedLineItemsHash(lineItems)

	h := sha256.New()
	h.Write([]byte(fileSHA256))
	h.Write([]byte(customerID))
	h.Write([]byte(itemsHash))
	h.Write([]byte(bucket))

	return contracts.OrderFingerprint{
		FileSHA256:          fileSHA256,
		CustomerID:          customerID,
		SortedLineItemsHash: itemsHash,
		DateBucket:          bucket,
		Value:               hex.EncodeToString(h.Sum(nil)),
	}
}

// sortedLineItemsHash hashes sku/gtin/quantity triples in sorted order so
// the fingerprint doesn't depend on the order rows appeared in the sheet.
func sortedLineItemsHash(lineItems []contracts.LineItem) string {
	keys := make([]string, 0, len(lineItems))
	for _, li := range lineItems {
		sku := strings.ToUpper(strings.TrimSpace(li.SKU))
		gtin := strings.TrimSpace(li.GTIN)
		qty := toFixed2(li.Quantity)
		keys = append(keys, sku+"\x1f"+gtin+"\x1f"+qty)
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// toFixed2 renders a decimal-string quantity to two fixed decimal places,
// tolerating malformed input by passing it through unchanged.
func toFixed2(qty string) string {
	d, err := parseDecimal(qty)
	if err != nil {
		return qty
	}
	return d
}
