package parser

import "testing"

func TestTranslateDigits(t *testing.T) {
	if got := translateDigits("۱۰"); got != "10" {
		t.Fatalf("translateDigits(۱۰) = %q, want 10", got)
	}
	if got := translateDigits("٣٤"); got != "34" {
		t.Fatalf("translateDigits(٣٤) = %q, want 34", got)
	}
}

func TestNormalizeNumber(t *testing.T) {
	cases := map[string]string{
		"1,234.56": "1234.56",
		"1.234,56": "1234.56",
		"$255.00":  "255.00",
		"۱۰":       "10",
	}
	for in, want := range cases {
		if got := normalizeNumber(in); got != want {
			t.Errorf("normalizeNumber(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestValidateGTIN(t *testing.T) {
	// 5901234123457 is the canonical GS1 example of a valid GTIN-13.
	if !validateGTIN("5901234123457") {
		t.Error("expected valid GTIN-13 to validate")
	}
	if validateGTIN("5901234123458") {
		t.Error("expected mutated check digit to fail validation")
	}
	if validateGTIN("12345") {
		t.Error("expected invalid length to fail validation")
	}
}

func TestNormalizeSKU(t *testing.T) {
	if got := normalizeSKU("  abc  -  1 "); got != "ABC - 1" {
		t.Errorf("normalizeSKU = %q", got)
	}
}
