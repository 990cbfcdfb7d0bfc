package executor

import "github.com/CoronovirusG10/zoho-order-processing/pkg/canonicalize"

// canonicalHashOf returns the JCS canonical hash of an activity's raw result,
// used as the Receipt.OutputHash.
func canonicalHashOf(v any) (string, error) {
	return canonicalize.CanonicalHash(v)
}
