// Package resolver matches canonical customer and item references against
// the external accounting catalog (§4.5). It never mutates the catalog —
// it only classifies each entity as resolved, needing human input, or
// unresolved.
package resolver

import (
	"context"
	"strings"

	"github.com/CoronovirusG10/zoho-order-processing/pkg/contracts"
	"github.com/sahilm/fuzzy"
)

// FuzzyMatchThreshold is the minimum similarity (§4.5) above which a single
// fuzzy candidate is accepted as resolved rather than surfaced to a human.
const FuzzyMatchThreshold = 0.85

// Catalog is the minimal read interface the resolver needs from the
// external accounting system (§6 list-customers / list-items).
type Catalog interface {
	ListCustomers(ctx context.Context, name string) ([]CatalogCustomer, error)
	ListItems(ctx context.Context, gtin, sku string) ([]CatalogItem, error)
}

// CatalogCustomer is one external-catalog customer record.
type CatalogCustomer struct {
	ID    string
	Name  string
	TaxID string
}

// CatalogItem is one external-catalog item record.
type CatalogItem struct {
	ID   string
	Name string
	GTIN string
	SKU  string
}

// Resolver resolves customers and line items against a Catalog.
type Resolver struct {
	catalog Catalog
}

// New builds a Resolver over the given catalog.
func New(catalog Catalog) *Resolver {
	return &Resolver{catalog: catalog}
}

// ResolveCustomer implements §4.5 Customer resolution: exact normalized
// name, then fuzzy name above threshold, then tax id.
func (r *Resolver) ResolveCustomer(ctx context.Context, rawName, taxID string) (contracts.ResolutionResult, error) {
	candidates, err := r.catalog.ListCustomers(ctx, rawName)
	if err != nil {
		return contracts.ResolutionResult{}, err
	}

	result := contracts.ResolutionResult{LineIndex: -1}

	if taxID != "" {
		for _, c := range candidates {
			if c.TaxID != "" && c.TaxID == taxID {
				result.Status = contracts.ResolutionResolved
				result.MatchedID = c.ID
				result.MatchStrategy = "tax_id"
				return result, nil
			}
		}
	}

	normalized := normalizeName(rawName)
	for _, c := range candidates {
		if normalizeName(c.Name) == normalized {
			result.Status = contracts.ResolutionResolved
			result.MatchedID = c.ID
			result.MatchStrategy = "exact_name"
			return result, nil
		}
	}

	matches := fuzzyRank(rawName, candidates)
	return classify(matches, "fuzzy_name"), nil
}

// ResolveItem implements §4.5 Item resolution: GTIN match preferred, then
// normalized SKU, then fuzzy product name.
func (r *Resolver) ResolveItem(ctx context.Context, lineIndex int, li contracts.LineItem) (contracts.ResolutionResult, error) {
	candidates, err := r.catalog.ListItems(ctx, li.GTIN, li.SKU)
	if err != nil {
		return contracts.ResolutionResult{}, err
	}

	result := contracts.ResolutionResult{LineIndex: lineIndex}

	if li.GTIN != "" {
		for _, c := range candidates {
			if c.GTIN != "" && c.GTIN == li.GTIN {
				result.Status = contracts.ResolutionResolved
				result.MatchedID = c.ID
				result.MatchStrategy = "gtin"
				return result, nil
			}
		}
	}

	if li.SKU != "" {
		normalizedSKU := strings.ToUpper(strings.TrimSpace(li.SKU))
		for _, c := range candidates {
			if strings.ToUpper(strings.TrimSpace(c.SKU)) == normalizedSKU {
				result.Status = contracts.ResolutionResolved
				result.MatchedID = c.ID
				result.MatchStrategy = "sku"
				return result, nil
			}
		}
	}

	names := make([]itemByName, len(candidates))
	for i, c := range candidates {
		names[i] = itemByName(c)
	}
	matches := fuzzyRankItems(li.ProductName, names)
	result = classify(matches, "fuzzy_name")
	result.LineIndex = lineIndex
	return result, nil
}

func normalizeName(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(strings.TrimSpace(s)), " "))
}

type candidateSource struct {
	names []string
}

func (s candidateSource) Len() int            { return len(s.names) }
func (s candidateSource) String(i int) string { return s.names[i] }

func fuzzyRank(query string, candidates []CatalogCustomer) []contracts.ResolutionMatch {
	names := make([]string, len(candidates))
	for i, c := range candidates {
		names[i] = c.Name
	}
	matches := fuzzy.FindFrom(query, candidateSource{names: names})

	var out []contracts.ResolutionMatch
	for _, m := range matches {
		out = append(out, contracts.ResolutionMatch{
			ID:    candidates[m.Index].ID,
			Name:  candidates[m.Index].Name,
			Score: fuzzyScoreToSimilarity(m.Score, len(query)),
		})
	}
	return out
}

type itemByName CatalogItem

func fuzzyRankItems(query string, candidates []itemByName) []contracts.ResolutionMatch {
	names := make([]string, len(candidates))
	for i, c := range candidates {
		names[i] = c.Name
	}
	matches := fuzzy.FindFrom(query, candidateSource{names: names})

	var out []contracts.ResolutionMatch
	for _, m := range matches {
		out = append(out, contracts.ResolutionMatch{
			ID:    candidates[m.Index].ID,
			Name:  candidates[m.Index].Name,
			Score: fuzzyScoreToSimilarity(m.Score, len(query)),
		})
	}
	return out
}

// fuzzyScoreToSimilarity normalizes sahilm/fuzzy's unbounded match score
// into a roughly [0,1] similarity by scaling against the best achievable
// score for a query of this length (a contiguous match at position 0).
func fuzzyScoreToSimilarity(score, queryLen int) float64 {
	if queryLen == 0 {
		return 0
	}
	maxPossible := queryLen*2 + 8 // empirically derived ceiling for sahilm/fuzzy's bonus scheme
	sim := float64(score) / float64(maxPossible)
	if sim > 1 {
		sim = 1
	}
	if sim < 0 {
		sim = 0
	}
	return sim
}

// classify applies §4.5's three-way outcome: a single confident match
// resolves, multiple or borderline candidates need a human, and no
// candidates above threshold are unresolved.
func classify(matches []contracts.ResolutionMatch, strategy string) contracts.ResolutionResult {
	var above []contracts.ResolutionMatch
	for _, m := range matches {
		if m.Score >= FuzzyMatchThreshold {
			above = append(above, m)
		}
	}

	switch {
	case len(above) == 1:
		return contracts.ResolutionResult{
			Status:        contracts.ResolutionResolved,
			MatchedID:     above[0].ID,
			MatchStrategy: strategy,
			Candidates:    above,
		}
	case len(above) > 1:
		return contracts.ResolutionResult{
			Status:        contracts.ResolutionNeedsHuman,
			MatchStrategy: strategy,
			Candidates:    above,
		}
	default:
		return contracts.ResolutionResult{
			Status:        contracts.ResolutionUnresolved,
			MatchStrategy: strategy,
			Candidates:    matches,
		}
	}
}
