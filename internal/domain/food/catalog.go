package food

import (
	"sort"
	"time"
)

// CatalogIndex is the precomputed catalog document refreshed outside the
// pipeline. The pipeline only reads it.
type CatalogIndex struct {
	AllNames  []string  `json:"allNames"`
	AllFoods  []Food    `json:"allFoods"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewCatalogIndex builds an index from foods. Names are the sorted, unique
// standard names.
func NewCatalogIndex(foods []Food, now time.Time) CatalogIndex {
	seen := make(map[string]struct{}, len(foods))
	names := make([]string, 0, len(foods))
	for _, f := range foods {
		if _, ok := seen[f.StandardName]; ok || f.StandardName == "" {
			continue
		}
		seen[f.StandardName] = struct{}{}
		names = append(names, f.StandardName)
	}
	sort.Strings(names)
	return CatalogIndex{AllNames: names, AllFoods: foods, UpdatedAt: now}
}

// FilterByIDs returns the foods whose id is in ids, keeping catalog order.
func FilterByIDs(foods []Food, ids []string) []Food {
	keep := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		keep[id] = struct{}{}
	}
	out := make([]Food, 0, len(ids))
	for _, f := range foods {
		if _, ok := keep[f.ID]; ok {
			out = append(out, f)
		}
	}
	return out
}

// IDs returns the ids of foods in order.
func IDs(foods []Food) []string {
	out := make([]string, len(foods))
	for i, f := range foods {
		out[i] = f.ID
	}
	return out
}
