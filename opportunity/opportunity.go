// Package opportunity ranks staff within a sales territory by numeric
// opportunity value. Session bookers consume the rankings to resolve seat
// placeholders at booking time.
package opportunity

import "sort"

// Row is one entry of the ingested opportunity table.
type Row struct {
	District    string
	ProductLine string
	Staff       string
	Value       float64
}

// Index is an immutable ranked lookup built once per run and shared by
// every seed trial.
type Index struct {
	byDistrict map[string][]Row
}

// NewIndex builds the index. Within a district, rows sort by value
// descending with name as the deterministic tie-break.
func NewIndex(rows []Row) *Index {
	ix := &Index{byDistrict: make(map[string][]Row)}
	for _, r := range rows {
		ix.byDistrict[r.District] = append(ix.byDistrict[r.District], r)
	}
	for d := range ix.byDistrict {
		rs := ix.byDistrict[d]
		sort.SliceStable(rs, func(i, j int) bool {
			if rs[i].Value != rs[j].Value {
				return rs[i].Value > rs[j].Value
			}
			return rs[i].Staff < rs[j].Staff
		})
	}
	return ix
}

// HasDistrict reports whether any opportunity rows exist for the district.
func (ix *Index) HasDistrict(district string) bool {
	return len(ix.byDistrict[district]) > 0
}

// Ranked returns staff names for a district ordered by opportunity value,
// highest first, deduplicated on first (best) occurrence. A non-empty
// productLine narrows the ranking to that product line.
func (ix *Index) Ranked(district, productLine string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, r := range ix.byDistrict[district] {
		if productLine != "" && r.ProductLine != productLine {
			continue
		}
		if seen[r.Staff] {
			continue
		}
		seen[r.Staff] = true
		out = append(out, r.Staff)
	}
	return out
}

// Value returns the opportunity value recorded for a staff member in a
// district, narrowed to a product line when given. Missing entries return
// zero.
func (ix *Index) Value(district, productLine, staff string) float64 {
	for _, r := range ix.byDistrict[district] {
		if r.Staff != staff {
			continue
		}
		if productLine != "" && r.ProductLine != productLine {
			continue
		}
		return r.Value
	}
	return 0
}
