package coords

import (
	"fmt"
	"strings"
)

const DefaultSuggestLimit = 25

type Match struct {
	Dimension  Dimension
	Coordinate Coordinate
}

type UpsertResult struct {
	Name     string
	Previous *Coordinate
}

// Locations returns the entries of dim, creating the empty set if needed.
func (doc *Document) Locations(dim Dimension) *Locations {
	doc.Normalize()
	return doc.Dimensions[dim]
}

func (doc *Document) Upsert(dim Dimension, rawLocation string, c Coordinate) (UpsertResult, error) {
	if !dim.Valid() {
		return UpsertResult{}, fmt.Errorf("%w: %q", ErrUnknownDimension, string(dim))
	}
	name := FormatName(rawLocation)
	if name == "" {
		return UpsertResult{}, ErrEmptyName
	}
	res := UpsertResult{Name: name}
	if prev, existed := doc.Locations(dim).Set(name, c); existed {
		res.Previous = &prev
	}
	return res, nil
}

// Lookup finds name in every dimension, in render order.
func (doc *Document) Lookup(name string) []Match {
	var out []Match
	for _, d := range dimensionOrder {
		if c, ok := doc.Dimensions[d].Get(name); ok {
			out = append(out, Match{Dimension: d, Coordinate: c})
		}
	}
	return out
}

func (doc *Document) Get(dim Dimension, name string) (Coordinate, bool) {
	return doc.Dimensions[dim].Get(name)
}

// DeleteLocation removes name from every dimension that has it.
func (doc *Document) DeleteLocation(name string) bool {
	removed := false
	for _, d := range dimensionOrder {
		if doc.Dimensions[d].Delete(name) {
			removed = true
		}
	}
	return removed
}

func (doc *Document) ClearDimension(dim Dimension) int {
	return doc.Dimensions[dim].Clear()
}

func (doc *Document) Count(dim Dimension) int {
	return doc.Dimensions[dim].Len()
}

func (doc *Document) Total() int {
	n := 0
	for _, d := range dimensionOrder {
		n += doc.Dimensions[d].Len()
	}
	return n
}

// Suggest returns distinct names containing prefix, compared without case,
// in the order they are found walking the dimensions.
func (doc *Document) Suggest(prefix string, limit int) []string {
	if limit <= 0 {
		limit = DefaultSuggestLimit
	}
	needle := foldKey(strings.TrimSpace(prefix))
	seen := make(map[string]struct{})
	out := make([]string, 0, limit)
	for _, d := range dimensionOrder {
		for _, name := range doc.Dimensions[d].Names() {
			if len(out) >= limit {
				return out
			}
			if _, dup := seen[name]; dup {
				continue
			}
			if !strings.Contains(foldKey(name), needle) {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	return out
}
