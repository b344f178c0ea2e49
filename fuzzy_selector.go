package main

import (
	"fmt"
	"strconv"
	"strings"
)

// fuzzyMatch reports whether the characters of search appear in order within text, ignoring case.
func fuzzyMatch(search, text string) bool {
	want := []rune(strings.ToLower(search))
	if len(want) == 0 {
		return true
	}
	next := 0
	for _, char := range strings.ToLower(text) {
		if char == want[next] {
			if next++; next == len(want) {
				return true
			}
		}
	}
	return false
}

// isPrefixMatch reports whether text starts with search, ignoring case.
func isPrefixMatch(search, text string) bool {
	return strings.HasPrefix(strings.ToLower(text), strings.ToLower(search))
}

// FuzzySelector resolves column references typed in the shell against the grid's column names.
type FuzzySelector struct {
	items []string
}

// NewFuzzySelector creates a selector over names, kept in their original order.
func NewFuzzySelector(items []string) *FuzzySelector {
	return &FuzzySelector{items: items}
}

// calculateFiltered returns the items matching search: prefix matches first, then the remaining
// fuzzy matches, each group in original order. The second value maps result index to item index.
func (fs *FuzzySelector) calculateFiltered(search string) ([]string, []int) {
	var prefix, fuzzy []int
	for i, item := range fs.items {
		switch {
		case isPrefixMatch(search, item):
			prefix = append(prefix, i)
		case fuzzyMatch(search, item):
			fuzzy = append(fuzzy, i)
		}
	}

	order := append(prefix, fuzzy...)
	filtered := make([]string, 0, len(order))
	for _, i := range order {
		filtered = append(filtered, fs.items[i])
	}
	return filtered, order
}

// Resolve maps a column reference to a zero-based column index. A reference is a 1-based
// number, an exact name (case-insensitive), a unique prefix, or a unique fuzzy match.
func (fs *FuzzySelector) Resolve(ref string) (int, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return -1, fmt.Errorf("empty column reference")
	}
	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(fs.items) {
			return -1, fmt.Errorf("column %d out of range 1..%d", n, len(fs.items))
		}
		return n - 1, nil
	}
	for i, item := range fs.items {
		if strings.EqualFold(item, ref) {
			return i, nil
		}
	}

	filtered, idx := fs.calculateFiltered(ref)
	if len(filtered) == 0 {
		return -1, fmt.Errorf("no column matches %q", ref)
	}
	var prefixed []int
	for n, i := range idx {
		if isPrefixMatch(ref, filtered[n]) {
			prefixed = append(prefixed, i)
		}
	}
	switch {
	case len(prefixed) == 1:
		return prefixed[0], nil
	case len(prefixed) == 0 && len(idx) == 1:
		return idx[0], nil
	}
	return -1, fmt.Errorf("ambiguous column %q: %s", ref, strings.Join(filtered, ", "))
}
