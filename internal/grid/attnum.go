package grid

import "sort"

// attnumMap converts attribute numbers, which count dropped columns, into
// positions among the relation's live attributes.
type attnumMap []int

// newAttnumMap numbers live attributes from 1 in attnum order; dropped
// attributes map to 0. Without drop information the attributes' own attnums
// are used.
func newAttnumMap(rel *Relation) attnumMap {
	if len(rel.Dropped) > 0 {
		m := make(attnumMap, len(rel.Dropped))
		n := 0
		for i, dropped := range rel.Dropped {
			if !dropped {
				n++
				m[i] = n
			}
		}
		return m
	}

	maxAttnum := 0
	for _, a := range rel.Attributes {
		maxAttnum = max(maxAttnum, a.AttNum)
	}
	m := make(attnumMap, maxAttnum)
	for i, a := range rel.Attributes {
		if a.AttNum > 0 {
			m[a.AttNum-1] = i + 1
		}
	}
	return m
}

// column returns the zero-based live position of attnum, -1 if it is dropped or unknown.
func (m attnumMap) column(attnum int) int {
	if attnum < 1 || attnum > len(m) {
		return -1
	}
	return m[attnum-1] - 1
}

func sortedCopy(v []int) []int {
	res := append([]int(nil), v...)
	sort.Ints(res)
	return res
}
