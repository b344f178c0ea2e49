package grid

import "github.com/go-pkgz/lgr"

const (
	// appendPoolSize is the initial capacity of the pool holding appended rows.
	appendPoolSize = 500
	// poolGrowth is added past the requested index when a pool grows.
	poolGrowth = 100
	// DefaultMaxPoolLines caps pool capacity.
	DefaultMaxPoolLines = 50_000_000
)

// Line is one cached row. Values is nil until the row is materialized.
type Line struct {
	Values   []string
	Nulls    []bool
	Stored   bool
	ReadOnly bool
}

func (l *Line) materialized() bool { return l.Values != nil }

func (l *Line) alloc(cols int) {
	l.Values = make([]string, cols)
	l.Nulls = make([]bool, cols)
}

// linePool is a sparse, growable array of lazily created rows.
type linePool struct {
	slots []*Line
	limit int
	log   lgr.L
}

func newLinePool(size, limit int, log lgr.L) *linePool {
	return &linePool{slots: make([]*Line, size), limit: limit, log: log}
}

// Get returns the row at slot i, creating an empty one on first request.
// It returns nil only when i is negative or beyond the capacity limit.
func (p *linePool) Get(i int) *Line {
	if i < 0 {
		return nil
	}
	if i >= len(p.slots) {
		if !p.grow(i + poolGrowth) {
			return nil
		}
	}
	if p.slots[i] == nil {
		p.slots[i] = &Line{}
	}
	return p.slots[i]
}

// peek returns the row at slot i without creating it.
func (p *linePool) peek(i int) *Line {
	if i < 0 || i >= len(p.slots) {
		return nil
	}
	return p.slots[i]
}

// Delete drops the row at slot i and shifts later slots down by one.
func (p *linePool) Delete(i int) {
	if i < 0 || i >= len(p.slots) {
		return
	}
	copy(p.slots[i:], p.slots[i+1:])
	p.slots[len(p.slots)-1] = nil
}

// IsFilled reports whether a row object exists at slot i.
func (p *linePool) IsFilled(i int) bool {
	return p.peek(i) != nil
}

// Cap is the current slot capacity.
func (p *linePool) Cap() int { return len(p.slots) }

func (p *linePool) grow(size int) bool {
	if p.limit > 0 && size > p.limit {
		if size-poolGrowth >= p.limit {
			p.log.Logf("[ERROR] row pool can't grow to %d slots, limit is %d", size-poolGrowth, p.limit)
			return false
		}
		size = p.limit
	}
	slots := make([]*Line, size)
	copy(slots, p.slots)
	p.slots = slots
	return true
}
