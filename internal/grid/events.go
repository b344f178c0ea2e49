package grid

// EventKind identifies a grid notification.
type EventKind int

const (
	// RowBecameDirty fires when a row first departs from its saved snapshot.
	RowBecameDirty EventKind = iota
	// RowCommitted fires after a successful StoreLine.
	RowCommitted
	// RowCountChanged fires when the logical or stored row count changes.
	RowCountChanged
	// EditFailed fires when a statement could not be executed; Err holds the reason.
	EditFailed
	// RowFrozen fires when an inserted row could not be keyed and became read-only.
	RowFrozen
	// RowReverted fires when UndoLine discards the edit.
	RowReverted
)

func (k EventKind) String() string {
	switch k {
	case RowBecameDirty:
		return "row-dirty"
	case RowCommitted:
		return "row-committed"
	case RowCountChanged:
		return "row-count"
	case EditFailed:
		return "edit-failed"
	case RowFrozen:
		return "row-frozen"
	case RowReverted:
		return "row-reverted"
	default:
		return "unknown"
	}
}

// Event is delivered to listeners synchronously, on the editing goroutine.
type Event struct {
	Kind       EventKind
	Row        int
	Rows       int // GetNumberRows at emission time
	StoredRows int // GetNumberStoredRows at emission time
	Err        error
}

// Listener receives grid events.
type Listener func(Event)
