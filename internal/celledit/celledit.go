// Package celledit defines the behaviour an in-place cell editor must provide.
// Rendering is left to the caller; editors here only keep an input surface
// (text plus selection, or a tri-state checkbox) and decide which keys they take.
package celledit

import (
	"context"
	"fmt"
	"unicode"
)

// Kind selects the editor variant for a column.
type Kind int

const (
	// KindNone marks columns that cannot be edited in place (binary data).
	KindNone Kind = iota
	KindText
	KindNumeric
	KindBoolean
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindNumeric:
		return "numeric"
	case KindBoolean:
		return "boolean"
	default:
		return "none"
	}
}

// Spec is the editor variant chosen for a column together with its parameters.
// Length and Precision are only meaningful for KindNumeric; Precision gates the
// decimal point (0 forbids it, anything else allows it).
type Spec struct {
	Kind      Kind
	Length    int
	Precision int
}

// Text, Numeric and Boolean build the three editable variants.
func Text() Spec { return Spec{Kind: KindText, Length: -1, Precision: -1} }

func Numeric(length, precision int) Spec {
	return Spec{Kind: KindNumeric, Length: length, Precision: precision}
}

func Boolean() Spec { return Spec{Kind: KindBoolean, Length: -1, Precision: -1} }

// Editable reports whether the column gets an in-place editor at all.
func (s Spec) Editable() bool { return s.Kind != KindNone }

func (s Spec) String() string {
	if s.Kind == KindNumeric && s.Length >= 0 {
		return fmt.Sprintf("numeric(%d,%d)", s.Length, s.Precision)
	}
	return s.Kind.String()
}

// KeyCode identifies non-character keys. Printable characters use KeyRune.
type KeyCode int

const (
	KeyRune KeyCode = iota
	KeyBackspace
	KeyDelete
	KeyEnter
	KeyTab
	KeyEscape
	KeyLeft
	KeyRight
	KeyUp
	KeyDown
	KeyHome
	KeyEnd
	KeyPageUp
	KeyPageDown
	// keypad keys carry the digit in Rune
	KeyPadDigit
	KeyPadAdd
	KeyPadSubtract
	KeyPadDecimal
)

// Key is a single keystroke.
type Key struct {
	Code KeyCode
	Rune rune
	Ctrl bool
	Alt  bool
}

// RuneKey is shorthand for a plain printable keystroke.
func RuneKey(r rune) Key { return Key{Code: KeyRune, Rune: r} }

// Cells is the read side of the grid an editor seeds itself from.
type Cells interface {
	GetValue(row, col int) (string, error)
}

// Sink receives the edited value.
type Sink interface {
	SetValue(ctx context.Context, row, col int, text string) error
}

// Editor is the capability contract shared by all variants.
type Editor interface {
	// BeginEdit seeds the input surface with the current cell text and selects it.
	BeginEdit(cells Cells, row, col int) error
	// EndEdit returns the edited text and whether it differs from the text at BeginEdit.
	EndEdit() (string, bool)
	// Reset reseeds the input surface with the original text.
	Reset()
	IsAcceptedKey(k Key) bool
	// StartingKey begins an edit from a keystroke instead of the prior value.
	StartingKey(k Key)
	// Type feeds text into the input surface as if typed.
	Type(text string)
	Value() string
	Spec() Spec
}

// New returns the editor for spec, or nil for KindNone.
func New(spec Spec) Editor {
	switch spec.Kind {
	case KindText:
		return &TextEditor{spec: spec}
	case KindNumeric:
		return &NumericEditor{TextEditor: TextEditor{spec: spec}}
	case KindBoolean:
		return &BoolEditor{}
	default:
		return nil
	}
}

// Apply ends the edit and forwards a changed value to sink.
// It reports whether anything was written.
func Apply(ctx context.Context, ed Editor, sink Sink, row, col int) (bool, error) {
	value, changed := ed.EndEdit()
	if !changed {
		return false, nil
	}
	if err := sink.SetValue(ctx, row, col, value); err != nil {
		return false, fmt.Errorf("apply edit at %d,%d: %w", row, col, err)
	}
	return true, nil
}

// acceptedByDefault is the base filter: printable keys without modifiers,
// plus the keys that erase text.
func acceptedByDefault(k Key) bool {
	if k.Ctrl || k.Alt {
		return false
	}
	switch k.Code {
	case KeyRune:
		return unicode.IsPrint(k.Rune)
	case KeyBackspace, KeyDelete, KeyPadDigit, KeyPadAdd, KeyPadSubtract, KeyPadDecimal:
		return true
	default:
		return false
	}
}

// keyRune maps a keystroke to the character it would insert, 0 if none.
func keyRune(k Key) rune {
	switch k.Code {
	case KeyRune, KeyPadDigit:
		return k.Rune
	case KeyPadAdd:
		return '+'
	case KeyPadSubtract:
		return '-'
	case KeyPadDecimal:
		return '.'
	default:
		return 0
	}
}
