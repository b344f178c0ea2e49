package celledit

import (
	"strings"
	"unicode"
)

// NumericEditor is a TextEditor restricted to digits, signs and, when the
// column has fractional digits, a decimal point.
type NumericEditor struct {
	TextEditor
}

func (e *NumericEditor) allowed(r rune) bool {
	switch r {
	case '.':
		return e.spec.Precision != 0
	case '+', '-':
		return true
	default:
		return unicode.IsDigit(r)
	}
}

func (e *NumericEditor) IsAcceptedKey(k Key) bool {
	if !acceptedByDefault(k) {
		return false
	}
	r := keyRune(k)
	if r == '.' && e.hasPoint() {
		return false
	}
	return r != 0 && e.allowed(r)
}

// hasPoint reports whether typing continues after a decimal point already entered.
func (e *NumericEditor) hasPoint() bool {
	return !e.selected && strings.ContainsRune(e.text, '.')
}

func (e *NumericEditor) StartingKey(k Key) {
	if e.IsAcceptedKey(k) {
		e.TextEditor.StartingKey(k)
	}
}

// Type drops characters a numeric column cannot take, including any decimal
// point after the first.
func (e *NumericEditor) Type(text string) {
	point := e.hasPoint()
	filtered := make([]rune, 0, len(text))
	for _, r := range text {
		if !e.allowed(r) || (r == '.' && point) {
			continue
		}
		if r == '.' {
			point = true
		}
		filtered = append(filtered, r)
	}
	e.TextEditor.Type(string(filtered))
}
