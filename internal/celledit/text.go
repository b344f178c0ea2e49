package celledit

// TextEditor edits free text. The whole text is selected after BeginEdit, so
// the first typed characters replace it.
type TextEditor struct {
	spec     Spec
	start    string
	text     string
	selected bool
}

func (e *TextEditor) BeginEdit(cells Cells, row, col int) error {
	value, err := cells.GetValue(row, col)
	if err != nil {
		return err
	}
	e.start = value
	e.text = value
	e.selected = true
	return nil
}

func (e *TextEditor) EndEdit() (string, bool) {
	e.selected = false
	return e.text, e.text != e.start
}

func (e *TextEditor) Reset() {
	e.text = e.start
	e.selected = true
}

func (e *TextEditor) IsAcceptedKey(k Key) bool { return acceptedByDefault(k) }

// StartingKey replaces the seeded text with the typed character.
// Backspace keeps the seeded text.
func (e *TextEditor) StartingKey(k Key) {
	if !acceptedByDefault(k) || k.Code == KeyBackspace || k.Code == KeyDelete {
		return
	}
	if r := keyRune(k); r != 0 {
		e.text = string(r)
		e.selected = false
	}
}

func (e *TextEditor) Type(text string) {
	if e.selected {
		e.text = ""
		e.selected = false
	}
	e.text += text
}

func (e *TextEditor) Value() string { return e.text }
func (e *TextEditor) Spec() Spec { return e.spec }
