package celledit

// CheckState is the state of a tri-state checkbox.
type CheckState int

const (
	Unchecked CheckState = iota
	Checked
	Undetermined
)

// BoolEditor edits boolean cells as a tri-state toggle. It has no text entry.
type BoolEditor struct {
	start CheckState
	state CheckState
}

func stateOf(value string) CheckState {
	switch value {
	case "TRUE":
		return Checked
	case "FALSE":
		return Unchecked
	default:
		return Undetermined
	}
}

func (e *BoolEditor) BeginEdit(cells Cells, row, col int) error {
	value, err := cells.GetValue(row, col)
	if err != nil {
		return err
	}
	e.start = stateOf(value)
	e.state = e.start
	return nil
}

func (e *BoolEditor) EndEdit() (string, bool) {
	return e.Value(), e.state != e.start
}

func (e *BoolEditor) Reset() { e.state = e.start }

func (e *BoolEditor) IsAcceptedKey(k Key) bool {
	if !acceptedByDefault(k) || k.Code != KeyRune {
		return false
	}
	switch k.Rune {
	case ' ', '+', '-', 'n', 'N':
		return true
	}
	return false
}

func (e *BoolEditor) StartingKey(k Key) {
	if k.Code != KeyRune {
		return
	}
	switch k.Rune {
	case ' ':
		if e.state == Checked {
			e.state = Unchecked
		} else {
			e.state = Checked
		}
	case '+':
		e.state = Checked
	case '-':
		e.state = Unchecked
	case 'n', 'N':
		e.state = Undetermined
	}
}

// Type applies every character as a state-setting key.
func (e *BoolEditor) Type(text string) {
	for _, r := range text {
		e.StartingKey(RuneKey(r))
	}
}

func (e *BoolEditor) State() CheckState { return e.state }

func (e *BoolEditor) Value() string {
	switch e.state {
	case Checked:
		return "TRUE"
	case Unchecked:
		return "FALSE"
	default:
		return ""
	}
}

func (e *BoolEditor) Spec() Spec { return Boolean() }
