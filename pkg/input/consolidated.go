package input

import "fmt"

// Consolidated is one of the five semantic outcomes of the pipeline.
type Consolidated uint8

const (
	SingleClick Consolidated = iota
	DoubleClick
	LongClick
	RightTurn
	LeftTurn
)

var consolidatedNames = [...]string{
	SingleClick: "single_click",
	DoubleClick: "double_click",
	LongClick:   "long_click",
	RightTurn:   "right_turn",
	LeftTurn:    "left_turn",
}

func (Consolidated) eventMarker() {}

func (c Consolidated) String() string {
	if int(c) < len(consolidatedNames) {
		return consolidatedNames[c]
	}
	return fmt.Sprintf("consolidated(%d)", uint8(c))
}

// Valid reports whether c is one of the five defined events.
func (c Consolidated) Valid() bool {
	return int(c) < len(consolidatedNames)
}

// IsTurn reports whether the event came from the knob rather than the button.
func (c Consolidated) IsTurn() bool {
	return c == RightTurn || c == LeftTurn
}

func (c Consolidated) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid consolidated event %d", uint8(c))
	}
	return []byte(consolidatedNames[c]), nil
}

func (c *Consolidated) UnmarshalText(b []byte) error {
	for i, name := range consolidatedNames {
		if name == string(b) {
			*c = Consolidated(i)
			return nil
		}
	}
	return fmt.Errorf("unknown consolidated event %q", string(b))
}
