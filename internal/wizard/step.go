package wizard

import "fmt"

// Step is a stage of the walk-in flow.  Steps are visited in order and
// never skipped.
type Step int

const (
	StepRoomSelection Step = iota
	StepGuestData
	StepPayment
	StepConfirmation
	StepReceipt
)

var stepNames = [...]string{
	StepRoomSelection: "room-selection",
	StepGuestData:     "guest-data",
	StepPayment:       "payment",
	StepConfirmation:  "confirmation",
	StepReceipt:       "receipt",
}

func (s Step) String() string {
	if s < StepRoomSelection || s > StepReceipt {
		return "unknown"
	}
	return stepNames[s]
}

func (s Step) MarshalText() ([]byte, error) {
	if s < StepRoomSelection || s > StepReceipt {
		return nil, fmt.Errorf("invalid step %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *Step) UnmarshalText(b []byte) error {
	for i, name := range stepNames {
		if name == string(b) {
			*s = Step(i)
			return nil
		}
	}
	return fmt.Errorf("unknown step %q", b)
}
