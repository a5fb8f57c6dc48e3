// internal/lending/transition.go
package lending

// Action is a lending state transition request.
type Action string

const (
	ActionBorrow Action = "borrow"
	ActionReturn Action = "return"
)

// Apply evaluates the transition rules on the availability flag and returns
// the flag after the action. Borrow requires an available book, return a
// borrowed one; anything else is ErrInvalidTransition. The storage layer
// enforces the same rules with a compare-and-swap update, this form exists
// so the rules can be checked in isolation.
func Apply(available bool, action Action) (bool, error) {
	switch action {
	case ActionBorrow:
		if !available {
			return available, ErrInvalidTransition
		}
		return false, nil
	case ActionReturn:
		if available {
			return available, ErrInvalidTransition
		}
		return true, nil
	default:
		return available, ErrInvalidTransition
	}
}
