package lending

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestApply(t *testing.T) {
	tests := []struct {
		name      string
		available bool
		action    Action
		want      bool
		wantErr   bool
	}{
		{"borrow available", true, ActionBorrow, false, false},
		{"borrow borrowed", false, ActionBorrow, false, true},
		{"return borrowed", false, ActionReturn, true, false},
		{"return available", true, ActionReturn, true, true},
		{"unknown action", true, Action("shred"), true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Apply(tt.available, tt.action)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTransition)
				// A rejected transition leaves the state untouched.
				assert.Equal(t, tt.available, got)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestApplyProperties checks the transition rules against a model over
// arbitrary action sequences: the flag always flips on success, never
// changes on rejection, and an action can never succeed twice in a row.
func TestApplyProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		available := rapid.Bool().Draw(t, "initial")
		actions := rapid.SliceOf(rapid.SampledFrom([]Action{ActionBorrow, ActionReturn})).Draw(t, "actions")

		var lastOK *Action
		for _, action := range actions {
			next, err := Apply(available, action)
			if err != nil {
				if next != available {
					t.Fatalf("rejected %s changed state from %v to %v", action, available, next)
				}
				continue
			}

			if next == available {
				t.Fatalf("accepted %s did not flip state %v", action, available)
			}
			if lastOK != nil && *lastOK == action {
				t.Fatalf("%s succeeded twice in a row", action)
			}

			available = next
			a := action
			lastOK = &a
		}
	})
}
