package fsm

import (
	"context"
	"errors"
	"testing"

	"github.com/looplab/fsm"
)

func TestWrapEvent(t *testing.T) {
	boom := errors.New("boom")

	m := fsm.NewFSM("a",
		fsm.Events{{Name: "go", Src: []string{"a"}, Dst: "b"}},
		fsm.Callbacks{
			"enter_b": WrapEvent(func(ctx context.Context, e *fsm.Event) error { return boom }),
		},
	)

	err := m.Event(context.Background(), "go")
	if !errors.Is(err, boom) {
		t.Errorf("Event() error = %v, want %v", err, boom)
	}
	if m.Current() != "b" {
		t.Errorf("Current() = %q, want b", m.Current())
	}
}

func TestIsRealError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"no transition", fsm.NoTransitionError{}, false},
		{"canceled", fsm.CanceledError{}, false},
		{"invalid event", fsm.InvalidEventError{Event: "x", State: "y"}, true},
		{"plain", errors.New("x"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRealError(tt.err); got != tt.want {
				t.Errorf("IsRealError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
