package common

import (
	"errors"
	"testing"
)

func TestGuard(t *testing.T) {
	tests := []struct {
		name   string
		view   PauseView
		module string
		want   error
	}{
		{name: "nil view", view: nil, module: "marketplace"},
		{name: "empty module", view: Pauses{"": true}, module: ""},
		{name: "running", view: Pauses{"marketplace": false}, module: "marketplace"},
		{name: "other module paused", view: Pauses{"bank": true}, module: "marketplace"},
		{name: "paused", view: Pauses{"marketplace": true}, module: "marketplace", want: ErrModulePaused},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := Guard(tc.view, tc.module)
			if tc.want == nil && err != nil {
				t.Fatalf("expected nil, got %v", err)
			}
			if tc.want != nil && !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}
