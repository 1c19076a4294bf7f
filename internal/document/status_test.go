package document

import "testing"

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to Status
		ok       bool
	}{
		{StatusPending, StatusProcessing, true},
		{StatusProcessing, StatusCompleted, true},
		{StatusProcessing, StatusError, true},
		{StatusCompleted, StatusProcessing, true},
		{StatusError, StatusProcessing, true},
		{StatusPending, StatusCompleted, false},
		{StatusPending, StatusError, false},
		{StatusCompleted, StatusError, false},
		{StatusCompleted, StatusPending, false},
		{StatusProcessing, StatusPending, false},
	}

	for _, tc := range cases {
		got, err := tc.from.Transition(tc.to)
		if tc.ok {
			if err != nil {
				t.Errorf("%s -> %s: unexpected error %v", tc.from, tc.to, err)
			}
			if got != tc.to {
				t.Errorf("%s -> %s: got %s", tc.from, tc.to, got)
			}
		} else {
			if err == nil {
				t.Errorf("%s -> %s: expected error", tc.from, tc.to)
			}
			if got != tc.from {
				t.Errorf("%s -> %s: status changed on illegal move", tc.from, tc.to)
			}
		}
	}
}

func TestParseStatus(t *testing.T) {
	for _, raw := range []string{"pending", "processing", "completed", "error"} {
		if _, err := ParseStatus(raw); err != nil {
			t.Errorf("ParseStatus(%q): %v", raw, err)
		}
	}
	if _, err := ParseStatus("done"); err == nil {
		t.Error("ParseStatus accepted unknown value")
	}
}
