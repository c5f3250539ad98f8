package validation

import "testing"

func TestClampDeferDays(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{-10, 1},
		{0, 1},
		{1, 1},
		{30, 30},
	}
	for _, tt := range tests {
		if got := ClampDeferDays(tt.in); got != tt.want {
			t.Errorf("ClampDeferDays(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestCustomerID(t *testing.T) {
	if err := CustomerID(1); err != nil {
		t.Errorf("valid id rejected: %v", err)
	}
	for _, id := range []int64{0, -1} {
		if err := CustomerID(id); err == nil {
			t.Errorf("CustomerID(%d): expected error", id)
		}
	}
}

func TestTopN(t *testing.T) {
	for _, n := range []int{0, 1, 5} {
		if err := TopN(n); err != nil {
			t.Errorf("TopN(%d): unexpected error %v", n, err)
		}
	}
	for _, n := range []int{-1, 6} {
		if err := TopN(n); err == nil {
			t.Errorf("TopN(%d): expected error", n)
		}
	}
}

func TestStateAndDueWindow(t *testing.T) {
	for _, s := range []string{"", "pending", "sent", "discarded"} {
		if err := State(s); err != nil {
			t.Errorf("State(%q): unexpected error %v", s, err)
		}
	}
	if err := State("bogus"); err == nil {
		t.Error("State(bogus): expected error")
	}

	for _, s := range []string{"", "overdue", "today", "upcoming"} {
		if err := DueWindow(s); err != nil {
			t.Errorf("DueWindow(%q): unexpected error %v", s, err)
		}
	}
	if err := DueWindow("someday"); err == nil {
		t.Error("DueWindow(someday): expected error")
	}
}

func TestErrorMessage(t *testing.T) {
	err := NewError("top_n", "must be between 1 and 5")
	if err.Error() != "top_n: must be between 1 and 5" {
		t.Errorf("unexpected message %q", err.Error())
	}
}
