package storage

import (
	"errors"
	"testing"
)

func TestWrapIfConflict(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		conflict bool
	}{
		{"nil", nil, false},
		{"sqlite unique", errors.New("constraint failed: UNIQUE constraint failed: recommendation_details.recommendation_id, recommendation_details.priority"), true},
		{"postgres duplicate key", errors.New(`ERROR: duplicate key value violates unique constraint "recommendation_details_pkey" (SQLSTATE 23505)`), true},
		{"unrelated", errors.New("connection refused"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WrapIfConflict(tt.err)
			if tt.err == nil {
				if got != nil {
					t.Fatalf("expected nil, got %v", got)
				}
				return
			}
			if errors.Is(got, ErrConflict) != tt.conflict {
				t.Errorf("conflict mapping = %v, want %v (err %v)", !tt.conflict, tt.conflict, got)
			}
		})
	}
}
