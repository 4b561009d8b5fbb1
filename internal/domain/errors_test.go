package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{"validation", NewValidation("amount %d out of range", 5), KindValidation},
		{"not_found", NewNotFound("no active goal"), KindNotFound},
		{"duplicate", NewDuplicate("charge recorded", errors.New("unique violation")), KindDuplicate},
		{"transient", NewTransient("insert failed", errors.New("conn reset")), KindTransient},
		{"wrapped", fmt.Errorf("handler: %w", NewNotFound("no active goal")), KindNotFound},
		{"plain error defaults to transient", errors.New("boom"), KindTransient},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := KindOf(tc.err); got != tc.want {
				t.Fatalf("KindOf = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestKindOfNil(t *testing.T) {
	if got := KindOf(nil); got != "" {
		t.Fatalf("KindOf(nil) = %q, want empty", got)
	}
}

func TestErrorCode(t *testing.T) {
	err := NewValidation("title too long")
	if err.Code() != "VALIDATION" {
		t.Fatalf("Code = %q", err.Code())
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("pq: duplicate key")
	err := NewDuplicate("charge recorded", cause)
	if !errors.Is(err, cause) {
		t.Fatal("expected wrapped cause to be reachable via errors.Is")
	}
}

func TestIsKindThroughWrapping(t *testing.T) {
	err := fmt.Errorf("complete payment: %w", NewDuplicate("charge recorded", nil))
	if !IsKind(err, KindDuplicate) {
		t.Fatal("expected duplicate kind through wrapping")
	}
	if IsKind(err, KindValidation) {
		t.Fatal("unexpected validation kind")
	}
}
