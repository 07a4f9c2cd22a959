package core

import (
	"context"
	"errors"
	"testing"
)

func TestPolicyAllows(t *testing.T) {
	cases := []struct {
		name  string
		rules []string
		op    Operation
		want  bool
	}{
		{"empty permits store", nil, OpStore, true},
		{"empty permits search", nil, OpSearch, true},
		{"listed op permitted", []string{"store"}, OpStore, true},
		{"unlisted op denied", []string{"store"}, OpSearch, false},
		{"multiple rules", []string{"retrieve", "search"}, OpSearch, true},
		{"multiple rules deny", []string{"retrieve", "search"}, OpStore, false},
		{"unknown rule ignored", []string{"bogus"}, OpStore, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			p := &MemoryPolicy{TenantID: "t1", AccessRules: c.rules}
			if got := p.Allows(c.op); got != c.want {
				t.Errorf("Allows(%s) with rules %v = %v, want %v", c.op, c.rules, got, c.want)
			}
		})
	}
}

func TestMapContextErr(t *testing.T) {
	if got := MapContextErr(context.DeadlineExceeded); !errors.Is(got, ErrTimeout) {
		t.Errorf("deadline: got %v", got)
	}
	if got := MapContextErr(context.Canceled); !errors.Is(got, ErrTimeout) {
		t.Errorf("canceled: got %v", got)
	}
	other := errors.New("disk full")
	if got := MapContextErr(other); got != other {
		t.Errorf("unrelated error rewritten to %v", got)
	}
	if got := MapContextErr(nil); got != nil {
		t.Errorf("nil rewritten to %v", got)
	}
}
