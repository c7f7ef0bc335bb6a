package groupcode

import (
	"context"
	"errors"
	"testing"
)

func TestGenerate_Shape(t *testing.T) {
	for i := 0; i < 1000; i++ {
		code := Generate()
		if len(code) != Length {
			t.Fatalf("code %q: got length %d, want %d", code, len(code), Length)
		}
		if !IsWellFormed(code) {
			t.Fatalf("code %q is not well formed", code)
		}
	}
}

func TestEnsureUnique_RejectsTakenCodes(t *testing.T) {
	ctx := context.Background()

	// Register every accepted code and make sure none repeats.
	registry := make(map[string]bool, 10000)
	exists := func(_ context.Context, code string) (bool, error) {
		return registry[code], nil
	}

	for i := 0; i < 10000; i++ {
		code := EnsureUnique(ctx, exists)
		if registry[code] {
			t.Fatalf("EnsureUnique returned duplicate code %q after %d codes", code, i)
		}
		registry[code] = true
	}
}

func TestEnsureUnique_FallbackOnExhaustion(t *testing.T) {
	ctx := context.Background()

	// Every generated code is "taken", forcing the degraded path.
	calls := 0
	exists := func(_ context.Context, _ string) (bool, error) {
		calls++
		return true, nil
	}

	code := EnsureUnique(ctx, exists)
	if code == "" {
		t.Fatal("EnsureUnique returned empty code on exhaustion")
	}
	if len(code) != Length {
		t.Errorf("fallback code %q: got length %d, want %d", code, len(code), Length)
	}
	if calls != 10 {
		t.Errorf("existence checks: got %d, want 10", calls)
	}
}

func TestEnsureUnique_CheckErrorMeansTaken(t *testing.T) {
	ctx := context.Background()

	// The first check fails; the second succeeds. EnsureUnique must not
	// accept the code whose check errored.
	var codesChecked []string
	exists := func(_ context.Context, code string) (bool, error) {
		codesChecked = append(codesChecked, code)
		if len(codesChecked) == 1 {
			return false, errors.New("store unavailable")
		}
		return false, nil
	}

	code := EnsureUnique(ctx, exists)
	if len(codesChecked) != 2 {
		t.Fatalf("existence checks: got %d, want 2", len(codesChecked))
	}
	if code != codesChecked[1] {
		t.Errorf("accepted %q, want the second checked code %q", code, codesChecked[1])
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"abc123", "ABC123"},
		{"  AbC123 ", "ABC123"},
		{"XYZXYZ", "XYZXYZ"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsWellFormed(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"ABC123", true},
		{"ZZZZZZ", true},
		{"abc123", false},
		{"ABC12", false},
		{"ABC1234", false},
		{"ABC12!", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsWellFormed(tt.code); got != tt.want {
			t.Errorf("IsWellFormed(%q) = %v, want %v", tt.code, got, tt.want)
		}
	}
}
