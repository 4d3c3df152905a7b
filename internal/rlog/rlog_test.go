package rlog

import "testing"

func TestBumpFloorsAtZero(t *testing.T) {
	SetVerbosity(0)
	if got := Bump(-1); got != 0 {
		t.Fatalf("Bump(-1) at zero = %d, want 0", got)
	}
}

func TestBumpIncrementsAndDecrements(t *testing.T) {
	SetVerbosity(1)
	if got := Bump(1); got != 2 {
		t.Fatalf("Bump(1) = %d, want 2", got)
	}
	if got := Bump(-1); got != 1 {
		t.Fatalf("Bump(-1) = %d, want 1", got)
	}
}

func TestSetVerbosityFloorsNegativeAtZero(t *testing.T) {
	SetVerbosity(-5)
	if Level() != 0 {
		t.Fatalf("Level() = %d, want 0", Level())
	}
}

func TestVGatesOnLevel(t *testing.T) {
	SetVerbosity(1)
	if !bool(V(1)) {
		t.Fatalf("V(1) should be enabled at verbosity 1")
	}
	if bool(V(2)) {
		t.Fatalf("V(2) should be disabled at verbosity 1")
	}
}

func TestNumberFormatsThousandsSeparators(t *testing.T) {
	if got := Number(1234567); got != "1,234,567" {
		t.Fatalf("Number(1234567) = %q, want %q", got, "1,234,567")
	}
}
