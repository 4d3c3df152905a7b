package demod

import (
	"math"
	"testing"
)

func TestAMTracksDCOfConstantEnvelope(t *testing.T) {
	a := &AM{}
	block := make([]complex128, 2000)
	for i := range block {
		block[i] = complex(1, 0)
	}
	out := a.Process(block)
	last := out[len(out)-1]
	if math.Abs(float64(last)) > 0.05 {
		t.Fatalf("expected converged output near zero, got %v", last)
	}
}

func TestFMDiscriminatorTracksConstantRotation(t *testing.T) {
	f := &FM{}
	const step = 0.1
	block := make([]complex128, 10)
	phase := 0.0
	for i := range block {
		phase += step
		block[i] = complex(math.Cos(phase), math.Sin(phase))
	}
	out := f.Process(block)
	for i := 1; i < len(out); i++ {
		if math.Abs(float64(out[i])-step) > 1e-6 {
			t.Fatalf("sample %d: got %v, want %v", i, out[i], step)
		}
	}
}

func TestFMUnwrapsPhaseAcrossPiBoundary(t *testing.T) {
	f := &FM{}
	block := []complex128{
		complex(math.Cos(3.1), math.Sin(3.1)),
		complex(math.Cos(-3.1), math.Sin(-3.1)),
	}
	out := f.Process(block)
	if math.Abs(float64(out[1])) > 0.5 {
		t.Fatalf("expected small wrapped difference, got %v", out[1])
	}
}

func TestSSBPassesThroughRealPart(t *testing.T) {
	block := []complex128{complex(0.5, 0.25), complex(-0.75, 0.1)}
	out := SSB{}.Process(block)
	if out[0] != 0.5 || out[1] != -0.75 {
		t.Fatalf("unexpected output: %v", out)
	}
}

func TestIQInterleavesRealAndImaginary(t *testing.T) {
	block := []complex128{complex(1, 2)}
	out := IQ{}.Process(block)
	if len(out) != 2 || out[0] != 1 || out[1] != 2 {
		t.Fatalf("unexpected output: %v", out)
	}
}

func TestByPresetMapsKnownNames(t *testing.T) {
	cases := map[string]any{
		"am":    &AM{},
		"fm":    &FM{},
		"usb":   SSB{},
		"iq":    IQ{},
		"bogus": SSB{},
	}
	for name, want := range cases {
		got := ByPreset(name)
		gotType := typeName(got)
		wantType := typeName(want)
		if gotType != wantType {
			t.Errorf("ByPreset(%q) = %s, want %s", name, gotType, wantType)
		}
	}
}

func typeName(v any) string {
	switch v.(type) {
	case *AM:
		return "*AM"
	case *FM:
		return "*FM"
	case SSB:
		return "SSB"
	case IQ:
		return "IQ"
	default:
		return "unknown"
	}
}

func TestFuncAdaptsPlainFunction(t *testing.T) {
	var d Demodulator = Func(func(block []complex128) []float32 {
		return []float32{42}
	})
	out := d.Process(nil)
	if len(out) != 1 || out[0] != 42 {
		t.Fatalf("unexpected output: %v", out)
	}
}
