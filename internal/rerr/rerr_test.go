package rerr

import (
	"errors"
	"testing"

	"github.com/cwsl/radiod/internal/sysexits"
)

func TestConstructorsSetExpectedExitCodes(t *testing.T) {
	cases := []struct {
		name string
		err  *Error
		code int
		kind Kind
	}{
		{"Config", Config(errors.New("x")), sysexits.Usage, KindConfig},
		{"HardwareSetup", HardwareSetup(errors.New("x")), sysexits.NoInput, KindHardwareSetup},
		{"OutputBind", OutputBind(errors.New("x")), sysexits.NoHost, KindOutputBind},
		{"PresetLoad", PresetLoad(errors.New("x")), sysexits.Unavailable, KindPresetLoad},
		{"DriverFailure", DriverFailure(errors.New("x")), sysexits.Software, KindDriverFailure},
	}
	for _, c := range cases {
		if c.err.ExitCode != c.code {
			t.Errorf("%s: ExitCode = %d, want %d", c.name, c.err.ExitCode, c.code)
		}
		if c.err.Kind != c.kind {
			t.Errorf("%s: Kind = %v, want %v", c.name, c.err.Kind, c.kind)
		}
		if !c.err.Fatal {
			t.Errorf("%s: expected Fatal=true", c.name)
		}
	}
}

func TestWarningConstructorsAreNonFatal(t *testing.T) {
	warnings := []*Error{
		SSRCExhausted(1000, 5),
		BandwidthClamped(3000, 2500),
		BlockGap(10, 13),
		Send(errors.New("x")),
	}
	for _, w := range warnings {
		if w.Fatal {
			t.Errorf("%v: expected Fatal=false", w.Kind)
		}
	}
}

func TestBlockGapMessageReportsMissedCount(t *testing.T) {
	err := BlockGap(10, 13)
	if got := err.Error(); got != "BlockGap: missed 2 block(s): last seen 10, now at 13" {
		t.Fatalf("unexpected message: %q", got)
	}
}

func TestUnwrapExposesUnderlyingError(t *testing.T) {
	cause := errors.New("boom")
	err := Config(cause)
	if !errors.Is(err, cause) {
		t.Fatalf("expected errors.Is to find wrapped cause")
	}
}

func TestErrorStringFallsBackToKindWhenErrNil(t *testing.T) {
	e := &Error{Kind: KindSend}
	if e.Error() != "SendError" {
		t.Fatalf("got %q, want %q", e.Error(), "SendError")
	}
}
