// Package rerr defines the error kinds radiod propagates: some are
// fatal at startup, some are per-channel, some are warnings.
package rerr

import (
	"fmt"

	"github.com/cwsl/radiod/internal/sysexits"
)

// Kind classifies an error for propagation policy and exit-code mapping.
type Kind int

const (
	KindConfig Kind = iota
	KindHardwareSetup
	KindOutputBind
	KindPresetLoad
	KindSSRCExhausted
	KindBandwidthClamped
	KindBlockGap
	KindSend
	KindDriverFailure
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "ConfigError"
	case KindHardwareSetup:
		return "HardwareSetupError"
	case KindOutputBind:
		return "OutputBindError"
	case KindPresetLoad:
		return "PresetLoadError"
	case KindSSRCExhausted:
		return "SSRCExhausted"
	case KindBandwidthClamped:
		return "BandwidthClamped"
	case KindBlockGap:
		return "BlockGap"
	case KindSend:
		return "SendError"
	case KindDriverFailure:
		return "DriverFailure"
	default:
		return "UnknownError"
	}
}

// Error wraps an underlying cause with a Kind, whether it is fatal to
// the whole process (vs. just the channel that raised it), and the
// sysexits code to use if it is fatal at startup.
type Error struct {
	Kind     Kind
	Fatal    bool
	ExitCode int
	Err      error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(k Kind, fatal bool, code int, err error) *Error {
	return &Error{Kind: k, Fatal: fatal, ExitCode: code, Err: err}
}

// Config reports a ConfigError: fatal during startup, per-channel-fatal
// at runtime (the caller decides which by how it's handled).
func Config(err error) *Error { return newErr(KindConfig, true, sysexits.Usage, err) }

// HardwareSetup reports a fatal HardwareSetupError.
func HardwareSetup(err error) *Error {
	return newErr(KindHardwareSetup, true, sysexits.NoInput, err)
}

// OutputBind reports a fatal OutputBindError.
func OutputBind(err error) *Error {
	return newErr(KindOutputBind, true, sysexits.NoHost, err)
}

// PresetLoad reports a PresetLoadError. Fatal only when the whole
// presets table failed to load; callers downgrade per-channel misses
// to a warning by setting Fatal=false after construction.
func PresetLoad(err error) *Error {
	return newErr(KindPresetLoad, true, sysexits.Unavailable, err)
}

// SSRCExhausted reports a non-fatal warning: the channel was not created.
func SSRCExhausted(ssrc uint32, probes int) *Error {
	return newErr(KindSSRCExhausted, false, 0,
		fmt.Errorf("no free ssrc found near %d after %d probes", ssrc, probes))
}

// BandwidthClamped reports a non-fatal warning.
func BandwidthClamped(requestedHz, clampedHz float64) *Error {
	return newErr(KindBandwidthClamped, false, 0,
		fmt.Errorf("requested bandwidth %.1f Hz clamped to %.1f Hz", requestedHz, clampedHz))
}

// BlockGap reports a non-fatal warning logged at elevated verbosity.
func BlockGap(last, got uint64) *Error {
	return newErr(KindBlockGap, false, 0,
		fmt.Errorf("missed %d block(s): last seen %d, now at %d", got-last-1, last, got))
}

// Send reports a non-fatal per-channel send failure.
func Send(err error) *Error { return newErr(KindSend, false, 0, err) }

// DriverFailure reports a runtime driver failure. Fatal unless the
// driver offers a recovery path, which the caller checks separately.
func DriverFailure(err error) *Error {
	return newErr(KindDriverFailure, true, sysexits.Software, err)
}
