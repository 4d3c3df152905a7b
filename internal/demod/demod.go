// Package demod defines the pluggable demod(chan) entry point: a
// black-box callable bound to a channel's filter output. Only the
// binding contract is fixed here, plus minimal reference
// implementations so the engine has something real to run end to end.
package demod

import "math"

// Demodulator consumes one block of L complex baseband time-domain
// samples from a channel's filter output and returns the
// demodulated audio (or, for an IQ passthrough channel, the raw
// samples repacked) for the output/packetizer stage.
type Demodulator interface {
	// Process demodulates one block in place conceptually but returns
	// a fresh slice so the caller may hand it off across goroutines
	// without aliasing concerns.
	Process(block []complex128) []float32
}

// Func adapts a plain function to the Demodulator interface.
type Func func(block []complex128) []float32

func (f Func) Process(block []complex128) []float32 { return f(block) }

// AM is an envelope detector: |sample|, DC-block removed with a
// leaky integrator, matching the simplest AM demod shape.
type AM struct {
	dcEstimate float32
	Alpha      float32 // DC removal time constant, default 0.01 if zero
}

// DCEstimate returns the leaky integrator's current envelope
// estimate, mainly useful for tests checking convergence.
func (a *AM) DCEstimate() float32 { return a.dcEstimate }

func (a *AM) Process(block []complex128) []float32 {
	alpha := a.Alpha
	if alpha == 0 {
		alpha = 0.01
	}
	out := make([]float32, len(block))
	for i, s := range block {
		mag := float32(math.Hypot(real(s), imag(s)))
		a.dcEstimate = (1-alpha)*a.dcEstimate + alpha*mag
		out[i] = mag - a.dcEstimate
	}
	return out
}

// FM is a simple phase-difference discriminator.
type FM struct {
	prevPhase float64
	Gain      float32 // scales discriminator output, default 1 if zero
}

func (f *FM) Process(block []complex128) []float32 {
	gain := f.Gain
	if gain == 0 {
		gain = 1
	}
	out := make([]float32, len(block))
	for i, s := range block {
		phase := math.Atan2(imag(s), real(s))
		diff := phase - f.prevPhase
		for diff > math.Pi {
			diff -= 2 * math.Pi
		}
		for diff < -math.Pi {
			diff += 2 * math.Pi
		}
		out[i] = gain * float32(diff)
		f.prevPhase = phase
	}
	return out
}

// USB/LSB (single sideband) is already selected entirely by the
// channel's bandpass filter edges; the demod stage is just a
// real-part passthrough of the already-shifted, already-filtered
// complex baseband.
type SSB struct{}

func (SSB) Process(block []complex128) []float32 {
	out := make([]float32, len(block))
	for i, s := range block {
		out[i] = float32(real(s))
	}
	return out
}

// IQ passes the complex baseband straight through as interleaved
// I/Q float32 pairs, for channels configured as raw IQ output rather
// than an audio demodulator.
type IQ struct{}

func (IQ) Process(block []complex128) []float32 {
	out := make([]float32, len(block)*2)
	for i, s := range block {
		out[2*i] = float32(real(s))
		out[2*i+1] = float32(imag(s))
	}
	return out
}

// ByPreset returns the reference demodulator for a preset/demod-type
// name (bandwidth + demod kind). Unknown names fall back to SSB,
// matching the per-channel warn-and-keep-defaults policy for a
// missing preset.
func ByPreset(name string) Demodulator {
	switch name {
	case "am":
		return &AM{}
	case "fm", "nfm", "wfm":
		return &FM{}
	case "usb", "lsb", "cw":
		return SSB{}
	case "iq", "spectrum":
		return IQ{}
	default:
		return SSB{}
	}
}
