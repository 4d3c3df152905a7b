// Package channel implements the channel registry and lifecycle:
// identity, tuning, preset resolution, and the
// Created->Running->{Idle->Terminating->Destroyed} state machine.
package channel

// Params is the prototype/override value type consumed when
// constructing a channel: an explicit value type distinct from
// Channel, so construction either fully succeeds and registers a
// channel or produces nothing — no partially visible state.
type Params struct {
	SSRC uint32

	Freq         float64 // Hz, target center frequency
	Preset       string
	BandwidthLow  float64 // Hz, relative to Freq (may be negative)
	BandwidthHigh float64 // Hz, relative to Freq

	DataGroup    string
	StatusGroup  string
	TTL          int
	Encoding     string // "", "pcm", or "opus"

	LifetimeBlocks int // countdown used when Freq==0 and idle
}

// Preset bundles the named parameter set loaded from the presets
// database.
type Preset struct {
	Name          string
	BandwidthLow  float64
	BandwidthHigh float64
	Demod         string
}

// Resolve merges channel-section, preset, [global], and compiled
// defaults with strict priority highest-first: (1) channel's own
// section, (2) preset entry, (3) [global], (4) compiled-in defaults.
func Resolve(section Params, preset *Preset, global Params, defaults Params) Params {
	out := defaults
	merge(&out, global)
	if preset != nil {
		if preset.BandwidthLow != 0 || preset.BandwidthHigh != 0 {
			out.BandwidthLow = preset.BandwidthLow
			out.BandwidthHigh = preset.BandwidthHigh
		}
		if preset.Name != "" {
			out.Preset = preset.Name
		}
	}
	merge(&out, section)
	return out
}

// merge overlays any explicitly-set (non-zero) field of override onto
// base. Zero values in override are treated as "not specified",
// matching the original source's field-by-field priority resolution.
func merge(base *Params, override Params) {
	if override.SSRC != 0 {
		base.SSRC = override.SSRC
	}
	if override.Freq != 0 {
		base.Freq = override.Freq
	}
	if override.Preset != "" {
		base.Preset = override.Preset
	}
	if override.BandwidthLow != 0 {
		base.BandwidthLow = override.BandwidthLow
	}
	if override.BandwidthHigh != 0 {
		base.BandwidthHigh = override.BandwidthHigh
	}
	if override.DataGroup != "" {
		base.DataGroup = override.DataGroup
	}
	if override.StatusGroup != "" {
		base.StatusGroup = override.StatusGroup
	}
	if override.TTL != 0 {
		base.TTL = override.TTL
	}
	if override.Encoding != "" {
		base.Encoding = override.Encoding
	}
	if override.LifetimeBlocks != 0 {
		base.LifetimeBlocks = override.LifetimeBlocks
	}
}
