package config

import (
	"fmt"

	"gopkg.in/ini.v1"

	"github.com/cwsl/radiod/internal/channel"
	"github.com/cwsl/radiod/internal/rerr"
)

// PresetEntry mirrors channel.Preset with the raw keys read from the
// presets database, before being narrowed to the channel package's
// resolution type.
type PresetEntry = channel.Preset

// Presets is the parsed presets database: one section per preset
// name, plus a `[presets]` metadata section carrying the schema
// version.
type Presets struct {
	SchemaVersion string
	ByName        map[string]PresetEntry
}

// LoadPresets reads an INI presets file, validates its declared
// schema version, and returns the parsed preset table. A missing
// presets file is a fatal PresetLoadError; a malformed individual
// entry is skipped with a warning rather than failing the whole load.
func LoadPresets(path string) (*Presets, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, rerr.PresetLoad(fmt.Errorf("loading presets file %s: %w", path, err))
	}

	schema := cfg.Section("presets").Key("schema").String()
	if err := CheckPresetsSchema(schema); err != nil {
		return nil, err
	}

	p := &Presets{SchemaVersion: schema, ByName: map[string]PresetEntry{}}
	for _, sec := range cfg.Sections() {
		name := sec.Name()
		if name == "presets" || name == ini.DefaultSection {
			continue
		}
		if !sec.HasKey("low") && !sec.HasKey("high") && !sec.HasKey("demod") {
			warnf("presets: section %q has no recognized preset keys, skipping", name)
			continue
		}
		p.ByName[name] = PresetEntry{
			Name:          name,
			BandwidthLow:  sec.Key("low").MustFloat64(0),
			BandwidthHigh: sec.Key("high").MustFloat64(0),
			Demod:         sec.Key("demod").String(),
		}
	}
	return p, nil
}

// Lookup returns the named preset, or (nil, false) with the caller
// expected to warn and fall back to compiled-in defaults — a missing
// preset name is a per-channel warning, not a fatal error.
func (p *Presets) Lookup(name string) (*PresetEntry, bool) {
	e, ok := p.ByName[name]
	if !ok {
		return nil, false
	}
	return &e, true
}
