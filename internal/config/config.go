// Package config loads the INI-style configuration file (or merged
// directory of *.conf fragments), the presets database, and exposes a
// YAML debug dump of the resolved configuration for operators.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/go-version"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"

	"github.com/cwsl/radiod/internal/rerr"
	"github.com/cwsl/radiod/internal/sysexits"
)

// GlobalKeys is the exact recognized key set for [global]; any other
// key is a warning, not a fatal error.
var GlobalKeys = []string{
	"affinity", "blocktime", "data", "description", "dns",
	"fft-plan-level", "fft-threads", "fft-time-limit", "hardware",
	"iface", "metrics-listen", "mode", "mode-file", "monitor-listen",
	"mqtt-broker", "overlap", "preset", "presets-file",
	"prio", "rtcp", "sap", "static", "status", "tos", "ttl", "update",
	"verbose", "wisdom-file",
}

// FFTPlanLevel enumerates the transform planning effort levels a
// [global] section may request.
type FFTPlanLevel string

const (
	PlanEstimate   FFTPlanLevel = "estimate"
	PlanMeasure    FFTPlanLevel = "measure"
	PlanPatient    FFTPlanLevel = "patient"
	PlanExhaustive FFTPlanLevel = "exhaustive"
	PlanWisdomOnly FFTPlanLevel = "wisdom-only"
)

func parsePlanLevel(s string) (FFTPlanLevel, error) {
	switch FFTPlanLevel(s) {
	case PlanEstimate, PlanMeasure, PlanPatient, PlanExhaustive, PlanWisdomOnly:
		return FFTPlanLevel(s), nil
	case "":
		return PlanPatient, nil
	default:
		return "", rerr.Config(fmt.Errorf("fft-plan-level: unrecognized value %q", s))
	}
}

// Global holds the [global] section.
type Global struct {
	Affinity      bool         `ini:"affinity"`
	BlockTimeMs   int          `ini:"blocktime"`
	Data          string       `ini:"data"`
	Description   string       `ini:"description"`
	DNS           bool         `ini:"dns"`
	PlanLevel     FFTPlanLevel `ini:"-"`
	FFTThreads    int          `ini:"fft-threads"`
	FFTTimeLimit  int          `ini:"fft-time-limit"`
	Hardware      string       `ini:"hardware"`
	Iface         string       `ini:"iface"`
	MetricsListen string       `ini:"metrics-listen"`
	Mode          string       `ini:"mode"`
	ModeFile      string       `ini:"mode-file"`
	MonitorListen string       `ini:"monitor-listen"`
	MQTTBroker    string       `ini:"mqtt-broker"`
	Overlap       int          `ini:"overlap"`
	Preset        string       `ini:"preset"`
	PresetsFile   string       `ini:"presets-file"`
	Prio          int          `ini:"prio"`
	RTCP          bool         `ini:"rtcp"`
	SAP           bool         `ini:"sap"`
	Static        bool         `ini:"static"`
	Status        string       `ini:"status"`
	TOS           int          `ini:"tos"`
	TTL           int          `ini:"ttl"`
	Update        int          `ini:"update"`
	Verbose       int          `ini:"verbose"`
	WisdomFile    string       `ini:"wisdom-file"`
}

// Hardware holds a `device = <name>` section.
type Hardware struct {
	Name    string
	Device  string `ini:"device"`
	Extra   map[string]string
}

// ChannelGroup holds a channel-group section: any non-[global],
// non-hardware section. Multiple freq/freq0..freq9 lists fan out into
// one channel per listed frequency.
type ChannelGroup struct {
	Name        string
	Freqs       []float64
	SSRC        uint32
	Disable     bool
	Encoding    string
	DNS         bool
	Iface       string
	Data        string
	Preset      string
	Extra       map[string]string
}

// File is the fully parsed, merged configuration.
type File struct {
	Global   Global
	Hardware Hardware
	Channels []ChannelGroup
}

// Load reads path, which may be a single file or (if path doesn't
// exist, path+".d" is tried) a directory of *.conf fragments merged
// in lexicographic order into one virtual file before parsing.
func Load(path string) (*File, error) {
	body, err := loadBody(path)
	if err != nil {
		e := rerr.Config(err)
		e.ExitCode = sysexits.NoInput
		return nil, e
	}
	cfg, err := ini.Load(body)
	if err != nil {
		return nil, rerr.Config(fmt.Errorf("parsing config: %w", err))
	}
	return parse(cfg)
}

func loadBody(path string) ([]byte, error) {
	if _, err := os.Stat(path); err != nil {
		dirPath := path + ".d"
		if info, derr := os.Stat(dirPath); derr == nil && info.IsDir() {
			return mergeDir(dirPath)
		}
		return nil, fmt.Errorf("config path %q not found (also tried %q)", path, dirPath)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return mergeDir(path)
	}
	return os.ReadFile(path)
}

func mergeDir(dir string) ([]byte, error) {
	entries, err := filepath.Glob(filepath.Join(dir, "*.conf"))
	if err != nil {
		return nil, err
	}
	sort.Strings(entries)
	var buf bytes.Buffer
	for _, f := range entries {
		b, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", f, err)
		}
		buf.Write(b)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

func parse(cfg *ini.File) (*File, error) {
	f := &File{}

	gSec := cfg.Section("global")
	for _, key := range gSec.Keys() {
		if !contains(GlobalKeys, key.Name()) {
			warnUnknownGlobalKey(key.Name())
		}
	}
	if err := gSec.MapTo(&f.Global); err != nil {
		return nil, rerr.Config(fmt.Errorf("mapping [global]: %w", err))
	}
	plan, err := parsePlanLevel(gSec.Key("fft-plan-level").String())
	if err != nil {
		return nil, err
	}
	f.Global.PlanLevel = plan
	if f.Global.Hardware == "" {
		return nil, rerr.Config(fmt.Errorf("[global] hardware key is mandatory"))
	}

	for _, sec := range cfg.Sections() {
		name := sec.Name()
		if name == "global" || name == ini.DefaultSection {
			continue
		}
		if name == f.Global.Hardware || sec.HasKey("device") {
			f.Hardware = Hardware{Name: name, Device: sec.Key("device").String(), Extra: sectionExtra(sec, "device")}
			continue
		}
		f.Channels = append(f.Channels, parseChannelGroup(sec))
	}
	return f, nil
}

func parseChannelGroup(sec *ini.Section) ChannelGroup {
	g := ChannelGroup{Name: sec.Name(), Extra: map[string]string{}}
	for _, key := range sec.Keys() {
		switch key.Name() {
		case "freq":
			g.Freqs = append(g.Freqs, parseFreqList(key.String())...)
		case "ssrc":
			g.SSRC = uint32(key.MustUint64(0))
		case "disable":
			g.Disable = key.MustBool(false)
		case "encoding":
			g.Encoding = key.String()
		case "dns":
			g.DNS = key.MustBool(false)
		case "iface":
			g.Iface = key.String()
		case "data":
			g.Data = key.String()
		case "mode", "preset":
			g.Preset = key.String()
		default:
			if strings.HasPrefix(key.Name(), "freq") {
				g.Freqs = append(g.Freqs, parseFreqList(key.String())...)
				continue
			}
			g.Extra[key.Name()] = key.String()
		}
	}
	return g
}

func parseFreqList(s string) []float64 {
	var out []float64
	for _, tok := range strings.Fields(strings.ReplaceAll(s, ",", " ")) {
		var hz float64
		if _, err := fmt.Sscanf(tok, "%g", &hz); err == nil {
			out = append(out, hz)
		}
	}
	return out
}

func sectionExtra(sec *ini.Section, skip ...string) map[string]string {
	out := map[string]string{}
	for _, key := range sec.Keys() {
		if contains(skip, key.Name()) {
			continue
		}
		out[key.Name()] = key.String()
	}
	return out
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

func warnUnknownGlobalKey(name string) {
	// Unrecognized [global] keys are a warning, not fatal: an operator
	// running a newer config against an older binary should degrade
	// gracefully rather than fail to start.
	warnf("config: unrecognized [global] key %q", name)
}

// warnf is overridden in tests; defaults to a no-op so config parsing
// stays silent in unit tests that don't care about log output.
var warnf = func(format string, args ...any) {}

// SetWarner installs the callback used to report non-fatal parsing
// warnings (normally rlog.Printf).
func SetWarner(fn func(format string, args ...any)) { warnf = fn }

// Dump renders f as YAML for the debug/diagnostic surface; not the
// wire config format, purely an operator-facing snapshot.
func Dump(f *File) (string, error) {
	b, err := yaml.Marshal(f)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// PresetsSchemaConstraint is the version range of presets-file schema
// this binary understands; presets files declare their schema version
// in a `[presets]` section's `schema` key.
var PresetsSchemaConstraint = mustConstraint(">= 1.0, < 2.0")

func mustConstraint(s string) version.Constraints {
	c, err := version.NewConstraint(s)
	if err != nil {
		panic(err)
	}
	return c
}

// CheckPresetsSchema validates a presets file's declared schema
// version against PresetsSchemaConstraint, returning a PresetLoadError
// on mismatch (fatal: the whole preset table is unusable).
func CheckPresetsSchema(declared string) error {
	if declared == "" {
		declared = "1.0"
	}
	v, err := version.NewVersion(declared)
	if err != nil {
		return rerr.PresetLoad(fmt.Errorf("presets file: invalid schema version %q: %w", declared, err))
	}
	if !PresetsSchemaConstraint.Check(v) {
		return rerr.PresetLoad(fmt.Errorf("presets file: schema version %s not supported (want %s)", v, PresetsSchemaConstraint))
	}
	return nil
}
