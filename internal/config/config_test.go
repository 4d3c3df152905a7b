package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("writing %s: %v", p, err)
	}
	return p
}

func TestLoadSingleFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "radiod.conf", `
[global]
hardware = rx888
status = status.local
blocktime = 20
overlap = 5
fft-plan-level = measure

[rx888]
device = rx888
samprate = 12000000

[wwv]
freq = 5000000, 10000000
ssrc = 5000000
preset = am
`)
	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if f.Global.Hardware != "rx888" {
		t.Fatalf("expected hardware rx888, got %q", f.Global.Hardware)
	}
	if f.Global.PlanLevel != PlanMeasure {
		t.Fatalf("expected plan level measure, got %q", f.Global.PlanLevel)
	}
	if f.Hardware.Device != "rx888" {
		t.Fatalf("expected device rx888, got %q", f.Hardware.Device)
	}
	if len(f.Channels) != 1 {
		t.Fatalf("expected 1 channel group, got %d", len(f.Channels))
	}
	ch := f.Channels[0]
	if len(ch.Freqs) != 2 || ch.Freqs[0] != 5000000 || ch.Freqs[1] != 10000000 {
		t.Fatalf("expected two parsed freqs, got %v", ch.Freqs)
	}
	if ch.Preset != "am" {
		t.Fatalf("expected preset am, got %q", ch.Preset)
	}
}

func TestLoadDirMergesInLexOrder(t *testing.T) {
	dir := t.TempDir()
	confDir := filepath.Join(dir, "radiod.conf.d")
	if err := os.Mkdir(confDir, 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, confDir, "00-global.conf", "[global]\nhardware = sig_gen\nstatus = status.local\n")
	writeFile(t, confDir, "10-sig_gen.conf", "[sig_gen]\ndevice = sig_gen\n")
	writeFile(t, confDir, "20-chan.conf", "[test]\nfreq = 1000\nssrc = 1\n")

	f, err := Load(filepath.Join(dir, "radiod.conf"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if f.Global.Hardware != "sig_gen" {
		t.Fatalf("expected hardware sig_gen, got %q", f.Global.Hardware)
	}
	if len(f.Channels) != 1 || f.Channels[0].SSRC != 1 {
		t.Fatalf("expected one channel with ssrc 1, got %+v", f.Channels)
	}
}

func TestMissingHardwareKeyIsConfigError(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "radiod.conf", "[global]\nstatus = status.local\n")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for missing hardware key")
	}
}

func TestCheckPresetsSchema(t *testing.T) {
	if err := CheckPresetsSchema("1.2"); err != nil {
		t.Fatalf("expected 1.2 to satisfy constraint: %v", err)
	}
	if err := CheckPresetsSchema("2.0"); err == nil {
		t.Fatalf("expected 2.0 to be rejected")
	}
	if err := CheckPresetsSchema(""); err != nil {
		t.Fatalf("expected empty schema to default to 1.0: %v", err)
	}
}
