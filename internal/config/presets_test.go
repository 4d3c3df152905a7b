package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadPresets(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "presets.conf")
	body := `
[presets]
schema = 1.0

[am]
low = -5000
high = 5000
demod = am

[usb]
low = 300
high = 2800
demod = usb
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	presets, err := LoadPresets(path)
	if err != nil {
		t.Fatalf("LoadPresets: %v", err)
	}
	am, ok := presets.Lookup("am")
	if !ok {
		t.Fatalf("expected am preset to be found")
	}
	if am.BandwidthLow != -5000 || am.BandwidthHigh != 5000 {
		t.Fatalf("unexpected am bandwidth: %+v", am)
	}
	if _, ok := presets.Lookup("nonexistent"); ok {
		t.Fatalf("expected nonexistent preset to be missing")
	}
}

func TestLoadPresetsRejectsUnsupportedSchema(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "presets.conf")
	if err := os.WriteFile(path, []byte("[presets]\nschema = 3.0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadPresets(path); err == nil {
		t.Fatalf("expected schema 3.0 to be rejected")
	}
}
