package status

import (
	"testing"

	"github.com/cwsl/radiod/internal/tlv"
)

func TestDecodeCommandRoundTrip(t *testing.T) {
	e := tlv.NewEncoder(tlv.PacketCmd)
	e.Int(TagOutputSSRC, 4242)
	e.Double(TagRadioFrequency, 7040000)
	e.String(TagPreset, "usb")
	e.Double(TagLowEdge, -2800)
	e.Double(TagHighEdge, -300)
	e.Int(TagCommandTag, 7)

	cmd := DecodeCommand(e.Bytes()[1:])
	if cmd.SSRC != 4242 {
		t.Fatalf("expected ssrc 4242, got %d", cmd.SSRC)
	}
	if !cmd.HasFreq || cmd.Freq != 7040000 {
		t.Fatalf("expected freq 7040000, got %v (has=%v)", cmd.Freq, cmd.HasFreq)
	}
	if !cmd.HasPreset || cmd.Preset != "usb" {
		t.Fatalf("expected preset usb, got %q", cmd.Preset)
	}
	if !cmd.HasLowEdge || cmd.LowEdge != -2800 {
		t.Fatalf("expected low edge -2800, got %v", cmd.LowEdge)
	}
	if !cmd.HasHighEdge || cmd.HighEdge != -300 {
		t.Fatalf("expected high edge -300, got %v", cmd.HighEdge)
	}
	if cmd.CommandTag != 7 {
		t.Fatalf("expected command tag 7, got %d", cmd.CommandTag)
	}
}

func TestDecodeCommandDestroyFlag(t *testing.T) {
	e := tlv.NewEncoder(tlv.PacketCmd)
	e.Int(TagOutputSSRC, 1)
	e.Byte(TagDestroy, 1)
	cmd := DecodeCommand(e.Bytes()[1:])
	if !cmd.Destroy {
		t.Fatalf("expected destroy flag set")
	}
}
