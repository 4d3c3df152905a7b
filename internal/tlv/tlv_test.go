package tlv

import "testing"

func TestEncodeDecodeRoundTripsInt(t *testing.T) {
	enc := NewEncoder(PacketStatus).Int(5, 0x1234)
	fields := Decode(enc.Bytes()[1:])
	if len(fields) != 1 || fields[0].Tag != 5 {
		t.Fatalf("unexpected fields: %+v", fields)
	}
	if got := DecodeInt(fields[0].Value); got != 0x1234 {
		t.Fatalf("got %x, want %x", got, 0x1234)
	}
}

func TestIntZeroEncodesAsSingleZeroByteLength(t *testing.T) {
	enc := NewEncoder(PacketCmd).Int(9, 0)
	payload := enc.Bytes()[1:]
	fields := Decode(payload)
	if len(fields) != 1 || len(fields[0].Value) != 0 {
		t.Fatalf("expected zero-length value for zero int, got %+v", fields)
	}
	if DecodeInt(fields[0].Value) != 0 {
		t.Fatalf("expected decoded zero")
	}
}

func TestDoubleRoundTrips(t *testing.T) {
	want := 14250000.5
	enc := NewEncoder(PacketStatus).Double(3, want)
	fields := Decode(enc.Bytes()[1:])
	if got := DecodeDouble(fields[0].Value); got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestFloatRoundTrips(t *testing.T) {
	var want float32 = 3.25
	enc := NewEncoder(PacketStatus).Float(4, want)
	fields := Decode(enc.Bytes()[1:])
	if got := DecodeFloat(fields[0].Value); got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestStringRoundTrips(t *testing.T) {
	enc := NewEncoder(PacketStatus).String(7, "usb")
	fields := Decode(enc.Bytes()[1:])
	if len(fields) != 1 || string(fields[0].Value) != "usb" {
		t.Fatalf("unexpected fields: %+v", fields)
	}
}

func TestStringLongerThan127BytesUsesExtendedLength(t *testing.T) {
	long := make([]byte, 200)
	for i := range long {
		long[i] = 'a'
	}
	enc := NewEncoder(PacketStatus).String(7, string(long))
	fields := Decode(enc.Bytes()[1:])
	if len(fields) != 1 || len(fields[0].Value) != 200 {
		t.Fatalf("expected 200-byte value, got %d", len(fields[0].Value))
	}
}

func TestMultipleFieldsDecodeInOrder(t *testing.T) {
	enc := NewEncoder(PacketCmd).Byte(1, 0xAB).Int(2, 42).String(3, "fm")
	fields := Decode(enc.Bytes()[1:])
	if len(fields) != 3 {
		t.Fatalf("expected 3 fields, got %d", len(fields))
	}
	if fields[0].Tag != 1 || fields[1].Tag != 2 || fields[2].Tag != 3 {
		t.Fatalf("unexpected tag order: %+v", fields)
	}
}

func TestBytesAppendsEOLMarker(t *testing.T) {
	enc := NewEncoder(PacketStatus).Byte(1, 1)
	out := enc.Bytes()
	if out[len(out)-1] != 0 {
		t.Fatalf("expected trailing zero EOL marker")
	}
}

func TestDecodeStopsAtEOLMarker(t *testing.T) {
	enc := NewEncoder(PacketStatus).Byte(1, 1)
	payload := enc.Bytes()[1:]
	payload = append(payload, 9, 1, 0xFF)
	fields := Decode(payload)
	if len(fields) != 1 {
		t.Fatalf("expected decoding to stop at EOL, got %+v", fields)
	}
}
