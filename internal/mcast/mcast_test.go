package mcast

import "testing"

func TestSynthesizeIsDeterministicAndInRange(t *testing.T) {
	a := Synthesize("wwv-audio")
	b := Synthesize("wwv-audio")
	if a.String() != b.String() {
		t.Fatalf("expected deterministic synthesis, got %s and %s", a, b)
	}
	if a[12] != 239 {
		t.Fatalf("expected synthesized address in 239/8, got %s", a)
	}
}

func TestSynthesizeAvoidsAliasingRanges(t *testing.T) {
	for _, name := range []string{"a", "bb", "ccc", "wwv-audio", "status-group", "data-group-9"} {
		ip := Synthesize(name).To4()
		second, third := ip[1], ip[2]
		if second&0x7f == 0 && third == 0 {
			t.Fatalf("synthesized %s for %q falls in an aliasing range", ip, name)
		}
	}
}

func TestResolveFallsBackToSynthesis(t *testing.T) {
	addr, err := Resolve("definitely-not-a-dns-name.invalid:5004")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if addr.Port != 5004 {
		t.Fatalf("expected port 5004, got %d", addr.Port)
	}
	if addr.IP.To4()[0] != 239 {
		t.Fatalf("expected synthesized fallback in 239/8, got %s", addr.IP)
	}
}
