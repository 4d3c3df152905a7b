package mqttstatus

import "testing"

func TestTopicForJoinsPrefixAndSSRC(t *testing.T) {
	got := topicFor("radiod/status", 7040000)
	want := "radiod/status/7040000"
	if got != want {
		t.Fatalf("topicFor: got %q, want %q", got, want)
	}
}

func TestDefaultTopicPrefixFallsBackWhenEmpty(t *testing.T) {
	if got := defaultTopicPrefix(""); got != "radiod/status" {
		t.Fatalf("expected default prefix, got %q", got)
	}
	if got := defaultTopicPrefix("custom/prefix"); got != "custom/prefix" {
		t.Fatalf("expected custom prefix preserved, got %q", got)
	}
}

func TestNilPublisherMethodsAreNoops(t *testing.T) {
	var p *Publisher
	p.Mirror(1, []byte("x"))
	p.Close()
}
