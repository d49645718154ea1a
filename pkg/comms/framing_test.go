package comms

import (
	"bytes"
	"errors"
	"testing"
)

func TestHelloFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	want := []byte(`{"id":"abc"}`)
	if err := WriteHelloFrame(&buf, want); err != nil {
		t.Fatal(err)
	}
	got, err := ReadHelloFrame(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("ReadHelloFrame() = %q, want %q", got, want)
	}
}

func TestPayloadFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	want := bytes.Repeat([]byte("x"), 10_000)
	if err := WritePayloadFrame(&buf, want); err != nil {
		t.Fatal(err)
	}
	got, err := ReadPayloadFrame(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, want) {
		t.Fatal("payload frame round trip mismatch")
	}
}

// Scenario: a V2-tagged frame arrives on a connection that negotiated V1.
// The reader must reject it as a framing error rather than hand V2-shaped
// bytes to a V1 decoder.
func TestReadVersionedPayloadFrameRejectsNewerVersion(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteVersionedPayloadFrame(&buf, V2, []byte("payload")); err != nil {
		t.Fatal(err)
	}
	_, err := ReadVersionedPayloadFrame(&buf, V1)
	if !errors.Is(err, ErrFrameVersionMismatch) {
		t.Fatalf("err = %v, want ErrFrameVersionMismatch", err)
	}
	if Classify(err, 0) != ErrorClose {
		t.Fatalf("Classify(ErrFrameVersionMismatch) = %v, want ErrorClose", Classify(err, 0))
	}
}

func TestVersionedPayloadFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	want := []byte("payload")
	if err := WriteVersionedPayloadFrame(&buf, V1, want); err != nil {
		t.Fatal(err)
	}
	got, err := ReadVersionedPayloadFrame(&buf, V2)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestMultipleFramesOnOneStream(t *testing.T) {
	var buf bytes.Buffer
	frames := [][]byte{[]byte("one"), []byte("two"), []byte("three")}
	for _, f := range frames {
		if err := WritePayloadFrame(&buf, f); err != nil {
			t.Fatal(err)
		}
	}
	for _, want := range frames {
		got, err := ReadPayloadFrame(&buf)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("got %q, want %q", got, want)
		}
	}
}
