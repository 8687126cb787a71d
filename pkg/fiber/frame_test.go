package fiber

import (
	"bytes"
	"io"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	header := Header{
		Version: protocolVersion,
		ID:      ID{Local: 42, Remote: 99},
		Flags:   FlagPush,
	}
	payload := []byte("hello fiber")

	var buffer bytes.Buffer
	if err := WriteFrame(&buffer, header, payload); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}

	frame, err := ReadFrame(&buffer)
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	if frame.Header.ID != header.ID {
		t.Errorf("ID mismatch: got %v, want %v", frame.Header.ID, header.ID)
	}
	if frame.Header.Flags != header.Flags {
		t.Errorf("Flags mismatch: got %v, want %v", frame.Header.Flags, header.Flags)
	}
	if !bytes.Equal(frame.Payload, payload) {
		t.Errorf("payload mismatch: got %q, want %q", frame.Payload, payload)
	}
}

func TestFrameCleanEOF(t *testing.T) {
	var buffer bytes.Buffer
	if _, err := ReadFrame(&buffer); err != io.EOF {
		t.Fatalf("expected io.EOF on empty carrier, got %v", err)
	}
}

func TestIDReturning(t *testing.T) {
	id := ID{Local: 7, Remote: 13}
	flipped := id.Returning()
	if flipped.Local != 13 || flipped.Remote != 7 {
		t.Errorf("Returning: got %v, want {13 7}", flipped)
	}
}
