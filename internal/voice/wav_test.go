package voice

import (
	"bytes"
	"testing"
	"time"
)

func TestPCMDuration(t *testing.T) {
	if got := PCMDuration(BytesPerSecond); got != time.Second {
		t.Fatalf("PCMDuration(one second of bytes) = %v", got)
	}
	if got := PCMDuration(BytesPerSecond / 2); got != 500*time.Millisecond {
		t.Fatalf("PCMDuration(half second) = %v", got)
	}
}

func TestWrapPCMRoundTrip(t *testing.T) {
	raw := make([]byte, 1920)
	for i := range raw {
		raw[i] = byte(i)
	}

	asset := WrapPCM(raw)
	pcm, rate, channels, err := DecodeWAV(asset)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if rate != SampleRate || channels != Channels {
		t.Fatalf("format = %d Hz %d ch, want %d Hz %d ch", rate, channels, SampleRate, Channels)
	}
	if !bytes.Equal(pcm, raw) {
		t.Fatal("decoded pcm differs from input")
	}
}

func TestDecodeWAVRejectsGarbage(t *testing.T) {
	if _, _, _, err := DecodeWAV([]byte("not a wav file")); err == nil {
		t.Fatal("expected error for malformed asset")
	}
}
