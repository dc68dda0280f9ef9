package voice

import (
	"bytes"
	"fmt"
	"io"
	"time"

	wav "github.com/youpy/go-wav"
)

// Capture framing is fixed by the Discord voice transport: 48kHz stereo
// 16-bit PCM, little endian.
const (
	SampleRate     = 48000
	Channels       = 2
	bytesPerSample = 2
	// BytesPerSecond of captured PCM (48000 * 2ch * 2 bytes).
	BytesPerSecond = SampleRate * Channels * bytesPerSample
)

// PCMDuration returns the audio duration represented by n bytes of captured
// PCM.
func PCMDuration(n int) time.Duration {
	return time.Duration(n) * time.Second / BytesPerSecond
}

// WrapPCM wraps raw captured PCM into a RIFF/WAVE container suitable for the
// transcription service.
func WrapPCM(pcm []byte) []byte {
	buf := &bytes.Buffer{}
	numSamples := uint32(len(pcm) / (Channels * bytesPerSample))
	w := wav.NewWriter(buf, numSamples, Channels, SampleRate, 16)
	_, _ = w.Write(pcm)
	return buf.Bytes()
}

// DecodeWAV parses a WAV asset (as returned by synthesis) into raw PCM plus
// its sample rate and channel count.
func DecodeWAV(data []byte) (pcm []byte, sampleRate, channels int, err error) {
	r := wav.NewReader(bytes.NewReader(data))
	format, err := r.Format()
	if err != nil {
		return nil, 0, 0, fmt.Errorf("read wav format: %w", err)
	}
	if format.BitsPerSample != 16 {
		return nil, 0, 0, fmt.Errorf("unsupported wav bit depth %d", format.BitsPerSample)
	}
	pcm, err = io.ReadAll(r)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("read wav data: %w", err)
	}
	return pcm, int(format.SampleRate), int(format.NumChannels), nil
}
