package voice

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/hraban/opus"

	"github.com/discord-voice-assistant/internal/logging"
)

// frameSamples is samples per channel in one 20ms opus frame at 48kHz.
const frameSamples = 960

const frameInterval = 20 * time.Millisecond

// silenceFrame is the opus silence payload Discord expects between audio
// bursts to keep the voice stream warm.
var silenceFrame = []byte{0xF8, 0xFF, 0xFE}

// Player encodes synthesized PCM to opus and paces frames onto a voice
// connection's send channel. At most one asset plays at a time; Stop aborts
// the in-flight playback.
type Player struct {
	send     chan<- []byte
	speaking func(bool) error
	enc      *opus.Encoder

	mu      sync.Mutex
	playing bool
	stopCh  chan struct{}
}

// NewPlayer wraps a connected voice connection.
func NewPlayer(vc *discordgo.VoiceConnection) (*Player, error) {
	enc, err := opus.NewEncoder(SampleRate, Channels, opus.AppVoIP)
	if err != nil {
		return nil, fmt.Errorf("opus encoder: %w", err)
	}
	return newPlayer(vc.OpusSend, vc.Speaking, enc), nil
}

func newPlayer(send chan<- []byte, speaking func(bool) error, enc *opus.Encoder) *Player {
	return &Player{send: send, speaking: speaking, enc: enc}
}

// Busy reports whether an asset is currently playing.
func (p *Player) Busy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// Stop aborts the current playback, if any.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playing && p.stopCh != nil {
		close(p.stopCh)
		p.stopCh = nil
	}
}

// Play decodes a WAV asset, converts it to the connection's 48kHz stereo
// framing, and streams it until completion, Stop, or context cancellation.
// It blocks for the duration of playback.
func (p *Player) Play(ctx context.Context, wavAsset []byte) error {
	pcm, rate, channels, err := DecodeWAV(wavAsset)
	if err != nil {
		return err
	}
	samples := toStereo48k(bytesToInt16(pcm), rate, channels)

	p.mu.Lock()
	if p.playing {
		p.mu.Unlock()
		return fmt.Errorf("player busy")
	}
	stopCh := make(chan struct{})
	p.playing = true
	p.stopCh = stopCh
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.playing = false
		p.stopCh = nil
		p.mu.Unlock()
	}()

	if p.speaking != nil {
		_ = p.speaking(true)
		defer func() { _ = p.speaking(false) }()
	}

	frame := make([]int16, frameSamples*Channels)
	packet := make([]byte, 4000)
	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	for off := 0; off < len(samples); off += len(frame) {
		n := copy(frame, samples[off:])
		for i := n; i < len(frame); i++ {
			frame[i] = 0
		}
		written, err := p.enc.Encode(frame, packet)
		if err != nil {
			return fmt.Errorf("opus encode: %w", err)
		}
		out := make([]byte, written)
		copy(out, packet[:written])
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stopCh:
			return nil
		case <-ticker.C:
			select {
			case p.send <- out:
			case <-stopCh:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	// trailing silence so the far end interpolates cleanly
	for i := 0; i < 5; i++ {
		select {
		case p.send <- silenceFrame:
		default:
		}
	}
	return nil
}

// StartKeepAlive periodically pushes silence frames while nothing is playing
// so the voice connection does not go deaf during long idle stretches.
func (p *Player) StartKeepAlive(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if p.Busy() {
					continue
				}
				for i := 0; i < 5; i++ {
					select {
					case p.send <- silenceFrame:
					default:
					}
				}
			}
		}
	}()
	logging.Debugw("player: keep-alive started")
}

func bytesToInt16(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return out
}

// toStereo48k converts arbitrary-rate mono/stereo samples to the 48kHz
// stereo framing the voice connection requires, using linear interpolation
// for rate conversion.
func toStereo48k(samples []int16, rate, channels int) []int16 {
	if channels < 1 {
		return nil
	}
	// deinterleave to mono-per-channel frames count
	frames := len(samples) / channels
	if frames == 0 {
		return nil
	}
	if rate == SampleRate && channels == Channels {
		return samples
	}
	outFrames := frames
	if rate != SampleRate {
		outFrames = frames * SampleRate / rate
	}
	out := make([]int16, outFrames*Channels)
	for i := 0; i < outFrames; i++ {
		pos := float64(i) * float64(frames-1) / float64(max(outFrames-1, 1))
		j := int(pos)
		frac := pos - float64(j)
		k := j + 1
		if k >= frames {
			k = frames - 1
		}
		for ch := 0; ch < Channels; ch++ {
			src := ch
			if src >= channels {
				src = channels - 1
			}
			a := float64(samples[j*channels+src])
			b := float64(samples[k*channels+src])
			out[i*Channels+ch] = int16(a + (b-a)*frac)
		}
	}
	return out
}
