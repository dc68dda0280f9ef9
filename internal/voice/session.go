package voice

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/hraban/opus"

	"github.com/discord-voice-assistant/internal/convo"
	"github.com/discord-voice-assistant/internal/logging"
)

// Settings are the per-process capture and conversation parameters.
type Settings struct {
	ScanInterval     time.Duration
	SilenceThreshold time.Duration
	MinUtterance     time.Duration
	SystemPrompt     string
	HistoryLimit     int
	HistoryPrune     int
	// Workers is how many concurrent turns one session may process.
	Workers int
}

// Session is the per-guild voice association: the active connection, the
// controlling user, the text output channel, and all capture state.
type Session struct {
	GuildID       string
	ChannelID     string
	TextChannelID string
	// ControllerID gates who may cause the session to follow or relocate.
	ControllerID string

	Buffers    *CaptureBuffers
	Gate       *SpeechGate
	History    *convo.History
	Player     *Player
	Endpointer *Endpointer

	// turnMu admits one conversational turn at a time. Workers may
	// transcribe concurrently, but converse+speak interleaved on the shared
	// history would split tool-call/tool-result pairs.
	turnMu sync.Mutex

	vc *discordgo.VoiceConnection

	// opusCh hands received frames to the decode worker; the receive loop
	// never blocks on decoding.
	opusCh     chan *discordgo.Packet
	queueDrops int64

	mu       sync.Mutex
	ssrcMap  map[uint32]string
	decoders map[uint32]*opus.Decoder

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// mapSSRC records the SSRC -> user mapping delivered by speaking updates.
func (s *Session) mapSSRC(ssrc uint32, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ssrcMap[ssrc] = userID
}

func (s *Session) userForSSRC(ssrc uint32) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ssrcMap[ssrc]
}

func (s *Session) decoderFor(ssrc uint32) (*opus.Decoder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if dec, ok := s.decoders[ssrc]; ok {
		return dec, nil
	}
	dec, err := opus.NewDecoder(SampleRate, Channels)
	if err != nil {
		return nil, err
	}
	s.decoders[ssrc] = dec
	return dec, nil
}

// runCapture consumes the voice connection's receive channel and enqueues
// each frame for the decode worker, dropping when the queue is full so the
// gateway reader is never stalled.
func (s *Session) runCapture(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case pkt, ok := <-s.vc.OpusRecv:
			if !ok {
				return
			}
			s.enqueuePacket(pkt)
		}
	}
}

func (s *Session) enqueuePacket(pkt *discordgo.Packet) {
	select {
	case s.opusCh <- pkt:
	default:
		atomic.AddInt64(&s.queueDrops, 1)
		logging.Warnw("session: dropping opus frame; decode queue full",
			"guild_id", s.GuildID, "ssrc", pkt.SSRC)
	}
}

// QueueDrops returns how many frames were discarded because the decode
// queue was full.
func (s *Session) QueueDrops() int64 { return atomic.LoadInt64(&s.queueDrops) }

// runDecode decodes queued opus frames and appends the PCM to the speaker's
// buffer. Frames from an SSRC with no known user yet are dropped; the
// mapping arrives with the speaking update that precedes audible audio.
func (s *Session) runDecode(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case pkt, ok := <-s.opusCh:
			if !ok {
				return
			}
			s.handlePacket(pkt)
		}
	}
}

func (s *Session) handlePacket(pkt *discordgo.Packet) {
	userID := s.userForSSRC(pkt.SSRC)
	if userID == "" {
		return
	}
	dec, err := s.decoderFor(pkt.SSRC)
	if err != nil {
		logging.Errorw("session: opus decoder init failed", "ssrc", pkt.SSRC, "err", err)
		return
	}
	pcm := make([]int16, frameSamples*Channels)
	n, err := dec.Decode(pkt.Opus, pcm)
	if err != nil {
		logging.Debugw("session: opus decode error", "ssrc", pkt.SSRC, "err", err)
		return
	}
	buf := make([]byte, n*Channels*2)
	for i := 0; i < n*Channels; i++ {
		buf[i*2] = byte(pcm[i])
		buf[i*2+1] = byte(pcm[i] >> 8)
	}
	s.Buffers.Write(userID, buf)
}

func (s *Session) close() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.Endpointer != nil {
		s.Endpointer.Stop()
	}
	if s.Player != nil {
		s.Player.Stop()
	}
	if s.vc != nil {
		if err := s.vc.Disconnect(); err != nil {
			logging.Warnw("session: voice disconnect error", "guild_id", s.GuildID, "err", err)
		}
	}
	s.wg.Wait()
}

// Manager owns every guild's voice session and the shared turn pipeline.
type Manager struct {
	dg       *discordgo.Session
	pipeline *Pipeline
	settings Settings

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(dg *discordgo.Session, pipeline *Pipeline, settings Settings) *Manager {
	if settings.Workers <= 0 {
		settings.Workers = 2
	}
	if settings.ScanInterval <= 0 {
		settings.ScanInterval = 500 * time.Millisecond
	}
	return &Manager{
		dg:       dg,
		pipeline: pipeline,
		settings: settings,
		sessions: make(map[string]*Session),
	}
}

// Session returns the active session for a guild, or nil.
func (m *Manager) Session(guildID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[guildID]
}

// Join connects (or relocates) the bot to a voice channel and starts
// capture. Idempotent: joining the channel the bot already occupies is a
// no-op beyond refreshing the controller and text channel.
func (m *Manager) Join(guildID, voiceChannelID, textChannelID, controllerID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sess, ok := m.sessions[guildID]; ok {
		sess.ControllerID = controllerID
		sess.TextChannelID = textChannelID
		if sess.ChannelID == voiceChannelID {
			return sess, nil
		}
		if err := sess.vc.ChangeChannel(voiceChannelID, false, false); err != nil {
			return nil, fmt.Errorf("move voice channel: %w", err)
		}
		sess.ChannelID = voiceChannelID
		logging.Infow("session: moved voice channel",
			"guild_id", guildID, "channel_id", voiceChannelID)
		return sess, nil
	}

	vc, err := m.dg.ChannelVoiceJoin(guildID, voiceChannelID, false, false)
	if err != nil {
		return nil, fmt.Errorf("voice join: %w", err)
	}

	gate := NewSpeechGate()
	buffers := NewCaptureBuffers(gate)
	player, err := NewPlayer(vc)
	if err != nil {
		_ = vc.Disconnect()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	sess := &Session{
		GuildID:       guildID,
		ChannelID:     voiceChannelID,
		TextChannelID: textChannelID,
		ControllerID:  controllerID,
		Buffers:       buffers,
		Gate:          gate,
		History:       convo.NewHistory(m.settings.SystemPrompt, m.settings.HistoryLimit, m.settings.HistoryPrune),
		Player:        player,
		Endpointer:    NewEndpointer(guildID, buffers, gate, m.settings.ScanInterval, m.settings.SilenceThreshold, m.settings.MinUtterance),
		vc:            vc,
		opusCh:        make(chan *discordgo.Packet, 64),
		ssrcMap:       make(map[uint32]string),
		decoders:      make(map[uint32]*opus.Decoder),
		cancel:        cancel,
	}

	vc.AddHandler(func(_ *discordgo.VoiceConnection, su *discordgo.VoiceSpeakingUpdate) {
		sess.mapSSRC(uint32(su.SSRC), su.UserID)
		logging.Debugw("session: mapped SSRC to user",
			"guild_id", guildID, "ssrc", su.SSRC, "user_id", su.UserID)
	})

	sess.wg.Add(2)
	go sess.runCapture(ctx)
	go sess.runDecode(ctx)
	sess.Endpointer.Start()
	player.StartKeepAlive(ctx)

	for i := 0; i < m.settings.Workers; i++ {
		sess.wg.Add(1)
		go func() {
			defer sess.wg.Done()
			for u := range sess.Endpointer.Out() {
				m.pipeline.HandleUtterance(ctx, sess, u)
			}
		}()
	}

	m.sessions[guildID] = sess
	logging.Infow("session: joined voice channel",
		"guild_id", guildID, "channel_id", voiceChannelID,
		"controller_id", controllerID)
	return sess, nil
}

// Leave disconnects the guild's session and clears it.
func (m *Manager) Leave(guildID string) error {
	m.mu.Lock()
	sess, ok := m.sessions[guildID]
	if ok {
		delete(m.sessions, guildID)
	}
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("no active session for guild %s", guildID)
	}
	sess.close()
	logging.Infow("session: left voice channel", "guild_id", guildID)
	return nil
}

// Close tears down every session; called on shutdown.
func (m *Manager) Close() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	for _, s := range sessions {
		s.close()
	}
}

// HandleVoiceState follows the controlling user between channels,
// disconnects when the controller leaves voice, and disconnects when the
// bot's channel becomes empty.
func (m *Manager) HandleVoiceState(s *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
	sess := m.Session(vs.GuildID)
	if sess == nil {
		return
	}

	if vs.UserID == sess.ControllerID {
		switch {
		case vs.ChannelID == "":
			logging.Infow("session: controller left voice; disconnecting",
				"guild_id", vs.GuildID, "controller_id", vs.UserID)
			_ = m.Leave(vs.GuildID)
			return
		case vs.ChannelID != sess.ChannelID:
			if err := sess.vc.ChangeChannel(vs.ChannelID, false, false); err != nil {
				logging.Warnw("session: follow move failed",
					"guild_id", vs.GuildID, "channel_id", vs.ChannelID, "err", err)
				return
			}
			sess.ChannelID = vs.ChannelID
			logging.Infow("session: followed controller",
				"guild_id", vs.GuildID, "channel_id", vs.ChannelID)
			return
		}
	}

	if m.channelEmpty(s, vs.GuildID, sess.ChannelID) {
		logging.Infow("session: voice channel empty; disconnecting",
			"guild_id", vs.GuildID, "channel_id", sess.ChannelID)
		_ = m.Leave(vs.GuildID)
	}
}

// channelEmpty reports whether no user besides the bot remains in the
// channel, best-effort from session state.
func (m *Manager) channelEmpty(s *discordgo.Session, guildID, channelID string) bool {
	if s == nil || s.State == nil {
		return false
	}
	guild, err := s.State.Guild(guildID)
	if err != nil || guild == nil {
		return false
	}
	botID := ""
	if s.State.User != nil {
		botID = s.State.User.ID
	}
	for _, state := range guild.VoiceStates {
		if state.ChannelID == channelID && state.UserID != botID {
			return false
		}
	}
	return true
}
