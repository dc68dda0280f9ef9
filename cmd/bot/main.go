package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/discord-voice-assistant/internal/config"
	"github.com/discord-voice-assistant/internal/convo"
	"github.com/discord-voice-assistant/internal/llm"
	"github.com/discord-voice-assistant/internal/logging"
	"github.com/discord-voice-assistant/internal/mcp"
	"github.com/discord-voice-assistant/internal/stt"
	"github.com/discord-voice-assistant/internal/tts"
	"github.com/discord-voice-assistant/internal/voice"
)

func main() {
	sugar := logging.Init()
	cfg := config.Load()
	if cfg.BotToken == "" {
		sugar.Fatal("BOT_TOKEN required")
	}

	dg, err := discordgo.New("Bot " + cfg.BotToken)
	if err != nil {
		sugar.Fatalf("discordgo.New: %v", err)
	}
	// Guilds + GuildVoiceStates deliver GUILD_CREATE and VoiceStateUpdate,
	// which is all the voice pipeline needs from the gateway.
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates

	sttClient := stt.NewClient(cfg.STTURL, cfg.STTMode, cfg.STTModel, cfg.STTAuthKey, cfg.STTTimeout)
	llmClient := llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel, cfg.LLMTimeout)

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		sugar.Warnw("invalid TIMEZONE; using UTC", "timezone", cfg.Timezone, "err", err)
		loc = time.UTC
	}

	registry := convo.NewRegistry()
	if err := registry.Register(convo.TimeTool(loc)); err != nil {
		sugar.Fatalf("register time tool: %v", err)
	}
	var searcher *mcp.Client
	if cfg.SearchURL != "" {
		searcher = mcp.NewClient("discord-voice-assistant", "0.1.0")
		connectCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := searcher.Connect(connectCtx, cfg.SearchURL)
		cancel()
		if err != nil {
			sugar.Warnw("search backend unavailable; continuing without web_search",
				"url", cfg.SearchURL, "err", err)
			searcher = nil
		} else if err := registry.Register(convo.SearchTool(searcher)); err != nil {
			sugar.Fatalf("register search tool: %v", err)
		}
	}

	orchestrator := convo.NewOrchestrator(llmClient, registry, cfg.ToolRetries)

	pipeline := &voice.Pipeline{
		STT:            sttClient,
		Converse:       orchestrator,
		Filter:         voice.NewFilter(cfg.MinChars, cfg.RequireTrigger, cfg.Triggers, cfg.IgnoredPhrases),
		Notify:         voice.NewDiscordNotifier(dg, voice.NewDiscordResolver(dg, cfg.GuildID)),
		Language:       cfg.Language,
		BiasPrompt:     cfg.InitialPrompt,
		RequireTrigger: cfg.RequireTrigger,
		LogTranscripts: cfg.LogTranscripts,
	}
	if cfg.TTSURL != "" {
		pipeline.TTS = tts.NewClient(cfg.TTSURL, cfg.TTSVoice, cfg.TTSAuthKey, cfg.TTSTimeout)
	} else {
		sugar.Warnw("TTS_URL not set; replies will be text-only")
	}

	manager := voice.NewManager(dg, pipeline, voice.Settings{
		ScanInterval:     500 * time.Millisecond,
		SilenceThreshold: cfg.SilenceThreshold,
		MinUtterance:     cfg.MinUtterance,
		SystemPrompt:     cfg.SystemPrompt,
		HistoryLimit:     cfg.HistoryLimit,
		HistoryPrune:     cfg.HistoryPrune,
	})

	dg.AddHandler(func(s *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
		manager.HandleVoiceState(s, vs)
	})
	dg.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		handleInteraction(s, i, manager)
	})

	if err := dg.Open(); err != nil {
		sugar.Fatalf("discord session open failed: %v", err)
	}
	sugar.Infow("discord session opened", "user", dg.State.User.Username)

	if err := registerCommands(dg, cfg.GuildID); err != nil {
		sugar.Warnf("command registration failed: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	sugar.Infow("shutdown signal received, closing resources")

	manager.Close()
	if searcher != nil {
		_ = searcher.Close()
	}
	if err := dg.Close(); err != nil {
		sugar.Warnf("discord session close error: %v", err)
	}
	logging.Sync()
}

func registerCommands(dg *discordgo.Session, guildID string) error {
	commands := []*discordgo.ApplicationCommand{
		{Name: "join", Description: "Join your current voice channel and start listening"},
		{Name: "leave", Description: "Leave the voice channel"},
	}
	for _, cmd := range commands {
		if _, err := dg.ApplicationCommandCreate(dg.State.User.ID, guildID, cmd); err != nil {
			return err
		}
	}
	return nil
}

func handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate, manager *voice.Manager) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	switch i.ApplicationCommandData().Name {
	case "join":
		handleJoin(s, i, manager)
	case "leave":
		handleLeave(s, i, manager)
	}
}

func handleJoin(s *discordgo.Session, i *discordgo.InteractionCreate, manager *voice.Manager) {
	if i.Member == nil || i.Member.User == nil {
		respond(s, i, "This command only works inside a server.")
		return
	}
	userID := i.Member.User.ID
	vs, err := s.State.VoiceState(i.GuildID, userID)
	if err != nil || vs == nil || vs.ChannelID == "" {
		respond(s, i, "Join the voice channel first!")
		return
	}
	if _, err := manager.Join(i.GuildID, vs.ChannelID, i.ChannelID, userID); err != nil {
		logging.Warnw("join command failed", "guild_id", i.GuildID, "err", err)
		respond(s, i, "Could not join the voice channel.")
		return
	}
	respond(s, i, "Connected to <#"+vs.ChannelID+">.")
}

func handleLeave(s *discordgo.Session, i *discordgo.InteractionCreate, manager *voice.Manager) {
	if err := manager.Leave(i.GuildID); err != nil {
		respond(s, i, "Not connected.")
		return
	}
	respond(s, i, "Disconnected.")
}

func respond(s *discordgo.Session, i *discordgo.InteractionCreate, msg string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: msg},
	})
	if err != nil {
		logging.Warnw("interaction respond failed", "err", err)
	}
}
