package voice

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/discord-voice-assistant/internal/logging"
)

// Notifier echoes accepted transcripts and replies to a text channel.
type Notifier interface {
	PostTranscript(channelID, userID, text string) error
	PostReply(channelID, text string) error
}

// DiscordNotifier posts embeds via the bot session, checking send permission
// first so missing permissions degrade to a log line instead of an API error.
type DiscordNotifier struct {
	s        *discordgo.Session
	resolver NameResolver
}

func NewDiscordNotifier(s *discordgo.Session, resolver NameResolver) *DiscordNotifier {
	return &DiscordNotifier{s: s, resolver: resolver}
}

func (n *DiscordNotifier) canSend(channelID string) bool {
	if n.s == nil || n.s.State == nil || n.s.State.User == nil {
		return false
	}
	perms, err := n.s.UserChannelPermissions(n.s.State.User.ID, channelID)
	if err != nil {
		logging.Debugw("notifier: permission lookup failed", "channel_id", channelID, "err", err)
		return false
	}
	return perms&discordgo.PermissionSendMessages != 0
}

func (n *DiscordNotifier) PostTranscript(channelID, userID, text string) error {
	if !n.canSend(channelID) {
		return fmt.Errorf("no send permission in channel %s", channelID)
	}
	name := userID
	if n.resolver != nil {
		if resolved := n.resolver.UserName(userID); resolved != "" {
			name = resolved
		}
	}
	embed := &discordgo.MessageEmbed{
		Description: text,
		Color:       0x2ecc71,
		Author:      &discordgo.MessageEmbedAuthor{Name: name},
	}
	_, err := n.s.ChannelMessageSendEmbed(channelID, embed)
	return err
}

func (n *DiscordNotifier) PostReply(channelID, text string) error {
	if !n.canSend(channelID) {
		return fmt.Errorf("no send permission in channel %s", channelID)
	}
	embed := &discordgo.MessageEmbed{
		Description: text,
		Color:       0x3498db,
	}
	_, err := n.s.ChannelMessageSendEmbed(channelID, embed)
	return err
}
