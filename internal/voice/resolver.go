package voice

import (
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
)

// NameResolver provides human-friendly names for user IDs when available.
type NameResolver interface {
	UserName(userID string) string
}

// NoopResolver returns empty names. Useful in tests or when REST lookups
// should be disabled.
type NoopResolver struct{}

func (NoopResolver) UserName(string) string { return "" }

type cacheEntry struct {
	val    string
	expiry time.Time
}

// cacheTTL controls how long a cached name is valid.
var cacheTTL = 5 * time.Minute

// discordResolver resolves display names via the session state with a REST
// fallback and a small expiring cache.
type discordResolver struct {
	s     *discordgo.Session
	guild string
	mu    sync.Mutex
	users map[string]cacheEntry
}

func NewDiscordResolver(s *discordgo.Session, guildID string) NameResolver {
	return &discordResolver{s: s, guild: guildID, users: make(map[string]cacheEntry)}
}

func (d *discordResolver) UserName(userID string) string {
	if d.s == nil || userID == "" {
		return ""
	}
	d.mu.Lock()
	if e, ok := d.users[userID]; ok {
		if time.Now().Before(e.expiry) {
			d.mu.Unlock()
			return e.val
		}
		delete(d.users, userID)
	}
	d.mu.Unlock()

	name := ""
	if d.s.State != nil && d.guild != "" {
		if m, err := d.s.State.Member(d.guild, userID); err == nil && m != nil {
			if m.Nick != "" {
				name = m.Nick
			} else if m.User != nil {
				name = m.User.Username
			}
		}
	}
	if name == "" {
		if u, err := d.s.User(userID); err == nil && u != nil {
			name = u.Username
		}
	}
	if name == "" {
		return ""
	}
	d.mu.Lock()
	d.users[userID] = cacheEntry{val: name, expiry: time.Now().Add(cacheTTL)}
	d.mu.Unlock()
	return name
}
