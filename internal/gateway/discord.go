package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// DiscordAdapter implements GatewayAdapter for Discord using the bot gateway.
type DiscordAdapter struct {
	token   string
	session *discordgo.Session
	handler MessageHandler

	// ambient holds one sendable text channel per guild, discovered on
	// connect.
	ambient []string

	connected   bool
	connectedAt time.Time
	lastError   string
	mu          sync.RWMutex
	logger      *zap.Logger
}

// NewDiscordAdapter creates a Discord gateway adapter.
func NewDiscordAdapter(token string, logger *zap.Logger) *DiscordAdapter {
	return &DiscordAdapter{
		token:  token,
		logger: logger,
	}
}

func (a *DiscordAdapter) Platform() string { return "discord" }

func (a *DiscordAdapter) OnMessage(h MessageHandler) { a.handler = h }

// Connect opens the Discord gateway websocket and discovers ambient
// channels.
func (a *DiscordAdapter) Connect(_ context.Context) error {
	session, err := discordgo.New("Bot " + a.token)
	if err != nil {
		a.setError(fmt.Sprintf("session create: %v", err))
		return fmt.Errorf("discord session: %w", err)
	}
	a.session = session

	a.session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages | discordgo.IntentMessageContent
	a.session.AddHandler(a.onMessageCreate)

	if err := a.session.Open(); err != nil {
		a.setError(fmt.Sprintf("open failed: %v", err))
		return fmt.Errorf("discord open: %w", err)
	}

	ambient := a.discoverAmbientChannels()

	a.mu.Lock()
	a.connected = true
	a.connectedAt = time.Now()
	a.lastError = ""
	a.ambient = ambient
	a.mu.Unlock()

	guildCount := len(a.session.State.Guilds)
	if guildCount == 0 {
		a.logger.Warn("discord bot not added to any server — invite it first")
	}

	a.logger.Info("discord adapter connected",
		zap.String("user", a.session.State.User.Username),
		zap.Int("guilds", guildCount),
		zap.Int("ambient_channels", len(ambient)))
	return nil
}

// discoverAmbientChannels picks the first text channel the bot can write
// to in each guild.
func (a *DiscordAdapter) discoverAmbientChannels() []string {
	var out []string
	for _, guild := range a.session.State.Guilds {
		channels, err := a.session.GuildChannels(guild.ID)
		if err != nil {
			a.logger.Warn("discord list channels failed",
				zap.String("guild", guild.ID), zap.Error(err))
			continue
		}
		for _, ch := range channels {
			if ch.Type != discordgo.ChannelTypeGuildText {
				continue
			}
			perms, err := a.session.UserChannelPermissions(a.session.State.User.ID, ch.ID)
			if err != nil || perms&discordgo.PermissionSendMessages == 0 {
				continue
			}
			out = append(out, ch.ID)
			break
		}
	}
	return out
}

// onMessageCreate handles incoming Discord messages.
func (a *DiscordAdapter) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author.ID == s.State.User.ID || m.Author.Bot {
		return
	}
	if a.handler == nil {
		return
	}

	a.handler(&InboundMessage{
		ID:        m.ID,
		Platform:  "discord",
		ChannelID: m.ChannelID,
		UserID:    m.Author.ID,
		UserName:  displayName(m),
		Content:   m.Content,
		Direct:    m.GuildID == "",
		Timestamp: m.Timestamp,
		ReplyTo:   m.ChannelID,
	})
}

func displayName(m *discordgo.MessageCreate) string {
	if m.Member != nil && m.Member.Nick != "" {
		return m.Member.Nick
	}
	if m.Author.GlobalName != "" {
		return m.Author.GlobalName
	}
	return m.Author.Username
}

const sendMaxRetries = 3

// Send posts a message to a Discord channel, retrying transient failures
// with exponential backoff. Client errors other than rate limiting fail
// immediately.
func (a *DiscordAdapter) Send(ctx context.Context, msg *OutboundMessage) error {
	content := truncateReply(msg.Content)

	op := func() error {
		_, err := a.session.ChannelMessageSend(msg.ChannelID, content)
		if err == nil {
			return nil
		}
		var restErr *discordgo.RESTError
		if errors.As(err, &restErr) && restErr.Response != nil {
			code := restErr.Response.StatusCode
			if code == 429 || code >= 500 {
				return err
			}
			return backoff.Permanent(err)
		}
		return err
	}

	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), sendMaxRetries-1), ctx)
	if err := backoff.RetryNotify(op, bo, func(err error, d time.Duration) {
		a.logger.Warn("discord send failed, backing off",
			zap.String("channel", msg.ChannelID),
			zap.Duration("wait", d), zap.Error(err))
	}); err != nil {
		return fmt.Errorf("discord send: %w", err)
	}
	return nil
}

// Typing signals that a reply is being composed.
func (a *DiscordAdapter) Typing(channelID string) {
	if a.session == nil {
		return
	}
	if err := a.session.ChannelTyping(channelID); err != nil {
		a.logger.Debug("discord typing failed", zap.Error(err))
	}
}

func (a *DiscordAdapter) AmbientChannels() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]string, len(a.ambient))
	copy(out, a.ambient)
	return out
}

// Close shuts down the Discord session.
func (a *DiscordAdapter) Close() error {
	if a.session != nil {
		return a.session.Close()
	}
	return nil
}

func (a *DiscordAdapter) Status() AdapterStatus {
	a.mu.RLock()
	defer a.mu.RUnlock()
	s := AdapterStatus{
		Platform:  "discord",
		Connected: a.connected,
		Error:     a.lastError,
	}
	if a.connected {
		t := a.connectedAt
		s.ConnectedAt = &t
		guildCount := 0
		if a.session != nil && a.session.State != nil {
			guildCount = len(a.session.State.Guilds)
		}
		s.Details = fmt.Sprintf("bot=%s, guilds=%d",
			a.session.State.User.Username, guildCount)
	}
	return s
}

func (a *DiscordAdapter) setError(msg string) {
	a.mu.Lock()
	a.lastError = msg
	a.connected = false
	a.mu.Unlock()
}
