// Package agent wires the memory engine together: the inbound message
// router, the prompted interaction flow, the eavesdrop evaluator and the
// ambient pulse.
package agent

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nidhogg/firmament/internal/ambient"
	"github.com/nidhogg/firmament/internal/command"
	"github.com/nidhogg/firmament/internal/gateway"
	"github.com/nidhogg/firmament/internal/memory"
	"github.com/nidhogg/firmament/internal/mood"
	"github.com/nidhogg/firmament/internal/provider"
	"github.com/nidhogg/firmament/internal/ratelimit"
	"github.com/nidhogg/firmament/internal/store"
)

// Store is the full persistence surface the engine drives.
type Store interface {
	memory.CuratorStore
	UpdateRelationship(ctx context.Context, userID, userName string) (*time.Time, error)
	AssembleContext(ctx context.Context, userID, userName string) (*store.ContextSnapshot, error)
	CompactEpisodes(ctx context.Context, userID string, maxActive int) (int, error)
	IncrementInteractions(ctx context.Context) error
	ResetDailyInteractions(ctx context.Context) error
	GetEntityState(ctx context.Context) (mood.State, error)
	DriftMood(ctx context.Context, now time.Time, cfg mood.Config) (mood.State, error)
	SetLastAmbient(ctx context.Context, at time.Time) error
	LogAmbient(ctx context.Context, channelID, message, summary string) error
	RecentAmbients(ctx context.Context, limit int) ([]store.AmbientEntry, error)
	DecayFacts(ctx context.Context, cfg store.DecayConfig) (store.DecayStats, error)
	GetRelationshipStats(ctx context.Context, userID string) (*store.RelationshipStats, error)
	EraseUser(ctx context.Context, userID string) error
}

// Sender is the outbound slice of the gateway.
type Sender interface {
	Send(ctx context.Context, msg *gateway.OutboundMessage) error
	AmbientTargets() []gateway.OutboundMessage
}

// Config holds the engine tunables. Zero values fall back to the observed
// production settings.
type Config struct {
	Model string

	InteractTemperature float64
	InteractMaxTokens   int
	AmbientTemperature  float64
	AmbientMaxTokens    int
	EavesdropMaxTokens  int

	CompactInterval   time.Duration // per-user episode compaction throttle
	MaxActiveEpisodes int

	EavesdropThreshold int // buffered messages before an evaluation fires
	AmbientMessageCap  int // rune cap on unprompted utterances
	ContemplationCap   int // rune cap on carried contemplations
	HasteNudgeAfter    time.Duration

	RecentAmbientLimit int

	Mood  mood.Config
	Decay store.DecayConfig
	Gate  ambient.GateConfig
	Rate  ratelimit.Config
}

// DefaultConfig returns the production tunables.
func DefaultConfig() Config {
	return Config{
		InteractTemperature: 0.85,
		InteractMaxTokens:   800,
		AmbientTemperature:  0.9,
		AmbientMaxTokens:    300,
		EavesdropMaxTokens:  400,
		CompactInterval:     300 * time.Second,
		MaxActiveEpisodes:   25,
		EavesdropThreshold:  6,
		AmbientMessageCap:   500,
		ContemplationCap:    200,
		HasteNudgeAfter:     5 * time.Second,
		RecentAmbientLimit:  5,
		Mood:                mood.DefaultConfig(),
		Decay:               store.DefaultDecayConfig(),
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.InteractTemperature == 0 {
		c.InteractTemperature = def.InteractTemperature
	}
	if c.InteractMaxTokens == 0 {
		c.InteractMaxTokens = def.InteractMaxTokens
	}
	if c.AmbientTemperature == 0 {
		c.AmbientTemperature = def.AmbientTemperature
	}
	if c.AmbientMaxTokens == 0 {
		c.AmbientMaxTokens = def.AmbientMaxTokens
	}
	if c.EavesdropMaxTokens == 0 {
		c.EavesdropMaxTokens = def.EavesdropMaxTokens
	}
	if c.CompactInterval == 0 {
		c.CompactInterval = def.CompactInterval
	}
	if c.MaxActiveEpisodes == 0 {
		c.MaxActiveEpisodes = def.MaxActiveEpisodes
	}
	if c.EavesdropThreshold == 0 {
		c.EavesdropThreshold = def.EavesdropThreshold
	}
	if c.AmbientMessageCap == 0 {
		c.AmbientMessageCap = def.AmbientMessageCap
	}
	if c.ContemplationCap == 0 {
		c.ContemplationCap = def.ContemplationCap
	}
	if c.HasteNudgeAfter == 0 {
		c.HasteNudgeAfter = def.HasteNudgeAfter
	}
	if c.RecentAmbientLimit == 0 {
		c.RecentAmbientLimit = def.RecentAmbientLimit
	}
	return c
}

// Engine is the conversational core: one persistent entity across all
// platforms, all state in the store.
type Engine struct {
	store    Store
	router   *provider.Router
	sender   Sender
	curator  *memory.Curator
	buffer   *ambient.Buffer
	gate     *ambient.Gate
	limiter  *ratelimit.Limiter
	registry *command.Registry
	kernel   string

	cfg    Config
	logger *zap.Logger

	compactMu sync.Mutex
	compacted map[string]time.Time

	systemPrompt string

	now  func() time.Time
	rand func() float64
}

// NewEngine assembles the engine. kernel is the identity kernel text.
func NewEngine(st Store, router *provider.Router, sender Sender, registry *command.Registry,
	kernel string, cfg Config, logger *zap.Logger) *Engine {
	cfg = cfg.withDefaults()
	return &Engine{
		store:        st,
		router:       router,
		sender:       sender,
		curator:      memory.NewCurator(st, logger),
		buffer:       ambient.NewBuffer(),
		gate:         ambient.NewGate(cfg.Gate),
		limiter:      ratelimit.New(cfg.Rate),
		registry:     registry,
		kernel:       kernel,
		cfg:          cfg,
		logger:       logger,
		compacted:    make(map[string]time.Time),
		systemPrompt: kernel + "\n\n" + behavioralDirectives,
		now:          time.Now,
		rand:         rand.Float64,
	}
}

// HandleMessage is the central inbound router:
//  1. "!commune <text>" or a DM → prompted interaction
//  2. other "!" commands → registry dispatch
//  3. guild chatter → buffer for eavesdrop, evaluate past the threshold
func (e *Engine) HandleMessage(msg *gateway.InboundMessage) {
	content := strings.TrimSpace(msg.Content)
	if content == "" {
		return
	}
	ctx := context.Background()

	if lower := strings.ToLower(content); strings.HasPrefix(lower, "!commune ") {
		input := strings.TrimSpace(content[len("!commune "):])
		if input != "" {
			e.Interact(ctx, msg, input)
		}
		return
	}

	if msg.Direct {
		e.Interact(ctx, msg, content)
		return
	}

	if strings.HasPrefix(content, "!") {
		e.dispatchCommand(ctx, msg, content)
		return
	}

	// Guild chatter: remember it, maybe react to it.
	pending := e.buffer.Add(msg.ChannelID, msg.UserName, content)
	if pending >= e.cfg.EavesdropThreshold {
		go e.evaluateEavesdrop(context.Background(), msg.Platform, msg.ChannelID)
	}
}

func (e *Engine) dispatchCommand(ctx context.Context, msg *gateway.InboundMessage, content string) {
	out, err := e.registry.Dispatch(ctx, content, &command.CommandContext{
		Platform:  msg.Platform,
		ChannelID: msg.ChannelID,
		UserID:    msg.UserID,
		UserName:  msg.UserName,
		Store:     e.store,
	})
	if err != nil {
		e.logger.Error("command failed", zap.String("input", content), zap.Error(err))
		return
	}
	if out != "" {
		e.send(ctx, msg, out)
	}
}

// Interact runs one prompted exchange end to end: rate gate, relationship
// update, throttled compaction, context assembly, the model turn, memory
// curation and the reply.
func (e *Engine) Interact(ctx context.Context, msg *gateway.InboundMessage, input string) {
	allowed, wait := e.limiter.Check(msg.UserID)
	if !allowed {
		// Silent drop for fast repeats, a nudge when the burst window bites.
		if wait > e.cfg.HasteNudgeAfter {
			e.send(ctx, msg, fmt.Sprintf(hasteLineFmt, int(wait.Seconds())))
		}
		return
	}

	prevSeen, err := e.store.UpdateRelationship(ctx, msg.UserID, msg.UserName)
	if err != nil {
		e.logger.Error("relationship update failed", zap.String("user", msg.UserID), zap.Error(err))
		e.send(ctx, msg, fractureLine)
		return
	}

	e.maybeCompact(ctx, msg.UserID)

	snap, err := e.store.AssembleContext(ctx, msg.UserID, msg.UserName)
	if err != nil {
		e.logger.Error("context assembly failed", zap.String("user", msg.UserID), zap.Error(err))
		e.send(ctx, msg, fractureLine)
		return
	}

	contextBlock := memory.Build(snap, e.now(), prevSeen)
	prompt := fmt.Sprintf("%s\n\n%s\n\nUSER (%s) SAYS: %s",
		e.systemPrompt, contextBlock, msg.UserName, input)

	turn, err := provider.CallTurn(ctx, e.router, &provider.ChatRequest{
		Model:       e.cfg.Model,
		Messages:    []provider.Message{{Role: "user", Content: prompt}},
		Temperature: e.cfg.InteractTemperature,
		MaxTokens:   e.cfg.InteractMaxTokens,
	}, e.logger)
	if err != nil {
		e.logger.Error("turn failed", zap.String("user", msg.UserID), zap.Error(err))
		e.send(ctx, msg, fractureLine)
		return
	}

	e.curator.Apply(ctx, msg.UserID, msg.UserName, turn)

	if err := e.store.IncrementInteractions(ctx); err != nil {
		e.logger.Warn("interaction counter update failed", zap.Error(err))
	}
	e.limiter.Record(msg.UserID)

	if turn.Response != "" {
		e.send(ctx, msg, turn.Response)
	}
	if turn.Thought != "" {
		e.logger.Debug("turn thought",
			zap.String("user", msg.UserName),
			zap.String("thought", capRunes(turn.Thought, 120)))
	}
}

// maybeCompact runs episode compaction for a user at most once per
// CompactInterval.
func (e *Engine) maybeCompact(ctx context.Context, userID string) {
	now := e.now()
	e.compactMu.Lock()
	if last, ok := e.compacted[userID]; ok && now.Sub(last) < e.cfg.CompactInterval {
		e.compactMu.Unlock()
		return
	}
	e.compacted[userID] = now
	e.compactMu.Unlock()

	if _, err := e.store.CompactEpisodes(ctx, userID, e.cfg.MaxActiveEpisodes); err != nil {
		e.logger.Warn("episode compaction failed", zap.String("user", userID), zap.Error(err))
	}
}

// evaluateEavesdrop decides whether buffered channel chatter warrants an
// uninvited interjection. The buffer is cleared after any full evaluation,
// spoken or not.
func (e *Engine) evaluateEavesdrop(ctx context.Context, platform, channelID string) {
	if !e.gate.AdmitEavesdrop(channelID) {
		e.buffer.ResetCounter(channelID)
		return
	}

	buf := e.buffer.Format(channelID)
	if buf == "" {
		return
	}

	entity, err := e.store.GetEntityState(ctx)
	if err != nil {
		e.logger.Warn("entity state read failed", zap.Error(err))
		return
	}
	recent, err := e.store.RecentAmbients(ctx, e.cfg.RecentAmbientLimit)
	if err != nil {
		e.logger.Warn("ambient log read failed", zap.Error(err))
	}

	prompt := fmt.Sprintf("%s\n\n%s\n\n[CHANNEL CONVERSATION]\n%s",
		eavesdropSystemPrompt,
		memory.BuildAmbient(entity, recent, "", e.now()),
		buf)

	turn, err := provider.CallAmbientTurn(ctx, e.router, &provider.ChatRequest{
		Model:       e.cfg.Model,
		Messages:    []provider.Message{{Role: "user", Content: prompt}},
		Temperature: e.cfg.AmbientTemperature,
		MaxTokens:   e.cfg.EavesdropMaxTokens,
	}, e.logger)
	if err != nil {
		e.logger.Warn("eavesdrop turn failed", zap.String("channel", channelID), zap.Error(err))
		return
	}

	if turn.ShouldSpeak && turn.Message != "" {
		message := capRunes(turn.Message, e.cfg.AmbientMessageCap)
		err := e.sender.Send(ctx, &gateway.OutboundMessage{
			Platform:  platform,
			ChannelID: channelID,
			Content:   message,
		})
		if err == nil {
			e.gate.RecordInterjection(channelID)
			if err := e.store.LogAmbient(ctx, channelID, message, "eavesdrop"); err != nil {
				e.logger.Warn("ambient log write failed", zap.Error(err))
			}
			e.logger.Info("eavesdrop interjection",
				zap.String("channel", channelID),
				zap.String("message", capRunes(message, 80)),
				zap.String("reason", capRunes(turn.Reason, 60)))
		}
	}

	e.carryContemplation(ctx, turn.NewContemplation)
	e.buffer.Clear(channelID)
}

// AmbientPulse drifts the mood, then rolls the admission gate and maybe
// speaks into the silence of one randomly chosen ambient channel.
func (e *Engine) AmbientPulse(ctx context.Context) {
	state, err := e.store.DriftMood(ctx, e.now(), e.cfg.Mood)
	if err != nil {
		e.logger.Warn("mood drift failed", zap.Error(err))
		return
	}

	if !e.gate.AdmitAmbient(state.LastAmbient, state.Energy) {
		return
	}

	targets := e.sender.AmbientTargets()
	if len(targets) == 0 {
		return
	}
	target := targets[int(e.rand()*float64(len(targets)))%len(targets)]

	recent, err := e.store.RecentAmbients(ctx, e.cfg.RecentAmbientLimit)
	if err != nil {
		e.logger.Warn("ambient log read failed", zap.Error(err))
	}

	prompt := fmt.Sprintf("%s\n\n%s", ambientSystemPrompt,
		memory.BuildAmbient(state, recent, e.buffer.Format(target.ChannelID), e.now()))

	turn, err := provider.CallAmbientTurn(ctx, e.router, &provider.ChatRequest{
		Model:       e.cfg.Model,
		Messages:    []provider.Message{{Role: "user", Content: prompt}},
		Temperature: e.cfg.AmbientTemperature,
		MaxTokens:   e.cfg.AmbientMaxTokens,
	}, e.logger)
	if err != nil {
		e.logger.Warn("ambient turn failed", zap.Error(err))
		return
	}

	if !turn.ShouldSpeak || turn.Message == "" {
		return
	}

	message := capRunes(turn.Message, e.cfg.AmbientMessageCap)
	target.Content = message
	if err := e.sender.Send(ctx, &target); err != nil {
		e.logger.Warn("ambient send failed", zap.String("channel", target.ChannelID), zap.Error(err))
		return
	}

	if err := e.store.LogAmbient(ctx, target.ChannelID, message, "ambient"); err != nil {
		e.logger.Warn("ambient log write failed", zap.Error(err))
	}
	if err := e.store.SetLastAmbient(ctx, e.now()); err != nil {
		e.logger.Warn("ambient stamp failed", zap.Error(err))
	}
	e.carryContemplation(ctx, turn.NewContemplation)

	e.logger.Info("ambient utterance",
		zap.String("channel", target.ChannelID),
		zap.String("message", capRunes(message, 80)))
}

// DriftMood advances the mood on its own cadence, independent of whether
// ambient speech fires.
func (e *Engine) DriftMood(ctx context.Context) {
	if _, err := e.store.DriftMood(ctx, e.now(), e.cfg.Mood); err != nil {
		e.logger.Warn("mood drift failed", zap.Error(err))
	}
}

// RunMaintenance decays facts and resets the daily interaction counter.
func (e *Engine) RunMaintenance(ctx context.Context) {
	stats, err := e.store.DecayFacts(ctx, e.cfg.Decay)
	if err != nil {
		e.logger.Error("memory decay failed", zap.Error(err))
	} else {
		e.logger.Info("maintenance pass",
			zap.Int("decayed", stats.Decayed), zap.Int("retired", stats.Retired))
	}
	if err := e.store.ResetDailyInteractions(ctx); err != nil {
		e.logger.Warn("daily counter reset failed", zap.Error(err))
	}
}

func (e *Engine) carryContemplation(ctx context.Context, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	text = capRunes(text, e.cfg.ContemplationCap)
	if err := e.store.SetContemplation(ctx, text); err != nil {
		e.logger.Warn("contemplation update failed", zap.Error(err))
	}
}

func (e *Engine) send(ctx context.Context, msg *gateway.InboundMessage, content string) {
	err := e.sender.Send(ctx, &gateway.OutboundMessage{
		Platform:  msg.Platform,
		ChannelID: msg.ChannelID,
		Content:   content,
		ReplyTo:   msg.ReplyTo,
	})
	if err != nil {
		e.logger.Error("send failed",
			zap.String("platform", msg.Platform),
			zap.String("channel", msg.ChannelID), zap.Error(err))
	}
}

func capRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
