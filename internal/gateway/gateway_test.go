package gateway

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"
)

type stubAdapter struct {
	platform string
	ambient  []string
	sent     []*OutboundMessage
	handler  MessageHandler
}

func (s *stubAdapter) Platform() string              { return s.platform }
func (s *stubAdapter) Connect(context.Context) error { return nil }
func (s *stubAdapter) OnMessage(h MessageHandler)    { s.handler = h }
func (s *stubAdapter) AmbientChannels() []string     { return s.ambient }
func (s *stubAdapter) Close() error                  { return nil }
func (s *stubAdapter) Status() AdapterStatus {
	return AdapterStatus{Platform: s.platform, Connected: true}
}

func (s *stubAdapter) Send(_ context.Context, msg *OutboundMessage) error {
	s.sent = append(s.sent, msg)
	return nil
}

func TestGatewayRouting(t *testing.T) {
	g := NewGateway(zap.NewNop())
	discord := &stubAdapter{platform: "discord", ambient: []string{"c1", "c2"}}
	slack := &stubAdapter{platform: "slack", ambient: []string{"s1"}}
	g.Register(discord)
	g.Register(slack)

	var got *InboundMessage
	g.SetHandler(func(msg *InboundMessage) { got = msg })

	discord.handler(&InboundMessage{Platform: "discord", Content: "hello"})
	if got == nil || got.Content != "hello" {
		t.Fatalf("inbound message not routed: %+v", got)
	}

	err := g.Send(context.Background(), &OutboundMessage{Platform: "slack", ChannelID: "s1", Content: "hi"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(slack.sent) != 1 || len(discord.sent) != 0 {
		t.Error("send routed to the wrong adapter")
	}

	if err := g.Send(context.Background(), &OutboundMessage{Platform: "telegram"}); err == nil {
		t.Error("unknown platform should error")
	}
}

func TestAmbientTargets(t *testing.T) {
	g := NewGateway(zap.NewNop())
	g.Register(&stubAdapter{platform: "discord", ambient: []string{"c1", "c2"}})
	g.Register(&stubAdapter{platform: "slack", ambient: []string{"s1"}})

	targets := g.AmbientTargets()
	if len(targets) != 3 {
		t.Fatalf("targets = %d, want 3", len(targets))
	}
	for _, tgt := range targets {
		if tgt.Platform == "" || tgt.ChannelID == "" {
			t.Errorf("incomplete target %+v", tgt)
		}
	}
}

func TestTruncateReply(t *testing.T) {
	short := "brief"
	if truncateReply(short) != short {
		t.Error("short replies must pass through")
	}

	long := strings.Repeat("я", replyRuneLimit+100)
	got := truncateReply(long)
	runes := []rune(got)
	if len(runes) != replyRuneLimit+3 {
		t.Errorf("truncated length = %d runes, want %d", len(runes), replyRuneLimit+3)
	}
	if !strings.HasSuffix(got, "...") {
		t.Error("truncated reply should end with ellipsis")
	}
}
