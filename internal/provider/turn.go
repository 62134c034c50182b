package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// Turn is the structured reply contract for prompted interactions: the
// model speaks and proposes memory edits in one JSON object.
type Turn struct {
	Thought         string         `json:"thought"`
	Response        string         `json:"response"`
	NewFacts        []FactProposal `json:"new_facts"`
	EpisodicSummary string         `json:"episodic_summary"`
	WorkingContext  string         `json:"working_context"`
	Contemplation   string         `json:"contemplation"`
}

// AmbientTurn is the reply contract for unprompted decisions: whether to
// speak at all, and what lingers afterwards.
type AmbientTurn struct {
	ShouldSpeak      bool   `json:"should_speak"`
	Message          string `json:"message"`
	Reason           string `json:"reason"`
	NewContemplation string `json:"new_contemplation"`
}

// FactProposal is one proposed semantic memory. Models emit either a bare
// string or an object with confidence and type; both forms decode here.
type FactProposal struct {
	Fact       string
	Confidence float64
	MemoryType string
}

func (f *FactProposal) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		f.Fact = strings.TrimSpace(s)
		f.Confidence = 0.9
		f.MemoryType = "fact"
		return nil
	}

	var obj struct {
		Fact       string   `json:"fact"`
		Confidence *float64 `json:"confidence"`
		Type       string   `json:"type"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("fact proposal: %w", err)
	}
	f.Fact = strings.TrimSpace(obj.Fact)
	f.Confidence = 0.9
	if obj.Confidence != nil {
		f.Confidence = *obj.Confidence
	}
	f.MemoryType = "fact"
	if obj.Type != "" {
		f.MemoryType = obj.Type
	}
	return nil
}

// ErrMalformedTurn marks model output that could not be parsed as the
// expected JSON object. Parse failures never retry: the model already
// produced its answer, it was just unusable.
var ErrMalformedTurn = errors.New("malformed turn JSON")

// stripFences removes a markdown code fence wrapper if the model added
// one despite instructions.
func stripFences(raw string) string {
	cleaned := strings.TrimSpace(raw)
	if !strings.HasPrefix(cleaned, "```") {
		return cleaned
	}
	if i := strings.Index(cleaned, "\n"); i >= 0 {
		cleaned = cleaned[i+1:]
	}
	if i := strings.LastIndex(cleaned, "```"); i >= 0 {
		cleaned = cleaned[:i]
	}
	return strings.TrimSpace(cleaned)
}

func parseJSON(raw string, v any) error {
	if err := json.Unmarshal([]byte(raw), v); err == nil {
		return nil
	}
	if err := json.Unmarshal([]byte(stripFences(raw)), v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedTurn, err)
	}
	return nil
}

const turnMaxRetries = 3

// callWithRetry routes a chat request with exponential backoff. Only
// transient provider failures retry; a parse failure or a client error is
// final.
func callWithRetry(ctx context.Context, router *Router, req *ChatRequest, logger *zap.Logger) (string, error) {
	var content string
	op := func() error {
		resp, err := router.Route(ctx, req)
		if err != nil {
			var apiErr *APIError
			if errors.As(err, &apiErr) && !apiErr.Retryable() {
				return backoff.Permanent(err)
			}
			return err
		}
		content = resp.Content
		return nil
	}

	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), turnMaxRetries-1), ctx)
	if err := backoff.RetryNotify(op, bo, func(err error, d time.Duration) {
		logger.Warn("provider call failed, backing off",
			zap.Duration("wait", d), zap.Error(err))
	}); err != nil {
		return "", err
	}
	return content, nil
}

// CallTurn runs one prompted interaction and parses the structured reply.
func CallTurn(ctx context.Context, router *Router, req *ChatRequest, logger *zap.Logger) (*Turn, error) {
	raw, err := callWithRetry(ctx, router, req, logger)
	if err != nil {
		return nil, err
	}
	var turn Turn
	if err := parseJSON(raw, &turn); err != nil {
		logger.Warn("turn parse failure", zap.String("raw", truncate(raw, 200)))
		return nil, err
	}
	return &turn, nil
}

// CallAmbientTurn runs one unprompted decision and parses the reply.
func CallAmbientTurn(ctx context.Context, router *Router, req *ChatRequest, logger *zap.Logger) (*AmbientTurn, error) {
	raw, err := callWithRetry(ctx, router, req, logger)
	if err != nil {
		return nil, err
	}
	var turn AmbientTurn
	if err := parseJSON(raw, &turn); err != nil {
		logger.Warn("ambient turn parse failure", zap.String("raw", truncate(raw, 200)))
		return nil, err
	}
	return &turn, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
