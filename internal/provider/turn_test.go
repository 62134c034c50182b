package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"
)

// fakeOpenAI returns an httptest server speaking the chat completions
// shape. respond decides per-call status and content.
func fakeOpenAI(t *testing.T, respond func(call int) (int, string)) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(calls.Add(1))
		status, content := respond(n)
		if status != http.StatusOK {
			w.WriteHeader(status)
			fmt.Fprint(w, `{"error":"nope"}`)
			return
		}
		resp := map[string]any{
			"id":    "test",
			"model": "test-model",
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": content}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func testRouter(srv *httptest.Server) *Router {
	logger := zap.NewNop()
	r := NewRouter(logger)
	r.Register(NewOpenAIProvider(ProviderConfig{
		ID:       "test",
		Name:     "Test",
		Endpoint: srv.URL,
		APIKey:   "k",
	}, logger))
	return r
}

func turnRequest() *ChatRequest {
	return &ChatRequest{
		Model:       "test-model",
		Messages:    []Message{{Role: "user", Content: "hello"}},
		Temperature: 0.85,
		MaxTokens:   800,
	}
}

func TestCallTurnParsesCleanJSON(t *testing.T) {
	srv, _ := fakeOpenAI(t, func(int) (int, string) {
		return 200, `{"thought":"curiosity","response":"Speak.","new_facts":["likes astronomy"],"episodic_summary":"a greeting","working_context":"introductions","contemplation":null}`
	})
	router := testRouter(srv)

	turn, err := CallTurn(context.Background(), router, turnRequest(), zap.NewNop())
	if err != nil {
		t.Fatalf("call turn: %v", err)
	}
	if turn.Response != "Speak." {
		t.Errorf("response = %q", turn.Response)
	}
	if len(turn.NewFacts) != 1 || turn.NewFacts[0].Fact != "likes astronomy" {
		t.Errorf("facts = %+v", turn.NewFacts)
	}
	if turn.NewFacts[0].Confidence != 0.9 || turn.NewFacts[0].MemoryType != "fact" {
		t.Errorf("bare string fact should take defaults, got %+v", turn.NewFacts[0])
	}
	if turn.Contemplation != "" {
		t.Errorf("null contemplation should decode empty, got %q", turn.Contemplation)
	}
}

func TestCallTurnStripsFences(t *testing.T) {
	srv, _ := fakeOpenAI(t, func(int) (int, string) {
		return 200, "```json\n{\"response\":\"From behind the fence.\"}\n```"
	})
	router := testRouter(srv)

	turn, err := CallTurn(context.Background(), router, turnRequest(), zap.NewNop())
	if err != nil {
		t.Fatalf("call turn: %v", err)
	}
	if turn.Response != "From behind the fence." {
		t.Errorf("response = %q", turn.Response)
	}
}

func TestCallTurnMalformedNoRetry(t *testing.T) {
	srv, calls := fakeOpenAI(t, func(int) (int, string) {
		return 200, "I refuse to emit JSON today."
	})
	router := testRouter(srv)

	_, err := CallTurn(context.Background(), router, turnRequest(), zap.NewNop())
	if !errors.Is(err, ErrMalformedTurn) {
		t.Fatalf("err = %v, want ErrMalformedTurn", err)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("parse failures must not retry, got %d calls", n)
	}
}

func TestCallTurnRetriesTransient(t *testing.T) {
	srv, calls := fakeOpenAI(t, func(call int) (int, string) {
		if call < 3 {
			return 503, ""
		}
		return 200, `{"response":"Finally."}`
	})
	router := testRouter(srv)

	turn, err := CallTurn(context.Background(), router, turnRequest(), zap.NewNop())
	if err != nil {
		t.Fatalf("call turn: %v", err)
	}
	if turn.Response != "Finally." {
		t.Errorf("response = %q", turn.Response)
	}
	if n := calls.Load(); n != 3 {
		t.Errorf("expected 3 attempts, got %d", n)
	}
}

func TestCallTurnClientErrorFatal(t *testing.T) {
	srv, calls := fakeOpenAI(t, func(int) (int, string) {
		return 400, ""
	})
	router := testRouter(srv)

	_, err := CallTurn(context.Background(), router, turnRequest(), zap.NewNop())
	if err == nil {
		t.Fatal("expected error")
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("client errors must not retry, got %d calls", n)
	}
}

func TestCallAmbientTurn(t *testing.T) {
	srv, _ := fakeOpenAI(t, func(int) (int, string) {
		return 200, `{"should_speak":true,"message":"The hour is thin.","reason":"silence","new_contemplation":"entropy"}`
	})
	router := testRouter(srv)

	turn, err := CallAmbientTurn(context.Background(), router, turnRequest(), zap.NewNop())
	if err != nil {
		t.Fatalf("call ambient: %v", err)
	}
	if !turn.ShouldSpeak || turn.Message != "The hour is thin." {
		t.Errorf("turn = %+v", turn)
	}
}

func TestFactProposalObjectForm(t *testing.T) {
	var turn Turn
	raw := `{"new_facts":[{"fact":"studies decay","confidence":0.6,"type":"preference"},{"fact":"bare default"}]}`
	if err := json.Unmarshal([]byte(raw), &turn); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if turn.NewFacts[0].Confidence != 0.6 || turn.NewFacts[0].MemoryType != "preference" {
		t.Errorf("object fact = %+v", turn.NewFacts[0])
	}
	if turn.NewFacts[1].Confidence != 0.9 || turn.NewFacts[1].MemoryType != "fact" {
		t.Errorf("object fact without fields should default, got %+v", turn.NewFacts[1])
	}
}

func TestRouterFallback(t *testing.T) {
	logger := zap.NewNop()
	bad, _ := fakeOpenAI(t, func(int) (int, string) { return 500, "" })
	good, _ := fakeOpenAI(t, func(int) (int, string) {
		return 200, `{"response":"from the understudy"}`
	})

	r := NewRouter(logger)
	r.Register(NewOpenAIProvider(ProviderConfig{ID: "primary", Endpoint: bad.URL}, logger))
	r.Register(NewOpenAIProvider(ProviderConfig{ID: "backup", Endpoint: good.URL}, logger))
	r.SetDefault("primary")
	r.SetFallbacks([]string{"backup"})

	resp, err := r.Route(context.Background(), turnRequest())
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if resp.Content != `{"response":"from the understudy"}` {
		t.Errorf("content = %q", resp.Content)
	}
}
