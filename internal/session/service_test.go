package session

import (
	"context"
	"errors"
	"sync"
	"testing"

	"SonaChat/internal/action"
	"SonaChat/internal/chat"
	xerrors "SonaChat/internal/errors"
	"SonaChat/internal/llm"
	"SonaChat/internal/mode"
	"SonaChat/internal/observability/alerting"
)

type recordingDispatcher struct {
	mu     sync.Mutex
	events []alerting.Event
}

func (d *recordingDispatcher) Notify(_ context.Context, event alerting.Event) error {
	d.mu.Lock()
	d.events = append(d.events, event)
	d.mu.Unlock()
	return nil
}

type stubBackend struct {
	mu      sync.Mutex
	reply   string
	err     error
	gate    chan struct{}
	lastReq llm.Request
}

func (b *stubBackend) Generate(_ context.Context, req llm.Request) (*llm.Response, error) {
	b.mu.Lock()
	b.lastReq = req
	b.mu.Unlock()
	if b.gate != nil {
		<-b.gate
	}
	if b.err != nil {
		return nil, b.err
	}
	return &llm.Response{Reply: b.reply}, nil
}

func newTestService(backend llm.Client) *Service {
	state := chat.NewState(chat.NewMemoryHistoryStore())
	return NewService(state, backend, mode.NewRegistry())
}

const rawSwapReply = `Sure! {{CRYPTO_ACTION:{"type":"swap","data":{"tokenA":{"symbol":"SOL","price":150,"change24h":2},"tokenB":{"symbol":"USDC","price":1,"change24h":0}}}}}`

func TestSendMessageRoundTrip(t *testing.T) {
	ctx := context.Background()
	backend := &stubBackend{reply: rawSwapReply}
	svc := newTestService(backend)
	svc.Attach(ctx, "0xabc")
	svc.CreateConversation(ctx, chat.ModeTrading)

	exchange, err := svc.SendMessage(ctx, "swap 10 SOL for USDC")
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}

	// 存储的是后端返回的原文，动作片段不剥离。
	if exchange.Assistant.Content != rawSwapReply {
		t.Errorf("assistant content mutated: %q", exchange.Assistant.Content)
	}
	if exchange.Action == nil {
		t.Fatal("expected a decoded action view")
	}
	if exchange.Action.Type != action.TypeSwap {
		t.Errorf("expected swap, got %q", exchange.Action.Type)
	}
	if exchange.Action.Message != "Sure!" {
		t.Errorf("expected message prefix %q, got %q", "Sure!", exchange.Action.Message)
	}
	if exchange.Action.Data.TokenA == nil || exchange.Action.Data.TokenA.Symbol != "SOL" {
		t.Errorf("unexpected tokenA: %+v", exchange.Action.Data.TokenA)
	}

	// 后端收到 trading 人格与完整历史。
	backend.mu.Lock()
	req := backend.lastReq
	backend.mu.Unlock()
	if req.SystemPrompt == "" {
		t.Error("expected a persona system prompt")
	}
	if len(req.History) != 1 || req.History[0].Role != "user" {
		t.Errorf("unexpected history sent to backend: %+v", req.History)
	}
}

func TestSendMessageBackendFailureAppendsFallback(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(&stubBackend{err: errors.New("rate limited")})
	svc.Attach(ctx, "0xabc")

	exchange, err := svc.SendMessage(ctx, "hello")
	if err != nil {
		t.Fatalf("backend failure must not surface: %v", err)
	}
	if exchange.Assistant.Content != FallbackReply {
		t.Errorf("expected fallback reply, got %q", exchange.Assistant.Content)
	}
	if exchange.Action != nil {
		t.Errorf("fallback reply should not decode to an action")
	}

	// 一次失败往返正好追加两条消息：用户 + 兜底助手。
	conv, _ := svc.ActiveConversation()
	if len(conv.Messages) != 2 {
		t.Errorf("expected 2 messages, got %d", len(conv.Messages))
	}
}

func TestBackendFailureDispatchesAlert(t *testing.T) {
	ctx := context.Background()
	dispatcher := &recordingDispatcher{}
	state := chat.NewState(chat.NewMemoryHistoryStore())
	backendErr := xerrors.New(xerrors.CodeBackendFailure, "上游超时")
	svc := NewService(state, &stubBackend{err: backendErr}, mode.NewRegistry(), WithAlerts(dispatcher))
	svc.Attach(ctx, "0xabc")

	if _, err := svc.SendMessage(ctx, "hello"); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}

	dispatcher.mu.Lock()
	events := append([]alerting.Event(nil), dispatcher.events...)
	dispatcher.mu.Unlock()
	if len(events) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(events))
	}

	event := events[0]
	if event.Code != xerrors.CodeBackendFailure {
		t.Errorf("unexpected code %q", event.Code)
	}
	if event.Severity != xerrors.SeverityOf(backendErr) {
		t.Errorf("unexpected severity %q", event.Severity)
	}
	if event.Identity != "0xabc" {
		t.Errorf("unexpected identity %q", event.Identity)
	}
	conv, _ := svc.ActiveConversation()
	if event.ConversationID != conv.ID {
		t.Errorf("alert bound to conversation %q, want %q", event.ConversationID, conv.ID)
	}
	if event.OccurredAt.IsZero() {
		t.Error("expected a timestamp on the alert event")
	}
}

func TestSuccessfulRoundTripDoesNotAlert(t *testing.T) {
	ctx := context.Background()
	dispatcher := &recordingDispatcher{}
	state := chat.NewState(chat.NewMemoryHistoryStore())
	svc := NewService(state, &stubBackend{reply: "hi"}, mode.NewRegistry(), WithAlerts(dispatcher))
	svc.Attach(ctx, "0xabc")

	if _, err := svc.SendMessage(ctx, "hello"); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}

	dispatcher.mu.Lock()
	defer dispatcher.mu.Unlock()
	if len(dispatcher.events) != 0 {
		t.Errorf("unexpected alerts on success: %+v", dispatcher.events)
	}
}

func TestSendMessageBlankInputIsNoop(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(&stubBackend{reply: "hi"})
	svc.Attach(ctx, "0xabc")

	exchange, err := svc.SendMessage(ctx, "   ")
	if err != nil || exchange != nil {
		t.Fatalf("expected silent no-op, got %v, %v", exchange, err)
	}
	conv, _ := svc.ActiveConversation()
	if len(conv.Messages) != 0 {
		t.Errorf("blank send changed the conversation: %d messages", len(conv.Messages))
	}
}

func TestSendMessageCreatesConversationWhenNoneActive(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(&stubBackend{reply: "hi there"})

	if _, err := svc.SendMessage(ctx, "hello"); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	conv, ok := svc.ActiveConversation()
	if !ok {
		t.Fatal("expected a conversation to be created")
	}
	if conv.Mode != chat.ModeGeneral {
		t.Errorf("expected general mode fallback, got %q", conv.Mode)
	}
	if len(conv.Messages) != 2 {
		t.Errorf("expected 2 messages, got %d", len(conv.Messages))
	}
}

func TestSendMessageRejectsOverlappingSends(t *testing.T) {
	ctx := context.Background()
	gate := make(chan struct{})
	backend := &stubBackend{reply: "slow reply", gate: gate}
	svc := newTestService(backend)
	svc.Attach(ctx, "0xabc")

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := svc.SendMessage(ctx, "first"); err != nil {
			t.Errorf("first send failed: %v", err)
		}
	}()

	// 等待第一次发送占住会话。
	for {
		conv, _ := svc.ActiveConversation()
		if len(conv.Messages) == 1 {
			break
		}
	}

	_, err := svc.SendMessage(ctx, "second")
	if err == nil {
		t.Error("expected overlapping send to be rejected")
	} else if xerrors.CodeOf(err) != CodeSendPending {
		t.Errorf("expected %q, got %q", CodeSendPending, xerrors.CodeOf(err))
	}

	close(gate)
	<-done

	conv, _ := svc.ActiveConversation()
	if len(conv.Messages) != 2 {
		t.Errorf("expected only the first round trip recorded, got %d messages", len(conv.Messages))
	}
}

func TestMessagesDecodesAssistantActionsOnly(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(&stubBackend{reply: rawSwapReply})
	svc.Attach(ctx, "0xabc")

	if _, err := svc.SendMessage(ctx, "swap SOL for USDC please"); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}

	views := svc.Messages()
	if len(views) != 2 {
		t.Fatalf("expected 2 views, got %d", len(views))
	}
	if views[0].Action != nil {
		t.Error("user message should not carry an action view")
	}
	if views[1].Action == nil || views[1].Action.Type != action.TypeSwap {
		t.Errorf("assistant view missing decoded action: %+v", views[1].Action)
	}
	if views[1].Message.Content != rawSwapReply {
		t.Error("view must preserve the raw stored content")
	}
}

func TestModeDescriptionFollowsActiveMode(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(&stubBackend{reply: "hi"})
	svc.Attach(ctx, "0xabc")
	svc.CreateConversation(ctx, chat.ModeMarket)

	if desc := svc.ModeDescription(); desc == "" {
		t.Error("expected a mode description")
	}
}
