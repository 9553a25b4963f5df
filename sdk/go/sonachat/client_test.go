package sonachat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAttachReturnsChecksummedIdentity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/identity" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method: %s", r.Method)
		}
		var req struct {
			Address string `json:"address"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("unexpected body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"identity": "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.Client())
	identity, err := client.Attach(context.Background(), "0xfb6916095ca1df60bb79ce92ce3ea74c37c5d359")
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	if identity != "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359" {
		t.Fatalf("unexpected identity %q", identity)
	}
}

func TestSendMessageDecodesExchange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/messages" || r.Method != http.MethodPost {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(Exchange{
			User:      Message{ID: "m1", Content: "swap SOL for USDC", Role: "user"},
			Assistant: Message{ID: "m2", Content: "Sure! {{CRYPTO_ACTION:...}}", Role: "assistant"},
			Action: &CryptoAction{
				Type:    "swap",
				Data:    ActionData{TokenA: &TokenInfo{Symbol: "SOL", Price: 150}},
				Message: "Sure!",
			},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.Client())
	exchange, err := client.SendMessage(context.Background(), "swap SOL for USDC")
	if err != nil {
		t.Fatalf("send message: %v", err)
	}
	if exchange.Action == nil || exchange.Action.Type != "swap" {
		t.Fatalf("unexpected action: %+v", exchange.Action)
	}
	if exchange.Action.Data.TokenA.Symbol != "SOL" {
		t.Fatalf("unexpected tokenA: %+v", exchange.Action.Data.TokenA)
	}
}

func TestConversationLifecycle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/v1/conversations" && r.Method == http.MethodPost:
			_ = json.NewEncoder(w).Encode(Conversation{ID: "c1", Name: "New Chat", Mode: "trading"})
		case r.URL.Path == "/api/v1/conversations/c1/activate" && r.Method == http.MethodPost:
			w.WriteHeader(http.StatusNoContent)
		case r.URL.Path == "/api/v1/conversations/c1" && r.Method == http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.Client())
	ctx := context.Background()

	conv, err := client.CreateConversation(ctx, "trading")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if conv.ID != "c1" || conv.Mode != "trading" {
		t.Fatalf("unexpected conversation: %+v", conv)
	}
	if err := client.SwitchConversation(ctx, "c1"); err != nil {
		t.Fatalf("switch: %v", err)
	}
	if err := client.DeleteConversation(ctx, "c1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
}

func TestErrorResponsesBecomeAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "消息内容不能为空", http.StatusBadRequest)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.Client())
	_, err := client.SendMessage(context.Background(), "   ")
	if err == nil {
		t.Fatal("expected error")
	}
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("expected APIError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("unexpected status %d", apiErr.StatusCode)
	}
}
