package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"SonaChat/internal/chat"
	"SonaChat/internal/llm"
	"SonaChat/internal/mode"
	"SonaChat/internal/session"
)

type echoBackend struct{}

func (echoBackend) Generate(_ context.Context, req llm.Request) (*llm.Response, error) {
	last := req.History[len(req.History)-1]
	return &llm.Response{Reply: "echo: " + last.Content}, nil
}

func newTestServer() *httptest.Server {
	state := chat.NewState(chat.NewMemoryHistoryStore())
	svc := session.NewService(state, echoBackend{}, mode.NewRegistry())
	server := NewServer(":0", svc, nil)
	return httptest.NewServer(server.Handler())
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s failed: %v", url, err)
	}
	return resp
}

func TestIdentityAttachAndConversationFlow(t *testing.T) {
	ts := newTestServer()
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/api/v1/identity", `{"address":"0xfb6916095ca1df60bb79ce92ce3ea74c37c5d359"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("attach returned %d", resp.StatusCode)
	}
	var attach struct {
		Identity string `json:"identity"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&attach); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if attach.Identity != "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359" {
		t.Errorf("expected checksummed identity, got %q", attach.Identity)
	}

	// 绑定后自动有一个 general 会话。
	resp, err := http.Get(ts.URL + "/api/v1/conversations")
	if err != nil {
		t.Fatal(err)
	}
	var conversations []chat.Conversation
	if err := json.NewDecoder(resp.Body).Decode(&conversations); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if len(conversations) != 1 || conversations[0].Mode != chat.ModeGeneral {
		t.Fatalf("unexpected conversations after attach: %+v", conversations)
	}

	resp = postJSON(t, ts.URL+"/api/v1/conversations", `{"mode":"trading"}`)
	var created chat.Conversation
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if created.Mode != chat.ModeTrading || created.Name != chat.DefaultName {
		t.Errorf("unexpected created conversation: %+v", created)
	}
}

func TestIdentityRejectsInvalidAddress(t *testing.T) {
	ts := newTestServer()
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/api/v1/identity", `{"address":"not-an-address"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestSendAndListMessages(t *testing.T) {
	ts := newTestServer()
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/api/v1/messages", `{"content":"hello there"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("send returned %d", resp.StatusCode)
	}
	var exchange struct {
		User      chat.Message `json:"user"`
		Assistant chat.Message `json:"assistant"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&exchange); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if exchange.Assistant.Content != "echo: hello there" {
		t.Errorf("unexpected assistant reply %q", exchange.Assistant.Content)
	}

	resp, err := http.Get(ts.URL + "/api/v1/messages")
	if err != nil {
		t.Fatal(err)
	}
	var views []chat.Message
	if err := json.NewDecoder(resp.Body).Decode(&views); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if len(views) != 2 {
		t.Errorf("expected 2 messages, got %d", len(views))
	}
}

func TestSendBlankMessageIsBadRequest(t *testing.T) {
	ts := newTestServer()
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/api/v1/messages", `{"content":"   "}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestConversationRenameAndDelete(t *testing.T) {
	ts := newTestServer()
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/api/v1/conversations", `{"mode":"market"}`)
	var created chat.Conversation
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	req, _ := http.NewRequest(http.MethodPut, ts.URL+"/api/v1/conversations/"+created.ID, strings.NewReader(`{"name":"Market watch"}`))
	renameResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	renameResp.Body.Close()
	if renameResp.StatusCode != http.StatusNoContent {
		t.Errorf("rename returned %d", renameResp.StatusCode)
	}

	req, _ = http.NewRequest(http.MethodDelete, ts.URL+"/api/v1/conversations/"+created.ID, nil)
	deleteResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	deleteResp.Body.Close()
	if deleteResp.StatusCode != http.StatusNoContent {
		t.Errorf("delete returned %d", deleteResp.StatusCode)
	}
}

func TestModeEndpoint(t *testing.T) {
	ts := newTestServer()
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/mode")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var payload struct {
		Description string `json:"description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatal(err)
	}
	if payload.Description == "" {
		t.Error("expected a mode description")
	}
}

func TestBalanceUnconfigured(t *testing.T) {
	ts := newTestServer()
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/balance?address=0xfb6916095ca1df60bb79ce92ce3ea74c37c5d359")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503 when balance service is absent, got %d", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer()
	defer ts.Close()

	postJSON(t, ts.URL+"/api/v1/messages", `{"content":"ping"}`).Body.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("metrics returned %d", resp.StatusCode)
	}
}
