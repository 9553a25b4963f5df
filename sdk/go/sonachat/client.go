// Package sonachat provides a Go client for the SonaChat REST API.
package sonachat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"
)

// DefaultHTTPTimeout defines the timeout used by clients created without a
// custom http.Client. It is intentionally short to avoid hanging network calls.
const DefaultHTTPTimeout = 15 * time.Second

// Client wraps the HTTP interactions with the SonaChat REST API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// Message mirrors a stored conversation message.
type Message struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	Role      string `json:"role"`
	Timestamp int64  `json:"timestamp"`
}

// Conversation mirrors a conversation record.
type Conversation struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Mode        string    `json:"mode"`
	Messages    []Message `json:"messages"`
	LastUpdated int64     `json:"lastUpdated"`
}

// TokenInfo mirrors a quoted token inside a crypto action.
type TokenInfo struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Change24h float64 `json:"change24h"`
}

// ActionData carries the structured payload of a crypto action.
type ActionData struct {
	TokenA   *TokenInfo `json:"tokenA,omitempty"`
	TokenB   *TokenInfo `json:"tokenB,omitempty"`
	APY      float64    `json:"apy,omitempty"`
	Duration string     `json:"duration,omitempty"`
}

// CryptoAction is the decoded action view attached to an assistant reply.
type CryptoAction struct {
	Type    string     `json:"type"`
	Data    ActionData `json:"data"`
	Message string     `json:"message"`
}

// Exchange is the result of one send round trip.
type Exchange struct {
	User      Message       `json:"user"`
	Assistant Message       `json:"assistant"`
	Action    *CryptoAction `json:"action,omitempty"`
}

// MessageView is a message together with its decoded action, if any.
type MessageView struct {
	Message
	Action *CryptoAction `json:"action,omitempty"`
}

// Balance mirrors an on-chain balance record.
type Balance struct {
	Symbol string  `json:"symbol"`
	Amount float64 `json:"amount"`
}

// APIError represents server side validation or internal errors.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("sonachat api error (%d): %s", e.StatusCode, e.Message)
}

// NewClient instantiates a client for the SonaChat API. When httpClient is
// nil, a default client with a sensible timeout is used.
func NewClient(rawURL string, httpClient *http.Client) *Client {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		panic(fmt.Sprintf("invalid base url: %v", err))
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Client{baseURL: parsed, httpClient: httpClient}
}

// Attach binds a wallet identity and restores its conversation history.
// The returned identity is the checksummed form the server stores under.
func (c *Client) Attach(ctx context.Context, address string) (string, error) {
	var out struct {
		Identity string `json:"identity"`
	}
	payload := struct {
		Address string `json:"address"`
	}{Address: address}
	if err := c.post(ctx, "/api/v1/identity", payload, &out); err != nil {
		return "", err
	}
	return out.Identity, nil
}

// Detach releases the bound identity.
func (c *Client) Detach(ctx context.Context) error {
	return c.delete(ctx, "/api/v1/identity")
}

// Conversations lists all conversations of the bound identity.
func (c *Client) Conversations(ctx context.Context) ([]Conversation, error) {
	var out []Conversation
	if err := c.get(ctx, "/api/v1/conversations", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateConversation creates a conversation in the given mode and makes it active.
func (c *Client) CreateConversation(ctx context.Context, mode string) (Conversation, error) {
	var out Conversation
	payload := struct {
		Mode string `json:"mode"`
	}{Mode: mode}
	if err := c.post(ctx, "/api/v1/conversations", payload, &out); err != nil {
		return Conversation{}, err
	}
	return out, nil
}

// SwitchConversation makes the conversation with the given id active.
func (c *Client) SwitchConversation(ctx context.Context, id string) error {
	return c.post(ctx, "/api/v1/conversations/"+url.PathEscape(id)+"/activate", nil, nil)
}

// RenameConversation overwrites a conversation's display name.
func (c *Client) RenameConversation(ctx context.Context, id, name string) error {
	payload := struct {
		Name string `json:"name"`
	}{Name: name}
	return c.put(ctx, "/api/v1/conversations/"+url.PathEscape(id), payload)
}

// DeleteConversation removes a conversation.
func (c *Client) DeleteConversation(ctx context.Context, id string) error {
	return c.delete(ctx, "/api/v1/conversations/"+url.PathEscape(id))
}

// SendMessage performs one full round trip through the reasoning backend.
func (c *Client) SendMessage(ctx context.Context, content string) (Exchange, error) {
	var out Exchange
	payload := struct {
		Content string `json:"content"`
	}{Content: content}
	if err := c.post(ctx, "/api/v1/messages", payload, &out); err != nil {
		return Exchange{}, err
	}
	return out, nil
}

// Messages returns the render-ready views of the active conversation.
func (c *Client) Messages(ctx context.Context) ([]MessageView, error) {
	var out []MessageView
	if err := c.get(ctx, "/api/v1/messages", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ModeDescription returns the short description of the active mode.
func (c *Client) ModeDescription(ctx context.Context) (string, error) {
	var out struct {
		Description string `json:"description"`
	}
	if err := c.get(ctx, "/api/v1/mode", &out); err != nil {
		return "", err
	}
	return out.Description, nil
}

// NativeBalance looks up the native token balance of a wallet address.
func (c *Client) NativeBalance(ctx context.Context, address string) (Balance, error) {
	var out Balance
	endpoint := "/api/v1/balance?address=" + url.QueryEscape(address)
	if err := c.get(ctx, endpoint, &out); err != nil {
		return Balance{}, err
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, endpoint string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) put(ctx context.Context, endpoint string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPut, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, nil)
}

func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) delete(ctx context.Context, endpoint string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	rel := &url.URL{Path: path.Join(c.baseURL.Path, parsed.Path), RawQuery: parsed.RawQuery}
	u := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(bytes.TrimSpace(data)),
		}
	}

	if out == nil {
		return nil
	}
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
