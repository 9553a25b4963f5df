// Package session 是会话引擎的公共门面：创建/切换/删除会话、
// 发送消息并经由推理后端往返、提供可渲染的消息视图。
package session

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"SonaChat/internal/action"
	"SonaChat/internal/chat"
	xerrors "SonaChat/internal/errors"
	"SonaChat/internal/llm"
	"SonaChat/internal/mode"
	"SonaChat/internal/observability/alerting"
	"SonaChat/internal/observability/metrics"
	"SonaChat/pkg/logger"
)

// FallbackReply 是后端失败时写入会话的固定助手消息。
// 原始错误只进日志，不进会话历史。
const FallbackReply = "Sorry, I encountered an error processing your request."

const (
	// CodeSendPending 表示同一会话上已有一次未完成的发送。
	CodeSendPending xerrors.Code = "SEND_PENDING"
)

func init() {
	xerrors.Register(CodeSendPending, xerrors.Attributes{
		Message:   "a send is already in flight for this conversation",
		Severity:  xerrors.SeverityWarning,
		Retryable: true,
		Alert:     false,
	})
}

// MessageView 是一条可渲染的消息：原始内容加上解码出的动作视图。
// 解码只在读取时发生，存储内容永远保持后端返回的原文。
type MessageView struct {
	Message chat.Message
	Action  *action.CryptoAction
}

// Exchange 是一次完整往返的结果。
type Exchange struct {
	User      chat.Message
	Assistant chat.Message
	Action    *action.CryptoAction
}

// Service 将状态机、模式表与推理后端组合成会话门面。
// 同一会话上的发送被串行化：前一次往返未完成时新的发送被拒绝。
type Service struct {
	state   *chat.State
	backend llm.Client
	modes   *mode.Registry
	alerts  alerting.Dispatcher

	mu      sync.Mutex
	pending map[string]struct{}
}

// Option 定义门面的可选配置。
type Option func(*Service)

// WithAlerts 配置后端失败时的告警通道。
func WithAlerts(dispatcher alerting.Dispatcher) Option {
	return func(s *Service) {
		if dispatcher != nil {
			s.alerts = dispatcher
		}
	}
}

// NewService 创建会话门面。
func NewService(state *chat.State, backend llm.Client, modes *mode.Registry, opts ...Option) *Service {
	if modes == nil {
		modes = mode.NewRegistry()
	}
	s := &Service{
		state:   state,
		backend: backend,
		modes:   modes,
		pending: make(map[string]struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// SendMessage 执行一次完整的消息往返：
// 追加用户消息、调用推理后端、追加助手消息（成功原文或固定兜底）。
// 空白输入静默拒绝；同一会话的并发发送返回 CodeSendPending。
func (s *Service) SendMessage(ctx context.Context, text string) (*Exchange, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	// 没有活跃会话时兜底创建一个 general 会话。
	active, ok := s.state.ActiveConversation()
	if !ok {
		active = s.state.CreateConversation(ctx, chat.ModeGeneral)
	}

	if err := s.acquire(active.ID); err != nil {
		return nil, err
	}
	defer s.release(active.ID)

	userMsg := s.state.AddMessage(ctx, text, chat.RoleUser)
	if userMsg == nil {
		return nil, nil
	}

	activeMode := s.state.ActiveMode()
	persona := s.modes.Lookup(activeMode)
	reply := s.invoke(ctx, persona.SystemPrompt)

	outcome := metrics.OutcomeReply
	if reply == FallbackReply {
		outcome = metrics.OutcomeFallback
	}
	metrics.ObserveRoundTrip(string(activeMode), outcome)

	assistantMsg := s.state.AddMessage(ctx, reply, chat.RoleAssistant)
	if assistantMsg == nil {
		return nil, xerrors.New(xerrors.CodeUnknown, "追加助手消息失败")
	}

	return &Exchange{
		User:      *userMsg,
		Assistant: *assistantMsg,
		Action:    action.Decode(assistantMsg.Content),
	}, nil
}

// invoke 调用推理后端。任何失败都被折算成固定兜底回复，
// 错误细节只记日志。
func (s *Service) invoke(ctx context.Context, systemPrompt string) string {
	conv, ok := s.state.ActiveConversation()
	if !ok {
		return FallbackReply
	}

	history := make([]llm.Turn, 0, len(conv.Messages))
	for _, msg := range conv.Messages {
		history = append(history, llm.Turn{Role: string(msg.Role), Content: msg.Content})
	}

	resp, err := s.backend.Generate(ctx, llm.Request{
		SystemPrompt: systemPrompt,
		History:      history,
	})
	if err != nil {
		logger.L().Error("推理后端调用失败，写入兜底回复",
			slog.String("conversation_id", conv.ID),
			slog.Any("error", err),
		)
		s.alert(ctx, conv.ID, err)
		return FallbackReply
	}
	if strings.TrimSpace(resp.Reply) == "" {
		logger.L().Error("推理后端返回空回复，写入兜底回复",
			slog.String("conversation_id", conv.ID),
		)
		return FallbackReply
	}
	return resp.Reply
}

// alert 在后端失败时发送告警，失败只记日志。
func (s *Service) alert(ctx context.Context, conversationID string, cause error) {
	if s.alerts == nil {
		return
	}
	event := alerting.Event{
		Code:           xerrors.CodeOf(cause),
		Message:        cause.Error(),
		Severity:       xerrors.SeverityOf(cause),
		Identity:       s.state.Identity(),
		ConversationID: conversationID,
		OccurredAt:     time.Now(),
	}
	if err := s.alerts.Notify(ctx, event); err != nil {
		logger.L().Warn("发送后端故障告警失败", slog.Any("error", err))
	}
}

func (s *Service) acquire(conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.pending[conversationID]; busy {
		return xerrors.New(CodeSendPending, "该会话已有一次发送在途")
	}
	s.pending[conversationID] = struct{}{}
	return nil
}

func (s *Service) release(conversationID string) {
	s.mu.Lock()
	delete(s.pending, conversationID)
	s.mu.Unlock()
}

// Messages 返回活跃会话的可渲染消息视图。
func (s *Service) Messages() []MessageView {
	conv, ok := s.state.ActiveConversation()
	if !ok {
		return nil
	}
	views := make([]MessageView, 0, len(conv.Messages))
	for _, msg := range conv.Messages {
		view := MessageView{Message: msg}
		if msg.Role == chat.RoleAssistant {
			view.Action = action.Decode(msg.Content)
		}
		views = append(views, view)
	}
	return views
}

// Attach 绑定身份并恢复历史。
func (s *Service) Attach(ctx context.Context, identity string) {
	s.state.Attach(ctx, identity)
}

// Detach 解除身份绑定。
func (s *Service) Detach(ctx context.Context) {
	s.state.Detach(ctx)
}

// CreateConversation 新建会话并使其成为活跃会话。
func (s *Service) CreateConversation(ctx context.Context, m chat.Mode) chat.Conversation {
	return s.state.CreateConversation(ctx, m)
}

// SwitchConversation 切换活跃会话。
func (s *Service) SwitchConversation(id string) {
	s.state.SwitchConversation(id)
}

// RenameConversation 重命名会话。
func (s *Service) RenameConversation(ctx context.Context, id, name string) {
	s.state.UpdateConversationName(ctx, id, name)
}

// DeleteConversation 删除会话。
func (s *Service) DeleteConversation(ctx context.Context, id string) {
	s.state.DeleteConversation(ctx, id)
}

// Conversations 返回全部会话。
func (s *Service) Conversations() []chat.Conversation {
	return s.state.Conversations()
}

// ActiveConversation 返回活跃会话。
func (s *Service) ActiveConversation() (chat.Conversation, bool) {
	return s.state.ActiveConversation()
}

// ModeDescription 返回当前活跃模式的简短描述。
func (s *Service) ModeDescription() string {
	return s.modes.Describe(s.state.ActiveMode())
}
