package chat

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"SonaChat/internal/events"
	"SonaChat/pkg/logger"
)

// State 维护单个交互会话的全部可变状态：当前身份、会话集合、
// 活跃会话指针与活跃模式。会话数据与活跃指针共用同一份底层存储，
// 二者不会出现分叉。
//
// 并发模型：状态机按“单逻辑参与者”设计，互斥锁只保证基本的
// 内存安全，不为重叠的外部往返提供顺序保证。
type State struct {
	mu        sync.Mutex
	store     HistoryStore
	publisher events.Publisher

	identity      string
	conversations []Conversation
	activeID      string
	mode          Mode

	now   func() int64
	newID func() string
}

// StateOption 定义可选的状态机配置。
type StateOption func(*State)

// WithClock 替换时间源，毫秒时间戳，主要用于测试。
func WithClock(now func() int64) StateOption {
	return func(s *State) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator 替换 ID 生成器，主要用于测试。
func WithIDGenerator(newID func() string) StateOption {
	return func(s *State) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// WithPublisher 配置会话变更事件的发布通道。
func WithPublisher(publisher events.Publisher) StateOption {
	return func(s *State) {
		if publisher != nil {
			s.publisher = publisher
		}
	}
}

// NewState 创建一个未绑定身份的状态机。未绑定身份时所有操作只
// 作用于内存，不会以任何兜底键名落库。
func NewState(store HistoryStore, opts ...StateOption) *State {
	s := &State{
		store:     store,
		publisher: events.NopPublisher{},
		mode:      ModeGeneral,
		now:       func() int64 { return time.Now().UnixMilli() },
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Attach 绑定身份并恢复其会话历史。已有的内存状态被整体替换而非合并。
// 历史记录缺失或损坏时退回到单个全新的 general 会话，绝不让启动失败。
func (s *State) Attach(ctx context.Context, identity string) {
	identity = strings.TrimSpace(identity)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.identity = identity
	s.conversations = nil
	s.activeID = ""
	s.mode = ModeGeneral

	if identity == "" {
		return
	}

	restored := s.loadLocked(ctx, identity)
	if len(restored) == 0 {
		s.createLocked(ctx, ModeGeneral)
	} else {
		s.conversations = restored
		mostRecent := restored[0]
		for _, conv := range restored[1:] {
			if conv.LastUpdated > mostRecent.LastUpdated {
				mostRecent = conv
			}
		}
		s.activeID = mostRecent.ID
		s.mode = mostRecent.Mode
	}

	s.publish(ctx, events.Event{Kind: events.KindIdentityAttached, Identity: identity, OccurredAt: s.now()})
	logger.Audit().Info("identity_attached",
		slog.String("identity", identity),
		slog.Int("conversations", len(s.conversations)),
	)
}

// Detach 解除身份绑定并清空内存状态。匿名状态不会被兜底保存。
func (s *State) Detach(ctx context.Context) {
	s.mu.Lock()
	identity := s.identity
	s.identity = ""
	s.conversations = nil
	s.activeID = ""
	s.mode = ModeGeneral
	s.mu.Unlock()

	if identity != "" {
		s.publish(ctx, events.Event{Kind: events.KindIdentityDetached, Identity: identity, OccurredAt: s.now()})
		logger.Audit().Info("identity_detached", slog.String("identity", identity))
	}
}

// CreateConversation 新建一个空会话并使其成为活跃会话。永远成功。
func (s *State) CreateConversation(ctx context.Context, mode Mode) Conversation {
	if !IsValidMode(mode) {
		mode = ModeGeneral
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createLocked(ctx, mode)
}

func (s *State) createLocked(ctx context.Context, mode Mode) Conversation {
	conv := Conversation{
		ID:          s.newID(),
		Name:        DefaultName,
		Mode:        mode,
		Messages:    []Message{},
		LastUpdated: s.now(),
	}
	s.conversations = append(s.conversations, conv)
	s.activeID = conv.ID
	s.mode = mode

	s.persistLocked(ctx)
	s.publish(ctx, events.Event{
		Kind:           events.KindConversationCreated,
		Identity:       s.identity,
		ConversationID: conv.ID,
		OccurredAt:     s.now(),
	})
	return conv.Clone()
}

// SwitchConversation 切换活跃会话并同步活跃模式。
// 未找到目标会话时静默忽略，切换永不创建或销毁状态。
func (s *State) SwitchConversation(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, conv := range s.conversations {
		if conv.ID == id {
			s.activeID = conv.ID
			s.mode = conv.Mode
			return
		}
	}
}

// AddMessage 向活跃会话追加一条消息。无活跃会话或内容为空白时
// 拒绝（返回 nil）。首条用户消息会触发会话名称派生。
func (s *State) AddMessage(ctx context.Context, content string, role Role) *Message {
	if strings.TrimSpace(content) == "" || !IsValidRole(role) {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.activeIndexLocked()
	if idx < 0 {
		return nil
	}

	msg := Message{
		ID:        s.newID(),
		Content:   content,
		Role:      role,
		Timestamp: s.now(),
	}

	conv := &s.conversations[idx]
	if len(conv.Messages) == 0 && role == RoleUser {
		conv.Name = GenerateName(content)
	}
	conv.Messages = append(conv.Messages, msg)
	conv.LastUpdated = msg.Timestamp

	s.persistLocked(ctx)
	s.publish(ctx, events.Event{
		Kind:           events.KindMessageAppended,
		Identity:       s.identity,
		ConversationID: conv.ID,
		MessageID:      msg.ID,
		OccurredAt:     s.now(),
	})
	logger.Audit().Info("message_appended",
		slog.String("conversation_id", conv.ID),
		slog.String("message_id", msg.ID),
		slog.String("role", string(role)),
	)
	return &msg
}

// UpdateConversationName 重命名指定会话。名称去除空白后为空时拒绝。
func (s *State) UpdateConversationName(ctx context.Context, id, name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.conversations {
		if s.conversations[i].ID == id {
			s.conversations[i].Name = name
			s.persistLocked(ctx)
			s.publish(ctx, events.Event{
				Kind:           events.KindConversationRenamed,
				Identity:       s.identity,
				ConversationID: id,
				OccurredAt:     s.now(),
			})
			return
		}
	}
}

// DeleteConversation 删除指定会话。删除的是活跃会话时，存储顺序中
// 的第一个剩余会话接任活跃会话并同步模式；没有剩余会话时活跃
// 指针清空、模式保持不变。
func (s *State) DeleteConversation(ctx context.Context, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i := range s.conversations {
		if s.conversations[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}

	s.conversations = append(s.conversations[:idx], s.conversations[idx+1:]...)
	if s.activeID == id {
		if len(s.conversations) > 0 {
			s.activeID = s.conversations[0].ID
			s.mode = s.conversations[0].Mode
		} else {
			s.activeID = ""
		}
	}

	s.persistLocked(ctx)
	s.publish(ctx, events.Event{
		Kind:           events.KindConversationDeleted,
		Identity:       s.identity,
		ConversationID: id,
		OccurredAt:     s.now(),
	})
}

// ActiveConversation 返回活跃会话的深拷贝。
func (s *State) ActiveConversation() (Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.activeIndexLocked()
	if idx < 0 {
		return Conversation{}, false
	}
	return s.conversations[idx].Clone(), true
}

// Conversations 返回全部会话的深拷贝，保持存储顺序。
func (s *State) Conversations() []Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Conversation, 0, len(s.conversations))
	for _, conv := range s.conversations {
		out = append(out, conv.Clone())
	}
	return out
}

// ActiveMode 返回当前活跃模式。
func (s *State) ActiveMode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Identity 返回当前绑定的身份键，匿名时为空串。
func (s *State) Identity() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

func (s *State) activeIndexLocked() int {
	if s.activeID == "" {
		return -1
	}
	for i := range s.conversations {
		if s.conversations[i].ID == s.activeID {
			return i
		}
	}
	return -1
}

// loadLocked 读取身份的历史会话。损坏的记录只记日志，不阻塞启动。
func (s *State) loadLocked(ctx context.Context, identity string) []Conversation {
	if s.store == nil {
		return nil
	}
	restored, err := s.store.Load(ctx, identity)
	if err != nil {
		logger.L().Warn("恢复会话历史失败，重置为全新会话",
			slog.String("identity", identity),
			slog.Any("error", err),
		)
		return nil
	}
	return restored
}

// persistLocked 将当前身份的会话集合整体快照落库。
// 每次成功的变更都会触发一次全量写入；匿名身份跳过。
func (s *State) persistLocked(ctx context.Context) {
	if s.store == nil || s.identity == "" {
		return
	}
	if err := s.store.Save(ctx, s.identity, s.conversations); err != nil {
		logger.L().Error("保存会话历史失败",
			slog.String("identity", s.identity),
			slog.Any("error", err),
		)
	}
}

func (s *State) publish(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		logger.L().Warn("发布会话事件失败",
			slog.String("kind", string(event.Kind)),
			slog.Any("error", err),
		)
	}
}
