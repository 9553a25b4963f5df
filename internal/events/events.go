package events

import (
	"context"
	"time"
)

// Kind 表示一次会话状态变更的类型。
type Kind string

const (
	KindConversationCreated Kind = "conversation.created"
	KindConversationRenamed Kind = "conversation.renamed"
	KindConversationDeleted Kind = "conversation.deleted"
	KindMessageAppended     Kind = "message.appended"
	KindIdentityAttached    Kind = "identity.attached"
	KindIdentityDetached    Kind = "identity.detached"
)

// Event 描述一次针对某个身份会话集合的变更。
// 发布事件是为了让其它会话（例如另一个标签页）感知写入，
// 弥补全量覆盖式持久化天然存在的丢失更新窗口。
type Event struct {
	Kind           Kind   `json:"kind"`
	Identity       string `json:"identity"`
	ConversationID string `json:"conversation_id,omitempty"`
	MessageID      string `json:"message_id,omitempty"`
	OccurredAt     int64  `json:"occurred_at"`
}

// NewEvent 构造一个带当前时间戳的事件。
func NewEvent(kind Kind, identity string) Event {
	return Event{Kind: kind, Identity: identity, OccurredAt: time.Now().UnixMilli()}
}

// Publisher 负责将变更事件投递出去。
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NopPublisher 丢弃所有事件，用于未配置事件通道的部署。
type NopPublisher struct{}

// Publish 实现 Publisher 接口。
func (NopPublisher) Publish(context.Context, Event) error { return nil }

// Close 实现 Publisher 接口。
func (NopPublisher) Close() error { return nil }

var _ Publisher = NopPublisher{}
