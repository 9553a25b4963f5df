package chat

import (
	xerrors "SonaChat/internal/errors"
)

// Mode 表示会话绑定的助手人格。
type Mode string

const (
	ModeGeneral   Mode = "general"
	ModeTrading   Mode = "trading"
	ModePortfolio Mode = "portfolio"
	ModeMarket    Mode = "market"
)

// Role 表示消息的发送方。
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// DefaultName 是新会话的初始名称，首条用户消息到达后被派生名称替换。
const DefaultName = "New Chat"

// Message 是会话内的一条消息。创建后不可变，归属唯一的 Conversation。
type Message struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	Role      Role   `json:"role"`
	Timestamp int64  `json:"timestamp"`
}

// Conversation 是一段命名的对话。Messages 只追加、按时间有序；
// LastUpdated 不早于其中任何一条消息的时间戳。
type Conversation struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Mode        Mode      `json:"mode"`
	Messages    []Message `json:"messages"`
	LastUpdated int64     `json:"lastUpdated"`
}

// Clone 返回会话的深拷贝，避免调用方共享内部切片。
func (c Conversation) Clone() Conversation {
	clone := c
	clone.Messages = append([]Message(nil), c.Messages...)
	return clone
}

// IsValidMode 检查模式是否为支持的枚举值。
func IsValidMode(mode Mode) bool {
	switch mode {
	case ModeGeneral, ModeTrading, ModePortfolio, ModeMarket:
		return true
	default:
		return false
	}
}

// IsValidRole 检查消息角色是否合法。
func IsValidRole(role Role) bool {
	return role == RoleUser || role == RoleAssistant
}

const (
	CodeHistoryCorrupted xerrors.Code = "HISTORY_CORRUPTED"
)

func init() {
	xerrors.Register(CodeHistoryCorrupted, xerrors.Attributes{
		Message:   "stored chat history is corrupted",
		Severity:  xerrors.SeverityWarning,
		Retryable: false,
		Alert:     false,
	})
}
