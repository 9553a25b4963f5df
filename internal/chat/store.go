package chat

import "context"

// storageKeyPrefix 是按身份分区的历史记录键前缀。
const storageKeyPrefix = "chat_history_"

// HistoryStore 抽象了按身份分区的会话历史持久化接口。
// 整个会话集合作为一个单元整体写入、整体读出；
// 记录缺失返回 (nil, nil)，记录损坏返回 CodeHistoryCorrupted 错误，
// 由上层状态机决定如何恢复。
type HistoryStore interface {
	Load(ctx context.Context, identity string) ([]Conversation, error)
	Save(ctx context.Context, identity string, conversations []Conversation) error
	Close() error
}

// StorageKey 返回身份对应的存储键。
func StorageKey(identity string) string {
	return storageKeyPrefix + identity
}
