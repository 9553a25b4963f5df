package chat

import (
	"context"
	"encoding/json"
	"sync"

	xerrors "SonaChat/internal/errors"
)

// MemoryHistoryStore 以内存方式保存会话历史，主要用于测试与匿名部署。
// 与真实后端保持同样的序列化路径，保证行为一致。
type MemoryHistoryStore struct {
	mu      sync.RWMutex
	records map[string][]byte
}

// NewMemoryHistoryStore 创建 MemoryHistoryStore。
func NewMemoryHistoryStore() *MemoryHistoryStore {
	return &MemoryHistoryStore{records: make(map[string][]byte)}
}

// Load 实现 HistoryStore 接口。
func (m *MemoryHistoryStore) Load(_ context.Context, identity string) ([]Conversation, error) {
	m.mu.RLock()
	raw, ok := m.records[StorageKey(identity)]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	var conversations []Conversation
	if err := json.Unmarshal(raw, &conversations); err != nil {
		return nil, xerrors.Wrap(CodeHistoryCorrupted, err, "解析会话历史失败")
	}
	return conversations, nil
}

// Save 实现 HistoryStore 接口。整体覆盖写入。
func (m *MemoryHistoryStore) Save(_ context.Context, identity string, conversations []Conversation) error {
	encoded, err := json.Marshal(conversations)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "序列化会话历史失败")
	}
	m.mu.Lock()
	m.records[StorageKey(identity)] = encoded
	m.mu.Unlock()
	return nil
}

// Close 对内存存储无需操作。
func (m *MemoryHistoryStore) Close() error {
	return nil
}

// Corrupt 将指定身份的存储记录替换为非法内容，仅供测试恢复路径使用。
func (m *MemoryHistoryStore) Corrupt(identity string) {
	m.mu.Lock()
	m.records[StorageKey(identity)] = []byte("{not json")
	m.mu.Unlock()
}

var _ HistoryStore = (*MemoryHistoryStore)(nil)
