package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	xerrors "SonaChat/internal/errors"
)

// RedisConfig 描述历史存储所需的 Redis 连接信息。
type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

// RedisHistoryStore 使用 Redis 字符串键保存会话历史，
// 键名与前端 localStorage 的 chat_history_<address> 约定一致。
type RedisHistoryStore struct {
	client *redis.Client
}

// NewRedisHistoryStore 创建 Redis 历史存储实例。
func NewRedisHistoryStore(ctx context.Context, cfg RedisConfig) (*RedisHistoryStore, error) {
	if cfg.Address == "" {
		return nil, errors.New("Redis address 不能为空")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("连接 Redis 失败: %w", err)
	}
	return &RedisHistoryStore{client: client}, nil
}

// Load 读取身份对应的会话集合。
func (s *RedisHistoryStore) Load(ctx context.Context, identity string) ([]Conversation, error) {
	raw, err := s.client.Get(ctx, StorageKey(identity)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "读取会话历史失败")
	}

	var conversations []Conversation
	if err := json.Unmarshal(raw, &conversations); err != nil {
		return nil, xerrors.Wrap(CodeHistoryCorrupted, err, "解析会话历史失败")
	}
	return conversations, nil
}

// Save 整体覆盖写入身份对应的会话集合。
func (s *RedisHistoryStore) Save(ctx context.Context, identity string, conversations []Conversation) error {
	encoded, err := json.Marshal(conversations)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "序列化会话历史失败")
	}
	if err := s.client.Set(ctx, StorageKey(identity), encoded, 0).Err(); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "写入会话历史失败")
	}
	return nil
}

// Close 关闭 Redis 连接。
func (s *RedisHistoryStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

var _ HistoryStore = (*RedisHistoryStore)(nil)
