package chat

import (
	"context"
	"database/sql"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"

	xerrors "SonaChat/internal/errors"
)

// MySQLConfig 描述历史存储所需的 MySQL 连接信息。
type MySQLConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// MySQLHistoryStore 使用 MySQL 按身份保存会话历史。
// 每个身份一行，整个集合序列化为 JSON 整体覆盖，与前端
// localStorage 的存储契约保持一致。
type MySQLHistoryStore struct {
	db *sql.DB
}

// NewMySQLHistoryStore 创建连接池并初始化数据表。
func NewMySQLHistoryStore(ctx context.Context, cfg MySQLConfig) (*MySQLHistoryStore, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("MySQL DSN 不能为空")
	}

	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("连接 MySQL 失败: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	} else {
		db.SetMaxOpenConns(10)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	} else {
		db.SetMaxIdleConns(5)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	} else {
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("无法连接到 MySQL: %w", err)
	}

	store := &MySQLHistoryStore{db: db}
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *MySQLHistoryStore) initSchema(ctx context.Context) error {
	const schema = `CREATE TABLE IF NOT EXISTS chat_history (
        storage_key VARCHAR(255) PRIMARY KEY,
        conversations LONGTEXT NOT NULL,
        updated_at BIGINT NOT NULL
)`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("初始化 chat_history 表失败: %w", err)
	}
	return nil
}

// Load 读取身份对应的会话集合。
func (s *MySQLHistoryStore) Load(ctx context.Context, identity string) ([]Conversation, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT conversations FROM chat_history WHERE storage_key = ?`,
		StorageKey(identity),
	).Scan(&raw)
	if stdErrors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询会话历史失败")
	}

	var conversations []Conversation
	if err := json.Unmarshal(raw, &conversations); err != nil {
		return nil, xerrors.Wrap(CodeHistoryCorrupted, err, "解析会话历史失败")
	}
	return conversations, nil
}

// Save 整体覆盖写入身份对应的会话集合。
func (s *MySQLHistoryStore) Save(ctx context.Context, identity string, conversations []Conversation) error {
	encoded, err := json.Marshal(conversations)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "序列化会话历史失败")
	}

	const stmt = `INSERT INTO chat_history (storage_key, conversations, updated_at)
        VALUES (?, ?, ?)
        ON DUPLICATE KEY UPDATE conversations = VALUES(conversations), updated_at = VALUES(updated_at)`

	if _, err := s.db.ExecContext(ctx, stmt, StorageKey(identity), encoded, time.Now().UnixMilli()); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "写入会话历史失败")
	}
	return nil
}

// Close 关闭底层数据库连接。
func (s *MySQLHistoryStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

var _ HistoryStore = (*MySQLHistoryStore)(nil)
