package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"SonaChat/internal/api"
	"SonaChat/internal/chat"
	"SonaChat/internal/config"
	"SonaChat/internal/events"
	"SonaChat/internal/llm"
	"SonaChat/internal/llm/openai"
	"SonaChat/internal/llm/rule"
	"SonaChat/internal/market"
	"SonaChat/internal/mode"
	"SonaChat/internal/observability/metrics"
	"SonaChat/internal/session"
	"SonaChat/internal/wallet"
	"SonaChat/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// main 是 SonaChat 守护进程的入口。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("sonachatd 运行失败: %v", err)
	}
}

func run(ctx context.Context) error {
	configPath := os.Getenv(config.EnvConfigPath)
	if configPath == "" {
		configPath = filepath.Join("configs", "sonachat.json")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if err := logger.Init(cfg.Logging.ToLogger()); err != nil {
		return err
	}
	defer logger.Sync()

	if err := os.MkdirAll(cfg.Runtime.DataDir, 0o755); err != nil {
		return err
	}

	// 会话历史存储。
	store, err := createHistoryStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	// 变更事件通道。
	publisher, err := createPublisher(cfg)
	if err != nil {
		return err
	}
	defer publisher.Close()

	// 行情源，规则后端与余额展示共用。
	quotes := createQuoteSource(cfg)

	// 推理后端。
	backend, err := createBackend(cfg, quotes)
	if err != nil {
		return err
	}

	personas, err := mode.LoadRegistry(cfg.Modes.PersonasFile)
	if err != nil {
		return err
	}

	state := chat.NewState(store, chat.WithPublisher(publisher))
	svc := session.NewService(state, backend, personas)

	var balances *wallet.BalanceService
	if strings.TrimSpace(cfg.Wallet.RPCURL) != "" {
		balances, err = wallet.NewBalanceService(ctx, wallet.BalanceConfig{
			RPCURL: cfg.Wallet.RPCURL,
			Symbol: cfg.Wallet.Symbol,
		})
		if err != nil {
			return err
		}
		defer balances.Close()
	}

	server := api.NewServer(cfg.Server.Address, svc, balances)

	if cfg.Server.MetricsAddress != "" {
		go func() {
			if err := metrics.StartServer(ctx, cfg.Server.MetricsAddress); err != nil && !errors.Is(err, context.Canceled) {
				logger.L().Error("指标服务退出", "error", err)
			}
		}()
	}

	logger.L().Info("sonachatd 启动", "address", cfg.Server.Address)
	if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func createHistoryStore(ctx context.Context, cfg *config.Config) (chat.HistoryStore, error) {
	switch cfg.Storage.History.Driver {
	case "", "memory":
		return chat.NewMemoryHistoryStore(), nil
	case "mysql":
		return chat.NewMySQLHistoryStore(ctx, chat.MySQLConfig{
			DSN:             cfg.Storage.History.MySQL.DSN,
			MaxOpenConns:    cfg.Storage.History.MySQL.MaxOpenConns,
			MaxIdleConns:    cfg.Storage.History.MySQL.MaxIdleConns,
			ConnMaxLifetime: cfg.Storage.History.MySQL.MySQLConnMaxLifetime(),
		})
	case "redis":
		return chat.NewRedisHistoryStore(ctx, chat.RedisConfig{
			Address:  cfg.Storage.History.Redis.Address,
			Password: cfg.Storage.History.Redis.Password,
			DB:       cfg.Storage.History.Redis.DB,
		})
	default:
		return nil, fmt.Errorf("未知的历史存储驱动: %s", cfg.Storage.History.Driver)
	}
}

func createPublisher(cfg *config.Config) (events.Publisher, error) {
	switch cfg.Events.Driver {
	case "", "memory":
		return events.NewMemoryPublisher(1024), nil
	case "none":
		return events.NopPublisher{}, nil
	case "rabbitmq":
		return events.NewRabbitMQPublisher(events.RabbitMQConfig{
			URL:      cfg.Events.RabbitMQ.URL,
			Exchange: cfg.Events.RabbitMQ.Exchange,
		})
	default:
		return nil, fmt.Errorf("未知的事件驱动: %s", cfg.Events.Driver)
	}
}

func createQuoteSource(cfg *config.Config) market.Source {
	var source market.Source = market.NewClient(market.Config{
		BaseURL: cfg.Market.BaseURL,
		APIKey:  cfg.Market.APIKey,
	})

	if cfg.Market.CacheRedis && cfg.Storage.History.Redis.Address != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Storage.History.Redis.Address,
			Password: cfg.Storage.History.Redis.Password,
			DB:       cfg.Storage.History.Redis.DB,
		})
		source = market.NewCachedSource(source, client, cfg.Market.CacheTTL())
	}
	return source
}

func createBackend(cfg *config.Config, quotes market.Source) (llm.Client, error) {
	switch cfg.LLM.Provider {
	case "", "rule":
		return rule.NewProvider(quotes), nil
	case "openai":
		apiKey := strings.TrimSpace(cfg.LLM.OpenAI.APIKey)
		if apiKey == "" {
			apiKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
		}
		if apiKey == "" {
			return nil, errors.New("OpenAI provider 需要配置 api_key 或 OPENAI_API_KEY 环境变量")
		}
		return openai.NewClient(openai.Config{
			APIKey:      apiKey,
			BaseURL:     cfg.LLM.OpenAI.BaseURL,
			Model:       cfg.LLM.OpenAI.Model,
			Temperature: cfg.LLM.OpenAI.Temperature,
			Timeout:     cfg.LLM.OpenAI.OpenAITimeout(),
		})
	default:
		return nil, fmt.Errorf("未知的推理 provider: %s", cfg.LLM.Provider)
	}
}
