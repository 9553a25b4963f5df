// Package rule 实现一个确定性的推理后端：不依赖外部大模型，
// 通过关键词与符号抽取直接合成带结构化动作的回复。
// 适合离线部署、演示环境以及作为外部模型故障时的兜底。
package rule

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"SonaChat/internal/action"
	"SonaChat/internal/llm"
	"SonaChat/internal/market"
	"SonaChat/internal/token"
	"SonaChat/pkg/logger"
)

const (
	defaultStakeAPY      = 7.2
	defaultStakeDuration = "flexible"
)

// Provider 是基于规则的推理后端。
type Provider struct {
	quotes market.Source
}

// NewProvider 创建规则后端。quotes 为空时所有行情字段降级为零值。
func NewProvider(quotes market.Source) *Provider {
	return &Provider{quotes: quotes}
}

// Generate 解析最近一条用户消息并合成回复。
func (p *Provider) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	text := lastUserTurn(req.History)
	if strings.TrimSpace(text) == "" {
		return &llm.Response{Reply: "How can I help you with crypto today?"}, nil
	}

	switch token.ClassifyIntent(text) {
	case token.IntentSwap:
		return p.swapReply(ctx, text)
	case token.IntentStake:
		return p.stakeReply(ctx, text)
	case token.IntentTokenInfo:
		return p.tokenInfoReply(ctx, text)
	default:
		return &llm.Response{
			Reply: "I can help you swap tokens, stake for rewards, or look up token prices. What would you like to do?",
		}, nil
	}
}

func (p *Provider) swapReply(ctx context.Context, text string) (*llm.Response, error) {
	pair := token.ExtractTokenPair(text)
	if pair.From == "" || pair.To == "" {
		return &llm.Response{
			Reply: "Which tokens would you like to swap? For example: swap 10 SOL for USDC.",
		}, nil
	}

	reply, err := action.Encode(action.CryptoAction{
		Type: action.TypeSwap,
		Data: action.Data{
			TokenA: p.lookup(ctx, pair.From),
			TokenB: p.lookup(ctx, pair.To),
		},
		Message: fmt.Sprintf("Here's the %s to %s swap you asked for. Review the details and confirm.", pair.From, pair.To),
	})
	if err != nil {
		return nil, err
	}
	return &llm.Response{Reply: reply}, nil
}

func (p *Provider) stakeReply(ctx context.Context, text string) (*llm.Response, error) {
	symbol := token.ExtractSingleToken(text)
	if symbol == "" {
		symbol = "SOL"
	}

	reply, err := action.Encode(action.CryptoAction{
		Type: action.TypeStake,
		Data: action.Data{
			TokenA:   p.lookup(ctx, symbol),
			APY:      defaultStakeAPY,
			Duration: defaultStakeDuration,
		},
		Message: fmt.Sprintf("You can stake %s to earn rewards. Here's the current offer.", symbol),
	})
	if err != nil {
		return nil, err
	}
	return &llm.Response{Reply: reply}, nil
}

func (p *Provider) tokenInfoReply(ctx context.Context, text string) (*llm.Response, error) {
	symbol := token.ExtractSingleToken(text)
	if symbol == "" {
		return &llm.Response{
			Reply: "Which token are you interested in? I can look up prices for " + strings.Join(token.KnownSymbols(), ", ") + ".",
		}, nil
	}

	reply, err := action.Encode(action.CryptoAction{
		Type: action.TypeTokenInfo,
		Data: action.Data{
			TokenA: p.lookup(ctx, symbol),
		},
		Message: fmt.Sprintf("Here's the latest on %s.", symbol),
	})
	if err != nil {
		return nil, err
	}
	return &llm.Response{Reply: reply}, nil
}

// lookup 查询行情。失败时降级为只带符号的条目，不中断回复合成。
func (p *Provider) lookup(ctx context.Context, symbol string) *action.TokenInfo {
	info := &action.TokenInfo{Symbol: symbol}
	if p.quotes == nil {
		return info
	}
	quote, err := p.quotes.Quote(ctx, symbol)
	if err != nil {
		logger.L().Warn("查询行情失败，按价格未知降级",
			slog.String("symbol", symbol),
			slog.Any("error", err),
		)
		return info
	}
	info.Price = quote.Price
	info.Change24h = quote.Change24h
	return info
}

func lastUserTurn(history []llm.Turn) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == "user" {
			return history[i].Content
		}
	}
	return ""
}

var _ llm.Client = (*Provider)(nil)
