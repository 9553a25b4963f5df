// Package market 提供代币行情查询能力，行情取自 CoinGecko 的
// simple/price 接口。行情失败永远不应让上层流程中断，调用方
// 拿到错误后按“价格未知”降级处理。
package market

import "context"

// Quote 是一个代币的即时行情。
type Quote struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Change24h float64 `json:"change24h"`
}

// Source 定义按符号查询行情的统一接口。
type Source interface {
	Quote(ctx context.Context, symbol string) (*Quote, error)
}

// symbolToID 将内建符号映射到 CoinGecko 的币种 ID。
var symbolToID = map[string]string{
	"SOL":   "solana",
	"BTC":   "bitcoin",
	"ETH":   "ethereum",
	"USDC":  "usd-coin",
	"USDT":  "tether",
	"BONK":  "bonk",
	"JUP":   "jupiter-exchange-solana",
	"RAY":   "raydium",
	"ORCA":  "orca",
	"SONIC": "sonic-svm",
}
