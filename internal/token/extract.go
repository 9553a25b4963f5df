package token

import (
	"regexp"
	"strings"
)

// Intent 表示从自由文本中识别出的用户意图。
type Intent string

const (
	IntentSwap      Intent = "swap"
	IntentStake     Intent = "stake"
	IntentTokenInfo Intent = "tokenInfo"
	IntentNone      Intent = "none"
)

// Pair 表示从文本中提取出的交易代币对。From/To 为空字符串表示未识别。
type Pair struct {
	From string
	To   string
}

// knownSymbols 是实体提取器可识别的代币符号白名单。
// 输出永远是该集合的成员，不会凭空构造符号。
var knownSymbols = map[string]struct{}{
	"SOL":   {},
	"BTC":   {},
	"ETH":   {},
	"USDC":  {},
	"USDT":  {},
	"BONK":  {},
	"JUP":   {},
	"RAY":   {},
	"ORCA":  {},
	"SONIC": {},
}

// amountSymbolPattern 匹配“数字 + 可选空白 + 2~10 个大写字母”的形式，
// 例如 "10 SOL" 或 "0.5ETH"。
var amountSymbolPattern = regexp.MustCompile(`\d+(?:\.\d+)?\s*([A-Z]{2,10})`)

// IsKnownSymbol 判断符号是否在白名单内。
func IsKnownSymbol(symbol string) bool {
	_, ok := knownSymbols[symbol]
	return ok
}

// KnownSymbols 返回白名单内的全部代币符号。
func KnownSymbols() []string {
	symbols := make([]string, 0, len(knownSymbols))
	for symbol := range knownSymbols {
		symbols = append(symbols, symbol)
	}
	return symbols
}

// ClassifyIntent 基于关键词对文本做意图分类，优先级从上到下，首个命中即返回。
func ClassifyIntent(text string) Intent {
	lowered := strings.ToLower(text)
	switch {
	case strings.Contains(lowered, "swap") || strings.Contains(lowered, "exchange"):
		return IntentSwap
	case strings.Contains(lowered, "stake") || strings.Contains(lowered, "staking"):
		return IntentStake
	case strings.Contains(lowered, "price") || strings.Contains(lowered, "info"):
		return IntentTokenInfo
	default:
		return IntentNone
	}
}

// ExtractTokenPair 从文本中提取交易代币对。
// 第一轮按空白切分，在白名单中匹配大写符号，取前两个不同的命中；
// 若不足两个，第二轮按“数量 + 符号”模式补齐。
// 两轮都只识别到同一个符号时 To 保持为空，由调用方视为数据不足。
func ExtractTokenPair(text string) Pair {
	pair := Pair{}

	for _, field := range strings.Fields(text) {
		symbol := trimSymbol(field)
		if !IsKnownSymbol(symbol) {
			continue
		}
		if pair.From == "" {
			pair.From = symbol
			continue
		}
		if symbol != pair.From {
			pair.To = symbol
			return pair
		}
	}
	if pair.From != "" && pair.To != "" {
		return pair
	}

	for _, match := range amountSymbolPattern.FindAllStringSubmatch(text, -1) {
		symbol := match[1]
		if !IsKnownSymbol(symbol) {
			continue
		}
		if pair.From == "" {
			pair.From = symbol
			continue
		}
		if symbol != pair.From && pair.To == "" {
			pair.To = symbol
			break
		}
	}
	return pair
}

// ExtractSingleToken 返回文本中出现的第一个白名单代币符号，未找到时返回空串。
func ExtractSingleToken(text string) string {
	for _, field := range strings.Fields(text) {
		symbol := trimSymbol(field)
		if IsKnownSymbol(symbol) {
			return symbol
		}
	}
	for _, match := range amountSymbolPattern.FindAllStringSubmatch(text, -1) {
		if IsKnownSymbol(match[1]) {
			return match[1]
		}
	}
	return ""
}

// trimSymbol 去掉符号两侧的标点，例如 "USDC?" 或 "(SOL)"。
func trimSymbol(field string) string {
	return strings.TrimFunc(field, func(r rune) bool {
		return r < 'A' || r > 'Z'
	})
}
