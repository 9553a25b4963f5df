package action

import (
	"encoding/json"
	"strings"

	xerrors "SonaChat/internal/errors"
)

// Type 表示嵌入式动作的类型。
type Type string

const (
	TypeSwap      Type = "swap"
	TypeStake     Type = "stake"
	TypeTokenInfo Type = "tokenInfo"
)

// 嵌入式动作的哨兵定界符。开哨兵后紧跟 JSON 载荷，闭哨兵使用最近的 "}}"。
const (
	openSentinel  = "{{CRYPTO_ACTION:"
	closeSentinel = "}}"
)

// TokenInfo 描述动作载荷中的单个代币。
type TokenInfo struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Change24h float64 `json:"change24h"`
}

// Data 是动作的结构化参数，字段均为可选。
type Data struct {
	TokenA   *TokenInfo `json:"tokenA,omitempty"`
	TokenB   *TokenInfo `json:"tokenB,omitempty"`
	APY      float64    `json:"apy,omitempty"`
	Duration string     `json:"duration,omitempty"`
}

// CryptoAction 是从助手回复中解码出的可执行意图。
// 它只在读取时产生，从不落库；Message 为载荷之前的人类可读文本。
type CryptoAction struct {
	Type    Type   `json:"type"`
	Data    Data   `json:"data"`
	Message string `json:"message,omitempty"`
}

// IsValidType 检查动作类型是否为支持的枚举值。
func IsValidType(t Type) bool {
	switch t {
	case TypeSwap, TypeStake, TypeTokenInfo:
		return true
	default:
		return false
	}
}

// Encode 将动作编码为“人类可读前缀 + 哨兵包裹的 JSON 片段”的单条回复文本。
// Message 字段不进入 JSON 载荷，而是作为前缀文本输出。
func Encode(act CryptoAction) (string, error) {
	if !IsValidType(act.Type) {
		return "", xerrors.New(xerrors.CodeInvalidArgument, "不支持的动作类型: "+string(act.Type))
	}

	payload := struct {
		Type Type `json:"type"`
		Data Data `json:"data"`
	}{Type: act.Type, Data: act.Data}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", xerrors.Wrap(xerrors.CodeInvalidArgument, err, "序列化动作载荷失败")
	}

	var builder strings.Builder
	if prefix := strings.TrimSpace(act.Message); prefix != "" {
		builder.WriteString(prefix)
		builder.WriteString(" ")
	}
	builder.WriteString(openSentinel)
	builder.Write(encoded)
	builder.WriteString(closeSentinel)
	return builder.String(), nil
}

// Decode 在任意文本中寻找哨兵并还原动作。
// 文本不含开哨兵、JSON 非法、闭哨兵缺失或类型未知时一律返回 nil，
// 原始文本仍可原样展示；解码失败不是致命错误，也不会修改输入。
//
// 载荷中的嵌套对象会让 JSON 自身的 "}" 与闭哨兵相邻，因此从最近的
// "}}" 开始逐个候选位置尝试解析，首个合法载荷生效。
func Decode(text string) *CryptoAction {
	start := strings.Index(text, openSentinel)
	if start < 0 {
		return nil
	}
	payloadStart := start + len(openSentinel)

	var payload struct {
		Type Type `json:"type"`
		Data Data `json:"data"`
	}
	decoded := false
	for offset := payloadStart; ; {
		idx := strings.Index(text[offset:], closeSentinel)
		if idx < 0 {
			break
		}
		end := offset + idx
		if err := json.Unmarshal([]byte(text[payloadStart:end]), &payload); err == nil {
			decoded = true
			break
		}
		offset = end + 1
	}
	if !decoded || !IsValidType(payload.Type) {
		return nil
	}

	return &CryptoAction{
		Type:    payload.Type,
		Data:    payload.Data,
		Message: strings.TrimSpace(text[:start]),
	}
}
