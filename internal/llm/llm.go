// Package llm 定义推理后端的统一调用接口。
package llm

import "context"

// Turn 是会话历史中的一条消息。
type Turn struct {
	Role    string
	Content string
}

// Request 描述发送给推理后端的完整上下文：
// 活跃会话的全部历史加上模式解析得到的系统提示词。
type Request struct {
	SystemPrompt string
	History      []Turn
}

// Response 是推理后端生成的回复。回复文本可能在正文之后携带
// 结构化动作片段，后端按原样返回、不做剥离。
type Response struct {
	Reply string
}

// Client 定义了调用推理后端的统一接口。
type Client interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}
