// Package mode 将会话模式映射为助手人格，决定发给推理后端的系统提示词。
package mode

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"SonaChat/internal/chat"
)

// Persona 描述一个模式对应的助手人格。
type Persona struct {
	Mode         chat.Mode `yaml:"mode"`
	Description  string    `yaml:"description"`
	SystemPrompt string    `yaml:"system_prompt"`
}

const basePrompt = `You are a helpful agent that can interact onchain for the user.
If someone asks about tokens or balances, check them for the user.
If someone wants to swap or stake, guide them through the process.
Be concise and helpful with your responses.`

// defaultPersonas 是内建的人格表。部署方可以通过 YAML 文件覆盖。
var defaultPersonas = map[chat.Mode]Persona{
	chat.ModeGeneral: {
		Mode:         chat.ModeGeneral,
		Description:  "Ask me anything about crypto, blockchain, or general questions.",
		SystemPrompt: basePrompt,
	},
	chat.ModeTrading: {
		Mode:         chat.ModeTrading,
		Description:  "I can help you with trading strategies, market analysis, and token swaps.",
		SystemPrompt: basePrompt + "\nFocus on trading strategies, market analysis, and token swaps.",
	},
	chat.ModePortfolio: {
		Mode:         chat.ModePortfolio,
		Description:  "Let's analyze your portfolio, track performance, and optimize your holdings.",
		SystemPrompt: basePrompt + "\nFocus on portfolio analysis, performance tracking, and holding optimization.",
	},
	chat.ModeMarket: {
		Mode:         chat.ModeMarket,
		Description:  "Ask me about market trends, price predictions, and latest crypto news.",
		SystemPrompt: basePrompt + "\nFocus on market trends, price movements, and crypto news.",
	},
}

// Registry 保存模式到人格的映射。查询未知模式时退回 general 人格，
// 保证上游永远能拿到一个可用的系统提示词。
type Registry struct {
	personas map[chat.Mode]Persona
}

// NewRegistry 返回内建人格表。
func NewRegistry() *Registry {
	personas := make(map[chat.Mode]Persona, len(defaultPersonas))
	for m, p := range defaultPersonas {
		personas[m] = p
	}
	return &Registry{personas: personas}
}

// LoadRegistry 从 YAML 文件加载人格覆盖。文件中出现的模式覆盖内建
// 条目，未出现的模式保留内建人格；path 为空时直接返回内建表。
func LoadRegistry(path string) (*Registry, error) {
	registry := NewRegistry()
	if strings.TrimSpace(path) == "" {
		return registry, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取人格配置失败: %w", err)
	}

	var overrides struct {
		Personas []Persona `yaml:"personas"`
	}
	if err := yaml.Unmarshal(raw, &overrides); err != nil {
		return nil, fmt.Errorf("解析人格配置失败: %w", err)
	}

	for _, p := range overrides.Personas {
		if !chat.IsValidMode(p.Mode) {
			return nil, fmt.Errorf("人格配置包含未知模式: %q", p.Mode)
		}
		if strings.TrimSpace(p.SystemPrompt) == "" {
			return nil, fmt.Errorf("模式 %q 的 system_prompt 不能为空", p.Mode)
		}
		registry.personas[p.Mode] = p
	}
	return registry, nil
}

// Lookup 返回模式对应的人格，未知模式退回 general。
func (r *Registry) Lookup(m chat.Mode) Persona {
	if p, ok := r.personas[m]; ok {
		return p
	}
	return r.personas[chat.ModeGeneral]
}

// Describe 返回模式的简短描述，供接口层展示。
func (r *Registry) Describe(m chat.Mode) string {
	return r.Lookup(m).Description
}
