package chat

import (
	"regexp"
	"strings"
)

const (
	maxNameWords = 6
	maxNameLen   = 50
	ellipsis     = "..."
)

// nonWordPattern 匹配除单词字符与空白外的所有字符。
var nonWordPattern = regexp.MustCompile(`[^\w\s]`)

// GenerateName 从首条用户消息派生会话名称：
// 去掉特殊字符、折叠空白后取前 6 个词，超出部分以省略号标记，
// 最终长度硬限制在 50 个字符以内。无法派生时退回 DefaultName。
func GenerateName(content string) string {
	cleaned := nonWordPattern.ReplaceAllString(content, " ")
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	if cleaned == "" {
		return DefaultName
	}

	words := strings.Split(cleaned, " ")
	name := strings.Join(words[:min(len(words), maxNameWords)], " ")
	if len(words) > maxNameWords {
		name += ellipsis
	}

	if len(name) > maxNameLen {
		name = name[:maxNameLen-len(ellipsis)] + ellipsis
	}
	return name
}
