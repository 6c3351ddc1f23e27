package utils

import (
	"strings"
	"unicode"
)

// maxLogUsernameLen 日志中用户名保留的最大字符数
const maxLogUsernameLen = 50

// SanitizeLogMessage 清理来自客户端的日志字段，换行和制表符替换为空格，其余控制字符丢弃
// 保证一个字段不会把一条日志拆成多行
func SanitizeLogMessage(msg string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			return ' '
		case unicode.IsControl(r) || !unicode.IsPrint(r) && !unicode.IsSpace(r):
			return -1
		}
		return r
	}, msg)
}

// SanitizeLogUsername 按字符截断过长的用户名后再清理
func SanitizeLogUsername(username string) string {
	if runes := []rune(username); len(runes) > maxLogUsernameLen {
		username = string(runes[:maxLogUsernameLen]) + "..."
	}
	return SanitizeLogMessage(username)
}
