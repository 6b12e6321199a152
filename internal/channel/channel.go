// Package channel implements the outbound alert channels. Every channel
// decides at construction time whether it runs live or simulated; the send
// path itself never branches on configuration.
package channel

import (
	"context"
	"fmt"
	"time"
)

// Channel sends a formatted alert to a recipient set.
type Channel interface {
	Name() string
	SendAlert(ctx context.Context, recipients []string, content string) (*Result, error)
}

// Result describes a completed (or simulated) delivery.
type Result struct {
	Channel   string    `json:"channel"`
	Mode      string    `json:"mode"` // "live" or "simulation"
	ToUser    string    `json:"toUser,omitempty"`
	Content   string    `json:"content,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	ModeLive       = "live"
	ModeSimulation = "simulation"
)

// timeLayout renders the local timestamp embedded in alert bodies.
const timeLayout = "2006/01/02 15:04:05"

// FormatKeywordAlert builds the push/email alert body. Field order is part of
// the human-readable contract; downstream consumers parse this text.
func FormatKeywordAlert(keyword, message, source string, at time.Time) string {
	return fmt.Sprintf("【微信监听】检测到关键字\"%s\"\n\n消息内容：%s\n消息来源：%s\n时间：%s",
		keyword, message, source, at.Local().Format(timeLayout))
}

// FormatSMSAlert builds the SMS alert body. Shorter than the push body: no
// source line, single newline separators.
func FormatSMSAlert(keyword, message string, at time.Time) string {
	return fmt.Sprintf("【微信监听】检测到关键字\"%s\"\n消息内容：%s\n时间：%s",
		keyword, message, at.Local().Format(timeLayout))
}

// FormatTestMessage builds the body for operator-triggered test sends.
func FormatTestMessage(content string, at time.Time) string {
	return fmt.Sprintf("【测试消息】%s\n\n发送时间：%s", content, at.Local().Format(timeLayout))
}
