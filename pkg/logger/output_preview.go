package logger

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// OutputPreview 设备回显的首尾若干行，用于日志
type OutputPreview struct {
	Head  []string `json:"head"`
	Tail  []string `json:"tail,omitempty"`
	Lines int      `json:"lines"`
}

// PreviewOutput 截取回显首尾各 maxLines 行（去除空行）；总行数不超过 maxLines 时 Tail 为空
func PreviewOutput(output string, maxLines int) OutputPreview {
	if maxLines <= 0 {
		maxLines = 3
	}
	output = strings.ReplaceAll(output, "\r\n", "\n")
	lines := make([]string, 0)
	for _, ln := range strings.Split(output, "\n") {
		if strings.TrimSpace(ln) != "" {
			lines = append(lines, ln)
		}
	}

	p := OutputPreview{Lines: len(lines)}
	if len(lines) <= maxLines {
		p.Head = lines
		return p
	}
	p.Head = lines[:maxLines]
	tailStart := len(lines) - maxLines
	if tailStart < maxLines {
		tailStart = maxLines
	}
	p.Tail = lines[tailStart:]
	return p
}

// String 日志友好的单行形式
func (p OutputPreview) String() string {
	var b strings.Builder
	b.WriteString("head: [")
	b.WriteString(strings.Join(p.Head, " ⟩ "))
	b.WriteString("]")
	if len(p.Tail) > 0 {
		b.WriteString(", tail: [")
		b.WriteString(strings.Join(p.Tail, " ⟩ "))
		b.WriteString("]")
	}
	return b.String()
}

// DebugCommandOutput 在 debug 级别记录命令回显的首尾行
func DebugCommandOutput(device, command, output string, maxLines int) {
	if !GetLogger().IsLevelEnabled(logrus.DebugLevel) {
		return
	}
	p := PreviewOutput(output, maxLines)
	if p.Lines == 0 {
		return
	}
	WithFields(logrus.Fields{
		"device":  device,
		"command": command,
		"lines":   p.Lines,
	}).Debug("command echo " + p.String())
}
