package analyzer

import (
	"context"
	"strings"
)

// ToolFlag - инструмент хоста, из которого пришло сообщение (значения как у Burp)
type ToolFlag int

const (
	ToolSuite     ToolFlag = 0x00000001
	ToolTarget    ToolFlag = 0x00000002
	ToolProxy     ToolFlag = 0x00000004
	ToolSpider    ToolFlag = 0x00000008
	ToolScanner   ToolFlag = 0x00000010
	ToolIntruder  ToolFlag = 0x00000020
	ToolRepeater  ToolFlag = 0x00000040
	ToolSequencer ToolFlag = 0x00000080
	ToolDecoder   ToolFlag = 0x00000100
	ToolComparer  ToolFlag = 0x00000200
	ToolExtender  ToolFlag = 0x00000400
	// ToolCLI - файлы, переданные команде analyze
	ToolCLI ToolFlag = 0x00000800
)

var toolNames = map[ToolFlag]string{
	ToolSuite:     "suite",
	ToolTarget:    "target",
	ToolProxy:     "proxy",
	ToolSpider:    "spider",
	ToolScanner:   "scanner",
	ToolIntruder:  "intruder",
	ToolRepeater:  "repeater",
	ToolSequencer: "sequencer",
	ToolDecoder:   "decoder",
	ToolComparer:  "comparer",
	ToolExtender:  "extender",
	ToolCLI:       "cli",
}

func (t ToolFlag) String() string {
	if name, ok := toolNames[t]; ok {
		return name
	}
	return "unknown"
}

// ParseToolFlag - обратное преобразование для API, неизвестное имя - ToolProxy
func ParseToolFlag(name string) ToolFlag {
	name = strings.ToLower(strings.TrimSpace(name))
	for flag, n := range toolNames {
		if n == name {
			return flag
		}
	}
	return ToolProxy
}

type manualTriggerKey struct{}

// withManualTrigger помечает контекст как запущенный пользователем из меню
func withManualTrigger(ctx context.Context) context.Context {
	return context.WithValue(ctx, manualTriggerKey{}, true)
}

func isManualTrigger(ctx context.Context) bool {
	v, _ := ctx.Value(manualTriggerKey{}).(bool)
	return v
}
