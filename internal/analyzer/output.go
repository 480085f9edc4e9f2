package analyzer

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// Output - консоль расширения: обычный вывод и вывод ошибок
type Output interface {
	PrintOutput(msg string)
	PrintError(msg string)
}

// ConsoleOutput пишет сообщения построчно в stdout и stderr
type ConsoleOutput struct {
	out io.Writer
	err io.Writer
	mu  sync.Mutex
}

func NewConsoleOutput() *ConsoleOutput {
	return &ConsoleOutput{out: os.Stdout, err: os.Stderr}
}

// NewWriterOutput - вывод в произвольные writers (файл, буфер)
func NewWriterOutput(out, errOut io.Writer) *ConsoleOutput {
	return &ConsoleOutput{out: out, err: errOut}
}

func (c *ConsoleOutput) PrintOutput(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, msg)
}

func (c *ConsoleOutput) PrintError(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.err, msg)
}
