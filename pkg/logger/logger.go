package logger

import (
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// Level represents the severity level of a log message.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	NoticeLevel
	ErrorLevel
)

// ParseLevel converts a level name such as "debug" or "ERROR" to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel, nil
	case "", "info":
		return InfoLevel, nil
	case "notice":
		return NoticeLevel, nil
	case "error":
		return ErrorLevel, nil
	}
	return InfoLevel, fmt.Errorf("unknown log level %q", s)
}

type Chain int

const (
	None Chain = iota
	Eth
	Base
	Pol
	Arb
	Sepolia
	BaseSepolia
	Local
)

var chainIDMap = map[int]Chain{
	1:        Eth,
	8453:     Base,
	137:      Pol,
	42161:    Arb,
	11155111: Sepolia,
	84532:    BaseSepolia,
	1337:     Local,
	31337:    Local,
}

var chainPrefixes = map[Chain]string{
	None:        "",
	Eth:         "[ETH]   ",
	Base:        "[BASE]  ",
	Pol:         "[POL]   ",
	Arb:         "[ARB]   ",
	Sepolia:     "[SEP]   ",
	BaseSepolia: "[BSEP]  ",
	Local:       "[LOCAL] ",
}

var colors = map[Chain]color.Attribute{
	None:        color.FgWhite,
	Eth:         color.FgHiGreen,
	Base:        color.FgBlue,
	Pol:         color.FgMagenta,
	Arb:         color.FgHiBlue,
	Sepolia:     color.FgGreen,
	BaseSepolia: color.FgCyan,
	Local:       color.FgYellow,
}

// Logger is a simple interface for logging messages.
type Logger interface {
	// Info logs an informational message.
	Info(format string, args ...interface{})
	InfoWithChain(chainID int, format string, args ...interface{})

	// Error logs an error message.
	Error(format string, args ...interface{})
	ErrorWithChain(chainID int, format string, args ...interface{})

	// Debug logs a debug message.
	Debug(format string, args ...interface{})
	DebugWithChain(chainID int, format string, args ...interface{})

	// Notice logs a notice message.
	Notice(format string, args ...interface{})
	NoticeWithChain(chainID int, format string, args ...interface{})

	// Named returns a logger that tags every message with the given component.
	Named(component string) Logger
}

// EmptyLogger is a simple implementation of the Logger interface that does nothing.
type EmptyLogger struct{}

var _ Logger = (*EmptyLogger)(nil)

func (l *EmptyLogger) Info(_ string, _ ...interface{})                   {}
func (l *EmptyLogger) InfoWithChain(_ int, _ string, _ ...interface{})   {}
func (l *EmptyLogger) Error(_ string, _ ...interface{})                  {}
func (l *EmptyLogger) ErrorWithChain(_ int, _ string, _ ...interface{})  {}
func (l *EmptyLogger) Debug(_ string, _ ...interface{})                  {}
func (l *EmptyLogger) DebugWithChain(_ int, _ string, _ ...interface{})  {}
func (l *EmptyLogger) Notice(_ string, _ ...interface{})                 {}
func (l *EmptyLogger) NoticeWithChain(_ int, _ string, _ ...interface{}) {}
func (l *EmptyLogger) Named(_ string) Logger                             { return l }

// StdLogger logs messages to the console through the standard log package.
type StdLogger struct {
	enableColoring bool
	level          Level
	component      string
	out            *log.Logger
	mu             *sync.Mutex
}

var _ Logger = (*StdLogger)(nil)

func NewStdLogger(enableColoring bool, level Level) *StdLogger {
	return &StdLogger{
		enableColoring: enableColoring,
		level:          level,
		out:            log.Default(),
		mu:             &sync.Mutex{},
	}
}

// WithOutput returns a copy of the logger writing to out, mostly useful in tests.
func (l *StdLogger) WithOutput(out *log.Logger) *StdLogger {
	cp := *l
	cp.out = out
	return &cp
}

// Named shares the output lock with its parent so interleaved lines stay whole.
func (l *StdLogger) Named(component string) Logger {
	cp := *l
	if cp.component != "" {
		component = cp.component + "." + component
	}
	cp.component = component
	return &cp
}

// formatMessage formats the log message with the level, component and chain prefixes, and coloring if enabled.
func (l *StdLogger) formatMessage(level Level, chain Chain, format string) string {
	chainPrefix := chainPrefixes[chain]
	if l.enableColoring && chainPrefix != "" {
		chainPrefix = color.New(colors[chain]).Sprint(chainPrefix)
	}

	var levelStr string
	switch level {
	case DebugLevel:
		levelStr = "[DEBUG]  "
	case InfoLevel:
		levelStr = "[INFO]   "
	case NoticeLevel:
		levelStr = "[NOTICE] "
	case ErrorLevel:
		levelStr = "[ERROR]  "
	}
	if l.enableColoring && level == ErrorLevel {
		levelStr = color.New(color.FgRed).Sprint(levelStr)
	}

	componentPrefix := ""
	if l.component != "" {
		componentPrefix = "[" + l.component + "] "
	}

	return levelStr + chainPrefix + componentPrefix + format
}

func (l *StdLogger) logf(level Level, chainID int, format string, args ...interface{}) {
	if l.level > level {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out.Printf(l.formatMessage(level, chainIDMap[chainID], format), args...)
}

func (l *StdLogger) Info(format string, args ...interface{}) {
	l.logf(InfoLevel, 0, format, args...)
}

func (l *StdLogger) InfoWithChain(chainID int, format string, args ...interface{}) {
	l.logf(InfoLevel, chainID, format, args...)
}

func (l *StdLogger) Error(format string, args ...interface{}) {
	l.logf(ErrorLevel, 0, format, args...)
}

func (l *StdLogger) ErrorWithChain(chainID int, format string, args ...interface{}) {
	l.logf(ErrorLevel, chainID, format, args...)
}

func (l *StdLogger) Debug(format string, args ...interface{}) {
	l.logf(DebugLevel, 0, format, args...)
}

func (l *StdLogger) DebugWithChain(chainID int, format string, args ...interface{}) {
	l.logf(DebugLevel, chainID, format, args...)
}

func (l *StdLogger) Notice(format string, args ...interface{}) {
	l.logf(NoticeLevel, 0, format, args...)
}

func (l *StdLogger) NoticeWithChain(chainID int, format string, args ...interface{}) {
	l.logf(NoticeLevel, chainID, format, args...)
}
