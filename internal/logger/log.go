// Package logger provides named, levelled loggers with colored output.
//
//	log := logger.Get("Session")
//	log.Emit(logger.DEBUG, "opened %s\n", name)
//
// Messages below the minimum level (WARNING unless changed with SetLevel)
// are discarded.
package logger

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"
)

type LogStatus int

const (
	VERBOSE LogStatus = iota
	DEBUG
	INFO
	SUCCESS
	WARNING
	ERROR
	FATAL
)

// DefaultLevel is the minimum level of a fresh manager.
const DefaultLevel = WARNING

func (e LogStatus) String() string {
	if e < VERBOSE || e > FATAL {
		return "?"
	}
	return []string{
		"V",
		"D",
		"I",
		"✓",
		"!",
		"!!",
		"PANIC",
	}[e]
}

func (e LogStatus) Color() *color.Color {
	if e < VERBOSE || e > FATAL {
		return color.New(color.FgWhite)
	}
	return []*color.Color{
		color.New(color.FgWhite, color.Italic),                //Verbose
		color.New(color.FgWhite, color.Italic),                //Debug
		color.New(color.FgWhite),                              //Info
		color.New(color.FgHiGreen),                            //Success
		color.New(color.FgYellow, color.Underline),            //Warning
		color.New(color.FgHiRed, color.Bold),                  //Error
		color.New(color.FgHiRed, color.Bold, color.Underline), //PANIC
	}[e]
}

// ParseLevel maps a level name such as "debug" or "WARNING" to its status.
func ParseLevel(name string) (LogStatus, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "VERBOSE":
		return VERBOSE, nil
	case "DEBUG":
		return DEBUG, nil
	case "INFO":
		return INFO, nil
	case "SUCCESS":
		return SUCCESS, nil
	case "WARNING", "WARN":
		return WARNING, nil
	case "ERROR":
		return ERROR, nil
	case "FATAL":
		return FATAL, nil
	}
	return DefaultLevel, fmt.Errorf("unknown log level %q", name)
}

type Logger interface {
	Emit(LogStatus, string, ...interface{})
}

type loggerImpl struct {
	name string
}

func (l *loggerImpl) Emit(status LogStatus, message string, interpolations ...interface{}) {
	Log.Emit(status, l.name, message, interpolations...)
}

type LoggerManager interface {
	GetLogger(string) Logger
	Emit(LogStatus, string, string, ...interface{})
	SetLevel(LogStatus)
	SetOutput(io.Writer)
}

var Log LoggerManager = NewManager(color.Output)

type loggerMgr struct {
	mu     sync.Mutex
	offset int
	level  LogStatus
	out    io.Writer
}

// NewManager returns a manager writing to out at DefaultLevel.
func NewManager(out io.Writer) LoggerManager {
	return &loggerMgr{level: DefaultLevel, out: out}
}

func (l *loggerMgr) GetLogger(name string) Logger {
	return &loggerImpl{name: name}
}

func (l *loggerMgr) SetLevel(level LogStatus) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

func (l *loggerMgr) SetOutput(out io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out = out
}

func (l *loggerMgr) Emit(status LogStatus, name string, message string, interpolations ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if status < l.level {
		return
	}

	if len(name) > l.offset {
		l.offset = len(name)
	}
	padding := strings.Repeat(" ", l.offset-len(name))
	msg := fmt.Sprintf("[%s] %s(%s) %s", name, padding, status, fmt.Sprintf(message, interpolations...))
	if !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}

	status.Color().Fprint(l.out, msg)
}

func Get(name string) Logger {
	return Log.GetLogger(name)
}

// SetLevel changes the minimum level of the shared manager.
func SetLevel(level LogStatus) {
	Log.SetLevel(level)
}

// SetOutput redirects the shared manager.
func SetOutput(out io.Writer) {
	Log.SetOutput(out)
}
