package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// LogLevel определяет уровни логирования
type LogLevel int

const (
	TRACE LogLevel = iota
	DEBUG
	INFO
	WARN
	ERROR
)

// String возвращает строковое представление уровня логирования
func (l LogLevel) String() string {
	switch l {
	case TRACE:
		return "TRACE"
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel разбирает уровень из строки конфигурации, по умолчанию INFO
func ParseLevel(s string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return TRACE
	case "DEBUG":
		return DEBUG
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

// Options настройки системы логирования
type Options struct {
	Dir          string   // каталог для файлов логов, "" - без файлов
	ConsoleLevel LogLevel // минимальный уровень для консоли
	FileLevel    LogLevel // минимальный уровень для файла
	Console      io.Writer
}

// Logger логгер компонента
type Logger struct {
	component       string
	consoleLogger   *log.Logger
	fileLogger      *log.Logger
	file            *os.File
	minConsoleLevel atomic.Int32 // LogLevel, меняется через LoggerManager.SetLogLevel
	minFileLevel    atomic.Int32
}

var (
	stateMu sync.RWMutex
	// До инициализации логирование выключено
	initialized bool
	options     Options
	// defaultLogger используется функциями пакета
	defaultLogger = &Logger{}
)

// InitLogger включает логирование
func InitLogger(opts Options) error {
	if opts.Console == nil {
		opts.Console = os.Stdout
	}
	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0755); err != nil {
			return fmt.Errorf("ошибка создания директории логов: %w", err)
		}
	}

	stateMu.Lock()
	options = opts
	initialized = true
	stateMu.Unlock()

	l, err := NewLogger("")
	if err != nil {
		return err
	}
	stateMu.Lock()
	defaultLogger = l
	stateMu.Unlock()
	return nil
}

// InitDefaultLogger включает логирование в консоль без файлов
func InitDefaultLogger(level LogLevel) {
	_ = InitLogger(Options{ConsoleLevel: level, FileLevel: level})
}

// CloseLogger закрывает файлы и выключает логирование
func CloseLogger() {
	_ = GetLoggerManager().CloseAll()
	stateMu.Lock()
	if defaultLogger != nil {
		_ = defaultLogger.Close()
	}
	defaultLogger = &Logger{}
	initialized = false
	stateMu.Unlock()
}

// NewLogger создаёт логгер компонента по текущим настройкам.
// Если логирование не инициализировано, логгер молчит.
func NewLogger(component string) (*Logger, error) {
	stateMu.RLock()
	opts, on := options, initialized
	stateMu.RUnlock()

	l := &Logger{component: component}
	l.setLevels(opts.ConsoleLevel, opts.FileLevel)
	if !on {
		return l, nil
	}

	prefix := ""
	if component != "" {
		prefix = "[" + component + "] "
	}
	l.consoleLogger = log.New(opts.Console, prefix, log.LstdFlags)

	if opts.Dir != "" {
		name := component
		if name == "" {
			name = "terra2d"
		}
		timestamp := time.Now().Format("2006-01-02_15-04-05")
		filename := filepath.Join(opts.Dir, fmt.Sprintf("%s_%s.log", name, timestamp))
		file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return nil, fmt.Errorf("ошибка создания файла логов: %w", err)
		}
		l.file = file
		l.fileLogger = log.New(file, prefix, log.LstdFlags|log.Lmicroseconds)
	}
	return l, nil
}

// Close закрывает файл логгера
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	l.fileLogger = nil
	return err
}

// Component имя компонента
func (l *Logger) Component() string {
	return l.component
}

func (l *Logger) setLevels(console, file LogLevel) {
	l.minConsoleLevel.Store(int32(console))
	l.minFileLevel.Store(int32(file))
}

func (l *Logger) logf(level LogLevel, format string, args ...interface{}) {
	if l == nil || (l.consoleLogger == nil && l.fileLogger == nil) {
		return
	}
	message := fmt.Sprintf("[%s] %s", level.String(), fmt.Sprintf(format, args...))
	if l.fileLogger != nil && int32(level) >= l.minFileLevel.Load() {
		l.fileLogger.Println(message)
	}
	if l.consoleLogger != nil && int32(level) >= l.minConsoleLevel.Load() {
		l.consoleLogger.Println(message)
	}
}

func (l *Logger) Trace(format string, args ...interface{}) { l.logf(TRACE, format, args...) }
func (l *Logger) Debug(format string, args ...interface{}) { l.logf(DEBUG, format, args...) }
func (l *Logger) Info(format string, args ...interface{})  { l.logf(INFO, format, args...) }
func (l *Logger) Warn(format string, args ...interface{})  { l.logf(WARN, format, args...) }
func (l *Logger) Error(format string, args ...interface{}) { l.logf(ERROR, format, args...) }

func current() *Logger {
	stateMu.RLock()
	defer stateMu.RUnlock()
	return defaultLogger
}

// Trace логирует сообщение уровня TRACE
func Trace(format string, args ...interface{}) { current().logf(TRACE, format, args...) }

// Debug логирует сообщение уровня DEBUG
func Debug(format string, args ...interface{}) { current().logf(DEBUG, format, args...) }

// Info логирует сообщение уровня INFO
func Info(format string, args ...interface{}) { current().logf(INFO, format, args...) }

// Warn логирует сообщение уровня WARN
func Warn(format string, args ...interface{}) { current().logf(WARN, format, args...) }

// Error логирует сообщение уровня ERROR
func Error(format string, args ...interface{}) { current().logf(ERROR, format, args...) }
