package logging

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// LoggerManager реестр логгеров компонентов. Логгер создаётся при первом
// обращении и живёт до CloseAll.
type LoggerManager struct {
	mu      sync.Mutex
	loggers map[string]*Logger
}

var (
	managerOnce   sync.Once
	globalManager *LoggerManager
)

// GetLoggerManager возвращает глобальный менеджер логгеров
func GetLoggerManager() *LoggerManager {
	managerOnce.Do(func() {
		globalManager = &LoggerManager{loggers: make(map[string]*Logger)}
	})
	return globalManager
}

// GetLogger возвращает логгер компонента, создавая его при необходимости
func (lm *LoggerManager) GetLogger(component string) (*Logger, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	if l, ok := lm.loggers[component]; ok {
		return l, nil
	}
	l, err := NewLogger(component)
	if err != nil {
		return nil, fmt.Errorf("логгер %s: %w", component, err)
	}
	lm.loggers[component] = l
	return l, nil
}

// CloseAll закрывает файлы всех логгеров и забывает их
func (lm *LoggerManager) CloseAll() error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	var errs []error
	for _, l := range lm.loggers {
		errs = append(errs, l.Close())
	}
	lm.loggers = make(map[string]*Logger)
	return errors.Join(errs...)
}

// ListComponents отсортированные имена созданных логгеров
func (lm *LoggerManager) ListComponents() []string {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	out := make([]string, 0, len(lm.loggers))
	for name := range lm.loggers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// SetLogLevel меняет пороги уже созданного логгера компонента
func (lm *LoggerManager) SetLogLevel(component string, consoleLevel, fileLevel LogLevel) error {
	lm.mu.Lock()
	l, ok := lm.loggers[component]
	lm.mu.Unlock()
	if !ok {
		return fmt.Errorf("логгер компонента %s не найден", component)
	}
	l.setLevels(consoleLevel, fileLevel)
	return nil
}

// GetComponentLogger логгер компонента; при ошибке создания - общий логгер.
// Полученный до InitLogger логгер остаётся немым, поэтому пакеты держат Lazy.
func GetComponentLogger(component string) *Logger {
	l, err := GetLoggerManager().GetLogger(component)
	if err != nil {
		return current()
	}
	return l
}

// Lazy откладывает создание логгера компонента до первого сообщения
// после InitLogger
type Lazy struct {
	component string
}

// NewLazy возвращает ленивый логгер компонента
func NewLazy(component string) Lazy {
	return Lazy{component: component}
}

func (z Lazy) get() *Logger {
	stateMu.RLock()
	on := initialized
	stateMu.RUnlock()
	if !on {
		return nil
	}
	return GetComponentLogger(z.component)
}

func (z Lazy) Trace(format string, args ...interface{}) { z.get().logf(TRACE, format, args...) }
func (z Lazy) Debug(format string, args ...interface{}) { z.get().logf(DEBUG, format, args...) }
func (z Lazy) Info(format string, args ...interface{})  { z.get().logf(INFO, format, args...) }
func (z Lazy) Warn(format string, args ...interface{})  { z.get().logf(WARN, format, args...) }
func (z Lazy) Error(format string, args ...interface{}) { z.get().logf(ERROR, format, args...) }
