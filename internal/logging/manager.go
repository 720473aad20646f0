package logging

import (
	"fmt"
	"sort"
	"sync"
)

// Имена компонентов сервиса
const (
	ComponentServer  = "server"
	ComponentGuard   = "guard"
	ComponentSponge  = "sponge"
	ComponentStorage = "storage"
	ComponentAPI     = "api"
	ComponentState   = "state"
)

// LoggerManager хранит логгеры компонентов и уровни консоли, заданные в конфигурации
type LoggerManager struct {
	mu        sync.RWMutex
	loggers   map[string]*Logger
	overrides map[string]LogLevel
}

var (
	globalManager *LoggerManager
	managerOnce   sync.Once
)

func newLoggerManager() *LoggerManager {
	return &LoggerManager{
		loggers:   make(map[string]*Logger),
		overrides: make(map[string]LogLevel),
	}
}

// GetLoggerManager возвращает глобальный менеджер логгеров
func GetLoggerManager() *LoggerManager {
	managerOnce.Do(func() {
		globalManager = newLoggerManager()
	})
	return globalManager
}

// GetLogger возвращает логгер компонента; первый вызов создаёт его
// с уровнем консоли из SetComponentLevels, если он задан
func (lm *LoggerManager) GetLogger(component string) (*Logger, error) {
	lm.mu.RLock()
	logger, ok := lm.loggers[component]
	lm.mu.RUnlock()
	if ok {
		return logger, nil
	}

	lm.mu.Lock()
	defer lm.mu.Unlock()
	if logger, ok := lm.loggers[component]; ok {
		return logger, nil
	}

	logger, err := NewLogger(component)
	if err != nil {
		return nil, fmt.Errorf("logger %s: %w", component, err)
	}
	if level, ok := lm.overrides[component]; ok {
		logger.minConsoleLevel = level
	}
	lm.loggers[component] = logger
	return logger, nil
}

// MustGetLogger возвращает логгер; при ошибке файла пишет только в консоль
func (lm *LoggerManager) MustGetLogger(component string) *Logger {
	logger, err := lm.GetLogger(component)
	if err == nil {
		return logger
	}
	fallback := &Logger{
		component:       component,
		consoleLogger:   defaultLogger.consoleLogger,
		minConsoleLevel: INFO,
		minFileLevel:    ERROR,
	}
	lm.mu.RLock()
	if level, ok := lm.overrides[component]; ok {
		fallback.minConsoleLevel = level
	}
	lm.mu.RUnlock()
	return fallback
}

// SetComponentLevels задаёт уровни консоли по компонентам.
// Уже созданные логгеры меняются сразу, новые получат уровень при создании.
func (lm *LoggerManager) SetComponentLevels(levels map[string]LogLevel) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	for component, level := range levels {
		lm.overrides[component] = level
		if logger, ok := lm.loggers[component]; ok {
			logger.mu.Lock()
			logger.minConsoleLevel = level
			logger.mu.Unlock()
		}
	}
}

// ParseComponentLevels разбирает уровни из секции logging.components
func ParseComponentLevels(raw map[string]string) (map[string]LogLevel, error) {
	levels := make(map[string]LogLevel, len(raw))
	for component, s := range raw {
		level, err := ParseLevel(s)
		if err != nil {
			return nil, fmt.Errorf("component %s: %w", component, err)
		}
		levels[component] = level
	}
	return levels, nil
}

// CloseAll закрывает файлы всех логгеров и забывает их
func (lm *LoggerManager) CloseAll() error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	var errs []error
	for component, logger := range lm.loggers {
		if err := logger.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close logger %s: %w", component, err))
		}
	}
	lm.loggers = make(map[string]*Logger)
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// ListComponents возвращает отсортированный список созданных логгеров
func (lm *LoggerManager) ListComponents() []string {
	lm.mu.RLock()
	defer lm.mu.RUnlock()

	components := make([]string, 0, len(lm.loggers))
	for component := range lm.loggers {
		components = append(components, component)
	}
	sort.Strings(components)
	return components
}

// SetLogLevel устанавливает уровни консоли и файла для созданного логгера
func (lm *LoggerManager) SetLogLevel(component string, consoleLevel, fileLevel LogLevel) error {
	lm.mu.RLock()
	logger, exists := lm.loggers[component]
	lm.mu.RUnlock()

	if !exists {
		return fmt.Errorf("logger for component %s not found", component)
	}

	logger.mu.Lock()
	logger.minConsoleLevel = consoleLevel
	logger.minFileLevel = fileLevel
	logger.mu.Unlock()
	return nil
}

func GetComponentLogger(component string) *Logger {
	return GetLoggerManager().MustGetLogger(component)
}

func GetServerLogger() *Logger  { return GetComponentLogger(ComponentServer) }
func GetGuardLogger() *Logger   { return GetComponentLogger(ComponentGuard) }
func GetSpongeLogger() *Logger  { return GetComponentLogger(ComponentSponge) }
func GetStorageLogger() *Logger { return GetComponentLogger(ComponentStorage) }
func GetAPILogger() *Logger     { return GetComponentLogger(ComponentAPI) }
func GetStateLogger() *Logger   { return GetComponentLogger(ComponentState) }
