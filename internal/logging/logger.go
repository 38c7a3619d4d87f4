// Package logging provides config-driven categorized file-based logging for voxsh.
// Logs are written to <state dir>/logs/ with separate files per category.
// Logging is controlled by logging.debug_mode in the config file - when false, no logs are written.
package logging

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot    Category = "boot"    // Startup, config resolution
	CategorySession Category = "session" // Top-level menu loop

	// Speech capture
	CategoryListen Category = "listen" // Listening session state machine
	CategorySpeech Category = "speech" // Segmenter and transcriber traffic

	// Oracle
	CategoryAPI        Category = "api"        // LLM API calls
	CategoryPerception Category = "perception" // Command synthesis and completion judging

	// Execution
	CategoryResolve Category = "resolve" // Self-healing retry loop
	CategoryTactile Category = "tactile" // Shell command execution

	CategoryMetrics Category = "metrics" // Metrics server
)

// Settings mirrors the relevant parts of config.LoggingConfig
// to avoid circular imports
type Settings struct {
	DebugMode  bool
	Categories map[string]bool
	Level      string
	JSONFormat bool
}

// StructuredLogEntry represents a JSON log entry.
type StructuredLogEntry struct {
	Timestamp int64                  `json:"ts"`  // Unix milliseconds
	Category  string                 `json:"cat"` // Log category
	Level     string                 `json:"lvl"` // debug/info/warn/error
	Message   string                 `json:"msg"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// Logger wraps a standard logger with category and file output
type Logger struct {
	category Category
	logger   *log.Logger
	file     *os.File
}

var (
	loggers   = make(map[Category]*Logger)
	loggersMu sync.RWMutex
	logsDir   string
	config    Settings
	configMu  sync.RWMutex
	logLevel  int // 0=debug, 1=info, 2=warn, 3=error
)

// Log levels
const (
	LevelDebug = 0
	LevelInfo  = 1
	LevelWarn  = 2
	LevelError = 3
)

// Initialize sets up the logging directory under stateDir.
// Should be called once at startup.
func Initialize(stateDir string, settings Settings) error {
	if stateDir == "" {
		return fmt.Errorf("state directory required")
	}

	applySettings(settings)
	logsDir = filepath.Join(stateDir, "logs")

	if !IsDebugMode() {
		return nil // Silent no-op in production mode
	}

	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	boot := Get(CategoryBoot)
	boot.Info("=== voxsh logging initialized ===")
	boot.Info("Logs directory: %s", logsDir)
	boot.Info("Log level: %s", settings.Level)
	if len(settings.Categories) == 0 {
		boot.Info("All categories enabled (no category filter)")
	}
	for cat, enabled := range settings.Categories {
		boot.Debug("Category '%s': %v", cat, enabled)
	}

	return nil
}

func applySettings(s Settings) {
	configMu.Lock()
	defer configMu.Unlock()

	config = s
	switch s.Level {
	case "debug":
		logLevel = LevelDebug
	case "warn", "warning":
		logLevel = LevelWarn
	case "error":
		logLevel = LevelError
	default:
		logLevel = LevelInfo
	}
}

// IsDebugMode returns whether debug logging is enabled
func IsDebugMode() bool {
	configMu.RLock()
	defer configMu.RUnlock()
	return config.DebugMode
}

// IsCategoryEnabled returns whether a specific category is enabled
func IsCategoryEnabled(category Category) bool {
	configMu.RLock()
	defer configMu.RUnlock()

	if !config.DebugMode {
		return false
	}
	if config.Categories == nil {
		return true
	}
	enabled, exists := config.Categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

// Get returns (or creates) a logger for the given category.
// Returns a no-op logger if debug mode is disabled or category is disabled.
func Get(category Category) *Logger {
	if !IsCategoryEnabled(category) || logsDir == "" {
		return &Logger{category: category}
	}

	loggersMu.RLock()
	if l, ok := loggers[category]; ok {
		loggersMu.RUnlock()
		return l
	}
	loggersMu.RUnlock()

	loggersMu.Lock()
	defer loggersMu.Unlock()

	// Double-check after acquiring write lock
	if l, ok := loggers[category]; ok {
		return l
	}

	date := time.Now().Format("2006-01-02")
	logPath := filepath.Join(logsDir, fmt.Sprintf("%s_%s.log", date, category))

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] Warning: could not open log file %s: %v\n", logPath, err)
		return &Logger{category: category}
	}

	l := &Logger{
		category: category,
		file:     file,
		logger:   log.New(file, "", log.Ldate|log.Ltime|log.Lmicroseconds),
	}
	loggers[category] = l
	return l
}

func (l *Logger) write(level string, threshold int, format string, args ...interface{}) {
	if l.logger == nil || logLevel > threshold {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if IsJSONFormat() {
		l.logJSON(level, msg, nil)
		return
	}
	l.logger.Printf("[%s] %s", levelTag(level), msg)
}

func levelTag(level string) string {
	switch level {
	case "debug":
		return "DEBUG"
	case "warn":
		return "WARN"
	case "error":
		return "ERROR"
	}
	return "INFO"
}

// logJSON writes a structured JSON log entry
func (l *Logger) logJSON(level, msg string, fields map[string]interface{}) {
	entry := StructuredLogEntry{
		Timestamp: time.Now().UnixMilli(),
		Category:  string(l.category),
		Level:     level,
		Message:   msg,
		Fields:    fields,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		l.logger.Printf("[%s] %s", levelTag(level), msg)
		return
	}
	l.logger.Printf("%s", data)
}

// Debug logs a debug message (only if level <= debug)
func (l *Logger) Debug(format string, args ...interface{}) {
	l.write("debug", LevelDebug, format, args...)
}

// Info logs an informational message (only if level <= info)
func (l *Logger) Info(format string, args ...interface{}) {
	l.write("info", LevelInfo, format, args...)
}

// Warn logs a warning message (only if level <= warn)
func (l *Logger) Warn(format string, args ...interface{}) {
	l.write("warn", LevelWarn, format, args...)
}

// Error logs an error message (always logged if logger exists)
func (l *Logger) Error(format string, args ...interface{}) {
	l.write("error", LevelError, format, args...)
}

// StructuredLog writes a fully structured log entry with custom fields
func (l *Logger) StructuredLog(level string, msg string, fields map[string]interface{}) {
	if l.logger == nil {
		return
	}
	if IsJSONFormat() {
		l.logJSON(level, msg, fields)
		return
	}
	l.logger.Printf("[%s] %s | fields=%v", levelTag(level), msg, fields)
}

// IsJSONFormat returns whether JSON logging is enabled
func IsJSONFormat() bool {
	configMu.RLock()
	defer configMu.RUnlock()
	return config.JSONFormat
}

// CloseAll closes all open log files (call at shutdown)
func CloseAll() {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	for _, l := range loggers {
		if l.file != nil {
			l.file.Close()
		}
	}
	loggers = make(map[Category]*Logger)
}

// =============================================================================
// CONVENIENCE FUNCTIONS - Quick logging without getting a logger first
// These are no-ops if the category is disabled
// =============================================================================

func Boot(format string, args ...interface{}) { Get(CategoryBoot).Info(format, args...) }

func Session(format string, args ...interface{})      { Get(CategorySession).Info(format, args...) }
func SessionDebug(format string, args ...interface{}) { Get(CategorySession).Debug(format, args...) }
func SessionWarn(format string, args ...interface{})  { Get(CategorySession).Warn(format, args...) }

func Listen(format string, args ...interface{})      { Get(CategoryListen).Info(format, args...) }
func ListenDebug(format string, args ...interface{}) { Get(CategoryListen).Debug(format, args...) }
func ListenWarn(format string, args ...interface{})  { Get(CategoryListen).Warn(format, args...) }
func ListenError(format string, args ...interface{}) { Get(CategoryListen).Error(format, args...) }

func Speech(format string, args ...interface{})      { Get(CategorySpeech).Info(format, args...) }
func SpeechDebug(format string, args ...interface{}) { Get(CategorySpeech).Debug(format, args...) }
func SpeechError(format string, args ...interface{}) { Get(CategorySpeech).Error(format, args...) }

func API(format string, args ...interface{})      { Get(CategoryAPI).Info(format, args...) }
func APIDebug(format string, args ...interface{}) { Get(CategoryAPI).Debug(format, args...) }
func APIError(format string, args ...interface{}) { Get(CategoryAPI).Error(format, args...) }

func Perception(format string, args ...interface{})      { Get(CategoryPerception).Info(format, args...) }
func PerceptionDebug(format string, args ...interface{}) { Get(CategoryPerception).Debug(format, args...) }
func PerceptionWarn(format string, args ...interface{})  { Get(CategoryPerception).Warn(format, args...) }

func Resolve(format string, args ...interface{})      { Get(CategoryResolve).Info(format, args...) }
func ResolveDebug(format string, args ...interface{}) { Get(CategoryResolve).Debug(format, args...) }
func ResolveWarn(format string, args ...interface{})  { Get(CategoryResolve).Warn(format, args...) }

func Tactile(format string, args ...interface{})      { Get(CategoryTactile).Info(format, args...) }
func TactileDebug(format string, args ...interface{}) { Get(CategoryTactile).Debug(format, args...) }
func TactileWarn(format string, args ...interface{})  { Get(CategoryTactile).Warn(format, args...) }
func TactileError(format string, args ...interface{}) { Get(CategoryTactile).Error(format, args...) }

func Metrics(format string, args ...interface{}) { Get(CategoryMetrics).Info(format, args...) }

// =============================================================================
// TIMING HELPERS - For performance logging
// =============================================================================

// Timer helps measure operation duration
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation
func StartTimer(category Category, operation string) *Timer {
	return &Timer{
		category: category,
		op:       operation,
		start:    time.Now(),
	}
}

// Stop ends the timer and logs the duration
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithThreshold logs warning if duration exceeds threshold
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(t.category).Warn("%s took %v (threshold: %v)", t.op, elapsed, threshold)
	} else {
		Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	}
	return elapsed
}
