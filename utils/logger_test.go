package utils

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	logger := NewLogger()

	assert.NotNil(t, logger)
	assert.Equal(t, INFO, logger.level)
	assert.Equal(t, "text", logger.format)
	assert.Equal(t, os.Stdout, logger.output)
	assert.Equal(t, "vprate", logger.service)
}

func TestLogger_SetLevel(t *testing.T) {
	logger := NewLogger()

	logger.SetLevel(DEBUG)
	assert.Equal(t, DEBUG, logger.level)

	logger.SetLevel(ERROR)
	assert.Equal(t, ERROR, logger.level)
}

func TestLogger_SetFormat(t *testing.T) {
	logger := NewLogger()

	logger.SetFormat("JSON")
	assert.Equal(t, "json", logger.format)

	logger.SetFormat("TEXT")
	assert.Equal(t, "text", logger.format)
}

func TestLogger_SetOutput(t *testing.T) {
	logger := NewLogger()

	var buf bytes.Buffer
	logger.SetOutput(&buf)
	assert.Equal(t, &buf, logger.output)
}

func TestLogger_SetService(t *testing.T) {
	logger := NewLogger()

	logger.SetService("test-service")
	assert.Equal(t, "test-service", logger.service)
}

func TestLogger_SetFileOutput(t *testing.T) {
	logger := NewLogger()

	tempDir := t.TempDir()
	logFile := filepath.Join(tempDir, "test.log")

	err := logger.SetFileOutput(logFile)
	assert.NoError(t, err)
	assert.NotNil(t, logger.fileWriter)

	// Clean up
	logger.fileWriter.Close()
}

func TestLogger_SetFileOutput_CreateDirectory(t *testing.T) {
	logger := NewLogger()

	tempDir := t.TempDir()
	logDir := filepath.Join(tempDir, "logs")
	logFile := filepath.Join(logDir, "test.log")

	// Directory doesn't exist yet
	_, err := os.Stat(logDir)
	assert.True(t, os.IsNotExist(err))

	err = logger.SetFileOutput(logFile)
	assert.NoError(t, err)

	// Directory should be created now
	_, err = os.Stat(logDir)
	assert.NoError(t, err)

	// Clean up
	logger.fileWriter.Close()
}

func TestLogger_SetFileOutput_InvalidPath(t *testing.T) {
	logger := NewLogger()

	// Use an invalid path that can't be created
	logFile := "/dev/null/invalid/test.log"

	err := logger.SetFileOutput(logFile)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create log directory")
}

func TestLogger_LogLevels(t *testing.T) {
	tests := []struct {
		name  string
		level LogLevel
	}{
		{"debug level", DEBUG},
		{"info level", INFO},
		{"warn level", WARN},
		{"error level", ERROR},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger()
			logger.SetOutput(&buf)
			logger.SetLevel(tt.level)

			logger.Debug("debug message")
			logger.Info("info message")
			logger.Warn("warn message")
			logger.Error("error message", nil)

			output := buf.String()
			assert.Equal(t, tt.level <= DEBUG, strings.Contains(output, "debug message"))
			assert.Equal(t, tt.level <= INFO, strings.Contains(output, "info message"))
			assert.Equal(t, tt.level <= WARN, strings.Contains(output, "warn message"))
			assert.Equal(t, tt.level <= ERROR, strings.Contains(output, "error message"))
		})
	}
}

func TestLogger_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger()
	logger.SetOutput(&buf)
	logger.SetFormat("text")

	logger.Info("test message", String("key", "value"), Int("number", 42))

	output := buf.String()
	assert.Contains(t, output, "INFO")
	assert.Contains(t, output, "test message")
	assert.Contains(t, output, "key=value")
	assert.Contains(t, output, "number=42")
	assert.Contains(t, output, "logger_test.go:")
}

func TestLogger_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger()
	logger.SetOutput(&buf)
	logger.SetFormat("json")

	logger.Info("test message", String("key", "value"), Int("number", 42))

	output := buf.String()

	// Parse as JSON to verify structure
	var logEntry map[string]any
	err := json.Unmarshal([]byte(strings.TrimSpace(output)), &logEntry)
	require.NoError(t, err)

	assert.Equal(t, "INFO", logEntry["level"])
	assert.Equal(t, "test message", logEntry["message"])
	assert.Equal(t, "vprate", logEntry["service"])
	assert.Equal(t, "value", logEntry["fields"].(map[string]any)["key"])
	assert.Equal(t, float64(42), logEntry["fields"].(map[string]any)["number"])
	assert.Contains(t, logEntry, "timestamp")
	assert.Contains(t, logEntry, "file")
	assert.Contains(t, logEntry, "line")
}

func TestLogger_WithError(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger()
	logger.SetOutput(&buf)
	logger.SetFormat("json")

	testErr := assert.AnError
	logger.Error("error message", testErr)

	output := buf.String()

	var logEntry map[string]any
	err := json.Unmarshal([]byte(strings.TrimSpace(output)), &logEntry)
	require.NoError(t, err)

	assert.Equal(t, "ERROR", logEntry["level"])
	assert.Equal(t, "error message", logEntry["message"])
	assert.Equal(t, testErr.Error(), logEntry["error"])
}

func TestLogger_Fatal(t *testing.T) {
	// Note: Fatal calls os.Exit(1), so we can't test it directly
	// We'll test that fatal level exists and works
	assert.Equal(t, "FATAL", FATAL.String())
}

func TestLogger_WithFields(t *testing.T) {
	logger := NewLogger()
	fields := []Field{String("global", "value"), Int("count", 10)}

	fieldLogger := logger.WithFields(fields...)
	assert.NotNil(t, fieldLogger)
	assert.Equal(t, logger, fieldLogger.logger)
	assert.Equal(t, fields, fieldLogger.fields)
}

func TestFieldLogger_Methods(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger()
	logger.SetOutput(&buf)

	fieldLogger := logger.WithFields(String("global", "value"), Int("count", 10))
	fieldLogger.Info("field message", String("local", "data"))

	output := buf.String()
	assert.Contains(t, output, "INFO")
	assert.Contains(t, output, "field message")
	assert.Contains(t, output, "global=value")
	assert.Contains(t, output, "count=10")
	assert.Contains(t, output, "local=data")
}

func TestFieldLogger_Error(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger()
	logger.SetOutput(&buf)
	logger.SetFormat("json")

	fieldLogger := logger.WithFields(String("global", "value"))
	testErr := assert.AnError
	fieldLogger.Error("field error", testErr, String("local", "data"))

	output := buf.String()

	var logEntry map[string]any
	err := json.Unmarshal([]byte(strings.TrimSpace(output)), &logEntry)
	require.NoError(t, err)

	assert.Equal(t, "ERROR", logEntry["level"])
	assert.Equal(t, "field error", logEntry["message"])
	assert.Equal(t, "value", logEntry["fields"].(map[string]any)["global"])
	assert.Equal(t, "data", logEntry["fields"].(map[string]any)["local"])
	assert.Equal(t, testErr.Error(), logEntry["error"])
}

func TestLogLevel_String(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{DEBUG, "DEBUG"},
		{INFO, "INFO"},
		{WARN, "WARN"},
		{ERROR, "ERROR"},
		{FATAL, "FATAL"},
		{LogLevel(999), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.level.String())
		})
	}
}

func TestField_Constructors(t *testing.T) {
	entry := &LogEntry{Fields: make(map[string]any)}

	// Test StringField
	strField := String("str_key", "str_value")
	strField.Apply(entry)
	assert.Equal(t, "str_value", entry.Fields["str_key"])

	// Test IntField
	intField := Int("int_key", 42)
	intField.Apply(entry)
	assert.Equal(t, 42, entry.Fields["int_key"])

	// Test FloatField
	floatField := Float("float_key", 3.14)
	floatField.Apply(entry)
	assert.Equal(t, 3.14, entry.Fields["float_key"])

	// Test BoolField
	boolField := Bool("bool_key", true)
	boolField.Apply(entry)
	assert.Equal(t, true, entry.Fields["bool_key"])

	// Test ErrorField
	testErr := assert.AnError
	errorField := Error(testErr)
	errorField.Apply(entry)
	assert.Equal(t, testErr.Error(), entry.Error)

	// Test ComponentField
	componentField := Component("test-component")
	componentField.Apply(entry)
	assert.Equal(t, "test-component", entry.Component)
}

func TestLogger_ConcurrentLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger()
	logger.SetOutput(&buf)

	var wg sync.WaitGroup
	numGoroutines := 3
	numLogs := 3

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < numLogs; j++ {
				logger.Info("message", Int("goroutine", id), Int("iteration", j))
			}
		}(i)
	}

	wg.Wait()

	output := buf.String()
	lines := strings.Split(strings.TrimSpace(output), "\n")
	// Just ensure some logs were captured (concurrent logging can have race conditions)
	assert.Greater(t, len(lines), 0)
	assert.Contains(t, output, "message")
}

func TestLogger_FileOutputAndStdout(t *testing.T) {
	logger := NewLogger()

	tempDir := t.TempDir()
	logFile := filepath.Join(tempDir, "test.log")

	// Set file output - should create multi-writer with stdout
	err := logger.SetFileOutput(logFile)
	require.NoError(t, err)
	defer logger.fileWriter.Close()

	// Log a message
	logger.Info("test message")

	// Read from file
	content, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(content), "test message")
}

func TestInitLogger(t *testing.T) {
	tests := []struct {
		name  string
		level string
		want  LogLevel
	}{
		{"debug level", "debug", DEBUG},
		{"warn level", "warn", WARN},
		{"error level", "error", ERROR},
		{"invalid level defaults to info", "invalid", INFO},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			InitLogger(tt.level)

			logger := GetLogger()
			assert.NotNil(t, logger)
			assert.Equal(t, tt.want, logger.level)
		})
	}
}

func TestGetLogger_Singleton(t *testing.T) {
	logger1 := GetLogger()
	logger2 := GetLogger()

	assert.Same(t, logger1, logger2)
}

func TestLogger_CallerInformation(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger()
	logger.SetOutput(&buf)
	logger.SetFormat("json")

	logger.Info("caller test")

	output := buf.String()
	var logEntry map[string]any
	err := json.Unmarshal([]byte(strings.TrimSpace(output)), &logEntry)
	require.NoError(t, err)

	assert.Contains(t, logEntry["file"], "logger_test.go")
	assert.Greater(t, logEntry["line"], float64(0))
}
