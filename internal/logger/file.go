package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/harrison/searchflow/internal/models"
)

// FileLogger logs run events to a timestamped file per run and maintains a
// latest.log symlink pointing to the most recent run.
type FileLogger struct {
	logDir   string
	runLog   *os.File
	runFile  string
	logLevel string
	mu       sync.Mutex
}

// NewFileLogger creates a FileLogger writing run-YYYYMMDD-HHMMSS.log in
// logDir. The directory is created if needed.
func NewFileLogger(logDir string, logLevel string) (*FileLogger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	stamp := time.Now().Format("20060102-150405")
	runFile := filepath.Join(logDir, fmt.Sprintf("run-%s.log", stamp))

	file, err := os.OpenFile(runFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create run log file: %w", err)
	}

	symlinkPath := filepath.Join(logDir, "latest.log")
	if _, err := os.Lstat(symlinkPath); err == nil {
		if err := os.Remove(symlinkPath); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to remove old symlink: %w", err)
		}
	}
	if err := os.Symlink(filepath.Base(runFile), symlinkPath); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to create symlink: %w", err)
	}

	fl := &FileLogger{
		logDir:   logDir,
		runLog:   file,
		runFile:  runFile,
		logLevel: normalizeLogLevel(logLevel),
	}
	fl.writeRunLog("=== searchflow run log ===\n")
	fl.writeRunLog(fmt.Sprintf("Started at: %s\n\n", time.Now().Format(time.RFC3339)))
	return fl, nil
}

// Path returns the run log file path
func (fl *FileLogger) Path() string {
	return fl.runFile
}

func (fl *FileLogger) LogTrace(message string) { fl.logWithLevel("TRACE", message) }
func (fl *FileLogger) LogDebug(message string) { fl.logWithLevel("DEBUG", message) }
func (fl *FileLogger) LogInfo(message string)  { fl.logWithLevel("INFO", message) }
func (fl *FileLogger) LogWarn(message string)  { fl.logWithLevel("WARN", message) }
func (fl *FileLogger) LogError(message string) { fl.logWithLevel("ERROR", message) }

func (fl *FileLogger) logWithLevel(level string, message string) {
	if !enabled(fl.logLevel, strings.ToLower(level)) {
		return
	}
	fl.writeRunLog(fmt.Sprintf("[%s] [%s] %s\n", timestamp(), level, message))
}

// LogStageStart logs the start of a stage at INFO level.
func (fl *FileLogger) LogStageStart(stage string) {
	fl.LogInfo(fmt.Sprintf("Starting %s", stage))
}

// LogStageComplete logs the completion of a stage with its duration.
func (fl *FileLogger) LogStageComplete(stage string, duration time.Duration) {
	fl.LogInfo(fmt.Sprintf("%s complete (%s)", stage, formatDuration(duration)))
}

// LogProgress records input progress as a plain counter.
func (fl *FileLogger) LogProgress(label string, done, total int) {
	fl.LogInfo(fmt.Sprintf("%s %d/%d", label, done, total))
}

// LogSummary writes the run summary without colors.
func (fl *FileLogger) LogSummary(summary models.RunSummary) {
	if !enabled(fl.logLevel, "info") {
		return
	}
	var sb strings.Builder
	ts := timestamp()
	for _, line := range summaryLines(summary, newColorScheme(false)) {
		fmt.Fprintf(&sb, "[%s] %s\n", ts, line)
	}
	for _, b := range summary.Batches {
		fmt.Fprintf(&sb, "[%s] batch %s (%s): read %d, dropped %d, inserted %d, replaced %d\n",
			ts, b.BatchID, filepath.Base(b.SourceFile), b.RowsRead, b.RowsDropped, b.Inserted, b.Collisions)
		for _, w := range b.Warnings {
			fmt.Fprintf(&sb, "[%s]   warning: %s\n", ts, w)
		}
	}
	fl.writeRunLog(sb.String())
}

// Close flushes and closes the run log file.
func (fl *FileLogger) Close() error {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.runLog != nil {
		if err := fl.runLog.Sync(); err != nil {
			return fmt.Errorf("failed to sync run log: %w", err)
		}
		if err := fl.runLog.Close(); err != nil {
			return fmt.Errorf("failed to close run log: %w", err)
		}
		fl.runLog = nil
	}
	return nil
}

// writeRunLog is a thread-safe helper to write to the run log file.
func (fl *FileLogger) writeRunLog(message string) {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.runLog != nil {
		fl.runLog.WriteString(message)
		// Flush after each write for real-time logging
		fl.runLog.Sync()
	}
}
