package bulkmailer

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// logTimeFormat is the timestamp format used in run log lines.
const logTimeFormat = "2006-01-02 15:04:05"

// RunLog owns the per-run log file. One line is written per recipient
// outcome plus a final summary line; everything is duplicated to the
// console writer when one is provided.
type RunLog struct {
	// Path is the log file path, logs/send_<YYYYMMDD>_<HHMMSS>.log.
	Path string

	// Logger writes to the log file and the console.
	Logger zerolog.Logger

	file *os.File
}

// NewRunLog creates the log directory and a timestamped log file, and
// returns a logger writing plain console-format lines to it. Pass nil for
// console to log to the file only.
func NewRunLog(dir string, console io.Writer) (*RunLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, NewConfigError("", "cannot create log directory "+dir, err)
	}

	path := filepath.Join(dir, time.Now().Format("send_20060102_150405.log"))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, NewConfigError("", "cannot create log file "+path, err)
	}

	writers := []io.Writer{
		zerolog.ConsoleWriter{Out: file, NoColor: true, TimeFormat: logTimeFormat},
	}
	if console != nil {
		writers = append(writers, zerolog.ConsoleWriter{Out: console, TimeFormat: logTimeFormat})
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger()

	return &RunLog{
		Path:   path,
		Logger: logger,
		file:   file,
	}, nil
}

// Close closes the underlying log file.
func (rl *RunLog) Close() error {
	return rl.file.Close()
}
