package audit

import (
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Sink appends one structured event per committed mutation to a JSON-lines
// file. Correctness of the core never depends on it; failures degrade to a
// no-op logger.
type Sink struct {
	log  *zap.Logger
	path string
}

// Open creates (or reopens) the audit log under dir.
func Open(dir string) (*Sink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, "app.log")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(f), zapcore.InfoLevel)
	return &Sink{log: zap.New(core), path: path}, nil
}

// Discard returns a sink that drops every event; used in tests.
func Discard() *Sink {
	return &Sink{log: zap.NewNop()}
}

// Log records one audit event.
func (s *Sink) Log(action, details string) {
	s.log.Info(action, zap.String("details", details))
}

// ReadRecent returns up to limit of the newest audit lines.
func (s *Sink) ReadRecent(limit int) ([]string, error) {
	if s.path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	lines := strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
	if len(lines) == 1 && lines[0] == "" {
		return nil, nil
	}
	if limit > 0 && len(lines) > limit {
		lines = lines[len(lines)-limit:]
	}
	return lines, nil
}

// Sync flushes buffered events; called on shutdown.
func (s *Sink) Sync() {
	_ = s.log.Sync()
}
