package app

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	slogzap "github.com/samber/slog-zap/v2"
	"github.com/sharetube/party/pkg/ctxlogger"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	LogBackendJSON = "json"
	LogBackendText = "text"
	LogBackendZap  = "zap"
)

func parseLogLevel(level string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	return lvl, nil
}

func newLogHandler(backend string, lvl slog.Level) (slog.Handler, error) {
	opts := &slog.HandlerOptions{
		Level:     lvl,
		AddSource: true,
	}

	switch backend {
	case LogBackendJSON, "":
		return slog.NewJSONHandler(os.Stdout, opts), nil
	case LogBackendText:
		return slog.NewTextHandler(os.Stdout, opts), nil
	case LogBackendZap:
		return newZapHandler(lvl), nil
	default:
		return nil, fmt.Errorf("unknown log backend %q", backend)
	}
}

func newZapHandler(lvl slog.Level) slog.Handler {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	encCfg.EncodeCaller = zapcore.ShortCallerEncoder

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(os.Stdout), toZapLevel(lvl))
	z := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))

	return slogzap.Option{Level: lvl, Logger: z}.NewZapHandler()
}

func toZapLevel(lvl slog.Level) zapcore.Level {
	switch {
	case lvl <= slog.LevelDebug:
		return zapcore.DebugLevel
	case lvl == slog.LevelInfo:
		return zapcore.InfoLevel
	case lvl == slog.LevelWarn:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}

// NewLogger builds the process logger. Attributes stored on the context with
// ctxlogger.AppendCtx are added to every record.
func NewLogger(backend, level string) (*slog.Logger, error) {
	lvl, err := parseLogLevel(level)
	if err != nil {
		return nil, err
	}

	h, err := newLogHandler(backend, lvl)
	if err != nil {
		return nil, err
	}

	return slog.New(&ctxlogger.ContextHandler{Handler: h}), nil
}
