package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap so components can take a *Logger and derive named children.
type Logger struct {
	*zap.Logger
	name string
}

// New builds a console logger at debug level for development environments and
// a JSON logger at info level for everything else.
func New(env string) *Logger {
	var cfg zap.Config
	switch env {
	case "dev", "development":
		cfg = zap.Config{
			Level:       zap.NewAtomicLevelAt(zapcore.DebugLevel),
			Development: true,
			Encoding:    "console",
			EncoderConfig: zapcore.EncoderConfig{
				CallerKey:      "C",
				EncodeCaller:   zapcore.ShortCallerEncoder,
				EncodeDuration: zapcore.StringDurationEncoder,
				EncodeLevel:    zapcore.CapitalColorLevelEncoder,
				EncodeTime:     zapcore.ISO8601TimeEncoder,
				LevelKey:       "L",
				LineEnding:     "\n",
				MessageKey:     "M",
				NameKey:        "N",
				TimeKey:        "T",
			},
			OutputPaths:      []string{"stdout"},
			ErrorOutputPaths: []string{"stderr"},
		}
	default:
		cfg = zap.Config{
			Level:       zap.NewAtomicLevelAt(zapcore.InfoLevel),
			Development: false,
			Encoding:    "json",
			EncoderConfig: zapcore.EncoderConfig{
				CallerKey:      "caller",
				EncodeCaller:   zapcore.ShortCallerEncoder,
				EncodeDuration: zapcore.SecondsDurationEncoder,
				EncodeLevel:    zapcore.LowercaseLevelEncoder,
				EncodeName:     zapcore.FullNameEncoder,
				EncodeTime:     zapcore.ISO8601TimeEncoder,
				LevelKey:       "level",
				LineEnding:     "\n",
				MessageKey:     "message",
				NameKey:        "logger",
				StacktraceKey:  "stacktrace",
				TimeKey:        "@timestamp",
			},
			OutputPaths:      []string{"stdout"},
			ErrorOutputPaths: []string{"stderr"},
		}
	}

	l, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return &Logger{Logger: l}
}

// NewTestLogger returns a logger that discards everything.
func NewTestLogger() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// Named returns a child logger; names nest with a dot.
func (log *Logger) Named(name string) *Logger {
	newName := name
	if log.name != "" {
		newName = log.name + "." + name
	}
	return &Logger{
		Logger: log.Logger.Named(name),
		name:   newName,
	}
}

// AtExit flushes buffered entries. Use with defer right after New.
func (log *Logger) AtExit() {
	if log.Logger != nil {
		_ = log.Logger.Sync()
	}
}
