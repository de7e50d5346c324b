// Package logger holds the process-wide structured logger.
//
// Library code logs through Logger (or a logger injected by the caller);
// the CLI calls Initialize once flags and configuration are known.
package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Leftovergoldennuggets/stortingsvotering/pkg/errors"
)

var (
	// Logger is the global logger instance.
	Logger *zap.SugaredLogger
	// JSONOutput records whether Initialize selected JSON output.
	JSONOutput bool
)

func init() {
	// No-op until Initialize so packages can log before the CLI configures output.
	Logger = zap.NewNop().Sugar()
}

// Initialize sets up the global logger. When jsonOutput is false a console
// encoder writes to stderr, keeping stdout free for command output.
func Initialize(jsonOutput bool, level string) error {
	lvl := zapcore.InfoLevel
	if level != "" {
		parsed, err := zapcore.ParseLevel(level)
		if err != nil {
			return errors.Wrapf(err, "parse log level %q", level)
		}
		lvl = parsed
	}

	var zapLogger *zap.Logger
	if jsonOutput {
		config := zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(lvl)
		config.OutputPaths = []string{"stderr"}
		built, err := config.Build()
		if err != nil {
			return errors.Wrap(err, "build json logger")
		}
		zapLogger = built
	} else {
		encoderConfig := zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapLogger = zap.New(zapcore.NewCore(
			zapcore.NewConsoleEncoder(encoderConfig),
			zapcore.AddSync(os.Stderr),
			lvl,
		))
	}

	JSONOutput = jsonOutput
	Logger = zapLogger.Sugar()
	return nil
}

// ComponentLogger returns a named child of the global logger.
func ComponentLogger(component string) *zap.SugaredLogger {
	return Logger.Named(component).With(FieldComponent, component)
}

// OrDefault returns l, or a component logger when l is nil. Constructors use
// it so callers may pass nil.
func OrDefault(l *zap.SugaredLogger, component string) *zap.SugaredLogger {
	if l != nil {
		return l
	}
	return ComponentLogger(component)
}

// Sync flushes buffered log entries.
func Sync() {
	_ = Logger.Sync()
}
