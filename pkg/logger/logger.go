package logger

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Config struct {
	ServiceName string `yaml:"service_name" env:"LOGGER_SERVICE_NAME" env-default:"shieldvpn" env-description:"Service name"`
	Level       string `yaml:"level" env:"LOGGER_LEVEL" env-default:"info" env-description:"Minimum enabled log level"`
	Dir         string `yaml:"dir" env:"LOGGER_DIR" env-default:"logs" env-description:"Directory for the rotating log file"`
	FileOutput  bool   `yaml:"file_output" env:"LOGGER_FILE_OUTPUT" env-description:"Also write logs to a rotating file"`
}

func New(cfg Config) *zap.SugaredLogger {
	level := ParseLevel(cfg.Level)
	atomicLevel := zap.NewAtomicLevelAt(level)

	encoder := getEncoder()

	consoleWriter := zapcore.Lock(os.Stderr)
	cores := []zapcore.Core{zapcore.NewCore(encoder, consoleWriter, atomicLevel)}

	if cfg.FileOutput {
		fileWriter := getLogWriter(cfg.Dir, cfg.ServiceName)
		cores = append(cores, zapcore.NewCore(encoder, fileWriter, atomicLevel))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()).Sugar().Named(cfg.ServiceName)
}

// ParseLevel falls back to info for unknown level names.
func ParseLevel(name string) zapcore.Level {
	level, err := zapcore.ParseLevel(name)
	if err != nil {
		return zapcore.InfoLevel
	}
	return level
}

func getEncoder() zapcore.Encoder {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
		EncodeLevel:    CustomLevelEncoder,
	}
	return zapcore.NewConsoleEncoder(encoderConfig)
}

func getLogWriter(dir, serviceName string) zapcore.WriteSyncer {
	lumberJackLogger := &lumberjack.Logger{
		Filename:   filepath.Join(dir, serviceName+".log"),
		MaxSize:    20, // MB
		MaxBackups: 5,
		MaxAge:     30, // days
		Compress:   true,
	}
	return zapcore.AddSync(lumberJackLogger)
}

func CustomLevelEncoder(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString("[" + getIcon(level) + level.CapitalString() + "]")
}

func getIcon(lvl zapcore.Level) string {
	switch lvl {
	case zapcore.InfoLevel:
		return "🔵 "
	case zapcore.DebugLevel:
		return "🟢 "
	case zapcore.WarnLevel:
		return "🟡️ "
	case zapcore.ErrorLevel:
		return "🔴 "
	case zapcore.FatalLevel, zapcore.PanicLevel:
		return "⚫ "
	default:
		return ""
	}
}
