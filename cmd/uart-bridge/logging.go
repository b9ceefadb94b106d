package main

import (
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      zapcore.OmitKey,
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  zapcore.OmitKey,
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}
}

// newLogger returns a logger appending to a rotating file at path, and to
// stderr as well when mirror is set. Internal logger errors go to stderr.
// The returned closer closes the file. stdout is never a sink: it carries
// the device data.
func newLogger(path, level string, stderr io.Writer, mirror bool) (*zap.Logger, io.Closer, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, nil, err
	}

	sink := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
	}
	enc := zapcore.NewConsoleEncoder(encoderConfig())
	core := zapcore.NewCore(enc, zapcore.AddSync(sink), lvl)
	errOut := zapcore.Lock(zapcore.AddSync(stderr))
	if mirror {
		core = zapcore.NewTee(core, zapcore.NewCore(enc, errOut, lvl))
	}
	return zap.New(core, zap.ErrorOutput(errOut)).Named("uart-bridge"), sink, nil
}
