package main

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// buildLogger returns a production zap logger writing to stderr, plus
// additionally to logPath when non-empty.
func buildLogger(logPath string) (*zap.Logger, error) {
	if logPath == "" {
		return zap.NewProduction()
	}

	stderrSink, _, err := zap.Open("stderr")
	if err != nil {
		return nil, err
	}
	fileSink, _, err := zap.Open(logPath)
	if err != nil {
		return nil, err
	}

	encoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	core := zapcore.NewCore(encoder, zapcore.NewMultiWriteSyncer(stderrSink, fileSink), zap.InfoLevel)
	return zap.New(core), nil
}
