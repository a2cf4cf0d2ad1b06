// Package logging constructs the process-wide structured logger. Every
// other package takes a *zap.SugaredLogger through its constructor rather
// than reaching for a global, so tests can assert on output and production
// can swap encoders.
package logging

import "go.uber.org/zap"

// New builds a production JSON logger, or a development console logger when
// dev is true (readable timestamps, stack traces on Warn+).
func New(dev bool) (*zap.SugaredLogger, error) {
	var cfg zap.Config
	if dev {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}

// Nop returns a logger that discards everything, used as the zero value in
// tests that don't care about log output.
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
