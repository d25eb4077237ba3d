package logger_test

import (
	"errors"

	"github.com/wonny/stockpool/pkg/config"
	"github.com/wonny/stockpool/pkg/logger"
)

// ExampleNew demonstrates basic logger usage
func ExampleNew() {
	cfg := &config.Config{
		Env:       "development",
		LogLevel:  "info",
		LogFormat: "console",
	}

	// Create logger (SSOT)
	log := logger.New(cfg)

	log.Debug("This won't appear (level is info)")
	log.Info("Application started")
	log.Infof("Loaded %d instruments", 200)
}

// ExampleLogger_WithFields demonstrates structured logging with fields
func ExampleLogger_WithFields() {
	cfg := &config.Config{
		Env:       "production",
		LogLevel:  "info",
		LogFormat: "json",
	}

	log := logger.New(cfg)

	runLog := log.WithFields(map[string]interface{}{
		"instrument": "000001.XSHE",
		"timeframe":  "daily",
		"bars":       250,
	})
	runLog.Info("Bar series refreshed")
}

// ExampleLogger_WithError demonstrates error logging
func ExampleLogger_WithError() {
	cfg := &config.Config{
		Env:       "production",
		LogLevel:  "error",
		LogFormat: "json",
	}

	log := logger.New(cfg)

	err := errors.New("vendor request timeout")
	log.WithError(err).
		WithFields(map[string]interface{}{
			"retry_count": 3,
			"timeout_ms":  5000,
		}).
		Error("Bar fetch failed after retries")
}
