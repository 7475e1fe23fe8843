package logger_test

import (
	"errors"

	"github.com/wonny/fleetcast/pkg/config"
	"github.com/wonny/fleetcast/pkg/logger"
)

// Example_basic demonstrates basic logger usage
func Example_basic() {
	cfg := &config.Config{
		Env:       "development",
		LogLevel:  "info",
		LogFormat: "console",
	}

	// Create logger (SSOT)
	log := logger.New(cfg)

	log.Debug("This won't appear (level is info)")
	log.Info("Feature store build started")
	log.WithTenant(1).WithField("series", 40).Info("Scope resolved")
}

// Example_withFields demonstrates structured logging with fields
func Example_withFields() {
	cfg := &config.Config{
		Env:       "production",
		LogLevel:  "info",
		LogFormat: "json",
	}

	log := logger.New(cfg)

	buildLog := log.WithFields(map[string]interface{}{
		"tenant_id":     1,
		"rows_inserted": 1600,
		"weather_pct":   97.5,
	})
	buildLog.Info("Feature store build completed")
}

// Example_component demonstrates component loggers handed to pipeline stages
func Example_component() {
	cfg := &config.Config{
		Env:       "production",
		LogLevel:  "info",
		LogFormat: "json",
	}

	log := logger.New(cfg)
	trainerLog := log.Component("forecast.trainer")

	err := errors.New("singular design matrix")
	trainerLog.Warn().Err(err).Str("model", "ridge_regression").Msg("candidate failed")
}
