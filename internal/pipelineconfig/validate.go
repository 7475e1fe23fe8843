package pipelineconfig

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// ValidationError 검증 실패 (프로그램 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// KnownModels 후보 로스터에 허용되는 모델 이름
var KnownModels = []string{"seasonal_naive", "holt_winters", "ridge_regression", "gradient_boosting"}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate checks struct tags first, then cross-field rules
func Validate(cfg *Config) error {
	if err := structValidator().Struct(cfg); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return ValidationError{
				Field:   strings.TrimPrefix(fe.Namespace(), "Config."),
				Message: fmt.Sprintf("failed '%s' (%s)", fe.Tag(), fe.Param()),
			}
		}
		return err
	}

	// === Features ===
	if hasDuplicates(cfg.Features.LagDays) {
		return ValidationError{"features.lag_days", "must not contain duplicates"}
	}
	if hasDuplicates(cfg.Features.RollingWindows) {
		return ValidationError{"features.rolling_windows", "must not contain duplicates"}
	}
	for _, w := range cfg.Features.RollingWindows {
		if cfg.Features.RollingMinPeriods > w {
			return ValidationError{"features.rolling_min_periods", fmt.Sprintf("must be <= every rolling window, got %d > %d", cfg.Features.RollingMinPeriods, w)}
		}
	}

	// === Validation ===
	known := make(map[string]bool)
	for _, n := range cfg.Features.FeatureNames() {
		known[n] = true
	}
	for i, f := range cfg.Validation.RequiredFeatures {
		if !known[f] && !isSignalFeature(f) {
			return ValidationError{fmt.Sprintf("validation.required_features[%d]", i), fmt.Sprintf("unknown feature %q", f)}
		}
	}

	// === Training ===
	allowed := make(map[string]bool)
	for _, m := range KnownModels {
		allowed[m] = true
	}
	seen := make(map[string]bool)
	for i, c := range cfg.Training.Candidates {
		if !allowed[c] {
			return ValidationError{fmt.Sprintf("training.candidates[%d]", i), fmt.Sprintf("unknown model %q", c)}
		}
		if seen[c] {
			return ValidationError{fmt.Sprintf("training.candidates[%d]", i), fmt.Sprintf("duplicate model %q", c)}
		}
		seen[c] = true
	}
	if !seen[cfg.Training.Baseline] {
		return ValidationError{"training.baseline", "must be one of training.candidates"}
	}

	return nil
}

// SignalFeatures 검증 대상이 될 수 있는 시그널 컬럼 이름
var SignalFeatures = []string{
	"temperature_avg", "temperature_max", "temperature_min",
	"precipitation_mm", "wind_max_kmh", "weather_code", "event_score",
}

func isSignalFeature(name string) bool {
	for _, s := range SignalFeatures {
		if s == name {
			return true
		}
	}
	return false
}

func hasDuplicates(values []int) bool {
	seen := make(map[int]bool, len(values))
	for _, v := range values {
		if seen[v] {
			return true
		}
		seen[v] = true
	}
	return false
}
