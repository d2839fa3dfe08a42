// Package config loads service configuration from environment variables and
// optional .env files, then validates it before the server starts.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/novatv-digital/adexclusion/internal/domain"
)

// Config holds all configuration for the ad exclusion service.
type Config struct {
	Server struct {
		Port         int           `env:"PORT" envDefault:"8080" validate:"min=1,max=65535"`
		ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
		WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
		BodyLimit    int           `env:"BODY_LIMIT" envDefault:"1048576" validate:"min=1"` // 1MB
	}

	Store struct {
		Type          string `env:"STORE_TYPE" envDefault:"memory" validate:"oneof=memory redis"`
		DataDir       string `env:"DATA_DIR" envDefault:""`
		RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
		RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
		RedisDB       int    `env:"REDIS_DB" envDefault:"0" validate:"min=0,max=15"`
	}

	Cache struct {
		MaxSize int `env:"CACHE_MAX_SIZE" envDefault:"16" validate:"min=2"`
	}

	Scheduler struct {
		CronSecret string        `env:"CRON_SECRET" envDefault:""`
		Window     time.Duration `env:"TRANSITION_WINDOW" envDefault:"90s"`
	}

	Purge struct {
		ZoneID        string        `env:"CDN_ZONE_ID" envDefault:""`
		APIToken      string        `env:"CDN_API_TOKEN" envDefault:""`
		APIBase       string        `env:"CDN_API_BASE" envDefault:""`
		Timeout       time.Duration `env:"CDN_PURGE_TIMEOUT" envDefault:"10s"`
		ProdScriptURL string        `env:"PROD_SCRIPT_URL" envDefault:""`
		DevScriptURL  string        `env:"DEV_SCRIPT_URL" envDefault:""`
	}

	Security struct {
		CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," validate:"cors_origins"`
	}

	Logging struct {
		Level  string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`
		Format string `env:"LOG_FORMAT" envDefault:"json" validate:"oneof=json text"`
	}
}

// Load loads configuration from environment variables and .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration using struct tags plus a few
// cross-field checks struct tags cannot express.
func Validate(cfg *Config) error {
	v := validator.New()

	if err := v.RegisterValidation("cors_origins", validateCORSOrigins); err != nil {
		return fmt.Errorf("failed to register cors_origins validation: %w", err)
	}

	if err := v.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	return validateCustomRules(cfg)
}

// ScriptURLs maps each environment to the public URL the CDN serves its
// script under, for purge-by-URL.
func (cfg *Config) ScriptURLs() map[domain.Environment]string {
	urls := make(map[domain.Environment]string)
	if cfg.Purge.ProdScriptURL != "" {
		urls[domain.EnvProd] = cfg.Purge.ProdScriptURL
	}
	if cfg.Purge.DevScriptURL != "" {
		urls[domain.EnvDev] = cfg.Purge.DevScriptURL
	}
	return urls
}

func validateCORSOrigins(fl validator.FieldLevel) bool {
	origins := fl.Field().Interface().([]string)
	for _, origin := range origins {
		origin = strings.TrimSpace(origin)
		if origin == "" {
			continue
		}
		if origin != "*" && !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			return false
		}
	}
	return true
}

func validateCustomRules(cfg *Config) error {
	if cfg.Server.ReadTimeout < time.Millisecond {
		return fmt.Errorf("read timeout must be at least 1ms")
	}
	if cfg.Server.WriteTimeout < time.Millisecond {
		return fmt.Errorf("write timeout must be at least 1ms")
	}
	if cfg.Scheduler.Window < time.Second {
		return fmt.Errorf("transition window must be at least 1 second")
	}
	if cfg.Store.Type == "redis" && cfg.Store.RedisAddr == "" {
		return fmt.Errorf("redis address cannot be empty when store type is redis")
	}
	// Credentials without URLs (or vice versa) would make purge a silent no-op.
	if cfg.Purge.ZoneID != "" && cfg.Purge.APIToken != "" {
		if cfg.Purge.ProdScriptURL == "" {
			return fmt.Errorf("PROD_SCRIPT_URL is required when CDN purge credentials are set")
		}
	}
	return nil
}

// formatValidationError formats validation errors into readable messages.
func formatValidationError(err error) error {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		var messages []string
		for _, e := range validationErrors {
			switch e.Tag() {
			case "required":
				messages = append(messages, fmt.Sprintf("%s is required", e.Field()))
			case "min":
				messages = append(messages, fmt.Sprintf("%s must be at least %s", e.Field(), e.Param()))
			case "max":
				messages = append(messages, fmt.Sprintf("%s must be at most %s", e.Field(), e.Param()))
			case "oneof":
				messages = append(messages, fmt.Sprintf("%s must be one of: %s", e.Field(), e.Param()))
			case "cors_origins":
				messages = append(messages, fmt.Sprintf("%s contains invalid origin format", e.Field()))
			default:
				messages = append(messages, fmt.Sprintf("%s failed validation: %s", e.Field(), e.Tag()))
			}
		}
		return fmt.Errorf("validation errors: %s", strings.Join(messages, "; "))
	}
	return err
}
