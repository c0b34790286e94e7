package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode       string `mapstructure:"mode" validate:"oneof=debug release test"`
	Port       int    `mapstructure:"port" validate:"min=1,max=65535"`
	LogLevel   string `mapstructure:"log_level" validate:"oneof=trace debug info warn error"`
	StaticPath string `mapstructure:"static_path"`

	ReadLimit    int64         `mapstructure:"read_limit" validate:"min=512"`
	PingPeriod   time.Duration `mapstructure:"ping_period" validate:"gt=0"`
	PongWait     time.Duration `mapstructure:"pong_wait" validate:"gtfield=PingPeriod"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" validate:"gt=0"`
	SendBuffer   int           `mapstructure:"send_buffer" validate:"min=1"`

	Secret         string   `mapstructure:"secret" validate:"required,min=16"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`

	CodeLength        int  `mapstructure:"code_length" validate:"min=4,max=16"`
	CodeAttempts      int  `mapstructure:"code_attempts" validate:"min=1"`
	PersistPoseUpdate bool `mapstructure:"persist_pose_updates"`

	JoinRateLimit    int           `mapstructure:"join_rate_limit" validate:"min=1"`
	JoinRateInterval time.Duration `mapstructure:"join_rate_interval" validate:"gt=0"`
}

var validate = validator.New()

// Load reads config/config.<CONFIG_ENV>.yaml (dev when unset). A missing file
// is not an error, defaults and PHYSIO_* env vars still apply.
func Load() (*Config, error) {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFile(fmt.Sprintf("config/config.%s.yaml", env))
}

func LoadFile(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)
	v.SetEnvPrefix("PHYSIO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", fileName, err)
		}
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("config loaded")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Str("static", cfg.StaticPath).Bool("persist_pose_updates", cfg.PersistPoseUpdate).Msg("config ready")
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 65536)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("pong_wait", "60s")
	v.SetDefault("write_timeout", "10s")
	v.SetDefault("send_buffer", 32)
	v.SetDefault("secret", "physio-dev-secret-change-me")
	v.SetDefault("allowed_origins", []string{})
	v.SetDefault("code_length", 6)
	v.SetDefault("code_attempts", 100)
	v.SetDefault("persist_pose_updates", false)
	v.SetDefault("join_rate_limit", 20)
	v.SetDefault("join_rate_interval", "1m")
}
