package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "ROOMCHAT"

type Config struct {
	Mode            string        `mapstructure:"mode" validate:"oneof=debug release test"`
	Port            int           `mapstructure:"port" validate:"min=1,max=65535"`
	StaticPath      string        `mapstructure:"static_path"`
	ReadLimit       int64         `mapstructure:"read_limit" validate:"gt=0"`
	PingPeriod      time.Duration `mapstructure:"ping_period" validate:"gt=0,ltfield=PongWait"`
	PongWait        time.Duration `mapstructure:"pong_wait" validate:"gt=0"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" validate:"gt=0"`
	SendBuffer      int           `mapstructure:"send_buffer" validate:"gt=0"`
	Secret          string        `mapstructure:"secret" validate:"required"`
	DefaultRoom     string        `mapstructure:"default_room" validate:"required"`
	LogLevel        string        `mapstructure:"log_level" validate:"oneof=trace debug info warn error"`
	Backpressure    string        `mapstructure:"backpressure" validate:"oneof=kick drop"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// Flags returns the command line flags Load understands.
func Flags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("roomchat", pflag.ContinueOnError)
	fs.String("config", "", "path to a yaml config file")
	fs.Int("port", 8080, "listen port")
	fs.String("log_level", "info", "trace|debug|info|warn|error")
	return fs
}

// Load reads config/config.<CONFIG_ENV>.yaml (or --config), then
// ROOMCHAT_* env vars, then explicitly set flags. fs may be nil.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)
	if fs != nil {
		if p, _ := fs.GetString("config"); p != "" {
			fileName = p
		}
	}

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("pong_wait", "60s")
	v.SetDefault("write_timeout", "10s")
	v.SetDefault("send_buffer", 256)
	v.SetDefault("secret", "dev-secret-change")
	v.SetDefault("default_room", "general")
	v.SetDefault("log_level", "info")
	v.SetDefault("backpressure", "kick")
	v.SetDefault("allowed_origins", []string{"*"})
	v.SetDefault("shutdown_timeout", "5s")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for _, name := range []string{"port", "log_level"} {
			if f := fs.Lookup(name); f != nil && f.Changed {
				if err := v.BindPFlag(name, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		fileLoaded = false
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if fileLoaded {
		watchLogLevel(v)
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Str("static", cfg.StaticPath).Msg("config ready")
	return &cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Level converts LogLevel for zerolog; unknown values mean info.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || c.LogLevel == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

// watchLogLevel applies log_level edits of the config file without a restart.
// Other keys need a restart.
func watchLogLevel(v *viper.Viper) {
	v.OnConfigChange(func(e fsnotify.Event) {
		lvl, err := zerolog.ParseLevel(v.GetString("log_level"))
		if err != nil {
			log.Warn().Err(err).Str("module", "config").Str("file", e.Name).Msg("ignoring log_level change")
			return
		}
		zerolog.SetGlobalLevel(lvl)
		log.Info().Str("module", "config").Str("file", e.Name).Str("level", lvl.String()).Msg("log level reloaded")
	})
	v.WatchConfig()
}
