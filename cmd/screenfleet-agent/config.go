package main

import (
	"errors"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Http      HttpConfig      `mapstructure:"http"`
	Capture   CaptureConfig   `mapstructure:"capture"`
	Exec      ExecConfig      `mapstructure:"exec"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type HttpConfig struct {
	Host string `mapstructure:"host"`
	Port uint   `mapstructure:"port"`
}

type CaptureConfig struct {
	Quality          int `mapstructure:"quality"`
	StreamIntervalMs int `mapstructure:"stream_interval_ms"`
}

type ExecConfig struct {
	LiveRun   bool   `mapstructure:"live_run"`
	Token     string `mapstructure:"token"`
	AuditPath string `mapstructure:"audit_path"`
}

type RateLimitConfig struct {
	WindowSeconds int `mapstructure:"window_seconds"`
	Limit         int `mapstructure:"limit"`
}

var config Config

func InitConfig() {
	_ = godotenv.Load()

	viper.SetConfigName("application")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./cmd/screenfleet-agent")
	viper.SetConfigType("yaml")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	_ = viper.BindEnv("exec.token", "AGENT_API_TOKEN")

	viper.SetDefault("http.host", "0.0.0.0")
	viper.SetDefault("http.port", 8000)
	viper.SetDefault("capture.quality", 80)
	viper.SetDefault("capture.stream_interval_ms", 100)
	viper.SetDefault("exec.audit_path", "agent_audit.jsonl")
	viper.SetDefault("rate_limit.window_seconds", 60)
	viper.SetDefault("rate_limit.limit", 60)

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			panic(err)
		}
	}

	if err := viper.Unmarshal(&config); err != nil {
		panic(err)
	}

	initLogger(config.Log.Level)
}
