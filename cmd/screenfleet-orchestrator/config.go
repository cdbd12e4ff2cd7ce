package main

import (
	"errors"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Log   LogConfig   `mapstructure:"log"`
	Http  HttpConfig  `mapstructure:"http"`
	Poll  PollConfig  `mapstructure:"poll"`
	Agent AgentConfig `mapstructure:"agent"`
}

type HttpConfig struct {
	Host string `mapstructure:"host"`
	Port uint   `mapstructure:"port"`
}

type PollConfig struct {
	CycleSeconds int `mapstructure:"cycle_seconds"`
	StaggerMs    int `mapstructure:"stagger_ms"`
}

type AgentConfig struct {
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	DefaultURL     string `mapstructure:"default_url"`
	DefaultToken   string `mapstructure:"default_token"`
}

var config Config

func InitConfig() {
	_ = godotenv.Load()

	viper.SetConfigName("application")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./cmd/screenfleet-orchestrator")
	viper.SetConfigType("yaml")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	_ = viper.BindEnv("agent.default_url", "VM_AGENT_URL")
	_ = viper.BindEnv("agent.default_token", "AGENT_API_TOKEN")

	viper.SetDefault("http.host", "0.0.0.0")
	viper.SetDefault("http.port", 5000)
	viper.SetDefault("poll.cycle_seconds", 5)
	viper.SetDefault("poll.stagger_ms", 500)
	viper.SetDefault("agent.timeout_seconds", 5)

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
