package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

type AppConfig struct {
	ServerName  string         `mapstructure:"server_name" yaml:"server_name"`
	Version     string         `mapstructure:"version" yaml:"version"`
	Environment string         `mapstructure:"environment" yaml:"environment"`
	Port        int            `mapstructure:"port" yaml:"port"`
	Postgres    PostgresConfig `mapstructure:"postgres" yaml:"postgres"`
	Redis       RedisConfig    `mapstructure:"redis" yaml:"redis"`
	Consul      ConsulConfig   `mapstructure:"consul" yaml:"consul"`
	Auth        AuthConfig     `mapstructure:"auth" yaml:"auth"`
	Provider    ProviderConfig `mapstructure:"provider" yaml:"provider"`
	RocketMQ    RocketMQConfig `mapstructure:"rocketmq" yaml:"rocketmq"`
}

type PostgresConfig struct {
	Address  string `mapstructure:"address" yaml:"address"`
	Port     int    `mapstructure:"port" yaml:"port"`
	User     string `mapstructure:"user" yaml:"user"`
	Password string `mapstructure:"password" yaml:"password"`
	DBName   string `mapstructure:"db_name" yaml:"db_name"`
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.Address, c.Port, c.User, c.Password, c.DBName)
}

type RedisConfig struct {
	Address      string `mapstructure:"address" yaml:"address"`
	Port         int    `mapstructure:"port" yaml:"port"`
	Password     string `mapstructure:"password" yaml:"password"`
	Database     int    `mapstructure:"database" yaml:"database"`
	RateLimitQPS int    `mapstructure:"rate_limit_qps" yaml:"rate_limit_qps"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Address, c.Port)
}

type ConsulConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	Address    string `mapstructure:"address" yaml:"address"`
	Scheme     string `mapstructure:"scheme" yaml:"scheme"`
	Datacenter string `mapstructure:"datacenter" yaml:"datacenter"`
}

type AuthConfig struct {
	JwtSecret        string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	Expire_Access_H  int    `mapstructure:"expire_access_h" yaml:"expire_access_h"`
	Expire_Refresh_H int    `mapstructure:"expire_refresh_h" yaml:"expire_refresh_h"`
}

// ProviderConfig configures the AI provider adapter. The API key itself is
// NOT part of the config: the adapter reads it from the environment on
// every call so rotation takes effect without a restart.
type ProviderConfig struct {
	Name           string `mapstructure:"name" yaml:"name"`
	BaseURL        string `mapstructure:"base_url" yaml:"base_url"`
	DefaultModel   string `mapstructure:"default_model" yaml:"default_model"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

type RocketMQConfig struct {
	NameServers []string `mapstructure:"name_servers" yaml:"name_servers"`
	GroupName   string   `mapstructure:"group_name" yaml:"group_name"`
	MaxRetries  int      `mapstructure:"max_retries" yaml:"max_retries"`
}

func LoadConfig() (*AppConfig, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile("config/config.yml")
	v.SetConfigType("yaml")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 配置文件可选，环境变量优先
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var config AppConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server_name", "chat-bot-backend")
	v.SetDefault("version", "1.0.0")
	v.SetDefault("environment", "development")
	v.SetDefault("port", 8080)

	v.SetDefault("postgres.address", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "chatbot")
	v.SetDefault("postgres.password", "chatbot-passwd")
	v.SetDefault("postgres.db_name", "chatbot")

	v.SetDefault("redis.address", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.database", 0)
	v.SetDefault("redis.rate_limit_qps", 10)

	v.SetDefault("consul.enabled", false)
	v.SetDefault("consul.address", "localhost:8500")
	v.SetDefault("consul.scheme", "http")
	v.SetDefault("consul.datacenter", "dc1")

	v.SetDefault("auth.jwt_secret", "chat_bot_secret")
	v.SetDefault("auth.expire_access_h", 24)
	v.SetDefault("auth.expire_refresh_h", 168)

	v.SetDefault("provider.name", "deepseek")
	v.SetDefault("provider.base_url", "https://api.deepseek.com/v1")
	v.SetDefault("provider.default_model", "deepseek-chat")
	v.SetDefault("provider.timeout_seconds", 60)

	v.SetDefault("rocketmq.group_name", "chat-bot-backend")
	v.SetDefault("rocketmq.max_retries", 2)
}
