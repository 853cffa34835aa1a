package config

import (
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Конфигурация движка и демонстрационного бинаря
type Config struct {
	DatabaseURL string // реляционные таблицы бэкенда
	RealtimeURL string // websocket-канал; пусто - LISTEN/NOTIFY поверх DatabaseURL
	HTTPAddr    string // адрес read-model сервера
	Migrate     bool   // прогнать goose-миграции при старте

	PageSize    int
	MaxComments int

	// Текущий пользователь (контекст идентичности)
	UserID      string
	DisplayName string
	AvatarURL   string
	Role        string
}

// Load читает config.yml и переменные окружения; значения по умолчанию
// позволяют поднять движок без файла вообще
func Load() (*Config, error) {
	viper.SetConfigType("yaml")
	viper.SetConfigName("config.yml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("../config")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("http_addr", ":8080")
	viper.SetDefault("page_size", 8)
	viper.SetDefault("max_comments", 100)
	viper.SetDefault("migrate", false)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			logrus.Info("No config file found, using defaults and environment")
		} else {
			logrus.Errorf("Config error: %v", err)
			return nil, err
		}
	} else {
		logrus.Infof("Successfully read config file: %s", viper.ConfigFileUsed())
	}

	cfg := &Config{
		DatabaseURL: viper.GetString("database_url"),
		RealtimeURL: viper.GetString("realtime_url"),
		HTTPAddr:    viper.GetString("http_addr"),
		Migrate:     viper.GetBool("migrate"),
		PageSize:    viper.GetInt("page_size"),
		MaxComments: viper.GetInt("max_comments"),
		UserID:      viper.GetString("user.id"),
		DisplayName: viper.GetString("user.display_name"),
		AvatarURL:   viper.GetString("user.avatar_url"),
		Role:        viper.GetString("user.role"),
	}
	return cfg, nil
}
