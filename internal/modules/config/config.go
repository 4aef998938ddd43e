package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

const (
	configFilePathENV = "CONFIG_FILE"
	tokenTelegramENV  = "TELEGRAM_TOKEN"
	databaseDSN       = "DATABASE_DSN"
)

// Config — единственный явный конфиг процесса; глобальных настроек нет,
// компоненты получают его через fx.
type Config struct {
	Telegram struct {
		Token string `mapstructure:"token"`
	} `mapstructure:"telegram"`
	DB string `mapstructure:"db_dsn"`

	Binance struct {
		BaseURL string `mapstructure:"base_url"`
		WSURL   string `mapstructure:"ws_url"`
	} `mapstructure:"binance"`

	Jaeger struct {
		Host string `mapstructure:"host"`
		Port int    `mapstructure:"port"`
	} `mapstructure:"jaeger"`

	Health struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"health"`

	// Параметры жизненного цикла сделки.
	OrderBookDepth       int `mapstructure:"order_book_depth"`
	FillPollSeconds      int `mapstructure:"fill_poll_seconds"`
	FillWaitSeconds      int `mapstructure:"fill_wait_seconds"`
	TakeProfitPendingMax int `mapstructure:"take_profit_pending_max"`
	ManageMaxWeeks       int `mapstructure:"manage_max_weeks"`
	SchedPollSeconds     int `mapstructure:"sched_poll_seconds"`

	TimeframesFile string `mapstructure:"timeframes_file"`

	// Таймфрейм -> пауза цикла управления в секундах (из timeframes_file).
	TimeframeWaits map[string]int `mapstructure:"-"`
}

func NewConfig() (*Config, error) {
	configFileName := os.Getenv(configFilePathENV)
	if configFileName == "" {
		configFileName = "values_local.yaml"
	}

	v := viper.New()
	v.SetConfigFile("configs/" + configFileName)
	v.SetConfigType("yaml")

	v.SetDefault("binance.base_url", "https://fapi.binance.com")
	v.SetDefault("binance.ws_url", "wss://fstream.binance.com/ws")
	v.SetDefault("health.addr", ":8080")
	v.SetDefault("jaeger.port", 6831)
	v.SetDefault("order_book_depth", 5)
	v.SetDefault("fill_poll_seconds", 5)
	v.SetDefault("fill_wait_seconds", 30)
	v.SetDefault("take_profit_pending_max", 10)
	v.SetDefault("manage_max_weeks", 10)
	v.SetDefault("sched_poll_seconds", 3)
	v.SetDefault("timeframes_file", "configs/timeframes.yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrap(err, "read config file")
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "decode config file")
	}

	if token := os.Getenv(tokenTelegramENV); token != "" {
		config.Telegram.Token = token
	}
	if dsn := os.Getenv(databaseDSN); dsn != "" {
		config.DB = dsn
	}

	waits, err := loadTimeframes(config.TimeframesFile)
	if err != nil {
		return nil, err
	}
	config.TimeframeWaits = waits

	return &config, nil
}

// WaitInterval — пауза между итерациями управления для таймфрейма.
// Неизвестный таймфрейм получает минуту, чтобы цикл не молотил биржу.
func (c *Config) WaitInterval(timeframe string) time.Duration {
	if sec, ok := c.TimeframeWaits[timeframe]; ok && sec > 0 {
		return time.Duration(sec) * time.Second
	}
	return time.Minute
}

func loadTimeframes(path string) (map[string]int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read timeframes file")
	}

	var parsed struct {
		Timeframes []struct {
			Timeframe string `yaml:"timeframe"`
			Wait      int    `yaml:"wait"`
		} `yaml:"timeframes"`
	}
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return nil, errors.Wrap(err, "decode timeframes file")
	}

	waits := make(map[string]int, len(parsed.Timeframes))
	for _, tf := range parsed.Timeframes {
		waits[tf.Timeframe] = tf.Wait
	}
	return waits, nil
}
