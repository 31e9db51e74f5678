package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"signal_bot/internal/models"
)

const (
	configFilePathENV = "CONFIG_FILE"
	tokenTelegramENV  = "TELEGRAM_TOKEN"
	databaseDSN       = "DATABASE_DSN"

	envPrefix = "SIGNAL_BOT"
	configDir = "configs"
)

const (
	ExecutorWS     = "ws"
	ExecutorDryRun = "dry_run"

	JournalNone     = "none"
	JournalJSONL    = "jsonl"
	JournalSQLite   = "sqlite"
	JournalPostgres = "postgres"
)

// Config: весь конфиг бота, собирается один раз до старта fx.
type Config struct {
	Log struct {
		Level       string `mapstructure:"level"`
		Development bool   `mapstructure:"development"`
	} `mapstructure:"log"`

	Telegram TelegramConfig `mapstructure:"telegram"`
	DB       string         `mapstructure:"db_dsn"`

	Service struct {
		Host      string `mapstructure:"host"`
		AdminPort int    `mapstructure:"admin_port"`
	} `mapstructure:"service"`

	Parser struct {
		// шаг Anna-мартингейла, когда таймфрейм не указан
		DefaultMartingaleInterval time.Duration `mapstructure:"default_martingale_interval"`
	} `mapstructure:"parser"`

	Executor ExecutorConfig `mapstructure:"executor"`
	Verify   VerifyConfig   `mapstructure:"verify"`
	Schedule ScheduleConfig `mapstructure:"schedule"`

	Status struct {
		History int `mapstructure:"history"`
	} `mapstructure:"status"`

	Journal JournalConfig `mapstructure:"journal"`
	Tracing TracingConfig `mapstructure:"tracing"`

	v *viper.Viper
}

type TelegramConfig struct {
	Token string `mapstructure:"token"`
	// Source: id чата ("-100123...") или "@username" канала с сигналами.
	Source       string        `mapstructure:"source"`
	NotifyChatID int64         `mapstructure:"notify_chat_id"`
	NotifyEvery  time.Duration `mapstructure:"notify_every"`
	NotifyBurst  int           `mapstructure:"notify_burst"`
	PollTimeout  int           `mapstructure:"poll_timeout"` // секунды
	Debug        bool          `mapstructure:"debug"`
}

type ExecutorConfig struct {
	Mode        string        `mapstructure:"mode"`
	WSURL       string        `mapstructure:"ws_url"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	CallTimeout time.Duration `mapstructure:"call_timeout"`
	DryRun      struct {
		WinRate float64       `mapstructure:"win_rate"`
		Latency time.Duration `mapstructure:"latency"`
		Seed    int64         `mapstructure:"seed"`
	} `mapstructure:"dry_run"`
}

type VerifyConfig struct {
	MaxRetries int           `mapstructure:"max_retries"`
	RetryWait  time.Duration `mapstructure:"retry_wait"`
}

type ScheduleConfig struct {
	Tolerance        time.Duration `mapstructure:"tolerance"`
	PollInterval     time.Duration `mapstructure:"poll_interval"`
	VerifyLead       time.Duration `mapstructure:"verify_lead"`
	// проверка дашборда (или удачный вызов адаптера) моложе VerifyMaxAge не повторяется
	VerifyMaxAge     time.Duration `mapstructure:"verify_max_age"`
	ResultGrace      time.Duration `mapstructure:"result_grace"`
	Cooldown         time.Duration `mapstructure:"cooldown"`
	MaxMartingale    int           `mapstructure:"max_martingale"`
	AutoStart        bool          `mapstructure:"auto_start"`
	DefaultTimeframe string        `mapstructure:"default_timeframe"`
	DefaultOffset    time.Duration `mapstructure:"default_offset"`
	// ключи в нижнем регистре: viper приводит их сам
	SourceOffsets map[string]time.Duration `mapstructure:"source_offsets"`
}

type JournalConfig struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
	Buffer int    `mapstructure:"buffer"`
}

type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	ServiceName string `mapstructure:"service_name"`
}

func NewConfig() (*Config, error) {
	// .env необязателен
	_ = godotenv.Load()

	return Load(filepath.Join(configDir, getenvDefault(configFilePathENV, "values_local.yaml")))
}

// Load читает path, накладывает SIGNAL_BOT_* и старые переменные окружения, потом валидирует.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}

	cfg := &Config{v: v}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}

	if token := os.Getenv(tokenTelegramENV); token != "" {
		cfg.Telegram.Token = token
	}
	if dsn := os.Getenv(databaseDSN); dsn != "" {
		cfg.DB = dsn
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.source", "")
	v.SetDefault("telegram.notify_chat_id", 0)
	v.SetDefault("telegram.notify_every", "2s")
	v.SetDefault("telegram.notify_burst", 5)
	v.SetDefault("telegram.poll_timeout", 30)
	v.SetDefault("telegram.debug", false)

	v.SetDefault("db_dsn", "")

	v.SetDefault("service.host", "127.0.0.1")
	v.SetDefault("service.admin_port", 8080)

	v.SetDefault("parser.default_martingale_interval", "5m")

	v.SetDefault("executor.mode", ExecutorWS)
	v.SetDefault("executor.ws_url", "")
	v.SetDefault("executor.dial_timeout", "10s")
	v.SetDefault("executor.call_timeout", "30s")
	v.SetDefault("executor.dry_run.win_rate", 0.5)
	v.SetDefault("executor.dry_run.latency", "500ms")
	v.SetDefault("executor.dry_run.seed", 0)

	v.SetDefault("verify.max_retries", 3)
	v.SetDefault("verify.retry_wait", "3m")

	v.SetDefault("schedule.tolerance", "5s")
	v.SetDefault("schedule.poll_interval", "1s")
	v.SetDefault("schedule.verify_lead", "15s")
	v.SetDefault("schedule.verify_max_age", "15s")
	v.SetDefault("schedule.result_grace", "30s")
	v.SetDefault("schedule.cooldown", "1s")
	v.SetDefault("schedule.max_martingale", 0)
	v.SetDefault("schedule.auto_start", true)
	v.SetDefault("schedule.default_timeframe", string(models.TimeframeM5))
	v.SetDefault("schedule.default_offset", "0s")
	v.SetDefault("schedule.source_offsets", map[string]any{
		"utc-4":    "-4h",
		"cameroon": "1h",
	})

	v.SetDefault("status.history", 10)

	v.SetDefault("journal.driver", JournalJSONL)
	v.SetDefault("journal.path", "logs/journal.jsonl")
	v.SetDefault("journal.buffer", 256)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.host", "localhost")
	v.SetDefault("tracing.port", 6831)
	v.SetDefault("tracing.service_name", "signal_bot")
}

// Validate вызывается до запуска планировщика; невалидный конфиг прерывает старт.
func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return errors.New("telegram.token is required (or env " + tokenTelegramENV + ")")
	}
	if strings.TrimSpace(c.Telegram.Source) == "" {
		return errors.New("telegram.source is required")
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(err, "log.level")
	}

	switch c.Executor.Mode {
	case ExecutorWS:
		if c.Executor.WSURL == "" {
			return errors.New("executor.ws_url is required for mode " + ExecutorWS)
		}
	case ExecutorDryRun:
		if r := c.Executor.DryRun.WinRate; r < 0 || r > 1 {
			return errors.Errorf("executor.dry_run.win_rate must be in [0,1], got %v", r)
		}
	default:
		return errors.Errorf("executor.mode: unknown %q", c.Executor.Mode)
	}

	positive := map[string]time.Duration{
		"executor.call_timeout":  c.Executor.CallTimeout,
		"executor.dial_timeout":  c.Executor.DialTimeout,
		"verify.retry_wait":      c.Verify.RetryWait,
		"schedule.tolerance":     c.Schedule.Tolerance,
		"schedule.poll_interval": c.Schedule.PollInterval,
	}
	for key, d := range positive {
		if d <= 0 {
			return errors.Errorf("%s must be > 0, got %s", key, d)
		}
	}
	if c.Verify.MaxRetries < 0 {
		return errors.Errorf("verify.max_retries must be >= 0, got %d", c.Verify.MaxRetries)
	}
	if c.Schedule.MaxMartingale < 0 {
		return errors.Errorf("schedule.max_martingale must be >= 0, got %d", c.Schedule.MaxMartingale)
	}
	if c.Schedule.VerifyLead < 0 || c.Schedule.VerifyMaxAge < 0 || c.Schedule.ResultGrace < 0 || c.Schedule.Cooldown < 0 {
		return errors.New("schedule durations must not be negative")
	}
	if _, ok := models.ParseTimeframe(c.Schedule.DefaultTimeframe); !ok {
		return errors.Errorf("schedule.default_timeframe: unknown %q", c.Schedule.DefaultTimeframe)
	}

	switch c.Journal.Driver {
	case "", JournalNone:
	case JournalJSONL, JournalSQLite:
		if c.Journal.Path == "" {
			return errors.Errorf("journal.path is required for driver %s", c.Journal.Driver)
		}
	case JournalPostgres:
		if c.DB == "" {
			return errors.New("db_dsn is required for journal driver " + JournalPostgres)
		}
	default:
		return errors.Errorf("journal.driver: unknown %q", c.Journal.Driver)
	}
	return nil
}

// SourceChat разбирает telegram.source: числовой id или @username.
func (c *Config) SourceChat() (int64, string) {
	src := strings.TrimSpace(c.Telegram.Source)
	if id, err := strconv.ParseInt(src, 10, 64); err == nil {
		return id, ""
	}
	if !strings.HasPrefix(src, "@") {
		src = "@" + src
	}
	return 0, src
}

func (c *Config) DefaultTimeframe() models.Timeframe {
	tf, _ := models.ParseTimeframe(c.Schedule.DefaultTimeframe)
	return tf
}

func (c *Config) AdminAddr() string {
	return c.Service.Host + ":" + strconv.Itoa(c.Service.AdminPort)
}

// WatchLogLevel вызывает fn с log.level после каждого изменения файла конфига.
func (c *Config) WatchLogLevel(fn func(level string)) {
	if c.v == nil {
		return
	}
	c.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		fn(c.v.GetString("log.level"))
	})
	c.v.WatchConfig()
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
