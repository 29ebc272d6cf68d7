// Package config загружает конфигурацию сервиса из переменных окружения.
// Используется envconfig для маппинга переменных окружения на поля структуры.
package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config содержит ВСЕ настройки приложения.
type Config struct {
	// --- HTTP ---
	HTTPPort int `envconfig:"HTTP_PORT" default:"8080"`

	// --- Database ---
	// В Docker внутри контейнера "localhost" почти всегда неправильно.
	// Дефолт ставим "postgres" (имя сервиса в docker-compose), а для локалки переопределяй DB_HOST=localhost.
	DBHost     string `envconfig:"DB_HOST" default:"postgres"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"gacha"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" default:"gacha"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns int32  `envconfig:"DB_MIN_CONNS" default:"5"`

	// --- Application ---
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"debug"`

	// --- Gacha ---
	// Сколько розыгрышей покрывает один билет при возврате за отмену.
	GachaDrawsPerTicket int `envconfig:"GACHA_DRAWS_PER_TICKET" default:"10"`
	// Размер мульти-розыгрыша ("десятка").
	GachaTenfoldPulls int `envconfig:"GACHA_TENFOLD_PULLS" default:"10"`
	// Вероятность полного проигрыша (0.0–1.0), если не задана в gacha_config.
	GachaDefaultLossRate float64 `envconfig:"GACHA_DEFAULT_LOSS_RATE" default:"0.6"`
	// Процент честных подсказок в тайтл-ролике (0–100).
	GachaTitleHintRate float64 `envconfig:"GACHA_TITLE_HINT_RATE" default:"60"`

	// --- Tickets ---
	TicketsInitialGrant int `envconfig:"TICKETS_INITIAL_GRANT" default:"30"`

	// --- Auto-award (восстановление зависших розыгрышей) ---
	// Через сколько часов незавершённый розыгрыш подхватывается фоновым начислением.
	AutoAwardAfterHours int `envconfig:"AUTO_AWARD_AFTER_HOURS" default:"24"`
	// Максимум записей за один проход.
	AutoAwardBatchLimit int `envconfig:"AUTO_AWARD_BATCH_LIMIT" default:"100"`
	// Секрет для внешнего планировщика (заголовок Authorization: Bearer ...).
	CronSecret string `envconfig:"CRON_SECRET" default:""`

	// --- Admin ---
	AdminPasswordHash string `envconfig:"ADMIN_PASSWORD_HASH" required:"true"`
	// Страница массового начисления за один запрос.
	AdminBulkLimit int `envconfig:"ADMIN_BULK_LIMIT" default:"200"`

	// --- Notifications (опционально) ---
	TelegramBotToken  string `envconfig:"TELEGRAM_BOT_TOKEN" default:""`
	TelegramOpsChatID int64  `envconfig:"TELEGRAM_OPS_CHAT_ID" default:"0"`

	// --- Read-model cache (опционально) ---
	RedisAddr     string `envconfig:"REDIS_ADDR" default:""`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisChannel  string `envconfig:"REDIS_COLLECTION_CHANNEL" default:"collection:events"`
}

// DatabaseDSN возвращает строку подключения к PostgreSQL в формате DSN.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

func (c *Config) Validate() error {
	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("некорректные DB_MIN_CONNS/DB_MAX_CONNS")
	}
	if c.GachaDrawsPerTicket <= 0 {
		return fmt.Errorf("GACHA_DRAWS_PER_TICKET должен быть > 0")
	}
	if c.GachaTenfoldPulls <= 0 {
		return fmt.Errorf("GACHA_TENFOLD_PULLS должен быть > 0")
	}
	if c.GachaDefaultLossRate < 0 || c.GachaDefaultLossRate > 1 {
		return fmt.Errorf("GACHA_DEFAULT_LOSS_RATE должен быть в диапазоне 0.0–1.0")
	}
	if c.GachaTitleHintRate < 0 || c.GachaTitleHintRate > 100 {
		return fmt.Errorf("GACHA_TITLE_HINT_RATE должен быть в диапазоне 0–100")
	}
	if c.AutoAwardAfterHours <= 0 || c.AutoAwardBatchLimit <= 0 {
		return fmt.Errorf("некорректные AUTO_AWARD_AFTER_HOURS/AUTO_AWARD_BATCH_LIMIT")
	}
	return nil
}

// Load читает переменные окружения и заполняет структуру Config.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("не удалось загрузить конфигурацию: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
