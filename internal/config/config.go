package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// 存储后端
const (
	BackendMongo     = "mongo"
	BackendFirestore = "firestore"
	BackendMemory    = "memory" // 仅用于本地演示，进程退出即丢失
)

// Config 应用程序配置
type Config struct {
	StoreBackend       string        // 文档存储后端
	MongoURI           string        // MongoDB连接URI
	MongoDBName        string        // MongoDB数据库名称
	FirestoreProjectID string        // Firestore 项目 ID
	StoreTimeout       time.Duration // 单次存储调用超时
	HTTPAddr           string        // HTTP 监听地址
	HTTPEnabled        bool          // 是否启用 HTTP API
	TelegramToken      string        // Telegram Bot API Token，为空时不启动 Bot
	BotOwnerIDs        []int64       // Bot 所有者 ID 列表
	Derivation         DerivationConfig
}

// DerivationConfig 派生与捐赠参数
type DerivationConfig struct {
	CoinToCurrency decimal.Decimal // 1 coin 折合的货币金额
	ChartMonths    int             // 月度图表的月份数
	DonationMin    float64
	DonationMax    float64
	Location       *time.Location // 月份与相对日期的时区
}

// Load 从环境变量加载配置（若存在 .env 文件先加载它）
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		StoreBackend:       strings.ToLower(envOr("STORE_BACKEND", BackendMongo)),
		MongoURI:           os.Getenv("MONGO_URI"),
		MongoDBName:        envOr("MONGO_DB_NAME", "greenpulse"),
		FirestoreProjectID: strings.TrimSpace(os.Getenv("FIRESTORE_PROJECT_ID")),
		HTTPAddr:           envOr("HTTP_ADDR", ":8080"),
		HTTPEnabled:        true,
		TelegramToken:      strings.TrimSpace(os.Getenv("TELEGRAM_TOKEN")),
	}

	switch cfg.StoreBackend {
	case BackendMongo:
		if cfg.MongoURI == "" {
			return nil, fmt.Errorf("MONGO_URI is required when STORE_BACKEND=%s", BackendMongo)
		}
	case BackendFirestore:
		if cfg.FirestoreProjectID == "" {
			return nil, fmt.Errorf("FIRESTORE_PROJECT_ID is required when STORE_BACKEND=%s", BackendFirestore)
		}
	case BackendMemory:
	default:
		return nil, fmt.Errorf("unsupported STORE_BACKEND %q", cfg.StoreBackend)
	}

	if enabled := strings.TrimSpace(os.Getenv("HTTP_ENABLED")); enabled != "" {
		value, err := strconv.ParseBool(enabled)
		if err != nil {
			return nil, fmt.Errorf("failed to parse HTTP_ENABLED: %w", err)
		}
		cfg.HTTPEnabled = value
	}

	// 解析BOT_OWNER_IDS
	if ownerIDsStr := os.Getenv("BOT_OWNER_IDS"); ownerIDsStr != "" {
		var err error
		cfg.BotOwnerIDs, err = parseOwnerIDs(ownerIDsStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse BOT_OWNER_IDS: %w", err)
		}
	}

	timeoutSeconds, err := intEnv("STORE_TIMEOUT_SECONDS", 10)
	if err != nil {
		return nil, err
	}
	if timeoutSeconds < 1 {
		return nil, fmt.Errorf("STORE_TIMEOUT_SECONDS must be >= 1, got %d", timeoutSeconds)
	}
	cfg.StoreTimeout = time.Duration(timeoutSeconds) * time.Second

	derivation, err := loadDerivationConfig()
	if err != nil {
		return nil, err
	}
	cfg.Derivation = derivation

	return cfg, nil
}

func loadDerivationConfig() (DerivationConfig, error) {
	var cfg DerivationConfig

	rate, err := decimal.NewFromString(envOr("COIN_TO_CURRENCY", "0.10"))
	if err != nil || !rate.IsPositive() {
		return DerivationConfig{}, fmt.Errorf("invalid COIN_TO_CURRENCY: %s", os.Getenv("COIN_TO_CURRENCY"))
	}
	cfg.CoinToCurrency = rate

	cfg.ChartMonths, err = intEnv("CHART_MONTHS", 6)
	if err != nil {
		return DerivationConfig{}, err
	}
	if cfg.ChartMonths < 1 || cfg.ChartMonths > 24 {
		return DerivationConfig{}, fmt.Errorf("CHART_MONTHS must be between 1 and 24, got %d", cfg.ChartMonths)
	}

	if cfg.DonationMin, err = floatEnv("DONATION_MIN", 1); err != nil {
		return DerivationConfig{}, err
	}
	if cfg.DonationMax, err = floatEnv("DONATION_MAX", 1000); err != nil {
		return DerivationConfig{}, err
	}
	if cfg.DonationMin <= 0 || cfg.DonationMax < cfg.DonationMin {
		return DerivationConfig{}, fmt.Errorf("invalid donation bounds: min=%g max=%g", cfg.DonationMin, cfg.DonationMax)
	}

	cfg.Location = time.UTC
	if tz := strings.TrimSpace(os.Getenv("TIMEZONE")); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return DerivationConfig{}, fmt.Errorf("invalid TIMEZONE %q: %w", tz, err)
		}
		cfg.Location = loc
	}

	return cfg, nil
}

// parseOwnerIDs 解析逗号分隔的用户ID字符串
// 支持格式: "123456789" 或 "123456789,987654321"
func parseOwnerIDs(s string) ([]int64, error) {
	parts := strings.Split(s, ",")
	ids := make([]int64, 0, len(parts))

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid owner ID %q: %w", part, err)
		}
		ids = append(ids, id)
	}

	return ids, nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func intEnv(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", key, err)
	}
	return v, nil
}

func floatEnv(key string, fallback float64) (float64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", key, err)
	}
	return v, nil
}
