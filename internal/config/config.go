package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"kimchi-signal/internal/signal"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
	StoreSupabase = "supabase"
)

var supportedStores = []string{StoreMemory, StoreRedis, StorePostgres, StoreSQLite, StoreSupabase}

type Config struct {
	TelegramBotToken string

	StoreBackend   string
	DatabaseURL    string
	RedisURL       string
	RedisKeyPrefix string
	SQLitePath     string
	SupabaseURL    string
	SupabaseKey    string
	SupabaseBucket string

	UpbitBaseURL       string
	BybitBaseURL       string
	NaverFXURL         string
	UpbitStreamEnabled bool
	UpbitStreamURL     string

	OpenAIAPIKey      string
	OpenAIModel       string
	PromptHistoryDays int

	RefreshCron     string
	AnalyzeCron     string
	RefreshDays     int
	MonitorPollSecs int

	ThresholdConfigPath string
	Signal              signal.Config

	OptimizeMaxCombinations int
	OptimizeTopN            int
	OptimizeWorkers         int

	AnomalyTrees     int
	AnomalyThreshold float64

	MCPTransport          string
	MCPHTTPEnabled        bool
	MCPHTTPBind           string
	MCPHTTPPort           int
	MCPAuthToken          string
	MCPRequestTimeoutSecs int
	MCPRateLimitPerMin    int
}

func Load() *Config {
	cfg := &Config{
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisURL:         os.Getenv("REDIS_URL"),
		SupabaseURL:      strings.TrimSpace(os.Getenv("SUPABASE_URL")),
		SupabaseKey:      os.Getenv("SUPABASE_KEY"),
		UpbitBaseURL:     strings.TrimSpace(os.Getenv("UPBIT_BASE_URL")),
		BybitBaseURL:     strings.TrimSpace(os.Getenv("BYBIT_BASE_URL")),
		NaverFXURL:       strings.TrimSpace(os.Getenv("NAVER_FX_URL")),
		MCPAuthToken:     os.Getenv("MCP_AUTH_TOKEN"),
	}

	cfg.UpbitStreamEnabled = strings.EqualFold(strings.TrimSpace(os.Getenv("UPBIT_STREAM_ENABLED")), "true")
	cfg.UpbitStreamURL = strings.TrimSpace(os.Getenv("UPBIT_STREAM_URL"))

	if cfg.TelegramBotToken == "" {
		log.Println("Warning: TELEGRAM_BOT_TOKEN not set")
	}

	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(os.Getenv("STORE_BACKEND")))
	if cfg.StoreBackend == "" {
		cfg.StoreBackend = StoreSQLite
	}
	if !contains(supportedStores, cfg.StoreBackend) {
		log.Printf("Warning: unsupported STORE_BACKEND=%q, defaulting to %s", cfg.StoreBackend, StoreSQLite)
		cfg.StoreBackend = StoreSQLite
	}

	if cfg.RedisURL == "" && cfg.StoreBackend == StoreRedis {
		log.Println("Warning: REDIS_URL not set, defaulting to localhost:6379")
		cfg.RedisURL = "localhost:6379"
	}
	if cfg.DatabaseURL == "" && cfg.StoreBackend == StorePostgres {
		log.Println("Warning: DATABASE_URL not set")
	}

	cfg.RedisKeyPrefix = strings.TrimSpace(os.Getenv("REDIS_KEY_PREFIX"))
	if cfg.RedisKeyPrefix == "" {
		cfg.RedisKeyPrefix = "kimchi:"
	}

	cfg.SQLitePath = strings.TrimSpace(os.Getenv("SQLITE_PATH"))
	if cfg.SQLitePath == "" {
		cfg.SQLitePath = "kimchi-signal.db"
	}

	cfg.SupabaseBucket = strings.TrimSpace(os.Getenv("SUPABASE_BUCKET"))
	if cfg.SupabaseBucket == "" {
		cfg.SupabaseBucket = "kimchi"
	}
	if cfg.StoreBackend == StoreSupabase && (cfg.SupabaseURL == "" || cfg.SupabaseKey == "") {
		log.Println("Warning: SUPABASE_URL or SUPABASE_KEY not set")
	}

	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	if cfg.OpenAIAPIKey == "" {
		log.Println("Warning: OPENAI_API_KEY not set, strategy analysis will be disabled")
	}

	cfg.OpenAIModel = strings.TrimSpace(os.Getenv("OPENAI_MODEL"))
	if cfg.OpenAIModel == "" {
		cfg.OpenAIModel = "gpt-4o-mini"
	}

	cfg.PromptHistoryDays = 0
	if v := strings.TrimSpace(os.Getenv("PROMPT_HISTORY_DAYS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.PromptHistoryDays = n
		}
	}

	cfg.RefreshCron = strings.TrimSpace(os.Getenv("REFRESH_CRON"))
	if cfg.RefreshCron == "" {
		cfg.RefreshCron = "10 9 * * *"
	}

	cfg.AnalyzeCron = strings.TrimSpace(os.Getenv("ANALYZE_CRON"))
	if cfg.AnalyzeCron == "" {
		cfg.AnalyzeCron = "30 9 * * *"
	}

	cfg.RefreshDays = 7
	if v := strings.TrimSpace(os.Getenv("REFRESH_DAYS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
			cfg.RefreshDays = n
		}
	}

	cfg.MonitorPollSecs = 60
	if v := strings.TrimSpace(os.Getenv("MONITOR_POLL_SECS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MonitorPollSecs = n
		}
	}

	cfg.ThresholdConfigPath = strings.TrimSpace(os.Getenv("THRESHOLD_CONFIG_PATH"))
	cfg.Signal = loadSignalConfig(cfg.ThresholdConfigPath)

	cfg.OptimizeMaxCombinations = 500
	if v := strings.TrimSpace(os.Getenv("OPTIMIZE_MAX_COMBINATIONS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.OptimizeMaxCombinations = n
		}
	}

	cfg.OptimizeTopN = 10
	if v := strings.TrimSpace(os.Getenv("OPTIMIZE_TOP_N")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.OptimizeTopN = n
		}
	}

	cfg.OptimizeWorkers = 0
	if v := strings.TrimSpace(os.Getenv("OPTIMIZE_WORKERS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.OptimizeWorkers = n
		}
	}

	cfg.AnomalyTrees = 200
	if v := strings.TrimSpace(os.Getenv("ANOMALY_TREES")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.AnomalyTrees = n
		}
	}

	cfg.AnomalyThreshold = 0.6
	if v := strings.TrimSpace(os.Getenv("ANOMALY_THRESHOLD")); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 && f < 1 {
			cfg.AnomalyThreshold = f
		}
	}

	cfg.MCPTransport = strings.ToLower(strings.TrimSpace(os.Getenv("MCP_TRANSPORT")))
	if cfg.MCPTransport == "" {
		cfg.MCPTransport = "stdio"
	}
	if cfg.MCPTransport != "stdio" && cfg.MCPTransport != "http" {
		log.Printf("Warning: unsupported MCP_TRANSPORT=%q, defaulting to stdio", cfg.MCPTransport)
		cfg.MCPTransport = "stdio"
	}

	cfg.MCPHTTPEnabled = strings.EqualFold(strings.TrimSpace(os.Getenv("MCP_HTTP_ENABLED")), "true")

	cfg.MCPHTTPBind = strings.TrimSpace(os.Getenv("MCP_HTTP_BIND"))
	if cfg.MCPHTTPBind == "" {
		cfg.MCPHTTPBind = "127.0.0.1"
	}

	cfg.MCPHTTPPort = 8090
	if v := strings.TrimSpace(os.Getenv("MCP_HTTP_PORT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MCPHTTPPort = n
		}
	}

	cfg.MCPRequestTimeoutSecs = 60
	if v := strings.TrimSpace(os.Getenv("MCP_REQUEST_TIMEOUT_SECS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MCPRequestTimeoutSecs = n
		}
	}

	cfg.MCPRateLimitPerMin = 60
	if v := strings.TrimSpace(os.Getenv("MCP_RATE_LIMIT_PER_MIN")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MCPRateLimitPerMin = n
		}
	}

	return cfg
}

// loadSignalConfig layers the YAML or TOML file at path and then env overrides on top of
// the engine defaults. An invalid result falls back to the defaults.
func loadSignalConfig(path string) signal.Config {
	cfg := signal.DefaultConfig()

	if path != "" {
		overlaid, err := readSignalFile(path, cfg)
		if err != nil {
			log.Printf("Warning: ignoring THRESHOLD_CONFIG_PATH: %v", err)
		} else {
			cfg = overlaid
		}
	}

	cfg = applySignalEnv(cfg)

	if err := cfg.Validate(); err != nil {
		log.Printf("Warning: invalid threshold engine settings (%v), using defaults", err)
		return signal.DefaultConfig()
	}
	return cfg
}

// readSignalFile decodes a TOML file when path ends in .toml and YAML otherwise.
func readSignalFile(path string, base signal.Config) (signal.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("read %s: %w", path, err)
	}
	cfg := base
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		err = toml.Unmarshal(data, &cfg)
	} else {
		err = yaml.Unmarshal(data, &cfg)
	}
	if err != nil {
		return base, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

func applySignalEnv(cfg signal.Config) signal.Config {
	floats := []struct {
		key string
		dst *float64
	}{
		{"BASE_BUY_THRESHOLD", &cfg.BaseBuy},
		{"BASE_SELL_THRESHOLD", &cfg.BaseSell},
		{"BUY_TREND_COEFFICIENT", &cfg.BuyTrendCoefficient},
		{"SELL_TREND_COEFFICIENT", &cfg.SellTrendCoefficient},
		{"MACD_WEIGHT", &cfg.MACDWeight},
		{"RSI_WEIGHT", &cfg.RSIWeight},
		{"BB_WEIGHT", &cfg.BBWeight},
		{"MA_WEIGHT", &cfg.MAWeight},
		{"ADJUSTMENT_FACTOR", &cfg.AdjustmentFactor},
		{"VOLATILITY_CAP", &cfg.VolatilityCap},
		{"MAX_CHANGE_RATE", &cfg.MaxChangeRate},
	}
	for _, f := range floats {
		if v := strings.TrimSpace(os.Getenv(f.key)); v != "" {
			n, err := strconv.ParseFloat(v, 64)
			if err != nil {
				log.Printf("Warning: ignoring %s=%q: %v", f.key, v, err)
				continue
			}
			*f.dst = n
		}
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"THRESHOLD_WINDOW_SIZE", &cfg.WindowSize},
		{"OVERLAY_MIN_HISTORY", &cfg.OverlayMinHistory},
	}
	for _, f := range ints {
		if v := strings.TrimSpace(os.Getenv(f.key)); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				log.Printf("Warning: ignoring %s=%q: %v", f.key, v, err)
				continue
			}
			*f.dst = n
		}
	}
	return cfg
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
