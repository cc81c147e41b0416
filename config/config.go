package config

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// AppConfig holds environment driven configuration values.
// Sensitive data should never have defaults inside code and must be provided via config files or the environment.
type AppConfig struct {
	AppPort string

	// Session tokens are signed with this secret; sessions expire after SessionTTLHours.
	SessionSecret   string
	SessionTTLHours int

	DatabaseURI string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string

	// Redis backs the session store and the response cache. When RedisHost is
	// empty the app runs with the in-memory session fallback and no cache.
	RedisHost     string
	RedisPort     int
	RedisDB       int
	RedisPassword string

	// Gin framework configuration
	GinMode string
	GinPath string

	// Logging configuration
	LogLevel      string
	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool

	RateLimitPerMinute int
	AllowedOrigins     []string

	// Registration hardening
	RegisterCaptchaEnabled     bool
	RegisterMaxPerIPPerDay     int
	RegisterAttemptCooldownSec int

	// Auto-flag policy: when enabled, a suggestion reaching AutoFlagThreshold
	// downvotes is hidden from the public listing. Disabled by default.
	AutoFlagEnabled   bool
	AutoFlagThreshold int

	// GitHub OAuth login
	GitHubClientID     string
	GitHubClientSecret string
	OAuthRedirectBase  string
}

var cfg AppConfig
var loaded bool

// Load loads the application configuration. It should be called once during boot.
// Precedence: config/config.json -> defaults -> environment variable overrides.
func Load() AppConfig {
	if loaded {
		return cfg
	}

	_ = loadJSONConfig(filepath.Join("config", "config.json"), &cfg)
	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if cfg.SessionSecret == "" {
		log.Fatal("SESSION_SECRET must be set in environment variables")
	}

	loaded = true
	return cfg
}

// Get returns the cached configuration, loading it if necessary.
func Get() AppConfig {
	if !loaded {
		return Load()
	}
	return cfg
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// loadJSONConfig reads JSON file into cfg if present. Returns error only for invalid JSON.
func loadJSONConfig(path string, out *AppConfig) error {
	f, err := os.Open(path)
	if err != nil {
		return nil // silently ignore missing file
	}
	defer f.Close()

	var raw map[string]any
	if err := json.NewDecoder(f).Decode(&raw); err != nil {
		return err
	}

	getString := func(m map[string]any, key string) string {
		if v, ok := m[key]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
		return ""
	}
	getInt := func(m map[string]any, key string) int {
		if v, ok := m[key]; ok {
			switch t := v.(type) {
			case float64:
				return int(t)
			case int:
				return t
			case json.Number:
				i, _ := t.Int64()
				return int(i)
			}
		}
		return 0
	}
	getBool := func(m map[string]any, key string) bool {
		if v, ok := m[key]; ok {
			if b, ok := v.(bool); ok {
				return b
			}
		}
		return false
	}
	getStringSlice := func(m map[string]any, key string) []string {
		if v, ok := m[key]; ok {
			if arr, ok := v.([]any); ok {
				res := make([]string, 0, len(arr))
				for _, it := range arr {
					if s, ok := it.(string); ok {
						res = append(res, s)
					}
				}
				return res
			}
		}
		return nil
	}

	if app, ok := raw["app"].(map[string]any); ok {
		out.AppPort = getString(app, "AppPort")
		out.SessionSecret = getString(app, "SessionSecret")
		if v := getInt(app, "SessionTTLHours"); v != 0 {
			out.SessionTTLHours = v
		}
		if v := getInt(app, "RateLimitPerMinute"); v != 0 {
			out.RateLimitPerMinute = v
		}
		if list := getStringSlice(app, "AllowedOrigins"); len(list) > 0 {
			out.AllowedOrigins = list
		}
		if v := getString(app, "OAuthRedirectBase"); v != "" {
			out.OAuthRedirectBase = v
		}
	}

	if g, ok := raw["gin"].(map[string]any); ok {
		if v := getString(g, "Mode"); v != "" {
			out.GinMode = v
		}
		if v := getString(g, "LogPath"); v != "" {
			out.GinPath = v
		}
	}

	if dbs, ok := raw["database"].(map[string]any); ok {
		out.DatabaseURI = getString(dbs, "DatabaseURI")
		out.DBHost = getString(dbs, "DBHost")
		out.DBPort = getString(dbs, "DBPort")
		out.DBUser = getString(dbs, "DBUser")
		out.DBPassword = getString(dbs, "DBPassword")
		out.DBName = getString(dbs, "DBName")
	}

	if rds, ok := raw["redis"].(map[string]any); ok {
		out.RedisHost = getString(rds, "RedisHost")
		if v := getInt(rds, "RedisPort"); v != 0 {
			out.RedisPort = v
		}
		if v := getInt(rds, "RedisDB"); v != 0 {
			out.RedisDB = v
		}
		out.RedisPassword = getString(rds, "RedisPassword")
	}

	if lg, ok := raw["log"].(map[string]any); ok {
		if v := getString(lg, "Level"); v != "" {
			out.LogLevel = v
		}
		if v := getString(lg, "Path"); v != "" {
			out.LogPath = v
		}
		if v := getString(lg, "GinMode"); v != "" {
			out.GinMode = v
		}
		if v := getString(lg, "GinPath"); v != "" {
			out.GinPath = v
		}
		if v := getInt(lg, "MaxSizeMB"); v != 0 {
			out.LogMaxSizeMB = v
		}
		if v := getInt(lg, "MaxBackups"); v != 0 {
			out.LogMaxBackups = v
		}
		if v := getInt(lg, "MaxAgeDays"); v != 0 {
			out.LogMaxAgeDays = v
		}
		out.LogCompress = getBool(lg, "Compress")
	}

	if rg, ok := raw["register"].(map[string]any); ok {
		out.RegisterCaptchaEnabled = getBool(rg, "CaptchaEnabled")
		if v := getInt(rg, "MaxPerIPPerDay"); v != 0 {
			out.RegisterMaxPerIPPerDay = v
		}
		if v := getInt(rg, "AttemptCooldownSec"); v != 0 {
			out.RegisterAttemptCooldownSec = v
		}
	}

	if af, ok := raw["autoflag"].(map[string]any); ok {
		out.AutoFlagEnabled = getBool(af, "Enabled")
		if v := getInt(af, "Threshold"); v != 0 {
			out.AutoFlagThreshold = v
		}
	}

	if oa, ok := raw["oauth"].(map[string]any); ok {
		out.GitHubClientID = getString(oa, "GitHubClientID")
		out.GitHubClientSecret = getString(oa, "GitHubClientSecret")
		if v := getString(oa, "RedirectBase"); v != "" {
			out.OAuthRedirectBase = v
		}
	}

	return nil
}

// applyDefaults sets sane defaults for zero-value fields.
func applyDefaults(c *AppConfig) {
	if c.AppPort == "" {
		c.AppPort = "8080"
	}
	if c.SessionTTLHours == 0 {
		c.SessionTTLHours = 72
	}
	if c.GinMode == "" {
		c.GinMode = "release"
	}
	if c.GinPath == "" {
		c.GinPath = "logs/go_gin.log"
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 60
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.OAuthRedirectBase == "" {
		c.OAuthRedirectBase = "http://localhost:8080"
	}
	if c.DBHost == "" {
		c.DBHost = "127.0.0.1"
	}
	if c.DBPort == "" {
		c.DBPort = "3306"
	}
	if c.DBUser == "" {
		c.DBUser = "root"
	}
	if c.DBName == "" {
		c.DBName = "suggestbox"
	}
	if c.RedisPort == 0 {
		c.RedisPort = 6379
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogMaxSizeMB == 0 {
		c.LogMaxSizeMB = 100
	}
	if c.LogMaxBackups == 0 {
		c.LogMaxBackups = 3
	}
	if c.LogMaxAgeDays == 0 {
		c.LogMaxAgeDays = 7
	}
	if c.RegisterMaxPerIPPerDay == 0 {
		c.RegisterMaxPerIPPerDay = 5
	}
	if c.RegisterAttemptCooldownSec == 0 {
		c.RegisterAttemptCooldownSec = 10
	}
	if c.AutoFlagThreshold == 0 {
		c.AutoFlagThreshold = 3
	}
}

// applyEnvOverrides maps known environment variables onto config values when present.
func applyEnvOverrides(c *AppConfig) {
	if v := getEnv("APP_PORT", ""); v != "" {
		c.AppPort = v
	}
	if v := getEnv("SESSION_SECRET", ""); v != "" {
		c.SessionSecret = v
	}
	if v := getEnv("SESSION_TTL_HOURS", ""); v != "" {
		c.SessionTTLHours = mustParseInt(v)
	}
	if v := getEnv("GIN_MODE", ""); v != "" {
		c.GinMode = v
	}
	if v := getEnv("GIN_PATH", ""); v != "" {
		c.GinPath = v
	}
	if v := getEnv("DATABASE_URI", ""); v != "" {
		c.DatabaseURI = v
	}
	if v := getEnv("DB_HOST", ""); v != "" {
		c.DBHost = v
	}
	if v := getEnv("DB_PORT", ""); v != "" {
		c.DBPort = v
	}
	if v := getEnv("DB_USER", ""); v != "" {
		c.DBUser = v
	}
	if v := getEnv("DB_PASSWORD", ""); v != "" {
		c.DBPassword = v
	}
	if v := getEnv("DB_NAME", ""); v != "" {
		c.DBName = v
	}
	if v := getEnv("REDIS_HOST", ""); v != "" {
		c.RedisHost = v
	}
	if v := getEnv("REDIS_PORT", ""); v != "" {
		c.RedisPort = mustParseInt(v)
	}
	if v := getEnv("REDIS_DB", ""); v != "" {
		c.RedisDB = mustParseInt(v)
	}
	if v := getEnv("REDIS_PASSWORD", ""); v != "" {
		c.RedisPassword = v
	}
	if v := getEnv("LOG_LEVEL", ""); v != "" {
		c.LogLevel = v
	}
	if v := getEnv("LOG_PATH", ""); v != "" {
		c.LogPath = v
	}
	if v := getEnv("LOG_MAX_SIZE_MB", ""); v != "" {
		c.LogMaxSizeMB = mustParseInt(v)
	}
	if v := getEnv("LOG_MAX_BACKUPS", ""); v != "" {
		c.LogMaxBackups = mustParseInt(v)
	}
	if v := getEnv("LOG_MAX_AGE_DAYS", ""); v != "" {
		c.LogMaxAgeDays = mustParseInt(v)
	}
	if v := getEnv("LOG_COMPRESS", ""); v != "" {
		c.LogCompress = v == "true"
	}
	if v := getEnv("RATE_LIMIT_PER_MINUTE", ""); v != "" {
		c.RateLimitPerMinute = mustParseInt(v)
	}
	if v := getEnv("CORS_ALLOWED_ORIGINS", ""); v != "" {
		c.AllowedOrigins = splitAndTrim(v)
	}
	if v := getEnv("REGISTER_CAPTCHA_ENABLED", ""); v != "" {
		c.RegisterCaptchaEnabled = v == "true"
	}
	if v := getEnv("REGISTER_MAX_PER_IP_PER_DAY", ""); v != "" {
		c.RegisterMaxPerIPPerDay = mustParseInt(v)
	}
	if v := getEnv("REGISTER_ATTEMPT_COOLDOWN_SEC", ""); v != "" {
		c.RegisterAttemptCooldownSec = mustParseInt(v)
	}
	if v := getEnv("AUTO_FLAG_ENABLED", ""); v != "" {
		c.AutoFlagEnabled = v == "true"
	}
	if v := getEnv("AUTO_FLAG_THRESHOLD", ""); v != "" {
		c.AutoFlagThreshold = mustParseInt(v)
	}
	if v := getEnv("GITHUB_CLIENT_ID", ""); v != "" {
		c.GitHubClientID = v
	}
	if v := getEnv("GITHUB_CLIENT_SECRET", ""); v != "" {
		c.GitHubClientSecret = v
	}
	if v := getEnv("OAUTH_REDIRECT_BASE_URL", ""); v != "" {
		c.OAuthRedirectBase = v
	}
}

func mustParseInt(val string) int {
	i, err := strconv.Atoi(val)
	if err != nil {
		log.Fatalf("invalid integer value %s: %v", val, err)
	}
	return i
}

func splitAndTrim(raw string) []string {
	items := []string{}
	for _, item := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
