package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DeleteToTrash   = "trash"
	DeletePermanent = "permanent"
)

type Config struct {
	ServerPort              string
	ServerReadTimeout       time.Duration
	ServerWriteTimeout      time.Duration
	ServerIdleTimeout       time.Duration
	RequestTimeout          time.Duration
	CORSOrigins             []string
	RateLimitRPM            int
	APITokenSecret          string
	APITokenTTL             time.Duration
	WorkspaceRoot           string
	TrashRoot               string
	LogDir                  string
	LogMaxBytes             int64
	LogMaxFiles             int
	LogMaxAge               time.Duration
	ChunkSize               int
	ProgressInterval        time.Duration
	MaxConcurrentOperations int
	OperationHistory        int
	FollowSymlinks          bool
	VerifyCopies            bool
	ConflictDefault         string
	DeleteBehavior          string
	DatabaseURL             string
	DBMaxConns              int32
	DBMinConns              int32
	LogLevel                string
}

// Load reads .env, then the optional YAML file named by FILEOPS_CONFIG, then
// the process environment. Environment values win over the file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	src := source{}
	if path := strings.TrimSpace(os.Getenv("FILEOPS_CONFIG")); path != "" {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config file: %w", err)
		}
		defer file.Close()

		values, err := decodeFile(file)
		if err != nil {
			return nil, err
		}
		src.file = values
	}

	cfg := src.build()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (s source) build() *Config {
	return &Config{
		ServerPort:              s.getString("SERVER_PORT", "8080"),
		ServerReadTimeout:       s.getDuration("SERVER_READ_TIMEOUT", 15*time.Second),
		ServerWriteTimeout:      s.getDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
		ServerIdleTimeout:       s.getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		RequestTimeout:          s.getDuration("REQUEST_TIMEOUT", 30*time.Second),
		CORSOrigins:             splitCSV(s.getString("CORS_ORIGINS", "*")),
		RateLimitRPM:            s.getInt("RATE_LIMIT_RPM", 100),
		APITokenSecret:          s.getString("API_TOKEN_SECRET", ""),
		APITokenTTL:             s.getDuration("API_TOKEN_TTL", 24*time.Hour),
		WorkspaceRoot:           s.getString("WORKSPACE_ROOT", ""),
		TrashRoot:               s.getString("TRASH_ROOT", defaultTrashRoot()),
		LogDir:                  s.getString("LOG_DIR", defaultLogDir()),
		LogMaxBytes:             s.getInt64("LOG_MAX_BYTES", 5*1024*1024),
		LogMaxFiles:             s.getInt("LOG_MAX_FILES", 5),
		LogMaxAge:               s.getDuration("LOG_MAX_AGE", 90*24*time.Hour),
		ChunkSize:               s.getInt("CHUNK_SIZE", 1024*1024),
		ProgressInterval:        s.getDuration("PROGRESS_INTERVAL", 100*time.Millisecond),
		MaxConcurrentOperations: s.getInt("MAX_CONCURRENT_OPERATIONS", 4),
		OperationHistory:        s.getInt("OPERATION_HISTORY", 256),
		FollowSymlinks:          s.getBool("FOLLOW_SYMLINKS", false),
		VerifyCopies:            s.getBool("VERIFY_COPIES", false),
		ConflictDefault:         strings.ToLower(s.getString("CONFLICT_DEFAULT", "ask")),
		DeleteBehavior:          strings.ToLower(s.getString("DELETE_BEHAVIOR", DeleteToTrash)),
		DatabaseURL:             s.getString("DATABASE_URL", ""),
		DBMaxConns:              int32(s.getInt("DB_MAX_CONNS", 10)),
		DBMinConns:              int32(s.getInt("DB_MIN_CONNS", 1)),
		LogLevel:                s.getString("LOG_LEVEL", "info"),
	}
}

func (c *Config) Validate() error {
	if c.ServerPort == "" {
		return fmt.Errorf("SERVER_PORT cannot be empty")
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}

	if strings.TrimSpace(c.TrashRoot) == "" {
		return fmt.Errorf("TRASH_ROOT cannot be empty")
	}

	if strings.TrimSpace(c.LogDir) == "" {
		return fmt.Errorf("LOG_DIR cannot be empty")
	}

	if c.LogMaxBytes <= 0 {
		return fmt.Errorf("LOG_MAX_BYTES must be positive")
	}

	if c.LogMaxFiles < 0 {
		return fmt.Errorf("LOG_MAX_FILES cannot be negative")
	}

	if c.ChunkSize <= 0 {
		return fmt.Errorf("CHUNK_SIZE must be positive")
	}

	if c.ProgressInterval <= 0 {
		return fmt.Errorf("PROGRESS_INTERVAL must be positive")
	}

	if c.MaxConcurrentOperations <= 0 {
		return fmt.Errorf("MAX_CONCURRENT_OPERATIONS must be positive")
	}

	switch c.ConflictDefault {
	case "ask", "replace", "skip", "rename", "cancel":
	default:
		return fmt.Errorf("CONFLICT_DEFAULT must be one of ask|replace|skip|rename|cancel")
	}

	if c.DeleteBehavior != DeleteToTrash && c.DeleteBehavior != DeletePermanent {
		return fmt.Errorf("DELETE_BEHAVIOR must be trash or permanent")
	}

	if c.WorkspaceRoot != "" && !filepath.IsAbs(c.WorkspaceRoot) {
		return fmt.Errorf("WORKSPACE_ROOT must be absolute")
	}

	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS cannot exceed DB_MAX_CONNS")
	}

	return nil
}

func defaultTrashRoot() string {
	if dataHome := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); dataHome != "" {
		return filepath.Join(dataHome, "Trash")
	}
	return filepath.Join(homeDir(), ".local", "share", "Trash")
}

func defaultLogDir() string {
	if stateHome := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); stateHome != "" {
		return filepath.Join(stateHome, "fileops", "logs")
	}
	return filepath.Join(homeDir(), ".local", "state", "fileops", "logs")
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.TempDir()
	}
	return home
}

// source resolves a key from the environment first, then the config file.
type source struct {
	file map[string]string
}

func decodeFile(r io.Reader) (map[string]string, error) {
	raw := map[string]any{}
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode config yaml: %w", err)
	}

	values := make(map[string]string, len(raw))
	for key, value := range raw {
		switch typed := value.(type) {
		case nil:
			continue
		case []any:
			parts := make([]string, 0, len(typed))
			for _, part := range typed {
				parts = append(parts, fmt.Sprint(part))
			}
			values[strings.ToUpper(key)] = strings.Join(parts, ",")
		default:
			values[strings.ToUpper(key)] = fmt.Sprint(typed)
		}
	}

	return values, nil
}

func (s source) lookup(key string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return strings.TrimSpace(s.file[key])
}

func (s source) getString(key string, fallback string) string {
	v := s.lookup(key)
	if v == "" {
		return fallback
	}

	return v
}

func (s source) getInt(key string, fallback int) int {
	raw := s.lookup(key)
	if raw == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return v
}

func (s source) getInt64(key string, fallback int64) int64 {
	raw := s.lookup(key)
	if raw == "" {
		return fallback
	}

	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fallback
	}

	return v
}

func (s source) getBool(key string, fallback bool) bool {
	raw := s.lookup(key)
	if raw == "" {
		return fallback
	}

	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}

	return v
}

func (s source) getDuration(key string, fallback time.Duration) time.Duration {
	raw := s.lookup(key)
	if raw == "" {
		return fallback
	}

	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return v
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}

	return out
}
