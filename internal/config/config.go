package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"flow-analytics/internal/filters"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// DatabaseConfig selects the store backend.
type DatabaseConfig struct {
	Driver string
	URL    string
}

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Database             DatabaseConfig
	DataPath             string
	LogDir               string
	WidgetInfoDir        string
	DefaultOrgID         string
	PowerUser            bool
	AllowedContextIDs    []string
	ContextAccessControl bool
	EnableMermaidCharts  bool
}

// Load loads the configuration from .env files and environment variables.
func Load() (*AppConfig, error) {
	// 1. Try to load from the executable's directory (highest priority for MCP servers)
	exePath, err := os.Executable()
	exeDir := ""
	if err == nil {
		exeDir = filepath.Dir(exePath)
		envPath := filepath.Join(exeDir, ".env")
		if err := godotenv.Load(envPath); err == nil {
			log.Debug().Str("path", envPath).Msg("Loaded configuration from binary directory")
		}
	}

	// 2. Fallback to current working directory (useful for development/go run)
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found in working directory, relying on environment variables or binary-relative .env")
	}

	// 3. Resolve Data Paths
	dataPath := os.Getenv("DATA_PATH")
	if dataPath == "" {
		if exeDir != "" {
			dataPath = exeDir
		} else {
			dataPath = "."
		}
	}

	logDir := getEnv("LOGS_FOLDER", filepath.Join(dataPath, "logs"))
	if err := os.MkdirAll(logDir, 0755); err != nil {
		log.Warn().Err(err).Str("path", logDir).Msg("Failed to create log directory")
	}

	cfg := &AppConfig{
		Database: DatabaseConfig{
			Driver: strings.ToLower(getEnv("DATABASE_DRIVER", "sqlite")),
			URL:    getEnv("DATABASE_URL", filepath.Join(dataPath, "flow-analytics.db")),
		},
		DataPath:             dataPath,
		LogDir:               logDir,
		WidgetInfoDir:        getEnv("WIDGET_INFO_DIR", ""),
		DefaultOrgID:         getEnv("DEFAULT_ORG_ID", "default"),
		PowerUser:            getEnvBool("POWER_USER", true),
		AllowedContextIDs:    getEnvList("ALLOWED_CONTEXT_IDS"),
		ContextAccessControl: getEnvBool("CONTEXT_ACCESS_CONTROL", false),
		EnableMermaidCharts:  getEnvBool("ENABLE_MERMAID_CHARTS", false),
	}

	return cfg, nil
}

// Security is the identity every request of this process runs under.
func (c *AppConfig) Security(orgID string) filters.StaticSecurity {
	if orgID == "" {
		orgID = c.DefaultOrgID
	}
	return filters.StaticSecurity{
		Org:                  orgID,
		PowerUser:            c.PowerUser,
		AllowedContexts:      c.AllowedContextIDs,
		ContextAccessControl: c.ContextAccessControl,
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return fallback
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
