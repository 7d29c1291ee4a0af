package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const appName = "qucosa-migrate"

// Config represents the application configuration
type Config struct {
	SourceURL      string `yaml:"source_url"`
	SourceUser     string `yaml:"source_user"`
	SourcePassword string `yaml:"source_password"`
	// SourceDir reads records from <dir>/<id>.xml instead of SourceURL.
	SourceDir string `yaml:"source_dir"`

	FedoraURL string `yaml:"fedora_url"`
	SwordURL  string `yaml:"sword_url"`
	User      string `yaml:"user"`
	Password  string `yaml:"password"`
	FilesURL  string `yaml:"files_url"`

	Collection string `yaml:"collection"`
	OnBehalfOf string `yaml:"on_behalf_of"`
	UseSlug    bool   `yaml:"use_slug"`
	Purge      bool   `yaml:"purge"`

	Jobs           int    `yaml:"jobs"`
	RequestTimeout string `yaml:"request_timeout"`

	Agent            string `yaml:"agent"`
	Distributor      string `yaml:"distributor"`
	DistributorPlace string `yaml:"distributor_place"`
	AliasFile        string `yaml:"alias_file"`

	DBPath             string   `yaml:"db_path"`
	DeadLetterWebhooks []string `yaml:"dead_letter_webhooks"`
	LogLevel           string   `yaml:"log_level"`
	Output             string   `yaml:"output"`
}

// MissingError lists required settings that are not configured.
type MissingError struct {
	Keys []string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("missing configuration: %s", strings.Join(e.Keys, ", "))
}

// Load loads configuration from multiple sources with precedence:
// 1. Environment variables (QM_*, secrets also as QM_*_FILE)
// 2. ./.env.local (dotenv) - walks up parent directories to find it
// 3. ~/.config/qucosa-migrate/config.yaml (YAML)
func Load() (*Config, error) {
	cfg := &Config{
		Collection:     "qucosa",
		Jobs:           4,
		RequestTimeout: "60s",
		Agent:          "SLUB Dresden",
		LogLevel:       "info",
		Output:         "table",
	}

	// Load .env.local if it exists (walking up parent directories)
	if envPath := findEnvLocal(); envPath != "" {
		_ = godotenv.Load(envPath)
	}

	// YAML config is optional
	if err := loadYAMLConfig(cfg); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	strs := []struct {
		env string
		dst *string
	}{
		{"QM_SOURCE_URL", &cfg.SourceURL},
		{"QM_SOURCE_USER", &cfg.SourceUser},
		{"QM_SOURCE_DIR", &cfg.SourceDir},
		{"QM_FEDORA_URL", &cfg.FedoraURL},
		{"QM_SWORD_URL", &cfg.SwordURL},
		{"QM_USER", &cfg.User},
		{"QM_FILES_URL", &cfg.FilesURL},
		{"QM_COLLECTION", &cfg.Collection},
		{"QM_ON_BEHALF_OF", &cfg.OnBehalfOf},
		{"QM_REQUEST_TIMEOUT", &cfg.RequestTimeout},
		{"QM_AGENT", &cfg.Agent},
		{"QM_DISTRIBUTOR", &cfg.Distributor},
		{"QM_DISTRIBUTOR_PLACE", &cfg.DistributorPlace},
		{"QM_ALIAS_FILE", &cfg.AliasFile},
		{"QM_LOG_LEVEL", &cfg.LogLevel},
		{"QM_OUTPUT", &cfg.Output},
	}
	for _, s := range strs {
		if v := os.Getenv(s.env); v != "" {
			*s.dst = v
		}
	}
	if v := getEnvOrFile("QM_PASSWORD", "QM_PASSWORD_FILE"); v != "" {
		cfg.Password = v
	}
	if v := getEnvOrFile("QM_SOURCE_PASSWORD", "QM_SOURCE_PASSWORD_FILE"); v != "" {
		cfg.SourcePassword = v
	}
	if v := getEnvOrFile("QM_DB_PATH", "QM_DB_PATH_FILE"); v != "" {
		cfg.DBPath = v
	}

	bools := []struct {
		env string
		dst *bool
	}{
		{"QM_USE_SLUG", &cfg.UseSlug},
		{"QM_PURGE", &cfg.Purge},
	}
	for _, b := range bools {
		if v := os.Getenv(b.env); v != "" {
			parsed, err := strconv.ParseBool(v)
			if err != nil {
				return nil, fmt.Errorf("invalid %s: %w", b.env, err)
			}
			*b.dst = parsed
		}
	}
	if v := os.Getenv("QM_JOBS"); v != "" {
		jobs, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid QM_JOBS: %w", err)
		}
		cfg.Jobs = jobs
	}
	if v := os.Getenv("QM_DEADLETTER_WEBHOOKS"); v != "" {
		cfg.DeadLetterWebhooks = splitList(v)
	}

	if cfg.DBPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		cfg.DBPath = filepath.Join(homeDir, ".local", "share", appName, "migrate.db")
	}

	return cfg, nil
}

// Validate reports every missing setting a migration run needs.
func (c *Config) Validate() error {
	var missing []string
	if c.SourceURL == "" && c.SourceDir == "" {
		missing = append(missing, "source_url (or source_dir)")
	}
	required := []struct{ key, val string }{
		{"fedora_url", c.FedoraURL},
		{"sword_url", c.SwordURL},
		{"user", c.User},
		{"password", c.Password},
		{"collection", c.Collection},
	}
	for _, r := range required {
		if strings.TrimSpace(r.val) == "" {
			missing = append(missing, r.key)
		}
	}
	if len(missing) > 0 {
		return &MissingError{Keys: missing}
	}
	if _, err := c.Timeout(); err != nil {
		return err
	}
	return nil
}

// Timeout parses the request timeout.
func (c *Config) Timeout() (time.Duration, error) {
	if c.RequestTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.RequestTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid request_timeout %q: %w", c.RequestTimeout, err)
	}
	return d, nil
}

// Level maps the configured log level to a slog level.
func (c *Config) Level() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// LoadAliases reads the institution alias table, a YAML mapping from
// source names to significant names. An empty path yields no aliases.
func (c *Config) LoadAliases() (map[string]string, error) {
	if c.AliasFile == "" {
		return nil, nil
	}
	data, err := os.ReadFile(c.AliasFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read alias file: %w", err)
	}
	aliases := map[string]string{}
	if err := yaml.Unmarshal(data, &aliases); err != nil {
		return nil, fmt.Errorf("failed to parse alias file %s: %w", c.AliasFile, err)
	}
	return aliases, nil
}

// loadYAMLConfig loads configuration from ~/.config/qucosa-migrate/config.yaml
func loadYAMLConfig(cfg *Config) error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return err
	}

	configPath := filepath.Join(homeDir, ".config", appName, "config.yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

// getEnvOrFile gets an environment variable value, or reads it from a file
// if the _FILE variant is set
func getEnvOrFile(envVar, fileVar string) string {
	if val := os.Getenv(envVar); val != "" {
		return val
	}

	if filePath := os.Getenv(fileVar); filePath != "" {
		data, err := os.ReadFile(filePath)
		if err == nil {
			return strings.TrimSpace(string(data))
		}
	}

	return ""
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' }) {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// findEnvLocal searches for .env.local starting from cwd and walking up
// parent directories. Stops at the user's home directory.
// Returns the path to .env.local if found, empty string otherwise.
func findEnvLocal() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		if _, err := os.Stat(".env.local"); err == nil {
			return ".env.local"
		}
		return ""
	}

	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	homeDir = filepath.Clean(homeDir)
	dir := filepath.Clean(cwd)

	for {
		envPath := filepath.Join(dir, ".env.local")
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
		if dir == homeDir {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}
