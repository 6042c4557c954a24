package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Server struct {
		Addr    string
		GinMode string
	}
	Database struct {
		Path string
	}
	Auth struct {
		JWTSecret         string
		SessionTTLMinutes int
		CookieName        string
		SecureCookie      bool
	}
	Backup struct {
		Interval time.Duration
		Keep     int
	}
	Storage struct {
		Bucket    string
		KeyPrefix string
		Region    string
		Endpoint  string
	}
	AWS struct {
		Profile string
	}
}

// SessionTTL returns the configured session lifetime.
func (c Config) SessionTTL() time.Duration {
	return time.Duration(c.Auth.SessionTTLMinutes) * time.Minute
}

// BackupEnabled reports whether database snapshots should be shipped to object storage.
func (c Config) BackupEnabled() bool {
	return strings.TrimSpace(c.Storage.Bucket) != "" && c.Backup.Interval > 0
}

// Load reads configuration from environment variables and optional config files.
func Load() (Config, error) {
	loadDotEnv()

	v := viper.New()
	v.SetEnvPrefix("BLOGSITE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", "0.0.0.0:8080")
	v.SetDefault("server.ginmode", "release")
	v.SetDefault("database.path", "data/blogsite.db")
	v.SetDefault("auth.jwtsecret", "")
	v.SetDefault("auth.sessionttlminutes", 14*24*60)
	v.SetDefault("auth.cookiename", "blogsite_session")
	v.SetDefault("auth.securecookie", false)
	v.SetDefault("backup.interval", 24*time.Hour)
	v.SetDefault("backup.keep", 7)
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.keyprefix", "blogsite-backups")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("aws.profile", "")

	v.SetConfigName("config")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // optional file

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

func loadDotEnv() {
	file, err := os.Open(".env")
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		key, value, ok := parseEnvLine(scanner.Text())
		if !ok {
			continue
		}
		if _, exists := os.LookupEnv(key); !exists {
			_ = os.Setenv(key, value)
		}
	}
}

func parseEnvLine(line string) (string, string, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", "", false
	}
	line = strings.TrimPrefix(line, "export ")

	idx := strings.Index(line, "=")
	if idx <= 0 {
		return "", "", false
	}

	key := strings.TrimSpace(line[:idx])
	value := strings.Trim(strings.TrimSpace(line[idx+1:]), `"'`)
	if key == "" {
		return "", "", false
	}
	return key, value, true
}
