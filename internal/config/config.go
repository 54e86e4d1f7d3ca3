// Package config loads bot.yaml and applies environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jcvilalta/MineDeezCoords/internal/dialog"
	"github.com/jcvilalta/MineDeezCoords/internal/persistence/backup"
	"github.com/jcvilalta/MineDeezCoords/internal/persistence/store"
	"github.com/jcvilalta/MineDeezCoords/internal/persistence/watch"
)

type Config struct {
	DataDir       string        `yaml:"data_dir"`
	StateDSN      string        `yaml:"state_dsn"`
	DialogTimeout time.Duration `yaml:"dialog_timeout"`

	Discord   DiscordConfig   `yaml:"discord"`
	Backup    BackupConfig    `yaml:"backup"`
	ChangeLog ChangeLogConfig `yaml:"changelog"`
	Index     IndexConfig     `yaml:"index"`
	Watch     WatchConfig     `yaml:"watch"`
	HTTP      HTTPConfig      `yaml:"http"`
	R2        R2Config        `yaml:"r2"`
}

type DiscordConfig struct {
	Token   string `yaml:"token"`
	AppID   string `yaml:"app_id"`
	GuildID string `yaml:"guild_id"`
	OwnerID string `yaml:"owner_id"`
}

type BackupConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Dir      string        `yaml:"dir"`
	Interval time.Duration `yaml:"interval"`
	Keep     int           `yaml:"keep"`
}

type ChangeLogConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

type IndexConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type WatchConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce"`
}

type HTTPConfig struct {
	Addr     string `yaml:"addr"`
	Observer bool   `yaml:"observer"`
}

type R2Config struct {
	Enabled         bool   `yaml:"enabled"`
	Endpoint        string `yaml:"endpoint"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Prefix          string `yaml:"prefix"`
	Workers         int    `yaml:"workers"`
}

// Load reads path (optional) over the defaults, applies environment
// overrides, then the given overrides (command line flags), and validates
// the result.
func Load(path string, overrides ...func(*Config)) (Config, error) {
	cfg := Defaults()
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("bot.yaml: %w", err)
		}
	}
	cfg.ApplyEnv()
	for _, fn := range overrides {
		fn(&cfg)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("bot.yaml: %w", err)
	}
	return cfg, nil
}

func Defaults() Config {
	return Config{
		DataDir:       "data",
		DialogTimeout: dialog.DefaultTimeout,
		Backup: BackupConfig{
			Enabled:  true,
			Dir:      "backups",
			Interval: backup.DefaultInterval,
			Keep:     backup.DefaultKeep,
		},
		ChangeLog: ChangeLogConfig{Enabled: true, Dir: "changes"},
		Index:     IndexConfig{Enabled: true, Path: "index/changes.sqlite"},
		Watch:     WatchConfig{Enabled: true, Debounce: watch.DefaultDebounce},
		HTTP:      HTTPConfig{Addr: "127.0.0.1:8090", Observer: true},
		R2:        R2Config{Prefix: "coords", Workers: 2},
	}
}

// ApplyEnv overrides secrets and deployment settings from the environment.
func (c *Config) ApplyEnv() {
	c.Discord.Token = envString("DISCORD_TOKEN", c.Discord.Token)
	c.Discord.AppID = envString("DISCORD_APP_ID", c.Discord.AppID)
	c.Discord.GuildID = envString("DISCORD_GUILD_ID", c.Discord.GuildID)
	c.Discord.OwnerID = envString("COORDS_OWNER_ID", c.Discord.OwnerID)
	c.DataDir = envString("COORDS_DATA_DIR", c.DataDir)
	c.StateDSN = envString("COORDS_STATE_DSN", c.StateDSN)
	c.DialogTimeout = envDuration("COORDS_DIALOG_TIMEOUT", c.DialogTimeout)
	c.HTTP.Addr = envString("COORDS_HTTP_ADDR", c.HTTP.Addr)
	c.Backup.Interval = envDuration("COORDS_BACKUP_INTERVAL", c.Backup.Interval)
	c.Backup.Keep = envInt("COORDS_BACKUP_KEEP", c.Backup.Keep)

	c.R2.Enabled = envBool("COORDS_R2_UPLOAD", c.R2.Enabled)
	c.R2.Endpoint = envString("COORDS_R2_ENDPOINT", c.R2.Endpoint)
	c.R2.Bucket = envString("COORDS_R2_BUCKET", c.R2.Bucket)
	c.R2.Region = envString("COORDS_R2_REGION", c.R2.Region)
	c.R2.AccessKeyID = envString("COORDS_R2_ACCESS_KEY_ID", c.R2.AccessKeyID)
	c.R2.SecretAccessKey = envString("COORDS_R2_SECRET_ACCESS_KEY", c.R2.SecretAccessKey)
	c.R2.Prefix = envString("COORDS_R2_PREFIX", c.R2.Prefix)
	c.R2.Workers = envInt("COORDS_R2_UPLOAD_WORKERS", c.R2.Workers)
}

// Normalize fills zero values and resolves relative paths against DataDir.
func (c *Config) Normalize() {
	def := Defaults()
	c.DataDir = strings.TrimSpace(c.DataDir)
	if c.DataDir == "" {
		c.DataDir = def.DataDir
	}
	if strings.TrimSpace(c.StateDSN) == "" {
		c.StateDSN = filepath.Join(c.DataDir, store.DefaultPath)
	}
	if c.DialogTimeout <= 0 {
		c.DialogTimeout = def.DialogTimeout
	}
	if c.Backup.Interval <= 0 {
		c.Backup.Interval = def.Backup.Interval
	}
	if c.Backup.Keep <= 0 {
		c.Backup.Keep = def.Backup.Keep
	}
	if c.Watch.Debounce <= 0 {
		c.Watch.Debounce = def.Watch.Debounce
	}
	if c.R2.Workers <= 0 {
		c.R2.Workers = def.R2.Workers
	}
	c.Backup.Dir = c.resolve(c.Backup.Dir, def.Backup.Dir)
	c.ChangeLog.Dir = c.resolve(c.ChangeLog.Dir, def.ChangeLog.Dir)
	c.Index.Path = c.resolve(c.Index.Path, def.Index.Path)
}

func (c *Config) Validate() error {
	if c.R2.Enabled {
		if c.R2.Endpoint == "" || c.R2.Bucket == "" || c.R2.AccessKeyID == "" || c.R2.SecretAccessKey == "" {
			return fmt.Errorf("r2 upload enabled but endpoint/bucket/access_key_id/secret_access_key are not fully set")
		}
		if !c.Backup.Enabled && !c.ChangeLog.Enabled {
			return fmt.Errorf("r2 upload enabled but backups and changelog are both disabled")
		}
	}
	if c.Backup.Enabled && c.Backup.Dir == c.ChangeLog.Dir {
		return fmt.Errorf("backup.dir and changelog.dir must differ")
	}
	return nil
}

// StatePath is the file the watcher follows, or "" when the state does not
// live in a local file.
func (c Config) StatePath() string {
	dsn := strings.TrimSpace(c.StateDSN)
	if strings.HasPrefix(dsn, "file://") {
		return strings.TrimPrefix(dsn, "file://")
	}
	if strings.Contains(dsn, "://") {
		return ""
	}
	return dsn
}

func (c *Config) resolve(p, def string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		p = def
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.DataDir, p)
}
