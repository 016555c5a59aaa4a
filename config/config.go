package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// --- Configuration Structs ---

// DBConfig describes one PostgreSQL endpoint.
type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	Schema   string `mapstructure:"schema"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int32  `mapstructure:"max_conns"`
}

type ArchiveConfig struct {
	Format   string `mapstructure:"format"`
	Dir      string `mapstructure:"dir"`
	S3Bucket string `mapstructure:"s3_bucket"`
	S3Prefix string `mapstructure:"s3_prefix"`
}

type ServerConfig struct {
	Port    int  `mapstructure:"port"`
	Prefork bool `mapstructure:"prefork"`
}

type LogConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

type Config struct {
	Environment string        `mapstructure:"environment"`
	Master      DBConfig      `mapstructure:"master"`
	Slave       DBConfig      `mapstructure:"slave"`
	KeyColumn   string        `mapstructure:"key_column"`
	ReportDir   string        `mapstructure:"report_dir"`
	Archive     ArchiveConfig `mapstructure:"archive"`
	Server      ServerConfig  `mapstructure:"server"`
	Log         LogConfig     `mapstructure:"log"`
}

// setting ties a config key to its environment variable and default.
type setting struct {
	key string
	env string
	def any
}

var settings = []setting{
	{"environment", "ENVIRONMENT", "development"},

	{"master.user", "MASTER_PG_USER", ""},
	{"master.host", "MASTER_PG_ADDR", ""},
	{"master.dbname", "MASTER_PG_DB", ""},
	{"master.password", "MASTER_PG_PASS", ""},
	{"master.port", "MASTER_PG_PORT", 5432},
	{"master.schema", "", ""},
	{"master.sslmode", "", "prefer"},
	{"master.max_conns", "", 4},

	{"slave.user", "SLAVE_PG_USER", ""},
	{"slave.host", "SLAVE_PG_ADDR", ""},
	{"slave.dbname", "SLAVE_PG_DB", ""},
	{"slave.password", "SLAVE_PG_PASS", ""},
	{"slave.port", "SLAVE_PG_PORT", 5432},
	{"slave.schema", "", ""},
	{"slave.sslmode", "", "prefer"},
	{"slave.max_conns", "", 4},

	{"key_column", "", "id"},
	{"report_dir", "", ""},
	{"archive.format", "", ""},
	{"archive.dir", "", "archive"},
	{"archive.s3_bucket", "", ""},
	{"archive.s3_prefix", "", ""},
	{"server.port", "", 8080},
	{"server.prefork", "", false},
	{"log.file", "", "kirby.log"},
	{"log.level", "", "info"},
}

// EnvName returns the environment variable that overrides key.
func EnvName(key string) string {
	for _, s := range settings {
		if s.key == key && s.env != "" {
			return s.env
		}
	}
	return "KIRBY_" + strings.ToUpper(strings.NewReplacer(".", "_").Replace(key))
}

// --- Load Configuration ---

// LoadConfig resolves settings from, highest first: the process environment,
// the dotenv file, the YAML config file, and built-in defaults. Empty paths
// are skipped; a missing dotenv file is not an error.
func LoadConfig(configPath, dotenvPath string) (*Config, error) {
	v := viper.New()
	for _, s := range settings {
		v.SetDefault(s.key, s.def)
		if err := v.BindEnv(s.key, EnvName(s.key)); err != nil {
			return nil, err
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if dotenvPath != "" {
		values, err := godotenv.Read(dotenvPath)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read %s: %w", dotenvPath, err)
		default:
			for _, s := range settings {
				env := EnvName(s.key)
				value, ok := values[env]
				if !ok {
					continue
				}
				if _, set := os.LookupEnv(env); !set {
					v.Set(s.key, value)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// DSN renders the endpoint as a postgres:// connection string.
func (dbc DBConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(dbc.User, dbc.Password),
		Host:   net.JoinHostPort(dbc.Host, strconv.Itoa(dbc.Port)),
		Path:   "/" + dbc.DBName,
	}
	if dbc.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {dbc.SSLMode}}.Encode()
	}
	return u.String()
}

// --- Validation Functions ---

// validate is a helper function to reduce repetition.
func validate(condition bool, format string, a ...any) error {
	if !condition {
		return fmt.Errorf(format, a...)
	}
	return nil
}

var archiveFormats = map[string]bool{"": true, "arrow": true, "parquet": true, "json": true}

func (c *Config) Validate() error {
	if err := c.Master.Validate(); err != nil {
		return fmt.Errorf("master database: %w", err)
	}
	if err := c.Slave.Validate(); err != nil {
		return fmt.Errorf("slave database: %w", err)
	}
	if err := validate(strings.TrimSpace(c.KeyColumn) != "", "key column is required"); err != nil {
		return err
	}
	if err := c.Archive.Validate(); err != nil {
		return fmt.Errorf("archive: %w", err)
	}
	return validate(c.Server.Port >= 0 && c.Server.Port <= 65535, "server port %d out of range", c.Server.Port)
}

func (dbc *DBConfig) Validate() error {
	if err := validate(dbc.Host != "", "host is required"); err != nil {
		return err
	}
	if err := validate(dbc.DBName != "", "database name is required"); err != nil {
		return err
	}
	if err := validate(dbc.User != "", "user is required"); err != nil {
		return err
	}
	if err := validate(dbc.Port > 0 && dbc.Port <= 65535, "port %d out of range", dbc.Port); err != nil {
		return err
	}
	return validate(dbc.MaxConns >= 0, "max_conns must not be negative")
}

func (ac *ArchiveConfig) Validate() error {
	if err := validate(archiveFormats[ac.Format], "unsupported format %q", ac.Format); err != nil {
		return err
	}
	return validate(ac.S3Bucket == "" || ac.Format != "", "s3_bucket requires a format")
}

// Enabled reports whether moved rows are archived.
func (ac ArchiveConfig) Enabled() bool {
	return ac.Format != ""
}
