package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"amazon-orders/internal/amazon/errs"
	"amazon-orders/internal/amazon/selectors"
	"amazon-orders/internal/components/telemetry"

	"dario.cat/mergo"
	"github.com/titanous/json5"
	"gopkg.in/yaml.v3"
)

const (
	CookieStoreFile  = "file"
	CookieStoreRedis = "redis"
)

type CookieStoreConfig struct {
	Kind     string `json:"kind" yaml:"kind"`
	RedisUrl string `json:"redis_url" yaml:"redis_url"`
	RedisKey string `json:"redis_key" yaml:"redis_key"`
}

type Config struct {
	Locale  string `json:"locale" yaml:"locale"`
	BaseURL string `json:"base_url" yaml:"base_url"`

	// Selectors and Constants override the locale defaults field by field.
	Selectors selectors.Selectors `json:"selectors" yaml:"selectors"`
	Constants selectors.Constants `json:"constants" yaml:"constants"`

	MaxAuthAttempts            int     `json:"max_auth_attempts" yaml:"max_auth_attempts"`
	AuthRetryWait              string  `json:"auth_retry_wait" yaml:"auth_retry_wait"`
	MaxCookieAttempts          int     `json:"max_cookie_attempts" yaml:"max_cookie_attempts"`
	MaxPaginationPages         int     `json:"max_pagination_pages" yaml:"max_pagination_pages"`
	WarnOnMissingRequiredField bool    `json:"warn_on_missing_required_field" yaml:"warn_on_missing_required_field"`
	ConnectionPoolSize         int     `json:"connection_pool_size" yaml:"connection_pool_size"`
	RequestTimeout             string  `json:"request_timeout" yaml:"request_timeout"`
	RequestsPerSecond          float64 `json:"requests_per_second" yaml:"requests_per_second"`

	OutputDir     string            `json:"output_dir" yaml:"output_dir"`
	CookieJarPath string            `json:"cookie_jar_path" yaml:"cookie_jar_path"`
	CookieStore   CookieStoreConfig `json:"cookie_store" yaml:"cookie_store"`
	CacheDir      string            `json:"cache_dir" yaml:"cache_dir"`
	CacheLifetime string            `json:"cache_lifetime" yaml:"cache_lifetime"`
	DB            string            `json:"db" yaml:"db"`

	Otlp telemetry.OtlpConfig `json:"otlp" yaml:"otlp"`

	authRetryWait  time.Duration
	requestTimeout time.Duration
	cacheLifetime  time.Duration
}

// Dir is where configuration and session state live by default.
func Dir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".amazon-orders"
	}
	return filepath.Join(dir, "amazon-orders")
}

// DefaultPath is the config file read when none is given.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yml")
}

func Default() Config {
	return Config{
		Locale:             "us",
		MaxAuthAttempts:    10,
		AuthRetryWait:      "1s",
		MaxCookieAttempts:  10,
		ConnectionPoolSize: 10,
		RequestTimeout:     "30s",
		CookieJarPath:      filepath.Join(Dir(), "cookies.json"),
		CookieStore:        CookieStoreConfig{Kind: CookieStoreFile},
		CacheLifetime:      "24h",
	}
}

func splitExt(f string) (string, string) {
	for i := len(f) - 1; i >= 0; i-- {
		if f[i] == '.' {
			return f[0:i], f[i+1:]
		}
	}
	return f, ""
}

func isYaml(ext string) bool {
	ext = strings.ToLower(ext)
	return ext == "yml" || ext == "yaml"
}

func decode(contents []byte, ext string, out *Config) error {
	if isYaml(ext) {
		return yaml.Unmarshal(contents, out)
	}
	return json5.Unmarshal(contents, out)
}

// read merges <name>.<ext> with <name>.local.<ext>, the local file wins. It returns
// os.ErrNotExist when neither file exists.
func read(name string) (Config, error) {
	var out Config
	allNotFound := true

	dirname := filepath.Dir(name)
	prefixname, ext := splitExt(filepath.Base(name))

	defaultFile, err := os.ReadFile(name)
	if err != nil && !os.IsNotExist(err) {
		return out, err
	}
	if len(defaultFile) > 0 {
		err = decode(defaultFile, ext, &out)
		if err != nil {
			return out, fmt.Errorf("parse %s: %w", name, err)
		}
		allNotFound = false
	}

	localFilepath := filepath.Join(dirname, fmt.Sprintf("%s.local.%s", prefixname, ext))
	localFile, err := os.ReadFile(localFilepath)
	if err != nil && !os.IsNotExist(err) {
		return out, err
	}
	if len(localFile) > 0 {
		var override Config
		err = decode(localFile, ext, &override)
		if err != nil {
			return out, fmt.Errorf("parse %s: %w", localFilepath, err)
		}
		err = mergo.Merge(&out, override, mergo.WithOverride)
		if err != nil {
			return out, err
		}
		slog.Info("merging config with local overrides", "local", localFilepath)
		allNotFound = false
	}

	if allNotFound {
		return out, os.ErrNotExist
	}
	return out, nil
}

// Load reads a json5 or yaml config file along with its .local override and fills in
// defaults. A missing file is not an error, the defaults are returned.
func Load(path string) (Config, error) {
	cfg, err := read(path)
	if err != nil && !os.IsNotExist(err) {
		return Config{}, err
	}
	if os.IsNotExist(err) {
		slog.Debug("no config file, using defaults", "path", path)
	}

	err = mergo.Merge(&cfg, Default())
	if err != nil {
		return Config{}, err
	}
	err = cfg.Validate()
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

func parseDuration(name, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, errs.Configf("%s %q is not a duration", name, value)
	}
	if d < 0 {
		return 0, errs.Configf("%s must not be negative", name)
	}
	return d, nil
}

// Validate checks the config and resolves its durations and paths.
func (c *Config) Validate() error {
	_, err := selectors.ForLocale(c.Locale)
	if err != nil {
		return errs.Configf("locale %q is not one of %s", c.Locale, strings.Join(selectors.Locales(), ", "))
	}
	if c.BaseURL != "" {
		u, err := url.Parse(c.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return errs.Configf("base_url %q is not an absolute url", c.BaseURL)
		}
	}
	if c.MaxAuthAttempts < 1 {
		return errs.Configf("max_auth_attempts must be at least 1")
	}
	if c.MaxCookieAttempts < 1 {
		return errs.Configf("max_cookie_attempts must be at least 1")
	}
	if c.MaxPaginationPages < 0 {
		return errs.Configf("max_pagination_pages must not be negative")
	}
	if c.ConnectionPoolSize < 0 {
		return errs.Configf("connection_pool_size must not be negative")
	}
	if c.RequestsPerSecond < 0 {
		return errs.Configf("requests_per_second must not be negative")
	}

	c.authRetryWait, err = parseDuration("auth_retry_wait", c.AuthRetryWait)
	if err != nil {
		return err
	}
	c.requestTimeout, err = parseDuration("request_timeout", c.RequestTimeout)
	if err != nil {
		return err
	}
	c.cacheLifetime, err = parseDuration("cache_lifetime", c.CacheLifetime)
	if err != nil {
		return err
	}

	switch c.CookieStore.Kind {
	case CookieStoreFile:
		if c.CookieJarPath == "" {
			return errs.Configf("cookie_jar_path is required with the file cookie store")
		}
	case CookieStoreRedis:
		if c.CookieStore.RedisUrl == "" {
			return errs.Configf("cookie_store.redis_url is required with the redis cookie store")
		}
	default:
		return errs.Configf("cookie_store.kind %q must be %s or %s", c.CookieStore.Kind, CookieStoreFile, CookieStoreRedis)
	}

	c.CookieJarPath = expandHome(c.CookieJarPath)
	c.OutputDir = expandHome(c.OutputDir)
	c.CacheDir = expandHome(c.CacheDir)
	return nil
}

func (c Config) AuthRetryWaitDuration() time.Duration {
	return c.authRetryWait
}

func (c Config) RequestTimeoutDuration() time.Duration {
	return c.requestTimeout
}

func (c Config) CacheLifetimeDuration() time.Duration {
	return c.cacheLifetime
}

// StorefrontConstants is the locale's constants with the configured overrides applied.
func (c Config) StorefrontConstants() (selectors.Constants, error) {
	constants, err := selectors.ForLocale(c.Locale)
	if err != nil {
		return selectors.Constants{}, err
	}
	override := c.Constants
	if c.BaseURL != "" {
		override.BaseURL = c.BaseURL
	}
	return selectors.MergeConstants(constants, override)
}

// PageSelectors is the default selectors with the configured overrides applied.
func (c Config) PageSelectors() (selectors.Selectors, error) {
	return selectors.Merge(selectors.Default(), c.Selectors)
}

// Save writes the config as yaml or, for any other extension, as json.
func (c Config) Save(path string) error {
	_, ext := splitExt(filepath.Base(path))

	var contents []byte
	var err error
	if isYaml(ext) {
		contents, err = yaml.Marshal(c)
	} else {
		contents, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return err
	}

	err = os.MkdirAll(filepath.Dir(path), 0700)
	if err != nil {
		return err
	}
	return os.WriteFile(path, contents, 0600)
}
