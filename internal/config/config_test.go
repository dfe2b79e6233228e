package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"amazon-orders/internal/amazon/errs"
	"amazon-orders/internal/amazon/selectors"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func write(t testing.TB, path, contents string) {
	err := os.WriteFile(path, []byte(contents), 0600)
	if err != nil {
		t.Fatal(err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.yml"))
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, "us", cfg.Locale)
	require.Equal(t, 10, cfg.MaxAuthAttempts)
	require.Equal(t, time.Second, cfg.AuthRetryWaitDuration())
	require.Equal(t, 30*time.Second, cfg.RequestTimeoutDuration())
	require.Equal(t, CookieStoreFile, cfg.CookieStore.Kind)
	require.False(t, cfg.WarnOnMissingRequiredField)
}

func TestLoadYamlWithLocalOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	write(t, path, `
locale: uk
max_auth_attempts: 3
auth_retry_wait: 5s
output_dir: /tmp/amazon-debug
selectors:
  order_history_entity:
    - div.custom-card
`)
	write(t, filepath.Join(dir, "config.local.yml"), `
max_auth_attempts: 7
cookie_store:
  kind: redis
  redis_url: redis://localhost:6379/0
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, "uk", cfg.Locale)
	require.Equal(t, 7, cfg.MaxAuthAttempts)
	require.Equal(t, 5*time.Second, cfg.AuthRetryWaitDuration())
	require.Equal(t, "/tmp/amazon-debug", cfg.OutputDir)
	require.Equal(t, CookieStoreRedis, cfg.CookieStore.Kind)

	sel, err := cfg.PageSelectors()
	require.NoError(t, err)
	require.Equal(t, selectors.Query{"div.custom-card"}, sel.OrderHistoryEntity)
	require.Equal(t, selectors.Default().SignInForm, sel.SignInForm)

	constants, err := cfg.StorefrontConstants()
	require.NoError(t, err)
	require.Equal(t, "https://www.amazon.co.uk", constants.BaseURL)
}

func TestLoadJson5(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json5")
	write(t, path, `{
	// a local test storefront
	base_url: "http://localhost:8080",
	warn_on_missing_required_field: true,
	requests_per_second: 2.5,
	constants: {sign_in_path: "/login"},
}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	require.True(t, cfg.WarnOnMissingRequiredField)
	require.Equal(t, 2.5, cfg.RequestsPerSecond)

	constants, err := cfg.StorefrontConstants()
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8080", constants.BaseURL)
	require.Equal(t, "/login", constants.SignInPath)
	require.Equal(t, "/your-orders/orders", constants.OrderHistoryPath)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		modify func(c *Config)
	}{
		{"unknown locale", func(c *Config) { c.Locale = "xx" }},
		{"relative base url", func(c *Config) { c.BaseURL = "/orders" }},
		{"no auth attempts", func(c *Config) { c.MaxAuthAttempts = 0 }},
		{"bad duration", func(c *Config) { c.AuthRetryWait = "soon" }},
		{"negative duration", func(c *Config) { c.RequestTimeout = "-1s" }},
		{"redis without url", func(c *Config) { c.CookieStore.Kind = CookieStoreRedis }},
		{"unknown cookie store", func(c *Config) { c.CookieStore.Kind = "s3" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.modify(&cfg)
			err := cfg.Validate()
			var configErr errs.ConfigError
			require.True(t, errors.As(err, &configErr), err)
		})
	}
}

func TestSet(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	require.NoError(t, cfg.Set("max_auth_attempts", "4"))
	require.Equal(t, 4, cfg.MaxAuthAttempts)

	require.NoError(t, cfg.Set("warn_on_missing_required_field", "true"))
	require.True(t, cfg.WarnOnMissingRequiredField)

	require.NoError(t, cfg.Set("auth_retry_wait", "250ms"))
	require.Equal(t, 250*time.Millisecond, cfg.AuthRetryWaitDuration())

	require.NoError(t, cfg.Set("cookie_store.redis_url", "redis://localhost:6379/1"))
	require.NoError(t, cfg.Set("cookie_store.kind", "redis"))
	require.Equal(t, "redis://localhost:6379/1", cfg.CookieStore.RedisUrl)
	require.Equal(t, CookieStoreRedis, cfg.CookieStore.Kind)

	// values that look like numbers stay strings for string settings
	require.NoError(t, cfg.Set("locale", "de"))
	require.NoError(t, cfg.Set("cookie_store.redis_key", "12345"))
	require.Equal(t, "12345", cfg.CookieStore.RedisKey)

	var configErr errs.ConfigError
	err := cfg.Set("no_such_setting", "1")
	require.True(t, errors.As(err, &configErr))
	err = cfg.Set("selectors", "div")
	require.True(t, errors.As(err, &configErr))
	err = cfg.Set("max_auth_attempts", "many")
	require.True(t, errors.As(err, &configErr))

	err = cfg.Set("max_auth_attempts", "0")
	require.True(t, errors.As(err, &configErr))
	require.Equal(t, 4, cfg.MaxAuthAttempts, "an invalid value leaves the config untouched")
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"config.yml", "config.json"} {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			cfg.Locale = "ca"
			cfg.MaxPaginationPages = 3
			cfg.Selectors.NextPageLink = selectors.Query{"a.next"}
			require.NoError(t, cfg.Validate())

			path := filepath.Join(dir, "nested", name)
			require.NoError(t, cfg.Save(path))

			loaded, err := Load(path)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(cfg, loaded, cmp.AllowUnexported(Config{})); diff != "" {
				t.Fatalf("config mismatch (-saved +loaded):\n%s", diff)
			}
		})
	}
}
