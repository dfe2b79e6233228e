package commands

import (
	"context"
	"fmt"
	"os"

	"amazon-orders/internal/config"

	"github.com/spf13/cobra"
)

const (
	envUsername      = "AMAZON_USERNAME"
	envPassword      = "AMAZON_PASSWORD"
	envOtpSecretKey  = "AMAZON_OTP_SECRET_KEY"
	envConfigPath    = "AMAZON_ORDERS_CONFIG"
	serviceName      = "amazon-orders"
	defaultCacheName = "default"
)

var (
	configPath   *string
	username     *string
	password     *string
	otpSecretKey *string
	verbose      *bool
	dbPath       *string
	jsonOutput   *bool
)

var rootCmd = &cobra.Command{
	Use:          "amazon-orders",
	Short:        "amazon-orders reads order and transaction history from an Amazon account.",
	SilenceUsage: true,
}

func envOr(name, fallback string) string {
	value, ok := os.LookupEnv(name)
	if !ok {
		return fallback
	}
	return value
}

func init() {
	flags := rootCmd.PersistentFlags()
	configPath = flags.String("config", envOr(envConfigPath, config.DefaultPath()), "The json5 or yaml config file to read.")
	username = flags.String("username", os.Getenv(envUsername), "The account's email or phone number, defaults to $"+envUsername+".")
	password = flags.String("password", os.Getenv(envPassword), "The account's password, defaults to $"+envPassword+".")
	otpSecretKey = flags.String("otp-secret-key", os.Getenv(envOtpSecretKey), "A TOTP secret that answers one-time passcode prompts, defaults to $"+envOtpSecretKey+".")
	verbose = flags.BoolP("verbose", "v", false, "Log requests and other debug information.")
	dbPath = flags.String("db", "", "A sqlite file or libsql url to export results to, overrides the db setting.")
	jsonOutput = flags.Bool("json", false, "Print results as json instead of a table.")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
