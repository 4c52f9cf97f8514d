package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"pillsreminder/internal/auth"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/cobra"
)

// tokenConfig is the slice of the service configuration this tool needs
type tokenConfig struct {
	JWTSecret string `envconfig:"JWT_SECRET" required:"true"`
}

var (
	userFlag string
	ttlFlag  time.Duration
	rootCmd  = &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the reporting API",
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()
			var cfg tokenConfig
			if err := envconfig.Process("PILLS", &cfg); err != nil {
				return err
			}
			return mint(cfg.JWTSecret, userFlag, ttlFlag, cmd.OutOrStdout())
		},
	}
)

func mint(secret, userID string, ttl time.Duration, w io.Writer) error {
	if userID == "" {
		return fmt.Errorf("--user required")
	}
	if ttl <= 0 {
		return fmt.Errorf("--ttl must be positive, got %s", ttl)
	}
	token, err := auth.GenerateToken(secret, userID, ttl)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, token)
	return err
}

func main() {
	rootCmd.Flags().StringVarP(&userFlag, "user", "u", "", "Telegram user id the token acts as (required)")
	rootCmd.Flags().DurationVarP(&ttlFlag, "ttl", "t", 30*24*time.Hour, "Token lifetime")
	_ = rootCmd.MarkFlagRequired("user")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
