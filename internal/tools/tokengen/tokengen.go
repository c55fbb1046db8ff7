// Package tokengen issues development bearer tokens for the API.
package tokengen

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"esusu/internal/auth"
)

type Config struct {
	UserID string
	TTL    time.Duration
	Secret string
}

// ParseConfig parses flags into a Config. secret is the fallback for -secret,
// normally JWT_SECRET from the environment.
func ParseConfig(fs *flag.FlagSet, args []string, secret string) (Config, error) {
	cfg := Config{TTL: time.Hour, Secret: secret}
	fs.StringVar(&cfg.UserID, "user", "", "user id to put in the token")
	fs.DurationVar(&cfg.TTL, "ttl", cfg.TTL, "token lifetime")
	fs.StringVar(&cfg.Secret, "secret", cfg.Secret, "HMAC secret (default: JWT_SECRET)")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run signs the token and writes it to out.
func Run(cfg Config, out io.Writer) error {
	if cfg.UserID == "" {
		return errors.New("user is required")
	}
	if cfg.TTL <= 0 {
		return errors.New("ttl must be greater than zero")
	}
	if out == nil {
		return errors.New("output is required")
	}
	token, err := auth.GenerateToken(cfg.Secret, cfg.UserID, cfg.TTL)
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}
	_, err = fmt.Fprintln(out, token)
	return err
}
