/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	bind             string
	controlPassword  string
	cooldown         time.Duration
	corsOrigins      []string
	dbPath           string
	dedupWindow      time.Duration
	defaultSetLength time.Duration
	maxLength        int
	port             int
	prefix           string
	profile          bool
	tlsCert          string
	tlsKey           string
	verbose          bool
	version          bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.maxLength < 1 {
		return fmt.Errorf("invalid max length (must be at least 1): %d", c.maxLength)
	}
	if c.cooldown < time.Second {
		return fmt.Errorf("invalid cooldown (must be at least 1s): %s", c.cooldown)
	}
	if c.dedupWindow < 0 {
		return fmt.Errorf("invalid dedup window (must not be negative): %s", c.dedupWindow)
	}
	if c.defaultSetLength < time.Second {
		return fmt.Errorf("invalid default set length (must be at least 1s): %s", c.defaultSetLength)
	}
	if c.dbPath == "" {
		return errors.New("--db must not be empty")
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("ONEWORD")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "oneword",
		Short:         "Collects one-word audience suggestions and runs them as a timed show.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: ONEWORD_BIND)")
	fs.StringVar(&cfg.controlPassword, "control-password", "", "shared secret required in X-Control-Password for show control endpoints (env: ONEWORD_CONTROL_PASSWORD)")
	fs.DurationVar(&cfg.cooldown, "cooldown", 30*24*time.Hour, "how long a browser stays locked out after submitting (env: ONEWORD_COOLDOWN)")
	fs.StringSliceVar(&cfg.corsOrigins, "cors-origin", nil, "origin allowed to call the JSON API cross-site, repeatable (env: ONEWORD_CORS_ORIGIN)")
	fs.StringVar(&cfg.dbPath, "db", "oneword.db", "path to sqlite database (env: ONEWORD_DB)")
	fs.DurationVar(&cfg.dedupWindow, "dedup-window", 0, "bucket width for collapsing repeat submissions from one client, 0 to count every row (env: ONEWORD_DEDUP_WINDOW)")
	fs.DurationVar(&cfg.defaultSetLength, "default-set-length", 5*time.Minute, "set length used when a start request omits one (env: ONEWORD_DEFAULT_SET_LENGTH)")
	fs.IntVar(&cfg.maxLength, "max-length", 30, "maximum word length in characters (env: ONEWORD_MAX_LENGTH)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: ONEWORD_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: ONEWORD_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: ONEWORD_PROFILE)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: ONEWORD_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: ONEWORD_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: ONEWORD_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: ONEWORD_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("oneword v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
