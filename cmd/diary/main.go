// Command diary is the command-line client of the health diary.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/and161185/health-diary/internal/app"
	"github.com/and161185/health-diary/internal/config"
	"github.com/and161185/health-diary/internal/logger"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	config.LoadDotEnv()
	if err := newRootCmd(config.New()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "diary:", err)
		os.Exit(1)
	}
}

// cli carries the App opened by the root pre-run to every subcommand.
type cli struct {
	v   *viper.Viper
	app *app.App
	log *zap.Logger
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	c := &cli{v: v}
	root := &cobra.Command{
		Use:           "diary",
		Short:         "Family health diary client",
		Version:       fmt.Sprintf("%s (%s)", version, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.open(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return c.close()
		},
	}
	pf := root.PersistentFlags()
	pf.String("config", "", "config file (yaml, json or toml)")
	pf.String("api", "", "backend base URL, e.g. http://localhost:8080/api")
	pf.String("cache", "", "cache backend: file, sqlite or redis")
	pf.String("cache-path", "", "cache directory (file) or database file (sqlite)")
	pf.String("session", "", "session file")
	_ = v.BindPFlag("config", pf.Lookup("config"))
	_ = v.BindPFlag("api.base_url", pf.Lookup("api"))
	_ = v.BindPFlag("cache.backend", pf.Lookup("cache"))
	_ = v.BindPFlag("cache.path", pf.Lookup("cache-path"))
	_ = v.BindPFlag("session.path", pf.Lookup("session"))

	root.AddCommand(
		c.registerCmd(),
		c.loginCmd(),
		c.logoutCmd(),
		c.whoamiCmd(),
		c.syncCmd(),
		c.memberCmd(),
		c.entryCmd(),
	)
	return root
}

func (c *cli) open(cmd *cobra.Command) error {
	cfg, err := config.LoadClient(c.v)
	if err != nil {
		return err
	}
	c.log, err = logger.New(cfg.Log)
	if err != nil {
		return err
	}
	c.app, err = app.Open(cmd.Context(), cfg, c.log)
	if err != nil {
		return err
	}
	if err := c.app.Rehydrate(cmd.Context()); err != nil {
		// a broken cache is not fatal; sync rebuilds it
		c.log.Warn("rehydrate", zap.Error(err))
	}
	return nil
}

func (c *cli) close() error {
	if c.log != nil {
		defer func() { _ = c.log.Sync() }()
	}
	if c.app == nil {
		return nil
	}
	return c.app.Close()
}

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
