package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"jsbridge/bridge"
	"jsbridge/config"
	"jsbridge/job"
	"jsbridge/logger"
	"jsbridge/schedule"
	"jsbridge/server"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var cfgFile, level string
	var cfg config.Config

	root := &cobra.Command{
		Use:           "jsbridge",
		Short:         "Embedded script host with CommonJS modules and native builtins",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cfg, err = config.Load(cfgFile)
			if err != nil {
				return err
			}
			if level != "" {
				cfg.Log.Level = level
			}
			return logger.Setup(logger.Options{Level: cfg.Log.Level, Dir: cfg.Log.Dir})
		},
	}
	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default ./jsbridge.yaml or ~/.jsbridge/jsbridge.yaml)")
	root.PersistentFlags().StringVar(&level, "log-level", "", "debug, info, warn or error")

	root.AddCommand(runCmd(&cfg), serveCmd(&cfg), modulesCmd(&cfg))
	return root
}

func runCmd(cfg *config.Config) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "run <script>",
		Short: "Run a script as the main module and wait for its async work",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := bridge.New(cmd.Context(), *cfg, bridge.Options{})
			if err != nil {
				return err
			}
			defer b.Close()

			c, err := b.Factory.NewContext()
			if err != nil {
				return err
			}
			defer c.Close()

			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			stop := context.AfterFunc(ctx, func() { c.Interrupt(ctx.Err()) })
			defer stop()

			if err = c.RunMain(path); err != nil {
				return err
			}
			return c.Wait(ctx)
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "interrupt the script after this long")
	return cmd
}

func serveCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the script API and run scheduled scripts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			b, err := bridge.New(ctx, *cfg, bridge.Options{})
			if err != nil {
				return err
			}
			defer b.Close()

			d, err := bridge.OpenDao(ctx, *cfg)
			if err != nil {
				return err
			}
			runner := job.NewRunner(b.Factory, b.Console, d, time.Duration(cfg.Server.JobTimeoutSec)*time.Second)
			sch := schedule.MakeStandalone(d, runner)
			if err = sch.Start(ctx); err != nil {
				return err
			}
			defer sch.Close()

			r := gin.Default()
			server.New(d, sch, runner, b.Modules).RegistryRouting(r)
			r.NoRoute(func(c *gin.Context) { c.JSON(http.StatusNotFound, gin.H{}) })

			addr := fmt.Sprintf("%s:%d", cfg.Server.IP, cfg.Server.Port)
			logger.Info("listening", "addr", addr)
			return r.Run(addr)
		},
	}
}

func modulesCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "modules",
		Short: "List the builtin modules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := bridge.New(cmd.Context(), *cfg, bridge.Options{})
			if err != nil {
				return err
			}
			defer b.Close()
			for _, name := range b.Modules() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}
