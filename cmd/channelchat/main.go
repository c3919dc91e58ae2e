package main

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/channelchat/internal/app"
	"github.com/vovakirdan/channelchat/internal/auth"
	"github.com/vovakirdan/channelchat/internal/config"
	"github.com/vovakirdan/channelchat/internal/log"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "channelchat",
		Short: "Multi-channel real-time chat server",
		Long: `channelchat serves named chat channels over WebSocket, with a JSON
control API for login, channel discovery and administration.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(createServeCmd())
	rootCmd.AddCommand(createHashAdminKeyCmd())
	rootCmd.AddCommand(createStatusCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func createServeCmd() *cobra.Command {
	var (
		configPath string
		overrides  config.Config
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the chat server",
		Long: `Load configuration (defaults < config file < CHANNELCHAT_* env < flags)
and serve until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			bootLog := log.New("info")
			cfg, path, err := config.Load(bootLog, configPath)
			if err != nil {
				return err
			}
			cfg.UpdateFrom(overrides)

			logger := log.NewWithFormat(cfg.LogLevel, cfg.LogFormat, os.Stdout)
			logger.Info().Str("config", path).Str("addr", cfg.Addr).Msg("starting channelchat")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, err := app.New(&cfg, logger)
			if err != nil {
				return err
			}
			if err := application.Run(ctx); err != nil {
				return fmt.Errorf("server exited with error: %w", err)
			}
			logger.Info().Msg("server stopped")
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	cmd.Flags().StringVar(&overrides.Addr, "addr", "", "HTTP listen address")
	cmd.Flags().DurationVar(&overrides.ReadHeaderTimeout, "read-header-timeout", 0, "HTTP read header timeout")
	cmd.Flags().DurationVar(&overrides.ShutdownTimeout, "shutdown-timeout", 0, "graceful shutdown timeout")
	cmd.Flags().StringVar(&overrides.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&overrides.DatabasePath, "db", "", "SQLite database path")
	cmd.Flags().IntVar(&overrides.RateLimitPerMinute, "rate-limit", 0, "posts per connection per minute")

	return cmd
}

func createHashAdminKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-admin-key [key]",
		Short: "Print a bcrypt hash for admin_key_hash",
		Long:  "Hash an admin key given as argument or read from stdin.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var key string
			if len(args) == 1 {
				key = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read key: %w", err)
				}
				key = strings.TrimSpace(line)
			}

			hash, err := auth.HashAdminKey(key)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

func createStatusCmd() *cobra.Command {
	var url string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check whether a server is running",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 3*time.Second)
			defer cancel()

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(url, "/")+"/health", nil)
			if err != nil {
				return err
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				color.Red("no server reachable at %s", url)
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				color.Red("server at %s answered %s", url, resp.Status)
				return fmt.Errorf("unhealthy: %s", resp.Status)
			}
			color.Green("server at %s is running", url)
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", "http://localhost:8080", "Server base URL")

	return cmd
}
