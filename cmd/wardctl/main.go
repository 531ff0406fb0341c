// Package main provides wardctl, the operator CLI for the ward dashboard.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wardboard/go-ward/internal/app"
	"github.com/wardboard/go-ward/internal/config"
	"github.com/wardboard/go-ward/internal/detail"
	"github.com/wardboard/go-ward/internal/infrastructure/redpanda"
	"github.com/wardboard/go-ward/internal/observability/tracing"
	"github.com/wardboard/go-ward/internal/ward"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "wardctl",
		Short:         "Ward dashboard operations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("env-file", ".env", "Optional .env file with configuration")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(topicsCmd())
	rootCmd.AddCommand(patientCmd())
	rootCmd.AddCommand(notificationsCmd())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// setup loads configuration and builds the logger
func setup(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, nil, err
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the dashboard API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signalContext(cmd)
			defer stop()

			tcfg := tracing.DefaultConfig(app.ServiceName)
			tcfg.OTLPEndpoint = cfg.OTLPEndpoint
			tcfg.Environment = cfg.Environment
			tp, err := tracing.Init(ctx, tcfg)
			if err != nil {
				return err
			}
			defer tp.Shutdown(context.Background())

			a, err := app.New(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.Serve(ctx)
		},
	}
}

func topicsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "topics",
		Short: "Manage Redpanda topics",
	}

	admin := func(cmd *cobra.Command) (*config.Config, *redpanda.Admin, error) {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return nil, nil, err
		}
		brokers := cfg.Brokers()
		if len(brokers) == 0 {
			return nil, nil, errors.New("KAFKA_BROKERS is not set")
		}
		a, err := redpanda.NewAdmin(brokers, logger)
		if err != nil {
			return nil, nil, err
		}
		return cfg, a, nil
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "ensure",
		Short: "Create the notification and discharge topics if missing",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, a, err := admin(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.EnsureTopics(cmd.Context(), cfg.NotificationTopic, cfg.DischargeTopic); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "topics ready: %s, %s\n", cfg.NotificationTopic, cfg.DischargeTopic)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List topics",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, a, err := admin(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			names, err := a.ListTopics(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(names, "\n"))
			return nil
		},
	})
	return cmd
}

func patientCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patient",
		Short: "Inspect patients",
	}

	showCmd := &cobra.Command{
		Use:   "show <patient-id>",
		Short: "Print the patient detail view as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync()

			a, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			screen := detail.NewScreen(a.Detail, a.ScreenConfig())
			loadErr := screen.Load(cmd.Context(), args[0])

			tab, _ := cmd.Flags().GetString("tab")
			if loadErr == nil && tab != "" {
				if err := screen.SelectTab(detail.Tab(tab)); err != nil {
					return err
				}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(screen.View()); err != nil {
				return err
			}
			return loadErr
		},
	}
	showCmd.Flags().String("tab", "", "Tab to select before rendering (vitals, medications, labs, procedures, notes)")
	cmd.AddCommand(showCmd)
	return cmd
}

func notificationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notifications",
		Short: "Follow the notification feed",
	}

	tailCmd := &cobra.Command{
		Use:   "tail",
		Short: "Print notifications as they are published",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync()

			brokers := cfg.Brokers()
			if len(brokers) == 0 {
				return errors.New("KAFKA_BROKERS is not set")
			}

			ccfg := redpanda.DefaultConsumerConfig()
			ccfg.Brokers = brokers
			ccfg.Topics = []string{cfg.NotificationTopic}
			ccfg.GroupID, _ = cmd.Flags().GetString("group")
			if fromStart, _ := cmd.Flags().GetBool("from-beginning"); fromStart {
				ccfg.StartOffset = "earliest"
			}
			patientID, _ := cmd.Flags().GetString("patient")

			ctx, stop := signalContext(cmd)
			defer stop()

			out := cmd.OutOrStdout()
			return redpanda.Tail(ctx, ccfg, func(_ context.Context, n ward.Notification) error {
				if patientID != "" && n.PatientID != patientID {
					return nil
				}
				_, err := fmt.Fprintf(out, "%s %-8s %-10s %-6s %s\n",
					n.Timestamp.Format("15:04:05"), n.Severity, n.Type, n.PatientID, n.Message)
				return err
			}, logger)
		},
	}
	tailCmd.Flags().String("group", "", "Consumer group to join (commits offsets)")
	tailCmd.Flags().Bool("from-beginning", false, "Start from the oldest retained notification")
	tailCmd.Flags().String("patient", "", "Only show notifications for this patient")
	cmd.AddCommand(tailCmd)
	return cmd
}
