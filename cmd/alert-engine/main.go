package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"alertflow/internal/config"
	"alertflow/internal/logger"
	"alertflow/internal/rules"
	"alertflow/pkg/bootstrap"
	"alertflow/pkg/condition"
	"alertflow/pkg/logging"
	"alertflow/pkg/models"
)

const serviceName = "alert-engine"

var (
	configFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   serviceName,
		Short: "Rule evaluation and alerting engine",
		Long:  "Alert engine evaluates tenant rules against domain events and raises deduplicated alerts",
		RunE:  serveCmd().RunE,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (required)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(rulesCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	earlyLog := logging.NewEarlyLog()

	if configFile == "" {
		configFile = os.Getenv("CONFIG_FILE")
		if configFile == "" {
			earlyLog.Error("Config file is required. Use --config flag or CONFIG_FILE environment variable")
			return nil, fmt.Errorf("config file is required")
		}
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		earlyLog.Error("Failed to load config: %v", err)
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (logger.Logger, error) {
	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		logging.NewEarlyLog().Error("Failed to init logger: %v", err)
		return nil, err
	}
	if sugared, ok := log.(*logger.SugaredLogger); ok {
		sugared.SetServiceName(serviceName)
	}
	return log, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the alert engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			log, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			log.InfowCtx(ctx, "Starting alert engine")

			app := NewApp(cfg, log)
			if err := app.Initialize(ctx); err != nil {
				log.ErrorwCtx(ctx, "Failed to initialize application", "error", err)
				return err
			}

			log.InfowCtx(ctx, "Service running")
			if err := app.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.ErrorwCtx(ctx, "Service stopped with error", "error", err)
				return err
			}
			log.InfowCtx(ctx, "Service shutdown complete")
			return nil
		},
	}
}

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Rule maintenance commands",
	}
	cmd.AddCommand(rulesCheckCmd())
	cmd.AddCommand(rulesReloadCmd())
	return cmd
}

// rulesCheckCmd validates a YAML rule file offline with the configured engine limits.
func rulesCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check [file]",
		Short: "Validate a YAML rule file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			guard := condition.DefaultGuard()
			if configFile != "" || os.Getenv("CONFIG_FILE") != "" {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				guard = condition.Guard{MaxDepth: cfg.Engine.MaxDepth, MaxConditions: cfg.Engine.MaxConditions}
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read rule file: %w", err)
			}

			ruleSet, err := rules.ParseYAML(data)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			failed := 0
			for _, r := range ruleSet {
				if err := r.Validate(guard); err != nil {
					failed++
					fmt.Fprintf(out, "FAIL %s: %v\n", r.ID, err)
					continue
				}
				fmt.Fprintf(out, "ok   %s (%s/%s)\n", r.ID, r.OrganizationID, r.ModuleName)
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d rules are invalid", failed, len(ruleSet))
			}
			return nil
		},
	}
}

// rulesReloadCmd publishes a reload event so running engines drop their cached rules.
func rulesReloadCmd() *cobra.Command {
	var organizationID, moduleName, changedBy string

	cmd := &cobra.Command{
		Use:   "reload",
		Short: "Tell running engines to reload rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			log, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer log.Sync()

			event := models.RuleUpdateEvent{
				OrganizationID: organizationID,
				ModuleName:     moduleName,
				Action:         models.ActionReload,
				Timestamp:      time.Now().UTC(),
				ChangedBy:      changedBy,
			}
			if err := models.ValidateRuleUpdateEvent(&event); err != nil {
				return err
			}

			body, err := json.Marshal(event)
			if err != nil {
				return fmt.Errorf("failed to marshal rule update: %w", err)
			}

			base := bootstrap.NewBase(cfg, log)
			if err := base.InitProducer(serviceName); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			err = base.Producer.Publish(ctx, cfg.Broker.Kafka.RuleUpdateTopic, []byte(organizationID), body)
			if shutdownErr := base.Shutdown(ctx, nil); err == nil {
				err = shutdownErr
			}
			if err != nil {
				return err
			}

			log.InfowCtx(ctx, "Rule reload published",
				"topic", cfg.Broker.Kafka.RuleUpdateTopic,
				"organization_id", organizationID,
				"module_name", moduleName,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&organizationID, "org", "", "Organization to reload (empty reloads every organization)")
	cmd.Flags().StringVar(&moduleName, "module", "", "Module to reload (requires --org)")
	cmd.Flags().StringVar(&changedBy, "changed-by", os.Getenv("USER"), "Recorded author of the change")
	return cmd
}
