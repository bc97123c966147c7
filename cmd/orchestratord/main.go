package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/orchestrace/control-plane/config"
	"github.com/orchestrace/control-plane/dashboard"
	"github.com/orchestrace/control-plane/log"
	"github.com/orchestrace/control-plane/orchestrator"
)

var version = "0.1.0"

var withDashboard bool

var rootCmd = &cobra.Command{
	Use:   "orchestratord",
	Short: "orchestratord - an agent orchestration control plane",
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the control plane and block until terminated",
	RunE: func(cmd *cobra.Command, args []string) error {
		log.Initialize(false)
		defer log.Close()

		cfg := config.LoadConfig()
		o := orchestrator.New(cfg, nil)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		if err := o.Initialize(ctx); err != nil {
			return fmt.Errorf("failed to initialize control plane: %w", err)
		}
		log.InfoLog.Printf("control plane initialized, max agents: %d", cfg.MaxAgents)

		if withDashboard {
			if err := dashboard.Run(o.Agents, o.Tasks, o.Alerts, o.Metrics); err != nil {
				log.ErrorLog.Printf("dashboard exited with error: %v", err)
			}
			return shutdown(o)
		}

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.InfoLog.Println("received shutdown signal")

		return shutdown(o)
	},
}

func shutdown(o *orchestrator.Orchestrator) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := o.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down cleanly: %w", err)
	}
	return nil
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the resolved configuration this control plane would start with",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()

		configDir, err := config.GetConfigDir()
		if err != nil {
			return fmt.Errorf("failed to get config directory: %w", err)
		}

		configJSON, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}

		fmt.Printf("Config: %s\n%s\n", filepath.Join(configDir, config.ConfigFileName), configJSON)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of orchestratord",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("orchestratord version %s\n", version)
	},
}

func init() {
	startCmd.Flags().BoolVar(&withDashboard, "dashboard", false,
		"attach the live terminal dashboard instead of running headless")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
