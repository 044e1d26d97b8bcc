package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmfell/phasegate/internal/catalog"
	"github.com/jmfell/phasegate/internal/consistency"
	"github.com/jmfell/phasegate/internal/output"
	"github.com/jmfell/phasegate/internal/store"
	"github.com/jmfell/phasegate/internal/workflow"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui            *output.UI
	methodology   *catalog.Catalog
	decisionStore store.DecisionStore
	orchestrator  *workflow.Workflow

	verbose bool

	buildVersion = "dev"
	buildCommit  = "none"
	buildDate    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "phasegate",
	Short: "Phase-gated design sessions with coverage and constraint enforcement",
	Long: `phasegate guides design and documentation work through ordered phases.
It scores free-text artifacts against coverage and constraint rules,
gates phase transitions on the results, and keeps constraint decisions
consistent across sessions.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/phasegate/config.yaml)")
}

func initConfig() {
	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}

		configDir := filepath.Join(home, ".config", "phasegate")
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("PHASEGATE")
	viper.AutomaticEnv()

	// Defaults via viper.SetDefault()
	home, _ := os.UserHomeDir()
	defaultConfigDir := filepath.Join(home, ".config", "phasegate")

	viper.SetDefault("state_dir", defaultConfigDir)
	viper.SetDefault("db_path", filepath.Join(defaultConfigDir, "phasegate.db"))
	viper.SetDefault("catalog_path", "")
	viper.SetDefault("coverage.threshold", 0.0)
	viper.SetDefault("strict", false)

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose

	// Catalog and workflow are initialized lazily so config/version
	// commands run without touching the database.
}

// getCatalog returns the methodology catalog, loading the configured
// file on first call or falling back to the embedded default.
func getCatalog() (*catalog.Catalog, error) {
	if methodology != nil {
		return methodology, nil
	}

	path := viper.GetString("catalog_path")
	if path == "" {
		methodology = catalog.Default()
		return methodology, nil
	}

	c, err := catalog.Load(path)
	if err != nil {
		return nil, err
	}
	methodology = c
	return methodology, nil
}

// getStore returns the shared decision store, initializing it on first
// call. An empty db_path selects the in-memory store.
func getStore() (store.DecisionStore, error) {
	if decisionStore != nil {
		return decisionStore, nil
	}

	dbPath := viper.GetString("db_path")
	if dbPath == "" {
		decisionStore = store.NewMemoryStore()
		return decisionStore, nil
	}

	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := s.Migrate(context.Background()); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	decisionStore = s
	return decisionStore, nil
}

// getWorkflow wires the full orchestrator on first call.
func getWorkflow() (*workflow.Workflow, error) {
	if orchestrator != nil {
		return orchestrator, nil
	}

	cat, err := getCatalog()
	if err != nil {
		return nil, err
	}
	s, err := getStore()
	if err != nil {
		return nil, err
	}

	enforcer := consistency.NewEnforcer(s, cat.Rules)
	orchestrator = workflow.New(cat, enforcer, viper.GetBool("strict"))
	return orchestrator, nil
}
