package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"twdl/pkg/auth"
	"twdl/pkg/config"
	"twdl/pkg/logger"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile  string
	logLevel    string
	debugMode   bool
	accountName string
)

// rootCmd represents the base command. Called without a subcommand it
// runs the likes download, which is the primary operation.
var rootCmd = &cobra.Command{
	Use:   "twdl",
	Short: "Download media from your liked tweets",
	Long: `twdl downloads the photos, videos and GIFs attached to your liked tweets.

Features:
  - Secure credential storage using system keychain
  - Persisted blacklist so processed tweets are never fetched twice
  - Smart rate limiting that honors the API's reset window
  - Highest-quality variant selection for videos and photos
  - Optional per-author subdirectories for prolific authors
  - Optional PhotoPrism label and album management`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLikes(cmd, args)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is $HOME/.twdl.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "set logging to debug level")
	rootCmd.PersistentFlags().StringVarP(&accountName, "account", "a", "", "use specific stored account")

	// The bare command runs the likes download, so it carries the same flags
	rootCmd.Flags().StringVarP(&outputDir, "output", "o", "", "download directory")
	rootCmd.Flags().BoolVar(&organize, "organize", false, "group media into per-author subdirectories")
	rootCmd.Flags().BoolVar(&disableBlacklist, "disable-blacklist", false, "skip blacklist filtering (outcomes are still recorded)")
	rootCmd.Flags().IntVar(&likedCount, "count", 200, "number of liked tweets to fetch (max 200)")

	rootCmd.SetVersionTemplate(`twdl {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// loadConfig assembles the effective configuration from defaults, file,
// environment and flags, then initializes the global logger.
func loadConfig() (*config.Config, error) {
	if debugMode {
		logLevel = "debug"
	}

	flags := make(map[string]interface{})
	if outputDir != "" {
		flags["output"] = outputDir
	}
	if logLevel != "info" {
		flags["log-level"] = logLevel
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, err
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolveCredentials fills in missing API tokens from the credential
// store. Config file and environment values win when present.
func resolveCredentials(cfg *config.Config) error {
	if cfg.ValidateCredentials() == nil {
		return nil
	}

	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	var account *auth.Account
	if accountName != "" {
		account, err = manager.Retrieve(accountName)
		if err != nil {
			return fmt.Errorf("account %q not found, use 'twdl auth list' to see stored accounts", accountName)
		}
	} else {
		account, err = manager.RetrieveDefault()
		if err != nil {
			return fmt.Errorf("no API credentials found, run 'twdl auth login' to store them")
		}
	}

	cfg.Twitter.ConsumerKey = account.ConsumerKey
	cfg.Twitter.ConsumerSecret = account.ConsumerSecret
	cfg.Twitter.AccessToken = account.AccessToken
	cfg.Twitter.AccessTokenSecret = account.AccessTokenSecret
	logger.WithField("account", account.Name).Info("Using stored credentials")

	return cfg.ValidateCredentials()
}
