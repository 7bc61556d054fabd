package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"twdl/pkg/blacklist"
	"twdl/pkg/downloader"
	"twdl/pkg/logger"
	"twdl/pkg/pipeline"
	"twdl/pkg/twitter"
)

var (
	// Likes command flags
	outputDir        string
	organize         bool
	disableBlacklist bool
	likedCount       int
)

// likesCmd represents the likes command
var likesCmd = &cobra.Command{
	Use:   "likes",
	Short: "Download media from your recent liked tweets",
	Long: `Download the media attached to your recent liked tweets.

Tweets already processed are tracked in the blacklist file and skipped on
later runs. Files already on disk are never fetched again. Per-item
download failures are reported but do not fail the run.`,
	Example: `  # Download recent likes with default settings
  twdl likes

  # Group media into per-author subdirectories
  twdl likes --organize

  # Reprocess everything, relying only on the on-disk files to skip
  twdl likes --disable-blacklist`,
	Args: cobra.NoArgs,
	RunE: runLikes,
}

func init() {
	rootCmd.AddCommand(likesCmd)

	likesCmd.Flags().StringVarP(&outputDir, "output", "o", "", "download directory")
	likesCmd.Flags().BoolVar(&organize, "organize", false, "group media into per-author subdirectories")
	likesCmd.Flags().BoolVar(&disableBlacklist, "disable-blacklist", false, "skip blacklist filtering (outcomes are still recorded)")
	likesCmd.Flags().IntVar(&likedCount, "count", 200, "number of liked tweets to fetch (max 200)")
}

func runLikes(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load configuration:", err)
		os.Exit(1)
	}

	if err := resolveCredentials(cfg); err != nil {
		logger.WithError(err).Error("Credential setup failed")
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := logger.GetLogger()
	log.WithField("version", version).Info("Starting liked tweets download")

	store := blacklist.NewFileStore(cfg.Download.BlacklistFile, log)
	if err := store.Load(); err != nil {
		log.WithError(err).Error("Failed to load blacklist")
		os.Exit(1)
	}

	dl, err := downloader.New(cfg, organize, log)
	if err != nil {
		log.WithError(err).Error("Failed to prepare download directory")
		os.Exit(1)
	}

	client := twitter.NewClient(cfg, log)
	p := pipeline.New(client, store, dl, log)

	summary, err := p.Run(context.Background(), pipeline.Options{
		Count:            likedCount,
		DisableBlacklist: disableBlacklist,
	})
	if err != nil {
		log.WithError(err).Error("Run aborted")
		os.Exit(1)
	}

	printSummary(summary)
	return nil
}

func printSummary(s pipeline.Summary) {
	fmt.Println()
	fmt.Println("Run summary:")
	fmt.Printf("  Liked tweets fetched:  %d\n", s.Fetched)
	fmt.Printf("  Filtered by blacklist: %d\n", s.Filtered)
	fmt.Printf("  Tweets with media:     %d\n", s.TweetsWithMedia)
	fmt.Printf("  Downloaded:            %d\n", s.Downloaded)
	fmt.Printf("  Already on disk:       %d\n", s.Skipped)
	fmt.Printf("  Failed:                %d\n", s.Failed)
	fmt.Printf("  Newly blacklisted:     %d\n", s.Blacklisted)
}
