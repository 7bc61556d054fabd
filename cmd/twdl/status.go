package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"twdl/pkg/blacklist"
	"twdl/pkg/downloader"
	"twdl/pkg/logger"
	"twdl/pkg/pipeline"
	"twdl/pkg/twitter"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status <tweet-id>",
	Short: "Download the media of a single tweet",
	Long: `Download the media attached to one tweet by its numeric ID.

The liked-posts listing and the blacklist are bypassed entirely: the
tweet does not need to be liked and a previously processed tweet is
looked up again. Files already on disk are still skipped.`,
	Example: `  # Download one tweet's media
  twdl status 1234567890123456789

  # Into per-author subdirectories
  twdl status 1234567890123456789 --organize`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVarP(&outputDir, "output", "o", "", "download directory")
	statusCmd.Flags().BoolVar(&organize, "organize", false, "group media into per-author subdirectories")
}

func runStatus(cmd *cobra.Command, args []string) error {
	tweetID := strings.TrimSpace(args[0])

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load configuration:", err)
		os.Exit(1)
	}

	if err := resolveCredentials(cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := logger.GetLogger()
	log.WithField("tweet_id", tweetID).Info("Downloading single tweet")

	dl, err := downloader.New(cfg, organize, log)
	if err != nil {
		log.WithError(err).Error("Failed to prepare download directory")
		os.Exit(1)
	}

	client := twitter.NewClient(cfg, log)
	p := pipeline.New(client, blacklist.NewMemoryStore(), dl, log)

	summary, err := p.RunSingle(context.Background(), tweetID)
	if err != nil {
		log.WithError(err).WithField("tweet_id", tweetID).Error("Download failed")
		os.Exit(1)
	}

	if summary.TweetsWithMedia == 0 {
		fmt.Println("Tweet has no downloadable media")
		return nil
	}
	fmt.Printf("Downloaded %d, already on disk %d, failed %d\n",
		summary.Downloaded, summary.Skipped, summary.Failed)
	return nil
}
