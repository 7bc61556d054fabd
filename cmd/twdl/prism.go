package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"twdl/pkg/logger"
	"twdl/pkg/photoprism"
)

var (
	// Prism command flags
	prismTag          bool
	prismUpdateRecent bool
)

// prismCmd represents the prism command
var prismCmd = &cobra.Command{
	Use:   "prism",
	Short: "Manage media indexed by PhotoPrism",
	Long: `Manage downloaded media in a PhotoPrism database.

--tag applies the labels from the tag map file to each author's media.
Media already carrying the '` + photoprism.TaggerLabelSlug + `' label is
skipped, so manual corrections are never overwritten.

--update-recent replaces the contents of the recent album with every
photo indexed within the configured window.

Both the album and the tagger label must be created in PhotoPrism
manually before the first run.`,
	Example: `  # Apply labels from the tag map
  twdl prism --tag

  # Refresh the recent album
  twdl prism --update-recent

  # Both in one pass
  twdl prism --tag --update-recent`,
	Args: cobra.NoArgs,
	RunE: runPrism,
}

func init() {
	rootCmd.AddCommand(prismCmd)

	prismCmd.Flags().BoolVar(&prismTag, "tag", false, "create and manage media labels")
	prismCmd.Flags().BoolVar(&prismUpdateRecent, "update-recent", false, "update the recent media album")
}

func runPrism(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load configuration:", err)
		os.Exit(1)
	}

	log := logger.GetLogger()

	if !prismTag && !prismUpdateRecent {
		log.Warn("No operation selected, exiting without taking any action")
		return nil
	}

	if cfg.PhotoPrism.DatabasePath == "" {
		log.Error("PhotoPrism database path is not configured")
		os.Exit(1)
	}

	db, err := photoprism.Open(cfg.PhotoPrism.DatabasePath, log)
	if err != nil {
		log.WithError(err).Error("Failed to open PhotoPrism database")
		os.Exit(1)
	}
	defer db.Close()

	if prismTag {
		tm, err := photoprism.LoadTagMap(cfg.Download.TagsFile)
		if err != nil {
			log.WithError(err).Error("Failed to load tag map")
			os.Exit(1)
		}
		if err := db.LabelKnownAuthors(tm); err != nil {
			log.WithError(err).Error("Tagging failed")
			os.Exit(1)
		}
	}

	if prismUpdateRecent {
		window := time.Duration(cfg.PhotoPrism.RecentMediaHours) * time.Hour
		count, err := db.UpdateRecentAlbum(cfg.PhotoPrism.RecentAlbum, window)
		if err != nil {
			log.WithError(err).Error("Album update failed")
			os.Exit(1)
		}
		fmt.Printf("Album %q now holds %d recent photos\n", cfg.PhotoPrism.RecentAlbum, count)
	}

	return nil
}
