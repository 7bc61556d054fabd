package pipeline

import (
	"context"

	"twdl/pkg/downloader"
	"twdl/pkg/twitter"
)

// TwitterClient is the remote API surface the pipeline depends on.
// Satisfied by twitter.Client; tests substitute fakes.
type TwitterClient interface {
	// ListLiked returns the authenticating user's recent liked tweets,
	// newest first, capped by the service at 200
	ListLiked(ctx context.Context, count int) ([]twitter.Status, error)

	// Lookup resolves a batch of tweet IDs; inaccessible tweets are
	// absent from the result
	Lookup(ctx context.Context, ids []string) (map[string]twitter.Status, error)
}

// MediaDownloader fetches a single media item to local storage.
// Satisfied by downloader.Downloader.
type MediaDownloader interface {
	Download(ctx context.Context, item twitter.MediaItem, tweet *twitter.Status, index int) (downloader.Outcome, error)
}

// persistentStore is implemented by blacklist stores that persist to disk
type persistentStore interface {
	Save() error
}
