// Package downloader fetches media URLs to local storage with idempotent
// skip-if-exists semantics and optional per-author subdirectory grouping.
package downloader

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"twdl/pkg/config"
	"twdl/pkg/errors"
	"twdl/pkg/logger"
	"twdl/pkg/retry"
	"twdl/pkg/twitter"
)

// Outcome is the terminal state of a single download attempt
type Outcome int

const (
	OutcomeDownloaded Outcome = iota
	OutcomeSkippedExists
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDownloaded:
		return "downloaded"
	case OutcomeSkippedExists:
		return "skipped_exists"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Downloader writes media files under a download directory. When organize
// mode is on, an author whose flat-directory file count has reached the
// threshold gets a per-author subdirectory for all subsequent files.
// Files already in the flat directory are never moved; only the placement
// of new files changes.
type Downloader struct {
	httpClient *http.Client
	dir        string
	organize   bool
	threshold  int
	maxRetries int
	logger     logger.Logger

	// flatCounts tracks per-author files in the flat directory, seeded by
	// scanning the directory at construction time
	flatCounts map[string]int

	sleep retry.SleepFunc
}

// New creates a Downloader rooted at the configured download directory,
// creating it if needed
func New(cfg *config.Config, organize bool, log logger.Logger) (*Downloader, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	dir := cfg.Download.Directory
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.New(errors.ErrorTypeLocalIO, 0,
			"failed to create download directory %s: %v", dir, err)
	}

	d := &Downloader{
		httpClient: &http.Client{Timeout: cfg.Download.Timeout},
		dir:        dir,
		organize:   organize,
		threshold:  cfg.Download.CreateDirAfterFiles,
		maxRetries: cfg.Download.MaxRetries,
		logger:     log,
		flatCounts: make(map[string]int),
		sleep:      retry.Wait,
	}

	if err := d.scanFlatDirectory(); err != nil {
		return nil, err
	}

	return d, nil
}

// scanFlatDirectory counts existing files per author in the flat directory
func (d *Downloader) scanFlatDirectory() error {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return errors.New(errors.ErrorTypeLocalIO, 0, "failed to scan download directory: %v", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := ParseFilename(entry.Name())
		if err != nil {
			// Not one of ours
			continue
		}
		d.flatCounts[info.Handle]++
	}

	d.logger.DebugWithFields("scanned download directory", map[string]interface{}{
		"dir":     d.dir,
		"authors": len(d.flatCounts),
	})
	return nil
}

// Download fetches the index-th media item of a tweet to disk. An existing
// non-empty target file short-circuits to OutcomeSkippedExists without
// touching the network. The returned error is non-nil only for
// OutcomeFailed, and only local I/O failures are fatal to the caller.
func (d *Downloader) Download(ctx context.Context, item twitter.MediaItem, tweet *twitter.Status, index int) (Outcome, error) {
	handle := tweet.User.ScreenName
	ext := twitter.ExtensionFromURL(item.URL)
	if ext == "" {
		ext = "bin"
	}
	filename := BuildFilename(handle, tweet.CreatedTime(), tweet.IDStr, index, ext)

	flatPath := filepath.Join(d.dir, filename)
	subPath := filepath.Join(d.dir, handle, filename)

	if fileOnDisk(subPath) || fileOnDisk(flatPath) {
		d.logger.DebugWithFields("file already on disk", map[string]interface{}{
			"filename": filename,
		})
		return OutcomeSkippedExists, nil
	}

	dest := flatPath
	if d.organize && d.flatCounts[handle] >= d.threshold-1 {
		if err := os.MkdirAll(filepath.Dir(subPath), 0755); err != nil {
			return OutcomeFailed, errors.New(errors.ErrorTypeLocalIO, 0,
				"failed to create author directory: %v", err)
		}
		dest = subPath
	}

	d.logger.InfoWithFields("downloading", map[string]interface{}{
		"filename": filename,
		"url":      item.URL,
		"kind":     string(item.Kind),
	})

	data, err := d.fetch(ctx, item.URL)
	if err != nil {
		return OutcomeFailed, err
	}

	if err := writeAtomic(dest, data); err != nil {
		return OutcomeFailed, err
	}

	if dest == flatPath {
		d.flatCounts[handle]++
	}

	d.logger.DebugWithFields("written to disk", map[string]interface{}{
		"path": dest,
		"size": len(data),
	})
	return OutcomeDownloaded, nil
}

// fetch GETs a URL with bounded retry for transient failures
func (d *Downloader) fetch(ctx context.Context, url string) ([]byte, error) {
	return retry.DoWithResult(func() ([]byte, error) {
		return d.fetchOnce(ctx, url)
	}, &retry.Config{
		MaxAttempts: d.maxRetries,
		Backoff:     &retry.ConstantBackoff{Delay: 3 * time.Second},
		RetryIf:     retry.DefaultRetryIf,
		Context:     ctx,
		Sleep:       d.sleep,
		Logger:      d.logger,
	})
}

func (d *Downloader) fetchOnce(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.New(errors.ErrorTypeUnknown, 0, "failed to create request: %v", err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, errors.New(errors.ErrorTypeNetwork, 0, "failed to GET %q: %v", url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, errors.New(errors.ErrorTypeNotFound, resp.StatusCode, "media gone: %q", url)
	case resp.StatusCode >= 500:
		return nil, errors.New(errors.ErrorTypeServerError, resp.StatusCode,
			"server error fetching %q", url)
	default:
		return nil, errors.New(errors.ErrorTypeUnknown, resp.StatusCode,
			"unexpected status %d fetching %q", resp.StatusCode, url)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.New(errors.ErrorTypeNetwork, resp.StatusCode,
			"failed to read body of %q: %v", url, err)
	}
	return data, nil
}

// writeAtomic writes content to a temporary file and renames it into place
func writeAtomic(path string, data []byte) error {
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return errors.New(errors.ErrorTypeLocalIO, 0, "failed to write %s: %v", tempPath, err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return errors.New(errors.ErrorTypeLocalIO, 0, "failed to rename %s: %v", tempPath, err)
	}
	return nil
}

// fileOnDisk reports whether the file exists with a non-zero size.
// Zero-byte files are leftovers of failed downloads and get overwritten.
func fileOnDisk(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	if info.Size() == 0 {
		logger.GetLogger().WarnWithFields("file on disk has size 0, downloading again", map[string]interface{}{
			"path": path,
		})
		return false
	}
	return true
}

// Dir returns the download directory path
func (d *Downloader) Dir() string {
	return d.dir
}

// FlatCount returns the number of files counted for an author in the
// flat directory
func (d *Downloader) FlatCount(handle string) int {
	return d.flatCounts[handle]
}
