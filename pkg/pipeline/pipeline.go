package pipeline

import (
	"context"
	"errors"

	"twdl/pkg/blacklist"
	"twdl/pkg/downloader"
	errs "twdl/pkg/errors"
	"twdl/pkg/logger"
	"twdl/pkg/twitter"
)

const (
	reasonDownloaded  = "downloaded"
	reasonNoMedia     = "no media"
	reasonUnavailable = "unavailable"
)

// Options controls a single pipeline run.
type Options struct {
	// Count is the number of liked tweets requested from the listing
	// endpoint. Values above the service cap are clamped by the client.
	Count int

	// DisableBlacklist skips the filtering step. Outcomes are still
	// recorded so a later filtered run benefits from this one.
	DisableBlacklist bool
}

// Summary reports what a run accomplished.
type Summary struct {
	Fetched         int // liked tweets returned by the listing call
	Filtered        int // tweets excluded by the blacklist
	TweetsWithMedia int // looked-up tweets that contained usable media
	Downloaded      int // media items written to disk
	Skipped         int // media items already present on disk
	Failed          int // media items that could not be fetched
	Blacklisted     int // tweet IDs newly added to the blacklist
}

// Pipeline wires the API client, blacklist store and downloader into the
// end-to-end flow: list likes, filter, look up details in batches, extract
// media, download, record outcomes.
type Pipeline struct {
	client TwitterClient
	store  blacklist.Store
	dl     MediaDownloader
	logger logger.Logger
}

func New(client TwitterClient, store blacklist.Store, dl MediaDownloader, log logger.Logger) *Pipeline {
	return &Pipeline{
		client: client,
		store:  store,
		dl:     dl,
		logger: log,
	}
}

// Run executes the full liked-posts flow. Per-item download failures are
// counted in the summary and do not fail the run; the returned error is
// non-nil only for fatal conditions such as authentication failures or
// local storage errors.
func (p *Pipeline) Run(ctx context.Context, opts Options) (Summary, error) {
	var sum Summary

	liked, err := p.client.ListLiked(ctx, opts.Count)
	if err != nil {
		return sum, err
	}
	sum.Fetched = len(liked)

	// A full listing window is the source of truth for pruning: any
	// blacklisted ID no longer in the window can never match again.
	live := make(map[string]struct{}, len(liked))
	for _, st := range liked {
		live[st.IDStr] = struct{}{}
	}

	var candidates []string
	for _, st := range liked {
		if !opts.DisableBlacklist && p.store.Contains(st.IDStr) {
			sum.Filtered++
			continue
		}
		candidates = append(candidates, st.IDStr)
	}

	p.logger.InfoWithFields("processing liked tweets", map[string]interface{}{
		"fetched":  sum.Fetched,
		"filtered": sum.Filtered,
		"to_check": len(candidates),
	})

	for start := 0; start < len(candidates); start += twitter.MaxLookupBatch {
		end := start + twitter.MaxLookupBatch
		if end > len(candidates) {
			end = len(candidates)
		}
		batch := candidates[start:end]

		found, err := p.client.Lookup(ctx, batch)
		if err != nil {
			if isFatal(err) {
				p.saveStore()
				return sum, err
			}
			p.logger.ErrorWithFields("lookup batch failed, skipping", map[string]interface{}{
				"batch_size": len(batch),
				"error":      err.Error(),
			})
			continue
		}

		for _, id := range batch {
			st, ok := found[id]
			if !ok {
				// Deleted, protected or suspended. It will never
				// become fetchable, so stop retrying it.
				p.logger.WarnWithFields("tweet unavailable", map[string]interface{}{
					"tweet_id": id,
				})
				p.addToBlacklist(&sum, id, reasonUnavailable)
				continue
			}
			if err := p.processTweet(ctx, &sum, &st); err != nil {
				p.saveStore()
				return sum, err
			}
		}

		// Persist after every batch so an interrupted run keeps its
		// progress.
		p.saveStore()
	}

	// Pruning is only safe when the listing covered the full likes
	// window; a count-limited run would evict entries for tweets that
	// are still liked but fell outside the requested slice.
	if fullWindow(opts.Count) {
		pruned := p.prune(live)
		if pruned > 0 {
			p.logger.InfoWithFields("pruned blacklist", map[string]interface{}{
				"removed": pruned,
			})
		}
	}
	p.saveStore()

	p.logger.InfoWithFields("run complete", map[string]interface{}{
		"fetched":     sum.Fetched,
		"filtered":    sum.Filtered,
		"with_media":  sum.TweetsWithMedia,
		"downloaded":  sum.Downloaded,
		"skipped":     sum.Skipped,
		"failed":      sum.Failed,
		"blacklisted": sum.Blacklisted,
	})
	return sum, nil
}

// RunSingle downloads the media of one tweet by ID. The blacklist is
// neither consulted nor updated.
func (p *Pipeline) RunSingle(ctx context.Context, id string) (Summary, error) {
	var sum Summary

	found, err := p.client.Lookup(ctx, []string{id})
	if err != nil {
		return sum, err
	}
	st, ok := found[id]
	if !ok {
		return sum, errs.New(errs.ErrorTypeNotFound, 404,
			"tweet %s is deleted, protected or suspended", id)
	}
	sum.Fetched = 1

	items := twitter.ExtractMedia(&st)
	if len(items) == 0 {
		return sum, nil
	}
	sum.TweetsWithMedia = 1

	for i, item := range items {
		outcome, err := p.dl.Download(ctx, item, &st, i+1)
		p.record(&sum, &st, item, outcome, err)
		if err != nil && isFatal(err) {
			return sum, err
		}
	}
	return sum, nil
}

// processTweet extracts and downloads one tweet's media and records the
// terminal outcome in the blacklist. A returned error aborts the run.
func (p *Pipeline) processTweet(ctx context.Context, sum *Summary, st *twitter.Status) error {
	items := twitter.ExtractMedia(st)
	if len(items) == 0 {
		p.addToBlacklist(sum, st.IDStr, reasonNoMedia)
		return nil
	}
	sum.TweetsWithMedia++

	for i, item := range items {
		outcome, err := p.dl.Download(ctx, item, st, i+1)
		p.record(sum, st, item, outcome, err)
		if err != nil && isFatal(err) {
			return err
		}
	}

	// Every item reached a terminal state, so the tweet never needs to
	// be inspected again. Failed items were reported above.
	p.addToBlacklist(sum, st.IDStr, reasonDownloaded)
	return nil
}

func (p *Pipeline) record(sum *Summary, st *twitter.Status, item twitter.MediaItem, outcome downloader.Outcome, err error) {
	logger.LogDownload(st.User.ScreenName, st.IDStr, string(item.Kind), outcome == downloader.OutcomeDownloaded, err)
	switch outcome {
	case downloader.OutcomeDownloaded:
		sum.Downloaded++
	case downloader.OutcomeSkippedExists:
		sum.Skipped++
	default:
		sum.Failed++
	}
}

func (p *Pipeline) addToBlacklist(sum *Summary, id, reason string) {
	if p.store.Contains(id) {
		return
	}
	p.store.Add(id, reason)
	sum.Blacklisted++
}

// fullWindow reports whether a requested count covers the entire likes
// window. The client clamps zero and oversized counts to the service cap.
func fullWindow(count int) bool {
	return count <= 0 || count >= twitter.MaxLikedCount
}

// prune removes blacklist entries whose IDs fell out of the likes window.
func (p *Pipeline) prune(live map[string]struct{}) int {
	removed := 0
	for _, id := range p.store.IDs() {
		if _, ok := live[id]; !ok {
			p.store.Remove(id)
			removed++
		}
	}
	return removed
}

func (p *Pipeline) saveStore() {
	if s, ok := p.store.(persistentStore); ok {
		if err := s.Save(); err != nil {
			p.logger.ErrorWithFields("failed to save blacklist", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
}

func isFatal(err error) bool {
	var apiErr *errs.Error
	if errors.As(err, &apiErr) {
		return errs.IsFatal(apiErr.Type)
	}
	return false
}
