package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"twdl/pkg/blacklist"
	"twdl/pkg/downloader"
	errs "twdl/pkg/errors"
	"twdl/pkg/logger"
	"twdl/pkg/twitter"
)

// fakeClient scripts the two API calls the pipeline performs.
type fakeClient struct {
	liked   []twitter.Status
	listErr error

	// lookup answers come from here; missing IDs stay absent from the
	// returned map just like the real endpoint behaves
	tweets    map[string]twitter.Status
	lookupErr error
	batches   [][]string
}

func (f *fakeClient) ListLiked(ctx context.Context, count int) ([]twitter.Status, error) {
	return f.liked, f.listErr
}

func (f *fakeClient) Lookup(ctx context.Context, ids []string) (map[string]twitter.Status, error) {
	f.batches = append(f.batches, ids)
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	found := make(map[string]twitter.Status)
	for _, id := range ids {
		if st, ok := f.tweets[id]; ok {
			found[id] = st
		}
	}
	return found, nil
}

// fakeDownloader records download calls and returns a scripted outcome.
type fakeDownloader struct {
	urls    []string
	outcome downloader.Outcome
	err     error
}

func (f *fakeDownloader) Download(ctx context.Context, item twitter.MediaItem, tweet *twitter.Status, index int) (downloader.Outcome, error) {
	f.urls = append(f.urls, item.URL)
	return f.outcome, f.err
}

// recordingStore wraps the in-memory store so tests can inspect reasons
// and count persistence calls.
type recordingStore struct {
	*blacklist.MemoryStore
	reasons map[string]string
	saves   int
}

func newRecordingStore() *recordingStore {
	return &recordingStore{
		MemoryStore: blacklist.NewMemoryStore(),
		reasons:     make(map[string]string),
	}
}

func (r *recordingStore) Add(id, reason string) {
	r.reasons[id] = reason
	r.MemoryStore.Add(id, reason)
}

func (r *recordingStore) Save() error {
	r.saves++
	return nil
}

func mediaStatus(handle, id string) twitter.Status {
	return twitter.Status{
		IDStr:     id,
		CreatedAt: "Tue Aug 09 13:37:00 +0000 2022",
		User:      twitter.User{IDStr: "u-" + handle, ScreenName: handle},
		ExtendedEntities: &twitter.ExtendedEntities{
			Media: []twitter.MediaEntity{
				{
					IDStr:         "m-" + id,
					Type:          "photo",
					MediaURLHTTPS: "https://pbs.example.com/media/" + id + ".jpg",
				},
			},
		},
	}
}

func textStatus(handle, id string) twitter.Status {
	return twitter.Status{
		IDStr:     id,
		CreatedAt: "Tue Aug 09 13:37:00 +0000 2022",
		FullText:  "just words",
		User:      twitter.User{IDStr: "u-" + handle, ScreenName: handle},
	}
}

func newTestPipeline(client *fakeClient, store blacklist.Store, dl *fakeDownloader) *Pipeline {
	return New(client, store, dl, logger.NewTestLogger())
}

func TestRunDownloadsAndRecords(t *testing.T) {
	a := mediaStatus("artist", "1")
	b := mediaStatus("other", "2")
	client := &fakeClient{
		liked:  []twitter.Status{a, b},
		tweets: map[string]twitter.Status{"1": a, "2": b},
	}
	store := newRecordingStore()
	dl := &fakeDownloader{outcome: downloader.OutcomeDownloaded}

	sum, err := newTestPipeline(client, store, dl).Run(context.Background(), Options{Count: 200})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if sum.Fetched != 2 || sum.TweetsWithMedia != 2 || sum.Downloaded != 2 {
		t.Errorf("Unexpected summary: %+v", sum)
	}
	if sum.Blacklisted != 2 {
		t.Errorf("Expected 2 new blacklist entries, got %d", sum.Blacklisted)
	}
	for _, id := range []string{"1", "2"} {
		if store.reasons[id] != "downloaded" {
			t.Errorf("Tweet %s: expected reason downloaded, got %q", id, store.reasons[id])
		}
	}
	if len(dl.urls) != 2 {
		t.Errorf("Expected 2 downloads, got %v", dl.urls)
	}
}

func TestRunFiltersBlacklistedTweets(t *testing.T) {
	a := mediaStatus("artist", "1")
	b := mediaStatus("artist", "2")
	client := &fakeClient{
		liked:  []twitter.Status{a, b},
		tweets: map[string]twitter.Status{"1": a, "2": b},
	}
	store := newRecordingStore()
	store.Add("1", "downloaded")
	dl := &fakeDownloader{outcome: downloader.OutcomeDownloaded}

	sum, err := newTestPipeline(client, store, dl).Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if sum.Filtered != 1 {
		t.Errorf("Expected 1 filtered, got %d", sum.Filtered)
	}
	for _, batch := range client.batches {
		for _, id := range batch {
			if id == "1" {
				t.Error("Blacklisted tweet must not be looked up")
			}
		}
	}
	if sum.Downloaded != 1 {
		t.Errorf("Expected 1 download, got %d", sum.Downloaded)
	}
}

func TestRunDisableBlacklistStillRecordsOutcomes(t *testing.T) {
	a := mediaStatus("artist", "1")
	client := &fakeClient{
		liked:  []twitter.Status{a},
		tweets: map[string]twitter.Status{"1": a},
	}
	store := newRecordingStore()
	store.Add("1", "downloaded")
	dl := &fakeDownloader{outcome: downloader.OutcomeSkippedExists}

	sum, err := newTestPipeline(client, store, dl).Run(context.Background(), Options{DisableBlacklist: true})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if sum.Filtered != 0 {
		t.Errorf("Filtering must be off, got %d filtered", sum.Filtered)
	}
	if len(dl.urls) != 1 {
		t.Errorf("Expected the tweet to be processed, got %v", dl.urls)
	}
	if sum.Skipped != 1 {
		t.Errorf("Expected 1 skipped, got %d", sum.Skipped)
	}
	// The existing entry is kept, not duplicated
	if store.Len() != 1 {
		t.Errorf("Expected 1 blacklist entry, got %d", store.Len())
	}
}

func TestRunBlacklistsTweetsWithoutMedia(t *testing.T) {
	a := textStatus("writer", "1")
	client := &fakeClient{
		liked:  []twitter.Status{a},
		tweets: map[string]twitter.Status{"1": a},
	}
	store := newRecordingStore()
	dl := &fakeDownloader{outcome: downloader.OutcomeDownloaded}

	sum, err := newTestPipeline(client, store, dl).Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if store.reasons["1"] != "no media" {
		t.Errorf("Expected reason no media, got %q", store.reasons["1"])
	}
	if sum.TweetsWithMedia != 0 || sum.Downloaded != 0 {
		t.Errorf("Unexpected summary: %+v", sum)
	}
	if len(dl.urls) != 0 {
		t.Errorf("Nothing should be downloaded, got %v", dl.urls)
	}
}

func TestRunBlacklistsUnavailableTweets(t *testing.T) {
	a := mediaStatus("artist", "1")
	client := &fakeClient{
		liked:  []twitter.Status{a},
		tweets: map[string]twitter.Status{}, // lookup returns nothing
	}
	store := newRecordingStore()
	dl := &fakeDownloader{outcome: downloader.OutcomeDownloaded}

	sum, err := newTestPipeline(client, store, dl).Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if store.reasons["1"] != "unavailable" {
		t.Errorf("Expected reason unavailable, got %q", store.reasons["1"])
	}
	if sum.Blacklisted != 1 {
		t.Errorf("Expected 1 blacklisted, got %d", sum.Blacklisted)
	}
}

func TestRunSplitsLookupsIntoBatches(t *testing.T) {
	var liked []twitter.Status
	tweets := make(map[string]twitter.Status)
	for i := 0; i < twitter.MaxLookupBatch+50; i++ {
		st := mediaStatus("bulk", fmt.Sprintf("%d", i))
		liked = append(liked, st)
		tweets[st.IDStr] = st
	}
	client := &fakeClient{liked: liked, tweets: tweets}
	dl := &fakeDownloader{outcome: downloader.OutcomeDownloaded}

	_, err := newTestPipeline(client, newRecordingStore(), dl).Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(client.batches) != 2 {
		t.Fatalf("Expected 2 lookup batches, got %d", len(client.batches))
	}
	if len(client.batches[0]) != twitter.MaxLookupBatch {
		t.Errorf("Expected first batch of %d, got %d", twitter.MaxLookupBatch, len(client.batches[0]))
	}
	if len(client.batches[1]) != 50 {
		t.Errorf("Expected second batch of 50, got %d", len(client.batches[1]))
	}
}

func TestRunSkipsBatchOnTransientLookupError(t *testing.T) {
	a := mediaStatus("artist", "1")
	client := &fakeClient{
		liked:     []twitter.Status{a},
		lookupErr: errs.New(errs.ErrorTypeServerError, 503, "over capacity"),
	}
	store := newRecordingStore()
	dl := &fakeDownloader{outcome: downloader.OutcomeDownloaded}

	sum, err := newTestPipeline(client, store, dl).Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Transient lookup errors must not fail the run: %v", err)
	}
	if sum.Downloaded != 0 || sum.Blacklisted != 0 {
		t.Errorf("Skipped batch must not change outcomes: %+v", sum)
	}
	if store.Contains("1") {
		t.Error("Tweet from a failed batch must stay retryable")
	}
}

func TestRunAbortsOnFatalLookupError(t *testing.T) {
	a := mediaStatus("artist", "1")
	client := &fakeClient{
		liked:     []twitter.Status{a},
		lookupErr: errs.New(errs.ErrorTypeAuth, 401, "invalid or expired token"),
	}
	store := newRecordingStore()
	dl := &fakeDownloader{outcome: downloader.OutcomeDownloaded}

	_, err := newTestPipeline(client, store, dl).Run(context.Background(), Options{})
	if err == nil {
		t.Fatal("Expected fatal error to abort the run")
	}
	var apiErr *errs.Error
	if !errors.As(err, &apiErr) || apiErr.Type != errs.ErrorTypeAuth {
		t.Errorf("Expected auth error, got %v", err)
	}
	if store.saves == 0 {
		t.Error("State must be persisted before aborting")
	}
}

func TestRunAbortsOnFatalDownloadError(t *testing.T) {
	a := mediaStatus("artist", "1")
	client := &fakeClient{
		liked:  []twitter.Status{a},
		tweets: map[string]twitter.Status{"1": a},
	}
	store := newRecordingStore()
	dl := &fakeDownloader{
		outcome: downloader.OutcomeFailed,
		err:     errs.New(errs.ErrorTypeLocalIO, 0, "disk full"),
	}

	_, err := newTestPipeline(client, store, dl).Run(context.Background(), Options{})
	if err == nil {
		t.Fatal("Expected local I/O error to abort the run")
	}
	if store.Contains("1") {
		t.Error("Tweet with an aborted download must not be blacklisted")
	}
}

func TestRunFailedItemStillSettlesTweet(t *testing.T) {
	a := mediaStatus("artist", "1")
	client := &fakeClient{
		liked:  []twitter.Status{a},
		tweets: map[string]twitter.Status{"1": a},
	}
	store := newRecordingStore()
	dl := &fakeDownloader{
		outcome: downloader.OutcomeFailed,
		err:     errs.New(errs.ErrorTypeNotFound, 404, "media gone"),
	}

	sum, err := newTestPipeline(client, store, dl).Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Non-fatal item failure must not fail the run: %v", err)
	}
	if sum.Failed != 1 {
		t.Errorf("Expected 1 failed item, got %d", sum.Failed)
	}
	if store.reasons["1"] != "downloaded" {
		t.Errorf("Tweet reached a terminal state, expected blacklisting, got %q", store.reasons["1"])
	}
}

func TestRunPrunesStaleBlacklistEntries(t *testing.T) {
	a := mediaStatus("artist", "1")
	client := &fakeClient{
		liked:  []twitter.Status{a},
		tweets: map[string]twitter.Status{"1": a},
	}
	store := newRecordingStore()
	store.Add("999", "downloaded") // fell out of the likes window
	dl := &fakeDownloader{outcome: downloader.OutcomeDownloaded}

	_, err := newTestPipeline(client, store, dl).Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if store.Contains("999") {
		t.Error("Entry outside the likes window must be pruned")
	}
	if !store.Contains("1") {
		t.Error("Live entry must survive pruning")
	}
}

func TestRunCountLimitedDoesNotPrune(t *testing.T) {
	a := mediaStatus("artist", "1")
	client := &fakeClient{
		liked:  []twitter.Status{a},
		tweets: map[string]twitter.Status{"1": a},
	}
	store := newRecordingStore()
	// Still liked, just outside the requested slice of the window.
	store.Add("2", "downloaded")
	dl := &fakeDownloader{outcome: downloader.OutcomeDownloaded}

	_, err := newTestPipeline(client, store, dl).Run(context.Background(), Options{Count: 1})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if !store.Contains("2") {
		t.Error("Entry for a still-liked tweet must survive a count-limited run")
	}
}

func TestRunSkipLoggedAsSkip(t *testing.T) {
	a := mediaStatus("artist", "1")
	client := &fakeClient{
		liked:  []twitter.Status{a},
		tweets: map[string]twitter.Status{"1": a},
	}
	store := newRecordingStore()
	dl := &fakeDownloader{outcome: downloader.OutcomeSkippedExists}

	prev := logger.GetLogger()
	global := logger.NewTestLogger()
	logger.SetLogger(global)
	t.Cleanup(func() { logger.SetLogger(prev) })

	_, err := newTestPipeline(client, store, dl).Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if !global.HasMessage("Download skipped") {
		t.Errorf("Expected an already-on-disk item to log as skipped, got: %s", global.String())
	}
	if global.HasMessage("Download completed") {
		t.Error("Skipped item must not log as completed")
	}
}

func TestRunPersistsAfterEveryBatch(t *testing.T) {
	var liked []twitter.Status
	tweets := make(map[string]twitter.Status)
	for i := 0; i < twitter.MaxLookupBatch+1; i++ {
		st := mediaStatus("bulk", fmt.Sprintf("%d", i))
		liked = append(liked, st)
		tweets[st.IDStr] = st
	}
	client := &fakeClient{liked: liked, tweets: tweets}
	store := newRecordingStore()
	dl := &fakeDownloader{outcome: downloader.OutcomeDownloaded}

	_, err := newTestPipeline(client, store, dl).Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// One save per batch plus the final save after pruning
	if store.saves < 3 {
		t.Errorf("Expected at least 3 saves, got %d", store.saves)
	}
}

func TestRunSingle(t *testing.T) {
	a := mediaStatus("artist", "1")
	client := &fakeClient{tweets: map[string]twitter.Status{"1": a}}
	store := newRecordingStore()
	dl := &fakeDownloader{outcome: downloader.OutcomeDownloaded}

	sum, err := newTestPipeline(client, store, dl).RunSingle(context.Background(), "1")
	if err != nil {
		t.Fatalf("RunSingle failed: %v", err)
	}
	if sum.Downloaded != 1 {
		t.Errorf("Expected 1 download, got %d", sum.Downloaded)
	}
	if store.Len() != 0 {
		t.Error("Single-tweet runs must not touch the blacklist")
	}
}

func TestRunSingleUnavailableTweet(t *testing.T) {
	client := &fakeClient{tweets: map[string]twitter.Status{}}
	dl := &fakeDownloader{}

	_, err := newTestPipeline(client, newRecordingStore(), dl).RunSingle(context.Background(), "404404")
	if err == nil {
		t.Fatal("Expected error for an unavailable tweet")
	}
	var apiErr *errs.Error
	if !errors.As(err, &apiErr) || apiErr.Type != errs.ErrorTypeNotFound {
		t.Errorf("Expected not-found error, got %v", err)
	}
}

func TestRunSingleNoMedia(t *testing.T) {
	a := textStatus("writer", "1")
	client := &fakeClient{tweets: map[string]twitter.Status{"1": a}}
	dl := &fakeDownloader{}

	sum, err := newTestPipeline(client, newRecordingStore(), dl).RunSingle(context.Background(), "1")
	if err != nil {
		t.Fatalf("RunSingle failed: %v", err)
	}
	if sum.TweetsWithMedia != 0 || len(dl.urls) != 0 {
		t.Errorf("Expected no downloads for a text tweet: %+v", sum)
	}
}

func TestRunListError(t *testing.T) {
	client := &fakeClient{listErr: errs.New(errs.ErrorTypeAuth, 401, "bad signature")}
	dl := &fakeDownloader{}

	_, err := newTestPipeline(client, newRecordingStore(), dl).Run(context.Background(), Options{})
	if err == nil {
		t.Fatal("Expected listing error to surface")
	}
}
