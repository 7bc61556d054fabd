package twitter

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	goerrors "errors"

	"twdl/pkg/errors"
	"twdl/pkg/logger"
)

const tweetJSON = `{
	"id_str": "%s",
	"created_at": "Tue Aug 09 13:37:00 +0000 2022",
	"full_text": "hello",
	"user": {"id_str": "9", "screen_name": "artist"},
	"extended_entities": {"media": [
		{"id_str": "m1", "type": "photo", "media_url_https": "https://pbs.twimg.com/media/abc.jpg"}
	]}
}`

// fakeSleep records requested delays without actually sleeping
type fakeSleep struct {
	delays []time.Duration
}

func (f *fakeSleep) sleep(ctx context.Context, d time.Duration) error {
	f.delays = append(f.delays, d)
	return nil
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *fakeSleep) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	sleeper := &fakeSleep{}
	client := NewClientWithHTTP(server.Client(), server.URL, logger.NewTestLogger())
	client.sleep = sleeper.sleep
	return client, sleeper
}

func TestListLiked(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != FavoritesEndpoint {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("tweet_mode"); got != "extended" {
			t.Errorf("Expected extended tweet mode, got %q", got)
		}
		fmt.Fprintf(w, "[%s, %s]", fmt.Sprintf(tweetJSON, "1"), fmt.Sprintf(tweetJSON, "2"))
	})

	tweets, err := client.ListLiked(context.Background(), 200)
	if err != nil {
		t.Fatalf("ListLiked failed: %v", err)
	}
	if len(tweets) != 2 {
		t.Fatalf("Expected 2 tweets, got %d", len(tweets))
	}
	if tweets[0].IDStr != "1" || tweets[1].IDStr != "2" {
		t.Errorf("Unexpected IDs: %s, %s", tweets[0].IDStr, tweets[1].IDStr)
	}
	if tweets[0].User.ScreenName != "artist" {
		t.Errorf("Expected screen name artist, got %q", tweets[0].User.ScreenName)
	}
	if !tweets[0].HasMedia() {
		t.Error("Expected media to be parsed")
	}
}

func TestListLikedClampsCount(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("count"); got != "200" {
			t.Errorf("Expected count clamped to 200, got %q", got)
		}
		fmt.Fprint(w, "[]")
	})

	if _, err := client.ListLiked(context.Background(), 5000); err != nil {
		t.Fatalf("ListLiked failed: %v", err)
	}
}

func TestRateLimitWaitsAndRetriesOnce(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	requests := 0

	client, sleeper := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests == 1 {
			w.Header().Set("x-rate-limit-reset", fmt.Sprintf("%d", now.Add(30*time.Second).Unix()))
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprintf(w, "[%s]", fmt.Sprintf(tweetJSON, "1"))
	})
	client.now = func() time.Time { return now }

	tweets, err := client.ListLiked(context.Background(), 10)
	if err != nil {
		t.Fatalf("Expected success after rate limit wait: %v", err)
	}
	if len(tweets) != 1 {
		t.Fatalf("Expected 1 tweet, got %d", len(tweets))
	}
	if requests != 2 {
		t.Errorf("Expected exactly 2 requests, got %d", requests)
	}
	if len(sleeper.delays) != 1 {
		t.Fatalf("Expected one wait, got %d", len(sleeper.delays))
	}
	// Reset in 30s plus the one second landing buffer
	if sleeper.delays[0] != 31*time.Second {
		t.Errorf("Expected 31s wait, got %v", sleeper.delays[0])
	}
}

func TestRateLimitPersistsAfterRetry(t *testing.T) {
	client, sleeper := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.ListLiked(context.Background(), 10)
	if err == nil {
		t.Fatal("Expected error when rate limit persists")
	}

	var apiErr *errors.Error
	if !goerrors.As(err, &apiErr) || apiErr.Type != errors.ErrorTypeRateLimit {
		t.Errorf("Expected rate_limit error, got %v", err)
	}
	// One wait, one extra attempt, then give up
	if len(sleeper.delays) != 1 {
		t.Errorf("Expected exactly one wait, got %d", len(sleeper.delays))
	}
}

func TestAuthErrorIsNotRetried(t *testing.T) {
	requests := 0
	client, sleeper := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := client.ListLiked(context.Background(), 10)
	if err == nil {
		t.Fatal("Expected auth error")
	}

	var apiErr *errors.Error
	if !goerrors.As(err, &apiErr) || apiErr.Type != errors.ErrorTypeAuth {
		t.Errorf("Expected auth error, got %v", err)
	}
	if requests != 1 {
		t.Errorf("Expected a single request, got %d", requests)
	}
	if len(sleeper.delays) != 0 {
		t.Errorf("Expected no waits, got %v", sleeper.delays)
	}
}

func TestTransientServerErrorIsRetried(t *testing.T) {
	requests := 0
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, "[]")
	})

	if _, err := client.ListLiked(context.Background(), 10); err != nil {
		t.Fatalf("Expected success after transient errors: %v", err)
	}
	if requests != 3 {
		t.Errorf("Expected 3 requests, got %d", requests)
	}
}

func TestLookupMissingTweetsAbsent(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != LookupEndpoint {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		// Only one of the two requested tweets still exists
		fmt.Fprintf(w, "[%s]", fmt.Sprintf(tweetJSON, "1"))
	})

	result, err := client.Lookup(context.Background(), []string{"1", "2"})
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if len(result) != 1 {
		t.Fatalf("Expected 1 resolved tweet, got %d", len(result))
	}
	if _, ok := result["1"]; !ok {
		t.Error("Expected tweet 1 in result")
	}
	if _, ok := result["2"]; ok {
		t.Error("Deleted tweet must be absent, not present with zero value")
	}
}

func TestLookupNotFoundIsEmptyResult(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	result, err := client.Lookup(context.Background(), []string{"1"})
	if err != nil {
		t.Fatalf("Expected empty result for 404, got error: %v", err)
	}
	if len(result) != 0 {
		t.Errorf("Expected empty result, got %d entries", len(result))
	}
}

func TestLookupEmptyBatch(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("No request expected for an empty batch")
	})

	result, err := client.Lookup(context.Background(), nil)
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if len(result) != 0 {
		t.Errorf("Expected empty result, got %d", len(result))
	}
}

func TestLookupRejectsOversizedBatch(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("No request expected for an oversized batch")
	})

	ids := make([]string, MaxLookupBatch+1)
	for i := range ids {
		ids[i] = fmt.Sprintf("%d", i)
	}

	if _, err := client.Lookup(context.Background(), ids); err == nil {
		t.Error("Expected error for oversized batch")
	}
}

func TestParsingErrorSurfaces(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>not json</html>")
	})

	_, err := client.ListLiked(context.Background(), 10)
	if err == nil {
		t.Fatal("Expected parsing error")
	}
	var apiErr *errors.Error
	if !goerrors.As(err, &apiErr) || apiErr.Type != errors.ErrorTypeParsing {
		t.Errorf("Expected parsing error, got %v", err)
	}
}
