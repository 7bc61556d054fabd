package twitter

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	// BaseURL is the base URL for the v1.1 REST API
	BaseURL = "https://api.twitter.com/1.1"

	// FavoritesEndpoint lists the authenticating user's liked tweets
	FavoritesEndpoint = "/favorites/list.json"

	// LookupEndpoint resolves a batch of tweet IDs to full tweets
	LookupEndpoint = "/statuses/lookup.json"

	// MaxLikedCount is the hard cap the service applies to the favorites
	// listing; requests for more still return at most this many tweets.
	MaxLikedCount = 200

	// MaxLookupBatch is the maximum number of IDs accepted per lookup call
	MaxLookupBatch = 100
)

// GetFavoritesURL constructs the URL for listing liked tweets
func GetFavoritesURL(baseURL string, count int) string {
	if count <= 0 || count > MaxLikedCount {
		count = MaxLikedCount
	}

	params := url.Values{}
	params.Set("count", fmt.Sprintf("%d", count))
	params.Set("tweet_mode", "extended")

	return fmt.Sprintf("%s%s?%s", baseURL, FavoritesEndpoint, params.Encode())
}

// GetLookupURL constructs the URL for a batch status lookup
func GetLookupURL(baseURL string, ids []string) string {
	params := url.Values{}
	params.Set("id", strings.Join(ids, ","))
	params.Set("tweet_mode", "extended")

	return fmt.Sprintf("%s%s?%s", baseURL, LookupEndpoint, params.Encode())
}

// StatusURL returns the canonical web URL of a tweet, used in log output
func StatusURL(id string) string {
	return fmt.Sprintf("https://twitter.com/i/web/status/%s", id)
}
