package twitter

import (
	"context"
	"encoding/json"
	goerrors "errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/dghubble/oauth1"
	"golang.org/x/time/rate"

	"twdl/pkg/config"
	"twdl/pkg/errors"
	"twdl/pkg/logger"
	"twdl/pkg/retry"
)

// defaultRateLimitWait is used when a 429 response carries no usable
// x-rate-limit-reset header.
const defaultRateLimitWait = time.Minute

// Client talks to the Twitter v1.1 REST API with OAuth 1.0a user context
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	maxRetries int
	logger     logger.Logger

	// sleep and now are injectable for tests with a fake clock
	sleep retry.SleepFunc
	now   func() time.Time
}

// NewClient creates an authenticated API client from the configuration
func NewClient(cfg *config.Config, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}

	oaConfig := oauth1.NewConfig(cfg.Twitter.ConsumerKey, cfg.Twitter.ConsumerSecret)
	token := oauth1.NewToken(cfg.Twitter.AccessToken, cfg.Twitter.AccessTokenSecret)

	httpClient := oaConfig.Client(oauth1.NoContext, token)
	httpClient.Timeout = cfg.Twitter.APITimeout

	rpm := cfg.RateLimit.RequestsPerMinute
	if rpm <= 0 {
		rpm = 60
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    BaseURL,
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1),
		maxRetries: cfg.Download.MaxRetries,
		logger:     log,
		sleep:      retry.Wait,
		now:        time.Now,
	}
}

// NewClientWithHTTP creates a client around an existing HTTP client and base
// URL. Used by tests that point the client at an httptest server.
func NewClientWithHTTP(httpClient *http.Client, baseURL string, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		limiter:    rate.NewLimiter(rate.Inf, 1),
		maxRetries: 3,
		logger:     log,
		sleep:      retry.Wait,
		now:        time.Now,
	}
}

// ListLiked fetches the authenticating user's most recent liked tweets,
// newest first. The service caps the result at MaxLikedCount regardless of
// the requested count.
func (c *Client) ListLiked(ctx context.Context, count int) ([]Status, error) {
	url := GetFavoritesURL(c.baseURL, count)

	var tweets []Status
	if err := c.getJSON(ctx, url, &tweets); err != nil {
		return nil, err
	}

	c.logger.InfoWithFields("loaded liked tweets", map[string]interface{}{
		"count": len(tweets),
	})
	return tweets, nil
}

// Lookup resolves a batch of up to MaxLookupBatch tweet IDs to full tweets.
// Tweets that no longer exist or are inaccessible are absent from the result.
func (c *Client) Lookup(ctx context.Context, ids []string) (map[string]Status, error) {
	if len(ids) == 0 {
		return map[string]Status{}, nil
	}
	if len(ids) > MaxLookupBatch {
		return nil, errors.New(errors.ErrorTypeUnknown, 0,
			"lookup batch too large: %d > %d", len(ids), MaxLookupBatch)
	}

	url := GetLookupURL(c.baseURL, ids)

	var tweets []Status
	if err := c.getJSON(ctx, url, &tweets); err != nil {
		var apiErr *errors.Error
		if goerrors.As(err, &apiErr) && apiErr.Type == errors.ErrorTypeNotFound {
			// None of the requested tweets exist anymore
			return map[string]Status{}, nil
		}
		return nil, err
	}

	result := make(map[string]Status, len(tweets))
	for _, t := range tweets {
		result[t.IDStr] = t
	}

	c.logger.DebugWithFields("looked up tweets", map[string]interface{}{
		"requested": len(ids),
		"resolved":  len(result),
	})
	return result, nil
}

// getJSON performs a GET with the client's failure policy: transient network
// and server errors get a small bounded retry with backoff; a rate-limit
// response waits until the window resets and retries the same request exactly
// once more before surfacing the error.
func (c *Client) getJSON(ctx context.Context, url string, target interface{}) error {
	err := c.fetchJSON(ctx, url, target)

	var apiErr *errors.Error
	if goerrors.As(err, &apiErr) && apiErr.Type == errors.ErrorTypeRateLimit {
		wait := apiErr.RetryAfter
		if wait <= 0 {
			wait = defaultRateLimitWait
		}
		logger.LogRateLimit(url, wait)

		if serr := c.sleep(ctx, wait); serr != nil {
			return fmt.Errorf("rate limit wait cancelled: %w", serr)
		}
		return c.fetchJSON(ctx, url, target)
	}

	return err
}

// fetchJSON performs a GET request with bounded retry for transient failures
func (c *Client) fetchJSON(ctx context.Context, url string, target interface{}) error {
	retryIf := func(err error) bool {
		var apiErr *errors.Error
		if goerrors.As(err, &apiErr) {
			// Rate limits are handled by getJSON, not the transient policy
			return apiErr.Type == errors.ErrorTypeNetwork ||
				apiErr.Type == errors.ErrorTypeServerError
		}
		return false
	}

	return retry.Do(func() error {
		return c.doJSON(ctx, url, target)
	}, &retry.Config{
		MaxAttempts: c.maxRetries,
		Backoff:     &retry.ConstantBackoff{Delay: 3 * time.Second},
		RetryIf:     retryIf,
		Context:     ctx,
		Sleep:       c.sleep,
		Logger:      c.logger,
	})
}

// doJSON performs a single GET request and decodes the JSON response
func (c *Client) doJSON(ctx context.Context, url string, target interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.New(errors.ErrorTypeUnknown, 0, "failed to create request: %v", err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait: %w", err)
	}

	start := c.now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"url":   url,
			"error": err.Error(),
		})
		return errors.New(errors.ErrorTypeNetwork, 0, "network error: %v", err)
	}
	defer resp.Body.Close()

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"url":      url,
		"status":   resp.StatusCode,
		"duration": c.now().Sub(start),
	})

	if err := c.checkResponseStatus(resp); err != nil {
		return err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.New(errors.ErrorTypeNetwork, resp.StatusCode,
			"failed to read response body: %v", err)
	}

	if err := json.Unmarshal(body, target); err != nil {
		preview := string(body)
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"url":          url,
			"status":       resp.StatusCode,
			"error":        err.Error(),
			"body_preview": preview,
		})
		return errors.New(errors.ErrorTypeParsing, resp.StatusCode,
			"failed to parse JSON: %v", err)
	}

	return nil
}

// checkResponseStatus maps HTTP response status to the error taxonomy
func (c *Client) checkResponseStatus(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusUnauthorized, http.StatusForbidden:
		c.logger.WarnWithFields("authentication error", map[string]interface{}{
			"status": resp.StatusCode,
			"url":    resp.Request.URL.String(),
		})
		return errors.New(errors.ErrorTypeAuth, resp.StatusCode, "authentication failed")
	case http.StatusNotFound, http.StatusGone:
		return errors.New(errors.ErrorTypeNotFound, resp.StatusCode, "resource not found")
	case http.StatusTooManyRequests:
		wait := c.rateLimitWait(resp)
		c.logger.WarnWithFields("rate limit exceeded", map[string]interface{}{
			"status": resp.StatusCode,
			"url":    resp.Request.URL.String(),
			"wait":   wait,
		})
		return &errors.Error{
			Type:       errors.ErrorTypeRateLimit,
			Message:    "rate limit exceeded",
			Code:       resp.StatusCode,
			RetryAfter: wait,
		}
	default:
		if resp.StatusCode >= 500 {
			return errors.New(errors.ErrorTypeServerError, resp.StatusCode, "server error")
		}
		if resp.StatusCode >= 400 {
			return errors.New(errors.ErrorTypeUnknown, resp.StatusCode,
				"unexpected status code: %d", resp.StatusCode)
		}
		return nil
	}
}

// rateLimitWait derives the wait until the limit window resets from the
// x-rate-limit-reset response header (epoch seconds).
func (c *Client) rateLimitWait(resp *http.Response) time.Duration {
	reset := resp.Header.Get("x-rate-limit-reset")
	if reset == "" {
		return 0
	}

	epoch, err := strconv.ParseInt(reset, 10, 64)
	if err != nil {
		return 0
	}

	wait := time.Unix(epoch, 0).Sub(c.now())
	if wait < 0 {
		return 0
	}
	// Small buffer so the retried request lands inside the fresh window
	return wait + time.Second
}
