package logger

import "time"

// LogDownload logs download operations
func LogDownload(handle, tweetID, mediaKind string, success bool, err error) {
	fields := map[string]interface{}{
		"handle":     handle,
		"tweet_id":   tweetID,
		"media_kind": mediaKind,
		"success":    success,
	}

	logger := GetLogger().WithFields(fields)

	if err != nil {
		logger.WithError(err).Error("Download failed")
	} else if success {
		logger.Info("Download completed")
	} else {
		logger.Warn("Download skipped")
	}
}

// LogRateLimit logs rate limiting events
func LogRateLimit(endpoint string, wait time.Duration) {
	GetLogger().WithFields(map[string]interface{}{
		"endpoint": endpoint,
		"wait":     wait,
		"action":   "rate_limited",
	}).Warn("Rate limit reached, backing off")
}
