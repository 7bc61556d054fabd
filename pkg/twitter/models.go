package twitter

import "time"

// createdAtLayout is the timestamp format used by the v1.1 API,
// e.g. "Tue Aug 09 13:37:00 +0000 2022".
const createdAtLayout = "Mon Jan 02 15:04:05 -0700 2006"

// Status represents a tweet as returned by the v1.1 API in extended mode
type Status struct {
	IDStr            string            `json:"id_str"`
	CreatedAt        string            `json:"created_at"`
	FullText         string            `json:"full_text"`
	User             User              `json:"user"`
	ExtendedEntities *ExtendedEntities `json:"extended_entities,omitempty"`
}

// User represents the author of a tweet
type User struct {
	IDStr      string `json:"id_str"`
	ScreenName string `json:"screen_name"`
}

// ExtendedEntities carries the attached media of a tweet
type ExtendedEntities struct {
	Media []MediaEntity `json:"media"`
}

// MediaEntity is a single attached asset with its quality variants
type MediaEntity struct {
	IDStr         string     `json:"id_str"`
	Type          string     `json:"type"` // photo, video or animated_gif
	MediaURLHTTPS string     `json:"media_url_https"`
	VideoInfo     *VideoInfo `json:"video_info,omitempty"`
}

// VideoInfo holds the rendition variants of a video or animated GIF
type VideoInfo struct {
	Variants []Variant `json:"variants"`
}

// Variant is one rendition of a video asset. Bitrate is absent for
// streaming formats such as MPEG-DASH playlists.
type Variant struct {
	Bitrate     int    `json:"bitrate,omitempty"`
	ContentType string `json:"content_type"`
	URL         string `json:"url"`
}

// CreatedTime parses the tweet's creation timestamp. The zero time is
// returned when the field is missing or malformed.
func (s *Status) CreatedTime() time.Time {
	t, err := time.Parse(createdAtLayout, s.CreatedAt)
	if err != nil {
		return time.Time{}
	}
	return t
}

// HasMedia reports whether the tweet carries any attached media
func (s *Status) HasMedia() bool {
	return s.ExtendedEntities != nil && len(s.ExtendedEntities.Media) > 0
}
