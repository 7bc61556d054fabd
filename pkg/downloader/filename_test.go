package downloader

import (
	"testing"
	"time"
)

func TestBuildFilename(t *testing.T) {
	created := time.Date(2022, 8, 9, 13, 37, 0, 0, time.UTC)

	tests := []struct {
		name     string
		handle   string
		tweetID  string
		index    int
		ext      string
		expected string
	}{
		{
			name:     "photo",
			handle:   "koirakoirana",
			tweetID:  "1557022684373983234",
			index:    1,
			ext:      "jpg",
			expected: "koirakoirana_2022-08-09_1557022684373983234_1.jpg",
		},
		{
			name:     "second item of a carousel",
			handle:   "koirakoirana",
			tweetID:  "1557022684373983234",
			index:    2,
			ext:      "png",
			expected: "koirakoirana_2022-08-09_1557022684373983234_2.png",
		},
		{
			name:     "video",
			handle:   "some_user",
			tweetID:  "42",
			index:    1,
			ext:      "mp4",
			expected: "some_user_2022-08-09_42_1.mp4",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildFilename(tt.handle, created, tt.tweetID, tt.index, tt.ext)
			if got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestParseFilename(t *testing.T) {
	info, err := ParseFilename("koirakoirana_2022-08-09_1557022684373983234_1.jpg")
	if err != nil {
		t.Fatalf("ParseFilename failed: %v", err)
	}

	if info.Handle != "koirakoirana" {
		t.Errorf("Expected handle koirakoirana, got %q", info.Handle)
	}
	if info.Date != "2022-08-09" {
		t.Errorf("Expected date 2022-08-09, got %q", info.Date)
	}
	if info.TweetID != "1557022684373983234" {
		t.Errorf("Expected tweet ID 1557022684373983234, got %q", info.TweetID)
	}
	if info.Index != 1 {
		t.Errorf("Expected index 1, got %d", info.Index)
	}
	if info.Ext != "jpg" {
		t.Errorf("Expected ext jpg, got %q", info.Ext)
	}
}

func TestParseFilenameRejectsForeignFiles(t *testing.T) {
	names := []string{
		"random.jpg",
		"IMG_1234.jpg",
		"user_2022-08-09_notanumber_1.jpg",
		"user_20220809_123_1.jpg",
		"user_2022-08-09_123_1",
		".hidden",
	}

	for _, name := range names {
		if _, err := ParseFilename(name); err == nil {
			t.Errorf("Expected parse failure for %q", name)
		}
	}
}

func TestBuildParseRoundTrip(t *testing.T) {
	created := time.Date(2023, 1, 15, 0, 0, 0, 0, time.UTC)
	name := BuildFilename("artist", created, "999", 3, "mp4")

	info, err := ParseFilename(name)
	if err != nil {
		t.Fatalf("ParseFilename failed for generated name %q: %v", name, err)
	}
	if info.Handle != "artist" || info.TweetID != "999" || info.Index != 3 || info.Ext != "mp4" {
		t.Errorf("Round trip mismatch: %+v", info)
	}
}
