package twitter

import (
	"net/url"
	"path"
	"strings"

	"twdl/pkg/logger"
)

// MediaKind classifies an extracted media item
type MediaKind string

const (
	KindPhoto       MediaKind = "photo"
	KindVideo       MediaKind = "video"
	KindAnimatedGIF MediaKind = "animated_gif"
)

// MediaItem is a downloadable asset resolved to its single best URL
type MediaItem struct {
	URL  string
	Kind MediaKind
}

// ExtractMedia returns the downloadable media of a tweet, one item per
// attached asset in original order, each resolved to its highest-quality
// variant. A tweet without attachments yields an empty slice; callers treat
// that as a valid terminal outcome, not an error.
func ExtractMedia(s *Status) []MediaItem {
	log := logger.GetLogger()

	if !s.HasMedia() {
		text := strings.ReplaceAll(s.FullText, "\n", " ")
		log.WarnWithFields("no media detected for status", map[string]interface{}{
			"url":    StatusURL(s.IDStr),
			"handle": s.User.ScreenName,
			"text":   text,
		})
		return nil
	}

	var items []MediaItem
	for _, media := range s.ExtendedEntities.Media {
		switch media.Type {
		case "photo":
			items = append(items, MediaItem{URL: photoURL(media.MediaURLHTTPS), Kind: KindPhoto})
		case "video":
			if u := bestVideoVariant(media.VideoInfo); u != "" {
				items = append(items, MediaItem{URL: u, Kind: KindVideo})
			}
		case "animated_gif":
			// Animated GIFs carry a variants list with a single MP4 entry
			if media.VideoInfo != nil && len(media.VideoInfo.Variants) > 0 {
				items = append(items, MediaItem{URL: media.VideoInfo.Variants[0].URL, Kind: KindAnimatedGIF})
			}
		default:
			log.ErrorWithFields("unrecognized media type", map[string]interface{}{
				"type":     media.Type,
				"tweet_id": s.IDStr,
			})
		}
	}

	log.DebugWithFields("extracted media URLs", map[string]interface{}{
		"tweet_id": s.IDStr,
		"handle":   s.User.ScreenName,
		"count":    len(items),
	})
	return items
}

// bestVideoVariant picks the variant with the highest bitrate. Variants
// without a bitrate (streaming playlists) are considered only when no
// bitrate-carrying variant exists.
func bestVideoVariant(info *VideoInfo) string {
	if info == nil || len(info.Variants) == 0 {
		return ""
	}

	var best *Variant
	for i := range info.Variants {
		v := &info.Variants[i]
		if best == nil {
			best = v
			continue
		}
		if best.Bitrate == 0 && v.Bitrate > 0 {
			best = v
			continue
		}
		if v.Bitrate > best.Bitrate {
			best = v
		}
	}

	return best.URL
}

// photoURL appends the size parameters that select the large rendition
// of a picture.
func photoURL(mediaURL string) string {
	ext := ExtensionFromURL(mediaURL)
	if ext == "" {
		return mediaURL
	}
	return mediaURL + "?format=" + ext + "&name=large"
}

// ExtensionFromURL extracts the file extension (without the leading dot)
// from a media URL, ignoring any query parameters.
func ExtensionFromURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(path.Ext(parsed.Path), ".")
}
