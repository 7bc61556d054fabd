package downloader

import (
	"fmt"
	"regexp"
	"time"
)

// Downloaded media files are named {handle}_{date}_{id}_{n}.{ext},
// e.g. koirakoirana_2022-08-09_1557022684373983234_1.jpg
var filenameRegex = regexp.MustCompile(
	`^(?P<handle>\w+)_(?P<date>\d{4}-\d{2}-\d{2})_(?P<id>\d+)_(?P<n>\d+)\.(?P<ext>\w+)$`)

// FileInfo holds the fields encoded in a media filename
type FileInfo struct {
	Handle  string
	Date    string
	TweetID string
	Index   int
	Ext     string
}

// BuildFilename constructs the destination filename for the n-th media
// item of a tweet
func BuildFilename(handle string, created time.Time, tweetID string, index int, ext string) string {
	return fmt.Sprintf("%s_%s_%s_%d.%s", handle, created.Format("2006-01-02"), tweetID, index, ext)
}

// ParseFilename extracts the encoded fields from a media filename.
// It fails for files that were not produced by this tool.
func ParseFilename(name string) (FileInfo, error) {
	m := filenameRegex.FindStringSubmatch(name)
	if m == nil {
		return FileInfo{}, fmt.Errorf("failed to parse filename %q", name)
	}

	info := FileInfo{}
	for i, group := range filenameRegex.SubexpNames() {
		switch group {
		case "handle":
			info.Handle = m[i]
		case "date":
			info.Date = m[i]
		case "id":
			info.TweetID = m[i]
		case "n":
			fmt.Sscanf(m[i], "%d", &info.Index)
		case "ext":
			info.Ext = m[i]
		}
	}
	return info, nil
}
