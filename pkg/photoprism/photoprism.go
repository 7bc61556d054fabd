package photoprism

import (
	"database/sql"
	"fmt"
	"os"
	"sort"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver
	"twdl/pkg/logger"
)

// TaggerLabelSlug marks media already processed by the tagger so manual
// label corrections are never overwritten on a later run. The label must
// exist in the database; it is never created here.
const TaggerLabelSlug = "hermes-conrad-was-here"

// timestampLayout is the format PhotoPrism stores timestamps in
const timestampLayout = "2006-01-02 15:04:05"

// Label is a PhotoPrism label with its slug and database record ID.
type Label struct {
	ID   int64
	Slug string
}

// DB wraps a connection to a PhotoPrism SQLite database.
type DB struct {
	conn   *sql.DB
	logger logger.Logger
	now    func() time.Time
}

// Open connects to an existing PhotoPrism database. The file must already
// exist: the schema belongs to PhotoPrism and is never created here.
func Open(path string, log logger.Logger) (*DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("database file %s not found: %w", path, err)
	}

	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.DebugWithFields("connected to database", map[string]interface{}{
		"path": path,
	})

	return &DB{
		conn:   conn,
		logger: log,
		now:    time.Now,
	}, nil
}

// Close releases the database connection.
func (d *DB) Close() error {
	return d.conn.Close()
}

// LabelKnownAuthors walks the tag map and ensures every indexed photo of
// each listed author carries the author's labels. Photos already holding
// the tagger label are left untouched so manual corrections survive.
func (d *DB) LabelKnownAuthors(tm TagMap) error {
	d.logger.Info("Running autotagger on database")

	available, err := d.availableLabels()
	if err != nil {
		return err
	}

	tagger, err := taggerLabel(available)
	if err != nil {
		return err
	}

	// Sorted for deterministic processing order
	authors := make([]string, 0, len(tm))
	for author := range tm {
		authors = append(authors, author)
	}
	sort.Strings(authors)

	for _, author := range authors {
		if err := d.labelPhotosForAuthor(author, available, tm[author], tagger); err != nil {
			return err
		}
	}
	return nil
}

// UpdateRecentAlbum replaces the contents of the named album with every
// photo indexed within the given window. Returns the number of photos
// placed in the album.
func (d *DB) UpdateRecentAlbum(albumSlug string, window time.Duration) (int, error) {
	d.logger.Info("Updating recent media album")

	albumUID, err := d.albumUID(albumSlug)
	if err != nil {
		return 0, err
	}

	since := d.now().Add(-window)
	photoUIDs, err := d.photoUIDsAfter(since)
	if err != nil {
		return 0, err
	}

	d.logger.InfoWithFields("adding media items to album", map[string]interface{}{
		"album": albumSlug,
		"count": len(photoUIDs),
	})

	tx, err := d.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM photos_albums WHERE album_uid = ?`, albumUID); err != nil {
		return 0, fmt.Errorf("failed to empty album %s: %w", albumSlug, err)
	}

	nowStamp := d.now().Format(timestampLayout)
	for _, uid := range photoUIDs {
		_, err := tx.Exec(
			`INSERT INTO photos_albums (photo_uid, album_uid, "order", hidden, missing, created_at, updated_at)
			 VALUES (?, ?, 0, 0, 0, ?, ?)`,
			uid, albumUID, nowStamp, nowStamp,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to add photo %s to album: %w", uid, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit album update: %w", err)
	}
	return len(photoUIDs), nil
}

// labelPhotosForAuthor assigns the required labels to every photo whose
// file name starts with the author's handle.
func (d *DB) labelPhotosForAuthor(author string, available []Label, requiredSlugs []string, tagger Label) error {
	var expected []Label
	var missing []string
	for _, slug := range requiredSlugs {
		found := false
		for _, label := range available {
			if label.Slug == slug {
				expected = append(expected, label)
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, slug)
		}
	}

	// A label only exists once PhotoPrism has indexed it, so the user
	// must assign each slug to at least one photo manually first.
	if len(missing) > 0 {
		d.logger.ErrorWithFields("required labels missing from database, skipping author", map[string]interface{}{
			"author":         author,
			"missing_labels": missing,
		})
		return nil
	}

	photoIDs, err := d.photoIDsForAuthor(author)
	if err != nil {
		return err
	}
	d.logger.DebugWithFields("found indexed photos for author", map[string]interface{}{
		"author": author,
		"count":  len(photoIDs),
	})

	updated := 0
	for _, photoID := range photoIDs {
		changed, err := d.labelPhoto(photoID, expected, tagger)
		if err != nil {
			return err
		}
		if changed {
			if err := d.addLabelToPhoto(photoID, tagger); err != nil {
				return err
			}
			updated++
		}
	}

	if updated > 0 {
		d.logger.InfoWithFields("updated photos for author", map[string]interface{}{
			"author":  author,
			"updated": updated,
			"total":   len(photoIDs),
		})
	}
	return nil
}

// labelPhoto ensures the photo carries every expected label. Reports false
// when the photo already carries the tagger label and was skipped.
func (d *DB) labelPhoto(photoID int64, expected []Label, tagger Label) (bool, error) {
	current, err := d.labelIDsForPhoto(photoID)
	if err != nil {
		return false, err
	}

	if _, done := current[tagger.ID]; done {
		return false, nil
	}

	for _, label := range expected {
		if _, ok := current[label.ID]; ok {
			continue
		}
		if err := d.addLabelToPhoto(photoID, label); err != nil {
			return false, err
		}
	}
	return true, nil
}

// addLabelToPhoto links the label to the photo and bumps the label's
// photo counter in one transaction.
func (d *DB) addLabelToPhoto(photoID int64, label Label) error {
	d.logger.DebugWithFields("adding label to photo", map[string]interface{}{
		"photo_id": photoID,
		"label":    label.Slug,
	})

	tx, err := d.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO photos_labels (photo_id, label_id, label_src, uncertainty) VALUES (?, ?, 'manual', 0)`,
		photoID, label.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to link label %s to photo %d: %w", label.Slug, photoID, err)
	}

	_, err = tx.Exec(`UPDATE labels SET photo_count = photo_count + 1 WHERE id = ?`, label.ID)
	if err != nil {
		return fmt.Errorf("failed to update photo count for label %s: %w", label.Slug, err)
	}

	return tx.Commit()
}

// availableLabels returns every label defined in the database.
func (d *DB) availableLabels() ([]Label, error) {
	rows, err := d.conn.Query(`SELECT id, label_slug FROM labels`)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch labels: %w", err)
	}
	defer rows.Close()

	var labels []Label
	for rows.Next() {
		var label Label
		if err := rows.Scan(&label.ID, &label.Slug); err != nil {
			return nil, fmt.Errorf("failed to scan label row: %w", err)
		}
		labels = append(labels, label)
	}
	return labels, rows.Err()
}

// labelIDsForPhoto returns the IDs of the labels linked to the photo.
func (d *DB) labelIDsForPhoto(photoID int64) (map[int64]struct{}, error) {
	rows, err := d.conn.Query(`SELECT label_id FROM photos_labels WHERE photo_id = ?`, photoID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch labels for photo %d: %w", photoID, err)
	}
	defer rows.Close()

	ids := make(map[int64]struct{})
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan label ID: %w", err)
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

// photoIDsForAuthor finds photos by the download naming convention: the
// file name starts with the author's handle.
func (d *DB) photoIDsForAuthor(author string) ([]int64, error) {
	rows, err := d.conn.Query(`SELECT id FROM photos WHERE photo_name LIKE ? || '%'`, author)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch photos for author %s: %w", author, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan photo ID: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// photoUIDsAfter returns the UIDs of photos indexed after the timestamp.
func (d *DB) photoUIDsAfter(since time.Time) ([]string, error) {
	rows, err := d.conn.Query(
		`SELECT photo_uid FROM photos WHERE created_at > ?`,
		since.Format(timestampLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch recent photos: %w", err)
	}
	defer rows.Close()

	var uids []string
	for rows.Next() {
		var uid string
		if err := rows.Scan(&uid); err != nil {
			return nil, fmt.Errorf("failed to scan photo UID: %w", err)
		}
		uids = append(uids, uid)
	}
	return uids, rows.Err()
}

// albumUID resolves an album slug to its UID. The album must already
// exist; exactly one match is required.
func (d *DB) albumUID(albumSlug string) (string, error) {
	rows, err := d.conn.Query(`SELECT album_uid FROM albums WHERE album_slug = ?`, albumSlug)
	if err != nil {
		return "", fmt.Errorf("failed to look up album %s: %w", albumSlug, err)
	}
	defer rows.Close()

	var uids []string
	for rows.Next() {
		var uid string
		if err := rows.Scan(&uid); err != nil {
			return "", fmt.Errorf("failed to scan album UID: %w", err)
		}
		uids = append(uids, uid)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}

	switch len(uids) {
	case 0:
		return "", fmt.Errorf("no album with slug %q found, please create it manually", albumSlug)
	case 1:
		return uids[0], nil
	default:
		return "", fmt.Errorf("expected exactly one album with slug %q, got %d", albumSlug, len(uids))
	}
}

// taggerLabel finds the sentinel label among the available labels.
func taggerLabel(available []Label) (Label, error) {
	for _, label := range available {
		if label.Slug == TaggerLabelSlug {
			return label, nil
		}
	}
	return Label{}, fmt.Errorf("required label %q not found in database, please create it manually", TaggerLabelSlug)
}
