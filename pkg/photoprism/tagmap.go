package photoprism

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// defaultTagMapContent seeds a new tag map file with usage instructions.
const defaultTagMapContent = `# Specify the author handle and the label slugs you want applied to their media.
# Example:
#   nasahqphoto:
#     - photo
#     - topic-space
`

// TagMap maps an author handle to the label slugs their media should carry.
// Note that a label's slug may not match its display name (ie. 'fandom:toh'
// becomes 'fandom-toh' in the database). Search for the label in PhotoPrism,
// its slug is shown in the search bar.
type TagMap map[string][]string

// LoadTagMap reads the tag map file. A missing file is created with an
// instructional comment and an empty map is returned.
func LoadTagMap(path string) (TagMap, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if werr := os.WriteFile(path, []byte(defaultTagMapContent), 0644); werr != nil {
				return nil, fmt.Errorf("failed to create tag map file %s: %w", path, werr)
			}
			return TagMap{}, nil
		}
		return nil, fmt.Errorf("failed to read tag map file %s: %w", path, err)
	}

	var tm TagMap
	if err := yaml.Unmarshal(content, &tm); err != nil {
		return nil, fmt.Errorf("failed to parse tag map file %s: %w", path, err)
	}
	if tm == nil {
		tm = TagMap{}
	}
	return tm, nil
}
