package meta

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dhowden/tag"
)

// Metadata blob fields filled from container tags
const (
	FieldTitle       = "title"
	FieldArtist      = "artist"
	FieldAlbum       = "album"
	FieldDescription = "description"
	FieldGenre       = "genre"
	FieldFormat      = "format"
)

// ExtractTags reads container tags from path into a cleaned metadata blob.
// A file without tags yields an empty blob and no error.
func ExtractTags(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		if errors.Is(err, tag.ErrNoTagsFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read tags: %w", err)
	}

	blob := map[string]string{
		FieldTitle:       m.Title(),
		FieldArtist:      m.Artist(),
		FieldAlbum:       m.Album(),
		FieldDescription: m.Comment(),
		FieldGenre:       m.Genre(),
	}
	if m.Format() != tag.UnknownFormat {
		blob[FieldFormat] = string(m.Format())
	}

	// MP4 containers keep descriptions under "desc" rather than the comment atom
	if blob[FieldDescription] == "" {
		if raw := m.Raw(); raw != nil {
			for _, key := range []string{"desc", "ldes", "description"} {
				if s, ok := raw[key].(string); ok && strings.TrimSpace(s) != "" {
					blob[FieldDescription] = s
					break
				}
			}
		}
	}

	return CleanBlob(blob), nil
}
