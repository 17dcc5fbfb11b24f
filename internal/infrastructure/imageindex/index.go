package imageindex

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/manualqa/manual-assistant/internal/core/domain"
)

// pageRecord mirrors one entry of the extraction artifact: a page and the
// images embedded on it with their surrounding text.
type pageRecord struct {
	PageNum int `json:"page_num"`
	Images  []struct {
		Path       string       `json:"path"`
		NearbyText string       `json:"nearby_text"`
		Position   *domain.Rect `json:"position,omitempty"`
	} `json:"images"`
}

// Index is the read-only page-to-images lookup built from the document
// extraction artifact. Output order always follows document order so
// candidate pools are deterministic.
type Index struct {
	baseDir string
	byPage  map[int][]domain.ManualImage
	pages   []int
}

// Load reads the extraction artifact. Image paths in the artifact are
// relative to the content directory; LoadImage resolves them against it.
func Load(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.WrapError(domain.ErrConfiguration, "read image index", err)
	}

	var records []pageRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, domain.WrapError(domain.ErrConfiguration, "parse image index", err)
	}

	idx := &Index{
		baseDir: filepath.Dir(path),
		byPage:  make(map[int][]domain.ManualImage, len(records)),
	}
	seen := make(map[int]struct{}, len(records))
	for _, rec := range records {
		if _, ok := seen[rec.PageNum]; !ok {
			seen[rec.PageNum] = struct{}{}
			idx.pages = append(idx.pages, rec.PageNum)
		}
		for _, img := range rec.Images {
			idx.byPage[rec.PageNum] = append(idx.byPage[rec.PageNum], domain.ManualImage{
				Path:       img.Path,
				PageNum:    rec.PageNum,
				NearbyText: img.NearbyText,
				Position:   img.Position,
			})
		}
	}
	return idx, nil
}

// ImagesOnPages returns every image embedded on the given pages. The
// caller's page order does not matter: results follow document order.
func (idx *Index) ImagesOnPages(pages []int) []domain.ManualImage {
	want := make(map[int]struct{}, len(pages))
	for _, p := range pages {
		want[p] = struct{}{}
	}

	var out []domain.ManualImage
	for _, page := range idx.pages {
		if _, ok := want[page]; !ok {
			continue
		}
		out = append(out, idx.byPage[page]...)
	}
	return out
}

// LoadImage reads an image file referenced by the artifact.
func (idx *Index) LoadImage(path string) ([]byte, error) {
	resolved := path
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(idx.baseDir, path)
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, domain.WrapError(domain.ErrNotFound, "load image", err)
	}
	return data, nil
}
