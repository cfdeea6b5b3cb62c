package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/harbor-analytics/claimlens/internal/domain"
)

// Loader extracts ordered (page number, text) pairs from a document file.
// Implementations fail with a LOAD_ERROR domain error when a file is
// unreadable, corrupt, or of an unsupported format.
type Loader interface {
	Load(path string) (*domain.Document, error)
	Supports(path string) bool
}

// pageSizeChars is the simulated page length for formats without native page
// breaks, matching how paginated and unpaginated sources are kept consistent.
const pageSizeChars = 2000

var idSanitizer = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// DocumentIDFromPath derives a stable document ID from a file name.
func DocumentIDFromPath(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return strings.Trim(idSanitizer.ReplaceAllString(strings.ToLower(base), "_"), "_")
}

// TextLoader loads plain-text and markdown documents. Form feeds mark page
// breaks; text without them is paginated at a fixed character count. Document
// metadata comes from an optional "<file>.meta.json" sidecar.
type TextLoader struct{}

func NewTextLoader() *TextLoader {
	return &TextLoader{}
}

func (l *TextLoader) Supports(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md", ".text":
		return true
	}
	return false
}

func (l *TextLoader) Load(path string) (*domain.Document, error) {
	if !l.Supports(path) {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeLoad,
			fmt.Sprintf("unsupported document format %q", filepath.Ext(path)), domain.ErrUnsupportedFormat)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeLoad,
			fmt.Sprintf("failed to read %s", filepath.Base(path)), err)
	}

	pages := paginate(string(raw))
	if len(pages) == 0 {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeLoad,
			fmt.Sprintf("no extractable text in %s", filepath.Base(path)), domain.ErrEmptyDocument)
	}

	meta, err := loadSidecarMetadata(path)
	if err != nil {
		return nil, err
	}

	doc := domain.NewDocument(
		DocumentIDFromPath(path),
		filepath.Base(path),
		strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."),
		pages,
		meta,
	)
	return doc, nil
}

// paginate splits raw text into 1-based pages. Form feed characters take
// precedence as page breaks; otherwise fixed-length pages are cut.
func paginate(text string) []domain.Page {
	var pages []domain.Page
	appendPage := func(t string) {
		if strings.TrimSpace(t) == "" {
			return
		}
		pages = append(pages, domain.Page{Number: len(pages) + 1, Text: t})
	}

	if strings.Contains(text, "\f") {
		for _, part := range strings.Split(text, "\f") {
			appendPage(part)
		}
		return pages
	}

	runes := []rune(text)
	for start := 0; start < len(runes); start += pageSizeChars {
		end := start + pageSizeChars
		if end > len(runes) {
			end = len(runes)
		}
		appendPage(string(runes[start:end]))
	}
	return pages
}

type sidecarMetadata struct {
	Type     string `json:"type"`
	State    string `json:"state"`
	Category string `json:"category"`
}

// loadSidecarMetadata reads "<file>.meta.json" next to the document, if
// present. A missing sidecar yields empty metadata; a malformed one is a
// load error so tagging mistakes surface instead of silently untagged chunks.
func loadSidecarMetadata(path string) (domain.DocumentMetadata, error) {
	raw, err := os.ReadFile(path + ".meta.json")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.DocumentMetadata{}, nil
		}
		return domain.DocumentMetadata{}, domain.NewDomainErrorWithCause(domain.ErrCodeLoad,
			fmt.Sprintf("failed to read metadata sidecar for %s", filepath.Base(path)), err)
	}

	var sc sidecarMetadata
	if err := json.Unmarshal(raw, &sc); err != nil {
		return domain.DocumentMetadata{}, domain.NewDomainErrorWithCause(domain.ErrCodeLoad,
			fmt.Sprintf("invalid metadata sidecar for %s", filepath.Base(path)), err)
	}

	return domain.DocumentMetadata{
		Type:     domain.DocumentType(strings.ToLower(strings.TrimSpace(sc.Type))),
		State:    strings.ToLower(strings.TrimSpace(sc.State)),
		Category: strings.ToLower(strings.TrimSpace(sc.Category)),
	}, nil
}
