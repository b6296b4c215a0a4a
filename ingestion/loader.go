package ingestion

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/tmc/langchaingo/documentloaders"
	"github.com/tmc/langchaingo/schema"
)

const (
	// MetadataSource is the passage metadata key holding the originating source.
	MetadataSource = "source"
	// MetadataTitle holds the <title> of an HTML source, when it has one.
	MetadataTitle = "title"

	// DefaultSelector picks the paragraphs of an HTML page, leaving out
	// navigation, headers and footers.
	DefaultSelector = "p"
)

// loader turns a source string into documents.
type loader struct {
	client    *http.Client
	userAgent string
	selector  string // CSS selector for HTML text; empty takes the whole page
}

// load reads one source. Remote sources are fetched over http(s), everything
// else is treated as a local path.
func (l *loader) load(ctx context.Context, source string) ([]schema.Document, error) {
	var (
		docs []schema.Document
		err  error
	)
	if isRemote(source) {
		docs, err = l.fetch(ctx, source)
	} else {
		docs, err = l.loadFile(ctx, source)
	}
	if err != nil {
		return nil, err
	}
	for i := range docs {
		if docs[i].Metadata == nil {
			docs[i].Metadata = make(map[string]any, 1)
		}
		docs[i].Metadata[MetadataSource] = source
	}
	return docs, nil
}

func isRemote(source string) bool {
	u, err := url.Parse(source)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func (l *loader) fetch(ctx context.Context, source string) ([]schema.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", source, err)
	}
	if l.userAgent != "" {
		req.Header.Set("User-Agent", l.userAgent)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", source, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s: %s", ErrFetchFailed, source, resp.Status)
	}

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	isHTML := contentType == "" || strings.Contains(contentType, "html")
	return l.parse(ctx, resp.Body, isHTML)
}

func (l *loader) loadFile(ctx context.Context, path string) ([]schema.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	ext := strings.ToLower(filepath.Ext(path))
	return l.parse(ctx, f, ext == ".html" || ext == ".htm")
}

func (l *loader) parse(ctx context.Context, r io.Reader, isHTML bool) ([]schema.Document, error) {
	switch {
	case isHTML && l.selector != "":
		return selectText(r, l.selector)
	case isHTML:
		return documentloaders.NewHTML(r).Load(ctx)
	default:
		return documentloaders.NewText(r).Load(ctx)
	}
}

// selectText returns one document holding the text of every element matching
// selector, one element per line. A page with no matching text yields nothing.
func selectText(r io.Reader, selector string) ([]schema.Document, error) {
	page, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parsing html: %w", err)
	}

	var parts []string
	page.Find(selector).Each(func(_ int, s *goquery.Selection) {
		if text := strings.Join(strings.Fields(s.Text()), " "); text != "" {
			parts = append(parts, text)
		}
	})
	if len(parts) == 0 {
		return nil, nil
	}

	metadata := make(map[string]any, 2)
	if title := strings.TrimSpace(page.Find("title").First().Text()); title != "" {
		metadata[MetadataTitle] = title
	}
	return []schema.Document{{PageContent: strings.Join(parts, "\n"), Metadata: metadata}}, nil
}
