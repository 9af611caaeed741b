package extract

import (
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
)

var multiSpaceRe = regexp.MustCompile(` +`)

// FromPDF extracts text from a PDF, page by page. Pages that fail to decode
// are skipped. Pages are labeled so chunk text retains a coarse position hint.
func FromPDF(r io.ReaderAt, size int64, filename string) (*Document, error) {
	if size > MaxUploadSize {
		return nil, fmt.Errorf("extract: file size %d exceeds maximum %d bytes", size, MaxUploadSize)
	}

	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("extract: reading pdf: %w", err)
	}

	pageCount := reader.NumPage()
	var pages []string
	for i := 1; i <= pageCount; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			slog.Warn("skipping unreadable pdf page", "page", i, "error", err)
			continue
		}
		if cleaned := cleanPDFText(text); cleaned != "" {
			pages = append(pages, fmt.Sprintf("[Page %d]\n%s", i, cleaned))
		}
	}
	if len(pages) == 0 {
		return nil, ErrNoContent
	}

	return &Document{
		Content: strings.Join(pages, "\n\n"),
		Title:   filename,
		Metadata: map[string]string{
			"filename":   filename,
			"page_count": strconv.Itoa(pageCount),
		},
	}, nil
}

// cleanPDFText trims each line, drops empty ones and collapses runs of
// spaces left behind by the extractor.
func cleanPDFText(text string) string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return multiSpaceRe.ReplaceAllString(strings.Join(lines, "\n"), " ")
}
