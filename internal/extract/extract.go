// Package extract provides plain-text extraction for the ingestion surface:
// uploaded files (plain text, PDF) and web pages fetched by URL.
package extract

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	readability "github.com/go-shiori/go-readability"

	"github.com/mohammad-safakhou/ragkb/internal/apperr"
)

// FromBytes extracts text from content based on the file extension.
// ext should include the leading dot (e.g. ".pdf").
func FromBytes(content []byte, ext string) (string, error) {
	switch strings.ToLower(ext) {
	case ".pdf":
		return extractPDF(content)
	case ".txt", ".md", ".rst", "":
		return extractPlain(content)
	default:
		return "", apperr.InvalidParameter("file", fmt.Sprintf("unsupported extension %q", ext))
	}
}

// FromFilename extracts text using the extension of name.
func FromFilename(name string, content []byte) (string, error) {
	return FromBytes(content, filepath.Ext(name))
}

func extractPlain(content []byte) (string, error) {
	if !utf8.Valid(content) {
		content = []byte(strings.ToValidUTF8(string(content), "�"))
	}
	return string(content), nil
}

// Page is the readable content of a fetched web page.
type Page struct {
	Title string
	Text  string
}

// FromURL fetches pageURL and extracts its main readable text.
func FromURL(pageURL string, timeout time.Duration) (Page, error) {
	if strings.TrimSpace(pageURL) == "" {
		return Page{}, apperr.InvalidParameter("url", "is required")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	article, err := readability.FromURL(pageURL, timeout)
	if err != nil {
		return Page{}, apperr.Upstream("fetch url", err)
	}
	text := strings.TrimSpace(article.TextContent)
	if text == "" {
		return Page{}, apperr.Upstream("fetch url", fmt.Errorf("no readable text at %s", pageURL))
	}
	return Page{Title: strings.TrimSpace(article.Title), Text: text}, nil
}
