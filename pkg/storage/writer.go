// Package storage persists finished crawl results to the local filesystem.
// Each session gets its own directory named after the article title, holding
// the rendered document, the screenshot and an image manifest.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/wutongci/wxcrawl/pkg/crawler"
	"github.com/wutongci/wxcrawl/pkg/logging"
)

// Writer implements crawler.Saver on top of a local output directory.
type Writer struct {
	dir string
	log *logging.Logger
}

// NewWriter creates the output directory if needed.
func NewWriter(dir string) (*Writer, error) {
	if dir == "" {
		dir = "output"
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	log, _ := logging.NewLogger("storage")
	return &Writer{dir: dir, log: log}, nil
}

// Save writes the result under a per-session directory and returns the path
// of the main document.
func (w *Writer) Save(res *crawler.Result, screenshot []byte, format string) (string, error) {
	sessionDir := filepath.Join(w.dir, w.dirName(res))
	if err := os.MkdirAll(sessionDir, 0750); err != nil {
		return "", fmt.Errorf("failed to create session directory: %w", err)
	}

	var docPath string
	var err error
	switch format {
	case crawler.FormatJSON:
		docPath, err = w.writeJSON(sessionDir, res)
	default:
		docPath, err = w.writeMarkdown(sessionDir, res)
	}
	if err != nil {
		return "", err
	}

	if len(screenshot) > 0 {
		shotPath := filepath.Join(sessionDir, "screenshot.png")
		if err := os.WriteFile(shotPath, screenshot, 0640); err != nil {
			// The document is already on disk; a lost screenshot is
			// not worth failing the save.
			w.log.Warnf("failed to write screenshot: %v", err)
		}
	}

	if len(res.Images) > 0 {
		manifest := filepath.Join(sessionDir, "images.txt")
		data := strings.Join(res.Images, "\n") + "\n"
		if err := os.WriteFile(manifest, []byte(data), 0640); err != nil {
			w.log.Warnf("failed to write image manifest: %v", err)
		}
	}

	return docPath, nil
}

func (w *Writer) writeMarkdown(dir string, res *crawler.Result) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", res.Title)
	fmt.Fprintf(&b, "> 作者: %s", res.Author)
	if res.PublishedAt != "" {
		fmt.Fprintf(&b, " | 发布时间: %s", res.PublishedAt)
	}
	fmt.Fprintf(&b, "\n> 原文: %s\n\n", res.URL)
	b.WriteString(res.Content)
	b.WriteString("\n")

	path := filepath.Join(dir, "article.md")
	if err := os.WriteFile(path, []byte(b.String()), 0640); err != nil {
		return "", fmt.Errorf("failed to write markdown: %w", err)
	}
	return path, nil
}

func (w *Writer) writeJSON(dir string, res *crawler.Result) (string, error) {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal result: %w", err)
	}
	path := filepath.Join(dir, "article.json")
	if err := os.WriteFile(path, append(data, '\n'), 0640); err != nil {
		return "", fmt.Errorf("failed to write json: %w", err)
	}
	return path, nil
}

// dirName derives a filesystem-safe directory name from the article title,
// falling back to the session id when the title is the unknown sentinel.
func (w *Writer) dirName(res *crawler.Result) string {
	name := sanitizeName(res.Title)
	if name == "" || strings.HasPrefix(res.Title, "unknown") {
		name = shortID(res.SessionID)
	}
	return fmt.Sprintf("%s-%s", res.CrawledAt.Format("20060102-150405"), name)
}

var unsafeChars = strings.NewReplacer(
	"/", "-", "\\", "-", ":", "-", "*", "-", "?", "-",
	"\"", "-", "<", "-", ">", "-", "|", "-", " ", "_",
)

func sanitizeName(title string) string {
	name := unsafeChars.Replace(strings.TrimSpace(title))
	const maxLen = 60
	if len(name) > maxLen {
		cut := name[:maxLen]
		// Don't split a multi-byte rune
		for len(cut) > 0 && !utf8.ValidString(cut) {
			cut = cut[:len(cut)-1]
		}
		name = cut
	}
	return name
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	if id == "" {
		return fmt.Sprintf("session-%d", time.Now().Unix())
	}
	return id
}
