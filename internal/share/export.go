// Package share exports notes to files and publishes them as GitHub gists.
package share

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/starford/xnote/internal/models"
	"github.com/starford/xnote/internal/noteservice"
	"github.com/starford/xnote/internal/richtext"
	"github.com/starford/xnote/internal/storage"
)

var unsafeChars = regexp.MustCompile(`[\\/:*?"<>|\x00-\x1f]+`)

// FileName turns a note name into a safe file name with ext appended.
func FileName(name, ext string) string {
	base := strings.TrimSpace(unsafeChars.ReplaceAllString(name, "-"))
	base = strings.Trim(base, ". ")
	if base == "" {
		base = "note"
	}
	return base + ext
}

// ExportMarkdown writes the note as Markdown to dest. A dest that names an
// existing directory or ends in a separator gets the default file name.
// It returns the path written.
func ExportMarkdown(n models.Note, dest string) (string, error) {
	md, err := noteservice.Markdown(n)
	if err != nil {
		return "", fmt.Errorf("share: export markdown: %w", err)
	}
	return writeExport(resolveDest(dest, FileName(n.Name, ".md")), md)
}

// ExportHTML writes the note as a standalone HTML page to dest.
func ExportHTML(n models.Note, dest string) (string, error) {
	var body string
	if strings.TrimSpace(n.MDContent) != "" {
		rendered, err := richtext.RenderMarkdown(n.MDContent)
		if err != nil {
			return "", fmt.Errorf("share: export html: %w", err)
		}
		body = rendered
	} else {
		body = n.RichContent
	}
	page := "<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>" +
		richtext.EscapeHTML(n.Name) + "</title>\n</head>\n<body>\n" + body + "\n</body>\n</html>\n"
	return writeExport(resolveDest(dest, FileName(n.Name, ".html")), page)
}

func resolveDest(dest, defaultName string) string {
	if dest == "" {
		return defaultName
	}
	if strings.HasSuffix(dest, string(filepath.Separator)) || isDir(dest) {
		return filepath.Join(dest, defaultName)
	}
	return dest
}

func writeExport(path, content string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("share: resolve %s: %w", path, err)
	}
	if err := storage.WriteAtomic(abs, []byte(content), 0o644); err != nil {
		return "", err
	}
	return abs, nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
