package rag

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	chunkSize    = 1000
	chunkOverlap = 200
)

// LoadDirectory reads every .txt and .md file under dir (non-recursive) and
// splits the contents into overlapping chunks ready for indexing. A missing
// directory yields no documents rather than an error.
func LoadDirectory(dir string) ([]Document, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("rag: read knowledge dir: %w", err)
	}

	var docs []Document
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".txt" && ext != ".md" {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("rag: read %s: %w", entry.Name(), err)
		}
		for _, chunk := range splitText(string(raw)) {
			docs = append(docs, Document{Source: entry.Name(), Content: chunk})
		}
	}
	return docs, nil
}

// splitText cuts text into chunks of roughly chunkSize runes with
// chunkOverlap carried between neighbors, preferring paragraph breaks.
func splitText(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	runes := []rune(text)
	if len(runes) <= chunkSize {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + chunkSize
		if end >= len(runes) {
			chunks = append(chunks, strings.TrimSpace(string(runes[start:])))
			break
		}
		cut := end
		if idx := lastBreak(runes[start:end]); idx > chunkSize/2 {
			cut = start + idx
		}
		chunks = append(chunks, strings.TrimSpace(string(runes[start:cut])))
		start = cut - chunkOverlap
		if start < 0 {
			start = 0
		}
	}
	return chunks
}

// lastBreak finds the latest paragraph or line break in the window.
func lastBreak(window []rune) int {
	s := string(window)
	if idx := strings.LastIndex(s, "\n\n"); idx > 0 {
		return len([]rune(s[:idx]))
	}
	if idx := strings.LastIndex(s, "\n"); idx > 0 {
		return len([]rune(s[:idx]))
	}
	return -1
}
