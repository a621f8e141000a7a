package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"

	"github.com/lu4p/cat"
)

// DocumentExtensions lists the word processor formats ExtractBytes converts to text.
var DocumentExtensions = []string{".docx", ".odt", ".rtf"}

const docxBodyPath = "word/document.xml"

// wordText matches <w:t> runs with or without attributes.
var wordText = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)

// wordParagraphEnd separates paragraphs so they survive as lines.
var wordParagraphEnd = regexp.MustCompile(`</w:p>`)

func extractDocument(content []byte, ext string) (string, error) {
	if ext == ".docx" {
		return extractDOCX(content)
	}
	text, err := cat.FromBytes(content)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", strings.TrimPrefix(ext, "."), err)
	}
	return strings.TrimSpace(text), nil
}

// extractDOCX reads the text runs of word/document.xml. cat only matches bare <w:p> tags, so
// paragraphs carrying rsid attributes would come back empty.
func extractDOCX(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("extract docx: not a zip: %w", err)
	}
	f, err := zr.Open(docxBodyPath)
	if err != nil {
		return "", fmt.Errorf("extract docx: %w", err)
	}
	defer f.Close()
	body, err := io.ReadAll(f)
	if err != nil {
		return "", fmt.Errorf("extract docx: read %s: %w", docxBodyPath, err)
	}
	var lines []string
	for _, para := range wordParagraphEnd.Split(string(body), -1) {
		var b strings.Builder
		for _, m := range wordText.FindAllStringSubmatch(para, -1) {
			b.WriteString(html.UnescapeString(m[1]))
		}
		if line := strings.TrimSpace(b.String()); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n"), nil
}
