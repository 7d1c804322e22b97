package endoc

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/ksyjerry/fs-recon/internal/model"
)

// parseText splits a plain-text English report at numbered note headings.
// Bare page-number lines are dropped before splitting.
func parseText(path string) (*model.EnDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "endoc: read text file")
	}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if pageNumberRe.MatchString(strings.TrimSpace(line)) {
			continue
		}
		lines = append(lines, line)
	}

	sections, fullText := splitSections(lines)
	return buildDocument(filepath.Base(path), model.FormatText, sections, fullText), nil
}
