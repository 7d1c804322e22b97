package endoc

import (
	"archive/zip"
	"encoding/xml"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/ksyjerry/fs-recon/internal/model"
)

// wordNode is a generic WordprocessingML tree node. Only local names
// matter; the w: namespace prefix is ignored.
type wordNode struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Text     string     `xml:",chardata"`
	Children []wordNode `xml:",any"`
}

// parseDocx reads word/document.xml from the DOCX zip and splits the body
// into note sections at heading-styled or note-numbered paragraphs. Tables
// are rendered as tab/newline grids inside whichever section they fall in.
func parseDocx(path string) (*model.EnDocument, error) {
	body, err := readDocumentXML(path)
	if err != nil {
		return nil, err
	}

	var (
		sections []section
		fullText []string
		counter  int
	)

	// Text before the first note survives only in FullRawText.
	appendLine := func(line string) {
		fullText = append(fullText, line)
		if len(sections) > 0 {
			cur := &sections[len(sections)-1]
			cur.lines = append(cur.lines, line)
		}
	}

	var walkBlocks func(n *wordNode)
	walkBlocks = func(n *wordNode) {
		for i := range n.Children {
			child := &n.Children[i]
			switch child.XMLName.Local {
			case "p":
				text := paragraphText(child)
				if text == "" || pageNumberRe.MatchString(text) {
					continue
				}
				if num, title, ok := splitHeading(child, text, counter); ok {
					counter++
					sections = append(sections, section{
						number: num,
						title:  title,
						lines:  []string{text},
					})
					fullText = append(fullText, text)
					continue
				}
				appendLine(text)
			case "tbl":
				if grid := tableText(child); grid != "" {
					appendLine(grid)
				}
			default:
				walkBlocks(child)
			}
		}
	}
	walkBlocks(body)

	return buildDocument(filepath.Base(path), model.FormatWord, sections, strings.Join(fullText, "\n")), nil
}

// readDocumentXML returns the parsed <w:body> of word/document.xml.
func readDocumentXML(path string) (*wordNode, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, eris.Wrap(err, "endoc: open docx archive")
	}
	defer r.Close() //nolint:errcheck

	for _, f := range r.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, eris.Wrap(err, "endoc: open document.xml")
		}
		data, err := io.ReadAll(rc)
		rc.Close() //nolint:errcheck
		if err != nil {
			return nil, eris.Wrap(err, "endoc: read document.xml")
		}

		var root wordNode
		if err := xml.Unmarshal(data, &root); err != nil {
			return nil, eris.Wrap(err, "endoc: parse document.xml")
		}
		if body := findChild(&root, "body"); body != nil {
			return body, nil
		}
		return nil, eris.New("endoc: document.xml has no body element")
	}

	return nil, eris.Errorf("endoc: no word/document.xml in %s", path)
}

// splitHeading decides whether a paragraph opens a new note section.
// Heading-styled paragraphs always do; otherwise the note-number pattern
// ("N. Title") is required. The running counter supplies a number when the
// heading text itself carries none.
func splitHeading(p *wordNode, text string, counter int) (number, title string, ok bool) {
	styled := isHeadingStyle(p)

	if m := noteHeadingRe.FindStringSubmatch(text); m != nil && !subNumberRe.MatchString(strings.TrimSpace(text)) {
		return m[1], strings.TrimSpace(m[2]), true
	}
	if styled {
		return strconv.Itoa(counter + 1), text, true
	}
	return "", "", false
}

// isHeadingStyle reports whether the paragraph carries a Heading pStyle.
func isHeadingStyle(p *wordNode) bool {
	pPr := findChild(p, "pPr")
	if pPr == nil {
		return false
	}
	style := findChild(pPr, "pStyle")
	if style == nil {
		return false
	}
	for _, a := range style.Attrs {
		if a.Name.Local == "val" && strings.HasPrefix(strings.ToLower(a.Value), "heading") {
			return true
		}
	}
	return false
}

// paragraphText joins all run text under a paragraph.
func paragraphText(p *wordNode) string {
	var b strings.Builder
	var walk func(n *wordNode)
	walk = func(n *wordNode) {
		switch n.XMLName.Local {
		case "t":
			b.WriteString(n.Text)
			return
		case "tab":
			b.WriteString("\t")
		case "br", "cr":
			b.WriteString(" ")
		}
		for i := range n.Children {
			walk(&n.Children[i])
		}
	}
	walk(p)
	return strings.TrimSpace(b.String())
}

// tableText renders a table as tab-joined cells, one row per line.
func tableText(tbl *wordNode) string {
	var lines []string
	for i := range tbl.Children {
		row := &tbl.Children[i]
		if row.XMLName.Local != "tr" {
			continue
		}
		var cells []string
		for k := range row.Children {
			cell := &row.Children[k]
			if cell.XMLName.Local != "tc" {
				continue
			}
			var parts []string
			for m := range cell.Children {
				if cell.Children[m].XMLName.Local == "p" {
					if t := paragraphText(&cell.Children[m]); t != "" {
						parts = append(parts, t)
					}
				}
			}
			cells = append(cells, strings.Join(parts, " "))
		}
		if len(cells) > 0 {
			lines = append(lines, strings.Join(cells, "\t"))
		}
	}
	return strings.Join(lines, "\n")
}

func findChild(n *wordNode, local string) *wordNode {
	for i := range n.Children {
		if n.Children[i].XMLName.Local == local {
			return &n.Children[i]
		}
	}
	return nil
}
