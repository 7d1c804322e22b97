// Package dsd parses Korean DSD disclosure files into structured notes.
// The DSD container is a zip holding a single semi-structured XML payload;
// extraction walks the XML into ordered text segments, a judge call (with a
// regex fallback) finds note boundaries, and a per-note judge call extracts
// line items and amount cells.
package dsd

import (
	"archive/zip"
	"encoding/xml"
	"io"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/htmlindex"
)

// SegmentKind distinguishes paragraph text from tabular rows.
type SegmentKind string

const (
	KindParagraph SegmentKind = "p"
	KindTable     SegmentKind = "table"
)

// Segment is one ordered unit of extracted document text. Table segments
// carry the row-major cell grid alongside the tab/newline rendering.
// The "&cr;" inline newline marker is preserved literally here and only
// expanded when a note's full text is assembled.
type Segment struct {
	Kind SegmentKind
	Text string
	Rows [][]string
}

// Tags treated as paragraphs. Paragraph tags are captured whole and never
// recursed into, so their sub-runs are not emitted twice.
var paraTags = map[string]bool{
	"P": true, "PARA": true, "PARAGRAPH": true, "TEXT": true,
	"TITLE": true, "SUBTITLE": true, "LI": true, "ITEM": true, "NOTE": true,
}

// Metadata container tags skipped entirely, never descended into.
var skipTags = []string{
	"DOCUMENT-HEADER", "DOCUMENT-INFO", "GENERATOR", "EXTRACTION",
	"SCHEMA", "HEADER", "METADATA",
}

var rowTags = map[string]bool{"ROW": true, "TR": true, "R": true}

var wsRe = regexp.MustCompile(`\s+`)

// xmlNode is a generic XML tree node. Chardata directly inside the element
// (including text between children) accumulates in Text.
type xmlNode struct {
	XMLName  xml.Name
	Text     string    `xml:",chardata"`
	Children []xmlNode `xml:",any"`
}

// ExtractSegments reads the DSD zip and converts its contents XML into an
// ordered segment list. Malformed markup gets one repair attempt (escaping
// bare ampersands); if both parses fail the whole run aborts.
func ExtractSegments(path string) ([]Segment, error) {
	xmlStr, err := readContentsXML(path)
	if err != nil {
		return nil, err
	}

	root, err := parseXML(xmlStr)
	if err != nil {
		repaired := escapeBareAmpersands(xmlStr)
		root, err = parseXML(repaired)
		if err != nil {
			return nil, eris.Wrap(err, "dsd: parse contents XML")
		}
	}

	var segments []Segment
	traverse(root, &segments)

	deduped := dedupeAdjacent(segments)
	zap.L().Debug("dsd: extracted segments", zap.Int("count", len(deduped)))
	return deduped, nil
}

// readContentsXML locates the contents XML inside the DSD zip and decodes
// it to UTF-8, trying EUC-KR/CP949 when the bytes are not valid UTF-8.
func readContentsXML(path string) (string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return "", eris.Wrap(err, "dsd: open archive")
	}
	defer r.Close() //nolint:errcheck

	for _, f := range r.File {
		name := strings.ToLower(f.Name)
		if !strings.Contains(name, "contents") || !strings.HasSuffix(name, ".xml") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", eris.Wrap(err, "dsd: open contents entry")
		}
		data, err := io.ReadAll(rc)
		rc.Close() //nolint:errcheck
		if err != nil {
			return "", eris.Wrap(err, "dsd: read contents entry")
		}
		return decodeToUTF8(data), nil
	}

	return "", eris.Errorf("dsd: no contents XML found in %s", path)
}

// decodeToUTF8 strips a BOM and decodes the payload, preferring UTF-8 and
// falling back through Korean legacy encodings, then lossy UTF-8.
func decodeToUTF8(data []byte) string {
	data = stripBOM(data)
	if utf8.Valid(data) {
		return string(data)
	}
	for _, charset := range []string{"euc-kr", "windows-949"} {
		enc, err := htmlindex.Get(charset)
		if err != nil {
			continue
		}
		decoded, err := enc.NewDecoder().Bytes(data)
		if err == nil && utf8.Valid(decoded) {
			return string(decoded)
		}
	}
	return strings.ToValidUTF8(string(data), "�")
}

func stripBOM(data []byte) []byte {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		return data[3:]
	}
	return data
}

// parseXML decodes an already-UTF-8 document; the charset reader passes
// input through so stale encoding declarations don't fail the parse.
func parseXML(xmlStr string) (*xmlNode, error) {
	dec := xml.NewDecoder(strings.NewReader(xmlStr))
	dec.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		return input, nil
	}
	var root xmlNode
	if err := dec.Decode(&root); err != nil {
		return nil, eris.Wrap(err, "dsd: decode XML")
	}
	return &root, nil
}

var entityRe = regexp.MustCompile(`^&(?:amp|lt|gt|quot|apos|#[0-9]+|#x[0-9a-fA-F]+);`)

// escapeBareAmpersands rewrites "&" to "&amp;" unless it already begins a
// recognized entity reference.
func escapeBareAmpersands(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '&' {
			b.WriteByte(s[i])
			continue
		}
		if loc := entityRe.FindStringIndex(s[i:]); loc != nil {
			b.WriteString(s[i : i+loc[1]])
			i += loc[1] - 1
			continue
		}
		b.WriteString("&amp;")
	}
	return b.String()
}

func traverse(n *xmlNode, segments *[]Segment) {
	tag := strings.ToUpper(n.XMLName.Local)

	for _, skip := range skipTags {
		if strings.Contains(tag, skip) {
			return
		}
	}

	// Tables become one row-major segment; never recurse inside.
	if strings.Contains(tag, "TABLE") || tag == "TBL" || tag == "TABL" {
		rows := tableRows(n)
		if len(rows) > 0 {
			*segments = append(*segments, Segment{
				Kind: KindTable,
				Text: rowsToText(rows),
				Rows: rows,
			})
		}
		return
	}

	isPara := paraTags[tag]
	isLeaf := len(n.Children) == 0

	if isPara || isLeaf {
		text := collapseWS(innerText(n))
		if keepText(text) {
			*segments = append(*segments, Segment{Kind: KindParagraph, Text: text})
		}
		if isPara {
			return
		}
	}

	// Direct text of a container element (tails included).
	if t := collapseWS(n.Text); !isLeaf && keepText(t) {
		*segments = append(*segments, Segment{Kind: KindParagraph, Text: t})
	}

	for i := range n.Children {
		traverse(&n.Children[i], segments)
	}
}

// tableRows collects ROW/TR/R descendants as cell slices; a table without
// row structure collapses to a single-cell row of its full text.
func tableRows(n *xmlNode) [][]string {
	var rows [][]string
	var walk func(node *xmlNode)
	walk = func(node *xmlNode) {
		if rowTags[strings.ToUpper(node.XMLName.Local)] {
			var cells []string
			nonEmpty := false
			for i := range node.Children {
				cell := collapseWS(innerText(&node.Children[i]))
				cells = append(cells, cell)
				if cell != "" {
					nonEmpty = true
				}
			}
			if nonEmpty {
				rows = append(rows, cells)
			}
			return
		}
		for i := range node.Children {
			walk(&node.Children[i])
		}
	}
	walk(n)

	if len(rows) == 0 {
		if text := collapseWS(innerText(n)); text != "" {
			rows = append(rows, []string{text})
		}
	}
	return rows
}

func rowsToText(rows [][]string) string {
	lines := make([]string, len(rows))
	for i, cells := range rows {
		lines[i] = strings.Join(cells, "\t")
	}
	return strings.Join(lines, "\n")
}

// innerText concatenates all character data under the node.
func innerText(n *xmlNode) string {
	var b strings.Builder
	var walk func(node *xmlNode)
	walk = func(node *xmlNode) {
		if node.Text != "" {
			b.WriteString(node.Text)
			b.WriteString(" ")
		}
		for i := range node.Children {
			walk(&node.Children[i])
		}
	}
	walk(n)
	return b.String()
}

func collapseWS(s string) string {
	return strings.TrimSpace(wsRe.ReplaceAllString(s, " "))
}

// keepText drops empty segments, bare "&cr;" markers, and stray single
// characters other than the "-" null-amount placeholder.
func keepText(text string) bool {
	if text == "" || text == "&cr;" {
		return false
	}
	return utf8.RuneCountInString(text) > 1 || text == "-"
}

func dedupeAdjacent(segments []Segment) []Segment {
	var out []Segment
	for _, seg := range segments {
		if len(out) > 0 {
			last := out[len(out)-1]
			if last.Kind == seg.Kind && last.Text == seg.Text {
				continue
			}
		}
		out = append(out, seg)
	}
	return out
}
