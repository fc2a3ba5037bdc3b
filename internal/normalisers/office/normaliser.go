// Package office extracts text from Office Open XML files: Word documents,
// Excel workbooks and PowerPoint decks. All three are zip archives of XML
// parts; only the text-bearing parts are read.
package office

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/custodia-labs/tankfinder/internal/core/domain"
	"github.com/custodia-labs/tankfinder/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles .docx, .xlsx, .xlsm and .pptx files.
type Normaliser struct {
	sheetLimit int
	cellLimit  int
}

// New creates an Office normaliser. Workbooks contribute at most
// cellLimit strings from each of the first sheetLimit sheets.
func New(sheetLimit, cellLimit int) *Normaliser {
	return &Normaliser{sheetLimit: sheetLimit, cellLimit: cellLimit}
}

// SupportedExtensions returns the extensions this normaliser handles.
func (n *Normaliser) SupportedExtensions() []string {
	return []string{".docx", ".xlsx", ".xlsm", ".pptx"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50
}

// Normalise returns the document's text.
func (n *Normaliser) Normalise(ctx context.Context, raw *domain.RawFile) (string, error) {
	if raw == nil || raw.Content == nil {
		return "", domain.ErrInvalidInput
	}

	reader, err := zip.NewReader(raw.Content, raw.Size)
	if err != nil {
		return "", fmt.Errorf("%w: not an office archive: %v", domain.ErrInvalidInput, err)
	}

	switch raw.Ext {
	case ".docx":
		return extractDocumentText(reader)
	case ".xlsx", ".xlsm":
		return n.extractWorkbookText(ctx, reader)
	case ".pptx":
		return extractSlidesText(ctx, reader)
	default:
		return "", fmt.Errorf("%w: unsupported extension %q", domain.ErrInvalidInput, raw.Ext)
	}
}

// extractDocumentText extracts text from word/document.xml.
func extractDocumentText(reader *zip.Reader) (string, error) {
	content, err := readPart(reader, "word/document.xml")
	if err != nil || content == nil {
		return "", err
	}
	return parseDocumentXML(content), nil
}

// documentXML represents the structure of word/document.xml.
type documentXML struct {
	Body struct {
		Paragraphs []paragraph `xml:"p"`
		Tables     []struct {
			Rows []struct {
				Cells []struct {
					Paragraphs []paragraph `xml:"p"`
				} `xml:"tc"`
			} `xml:"tr"`
		} `xml:"tbl"`
	} `xml:"body"`
}

type paragraph struct {
	Runs []run `xml:"r"`
}

type run struct {
	Text []textElement `xml:"t"`
}

type textElement struct {
	Content string `xml:",chardata"`
}

func (p paragraph) text() string {
	var sb strings.Builder
	for _, r := range p.Runs {
		for _, t := range r.Text {
			sb.WriteString(t.Content)
		}
	}
	return sb.String()
}

// parseDocumentXML extracts paragraphs, then table cells.
func parseDocumentXML(content []byte) string {
	var doc documentXML
	if err := xml.Unmarshal(content, &doc); err != nil {
		return ""
	}

	var lines []string
	for _, para := range doc.Body.Paragraphs {
		if t := para.text(); t != "" {
			lines = append(lines, t)
		}
	}
	for _, tbl := range doc.Body.Tables {
		for _, row := range tbl.Rows {
			for _, cell := range row.Cells {
				for _, para := range cell.Paragraphs {
					if t := para.text(); t != "" {
						lines = append(lines, t)
					}
				}
			}
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// extractWorkbookText reads the shared string table, which holds every
// text cell of the workbook. Sheet limits apply to the inline strings
// of each worksheet.
func (n *Normaliser) extractWorkbookText(ctx context.Context, reader *zip.Reader) (string, error) {
	var parts []string

	if shared, err := readPart(reader, "xl/sharedStrings.xml"); err != nil {
		return "", err
	} else if shared != nil {
		limit := 0
		if n.cellLimit > 0 && n.sheetLimit > 0 {
			limit = n.cellLimit * n.sheetLimit
		}
		parts = append(parts, collectText(shared, "t", limit)...)
	}

	sheets := numberedParts(reader, "xl/worksheets/sheet")
	if n.sheetLimit > 0 && len(sheets) > n.sheetLimit {
		sheets = sheets[:n.sheetLimit]
	}
	for _, name := range sheets {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		content, err := readPart(reader, name)
		if err != nil {
			return "", err
		}
		parts = append(parts, collectText(content, "t", n.cellLimit)...)
	}

	return strings.Join(parts, " "), nil
}

// extractSlidesText reads every slide in order.
func extractSlidesText(ctx context.Context, reader *zip.Reader) (string, error) {
	var parts []string
	for _, name := range numberedParts(reader, "ppt/slides/slide") {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		content, err := readPart(reader, name)
		if err != nil {
			return "", err
		}
		parts = append(parts, collectText(content, "t", 0)...)
	}
	return strings.Join(parts, " "), nil
}

// readPart returns a part's bytes, or nil if the part is absent.
func readPart(reader *zip.Reader, name string) ([]byte, error) {
	for _, file := range reader.File {
		if file.Name != name {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", name, err)
		}
		defer rc.Close()
		content, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		return content, nil
	}
	return nil, nil
}

// numberedParts lists prefixN.xml parts sorted by N.
func numberedParts(reader *zip.Reader, prefix string) []string {
	type part struct {
		name string
		n    int
	}
	var parts []part
	for _, file := range reader.File {
		rest, ok := strings.CutPrefix(file.Name, prefix)
		if !ok {
			continue
		}
		num, ok := strings.CutSuffix(rest, ".xml")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(num)
		if err != nil {
			continue
		}
		parts = append(parts, part{name: file.Name, n: n})
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].n < parts[j].n })

	names := make([]string, len(parts))
	for i, p := range parts {
		names[i] = p.name
	}
	return names
}

// collectText returns the character data of every element with the given
// local name, stopping after limit values when limit is positive.
func collectText(content []byte, local string, limit int) []string {
	dec := xml.NewDecoder(bytes.NewReader(content))
	var out []string
	depth := 0
	var sb strings.Builder
	for {
		tok, err := dec.Token()
		if err != nil {
			return out
		}
		switch el := tok.(type) {
		case xml.StartElement:
			if el.Name.Local == local {
				depth++
			}
		case xml.EndElement:
			if el.Name.Local == local && depth > 0 {
				depth--
				if s := strings.TrimSpace(sb.String()); s != "" {
					out = append(out, s)
					if limit > 0 && len(out) >= limit {
						return out
					}
				}
				sb.Reset()
			}
		case xml.CharData:
			if depth > 0 {
				sb.Write(el)
			}
		}
	}
}
