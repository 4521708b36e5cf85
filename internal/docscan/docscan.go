// Package docscan walks a WordprocessingML document part and yields its
// paragraphs in document order, each with its visible text, style, embedded
// drawing references and the exact byte range of its markup. Byte ranges let
// callers splice rewritten paragraph XML back into the part without
// re-serializing the whole document, which would scramble namespace prefixes.
package docscan

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"strings"

	"conserva/internal/headermap"
)

const wmlNS = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

// DrawingRef is one embedded object found inside a paragraph: a picture blip
// or a chart reference, with the relationship id to chase.
type DrawingRef struct {
	EmbedID    string // a:blip r:embed, empty for chart-only drawings
	ChartRelID string // c:chart r:id, empty for pictures
	Anchored   bool   // wp:anchor (floating) vs wp:inline
}

// Paragraph is one w:p element, wherever it sits (body or table cell).
type Paragraph struct {
	Index    int
	Start    int64 // byte offset of "<w:p" in the document part
	End      int64 // byte offset just past "</w:p>"
	XML      []byte
	Text     string
	Style    string
	Drawings []DrawingRef
}

// HeadingLevel derives the outline level of the paragraph: a Heading/Título
// style wins, otherwise a leading "1.2.3" numbering pattern in the text.
// Zero means not a heading.
func (p Paragraph) HeadingLevel() int {
	if m := headingStyle.FindStringSubmatch(p.Style); m != nil {
		level := 0
		for _, c := range m[2] {
			level = level*10 + int(c-'0')
		}
		if level > 0 {
			return level
		}
	}
	if m := headingNumber.FindStringSubmatch(p.Text); m != nil {
		return strings.Count(strings.TrimSuffix(m[1], "."), ".") + 1
	}
	return 0
}

var (
	headingStyle = regexp.MustCompile(`(?i)^(heading|ttulo|titulo)\s*([0-9]+)$`)
	// "1.6.1 Rodovias" or "12. Considerações"; a bare year like "2024 foi"
	// must not count, hence the mandatory dot for single-component numbers.
	headingNumber = regexp.MustCompile(`^\s*([0-9]+(?:\.[0-9]+)+\.?|[0-9]+\.)\s+\S`)
)

// Scan parses the document part and returns every paragraph in order.
func Scan(doc []byte) ([]Paragraph, error) {
	decoder := xml.NewDecoder(bytes.NewReader(doc))

	var paras []Paragraph
	var cur *Paragraph
	var stack []xml.Name
	var text strings.Builder
	depth := 0
	anchorNest := 0

	for {
		before := decoder.InputOffset()
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}

		switch t := token.(type) {
		case xml.StartElement:
			if cur == nil {
				if t.Name.Local == "p" && t.Name.Space == wmlNS {
					start := before + int64(bytes.IndexByte(doc[before:], '<'))
					cur = &Paragraph{Index: len(paras), Start: start}
					text.Reset()
					depth = 1
					anchorNest = 0
				}
				continue
			}

			depth++
			stack = append(stack, t.Name)
			switch t.Name.Local {
			case "anchor":
				anchorNest++
			case "pStyle":
				if cur.Style == "" {
					cur.Style = attr(t, "val")
				}
			case "br":
				if t.Name.Space == wmlNS {
					text.WriteByte('\n')
				}
			case "tab":
				if t.Name.Space == wmlNS {
					text.WriteByte('\t')
				}
			case "blip":
				if id := attr(t, "embed"); id != "" {
					cur.Drawings = append(cur.Drawings, DrawingRef{EmbedID: id, Anchored: anchorNest > 0})
				}
			case "chart":
				if id := attr(t, "id"); id != "" {
					cur.Drawings = append(cur.Drawings, DrawingRef{ChartRelID: id, Anchored: anchorNest > 0})
				}
			}

		case xml.EndElement:
			if cur == nil {
				continue
			}
			if len(stack) > 0 {
				if stack[len(stack)-1].Local == "anchor" {
					anchorNest--
				}
				stack = stack[:len(stack)-1]
			}
			depth--
			if depth == 0 {
				cur.End = decoder.InputOffset()
				cur.XML = doc[cur.Start:cur.End]
				cur.Text = text.String()
				paras = append(paras, *cur)
				cur = nil
			}

		case xml.CharData:
			if cur == nil || len(stack) == 0 {
				continue
			}
			leaf := stack[len(stack)-1]
			if leaf.Local == "t" && leaf.Space == wmlNS {
				text.Write(t)
			}
		}
	}

	if cur != nil {
		return nil, fmt.Errorf("scan document: unterminated paragraph at offset %d", cur.Start)
	}
	return paras, nil
}

func attr(start xml.StartElement, local string) string {
	for _, a := range start.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// Heading is one deduplicated document heading.
type Heading struct {
	Index int
	Level int
	Text  string
}

// Headings filters the paragraph list down to headings, dropping repeats of
// the same normalized text. Templates repeat section headings in headers and
// cross-references; only the first occurrence anchors content.
func Headings(paras []Paragraph) []Heading {
	var out []Heading
	seen := make(map[string]struct{})
	for _, p := range paras {
		level := p.HeadingLevel()
		if level == 0 {
			continue
		}
		key := headermap.Normalize(p.Text)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, Heading{Index: p.Index, Level: level, Text: strings.TrimSpace(p.Text)})
	}
	return out
}
