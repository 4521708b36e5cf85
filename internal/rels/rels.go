package rels

import (
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"strings"
)

type Relationship struct {
	ID         string
	Type       string
	Target     string
	TargetMode string
}

// Rels is the parsed relationships part of one package part.
type Rels struct {
	ByID  map[string]Relationship
	order []string
}

func Parse(r io.Reader) (*Rels, error) {
	decoder := xml.NewDecoder(r)
	out := &Rels{ByID: map[string]Relationship{}}

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse rels: %w", err)
		}

		start, ok := token.(xml.StartElement)
		if !ok || start.Name.Local != "Relationship" {
			continue
		}

		rel := Relationship{}
		for _, attr := range start.Attr {
			switch strings.ToLower(attr.Name.Local) {
			case "id":
				rel.ID = attr.Value
			case "type":
				rel.Type = attr.Value
			case "target":
				rel.Target = attr.Value
			case "targetmode":
				rel.TargetMode = attr.Value
			}
		}

		if rel.ID == "" {
			continue
		}
		if _, dup := out.ByID[rel.ID]; !dup {
			out.order = append(out.order, rel.ID)
		}
		out.ByID[rel.ID] = rel
	}

	return out, nil
}

func (r *Rels) Resolve(id string) (Relationship, bool) {
	if r == nil || r.ByID == nil {
		return Relationship{}, false
	}
	rel, ok := r.ByID[id]
	return rel, ok
}

// ByTypeSuffix returns, in document order, every internal relationship whose
// type URI ends with the given suffix (e.g. "/drawing", "/chart").
func (r *Rels) ByTypeSuffix(suffix string) []Relationship {
	if r == nil {
		return nil
	}
	var out []Relationship
	for _, id := range r.order {
		rel := r.ByID[id]
		if rel.TargetMode == "External" {
			continue
		}
		if strings.HasSuffix(rel.Type, suffix) {
			out = append(out, rel)
		}
	}
	return out
}

// ResolveTarget resolves a relationship target against the directory of the
// part that owns the relationships file, not the rels file itself. External
// targets should be filtered by the caller before resolving.
func ResolveTarget(basePart string, relTarget string) string {
	if relTarget == "" {
		return ""
	}

	cleanTarget := strings.TrimLeft(relTarget, "/")
	joined := path.Join(path.Dir(basePart), cleanTarget)
	joined = path.Clean(joined)
	return strings.TrimLeft(joined, "/")
}

// PathFor returns the conventional rels part path for a package part, e.g.
// "xl/worksheets/sheet1.xml" -> "xl/worksheets/_rels/sheet1.xml.rels".
func PathFor(partPath string) string {
	return path.Join(path.Dir(partPath), "_rels", path.Base(partPath)+".rels")
}
