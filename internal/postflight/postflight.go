// Package postflight sanity-checks a rewritten document package before it is
// handed to the user: relationship files must parse, internal targets must
// resolve to parts that exist, and the main document part must still be
// well-formed XML. Word is unforgiving about any of these.
package postflight

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"conserva/internal/ooxmlpkg"
	"conserva/internal/rels"
)

// Issue is one defect found in the package.
type Issue struct {
	Part   string
	Detail string
}

func (i Issue) String() string {
	return i.Part + ": " + i.Detail
}

// Check inspects the package and returns all issues found. A nil slice means
// the package passed.
func Check(pkg *ooxmlpkg.Package) []Issue {
	var issues []Issue

	for _, part := range pkg.ListParts() {
		if !strings.HasSuffix(part, ".rels") {
			continue
		}

		data, err := pkg.ReadPart(part)
		if err != nil {
			issues = append(issues, Issue{Part: part, Detail: fmt.Sprintf("unreadable: %v", err)})
			continue
		}
		parsed, err := rels.Parse(bytes.NewReader(data))
		if err != nil {
			issues = append(issues, Issue{Part: part, Detail: fmt.Sprintf("malformed: %v", err)})
			continue
		}

		owner := ownerOf(part)
		for id, rel := range parsed.ByID {
			if rel.TargetMode == "External" {
				continue
			}
			target := rels.ResolveTarget(owner, rel.Target)
			if !pkg.HasPart(target) {
				issues = append(issues, Issue{
					Part:   part,
					Detail: fmt.Sprintf("%s targets missing part %q", id, target),
				})
			}
		}
	}

	for _, part := range []string{"word/document.xml", "[Content_Types].xml"} {
		if !pkg.HasPart(part) {
			continue
		}
		data, err := pkg.ReadPart(part)
		if err != nil {
			issues = append(issues, Issue{Part: part, Detail: fmt.Sprintf("unreadable: %v", err)})
			continue
		}
		if err := wellFormed(data); err != nil {
			issues = append(issues, Issue{Part: part, Detail: fmt.Sprintf("not well-formed: %v", err)})
		}
	}

	return issues
}

// ownerOf maps "word/_rels/document.xml.rels" back to "word/document.xml" so
// relative targets resolve against the right directory.
func ownerOf(relsPart string) string {
	dir, file, ok := strings.Cut(relsPart, "_rels/")
	if !ok {
		return relsPart
	}
	return dir + strings.TrimSuffix(file, ".rels")
}

func wellFormed(data []byte) error {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	for {
		_, err := decoder.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
