package report

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"

	"github.com/google/uuid"

	"conserva/internal/chartxml"
	"conserva/internal/docscan"
	"conserva/internal/logging"
	"conserva/internal/ooxmlpkg"
	"conserva/internal/rels"
)

// Renderer is the external collaborator that turns a chart into image bytes.
// Pixel dimensions are its own business; the injector only dictates the
// physical size placed in the document.
type Renderer interface {
	Render(chart chartxml.Chart) ([]byte, error)
}

// RendererFunc adapts a plain function to Renderer.
type RendererFunc func(chart chartxml.Chart) ([]byte, error)

func (f RendererFunc) Render(chart chartxml.Chart) ([]byte, error) { return f(chart) }

// EMUPerCm is the OOXML length unit: 1 cm = 360000 EMU.
const EMUPerCm = 360000

const documentPart = "word/document.xml"

// Injector replaces matched chart placeholders in a document template.
type Injector struct {
	render   Renderer
	widthCm  float64
	heightCm float64
	log      logging.Logger
	newID    func() string
}

type InjectorOption func(*Injector)

func InjectorLogger(log logging.Logger) InjectorOption {
	return func(inj *Injector) { inj.log = log }
}

// WithSizeCm sets the physical size every injected figure is forced to.
func WithSizeCm(width, height float64) InjectorOption {
	return func(inj *Injector) { inj.widthCm, inj.heightCm = width, height }
}

func WithMediaIDs(newID func() string) InjectorOption {
	return func(inj *Injector) { inj.newID = newID }
}

func NewInjector(render Renderer, opts ...InjectorOption) *Injector {
	inj := &Injector{
		render:   render,
		widthCm:  15,
		heightCm: 9,
		log:      logging.Nop(),
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(inj)
	}
	return inj
}

// RenderReport summarizes one injection run: what was replaced, what stayed
// unmatched, and which matches were cross-type salvages.
type RenderReport struct {
	Replaced   int
	Missing    []Anchor
	Fallbacks  []Fallback
	Unconsumed int
	Alerts     []Alert
}

type edit struct {
	start, end int64
	xml        []byte
}

// picEdit is the pending rewrite of one picture drawing in a paragraph,
// aligned with the paragraph's pictures in document order.
type picEdit struct {
	resize       bool
	relID        string
	rewriteEmbed bool
}

// imageRel is a relationship entry minted for a picture that shares its
// template embed id with an earlier replacement.
type imageRel struct {
	id     string
	target string
}

const imageRelType = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/image"

// Render walks the template's paragraphs with the anchor state machine,
// replaces matched picture placeholders with freshly rendered charts and
// returns the rewritten package. Unmatched anchors are data in the report;
// only structural absences and render failures abort.
func (inj *Injector) Render(template []byte, paved, unpaved []ChartGroup) ([]byte, *RenderReport, error) {
	pkg, err := ooxmlpkg.OpenBytes(template)
	if err != nil {
		return nil, nil, err
	}

	doc, err := pkg.ReadPart(documentPart)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrNoDocument, err)
	}
	relsPath := rels.PathFor(documentPart)
	relsData, err := pkg.ReadPart(relsPath)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrNoDocument, err)
	}
	parsedRels, err := rels.Parse(bytes.NewReader(relsData))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrNoDocument, err)
	}
	taken := make(map[string]struct{}, len(parsedRels.ByID))
	for id := range parsedRels.ByID {
		taken[id] = struct{}{}
	}

	paras, err := docscan.Scan(doc)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrNoDocument, err)
	}

	matcher := NewMatcher(paved, unpaved)
	state := NewScanState()
	report := &RenderReport{}

	var edits []edit
	var extraRels []imageRel
	media := map[string][]byte{}
	retargets := map[string]string{}

	for _, para := range paras {
		state, _ = Step(state, para.Text)

		pictures := embeddedPictures(para)
		if len(pictures) == 0 || !state.Awaiting {
			continue
		}

		picEdits := make([]picEdit, len(pictures))
		changed := false
		for i, pic := range pictures {
			chart, ok := matcher.Match(&state)
			if !ok {
				continue
			}

			png, err := inj.render.Render(chart.Chart)
			if err != nil {
				return nil, nil, fmt.Errorf("%w: %q: %v", ErrRender, chart.Chart.Title, err)
			}

			name := fmt.Sprintf("word/media/chart_%03d_%s.png", report.Replaced+1, shortID(inj.newID()))
			media[name] = png
			target := name[len("word/"):]

			relID := pic.EmbedID
			if _, used := retargets[relID]; used {
				// a second picture on the same relationship gets its own id
				// so both rendered images stay referenced
				relID = inj.freshRelID(taken)
				extraRels = append(extraRels, imageRel{id: relID, target: target})
			} else {
				retargets[relID] = target
			}
			taken[relID] = struct{}{}

			picEdits[i] = picEdit{resize: true, relID: relID, rewriteEmbed: relID != pic.EmbedID}
			changed = true
			report.Replaced++
			inj.log.Info("placeholder replaced",
				"heading", state.Heading, "sheet", chart.Sheet, "title", chart.Chart.Title, "media", name)
		}
		if changed {
			edits = append(edits, edit{start: para.Start, end: para.End, xml: inj.applyPicEdits(para.XML, picEdits)})
		}
		// the flag is consumed even when nothing matched
		state.Awaiting = false
	}

	newDoc := splice(doc, edits)
	newRels, relAlerts := retargetAll(relsData, retargets)
	newRels = appendImageRels(newRels, extraRels)
	report.Alerts = append(report.Alerts, relAlerts...)
	report.Missing = matcher.Missing
	report.Fallbacks = matcher.Fallbacks
	report.Unconsumed = matcher.Remaining()

	pkg.WritePart(documentPart, newDoc)
	pkg.WritePart(relsPath, newRels)
	for name, data := range media {
		pkg.WritePart(name, data)
	}
	if len(media) > 0 {
		if err := ensurePNGDefault(pkg); err != nil {
			return nil, nil, err
		}
	}

	out, err := pkg.Bytes()
	if err != nil {
		return nil, nil, err
	}
	return out, report, nil
}

func embeddedPictures(para docscan.Paragraph) []docscan.DrawingRef {
	var out []docscan.DrawingRef
	for _, d := range para.Drawings {
		if d.EmbedID != "" {
			out = append(out, d)
		}
	}
	return out
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// forceShapeSize rewrites one drawing's geometry in place: extents to the
// configured physical size, offsets to zero, crop rectangles cleared.
// Attribute surgery on the raw bytes keeps the template's namespace prefixes
// and element order untouched.
func (inj *Injector) forceShapeSize(paraXML []byte) []byte {
	cx := strconv.FormatInt(int64(inj.widthCm*EMUPerCm), 10)
	cy := strconv.FormatInt(int64(inj.heightCm*EMUPerCm), 10)

	paraXML = setTagAttrs(paraXML, "extent", map[string]string{"cx": cx, "cy": cy})
	paraXML = setTagAttrs(paraXML, "ext", map[string]string{"cx": cx, "cy": cy})
	paraXML = setTagAttrs(paraXML, "off", map[string]string{"x": "0", "y": "0"})
	paraXML = srcRectRe.ReplaceAll(paraXML, []byte("<${1}${2}>"))
	return paraXML
}

var srcRectRe = regexp.MustCompile(`<((?:[A-Za-z0-9]+:)?srcRect)\b[^>]*?(/?)>`)

var (
	drawingElementRe = regexp.MustCompile(`(?s)<((?:[A-Za-z0-9]+:)?drawing)[\s>].*?</(?:[A-Za-z0-9]+:)?drawing>`)
	embedAttrRe      = regexp.MustCompile(`\bembed="[^"]*"`)
)

// applyPicEdits rewrites the paragraph's picture drawings one by one. The
// drawings appear in the same order as the scanned picture list, so the edit
// slice is consumed positionally; drawings without a replacement pass through
// untouched, keeping their template geometry and relationship id.
func (inj *Injector) applyPicEdits(paraXML []byte, picEdits []picEdit) []byte {
	next := 0
	return drawingElementRe.ReplaceAllFunc(append([]byte(nil), paraXML...), func(seg []byte) []byte {
		if !bytes.Contains(seg, []byte(`embed="`)) {
			return seg
		}
		if next >= len(picEdits) {
			return seg
		}
		e := picEdits[next]
		next++
		if !e.resize {
			return seg
		}
		seg = inj.forceShapeSize(append([]byte(nil), seg...))
		if e.rewriteEmbed {
			seg = embedAttrRe.ReplaceAll(seg, []byte(`embed="`+e.relID+`"`))
		}
		return seg
	})
}

// freshRelID mints a relationship id absent from the taken set.
func (inj *Injector) freshRelID(taken map[string]struct{}) string {
	for {
		id := "rId" + shortID(inj.newID())
		if _, used := taken[id]; !used {
			return id
		}
	}
}

// appendImageRels adds the minted relationship entries for pictures that had
// to leave their shared template relationship behind.
func appendImageRels(relsXML []byte, extras []imageRel) []byte {
	for _, extra := range extras {
		entry := fmt.Sprintf(`<Relationship Id=%q Type=%q Target=%q/>`, extra.id, imageRelType, extra.target)
		relsXML = bytes.Replace(relsXML, []byte("</Relationships>"), []byte(entry+"</Relationships>"), 1)
	}
	return relsXML
}

// setTagAttrs rewrites the named attributes on every element with the given
// local name, regardless of prefix. Attributes the element lacks are left
// absent; elements that merely share the local name but lack the attributes
// (extension-list entries, for example) pass through unchanged.
func setTagAttrs(xmlBytes []byte, local string, attrs map[string]string) []byte {
	tagRe := regexp.MustCompile(`<(?:[A-Za-z0-9]+:)?` + local + `\b[^>]*?/?>`)
	return tagRe.ReplaceAllFunc(xmlBytes, func(tag []byte) []byte {
		for name, value := range attrs {
			attrRe := regexp.MustCompile(`(\b` + name + `=")[^"]*(")`)
			tag = attrRe.ReplaceAll(tag, []byte("${1}"+value+"${2}"))
		}
		return tag
	})
}

// splice rebuilds the document with the edited paragraph ranges substituted.
// Edits arrive in document order and never overlap.
func splice(doc []byte, edits []edit) []byte {
	if len(edits) == 0 {
		return doc
	}
	var out bytes.Buffer
	out.Grow(len(doc))
	last := int64(0)
	for _, e := range edits {
		out.Write(doc[last:e.start])
		out.Write(e.xml)
		last = e.end
	}
	out.Write(doc[last:])
	return out.Bytes()
}

// retargetAll points each relationship id at its new media part, handling
// either attribute order inside the Relationship tag.
func retargetAll(relsXML []byte, retargets map[string]string) ([]byte, []Alert) {
	var alerts []Alert
	for id, target := range retargets {
		idQ := regexp.QuoteMeta(id)
		idFirst := regexp.MustCompile(`(<Relationship\b[^>]*\bId="` + idQ + `"[^>]*\bTarget=")[^"]*(")`)
		targetFirst := regexp.MustCompile(`(<Relationship\b[^>]*\bTarget=")[^"]*("[^>]*\bId="` + idQ + `")`)

		switch {
		case idFirst.Match(relsXML):
			relsXML = idFirst.ReplaceAll(relsXML, []byte("${1}"+target+"${2}"))
		case targetFirst.Match(relsXML):
			relsXML = targetFirst.ReplaceAll(relsXML, []byte("${1}"+target+"${2}"))
		default:
			alerts = append(alerts, Alert{
				Context: "document relationships",
				Message: "relationship " + id + " not found, media part left unreferenced",
			})
		}
	}
	return relsXML, alerts
}

// ensurePNGDefault registers the png default content type if the template
// never shipped one.
func ensurePNGDefault(pkg *ooxmlpkg.Package) error {
	const part = "[Content_Types].xml"
	data, err := pkg.ReadPart(part)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoDocument, err)
	}
	if bytes.Contains(data, []byte(`Extension="png"`)) {
		return nil
	}
	entry := []byte(`<Default Extension="png" ContentType="image/png"/></Types>`)
	updated := bytes.Replace(data, []byte("</Types>"), entry, 1)
	pkg.WritePart(part, updated)
	return nil
}
