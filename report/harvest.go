package report

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"

	"conserva/internal/chartxml"
	"conserva/internal/logging"
	"conserva/internal/ooxmlpkg"
	"conserva/internal/rels"
	"conserva/internal/xlref"
)

const (
	workbookPart = "xl/workbook.xml"
	sectionCell  = "B3"
)

// ChartGroup is every non-empty chart found on one sheet, tagged with the
// section the sheet reports on.
type ChartGroup struct {
	Sheet   string
	Ordinal int // 1-based sheet position, preserved for downstream ordering
	Section string
	Charts  []chartxml.Chart
}

// Harvest is the outcome of scanning one workbook package.
type Harvest struct {
	Groups []ChartGroup
	Alerts []Alert
}

// Harvester walks workbook packages for charts.
type Harvester struct {
	log logging.Logger
}

type HarvesterOption func(*Harvester)

func HarvesterLogger(log logging.Logger) HarvesterOption {
	return func(h *Harvester) { h.log = log }
}

func NewHarvester(opts ...HarvesterOption) *Harvester {
	h := &Harvester{log: logging.Nop()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Harvester) HarvestFile(path string) (*Harvest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workbook %s: %w", path, err)
	}
	return h.HarvestBytes(data)
}

// HarvestBytes scans the package sheet by sheet. Only the absence of the
// workbook part or its relationships is fatal; every lower hop that fails
// just means that sheet contributes no charts.
func (h *Harvester) HarvestBytes(data []byte) (*Harvest, error) {
	pkg, err := ooxmlpkg.OpenBytes(data)
	if err != nil {
		return nil, err
	}

	wbData, err := pkg.ReadPart(workbookPart)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoWorkbook, err)
	}
	wbRelsData, err := pkg.ReadPart(rels.PathFor(workbookPart))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoWorkbook, err)
	}
	wbRels, err := rels.Parse(bytes.NewReader(wbRelsData))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoWorkbook, err)
	}

	sheets, err := parseSheetList(wbData)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoWorkbook, err)
	}

	harvest := &Harvest{}

	// cell values come from excelize, the chart walk from the raw parts
	cells, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		harvest.alert("workbook", fmt.Sprintf("cell reader unavailable, using sheet names as sections: %v", err))
		cells = nil
	} else {
		defer cells.Close()
	}

	for i, sheet := range sheets {
		group := ChartGroup{Sheet: sheet.name, Ordinal: i + 1}
		group.Section = h.sectionName(cells, sheet.name)

		for _, chart := range h.sheetCharts(pkg, wbRels, sheet, harvest) {
			if chart.Empty() {
				h.log.Debug("chart discarded, no values", "sheet", sheet.name, "title", chart.Title)
				continue
			}
			if chart.Title == "" {
				chart.Title = PlaceholderTitle
			}
			group.Charts = append(group.Charts, chart)
		}
		if len(group.Charts) > 0 {
			harvest.Groups = append(harvest.Groups, group)
			h.log.Info("sheet harvested",
				"sheet", sheet.name, "section", group.Section, "charts", len(group.Charts))
		}
	}
	return harvest, nil
}

type sheetEntry struct {
	name  string
	relID string
}

func parseSheetList(wbData []byte) ([]sheetEntry, error) {
	decoder := xml.NewDecoder(bytes.NewReader(wbData))
	var sheets []sheetEntry
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		start, ok := token.(xml.StartElement)
		if !ok || start.Name.Local != "sheet" {
			continue
		}
		var entry sheetEntry
		for _, a := range start.Attr {
			switch a.Name.Local {
			case "name":
				entry.name = a.Value
			case "id":
				entry.relID = a.Value
			}
		}
		if entry.name != "" && entry.relID != "" {
			sheets = append(sheets, entry)
		}
	}
	return sheets, nil
}

// sheetCharts follows sheet -> sheet rels -> drawing -> drawing rels ->
// chart parts. Every failed hop lands in the alert list and yields nothing.
func (h *Harvester) sheetCharts(pkg *ooxmlpkg.Package, wbRels *rels.Rels, sheet sheetEntry, harvest *Harvest) []chartxml.Chart {
	rel, ok := wbRels.Resolve(sheet.relID)
	if !ok {
		harvest.alert(sheet.name, "sheet relationship "+sheet.relID+" missing")
		return nil
	}
	sheetPart := rels.ResolveTarget(workbookPart, rel.Target)

	sheetRels := h.relsOf(pkg, sheetPart, sheet.name, harvest)
	if sheetRels == nil {
		return nil
	}

	var charts []chartxml.Chart
	for _, drawingRel := range sheetRels.ByTypeSuffix("/drawing") {
		drawingPart := rels.ResolveTarget(sheetPart, drawingRel.Target)
		drawingRels := h.relsOf(pkg, drawingPart, sheet.name, harvest)
		if drawingRels == nil {
			continue
		}

		for _, chartRel := range drawingRels.ByTypeSuffix("/chart") {
			chartPart := rels.ResolveTarget(drawingPart, chartRel.Target)
			chartData, err := pkg.ReadPart(chartPart)
			if err != nil {
				harvest.alert(sheet.name, fmt.Sprintf("chart part %s unreadable: %v", chartPart, err))
				continue
			}
			chart, err := chartxml.Parse(bytes.NewReader(chartData))
			if err != nil {
				harvest.alert(sheet.name, fmt.Sprintf("chart part %s unparseable: %v", chartPart, err))
				continue
			}
			charts = append(charts, *chart)
		}
	}
	return charts
}

func (h *Harvester) relsOf(pkg *ooxmlpkg.Package, part, sheetName string, harvest *Harvest) *rels.Rels {
	relsPath := rels.PathFor(part)
	data, err := pkg.ReadPart(relsPath)
	if err != nil {
		return nil // a part without relationships simply has no charts
	}
	parsed, err := rels.Parse(bytes.NewReader(data))
	if err != nil {
		harvest.alert(sheetName, fmt.Sprintf("relationships %s unparseable: %v", relsPath, err))
		return nil
	}
	return parsed
}

// sectionName resolves the section a sheet reports on: cell B3, following a
// single-cell formula one hop, falling back to the sheet name.
func (h *Harvester) sectionName(cells *excelize.File, sheet string) string {
	if cells == nil {
		return sheet
	}

	if v, err := cells.GetCellValue(sheet, sectionCell); err == nil && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	if formula, err := cells.GetCellFormula(sheet, sectionCell); err == nil && formula != "" {
		if ref, err := xlref.ParseCellRef(formula); err == nil {
			if v, err := cells.GetCellValue(ref.Sheet, ref.Cell); err == nil && strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v)
			}
		}
	}
	return sheet
}

func (h *Harvest) alert(context, message string) {
	h.Alerts = append(h.Alerts, Alert{Context: context, Message: message})
}
