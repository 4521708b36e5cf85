// Package chartxml extracts the plotted series out of a DrawingML chart part
// (chart1.xml and friends). Only the first series is read: the report charts
// are single-series pies and bars, and the injected replacements are too.
package chartxml

import (
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Chart type tags. Anything outside the closed list comes back as TypeUnknown
// so downstream rendering can pick a safe fallback.
const (
	TypePie      = "pie"
	TypePie3D    = "pie3d"
	TypeDoughnut = "doughnut"
	TypeBar      = "bar"
	TypeLine     = "line"
	TypeArea     = "area"
	TypeRadar    = "radar"
	TypeScatter  = "scatter"
	TypeUnknown  = "unknown"
)

var plotElements = map[string]string{
	"pieChart":      TypePie,
	"pie3DChart":    TypePie3D,
	"doughnutChart": TypeDoughnut,
	"barChart":      TypeBar,
	"lineChart":     TypeLine,
	"areaChart":     TypeArea,
	"radarChart":    TypeRadar,
	"scatterChart":  TypeScatter,
}

// Chart is the flattened content of one chart part.
type Chart struct {
	Type   string
	Title  string
	Labels []string
	Values []float64
}

// Empty reports whether the chart carries no extracted values at all. An
// all-zero series still counts as data; only valueless charts are skipped by
// the harvester.
func (c *Chart) Empty() bool {
	return c == nil || len(c.Values) == 0
}

// ParseValue coerces one cached chart value. Decimal commas are accepted;
// anything unparseable or non-finite collapses to zero.
func ParseValue(raw string) float64 {
	v, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(raw), ",", "."), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// Parse walks a chart part token by token. Namespace prefixes are ignored;
// producers disagree on c: vs c15: and the local names are unambiguous.
func Parse(r io.Reader) (*Chart, error) {
	decoder := xml.NewDecoder(r)
	chart := &Chart{Type: TypeUnknown}

	var stack []string
	serSeen := 0
	var titleRuns []string
	var strLabels, numLabels []string

	contains := func(names ...string) bool {
		i := 0
		for _, s := range stack {
			if i < len(names) && s == names[i] {
				i++
			}
		}
		return i == len(names)
	}
	leaf := func() string {
		if len(stack) == 0 {
			return ""
		}
		return stack[len(stack)-1]
	}

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse chart: %w", err)
		}

		switch t := token.(type) {
		case xml.StartElement:
			name := t.Name.Local
			if contains("plotArea") {
				if name == "ser" {
					serSeen++
				}
				if mapped, ok := plotElements[name]; ok && chart.Type == TypeUnknown {
					chart.Type = mapped
				}
			}
			stack = append(stack, name)

		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}

		case xml.CharData:
			text := strings.TrimSpace(string(t))
			if text == "" {
				continue
			}
			switch {
			case contains("title") && !contains("plotArea") && leaf() == "t":
				// axis titles live under plotArea and are not the chart title
				titleRuns = append(titleRuns, text)
			case serSeen != 1 || leaf() != "v":
				// only the first series feeds labels and values
			case contains("ser", "cat", "strCache", "pt"):
				strLabels = append(strLabels, text)
			case contains("ser", "cat", "numCache", "pt"):
				numLabels = append(numLabels, text)
			case contains("ser", "val", "numCache", "pt"):
				chart.Values = append(chart.Values, ParseValue(text))
			}
		}
	}

	chart.Title = strings.Join(titleRuns, " ")

	chart.Labels = strLabels
	if len(chart.Labels) == 0 {
		chart.Labels = numLabels
	}
	if len(chart.Labels) != len(chart.Values) {
		chart.Labels = placeholderLabels(len(chart.Values))
	}
	return chart, nil
}

func placeholderLabels(n int) []string {
	labels := make([]string, n)
	for i := range labels {
		labels[i] = fmt.Sprintf("Item %d", i+1)
	}
	return labels
}
