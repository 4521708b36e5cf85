package chartxml

import (
	"strings"
	"testing"
)

const pieChartXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<c:chartSpace xmlns:c="http://schemas.openxmlformats.org/drawingml/2006/chart" xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main">
  <c:chart>
    <c:title>
      <c:tx><c:rich>
        <a:p><a:r><a:t>Condições de Pista</a:t></a:r><a:r><a:t>PAV</a:t></a:r></a:p>
      </c:rich></c:tx>
    </c:title>
    <c:plotArea>
      <c:pieChart>
        <c:ser>
          <c:cat><c:strRef><c:strCache>
            <c:pt idx="0"><c:v>Bom</c:v></c:pt>
            <c:pt idx="1"><c:v>Regular</c:v></c:pt>
            <c:pt idx="2"><c:v>Ruim</c:v></c:pt>
          </c:strCache></c:strRef></c:cat>
          <c:val><c:numRef><c:numCache>
            <c:pt idx="0"><c:v>12,5</c:v></c:pt>
            <c:pt idx="1"><c:v>30</c:v></c:pt>
            <c:pt idx="2"><c:v>7.5</c:v></c:pt>
          </c:numCache></c:numRef></c:val>
        </c:ser>
        <c:ser>
          <c:val><c:numRef><c:numCache>
            <c:pt idx="0"><c:v>999</c:v></c:pt>
          </c:numCache></c:numRef></c:val>
        </c:ser>
      </c:pieChart>
    </c:plotArea>
  </c:chart>
</c:chartSpace>`

func TestParsePieChart(t *testing.T) {
	chart, err := Parse(strings.NewReader(pieChartXML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if chart.Type != TypePie {
		t.Fatalf("type = %q, want pie", chart.Type)
	}
	if chart.Title != "Condições de Pista PAV" {
		t.Fatalf("title = %q", chart.Title)
	}
	if len(chart.Labels) != 3 || chart.Labels[1] != "Regular" {
		t.Fatalf("labels = %v", chart.Labels)
	}
	want := []float64{12.5, 30, 7.5}
	for i, v := range want {
		if chart.Values[i] != v {
			t.Fatalf("values = %v, want %v", chart.Values, want)
		}
	}
	if chart.Empty() {
		t.Fatalf("chart with data reported empty")
	}
}

func TestParseSecondSeriesIgnored(t *testing.T) {
	chart, err := Parse(strings.NewReader(pieChartXML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	for _, v := range chart.Values {
		if v == 999 {
			t.Fatalf("second series leaked into values: %v", chart.Values)
		}
	}
}

func TestParseNumericCategoryFallback(t *testing.T) {
	xml := `<c:chartSpace xmlns:c="http://schemas.openxmlformats.org/drawingml/2006/chart">
  <c:chart><c:plotArea><c:barChart><c:ser>
    <c:cat><c:numRef><c:numCache>
      <c:pt idx="0"><c:v>2023</c:v></c:pt>
      <c:pt idx="1"><c:v>2024</c:v></c:pt>
    </c:numCache></c:numRef></c:cat>
    <c:val><c:numRef><c:numCache>
      <c:pt idx="0"><c:v>10</c:v></c:pt>
      <c:pt idx="1"><c:v>20</c:v></c:pt>
    </c:numCache></c:numRef></c:val>
  </c:ser></c:barChart></c:plotArea></c:chart>
</c:chartSpace>`

	chart, err := Parse(strings.NewReader(xml))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if chart.Type != TypeBar {
		t.Fatalf("type = %q", chart.Type)
	}
	if len(chart.Labels) != 2 || chart.Labels[0] != "2023" {
		t.Fatalf("labels = %v", chart.Labels)
	}
}

func TestParseLabelMismatchGetsPlaceholders(t *testing.T) {
	xml := `<c:chartSpace xmlns:c="http://schemas.openxmlformats.org/drawingml/2006/chart">
  <c:chart><c:plotArea><c:pieChart><c:ser>
    <c:cat><c:strRef><c:strCache>
      <c:pt idx="0"><c:v>A</c:v></c:pt>
    </c:strCache></c:strRef></c:cat>
    <c:val><c:numRef><c:numCache>
      <c:pt idx="0"><c:v>1</c:v></c:pt>
      <c:pt idx="1"><c:v>2</c:v></c:pt>
    </c:numCache></c:numRef></c:val>
  </c:ser></c:pieChart></c:plotArea></c:chart>
</c:chartSpace>`

	chart, err := Parse(strings.NewReader(xml))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(chart.Labels) != 2 || chart.Labels[0] != "Item 1" || chart.Labels[1] != "Item 2" {
		t.Fatalf("labels = %v", chart.Labels)
	}
}

func TestParseUnknownTypeKeepsZeroValues(t *testing.T) {
	xml := `<c:chartSpace xmlns:c="http://schemas.openxmlformats.org/drawingml/2006/chart">
  <c:chart><c:plotArea><c:surfaceChart><c:ser>
    <c:val><c:numRef><c:numCache>
      <c:pt idx="0"><c:v>0</c:v></c:pt>
      <c:pt idx="1"><c:v>0</c:v></c:pt>
    </c:numCache></c:numRef></c:val>
  </c:ser></c:surfaceChart></c:plotArea></c:chart>
</c:chartSpace>`

	chart, err := Parse(strings.NewReader(xml))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if chart.Type != TypeUnknown {
		t.Fatalf("type = %q, want unknown", chart.Type)
	}
	// an all-zero series is data; only valueless charts are empty
	if chart.Empty() {
		t.Fatalf("chart with cached zeros reported empty")
	}
}

func TestEmptyOnlyWhenValueless(t *testing.T) {
	if !(&Chart{Type: TypePie}).Empty() {
		t.Fatalf("valueless chart must be empty")
	}
	if (&Chart{Type: TypePie, Values: []float64{0, 0}}).Empty() {
		t.Fatalf("all-zero chart must not be empty")
	}
	var nilChart *Chart
	if !nilChart.Empty() {
		t.Fatalf("nil chart must be empty")
	}
}

func TestParseValue(t *testing.T) {
	cases := map[string]float64{
		"12,5":  12.5,
		"12.5":  12.5,
		" 30 ":  30,
		"abc":   0,
		"":      0,
		"1e309": 0,
	}
	for in, want := range cases {
		if got := ParseValue(in); got != want {
			t.Fatalf("ParseValue(%q) = %v, want %v", in, got, want)
		}
	}
}
