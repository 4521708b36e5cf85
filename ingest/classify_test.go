package ingest

import "testing"

var testScope = Scope{Region: 21, Year: 2024, Month: 7}

func TestParseNumber(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"1.234,56", 1234.56, true},
		{"1234,56", 1234.56, true},
		{"1234.56", 1234.56, true},
		{"12", 12, true},
		{" 7,5 ", 7.5, true},
		{"", 0, false},
		{"abc", 0, false},
		{"12,3,4", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseNumber(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("ParseNumber(%q) = %v, %v; want %v, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestTruthy(t *testing.T) {
	for _, in := range []string{"x", "X", "Sim", "s", "TRUE", "1", "ok", "2,5"} {
		if !Truthy(in) {
			t.Fatalf("Truthy(%q) = false", in)
		}
	}
	for _, in := range []string{"", "não", "0", "-1", "no"} {
		if Truthy(in) {
			t.Fatalf("Truthy(%q) = true", in)
		}
	}
}

func TestClassifyValidRow(t *testing.T) {
	row := map[string]string{
		"TRECHO":  "BR-153 Divisa",
		"SRE":     "21a RG",
		"EXT_KM":  "12,5",
		"TIPO":    "PAV",
		"2024-07": "x",
		"2024-08": "",
	}

	c := ClassifyRow(row, testScope, SourcePaved)
	if c.Outcome != OutcomeValid {
		t.Fatalf("outcome = %s", c.Outcome)
	}
	rec := c.Record
	if rec.Name != "BR-153 Divisa" || rec.SRE != "21a RG" {
		t.Fatalf("record = %+v", rec)
	}
	if rec.LengthKm == nil || *rec.LengthKm != 12.5 {
		t.Fatalf("length = %v", rec.LengthKm)
	}
	if !rec.Schedule["2024-07"] || rec.Schedule["2024-08"] {
		t.Fatalf("schedule = %v", rec.Schedule)
	}
}

func TestClassifyMissingSRE(t *testing.T) {
	c := ClassifyRow(map[string]string{"TRECHO": "Av. Central", "SRE": ""}, testScope, SourcePaved)
	if c.Outcome != OutcomeHardError {
		t.Fatalf("outcome = %s", c.Outcome)
	}
	if c.RowError.Code != CodeSRERequired {
		t.Fatalf("code = %s", c.RowError.Code)
	}
}

func TestClassifyBadLength(t *testing.T) {
	c := ClassifyRow(map[string]string{"TRECHO": "BR-153", "SRE": "21a", "EXT_KM": "doze"}, testScope, SourcePaved)
	if c.Outcome != OutcomeHardError || c.RowError.Code != CodeExtKmInvalid {
		t.Fatalf("classification = %+v", c)
	}
	if c.RowError.Value != "doze" {
		t.Fatalf("offending value = %q", c.RowError.Value)
	}
}

func TestClassifySoftSkips(t *testing.T) {
	cases := []map[string]string{
		{"TRECHO": "", "SRE": "21a"},
		{"TRECHO": "  Trecho ", "SRE": "21a"},
		{"TRECHO": "BR-153", "SRE": "21a", "REGIAO_CONSERVACAO": "5ª Regional"},
	}
	for i, row := range cases {
		c := ClassifyRow(row, testScope, SourcePaved)
		if c.Outcome != OutcomeSoftSkip {
			t.Fatalf("case %d: outcome = %s", i, c.Outcome)
		}
	}
}

func TestClassifyMatchingRegionIsValid(t *testing.T) {
	row := map[string]string{"TRECHO": "BR-153", "SRE": "21a", "REGIAO_CONSERVACAO": "21ª Regional"}
	if c := ClassifyRow(row, testScope, SourcePaved); c.Outcome != OutcomeValid {
		t.Fatalf("outcome = %s", c.Outcome)
	}
}

func TestClassificationIsTotal(t *testing.T) {
	rows := []map[string]string{
		{"TRECHO": "a", "SRE": "b"},
		{"TRECHO": "a", "SRE": ""},
		{"TRECHO": ""},
		{"TRECHO": "a", "SRE": "b", "EXT_KM": "??"},
	}
	for i, row := range rows {
		c := ClassifyRow(row, testScope, SourcePaved)
		payloads := 0
		if c.Record != nil {
			payloads++
		}
		if c.RowError != nil {
			payloads++
		}
		if c.Outcome == OutcomeSoftSkip && c.SkipReason != "" {
			payloads++
		}
		if payloads != 1 {
			t.Fatalf("row %d: classification not exclusive: %+v", i, c)
		}
	}
}
