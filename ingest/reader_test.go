package ingest

import (
	"errors"
	"testing"
)

func grid() [][]string {
	return [][]string{
		{"PROGRAMAÇÃO DE CONSERVA", "", "", "", ""},
		{"", "", "", "", ""},
		{"Nº", "TRECHO", "S.R.E", "EXT. (KM)", "JUL-24"},
		{"1", "BR-153 Divisa", "21a RG", "12,5", "x"},
		{"", "", "", "", ""},
		{"2", "MG-050", "21b RG", "7", ""},
	}
}

func TestBuildTableLocatesHeader(t *testing.T) {
	table, err := BuildTable(grid(), 2024)
	if err != nil {
		t.Fatalf("BuildTable: %v", err)
	}
	if table.HeaderIndex != 2 {
		t.Fatalf("header index = %d", table.HeaderIndex)
	}
	want := []string{"NUMERO", "TRECHO", "SRE", "EXT_KM", "2024-07"}
	for i, key := range want {
		if table.Keys[i] != key {
			t.Fatalf("keys = %v, want %v", table.Keys, want)
		}
	}
}

func TestBuildTableSkipsBlankRowsAndNumbers(t *testing.T) {
	table, err := BuildTable(grid(), 2024)
	if err != nil {
		t.Fatalf("BuildTable: %v", err)
	}
	if len(table.Rows) != 2 {
		t.Fatalf("expected 2 data rows, got %d", len(table.Rows))
	}
	// blank row 5 is invisible but row numbering still counts sheet rows
	if table.Rows[0].Number != 1 || table.Rows[1].Number != 3 {
		t.Fatalf("row numbers = %d, %d", table.Rows[0].Number, table.Rows[1].Number)
	}
	if table.Rows[1].Cells["TRECHO"] != "MG-050" {
		t.Fatalf("row 2 cells = %v", table.Rows[1].Cells)
	}
}

func TestBuildTableHeaderNotFound(t *testing.T) {
	_, err := BuildTable([][]string{{"a", "b"}, {"c", "d"}}, 2024)
	if !errors.Is(err, ErrHeaderNotFound) {
		t.Fatalf("expected ErrHeaderNotFound, got %v", err)
	}
}

func TestBuildTableMissingRequiredColumns(t *testing.T) {
	rows := [][]string{{"TRECHO", "S.R.E"}, {"BR-153", "21a"}}
	_, err := BuildTable(rows, 2024)
	if !errors.Is(err, ErrMissingColumns) {
		t.Fatalf("expected ErrMissingColumns, got %v", err)
	}
}

func TestGuessFromFilename(t *testing.T) {
	cases := []struct {
		name   string
		source SourceType
		region int
	}{
		{"21RG-trechos-pavimentados.xlsx", SourcePaved, 21},
		{"05-trechos-nao-pavimentados.xlsx", SourceUnpaved, 5},
		{"trechos-2024.xlsx", SourcePaved, 0},
	}
	for _, tc := range cases {
		source, region := GuessFromFilename(tc.name)
		if source != tc.source || region != tc.region {
			t.Fatalf("GuessFromFilename(%q) = %s, %d", tc.name, source, region)
		}
	}
}

func TestParseEvaluations(t *testing.T) {
	rows := [][]string{
		{"Trecho", "Grupo", "Classificação", "Valor"},
		{"BR-153", "Pista", "Bom", "55,5"},
		{"", "ignored", "", ""},
		{"MG-050", "Extrapista", "Regular", "30"},
	}
	got := parseEvaluations(rows)
	if len(got) != 2 {
		t.Fatalf("expected 2 evaluations, got %d", len(got))
	}
	if got[0].Section != "BR-153" || got[0].Value != 55.5 {
		t.Fatalf("evaluation 0 = %+v", got[0])
	}
	if got[1].Class != "Regular" {
		t.Fatalf("evaluation 1 = %+v", got[1])
	}
}
