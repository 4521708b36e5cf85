// Package headermap canonicalizes the human-authored column headers of
// inspection spreadsheets and maps them onto the fixed field keys the
// ingestion pipeline understands.
package headermap

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Canonical field keys. Month columns map to the three-letter Portuguese
// month key; everything unrecognized falls back to a positional COL_{n} key
// so no column is silently dropped.
const (
	KeyLote              = "LOTE"
	KeyNumero            = "NUMERO"
	KeyRegiaoConservacao = "REGIAO_CONSERVACAO"
	KeyCidadeSede        = "CIDADE_SEDE"
	KeyTrecho            = "TRECHO"
	KeySRE               = "SRE"
	KeySubtrechos        = "SUBTRECHOS"
	KeyExtKm             = "EXT_KM"
	KeyTipo              = "TIPO"
)

var aliasTable = map[string]string{
	"lote":                KeyLote,
	"n":                   KeyNumero,
	"numero":              KeyNumero,
	"numerotrecho":        KeyNumero,
	"regiaodeconservacao": KeyRegiaoConservacao,
	"cidadesede":          KeyCidadeSede,
	"trecho":              KeyTrecho,
	"trechos":             KeyTrecho,
	"sre":                 KeySRE,
	"subtrechos":          KeySubtrechos,
	"subtrecho":           KeySubtrechos,
	"sbutrecho":           KeySubtrechos, // recurring typo in the field spreadsheets
	"segmentos":           KeySubtrechos,
	"extkm":               KeyExtKm,
	"extensao":            KeyExtKm,
	"extensaokm":          KeyExtKm,
	"tipo":                KeyTipo,
}

// monthPrefixes maps Portuguese and English month prefixes (three letters
// minimum) to the month number. Headers like "Jul-24", "JULHO" or "aug" all
// collapse to the same month key.
var monthPrefixes = []struct {
	prefixes []string
	month    int
}{
	{[]string{"jan"}, 1},
	{[]string{"fev", "feb"}, 2},
	{[]string{"mar"}, 3},
	{[]string{"abr", "apr"}, 4},
	{[]string{"mai", "may"}, 5},
	{[]string{"jun"}, 6},
	{[]string{"jul"}, 7},
	{[]string{"ago", "aug"}, 8},
	{[]string{"set", "sep"}, 9},
	{[]string{"out", "oct"}, 10},
	{[]string{"nov"}, 11},
	{[]string{"dez", "dec"}, 12},
}

var monthKeys = [13]string{"", "JAN", "FEV", "MAR", "ABR", "MAI", "JUN", "JUL", "AGO", "SET", "OUT", "NOV", "DEZ"}

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize strips diacritics, collapses every non-alphanumeric run to a
// single space, trims and lowercases. Only ASCII letters and digits survive,
// so ordinal markers like the º in "Nº" fall away with the punctuation.
func Normalize(text string) string {
	folded, _, err := transform.String(stripMarks, text)
	if err != nil {
		folded = text
	}

	var b strings.Builder
	b.Grow(len(folded))
	space := false
	for _, r := range folded {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		space = true
	}
	return b.String()
}

// Canonical is the compact form of Normalize: all whitespace removed.
func Canonical(text string) string {
	return strings.ReplaceAll(Normalize(text), " ", "")
}

// MapKey maps one raw header cell to its canonical field key. idx is the
// 0-based column position used for the COL_{n} fallback.
func MapKey(header string, idx int) string {
	n := Canonical(header)
	if key, ok := aliasTable[n]; ok {
		return key
	}
	if m, ok := monthForPrefix(n); ok {
		return monthKeys[m]
	}
	return fmt.Sprintf("COL_%d", idx+1)
}

// MapKeyForYear behaves like MapKey but resolves month headers straight to
// the YYYY-MM period key of the given year, which is how ingestion keys the
// monthly schedule.
func MapKeyForYear(header string, idx, year int) string {
	n := Canonical(header)
	if key, ok := aliasTable[n]; ok {
		return key
	}
	if m, ok := monthForPrefix(n); ok {
		return PeriodKey(year, m)
	}
	return fmt.Sprintf("COL_%d", idx+1)
}

// IsPeriodKey reports whether key looks like YYYY-MM.
func IsPeriodKey(key string) bool {
	if len(key) != 7 || key[4] != '-' {
		return false
	}
	for i, c := range key {
		if i == 4 {
			continue
		}
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// Month reports the month number behind a canonical month key.
func Month(key string) (int, bool) {
	for m := 1; m <= 12; m++ {
		if monthKeys[m] == key {
			return m, true
		}
	}
	return 0, false
}

// MonthOfHeader resolves a raw header (not a mapped key) to a month number.
func MonthOfHeader(header string) (int, bool) {
	return monthForPrefix(Canonical(header))
}

func monthForPrefix(canonical string) (int, bool) {
	if canonical == "" {
		return 0, false
	}
	for _, entry := range monthPrefixes {
		for _, prefix := range entry.prefixes {
			if strings.HasPrefix(canonical, prefix) {
				return entry.month, true
			}
		}
	}
	return 0, false
}

// PeriodKey builds the YYYY-MM reporting key.
func PeriodKey(year, month int) string {
	return fmt.Sprintf("%04d-%02d", year, month)
}

// ValueFor locates a value in a row for any of the candidate keys: exact key
// match first, then a normalized-key index over the row's original keys. The
// second form protects against header text that differs subtly between the
// located header row and per-cell metadata.
func ValueFor(row map[string]string, keys ...string) (string, bool) {
	for _, key := range keys {
		if v, ok := row[key]; ok {
			return v, true
		}
	}

	normalized := make(map[string]string, len(row))
	for rowKey := range row {
		normalized[Normalize(rowKey)] = rowKey
	}
	for _, key := range keys {
		if rowKey, ok := normalized[Normalize(key)]; ok {
			return row[rowKey], true
		}
	}
	return "", false
}
