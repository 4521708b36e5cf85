package ingest

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"conserva/internal/headermap"
)

// Outcome is the total, mutually exclusive classification of one data row.
type Outcome int

const (
	OutcomeValid Outcome = iota
	OutcomeSoftSkip
	OutcomeHardError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeValid:
		return "valid"
	case OutcomeSoftSkip:
		return "soft-skip"
	default:
		return "hard-error"
	}
}

// Classification carries the outcome plus exactly one payload: a record for
// valid rows, a row error for hard errors, a skip reason otherwise.
type Classification struct {
	Outcome    Outcome
	Record     *SectionRecord
	RowError   *RowError
	SkipReason string
}

// ParseNumber coerces the locale-ambiguous numeric formats of the source
// spreadsheets. With both separators present the dots are thousands markers
// and the comma is the decimal point; a lone comma is a decimal point; plain
// input parses as written. Only finite results count as numbers.
func ParseNumber(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	switch {
	case strings.Contains(s, ",") && strings.Contains(s, "."):
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case strings.Contains(s, ","):
		s = strings.Replace(s, ",", ".", 1)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

var truthyWords = map[string]struct{}{
	"x": {}, "sim": {}, "s": {}, "true": {}, "1": {}, "ok": {},
}

// Truthy interprets a monthly schedule cell: a known marker word or any
// positive number means planned.
func Truthy(raw string) bool {
	n := headermap.Normalize(raw)
	if n == "" {
		return false
	}
	if _, ok := truthyWords[n]; ok {
		return true
	}
	if v, ok := ParseNumber(raw); ok {
		return v > 0
	}
	return false
}

// ClassifyRow applies the row rules in order. The caller filters fully blank
// rows beforehand; they are invisible to the counters.
func ClassifyRow(row map[string]string, scope Scope, source SourceType) Classification {
	name, _ := headermap.ValueFor(row, headermap.KeyTrecho)
	name = strings.TrimSpace(name)
	if name == "" {
		return Classification{Outcome: OutcomeSoftSkip, SkipReason: "empty section name"}
	}
	if headermap.Normalize(name) == "trecho" {
		// header row repeated inside the data range
		return Classification{Outcome: OutcomeSoftSkip, SkipReason: "duplicate header"}
	}

	sre, _ := headermap.ValueFor(row, headermap.KeySRE)
	sre = strings.TrimSpace(sre)
	if sre == "" {
		return Classification{Outcome: OutcomeHardError, RowError: &RowError{
			Code:    CodeSRERequired,
			Message: fmt.Sprintf("section %q has no SRE code", name),
			Column:  headermap.KeySRE,
		}}
	}

	var lengthKm *float64
	if raw, ok := headermap.ValueFor(row, headermap.KeyExtKm); ok && strings.TrimSpace(raw) != "" {
		v, ok := ParseNumber(raw)
		if !ok {
			return Classification{Outcome: OutcomeHardError, RowError: &RowError{
				Code:    CodeExtKmInvalid,
				Message: fmt.Sprintf("section %q has unparseable length %q", name, raw),
				Column:  headermap.KeyExtKm,
				Value:   raw,
			}}
		}
		lengthKm = &v
	}

	if region, ok := rowRegion(row); ok && region != scope.Region {
		return Classification{Outcome: OutcomeSoftSkip, SkipReason: fmt.Sprintf("region %d outside batch scope", region)}
	}

	rec := &SectionRecord{
		Scope:      scope,
		SourceType: source,
		Name:       name,
		SRE:        sre,
		LengthKm:   lengthKm,
		Schedule:   schedule(row),
	}
	rec.Lot = trimmed(row, headermap.KeyLote)
	rec.Number = trimmed(row, headermap.KeyNumero)
	rec.RegionName = trimmed(row, headermap.KeyRegiaoConservacao)
	rec.CitySeat = trimmed(row, headermap.KeyCidadeSede)
	rec.Subsection = trimmed(row, headermap.KeySubtrechos)
	rec.RoadType = trimmed(row, headermap.KeyTipo)

	return Classification{Outcome: OutcomeValid, Record: rec}
}

func trimmed(row map[string]string, key string) string {
	v, _ := headermap.ValueFor(row, key)
	return strings.TrimSpace(v)
}

// rowRegion pulls the leading number out of a conservation-region cell like
// "21ª Regional - Divinópolis".
func rowRegion(row map[string]string) (int, bool) {
	raw, ok := headermap.ValueFor(row, headermap.KeyRegiaoConservacao)
	if !ok {
		return 0, false
	}
	digits := ""
	for _, r := range strings.TrimSpace(raw) {
		if r < '0' || r > '9' {
			break
		}
		digits += string(r)
	}
	if digits == "" {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return n, true
}

func schedule(row map[string]string) map[string]bool {
	out := make(map[string]bool)
	for key, value := range row {
		if headermap.IsPeriodKey(key) {
			out[key] = Truthy(value)
		}
	}
	return out
}

// Blank reports whether every cell of the row is empty after trimming.
func Blank(row map[string]string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
