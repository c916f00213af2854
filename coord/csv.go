package coord

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Column names accepted in a tabular batch
const (
	ColID            = "id"
	ColLonDegree     = "bujur_derajat"
	ColLonMinute     = "bujur_menit"
	ColLonSecond     = "bujur_detik"
	ColLonHemisphere = "bt_bb"
	ColLatDegree     = "lintang_derajat"
	ColLatMinute     = "lintang_menit"
	ColLatSecond     = "lintang_detik"
	ColLatHemisphere = "lu_ls"
	ColX             = "x"
	ColY             = "y"
)

var dmsColumns = []string{
	ColLonDegree, ColLonMinute, ColLonSecond, ColLonHemisphere,
	ColLatDegree, ColLatMinute, ColLatSecond, ColLatHemisphere,
}

// header aliases, all lower-case
var columnAliases = map[string]string{
	"longitude": ColX,
	"lon":       ColX,
	"bujur":     ColX,
	"latitude":  ColY,
	"lat":       ColY,
	"lintang":   ColY,
}

// ReadCSV parses a tabular batch with a header row. Without x/y columns every
// DMS column is required; with both sets each row may fill either one.
func ReadCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: empty batch", ErrInvalidInput)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read CSV header: %v", ErrInvalidInput, err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if alias, ok := columnAliases[name]; ok {
			name = alias
		}
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}

	if _, ok := cols[ColID]; !ok {
		return nil, fmt.Errorf("%w: missing required column %q", ErrInvalidInput, ColID)
	}
	_, hasX := cols[ColX]
	_, hasY := cols[ColY]
	if !hasX || !hasY {
		for _, c := range dmsColumns {
			if _, ok := cols[c]; !ok {
				return nil, fmt.Errorf("%w: missing required column %q", ErrInvalidInput, c)
			}
		}
	}

	var rows []Row
	line := 1
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidInput, line, err)
		}
		if blank(record) {
			continue
		}

		cell := func(name string) string {
			i, ok := cols[name]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}
		number := func(name string) (*float64, error) {
			s := cell(name)
			if s == "" {
				return nil, nil
			}
			v, err := parseNumber(s)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: column %s: %q is not a number", ErrInvalidInput, line, name, s)
			}
			return &v, nil
		}

		row := Row{ID: cell(ColID)}
		targets := []struct {
			col string
			dst **float64
		}{
			{ColX, &row.X},
			{ColY, &row.Y},
			{ColLonDegree, &row.LonDegree},
			{ColLonMinute, &row.LonMinute},
			{ColLonSecond, &row.LonSecond},
			{ColLatDegree, &row.LatDegree},
			{ColLatMinute, &row.LatMinute},
			{ColLatSecond, &row.LatSecond},
		}
		for _, t := range targets {
			if *t.dst, err = number(t.col); err != nil {
				return nil, err
			}
		}
		row.LonHemisphere = cell(ColLonHemisphere)
		row.LatHemisphere = cell(ColLatHemisphere)
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: empty batch", ErrInvalidInput)
	}
	return rows, nil
}

// parseNumber accepts both "1.5" and the comma decimal separator "1,5"
func parseNumber(s string) (float64, error) {
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	return strconv.ParseFloat(s, 64)
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
