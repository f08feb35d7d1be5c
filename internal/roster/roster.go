// Package roster reads politician and party rosters from CSV and XLSX files.
// The first row names the columns using the database field names (id, name,
// role_title, party_president, ...). Unknown columns are ignored.
package roster

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"github.com/politica-cm/politica-scanner/internal/model"
)

// Options configures how a roster file is read.
type Options struct {
	SheetName string // XLSX only; defaults to the first sheet
}

// Supported reports whether path has a roster file extension.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".xlsx":
		return true
	}
	return false
}

// ReadFile reads every row of a CSV or XLSX roster as a target of type tt.
func ReadFile(path string, tt model.TargetType, opts Options) ([]model.Target, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrap(err, "roster: open file")
		}
		defer f.Close() //nolint:errcheck
		return ReadCSV(f, tt)
	case ".xlsx":
		rows, err := readXLSX(path, opts.SheetName)
		if err != nil {
			return nil, err
		}
		return decode(&rowReader{rows: rows}, tt)
	default:
		return nil, eris.Errorf("roster: unsupported file type %q", ext)
	}
}

// ReadCSV reads a comma-separated roster.
func ReadCSV(r io.Reader, tt model.TargetType) ([]model.Target, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	return decode(cr, tt)
}

func decode(r csvutil.Reader, tt model.TargetType) ([]model.Target, error) {
	if _, err := model.ParseTargetType(string(tt)); err != nil {
		return nil, eris.Wrap(err, "roster")
	}

	dec, err := csvutil.NewDecoder(&headerReader{r: r})
	if err != nil {
		if err == io.EOF {
			return nil, eris.New("roster: file is empty")
		}
		return nil, eris.Wrap(err, "roster: read header")
	}
	if !hasColumns(dec.Header(), "id", "name") {
		return nil, eris.Errorf("roster: header must include id and name columns, got %v", dec.Header())
	}

	var targets []model.Target
	// Row numbers are 1-based and count the header.
	for row := 2; ; row++ {
		t, err := decodeRow(dec, tt)
		if err == io.EOF {
			return targets, nil
		}
		if err != nil {
			return nil, eris.Wrapf(err, "roster: row %d", row)
		}
		if strings.TrimSpace(t.ID()) == "" || strings.TrimSpace(t.Name()) == "" {
			return nil, eris.Errorf("roster: row %d: id and name are required", row)
		}
		targets = append(targets, t)
	}
}

func decodeRow(dec *csvutil.Decoder, tt model.TargetType) (model.Target, error) {
	if tt == model.TargetParty {
		var p model.PoliticalParty
		if err := dec.Decode(&p); err != nil {
			return model.Target{}, err
		}
		return model.PartyTarget(p), nil
	}

	var p model.Politician
	if err := dec.Decode(&p); err != nil {
		return model.Target{}, err
	}
	if p.Status == "" {
		p.Status = string(model.StatusActive)
	}
	return model.PoliticianTarget(p), nil
}

func hasColumns(header []string, want ...string) bool {
	seen := make(map[string]bool, len(header))
	for _, h := range header {
		seen[h] = true
	}
	for _, w := range want {
		if !seen[w] {
			return false
		}
	}
	return true
}

// headerReader normalizes the first record to lower-case snake_case names
// and trims every cell.
type headerReader struct {
	r    csvutil.Reader
	read bool
}

func (h *headerReader) Read() ([]string, error) {
	rec, err := h.r.Read()
	if err != nil {
		return nil, err
	}
	for i := range rec {
		rec[i] = strings.TrimSpace(rec[i])
	}
	if !h.read {
		h.read = true
		for i, col := range rec {
			col = strings.TrimPrefix(col, "\ufeff")
			rec[i] = strings.ReplaceAll(strings.ToLower(col), " ", "_")
		}
	}
	return rec, nil
}

// rowReader serves pre-read spreadsheet rows, padding short rows to the
// header width.
type rowReader struct {
	rows  [][]string
	next  int
	width int
}

func (r *rowReader) Read() ([]string, error) {
	for r.next < len(r.rows) {
		row := r.rows[r.next]
		r.next++
		if r.width == 0 {
			r.width = len(row)
			return row, nil
		}
		if blank(row) {
			continue
		}
		if len(row) < r.width {
			padded := make([]string, r.width)
			copy(padded, row)
			row = padded
		}
		return row[:r.width], nil
	}
	return nil, io.EOF
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
