// Package sheetio reads and writes grids as spreadsheet files. The first
// row of a sheet is the header; each following row is one entity.
package sheetio

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/exa-sheets/internal/grid"
)

// DefaultSheetName names the sheet written to new workbooks.
const DefaultSheetName = "Sheet1"

// Read loads a grid from path. The format is chosen by extension: .xlsx or
// .csv.
func Read(path string) (*grid.Grid, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".xlsx":
		return ReadXLSX(path)
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrap(err, "sheetio: open csv")
		}
		defer f.Close() //nolint:errcheck
		return ReadCSV(f)
	default:
		return nil, eris.Errorf("sheetio: unsupported file type %q", ext)
	}
}

// Write saves g to path, creating parent directories as needed. The format
// is chosen by extension: .xlsx or .csv.
func Write(path string, g *grid.Grid) error {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".xlsx" && ext != ".csv" {
		return eris.Errorf("sheetio: unsupported file type %q", ext)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrap(err, "sheetio: create output directory")
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "sheetio: create file")
	}
	if ext == ".csv" {
		err = WriteCSV(f, g)
	} else {
		err = WriteXLSX(f, g)
	}
	if cerr := f.Close(); err == nil && cerr != nil {
		err = eris.Wrap(cerr, "sheetio: close file")
	}
	return err
}

// ReadXLSX reads the first sheet of an xlsx workbook on disk.
func ReadXLSX(path string) (*grid.Grid, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "sheetio: open xlsx")
	}
	return fromWorkbook(f)
}

// ReadXLSXBytes reads the first sheet of an in-memory xlsx workbook, such
// as an HTTP upload.
func ReadXLSXBytes(data []byte) (*grid.Grid, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, eris.Wrap(err, "sheetio: open xlsx")
	}
	return fromWorkbook(f)
}

func fromWorkbook(f *xlsx.File) (*grid.Grid, error) {
	if len(f.Sheets) == 0 {
		return nil, eris.New("sheetio: workbook has no sheets")
	}
	sheet := f.Sheets[0]

	records := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		if row == nil {
			records = append(records, nil)
			continue
		}
		rec := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			rec[j] = cell.String()
		}
		records = append(records, rec)
	}
	return fromRecords(records)
}

// ReadCSV reads a grid from CSV.
func ReadCSV(r io.Reader) (*grid.Grid, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "sheetio: parse csv")
	}
	return fromRecords(records)
}

// fromRecords trims trailing blank header cells and trailing blank rows,
// then builds the grid.
func fromRecords(records [][]string) (*grid.Grid, error) {
	if len(records) == 0 {
		return nil, eris.New("sheetio: sheet is empty")
	}

	header := records[0]
	for len(header) > 0 && strings.TrimSpace(header[len(header)-1]) == "" {
		header = header[:len(header)-1]
	}
	if len(header) == 0 {
		return nil, eris.New("sheetio: header row is empty")
	}

	body := records[1:]
	for len(body) > 0 && blank(body[len(body)-1]) {
		body = body[:len(body)-1]
	}

	out := make([][]string, 0, len(body)+1)
	out = append(out, header)
	for _, rec := range body {
		if len(rec) > len(header) {
			rec = rec[:len(header)]
		}
		out = append(out, rec)
	}

	g, err := grid.FromRecords(out)
	if err != nil {
		return nil, eris.Wrap(err, "sheetio: invalid header")
	}
	return g, nil
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// WriteXLSX writes g as a single-sheet xlsx workbook.
func WriteXLSX(w io.Writer, g *grid.Grid) error {
	return writeRecordsXLSX(w, g.Records())
}

func writeRecordsXLSX(w io.Writer, records [][]string) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(DefaultSheetName)
	if err != nil {
		return eris.Wrap(err, "sheetio: add sheet")
	}
	for _, rec := range records {
		row := sheet.AddRow()
		for _, v := range rec {
			row.AddCell().SetString(v)
		}
	}
	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "sheetio: write xlsx")
	}
	return nil
}

// WriteCSV writes g as CSV.
func WriteCSV(w io.Writer, g *grid.Grid) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(g.Records()); err != nil {
		return eris.Wrap(err, "sheetio: write csv")
	}
	return nil
}
