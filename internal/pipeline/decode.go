package pipeline

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	pdf "github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"

	"pricer/internal"
	"pricer/internal/util"
)

// Workbook is a decoded input file: one or more named sheets, each a
// RawTable with zero interpretation applied.
type Workbook struct {
	Filename   string
	Kind       internal.InputKind
	SheetNames []string
	sheets     map[string]internal.RawTable
}

func (w *Workbook) Sheet(name string) (internal.RawTable, bool) {
	raw, ok := w.sheets[name]
	return raw, ok
}

func (w *Workbook) FirstSheet() internal.RawTable {
	if len(w.SheetNames) == 0 {
		return nil
	}
	return w.sheets[w.SheetNames[0]]
}

// KindFromFilename guesses the input kind from the file extension.
func KindFromFilename(name string) internal.InputKind {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return internal.InputCSV
	case ".html", ".htm":
		return internal.InputHTML
	case ".pdf":
		return internal.InputPDF
	default:
		return internal.InputXLSX
	}
}

// DecodeInput parses a raw file into a Workbook. Failures are DecodeError:
// fatal for the run, surfaced to the user.
func DecodeInput(filename string, content []byte, kind internal.InputKind) (*Workbook, error) {
	var (
		wb  *Workbook
		err error
	)
	switch kind {
	case internal.InputCSV:
		wb, err = decodeCSV(content)
	case internal.InputHTML:
		wb, err = decodeHTML(content)
	case internal.InputPDF:
		wb, err = decodePDF(content)
	case internal.InputXLSX, "":
		wb, err = decodeXLSX(content)
	default:
		err = fmt.Errorf("unsupported input kind: %s", kind)
	}
	if err != nil {
		return nil, DecodeError{Err: err}
	}
	wb.Filename = filename
	return wb, nil
}

func decodeXLSX(content []byte) (*Workbook, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	wb := &Workbook{Kind: internal.InputXLSX, sheets: map[string]internal.RawTable{}}
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			continue
		}
		table := make(internal.RawTable, 0, len(rows))
		for _, row := range rows {
			table = append(table, row)
		}
		wb.SheetNames = append(wb.SheetNames, sheet)
		wb.sheets[sheet] = table
	}
	if len(wb.SheetNames) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	return wb, nil
}

func decodeCSV(content []byte) (*Workbook, error) {
	reader := csv.NewReader(bytes.NewReader(content))
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}

	table := make(internal.RawTable, 0, len(records))
	for _, record := range records {
		table = append(table, record)
	}
	return &Workbook{
		Kind:       internal.InputCSV,
		SheetNames: []string{"Sheet1"},
		sheets:     map[string]internal.RawTable{"Sheet1": table},
	}, nil
}

func decodeHTML(content []byte) (*Workbook, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}

	wb := &Workbook{Kind: internal.InputHTML, sheets: map[string]internal.RawTable{}}
	doc.Find("table").Each(func(i int, tableSel *goquery.Selection) {
		table := internal.RawTable{}
		tableSel.Find("tr").Each(func(_ int, rowSel *goquery.Selection) {
			cells := []string{}
			rowSel.Find("th,td").Each(func(_ int, cell *goquery.Selection) {
				cells = append(cells, util.NormalizeSpaces(cell.Text()))
			})
			table = append(table, cells)
		})
		if len(table) == 0 {
			return
		}
		name := fmt.Sprintf("Table %d", i+1)
		wb.SheetNames = append(wb.SheetNames, name)
		wb.sheets[name] = table
	})

	if len(wb.SheetNames) == 0 {
		return nil, fmt.Errorf("no tables found in html document")
	}
	return wb, nil
}

// decodePDF flattens each page into single-column rows of text lines. The
// structure detector and field mapping then work the same as for a sheet
// with one column.
func decodePDF(content []byte) (*Workbook, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, err
	}

	table := internal.RawTable{}
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
			table = append(table, []string{util.NormalizeSpaces(line)})
		}
	}
	if len(table) == 0 {
		return nil, fmt.Errorf("no extractable text in pdf")
	}
	return &Workbook{
		Kind:       internal.InputPDF,
		SheetNames: []string{"PDF"},
		sheets:     map[string]internal.RawTable{"PDF": table},
	}, nil
}
