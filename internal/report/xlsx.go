package report

import (
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/site-audit/internal/model"
)

// Sheet names written by WriteXLSX.
const (
	SheetScans  = "Scans"
	SheetIssues = "Issues"
	SheetPages  = "Pages"
)

var (
	scanHeader  = []string{"Scan ID", "URL", "Status", "Score", "Pages", "High", "Medium", "Low", "Keywords", "Created", "Error"}
	issueHeader = []string{"Scan ID", "URL", "Category", "Severity", "Issue", "Impact", "Fix Action"}
	pageHeader  = []string{"Scan ID", "URL", "Title", "Words", "Load (ms)"}
)

// WriteXLSX writes scans as a workbook with one sheet each for scans,
// issues and pages.
func WriteXLSX(w io.Writer, scans []model.Scan) error {
	f := xlsx.NewFile()

	scanSheet, err := f.AddSheet(SheetScans)
	if err != nil {
		return eris.Wrap(err, "xlsx: add scans sheet")
	}
	issueSheet, err := f.AddSheet(SheetIssues)
	if err != nil {
		return eris.Wrap(err, "xlsx: add issues sheet")
	}
	pageSheet, err := f.AddSheet(SheetPages)
	if err != nil {
		return eris.Wrap(err, "xlsx: add pages sheet")
	}

	addRow(scanSheet, scanHeader)
	addRow(issueSheet, issueHeader)
	addRow(pageSheet, pageHeader)

	for _, sc := range scans {
		row := []string{sc.ID, sc.URL, string(sc.Status), "", "", "", "", "", "", sc.CreatedAt.Format("2006-01-02 15:04:05"), sc.Error}
		if res := sc.Result; res != nil {
			counts := res.Summary.CountBySeverity()
			row[3] = strconv.Itoa(res.Summary.Score)
			row[4] = strconv.Itoa(res.Summary.PagesScanned)
			row[5] = strconv.Itoa(counts[model.SeverityHigh])
			row[6] = strconv.Itoa(counts[model.SeverityMedium])
			row[7] = strconv.Itoa(counts[model.SeverityLow])
			row[8] = strings.Join(res.Keywords, ", ")

			for _, iss := range res.Summary.Issues {
				addRow(issueSheet, []string{sc.ID, sc.URL, string(iss.Category), string(iss.Severity), iss.Issue, iss.Impact, iss.FixAction})
			}
			for _, pg := range res.Pages {
				addRow(pageSheet, []string{sc.ID, pg.URL, pg.Title, strconv.Itoa(pg.WordCount), strconv.FormatInt(pg.LoadTimeMS, 10)})
			}
		}
		addRow(scanSheet, row)
	}

	return eris.Wrap(f.Write(w), "xlsx: write workbook")
}

// ReadXLSX returns the rows of one sheet of a workbook as strings.
func ReadXLSX(data []byte, sheetName string) ([][]string, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open workbook")
	}
	sheet, ok := f.Sheet[sheetName]
	if !ok {
		return nil, eris.Errorf("xlsx: sheet %q not found", sheetName)
	}

	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

func addRow(sheet *xlsx.Sheet, values []string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}
