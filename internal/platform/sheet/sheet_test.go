package sheet

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestNewTableSkipsBlankRowsAndKeepsNumbers(t *testing.T) {
	t.Parallel()
	tbl, err := FromCSV("bcio.csv", "ID,Label,Parent\nBCIO:1,intervention,\n,,\nBCIO:2,behaviour change technique,intervention\n")
	if err != nil {
		t.Fatalf("FromCSV: %v", err)
	}
	if len(tbl.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(tbl.Rows))
	}
	if tbl.Rows[0].Number != 2 || tbl.Rows[1].Number != 4 {
		t.Fatalf("row numbers = %d,%d", tbl.Rows[0].Number, tbl.Rows[1].Number)
	}
	if got := tbl.Rows[1].Get("parent"); got != "intervention" {
		t.Fatalf("Get(parent) = %q", got)
	}
	if got := tbl.Rows[1].Get("  LABEL "); got != "behaviour change technique" {
		t.Fatalf("case-insensitive header lookup failed: %q", got)
	}
}

func TestReadTSV(t *testing.T) {
	t.Parallel()
	tbl, err := Read("rel.tsv", strings.NewReader("ID\tLabel\nRO:1\thas part\n"))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if tbl.Rows[0].Get("ID") != "RO:1" {
		t.Fatalf("unexpected row %+v", tbl.Rows[0])
	}
}

func TestReadWorkbook(t *testing.T) {
	t.Parallel()
	wb := excelize.NewFile()
	sh := wb.GetSheetName(0)
	_ = wb.SetCellValue(sh, "A1", "ID")
	_ = wb.SetCellValue(sh, "B1", "Label")
	_ = wb.SetCellValue(sh, "A2", "BCIO:1")
	_ = wb.SetCellValue(sh, "B2", "intervention")
	var buf bytes.Buffer
	if err := wb.Write(&buf); err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	tbl, err := Read("bcio.xlsx", &buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(tbl.Rows) != 1 || tbl.Rows[0].Get("label") != "intervention" {
		t.Fatalf("unexpected table %+v", tbl)
	}
}

func TestReadUnsupported(t *testing.T) {
	t.Parallel()
	_, err := Read("notes.txt", strings.NewReader(""))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}
