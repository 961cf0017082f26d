package extract

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestFileTextUTF8(t *testing.T) {
	path := writeFile(t, "notes.txt", []byte("The quick brown fox jumps over the lazy dog."))
	ext, err := File(path, 1<<20)
	if err != nil {
		t.Fatalf("File failed: %v", err)
	}
	if ext.FileType != "text" || ext.Method != "direct_read" {
		t.Fatalf("unexpected type/method: %s/%s", ext.FileType, ext.Method)
	}
	if !strings.Contains(ext.Text, "quick brown fox") {
		t.Fatalf("text not extracted: %q", ext.Text)
	}
}

func TestFileTextLatin1Fallback(t *testing.T) {
	// 0xE9 is é in latin-1 and invalid as a standalone UTF-8 byte.
	path := writeFile(t, "latin.txt", []byte{'c', 'a', 'f', 0xE9, ' ', 'a', 'u', ' ', 'l', 'a', 'i', 't'})
	ext, err := File(path, 1<<20)
	if err != nil {
		t.Fatalf("File failed: %v", err)
	}
	if ext.Method != "direct_read_latin1" {
		t.Fatalf("expected latin1 fallback, got %s", ext.Method)
	}
	if !strings.Contains(ext.Text, "café") {
		t.Fatalf("latin-1 decode wrong: %q", ext.Text)
	}
}

func TestFileTooLarge(t *testing.T) {
	path := writeFile(t, "big.txt", make([]byte, 2048))
	_, err := File(path, 1024)
	var xerr *Error
	if !errors.As(err, &xerr) || xerr.Kind != KindTooLarge {
		t.Fatalf("expected KindTooLarge, got %v", err)
	}
}

func TestFileUnsupportedExtension(t *testing.T) {
	path := writeFile(t, "binary.exe", []byte("MZ"))
	_, err := File(path, 1<<20)
	var xerr *Error
	if !errors.As(err, &xerr) || xerr.Kind != KindUnsupported {
		t.Fatalf("expected KindUnsupported, got %v", err)
	}
}

func TestFileNotFound(t *testing.T) {
	_, err := File(filepath.Join(t.TempDir(), "missing.txt"), 1<<20)
	var xerr *Error
	if !errors.As(err, &xerr) || xerr.Kind != KindNotFound {
		t.Fatalf("expected KindNotFound, got %v", err)
	}
}

func TestFileEmptyText(t *testing.T) {
	path := writeFile(t, "blank.txt", []byte("   \n\t  "))
	_, err := File(path, 1<<20)
	var xerr *Error
	if !errors.As(err, &xerr) || xerr.Kind != KindEmpty {
		t.Fatalf("expected KindEmpty, got %v", err)
	}
}

func TestFileCSVSummary(t *testing.T) {
	csvData := "name,age,city\nalice,30,berlin\nbob,25,oslo\n"
	path := writeFile(t, "people.csv", []byte(csvData))
	ext, err := File(path, 1<<20)
	if err != nil {
		t.Fatalf("File failed: %v", err)
	}
	if ext.FileType != "csv" {
		t.Fatalf("unexpected file type: %s", ext.FileType)
	}
	if ext.Rows != 2 || ext.Columns != 3 {
		t.Fatalf("unexpected shape: %d rows, %d columns", ext.Rows, ext.Columns)
	}
	if !strings.Contains(ext.Text, "name, age, city") {
		t.Fatalf("columns missing from summary: %q", ext.Text)
	}
	if !strings.Contains(ext.Text, "alice") {
		t.Fatalf("preview missing from summary: %q", ext.Text)
	}
}

func TestFileExcelSummary(t *testing.T) {
	f := excelize.NewFile()
	rows := [][]interface{}{
		{"name", "age", "city"},
		{"alice", 30, "berlin"},
		{"bob", 25, "oslo"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}
	path := filepath.Join(t.TempDir(), "people.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save xlsx: %v", err)
	}

	ext, err := File(path, 1<<20)
	if err != nil {
		t.Fatalf("File failed: %v", err)
	}
	if ext.FileType != "excel" || ext.Method != "excel_summary" {
		t.Fatalf("unexpected type/method: %s/%s", ext.FileType, ext.Method)
	}
	if ext.Rows != 2 || ext.Columns != 3 {
		t.Fatalf("unexpected shape: %d rows, %d columns", ext.Rows, ext.Columns)
	}
	if !strings.Contains(ext.Text, "name, age, city") {
		t.Fatalf("columns missing from summary: %q", ext.Text)
	}
	if !strings.Contains(ext.Text, "alice") {
		t.Fatalf("preview missing from summary: %q", ext.Text)
	}
}

func TestFileExcelDecodeFailure(t *testing.T) {
	// legacy binary .xls content is not a zip archive
	path := writeFile(t, "old.xls", []byte("not a spreadsheet"))
	_, err := File(path, 1<<20)
	var xerr *Error
	if !errors.As(err, &xerr) || xerr.Kind != KindDecode {
		t.Fatalf("expected KindDecode, got %v", err)
	}
}

func TestFileHTMLReadability(t *testing.T) {
	html := `<html><head><title>Go Proverbs</title></head><body>
<article><h1>Go Proverbs</h1>
<p>Clear is better than clever. Errors are values. Dont panic.
A little copying is better than a little dependency.</p></article>
</body></html>`
	path := writeFile(t, "page.html", []byte(html))
	ext, err := File(path, 1<<20)
	if err != nil {
		t.Fatalf("File failed: %v", err)
	}
	if ext.FileType != "html" || ext.Method != "readability" {
		t.Fatalf("unexpected type/method: %s/%s", ext.FileType, ext.Method)
	}
	if !strings.Contains(ext.Text, "Clear is better than clever") {
		t.Fatalf("article text missing: %q", ext.Text)
	}
}
