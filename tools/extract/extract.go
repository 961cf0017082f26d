package extract

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/go-shiori/go-readability"
	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"
)

// Kind classifies extraction failures so callers can report them
// per-file without aborting the rest of a batch.
type Kind string

const (
	KindNotFound    Kind = "not_found"
	KindUnsupported Kind = "unsupported_type"
	KindTooLarge    Kind = "file_too_large"
	KindDecode      Kind = "decode_failure"
	KindEmpty       Kind = "empty_content"
)

// Error is a typed extraction error.
type Error struct {
	Kind Kind
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extract %s: %s: %v", e.Path, e.Kind, e.Err)
	}
	return fmt.Sprintf("extract %s: %s", e.Path, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Extraction holds the text pulled out of a file plus format metadata
// that travels with every chunk built from it.
type Extraction struct {
	Text      string
	FileType  string // text, csv, html, pdf
	Method    string // direct_read, direct_read_latin1, csv_summary, readability, pdf_text
	FileSize  int64
	PageCount int // pdf only
	Rows      int // csv only
	Columns   int // csv only
}

// File extracts text from a local file based on its extension.
// maxSize bounds the file size in bytes; larger files fail with
// KindTooLarge before any read.
func File(path string, maxSize int64) (Extraction, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Extraction{}, &Error{Kind: KindNotFound, Path: path, Err: err}
	}
	if maxSize > 0 && info.Size() > maxSize {
		return Extraction{}, &Error{Kind: KindTooLarge, Path: path,
			Err: fmt.Errorf("%d bytes (max %d)", info.Size(), maxSize)}
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md":
		return textFile(path, info.Size())
	case ".csv":
		return csvFile(path, info.Size())
	case ".xlsx", ".xls":
		return excelFile(path, info.Size())
	case ".html", ".htm":
		return htmlFile(path, info.Size())
	case ".pdf":
		return pdfFile(path, info.Size())
	default:
		return Extraction{}, &Error{Kind: KindUnsupported, Path: path,
			Err: fmt.Errorf("extension %q", filepath.Ext(path))}
	}
}

func textFile(path string, size int64) (Extraction, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Extraction{}, &Error{Kind: KindDecode, Path: path, Err: err}
	}

	method := "direct_read"
	text := string(raw)
	if !utf8.Valid(raw) {
		// Secondary encoding attempt: latin-1 maps every byte to a rune.
		var b strings.Builder
		b.Grow(len(raw))
		for _, c := range raw {
			b.WriteRune(rune(c))
		}
		text = b.String()
		method = "direct_read_latin1"
	}

	if strings.TrimSpace(text) == "" {
		return Extraction{}, &Error{Kind: KindEmpty, Path: path}
	}
	return Extraction{Text: text, FileType: "text", Method: method, FileSize: size}, nil
}

func csvFile(path string, size int64) (Extraction, error) {
	f, err := os.Open(path)
	if err != nil {
		return Extraction{}, &Error{Kind: KindDecode, Path: path, Err: err}
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return Extraction{}, &Error{Kind: KindDecode, Path: path, Err: err}
	}
	if len(records) == 0 {
		return Extraction{}, &Error{Kind: KindEmpty, Path: path}
	}

	header := records[0]
	rows := len(records) - 1
	return Extraction{
		Text: tabularSummary(records), FileType: "csv", Method: "csv_summary",
		FileSize: size, Rows: rows, Columns: len(header),
	}, nil
}

func excelFile(path string, size int64) (Extraction, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return Extraction{}, &Error{Kind: KindDecode, Path: path, Err: err}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Extraction{}, &Error{Kind: KindEmpty, Path: path}
	}
	// First sheet only, matching how a spreadsheet is usually summarized.
	records, err := f.GetRows(sheets[0])
	if err != nil {
		return Extraction{}, &Error{Kind: KindDecode, Path: path, Err: err}
	}
	if len(records) == 0 {
		return Extraction{}, &Error{Kind: KindEmpty, Path: path}
	}

	header := records[0]
	rows := len(records) - 1
	return Extraction{
		Text: tabularSummary(records), FileType: "excel", Method: "excel_summary",
		FileSize: size, Rows: rows, Columns: len(header),
	}, nil
}

// tabularSummary renders header, shape and a short row preview. The
// first record is treated as the header.
func tabularSummary(records [][]string) string {
	header := records[0]
	rows := len(records) - 1
	const previewRows = 10

	var b strings.Builder
	b.WriteString("Data Summary:\n")
	fmt.Fprintf(&b, "Shape: %d rows, %d columns\n", rows, len(header))
	fmt.Fprintf(&b, "Columns: %s\n", strings.Join(header, ", "))
	b.WriteString("\nData Preview:\n")
	for i, rec := range records {
		if i > previewRows {
			break
		}
		b.WriteString(strings.Join(rec, " | "))
		b.WriteString("\n")
	}
	if rows > previewRows {
		fmt.Fprintf(&b, "... and %d more rows\n", rows-previewRows)
	}
	return b.String()
}

func htmlFile(path string, size int64) (Extraction, error) {
	f, err := os.Open(path)
	if err != nil {
		return Extraction{}, &Error{Kind: KindDecode, Path: path, Err: err}
	}
	defer f.Close()

	pageURL, _ := url.Parse("file://" + path)
	article, err := readability.FromReader(f, pageURL)
	if err != nil {
		return Extraction{}, &Error{Kind: KindDecode, Path: path, Err: err}
	}
	text := strings.TrimSpace(article.TextContent)
	if text == "" {
		return Extraction{}, &Error{Kind: KindEmpty, Path: path}
	}
	if article.Title != "" {
		text = article.Title + "\n\n" + text
	}
	return Extraction{Text: text, FileType: "html", Method: "readability", FileSize: size}, nil
}

func pdfFile(path string, size int64) (Extraction, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return Extraction{}, &Error{Kind: KindDecode, Path: path, Err: err}
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		return Extraction{}, &Error{Kind: KindDecode, Path: path, Err: err}
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, reader); err != nil {
		return Extraction{}, &Error{Kind: KindDecode, Path: path, Err: err}
	}
	text := strings.TrimSpace(buf.String())
	if text == "" {
		return Extraction{}, &Error{Kind: KindEmpty, Path: path}
	}
	return Extraction{
		Text: text, FileType: "pdf", Method: "pdf_text",
		FileSize: size, PageCount: r.NumPage(),
	}, nil
}
