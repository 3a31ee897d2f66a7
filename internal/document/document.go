// Package document gives parsers uniform access to uploaded statement files.
package document

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// Format is the physical format of an uploaded statement.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatText Format = "text"
)

var (
	pdfMagic = []byte("%PDF-")
	zipMagic = []byte("PK\x03\x04")
	utf8BOM  = []byte("\xef\xbb\xbf")
)

// Document is an uploaded statement file.
type Document struct {
	Name   string
	Format Format
	Data   []byte
}

// New wraps raw bytes, detecting the format from content first and the file extension second.
func New(name string, data []byte) *Document {
	return &Document{Name: name, Format: Detect(name, data), Data: data}
}

// Detect guesses the document format.
func Detect(name string, data []byte) Format {
	switch {
	case bytes.HasPrefix(data, pdfMagic):
		return FormatPDF
	case bytes.HasPrefix(data, zipMagic):
		return FormatXLSX
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return FormatPDF
	case ".xlsx":
		return FormatXLSX
	case ".csv":
		return FormatCSV
	default:
		return FormatText
	}
}

// Text returns the document decoded as text. Bytes that are not valid UTF-8 are
// read as Windows-1252, the encoding most Brazilian bank exports use.
func (d *Document) Text() (string, error) {
	switch d.Format {
	case FormatPDF, FormatXLSX:
		return "", fmt.Errorf("%s document %s has no plain text form", d.Format, d.Name)
	}
	data := bytes.TrimPrefix(d.Data, utf8BOM)
	if utf8.Valid(data) {
		return string(data), nil
	}
	decoded, err := io.ReadAll(transform.NewReader(bytes.NewReader(data), charmap.Windows1252.NewDecoder()))
	if err != nil {
		return "", fmt.Errorf("decoding %s: %w", d.Name, err)
	}
	return string(decoded), nil
}

// Line is one non-empty, trimmed line of document text.
type Line struct {
	Page int // 1-based PDF page, 0 for other formats
	Text string
}

// SourceLines returns the document text line by line, in order.
func (d *Document) SourceLines() ([]Line, error) {
	var out []Line
	add := func(page int, text string) {
		for _, l := range splitLines(text) {
			out = append(out, Line{Page: page, Text: l})
		}
	}
	switch d.Format {
	case FormatPDF:
		pages, err := pdfPages(d.Data)
		if err != nil {
			return nil, fmt.Errorf("extracting text from %s: %w", d.Name, err)
		}
		for i, p := range pages {
			add(i+1, p)
		}
	case FormatXLSX:
		rows, err := d.SheetRows()
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			add(0, strings.Join(row, " "))
		}
	default:
		t, err := d.Text()
		if err != nil {
			return nil, err
		}
		add(0, t)
	}
	return out, nil
}

// Lines returns the non-empty, trimmed text lines of the document in order.
// PDF pages are concatenated in page order.
func (d *Document) Lines() ([]string, error) {
	src, err := d.SourceLines()
	if err != nil {
		return nil, err
	}
	lines := make([]string, len(src))
	for i, l := range src {
		lines[i] = l.Text
	}
	return lines, nil
}

func splitLines(text string) []string {
	var lines []string
	for _, l := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		l = strings.TrimSpace(l)
		if l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}
