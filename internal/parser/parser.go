// Package parser tokenizes tabular files into a header plus raw string rows,
// the form the ingestion pipeline consumes.
package parser

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/KaramelBytes/tabula-cli/internal/errs"
)

// Source is a tokenized table: a header and row-major raw values. Every row
// has exactly len(Header) cells.
type Source struct {
	Header []string
	Rows   [][]string
}

// NumRows returns the number of data rows.
func (s *Source) NumRows() int {
	if s == nil {
		return 0
	}
	return len(s.Rows)
}

// Options controls tokenizing.
type Options struct {
	// Delimiter for CSV. If 0, it is detected from the file name and header line.
	Delimiter rune
	// SheetName selects an XLSX sheet by name.
	SheetName string
	// SheetIndex selects an XLSX sheet (1-based) when SheetName is empty.
	SheetIndex int
}

// Reader reads one family of tabular files.
type Reader interface {
	CanRead(filename string) bool
	Read(path string, opt Options) (*Source, error)
}

var registry []Reader

// Register adds a reader implementation to the registry.
func Register(r Reader) {
	registry = append(registry, r)
}

// Extensions are the file suffixes the registered readers understand,
// longest first so they can be stripped to derive a dataset name.
var Extensions = []string{".csv.lz4", ".tsv.lz4", ".lz4", ".csv", ".tsv", ".txt", ".xlsx"}

// ErrUnsupported indicates no reader handles the file.
var ErrUnsupported = errors.New("unsupported file format")

// ReadFile selects a reader based on the file name.
func ReadFile(path string, opt Options) (*Source, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("stat source: %w", err)
	}
	for _, r := range registry {
		if r.CanRead(path) {
			return r.Read(path, opt)
		}
	}
	return nil, fmt.Errorf("%s: %w", path, ErrUnsupported)
}

func init() {
	Register(csvReader{})
	Register(xlsxReader{})
}

// NormalizeHeader trims header cells, names empty ones "Unnamed: <i>" and
// disambiguates duplicates with ".1", ".2" suffixes. Duplicates are compared
// case-insensitively since they become SQLite column names.
func NormalizeHeader(header []string) []string {
	out := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if h == "" {
			h = "Unnamed: " + strconv.Itoa(i)
		}
		key := strings.ToLower(h)
		if n, dup := seen[key]; dup {
			for {
				n++
				cand := fmt.Sprintf("%s.%d", h, n)
				if _, taken := seen[strings.ToLower(cand)]; !taken {
					seen[key] = n
					h = cand
					break
				}
			}
		}
		seen[strings.ToLower(h)] = 0
		out[i] = h
	}
	return out
}

// newSource builds a Source from a raw header and rows, padding short rows.
// A row with more cells than the header is a ParseError.
func newSource(name string, header []string, rows [][]string) (*Source, error) {
	src := &Source{Header: NormalizeHeader(header), Rows: make([][]string, 0, len(rows))}
	ncol := len(src.Header)
	for i, r := range rows {
		if len(r) > ncol {
			extra := r[ncol:]
			if strings.TrimSpace(strings.Join(extra, "")) != "" {
				return nil, errs.E(errs.ParseError, "parser.Read", name,
					fmt.Errorf("row %d has %d fields, header has %d", i+1, len(r), ncol))
			}
			r = r[:ncol]
		}
		row := make([]string, ncol)
		copy(row, r)
		src.Rows = append(src.Rows, row)
	}
	return src, nil
}
