package parser

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/tabula-cli/internal/errs"
	"github.com/pierrec/lz4/v4"
)

type csvReader struct{}

func (csvReader) CanRead(filename string) bool {
	name := strings.TrimSuffix(strings.ToLower(filename), ".lz4")
	return strings.HasSuffix(name, ".csv") || strings.HasSuffix(name, ".tsv") || strings.HasSuffix(name, ".txt")
}

func (csvReader) Read(path string, opt Options) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()
	var r io.Reader = f
	inner := path
	if strings.HasSuffix(strings.ToLower(path), ".lz4") {
		r = lz4.NewReader(f)
		inner = path[:len(path)-len(".lz4")]
	}
	if opt.Delimiter == 0 && strings.HasSuffix(strings.ToLower(inner), ".tsv") {
		opt.Delimiter = '\t'
	}
	return ReadCSV(r, filepath.Base(inner), opt)
}

// ReadCSV tokenizes CSV from r. The first record is the header.
func ReadCSV(r io.Reader, name string, opt Options) (*Source, error) {
	br := bufio.NewReader(r)
	delim := opt.Delimiter
	if delim == 0 {
		delim = sniffDelimiter(br)
	}
	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comma = delim

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errs.E(errs.ParseError, "parser.ReadCSV", name, errors.New("empty input: missing header"))
		}
		return nil, errs.E(errs.ParseError, "parser.ReadCSV", name, fmt.Errorf("read header: %w", err))
	}
	var rows [][]string
	for {
		rec, err := cr.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, errs.E(errs.ParseError, "parser.ReadCSV", name, fmt.Errorf("read row %d: %w", len(rows)+1, err))
		}
		rows = append(rows, rec)
	}
	return newSource(name, header, rows)
}

// sniffDelimiter picks the most frequent of ',', ';' and tab on the first
// line, defaulting to comma.
func sniffDelimiter(br *bufio.Reader) rune {
	peek, _ := br.Peek(4096)
	line := string(peek)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	best, bestN := ',', strings.Count(line, ",")
	for _, d := range []rune{';', '\t'} {
		if n := strings.Count(line, string(d)); n > bestN {
			best, bestN = d, n
		}
	}
	return best
}

// WriteCSV writes header and rows as CSV to w, lz4-compressing when compress is set.
func WriteCSV(w io.Writer, header []string, rows [][]string, compress bool) error {
	var zw *lz4.Writer
	if compress {
		zw = lz4.NewWriter(w)
		w = zw
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	if zw != nil {
		if err := zw.Close(); err != nil {
			return fmt.Errorf("close lz4: %w", err)
		}
	}
	return nil
}
