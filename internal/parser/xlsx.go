package parser

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/tabula-cli/internal/errs"
)

type xlsxReader struct{}

func (xlsxReader) CanRead(filename string) bool {
	return strings.HasSuffix(strings.ToLower(filename), ".xlsx")
}

// Read extracts the selected sheet. The first row is the header. Cell values
// are taken as stored: numbers as their literal text, shared and inline
// strings resolved.
func (xlsxReader) Read(p string, opt Options) (*Source, error) {
	name := filepath.Base(p)
	zr, err := zip.OpenReader(p)
	if err != nil {
		return nil, errs.E(errs.ParseError, "parser.ReadXLSX", name, fmt.Errorf("open xlsx: %w", err))
	}
	defer zr.Close()

	sheets := parseWorkbook(zipEntry(&zr.Reader, "xl/workbook.xml"))
	rels := parseRelationships(zipEntry(&zr.Reader, "xl/_rels/workbook.xml.rels"))
	target, err := resolveSheet(sheets, rels, opt)
	if err != nil {
		return nil, errs.E(errs.ParseError, "parser.ReadXLSX", name, err)
	}
	data := zipEntry(&zr.Reader, target)
	if data == nil {
		return nil, errs.E(errs.ParseError, "parser.ReadXLSX", name, fmt.Errorf("sheet %s missing from workbook", target))
	}
	shared := parseSharedStrings(zipEntry(&zr.Reader, "xl/sharedStrings.xml"))
	rr := &sheetRows{dec: xml.NewDecoder(bytes.NewReader(data)), shared: shared}

	header, ok := rr.next()
	if !ok {
		return nil, errs.E(errs.ParseError, "parser.ReadXLSX", name, errors.New("empty sheet: missing header"))
	}
	var rows [][]string
	for {
		row, ok := rr.next()
		if !ok {
			break
		}
		rows = append(rows, row)
	}
	return newSource(name, header, rows)
}

type wbSheet struct {
	Name    string
	SheetID int
	RID     string
}

func resolveSheet(sheets []wbSheet, rels map[string]string, opt Options) (string, error) {
	if opt.SheetName != "" {
		names := make([]string, 0, len(sheets))
		for _, s := range sheets {
			if strings.EqualFold(s.Name, opt.SheetName) {
				if rel, ok := rels[s.RID]; ok {
					return relPath(rel), nil
				}
			}
			names = append(names, s.Name)
		}
		return "", fmt.Errorf("sheet %q not found; available sheets: %s", opt.SheetName, strings.Join(names, ", "))
	}
	idx := opt.SheetIndex
	if idx <= 0 {
		idx = 1
	}
	for _, s := range sheets {
		if s.SheetID == idx {
			if rel, ok := rels[s.RID]; ok {
				return relPath(rel), nil
			}
		}
	}
	return fmt.Sprintf("xl/worksheets/sheet%d.xml", idx), nil
}

// relPath maps a workbook relationship target to its zip entry name.
func relPath(rel string) string {
	rel = strings.TrimPrefix(rel, "/")
	if strings.HasPrefix(rel, "xl/") {
		return rel
	}
	return path.Join("xl", rel)
}

func zipEntry(zr *zip.Reader, name string) []byte {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil
		}
		defer rc.Close()
		b, err := io.ReadAll(rc)
		if err != nil {
			return nil
		}
		return b
	}
	return nil
}

// walkStart calls fn for every start element in data.
func walkStart(data []byte, fn func(se xml.StartElement)) {
	if len(data) == 0 {
		return
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			return
		}
		if se, ok := tok.(xml.StartElement); ok {
			fn(se)
		}
	}
}

func attr(se xml.StartElement, local string) string {
	for _, a := range se.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

func parseWorkbook(data []byte) []wbSheet {
	var sheets []wbSheet
	walkStart(data, func(se xml.StartElement) {
		if se.Name.Local != "sheet" {
			return
		}
		sheets = append(sheets, wbSheet{
			Name:    attr(se, "name"),
			SheetID: leadingInt(attr(se, "sheetId")),
			RID:     attr(se, "id"),
		})
	})
	return sheets
}

func parseRelationships(data []byte) map[string]string {
	out := map[string]string{}
	walkStart(data, func(se xml.StartElement) {
		if se.Name.Local != "Relationship" {
			return
		}
		if id, target := attr(se, "Id"), attr(se, "Target"); id != "" && target != "" {
			out[id] = target
		}
	})
	return out
}

func parseSharedStrings(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	var out []string
	var buf strings.Builder
	inT := false
	for {
		tok, err := dec.Token()
		if err != nil {
			return out
		}
		switch se := tok.(type) {
		case xml.StartElement:
			switch se.Name.Local {
			case "si":
				buf.Reset()
			case "t":
				inT = true
			}
		case xml.EndElement:
			switch se.Name.Local {
			case "t":
				inT = false
			case "si":
				out = append(out, buf.String())
			}
		case xml.CharData:
			if inT {
				buf.Write(se)
			}
		}
	}
}

// sheetRows streams rows out of a worksheet, placing each cell by its
// reference so sparse rows keep their column positions.
type sheetRows struct {
	dec    *xml.Decoder
	shared []string
}

func (r *sheetRows) next() ([]string, bool) {
	var row []string
	inRow := false
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return nil, false
		}
		switch se := tok.(type) {
		case xml.StartElement:
			switch {
			case se.Name.Local == "row":
				inRow = true
				row = nil
			case inRow && se.Name.Local == "c":
				col := columnIndex(attr(se, "r"))
				if col < 0 {
					col = len(row)
				}
				for len(row) <= col {
					row = append(row, "")
				}
				row[col] = r.cellValue(attr(se, "t"))
			}
		case xml.EndElement:
			if se.Name.Local == "row" && inRow {
				return row, true
			}
		}
	}
}

// cellValue consumes tokens up to </c> and returns the cell's text.
func (r *sheetRows) cellValue(typ string) string {
	var val strings.Builder
	inVal := false
	for {
		tok, err := r.dec.Token()
		if err != nil {
			break
		}
		switch se := tok.(type) {
		case xml.StartElement:
			if se.Name.Local == "v" || se.Name.Local == "t" {
				inVal = true
			}
		case xml.EndElement:
			if se.Name.Local == "v" || se.Name.Local == "t" {
				inVal = false
			}
			if se.Name.Local == "c" {
				return r.resolve(typ, val.String())
			}
		case xml.CharData:
			if inVal {
				val.Write(se)
			}
		}
	}
	return r.resolve(typ, val.String())
}

func (r *sheetRows) resolve(typ, v string) string {
	if typ != "s" {
		return v
	}
	idx := leadingInt(v)
	if idx >= 0 && idx < len(r.shared) {
		return r.shared[idx]
	}
	return ""
}

// columnIndex converts a cell reference like "C12" to a 0-based column.
func columnIndex(ref string) int {
	idx := 0
	n := 0
	for _, c := range strings.ToUpper(ref) {
		if c < 'A' || c > 'Z' {
			break
		}
		idx = idx*26 + int(c-'A'+1)
		n++
	}
	if n == 0 {
		return -1
	}
	return idx - 1
}

func leadingInt(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			break
		}
		n = n*10 + int(c-'0')
	}
	return n
}
