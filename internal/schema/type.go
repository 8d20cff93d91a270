package schema

import "strings"

// ColumnType is the inferred type of a dataset column. It is decided once at
// ingestion and persisted as the column's declared SQL type.
type ColumnType uint8

const (
	Text ColumnType = iota
	Integer
	Real
	Timestamp
)

func (t ColumnType) String() string {
	switch t {
	case Integer:
		return "integer"
	case Real:
		return "real"
	case Timestamp:
		return "timestamp"
	default:
		return "text"
	}
}

// SQLType is the declared column type used in CREATE TABLE.
func (t ColumnType) SQLType() string {
	switch t {
	case Integer:
		return "INTEGER"
	case Real:
		return "REAL"
	case Timestamp:
		return "TIMESTAMP"
	default:
		return "TEXT"
	}
}

// IsNumeric reports whether the column takes part in numeric statistics.
func (t ColumnType) IsNumeric() bool { return t == Integer || t == Real }

// ParseSQLType maps a declared SQL type back to a ColumnType. Unknown
// declarations fall back to Text.
func ParseSQLType(decl string) ColumnType {
	switch strings.ToUpper(strings.TrimSpace(decl)) {
	case "INTEGER", "INT", "BIGINT":
		return Integer
	case "REAL", "FLOAT", "DOUBLE":
		return Real
	case "TIMESTAMP", "DATETIME":
		return Timestamp
	default:
		return Text
	}
}

// MarshalText encodes the type by name.
func (t ColumnType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }
