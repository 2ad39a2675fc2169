// Package typecheck classifies column types into coarse families and decides
// whether comparing two columns is likely a mistake.
//
// It never validates SQL. A mismatch is only ever advisory.
package typecheck

import (
	"fmt"
	"sort"
	"strings"

	"github.com/leapstack-labs/sqlsense/pkg/token"
)

// Family is a group of types that compare naturally with each other.
type Family int

// Type families.
const (
	Unknown Family = iota
	Integer
	Decimal
	String
	DateTime
	Boolean
	Binary
	UniqueIdentifier
)

var familyNames = map[Family]string{
	Unknown:          "unknown",
	Integer:          "integer",
	Decimal:          "decimal",
	String:           "string",
	DateTime:         "datetime",
	Boolean:          "boolean",
	Binary:           "binary",
	UniqueIdentifier: "uniqueidentifier",
}

func (f Family) String() string {
	return familyNames[f]
}

// ParseFamily parses a family name as printed by String.
func ParseFamily(s string) (Family, error) {
	want := token.Fold(strings.TrimSpace(s))
	for f, name := range familyNames {
		if name == want {
			return f, nil
		}
	}
	return Unknown, fmt.Errorf("unknown type family %q", s)
}

var typeFamilies = map[string]Family{
	// SQL Server
	"tinyint": Integer, "smallint": Integer, "int": Integer, "bigint": Integer,
	"decimal": Decimal, "numeric": Decimal, "money": Decimal, "smallmoney": Decimal,
	"float": Decimal, "real": Decimal,
	"char": String, "varchar": String, "nchar": String, "nvarchar": String,
	"text": String, "ntext": String, "sysname": String,
	"date": DateTime, "time": DateTime, "datetime": DateTime, "datetime2": DateTime,
	"smalldatetime": DateTime, "datetimeoffset": DateTime,
	"bit": Boolean, "binary": Binary, "varbinary": Binary, "image": Binary,
	"rowversion": Binary, "timestamp": Binary, "uniqueidentifier": UniqueIdentifier,

	// spellings reported by PostgreSQL, MySQL and SQLite introspection
	"integer": Integer, "mediumint": Integer, "serial": Integer, "bigserial": Integer,
	"double": Decimal, "double precision": Decimal,
	"character": String, "character varying": String, "string": String, "clob": String,
	"enum": String, "citext": String,
	"timestamptz": DateTime, "interval": DateTime, "year": DateTime,
	"timestamp with time zone": DateTime, "timestamp without time zone": DateTime,
	"time with time zone": DateTime, "time without time zone": DateTime,
	"boolean": Boolean, "bool": Boolean,
	"bytea": Binary, "blob": Binary, "tinyblob": Binary, "mediumblob": Binary, "longblob": Binary,
	"uuid": UniqueIdentifier,
}

// Classify maps a declared type such as "nvarchar(50)" or "INT" to its family.
func Classify(typeName string) Family {
	t := token.Fold(strings.TrimSpace(typeName))
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	t = strings.TrimSuffix(t, " unsigned")
	if f, ok := typeFamilies[t]; ok {
		return f
	}
	switch {
	case strings.HasSuffix(t, "int"):
		return Integer
	case strings.HasSuffix(t, "text"), strings.HasSuffix(t, "char"):
		return String
	}
	return Unknown
}

// Policy decides which families are compatible. Equal families and Unknown
// are always compatible; anything else needs an explicit pair.
// A Policy must not be modified after it is shared.
type Policy struct {
	pairs map[[2]Family]bool
}

// NewPolicy returns a policy allowing only the given cross-family pairs.
func NewPolicy(pairs ...[2]Family) *Policy {
	p := &Policy{pairs: make(map[[2]Family]bool)}
	for _, pair := range pairs {
		p.Allow(pair[0], pair[1])
	}
	return p
}

// DefaultPolicy treats integers and decimals as comparable.
func DefaultPolicy() *Policy {
	return NewPolicy([2]Family{Integer, Decimal})
}

// Allow marks a and b as compatible in both directions.
func (p *Policy) Allow(a, b Family) {
	p.pairs[[2]Family{a, b}] = true
	p.pairs[[2]Family{b, a}] = true
}

// Pairs returns the allowed cross-family pairs, each listed once.
func (p *Policy) Pairs() [][2]Family {
	var out [][2]Family
	for pair := range p.pairs {
		if pair[0] < pair[1] {
			out = append(out, pair)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i][0] != out[j][0] {
			return out[i][0] < out[j][0]
		}
		return out[i][1] < out[j][1]
	})
	return out
}

// Compatible reports whether values of families a and b compare sensibly.
func (p *Policy) Compatible(a, b Family) bool {
	if a == b || a == Unknown || b == Unknown {
		return true
	}
	return p.pairs[[2]Family{a, b}]
}

// IsCompatible classifies both types and checks their families.
func (p *Policy) IsCompatible(typeA, typeB string) bool {
	return p.Compatible(Classify(typeA), Classify(typeB))
}

// ParsePair parses "family:family", the config file spelling of an allowed
// pair.
func ParsePair(s string) ([2]Family, error) {
	left, right, ok := strings.Cut(s, ":")
	if !ok {
		return [2]Family{}, fmt.Errorf("invalid type family pair %q: want family:family", s)
	}
	a, err := ParseFamily(left)
	if err != nil {
		return [2]Family{}, err
	}
	b, err := ParseFamily(right)
	if err != nil {
		return [2]Family{}, err
	}
	return [2]Family{a, b}, nil
}

var defaultPolicy = DefaultPolicy()

// IsCompatible checks two types under the default policy.
func IsCompatible(typeA, typeB string) bool {
	return defaultPolicy.IsCompatible(typeA, typeB)
}
