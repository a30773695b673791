package copier

import "strings"

// Affinity is the destination storage class a coerced value is headed for,
// derived from a column's already-normalized stored type.
type Affinity int

const (
	AffinityUnknown Affinity = iota
	AffinityByte
	AffinityInt16
	AffinityInt32
	AffinityInt64
	AffinityBoolean
	AffinityString
	AffinitySingle
	AffinityDouble
	AffinityBinary
	AffinityDateTime
	AffinityGuid
	AffinityObject
)

// affinityByStoredType mirrors the fixed derivation table: every stored
// type this module ever produces maps to exactly one affinity.
var affinityByStoredType = map[string]Affinity{
	"tinyint":          AffinityByte,
	"int":              AffinityInt32,
	"integer":          AffinityInt64,
	"smallint":         AffinityInt16,
	"bigint":           AffinityInt64,
	"bit":              AffinityBoolean,
	"nvarchar":         AffinityString,
	"varchar":          AffinityString,
	"text":             AffinityString,
	"ntext":            AffinityString,
	"nchar":            AffinityString,
	"char":             AffinityString,
	"xml":              AffinityString,
	"float":            AffinityDouble,
	"numeric":          AffinityDouble,
	"real":             AffinitySingle,
	"blob":             AffinityBinary,
	"timestamp":        AffinityDateTime,
	"datetime":         AffinityDateTime,
	"datetime2":        AffinityDateTime,
	"date":             AffinityDateTime,
	"time":             AffinityDateTime,
	"uniqueidentifier": AffinityGuid,
	"guid":             AffinityGuid,
	"sql_variant":      AffinityObject,
}

// AffinityForStoredType returns the affinity for an already-mapped stored
// type token, or AffinityUnknown if the token is not one this module ever
// produces (an internal mapper bug, see ErrIllegalAffinity).
func AffinityForStoredType(storedType string) Affinity {
	return affinityByStoredType[strings.ToLower(storedType)]
}
