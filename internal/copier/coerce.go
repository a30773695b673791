package copier

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrIllegalAffinity indicates a stored type mapped to no affinity at all,
// which can only happen if the type mapper produced a token this package
// was never taught about — an internal bug, not a data problem.
var ErrIllegalAffinity = fmt.Errorf("illegal affinity: no coercion rule registered")

// Coerce converts a single source value into the Go representation that
// the destination prepared statement should bind for the given affinity. A
// source NULL (nil) always becomes a destination NULL.
func Coerce(val any, affinity Affinity) (any, error) {
	if val == nil {
		return nil, nil
	}

	switch affinity {
	case AffinityInt32:
		return coerceInt32(val)
	case AffinityInt16:
		return coerceInt16(val)
	case AffinityInt64:
		return coerceInt64(val)
	case AffinitySingle:
		return coerceSingle(val)
	case AffinityDouble:
		return coerceDouble(val)
	case AffinityString:
		return coerceString(val)
	case AffinityGuid:
		return coerceGuid(val)
	case AffinityBinary, AffinityBoolean, AffinityDateTime, AffinityByte, AffinityObject:
		return val, nil
	default:
		return nil, ErrIllegalAffinity
	}
}

// decimalFromValue recognizes the driver's representation of a DECIMAL,
// MONEY, or NUMERIC source value ([]byte or string holding its decimal
// text form) without a lossy float64 round trip.
func decimalFromValue(val any) (decimal.Decimal, bool) {
	switch v := val.(type) {
	case []byte:
		d, err := decimal.NewFromString(string(v))
		return d, err == nil
	case string:
		d, err := decimal.NewFromString(v)
		return d, err == nil
	default:
		return decimal.Decimal{}, false
	}
}

// Int32: short/byte/long/decimal → int.
func coerceInt32(val any) (any, error) {
	switch v := val.(type) {
	case int16:
		return int32(v), nil
	case int8:
		return int32(v), nil
	case uint8:
		return int32(v), nil
	case int64:
		return int32(v), nil
	default:
		if d, ok := decimalFromValue(val); ok {
			return int32(d.IntPart()), nil
		}
		return val, nil
	}
}

// Int16: int/byte/long/decimal → short.
func coerceInt16(val any) (any, error) {
	switch v := val.(type) {
	case int32:
		return int16(v), nil
	case int8:
		return int16(v), nil
	case uint8:
		return int16(v), nil
	case int64:
		return int16(v), nil
	default:
		if d, ok := decimalFromValue(val); ok {
			return int16(d.IntPart()), nil
		}
		return val, nil
	}
}

// Int64: int/short/byte/decimal → long.
func coerceInt64(val any) (any, error) {
	switch v := val.(type) {
	case int32:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	default:
		if d, ok := decimalFromValue(val); ok {
			return d.IntPart(), nil
		}
		return val, nil
	}
}

// Single: double/decimal → float.
func coerceSingle(val any) (any, error) {
	switch v := val.(type) {
	case float64:
		return float32(v), nil
	default:
		if d, ok := decimalFromValue(val); ok {
			f, _ := d.Float64()
			return float32(f), nil
		}
		return val, nil
	}
}

// Double: float/decimal → double.
func coerceDouble(val any) (any, error) {
	switch v := val.(type) {
	case float32:
		return float64(v), nil
	default:
		if d, ok := decimalFromValue(val); ok {
			f, _ := d.Float64()
			return f, nil
		}
		return val, nil
	}
}

// String: guid → canonical string form.
func coerceString(val any) (any, error) {
	switch v := val.(type) {
	case uuid.UUID:
		return v.String(), nil
	default:
		return val, nil
	}
}

// Guid: string → parse; byte blob → pad/truncate to 16 bytes then
// interpret as guid.
func coerceGuid(val any) (any, error) {
	switch v := val.(type) {
	case uuid.UUID:
		return v, nil
	case string:
		u, err := uuid.Parse(v)
		if err != nil {
			return nil, fmt.Errorf("parse guid %q: %w", v, err)
		}
		return u, nil
	case []byte:
		return GuidFromBlob(v), nil
	default:
		return val, nil
	}
}

// GuidFromBlob implements the blob-as-Guid rule: a 16-byte blob is
// interpreted directly, a longer blob is truncated to the first 16 bytes,
// and a shorter blob is zero-padded to 16 bytes.
func GuidFromBlob(b []byte) uuid.UUID {
	var buf [16]byte
	n := len(b)
	if n > 16 {
		n = 16
	}
	copy(buf[:n], b[:n])
	return uuid.UUID(buf)
}
