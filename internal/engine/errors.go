package engine

import "errors"

// Sentinel error kinds. Every fatal error returned from a conversion run
// wraps exactly one of these so callers can classify failures with
// errors.Is without parsing messages.
var (
	ErrCancelled       = errors.New("conversion cancelled")
	ErrUnsupportedType = errors.New("unsupported source type")
	ErrIllegalAffinity = errors.New("illegal affinity")
	ErrIntrospection   = errors.New("introspection failure")
	ErrDDL             = errors.New("ddl failure")
	ErrRowCopy         = errors.New("row copy failure")
	ErrConfiguration   = errors.New("configuration failure")
)
