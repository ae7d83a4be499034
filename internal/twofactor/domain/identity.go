package domain

import (
	"encoding/gob"
	"fmt"
	"maps"
	"time"
)

// Credentials are the primary factor as submitted by the user. They never
// leave the request in cleartext.
type Credentials struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// Identity is a user record as returned by an identity finder: column name to
// value. It always carries the identifier column and optionally the TOTP
// secret column.
type Identity map[string]any

func init() {
	RegisterValue(time.Time{})
	RegisterValue([]string{})
	RegisterValue([]any{})
	RegisterValue(map[string]any{})
}

// RegisterValue allows values of v's type in an Identity that is carried
// between the two login requests. Builtin scalars, strings and []byte need no
// registration.
func RegisterValue(v any) { gob.Register(v) }

// String returns the field as a string, or "" when absent or nil.
func (i Identity) String(field string) string {
	v, ok := i[field]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case *string:
		if t == nil {
			return ""
		}
		return *t
	case []byte:
		return string(t)
	default:
		return fmt.Sprint(t)
	}
}

// Has reports whether field is present with a non-empty value.
func (i Identity) Has(field string) bool {
	return i.String(field) != ""
}

// Without returns a copy of the identity minus field.
func (i Identity) Without(field string) Identity {
	out := i.Clone()
	delete(out, field)
	return out
}

// Clone returns a shallow copy.
func (i Identity) Clone() Identity {
	if i == nil {
		return nil
	}
	return maps.Clone(i)
}

// PendingAuth is an identity that has passed the first factor and is waiting
// on the second.
type PendingAuth struct {
	Identity      Identity  `json:"identity"`
	EstablishedAt time.Time `json:"established_at"`
}
