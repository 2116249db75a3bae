// Package ident converts identifiers between their external string form
// (24 lower-case hex characters) and the store's 12-byte ObjectID form.
package ident

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/gardenjournal/gardenjournal/internal/errs"
)

// ID is the internal identifier form.
type ID = primitive.ObjectID

// Nil is the zero identifier. It is never assigned to a stored document.
var Nil = primitive.NilObjectID

// New returns a fresh identifier.
func New() ID { return primitive.NewObjectID() }

// IsValid reports whether s is a canonical external identifier.
func IsValid(s string) bool {
	if len(s) != 24 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// ToInternal parses an external identifier.
// Upper-case hex is rejected so that ToExternal(ToInternal(s)) == s always holds.
func ToInternal(s string) (ID, error) {
	if !IsValid(s) {
		return Nil, fmt.Errorf("%w: %q", errs.ErrInvalidID, s)
	}
	id, err := primitive.ObjectIDFromHex(s)
	if err != nil {
		return Nil, fmt.Errorf("%w: %q", errs.ErrInvalidID, s)
	}
	return id, nil
}

// ToExternal renders an internal identifier.
func ToExternal(id ID) string { return id.Hex() }

// ToInternalMany parses every element; the first malformed element fails the whole call.
func ToInternalMany(ss []string) ([]ID, error) {
	out := make([]ID, 0, len(ss))
	for _, s := range ss {
		id, err := ToInternal(s)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

// ToInternalValid parses every well-formed element and drops the rest.
func ToInternalValid(ss []string) []ID {
	out := make([]ID, 0, len(ss))
	for _, s := range ss {
		if id, err := ToInternal(s); err == nil {
			out = append(out, id)
		}
	}
	return out
}

// ToExternalMany renders every element.
func ToExternalMany(ids []ID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.Hex())
	}
	return out
}

// FromBytes converts a stored 12-byte value.
func FromBytes(b []byte) (ID, error) {
	var id ID
	if len(b) != len(id) {
		return Nil, fmt.Errorf("%w: %d bytes", errs.ErrInvalidID, len(b))
	}
	copy(id[:], b)
	return id, nil
}

// Bytes returns the stored form of id.
func Bytes(id ID) []byte {
	b := make([]byte, len(id))
	copy(b, id[:])
	return b
}

// BytesMany returns the stored form of every element.
func BytesMany(ids []ID) [][]byte {
	out := make([][]byte, 0, len(ids))
	for _, id := range ids {
		out = append(out, Bytes(id))
	}
	return out
}

// FromBytesMany converts stored values, failing on the first malformed one.
func FromBytesMany(bs [][]byte) ([]ID, error) {
	out := make([]ID, 0, len(bs))
	for _, b := range bs {
		id, err := FromBytes(b)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}
