package utils

import (
	"crypto/rand"
	"encoding/base32"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/x/bsonx/bsoncore"
)

// SixIDHookFunc defines the signature for the NewSixID test hook.
// It returns a SixID and a boolean indicating whether to override the default generation.
type SixIDHookFunc func() (id SixID, override bool)

// NewSixIDHook is a package-level variable that tests can set to override NewSixID behavior.
var NewSixIDHook SixIDHookFunc

// sixIDSubtype is the BSON binary subtype used for SixID values (user-defined range).
const sixIDSubtype byte = 0x80

// Crockford Base32 encoding alphabet (uppercase)
const crockfordAlphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

var crockford = base32.NewEncoding(crockfordAlphabet).WithPadding(base32.NoPadding)

// crockfordNormalizer maps lowercase and commonly confused characters onto the canonical alphabet.
var crockfordNormalizer = strings.NewReplacer(
	"-", "", " ", "",
	"O", "0", "o", "0",
	"I", "1", "i", "1",
	"L", "1", "l", "1",
)

// SixID is a 6-byte ID stored as BSON BinData with custom subtype 0x80.
// Listing and comment identities are SixIDs assigned by the document store at insert time.
type SixID [6]byte

// NewSixID creates a new 6-byte SixID using random data
func NewSixID() SixID {
	if NewSixIDHook != nil {
		if id, override := NewSixIDHook(); override {
			return id
		}
	}

	var id SixID
	if _, err := rand.Read(id[:]); err != nil {
		// crypto/rand does not fail on supported platforms; a zero ID will collide and be retried by the caller.
		return SixID{}
	}
	return id
}

// IsZero reports whether the ID has not been assigned.
func (u SixID) IsZero() bool {
	return u == SixID{}
}

// String returns the Crockford Base32 (uppercase) representation of the SixID.
func (u SixID) String() string {
	return crockford.EncodeToString(u[:])
}

// ParseSixID parses a SixID from its Crockford Base32 string representation.
// Parsing is lenient about case, hyphens and the O/0, I/L/1 confusions.
func ParseSixID(s string) (SixID, error) {
	normalized := strings.ToUpper(crockfordNormalizer.Replace(s))
	if len(normalized) != 10 {
		return SixID{}, errors.New("invalid SixID: string length must be 10")
	}
	decoded, err := crockford.DecodeString(normalized)
	if err != nil {
		return SixID{}, fmt.Errorf("invalid SixID %q: %w", s, err)
	}
	if len(decoded) != 6 {
		return SixID{}, errors.New("invalid SixID: couldn't decode 6 bytes")
	}
	var id SixID
	copy(id[:], decoded)
	return id, nil
}

// MarshalBSONValue stores the ID as binary subtype 0x80.
func (u SixID) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.TypeBinary, bsoncore.AppendBinary(nil, sixIDSubtype, u[:]), nil
}

// UnmarshalBSONValue reads an ID written by MarshalBSONValue. A BSON null yields the zero ID.
func (u *SixID) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	if t == bson.TypeNull {
		*u = SixID{}
		return nil
	}
	if t != bson.TypeBinary {
		return fmt.Errorf("invalid BSON type for SixID: %s", t)
	}
	subtype, payload, ok := bsoncore.Value{Type: t, Data: data}.BinaryOK()
	if !ok || subtype != sixIDSubtype || len(payload) != 6 {
		return errors.New("invalid BSON binary data for SixID: incorrect subtype or length")
	}
	copy(u[:], payload)
	return nil
}

// MarshalJSON marshals the SixID as a JSON string in Crockford Base32 format.
func (u SixID) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.String())
}

// UnmarshalJSON unmarshals a SixID from a JSON string in Crockford Base32 format.
func (u *SixID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*u = SixID{}
		return nil
	}
	parsed, err := ParseSixID(s)
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}
