package util

import (
	"crypto/md5"
	"encoding/json"
	"math/big"

	"github.com/google/uuid"
)

// HashUUID derives a stable UUID from the JSON form of value. It keys the
// lookup table cache and names bulk data references.
func HashUUID(value any) string {
	raw, err := json.Marshal(value)
	if err != nil {
		return ""
	}
	hasher := md5.New()
	hasher.Write([]byte(raw))
	hash := hasher.Sum(nil)
	uuid, err := uuid.FromBytes(hash[:16])
	if err != nil {
		return ""
	}
	return uuid.String()
}

// UIDFromUUID renders u as a DICOM UID under the 2.25 root
func UIDFromUUID(u uuid.UUID) string {
	return "2.25." + new(big.Int).SetBytes(u[:]).String()
}

// NewUID returns a random 2.25 UID
func NewUID() string {
	return UIDFromUUID(uuid.New())
}

// HashUID returns a 2.25 UID derived from value, stable across runs
func HashUID(value any) string {
	u, err := uuid.Parse(HashUUID(value))
	if err != nil {
		return ""
	}
	return UIDFromUUID(u)
}
