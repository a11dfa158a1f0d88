package vars

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

type hashEntry struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// Hash returns hex(SHA-256(JSON(list sorted by key))). Entries sharing a key
// are ordered by their encoded value, so any permutation of the same list
// hashes identically.
func Hash(l List) (string, error) {
	entries := make([]hashEntry, 0, len(l))
	for _, v := range l {
		raw, err := json.Marshal(v.Value)
		if err != nil {
			return "", err
		}
		entries = append(entries, hashEntry{Key: v.Key, Value: raw})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Key != entries[j].Key {
			return entries[i].Key < entries[j].Key
		}
		return bytes.Compare(entries[i].Value, entries[j].Value) < 0
	})

	payload, err := json.Marshal(entries)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}

// MustHash is Hash for lists known to be serializable.
func MustHash(l List) string {
	h, err := Hash(l)
	if err != nil {
		panic(err)
	}

	return h
}
