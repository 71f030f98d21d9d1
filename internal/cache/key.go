package cache

import (
	"encoding/hex"
	"encoding/json"
	"strings"

	"golang.org/x/crypto/blake2b"
)

const (
	kindList   = "list"
	kindDetail = "detail"
)

// Key identifies one cached read: a list under a filter set or a single
// record by id.
type Key struct {
	Family string `json:"family"`
	ID     string `json:"id,omitempty"`
	Filter string `json:"filter,omitempty"`
}

// ListKey keys a list read by the canonical JSON form of its filters, so
// equal filter sets share an entry regardless of field order.
func ListKey(family string, filters any) Key {
	return Key{Family: family, Filter: canonicalFilter(filters)}
}

func DetailKey(family, id string) Key {
	return Key{Family: family, ID: strings.TrimSpace(id)}
}

func (k Key) IsDetail() bool { return k.ID != "" }

func (k Key) kind() string {
	if k.IsDetail() {
		return kindDetail
	}
	return kindList
}

// String is the registry key. Filters are hashed to keep keys short.
func (k Key) String() string {
	if k.IsDetail() {
		return k.Family + ":" + kindDetail + ":" + k.ID
	}
	sum := blake2b.Sum256([]byte(k.Filter))
	return k.Family + ":" + kindList + ":" + hex.EncodeToString(sum[:12])
}

func canonicalFilter(filters any) string {
	if filters == nil {
		return "{}"
	}
	raw, err := json.Marshal(filters)
	if err != nil {
		return "{}"
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return string(raw)
	}
	out, err := json.Marshal(generic)
	if err != nil {
		return string(raw)
	}
	return string(out)
}
