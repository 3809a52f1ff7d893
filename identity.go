package objstore

import (
	"reflect"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultIdentityCacheSize = 4096

// identityMap remembers which entity a custom object pointer was stored at or
// loaded from, so that storing it again as a child updates that entity
// instead of inserting a copy.
type identityMap struct {
	cache *lru.Cache[any, EntityID]
}

func newIdentityMap(size int) (*identityMap, error) {
	if size <= 0 {
		return &identityMap{}, nil
	}
	cache, err := lru.New[any, EntityID](size)
	if err != nil {
		return nil, err
	}
	return &identityMap{cache: cache}, nil
}

func isIdentityKey(obj any) bool {
	if obj == nil {
		return false
	}
	v := reflect.ValueOf(obj)
	return v.Kind() == reflect.Pointer && !v.IsNil()
}

func (m *identityMap) remember(obj any, id EntityID) {
	if m.cache == nil || !isIdentityKey(obj) {
		return
	}
	m.cache.Add(obj, id)
}

func (m *identityMap) lookup(obj any) (EntityID, bool) {
	if m.cache == nil || !isIdentityKey(obj) {
		return 0, false
	}
	return m.cache.Get(obj)
}

func (m *identityMap) forget() {
	if m.cache != nil {
		m.cache.Purge()
	}
}

func (m *identityMap) len() int {
	if m.cache == nil {
		return 0
	}
	return m.cache.Len()
}
