package model

import "github.com/vango-dev/livemodel/pkg/compare"

// Memo caches fn's result for the calling method. With deps, fn reruns only
// when deps differ from the previous call; without deps (nil), it reruns
// whenever the model changed since the cached result was computed. Memo
// panics with ErrMemoOutsideMethod outside a bound method.
func (m *Model) Memo(fn func() any, deps []any) any {
	return m.memo("", fn, deps)
}

// MemoKey is Memo with an extra key, for several caches in one method.
func (m *Model) MemoKey(key string, fn func() any, deps []any) any {
	return m.memo(key, fn, deps)
}

func (m *Model) memo(key string, fn func() any, deps []any) any {
	m.lock.Lock()
	defer m.lock.Unlock()

	if m.invoking == "" {
		fail(ErrMemoOutsideMethod, "memo must be called inside a model method")
	}
	cacheKey := m.invoking
	if key != "" {
		cacheKey += ":" + key
	}

	entry, ok := m.cache[cacheKey]
	if !ok || !sameDeps(entry.deps, deps) || (deps == nil && entry.token != m.token) {
		var saved []any
		if deps != nil {
			saved = append(make([]any, 0, len(deps)), deps...)
		}
		entry = memoEntry{deps: saved, value: fn(), token: m.token}
		m.cache[cacheKey] = entry
	}
	return entry.value
}

func sameDeps(a, b []any) bool {
	if (a == nil) != (b == nil) || len(a) != len(b) {
		return false
	}
	for i := range a {
		if !compare.Strict(a[i], b[i]) {
			return false
		}
	}
	return true
}
