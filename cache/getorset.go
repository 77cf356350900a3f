package cache

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
)

// Value extracts an entry's payload as T. The in-process tier stores values
// as-is, so a direct type assertion usually suffices; values read back from
// the disk tier decode into generic JSON shapes and are re-marshalled
// through JSON to reach T.
func Value[T any](e Entry) (T, error) {
	if typed, ok := e.Data.(T); ok {
		return typed, nil
	}
	var out T
	raw, err := json.Marshal(e.Data)
	if err != nil {
		return out, errors.Wrap(err, "cache: re-marshal entry value")
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, errors.Wrapf(err, "cache: cannot convert entry value of type %T", e.Data)
	}
	return out, nil
}

// GetOrSet is a cache-aside helper: on a miss it invokes fn, stores the
// result under the namespace's TTL policy, and returns it. A Set failure is
// swallowed — the caller got their value; failing to cache it is a
// degradation, not a failure.
func GetOrSet[T any](s *Store, namespace, key string, params map[string]any, fn func() (T, error)) (T, error) {
	if entry, ok := s.Get(namespace, key, params); ok {
		if v, err := Value[T](entry); err == nil {
			return v, nil
		}
		// A cached value that cannot convert is useless to this caller;
		// recompute and overwrite it.
	}
	v, err := fn()
	if err != nil {
		var zero T
		return zero, err
	}
	s.Set(namespace, key, v, 0, params)
	return v, nil
}
