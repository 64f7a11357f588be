package recordcache

// Hooks observe fail-open events. Implementations must be cheap and must not
// block; they run on the request path.
type Hooks interface {
	// BackendError fires when the cache backend failed an operation that was
	// then treated as a miss or no-op. op is "get", "set" or "delete".
	BackendError(op, key string, err error)
	// Corrupt fires when a stored entry could not be decoded and was removed.
	Corrupt(key string, err error)
}

type NopHooks struct{}

func (NopHooks) BackendError(string, string, error) {}
func (NopHooks) Corrupt(string, error)              {}
