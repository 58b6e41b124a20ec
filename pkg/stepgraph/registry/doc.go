// Package registry provides a generic build-once registry for values indexed
// by key.
//
// Keys register exactly once; a second Register for the same key returns
// *DuplicateError. After Freeze the registry is read-only, which is how the
// step graph guarantees its step table cannot change while a run executes.
//
// # Basic Usage
//
//	r := registry.New[string, int]()
//	if err := r.Register("one", 1); err != nil {
//	    return err
//	}
//	r.Freeze()
//
//	v, err := r.Get("one") // 1, nil
//	_, err = r.Get("two")  // *registry.NotFoundError
//
// Registry is safe for concurrent use and tuned for read-heavy workloads.
package registry
