//go:build !unix

package store

// Windows has no flock; the in-process mutex is the only guard there.
func lockDir(string, bool) (func(), error) { return func() {}, nil }

// Directory handles cannot be synced on Windows; rename is already durable.
func syncDir(string) error { return nil }
