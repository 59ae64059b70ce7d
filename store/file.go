package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
)

const lockFileName = ".lock"

var nsPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// File is a Store keeping one JSON document per namespace inside a directory.
// Every put rewrites the whole namespace through a temporary file that is
// synced and renamed over the old one, so readers only ever observe a
// complete document.
type File struct {
	dir string
	mu  sync.Mutex
}

// OpenFile prepares dir for use as a store, creating it when missing.
func OpenFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &File{dir: dir}, nil
}

// Dir returns the directory backing the store.
func (f *File) Dir() string { return f.dir }

func (f *File) Bytes(ns, key string) ([]byte, bool, error) {
	doc, err := f.read(ns)
	if err != nil {
		return nil, false, err
	}
	v, ok := doc[key]
	return bytesOf(v, ok)
}

func (f *File) PutBytes(ns, key string, b []byte) error {
	return f.update(ns, func(doc map[string]value) { doc[key] = bytesValue(b) })
}

func (f *File) Int(ns, key string, def int) (int, error) {
	doc, err := f.read(ns)
	if err != nil {
		return def, err
	}
	v, ok := doc[key]
	return intOf(v, ok, def)
}

func (f *File) PutInt(ns, key string, i int) error {
	return f.update(ns, func(doc map[string]value) { doc[key] = intValue(i) })
}

func (f *File) path(ns string) (string, error) {
	if !nsPattern.MatchString(ns) {
		return "", fmt.Errorf("invalid namespace %q", ns)
	}
	return filepath.Join(f.dir, ns+".json"), nil
}

func (f *File) read(ns string) (map[string]value, error) {
	p, err := f.path(ns)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	unlock, err := lockDir(filepath.Join(f.dir, lockFileName), false)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return readDoc(p)
}

func (f *File) update(ns string, fn func(map[string]value)) error {
	p, err := f.path(ns)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	unlock, err := lockDir(filepath.Join(f.dir, lockFileName), true)
	if err != nil {
		return err
	}
	defer unlock()

	doc, err := readDoc(p)
	if err != nil {
		// An unreadable namespace is replaced rather than blocking every write.
		doc = map[string]value{}
	}
	fn(doc)
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode namespace %s: %w", ns, err)
	}
	return replaceFile(p, data)
}

func readDoc(p string) (map[string]value, error) {
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]value{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", p, err)
	}
	doc := map[string]value{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", p, err)
	}
	return doc, nil
}

// replaceFile atomically swaps the contents of p for data.
func replaceFile(p string, data []byte) error {
	dir := filepath.Dir(p)
	tmp, err := os.CreateTemp(dir, filepath.Base(p)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, p); err != nil {
		cleanup()
		return fmt.Errorf("replace %s: %w", p, err)
	}
	return syncDir(dir)
}
