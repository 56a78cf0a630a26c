package file

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// collection stores one JSON document per entity under root/name/<id>.json.
type collection[T any] struct {
	dir string
}

func newCollection[T any](root, name string) *collection[T] {
	return &collection[T]{dir: filepath.Join(root, name)}
}

func (c *collection[T]) path(id string) string {
	return filepath.Join(c.dir, url.PathEscape(id)+".json")
}

// get returns nil without error when the document does not exist.
func (c *collection[T]) get(id string) (*T, error) {
	body, err := os.ReadFile(c.path(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to read %s: %w", id, err)
	}

	var value T

	err = json.Unmarshal(body, &value)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", id, err)
	}

	return &value, nil
}

// put writes to a temporary file first so readers never see a partial document.
func (c *collection[T]) put(id string, value *T) error {
	err := os.MkdirAll(c.dir, 0750)
	if err != nil {
		return fmt.Errorf("failed to create directory %s: %w", c.dir, err)
	}

	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", id, err)
	}

	target := c.path(id)
	tmp := target + ".tmp"

	err = os.WriteFile(tmp, data, 0600)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", id, err)
	}

	err = os.Rename(tmp, target)
	if err != nil {
		return fmt.Errorf("failed to replace %s: %w", id, err)
	}

	return nil
}

// remove reports whether the document existed.
func (c *collection[T]) remove(id string) (bool, error) {
	err := os.Remove(c.path(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}

		return false, fmt.Errorf("failed to delete %s: %w", id, err)
	}

	return true, nil
}

// all loads every document ordered by file name.
func (c *collection[T]) all() ([]*T, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return make([]*T, 0), nil
		}

		return nil, fmt.Errorf("failed to list %s: %w", c.dir, err)
	}

	names := make([]string, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		names = append(names, entry.Name())
	}

	sort.Strings(names)

	values := make([]*T, 0, len(names))

	for _, name := range names {
		id, err := url.PathUnescape(strings.TrimSuffix(name, ".json"))
		if err != nil {
			return nil, fmt.Errorf("failed to decode file name %s: %w", name, err)
		}

		value, err := c.get(id)
		if err != nil {
			return nil, err
		}

		if value != nil {
			values = append(values, value)
		}
	}

	return values, nil
}
