package executor

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/itchyny/gojq"
)

// jqCache keeps compiled response-mapping queries. It is safe for concurrent use.
type jqCache struct {
	mu    sync.RWMutex
	codes map[string]*gojq.Code
}

func newJQCache() *jqCache {
	return &jqCache{codes: make(map[string]*gojq.Code)}
}

// jqPath turns a JSON path such as $.data.items[0].id or data.id into a jq query.
func jqPath(path string) string {
	path = strings.TrimSpace(path)
	path = strings.TrimPrefix(path, "$")

	if path == "" {
		return "."
	}

	if !strings.HasPrefix(path, ".") && !strings.HasPrefix(path, "[") {
		path = "." + path
	}

	return path
}

func (c *jqCache) compile(query string) (*gojq.Code, error) {
	c.mu.RLock()
	code, ok := c.codes[query]
	c.mu.RUnlock()

	if ok {
		return code, nil
	}

	parsed, err := gojq.Parse(query)
	if err != nil {
		return nil, fmt.Errorf("invalid response path %q: %w", query, err)
	}

	code, err = gojq.Compile(parsed, gojq.WithEnvironLoader(func() []string { return nil }))
	if err != nil {
		return nil, fmt.Errorf("invalid response path %q: %w", query, err)
	}

	c.mu.Lock()
	c.codes[query] = code
	c.mu.Unlock()

	return code, nil
}

// extract returns the first value path yields on input, or false when it yields nothing or null.
func (c *jqCache) extract(ctx context.Context, path string, input any) (any, bool, error) {
	code, err := c.compile(jqPath(path))
	if err != nil {
		return nil, false, err
	}

	iter := code.RunWithContext(ctx, input)

	value, ok := iter.Next()
	if !ok {
		return nil, false, nil
	}

	if err, isErr := value.(error); isErr {
		return nil, false, fmt.Errorf("failed to evaluate response path %q: %w", path, err)
	}

	if value == nil {
		return nil, false, nil
	}

	return value, true, nil
}
