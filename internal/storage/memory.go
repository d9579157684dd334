package storage

import (
	"context"
	"sync"
)

// Memory keeps objects in process. It backs mem:// URIs and tests.
type Memory struct {
	mu      sync.Mutex
	objects map[string]Object
	puts    int
}

func NewMemory() *Memory { return &Memory{objects: map[string]Object{}} }

// Put stores a copy of obj under obj.URI.
func (m *Memory) Put(ctx context.Context, obj Object) error {
	loc, err := ParseURI(obj.URI)
	if err != nil {
		return &WriteError{URI: obj.URI, Op: "parse", Err: err}
	}
	if err := m.put(ctx, loc, obj); err != nil {
		return &WriteError{URI: obj.URI, Op: "put", Err: err}
	}
	return nil
}

func (m *Memory) put(ctx context.Context, loc Location, obj Object) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body := append([]byte(nil), obj.Body...)
	meta := make(map[string]string, len(obj.Metadata))
	for k, v := range obj.Metadata {
		meta[k] = v
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[loc.String()] = Object{URI: loc.String(), Body: body, ContentType: obj.ContentType, Metadata: meta}
	m.puts++
	return nil
}

// Get returns the object last written to uri.
func (m *Memory) Get(uri string) (Object, bool) {
	loc, err := ParseURI(uri)
	if err != nil {
		return Object{}, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.objects[loc.String()]
	return o, ok
}

// Puts counts successful writes.
func (m *Memory) Puts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts
}
