// Package storage writes whole objects to s3://, gs://, file:// or mem://
// locations. Every Put fully replaces the object at its URI.
package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
)

// ErrStorageWrite matches every failure returned by a Writer in this package.
var ErrStorageWrite = errors.New("storage write failed")

// Object is one artifact to persist.
type Object struct {
	URI         string
	Body        []byte
	ContentType string
	Metadata    map[string]string
}

// Writer persists objects. Implementations overwrite, never append.
type Writer interface {
	Put(ctx context.Context, obj Object) error
}

// WriteError reports where and at which step a write failed.
type WriteError struct {
	URI string
	Op  string
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.URI, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

func (e *WriteError) Is(target error) bool { return target == ErrStorageWrite }

// Location is a parsed object URI.
type Location struct {
	Scheme string
	Bucket string
	Key    string
}

func (l Location) String() string {
	if l.Scheme == "file" {
		return "file://" + l.Key
	}
	return l.Scheme + "://" + l.Bucket + "/" + l.Key
}

// ParseURI accepts s3://bucket/key, gs://bucket/key, mem://bucket/key,
// file://path and bare filesystem paths.
func ParseURI(raw string) (Location, error) {
	if raw == "" {
		return Location{}, errors.New("empty uri")
	}
	if !strings.Contains(raw, "://") {
		return Location{Scheme: "file", Key: raw}, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return Location{}, err
	}
	switch u.Scheme {
	case "file":
		p := u.Host + u.Path
		if p == "" {
			return Location{}, fmt.Errorf("missing path in %q", raw)
		}
		return Location{Scheme: "file", Key: p}, nil
	case "s3", "gs", "mem":
		key := strings.TrimPrefix(u.Path, "/")
		if u.Host == "" || key == "" {
			return Location{}, fmt.Errorf("uri %q needs both bucket and key", raw)
		}
		return Location{Scheme: u.Scheme, Bucket: u.Host, Key: key}, nil
	default:
		return Location{}, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
}

type backend interface {
	put(ctx context.Context, loc Location, obj Object) error
}

// Options configures the cloud backends. Credentials always come from the
// environment's default chain.
type Options struct {
	S3Region   string
	S3Endpoint string
	// GCSEndpoint points at an emulator; authentication is skipped when set.
	GCSEndpoint        string
	GCSCredentialsFile string
}

// Router dispatches Put by URI scheme, creating cloud clients on first use.
type Router struct {
	opts   Options
	mem    *Memory
	mu     sync.Mutex
	cached map[string]backend
}

func NewRouter(opts Options) *Router {
	return &Router{opts: opts, mem: NewMemory(), cached: map[string]backend{}}
}

// Memory returns the store behind mem:// URIs.
func (r *Router) Memory() *Memory { return r.mem }

func (r *Router) Put(ctx context.Context, obj Object) error {
	loc, err := ParseURI(obj.URI)
	if err != nil {
		return &WriteError{URI: obj.URI, Op: "parse", Err: err}
	}
	b, err := r.backend(ctx, loc.Scheme)
	if err != nil {
		return &WriteError{URI: obj.URI, Op: "connect", Err: err}
	}
	if err := b.put(ctx, loc, obj); err != nil {
		return &WriteError{URI: obj.URI, Op: "put", Err: err}
	}
	return nil
}

func (r *Router) backend(ctx context.Context, scheme string) (backend, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.cached[scheme]; ok {
		return b, nil
	}
	var (
		b   backend
		err error
	)
	switch scheme {
	case "file":
		b = fileBackend{}
	case "mem":
		b = r.mem
	case "s3":
		b, err = newS3Backend(ctx, r.opts)
	case "gs":
		b, err = newGCSBackend(ctx, r.opts)
	default:
		err = fmt.Errorf("unsupported scheme %q", scheme)
	}
	if err != nil {
		return nil, err
	}
	r.cached[scheme] = b
	return b, nil
}
