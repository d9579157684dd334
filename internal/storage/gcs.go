package storage

import (
	"context"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

type gcsBackend struct{ client *gcs.Client }

func newGCSBackend(ctx context.Context, opts Options) (*gcsBackend, error) {
	var copts []option.ClientOption
	if opts.GCSEndpoint != "" {
		copts = append(copts, option.WithEndpoint(opts.GCSEndpoint), option.WithoutAuthentication())
	} else if opts.GCSCredentialsFile != "" {
		copts = append(copts, option.WithCredentialsFile(opts.GCSCredentialsFile))
	}
	c, err := gcs.NewClient(ctx, copts...)
	if err != nil {
		return nil, err
	}
	return &gcsBackend{client: c}, nil
}

// The object only becomes visible when Close finalizes the upload, so a
// cancelled write leaves the previous generation in place.
func (b *gcsBackend) put(ctx context.Context, loc Location, obj Object) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	w := b.client.Bucket(loc.Bucket).Object(loc.Key).NewWriter(ctx)
	w.ContentType = obj.ContentType
	w.Metadata = obj.Metadata
	if _, err := w.Write(obj.Body); err != nil {
		cancel()
		_ = w.Close()
		return err
	}
	return w.Close()
}
