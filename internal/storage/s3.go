package storage

import (
	"bytes"
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type s3Backend struct{ client *s3.Client }

func newS3Backend(ctx context.Context, opts Options) (*s3Backend, error) {
	var load []func(*awsconfig.LoadOptions) error
	if opts.S3Region != "" {
		load = append(load, awsconfig.WithRegion(opts.S3Region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, load...)
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.S3Endpoint)
			o.UsePathStyle = true
		}
	})
	return &s3Backend{client: client}, nil
}

// PutObject replaces the key in one request; readers never see a partial body.
func (b *s3Backend) put(ctx context.Context, loc Location, obj Object) error {
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(loc.Bucket),
		Key:           aws.String(loc.Key),
		Body:          bytes.NewReader(obj.Body),
		ContentLength: aws.Int64(int64(len(obj.Body))),
		ContentType:   aws.String(obj.ContentType),
		Metadata:      obj.Metadata,
	})
	return err
}
