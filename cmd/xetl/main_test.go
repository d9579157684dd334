package main

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"xetl/internal/config"
)

func TestExportSpecFromDefaults(t *testing.T) {
	spec := exportSpec(config.Default())
	if spec.AccountID != "44196397" || spec.Handle != "elonmusk" {
		t.Fatalf("unexpected account: %+v", spec)
	}
	if spec.MaxResults != 10 {
		t.Fatalf("max results = %d", spec.MaxResults)
	}
	if !reflect.DeepEqual(spec.Exclude, []string{"retweets", "replies"}) {
		t.Fatalf("exclude = %v", spec.Exclude)
	}
	if !reflect.DeepEqual(spec.TweetFields, []string{"created_at", "public_metrics", "text"}) {
		t.Fatalf("tweet fields = %v", spec.TweetFields)
	}
	if spec.DestinationURI != "s3://airflow-s3-x-bucket/elon_musk_tweets.csv" {
		t.Fatalf("uri = %s", spec.DestinationURI)
	}
}

type stubServer struct {
	startErr error
	stopped  chan struct{}
	shutdown bool
}

func (s *stubServer) Start(addr string) error {
	if s.startErr != nil {
		return s.startErr
	}
	<-s.stopped
	return errors.New("http: Server closed")
}

func (s *stubServer) Shutdown(ctx context.Context) error {
	s.shutdown = true
	close(s.stopped)
	return nil
}

func TestServeUntilDoneReturnsListenError(t *testing.T) {
	want := errors.New("listen tcp :8080: address already in use")
	srv := &stubServer{startErr: want, stopped: make(chan struct{})}
	err := serveUntilDone(context.Background(), srv, ":8080")
	if !errors.Is(err, want) {
		t.Fatalf("expected listen error, got %v", err)
	}
	if srv.shutdown {
		t.Fatal("shutdown must not run after a listen failure")
	}
}

func TestServeUntilDoneShutsDownOnCancel(t *testing.T) {
	srv := &stubServer{stopped: make(chan struct{})}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := serveUntilDone(ctx, srv, ":0"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !srv.shutdown {
		t.Fatal("expected shutdown after cancel")
	}
}
