package jobs

import (
	"context"
	"errors"
	"strconv"
	"time"

	"xetl/internal/export"
	"xetl/internal/logging"
	"xetl/internal/metrics"
	"xetl/internal/model"
	"xetl/internal/storage"
	"xetl/internal/xclient"
)

// ExportSpec fixes everything one export reads and writes. Nothing in it
// changes between invocations.
type ExportSpec struct {
	// AccountID is preferred; Username is resolved only when it is empty.
	AccountID      string
	Username       string
	Handle         string
	MaxResults     int
	TweetFields    []string
	Exclude        []string
	DestinationURI string
}

// Result describes a successful export.
type Result struct {
	URI           string
	Records       int
	Bytes         int
	SchemaVersion int
}

// ExportTask fetches recent posts, flattens them and overwrites the CSV
// artifact. It keeps no state between runs and never retries.
type ExportTask struct {
	client xclient.XClient
	store  storage.Writer
	spec   ExportSpec
}

func NewExportTask(client xclient.XClient, store storage.Writer, spec ExportSpec) *ExportTask {
	return &ExportTask{client: client, store: store, spec: spec}
}

// Run performs fetch, transform and store in sequence. Errors come back
// unchanged after being logged; the caller owns retries.
func (t *ExportTask) Run(ctx context.Context) (Result, error) {
	start := time.Now()
	metrics.TaskRuns.Inc()
	defer metrics.ObserveTaskDuration(start)

	userID := t.spec.AccountID
	if userID == "" {
		u, err := t.client.GetUserByUsername(ctx, t.spec.Username)
		if err != nil {
			return Result{}, t.fail("resolve", err)
		}
		userID = u.ID
	}

	posts, err := t.client.GetUserTweets(ctx, userID, xclient.TimelineOptions{
		MaxResults:  t.spec.MaxResults,
		TweetFields: t.spec.TweetFields,
		Exclude:     t.spec.Exclude,
	})
	if err != nil {
		return Result{}, t.fail("fetch", err)
	}

	records := ToRecords(t.spec.Handle, posts)

	body, err := export.EncodeCSV(records)
	if err != nil {
		return Result{}, t.fail("encode", &storage.WriteError{URI: t.spec.DestinationURI, Op: "encode", Err: err})
	}
	obj := storage.Object{
		URI:         t.spec.DestinationURI,
		Body:        body,
		ContentType: export.ContentType,
		Metadata: map[string]string{
			"schema-version": strconv.Itoa(model.RecordSchema.Version),
			"record-count":   strconv.Itoa(len(records)),
		},
	}
	if err := t.store.Put(ctx, obj); err != nil {
		if !errors.Is(err, storage.ErrStorageWrite) {
			err = &storage.WriteError{URI: t.spec.DestinationURI, Op: "put", Err: err}
		}
		return Result{}, t.fail("store", err)
	}

	metrics.RecordsWritten.Set(float64(len(records)))
	logging.Info("export_saved", map[string]any{"records": len(records), "uri": t.spec.DestinationURI})
	return Result{
		URI:           t.spec.DestinationURI,
		Records:       len(records),
		Bytes:         len(body),
		SchemaVersion: model.RecordSchema.Version,
	}, nil
}

func (t *ExportTask) fail(stage string, err error) error {
	kind := Kind(err)
	metrics.IncTaskError(kind)
	fields := map[string]any{"stage": stage, "kind": kind, "error": err.Error()}
	if kind == KindRateLimited {
		logging.Warn("export_rate_limited", fields)
	} else {
		logging.Error("export_failed", fields)
	}
	return err
}
