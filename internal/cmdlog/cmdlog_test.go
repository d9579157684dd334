package cmdlog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"xetl/internal/logging"
	"xetl/internal/storage"
)

func TestRunLogsOutcome(t *testing.T) {
	var buf bytes.Buffer
	logging.Setup(&buf, "debug")
	defer logging.Setup(&bytes.Buffer{}, "info")

	if err := Run("run", func() error { return nil }); err != nil {
		t.Fatal(err)
	}
	werr := &storage.WriteError{URI: "mem://b/k", Op: "put", Err: errors.New("disk full")}
	if err := Run("run", func() error { return fmt.Errorf("export: %w", werr) }); !errors.Is(err, storage.ErrStorageWrite) {
		t.Fatalf("error not passed through: %v", err)
	}

	dec := json.NewDecoder(&buf)
	var ok, failed map[string]any
	if err := dec.Decode(&ok); err != nil {
		t.Fatal(err)
	}
	if err := dec.Decode(&failed); err != nil {
		t.Fatal(err)
	}
	if ok["msg"] != "run_ok" {
		t.Fatalf("unexpected first line: %v", ok)
	}
	if failed["msg"] != "run_error" || failed["kind"] != "storage_write" {
		t.Fatalf("unexpected second line: %v", failed)
	}
}
