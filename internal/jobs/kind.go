package jobs

import (
	"errors"

	"xetl/internal/storage"
	"xetl/internal/xclient"
)

// Error kinds used as metric labels and in the attempt ledger.
const (
	KindRateLimited  = "rate_limited"
	KindRemoteAPI    = "remote_api"
	KindStorageWrite = "storage_write"
	KindUnknown      = "unknown"
)

// Kind classifies a task error. It never changes how the error is retried.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, xclient.ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, xclient.ErrRemoteAPI):
		return KindRemoteAPI
	case errors.Is(err, storage.ErrStorageWrite):
		return KindStorageWrite
	default:
		return KindUnknown
	}
}
