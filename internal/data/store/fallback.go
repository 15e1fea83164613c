package store

import (
	"github.com/akolanti/DigestAPI/internal/domain/jobModel"
	"github.com/akolanti/DigestAPI/pkg/logger_i"
)

// SelectStores returns the Redis-backed stores when both are reachable and
// the in-memory pair otherwise. The nil checks run on the concrete pointers:
// a nil *RedisJobStore assigned straight into jobModel.JobStore compares
// non-nil, so an interface-level check could never trigger the fallback.
func SelectStores(jobStore *RedisJobStore, documentStore *RedisDocumentStore) (jobModel.JobStore, jobModel.DocumentStore) {
	if jobStore == nil || documentStore == nil {
		logger_i.NewLogger("Stores").Error("Redis stores are offline, falling back to in-memory stores")
		return InitInMemoryJobStore(), InitInMemoryDocumentStore()
	}
	return jobStore, documentStore
}
