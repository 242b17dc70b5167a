package cluster

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// Registry tracks the duplicated Cluster owned by each worker, adapted
// from a protocol-keyed connection pool into a worker-id-keyed cluster
// pool: a worker acquires its own coherent copy of the topology via
// Duplicate and releases it with Free when it exits (§4.7 gives the
// algorithm; this is its concrete per-process caller).
type Registry struct {
	mu       sync.RWMutex
	byWorker map[string]*Cluster
	logger   *logrus.Logger
}

// NewRegistry returns an empty Registry.
func NewRegistry(logger *logrus.Logger) *Registry {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Registry{byWorker: make(map[string]*Cluster), logger: logger}
}

// Acquire returns the existing duplicate for workerID, or creates one from
// source if none exists yet.
func (r *Registry) Acquire(workerID string, source *Cluster) (*Cluster, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byWorker[workerID]; ok {
		return existing, nil
	}
	dup, err := Duplicate(source)
	if err != nil {
		return nil, fmt.Errorf("cluster: registry: duplicate for worker %s: %w", workerID, err)
	}
	dup.WorkerID = workerID
	r.byWorker[workerID] = dup
	r.logger.WithField("worker", workerID).Debug("cluster: duplicate registered")
	return dup, nil
}

// Release frees and forgets the duplicate owned by workerID, if any.
func (r *Registry) Release(workerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	dup, ok := r.byWorker[workerID]
	if !ok {
		return
	}
	dup.Free()
	delete(r.byWorker, workerID)
	r.logger.WithField("worker", workerID).Debug("cluster: duplicate released")
}

// Get returns the duplicate owned by workerID, if any.
func (r *Registry) Get(workerID string) (*Cluster, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byWorker[workerID]
	return c, ok
}

// Len returns the number of worker duplicates currently tracked.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byWorker)
}
