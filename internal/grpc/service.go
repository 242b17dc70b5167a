package grpc

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"clusterproxy/internal/cluster"
)

// ClusterModuleService implements the ModuleService interface against a
// live topology Cluster.
type ClusterModuleService struct {
	cluster   *cluster.Cluster
	logger    *logrus.Logger
	startTime time.Time
}

// NewModuleService creates a new cluster-aware module service.
func NewModuleService(cl *cluster.Cluster, logger *logrus.Logger) *ClusterModuleService {
	return &ClusterModuleService{
		cluster:   cl,
		logger:    logger,
		startTime: time.Now(),
	}
}

// GetStatus returns the current status of the topology.
func (s *ClusterModuleService) GetStatus(ctx context.Context) (map[string]interface{}, error) {
	status := map[string]interface{}{
		"module_type":   "clusterproxy",
		"status":        s.healthStatus(),
		"uptime":        time.Since(s.startTime).Seconds(),
		"timestamp":     time.Now().Unix(),
		"nodes_total":   len(s.cluster.Nodes),
		"slots_mapped":  s.cluster.SlotIndex.Len(),
		"updating":      s.cluster.Updating,
		"broken":        s.cluster.Broken,
		"worker_id":     s.cluster.WorkerID,
	}

	s.logger.Debug("GetStatus called")
	return status, nil
}

// Reload triggers a reconfiguration of the cluster topology.
func (s *ClusterModuleService) Reload(ctx context.Context, graceful bool) error {
	s.logger.WithField("graceful", graceful).Info("Reload requested")

	status := s.cluster.Update(ctx)
	if status == cluster.UpdateErr {
		s.logger.Error("reload: reconfiguration failed, cluster is broken")
	}
	return nil
}

// Shutdown releases the cluster's nodes and connections.
func (s *ClusterModuleService) Shutdown(ctx context.Context, graceful bool) error {
	s.logger.WithField("graceful", graceful).Info("Shutdown requested")

	s.cluster.Free()
	return nil
}

// GetMetrics returns current metrics for the topology.
func (s *ClusterModuleService) GetMetrics(ctx context.Context) (map[string]interface{}, error) {
	metrics := map[string]interface{}{
		"module_type":            "clusterproxy",
		"uptime":                 time.Since(s.startTime).Seconds(),
		"timestamp":              time.Now().Unix(),
		"nodes_total":            len(s.cluster.Nodes),
		"slots_mapped":           s.cluster.SlotIndex.Len(),
		"reprocess_queue_length": s.cluster.ReprocessLen(),
		"duplicates_total":       len(s.cluster.Duplicates),
	}

	s.logger.Debug("GetMetrics called")
	return metrics, nil
}

// HealthCheck reports whether the cluster is usable.
func (s *ClusterModuleService) HealthCheck(ctx context.Context) (string, error) {
	s.logger.Debug("HealthCheck called")
	return s.healthStatus(), nil
}

// GetStats returns detailed statistics for the topology.
func (s *ClusterModuleService) GetStats(ctx context.Context) (map[string]interface{}, error) {
	stats := map[string]interface{}{
		"module_type": "clusterproxy",
		"uptime":      time.Since(s.startTime).Seconds(),
		"start_time":  s.startTime.Unix(),
		"timestamp":   time.Now().Unix(),
		"worker_id":   s.cluster.WorkerID,
		"updating":    s.cluster.Updating,
		"broken":      s.cluster.Broken,
	}

	s.logger.Debug("GetStats called")
	return stats, nil
}

func (s *ClusterModuleService) healthStatus() string {
	if s.cluster.Broken {
		return "broken"
	}
	if s.cluster.Updating {
		return "updating"
	}
	return "healthy"
}
