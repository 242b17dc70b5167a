// Package demo exercises the routing core end to end over a plain TCP
// listener: each connection sends one key per line, and each reply line
// names the node that key hashes to. It is not a RESP proxy.
package demo

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"clusterproxy/internal/cluster"
)

// Listener accepts plain-text routing lookups on a TCP port.
type Listener struct {
	port        int
	cluster     *cluster.Cluster
	logger      *logrus.Logger
	connLimiter *rate.Limiter

	listener net.Listener
	ctx      context.Context
	cancel   context.CancelFunc

	mu          sync.RWMutex
	running     bool
	activeConns int64
	totalConns  int64
}

// NewListener creates a routing-lookup listener bound to port, rate-limited
// at connRate connections/second (0 disables limiting).
func NewListener(port int, cl *cluster.Cluster, connRate float64, logger *logrus.Logger) *Listener {
	l := &Listener{
		port:    port,
		cluster: cl,
		logger:  logger,
	}
	if connRate > 0 {
		l.connLimiter = rate.NewLimiter(rate.Limit(connRate), int(connRate)+1)
	}
	return l
}

// Start opens the listener and begins accepting connections in the
// background.
func (l *Listener) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running {
		return fmt.Errorf("listener already running")
	}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", l.port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", l.port, err)
	}

	l.listener = listener
	l.ctx, l.cancel = context.WithCancel(ctx)
	l.running = true

	go l.acceptConnections()

	l.logger.WithField("port", l.port).Info("routing demo listener started")
	return nil
}

// Stop closes the listener and stops accepting new connections.
func (l *Listener) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.running {
		return nil
	}

	if l.cancel != nil {
		l.cancel()
	}
	if l.listener != nil {
		l.listener.Close()
	}
	l.running = false
	return nil
}

// GetStats returns listener statistics.
func (l *Listener) GetStats() map[string]interface{} {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return map[string]interface{}{
		"port":         l.port,
		"active_conns": l.activeConns,
		"total_conns":  l.totalConns,
		"running":      l.running,
	}
}

func (l *Listener) acceptConnections() {
	for {
		select {
		case <-l.ctx.Done():
			return
		default:
			conn, err := l.listener.Accept()
			if err != nil {
				if !l.isRunning() {
					return
				}
				l.logger.WithError(err).Error("failed to accept connection")
				continue
			}

			if l.connLimiter != nil && !l.connLimiter.Allow() {
				l.logger.Warn("connection rate limit exceeded")
				conn.Close()
				continue
			}

			go l.handleConnection(conn)
		}
	}
}

func (l *Listener) handleConnection(conn net.Conn) {
	defer conn.Close()

	l.incrementActiveConns()
	defer l.decrementActiveConns()
	l.incrementTotalConns()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		key := scanner.Text()
		if key == "" {
			continue
		}

		var slot uint16
		node, ok := l.cluster.NodeForKey(key, &slot)
		if !ok {
			fmt.Fprintf(conn, "UNMAPPED slot=%d\n", slot)
			continue
		}
		fmt.Fprintf(conn, "NODE slot=%d name=%s addr=%s\n", slot, node.Name, node.Addr())
	}
}

func (l *Listener) isRunning() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.running
}

func (l *Listener) incrementActiveConns() {
	l.mu.Lock()
	l.activeConns++
	l.mu.Unlock()
}

func (l *Listener) decrementActiveConns() {
	l.mu.Lock()
	l.activeConns--
	l.mu.Unlock()
}

func (l *Listener) incrementTotalConns() {
	l.mu.Lock()
	l.totalConns++
	l.mu.Unlock()
}
