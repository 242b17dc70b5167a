package cluster

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const keepAlivePeriod = 15 * time.Second

// SlotPeer is one entry of a Node's migrating[]/importing[] array: a slot
// number and the name of the peer it is moving to/from, both kept as
// strings to match the source representation (§4.6, §4.3).
type SlotPeer struct {
	Slot string
	Peer string
}

// Node is a per-server record: address, identity, role, owned slots, and
// its single Connection (§3).
type Node struct {
	cluster *Cluster

	Name string
	IP   string
	Port int
	// UnixSocket, when set, is used instead of IP/Port to dial this node.
	UnixSocket string

	Myself    bool
	IsReplica bool
	Replicate string // primary's name, set iff IsReplica

	Slots     []uint16
	Migrating []SlotPeer
	Importing []SlotPeer

	Connection *Connection

	// DuplicatedFrom is the non-owning back-link to the source Node this
	// Node was deep-copied from, set by Duplicate and cleared by Free
	// alongside the owning Cluster's back-link (§8 testable property 5).
	DuplicatedFrom *Node

	connLimiter *rate.Limiter
}

// NewNode allocates a Node bound to cluster, with a fresh Connection and a
// slots array capacity of SlotCount (§4.2 create).
func NewNode(ip string, port int, cluster *Cluster) (*Node, error) {
	if ip == "" || port <= 0 || port > 65535 {
		return nil, ErrInvalidAddress
	}
	return newNode(ip, port, "", cluster), nil
}

// NewUnixNode allocates a Node dialed via a unix domain socket.
func NewUnixNode(socketPath string, cluster *Cluster) (*Node, error) {
	if socketPath == "" {
		return nil, ErrInvalidAddress
	}
	return newNode("", 0, socketPath, cluster), nil
}

func newNode(ip string, port int, unixSocket string, cluster *Cluster) *Node {
	n := &Node{
		cluster:    cluster,
		IP:         ip,
		Port:       port,
		UnixSocket: unixSocket,
		Slots:      make([]uint16, 0, SlotCount),
	}
	n.Connection = newConnection()
	n.connLimiter = rate.NewLimiter(reconnectLimit(cluster), reconnectBurst(cluster))
	return n
}

func reconnectLimit(c *Cluster) rate.Limit {
	if c != nil && c.ReconnectRate > 0 {
		return rate.Limit(c.ReconnectRate)
	}
	return rate.Every(2 * time.Second)
}

func reconnectBurst(c *Cluster) int {
	if c != nil && c.ReconnectBurst > 0 {
		return c.ReconnectBurst
	}
	return 1
}

// Address returns this Node's dial target.
func (n *Node) Address() Address {
	return Address{IP: n.IP, Port: n.Port, UnixSocket: n.UnixSocket}
}

// Addr returns the dial string for this Node ("host:port" or a socket path).
func (n *Node) Addr() string { return n.Address().String() }

func (n *Node) logger() *logrus.Logger {
	if n.cluster != nil && n.cluster.Logger != nil {
		return n.cluster.Logger
	}
	return logrus.StandardLogger()
}

// Connect tears down any prior transport (firing the external disconnect
// hook), opens a fresh connection, and on success enables TCP keep-alive
// with a 15-second interval. Failure leaves Connection.transport unset and
// returns an error; the Node remains usable for a later retry (§4.2).
func (n *Node) Connect(ctx context.Context) error {
	if n.Connection == nil {
		n.Connection = newConnection()
	}
	if n.Connection.transport != nil {
		n.Disconnect()
	}
	if !n.connLimiter.Allow() {
		return fmt.Errorf("cluster: connect %s: rate limited", n.Addr())
	}

	dialer := &net.Dialer{Timeout: n.dialTimeout()}
	opts := &redis.Options{
		Network:     n.Address().Network(),
		Addr:        n.Addr(),
		DialTimeout: n.dialTimeout(),
		Dialer: func(ctx context.Context, network, addr string) (net.Conn, error) {
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			if tcpConn, ok := conn.(*net.TCPConn); ok {
				if err := tcpConn.SetKeepAlive(true); err != nil {
					n.logger().WithError(err).Debug("cluster: failed to enable tcp keepalive")
				} else if err := tcpConn.SetKeepAlivePeriod(keepAlivePeriod); err != nil {
					n.logger().WithError(err).Debug("cluster: failed to set tcp keepalive period")
				}
			}
			return conn, nil
		},
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return fmt.Errorf("cluster: connect %s: %w", n.Addr(), err)
	}

	n.Connection.transport = client
	n.Connection.connected = true
	n.logger().WithFields(logrus.Fields{"node": n.Addr()}).Debug("cluster: node connected")
	return nil
}

func (n *Node) dialTimeout() time.Duration {
	if n.cluster != nil && n.cluster.DialTimeout > 0 {
		return n.cluster.DialTimeout
	}
	return 5 * time.Second
}

// Disconnect fires the external disconnect hook (if any transport exists),
// releases the transport, and clears the connection state. Queues are
// preserved (§4.2).
func (n *Node) Disconnect() {
	if n.Connection == nil || n.Connection.transport == nil {
		return
	}
	if n.cluster != nil && n.cluster.OnNodeDisconnect != nil {
		n.cluster.OnNodeDisconnect(n)
	}
	_ = n.Connection.transport.Close()
	n.Connection.transport = nil
	n.Connection.connected = false
	n.Connection.authenticated = false
	n.Connection.authenticating = false
	n.logger().WithFields(logrus.Fields{"node": n.Addr()}).Debug("cluster: node disconnected")
}

// Authenticate issues AUTH <secret> synchronously. A missing connection is
// itself a failure (§4.2).
func (n *Node) Authenticate(ctx context.Context, secret string) error {
	if n.Connection == nil || n.Connection.transport == nil {
		return ErrNotConnected
	}
	n.Connection.authenticating = true
	err := n.Connection.transport.Do(ctx, "AUTH", secret).Err()
	n.Connection.authenticating = false
	if err != nil {
		return fmt.Errorf("cluster: auth %s: %w", n.Addr(), err)
	}
	n.Connection.authenticated = true
	n.logger().WithFields(logrus.Fields{"node": n.Addr()}).Debug("cluster: node authenticated")
	return nil
}

// close tears down the node's connection without firing any external hook
// beyond Disconnect's own, used by Cluster.Reset/Free to release every
// owned Node in turn (§4.5).
func (n *Node) close() {
	n.Disconnect()
	if n.Connection != nil {
		n.Connection.reset()
	}
}
