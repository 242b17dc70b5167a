package cluster

import (
	"container/list"

	"github.com/go-redis/redis/v8"
)

// requestQueue is a FIFO of *Request backed by container/list so a request
// can be removed mid-iteration (as the reconfiguration controller's drain
// pass requires, §4.6 step 2) without disturbing the order of the rest.
type requestQueue struct {
	l *list.List
}

func newRequestQueue() *requestQueue { return &requestQueue{l: list.New()} }

func (q *requestQueue) pushBack(r *Request) { q.l.PushBack(r) }

func (q *requestQueue) popFront() (*Request, bool) {
	e := q.l.Front()
	if e == nil {
		return nil, false
	}
	return q.l.Remove(e).(*Request), true
}

func (q *requestQueue) len() int { return q.l.Len() }

// drain walks the queue front-to-back. For each request it calls onKeep or
// onRemove; requests passed to onRemove are removed from the queue,
// requests passed to onKeep stay in place. Order of the surviving requests
// is preserved.
func (q *requestQueue) drain(onKeep, onRemove func(*Request)) {
	e := q.l.Front()
	for e != nil {
		next := e.Next()
		req := e.Value.(*Request)
		if onRemove != nil && shouldRemove(req) {
			q.l.Remove(e)
			onRemove(req)
		} else if onKeep != nil {
			onKeep(req)
		}
		e = next
	}
}

// shouldRemove is only meaningful in the context drain is called from
// (requests_to_send, §4.6 step 2): a request mid-write must stay put.
func shouldRemove(req *Request) bool { return !req.HasWriteHandler }

// Connection holds one Node's outbound transport plus its two FIFOs (§3).
// Queues are manipulated only by the worker that owns the Cluster (§5);
// the core never locks around them.
type Connection struct {
	transport *redis.Client

	connected      bool
	authenticating bool
	authenticated  bool
	hasReadHandler bool

	pending *requestQueue // requests_pending: sent, awaiting reply
	toSend  *requestQueue // requests_to_send: queued, some mid-write
}

func newConnection() *Connection {
	return &Connection{
		pending: newRequestQueue(),
		toSend:  newRequestQueue(),
	}
}

// Connected reports whether the connection currently owns a live transport.
func (c *Connection) Connected() bool { return c.connected }

// Authenticated reports whether AUTH has succeeded on this connection.
func (c *Connection) Authenticated() bool { return c.authenticated }

// EnqueueToSend appends a request to requests_to_send.
func (c *Connection) EnqueueToSend(r *Request) { c.toSend.pushBack(r) }

// EnqueuePending appends a request to requests_pending, e.g. once the
// external writer has finished writing it in full.
func (c *Connection) EnqueuePending(r *Request) { c.pending.pushBack(r) }

// DequeuePending pops the oldest pending request, e.g. once its reply has
// arrived.
func (c *Connection) DequeuePending() (*Request, bool) { return c.pending.popFront() }

// PendingLen returns the length of requests_pending.
func (c *Connection) PendingLen() int { return c.pending.len() }

// ToSendLen returns the length of requests_to_send.
func (c *Connection) ToSendLen() int { return c.toSend.len() }

// drainToSend implements §4.6 step 2's walk of requests_to_send: any
// request mid-write (has_write_handler) is reported via onWaiting and left
// in place; everything else is removed and reported via onDivert.
func (c *Connection) drainToSend(onWaiting, onDivert func(*Request)) {
	c.toSend.drain(onWaiting, onDivert)
}

// reset tears down the transport and drops both queues. Used by Node
// teardown (§4.2, §4.5); queue contents are the owning worker's
// responsibility to have already drained or reprocessed.
func (c *Connection) reset() {
	c.transport = nil
	c.connected = false
	c.authenticating = false
	c.authenticated = false
	c.hasReadHandler = false
	c.pending = newRequestQueue()
	c.toSend = newRequestQueue()
}
