package transport

import (
	"fmt"
	"sync"

	"github.com/localmcp/mcp-hub/daemon/mcphub"
)

// pending is a JSON-RPC id → waiter correlation table. A monotonic counter
// allocates ids: numeric per-session ids avoid the hazards of reused or
// colliding string ids, and there's no need to reclaim slots since each
// session's id space is never persisted. The mutex guards table mutation
// only, never the channel send itself.
type pending struct {
	mu      sync.Mutex
	nextID  int64
	waiters map[int64]chan rpcResult
}

func newPending() *pending {
	return &pending{waiters: make(map[int64]chan rpcResult)}
}

// register allocates a fresh id and its single-buffered waiter channel.
func (p *pending) register() (int64, chan rpcResult) {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	ch := make(chan rpcResult, 1)
	p.waiters[id] = ch
	p.mu.Unlock()
	return id, ch
}

// resolve delivers res to id's waiter, if one is still registered. Returns
// false if id is unknown (late or duplicate delivery).
func (p *pending) resolve(id int64, res rpcResult) bool {
	p.mu.Lock()
	ch, ok := p.waiters[id]
	if ok {
		delete(p.waiters, id)
	}
	p.mu.Unlock()
	if !ok {
		return false
	}
	ch <- res
	return true
}

// cancel removes id's waiter without delivering anything, used when sending
// the request itself failed before any reply could arrive.
func (p *pending) cancel(id int64) {
	p.mu.Lock()
	delete(p.waiters, id)
	p.mu.Unlock()
}

// drain fails every outstanding waiter with a transport-closed error,
// emptying the table. Called once when a session is torn down.
func (p *pending) drain(message string) {
	p.mu.Lock()
	waiters := p.waiters
	p.waiters = make(map[int64]chan rpcResult)
	p.mu.Unlock()

	for _, ch := range waiters {
		ch <- rpcResult{err: fmt.Errorf("%w: %s", mcphub.ErrTransportClosed, message)}
	}
}
