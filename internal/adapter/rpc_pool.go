package adapter

import (
	"context"
	"strings"
	"sync"

	"github.com/chain-ledger/internal/logging"
	"github.com/chain-ledger/internal/upstream"
)

// EndpointPool runs a whole fetch against a primary RPC endpoint and, when the
// endpoint refuses service, re-runs it from scratch against the fallback.
// Once switched, the pool stays on the fallback.
type EndpointPool struct {
	mu       sync.RWMutex
	clients  []*upstream.Client
	current  int
	failover func(error) bool
}

// NewEndpointPool creates a pool of primary followed by fallbacks. Nil
// clients are ignored.
func NewEndpointPool(primary *upstream.Client, fallbacks ...*upstream.Client) *EndpointPool {
	p := &EndpointPool{failover: IsEndpointRefused}
	for _, c := range append([]*upstream.Client{primary}, fallbacks...) {
		if c != nil {
			p.clients = append(p.clients, c)
		}
	}
	return p
}

// IsEndpointRefused matches errors of RPC endpoints that are disabled for
// the method or deny access outright
func IsEndpointRefused(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "endpoint is disabled") ||
		strings.Contains(msg, "forbidden") ||
		strings.Contains(msg, "403")
}

// Client returns the currently selected endpoint
func (p *EndpointPool) Client() *upstream.Client {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.clients[p.current]
}

// Do runs fn against the current endpoint, moving to the next one while fn
// fails with a refusal. Other errors are returned unchanged.
func (p *EndpointPool) Do(ctx context.Context, fn func(ctx context.Context, c *upstream.Client) error) error {
	p.mu.RLock()
	start := p.current
	p.mu.RUnlock()

	var err error
	for i := start; i < len(p.clients); i++ {
		err = fn(ctx, p.clients[i])
		if err == nil || !p.failover(err) || i == len(p.clients)-1 {
			return err
		}

		logging.FromContext(ctx).WithError(err).WithFields(map[string]interface{}{
			"from": p.clients[i].BaseURL(),
			"to":   p.clients[i+1].BaseURL(),
		}).Warn("RPC endpoint refused request, switching to fallback")

		p.mu.Lock()
		if p.current == i {
			p.current = i + 1
		}
		p.mu.Unlock()
	}
	return err
}
