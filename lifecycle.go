package inkwell

import (
	"context"

	"github.com/agentstation/inkwell/pkg/errors"
)

// Lifecycle controls the background work of a Client.
type Lifecycle interface {
	// Start probes connectivity, loads notifications and starts the
	// probe and poll timers.
	Start(ctx context.Context) error

	// Close stops all timers and sessions and waits for in-flight work.
	Close() error
}

// Start begins background work. It is a no-op when already started.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.closed:
		return errors.ErrClosed
	case c.started:
		return nil
	}

	if c.prober != nil {
		if err := c.prober.Start(ctx); err != nil {
			return errors.WrapResource("start", "prober", c.options.probeURL, err)
		}
	}

	if c.poller != nil {
		if err := c.poller.Start(ctx); err != nil {
			if c.prober != nil {
				c.prober.Stop()
			}
			return errors.WrapResource("start", "notification poller", c.options.userID, err)
		}
	}

	c.started = true
	c.logger.Info().
		Bool("online", c.monitor.IsOnline()).
		Int("pending", c.drafts.Len()).
		Msg("Client started")
	return nil
}

// Close stops every timer, session and subscription the Client owns.
// It is idempotent.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	sessions := make([]*Session, 0, len(c.sessions))
	for s := range c.sessions {
		sessions = append(sessions, s)
	}
	connHooks := c.connHooks
	c.connHooks = nil
	c.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
	if c.prober != nil {
		c.prober.Stop()
	}
	if c.poller != nil {
		c.poller.Stop()
	}
	c.reconciler.Close()
	for _, h := range connHooks {
		c.monitor.Remove(h)
	}
	c.hooks.Close()

	c.logger.Debug().Msg("Client closed")
	return nil
}
