package dbview

import (
	"context"

	"go.uber.org/zap"
)

// Callbacks are the host operations the engine triggers. Every callback is
// optional and fire-and-forget: the engine updates its own state without
// waiting and never rolls back on failure.
type Callbacks struct {
	OnUpdate      func(ctx context.Context, rowID, columnID string, value Value) error
	OnCreate      func(ctx context.Context, partial Row) error
	OnDelete      func(ctx context.Context, rowID string) error
	OnRowNavigate func(rowID string)
}

// Dispatcher runs host callbacks.
type Dispatcher interface {
	Go(fn func())
}

// GoDispatcher runs each callback on its own goroutine.
type GoDispatcher struct{}

func (GoDispatcher) Go(fn func()) { go fn() }

// SyncDispatcher runs callbacks inline. Useful in tests and in hosts that
// already serialize work.
type SyncDispatcher struct{}

func (SyncDispatcher) Go(fn func()) { fn() }

type caller struct {
	cb         Callbacks
	dispatcher Dispatcher
	logger     *zap.Logger
	ctx        context.Context
}

func (c *caller) update(rowID, columnID string, v Value) {
	if c.cb.OnUpdate == nil {
		return
	}
	c.dispatcher.Go(func() {
		if err := c.cb.OnUpdate(c.ctx, rowID, columnID, v); err != nil {
			c.logger.Debug("update callback failed", zap.String("row", rowID), zap.String("column", columnID), zap.Error(err))
		}
	})
}

func (c *caller) create(partial Row) {
	if c.cb.OnCreate == nil {
		return
	}
	c.dispatcher.Go(func() {
		if err := c.cb.OnCreate(c.ctx, partial); err != nil {
			c.logger.Debug("create callback failed", zap.Error(err))
		}
	})
}

func (c *caller) delete(rowID string) {
	if c.cb.OnDelete == nil {
		return
	}
	c.dispatcher.Go(func() {
		if err := c.cb.OnDelete(c.ctx, rowID); err != nil {
			c.logger.Debug("delete callback failed", zap.String("row", rowID), zap.Error(err))
		}
	})
}

func (c *caller) navigate(rowID string) {
	if c.cb.OnRowNavigate != nil {
		c.cb.OnRowNavigate(rowID)
	}
}
