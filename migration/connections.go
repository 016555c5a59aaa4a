package migration

import (
	"context"

	"go.uber.org/zap"

	"github.com/TFMV/kirby/integrations"
)

// Connections acquires the source and destination connections for one request.
type Connections struct {
	pair   integrations.Integration
	logger *zap.Logger
}

// NewConnections wraps an already-built database pair.
func NewConnections(pair integrations.Integration, logger *zap.Logger) *Connections {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Connections{pair: pair, logger: logger}
}

// Open returns live connections to both databases. If the destination cannot
// be opened the source connection is released before returning.
func (c *Connections) Open(ctx context.Context) (src, dst integrations.Connection, err error) {
	src, err = c.pair.Source().OpenConnection(ctx)
	if err != nil {
		return nil, nil, connectionError(c.pair.Source().Name(), err)
	}

	dst, err = c.pair.Destination().OpenConnection(ctx)
	if err != nil {
		c.release(ctx, src)
		return nil, nil, connectionError(c.pair.Destination().Name(), err)
	}

	return src, dst, nil
}

// Close releases both connections. Failures are logged, never returned, so they
// cannot mask the outcome of the migration. Nil connections are skipped.
func (c *Connections) Close(ctx context.Context, src, dst integrations.Connection) {
	c.release(ctx, src)
	c.release(ctx, dst)
}

func (c *Connections) release(ctx context.Context, conn integrations.Connection) {
	if conn == nil {
		return
	}
	// Release even when the request context is already cancelled.
	if err := conn.Close(context.WithoutCancel(ctx)); err != nil {
		c.logger.Warn("Failed to release connection", zap.String("endpoint", conn.Name()), zap.Error(err))
	}
}
