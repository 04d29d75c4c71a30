package migrate

import (
	"context"
	"time"

	"github.com/juju/clock"
	"github.com/juju/retry"

	"github.com/dbsmedya/metaport/internal/catalog"
	"github.com/dbsmedya/metaport/internal/config"
	"github.com/dbsmedya/metaport/internal/logger"
	"github.com/dbsmedya/metaport/internal/schema"
)

// Executor runs catalog calls under the configured timeout and retry policy:
// transient failures retry with doubling delay, terminal failures surface
// immediately.
type Executor struct {
	attempts int
	delay    time.Duration
	timeout  time.Duration
	clock    clock.Clock
	log      *logger.Logger
}

// NewExecutor builds an executor from the advanced config block.
func NewExecutor(cfg config.AdvancedConfig, log *logger.Logger) *Executor {
	delay := cfg.RetryDelayDuration()
	if delay <= 0 {
		delay = time.Millisecond
	}
	return &Executor{
		attempts: cfg.MaxRetries + 1,
		delay:    delay,
		timeout:  cfg.RequestTimeoutDuration(),
		clock:    clock.WallClock,
		log:      log,
	}
}

// Do invokes fn until it succeeds, fails terminally, or the attempt budget
// runs out. Each attempt gets its own request timeout carved from ctx.
func (e *Executor) Do(ctx context.Context, op string, fn func(context.Context) error) error {
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			callCtx, cancel := context.WithTimeout(ctx, e.timeout)
			defer cancel()
			return fn(callCtx)
		},
		IsFatalError: func(err error) bool {
			return !catalog.IsRetryable(err)
		},
		NotifyFunc: func(lastError error, attempt int) {
			if attempt < e.attempts {
				e.log.Warnw("Retrying catalog call",
					"op", op,
					"attempt", attempt,
					"error", lastError,
				)
			}
		},
		Attempts:    e.attempts,
		Delay:       e.delay,
		BackoffFunc: retry.DoubleDelay,
		Clock:       e.clock,
		Stop:        ctx.Done(),
	})
	if retry.IsAttemptsExceeded(err) || retry.IsRetryStopped(err) {
		return retry.LastError(err)
	}
	return err
}

// retryClient wraps a catalog client so every call goes through the
// executor. The pipelines and the selection filter both talk to the catalog
// through this wrapper.
type retryClient struct {
	inner catalog.Client
	exec  *Executor
}

// WrapClient applies the executor's retry policy to a catalog client.
func WrapClient(inner catalog.Client, exec *Executor) catalog.Client {
	return &retryClient{inner: inner, exec: exec}
}

func (c *retryClient) Endpoint() string {
	return c.inner.Endpoint()
}

func (c *retryClient) ListByKind(ctx context.Context, kind schema.Kind, pageToken string, pageSize int) (catalog.Page, error) {
	var page catalog.Page
	err := c.exec.Do(ctx, "list "+string(kind), func(ctx context.Context) error {
		var err error
		page, err = c.inner.ListByKind(ctx, kind, pageToken, pageSize)
		return err
	})
	return page, err
}

func (c *retryClient) GetByName(ctx context.Context, kind schema.Kind, fqName string) (catalog.Record, error) {
	var rec catalog.Record
	err := c.exec.Do(ctx, "get "+string(kind), func(ctx context.Context) error {
		var err error
		rec, err = c.inner.GetByName(ctx, kind, fqName)
		return err
	})
	return rec, err
}

func (c *retryClient) Create(ctx context.Context, kind schema.Kind, rec catalog.Record) (catalog.Record, error) {
	var stored catalog.Record
	err := c.exec.Do(ctx, "create "+string(kind), func(ctx context.Context) error {
		var err error
		stored, err = c.inner.Create(ctx, kind, rec)
		return err
	})
	return stored, err
}

func (c *retryClient) Update(ctx context.Context, kind schema.Kind, id string, rec catalog.Record) (catalog.Record, error) {
	var stored catalog.Record
	err := c.exec.Do(ctx, "update "+string(kind), func(ctx context.Context) error {
		var err error
		stored, err = c.inner.Update(ctx, kind, id, rec)
		return err
	})
	return stored, err
}
