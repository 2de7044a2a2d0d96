package query

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/clipstream/backend/internal/db"
	"github.com/clipstream/backend/internal/logging"
	"github.com/clipstream/backend/internal/metrics"
)

// Paginate compiles the pipeline with skip/limit derived from opts, executes
// the count and page statements against the pool, and shapes the result into
// a page envelope. Each call is a pure function of (pipeline, options, store
// snapshot); consistency under concurrent writes is whatever the store's read
// isolation provides, and a store failure propagates without retry.
func Paginate[T any](ctx context.Context, pool db.Pool, p *Pipeline, opts Options, scan pgx.RowToFunc[T]) (Page[T], error) {
	ctx, span := logging.StartSpan(ctx, "paginate "+p.from)
	defer span.End()

	start := time.Now()
	page, err := paginate(ctx, pool, p, opts, scan)

	status := "ok"
	if err != nil {
		status = "error"
	}
	m := metrics.New()
	m.QueryTotal.WithLabelValues(p.from, status).Inc()
	m.QueryDuration.WithLabelValues(p.from, status).Observe(time.Since(start).Seconds())

	return page, err
}

func paginate[T any](ctx context.Context, pool db.Pool, p *Pipeline, opts Options, scan pgx.RowToFunc[T]) (Page[T], error) {
	p.Append(Skip((opts.Page-1)*opts.Limit), Limit(opts.Limit))

	pageStmt, countStmt, err := Compile(p)
	if err != nil {
		return Page[T]{}, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return Page[T]{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var total int64
	if err := conn.QueryRow(ctx, countStmt.SQL, countStmt.Args...).Scan(&total); err != nil {
		return Page[T]{}, fmt.Errorf("count rows: %w", err)
	}

	rows, err := conn.Query(ctx, pageStmt.SQL, pageStmt.Args...)
	if err != nil {
		return Page[T]{}, fmt.Errorf("query page: %w", err)
	}

	items, err := pgx.CollectRows(rows, scan)
	if err != nil {
		return Page[T]{}, fmt.Errorf("collect rows: %w", err)
	}

	return NewPage(items, total, opts), nil
}
