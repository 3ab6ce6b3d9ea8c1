// Package fetch runs paginated searches with bounded concurrency while
// preserving sequential semantics: records come back in exactly the order a
// one-page-at-a-time fetch would produce them, and any page failure makes
// the whole invocation fail with no partial results.
package fetch

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/semaphore"

	"tracq/internal/log"
	"tracq/internal/service"
	"tracq/internal/tracing"
)

// PageFunc fetches a single page. Implementations are adapter SearchPage
// methods; a returned slice shorter than the request's limit marks the end
// of the result set.
type PageFunc func(ctx context.Context, req service.PagedRequest) ([]service.Record, error)

// DefaultLimit is the page size when the request leaves it unset.
const DefaultLimit = 100

// Run executes a paged search. Pages are dispatched at offsets
// Offset+k*Limit with at most req.Concurrency requests in flight (default
// 1). Completed pages park in an offset-indexed buffer and are emitted in
// page order, so any concurrency level yields the same records in the same
// order as a sequential fetch.
//
// Dispatching stops at the first short page, at the Max cap, on the first
// page error, or on context cancellation. Cancellation is observed between
// dispatches: requests already in flight run to completion and their
// results are discarded. When any page that a sequential fetch would have
// reached fails, Run returns that error (lowest offset first) and no
// records.
func Run(ctx context.Context, req service.PagedRequest, fn PageFunc) ([]service.Record, error) {
	if req.Limit <= 0 {
		req.Limit = DefaultLimit
	}
	concurrency := int64(req.Concurrency)
	if concurrency < 1 {
		concurrency = 1
	}

	invocation := uuid.NewString()
	tracer := otel.Tracer("tracq/fetch")
	ctx, span := tracer.Start(ctx, tracing.SpanFetch)
	span.SetAttributes(
		attribute.String(tracing.AttrInvocationID, invocation),
		attribute.Int64(tracing.AttrConcurrency, concurrency),
	)
	defer span.End()

	log.Debug(log.CatFetch, "fetch started",
		"invocation", invocation, "limit", req.Limit, "max", req.Max, "concurrency", concurrency)

	var (
		mu    sync.Mutex
		pages = map[int64][]service.Record{}
		errs  = map[int64]error{}
		// Index of the first short page; no later page contributes.
		stop int64 = -1
	)
	sem := semaphore.NewWeighted(concurrency)
	var wg sync.WaitGroup

	// In-flight pages run to completion even after cancellation; their
	// results are simply discarded. Only new dispatches observe ctx.
	pageCtx := context.WithoutCancel(ctx)

	dispatched := int64(0)
	for k := int64(0); ; k++ {
		if ctx.Err() != nil {
			break
		}
		mu.Lock()
		done := (stop >= 0 && k > stop) || len(errs) > 0
		mu.Unlock()
		if done {
			break
		}
		if req.Max > 0 && k*req.Limit >= req.Max {
			break
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}

		wg.Add(1)
		dispatched++
		go func(k int64) {
			defer wg.Done()
			defer sem.Release(1)

			pageReq := req.Page(k)
			pctx, pspan := tracer.Start(pageCtx, tracing.SpanPage)
			pspan.SetAttributes(
				attribute.String(tracing.AttrInvocationID, invocation),
				attribute.Int64(tracing.AttrPageOffset, pageReq.Offset),
			)
			records, err := fn(pctx, pageReq)
			if err != nil {
				pspan.SetStatus(codes.Error, err.Error())
				pspan.End()
				log.Debug(log.CatFetch, "page failed",
					"invocation", invocation, "offset", pageReq.Offset, "error", err)
				mu.Lock()
				errs[k] = err
				mu.Unlock()
				return
			}
			pspan.SetAttributes(attribute.Int(tracing.AttrPageCount, len(records)))
			pspan.End()
			log.Debug(log.CatFetch, "page fetched",
				"invocation", invocation, "offset", pageReq.Offset, "count", len(records))

			mu.Lock()
			pages[k] = records
			if int64(len(records)) < req.Limit && (stop < 0 || k < stop) {
				stop = k
			}
			mu.Unlock()
		}(k)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		log.Debug(log.CatFetch, "fetch canceled", "invocation", invocation)
		return nil, err
	}

	// A failure on any page a sequential fetch would have reached fails the
	// whole invocation; errors past the first short page are artifacts of
	// speculative dispatch and carry no weight.
	firstErr := int64(-1)
	for k := range errs {
		if firstErr < 0 || k < firstErr {
			firstErr = k
		}
	}
	if firstErr >= 0 && (stop < 0 || firstErr <= stop) {
		err := errs[firstErr]
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String(tracing.AttrErrorMessage, err.Error()))
		log.Debug(log.CatFetch, "fetch failed",
			"invocation", invocation, "page", firstErr, "error", err)
		return nil, err
	}

	last := dispatched - 1
	if stop >= 0 {
		last = stop
	}
	var out []service.Record
	for k := int64(0); k <= last; k++ {
		out = append(out, pages[k]...)
	}
	if req.Max > 0 && int64(len(out)) > req.Max {
		out = out[:req.Max]
	}

	span.SetAttributes(attribute.Int(tracing.AttrPageCount, len(out)))
	log.Debug(log.CatFetch, "fetch finished",
		"invocation", invocation, "pages", last+1, "records", len(out))
	return out, nil
}
