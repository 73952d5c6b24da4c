package flow

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// DetailRequest asks for the full record of one listed item.
type DetailRequest[I any] struct {
	Index int // 1-based position across all pages
	Total int
	Item  I
}

// Exporter lists a remote collection page by page, fetches the detail record
// of every item and renders the results as a workbook. Detail failures are
// isolated into failed outcomes; count and page failures abort the export.
type Exporter[I, D any] struct {
	QueryTotalCount func(ctx context.Context) (int, error)
	QueryPage       PageQuery[I]
	FetchDetail     func(ctx context.Context, req DetailRequest[I]) (D, error)
	// Placeholder builds the row rendered for an item whose detail fetch failed.
	Placeholder func(item I) D
	Mappings    []FieldMapping[D]

	PageSize          int
	PageConcurrency   int
	DetailConcurrency int
	Logger            *logrus.Entry
}

// Export runs Collect and assembles the outcomes into a workbook.
func (e *Exporter[I, D]) Export(ctx context.Context) (*excelize.File, error) {
	outcomes, err := e.Collect(ctx)
	if err != nil {
		return nil, err
	}
	return Assemble(e.Mappings, outcomes)
}

// Collect returns one outcome per listed item, in global index order.
func (e *Exporter[I, D]) Collect(ctx context.Context) ([]Outcome[D], error) {
	log := entryOrDefault(e.Logger)
	size := e.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}

	total, err := e.QueryTotalCount(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, asRemote("query total count", err)
	}
	if total < 0 {
		return nil, &RemoteError{Op: "query total count", Err: fmt.Errorf("negative total %d", total)}
	}
	log.WithField("total", total).Info("Exporting items")

	reqs := BuildPageRequests(total, size)
	pages := make([][]Outcome[D], len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	pageSem := semaphore.NewWeighted(int64(max(e.PageConcurrency, 1)))
	detailSem := semaphore.NewWeighted(int64(max(e.DetailConcurrency, 1)))

	launchPages(g, gctx, pageSem, reqs, e.QueryPage, log, func(p int, items []I) {
		slots := make([]Outcome[D], len(items))
		pages[p] = slots
		for i, item := range items {
			req := DetailRequest[I]{
				Index: GlobalIndex(reqs[p].PageIndex, size, i),
				Total: total,
				Item:  item,
			}
			g.Go(func() error {
				out, err := e.fetchOne(gctx, detailSem, req, log)
				if err != nil {
					return err
				}
				slots[i] = out
				return nil
			})
		}
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var outcomes []Outcome[D]
	for _, slots := range pages {
		outcomes = append(outcomes, slots...)
	}
	warnOnShortfall(log, total, len(outcomes))
	outcomes = CheckCellLengths(e.Mappings, outcomes)

	if failed := CountFailed(outcomes); failed > 0 {
		log.WithFields(logrus.Fields{"total": len(outcomes), "failed": failed}).Warn("Export finished with failed items")
	}
	return outcomes, nil
}

// fetchOne returns an error only when the export as a whole must stop.
func (e *Exporter[I, D]) fetchOne(ctx context.Context, sem *semaphore.Weighted, req DetailRequest[I], log *logrus.Entry) (Outcome[D], error) {
	if err := sem.Acquire(ctx, 1); err != nil {
		return Outcome[D]{}, err
	}
	defer sem.Release(1)

	log.Debugf("Fetching item %d/%d", req.Index, req.Total)
	detail, err := e.FetchDetail(ctx, req)
	if err == nil {
		return Succeeded(detail), nil
	}
	if ctx.Err() != nil {
		return Outcome[D]{}, ctx.Err()
	}
	log.WithFields(logrus.Fields{
		"index": req.Index,
		"total": req.Total,
		"error": err.Error(),
	}).Warn("Item detail fetch failed")
	var placeholder D
	if e.Placeholder != nil {
		placeholder = e.Placeholder(req.Item)
	}
	return Failed(placeholder, err), nil
}
