package flow

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// DefaultPageSize is the page size used for every listing call.
const DefaultPageSize = 20

// PageRequest describes one page of a listing. PageSize 0 is a count-only probe.
type PageRequest struct {
	PageIndex  int
	PageSize   int
	PageCount  int
	TotalCount int
}

// PageResult is one page of raw items. TotalCount is what the remote reported
// for this call, zero if it did not say.
type PageResult[I any] struct {
	PageIndex  int
	Items      []I
	TotalCount int
}

// PageQuery fetches one page.
type PageQuery[I any] func(ctx context.Context, req PageRequest) (PageResult[I], error)

// IndexedItem is a raw item with its 1-based position across all pages.
type IndexedItem[I any] struct {
	Index int
	Total int
	Item  I
}

// CountProbe is the request used to discover the total item count.
func CountProbe() PageRequest {
	return PageRequest{PageIndex: 1, PageSize: 0}
}

// PageCount returns ceil(total/size), or 0 when there is nothing to fetch.
func PageCount(total, size int) int {
	if total <= 0 || size <= 0 {
		return 0
	}
	return (total + size - 1) / size
}

// GlobalIndex returns the 1-based position of the local-th item (0-based) of a page.
func GlobalIndex(pageIndex, pageSize, local int) int {
	return (pageIndex-1)*pageSize + local + 1
}

// BuildPageRequests enumerates pages 1..PageCount(total, size).
func BuildPageRequests(total, size int) []PageRequest {
	count := PageCount(total, size)
	reqs := make([]PageRequest, count)
	for i := range reqs {
		reqs[i] = PageRequest{
			PageIndex:  i + 1,
			PageSize:   size,
			PageCount:  count,
			TotalCount: total,
		}
	}
	return reqs
}

// FetchPages retrieves every page of a listing with at most concurrency
// requests in flight and returns the items in page order. Any page failure
// fails the whole call.
func FetchPages[I any](ctx context.Context, total, size, concurrency int, query PageQuery[I], log *logrus.Entry) ([]IndexedItem[I], error) {
	reqs := BuildPageRequests(total, size)
	pages := make([][]I, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(int64(max(concurrency, 1)))
	launchPages(g, gctx, sem, reqs, query, entryOrDefault(log), func(p int, items []I) {
		pages[p] = items
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []IndexedItem[I]
	for p, items := range pages {
		for i, item := range items {
			out = append(out, IndexedItem[I]{
				Index: GlobalIndex(reqs[p].PageIndex, size, i),
				Total: total,
				Item:  item,
			})
		}
	}
	warnOnShortfall(entryOrDefault(log), total, len(out))
	return out, nil
}

// launchPages starts one goroutine per page. onPage runs inside the page's
// goroutine with the page's slot number, and may start more work on g.
func launchPages[I any](g *errgroup.Group, ctx context.Context, sem *semaphore.Weighted, reqs []PageRequest, query PageQuery[I], log *logrus.Entry, onPage func(p int, items []I)) {
	for p, req := range reqs {
		g.Go(func() error {
			if err := sem.Acquire(ctx, 1); err != nil {
				return err
			}
			log.Debugf("Fetching page %d/%d", req.PageIndex, req.PageCount)
			res, err := query(ctx, req)
			sem.Release(1)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return asRemote(fmt.Sprintf("query page %d", req.PageIndex), err)
			}
			if res.TotalCount > 0 && res.TotalCount != req.TotalCount {
				log.WithFields(logrus.Fields{
					"page":     req.PageIndex,
					"reported": res.TotalCount,
					"expected": req.TotalCount,
				}).Warn("Total count changed while paging")
			}
			onPage(p, res.Items)
			return nil
		})
	}
}

func warnOnShortfall(log *logrus.Entry, total, collected int) {
	if collected != total {
		log.WithFields(logrus.Fields{
			"total":     total,
			"collected": collected,
		}).Warn("Page item counts do not sum to the reported total")
	}
}

func entryOrDefault(log *logrus.Entry) *logrus.Entry {
	if log != nil {
		return log
	}
	return logrus.NewEntry(logrus.StandardLogger())
}
