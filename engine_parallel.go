package arbor

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/jward/arbor/internal/logging"
	"github.com/jward/arbor/internal/store"
)

// workItem carries one file through the snapshot pipeline.
type workItem struct {
	pos     int // index into the paths given to Snapshot
	path    string
	grammar string
	content []byte
	hash    string
	batch   *store.SnapshotBatch
}

// snapshotParallel runs the three-phase pipeline:
//
//	Phase A (serial):   resolve grammar, read, compare hash with the latest snapshot.
//	Phase B (parallel): parse and count subtrees on a worker pool.
//	Phase C (serial):   commit batches to SQLite and prune old snapshots.
//
// Results and errors keep the order of paths.
func (e *Engine) snapshotParallel(ctx context.Context, paths []string) ([]SnapshotResult, error) {
	var (
		items   []*workItem
		slots   []int
		results []SnapshotResult
	)
	errAt := make([]error, len(paths))

	// ---- Phase A ----
	for pos, path := range paths {
		item, skip, err := e.prepareFile(path)
		if err != nil {
			errAt[pos] = fmt.Errorf("prepare %s: %w", path, err)
			continue
		}
		if skip != nil {
			results = append(results, *skip)
			continue
		}
		if item == nil {
			continue
		}
		item.pos = pos
		items = append(items, item)
		slots = append(slots, len(results))
		results = append(results, SnapshotResult{Path: path, Grammar: item.grammar})
	}

	if len(items) > 0 {
		// ---- Phase B ----
		numWorkers := max(min(runtime.NumCPU(), len(items)), 1)
		e.logger.Debug("parsing", logging.FieldFiles, len(items), logging.FieldWorkers, numWorkers)

		workCh := make(chan int, len(items))
		for i := range items {
			workCh <- i
		}
		close(workCh)

		type parsed struct {
			idx int
			res SnapshotResult
			err error
		}
		resultCh := make(chan parsed, len(items))

		var wg sync.WaitGroup
		for range numWorkers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range workCh {
					res, err := e.parseFile(ctx, items[i])
					resultCh <- parsed{idx: i, res: res, err: err}
				}
			}()
		}
		go func() {
			wg.Wait()
			close(resultCh)
		}()

		// ---- Phase C ----
		failed := make(map[int]bool)
		for p := range resultCh {
			item := items[p.idx]
			if p.err != nil {
				errAt[item.pos] = fmt.Errorf("parse %s: %w", item.path, p.err)
				failed[slots[p.idx]] = true
				continue
			}
			if err := e.commitFile(item, &p.res); err != nil {
				errAt[item.pos] = fmt.Errorf("commit %s: %w", item.path, err)
				failed[slots[p.idx]] = true
				continue
			}
			results[slots[p.idx]] = p.res
		}

		if len(failed) > 0 {
			kept := results[:0]
			for i, r := range results {
				if !failed[i] {
					kept = append(kept, r)
				}
			}
			results = kept
		}
	}

	var errs []error
	for _, err := range errAt {
		if err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return results, fmt.Errorf("arbor: parallel snapshot had %d error(s): %w", len(errs), errs[0])
	}
	return results, nil
}
