// Package parallel implements the explicit fork-join primitive that
// backs every Parallel* RAM operation (spec.md §4.7, §9): partition a
// scan/range into chunks, run each chunk on a bounded pool of workers,
// join before returning. The source's implicit work-stealing loop has
// no direct analogue here; a channel-drained worker pool (grounded on
// the pack's worker-pool pattern for level-parallel graph traversal)
// gives the same bounded fan-out with an explicit join point.
package parallel

import (
	"sync"

	"github.com/Pudrick/Souffle-mod/domain"
	"github.com/Pudrick/Souffle-mod/execctx"
)

// ChunksPerThread is the oversubscription factor spec.md §4.7 asks for
// ("partition scan/range into ≈ threads * 20 chunks to smooth skew").
const ChunksPerThread = 20

// PartitionCount returns the target chunk count for a run with threads
// workers, never less than 1.
func PartitionCount(threads int) int {
	if threads < 1 {
		threads = 1
	}
	return threads * ChunksPerThread
}

// Chunk iterates the tuples of one partition, stopping early if fn
// returns false. index.Index.Partition/PartitionRange produce these.
type Chunk func(fn func(domain.Tuple) bool)

// Run fans chunks out across a bounded pool of at most threads workers.
// Each worker goroutine clones its own Context from base exactly once
// (spec.md §4.7 "Contexts must be cloned not shared per worker") and
// then calls work once per chunk it drains from the shared queue. Run
// is a barrier: fan-out happens at entry, join at return (spec.md §4.7
// "each Parallel* is a barrier"). A chunk stopping its own iteration
// early (work returning after fn saw false) never affects sibling
// chunks or the overall result — a Break is local.
func Run(base *execctx.Context, chunks []Chunk, threads int, work func(worker *execctx.Context, chunk Chunk)) {
	if len(chunks) == 0 {
		return
	}
	workers := threads
	if workers < 1 {
		workers = 1
	}
	if workers > len(chunks) {
		workers = len(chunks)
	}

	queue := make(chan Chunk, len(chunks))
	for _, c := range chunks {
		queue <- c
	}
	close(queue)

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			worker := base.Clone()
			for c := range queue {
				work(worker, c)
			}
		}()
	}
	wg.Wait()
}
