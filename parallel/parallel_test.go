package parallel

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/fortytw2/leaktest"

	"github.com/Pudrick/Souffle-mod/domain"
	"github.com/Pudrick/Souffle-mod/execctx"
)

func TestPartitionCount(t *testing.T) {
	if got := PartitionCount(4); got != 80 {
		t.Fatalf("PartitionCount(4) = %d, want 80", got)
	}
	if got := PartitionCount(0); got != ChunksPerThread {
		t.Fatalf("PartitionCount(0) = %d, want %d", got, ChunksPerThread)
	}
}

func chunkOf(vals ...int64) Chunk {
	return func(fn func(domain.Tuple) bool) {
		for _, v := range vals {
			if !fn(domain.Tuple{domain.FromSigned(v)}) {
				return
			}
		}
	}
}

func TestRunVisitsEveryChunkExactlyOnce(t *testing.T) {
	defer leaktest.Check(t)()

	base := execctx.New()
	base.SetVar("shared", domain.FromSigned(42))

	chunks := []Chunk{chunkOf(1, 2), chunkOf(3), chunkOf(4, 5, 6)}
	var mu sync.Mutex
	var seen []int64

	Run(base, chunks, 2, func(worker *execctx.Context, c Chunk) {
		if v, ok := worker.Var("shared"); !ok || v != domain.FromSigned(42) {
			t.Errorf("worker context did not inherit base variable")
		}
		c(func(tup domain.Tuple) bool {
			mu.Lock()
			seen = append(seen, tup[0].Signed())
			mu.Unlock()
			return true
		})
	})

	if len(seen) != 6 {
		t.Fatalf("expected 6 tuples visited, got %d: %v", len(seen), seen)
	}
}

func TestRunLocalBreakDoesNotStopSiblingChunks(t *testing.T) {
	defer leaktest.Check(t)()

	base := execctx.New()
	chunks := []Chunk{chunkOf(1, 2, 3), chunkOf(4, 5, 6)}
	var visitedFirstChunk int32
	var visitedSecondChunk int32

	Run(base, chunks, 4, func(worker *execctx.Context, c Chunk) {
		count := int32(0)
		c(func(tup domain.Tuple) bool {
			count++
			return tup[0].Signed() < 2 // chunk {1,2,3} breaks at its second element, chunk {4,5,6} at its first
		})
		if count == 1 {
			atomic.AddInt32(&visitedFirstChunk, 1)
		} else {
			atomic.AddInt32(&visitedSecondChunk, 1)
		}
	})

	if visitedFirstChunk+visitedSecondChunk != 2 {
		t.Fatalf("expected both chunks to run to their own local break")
	}
}

func TestRunEmptyChunksIsNoop(t *testing.T) {
	defer leaktest.Check(t)()
	base := execctx.New()
	called := false
	Run(base, nil, 4, func(*execctx.Context, Chunk) { called = true })
	if called {
		t.Fatal("Run should not invoke work for an empty chunk list")
	}
}

func TestRunCapsWorkersAtChunkCount(t *testing.T) {
	defer leaktest.Check(t)()
	base := execctx.New()
	chunks := []Chunk{chunkOf(1)}
	var mu sync.Mutex
	var workerContexts []*execctx.Context
	Run(base, chunks, 16, func(worker *execctx.Context, c Chunk) {
		mu.Lock()
		workerContexts = append(workerContexts, worker)
		mu.Unlock()
		c(func(domain.Tuple) bool { return true })
	})
	if len(workerContexts) != 1 {
		t.Fatalf("expected exactly one worker invocation for one chunk, got %d", len(workerContexts))
	}
}
