package bloombuild

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/fasguard/fasguard-core/internal/bloomfilter"
	"github.com/fasguard/fasguard-core/internal/ngram"
	"github.com/fasguard/fasguard-core/internal/payload"
)

// queueCapacity bounds both pipeline channels.
const queueCapacity = 65534

// maxNgramLen is the longest n-gram the producer will ever push onto Q1;
// the hasher treats a longer n-gram reaching it as a caller bug.
const maxNgramLen = 16

// blockSize is the number of bit offsets a hasher batches onto Q2 before
// flushing. It is a transport optimization, not semantically observable.
const blockSize = 24

// hasherCacheSize bounds each hasher's per-thread de-duplication cache.
const hasherCacheSize = 200000

type ngramItem struct {
	data []byte
}

// BuildThreaded runs the three-stage producer/hasher/writer pipeline:
// the producer reads source and enumerates n-grams onto Q1; numHashers
// goroutines each deduplicate through a private LRU cache and compute bit
// offsets onto Q2; one writer goroutine ORs those offsets into filter.
// Termination is by channel close: Q1 closes once the producer is done,
// Q2 closes once every hasher has drained Q1, and BuildThreaded returns
// only once the writer has drained Q2 completely, so the returned
// filter's state is deterministic and independent of goroutine
// scheduling.
func BuildThreaded(filter *bloomfilter.Filter, source PacketSource, minN, maxN, numHashers int) error {
	if maxN > maxNgramLen {
		return fmt.Errorf("bloombuild: max ngram length %d exceeds threaded pipeline limit %d", maxN, maxNgramLen)
	}
	if numHashers < 1 {
		numHashers = 1
	}

	q1 := make(chan ngramItem, queueCapacity)
	q2 := make(chan []uint64, queueCapacity)

	var bytesProcessed uint64
	var bytesMu sync.Mutex

	producerErr := make(chan error, 1)
	go func() {
		defer close(q1)
		err := source.Each(func(frame []byte) error {
			_, data, perr := payload.Extract(frame)
			if perr != nil {
				return nil
			}
			bytesMu.Lock()
			bytesProcessed += uint64(len(data))
			bytesMu.Unlock()

			ngram.Each(data, minN, maxN, func(offset, depth int, s []byte) {
				cp := make([]byte, len(s))
				copy(cp, s)
				q1 <- ngramItem{data: cp}
			})
			return nil
		})
		producerErr <- err
	}()

	var hasherWG sync.WaitGroup
	hasherErrs := make(chan error, numHashers)
	for h := 0; h < numHashers; h++ {
		hasherWG.Add(1)
		go func() {
			defer hasherWG.Done()
			if err := runHasher(filter, q1, q2); err != nil {
				hasherErrs <- err
			}
		}()
	}

	go func() {
		hasherWG.Wait()
		close(q2)
	}()

	writerErr := make(chan error, 1)
	go func() {
		writerErr <- runWriter(filter, q2)
	}()

	if err := <-producerErr; err != nil {
		return fmt.Errorf("bloombuild: producer: %w", err)
	}
	if err := <-writerErr; err != nil {
		return fmt.Errorf("bloombuild: writer: %w", err)
	}
	select {
	case err := <-hasherErrs:
		if err != nil {
			return fmt.Errorf("bloombuild: hasher: %w", err)
		}
	default:
	}

	filter.AddBytesProcessed(bytesProcessed)
	return nil
}

func runHasher(filter *bloomfilter.Filter, q1 <-chan ngramItem, q2 chan<- []uint64) error {
	cache, err := lru.New[string, struct{}](hasherCacheSize)
	if err != nil {
		return fmt.Errorf("create hasher cache: %w", err)
	}

	block := make([]uint64, 0, blockSize)
	flush := func() {
		if len(block) == 0 {
			return
		}
		out := make([]uint64, len(block))
		copy(out, block)
		q2 <- out
		block = block[:0]
	}

	for item := range q1 {
		if len(item.data) > maxNgramLen {
			return fmt.Errorf("ngram of length %d exceeds %d-byte limit", len(item.data), maxNgramLen)
		}

		key := string(item.data)
		if _, hit := cache.Get(key); hit {
			continue
		}
		cache.Add(key, struct{}{})

		for _, idx := range filter.BitIndices(item.data) {
			block = append(block, idx)
			if len(block) == blockSize {
				flush()
			}
		}
	}
	flush()
	return nil
}

func runWriter(filter *bloomfilter.Filter, q2 <-chan []uint64) error {
	for block := range q2 {
		for _, idx := range block {
			if err := filter.SetBitIndex(idx); err != nil {
				return err
			}
		}
	}
	return nil
}
