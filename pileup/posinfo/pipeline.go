// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package posinfo

import (
	"bufio"
	"context"
	"io"
	"sync"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/syncqueue"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/posinfo/locus"
)

// DefaultProgressInterval is the number of loci between progress log lines.
const DefaultProgressInterval = 1000

// Scatter splits the indices [0, n) round-robin into min(w, n) shards: shard k
// holds k, k+W, k+2W, ...  Interleaving keeps shards balanced when the loci
// are clustered by chromosome.
func Scatter(n, w int) [][]int {
	if w > n {
		w = n
	}
	if w <= 0 {
		return nil
	}
	shards := make([][]int, w)
	for i := 0; i < n; i++ {
		shards[i%w] = append(shards[i%w], i)
	}
	return shards
}

// Progress counts processed loci. Thread safe.
type Progress struct {
	// Interval is the number of loci between log lines. If <= 0,
	// DefaultProgressInterval is used.
	Interval int

	mu sync.Mutex
	n  int
}

// Add records that l has been processed.
func (p *Progress) Add(l locus.Locus) {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultProgressInterval
	}
	p.mu.Lock()
	p.n++
	n := p.n
	p.mu.Unlock()
	if n%interval == 0 {
		log.Printf("posinfo: %d loci processed, at %v", n, l)
	}
}

// N returns the number of loci processed so far.
func (p *Progress) N() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.n
}

// LocusHandler turns loci into output lines. Each worker owns one handler.
type LocusHandler interface {
	// Handle returns the output line for l, newline included. An error causes
	// the locus to be logged and skipped.
	Handle(l locus.Locus) (string, error)
	// Close releases the handler's resources.
	Close() error
}

// Pipeline runs a LocusHandler over a list of loci with a fixed pool of
// workers, and a single goroutine writing the results.
type Pipeline struct {
	// Parallelism is the number of workers. Values <= 0 mean 1.
	Parallelism int
	// Ordered causes lines to be written in locus order. Otherwise they are
	// written in the order they are produced.
	Ordered bool
	// Header, if nonempty, is written before any locus line.
	Header string
	// Progress, if non-nil, is updated after every locus.
	Progress *Progress
}

// lineQueue hands lines from the workers to the writer.
type lineQueue interface {
	// put enqueues the line of the locus with the given index. line may be ""
	// for a skipped locus.
	put(index int, line string) error
	// next blocks until a line is available. ok is false once the queue is
	// closed and drained.
	next() (line string, ok bool, err error)
	// close is called after the last put. A non-nil err aborts the queue.
	close(err error) error
}

// fifoQueue passes lines on in arrival order. Closing the channel tells the
// writer to stop.
type fifoQueue chan string

func (q fifoQueue) put(_ int, line string) error {
	if line != "" {
		q <- line
	}
	return nil
}

func (q fifoQueue) next() (string, bool, error) {
	line, ok := <-q
	return line, ok, nil
}

func (q fifoQueue) close(error) error {
	close(q)
	return nil
}

// orderedQueue passes lines on in index order.
type orderedQueue struct {
	q *syncqueue.OrderedQueue
}

func (q orderedQueue) put(index int, line string) error {
	return q.q.Insert(index, line)
}

func (q orderedQueue) next() (string, bool, error) {
	v, ok, err := q.q.Next()
	if !ok || err != nil {
		return "", ok, err
	}
	return v.(string), true, nil
}

func (q orderedQueue) close(err error) error {
	return q.q.Close(err)
}

// writeLines drains q into w, flushing after every line.
func writeLines(q lineQueue, w io.Writer, e *errors.Once) {
	bw := bufio.NewWriter(w)
	for {
		line, ok, err := q.next()
		if err != nil {
			e.Set(err)
			return
		}
		if !ok {
			return
		}
		if line == "" || e.Err() != nil {
			continue
		}
		if _, err := bw.WriteString(line); err != nil {
			e.Set(err)
			continue
		}
		e.Set(bw.Flush())
	}
}

// Run processes loci and writes one line per locus to w. newHandler is
// called once per shard, from the shard's worker; failing to create a
// handler fails the run. Errors from individual loci are logged and the loci
// left out of the output.
func (p *Pipeline) Run(ctx context.Context, loci []locus.Locus, newHandler func(shard int) (LocusHandler, error), w io.Writer) error {
	parallelism := p.Parallelism
	if parallelism <= 0 {
		parallelism = 1
	}
	shards := Scatter(len(loci), parallelism)

	var q lineQueue
	if p.Ordered {
		// Index 0 is the header; locus i goes at i+1.
		q = orderedQueue{syncqueue.NewOrderedQueue(4 * DefaultProgressInterval)}
	} else {
		q = make(fifoQueue, 4*DefaultProgressInterval)
	}
	if err := q.put(0, p.Header); err != nil {
		return err
	}

	var (
		writeErr  errors.Once
		wg        sync.WaitGroup
		closeOnce sync.Once
		closeErr  error
	)
	closeQueue := func(err error) {
		closeOnce.Do(func() { closeErr = q.close(err) })
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		writeLines(q, w, &writeErr)
	}()

	err := traverse.Each(len(shards), func(shard int) (err error) {
		h, err := newHandler(shard)
		if err != nil {
			if p.Ordered {
				// Unblock workers waiting for this shard's loci.
				closeQueue(err)
			}
			return err
		}
		defer func() {
			if e := h.Close(); e != nil && err == nil {
				err = e
			}
		}()
		for _, i := range shards[shard] {
			l := loci[i]
			line, e := h.Handle(l)
			if e != nil {
				log.Error.Printf("posinfo: %v: skipping locus %d: %v", l, i, e)
				line = ""
			}
			if err := q.put(i+1, line); err != nil {
				return err
			}
			if p.Progress != nil {
				p.Progress.Add(l)
			}
		}
		return nil
	})
	closeQueue(err)
	wg.Wait()
	if closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}
	return writeErr.Err()
}
