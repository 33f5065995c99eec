package device

import (
	"sync"

	"github.com/google/uuid"

	"github.com/tangent-ml/tangent/internal/logger"
)

// Accelerator offloads dense kernels for work enqueued on a stream.
// Implementations live in internal/backend; when no accelerator is attached
// the portable kernels run in-process.
type Accelerator interface {
	// Gemm computes C = A @ B for row-major float32 views:
	// A is [m x k], B is [k x n], C is [m x n].
	Gemm(m, n, k int, a, b, c []float32) error
	// Name identifies the accelerator for logs.
	Name() string
	// Release frees accelerator resources.
	Release()
}

// Stream is an ordered asynchronous execution context.
//
// Enqueued tasks run in enqueue order on a single worker goroutine; Enqueue
// returns without waiting for execution. Buffer contents touched by enqueued
// work are defined only after Synchronize returns. Streams are independent of
// each other; cross-stream ordering is the caller's responsibility.
type Stream struct {
	id    string
	tasks chan func()
	done  chan struct{}

	mu     sync.Mutex
	err    error
	closed bool

	acc Accelerator
}

// NewStream creates a stream and starts its worker.
func NewStream() *Stream {
	s := &Stream{
		id:    uuid.NewString(),
		tasks: make(chan func(), 64),
		done:  make(chan struct{}),
	}
	go s.run()
	logger.Default().Debug("stream created", "stream", s.id)
	return s
}

func (s *Stream) run() {
	defer close(s.done)
	for fn := range s.tasks {
		fn()
	}
}

// ID returns the stream's identity, used in log and error context.
func (s *Stream) ID() string { return s.id }

// Enqueue submits fn for ordered asynchronous execution. The first error
// returned by a task is recorded and tasks enqueued after it are skipped
// until Synchronize reports and clears it.
func (s *Stream) Enqueue(fn func() error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		panic("device: enqueue on closed stream " + s.id)
	}
	s.mu.Unlock()

	s.tasks <- func() {
		s.mu.Lock()
		failed := s.err != nil
		s.mu.Unlock()
		if failed {
			return
		}
		if err := fn(); err != nil {
			s.mu.Lock()
			if s.err == nil {
				s.err = err
			}
			s.mu.Unlock()
		}
	}
}

// Synchronize blocks until all previously enqueued work has executed and
// returns the first recorded error, clearing it so the stream is usable again.
func (s *Stream) Synchronize() error {
	ch := make(chan struct{})
	s.tasks <- func() { close(ch) }
	<-ch

	s.mu.Lock()
	err := s.err
	s.err = nil
	s.mu.Unlock()
	return err
}

// SetAccelerator attaches an accelerator consulted by dense kernels.
// Passing nil restores the portable path.
func (s *Stream) SetAccelerator(a Accelerator) {
	s.mu.Lock()
	s.acc = a
	s.mu.Unlock()
	if a != nil {
		logger.Default().Debug("accelerator attached", "stream", s.id, "accelerator", a.Name())
	}
}

// Accelerator returns the attached accelerator, or nil.
func (s *Stream) Accelerator() Accelerator {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acc
}

// Close shuts the worker down after draining the queue. The stream must not
// be used afterwards.
func (s *Stream) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	close(s.tasks)
	<-s.done
}
