// Package sandbox hosts one content-extraction runtime behind a single owning
// goroutine. Every runtime interaction (loading the algorithm, executing a
// call) happens on that goroutine; callers talk to it through channels.
package sandbox

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/readerview/pkg/utils"
)

// Call is one extraction request executed inside the sandbox
type Call struct {
	HTML string
	URL  *url.URL
}

// Result is the raw mapping produced by the algorithm. A nil Result is the
// algorithm's explicit "nothing found".
type Result map[string]interface{}

// Runtime is the algorithm host owned by a Sandbox. Implementations are only
// ever used from the sandbox goroutine. Load returning nil is the signal that
// the algorithm finished loading.
type Runtime interface {
	Load(ctx context.Context) error
	Run(ctx context.Context, call Call) (Result, error)
}

type request struct {
	ctx   context.Context
	load  bool
	call  Call
	reply chan reply
}

type reply struct {
	res Result
	err error
}

// Sandbox owns a Runtime. It terminates when the runtime panics or Close is
// called; Done is closed at that point and every call still awaiting the
// sandbox fails with utils.ErrSandboxTerminated.
type Sandbox struct {
	rt       Runtime
	requests chan request
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	doneOnce sync.Once

	mu  sync.Mutex
	err error

	log *logrus.Entry
}

// Start launches the owning goroutine for rt. The runtime is not loaded until Load is called.
func Start(rt Runtime, log *logrus.Entry) *Sandbox {
	s := &Sandbox{
		rt:       rt,
		requests: make(chan request),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		log:      log,
	}
	go s.loop()
	return s
}

// Load loads the algorithm and blocks until the runtime signals it is ready.
func (s *Sandbox) Load(ctx context.Context) error {
	_, err := s.submit(ctx, request{load: true})
	return err
}

// Run executes one call and waits for its result
func (s *Sandbox) Run(ctx context.Context, call Call) (Result, error) {
	return s.submit(ctx, request{call: call})
}

// Done is closed once the sandbox has terminated
func (s *Sandbox) Done() <-chan struct{} { return s.done }

// Err reports why the sandbox terminated, or nil while it is alive
func (s *Sandbox) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close terminates the sandbox. Calls waiting on it fail.
func (s *Sandbox) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
}

func (s *Sandbox) submit(ctx context.Context, req request) (Result, error) {
	req.ctx = ctx
	req.reply = make(chan reply, 1)

	select {
	case s.requests <- req:
	case <-s.done:
		return nil, s.Err()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case r := <-req.reply:
		return r.res, r.err
	case <-s.done:
		// The loop replies to the call it crashed on before closing done.
		select {
		case r := <-req.reply:
			return r.res, r.err
		default:
		}
		return nil, s.Err()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Sandbox) loop() {
	for {
		select {
		case <-s.stop:
			s.terminate(fmt.Errorf("%w: closed", utils.ErrSandboxTerminated))
			return
		case req := <-s.requests:
			if !s.serve(req) {
				return
			}
		}
	}
}

// serve handles one request and reports whether the sandbox survived it.
// On a crash Done is closed before the crashed call is answered.
func (s *Sandbox) serve(req request) (alive bool) {
	defer func() {
		if p := recover(); p != nil {
			err := fmt.Errorf("%w: runtime crashed: %v", utils.ErrSandboxTerminated, p)
			s.log.WithError(err).Error("Sandbox runtime terminated unexpectedly")
			s.terminate(err)
			req.reply <- reply{err: err}
			alive = false
		}
	}()

	if err := req.ctx.Err(); err != nil {
		req.reply <- reply{err: err}
		return true
	}
	if req.load {
		req.reply <- reply{err: s.rt.Load(req.ctx)}
		return true
	}
	res, err := s.rt.Run(req.ctx, req.call)
	req.reply <- reply{res: res, err: err}
	return true
}

func (s *Sandbox) terminate(err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
	if c, ok := s.rt.(interface{ Close() error }); ok {
		if cerr := c.Close(); cerr != nil {
			s.log.WithError(cerr).Warn("Closing sandbox runtime failed")
		}
	}
	s.doneOnce.Do(func() { close(s.done) })
}

// Alive reports whether the sandbox still accepts calls
func (s *Sandbox) Alive() bool {
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}
