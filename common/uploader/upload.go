package uploader

import (
	"context"
	"io"
	"sync"
)

// Upload is one in-flight transfer started by Client.Start
type Upload struct {
	mu          sync.Mutex
	state       State
	transferred int64
	total       int64
	resume      chan struct{}
	canceled    bool

	observer   Observer
	pending    []ProgressEvent
	notify     chan struct{}
	dispatched chan struct{}

	cancel context.CancelFunc
	done   chan struct{}
	result *UploadResult
	err    error
}

func newUpload(cancel context.CancelFunc, observer Observer) *Upload {
	u := &Upload{
		state:      StateIdle,
		cancel:     cancel,
		observer:   observer,
		notify:     make(chan struct{}, 1),
		dispatched: make(chan struct{}),
		done:       make(chan struct{}),
	}
	if observer != nil {
		go u.dispatch()
	} else {
		close(u.dispatched)
	}
	return u
}

// State returns the current lifecycle state
func (u *Upload) State() State {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.state
}

// Progress returns bytes sent so far and the body size
func (u *Upload) Progress() (transferred, total int64) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.transferred, u.total
}

// Pause blocks the request body until Resume. It has no effect unless the
// upload is running.
func (u *Upload) Pause() {
	u.transition(func() bool {
		if u.state != StateRunning || u.canceled {
			return false
		}
		u.state = StatePaused
		u.resume = make(chan struct{})
		return true
	})
}

// Resume continues a paused upload
func (u *Upload) Resume() {
	u.transition(func() bool {
		if u.state != StatePaused || u.canceled {
			return false
		}
		u.state = StateRunning
		close(u.resume)
		u.resume = nil
		return true
	})
}

// Cancel aborts the transfer. Wait then returns an error wrapping
// context.Canceled. Canceling a finished upload does nothing. No event other
// than the terminal one is reported after Cancel returns.
func (u *Upload) Cancel() {
	u.mu.Lock()
	if !u.state.Terminal() {
		u.canceled = true
	}
	u.mu.Unlock()
	u.cancel()
}

// Done is closed once the upload has finished and every event has been
// delivered
func (u *Upload) Done() <-chan struct{} {
	return u.done
}

// Wait blocks until the upload finishes. It must not be called from an
// Observer.
func (u *Upload) Wait() (*UploadResult, error) {
	<-u.done
	return u.result, u.err
}

func (u *Upload) begin() {
	u.transition(func() bool {
		if u.state != StateIdle {
			return false
		}
		u.state = StateRunning
		return true
	})
}

// advance records n more bytes sent and reports them while running
func (u *Upload) advance(n int64) {
	u.transition(func() bool {
		u.transferred += n
		return u.state == StateRunning && !u.canceled
	})
}

func (u *Upload) finish(state State, result *UploadResult, err error) {
	finished := u.transition(func() bool {
		if u.state.Terminal() {
			return false
		}
		if u.resume != nil {
			close(u.resume)
			u.resume = nil
		}
		u.state = state
		if state == StateSuccess {
			u.transferred = u.total
		}
		return true
	})
	if !finished {
		return
	}
	u.result = result
	u.err = err
	<-u.dispatched
	close(u.done)
}

// transition applies change under the lock and queues a snapshot for the
// observer when it reports a change.
func (u *Upload) transition(change func() bool) bool {
	u.mu.Lock()
	defer u.mu.Unlock()

	changed := change()
	if changed && u.observer != nil {
		u.pending = append(u.pending, ProgressEvent{
			State:            u.state,
			BytesTransferred: u.transferred,
			TotalBytes:       u.total,
		})
		select {
		case u.notify <- struct{}{}:
		default:
		}
	}
	return changed
}

// dispatch delivers queued events in order until the terminal one
func (u *Upload) dispatch() {
	defer close(u.dispatched)
	for range u.notify {
		u.mu.Lock()
		batch := u.pending
		u.pending = nil
		u.mu.Unlock()

		for _, ev := range batch {
			u.observer(ev)
			if ev.State.Terminal() {
				return
			}
		}
	}
}

// waitIfPaused blocks while the upload is paused
func (u *Upload) waitIfPaused(ctx context.Context) error {
	u.mu.Lock()
	ch := u.resume
	u.mu.Unlock()
	if ch == nil {
		return nil
	}
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// progressReader reports body reads to its Upload and honours pauses
type progressReader struct {
	ctx    context.Context
	reader io.Reader
	upload *Upload
}

func (r *progressReader) Read(p []byte) (int, error) {
	if err := r.upload.waitIfPaused(r.ctx); err != nil {
		return 0, err
	}
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	n, err := r.reader.Read(p)
	if n > 0 {
		r.upload.advance(int64(n))
	}
	return n, err
}
