package chat

import (
	"ai-chat/internal/service/llm"
	"context"
	"strings"
	"sync"
)

// LiveText is the incrementally-updated text of one assistant turn.
// Deltas are applied in arrival order; once done the value never changes.
type LiveText struct {
	id     string
	cancel context.CancelFunc

	mu      sync.Mutex
	deltas  []string
	text    strings.Builder
	changed chan struct{} // closed and replaced on every update
	done    chan struct{}
	err     error
	usage   *llm.Usage
}

func newLiveText(id string) *LiveText {
	return &LiveText{
		id:      id,
		cancel:  func() {},
		changed: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// ID returns the assistant message id minted for this turn
func (l *LiveText) ID() string {
	return l.id
}

// Value returns the text accumulated so far, or the error annotation after a failure
func (l *LiveText) Value() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return Annotate(l.err)
	}
	return l.text.String()
}

// Done is closed when generation finished or failed
func (l *LiveText) Done() <-chan struct{} {
	return l.done
}

// Err returns the generation failure, nil while streaming or on success
func (l *LiveText) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// Usage returns token usage once done
func (l *LiveText) Usage() *llm.Usage {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.usage
}

// Final blocks until the turn is done and returns the finished text
func (l *LiveText) Final() (string, error) {
	<-l.done
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return "", l.err
	}
	return l.text.String(), nil
}

// Cancel aborts an in-flight generation. It is a no-op once done.
func (l *LiveText) Cancel() {
	l.cancel()
}

// Subscribe returns a channel receiving the full accumulated text after each
// delta, in order, starting from the first delta. After a failure the last
// value is the error annotation. The channel closes when the turn is done or
// ctx is cancelled.
func (l *LiveText) Subscribe(ctx context.Context) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		var b strings.Builder
		next := 0
		for {
			l.mu.Lock()
			pending := l.deltas[next:]
			changed := l.changed
			err := l.err
			finished := isClosed(l.done)
			l.mu.Unlock()

			for _, d := range pending {
				b.WriteString(d)
				next++
				select {
				case out <- b.String():
				case <-ctx.Done():
					return
				}
			}
			if finished {
				if err != nil {
					select {
					case out <- Annotate(err):
					case <-ctx.Done():
					}
				}
				return
			}

			select {
			case <-changed:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func (l *LiveText) append(delta string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.deltas = append(l.deltas, delta)
	l.text.WriteString(delta)
	close(l.changed)
	l.changed = make(chan struct{})
}

func (l *LiveText) finish(err error, usage *llm.Usage) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.err = err
	l.usage = usage
	close(l.done)
	close(l.changed)
	l.changed = make(chan struct{})
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// Annotate renders an error as a system-level transcript message
func Annotate(err error) string {
	return "Error: " + err.Error()
}
