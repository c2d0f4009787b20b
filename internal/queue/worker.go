package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Handler runs one task. ctx is cancelled with cause ErrSoftTimeLimit once the soft
// limit elapses. The returned value is stored as the task result.
type Handler func(ctx context.Context, msg Message) (any, error)

const (
	defaultPollTimeout = 5 * time.Second
	errorBackoff       = time.Second
)

// Worker consumes one queue and dispatches messages to registered handlers.
type Worker struct {
	broker      Broker
	cfg         Config
	log         *slog.Logger
	pollTimeout time.Duration

	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewWorker returns a Worker for cfg.Name.
func NewWorker(b Broker, cfg Config, log *slog.Logger) *Worker {
	return &Worker{
		broker:      b,
		cfg:         cfg,
		log:         log.With(slog.String("component", "worker"), slog.String("queue", cfg.Name)),
		pollTimeout: defaultPollTimeout,
		handlers:    make(map[string]Handler),
	}
}

// Register binds a handler to a task name, replacing any previous one.
func (w *Worker) Register(name string, h Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[name] = h
}

// Tasks lists the registered task names, sorted.
func (w *Worker) Tasks() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	names := make([]string, 0, len(w.handlers))
	for n := range w.handlers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Run consumes messages until ctx is done. Broker errors are logged and retried.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("worker started", slog.Any("tasks", w.Tasks()))
	for {
		if ctx.Err() != nil {
			w.log.Info("worker stopped")
			return nil
		}

		payload, err := w.broker.Pop(ctx, w.cfg.Name, w.pollTimeout)
		switch {
		case errors.Is(err, ErrNoMessage):
			continue
		case err != nil:
			if ctx.Err() != nil {
				continue
			}
			w.log.Error("failed to receive message", slog.String("error", err.Error()))
			select {
			case <-ctx.Done():
			case <-time.After(errorBackoff):
			}
			continue
		}

		w.Process(ctx, payload)
	}
}

// Process handles one raw message and returns the result that was stored.
func (w *Worker) Process(ctx context.Context, payload []byte) *Result {
	// Results are written even when the worker is shutting down.
	store := context.WithoutCancel(ctx)

	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		w.log.Error("rejected malformed message", slog.String("error", err.Error()))
		return &Result{Status: StatusRejected, Error: err.Error()}
	}
	log := w.log.With(slog.String("task_id", msg.ID), slog.String("task", msg.Task))

	if msg.ContentType != ContentTypeJSON {
		err := fmt.Errorf("%w: %q", ErrUnsupportedContentType, msg.ContentType)
		log.Warn("rejected message", slog.String("error", err.Error()))
		return w.finish(store, log, msg, nil, err, StatusRejected)
	}

	w.mu.RLock()
	h, ok := w.handlers[msg.Task]
	w.mu.RUnlock()
	if !ok {
		err := fmt.Errorf("%w: %s", ErrUnknownTask, msg.Task)
		log.Warn("rejected message", slog.String("error", err.Error()))
		return w.finish(store, log, msg, nil, err, StatusRejected)
	}

	if w.cfg.TrackStarted {
		w.save(store, log, &Result{ID: msg.ID, Task: msg.Task, Status: StatusStarted})
	}

	start := time.Now()
	value, err := w.execute(ctx, h, msg)
	log.Info("task finished",
		slog.Duration("duration", time.Since(start)),
		slog.Bool("ok", err == nil))

	if err != nil {
		return w.finish(store, log, msg, nil, err, StatusFailure)
	}
	return w.finish(store, log, msg, value, nil, StatusSuccess)
}

type outcome struct {
	value any
	err   error
}

// execute runs h under the soft and hard time limits. A task still running at the
// hard limit is abandoned.
func (w *Worker) execute(ctx context.Context, h Handler, msg Message) (any, error) {
	tctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	if w.cfg.SoftTimeLimit > 0 {
		var stop context.CancelFunc
		tctx, stop = context.WithTimeoutCause(tctx, w.cfg.SoftTimeLimit, ErrSoftTimeLimit)
		defer stop()
	}

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- outcome{err: fmt.Errorf("task panicked: %v", p)}
			}
		}()
		v, err := h(tctx, msg)
		done <- outcome{value: v, err: err}
	}()

	var hard <-chan time.Time
	if w.cfg.HardTimeLimit > 0 {
		t := time.NewTimer(w.cfg.HardTimeLimit)
		defer t.Stop()
		hard = t.C
	}

	select {
	case o := <-done:
		if o.err != nil && errors.Is(context.Cause(tctx), ErrSoftTimeLimit) && errors.Is(o.err, context.DeadlineExceeded) {
			o.err = ErrSoftTimeLimit
		}
		return o.value, o.err
	case <-hard:
		cancel(ErrHardTimeLimit)
		return nil, ErrHardTimeLimit
	}
}

func (w *Worker) finish(ctx context.Context, log *slog.Logger, msg Message, value any, taskErr error, status string) *Result {
	now := time.Now().UTC()
	r := &Result{ID: msg.ID, Task: msg.Task, Status: status, DateDone: &now}
	if taskErr != nil {
		r.Error = taskErr.Error()
	}
	if value != nil {
		raw, err := json.Marshal(value)
		if err != nil {
			r.Status = StatusFailure
			r.Error = fmt.Sprintf("encode result: %v", err)
		} else {
			r.Result = raw
		}
	}
	w.save(ctx, log, r)
	return r
}

func (w *Worker) save(ctx context.Context, log *slog.Logger, r *Result) {
	if r.ID == "" {
		return
	}
	payload, err := json.Marshal(r)
	if err == nil {
		err = w.broker.SetResult(ctx, r.ID, payload, w.cfg.ResultTTL)
	}
	if err != nil {
		log.Error("failed to store result", slog.String("status", r.Status), slog.String("error", err.Error()))
	}
}
