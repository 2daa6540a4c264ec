// Package download сохраняет выбранные документы: очередь по одному переходу
// на ссылку и перехватчик, который решает, под каким именем сохранить файл.
package download

import (
	"context"
	"fmt"
	"time"

	"payFetcher/internal/selection"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Done - результат обработки очереди, не зависящий от исходов отдельных задач.
const Done = "done"

type Status int

const (
	StatusPending Status = iota
	StatusInFlight
	StatusComplete
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusInFlight:
		return "in-flight"
	case StatusComplete:
		return "complete"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

type Task struct {
	Reference selection.Reference
	Status    Status
	Err       error
}

// TaskError - ошибка одной задачи очереди. Дальше очереди не распространяется.
type TaskError struct {
	Index int
	Step  string
	Err   error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("задача %d (%s): %v", e.Index+1, e.Step, e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}

type Result struct {
	Outcome string
	Tasks   []Task
}

func (r Result) Completed() int {
	return r.count(StatusComplete)
}

func (r Result) Failed() int {
	return r.count(StatusFailed)
}

func (r Result) count(s Status) int {
	n := 0
	for _, t := range r.Tasks {
		if t.Status == s {
			n++
		}
	}
	return n
}

// Navigator - часть браузера, которой пользуется очередь.
type Navigator interface {
	NavigateToDownload(ctx context.Context, url string) error
	WaitDownloadsComplete(ctx context.Context) error
}

type Queue struct {
	nav      Navigator
	log      *zap.Logger
	limiter  *rate.Limiter
	sanitize func(string) string
}

type QueueOption func(*Queue)

// WithPace задает минимальный интервал между началом соседних задач.
func WithPace(d time.Duration) QueueOption {
	return func(q *Queue) {
		if d > 0 {
			q.limiter = rate.NewLimiter(rate.Every(d), 1)
		}
	}
}

func WithReferenceSanitizer(fn func(string) string) QueueOption {
	return func(q *Queue) {
		q.sanitize = fn
	}
}

func NewQueue(nav Navigator, log *zap.Logger, opts ...QueueOption) *Queue {
	if log == nil {
		log = zap.NewNop()
	}

	q := &Queue{
		nav:      nav,
		log:      log,
		limiter:  rate.NewLimiter(rate.Inf, 1),
		sanitize: func(s string) string { return s },
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Process обрабатывает ссылки строго по очереди, в заданном порядке.
// Ошибки задач записываются в результат, и очередь идет дальше.
// Всегда возвращает Result с Outcome == Done после len(refs) попыток.
func (q *Queue) Process(ctx context.Context, refs []selection.Reference) Result {
	tasks := make([]Task, len(refs))
	for i, ref := range refs {
		tasks[i] = Task{Reference: ref, Status: StatusPending}
	}

	for i := 0; i < len(tasks); i++ {
		task := &tasks[i]
		log := q.log.With(
			zap.Int("task", i+1),
			zap.Int("total", len(tasks)),
			zap.String("reference", q.sanitize(task.Reference.String())),
		)

		task.Status = StatusInFlight
		log.Info("Загрузка документа")

		if err := q.attempt(ctx, i, task.Reference); err != nil {
			task.Status = StatusFailed
			task.Err = err
			log.Error("Документ не загружен", zap.Error(err))
			continue
		}

		task.Status = StatusComplete
		log.Info("Документ загружен")
	}

	return Result{Outcome: Done, Tasks: tasks}
}

func (q *Queue) attempt(ctx context.Context, i int, ref selection.Reference) (err error) {
	step := "pace"
	defer func() {
		if r := recover(); r != nil {
			err = &TaskError{Index: i, Step: step, Err: fmt.Errorf("паника: %v", r)}
		}
	}()

	if waitErr := q.limiter.Wait(ctx); waitErr != nil {
		return &TaskError{Index: i, Step: step, Err: waitErr}
	}

	step = "navigate"
	if navErr := q.nav.NavigateToDownload(ctx, ref.String()); navErr != nil {
		return &TaskError{Index: i, Step: step, Err: navErr}
	}

	step = "download"
	if dlErr := q.nav.WaitDownloadsComplete(ctx); dlErr != nil {
		return &TaskError{Index: i, Step: step, Err: dlErr}
	}
	return nil
}
