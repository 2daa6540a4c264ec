package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// OnDownload задает обработчик загрузок. Обработчик вызывается в отдельной горутине
// на каждую загрузку, начатую страницей.
func (b *PlaywrightBrowser) OnDownload(handler DownloadHandler) {
	if handler == nil {
		b.handler.Store(nil)
		return
	}
	b.handler.Store(&handler)
}

// dispatchDownload вызывается из цикла событий playwright и не должна ждать b.mu.
func (b *PlaywrightBrowser) dispatchDownload(d Download) {
	handler := saveSuggested
	if h := b.handler.Load(); h != nil {
		handler = *h
	}

	gen, counted := b.downloads.begin(d.URL())
	// Сохранение блокируется до конца загрузки, а колбэк playwright блокировать нельзя
	go func() {
		err := handler(d)
		if counted {
			b.downloads.finish(gen, err)
		}
	}()
}

// WaitDownloadsComplete ждет начала хотя бы одной загрузки текущего перехода
// (DownloadStartTimeout), затем завершения всех начатых (DownloadTimeout).
// Возвращает ошибки загрузок этого перехода.
func (b *PlaywrightBrowser) WaitDownloadsComplete(ctx context.Context) error {
	return b.downloads.wait(ctx, b.cfg.DownloadStartTimeout, b.cfg.DownloadTimeout)
}

func saveSuggested(d Download) error {
	return d.SaveAs(d.SuggestedFilename())
}

// downloadTracker считает загрузки текущей порции - одного перехода NavigateToDownload.
// События приходят из горутин playwright, ожидание - из очереди загрузок.
// Завершения загрузок прошлых порций и загрузки, начатые по ссылкам прошлых
// порций, в текущую порцию не засчитываются.
type downloadTracker struct {
	mu      sync.Mutex
	gen     uint64
	url     string
	stale   map[string]bool
	started int
	pending int
	errs    []error
	changed chan struct{}
}

func newDownloadTracker() *downloadTracker {
	return &downloadTracker{
		stale:   make(map[string]bool),
		changed: make(chan struct{}),
	}
}

// startBatch открывает новую порцию для перехода по url.
func (t *downloadTracker) startBatch(url string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.url != "" {
		t.stale[t.url] = true
	}
	t.gen++
	t.url = url
	t.started = 0
	t.pending = 0
	t.errs = nil
	t.notifyLocked()
}

// begin регистрирует начавшуюся загрузку. counted == false означает,
// что загрузка запоздала из прошлой порции.
func (t *downloadTracker) begin(url string) (gen uint64, counted bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if url != t.url && t.stale[url] {
		return t.gen, false
	}
	t.started++
	t.pending++
	t.notifyLocked()
	return t.gen, true
}

func (t *downloadTracker) finish(gen uint64, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if gen != t.gen {
		return
	}
	if t.pending > 0 {
		t.pending--
	}
	if err != nil {
		t.errs = append(t.errs, err)
	}
	t.notifyLocked()
}

func (t *downloadTracker) notifyLocked() {
	close(t.changed)
	t.changed = make(chan struct{})
}

func (t *downloadTracker) state() (started, pending int, changed <-chan struct{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.started, t.pending, t.changed
}

func (t *downloadTracker) batchErr() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return errors.Join(t.errs...)
}

func (t *downloadTracker) wait(ctx context.Context, startTimeout, doneTimeout time.Duration) error {
	if err := t.waitUntil(ctx, startTimeout, func(started, _ int) bool { return started > 0 }); err != nil {
		if errors.Is(err, ErrTimeout) {
			return fmt.Errorf("%w за %v", ErrDownloadNotStarted, startTimeout)
		}
		return err
	}

	if err := t.waitUntil(ctx, doneTimeout, func(_, pending int) bool { return pending == 0 }); err != nil {
		if errors.Is(err, ErrTimeout) {
			return fmt.Errorf("%w: загрузка не завершилась за %v", ErrTimeout, doneTimeout)
		}
		return err
	}

	return t.batchErr()
}

func (t *downloadTracker) waitUntil(ctx context.Context, timeout time.Duration, done func(started, pending int) bool) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		started, pending, changed := t.state()
		if done(started, pending) {
			return nil
		}

		select {
		case <-changed:
		case <-timer.C:
			return ErrTimeout
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
