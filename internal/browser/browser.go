package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
)

func New(cfg Config) *PlaywrightBrowser {
	// Установка дефолтных таймаутов
	if cfg.NavigateTimeout == 0 {
		cfg.NavigateTimeout = 50 * time.Second
	}
	if cfg.WaitTimeout == 0 {
		cfg.WaitTimeout = cfg.NavigateTimeout
	}
	if cfg.DownloadStartTimeout == 0 {
		cfg.DownloadStartTimeout = cfg.NavigateTimeout
	}
	if cfg.DownloadTimeout == 0 {
		cfg.DownloadTimeout = cfg.NavigateTimeout
	}
	if cfg.Viewport.Width == 0 || cfg.Viewport.Height == 0 {
		cfg.Viewport = Viewport{Width: 1440, Height: 990}
	}
	if cfg.Engine == "" {
		cfg.Engine = "firefox"
	}

	return &PlaywrightBrowser{
		cfg:       cfg,
		downloads: newDownloadTracker(),
	}
}

// getPage безопасно возвращает текущую страницу с read lock
func (b *PlaywrightBrowser) getPage() playwright.Page {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.page
}

func (b *PlaywrightBrowser) browserType(pw *playwright.Playwright) (playwright.BrowserType, error) {
	switch strings.ToLower(b.cfg.Engine) {
	case "firefox":
		return pw.Firefox, nil
	case "chromium", "chrome":
		return pw.Chromium, nil
	case "webkit":
		return pw.WebKit, nil
	default:
		return nil, fmt.Errorf("неизвестный движок браузера %q", b.cfg.Engine)
	}
}

func (b *PlaywrightBrowser) launchOptions() playwright.BrowserTypeLaunchOptions {
	opts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(b.cfg.Headless),
		Timeout:  playwright.Float(float64(b.cfg.NavigateTimeout.Milliseconds())),
	}

	if strings.EqualFold(b.cfg.Engine, "chromium") || strings.EqualFold(b.cfg.Engine, "chrome") {
		opts.Args = []string{"--no-sandbox"}
	}

	if b.cfg.Display != "" {
		opts.Env = map[string]string{
			"DISPLAY": b.cfg.Display,
		}
	}

	return opts
}

// Launch запускает браузер с новым контекстом без сохранения данных между запусками.
func (b *PlaywrightBrowser) Launch(ctx context.Context) error {
	if b.cfg.BrowsersPath != "" {
		if err := os.Setenv("PLAYWRIGHT_BROWSERS_PATH", b.cfg.BrowsersPath); err != nil {
			return err
		}
	}

	pw, err := playwright.Run()
	if err != nil {
		return fmt.Errorf("не удалось запустить playwright: %w", err)
	}

	b.mu.Lock()
	b.pw = pw
	b.mu.Unlock()

	if err := b.launch(pw); err != nil {
		// Частично поднятые ресурсы не должны пережить неудачный запуск
		_ = b.Close()
		return err
	}
	return nil
}

func (b *PlaywrightBrowser) launch(pw *playwright.Playwright) error {
	bt, err := b.browserType(pw)
	if err != nil {
		return err
	}

	browser, err := bt.Launch(b.launchOptions())
	if err != nil {
		return fmt.Errorf("не удалось запустить браузер: %w", err)
	}

	b.mu.Lock()
	b.browser = browser
	b.mu.Unlock()

	browserContext, err := browser.NewContext(playwright.BrowserNewContextOptions{
		AcceptDownloads: playwright.Bool(true),
		UserAgent:       playwright.String(b.cfg.UserAgent),
		Viewport: &playwright.Size{
			Width:  b.cfg.Viewport.Width,
			Height: b.cfg.Viewport.Height,
		},
	})
	if err != nil {
		return fmt.Errorf("не удалось создать контекст браузера: %w", err)
	}

	b.mu.Lock()
	b.context = browserContext
	b.mu.Unlock()

	page, err := browserContext.NewPage()
	if err != nil {
		return fmt.Errorf("не удалось открыть страницу: %w", err)
	}

	page.SetDefaultTimeout(float64(b.cfg.WaitTimeout.Milliseconds()))
	page.SetDefaultNavigationTimeout(float64(b.cfg.NavigateTimeout.Milliseconds()))
	page.OnDownload(func(d playwright.Download) {
		b.dispatchDownload(d)
	})

	b.mu.Lock()
	b.page = page
	b.mu.Unlock()
	return nil
}

func (b *PlaywrightBrowser) Navigate(ctx context.Context, url string) error {
	return b.goTo(ctx, url)
}

// NavigateToDownload переходит по ссылке, ответ на которую - файл.
// Браузер прерывает такую навигацию, это не ошибка.
func (b *PlaywrightBrowser) NavigateToDownload(ctx context.Context, url string) error {
	if b.getPage() == nil {
		return ErrNotLaunched
	}

	b.downloads.startBatch(url)
	err := b.goTo(ctx, url)
	if err != nil && isDownloadAbort(err) {
		return nil
	}
	return err
}

func (b *PlaywrightBrowser) goTo(ctx context.Context, url string) error {
	page := b.getPage()
	if page == nil {
		return ErrNotLaunched
	}

	// Создаем context с timeout для navigate операции
	navCtx, cancel := context.WithTimeout(ctx, b.cfg.NavigateTimeout)
	defer cancel()

	// Channel для получения результата
	errChan := make(chan error, 1)
	go func() {
		_, err := page.Goto(url, playwright.PageGotoOptions{
			WaitUntil: playwright.WaitUntilStateLoad,
			Timeout:   playwright.Float(float64(b.cfg.NavigateTimeout.Milliseconds())),
		})
		errChan <- err
	}()

	// Ждем результат или timeout
	select {
	case <-navCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: navigate после %v", ErrTimeout, b.cfg.NavigateTimeout)
	case err := <-errChan:
		if err != nil {
			return wrapTimeout(err)
		}
	}

	return nil
}

func (b *PlaywrightBrowser) Click(ctx context.Context, selector string) error {
	page := b.getPage()
	if page == nil {
		return ErrNotLaunched
	}

	if err := b.WaitForSelector(ctx, selector); err != nil {
		return fmt.Errorf("элемент не найден: %w", err)
	}

	if err := page.Click(selector, playwright.PageClickOptions{
		Timeout: playwright.Float(float64(b.cfg.WaitTimeout.Milliseconds())),
	}); err != nil {
		return wrapTimeout(err)
	}
	return nil
}

// Evaluate выполняет функцию в контексте страницы и возвращает результат,
// разобранный из JSON (map[string]any, []any, string, float64, bool).
func (b *PlaywrightBrowser) Evaluate(ctx context.Context, expression string, args ...any) (any, error) {
	page := b.getPage()
	if page == nil {
		return nil, ErrNotLaunched
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return page.Evaluate(expression, args...)
}

func (b *PlaywrightBrowser) Content(ctx context.Context) (string, error) {
	page := b.getPage()
	if page == nil {
		return "", ErrNotLaunched
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	return page.Content()
}

// Close закрывает контекст и браузер, затем останавливает драйвер playwright.
// Остановка драйвера завершает процесс браузера, поэтому она выполняется
// даже если предыдущие шаги вернули ошибку. Блокировка снимается до вызовов playwright:
// события драйвера приходят в том же цикле, что и ответы на эти вызовы.
func (b *PlaywrightBrowser) Close() error {
	b.mu.Lock()
	browserContext, browser, pw := b.context, b.browser, b.pw
	b.context, b.browser, b.pw, b.page = nil, nil, nil, nil
	b.mu.Unlock()

	var errs []error
	if browserContext != nil {
		if err := browserContext.Close(); err != nil {
			errs = append(errs, fmt.Errorf("закрытие контекста: %w", err))
		}
	}
	if browser != nil {
		if err := browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("закрытие браузера: %w", err))
		}
	}
	if pw != nil {
		if err := pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("остановка драйвера: %w", err))
		}
	}

	return errors.Join(errs...)
}
