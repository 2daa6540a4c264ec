package browser

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/playwright-community/playwright-go"
)

// Browser - один изолированный экземпляр браузера, которым владеет текущий запуск.
type Browser interface {
	Launch(ctx context.Context) error
	Navigate(ctx context.Context, url string) error
	NavigateToDownload(ctx context.Context, url string) error
	FillField(ctx context.Context, selector, value string) error
	Click(ctx context.Context, selector string) error
	WaitForSelector(ctx context.Context, selector string) error
	Wait(ctx context.Context, d time.Duration) error
	Evaluate(ctx context.Context, expression string, args ...any) (any, error)
	Content(ctx context.Context) (string, error)
	OnDownload(handler DownloadHandler)
	WaitDownloadsComplete(ctx context.Context) error
	Close() error
}

// Download - то, что обработчику нужно знать о начавшейся загрузке.
// playwright.Download удовлетворяет этому интерфейсу.
type Download interface {
	URL() string
	SuggestedFilename() string
	SaveAs(path string) error
	Failure() error
}

// DownloadHandler вызывается на каждую начавшуюся загрузку и возвращается,
// когда файл сохранен. Ошибка считается ошибкой этой загрузки.
type DownloadHandler func(d Download) error

type PlaywrightBrowser struct {
	pw        *playwright.Playwright
	browser   playwright.Browser
	context   playwright.BrowserContext
	page      playwright.Page
	cfg       Config
	mu        sync.RWMutex
	handler   atomic.Pointer[DownloadHandler]
	downloads *downloadTracker
}

type Config struct {
	Headless     bool
	Engine       string // firefox | chromium | webkit
	BrowsersPath string
	Display      string
	UserAgent    string
	Viewport     Viewport

	NavigateTimeout      time.Duration
	WaitTimeout          time.Duration
	DownloadStartTimeout time.Duration
	DownloadTimeout      time.Duration
}

type Viewport struct {
	Width  int
	Height int
}
