package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
)

// WaitForSelector ждет, пока элемент появится и станет видимым.
func (b *PlaywrightBrowser) WaitForSelector(ctx context.Context, selector string) error {
	page := b.getPage()
	if page == nil {
		return ErrNotLaunched
	}

	// Валидируем селектор (проверяем, что это не URL)
	if err := ValidateSelector(selector); err != nil {
		return fmt.Errorf("невалидный селектор: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// Фреймы не бывают "видимыми" для playwright до загрузки, поэтому для них достаточно attached
	state := playwright.WaitForSelectorStateVisible
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(selector)), "iframe") {
		state = playwright.WaitForSelectorStateAttached
	}

	opts := playwright.PageWaitForSelectorOptions{
		State:   state,
		Timeout: playwright.Float(float64(b.cfg.WaitTimeout.Milliseconds())),
	}

	if _, err := page.WaitForSelector(selector, opts); err != nil {
		return wrapTimeout(err)
	}
	return nil
}

// Wait - фиксированная пауза, например чтобы динамический контент успел отрисоваться.
func (b *PlaywrightBrowser) Wait(ctx context.Context, d time.Duration) error {
	if b.getPage() == nil {
		return ErrNotLaunched
	}
	return sleep(ctx, d)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func ValidateSelector(selector string) error {
	if strings.TrimSpace(selector) == "" {
		return fmt.Errorf("селектор не может быть пустым")
	}

	// Проверяем, что селектор не является URL
	selectorTrimmed := strings.TrimSpace(selector)
	if strings.Contains(selectorTrimmed, "://") {
		return fmt.Errorf("селектор не может содержать протокол (://). Получен: %s", selector)
	}

	return nil
}
