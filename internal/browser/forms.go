package browser

import (
	"context"
	"fmt"

	"github.com/playwright-community/playwright-go"
)

// FillField вводит значение в поле, предварительно дождавшись его появления.
// Старое содержимое поля заменяется.
func (b *PlaywrightBrowser) FillField(ctx context.Context, selector, value string) error {
	page := b.getPage()
	if page == nil {
		return ErrNotLaunched
	}

	if err := b.WaitForSelector(ctx, selector); err != nil {
		return fmt.Errorf("поле формы не найдено: %w", err)
	}

	if err := page.Fill(selector, value, playwright.PageFillOptions{
		Timeout: playwright.Float(float64(b.cfg.WaitTimeout.Milliseconds())),
	}); err != nil {
		return wrapTimeout(err)
	}
	return nil
}
