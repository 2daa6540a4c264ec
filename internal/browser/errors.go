package browser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/playwright-community/playwright-go"
)

var (
	ErrNotLaunched        = errors.New("браузер не запущен")
	ErrTimeout            = errors.New("таймаут операции браузера")
	ErrDownloadNotStarted = errors.New("загрузка не началась")
)

// Сообщения, которыми браузеры прерывают навигацию, если ответом оказался файл.
var downloadAbortMarkers = []string{
	"Download is starting",
	"net::ERR_ABORTED",
	"NS_BINDING_ABORTED",
}

// Сообщения об операции, прерванной принудительным закрытием браузера.
var teardownMarkers = []string{
	"net::ERR_ABORTED",
	"Target page, context or browser has been closed",
	"Browser has been closed",
	"browser has disconnected",
}

func isDownloadAbort(err error) bool {
	return containsAny(err, downloadAbortMarkers)
}

// IsBenignTeardown сообщает, что ошибка вызвана закрытием браузера во время
// незавершенной операции (код отмены ERR_ABORTED, -3). Такие ошибки не логируются как сбой.
func IsBenignTeardown(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, playwright.ErrTargetClosed) {
		return true
	}
	return containsAny(err, teardownMarkers)
}

// IsTimeout сообщает, что шаг не уложился в свой таймаут.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, playwright.ErrTimeout)
}

func wrapTimeout(err error) error {
	if err == nil || errors.Is(err, ErrTimeout) {
		return err
	}
	if errors.Is(err, playwright.ErrTimeout) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return err
}

func containsAny(err error, markers []string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, m := range markers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
