// Package fetcher проводит один запуск выгрузки: вход в портал, выбор документов,
// очередь загрузок, выход и закрытие браузера.
package fetcher

import (
	"time"

	"payFetcher/internal/browser"
	"payFetcher/internal/config"
	"payFetcher/internal/credentials"
	"payFetcher/internal/download"
	"payFetcher/internal/logger"
	"payFetcher/internal/sanitizer"
	"payFetcher/internal/selection"
)

// Fetcher владеет браузером на время одного запуска.
type Fetcher struct {
	browser   browser.Browser
	creds     credentials.Provider
	log       *logger.Zap
	sanitizer *sanitizer.DataSanitizer
	cfg       Config
}

// Config содержит параметры запуска.
type Config struct {
	Portal     config.Portal
	Query      selection.Query
	Zoom       string
	OutDir     string
	SettleWait time.Duration // Пауза после открытия списка, пока подгружается таблица
	Pace       time.Duration // Минимальный интервал между загрузками

	// Дополнительные опции перехватчика загрузок (например, своя проверка файла)
	InterceptorOptions []download.InterceptorOption
}

// Report - итог запуска для сводки и кода выхода.
type Report struct {
	RunID      string
	Query      string
	References []selection.Reference
	Result     download.Result
	State      SessionState
	Started    time.Time
	Finished   time.Time
	Err        error
}

func (r *Report) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}

type SessionState int

const (
	StateUnauthenticated SessionState = iota
	StateAuthenticated
	StateTerminated
)

func (s SessionState) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}
