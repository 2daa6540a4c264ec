package fetcher

import (
	"sync"

	"payFetcher/internal/browser"

	"go.uber.org/zap"
)

// session - браузер текущего запуска и его состояние. Завершается ровно один раз.
type session struct {
	br    browser.Browser
	log   *zap.Logger
	state SessionState
	once  sync.Once

	closeErr error
}

func newSession(br browser.Browser, log *zap.Logger) *session {
	return &session{br: br, log: log, state: StateUnauthenticated}
}

func (s *session) authenticated() {
	s.state = StateAuthenticated
	s.log.Info("Вход выполнен")
}

// terminate закрывает браузер и останавливает драйвер вместе с процессом браузера.
// Ошибка закрытия сохраняется в closeErr и разбирается на границе запуска.
func (s *session) terminate() {
	s.once.Do(func() {
		s.closeErr = s.br.Close()
		s.state = StateTerminated
	})
}
