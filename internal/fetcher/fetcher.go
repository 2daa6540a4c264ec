package fetcher

import (
	"context"
	"time"

	"payFetcher/internal/browser"
	"payFetcher/internal/credentials"
	"payFetcher/internal/download"
	"payFetcher/internal/logger"
	"payFetcher/internal/sanitizer"
	"payFetcher/internal/selection"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// New создает запуск выгрузки. Если не задано, SettleWait равен 2 секундам.
func New(br browser.Browser, creds credentials.Provider, log *logger.Zap, cfg Config) *Fetcher {
	if cfg.SettleWait == 0 {
		cfg.SettleWait = 2 * time.Second
	}
	if log == nil {
		log = logger.NewNop()
	}

	return &Fetcher{
		browser:   br,
		creds:     creds,
		log:       log,
		sanitizer: sanitizer.New(),
		cfg:       cfg,
	}
}

// Run выполняет запуск от начала до конца. Браузер закрывается на любом пути выхода.
// Возвращаемая ошибка - фатальная ошибка запуска; ошибки отдельных загрузок
// находятся в Report.Result.
func (f *Fetcher) Run(ctx context.Context) (*Report, error) {
	report := &Report{
		RunID:   uuid.NewString(),
		Query:   f.cfg.Query.String(),
		Started: time.Now(),
	}
	log := f.log.With(zap.String("run_id", report.RunID))

	log.Info("Запуск выгрузки",
		zap.String("query", report.Query),
		zap.String("zoom", f.cfg.Zoom),
		zap.String("path", f.cfg.OutDir),
	)

	s := newSession(f.browser, log)
	err := f.run(ctx, log, s, report)
	report.Finished = time.Now()

	logTeardown(log, s.closeErr)

	if err != nil {
		log.Error("Выгрузка прервана",
			zap.Error(err),
			zap.Bool("timeout", browser.IsTimeout(err)),
			zap.Duration("duration", report.Duration()),
		)
		report.Err = err
		return report, err
	}

	log.Info("Выгрузка завершена",
		zap.Int("selected", len(report.References)),
		zap.Int("completed", report.Result.Completed()),
		zap.Int("failed", report.Result.Failed()),
		zap.Duration("duration", report.Duration()),
	)
	return report, nil
}

// logTeardown разбирает ошибку закрытия браузера. Принудительная остановка драйвера
// обрывает незавершенные операции (ERR_ABORTED, закрытая страница), это не сбой.
// Ошибки закрытия не делают запуск неуспешным.
func logTeardown(log *zap.Logger, err error) {
	switch {
	case err == nil:
	case browser.IsBenignTeardown(err):
		log.Debug("Браузер закрыт принудительно", zap.Error(err))
	default:
		log.Warn("Ошибка при закрытии браузера", zap.Error(err))
	}
}

func (f *Fetcher) run(ctx context.Context, log *zap.Logger, s *session, report *Report) error {
	secrets, err := f.creds.GetSecrets(ctx, []string{credentials.Username, credentials.Password})
	if err != nil {
		return stageErr(StageCredentials, err)
	}
	f.sanitizer.AddSecrets(secrets[credentials.Username], secrets[credentials.Password])

	interceptorOpts := append([]download.InterceptorOption{
		download.WithURLSanitizer(f.sanitizer.SanitizeURL),
	}, f.cfg.InterceptorOptions...)
	interceptor := download.NewInterceptor(f.cfg.OutDir, f.cfg.Zoom, log, interceptorOpts...)
	if err := interceptor.Prepare(); err != nil {
		return stageErr(StagePrepare, err)
	}
	f.browser.OnDownload(interceptor.Handle)

	defer func() {
		s.terminate()
		report.State = s.state
	}()

	if err := f.browser.Launch(ctx); err != nil {
		return stageErr(StageLaunch, err)
	}

	if err := f.login(ctx, log, secrets[credentials.Username], secrets[credentials.Password]); err != nil {
		return err
	}
	s.authenticated()

	listingURL := f.cfg.Portal.ListingURL()
	log.Info("Открываем список документов", zap.String("url", f.sanitizer.SanitizeURL(listingURL)))
	if err := f.browser.Navigate(ctx, listingURL); err != nil {
		return stageErr(StageListing, err)
	}
	if err := f.browser.Wait(ctx, f.cfg.SettleWait); err != nil {
		return stageErr(StageListing, err)
	}

	refs, err := selection.NewEngine(log).Select(ctx, f.browser, f.cfg.Query, f.cfg.Zoom, f.cfg.Portal)
	if err != nil {
		return stageErr(StageSelect, err)
	}
	report.References = refs

	queue := download.NewQueue(f.browser, log,
		download.WithPace(f.cfg.Pace),
		download.WithReferenceSanitizer(f.sanitizer.SanitizeURL),
	)
	report.Result = queue.Process(ctx, refs)

	f.logout(ctx, log)
	return nil
}

type loginStep struct {
	name string
	do   func(ctx context.Context) error
}

// login проходит вход по шагам без ветвлений и повторов.
// Появление рабочей области портала подтверждает успешный вход.
func (f *Fetcher) login(ctx context.Context, log *zap.Logger, username, password string) error {
	p := f.cfg.Portal
	sel := p.Selectors
	br := f.browser

	steps := []loginStep{
		{"открытие страницы входа", func(ctx context.Context) error { return br.Navigate(ctx, p.OAuthURL) }},
		{"ввод логина", func(ctx context.Context) error { return br.FillField(ctx, sel.Email, username) }},
		{"переход к паролю", func(ctx context.Context) error { return br.Click(ctx, sel.Next) }},
		{"ожидание поля пароля", func(ctx context.Context) error { return br.WaitForSelector(ctx, sel.Password) }},
		{"ввод пароля", func(ctx context.Context) error { return br.FillField(ctx, sel.Password, password) }},
		{"отправка формы", func(ctx context.Context) error { return br.Click(ctx, sel.SignIn) }},
		{"ожидание рабочей области", func(ctx context.Context) error { return br.WaitForSelector(ctx, sel.ContentFrame) }},
	}

	for _, step := range steps {
		log.Debug("Шаг входа", zap.String("step", step.name))
		if err := step.do(ctx); err != nil {
			return &StageError{Stage: StageLogin, Step: step.name, Err: err}
		}
	}
	return nil
}

// logout завершает сессию на сервере. Ошибка выхода не прерывает запуск.
func (f *Fetcher) logout(ctx context.Context, log *zap.Logger) {
	p := f.cfg.Portal

	if err := f.browser.Navigate(ctx, p.LogoutURL()); err != nil {
		log.Warn("Не удалось выйти из портала", zap.Error(err))
		return
	}
	if err := f.browser.WaitForSelector(ctx, p.Selectors.LogoutConfirm); err != nil {
		log.Warn("Выход из портала не подтвержден",
			zap.String("selector", f.sanitizer.SanitizeSelector(p.Selectors.LogoutConfirm)),
			zap.Error(err),
		)
		return
	}
	log.Info("Выход из портала выполнен")
}
