package fetcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"payFetcher/internal/browser"
	"payFetcher/internal/config"
	"payFetcher/internal/credentials"
	"payFetcher/internal/download"
	"payFetcher/internal/logger"
	"payFetcher/internal/selection"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var testPortal = config.Portal{
	BaseURL:      "https://portal.example.com",
	OAuthURL:     "https://accounts.example.com/login",
	QueryParams:  "__tenantid=abc",
	CustomerPath: "/Customs/GOOG/",
	Selectors:    config.DefaultSelectors(),
}

type fakeDownload struct {
	url string
}

func (d fakeDownload) URL() string               { return d.url }
func (d fakeDownload) SuggestedFilename() string { return "statement.pdf" }
func (d fakeDownload) Failure() error            { return nil }
func (d fakeDownload) SaveAs(path string) error  { return os.WriteFile(path, []byte("%PDF-1.4"), 0o644) }

// fakeBrowser записывает вызовы и отдает строки списка по Evaluate.
// failOn задает ошибку для вызова по ключу вида "wait:<selector>".
type fakeBrowser struct {
	rows   []selection.Row
	failOn map[string]error

	calls     []string
	downloads []string
	handler   browser.DownloadHandler
	pending   []error
	closed    int
}

func (b *fakeBrowser) record(call string) error {
	b.calls = append(b.calls, call)
	return b.failOn[call]
}

func (b *fakeBrowser) Launch(context.Context) error { return b.record("launch") }

func (b *fakeBrowser) Navigate(_ context.Context, url string) error {
	return b.record("goto:" + url)
}

func (b *fakeBrowser) NavigateToDownload(_ context.Context, url string) error {
	b.downloads = append(b.downloads, url)
	if err := b.record("download"); err != nil {
		return err
	}
	if b.handler != nil {
		b.pending = append(b.pending, b.handler(fakeDownload{url: url}))
	}
	return nil
}

func (b *fakeBrowser) FillField(_ context.Context, selector, _ string) error {
	return b.record("fill:" + selector)
}

func (b *fakeBrowser) Click(_ context.Context, selector string) error {
	return b.record("click:" + selector)
}

func (b *fakeBrowser) WaitForSelector(_ context.Context, selector string) error {
	return b.record("wait:" + selector)
}

func (b *fakeBrowser) Wait(_ context.Context, d time.Duration) error {
	return b.record("sleep:" + d.String())
}

func (b *fakeBrowser) Evaluate(context.Context, string, ...any) (any, error) {
	if err := b.record("evaluate"); err != nil {
		return nil, err
	}
	out := make([]any, 0, len(b.rows))
	for _, r := range b.rows {
		out = append(out, map[string]any{"href": r.Href, "text": r.Text})
	}
	return out, nil
}

func (b *fakeBrowser) Content(context.Context) (string, error) {
	return "", b.record("content")
}

func (b *fakeBrowser) OnDownload(h browser.DownloadHandler) { b.handler = h }

func (b *fakeBrowser) WaitDownloadsComplete(context.Context) error {
	err := errors.Join(b.pending...)
	b.pending = nil
	return err
}

func (b *fakeBrowser) Close() error {
	b.closed++
	return b.record("close")
}

func (b *fakeBrowser) called(call string) bool {
	for _, c := range b.calls {
		if c == call {
			return true
		}
	}
	return false
}

type staticCreds map[string]string

func (c staticCreds) GetSecrets(_ context.Context, names []string) (map[string]string, error) {
	out := map[string]string{}
	for _, n := range names {
		if v, ok := c[n]; ok {
			out[n] = v
		}
	}
	return out, nil
}

var testCreds = staticCreds{credentials.Username: "jane@example.com", credentials.Password: "s3cret"}

// listingRows возвращает строки в порядке страницы: от новых к старым.
func listingRows(gensOldestFirst ...string) []selection.Row {
	rows := make([]selection.Row, 0, len(gensOldestFirst))
	for i := len(gensOldestFirst) - 1; i >= 0; i-- {
		rows = append(rows, selection.Row{
			Href: fmt.Sprintf("javascript:OpenPage('pages/VIEW/EEPayrollPayCheckDetail.aspx', 'coid=ACME&gennumber=%s!pagererid=1', true)", gensOldestFirst[i]),
			Text: "stub " + gensOldestFirst[i],
		})
	}
	return rows
}

func newTestFetcher(t *testing.T, br *fakeBrowser, query string) (*Fetcher, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "stubs")

	f := New(br, testCreds, nil, Config{
		Portal:             testPortal,
		Query:              selection.ParseQuery(query),
		Zoom:               "0.5",
		OutDir:             dir,
		SettleWait:         time.Millisecond,
		InterceptorOptions: []download.InterceptorOption{download.WithVerifier(nil)},
	})
	return f, dir
}

func TestRun_LastTwoOfThree(t *testing.T) {
	br := &fakeBrowser{rows: listingRows("1", "2", "3")}
	f, dir := newTestFetcher(t, br, "last2")

	report, err := f.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, br.downloads, 2)
	assert.Contains(t, br.downloads[0], "gennumber=2!pagererid=1")
	assert.Contains(t, br.downloads[1], "gennumber=3!pagererid=1")
	assert.Equal(t, []selection.Reference{
		selection.Reference(br.downloads[0]),
		selection.Reference(br.downloads[1]),
	}, report.References)

	assert.FileExists(t, filepath.Join(dir, "2-0.5.pdf"))
	assert.FileExists(t, filepath.Join(dir, "3-0.5.pdf"))
	assert.NoFileExists(t, filepath.Join(dir, "1-0.5.pdf"))

	assert.Equal(t, download.Done, report.Result.Outcome)
	assert.Equal(t, 2, report.Result.Completed())
	assert.Equal(t, StateTerminated, report.State)
	assert.Equal(t, 1, br.closed)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, "last2", report.Query)
}

func TestRun_StepOrder(t *testing.T) {
	br := &fakeBrowser{rows: listingRows("1")}
	f, _ := newTestFetcher(t, br, "latest")

	_, err := f.Run(context.Background())
	require.NoError(t, err)

	sel := testPortal.Selectors
	assert.Equal(t, []string{
		"launch",
		"goto:https://accounts.example.com/login",
		"fill:" + sel.Email,
		"click:" + sel.Next,
		"wait:" + sel.Password,
		"fill:" + sel.Password,
		"click:" + sel.SignIn,
		"wait:" + sel.ContentFrame,
		"goto:https://portal.example.com/pages/VIEW/EePayrollPayCheckHistory.aspx?__tenantid=abc",
		"sleep:1ms",
		"evaluate",
		"download",
		"goto:https://portal.example.com/logout.aspx",
		"wait:" + sel.LogoutConfirm,
		"close",
	}, br.calls)
}

func TestRun_PasswordFieldTimeout(t *testing.T) {
	br := &fakeBrowser{
		rows: listingRows("1", "2"),
		failOn: map[string]error{
			"wait:" + testPortal.Selectors.Password: fmt.Errorf("%w: input#Passwd", browser.ErrTimeout),
		},
	}
	f, _ := newTestFetcher(t, br, "all")

	report, err := f.Run(context.Background())
	require.Error(t, err)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageLogin, stageErr.Stage)
	assert.Equal(t, "ожидание поля пароля", stageErr.Step)
	assert.True(t, browser.IsTimeout(err))

	assert.Empty(t, br.downloads)
	assert.False(t, br.called("evaluate"))
	assert.Equal(t, 1, br.closed)
	assert.Equal(t, StateTerminated, report.State)
	assert.Equal(t, err, report.Err)
}

func TestRun_PerItemFailureDoesNotStopQueue(t *testing.T) {
	br := &fakeBrowser{
		rows:   listingRows("1", "2", "3"),
		failOn: map[string]error{},
	}
	f, _ := newTestFetcher(t, br, "all")

	// Вторая загрузка падает при переходе
	calls := 0
	f.browser = &failingDownloads{fakeBrowser: br, fail: func() bool {
		calls++
		return calls == 2
	}}

	report, err := f.Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, report.Result.Tasks, 3)
	assert.Equal(t, 2, report.Result.Completed())
	assert.Equal(t, 1, report.Result.Failed())
	assert.Equal(t, download.StatusFailed, report.Result.Tasks[1].Status)
	assert.True(t, br.called("goto:https://portal.example.com/logout.aspx"))
	assert.Equal(t, 1, br.closed)
}

type failingDownloads struct {
	*fakeBrowser
	fail func() bool
}

func (b *failingDownloads) NavigateToDownload(ctx context.Context, url string) error {
	if b.fail() {
		b.downloads = append(b.downloads, url)
		return errors.New("net::ERR_CONNECTION_RESET")
	}
	return b.fakeBrowser.NavigateToDownload(ctx, url)
}

func observed(f *Fetcher) *observer.ObservedLogs {
	core, logs := observer.New(zapcore.DebugLevel)
	f.log = &logger.Zap{Logger: zap.New(core)}
	return logs
}

func TestRun_ClosedPageDuringListingIsFatal(t *testing.T) {
	listingURL := "goto:https://portal.example.com/pages/VIEW/EePayrollPayCheckHistory.aspx?__tenantid=abc"
	br := &fakeBrowser{
		failOn: map[string]error{
			listingURL: fmt.Errorf("goto: net::ERR_ABORTED: %w", playwright.ErrTargetClosed),
		},
	}
	f, _ := newTestFetcher(t, br, "all")
	logs := observed(f)

	report, err := f.Run(context.Background())
	require.Error(t, err)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageListing, stageErr.Stage)
	assert.Equal(t, err, report.Err)
	assert.Equal(t, 1, logs.FilterMessage("Выгрузка прервана").Len())
	assert.Zero(t, logs.FilterMessage("Выгрузка завершена").Len())
	assert.Equal(t, 1, br.closed)
	assert.Empty(t, br.downloads)
}

func TestRun_BenignCloseErrorIsIgnored(t *testing.T) {
	br := &fakeBrowser{
		rows: listingRows("1"),
		failOn: map[string]error{
			"close": fmt.Errorf("закрытие контекста: %w", playwright.ErrTargetClosed),
		},
	}
	f, _ := newTestFetcher(t, br, "latest")
	logs := observed(f)

	report, err := f.Run(context.Background())
	require.NoError(t, err)
	assert.NoError(t, report.Err)

	closed := logs.FilterMessage("Браузер закрыт принудительно").All()
	require.Len(t, closed, 1)
	assert.Equal(t, zapcore.DebugLevel, closed[0].Level)
	assert.Zero(t, logs.FilterMessage("Ошибка при закрытии браузера").Len())
	assert.Equal(t, 1, logs.FilterMessage("Выгрузка завершена").Len())
}

func TestRun_FatalTimeoutIsTaggedInLog(t *testing.T) {
	br := &fakeBrowser{
		failOn: map[string]error{
			"wait:" + testPortal.Selectors.ContentFrame: fmt.Errorf("%w: iframe#ContentFrame", browser.ErrTimeout),
		},
	}
	f, _ := newTestFetcher(t, br, "latest")
	logs := observed(f)

	_, err := f.Run(context.Background())
	require.Error(t, err)

	entries := logs.FilterMessage("Выгрузка прервана").All()
	require.Len(t, entries, 1)
	assert.Equal(t, true, entries[0].ContextMap()["timeout"])
}

func TestRun_LogoutFailureStillCloses(t *testing.T) {
	br := &fakeBrowser{
		rows: listingRows("1"),
		failOn: map[string]error{
			"wait:" + testPortal.Selectors.LogoutConfirm: browser.ErrTimeout,
			"close": errors.New("driver exited"),
		},
	}
	f, _ := newTestFetcher(t, br, "latest")

	logs := observed(f)

	report, err := f.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Result.Completed())
	assert.Equal(t, 1, br.closed)
	assert.Equal(t, 1, logs.FilterMessage("Ошибка при закрытии браузера").Len())
	assert.Equal(t, 1, logs.FilterMessage("Выход из портала не подтвержден").Len())
	assert.Equal(t, StateTerminated, report.State)
}

func TestRun_MissingCredentials(t *testing.T) {
	br := &fakeBrowser{}
	f, _ := newTestFetcher(t, br, "latest")
	f.creds = credentials.Chain{staticCreds{credentials.Username: "jane@example.com"}}

	report, err := f.Run(context.Background())
	require.Error(t, err)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageCredentials, stageErr.Stage)
	assert.ErrorIs(t, err, credentials.ErrMissingSecret)

	assert.Empty(t, br.calls)
	assert.Equal(t, StateUnauthenticated, report.State)
}

func TestRun_LaunchFailure(t *testing.T) {
	br := &fakeBrowser{failOn: map[string]error{"launch": errors.New("executable doesn't exist")}}
	f, _ := newTestFetcher(t, br, "latest")

	_, err := f.Run(context.Background())

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageLaunch, stageErr.Stage)
	assert.Equal(t, 1, br.closed)
}

func TestRun_SelectFailure(t *testing.T) {
	br := &fakeBrowser{failOn: map[string]error{
		"evaluate": errors.New("execution context was destroyed"),
		"content":  errors.New("page crashed"),
	}}
	f, _ := newTestFetcher(t, br, "latest")

	_, err := f.Run(context.Background())

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageSelect, stageErr.Stage)
	assert.Empty(t, br.downloads)
	assert.False(t, br.called("goto:https://portal.example.com/logout.aspx"))
}

func TestRun_EmptyListing(t *testing.T) {
	br := &fakeBrowser{}
	f, _ := newTestFetcher(t, br, "all")

	report, err := f.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.References)
	assert.Equal(t, download.Done, report.Result.Outcome)
	assert.True(t, br.called("wait:"+testPortal.Selectors.LogoutConfirm))
}

func TestStageError(t *testing.T) {
	err := &StageError{Stage: StageLogin, Step: "ввод логина", Err: browser.ErrNotLaunched}
	assert.Equal(t, "этап login (ввод логина): браузер не запущен", err.Error())
	assert.ErrorIs(t, err, browser.ErrNotLaunched)

	assert.Equal(t, "этап listing: x", stageErr(StageListing, errors.New("x")).Error())
	assert.NoError(t, stageErr(StageListing, nil))
}

func TestNew_Defaults(t *testing.T) {
	f := New(&fakeBrowser{}, testCreds, nil, Config{})
	assert.Equal(t, 2*time.Second, f.cfg.SettleWait)
	assert.NotNil(t, f.log)
}

func TestSessionState_String(t *testing.T) {
	for s, want := range map[SessionState]string{
		StateUnauthenticated: "unauthenticated",
		StateAuthenticated:   "authenticated",
		StateTerminated:      "terminated",
		SessionState(7):      "unknown",
	} {
		assert.Equal(t, want, s.String())
	}
	assert.True(t, strings.HasPrefix(StateTerminated.String(), "term"))
}
