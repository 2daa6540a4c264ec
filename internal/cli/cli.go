// Package cli собирает команду payfetch: флаги поверх настроек окружения
// и запуск выгрузки.
package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"payFetcher/internal/browser"
	"payFetcher/internal/cli/ui"
	"payFetcher/internal/config"
	"payFetcher/internal/credentials"
	"payFetcher/internal/fetcher"
	"payFetcher/internal/logger"
	"payFetcher/internal/sanitizer"
	"payFetcher/internal/selection"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Version задается при сборке через -ldflags.
var Version = "dev"

// Runner выполняет выгрузку с итоговыми настройками.
type Runner func(ctx context.Context, cfg *config.Cfg, out io.Writer) error

func NewRootCommand(cfg *config.Cfg, run Runner) *cobra.Command {
	var timeoutMs int
	var show bool

	cmd := &cobra.Command{
		Use:           "payfetch",
		Short:         "Выгружает расчетные листки из портала в PDF",
		Version:       Version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg.Run.Timeout = time.Duration(timeoutMs) * time.Millisecond
			cfg.Browser.Headless = !show
			if err := cfg.Run.Validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.StringVarP(&cfg.Run.Path, "path", "p", cfg.Run.Path, "каталог для сохранения PDF")
	f.StringVarP(&cfg.Run.Query, "query", "q", cfg.Run.Query, "какие листки выгрузить: all, latest, last<N>")
	f.StringVarP(&cfg.Run.Zoom, "zoom", "z", cfg.Run.Zoom, "масштаб печати в PDF")
	f.StringVar(&cfg.Run.UserAgent, "useragent", cfg.Run.UserAgent, "User-Agent браузера")
	f.IntVarP(&timeoutMs, "timeout", "t", int(cfg.Run.Timeout.Milliseconds()), "таймаут каждого шага, мс")
	f.StringVarP(&cfg.Run.ConfigPath, "config", "c", cfg.Run.ConfigPath, "файл с настройками порталов")
	f.StringVarP(&cfg.Run.Env, "env", "e", cfg.Run.Env, "окружение портала в файле настроек")
	f.StringVar(&cfg.Logger.Level, "loglevel", cfg.Logger.Level, "уровень логирования")
	f.StringVar(&cfg.Logger.File, "logfile", cfg.Logger.File, "файл лога с ротацией")
	f.BoolVar(&show, "show", !cfg.Browser.Headless, "показать окно браузера (отладка)")

	return cmd
}

// Fetch - Runner по умолчанию: собирает логгер, браузер и источники учетных данных
// и проводит один запуск.
func Fetch(ctx context.Context, cfg *config.Cfg, out io.Writer) error {
	log, err := logger.New(cfg.Logger.Env, cfg.Logger.Level, cfg.Logger.File)
	if err != nil {
		return err
	}
	defer log.Sync()

	portal, err := config.LoadPortal(cfg.Run.ConfigPath, cfg.Run.Env)
	if err != nil {
		return err
	}

	br := browser.New(browser.Config{
		Headless:        cfg.Browser.Headless,
		Engine:          cfg.Browser.Engine,
		BrowsersPath:    cfg.Browser.BrowsersPath,
		Display:         cfg.Browser.Display,
		UserAgent:       cfg.Run.UserAgent,
		NavigateTimeout: cfg.Run.Timeout,
	})

	creds := credentials.Chain{
		credentials.NewEnvProvider("PAYFETCH"),
		credentials.NewPromptProvider(),
	}

	log.Debug("Портал выбран",
		zap.String("env", cfg.Run.Env),
		zap.String("base_url", sanitizer.New().SanitizeURL(portal.BaseURL)),
		zap.Bool("headless", cfg.Browser.Headless),
		zap.String("engine", cfg.Browser.Engine),
	)

	query := selection.ParseQuery(cfg.Run.Query)
	ui.PrintBanner(out, query.String(), cfg.Run.Zoom, cfg.Run.Path)

	report, err := fetcher.New(br, creds, log, fetcher.Config{
		Portal:     portal,
		Query:      query,
		Zoom:       cfg.Run.Zoom,
		OutDir:     cfg.Run.Path,
		SettleWait: cfg.Run.SettleWait,
		Pace:       cfg.Run.Pace,
	}).Run(ctx)

	ui.PrintSummary(out, report)
	if err != nil {
		return fmt.Errorf("выгрузка не выполнена: %w", err)
	}
	return nil
}
