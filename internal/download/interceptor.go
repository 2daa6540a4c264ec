package download

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"payFetcher/internal/browser"

	"go.uber.org/zap"
)

// Идентификатор сформированного документа в URL загрузки.
var generatedIDPattern = regexp.MustCompile(`gennumber=(.*?)!pagererid`)

// Interceptor решает, под каким именем сохранить каждую загрузку.
// Это единственное место, где выбираются имена файлов.
type Interceptor struct {
	dir      string
	zoom     string
	log      *zap.Logger
	verify   func(path string) error
	sanitize func(string) string
}

type InterceptorOption func(*Interceptor)

// WithVerifier задает проверку сохраненного файла. nil отключает проверку.
func WithVerifier(fn func(path string) error) InterceptorOption {
	return func(i *Interceptor) {
		i.verify = fn
	}
}

// WithURLSanitizer задает функцию, скрывающую параметры сессии в логируемых URL.
func WithURLSanitizer(fn func(string) string) InterceptorOption {
	return func(i *Interceptor) {
		i.sanitize = fn
	}
}

func NewInterceptor(dir, zoom string, log *zap.Logger, opts ...InterceptorOption) *Interceptor {
	if log == nil {
		log = zap.NewNop()
	}

	i := &Interceptor{
		dir:      dir,
		zoom:     zoom,
		log:      log,
		verify:   VerifyPDF,
		sanitize: func(s string) string { return s },
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Prepare создает каталог для сохранения, если его нет.
func (i *Interceptor) Prepare() error {
	if err := os.MkdirAll(i.dir, 0o755); err != nil {
		return fmt.Errorf("не удалось создать каталог %s: %w", i.dir, err)
	}
	return nil
}

// Filename возвращает имя <идентификатор>-<масштаб>.pdf для URL документа.
// false означает, что URL не похож на документ портала и имя остается браузерным.
func (i *Interceptor) Filename(sourceURL string) (string, bool) {
	m := generatedIDPattern.FindStringSubmatch(sourceURL)
	if m == nil {
		return "", false
	}

	id := safeComponent(m[1])
	if id == "" {
		return "", false
	}

	return filepath.Join(i.dir, id+"-"+i.zoom+".pdf"), true
}

// Handle сохраняет начавшуюся загрузку. Подходит как browser.DownloadHandler.
func (i *Interceptor) Handle(d browser.Download) error {
	name, forced := i.Filename(d.URL())
	if !forced {
		name = filepath.Join(i.dir, defaultName(d.SuggestedFilename()))
	}

	log := i.log.With(
		zap.String("url", i.sanitize(d.URL())),
		zap.String("file", name),
		zap.Bool("named_by_document", forced),
	)
	log.Info("Загрузка началась")

	if err := d.SaveAs(name); err != nil {
		if failure := d.Failure(); failure != nil {
			err = failure
		}
		log.Error("Ошибка сохранения загрузки", zap.Error(err))
		return fmt.Errorf("загрузка %s: %w", filepath.Base(name), err)
	}

	if forced && i.verify != nil {
		if err := i.verify(name); err != nil {
			log.Error("Сохраненный файл не является PDF", zap.Error(err))
			return fmt.Errorf("проверка %s: %w", filepath.Base(name), err)
		}
	}

	log.Info("Загрузка сохранена")
	return nil
}

// safeComponent не дает идентификатору выйти за пределы каталога сохранения.
func safeComponent(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', 0:
			return '_'
		}
		return r
	}, s)
	if s == "." || s == ".." {
		return ""
	}
	return s
}

func defaultName(suggested string) string {
	name := safeComponent(filepath.Base(suggested))
	if name == "" {
		return "download"
	}
	return name
}
