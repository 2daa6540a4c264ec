package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_11_6) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/51.0.2704.103 Safari/537.36"
	DefaultTimeout   = 50 * time.Second
)

type Cfg struct {
	Logger  Logger
	Browser Browser
	Run     Run
}

type Logger struct {
	Env   string
	Level string
	File  string
}

type Browser struct {
	Display      string
	Headless     bool
	Engine       string
	BrowsersPath string
}

// Run содержит параметры одного запуска выгрузки.
type Run struct {
	ConfigPath string        // Путь к файлу с настройками порталов
	Env        string        // Тег окружения, по которому выбирается портал
	Path       string        // Каталог для сохранения PDF
	Query      string        // all | latest | last<N>
	Zoom       string        // Масштаб печати в PDF, десятичная строка
	UserAgent  string
	Timeout    time.Duration // Таймаут каждого шага браузера
	SettleWait time.Duration // Пауза после открытия списка документов
	Pace       time.Duration // Минимальный интервал между загрузками, 0 - без ограничений
}

func Load() (*Cfg, error) {
	_ = godotenv.Load()

	cfg := &Cfg{
		Logger: Logger{
			Env:   env("ENV", "dev"),
			Level: env("LOG_LEVEL", "info"),
			File:  os.Getenv("LOG_FILE"),
		},
		Browser: Browser{
			Display:      os.Getenv("DISPLAY"),
			Headless:     !envBool("PAYFETCH_SHOW"),
			Engine:       env("PW_ENGINE", "firefox"),
			BrowsersPath: env("PLAYWRIGHT_BROWSERS_PATH", ""),
		},
		Run: Run{
			ConfigPath: env("PAYFETCH_CONFIG", "~/.payfetch.yaml"),
			Env:        env("PAYFETCH_ENV", "default"),
			Path:       env("PAYFETCH_PATH", "."),
			Query:      env("PAYFETCH_QUERY", "latest"),
			Zoom:       env("PAYFETCH_ZOOM", "0.5"),
			UserAgent:  env("PAYFETCH_USER_AGENT", DefaultUserAgent),
			Timeout:    time.Duration(envInt("PAYFETCH_TIMEOUT_MS", int(DefaultTimeout.Milliseconds()))) * time.Millisecond,
			SettleWait: time.Duration(envInt("PAYFETCH_SETTLE_MS", 2000)) * time.Millisecond,
			Pace:       time.Duration(envInt("PAYFETCH_PACE_MS", 0)) * time.Millisecond,
		},
	}

	return cfg, nil
}

// Validate проверяет параметры запуска после применения флагов командной строки.
func (r Run) Validate() error {
	if strings.TrimSpace(r.Path) == "" {
		return fmt.Errorf("не указан каталог для сохранения")
	}
	if r.Timeout <= 0 {
		return fmt.Errorf("таймаут должен быть положительным, получено %v", r.Timeout)
	}
	if r.Pace < 0 {
		return fmt.Errorf("интервал между загрузками не может быть отрицательным")
	}
	if _, err := ParseZoom(r.Zoom); err != nil {
		return err
	}
	return nil
}

// ParseZoom проверяет, что масштаб задан десятичным числом больше нуля.
func ParseZoom(zoom string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(zoom), 64)
	if err != nil {
		return 0, fmt.Errorf("некорректный масштаб %q: %w", zoom, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("масштаб должен быть больше нуля, получено %q", zoom)
	}
	return v, nil
}

func env(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func envInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func envBool(key string) bool {
	v := strings.ToLower(os.Getenv(key))
	return v == "true" || v == "1" || v == "yes"
}
