package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"
)

// Portal описывает один экземпляр портала расчетных листков.
// Файл настроек содержит несколько порталов, ключ верхнего уровня - тег окружения.
type Portal struct {
	BaseURL      string    `yaml:"base_url"`
	OAuthURL     string    `yaml:"oauth_url"`
	QueryParams  string    `yaml:"query_params"`
	CustomerPath string    `yaml:"customer_path"`
	Selectors    Selectors `yaml:"selectors"`
}

// Selectors - селекторы и пути портала. Пустые поля заполняются значениями по умолчанию.
type Selectors struct {
	Email         string `yaml:"email"`
	Next          string `yaml:"next"`
	Password      string `yaml:"password"`
	SignIn        string `yaml:"sign_in"`
	ContentFrame  string `yaml:"content_frame"`
	LogoutConfirm string `yaml:"logout_confirm"`
	ListingPath   string `yaml:"listing_path"`
	LogoutPath    string `yaml:"logout_path"`
}

func DefaultSelectors() Selectors {
	return Selectors{
		Email:         "input#Email",
		Next:          "input#next",
		Password:      "input#Passwd",
		SignIn:        "input#signIn",
		ContentFrame:  "iframe#ContentFrame",
		LogoutConfirm: `input[name="ctl00$Content$btnReturnLogin"]`,
		ListingPath:   "/pages/VIEW/EePayrollPayCheckHistory.aspx",
		LogoutPath:    "/logout.aspx",
	}
}

// LoadPortal читает файл настроек (YAML или JSON) и возвращает портал для окружения envTag.
func LoadPortal(path, envTag string) (Portal, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return Portal{}, fmt.Errorf("не удалось раскрыть путь %s: %w", path, err)
	}

	data, err := os.ReadFile(expanded)
	if err != nil {
		return Portal{}, fmt.Errorf("ошибка чтения настроек портала: %w", err)
	}

	return ParsePortal(data, envTag)
}

func ParsePortal(data []byte, envTag string) (Portal, error) {
	var portals map[string]Portal
	if err := yaml.Unmarshal(data, &portals); err != nil {
		return Portal{}, fmt.Errorf("ошибка разбора настроек портала: %w", err)
	}

	portal, ok := portals[envTag]
	if !ok {
		return Portal{}, fmt.Errorf("портал для окружения %q не найден", envTag)
	}

	portal = portal.withDefaults()
	if err := portal.Validate(); err != nil {
		return Portal{}, err
	}
	return portal, nil
}

func (p Portal) withDefaults() Portal {
	p.BaseURL = strings.TrimRight(strings.TrimSpace(p.BaseURL), "/")
	p.QueryParams = strings.TrimPrefix(strings.TrimSpace(p.QueryParams), "?")
	if p.CustomerPath == "" {
		p.CustomerPath = "/Customs/GOOG/"
	}

	d := DefaultSelectors()
	s := &p.Selectors
	for _, f := range []struct {
		v   *string
		def string
	}{
		{&s.Email, d.Email},
		{&s.Next, d.Next},
		{&s.Password, d.Password},
		{&s.SignIn, d.SignIn},
		{&s.ContentFrame, d.ContentFrame},
		{&s.LogoutConfirm, d.LogoutConfirm},
		{&s.ListingPath, d.ListingPath},
		{&s.LogoutPath, d.LogoutPath},
	} {
		if *f.v == "" {
			*f.v = f.def
		}
	}
	return p
}

func (p Portal) Validate() error {
	if p.BaseURL == "" {
		return fmt.Errorf("не задан base_url портала")
	}
	if p.OAuthURL == "" {
		return fmt.Errorf("не задан oauth_url портала")
	}
	return nil
}

// ListingURL - страница со списком расчетных листков.
func (p Portal) ListingURL() string {
	return p.BaseURL + p.Selectors.ListingPath + "?" + p.QueryParams
}

func (p Portal) LogoutURL() string {
	return p.BaseURL + p.Selectors.LogoutPath
}
