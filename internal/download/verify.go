package download

import (
	"fmt"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// pdfcpu по умолчанию создает каталог настроек в домашнем каталоге пользователя.
var disableConfigDir sync.Once

// VerifyPDF проверяет, что файл читается как PDF и содержит хотя бы одну страницу.
// Портал при истекшей сессии отдает HTML со страницей входа под тем же URL.
func VerifyPDF(path string) error {
	disableConfigDir.Do(api.DisableConfigDir)

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	if err := api.ValidateFile(path, conf); err != nil {
		return fmt.Errorf("некорректный PDF: %w", err)
	}

	pages, err := api.PageCountFile(path)
	if err != nil {
		return fmt.Errorf("не удалось посчитать страницы: %w", err)
	}
	if pages == 0 {
		return fmt.Errorf("в PDF нет страниц")
	}
	return nil
}
