package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"payFetcher/internal/download"
	"payFetcher/internal/fetcher"
)

// FormatStatus возвращает иконку, цвет и текст для статуса загрузки
func FormatStatus(status download.Status) (icon, color, text string) {
	switch status {
	case download.StatusComplete:
		return IconCheckmark, ColorGreen, "загружен"
	case download.StatusFailed:
		return IconCross, ColorRed, "ошибка"
	case download.StatusInFlight:
		return IconPlay, ColorCyan, "загружается"
	case download.StatusPending:
		return IconClock, ColorYellow, "ожидает"
	default:
		return IconClock, ColorYellow, status.String()
	}
}

// PrintBanner выводит параметры запуска перед началом выгрузки
func PrintBanner(w io.Writer, query, zoom, path string) {
	fmt.Fprintln(w, ColorBold+IconDocument+" payfetch"+ColorReset)
	fmt.Fprintf(w, ColorGray+"Запрос: %s, масштаб: %s"+ColorReset+"\n", query, zoom)
	fmt.Fprintf(w, ColorGray+IconFolder+" %s"+ColorReset+"\n", path)
	fmt.Fprintln(w)
}

// PrintSummary выводит итог запуска: статус каждой загрузки и общие счетчики
func PrintSummary(w io.Writer, r *fetcher.Report) {
	if r == nil {
		return
	}

	if len(r.Result.Tasks) == 0 && r.Err == nil {
		fmt.Fprintln(w, ColorYellow+"Документы по запросу "+r.Query+" не найдены"+ColorReset)
	}

	for i, task := range r.Result.Tasks {
		icon, color, text := FormatStatus(task.Status)
		fmt.Fprintf(w, "  %s%s %d. %s%s", color, icon, i+1, text, ColorReset)
		if task.Err != nil {
			fmt.Fprintf(w, ColorGray+" %s"+ColorReset, firstLine(task.Err.Error()))
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "\n%sГотово:%s %d, %sошибок:%s %d %s%s %s%s\n",
		ColorGreen, ColorReset, r.Result.Completed(),
		ColorRed, ColorReset, r.Result.Failed(),
		ColorGray, IconTime, r.Duration().Round(time.Millisecond), ColorReset,
	)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
