// Package selection выбирает листки из списка документов и строит ссылки на их PDF.
//
// Сбор ссылок выполняется на странице (или по HTML страницы), а фильтрация и сборка
// ссылок - чистые функции над []Row, которые проверяются без браузера.
package selection

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"payFetcher/internal/config"

	"go.uber.org/zap"
)

// Evaluator - то, что движку нужно от страницы браузера.
type Evaluator interface {
	Evaluate(ctx context.Context, expression string, args ...any) (any, error)
	Content(ctx context.Context) (string, error)
}

type Engine struct {
	log *zap.Logger
}

func NewEngine(log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{log: log}
}

// Select собирает строки на открытой странице списка и возвращает ссылки
// на выбранные документы в хронологическом порядке.
func (e *Engine) Select(ctx context.Context, page Evaluator, q Query, zoom string, portal config.Portal) ([]Reference, error) {
	rows, err := e.collect(ctx, page)
	if err != nil {
		return nil, err
	}

	matched := Matching(rows)
	if dropped := len(rows) - len(matched); dropped > 0 {
		e.log.Warn("Строки списка без идентификатора документа пропущены", zap.Int("dropped", dropped))
	}

	refs, err := BuildReferences(rows, q, zoom, portal)
	if err != nil {
		return nil, err
	}

	e.log.Info("Документы выбраны",
		zap.Int("rows", len(rows)),
		zap.Int("matched", len(matched)),
		zap.Stringer("query", q),
		zap.Int("selected", len(refs)),
	)
	return refs, nil
}

func (e *Engine) collect(ctx context.Context, page Evaluator) ([]Row, error) {
	v, err := page.Evaluate(ctx, collectRowsScript, RowSelector)
	if err == nil {
		rows, decodeErr := decodeRows(v)
		if decodeErr == nil {
			return rows, nil
		}
		err = decodeErr
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	// Скрипт на странице не сработал - разбираем HTML страницы сами
	e.log.Warn("Сбор строк на странице не удался, разбираем HTML", zap.Error(err))

	content, contentErr := page.Content(ctx)
	if contentErr != nil {
		return nil, fmt.Errorf("не удалось получить строки списка: %w", errors.Join(err, contentErr))
	}
	return ScanHTML(strings.NewReader(content))
}

// Matching оставляет строки, из которых извлекается ссылка на документ.
func Matching(rows []Row) []Row {
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		if _, _, ok := r.Parse(); ok {
			out = append(out, r)
		}
	}
	return out
}

// BuildReferences - вся логика выбора без браузера: строки в порядке документа,
// запрос, масштаб и портал на входе, ссылки в хронологическом порядке на выходе.
func BuildReferences(docOrder []Row, q Query, zoom string, portal config.Portal) ([]Reference, error) {
	rows := q.Apply(Chronological(Matching(docOrder)))

	builder := ReferenceBuilder{
		BaseURL:      portal.BaseURL,
		CustomerPath: portal.CustomerPath,
		QueryParams:  portal.QueryParams,
	}

	refs := make([]Reference, 0, len(rows))
	for _, r := range rows {
		pagePath, compositeID, _ := r.Parse()
		ref, err := builder.Build(Target{PagePath: pagePath, CompositeID: compositeID, Zoom: zoom})
		if err != nil {
			return nil, fmt.Errorf("ошибка сборки ссылки: %w", err)
		}
		refs = append(refs, ref)
	}
	return refs, nil
}
