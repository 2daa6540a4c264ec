// Package credentials получает логин и пароль для входа в портал.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

const (
	Username = "username"
	Password = "password"
)

var ErrMissingSecret = errors.New("секрет не найден")

// Provider возвращает значения запрошенных секретов.
// Отсутствующие имена просто не попадают в результат.
type Provider interface {
	GetSecrets(ctx context.Context, names []string) (map[string]string, error)
}

// MissingError перечисляет секреты, которые не нашел ни один источник.
type MissingError struct {
	Names []string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("%v: %s", ErrMissingSecret, strings.Join(e.Names, ", "))
}

func (e *MissingError) Unwrap() error {
	return ErrMissingSecret
}

// Chain опрашивает источники по порядку, спрашивая у следующего только то,
// чего не нашлось в предыдущих.
type Chain []Provider

func (c Chain) GetSecrets(ctx context.Context, names []string) (map[string]string, error) {
	found := make(map[string]string, len(names))

	for _, p := range c {
		missing := missingNames(names, found)
		if len(missing) == 0 {
			break
		}

		got, err := p.GetSecrets(ctx, missing)
		if err != nil {
			return nil, err
		}
		for _, name := range missing {
			if v := got[name]; v != "" {
				found[name] = v
			}
		}
	}

	if missing := missingNames(names, found); len(missing) > 0 {
		return nil, &MissingError{Names: missing}
	}
	return found, nil
}

func missingNames(names []string, found map[string]string) []string {
	var out []string
	for _, n := range names {
		if found[n] == "" {
			out = append(out, n)
		}
	}
	return out
}

// EnvProvider читает секреты из переменных окружения <Prefix>_<NAME>.
type EnvProvider struct {
	Prefix string
	lookup func(string) (string, bool)
}

func NewEnvProvider(prefix string) *EnvProvider {
	return &EnvProvider{Prefix: prefix, lookup: os.LookupEnv}
}

func (p *EnvProvider) Key(name string) string {
	key := strings.ToUpper(name)
	if p.Prefix != "" {
		key = p.Prefix + "_" + key
	}
	return key
}

func (p *EnvProvider) GetSecrets(_ context.Context, names []string) (map[string]string, error) {
	out := make(map[string]string, len(names))
	for _, name := range names {
		if v, ok := p.lookup(p.Key(name)); ok && v != "" {
			out[name] = v
		}
	}
	return out, nil
}
