package credentials

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticProvider struct {
	values map[string]string
	err    error
	asked  [][]string
}

func (p *staticProvider) GetSecrets(_ context.Context, names []string) (map[string]string, error) {
	p.asked = append(p.asked, names)
	if p.err != nil {
		return nil, p.err
	}
	out := map[string]string{}
	for _, n := range names {
		if v, ok := p.values[n]; ok {
			out[n] = v
		}
	}
	return out, nil
}

func envFrom(m map[string]string) *EnvProvider {
	p := NewEnvProvider("PAYFETCH")
	p.lookup = func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
	return p
}

func TestEnvProvider(t *testing.T) {
	p := envFrom(map[string]string{"PAYFETCH_USERNAME": "jane@example.com", "PAYFETCH_PASSWORD": ""})

	got, err := p.GetSecrets(context.Background(), []string{Username, Password})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{Username: "jane@example.com"}, got)

	assert.Equal(t, "PAYFETCH_PASSWORD", p.Key(Password))
	assert.Equal(t, "TOKEN", NewEnvProvider("").Key("token"))
}

func TestChain_AsksOnlyForMissing(t *testing.T) {
	env := envFrom(map[string]string{"PAYFETCH_USERNAME": "jane@example.com"})
	prompt := &staticProvider{values: map[string]string{Username: "other", Password: "s3cret"}}

	got, err := Chain{env, prompt}.GetSecrets(context.Background(), []string{Username, Password})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{Username: "jane@example.com", Password: "s3cret"}, got)
	assert.Equal(t, [][]string{{Password}}, prompt.asked)
}

func TestChain_StopsWhenComplete(t *testing.T) {
	first := &staticProvider{values: map[string]string{Username: "u", Password: "p"}}
	second := &staticProvider{}

	_, err := Chain{first, second}.GetSecrets(context.Background(), []string{Username, Password})
	require.NoError(t, err)
	assert.Empty(t, second.asked)
}

func TestChain_Missing(t *testing.T) {
	_, err := Chain{&staticProvider{values: map[string]string{Username: "u"}}}.
		GetSecrets(context.Background(), []string{Username, Password})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingSecret)

	var missing *MissingError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{Password}, missing.Names)
}

func TestChain_ProviderError(t *testing.T) {
	boom := errors.New("vault unavailable")

	_, err := Chain{&staticProvider{err: boom}}.GetSecrets(context.Background(), []string{Username})
	assert.ErrorIs(t, err, boom)
}

func TestPromptProvider(t *testing.T) {
	var prompts []string
	p := &PromptProvider{
		interactive: func() bool { return true },
		readLine: func(prompt string) (string, error) {
			prompts = append(prompts, prompt)
			return " jane@example.com \n", nil
		},
		readSecret: func(prompt string) (string, error) {
			prompts = append(prompts, prompt)
			return "s3cret", nil
		},
	}

	got, err := p.GetSecrets(context.Background(), []string{Username, Password})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{Username: "jane@example.com", Password: "s3cret"}, got)
	assert.Equal(t, []string{"Логин: ", "Пароль: "}, prompts)
}

func TestPromptProvider_NotInteractive(t *testing.T) {
	p := &PromptProvider{
		interactive: func() bool { return false },
		readLine: func(string) (string, error) {
			t.Fatal("prompt must not be shown without a terminal")
			return "", nil
		},
	}

	got, err := p.GetSecrets(context.Background(), []string{Username})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPromptProvider_ReadError(t *testing.T) {
	p := &PromptProvider{
		interactive: func() bool { return true },
		readSecret:  func(string) (string, error) { return "", errors.New("EOF") },
	}

	_, err := p.GetSecrets(context.Background(), []string{Password})
	assert.EqualError(t, err, "ввод password: EOF")
}

func TestPromptProvider_ContextCancelled(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	p := &PromptProvider{
		interactive: func() bool { return true },
		readLine: func(string) (string, error) {
			<-release
			return "late", nil
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.GetSecrets(ctx, []string{Username})
	assert.ErrorIs(t, err, context.Canceled)
}
