package credentials

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"golang.org/x/term"
)

// PromptProvider спрашивает секреты в терминале. Без терминала ничего не возвращает.
type PromptProvider struct {
	out         io.Writer
	interactive func() bool
	readLine    func(prompt string) (string, error)
	readSecret  func(prompt string) (string, error)
}

func NewPromptProvider() *PromptProvider {
	fd := int(os.Stdin.Fd())

	return &PromptProvider{
		out:         os.Stderr,
		interactive: func() bool { return term.IsTerminal(fd) },
		readLine:    readLine,
		readSecret: func(prompt string) (string, error) {
			fmt.Fprint(os.Stderr, prompt)
			b, err := term.ReadPassword(fd)
			fmt.Fprintln(os.Stderr)
			return string(b), err
		},
	}
}

func readLine(prompt string) (string, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		InterruptPrompt: "^C",
	})
	if err != nil {
		return "", err
	}
	defer rl.Close()

	return rl.Readline()
}

func (p *PromptProvider) GetSecrets(ctx context.Context, names []string) (map[string]string, error) {
	out := make(map[string]string, len(names))
	if !p.interactive() {
		return out, nil
	}

	for _, name := range names {
		read := p.readLine
		if isSecret(name) {
			read = p.readSecret
		}

		v, err := p.ask(ctx, read, promptFor(name))
		if err != nil {
			return nil, fmt.Errorf("ввод %s: %w", name, err)
		}
		if v != "" {
			out[name] = v
		}
	}
	return out, nil
}

func (p *PromptProvider) ask(ctx context.Context, read func(string) (string, error), prompt string) (string, error) {
	answerChan := make(chan string, 1)
	errChan := make(chan error, 1)

	go func() {
		answer, err := read(prompt)
		if err != nil {
			errChan <- err
			return
		}
		answerChan <- strings.TrimSpace(answer)
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case err := <-errChan:
		return "", err
	case answer := <-answerChan:
		return answer, nil
	}
}

func isSecret(name string) bool {
	return name == Password || strings.Contains(strings.ToLower(name), "password")
}

func promptFor(name string) string {
	switch name {
	case Username:
		return "Логин: "
	case Password:
		return "Пароль: "
	default:
		return name + ": "
	}
}
