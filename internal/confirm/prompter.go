package confirm

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// TerminalPrompter asks for a decision on an interactive terminal.
// Answers: y approves, a approves and remembers, n declines; anything
// else, including EOF, is unknown.
type TerminalPrompter struct {
	out io.Writer

	mu sync.Mutex
	br *bufio.Reader
}

// NewTerminalPrompter creates a prompter reading answers from in and
// writing questions to out.
func NewTerminalPrompter(in io.Reader, out io.Writer) *TerminalPrompter {
	return &TerminalPrompter{out: out, br: bufio.NewReader(in)}
}

// Prompt implements Prompter.
func (p *TerminalPrompter) Prompt(ctx context.Context, req Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	provider := req.Provider
	if provider == "" {
		provider = "the configured uploader"
	}
	fmt.Fprintf(p.out, "Upload %s to %s? [y]es / [a]lways / [n]o: ",
		describeFiles(req.FileNames), provider)

	line, err := p.br.ReadString('\n')
	if err != nil && line == "" {
		// EOF or closed input is a dismissal, not a failure.
		return Response{Decision: Unknown}, nil
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return Response{Decision: Approved}, nil
	case "a", "always":
		return Response{Decision: Approved, Remember: true}, nil
	case "n", "no":
		return Response{Decision: Declined}, nil
	default:
		return Response{Decision: Unknown}, nil
	}
}

func describeFiles(names []string) string {
	switch len(names) {
	case 0:
		return "1 file"
	case 1:
		return fmt.Sprintf("%q", names[0])
	default:
		return fmt.Sprintf("%d files (%s)", len(names), strings.Join(names, ", "))
	}
}

// StaticPrompter returns a fixed response for every prompt. The daemon
// uses it when no interactive prompter is attached; tests use it to
// script decisions.
type StaticPrompter struct {
	Response Response
	Err      error

	mu    sync.Mutex
	calls []Request
}

// Prompt implements Prompter.
func (p *StaticPrompter) Prompt(ctx context.Context, req Request) (Response, error) {
	p.mu.Lock()
	p.calls = append(p.calls, req)
	p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Response{}, err
	}
	return p.Response, p.Err
}

// Calls returns the requests seen so far.
func (p *StaticPrompter) Calls() []Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Request, len(p.calls))
	copy(out, p.calls)
	return out
}
