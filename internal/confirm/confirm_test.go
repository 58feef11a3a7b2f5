package confirm

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pasteup/internal/config"
	"pasteup/internal/event"
)

func testRequest() Request {
	return Request{
		EventID:   "ev-1",
		Kind:      event.KindDrop,
		FileNames: []string{"shot.png"},
		Provider:  "imgur",
	}
}

func TestGateBypassedWhenFlagOff(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.SetConfirmBeforeUpload(false)

	prompter := &StaticPrompter{Response: Response{Decision: Declined}}
	gate := NewGate(cfg, prompter, nil, nil)

	got := gate.Decide(context.Background(), testRequest())

	assert.Equal(t, Approved, got)
	assert.Empty(t, prompter.Calls(), "prompter must not be consulted while the flag is off")
}

func TestGatePromptsOncePerEvent(t *testing.T) {
	cfg := config.DefaultConfig()

	prompter := &StaticPrompter{Response: Response{Decision: Approved}}
	gate := NewGate(cfg, prompter, nil, nil)

	got := gate.Decide(context.Background(), testRequest())

	assert.Equal(t, Approved, got)
	require.Len(t, prompter.Calls(), 1)
	assert.Equal(t, "ev-1", prompter.Calls()[0].EventID)
}

func TestGateDeclined(t *testing.T) {
	cfg := config.DefaultConfig()

	prompter := &StaticPrompter{Response: Response{Decision: Declined}}
	gate := NewGate(cfg, prompter, nil, nil)

	assert.Equal(t, Declined, gate.Decide(context.Background(), testRequest()))
	assert.True(t, cfg.ConfirmBeforeUpload(), "declining must not flip the flag")
}

func TestGatePromptErrorMeansUnknown(t *testing.T) {
	cfg := config.DefaultConfig()

	prompter := &StaticPrompter{Err: errors.New("dialog closed")}
	gate := NewGate(cfg, prompter, nil, nil)

	assert.Equal(t, Unknown, gate.Decide(context.Background(), testRequest()))
}

func TestGateNilPrompterMeansUnknown(t *testing.T) {
	cfg := config.DefaultConfig()
	gate := NewGate(cfg, nil, nil, nil)

	assert.Equal(t, Unknown, gate.Decide(context.Background(), testRequest()))
}

func TestGateRememberFlipsFlagAndPersists(t *testing.T) {
	cfg := config.DefaultConfig()
	require.True(t, cfg.ConfirmBeforeUpload())

	var persisted int
	persist := func(c *config.Config) error {
		persisted++
		assert.False(t, c.ConfirmBeforeUpload(), "flag must be flipped before persisting")
		return nil
	}

	prompter := &StaticPrompter{Response: Response{Decision: Approved, Remember: true}}
	gate := NewGate(cfg, prompter, persist, nil)

	got := gate.Decide(context.Background(), testRequest())

	assert.Equal(t, Approved, got)
	assert.False(t, cfg.ConfirmBeforeUpload())
	assert.Equal(t, 1, persisted)

	// The next event must not prompt again.
	assert.Equal(t, Approved, gate.Decide(context.Background(), testRequest()))
	assert.Len(t, prompter.Calls(), 1)
}

func TestGatePersistFailureSwallowed(t *testing.T) {
	cfg := config.DefaultConfig()

	persist := func(*config.Config) error { return errors.New("disk full") }
	prompter := &StaticPrompter{Response: Response{Decision: Approved, Remember: true}}
	gate := NewGate(cfg, prompter, persist, nil)

	got := gate.Decide(context.Background(), testRequest())

	assert.Equal(t, Approved, got, "persist failure must not fail the upload")
	assert.False(t, cfg.ConfirmBeforeUpload(), "in-memory flip survives the persist failure")
}

func TestGateRememberIgnoredOnDecline(t *testing.T) {
	cfg := config.DefaultConfig()

	prompter := &StaticPrompter{Response: Response{Decision: Declined, Remember: true}}
	gate := NewGate(cfg, prompter, nil, nil)

	assert.Equal(t, Declined, gate.Decide(context.Background(), testRequest()))
	assert.True(t, cfg.ConfirmBeforeUpload())
}

func TestTerminalPrompter(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Response
	}{
		{"approve", "y\n", Response{Decision: Approved}},
		{"approve word", "YES\n", Response{Decision: Approved}},
		{"always", "a\n", Response{Decision: Approved, Remember: true}},
		{"decline", "n\n", Response{Decision: Declined}},
		{"garbage", "whatever\n", Response{Decision: Unknown}},
		{"empty line", "\n", Response{Decision: Unknown}},
		{"eof", "", Response{Decision: Unknown}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			p := NewTerminalPrompter(strings.NewReader(tt.input), &out)

			got, err := p.Prompt(context.Background(), testRequest())

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Contains(t, out.String(), "shot.png")
			assert.Contains(t, out.String(), "imgur")
		})
	}
}

func TestTerminalPrompterCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewTerminalPrompter(strings.NewReader("y\n"), &bytes.Buffer{})
	_, err := p.Prompt(ctx, testRequest())

	assert.Error(t, err)
}
