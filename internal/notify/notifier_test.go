package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-sandwich-bot/internal/domain"
)

type recordingSender struct {
	name  string
	fails int // fail this many sends before succeeding

	mu     sync.Mutex
	calls  int
	titles []string
}

func (s *recordingSender) Send(_ context.Context, title, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.fails {
		return errors.New("unavailable")
	}
	s.titles = append(s.titles, title)
	return nil
}

func (s *recordingSender) Name() string { return s.name }

func TestNotifier_FiltersEvents(t *testing.T) {
	s := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{s}, []string{"front_only_landed"}, nil)

	require.NoError(t, n.Notify(context.Background(), "both_landed_profitable", "ignored", "msg"))
	require.NoError(t, n.Notify(context.Background(), "front_only_landed", "kept", "msg"))
	require.NoError(t, n.NotifyAll(context.Background(), "forced", "msg"))

	assert.Equal(t, []string{"kept", "forced"}, s.titles)
}

func TestNotifier_RetriesThenSucceeds(t *testing.T) {
	s := &recordingSender{name: "flaky", fails: 2}
	n := NewNotifier([]Sender{s}, nil, nil, WithRetry(3, 0))

	require.NoError(t, n.NotifyAll(context.Background(), "title", "msg"))
	assert.Equal(t, 3, s.calls)
}

func TestNotifier_GivesUpAfterAttempts(t *testing.T) {
	broken := &recordingSender{name: "broken", fails: 10}
	healthy := &recordingSender{name: "healthy"}
	n := NewNotifier([]Sender{broken, healthy}, nil, nil, WithRetry(3, 0))

	err := n.NotifyAll(context.Background(), "title", "msg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
	assert.Equal(t, 3, broken.calls)
	assert.Equal(t, []string{"title"}, healthy.titles, "one failing sender must not block the others")
}

func TestOutcomeAlerter_PartialBypassesFilter(t *testing.T) {
	s := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{s}, []string{"both_landed_profitable"}, nil)
	a := NewOutcomeAlerter(n)

	partial := &domain.ExecutionOutcome{BundleID: "b1", Kind: domain.OutcomeFrontOnlyLanded, FinalState: domain.StateBackFailed}
	neither := &domain.ExecutionOutcome{BundleID: "b2", Kind: domain.OutcomeNeitherLanded, FinalState: domain.StateFrontFailed}

	require.NoError(t, a.Alert(context.Background(), partial))
	require.NoError(t, a.Alert(context.Background(), neither))

	require.Len(t, s.titles, 1)
	assert.Contains(t, s.titles[0], "Partial fill")
}

func TestTelegramSender_Send(t *testing.T) {
	var got map[string]string
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewTelegramSender("TOKEN", "42", srv.URL)
	require.NoError(t, s.Send(context.Background(), "Partial fill", "bundle: b1"))

	assert.Equal(t, "/botTOKEN/sendMessage", path)
	assert.Equal(t, "42", got["chat_id"])
	assert.Equal(t, "Markdown", got["parse_mode"])
	assert.Equal(t, "*Partial fill*\nbundle: b1", got["text"])
}

func TestTelegramSender_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"ok":false,"description":"chat not found"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	err := NewTelegramSender("TOKEN", "42", srv.URL).Send(context.Background(), "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Contains(t, err.Error(), "chat not found")
}

func TestDiscordSender_Send(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.True(t, strings.HasPrefix(r.Header.Get("Content-Type"), "application/json"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	require.NoError(t, NewDiscordSender(srv.URL).Send(context.Background(), "Bundle", "landed"))
	assert.Equal(t, "**Bundle**\nlanded", got["content"])
}

func TestFormatOutcome(t *testing.T) {
	msg := formatOutcome(&domain.ExecutionOutcome{
		BundleID:        "b1",
		VictimSignature: "victim",
		FinalState:      domain.StateBackFailed,
		FrontSignature:  "front",
		BackSignature:   "back",
		ExpectedProfit:  34,
		Error:           "confirmation timeout",
	})
	for _, want := range []string{"bundle: b1", "front: front", "back: back", "expected profit: 34", "error: confirmation timeout"} {
		assert.Contains(t, msg, want)
	}
	assert.NotContains(t, msg, "realized profit")
}
