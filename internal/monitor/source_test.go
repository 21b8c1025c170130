package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"solana-sandwich-bot/internal/solana"
	"solana-sandwich-bot/internal/storage"
)

type fakePoll struct {
	untils []string
	pages  [][]*solana.Transaction
	cursor []string
}

func (g *fakePoll) PollRecentTransactions(_ context.Context, until string, _ int) ([]*solana.Transaction, string, error) {
	i := len(g.untils)
	g.untils = append(g.untils, until)
	if i >= len(g.pages) {
		return nil, until, nil
	}
	return g.pages[i], g.cursor[i], nil
}

type mapCursors struct {
	m    map[string]storage.Cursor
	sets int
}

func (c *mapCursors) Get(_ context.Context, source string) (*storage.Cursor, error) {
	cur, ok := c.m[source]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &cur, nil
}

func (c *mapCursors) Set(_ context.Context, cur *storage.Cursor) error {
	c.sets++
	c.m[cur.Source] = *cur
	return nil
}

func TestPollSource_ResumesAndSavesCursor(t *testing.T) {
	gw := &fakePoll{
		pages:  [][]*solana.Transaction{{{Signature: "s2", Slot: 12}, {Signature: "s1", Slot: 11}}},
		cursor: []string{"s2"},
	}
	cursors := &mapCursors{m: map[string]storage.Cursor{"poll": {Source: "poll", Slot: 10, Signature: "s0"}}}
	src := NewPollSource(gw, PollSourceOptions{Interval: time.Millisecond, Cursors: cursors})

	txs, err := src.Next(context.Background())
	if err != nil || len(txs) != 2 {
		t.Fatalf("Next = %d txs, %v", len(txs), err)
	}
	if _, err := src.Next(context.Background()); err != nil {
		t.Fatalf("second Next: %v", err)
	}

	if gw.untils[0] != "s0" || gw.untils[1] != "s2" {
		t.Errorf("polled until %v", gw.untils)
	}
	if got := cursors.m["poll"]; got.Signature != "s2" || got.Slot != 12 {
		t.Errorf("saved cursor %+v", got)
	}
	if cursors.sets != 1 {
		t.Errorf("cursor saved %d times, want 1", cursors.sets)
	}
}

func TestPollSource_WaitsOutInterval(t *testing.T) {
	src := NewPollSource(&fakePoll{}, PollSourceOptions{Interval: time.Hour})
	if _, err := src.Next(context.Background()); err != nil {
		t.Fatalf("first Next: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := src.Next(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected the second poll to wait, got %v", err)
	}
}

type fakeStream struct {
	ch      chan solana.LogNotification
	txs     map[string]*solana.Transaction
	fetched []string
}

func (g *fakeStream) SubscribeLogs(context.Context) (<-chan solana.LogNotification, error) {
	return g.ch, nil
}

func (g *fakeStream) FetchTransaction(_ context.Context, sig string) (*solana.Transaction, error) {
	g.fetched = append(g.fetched, sig)
	return g.txs[sig], nil
}

func TestStreamSource_FiltersNotifications(t *testing.T) {
	gw := &fakeStream{
		ch:  make(chan solana.LogNotification, 4),
		txs: map[string]*solana.Transaction{"swap": {Signature: "swap"}},
	}
	gw.ch <- solana.LogNotification{Signature: "failed", Logs: []string{"Program log: ray_log: AwAA"}, Err: "custom error"}
	gw.ch <- solana.LogNotification{Signature: "deposit", Logs: []string{"Program log: Instruction: Deposit"}}
	gw.ch <- solana.LogNotification{Signature: "swap", Logs: []string{"Program log: ray_log: AwAA"}}
	close(gw.ch)

	src := NewStreamSource(gw, nil)
	txs, err := src.Next(context.Background())
	if err != nil || len(txs) != 1 || txs[0].Signature != "swap" {
		t.Fatalf("Next = %v, %v", txs, err)
	}
	if len(gw.fetched) != 1 {
		t.Errorf("fetched %v", gw.fetched)
	}
	if _, err := src.Next(context.Background()); !errors.Is(err, ErrSourceClosed) {
		t.Errorf("expected ErrSourceClosed, got %v", err)
	}
}

func TestStreamSource_UnavailableTransaction(t *testing.T) {
	gw := &fakeStream{ch: make(chan solana.LogNotification, 1), txs: map[string]*solana.Transaction{}}
	gw.ch <- solana.LogNotification{Signature: "late", Logs: []string{"ray_log: AwAA"}}

	txs, err := NewStreamSource(gw, nil).Next(context.Background())
	if err != nil || txs != nil {
		t.Errorf("Next = %v, %v", txs, err)
	}
}
