package quote

import (
	"context"
	"sync"
	"time"

	"github.com/guttosm/stockpulse/internal/domain/models"
	"github.com/guttosm/stockpulse/internal/upstream"
)

// barsCall records one DailyBars invocation.
type barsCall struct {
	symbol     string
	start, end time.Time
}

// stubClient is an in-memory upstream.Client that counts calls.
// Symbols listed in hang block until the channel is closed.
type stubClient struct {
	mu sync.Mutex

	fast    map[string]upstream.Snapshot
	fastErr map[string]error
	full    map[string]upstream.Snapshot
	fullErr map[string]error
	bars    map[string][]models.Bar
	barsErr map[string]error
	hang    map[string]chan struct{}

	fastCalls map[string]int
	fullCalls map[string]int
	barsCalls []barsCall
}

func newStubClient() *stubClient {
	return &stubClient{
		fast:      map[string]upstream.Snapshot{},
		fastErr:   map[string]error{},
		full:      map[string]upstream.Snapshot{},
		fullErr:   map[string]error{},
		bars:      map[string][]models.Bar{},
		barsErr:   map[string]error{},
		hang:      map[string]chan struct{}{},
		fastCalls: map[string]int{},
		fullCalls: map[string]int{},
	}
}

var _ upstream.Client = (*stubClient)(nil)

func (s *stubClient) wait(symbol string) {
	s.mu.Lock()
	ch := s.hang[symbol]
	s.mu.Unlock()
	if ch != nil {
		<-ch
	}
}

func (s *stubClient) FastSnapshot(_ context.Context, symbol string) (upstream.Snapshot, error) {
	s.wait(symbol)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fastCalls[symbol]++
	if err := s.fastErr[symbol]; err != nil {
		return nil, err
	}
	snap, ok := s.fast[symbol]
	if !ok {
		return nil, upstream.ErrNotFound
	}
	return snap, nil
}

func (s *stubClient) FullSnapshot(_ context.Context, symbol string) (upstream.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fullCalls[symbol]++
	if err := s.fullErr[symbol]; err != nil {
		return nil, err
	}
	snap, ok := s.full[symbol]
	if !ok {
		return nil, upstream.ErrNotFound
	}
	return snap, nil
}

func (s *stubClient) DailyBars(_ context.Context, symbol string, start, end time.Time) ([]models.Bar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.barsCalls = append(s.barsCalls, barsCall{symbol: symbol, start: start, end: end})
	if err := s.barsErr[symbol]; err != nil {
		return nil, err
	}
	return s.bars[symbol], nil
}

func (s *stubClient) fastCount(symbol string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fastCalls[symbol]
}

func (s *stubClient) upstreamCalls(symbol string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.fastCalls[symbol] + s.fullCalls[symbol]
	for _, c := range s.barsCalls {
		if c.symbol == symbol {
			n++
		}
	}
	return n
}

func (s *stubClient) barsSymbols() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.barsCalls))
	for _, c := range s.barsCalls {
		out = append(out, c.symbol)
	}
	return out
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
