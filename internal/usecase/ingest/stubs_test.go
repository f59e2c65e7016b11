package ingest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"sns-ingest/internal/domain"
)

type memStore struct {
	mu      sync.Mutex
	records []domain.Record
	nextID  int64
	failing bool
	queries int
}

func (s *memStore) Query(_ context.Context, q domain.Query) ([]domain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++
	var out []domain.Record
	for _, r := range s.records {
		if s.match(r, q.Filters) {
			out = append(out, r)
		}
	}
	if q.OrderBy == "-start_time" {
		sort.SliceStable(out, func(i, j int) bool { return out[i].StartTime > out[j].StartTime })
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *memStore) match(r domain.Record, filters map[string]any) bool {
	for k, v := range filters {
		switch k {
		case "chat_id":
			if r.Scope != v.(string) {
				return false
			}
		case "id":
			found := false
			for _, id := range v.([]int64) {
				if id == r.ID {
					found = true
				}
			}
			if !found {
				return false
			}
		}
	}
	return true
}

func (s *memStore) Create(_ context.Context, r domain.Record) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return 0, errors.New("db down")
	}
	s.nextID++
	r.ID = s.nextID
	s.records = append(s.records, r)
	return r.ID, nil
}

func (s *memStore) Delete(_ context.Context, filters map[string]any) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.records[:0]
	n := 0
	for _, r := range s.records {
		if s.match(r, filters) {
			n++
			continue
		}
		kept = append(kept, r)
	}
	s.records = kept
	return n, nil
}

func (s *memStore) Search(_ context.Context, scopes, keywords []string, limit int) ([]domain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Record
	for _, r := range s.records {
		for _, kw := range keywords {
			if strings.Contains(r.Theme+r.Summary+r.Keywords+r.OriginalText, kw) {
				out = append(out, r)
				break
			}
		}
	}
	return out, nil
}

func (s *memStore) Count(_ context.Context, scope string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.records {
		if r.Scope == scope {
			n++
		}
	}
	return n, nil
}

func (s *memStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

type stubBridge struct {
	responses map[string]string
	errs      map[string]error
	delay     time.Duration
	started   chan struct{}
	release   chan struct{}
	calls     atomic.Int32
	inflight  atomic.Int32
	peak      atomic.Int32
}

func (b *stubBridge) Invoke(ctx context.Context, tool string, params map[string]any) (string, error) {
	b.calls.Add(1)
	cur := b.inflight.Add(1)
	defer b.inflight.Add(-1)
	for {
		p := b.peak.Load()
		if cur <= p || b.peak.CompareAndSwap(p, cur) {
			break
		}
	}
	if b.started != nil {
		select {
		case b.started <- struct{}{}:
		default:
		}
	}
	if b.release != nil {
		<-b.release
	}
	if b.delay > 0 {
		time.Sleep(b.delay)
	}
	if err, ok := b.errs[tool]; ok {
		return "", err
	}
	if id, ok := params["feed_id"].(string); ok {
		if resp, ok := b.responses[tool+"#"+id]; ok {
			return resp, nil
		}
	}
	resp, ok := b.responses[tool]
	if !ok {
		return "", fmt.Errorf("%s: %w", tool, domain.ErrToolNotFound)
	}
	return resp, nil
}

func (b *stubBridge) HasTool(_ context.Context, tool string) bool {
	for k := range b.responses {
		if k == tool || strings.HasPrefix(k, tool+"#") {
			return true
		}
	}
	return false
}

type stubGenerator struct {
	models map[string]domain.ModelConfig
	reply  string
	err    error
	mu     sync.Mutex
	prompt []string
}

func newStubGenerator(reply string) *stubGenerator {
	return &stubGenerator{models: map[string]domain.ModelConfig{domain.ModelRoleUtils: {Name: "mini"}}, reply: reply}
}

func (g *stubGenerator) Models() map[string]domain.ModelConfig { return g.models }

func (g *stubGenerator) Generate(_ context.Context, prompt string, _ domain.ModelConfig, _ string) (string, error) {
	g.mu.Lock()
	g.prompt = append(g.prompt, prompt)
	g.mu.Unlock()
	return g.reply, g.err
}

type stubImages struct{}

func (stubImages) Describe(_ context.Context, url string) (string, error) {
	if strings.Contains(url, "bad") {
		return "", errors.New("timeout")
	}
	return "desc " + url, nil
}
