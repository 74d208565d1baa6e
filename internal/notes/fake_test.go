package notes

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/starford/notepane/internal/apperr"
	"github.com/starford/notepane/internal/models"
)

// fakeGateway is an in-memory gateway with switchable failures and call counters.
type fakeGateway struct {
	mu     sync.Mutex
	notes  map[string]models.Note
	nextID int
	clock  time.Time

	listErr, insertErr, updateErr, deleteErr error

	calls map[string]int
}

func newFakeGateway(seed ...models.Note) *fakeGateway {
	g := &fakeGateway{
		notes: make(map[string]models.Note),
		clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		calls: make(map[string]int),
	}
	for _, n := range seed {
		g.notes[n.ID] = n
	}
	return g
}

func (g *fakeGateway) tick() time.Time {
	g.clock = g.clock.Add(time.Minute)
	return g.clock
}

func (g *fakeGateway) count(op string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[op]
}

func (g *fakeGateway) mutations() int {
	return g.count("insert") + g.count("update") + g.count("delete")
}

func (g *fakeGateway) List(_ context.Context) ([]models.Note, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls["list"]++
	if g.listErr != nil {
		return nil, g.listErr
	}
	out := make([]models.Note, 0, len(g.notes))
	for _, n := range g.notes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (g *fakeGateway) Insert(_ context.Context, title, content string) (models.Note, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls["insert"]++
	if g.insertErr != nil {
		return models.Note{}, g.insertErr
	}
	g.nextID++
	n := models.Note{ID: fmt.Sprintf("n%d", g.nextID), Title: title, Content: content, UpdatedAt: g.tick()}
	g.notes[n.ID] = n
	return n, nil
}

func (g *fakeGateway) Update(_ context.Context, id, title, content string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls["update"]++
	if g.updateErr != nil {
		return g.updateErr
	}
	if _, ok := g.notes[id]; !ok {
		return apperr.ErrNotFound
	}
	g.notes[id] = models.Note{ID: id, Title: title, Content: content, UpdatedAt: g.tick()}
	return nil
}

func (g *fakeGateway) Delete(_ context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls["delete"]++
	if g.deleteErr != nil {
		return g.deleteErr
	}
	if _, ok := g.notes[id]; !ok {
		return apperr.ErrNotFound
	}
	delete(g.notes, id)
	return nil
}
