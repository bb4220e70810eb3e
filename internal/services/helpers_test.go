package services

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"busmate/internal/events"
	"busmate/internal/models"
	"busmate/internal/repositories/memory"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.PassStatusChanged
}

func (p *recordingPublisher) PublishStatusChanged(_ context.Context, evt events.PassStatusChanged) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

func (p *recordingPublisher) statuses() []models.ApplicationStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.ApplicationStatus, len(p.events))
	for i, e := range p.events {
		out[i] = e.Status
	}
	return out
}

type fixture struct {
	repo      *memory.Repository
	catalog   *CatalogService
	directory *DirectoryService
	workflow  *WorkflowService
	events    *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := memory.NewRepository()
	directory := NewDirectoryService(repo, NewValidator(), t.TempDir())
	directory.bcryptCost = bcrypt.MinCost
	pub := &recordingPublisher{}
	return &fixture{
		repo:      repo,
		catalog:   NewCatalogService(repo, nil),
		directory: directory,
		workflow:  NewWorkflowService(repo, directory, pub),
		events:    pub,
	}
}

func (f *fixture) user(t *testing.T, username string) *models.User {
	t.Helper()
	u := &models.User{Username: username, FirstName: "Test", LastName: username}
	require.NoError(t, f.repo.User().Create(context.Background(), u))
	return u
}

func (f *fixture) route(t *testing.T, name string, fee int64, seats int, stops string) *models.Route {
	t.Helper()
	in := RouteInput{Name: name, Fee: decimal.NewFromInt(fee), MaxSeats: seats}
	if stops != "" {
		in.Stops = &stops
	}
	r, err := f.catalog.DefineRoute(context.Background(), in)
	require.NoError(t, err)
	return r
}
