// Package memory is a process-local implementation of repositories.Repository.
// It backs STORAGE=memory for local runs and the service tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"busmate/internal/apperrors"
	"busmate/internal/models"
	"busmate/internal/repositories"
)

type state struct {
	nextID       uint
	users        map[uint]models.User
	profiles     map[uint]models.Profile // keyed by user id
	routes       map[uint]models.Route
	stops        map[uint]models.BoardingLocation
	applications map[uint]models.Application
	messages     map[uint]models.SupportMessage
}

func newState() *state {
	return &state{
		users:        map[uint]models.User{},
		profiles:     map[uint]models.Profile{},
		routes:       map[uint]models.Route{},
		stops:        map[uint]models.BoardingLocation{},
		applications: map[uint]models.Application{},
		messages:     map[uint]models.SupportMessage{},
	}
}

func (s *state) clone() *state {
	c := &state{
		nextID:       s.nextID,
		users:        make(map[uint]models.User, len(s.users)),
		profiles:     make(map[uint]models.Profile, len(s.profiles)),
		routes:       make(map[uint]models.Route, len(s.routes)),
		stops:        make(map[uint]models.BoardingLocation, len(s.stops)),
		applications: make(map[uint]models.Application, len(s.applications)),
		messages:     make(map[uint]models.SupportMessage, len(s.messages)),
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.profiles {
		c.profiles[k] = v
	}
	for k, v := range s.routes {
		c.routes[k] = v
	}
	for k, v := range s.stops {
		c.stops[k] = v
	}
	for k, v := range s.applications {
		c.applications[k] = v
	}
	for k, v := range s.messages {
		c.messages[k] = v
	}
	return c
}

func (s *state) id() uint {
	s.nextID++
	return s.nextID
}

// Repository keeps all entities in maps guarded by one mutex.
// Transactions are serialized and restore a snapshot when fn fails.
type Repository struct {
	mu   sync.RWMutex
	txMu sync.Mutex
	data *state
	now  func() time.Time
}

func NewRepository() *Repository {
	return &Repository{data: newState(), now: time.Now}
}

func (r *Repository) User() repositories.UserRepository { return userRepo{r: r} }

func (r *Repository) Profile() repositories.ProfileRepository { return profileRepo{r: r} }

func (r *Repository) Route() repositories.RouteRepository { return routeRepo{r: r} }

func (r *Repository) BoardingLocation() repositories.BoardingLocationRepository {
	return stopRepo{r: r}
}

func (r *Repository) Application() repositories.ApplicationRepository { return applicationRepo{r: r} }

func (r *Repository) SupportMessage() repositories.SupportMessageRepository {
	return messageRepo{r: r}
}

// writeGuard serializes a write made outside a transaction with running
// transactions, so a rollback cannot discard it.
func (r *Repository) writeGuard(inTx bool) func() {
	if inTx {
		return func() {}
	}
	r.txMu.Lock()
	return r.txMu.Unlock
}

func (r *Repository) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()

	r.mu.RLock()
	snapshot := r.data.clone()
	r.mu.RUnlock()

	if err := fn(txRepository{r}); err != nil {
		r.mu.Lock()
		r.data = snapshot
		r.mu.Unlock()
		return err
	}
	return nil
}

func (r *Repository) Ping(ctx context.Context) error { return ctx.Err() }

func (r *Repository) Close() error { return nil }

// txRepository is handed to transaction callbacks; nested transactions join the outer one.
type txRepository struct {
	*Repository
}

func (t txRepository) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	return fn(t)
}

func (t txRepository) User() repositories.UserRepository { return userRepo{r: t.Repository, tx: true} }

func (t txRepository) Profile() repositories.ProfileRepository {
	return profileRepo{r: t.Repository, tx: true}
}

func (t txRepository) Route() repositories.RouteRepository { return routeRepo{r: t.Repository, tx: true} }

func (t txRepository) BoardingLocation() repositories.BoardingLocationRepository {
	return stopRepo{r: t.Repository, tx: true}
}

func (t txRepository) Application() repositories.ApplicationRepository {
	return applicationRepo{r: t.Repository, tx: true}
}

func (t txRepository) SupportMessage() repositories.SupportMessageRepository {
	return messageRepo{r: t.Repository, tx: true}
}

type userRepo struct {
	r  *Repository
	tx bool
}

func (u userRepo) Create(ctx context.Context, user *models.User) error {
	defer u.r.writeGuard(u.tx)()
	u.r.mu.Lock()
	defer u.r.mu.Unlock()
	for _, existing := range u.r.data.users {
		if existing.Username == user.Username {
			return apperrors.ErrDuplicateUsername
		}
	}
	user.ID = u.r.data.id()
	user.CreatedAt = u.r.now()
	user.UpdatedAt = user.CreatedAt
	stored := *user
	stored.Profile = nil
	u.r.data.users[user.ID] = stored
	return nil
}

func (u userRepo) Update(ctx context.Context, user *models.User) error {
	defer u.r.writeGuard(u.tx)()
	u.r.mu.Lock()
	defer u.r.mu.Unlock()
	if _, ok := u.r.data.users[user.ID]; !ok {
		return apperrors.NotFound("user")
	}
	user.UpdatedAt = u.r.now()
	stored := *user
	stored.Profile = nil
	u.r.data.users[user.ID] = stored
	return nil
}

func (u userRepo) GetByID(ctx context.Context, id uint) (*models.User, error) {
	u.r.mu.RLock()
	defer u.r.mu.RUnlock()
	user, ok := u.r.data.users[id]
	if !ok {
		return nil, apperrors.NotFound("user")
	}
	return u.r.withProfile(user), nil
}

func (u userRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	u.r.mu.RLock()
	defer u.r.mu.RUnlock()
	for _, user := range u.r.data.users {
		if user.Username == username {
			return u.r.withProfile(user), nil
		}
	}
	return nil, apperrors.NotFound("user")
}

// withProfile must be called with mu held.
func (r *Repository) withProfile(user models.User) *models.User {
	if p, ok := r.data.profiles[user.ID]; ok {
		user.Profile = &p
	}
	return &user
}

type profileRepo struct {
	r  *Repository
	tx bool
}

func (p profileRepo) GetByUserID(ctx context.Context, userID uint) (*models.Profile, error) {
	p.r.mu.RLock()
	defer p.r.mu.RUnlock()
	profile, ok := p.r.data.profiles[userID]
	if !ok {
		return nil, apperrors.NotFound("profile")
	}
	return &profile, nil
}

func (p profileRepo) Create(ctx context.Context, profile *models.Profile) error {
	defer p.r.writeGuard(p.tx)()
	p.r.mu.Lock()
	defer p.r.mu.Unlock()
	if _, ok := p.r.data.profiles[profile.UserID]; ok {
		return apperrors.ErrDuplicate
	}
	profile.ID = p.r.data.id()
	profile.CreatedAt = p.r.now()
	profile.UpdatedAt = profile.CreatedAt
	p.r.data.profiles[profile.UserID] = *profile
	return nil
}

func (p profileRepo) Update(ctx context.Context, profile *models.Profile) error {
	defer p.r.writeGuard(p.tx)()
	p.r.mu.Lock()
	defer p.r.mu.Unlock()
	if _, ok := p.r.data.profiles[profile.UserID]; !ok {
		return apperrors.NotFound("profile")
	}
	profile.UpdatedAt = p.r.now()
	p.r.data.profiles[profile.UserID] = *profile
	return nil
}

type routeRepo struct {
	r  *Repository
	tx bool
}

func (rr routeRepo) nameTaken(name string, exceptID uint) bool {
	for _, existing := range rr.r.data.routes {
		if existing.Name == name && existing.ID != exceptID {
			return true
		}
	}
	return false
}

func (rr routeRepo) Create(ctx context.Context, route *models.Route) error {
	defer rr.r.writeGuard(rr.tx)()
	rr.r.mu.Lock()
	defer rr.r.mu.Unlock()
	if rr.nameTaken(route.Name, 0) {
		return apperrors.ErrDuplicateRoute
	}
	route.ID = rr.r.data.id()
	route.CreatedAt = rr.r.now()
	route.UpdatedAt = route.CreatedAt
	stored := *route
	stored.BoardingLocations = nil
	rr.r.data.routes[route.ID] = stored
	return nil
}

func (rr routeRepo) Update(ctx context.Context, route *models.Route) error {
	defer rr.r.writeGuard(rr.tx)()
	rr.r.mu.Lock()
	defer rr.r.mu.Unlock()
	if _, ok := rr.r.data.routes[route.ID]; !ok {
		return apperrors.NotFound("route")
	}
	if rr.nameTaken(route.Name, route.ID) {
		return apperrors.ErrDuplicateRoute
	}
	route.UpdatedAt = rr.r.now()
	stored := *route
	stored.BoardingLocations = nil
	rr.r.data.routes[route.ID] = stored
	return nil
}

func (rr routeRepo) GetByID(ctx context.Context, id uint) (*models.Route, error) {
	rr.r.mu.RLock()
	defer rr.r.mu.RUnlock()
	route, ok := rr.r.data.routes[id]
	if !ok {
		return nil, apperrors.NotFound("route")
	}
	route.BoardingLocations = rr.r.stopsOf(id)
	return &route, nil
}

func (rr routeRepo) GetByName(ctx context.Context, name string) (*models.Route, error) {
	rr.r.mu.RLock()
	defer rr.r.mu.RUnlock()
	for _, route := range rr.r.data.routes {
		if route.Name == name {
			return &route, nil
		}
	}
	return nil, apperrors.NotFound("route")
}

func (rr routeRepo) List(ctx context.Context) ([]models.Route, error) {
	rr.r.mu.RLock()
	defer rr.r.mu.RUnlock()
	routes := make([]models.Route, 0, len(rr.r.data.routes))
	for _, route := range rr.r.data.routes {
		route.BoardingLocations = rr.r.stopsOf(route.ID)
		routes = append(routes, route)
	}
	sort.Slice(routes, func(i, j int) bool { return routes[i].Name < routes[j].Name })
	return routes, nil
}

// LockByID reads the route; transactions are already serialized by txMu.
func (rr routeRepo) LockByID(ctx context.Context, id uint) (*models.Route, error) {
	rr.r.mu.RLock()
	defer rr.r.mu.RUnlock()
	route, ok := rr.r.data.routes[id]
	if !ok {
		return nil, apperrors.NotFound("route")
	}
	return &route, nil
}

func (rr routeRepo) Delete(ctx context.Context, id uint) error {
	defer rr.r.writeGuard(rr.tx)()
	rr.r.mu.Lock()
	defer rr.r.mu.Unlock()
	if _, ok := rr.r.data.routes[id]; !ok {
		return apperrors.NotFound("route")
	}
	for _, app := range rr.r.data.applications {
		if app.RouteID == id {
			return apperrors.ErrRouteInUse
		}
	}
	for stopID, stop := range rr.r.data.stops {
		if stop.RouteID == id {
			delete(rr.r.data.stops, stopID)
		}
	}
	delete(rr.r.data.routes, id)
	return nil
}

// stopsOf must be called with mu held.
func (r *Repository) stopsOf(routeID uint) []models.BoardingLocation {
	var stops []models.BoardingLocation
	for _, stop := range r.data.stops {
		if stop.RouteID == routeID {
			stops = append(stops, stop)
		}
	}
	sort.Slice(stops, func(i, j int) bool {
		if stops[i].Position != stops[j].Position {
			return stops[i].Position < stops[j].Position
		}
		return stops[i].Name < stops[j].Name
	})
	return stops
}

type stopRepo struct {
	r  *Repository
	tx bool
}

func (s stopRepo) ListByRoute(ctx context.Context, routeID uint) ([]models.BoardingLocation, error) {
	s.r.mu.RLock()
	defer s.r.mu.RUnlock()
	return s.r.stopsOf(routeID), nil
}

func (s stopRepo) GetByRouteAndName(ctx context.Context, routeID uint, name string) (*models.BoardingLocation, error) {
	s.r.mu.RLock()
	defer s.r.mu.RUnlock()
	for _, stop := range s.r.data.stops {
		if stop.RouteID == routeID && stop.Name == name {
			return &stop, nil
		}
	}
	return nil, apperrors.NotFound("boarding location")
}

func (s stopRepo) Create(ctx context.Context, stop *models.BoardingLocation) error {
	defer s.r.writeGuard(s.tx)()
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	for _, existing := range s.r.data.stops {
		if existing.RouteID == stop.RouteID && existing.Name == stop.Name {
			return apperrors.ErrDuplicate
		}
	}
	stop.ID = s.r.data.id()
	s.r.data.stops[stop.ID] = *stop
	return nil
}

func (s stopRepo) UpdatePosition(ctx context.Context, id uint, position int) error {
	defer s.r.writeGuard(s.tx)()
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	stop, ok := s.r.data.stops[id]
	if !ok {
		return apperrors.NotFound("boarding location")
	}
	stop.Position = position
	s.r.data.stops[id] = stop
	return nil
}

func (s stopRepo) Delete(ctx context.Context, id uint) error {
	defer s.r.writeGuard(s.tx)()
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	delete(s.r.data.stops, id)
	return nil
}

type applicationRepo struct {
	r  *Repository
	tx bool
}

func (a applicationRepo) Create(ctx context.Context, app *models.Application) error {
	defer a.r.writeGuard(a.tx)()
	a.r.mu.Lock()
	defer a.r.mu.Unlock()
	if app.Status.IsActive() {
		for _, existing := range a.r.data.applications {
			if existing.UserID == app.UserID && existing.RouteID == app.RouteID && existing.Status.IsActive() {
				return apperrors.ErrDuplicateApplication
			}
		}
	}
	app.ID = a.r.data.id()
	if app.ApplicationDate.IsZero() {
		app.ApplicationDate = a.r.now()
	}
	app.UpdatedAt = a.r.now()
	a.r.data.applications[app.ID] = stripApplication(*app)
	return nil
}

func (a applicationRepo) Update(ctx context.Context, app *models.Application) error {
	defer a.r.writeGuard(a.tx)()
	a.r.mu.Lock()
	defer a.r.mu.Unlock()
	existing, ok := a.r.data.applications[app.ID]
	if !ok {
		return apperrors.NotFound("application")
	}
	if app.SeatNumber != nil {
		for _, other := range a.r.data.applications {
			if other.ID != app.ID && other.RouteID == app.RouteID &&
				other.SeatNumber != nil && *other.SeatNumber == *app.SeatNumber {
				return apperrors.InvalidState("seat number already assigned on this route")
			}
		}
	}
	app.ApplicationDate = existing.ApplicationDate
	app.UpdatedAt = a.r.now()
	a.r.data.applications[app.ID] = stripApplication(*app)
	return nil
}

func (a applicationRepo) GetByID(ctx context.Context, id uint) (*models.Application, error) {
	a.r.mu.RLock()
	defer a.r.mu.RUnlock()
	app, ok := a.r.data.applications[id]
	if !ok {
		return nil, apperrors.NotFound("application")
	}
	return a.r.hydrate(app), nil
}

func (a applicationRepo) List(ctx context.Context, filters repositories.ApplicationFilters) ([]models.Application, error) {
	a.r.mu.RLock()
	defer a.r.mu.RUnlock()
	apps := []models.Application{}
	for _, app := range a.r.data.applications {
		if filters.Status != nil && app.Status != *filters.Status {
			continue
		}
		if filters.RouteID != nil && app.RouteID != *filters.RouteID {
			continue
		}
		if filters.UserID != nil && app.UserID != *filters.UserID {
			continue
		}
		apps = append(apps, *a.r.hydrate(app))
	}
	sort.Slice(apps, func(i, j int) bool {
		if !apps[i].ApplicationDate.Equal(apps[j].ApplicationDate) {
			return apps[i].ApplicationDate.After(apps[j].ApplicationDate)
		}
		return apps[i].ID > apps[j].ID
	})
	return apps, nil
}

func (a applicationRepo) HasActive(ctx context.Context, userID, routeID uint) (bool, error) {
	a.r.mu.RLock()
	defer a.r.mu.RUnlock()
	for _, app := range a.r.data.applications {
		if app.UserID == userID && app.RouteID == routeID && app.Status.IsActive() {
			return true, nil
		}
	}
	return false, nil
}

func (a applicationRepo) CountByRouteAndStatus(ctx context.Context, routeID uint, status models.ApplicationStatus) (int64, error) {
	a.r.mu.RLock()
	defer a.r.mu.RUnlock()
	var n int64
	for _, app := range a.r.data.applications {
		if app.RouteID == routeID && app.Status == status {
			n++
		}
	}
	return n, nil
}

func (a applicationRepo) CountByRoute(ctx context.Context, routeID uint) (int64, error) {
	a.r.mu.RLock()
	defer a.r.mu.RUnlock()
	var n int64
	for _, app := range a.r.data.applications {
		if app.RouteID == routeID {
			n++
		}
	}
	return n, nil
}

// stripApplication drops preloaded associations and copies the seat pointer.
func stripApplication(app models.Application) models.Application {
	app.User = models.User{}
	app.Route = models.Route{}
	if app.SeatNumber != nil {
		seat := *app.SeatNumber
		app.SeatNumber = &seat
	}
	return app
}

// hydrate must be called with mu held.
func (r *Repository) hydrate(app models.Application) *models.Application {
	app.User = r.data.users[app.UserID]
	app.Route = r.data.routes[app.RouteID]
	if app.SeatNumber != nil {
		seat := *app.SeatNumber
		app.SeatNumber = &seat
	}
	return &app
}

type messageRepo struct {
	r  *Repository
	tx bool
}

func (m messageRepo) Create(ctx context.Context, msg *models.SupportMessage) error {
	defer m.r.writeGuard(m.tx)()
	m.r.mu.Lock()
	defer m.r.mu.Unlock()
	msg.ID = m.r.data.id()
	msg.CreatedAt = m.r.now()
	stored := *msg
	stored.User = models.User{}
	m.r.data.messages[msg.ID] = stored
	return nil
}

func (m messageRepo) ListByUser(ctx context.Context, userID uint) ([]models.SupportMessage, error) {
	m.r.mu.RLock()
	defer m.r.mu.RUnlock()
	var msgs []models.SupportMessage
	for _, msg := range m.r.data.messages {
		if msg.UserID == userID {
			msgs = append(msgs, msg)
		}
	}
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].ID > msgs[j].ID })
	return msgs, nil
}
