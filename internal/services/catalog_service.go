package services

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"busmate/internal/apperrors"
	"busmate/internal/cache"
	"busmate/internal/models"
	"busmate/internal/repositories"
)

const routesCacheKey = "routes"

// RouteInput defines a new route. Stops, when set, is raw boarding location
// text (one per line or comma separated).
type RouteInput struct {
	Name        string
	Description string
	Fee         decimal.Decimal
	MaxSeats    int
	Geometry    string
	Stops       *string
}

// RoutePatch updates only the fields that are set.
type RoutePatch struct {
	Name        *string
	Description *string
	Fee         *decimal.Decimal
	MaxSeats    *int
	Geometry    *string
	Stops       *string
}

// cachedRoute keeps the WKB geometry, which models.Route hides from JSON.
type cachedRoute struct {
	models.Route
	WKB []byte `json:"wkb,omitempty"`
}

type CatalogService struct {
	repo  repositories.Repository
	cache *cache.CacheHelper
}

func NewCatalogService(repo repositories.Repository, cache *cache.CacheHelper) *CatalogService {
	return &CatalogService{repo: repo, cache: cache}
}

// MaxStopNameLength matches the size of the stored stop name columns.
const MaxStopNameLength = 200

// lineBreaks folds every line separator into "\n".
var lineBreaks = strings.NewReplacer(
	"\r\n", "\n",
	"\r", "\n",
	"\v", "\n",
	"\f", "\n",
	"\x1c", "\n",
	"\x1d", "\n",
	"\x1e", "\n",
	"\u0085", "\n",
	"\u2028", "\n",
	"\u2029", "\n",
)

// ParseStopNames splits raw text on newlines then commas, trims, drops empty
// names and keeps the first occurrence of duplicates.
func ParseStopNames(raw string) []string {
	raw = lineBreaks.Replace(raw)
	seen := map[string]bool{}
	var names []string
	for _, line := range strings.Split(raw, "\n") {
		for _, part := range strings.Split(line, ",") {
			name := strings.TrimSpace(part)
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

func validateRoute(name string, fee decimal.Decimal, maxSeats int) error {
	switch {
	case strings.TrimSpace(name) == "":
		return apperrors.Validation("name", "name is required")
	case utf8.RuneCountInString(name) > 100:
		return apperrors.Validation("name", "name must be at most 100 characters")
	case fee.IsNegative():
		return apperrors.Validation("fee", "fee must not be negative")
	case maxSeats <= 0:
		return apperrors.Validation("max_seats", "max seats must be positive")
	}
	return nil
}

func (s *CatalogService) DefineRoute(ctx context.Context, in RouteInput) (*models.Route, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := validateRoute(in.Name, in.Fee, in.MaxSeats); err != nil {
		return nil, err
	}
	wkbGeom, err := ParseGeometry(in.Geometry)
	if err != nil {
		return nil, err
	}

	route := &models.Route{
		Name:        in.Name,
		Description: in.Description,
		Fee:         in.Fee,
		MaxSeats:    in.MaxSeats,
		Geometry:    wkbGeom,
	}
	err = s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		if _, err := tx.Route().GetByName(ctx, route.Name); err == nil {
			return apperrors.ErrDuplicateRoute
		} else if !errors.Is(err, apperrors.ErrNotFound) {
			return err
		}
		if err := tx.Route().Create(ctx, route); err != nil {
			return err
		}
		if in.Stops != nil {
			if _, err := setStops(ctx, tx, route.ID, *in.Stops); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)

	logrus.WithFields(logrus.Fields{"route_id": route.ID, "name": route.Name}).Info("route defined")
	return s.repo.Route().GetByID(ctx, route.ID)
}

func (s *CatalogService) UpdateRoute(ctx context.Context, id uint, patch RoutePatch) (*models.Route, error) {
	err := s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		route, err := tx.Route().LockByID(ctx, id)
		if err != nil {
			return err
		}
		if patch.Name != nil {
			route.Name = strings.TrimSpace(*patch.Name)
		}
		if patch.Description != nil {
			route.Description = *patch.Description
		}
		if patch.Fee != nil {
			route.Fee = *patch.Fee
		}
		if patch.MaxSeats != nil {
			route.MaxSeats = *patch.MaxSeats
		}
		if patch.Geometry != nil {
			wkbGeom, err := ParseGeometry(*patch.Geometry)
			if err != nil {
				return err
			}
			route.Geometry = wkbGeom
		}
		if err := validateRoute(route.Name, route.Fee, route.MaxSeats); err != nil {
			return err
		}
		if err := tx.Route().Update(ctx, route); err != nil {
			return err
		}
		if patch.Stops != nil {
			if _, err := setStops(ctx, tx, route.ID, *patch.Stops); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return s.repo.Route().GetByID(ctx, id)
}

// SetBoardingStops redefines the ordered stops of a route from raw text.
func (s *CatalogService) SetBoardingStops(ctx context.Context, routeID uint, raw string) ([]models.BoardingLocation, error) {
	var stops []models.BoardingLocation
	err := s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		if _, err := tx.Route().LockByID(ctx, routeID); err != nil {
			return err
		}
		var err error
		stops, err = setStops(ctx, tx, routeID, raw)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return stops, nil
}

// setStops must run inside a transaction. Existing stops are only touched
// when their position changed; stops missing from raw are removed so that
// positions stay dense.
func setStops(ctx context.Context, tx repositories.Repository, routeID uint, raw string) ([]models.BoardingLocation, error) {
	existing, err := tx.BoardingLocation().ListByRoute(ctx, routeID)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]models.BoardingLocation, len(existing))
	for _, stop := range existing {
		byName[stop.Name] = stop
	}

	names := ParseStopNames(raw)
	for _, name := range names {
		if utf8.RuneCountInString(name) > MaxStopNameLength {
			return nil, apperrors.Validation("boarding_locations", "each boarding location must be at most 200 characters")
		}
	}
	keep := make(map[string]bool, len(names))
	for i, name := range names {
		position := i + 1
		keep[name] = true
		if stop, ok := byName[name]; ok {
			if stop.Position != position {
				if err := tx.BoardingLocation().UpdatePosition(ctx, stop.ID, position); err != nil {
					return nil, err
				}
			}
			continue
		}
		stop := &models.BoardingLocation{RouteID: routeID, Name: name, Position: position}
		if err := tx.BoardingLocation().Create(ctx, stop); err != nil {
			return nil, err
		}
	}
	for _, stop := range existing {
		if !keep[stop.Name] {
			if err := tx.BoardingLocation().Delete(ctx, stop.ID); err != nil {
				return nil, err
			}
		}
	}
	return tx.BoardingLocation().ListByRoute(ctx, routeID)
}

func (s *CatalogService) ListStops(ctx context.Context, routeID uint) ([]models.BoardingLocation, error) {
	if _, err := s.repo.Route().GetByID(ctx, routeID); err != nil {
		return nil, err
	}
	return s.repo.BoardingLocation().ListByRoute(ctx, routeID)
}

func (s *CatalogService) GetRoute(ctx context.Context, id uint) (*models.Route, error) {
	return s.repo.Route().GetByID(ctx, id)
}

// ListRoutes serves from cache when possible. Cache errors fall back to the repository.
func (s *CatalogService) ListRoutes(ctx context.Context) ([]models.Route, error) {
	var cached []cachedRoute
	if err := s.cache.Get(ctx, routesCacheKey, &cached); err == nil {
		routes := make([]models.Route, len(cached))
		for i, c := range cached {
			routes[i] = c.Route
			routes[i].Geometry = c.WKB
		}
		return routes, nil
	} else if !errors.Is(err, cache.ErrCacheNotFound) && !errors.Is(err, cache.ErrCacheNotAvailable) {
		logrus.WithError(err).Warn("catalog: route cache read failed")
	}

	routes, err := s.repo.Route().List(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]cachedRoute, len(routes))
	for i, r := range routes {
		entries[i] = cachedRoute{Route: r, WKB: r.Geometry}
	}
	if err := s.cache.Set(ctx, routesCacheKey, entries, cache.CatalogTTL); err != nil {
		logrus.WithError(err).Warn("catalog: route cache write failed")
	}
	return routes, nil
}

func (s *CatalogService) DeleteRoute(ctx context.Context, id uint) error {
	err := s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		if _, err := tx.Route().LockByID(ctx, id); err != nil {
			return err
		}
		n, err := tx.Application().CountByRoute(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return apperrors.ErrRouteInUse
		}
		return tx.Route().Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx)
	logrus.WithField("route_id", id).Info("route deleted")
	return nil
}

func (s *CatalogService) invalidate(ctx context.Context) {
	s.cache.SafeDelete(ctx, routesCacheKey)
}
