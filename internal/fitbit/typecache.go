package fitbit

import (
	"context"
	"errors"
	"sync"
	"time"
)

// BicycleCategoryName is the taxonomy node name that classifies an activity
// type as cycling. The match is exact and case sensitive.
const BicycleCategoryName = "Bicycling"

// typeCacheTTL bounds how long a resolved type set is trusted before the
// taxonomy is fetched again.
const typeCacheTTL = 2 * time.Hour

// ErrNoCyclingTypes is returned when the taxonomy contains no Bicycling
// category. Activities cannot be filtered safely without a type set.
var ErrNoCyclingTypes = errors.New("no activity types classified as " + BicycleCategoryName)

type categoryLister interface {
	ActivityCategories(ctx context.Context) ([]Category, error)
}

// TypeCache resolves and caches the set of cycling activity type ids. Each
// sync loop owns its own instance; there is no cross-loop sharing.
type TypeCache struct {
	mu          sync.Mutex
	types       map[int]struct{}
	lastRefresh time.Time
	now         func() time.Time
}

// NewTypeCache returns an empty cache.
func NewTypeCache() *TypeCache {
	return &TypeCache{now: time.Now}
}

// CyclingTypes returns the current cycling type set, refetching the
// taxonomy when the cache is empty or older than its horizon. An empty
// result is an error and is never cached, so the next call retries.
func (c *TypeCache) CyclingTypes(ctx context.Context, api categoryLister) (map[int]struct{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.now().Sub(c.lastRefresh) > typeCacheTTL {
		c.types = nil
	}

	if len(c.types) == 0 {
		categories, err := api.ActivityCategories(ctx)
		if err != nil {
			return nil, err
		}
		c.types = collectCyclingTypes(categories)
		c.lastRefresh = c.now()
	}

	if len(c.types) == 0 {
		return nil, ErrNoCyclingTypes
	}
	return c.types, nil
}

// collectCyclingTypes gathers the ids of every leaf activity under a
// category or subcategory named Bicycling. Subcategories nest one level
// deep in the provider's taxonomy.
func collectCyclingTypes(categories []Category) map[int]struct{} {
	types := make(map[int]struct{})
	for _, category := range categories {
		if category.Name == BicycleCategoryName {
			for _, activity := range category.Activities {
				types[activity.ID] = struct{}{}
			}
		}
		for _, sub := range category.SubCategories {
			if sub.Name != BicycleCategoryName {
				continue
			}
			for _, activity := range sub.Activities {
				types[activity.ID] = struct{}{}
			}
		}
	}
	return types
}
