// Package flags resolves boolean feature flags for a company. A flag row can
// target one company or all of them, and one environment or all of them;
// the most specific row wins. Resolution never fails: a missing flag or a
// store error both read as disabled.
//
// Resolved values may be cached for a short TTL; lookups that fail are not
// cached.
package flags

import (
	"context"

	"transbot-ops/internal/common/cache"
	"transbot-ops/internal/common/logging"
	"transbot-ops/internal/storage"
)

// RequireSignedInternalCalls gates strict signature enforcement per company.
const RequireSignedInternalCalls = "require_signed_internal_calls"

// Finder loads candidate flag rows. storage.Storage satisfies it.
type Finder interface {
	FindFeatureFlags(ctx context.Context, companyID, environment, key string) ([]*storage.FeatureFlag, error)
}

type Gate struct {
	finder      Finder
	environment string
	cache       cache.Cache
	logger      logging.Logger
}

func NewGate(finder Finder, environment string, logger logging.Logger) *Gate {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Gate{
		finder:      finder,
		environment: environment,
		logger:      logger.WithFields(logging.Field{Key: "component", Value: "flags"}),
	}
}

// WithCache makes the gate remember resolved values in c.
func (g *Gate) WithCache(c cache.Cache) *Gate {
	g.cache = c
	return g
}

// Enabled reports whether key is on for companyID in the gate's
// environment.
func (g *Gate) Enabled(ctx context.Context, companyID, key string) bool {
	cacheKey := key + "|" + companyID
	if g.cache != nil {
		if v, ok := g.cache.Get(ctx, cacheKey); ok {
			if enabled, ok := v.(bool); ok {
				return enabled
			}
		}
	}

	rows, err := g.finder.FindFeatureFlags(ctx, companyID, g.environment, key)
	if err != nil {
		g.logger.Warn("Feature flag lookup failed, treating as disabled",
			logging.Field{Key: "flag", Value: key},
			logging.Field{Key: "company_id", Value: companyID},
			logging.Err(err),
		)
		return false
	}

	best := -1
	enabled := false
	for _, row := range rows {
		rank := specificity(row, companyID, g.environment)
		if rank > best {
			best = rank
			enabled = row.Enabled
		}
	}

	if g.cache != nil {
		_ = g.cache.Set(ctx, cacheKey, enabled, cache.DefaultExpiration)
	}
	return enabled
}

// Required implements the verifier's flag lookup for key.
func (g *Gate) Required(ctx context.Context, companyID, key string) bool {
	return g.Enabled(ctx, companyID, key)
}

// specificity ranks a row: company match outranks environment match.
// Rows that match neither the company nor the global wildcard are -1.
func specificity(row *storage.FeatureFlag, companyID, environment string) int {
	rank := 0
	switch row.CompanyID {
	case companyID:
		if companyID != storage.GlobalCompany {
			rank += 2
		}
	case storage.GlobalCompany:
	default:
		return -1
	}

	switch row.Environment {
	case environment:
		if environment != storage.AnyEnvironment {
			rank++
		}
	case storage.AnyEnvironment:
	default:
		return -1
	}
	return rank
}
