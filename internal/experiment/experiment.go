// Package experiment resolves feature-experiment variants from the
// assignment service, falling back to control when the user is not enrolled
// or the service cannot answer.
package experiment

import (
	"context"
	"log/slog"
	"sync"

	"streamhub/internal/api"
)

// VariantControl is the default experience, used for both fallback paths.
const VariantControl = "control"

// Source says how a variant was decided. "not-enrolled" is a definitive
// answer from the service; "unavailable" means the service could not be
// asked. Both resolve to control but are kept distinct for diagnostics.
type Source string

const (
	SourceAssigned    Source = "assigned"
	SourceNotEnrolled Source = "not-enrolled"
	SourceUnavailable Source = "unavailable"
)

// Assigner fetches experiment assignments. Satisfied by *api.Client.
type Assigner interface {
	FetchAssignment(ctx context.Context, experiment string) (*api.ExperimentAssignment, error)
}

type resolution struct {
	variant string
	source  Source
}

// Resolver answers variant lookups, caching definitive answers per
// experiment. Unavailable results are not cached, so a recovered service is
// consulted on the next lookup.
type Resolver struct {
	assigner Assigner
	logger   *slog.Logger

	mu    sync.Mutex
	cache map[string]resolution
}

func NewResolver(assigner Assigner, logger *slog.Logger) *Resolver {
	return &Resolver{
		assigner: assigner,
		logger:   logger,
		cache:    make(map[string]resolution),
	}
}

// Variant returns the variant for an experiment along with how it was
// decided. Failures to reach the assignment service are logged and resolve
// to control.
func (r *Resolver) Variant(ctx context.Context, experiment string) (string, Source) {
	r.mu.Lock()
	if res, ok := r.cache[experiment]; ok {
		r.mu.Unlock()
		return res.variant, res.source
	}
	r.mu.Unlock()

	assignment, err := r.assigner.FetchAssignment(ctx, experiment)
	if err != nil {
		r.logger.Warn("experiment service unavailable", "experiment", experiment, "error", err)
		return VariantControl, SourceUnavailable
	}

	res := resolution{variant: VariantControl, source: SourceNotEnrolled}
	if assignment.Enrolled && assignment.Variant != "" {
		res = resolution{variant: assignment.Variant, source: SourceAssigned}
	}

	r.mu.Lock()
	r.cache[experiment] = res
	r.mu.Unlock()
	return res.variant, res.source
}
