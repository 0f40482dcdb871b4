package detect

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Detector roles. Handle and component models feed scale calibration, the
// side models report vehicle orientation, the remaining three vote on damage.
const (
	RoleHandle         = "handle"
	RoleComponent      = "component"
	RoleSideHunter     = "side_hunter"
	RoleSideKulas      = "side_kulas"
	RoleDamageSindhu   = "damage_sindhu"
	RoleDamageCDDCE    = "damage_cddce"
	RoleDamageCapstone = "damage_capstone"
)

// RequiredRoles lists every detector the pipeline depends on. A job aborts
// before touching any photo if one of these is unavailable.
var RequiredRoles = []string{
	RoleHandle,
	RoleComponent,
	RoleSideHunter,
	RoleSideKulas,
	RoleDamageSindhu,
	RoleDamageCDDCE,
	RoleDamageCapstone,
}

// DamageRoles are the independent voters feeding the consensus matcher, in
// the order their detections are flattened.
var DamageRoles = []string{RoleDamageSindhu, RoleDamageCDDCE, RoleDamageCapstone}

// Registry holds one detector per role and memoizes a successful
// availability check. Only one check runs at a time; concurrent callers wait
// for it.
type Registry struct {
	detectors map[string]*HTTPDetector
	log       zerolog.Logger

	mu     sync.Mutex
	loaded bool
}

// NewRegistry builds the role set against a serving base URL. Each role is
// served under its own path segment.
func NewRegistry(baseURL string, timeout time.Duration, log zerolog.Logger) *Registry {
	client := &http.Client{Timeout: timeout}
	detectors := make(map[string]*HTTPDetector, len(RequiredRoles))
	base := strings.TrimRight(baseURL, "/")
	for _, role := range RequiredRoles {
		detectors[role] = NewHTTPDetector(base+"/"+role, role, client)
	}
	return &Registry{detectors: detectors, log: log}
}

// Ensure verifies every required detector. Success is remembered and makes
// later calls free; a failure is not, so the next job retries after a
// transient serving outage instead of inheriting a stale error.
func (r *Registry) Ensure(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loaded {
		return nil
	}

	start := time.Now()
	for _, role := range RequiredRoles {
		if err := r.detectors[role].Ping(ctx); err != nil {
			r.log.Error().Err(err).Str("role", role).Msg("detector unavailable")
			return fmt.Errorf("detector capability unavailable: %w", err)
		}
		r.log.Debug().Str("role", role).Msg("detector available")
	}
	r.loaded = true
	r.log.Info().
		Int("roles", len(RequiredRoles)).
		Dur("elapsed", time.Since(start)).
		Msg("detector capability loaded")
	return nil
}

// Detector returns the detector for a role. Roles outside RequiredRoles do
// not exist.
func (r *Registry) Detector(role string) (Detector, error) {
	d, ok := r.detectors[role]
	if !ok {
		return nil, fmt.Errorf("unknown detector role %q", role)
	}
	return d, nil
}
