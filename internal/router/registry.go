package router

import (
	"context"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"maestro/internal/plan"
)

// Registry is the process-lifetime catalog of routers, indexed both by
// declared domain and by lowercase capability keyword. Registration is
// expected at startup; the lock exists so a late register cannot corrupt
// the indexes, not to promise ordering against in-flight dispatch.
type Registry struct {
	mu           sync.RWMutex
	byDomain     map[Domain][]Router
	byCapability map[string][]Router
	logger       *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		byDomain:     make(map[Domain][]Router),
		byCapability: make(map[string][]Router),
		logger:       logger,
	}
}

// Register indexes a router by its domain and by each of its capability
// keywords. Multiple routers may share a domain or a keyword.
func (r *Registry) Register(rt Router) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byDomain[rt.Domain()] = append(r.byDomain[rt.Domain()], rt)
	for _, cap := range rt.Capabilities() {
		key := strings.ToLower(cap)
		r.byCapability[key] = append(r.byCapability[key], rt)
	}

	r.logger.Debug("router registered",
		zap.String("name", rt.Name()),
		zap.String("domain", string(rt.Domain())),
		zap.Int("priority", rt.Priority()),
		zap.Int("capabilities", len(rt.Capabilities())))
}

// Unregister removes a router from both indexes.
func (r *Registry) Unregister(rt Router) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byDomain[rt.Domain()] = removeRouter(r.byDomain[rt.Domain()], rt)
	if len(r.byDomain[rt.Domain()]) == 0 {
		delete(r.byDomain, rt.Domain())
	}
	for _, cap := range rt.Capabilities() {
		key := strings.ToLower(cap)
		r.byCapability[key] = removeRouter(r.byCapability[key], rt)
		if len(r.byCapability[key]) == 0 {
			delete(r.byCapability, key)
		}
	}
}

func removeRouter(list []Router, rt Router) []Router {
	out := list[:0]
	for _, item := range list {
		if item != rt {
			out = append(out, item)
		}
	}
	return out
}

// RoutersForDomain returns the routers declaring the given domain, sorted
// by descending priority. The sort is stable, so equal priorities keep
// registration order.
func (r *Registry) RoutersForDomain(d Domain) []Router {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedByPriority(r.byDomain[d])
}

// FindRoutersForCapability matches exact lowercase capability keys first,
// then falls back to a substring scan over all capability keys, excluding
// routers already matched so no router appears twice. The combined result
// is sorted by descending priority.
func (r *Registry) FindRoutersForCapability(keyword string) []Router {
	key := strings.ToLower(strings.TrimSpace(keyword))
	if key == "" {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[Router]bool)
	var matched []Router
	for _, rt := range r.byCapability[key] {
		if !seen[rt] {
			seen[rt] = true
			matched = append(matched, rt)
		}
	}
	for capKey, routers := range r.byCapability {
		if capKey == key || !strings.Contains(capKey, key) {
			continue
		}
		for _, rt := range routers {
			if !seen[rt] {
				seen[rt] = true
				matched = append(matched, rt)
			}
		}
	}
	return sortedByPriority(matched)
}

// SelectOptimalRouter resolves the router for a step in two phases:
// domain-indexed routers in priority order first, then a keyword search
// over the step's underscore-separated type name. Routers are registered
// by coarse domain while step types are finer-grained; the keyword
// fallback lets a related-capability router pick up a step whose exact
// domain has no taker. Returns nil when nothing matches; the caller
// turns that into a failed result.
func (r *Registry) SelectOptimalRouter(ctx context.Context, step plan.OperationStep) Router {
	for _, rt := range r.RoutersForDomain(Domain(step.Domain)) {
		if rt.CanHandle(ctx, step) {
			return rt
		}
	}

	for _, keyword := range strings.Split(step.Type, "_") {
		if keyword == "" {
			continue
		}
		for _, rt := range r.FindRoutersForCapability(keyword) {
			if rt.CanHandle(ctx, step) {
				r.logger.Debug("router matched via capability fallback",
					zap.String("step", step.ID),
					zap.String("keyword", keyword),
					zap.String("router", rt.Name()))
				return rt
			}
		}
	}
	return nil
}

// All returns every registered router, sorted by descending priority.
func (r *Registry) All() []Router {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[Router]bool)
	var out []Router
	for _, routers := range r.byDomain {
		for _, rt := range routers {
			if !seen[rt] {
				seen[rt] = true
				out = append(out, rt)
			}
		}
	}
	return sortedByPriority(out)
}

func sortedByPriority(in []Router) []Router {
	out := append([]Router(nil), in...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority() > out[j].Priority()
	})
	return out
}
