package nutrition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const defaultProviderTimeout = 10 * time.Second

// Lookup outcomes passed to an Observer.
const (
	OutcomeHit   = "hit"
	OutcomeMiss  = "miss"
	OutcomeError = "error"
)

// Observer is notified once per provider attempt.
type Observer func(provider, outcome string)

type Resolver struct {
	providers []Provider
	store     Store
	fallback  Provider
	timeout   time.Duration
	logger    *slog.Logger
	observe   Observer
}

type Option func(*Resolver)

// WithStore persists primary-tier results so later lookups hit the cache.
func WithStore(s Store) Option {
	return func(r *Resolver) { r.store = s }
}

// WithFallback replaces the built-in table used by ResolveOrEstimate.
func WithFallback(p Provider) Option {
	return func(r *Resolver) { r.fallback = p }
}

func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

func WithObserver(fn Observer) Option {
	return func(r *Resolver) { r.observe = fn }
}

// NewResolver builds a resolver that tries providers in the given order.
// Nil providers are skipped so optional layers can be passed unconditionally.
func NewResolver(providers []Provider, opts ...Option) *Resolver {
	r := &Resolver{
		fallback: BuiltinTable{},
		timeout:  defaultProviderTimeout,
		logger:   slog.Default(),
	}
	for _, p := range providers {
		if p != nil {
			r.providers = append(r.providers, p)
		}
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Providers lists the chain names in lookup order.
func (r *Resolver) Providers() []string {
	out := make([]string, 0, len(r.providers))
	for _, p := range r.providers {
		out = append(out, p.Name())
	}
	return out
}

// Lookup walks the provider chain and returns the first per-100g answer.
func (r *Resolver) Lookup(ctx context.Context, name string) (Per100g, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Per100g{}, fmt.Errorf("food name is required: %w", ErrNotFound)
	}

	for _, p := range r.providers {
		if err := ctx.Err(); err != nil {
			return Per100g{}, err
		}
		n, err := r.search(ctx, p, name)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				r.logger.Debug("Provider has no match", "provider", p.Name(), "food", name)
				r.notify(p.Name(), OutcomeMiss)
			} else {
				r.logger.Warn("Provider lookup failed", "provider", p.Name(), "food", name, "error", err)
				r.notify(p.Name(), OutcomeError)
			}
			continue
		}
		r.notify(p.Name(), OutcomeHit)

		if n.Tier == TierPrimary && r.store != nil {
			if err := r.store.Store(ctx, name, n); err != nil {
				r.logger.Warn("Failed to cache nutrition lookup", "provider", p.Name(), "food", name, "error", err)
			}
		}
		return n, nil
	}
	return Per100g{}, fmt.Errorf("lookup %q: %w", name, ErrNotFound)
}

// Resolve returns nutrition for grams of name, or an error wrapping ErrNotFound
// when no provider in the chain knows the food.
func (r *Resolver) Resolve(ctx context.Context, name string, grams int) (Result, error) {
	n, err := r.Lookup(ctx, name)
	if err != nil {
		return Result{}, err
	}
	res := Scale(n, grams)
	res.Name = strings.TrimSpace(name)
	return res, nil
}

// ResolveOrEstimate never fails: when the chain misses it answers from the
// built-in table, which has a generic default for unknown foods.
func (r *Resolver) ResolveOrEstimate(ctx context.Context, name string, grams int) Result {
	res, err := r.Resolve(ctx, name, grams)
	if err == nil {
		return res
	}
	n, ferr := r.fallback.Search(ctx, name)
	if ferr != nil {
		n, _ = BuiltinTable{}.Search(ctx, name)
	}
	r.notify(r.fallback.Name(), OutcomeHit)
	res = Scale(n, grams)
	res.Name = strings.TrimSpace(name)
	return res
}

func (r *Resolver) search(ctx context.Context, p Provider, name string) (Per100g, error) {
	pctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return p.Search(pctx, name)
}

func (r *Resolver) notify(provider, outcome string) {
	if r.observe != nil {
		r.observe(provider, outcome)
	}
}
