package manager

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/MrSnakeDoc/sourcehub/internal/cache"
	"github.com/MrSnakeDoc/sourcehub/internal/domain"
	"github.com/MrSnakeDoc/sourcehub/internal/logger"
	"github.com/MrSnakeDoc/sourcehub/internal/sources"
)

// AggregateOptions tune one aggregate query.
type AggregateOptions struct {
	ForceRefresh bool
}

// AggregateTeams lists teams across the selected sources.
func (m *Manager) AggregateTeams(ctx context.Context, filters domain.Filters, params domain.ListParams, opts AggregateOptions) (domain.AggregatedResult[domain.Team], error) {
	return aggregate[domain.Team](ctx, m, domain.ResourceTeams, filters, params, opts, sources.Adapter.ListTeams)
}

// AggregateSkills lists skills across the selected sources.
func (m *Manager) AggregateSkills(ctx context.Context, filters domain.Filters, params domain.ListParams, opts AggregateOptions) (domain.AggregatedResult[domain.Skill], error) {
	return aggregate[domain.Skill](ctx, m, domain.ResourceSkills, filters, params, opts, sources.Adapter.ListSkills)
}

// AggregateRecipes lists recipes across the selected sources.
func (m *Manager) AggregateRecipes(ctx context.Context, filters domain.Filters, params domain.ListParams, opts AggregateOptions) (domain.AggregatedResult[domain.Recipe], error) {
	return aggregate[domain.Recipe](ctx, m, domain.ResourceRecipes, filters, params, opts, sources.Adapter.ListRecipes)
}

// AggregateExtensions lists extensions across the selected sources.
func (m *Manager) AggregateExtensions(ctx context.Context, filters domain.Filters, params domain.ListParams, opts AggregateOptions) (domain.AggregatedResult[domain.Extension], error) {
	return aggregate[domain.Extension](ctx, m, domain.ResourceExtensions, filters, params, opts, sources.Adapter.ListExtensions)
}

type listFunc[T any] func(a sources.Adapter, ctx context.Context, q domain.ListQuery) (*domain.Page[T], error)

type target struct {
	source  domain.DataSource
	adapter sources.Adapter
}

// aggregate answers from the cache, keyed by kind and the filter set, or fans out to
// every selected source. Per-source failures become entries in Errors; the returned
// error is only ever the caller's context ending.
func aggregate[T any](
	ctx context.Context,
	m *Manager,
	kind domain.ResourceKind,
	filters domain.Filters,
	params domain.ListParams,
	opts AggregateOptions,
	list listFunc[T],
) (domain.AggregatedResult[T], error) {
	filters = filters.Canonical()
	params = params.Normalize()

	fetch := func(ctx context.Context) (domain.AggregatedResult[T], error) {
		return fanOut(ctx, m, kind, filters, params, list), nil
	}
	return cache.GetOrFetch(ctx, m.cache, kind, filters, params, fetch, cache.FetchOptions{ForceRefresh: opts.ForceRefresh})
}

func fanOut[T any](
	ctx context.Context,
	m *Manager,
	kind domain.ResourceKind,
	filters domain.Filters,
	params domain.ListParams,
	list listFunc[T],
) domain.AggregatedResult[T] {
	aggregateRequestsTotal.WithLabelValues(string(kind)).Inc()
	targets, errs := m.resolveTargets(filters.Sources)

	type outcome struct {
		page *domain.Page[T]
		err  error
	}
	outcomes := make([]outcome, len(targets))
	query := filters.Query(params)

	var g errgroup.Group
	for i, t := range targets {
		g.Go(func() error {
			page, err := list(t.adapter, ctx, query)
			outcomes[i] = outcome{page: page, err: err}
			return nil
		})
	}
	_ = g.Wait()

	result := domain.AggregatedResult[T]{
		Items:         []domain.SourcedResource[T]{},
		CountBySource: make(map[string]int64, len(targets)),
		Errors:        errs,
	}
	now := m.now()

	for i, t := range targets {
		o := outcomes[i]
		if o.err == nil && o.page == nil {
			o.err = errEmptyPage
		}
		if o.err != nil {
			aggregateSourceErrorsTotal.WithLabelValues(string(kind)).Inc()
			m.logger.Warn("source query failed",
				logger.String("source_id", t.source.ID),
				logger.String("kind", string(kind)),
				logger.Error(o.err))
			result.Errors = append(result.Errors, domain.SourceError{
				SourceID:   t.source.ID,
				SourceName: t.source.Name,
				Message:    o.err.Error(),
			})
			continue
		}

		syncStatus := domain.SyncStatusFor(t.source.Kind)
		for _, item := range o.page.Items {
			result.Items = append(result.Items, domain.SourcedResource[T]{
				Resource:   item,
				Source:     t.source,
				SyncStatus: syncStatus,
			})
		}
		result.CountBySource[t.source.ID] = o.page.Total

		total := o.page.Total
		m.mutate(t.source.ID, func(s *domain.DataSource) {
			s.ResourceCounts.Set(kind, total)
			ts := now
			s.LastSyncedAt = &ts
		})
	}
	return result
}

// resolveTargets snapshots the selected sources with their adapters, in registration
// order. Unknown ids and missing adapters come back as errors.
func (m *Manager) resolveTargets(sel domain.SourceSelection) ([]target, []domain.SourceError) {
	m.mu.RLock()
	var ids []string
	if sel.All {
		ids = append(ids, m.order...)
	} else {
		wanted := make(map[string]bool, len(sel.IDs))
		for _, id := range sel.IDs {
			wanted[id] = true
		}
		for _, id := range m.order {
			if wanted[id] {
				ids = append(ids, id)
				delete(wanted, id)
			}
		}
		for _, id := range sel.IDs {
			if wanted[id] {
				ids = append(ids, id)
				delete(wanted, id)
			}
		}
	}

	targets := make([]target, 0, len(ids))
	var errs []domain.SourceError
	var missingAdapter []string
	for _, id := range ids {
		src, ok := m.sources[id]
		if !ok {
			errs = append(errs, domain.SourceError{SourceID: id, Message: domain.ErrSourceNotFound.Error()})
			continue
		}
		adapter, ok := m.adapters[id]
		if !ok {
			missingAdapter = append(missingAdapter, id)
			errs = append(errs, domain.SourceError{SourceID: id, SourceName: src.Name, Message: "no adapter for source"})
			continue
		}
		targets = append(targets, target{source: src.Clone(), adapter: adapter})
	}
	m.mu.RUnlock()

	for _, id := range missingAdapter {
		_ = m.contractViolation("no adapter for registered source", id)
	}
	if errs == nil {
		errs = []domain.SourceError{}
	}
	return targets, errs
}

var errEmptyPage = errors.New("source returned no page")
