package handlers

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/MrSnakeDoc/sourcehub/internal/domain"
	"github.com/MrSnakeDoc/sourcehub/internal/httpserver/deps"
	"github.com/MrSnakeDoc/sourcehub/internal/manager"
)

type aggregateFunc[T any] func(context.Context, domain.Filters, domain.ListParams, manager.AggregateOptions) (domain.AggregatedResult[T], error)

type aggregateResponse[T any] struct {
	domain.AggregatedResult[T]
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

type installedResponse struct {
	Resources []domain.InstalledResource `json:"resources"`
}

func Teams(d deps.Deps) http.HandlerFunc {
	return aggregateHandler[domain.Team](d, d.Manager.AggregateTeams)
}

func Skills(d deps.Deps) http.HandlerFunc {
	return aggregateHandler[domain.Skill](d, d.Manager.AggregateSkills)
}

func Recipes(d deps.Deps) http.HandlerFunc {
	return aggregateHandler[domain.Recipe](d, d.Manager.AggregateRecipes)
}

func Extensions(d deps.Deps) http.HandlerFunc {
	return aggregateHandler[domain.Extension](d, d.Manager.AggregateExtensions)
}

func aggregateHandler[T any](d deps.Deps, aggregate aggregateFunc[T]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filters, params, opts, err := parseAggregateQuery(r.URL.Query())
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}

		res, err := aggregate(r.Context(), filters, params, opts)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}

		params = params.Normalize()
		writeJSON(w, http.StatusOK, aggregateResponse[T]{AggregatedResult: res, Page: params.Page, Limit: params.Limit})
	}
}

// parseAggregateQuery reads ?sources=all|a,b&search=&tags=a,b&teamId=&page=&limit=&refresh=true.
func parseAggregateQuery(q url.Values) (domain.Filters, domain.ListParams, manager.AggregateOptions, error) {
	var (
		filters domain.Filters
		params  domain.ListParams
		opts    manager.AggregateOptions
		err     error
	)

	switch raw := strings.TrimSpace(q.Get("sources")); raw {
	case "", "all":
		filters.Sources = domain.AllSources()
	default:
		filters.Sources = domain.OnlySources(splitList(raw)...)
	}
	filters.Search = strings.TrimSpace(q.Get("search"))
	filters.Tags = splitList(q.Get("tags"))
	filters.TeamID = strings.TrimSpace(q.Get("teamId"))

	if params.Page, err = intParam(q, "page"); err != nil {
		return filters, params, opts, err
	}
	if params.Limit, err = intParam(q, "limit"); err != nil {
		return filters, params, opts, err
	}
	if raw := q.Get("refresh"); raw != "" {
		if opts.ForceRefresh, err = strconv.ParseBool(raw); err != nil {
			return filters, params, opts, badRequest("refresh must be a boolean")
		}
	}
	return filters, params, opts, nil
}

func intParam(q url.Values, key string) (int, error) {
	raw := q.Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badRequest("%s must be an integer", key)
	}
	return n, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Installed lists resources installed on this machine.
func Installed(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := d.Manager.ListInstalled(r.Context())
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		if items == nil {
			items = []domain.InstalledResource{}
		}
		writeJSON(w, http.StatusOK, installedResponse{Resources: items})
	}
}
