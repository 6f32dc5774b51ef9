package httpapi

import (
	"bytes"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rpattn/productadmin/internal/auth"
	"github.com/rpattn/productadmin/internal/criteria"
	"github.com/rpattn/productadmin/internal/detail"
	"github.com/rpattn/productadmin/internal/export"
	"github.com/rpattn/productadmin/internal/filter"
	"github.com/rpattn/productadmin/internal/listing"
	"github.com/rpattn/productadmin/internal/notify"
	"github.com/rpattn/productadmin/internal/repository"
	"github.com/rpattn/productadmin/internal/routing"
)

type listResponse struct {
	listing.Result
	Params        listing.Params        `json:"params"`
	ActiveFilters []string              `json:"activeFilters"`
	Notifications []notify.Notification `json:"notifications"`
}

// newList builds a list for the request caller. Query filters, paging,
// sorting and term are applied on top of the configured defaults. A non-nil
// parentID lists the variants of that product.
func (h *handler) newList(r *http.Request, query url.Values, parentID *uuid.UUID) (*listing.Controller, *notify.Collector, error) {
	apiCtx, ok := auth.APIContextFromContext(r.Context())
	if !ok {
		return nil, nil, auth.ErrMissingUser
	}

	notes := &notify.Collector{}
	deps := listing.Dependencies{
		Products:   h.deps.Products,
		Currencies: h.deps.Currencies,
		Registry:   h.deps.Registry,
		Notifier:   notify.Multi{notes, notify.NewLogNotifier(h.logger)},
		Logger:     h.logger,
	}
	if h.deps.Metrics != nil {
		deps.Metrics = h.deps.Metrics
	}
	opts := listing.Options{Limit: h.deps.Listing.Limit, ParentID: parentID}
	if len(h.deps.Listing.Filters) > 0 {
		opts.Filters = make(map[string]filter.Options, len(h.deps.Listing.Filters))
		for _, name := range h.deps.Listing.Filters {
			opts.Filters[name] = filter.Options{}
		}
	}

	list, err := listing.NewController(deps, apiCtx, opts)
	if err != nil {
		return nil, nil, err
	}
	if err := applyQuery(list, query); err != nil {
		list.Close()
		return nil, nil, err
	}
	return list, notes, nil
}

func applyQuery(list *listing.Controller, query url.Values) error {
	values := make(map[string]filter.Value)
	for _, def := range list.Definitions() {
		if !query.Has(def.Name) {
			continue
		}
		v, err := filter.ParseValue(def, query.Get(def.Name))
		if err != nil {
			return badRequest("%v", err)
		}
		values[def.Name] = v
	}
	if err := list.UpdateCriteria(values); err != nil {
		return err
	}

	params := list.Params()
	var err error
	if raw := query.Get("page"); raw != "" {
		if params.Page, err = strconv.Atoi(raw); err != nil {
			return badRequest("invalid page: %v", err)
		}
	}
	if raw := query.Get("limit"); raw != "" {
		if params.Limit, err = strconv.Atoi(raw); err != nil {
			return badRequest("invalid limit: %v", err)
		}
	}
	if sortBy := strings.TrimSpace(query.Get("sort")); sortBy != "" {
		params.SortBy = sortBy
		params.SortDirection = criteria.ParseDirection(query.Get("dir"))
		params.NaturalSort = false
	}
	if raw := query.Get("natural"); raw != "" {
		if params.NaturalSort, err = strconv.ParseBool(raw); err != nil {
			return badRequest("invalid natural: %v", err)
		}
	}
	params.Term = strings.TrimSpace(query.Get("term"))

	list.RestoreParams(params)
	return nil
}

func (h *handler) listProducts(w http.ResponseWriter, r *http.Request) {
	list, notes, err := h.newList(r, r.URL.Query(), nil)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	defer list.Close()
	h.writeList(w, r, list, notes)
}

// listVariants lists the variants of a main product with the same query
// parameters as the main list.
func (h *handler) listVariants(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, err, nil)
		return
	}
	list, notes, err := h.newList(r, r.URL.Query(), &id)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	defer list.Close()
	h.writeList(w, r, list, notes)
}

func (h *handler) writeList(w http.ResponseWriter, r *http.Request, list *listing.Controller, notes *notify.Collector) {
	result, err := list.GetList(r.Context())
	if err != nil {
		writeError(w, err, notes.Drain())
		return
	}
	writeJSON(w, http.StatusOK, listResponse{
		Result:        result,
		Params:        list.Params(),
		ActiveFilters: list.ActiveFilters(),
		Notifications: notes.Drain(),
	})
}

func (h *handler) listFilters(w http.ResponseWriter, r *http.Request) {
	list, _, err := h.newList(r, nil, nil)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	defer list.Close()
	writeJSON(w, http.StatusOK, map[string]any{"filters": list.Definitions()})
}

func (h *handler) exportProducts(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(chi.URLParam(r, "format"))
	if err != nil {
		writeError(w, err, nil)
		return
	}
	query := r.URL.Query()
	allPages := true
	if raw := query.Get("all"); raw != "" {
		if allPages, err = strconv.ParseBool(raw); err != nil {
			writeError(w, badRequest("invalid all: %v", err), nil)
			return
		}
	}

	list, _, err := h.newList(r, query, nil)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	defer list.Close()

	apiCtx, _ := auth.APIContextFromContext(r.Context())
	var buf bytes.Buffer
	summary, err := h.deps.Export.Write(r.Context(), export.Request{
		APIContext: apiCtx,
		Criteria:   list.Criteria(),
		Format:     format,
		AllPages:   allPages,
	}, &buf)
	if err != nil {
		h.logger.Warn("product export failed", zap.Error(err))
		writeError(w, err, nil)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+h.deps.Export.FileName(format)+`"`)
	w.Header().Set("Content-Length", strconv.FormatInt(summary.Bytes, 10))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.Warn("failed to send product export", zap.Error(err))
	}
}

func (h *handler) inlineEdit(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, err, nil)
		return
	}
	var patch repository.ProductPatch
	if err := decodeBody(r, &patch); err != nil {
		writeError(w, err, nil)
		return
	}

	list, notes, err := h.newList(r, nil, nil)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	defer list.Close()

	if err := list.InlineEdit(r.Context(), id, patch); err != nil {
		writeError(w, err, notes.Drain())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": notes.Drain()})
}

type duplicateResponse struct {
	ID            uuid.UUID             `json:"id"`
	ProductNumber string                `json:"productNumber"`
	Route         routing.Route         `json:"route"`
	Notifications []notify.Notification `json:"notifications"`
}

func (h *handler) duplicateProduct(w http.ResponseWriter, r *http.Request) {
	apiCtx, ok := auth.APIContextFromContext(r.Context())
	if !ok {
		writeError(w, auth.ErrMissingUser, nil)
		return
	}
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, err, nil)
		return
	}

	notes := &notify.Collector{}
	dup, route, err := detail.Duplicator{
		Products: h.deps.Products,
		Numbers:  h.deps.Numbers,
		Notifier: notify.Multi{notes, notify.NewLogNotifier(h.logger)},
		Logger:   h.logger,
	}.Duplicate(r.Context(), apiCtx, id)
	if err != nil {
		writeError(w, err, notes.Drain())
		return
	}
	writeJSON(w, http.StatusCreated, duplicateResponse{
		ID:            dup.ID,
		ProductNumber: dup.ProductNumber,
		Route:         route,
		Notifications: notes.Drain(),
	})
}
