package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/relstack-labs/relstore/internal/query"
	"github.com/relstack-labs/relstore/internal/record"
	"github.com/relstack-labs/relstore/pkg/schema"
)

// handlers provides the HTTP handlers for the record API.
type handlers struct {
	access *record.Access
	logger *slog.Logger
}

func newHandlers(access *record.Access, logger *slog.Logger) *handlers {
	return &handlers{access: access, logger: logger}
}

// repo resolves the repository of the model named in the URL, writing a
// not-found response when the model is unknown.
func (h *handlers) repo(w http.ResponseWriter, r *http.Request) (*record.Repository, bool) {
	repo, err := h.access.Repo(chi.URLParam(r, "model"))
	if err != nil {
		writeError(w, h.logger, http.StatusNotFound, err)
		return nil, false
	}
	return repo, true
}

// Collection runs a collection query from the URL parameters.
func (h *handlers) Collection(w http.ResponseWriter, r *http.Request) {
	repo, ok := h.repo(w, r)
	if !ok {
		return
	}

	res, err := repo.GetCollection(r.Context(), bagFromQuery(r.URL.Query()))
	if err != nil {
		writeAPIError(w, h.logger, err)
		return
	}

	switch res.Mode {
	case query.ModeCount:
		writeJSON(w, http.StatusOK, map[string]any{"count": res.Count})
	case query.ModeExplain:
		writeJSON(w, http.StatusOK, map[string]any{"explain": res.Explain})
	case query.ModeFields:
		writeJSON(w, http.StatusOK, map[string]any{
			"total": res.Total,
			"start": res.Start,
			"data":  res.Maps,
		})
	default:
		docs, err := h.serializeRows(r, repo, res.Rows)
		if err != nil {
			writeAPIError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"total": res.Total,
			"start": res.Start,
			"data":  docs,
		})
	}
}

// Item looks up one record by primary key.
func (h *handlers) Item(w http.ResponseWriter, r *http.Request) {
	repo, ok := h.repo(w, r)
	if !ok {
		return
	}

	bag := bagFromQuery(r.URL.Query())
	bag[repo.Model().PKField()] = chi.URLParam(r, "pk")
	rec, err := repo.GetResource(r.Context(), bag)
	if err != nil {
		writeAPIError(w, h.logger, err)
		return
	}

	doc, err := h.access.Serializer().ToDict(r.Context(), rec)
	if err != nil {
		writeAPIError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// CreateItem creates a record from the JSON body.
func (h *handlers) CreateItem(w http.ResponseWriter, r *http.Request) {
	repo, ok := h.repo(w, r)
	if !ok {
		return
	}

	values, ok := decodeBody(w, h.logger, r)
	if !ok {
		return
	}
	rec, err := repo.Create(r.Context(), values)
	if err != nil {
		writeAPIError(w, h.logger, err)
		return
	}

	doc, err := h.access.Serializer().ToDict(r.Context(), rec)
	if err != nil {
		writeAPIError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

// UpdateItem patches one record with the JSON body.
func (h *handlers) UpdateItem(w http.ResponseWriter, r *http.Request) {
	repo, ok := h.repo(w, r)
	if !ok {
		return
	}

	rec, err := repo.GetResource(r.Context(), map[string]any{
		repo.Model().PKField(): chi.URLParam(r, "pk"),
	})
	if err != nil {
		writeAPIError(w, h.logger, err)
		return
	}

	values, ok := decodeBody(w, h.logger, r)
	if !ok {
		return
	}
	if rec, err = repo.Update(r.Context(), rec, values); err != nil {
		writeAPIError(w, h.logger, err)
		return
	}

	doc, err := h.access.Serializer().ToDict(r.Context(), rec)
	if err != nil {
		writeAPIError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// DeleteItem removes one record by primary key.
func (h *handlers) DeleteItem(w http.ResponseWriter, r *http.Request) {
	repo, ok := h.repo(w, r)
	if !ok {
		return
	}

	rec, err := repo.GetResource(r.Context(), map[string]any{
		repo.Model().PKField(): chi.URLParam(r, "pk"),
	})
	if err != nil {
		writeAPIError(w, h.logger, err)
		return
	}
	if err := repo.Delete(r.Context(), rec); err != nil {
		writeAPIError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// BulkUpdate applies the JSON body to every record matched by the URL
// filters.
func (h *handlers) BulkUpdate(w http.ResponseWriter, r *http.Request) {
	repo, ok := h.repo(w, r)
	if !ok {
		return
	}

	q, err := repo.Compiler().FilterOnly(bagFromQuery(r.URL.Query()))
	if err != nil {
		writeAPIError(w, h.logger, err)
		return
	}
	values, ok := decodeBody(w, h.logger, r)
	if !ok {
		return
	}
	count, err := repo.BulkUpdate(r.Context(), q, values)
	if err != nil {
		writeAPIError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"updated": count})
}

// BulkDelete removes every record matched by the URL filters.
func (h *handlers) BulkDelete(w http.ResponseWriter, r *http.Request) {
	repo, ok := h.repo(w, r)
	if !ok {
		return
	}

	q, err := repo.Compiler().FilterOnly(bagFromQuery(r.URL.Query()))
	if err != nil {
		writeAPIError(w, h.logger, err)
		return
	}
	count, err := repo.BulkDelete(r.Context(), q)
	if err != nil {
		writeAPIError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": count})
}

// serializeRows converts full result rows to nested documents.
func (h *handlers) serializeRows(r *http.Request, repo *record.Repository, rows []schema.Values) ([]map[string]any, error) {
	docs := make([]map[string]any, 0, len(rows))
	for _, rec := range repo.Records(&query.Result{Rows: rows}) {
		doc, err := h.access.Serializer().ToDict(r.Context(), rec)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// bagFromQuery flattens URL query values into a parameter bag. Repeated
// keys stay lists; single values stay strings.
func bagFromQuery(values url.Values) map[string]any {
	bag := make(map[string]any, len(values))
	for k, vs := range values {
		switch len(vs) {
		case 0:
			bag[k] = nil
		case 1:
			if vs[0] == "" {
				bag[k] = nil
			} else {
				bag[k] = vs[0]
			}
		default:
			bag[k] = vs
		}
	}
	return bag
}

// decodeBody reads the request body as a flat JSON object.
func decodeBody(w http.ResponseWriter, logger *slog.Logger, r *http.Request) (schema.Values, bool) {
	var values schema.Values
	if err := json.NewDecoder(r.Body).Decode(&values); err != nil {
		writeError(w, logger, http.StatusBadRequest, err)
		return nil, false
	}
	return values, true
}
