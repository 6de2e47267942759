// Package server exposes records over HTTP with every primary key and
// foreign key replaced by a token.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/paraglidehq/enclookup"
	"github.com/paraglidehq/enclookup/field"
	"github.com/paraglidehq/enclookup/httplookup"
	"github.com/paraglidehq/enclookup/internal/store"
	"github.com/paraglidehq/enclookup/serializer"
)

// Records is the persistence the handlers need. *store.Store implements it.
type Records interface {
	field.Getter[store.Record]
	List(ctx context.Context) ([]store.Record, error)
	Create(ctx context.Context, name string, parent enclookup.NullID) (store.Record, error)
}

type Config struct {
	Cipher      *enclookup.Cipher
	Records     Records
	LookupField string
	Logger      zerolog.Logger
}

type createRequest struct {
	Name   string `json:"name" validate:"required,max=255"`
	Parent any    `json:"parent"`
}

var validate = validator.New()

type handler struct {
	records    Records
	serializer serializer.Serializer
	parent     field.Related[store.Record]
	lookup     string
}

// NewRouter wires the record endpoints. The cipher is shared by the URL
// decoder, the serializer and the related field.
func NewRouter(cfg Config) *chi.Mux {
	lookup := cfg.LookupField
	if lookup == "" {
		lookup = httplookup.DefaultParam
	}

	h := &handler{
		records: cfg.Records,
		serializer: serializer.Serializer{
			Cipher:        cfg.Cipher,
			LookupField:   lookup,
			RelatedFields: []string{"parent"},
		},
		parent: field.Related[store.Record]{Cipher: cfg.Cipher, Source: cfg.Records},
		lookup: lookup,
	}
	decoder := httplookup.Decoder{Cipher: cfg.Cipher, Param: lookup}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(hlog.NewHandler(cfg.Logger))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		// Paths carry tokens only, never raw ids.
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("Request")
	}))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Route("/records", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.With(decoder.Middleware).Get(fmt.Sprintf("/{%s}", lookup), h.retrieve)
	})

	return r
}

func (h *handler) represent(rec store.Record) map[string]any {
	return map[string]any{
		h.lookup: rec.ID,
		"name":   rec.Name,
		"parent": rec.Parent,
	}
}

func (h *handler) list(w http.ResponseWriter, r *http.Request) {
	records, err := h.records.List(r.Context())
	if err != nil {
		internalError(w, r, err)
		return
	}
	out := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		out = append(out, h.represent(rec))
	}
	body, err := h.serializer.MarshalList(out)
	if err != nil {
		internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *handler) retrieve(w http.ResponseWriter, r *http.Request) {
	id, ok := httplookup.IDFromContext(r.Context())
	if !ok {
		httplookup.NotFound(w)
		return
	}
	rec, err := h.records.Get(r.Context(), id)
	if errors.Is(err, field.ErrObjectNotFound) {
		httplookup.NotFound(w)
		return
	}
	if err != nil {
		internalError(w, r, err)
		return
	}
	body, err := h.serializer.Marshal(h.represent(rec))
	if err != nil {
		internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "non_field_errors", "Invalid JSON payload.")
		return
	}
	if err := validate.Struct(req); err != nil {
		badRequest(w, "name", "This field is required and may not exceed 255 characters.")
		return
	}

	var parent enclookup.NullID
	if req.Parent != nil {
		rec, err := h.parent.Resolve(r.Context(), req.Parent)
		var verr *field.ValidationError
		if errors.As(err, &verr) {
			badRequest(w, "parent", verr.Message)
			return
		}
		if err != nil {
			internalError(w, r, err)
			return
		}
		parent = enclookup.NewNullID(rec.ID)
	}

	rec, err := h.records.Create(r.Context(), req.Name, parent)
	if err != nil {
		internalError(w, r, err)
		return
	}
	body, err := h.serializer.Marshal(h.represent(rec))
	if err != nil {
		internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, body)
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

func badRequest(w http.ResponseWriter, key, message string) {
	body, _ := json.Marshal(map[string][]string{key: {message}})
	writeJSON(w, http.StatusBadRequest, body)
}

func internalError(w http.ResponseWriter, r *http.Request, err error) {
	hlog.FromRequest(r).Error().Err(err).Msg("Request failed")
	http.Error(w, `{"detail":"Internal server error."}`, http.StatusInternalServerError)
}
