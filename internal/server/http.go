package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/zeusync/docsync/internal/core/observability/log"
	"github.com/zeusync/docsync/pkg/record"
)

const maxRequestBody = 8 << 20

// HTTPHandler exposes a Store with the document store REST conventions.
type HTTPHandler struct {
	store  *Store
	mux    *http.ServeMux
	logger log.Log
}

func NewHTTPHandler(store *Store, logger log.Log) *HTTPHandler {
	if logger == nil {
		logger = log.Nop()
	}
	h := &HTTPHandler{
		store:  store,
		mux:    http.NewServeMux(),
		logger: logger.With(log.String("component", "http")),
	}
	h.mux.HandleFunc("POST /classes/{class}", h.handleCreate)
	h.mux.HandleFunc("PUT /classes/{class}/{id}", h.handleUpdate)
	h.mux.HandleFunc("DELETE /classes/{class}/{id}", h.handleDelete)
	h.mux.HandleFunc("GET /classes/{class}/{id}", h.handleGet)
	return h
}

func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *HTTPHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	class := r.PathValue("class")
	ops, err := decodeBody(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	id, createdAt, err := h.store.Create(class, ops)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.logger.Debug("Object created", log.String("class", class), log.String("object_id", id))
	w.Header().Set("Location", fmt.Sprintf("/classes/%s/%s", class, id))
	writeJSON(w, http.StatusCreated, map[string]any{
		record.FieldObjectID:  id,
		record.FieldCreatedAt: record.FormatDate(createdAt),
	})
}

func (h *HTTPHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	class, id := r.PathValue("class"), r.PathValue("id")
	ops, err := decodeBody(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	updatedAt, err := h.store.Update(class, id, ops)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		record.FieldUpdatedAt: record.FormatDate(updatedAt),
	})
}

func (h *HTTPHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(r.PathValue("class"), r.PathValue("id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{})
}

func (h *HTTPHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	doc, err := h.store.Get(r.PathValue("class"), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func decodeBody(r *http.Request) (map[string]any, error) {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	decoder.UseNumber()

	var body map[string]any
	if err := decoder.Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	if body == nil {
		body = map[string]any{}
	}
	return body, nil
}

// writeError maps store errors onto {"code": N, "error": "..."} responses.
func (h *HTTPHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := http.StatusInternalServerError, record.CodeOtherCause
	switch {
	case errors.Is(err, ErrObjectNotFound):
		status, code = http.StatusNotFound, record.CodeObjectNotFound
	case errors.Is(err, ErrInvalidJSON):
		status, code = http.StatusBadRequest, record.CodeInvalidJSON
	case errors.Is(err, ErrReservedKey):
		status, code = http.StatusBadRequest, record.CodeInvalidKeyName
	case errors.Is(err, ErrInvalidOperation):
		status, code = http.StatusBadRequest, record.CodeIncorrectType
	}

	h.logger.Debug("Request rejected",
		log.String("method", r.Method),
		log.String("path", r.URL.Path),
		log.Int("status", status),
		log.Error(err))
	writeJSON(w, status, map[string]any{"code": code, "error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
