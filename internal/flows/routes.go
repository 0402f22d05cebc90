package flows

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hausmatch/leadflow/internal/content"
	"github.com/hausmatch/leadflow/internal/schema"
)

// RegisterRoutes mounts the admin flow endpoints on the given router.
func RegisterRoutes(r chi.Router, store *Store) {
	r.Get("/api/flows", listFlowsHandler(store))
	r.Get("/api/flows/{id}", getFlowHandler(store))
	r.Get("/api/flows/{id}/draft", getDraftHandler(store))
	r.Get("/api/flows/{id}/versions", listVersionsHandler(store))
	r.Post("/api/flows/drafts", saveDraftHandler(store, true))
	r.Post("/api/flows/{id}/drafts", saveDraftHandler(store, false))
	r.Post("/api/flows/{id}/publish", publishHandler(store))
	r.Post("/api/flows/{id}/status", setStatusHandler(store))
	r.Delete("/api/flows/{id}", deleteFlowHandler(store))
}

// RegisterPublicRoutes mounts the end-user endpoint serving published
// payloads.
func RegisterPublicRoutes(r chi.Router, store *Store) {
	r.Get("/api/public/flows/{slug}", publishedFlowHandler(store))
}

func publishedFlowHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slug := chi.URLParam(r, "slug")
		published, err := store.GetPublishedBySlug(r.Context(), slug)
		if errors.Is(err, ErrNotFound) {
			// No published version is a normal outcome, not a failure.
			http.Error(w, "flow not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		rendered, err := content.RenderSteps(published.Payload)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		published.Payload = rendered

		writeJSON(w, http.StatusOK, published)
	}
}

func listFlowsHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, err := store.ListFlows(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if records == nil {
			records = []Record{}
		}
		writeJSON(w, http.StatusOK, records)
	}
}

func getFlowHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := store.GetFlow(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "flow not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

func getDraftHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, version, err := store.GetDraftVersion(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "no draft version", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"version": version, "payload": payload})
	}
}

func listVersionsHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		versions, err := store.ListVersions(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if versions == nil {
			versions = []VersionInfo{}
		}
		writeJSON(w, http.StatusOK, versions)
	}
}

// saveDraftHandler appends a new draft version. With create=true the
// flow record is created from the payload itself and the id comes back
// in the response.
func saveDraftHandler(store *Store, create bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var candidate map[string]any
		if err := json.NewDecoder(r.Body).Decode(&candidate); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		flowID := ""
		if !create {
			flowID = chi.URLParam(r, "id")
		}

		draft, err := store.SaveDraft(r.Context(), flowID, candidate)
		var verr *schema.ValidationError
		var conflict *ConflictError
		switch {
		case errors.As(err, &verr):
			// Authors get the full per-field violation list inline.
			writeJSON(w, http.StatusUnprocessableEntity, verr)
			return
		case errors.As(err, &conflict):
			http.Error(w, conflict.Error(), http.StatusConflict)
			return
		case errors.Is(err, ErrNotFound):
			http.Error(w, "flow not found", http.StatusNotFound)
			return
		case err != nil:
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		status := http.StatusOK
		if create {
			status = http.StatusCreated
		}
		writeJSON(w, status, draft)
	}
}

func publishHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		version, err := store.Publish(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, ErrNoDraft) {
			http.Error(w, "no draft version to publish", http.StatusConflict)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"version": version})
	}
}

func setStatusHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Status schema.FlowStatus `json:"status"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		switch body.Status {
		case schema.StatusActive, schema.StatusPaused, schema.StatusArchived:
		default:
			http.Error(w, "status must be active, paused or archived", http.StatusBadRequest)
			return
		}

		err := store.SetStatus(r.Context(), chi.URLParam(r, "id"), body.Status)
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "flow not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func deleteFlowHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := store.Delete(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "flow not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
