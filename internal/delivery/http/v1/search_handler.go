package v1

import (
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"qkart-storefront/internal/domain"
	"qkart-storefront/internal/usecase"
	"qkart-storefront/pkg/logger"
	"qkart-storefront/pkg/utils"
)

type SearchHandler struct {
	searchUC     *usecase.SearchUsecase
	cookieSecure bool
	heartbeat    time.Duration
}

func NewSearchHandler(searchUC *usecase.SearchUsecase, cookieSecure bool, heartbeat time.Duration) *SearchHandler {
	if heartbeat <= 0 {
		heartbeat = 15 * time.Second
	}
	return &SearchHandler{
		searchUC:     searchUC,
		cookieSecure: cookieSecure,
		heartbeat:    heartbeat,
	}
}

type typeRequest struct {
	Text string `json:"text"`
}

// Type feeds one edit of the search box into the debounced dispatcher.
func (h *SearchHandler) Type(w http.ResponseWriter, r *http.Request) {
	var req typeRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		writeBadBody(w)
		return
	}

	h.searchUC.Type(h.clientKey(w, r), req.Text)
	utils.WriteJSON(w, http.StatusAccepted, domain.Response{Success: true})
}

// Snapshot returns the products the search box currently shows.
// With ?flush=1 the pending query is fired first.
func (h *SearchHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	key := h.clientKey(w, r)
	if utils.ParseInt(r.URL.Query().Get("flush"), 0) == 1 {
		h.searchUC.Flush(key)
	}

	snapshot, err := h.searchUC.Snapshot(r.Context(), key)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, domain.Response{Success: true, Data: snapshot})
}

// Stream pushes every applied snapshot as a server-sent event.
func (h *SearchHandler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.WriteError(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	key := h.clientKey(w, r)
	updates, cancel := h.searchUC.Subscribe(key)
	defer cancel()

	initial, err := h.searchUC.Snapshot(r.Context(), key)
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, initial); err != nil {
		return
	}
	flusher.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	l := logger.WithContext(r.Context())
	for {
		select {
		case <-r.Context().Done():
			return
		case snapshot, open := <-updates:
			if !open {
				return
			}
			if err := writeEvent(w, snapshot); err != nil {
				l.Debug().Err(err).Msg("Search stream closed")
				return
			}
			flusher.Flush()
		case <-ticker.C:
			h.searchUC.Touch(key)
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, snapshot domain.SearchSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: snapshot\nid: %d\ndata: %s\n\n", snapshot.Seq, data)
	return err
}

// clientKey identifies the search box of the caller: the session id when logged
// in, else the anonymous client id. A new client id cookie is issued if missing.
func (h *SearchHandler) clientKey(w http.ResponseWriter, r *http.Request) string {
	if session, ok := domain.SessionFromContext(r.Context()); ok {
		return session.ID
	}
	if id := r.Header.Get(domain.ClientIDHeader); id != "" {
		return "anon:" + id
	}
	if c, err := r.Cookie(domain.ClientCookieName); err == nil && c.Value != "" {
		return "anon:" + c.Value
	}

	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     domain.ClientCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return "anon:" + id
}
