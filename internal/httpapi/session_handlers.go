package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/rpattn/productadmin/internal/auth"
	"github.com/rpattn/productadmin/internal/detail"
	"github.com/rpattn/productadmin/internal/domain"
	"github.com/rpattn/productadmin/internal/notify"
	"github.com/rpattn/productadmin/internal/routing"
)

type sessionResponse struct {
	ID            uuid.UUID             `json:"id"`
	State         detail.View           `json:"state"`
	Route         *routing.Route        `json:"route,omitempty"`
	Outcome       detail.SaveOutcome    `json:"outcome,omitempty"`
	Error         string                `json:"error,omitempty"`
	Notifications []notify.Notification `json:"notifications"`
}

func respondSession(w http.ResponseWriter, status int, s *Session, mutate func(*sessionResponse)) {
	resp := sessionResponse{
		ID:    s.ID,
		State: s.Controller.Store().Snapshot(),
	}
	if route, ok := s.Router.Current(); ok {
		resp.Route = &route
	}
	if mutate != nil {
		mutate(&resp)
	}
	resp.Notifications = s.Notes.Drain()
	writeJSON(w, status, resp)
}

// session resolves the {sid} session of the caller.
func (h *handler) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	apiCtx, ok := auth.APIContextFromContext(r.Context())
	if !ok {
		writeError(w, auth.ErrMissingUser, nil)
		return nil, false
	}
	sid, err := uuidParam(r, "sid")
	if err != nil {
		writeError(w, err, nil)
		return nil, false
	}
	s, err := h.deps.Sessions.Get(sid, apiCtx.UserID)
	if err != nil {
		writeError(w, err, nil)
		return nil, false
	}
	return s, true
}

// mutationResult answers a session mutation: the session state on success,
// the error plus pending notifications otherwise.
func mutationResult(w http.ResponseWriter, s *Session, err error) {
	if err != nil {
		writeError(w, err, s.Notes.Drain())
		return
	}
	respondSession(w, http.StatusOK, s, nil)
}

func (h *handler) openSession(w http.ResponseWriter, r *http.Request) {
	apiCtx, ok := auth.APIContextFromContext(r.Context())
	if !ok {
		writeError(w, auth.ErrMissingUser, nil)
		return
	}
	var body struct {
		ProductID *uuid.UUID `json:"productId"`
	}
	if r.ContentLength != 0 {
		if err := decodeBody(r, &body); err != nil {
			writeError(w, err, nil)
			return
		}
	}

	s, err := h.deps.Sessions.Open(r.Context(), apiCtx, body.ProductID)
	if s == nil {
		writeError(w, err, nil)
		return
	}
	respondSession(w, http.StatusCreated, s, func(resp *sessionResponse) {
		if err != nil {
			resp.Error = err.Error()
		}
	})
}

func (h *handler) sessionState(w http.ResponseWriter, r *http.Request) {
	if s, ok := h.session(w, r); ok {
		respondSession(w, http.StatusOK, s, nil)
	}
}

func (h *handler) closeSession(w http.ResponseWriter, r *http.Request) {
	apiCtx, ok := auth.APIContextFromContext(r.Context())
	if !ok {
		writeError(w, auth.ErrMissingUser, nil)
		return
	}
	sid, err := uuidParam(r, "sid")
	if err != nil {
		writeError(w, err, nil)
		return
	}
	if err := h.deps.Sessions.Close(sid, apiCtx.UserID); err != nil {
		writeError(w, err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// updateProduct merges a JSON document into the working copy. Fields absent
// from the document keep their values and the id cannot change.
func (h *handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var raw json.RawMessage
	if err := decodeBody(r, &raw); err != nil {
		writeError(w, err, nil)
		return
	}
	err := s.Controller.UpdateProduct(func(p *domain.Product) error {
		id := p.ID
		merged := p.Clone()
		if err := json.Unmarshal(raw, merged); err != nil {
			return badRequest("invalid product document: %v", err)
		}
		merged.ID = id
		*p = *merged
		return nil
	})
	mutationResult(w, s, err)
}

func (h *handler) addMedia(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var body struct {
		MediaID uuid.UUID `json:"mediaId"`
		URL     string    `json:"url"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err, nil)
		return
	}
	if body.MediaID == uuid.Nil {
		writeError(w, badRequest("mediaId is required"), nil)
		return
	}
	_, err := s.Controller.AddMedia(body.MediaID, body.URL)
	mutationResult(w, s, err)
}

func (h *handler) removeMedia(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	mediaID, err := uuidParam(r, "mediaId")
	if err != nil {
		writeError(w, err, nil)
		return
	}
	mutationResult(w, s, s.Controller.RemoveMedia(mediaID))
}

func (h *handler) setCover(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	mediaID, err := uuidParam(r, "mediaId")
	if err != nil {
		writeError(w, err, nil)
		return
	}
	mutationResult(w, s, s.Controller.SetCover(mediaID))
}

func (h *handler) updateCmsSlot(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	slotID, err := uuidParam(r, "slotId")
	if err != nil {
		writeError(w, err, nil)
		return
	}
	var body struct {
		Key   string                 `json:"key"`
		Value domain.SlotConfigValue `json:"value"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err, nil)
		return
	}
	if body.Key == "" {
		writeError(w, badRequest("key is required"), nil)
		return
	}
	mutationResult(w, s, s.Controller.UpdateCmsSlot(slotID, body.Key, body.Value))
}

func (h *handler) updateSeoURL(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var body struct {
		SalesChannelID *uuid.UUID `json:"salesChannelId"`
		SeoPathInfo    string     `json:"seoPathInfo"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err, nil)
		return
	}
	s.Controller.UpdateSeoURL(body.SalesChannelID, body.SeoPathInfo)
	respondSession(w, http.StatusOK, s, nil)
}

func (h *handler) selectTab(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var body struct {
		Tab string `json:"tab"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err, nil)
		return
	}
	s.Controller.SelectTab(body.Tab)
	respondSession(w, http.StatusOK, s, nil)
}

func (h *handler) changeLanguage(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var body struct {
		LanguageID uuid.UUID `json:"languageId"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err, nil)
		return
	}
	if body.LanguageID == uuid.Nil {
		writeError(w, badRequest("languageId is required"), nil)
		return
	}
	mutationResult(w, s, s.Controller.ChangeLanguage(r.Context(), body.LanguageID))
}

func (h *handler) save(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	outcome, err := s.Controller.Save(r.Context())
	if err != nil {
		writeError(w, err, s.Notes.Drain())
		return
	}
	respondSession(w, http.StatusOK, s, func(resp *sessionResponse) { resp.Outcome = outcome })
}

// duplicateSession copies the session's saved product. The route of the
// response points at the copy.
func (h *handler) duplicateSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	_, err := s.Controller.Duplicate(r.Context())
	if err != nil {
		writeError(w, err, s.Notes.Drain())
		return
	}
	respondSession(w, http.StatusCreated, s, nil)
}

func (h *handler) back(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	mutationResult(w, s, s.Controller.Back())
}

func (h *handler) advancedMode(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	view := s.Controller.Store().Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"setting":         view.AdvancedModeSetting,
		"displaySettings": view.DisplaySettings,
		"showModeSetting": view.ShowModeSetting,
	})
}

func (h *handler) saveAdvancedMode(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var value domain.AdvancedModeValue
	if err := decodeBody(r, &value); err != nil {
		writeError(w, err, nil)
		return
	}
	mutationResult(w, s, s.Controller.SaveAdvancedMode(r.Context(), value))
}
