package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadscore/internal/model"
)

func decodeOffer(r *http.Request) (model.Offer, error) {
	var o model.Offer
	if err := json.NewDecoder(r.Body).Decode(&o); err != nil {
		return o, eris.Wrapf(model.ErrValidation, "invalid offer body: %v", err)
	}
	return o, nil
}

func (s *Server) handleCreateOffer(w http.ResponseWriter, r *http.Request) {
	o, err := decodeOffer(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	o.ID = ""
	created, err := s.store.CreateOffer(r.Context(), o)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListOffers(w http.ResponseWriter, r *http.Request) {
	offers, err := s.store.ListOffers(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if offers == nil {
		offers = []model.Offer{}
	}
	writeJSON(w, http.StatusOK, offers)
}

func (s *Server) handleGetOffer(w http.ResponseWriter, r *http.Request) {
	o, err := s.store.GetOffer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) handleUpdateOffer(w http.ResponseWriter, r *http.Request) {
	o, err := decodeOffer(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	o.ID = chi.URLParam(r, "id")
	updated, err := s.store.UpdateOffer(r.Context(), o)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteOffer(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteOffer(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
