package api

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadscore/internal/model"
)

// csvMediaTypes are the upload content types accepted as CSV.
var csvMediaTypes = map[string]bool{
	"text/csv":                 true,
	"application/csv":          true,
	"application/vnd.ms-excel": true,
	"text/plain":               true,
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	limited := &limitedBody{ReadCloser: http.MaxBytesReader(w, r.Body, int64(s.cfg.MaxUploadMB)<<20)}
	r.Body = limited

	body, closeFn, err := csvBody(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer closeFn()

	res, err := s.ingestor.Ingest(r.Context(), body)
	if limited.exceeded {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "upload exceeds size limit"})
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// limitedBody records whether the size cap was hit, since the CSV reader
// flattens the underlying read error.
type limitedBody struct {
	io.ReadCloser
	exceeded bool
}

func (b *limitedBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	var tooLarge *http.MaxBytesError
	if err != nil && errors.As(err, &tooLarge) {
		b.exceeded = true
	}
	return n, err
}

// csvBody returns the CSV stream of an upload: the "file" part of a
// multipart form, or the raw request body.
func csvBody(r *http.Request) (io.Reader, func(), error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return nil, nil, eris.Wrap(model.ErrUnsupportedMedia, "upload: missing or invalid content type")
	}

	if mediaType != "multipart/form-data" {
		if !csvMediaTypes[mediaType] {
			return nil, nil, eris.Wrapf(model.ErrUnsupportedMedia, "upload: %s is not a CSV type", mediaType)
		}
		return r.Body, func() {}, nil
	}

	mr, err := r.MultipartReader()
	if err != nil {
		return nil, nil, eris.Wrapf(model.ErrValidation, "upload: read multipart: %v", err)
	}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return nil, nil, eris.Wrap(model.ErrValidation, "upload: multipart field \"file\" is required")
		}
		if err != nil {
			return nil, nil, eris.Wrapf(model.ErrValidation, "upload: read multipart: %v", err)
		}
		if part.FormName() != "file" {
			part.Close()
			continue
		}

		// RFC 7578 defaults a part without a type to text/plain.
		partType := "text/plain"
		if ct := part.Header.Get("Content-Type"); ct != "" {
			if partType, _, err = mime.ParseMediaType(ct); err != nil {
				part.Close()
				return nil, nil, eris.Wrap(model.ErrUnsupportedMedia, "upload: invalid file content type")
			}
		}
		if !csvMediaTypes[partType] {
			part.Close()
			return nil, nil, eris.Wrapf(model.ErrUnsupportedMedia, "upload: %s is not a CSV type", partType)
		}
		return part, func() { part.Close() }, nil
	}
}

type leadList struct {
	Leads []model.Lead `json:"leads"`
	Total int          `json:"total"`
}

func (s *Server) handleListLeads(w http.ResponseWriter, r *http.Request) {
	f, err := parseLeadFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	leads, total, err := s.store.ListLeads(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if leads == nil {
		leads = []model.Lead{}
	}
	writeJSON(w, http.StatusOK, leadList{Leads: leads, Total: total})
}

func parseLeadFilter(r *http.Request) (model.LeadFilter, error) {
	q := r.URL.Query()
	f := model.LeadFilter{
		OfferID: q.Get("offer_id"),
		Sort:    model.LeadSort(q.Get("sort")),
		Desc:    strings.EqualFold(q.Get("order"), "desc"),
	}

	if v := q.Get("processed"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, eris.Wrapf(model.ErrValidation, "processed must be a boolean, got %q", v)
		}
		f.Processed = &b
	}
	if v := q.Get("min_score"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return f, eris.Wrapf(model.ErrValidation, "min_score must be an integer, got %q", v)
		}
		f.MinScore = &n
	}
	if f.Sort != "" && !f.Sort.Valid() {
		return f, eris.Wrap(model.ErrValidation, "sort must be one of created_at, score, processed_at")
	}

	var err error
	if f.Limit, err = intParam(q.Get("limit")); err != nil {
		return f, err
	}
	if f.Offset, err = intParam(q.Get("offset")); err != nil {
		return f, err
	}
	return f, nil
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, eris.Wrapf(model.ErrValidation, "expected a non-negative integer, got %q", v)
	}
	return n, nil
}

func (s *Server) handleGetLead(w http.ResponseWriter, r *http.Request) {
	lead, err := s.store.GetLead(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

func (s *Server) handleDeleteLead(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteLead(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.summary.Summary(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	var req model.BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, eris.Wrapf(model.ErrValidation, "invalid request body: %v", err))
		return
	}

	res, err := s.processor.Run(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
