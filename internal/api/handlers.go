package api

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/flp-cmd/WhatsappBackstageAPI/internal/domain"
	"github.com/flp-cmd/WhatsappBackstageAPI/internal/upload"
)

const jsonMaxBodySize = 1 << 20 // 1MB; images must come via multipart

// API error messages match the original service (consumed by
// Portuguese-speaking operators).
const (
	msgNotReady      = "WhatsApp não está pronto"
	msgInvalidSend   = "message ou image é obrigatório"
	msgGroupNotFound = "Grupo não encontrado. Use /groups para listar."
	msgBadImage      = "Apenas imagens são permitidas (jpeg, jpg, png, gif, webp)"
)

// handleHealth reports the readiness flag. Always 200 so that
// monitoring can distinguish "gateway down" from "session down".
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": s.sessions.Ready()})
}

func (s *Server) handleGroups(w http.ResponseWriter, r *http.Request) {
	t, err := s.sessions.Session()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, msgNotReady)
		return
	}
	groups, err := t.ListGroups(r.Context())
	if err != nil {
		s.logger.Error("group listing failed", "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if groups == nil {
		groups = []domain.Group{}
	}
	writeJSON(w, http.StatusOK, groups)
}

type sendResponse struct {
	OK bool    `json:"ok"`
	ID *string `json:"id"`
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	req, ok := s.parseSendRequest(w, r)
	if !ok {
		return
	}

	result, err := s.dispatcher.Send(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotReady):
			writeError(w, http.StatusServiceUnavailable, msgNotReady)
		case errors.Is(err, domain.ErrInvalidRequest):
			writeError(w, http.StatusBadRequest, msgInvalidSend)
		case errors.Is(err, domain.ErrGroupNotFound):
			writeError(w, http.StatusNotFound, msgGroupNotFound)
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	resp := sendResponse{OK: true}
	if result.MessageID != "" {
		resp.ID = &result.MessageID
	}
	writeJSON(w, http.StatusOK, resp)
}

// parseSendRequest decodes either a multipart form (with optional
// image) or a JSON body. On failure it writes the error response and
// returns ok=false; any materialized attachment has been released.
func (s *Server) parseSendRequest(w http.ResponseWriter, r *http.Request) (domain.SendRequest, bool) {
	contentType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if contentType == "multipart/form-data" {
		return s.parseMultipartSend(w, r)
	}

	var body struct {
		Destination string `json:"destination"`
		Message     string `json:"message"`
		// Field names of the first deployment.
		GroupID   string `json:"groupId"`
		GroupName string `json:"groupName"`
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, jsonMaxBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad request")
		return domain.SendRequest{}, false
	}
	if err := json.Unmarshal(data, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return domain.SendRequest{}, false
	}

	return domain.SendRequest{
		Destination: firstNonEmpty(body.Destination, body.GroupID, body.GroupName),
		Message:     body.Message,
	}, true
}

func (s *Server) parseMultipartSend(w http.ResponseWriter, r *http.Request) (domain.SendRequest, bool) {
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return domain.SendRequest{}, false
	}

	req := domain.SendRequest{
		Destination: firstNonEmpty(
			r.FormValue("destination"),
			r.FormValue("groupId"),
			r.FormValue("groupName"),
		),
		Message: r.FormValue("message"),
	}

	file, header, err := r.FormFile("image")
	if err == http.ErrMissingFile {
		return req, true
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid image upload")
		return domain.SendRequest{}, false
	}
	defer file.Close()

	mediaType, _, _ := mime.ParseMediaType(header.Header.Get("Content-Type"))
	handle, err := s.uploads.Materialize(file, mediaType, header.Filename)
	if err != nil {
		if errors.Is(err, upload.ErrMediaType) {
			writeError(w, http.StatusBadRequest, msgBadImage)
		} else {
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return domain.SendRequest{}, false
	}

	req.Attachment = handle
	return req, true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
