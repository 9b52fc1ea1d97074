package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Sriram-PR/readerview/pkg/models"
	"github.com/Sriram-PR/readerview/pkg/reader"
	"github.com/Sriram-PR/readerview/pkg/utils"
)

const maxRequestBytes = 16 << 20

type extractRequest struct {
	URL        string        `json:"url"`
	Extractor  string        `json:"extractor,omitempty"`
	WebView    bool          `json:"webview,omitempty"`
	Theme      *models.Theme `json:"theme,omitempty"`
	ExitButton *bool         `json:"exitButton,omitempty"` // Defaults to true
	Markdown   bool          `json:"markdown,omitempty"`   // Include a digest of the content
}

type extractResponse struct {
	Result *models.FetchAndExtractionResult `json:"result"`
	Digest *models.Digest                   `json:"digest,omitempty"`
}

type extractHTMLRequest struct {
	URL       string `json:"url"`
	HTML      string `json:"html"`
	Extractor string `json:"extractor,omitempty"`
}

type warmupRequest struct {
	Extractor string `json:"extractor,omitempty"`
}

type healthResponse struct {
	Status  string            `json:"status"`
	Engines map[string]string `json:"engines"`
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if !decode(w, r, &req) {
		return
	}
	kind, err := parseKind(req.Extractor)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	opts := []reader.Option{reader.WithExtractor(kind), reader.WithWebView(req.WebView)}
	if req.Theme != nil {
		opts = append(opts, reader.WithTheme(*req.Theme))
	}
	if req.ExitButton != nil && !*req.ExitButton {
		opts = append(opts, reader.WithoutExitButton())
	}

	res, err := s.reader.FetchAndExtract(r.Context(), req.URL, opts...)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	out := extractResponse{Result: res}
	if req.Markdown {
		if out.Digest, err = s.reader.Digest(res); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleExtractHTML(w http.ResponseWriter, r *http.Request) {
	var req extractHTMLRequest
	if !decode(w, r, &req) {
		return
	}
	kind, err := parseKind(req.Extractor)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	article, err := s.reader.ExtractArticleContent(r.Context(), req.URL, req.HTML, kind)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, article)
}

func (s *Server) handleWarmup(w http.ResponseWriter, r *http.Request) {
	var req warmupRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	kind, err := parseKind(req.Extractor)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.reader.Warmup(kind); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "warming", "extractor": kind.String()})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	states := s.reader.States()
	resp := healthResponse{Status: "ok", Engines: make(map[string]string, len(states))}
	for kind, st := range states {
		resp.Engines[kind.String()] = st.String()
	}
	writeJSON(w, http.StatusOK, resp)
}

// parseKind leaves a blank extractor empty so the service default applies
func parseKind(s string) (models.ExtractorKind, error) {
	if strings.TrimSpace(s) == "" {
		return "", nil
	}
	return models.ParseExtractorKind(s)
}

// decode reads a JSON body into dst, writing a 400 and returning false on failure
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit))
			return false
		}
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: request body: %v", utils.ErrParsing, err))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
