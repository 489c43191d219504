package server

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"

	"github.com/dyne/cifrado/internal/cipher"
)

//go:embed templates/index.html
var templates embed.FS

type page struct {
	tmpl *template.Template
}

type pageData struct {
	Text      string
	Encode    bool
	Decode    bool
	HasResult bool
	Result    string
}

func loadPage() (*page, error) {
	tmpl, err := template.ParseFS(templates, "templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}
	return &page{tmpl: tmpl}, nil
}

func (p *page) render(w http.ResponseWriter, data pageData) error {
	var buf bytes.Buffer
	if err := p.tmpl.Execute(&buf, data); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, pageData{Encode: true})
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	if err := r.ParseForm(); err != nil {
		if isTooLarge(err) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "malformed form body")
		return
	}
	if !r.PostForm.Has("text") {
		writeError(w, http.StatusUnprocessableEntity, "missing field: text")
		return
	}
	mode := cipher.ModeEncode
	if raw := r.PostForm.Get("mode"); raw != "" {
		m, err := cipher.ParseMode(raw)
		if err != nil {
			if errors.Is(err, cipher.ErrUnknownMode) {
				writeError(w, http.StatusUnprocessableEntity, err.Error())
				return
			}
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		mode = m
	}

	text := r.PostForm.Get("text")
	s.metrics.Transform(mode, "form")
	s.renderPage(w, pageData{
		Text:      text,
		Encode:    mode == cipher.ModeEncode,
		Decode:    mode == cipher.ModeDecode,
		HasResult: true,
		Result:    mode.Apply(text),
	})
}

func (s *Server) renderPage(w http.ResponseWriter, data pageData) {
	if err := s.ui.render(w, data); err != nil {
		s.logger.Errorw("render page", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
