package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/quillforge/quillforge/pkg/inspect"
	"github.com/quillforge/quillforge/pkg/parser"
	"github.com/quillforge/quillforge/pkg/pipeline"
	"github.com/quillforge/quillforge/pkg/render"
	"github.com/quillforge/quillforge/pkg/transcode"
)

// RenderAPI holds the dependencies for the render and debug handlers.
type RenderAPI struct {
	cm     *ConfigManager
	cache  *pipeline.Cache
	msgs   *Messages
	logger *slog.Logger
}

// NewRenderAPI creates a new instance of the RenderAPI.
func NewRenderAPI(cm *ConfigManager, cache *pipeline.Cache, msgs *Messages, logger *slog.Logger) *RenderAPI {
	return &RenderAPI{
		cm:     cm,
		cache:  cache,
		msgs:   msgs,
		logger: logger,
	}
}

// RegisterRoutes sets up the routing for all /api/render endpoints.
func (a *RenderAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/render", a.handleRender)
	mux.HandleFunc("/api/render/download", a.handleDownload)
	mux.HandleFunc("/api/debug/config", a.handleDebugConfig)
	mux.HandleFunc("/api/debug/template", a.handleDebugTemplate)
}

// renderRequest is the decoded multipart form: the two uploaded files plus
// the per-request knobs.
type renderRequest struct {
	config       []byte
	configFormat parser.Format
	template     []byte
	templateName string

	parserOpts parser.Options
	strict     bool
	format     render.Format
	outputEnc  string
}

// renderResponse is the success payload for /api/render.
type renderResponse struct {
	Text     string   `json:"text"`
	Warnings []string `json:"warnings,omitempty"`
	Message  string   `json:"message"`
	Filename string   `json:"filename"`
}

// handleRender accepts a multipart form with a 'config' file and a
// 'template' file, runs the full pipeline, and returns the rendered text
// as JSON.
func (a *RenderAPI) handleRender(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	req, ok := a.decodeRequest(w, r)
	if !ok {
		return
	}
	res, p, ok := a.runPipeline(w, req)
	if !ok {
		return
	}

	respondWithJSON(w, http.StatusOK, renderResponse{
		Text:     res.Text,
		Warnings: p.Warnings(),
		Message:  a.msgs.Get("render.complete"),
		Filename: downloadFilename(req.templateName, time.Now()),
	})
}

// handleDownload is the same pipeline as handleRender but streams the
// rendered text as an attachment, re-encoded if output_encoding is set.
func (a *RenderAPI) handleDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	req, ok := a.decodeRequest(w, r)
	if !ok {
		return
	}
	res, _, ok := a.runPipeline(w, req)
	if !ok {
		return
	}

	body := []byte(res.Text)
	if req.outputEnc != "" {
		var err error
		body, err = transcode.Encode(res.Text, req.outputEnc)
		if err != nil {
			a.logger.Error("Failed to re-encode output", "encoding", req.outputEnc, "error", err)
			respondWithError(w, http.StatusBadRequest, a.msgs.Get("error.encoding"))
			return
		}
	}

	name := downloadFilename(req.templateName, time.Now())
	charset := req.outputEnc
	if charset == "" {
		charset = "utf-8"
	}
	w.Header().Set("Content-Type", "text/plain; charset="+charset)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	_, _ = w.Write(body)
}

// handleDebugConfig parses the uploaded config and returns its structural
// report instead of rendering.
func (a *RenderAPI) handleDebugConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	req, ok := a.decodeConfigOnly(w, r)
	if !ok {
		return
	}
	p := a.newPipeline(req)
	if err := p.LoadConfig(req.config, req.configFormat); err != nil {
		a.respondPipelineError(w, err)
		return
	}
	report, err := p.DebugConfig()
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	text, err := p.ConfigText()
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, debugConfigResponse{Report: report, Text: text})
}

// debugConfigResponse pairs the structural report with its plain-text dump.
type debugConfigResponse struct {
	Report *inspect.Report `json:"report"`
	Text   string          `json:"text"`
}

// handleDebugTemplate compiles the uploaded template and returns its node
// tree report. A config file is optional for this mode.
func (a *RenderAPI) handleDebugTemplate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if err := r.ParseMultipartForm(a.cm.Get().Server.MaxUploadBytes); err != nil {
		respondWithError(w, http.StatusBadRequest, a.msgs.Get("error.form"))
		return
	}
	tmpl, _, ok := readFormFile(r, "template")
	if !ok {
		respondWithError(w, http.StatusBadRequest, a.msgs.Get("error.form"))
		return
	}

	p := pipeline.New(a.logger, pipeline.Options{Cache: a.cache})
	if err := p.LoadConfig(nil, parser.FormatYAML); err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := p.LoadTemplate(tmpl); err != nil {
		a.respondPipelineError(w, err)
		return
	}
	report, err := p.DebugTemplate()
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, report)
}

// decodeRequest parses the multipart form for the render endpoints. On
// failure it writes the error response and reports !ok.
func (a *RenderAPI) decodeRequest(w http.ResponseWriter, r *http.Request) (*renderRequest, bool) {
	req, ok := a.decodeConfigOnly(w, r)
	if !ok {
		return nil, false
	}

	tmpl, name, ok := readFormFile(r, "template")
	if !ok {
		respondWithError(w, http.StatusBadRequest, a.msgs.Get("error.form"))
		return nil, false
	}
	req.template = tmpl
	req.templateName = name

	req.strict = r.FormValue("strict") == "true"
	req.outputEnc = r.FormValue("output_encoding")
	if v := r.FormValue("output_format"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < int(render.FormatRaw) || n > int(render.FormatStripBlank) {
			respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Invalid output_format %q", v))
			return nil, false
		}
		req.format = render.Format(n)
	}
	return req, true
}

func (a *RenderAPI) decodeConfigOnly(w http.ResponseWriter, r *http.Request) (*renderRequest, bool) {
	if err := r.ParseMultipartForm(a.cm.Get().Server.MaxUploadBytes); err != nil {
		respondWithError(w, http.StatusBadRequest, a.msgs.Get("error.form"))
		return nil, false
	}

	cfg, cfgName, ok := readFormFile(r, "config")
	if !ok {
		respondWithError(w, http.StatusBadRequest, a.msgs.Get("error.form"))
		return nil, false
	}
	format, ok := parser.FormatFromExtension(filepath.Ext(cfgName))
	if !ok {
		respondWithError(w, http.StatusBadRequest, a.msgs.Get("error.format"))
		return nil, false
	}

	req := &renderRequest{config: cfg, configFormat: format}
	req.parserOpts.Encoding = r.FormValue("encoding")
	req.parserOpts.FillEmpty = r.FormValue("fill_empty") == "true"
	req.parserOpts.FillEmptyWith = r.FormValue("fill_with")
	if v, set := r.Form["rows_key"]; set {
		if len(v) == 0 || v[0] == "" {
			respondWithError(w, http.StatusBadRequest, a.msgs.Get("error.rows_key"))
			return nil, false
		}
		req.parserOpts.CSVRowsKey = v[0]
	}
	return req, true
}

func (a *RenderAPI) newPipeline(req *renderRequest) *pipeline.Pipeline {
	rc := a.cm.Get().Render
	return pipeline.New(a.logger, pipeline.Options{
		Parser: req.parserOpts,
		Render: render.Options{
			Strict:         req.strict,
			Format:         req.format,
			MaxOutputBytes: rc.MaxOutputBytes,
			Timeout:        time.Duration(rc.TimeoutSec) * time.Second,
		},
		Cache: a.cache,
	})
}

// runPipeline drives a request-local pipeline through all three stages and
// writes the error response on any failure.
func (a *RenderAPI) runPipeline(w http.ResponseWriter, req *renderRequest) (render.Result, *pipeline.Pipeline, bool) {
	p := a.newPipeline(req)
	if err := p.LoadConfig(req.config, req.configFormat); err != nil {
		a.respondPipelineError(w, err)
		return render.Result{}, nil, false
	}
	if err := p.LoadTemplate(req.template); err != nil {
		a.respondPipelineError(w, err)
		return render.Result{}, nil, false
	}
	res, err := p.Render()
	if err != nil {
		a.respondPipelineError(w, err)
		return render.Result{}, nil, false
	}
	return res, p, true
}

// errorResponse is the failure payload: a localized summary plus the
// machine-readable detail of what went wrong and where.
type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
	Line   int    `json:"line,omitempty"`
	Column int    `json:"column,omitempty"`
	Name   string `json:"name,omitempty"`
	Kind   string `json:"kind,omitempty"`
}

// respondPipelineError maps a pipeline failure to an HTTP status and a
// localized error payload.
func (a *RenderAPI) respondPipelineError(w http.ResponseWriter, err error) {
	var (
		sizeErr *parser.SizeLimitError
		encErr  *transcode.EncodingError
		synErr  *parser.SyntaxError
		rndErr  *render.Error
	)
	switch {
	case errors.As(err, &sizeErr):
		respondWithJSON(w, http.StatusRequestEntityTooLarge, errorResponse{
			Error:  a.msgs.Get("error.size_limit"),
			Detail: sizeErr.Error(),
			Kind:   "size_limit",
		})
	case errors.As(err, &encErr):
		respondWithJSON(w, http.StatusBadRequest, errorResponse{
			Error:  a.msgs.Get("error.encoding"),
			Detail: encErr.Error(),
			Kind:   "encoding",
		})
	case errors.As(err, &synErr):
		respondWithJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error:  a.msgs.Get("error.syntax"),
			Detail: synErr.Message,
			Line:   synErr.Line,
			Column: synErr.Column,
			Kind:   "config_syntax",
		})
	case errors.As(err, &rndErr):
		key, kind := "error.execution", "execution"
		switch rndErr.Kind {
		case render.KindSyntax:
			key, kind = "error.template", "template_syntax"
		case render.KindUndefined:
			key, kind = "error.undefined", "undefined_variable"
		case render.KindBudget:
			key, kind = "error.budget", "budget_exceeded"
		}
		respondWithJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error:  a.msgs.Get(key),
			Detail: rndErr.Message,
			Line:   rndErr.Line,
			Name:   rndErr.Name,
			Kind:   kind,
		})
	default:
		a.logger.Error("Unclassified pipeline error", "error", err)
		respondWithError(w, http.StatusInternalServerError, err.Error())
	}
}

// readFormFile reads one uploaded file from the parsed multipart form.
func readFormFile(r *http.Request, field string) (data []byte, name string, ok bool) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, "", false
	}
	defer func(file multipart.File) { _ = file.Close() }(file)
	data, err = io.ReadAll(file)
	if err != nil {
		return nil, "", false
	}
	return data, header.Filename, true
}

// downloadFilename derives the attachment name from the uploaded template
// name, inserting a timestamp so repeated downloads don't collide.
func downloadFilename(templateName string, now time.Time) string {
	base := strings.TrimSuffix(filepath.Base(templateName), filepath.Ext(templateName))
	base = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '"', '\'', ' ':
			return '_'
		}
		return r
	}, base)
	if base == "" || base == "." {
		base = "render"
	}
	return base + now.Format("_2006-01-02_150405") + ".md"
}
