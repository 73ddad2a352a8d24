/*
Package pipeline orchestrates a single config-to-output request: load a
configuration, load a template, render, with debug views available at each
stage.

A Pipeline is request-local and advances through a fixed set of states:

	Idle -> ConfigLoaded -> TemplateLoaded -> Rendered | Failed

Rendered and Failed are terminal; Reset returns to Idle for reuse. The
pipeline performs no retries of its own. An optional Cache shared across
pipelines memoizes compiled templates by content hash.
*/
package pipeline

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/quillforge/quillforge/pkg/inspect"
	"github.com/quillforge/quillforge/pkg/parser"
	"github.com/quillforge/quillforge/pkg/render"
	"github.com/quillforge/quillforge/pkg/transcode"
	"github.com/quillforge/quillforge/pkg/value"
)

// State is the pipeline's position in the request lifecycle.
type State int

const (
	StateIdle State = iota
	StateConfigLoaded
	StateTemplateLoaded
	StateRendered
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConfigLoaded:
		return "config-loaded"
	case StateTemplateLoaded:
		return "template-loaded"
	case StateRendered:
		return "rendered"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ErrInvalidState reports an operation attempted out of lifecycle order,
// such as rendering before a template is loaded.
var ErrInvalidState = errors.New("operation not valid in current pipeline state")

// Options configure a Pipeline.
type Options struct {
	Parser parser.Options
	Render render.Options

	// TemplateEncoding overrides charset detection for template uploads.
	TemplateEncoding string

	// Cache, when non-nil, memoizes compiled templates across pipelines.
	Cache *Cache
}

// Pipeline carries the state of one request. It is not safe for concurrent
// use; each request gets its own Pipeline.
type Pipeline struct {
	logger *slog.Logger
	opts   Options
	rnd    *render.Renderer

	state  State
	doc    *parser.Document
	tpl    *render.Template
	result render.Result
	err    error
}

// New creates an idle Pipeline. A nil logger discards log output.
func New(logger *slog.Logger, opts Options) *Pipeline {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Pipeline{
		logger: logger,
		opts:   opts,
		rnd:    render.New(logger, opts.Render),
	}
}

// State returns the current lifecycle state.
func (p *Pipeline) State() State { return p.state }

// Err returns the failure that moved the pipeline to Failed, if any.
func (p *Pipeline) Err() error { return p.err }

// Warnings returns all non-fatal notes collected so far, in the order the
// stages produced them.
func (p *Pipeline) Warnings() []string {
	var out []string
	if p.doc != nil {
		out = append(out, p.doc.Warnings...)
	}
	out = append(out, p.result.Warnings...)
	return out
}

// Reset discards all request state and returns to Idle.
func (p *Pipeline) Reset() {
	p.state = StateIdle
	p.doc = nil
	p.tpl = nil
	p.result = render.Result{}
	p.err = nil
}

// LoadConfig parses raw configuration bytes. Empty input is accepted and
// loads an empty mapping with a warning; parse failures move the pipeline
// to Failed.
func (p *Pipeline) LoadConfig(raw []byte, format parser.Format) error {
	if p.state != StateIdle {
		return fmt.Errorf("load config in state %s: %w", p.state, ErrInvalidState)
	}

	doc, err := parser.Parse(raw, format, p.opts.Parser)
	if errors.Is(err, parser.ErrEmptyInput) {
		doc.Warnings = append(doc.Warnings, "configuration input is empty, rendering with no variables")
		err = nil
	}
	if err != nil {
		return p.fail(fmt.Errorf("parse %s config: %w", format, err))
	}

	p.logger.Debug("config loaded",
		"format", format.String(),
		"encoding", doc.Encoding.Encoding,
		"keys", doc.Root.Len(),
		"warnings", len(doc.Warnings))
	p.doc = doc
	p.state = StateConfigLoaded
	return nil
}

// LoadTemplate decodes and compiles raw template bytes. Syntax and guard
// violations move the pipeline to Failed.
func (p *Pipeline) LoadTemplate(raw []byte) error {
	if p.state != StateConfigLoaded {
		return fmt.Errorf("load template in state %s: %w", p.state, ErrInvalidState)
	}
	if len(raw) > parser.MaxInputBytes {
		return p.fail(&parser.SizeLimitError{Size: len(raw), Limit: parser.MaxInputBytes})
	}

	src, det, err := transcode.ToUTF8(raw, p.opts.TemplateEncoding)
	if err != nil {
		return p.fail(fmt.Errorf("decode template: %w", err))
	}

	tpl, cerr := p.compile(src)
	if cerr != nil {
		return p.fail(cerr)
	}

	p.logger.Debug("template loaded", "encoding", det.Encoding, "bytes", len(src))
	p.tpl = tpl
	p.state = StateTemplateLoaded
	return nil
}

func (p *Pipeline) compile(src string) (*render.Template, *render.Error) {
	if p.opts.Cache == nil {
		return p.rnd.Compile(src)
	}
	key := sha256.Sum256([]byte(src))
	if tpl, ok := p.opts.Cache.get(key); ok {
		return tpl, nil
	}
	tpl, cerr := p.rnd.Compile(src)
	if cerr != nil {
		return nil, cerr
	}
	p.opts.Cache.put(key, tpl)
	return tpl, nil
}

// Render executes the loaded template against the loaded configuration.
// On success the pipeline reaches Rendered and the Result carries the
// output text; on failure the pipeline moves to Failed and the Result
// carries the classified error.
func (p *Pipeline) Render() (render.Result, error) {
	if p.state != StateTemplateLoaded {
		return render.Result{}, fmt.Errorf("render in state %s: %w", p.state, ErrInvalidState)
	}

	res := p.rnd.Render(p.tpl, p.doc.Root)
	p.result = res
	if !res.OK() {
		return res, p.fail(res.Err)
	}
	p.logger.Info("render complete", "bytes", len(res.Text), "warnings", len(res.Warnings))
	p.state = StateRendered
	return res, nil
}

// DebugConfig describes the loaded configuration's structure. Valid in any
// state after the config is loaded, including Rendered.
func (p *Pipeline) DebugConfig() (*inspect.Report, error) {
	if p.doc == nil {
		return nil, fmt.Errorf("debug config in state %s: %w", p.state, ErrInvalidState)
	}
	return inspect.Config(p.doc.Root), nil
}

// ConfigText renders the loaded configuration as an indented literal, the
// plain-text companion to DebugConfig.
func (p *Pipeline) ConfigText() (string, error) {
	if p.doc == nil {
		return "", fmt.Errorf("debug config in state %s: %w", p.state, ErrInvalidState)
	}
	return value.Dump(p.doc.Root), nil
}

// DebugTemplate describes the compiled template's node tree. Valid in any
// state after the template is loaded.
func (p *Pipeline) DebugTemplate() (*inspect.Report, error) {
	if p.tpl == nil {
		return nil, fmt.Errorf("debug template in state %s: %w", p.state, ErrInvalidState)
	}
	return inspect.Template(p.tpl.Tree()), nil
}

func (p *Pipeline) fail(err error) error {
	p.logger.Warn("pipeline failed", "state", p.state.String(), "error", err)
	p.state = StateFailed
	p.err = err
	return err
}

// Cache memoizes compiled templates by a sha256 hash of their decoded
// source, so repeated uploads of the same template skip recompilation. It
// is safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	max     int
	entries map[[sha256.Size]byte]*render.Template
}

// DefaultCacheSize bounds the number of cached templates.
const DefaultCacheSize = 128

// NewCache creates a Cache holding at most max templates. A max of zero or
// less uses DefaultCacheSize.
func NewCache(max int) *Cache {
	if max <= 0 {
		max = DefaultCacheSize
	}
	return &Cache{max: max, entries: make(map[[sha256.Size]byte]*render.Template)}
}

// Len returns the number of cached templates.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) get(key [sha256.Size]byte) (*render.Template, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tpl, ok := c.entries[key]
	return tpl, ok
}

func (c *Cache) put(key [sha256.Size]byte, tpl *render.Template) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) >= c.max {
		// Full flush beats tracking recency for a cache this small.
		c.entries = make(map[[sha256.Size]byte]*render.Template)
	}
	c.entries[key] = tpl
}
