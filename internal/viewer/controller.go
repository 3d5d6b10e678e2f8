package viewer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/dgallion1/lexview/internal/fetch"
	"github.com/dgallion1/lexview/internal/lawdoc"
	"github.com/dgallion1/lexview/internal/markup"
	"github.com/dgallion1/lexview/internal/navigator"
	"github.com/dgallion1/lexview/internal/render"
	"github.com/dgallion1/lexview/internal/search"
)

// LoadState tracks the content of the selected document.
type LoadState string

const (
	LoadIdle    LoadState = "idle"
	LoadLoading LoadState = "loading"
	LoadLoaded  LoadState = "loaded"
	LoadFailed  LoadState = "failed"
)

const (
	MinFontSize     = 10
	MaxFontSize     = 32
	DefaultFontSize = 16
	FontStep        = 2
)

// User-facing messages.
const (
	MsgNotViewable = "Documento no seleccionado o no encontrado."
	MsgLoading     = "Cargando contenido..."
	MsgFetchFailed = "Error al cargar contenido."
	MsgUnavailable = "Contenido HTML no pudo ser mostrado."
)

// ErrDocumentNotViewable is returned by Select for descriptors the viewer
// cannot render: a calculator, or a document without content for its mode.
var ErrDocumentNotViewable = errors.New("document not viewable")

// FetchMessage is the inline message shown for a failed load.
func FetchMessage(err error) string {
	if code := fetch.StatusCode(err); code != 0 {
		return fmt.Sprintf("Error %d: No se pudo cargar el documento.", code)
	}
	return MsgFetchFailed
}

// ClampFontSize limits n to [MinFontSize, MaxFontSize].
func ClampFontSize(n int) int {
	return max(MinFontSize, min(MaxFontSize, n))
}

// Options configure a Controller.
type Options struct {
	Fetcher  fetch.Fetcher
	Log      *slog.Logger
	FontSize int

	// OnFocus receives the id of the newly emphasized match, or "" when
	// there is none. It runs with the controller locked and must not call
	// back into it.
	OnFocus func(matchID string)

	// OnFetch observes every completed fetch, stale ones included.
	OnFetch func(ref string, err error, elapsed time.Duration)

	// OnLoad receives the final load state of the current document's fetch.
	// Like OnFocus it runs with the controller locked.
	OnLoad func(state LoadState)
}

// Controller is the state of one content view: the selected document, its
// load state, the search term, the match navigator and the font scale. All
// methods are safe for concurrent use; each state change is atomic.
type Controller struct {
	fetcher fetch.Fetcher
	log     *slog.Logger
	onFetch func(string, error, time.Duration)
	onLoad  func(LoadState)

	mu          sync.Mutex
	matcher     search.Matcher
	highlighter markup.Highlighter
	nav         *navigator.Navigator

	doc         *lawdoc.Document
	load        LoadState
	errMsg      string
	term        string
	fontSize    int
	raw         string
	highlighted string

	gen    uint64
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(opts Options) *Controller {
	log := opts.Log
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	size := opts.FontSize
	if size == 0 {
		size = DefaultFontSize
	}
	c := &Controller{
		fetcher:  opts.Fetcher,
		log:      log,
		onFetch:  opts.OnFetch,
		onLoad:   opts.OnLoad,
		nav:      navigator.New(),
		load:     LoadIdle,
		fontSize: ClampFontSize(size),
	}
	c.highlighter.Log = log
	if opts.OnFocus != nil {
		c.nav.OnFocus(opts.OnFocus)
	}
	return c
}

// Select switches the view to doc. The search term and matches are reset.
// Raw markup documents start loading in the background; structured documents
// are loaded immediately. Any fetch still running for the previous document
// is canceled and its result will be ignored.
func (c *Controller) Select(doc *lawdoc.Document) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.resetLocked()
	c.doc = doc

	if doc == nil || !doc.Viewable() || !doc.HasContent() {
		c.errMsg = MsgNotViewable
		id := ""
		if doc != nil {
			id = doc.ID
		}
		return fmt.Errorf("select %q: %w", id, ErrDocumentNotViewable)
	}

	if doc.Mode() == lawdoc.ModeStructured {
		c.load = LoadLoaded
		return nil
	}

	if c.fetcher == nil {
		c.load = LoadFailed
		c.errMsg = MsgFetchFailed
		return fmt.Errorf("select %q: no fetcher configured", doc.ID)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.load = LoadLoading
	gen := c.gen
	ref := doc.RawMarkupRef
	c.wg.Add(1)
	go c.runFetch(ctx, gen, ref)
	return nil
}

func (c *Controller) runFetch(ctx context.Context, gen uint64, ref string) {
	defer c.wg.Done()
	start := time.Now()
	body, err := c.fetcher.Fetch(ctx, ref)
	elapsed := time.Since(start)
	if c.onFetch != nil {
		c.onFetch(ref, err, elapsed)
	}
	c.complete(gen, ref, body, err)
}

func (c *Controller) complete(gen uint64, ref, body string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		c.log.Debug("discarding stale fetch", "ref", ref)
		return
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if err != nil {
		c.log.Warn("document fetch failed", "ref", ref, "error", err)
		c.load = LoadFailed
		c.errMsg = FetchMessage(err)
	} else {
		c.load = LoadLoaded
		c.raw = body
		c.highlighted = c.highlighter.Highlight(body, c.term)
	}
	if c.onLoad != nil {
		c.onLoad(c.load)
	}
}

// resetLocked invalidates in-flight fetches and clears per-document state.
func (c *Controller) resetLocked() {
	c.gen++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.doc = nil
	c.load = LoadIdle
	c.errMsg = ""
	c.term = ""
	c.raw = ""
	c.highlighted = ""
	c.highlighter.Reset()
	c.nav.Clear()
}

// Close discards the view, as when the user goes back to the catalog.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
}

// Wait blocks until every fetch started by this controller has returned.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// SetSearchTerm updates the term. Structured documents recompute the match
// list and move to the first match; raw markup documents re-highlight.
func (c *Controller) SetSearchTerm(term string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.term = term
	if c.doc == nil || c.errMsg == MsgNotViewable {
		return
	}
	switch c.doc.Mode() {
	case lawdoc.ModeStructured:
		c.nav.Reset(navigator.CollectWith(&c.matcher, c.doc.Content, term))
	case lawdoc.ModeRawMarkup:
		if c.load == LoadLoaded {
			c.highlighted = c.highlighter.Highlight(c.raw, term)
		}
	}
}

// NextMatch moves to the next match. Raw markup views have no navigation.
func (c *Controller) NextMatch() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nav.Next()
	return c.nav.CurrentMatchID()
}

// PreviousMatch moves to the previous match.
func (c *Controller) PreviousMatch() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nav.Previous()
	return c.nav.CurrentMatchID()
}

// SetFontSize sets the font size, clamped to the supported range, and
// returns the effective size.
func (c *Controller) SetFontSize(n int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fontSize = ClampFontSize(n)
	return c.fontSize
}

// AdjustFontSize changes the font size by delta and returns the effective size.
func (c *Controller) AdjustFontSize(delta int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	// Bounding delta first keeps the sum from overflowing.
	delta = max(-MaxFontSize, min(MaxFontSize, delta))
	c.fontSize = ClampFontSize(c.fontSize + delta)
	return c.fontSize
}

// View is a read-only snapshot of the controller.
type View struct {
	DocumentID     string      `json:"document_id,omitempty"`
	ShortName      string      `json:"short_name,omitempty"`
	FullName       string      `json:"full_name,omitempty"`
	Mode           lawdoc.Mode `json:"mode,omitempty"`
	LoadState      LoadState   `json:"load_state"`
	Error          string      `json:"error,omitempty"`
	Term           string      `json:"term"`
	FontSize       int         `json:"font_size"`
	CanShrink      bool        `json:"can_shrink"`
	CanGrow        bool        `json:"can_grow"`
	MatchCount     int         `json:"match_count"`
	Cursor         int         `json:"cursor"`
	CurrentMatchID string      `json:"current_match_id,omitempty"`
	Position       string      `json:"position,omitempty"`
	Navigable      bool        `json:"navigable"`
	Highlighting   bool        `json:"highlighting"`
}

// Snapshot returns the current view state.
func (c *Controller) Snapshot() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := View{
		LoadState: c.load,
		Error:     c.errMsg,
		Term:      c.term,
		FontSize:  c.fontSize,
		CanShrink: c.fontSize > MinFontSize,
		CanGrow:   c.fontSize < MaxFontSize,
		Cursor:    c.nav.Cursor(),
	}
	if c.doc != nil {
		v.DocumentID = c.doc.ID
		v.ShortName = c.doc.ShortName
		v.FullName = c.doc.FullName
		v.Mode = c.doc.Mode()
	}
	v.MatchCount = c.nav.Len()
	if id, ok := c.nav.CurrentMatchID(); ok {
		v.CurrentMatchID = id
		v.Position = strconv.Itoa(c.nav.Cursor()+1) + "/" + strconv.Itoa(c.nav.Len())
	}
	v.Navigable = v.Mode == lawdoc.ModeStructured && v.MatchCount > 0
	v.Highlighting = v.Mode == lawdoc.ModeRawMarkup && !search.Blank(c.term)
	return v
}

// Matches returns the current structured-mode match list.
func (c *Controller) Matches() []lawdoc.Match {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nav.Matches()
}

// Markup returns the highlighted raw markup, or "" outside raw markup mode.
func (c *Controller) Markup() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.highlighted
}

// Render writes the content area as HTML.
func (c *Controller) Render(w io.Writer) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.doc == nil {
		if c.errMsg != "" {
			return render.WriteHTML(w, render.Message(c.errMsg, "error"))
		}
		return nil
	}
	if c.errMsg == MsgNotViewable {
		return render.WriteHTML(w, render.Message(c.errMsg, "error"))
	}

	if c.doc.Mode() == lawdoc.ModeStructured {
		id, _ := c.nav.CurrentMatchID()
		return render.WriteHTML(w, render.Document(c.doc, render.Options{
			FontSize:     c.fontSize,
			Term:         c.term,
			EmphasizedID: id,
			Matcher:      &c.matcher,
		}))
	}

	if err := render.WriteHTML(w, render.Header(c.doc, c.fontSize)...); err != nil {
		return err
	}
	switch c.load {
	case LoadLoading:
		return render.WriteHTML(w, render.Message(MsgLoading, "loading"))
	case LoadFailed:
		return render.WriteHTML(w, render.Message(c.errMsg, "error"))
	case LoadLoaded:
		if c.highlighted == "" {
			return render.WriteHTML(w, render.Message(MsgUnavailable, "notice"))
		}
		if _, err := fmt.Fprintf(w, `<div class="raw-markup" style="font-size: %dpx">`, c.fontSize); err != nil {
			return err
		}
		if _, err := io.WriteString(w, c.highlighted); err != nil {
			return err
		}
		_, err := io.WriteString(w, "</div>")
		return err
	}
	return nil
}
