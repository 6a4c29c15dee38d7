// Package session drives one annotation session: the image catalog, the
// current document and raster, the selected field, the viewport, and the
// load/save round trips against a store.Store.
//
// All state changes happen in Update or in the direct methods, both called
// from the bubbletea event loop. Store I/O runs inside tea.Cmds and comes back
// as messages.
package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"ocrlabel/internal/annotate"
	"ocrlabel/internal/geom"
	"ocrlabel/internal/progress"
	"ocrlabel/internal/store"
	"ocrlabel/internal/viewport"
)

// ErrNoFieldSelected is returned by ClickAt without a selected field.
var ErrNoFieldSelected = errors.New("please select a field first")

// State of the image state machine.
type State int

const (
	Idle State = iota
	Loading
	Displaying
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Displaying:
		return "displaying"
	default:
		return "idle"
	}
}

// DefaultTimeout bounds each store call.
const DefaultTimeout = 30 * time.Second

// Session is the state of one annotator.
type Session struct {
	ID       string
	Viewport *viewport.Viewport

	store   store.Store
	logger  *slog.Logger
	timeout time.Duration

	catalog  []store.Entry
	progress progress.Record

	state    State
	index    int
	doc      *annotate.Document
	img      image.Image
	selected string

	// rev counts edits; a save clears dirty only if nothing changed since
	rev      uint64
	savedRev uint64
	docSeq   uint64

	// seq tags the latest LoadImage; older completions are dropped
	seq        uint64
	loading    int
	pendingDoc *annotate.Document
	pendingImg image.Image

	dispW, dispH float64

	start string
}

// New returns an idle session over st.
func New(st store.Store, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.NewString()
	return &Session{
		ID:       id,
		Viewport: viewport.New(),
		store:    st,
		logger:   logger.With("session", id),
		timeout:  DefaultTimeout,
		progress: progress.NewRecord(),
		index:    -1,
		loading:  -1,
	}
}

// SetTimeout changes the per-call store timeout.
func (s *Session) SetTimeout(d time.Duration) {
	if d > 0 {
		s.timeout = d
	}
}

// SetStart makes the first catalog load open id instead of the first entry.
func (s *Session) SetStart(id string) { s.start = id }

func (s *Session) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

func (s *Session) State() State                 { return s.state }
func (s *Session) Catalog() []store.Entry       { return s.catalog }
func (s *Session) Index() int                   { return s.index }
func (s *Session) LoadingIndex() int            { return s.loading }
func (s *Session) Document() *annotate.Document { return s.doc }
func (s *Session) Image() image.Image           { return s.img }
func (s *Session) Selected() string             { return s.selected }
func (s *Session) Dirty() bool                  { return s.rev != s.savedRev }

// Revision counts edits to the current document.
func (s *Session) Revision() uint64 { return s.rev }

// Current is the displayed catalog entry.
func (s *Session) Current() (store.Entry, bool) {
	if s.index < 0 || s.index >= len(s.catalog) {
		return store.Entry{}, false
	}
	return s.catalog[s.index], true
}

// Status derives the progress state of catalog entry i.
func (s *Session) Status(i int) progress.Status {
	if i < 0 || i >= len(s.catalog) {
		return progress.Unviewed
	}
	return s.progress.Status(s.catalog[i].ID)
}

// IndexOf finds id in the catalog, -1 when absent.
func (s *Session) IndexOf(id string) int {
	for i, e := range s.catalog {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func (s *Session) CanPrev() bool { return s.index > 0 }
func (s *Session) CanNext() bool { return s.index >= 0 && s.index < len(s.catalog)-1 }

// SetDisplay records the size the canvas buffer is shown at.
func (s *Session) SetDisplay(w, h float64) {
	s.dispW, s.dispH = w, h
	bw, bh := s.Viewport.BufferSize()
	s.Viewport.SetSurface(bw, bh, w, h)
}

// LoadCatalog fetches the catalog and the progress record.
func (s *Session) LoadCatalog() tea.Cmd {
	st := s.store
	return func() tea.Msg {
		ctx, cancel := s.ctx()
		defer cancel()
		entries, err := st.Catalog(ctx)
		if err != nil {
			return CatalogLoadedMsg{Err: err}
		}
		rec, perr := st.Progress(ctx)
		return CatalogLoadedMsg{Entries: entries, Progress: rec, ProgressErr: perr}
	}
}

// LoadImage starts loading catalog entry index. Out of range is a no-op.
// The document and the raster load concurrently; the image becomes current
// once both are in.
func (s *Session) LoadImage(index int) tea.Cmd {
	if index < 0 || index >= len(s.catalog) {
		return nil
	}
	s.seq++
	seq := s.seq
	s.state = Loading
	s.loading = index
	s.pendingDoc, s.pendingImg = nil, nil
	id := s.catalog[index].ID
	s.logger.Debug("session.load.start", "id", id, "index", index, "seq", seq)
	st := s.store

	fetchDoc := func() tea.Msg {
		ctx, cancel := s.ctx()
		defer cancel()
		data, err := st.Document(ctx, id)
		if err != nil {
			return DocumentLoadedMsg{Seq: seq, Index: index, Err: err}
		}
		doc, err := annotate.Parse(data)
		return DocumentLoadedMsg{Seq: seq, Index: index, Doc: doc, Err: err}
	}
	fetchImg := func() tea.Msg {
		ctx, cancel := s.ctx()
		defer cancel()
		data, err := st.Image(ctx, id)
		if err != nil {
			return ImageLoadedMsg{Seq: seq, Index: index, Err: err}
		}
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			err = fmt.Errorf("decode image %s: %w", id, err)
		}
		return ImageLoadedMsg{Seq: seq, Index: index, Image: img, Err: err}
	}
	return tea.Batch(fetchDoc, fetchImg)
}

// Navigate moves by dir (-1 or +1) when the target is in range.
func (s *Session) Navigate(dir int) tea.Cmd {
	if dir != -1 && dir != 1 {
		return nil
	}
	base := s.index
	if s.state == Loading && s.loading >= 0 {
		base = s.loading
	}
	return s.LoadImage(base + dir)
}

// GoTo loads the entry with the given id.
func (s *Session) GoTo(id string) tea.Cmd {
	i := s.IndexOf(id)
	if i < 0 {
		return Notify(Error, fmt.Sprintf("no image %q", id))
	}
	return s.LoadImage(i)
}

// Update applies store results. Messages it does not know return nil.
func (s *Session) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case CatalogLoadedMsg:
		return s.onCatalog(msg)
	case DocumentLoadedMsg:
		if msg.Seq != s.seq {
			s.logger.Debug("session.load.stale", "kind", "document", "seq", msg.Seq, "latest", s.seq)
			return nil
		}
		if msg.Err != nil {
			return s.loadFailed(msg.Index, msg.Err)
		}
		s.pendingDoc = msg.Doc
		return s.tryDisplay()
	case ImageLoadedMsg:
		if msg.Seq != s.seq {
			s.logger.Debug("session.load.stale", "kind", "image", "seq", msg.Seq, "latest", s.seq)
			return nil
		}
		if msg.Err != nil {
			return s.loadFailed(msg.Index, msg.Err)
		}
		s.pendingImg = msg.Image
		return s.tryDisplay()
	case SavedMsg:
		return s.onSaved(msg)
	case ProgressMarkedMsg:
		return s.onMarked(msg)
	}
	return nil
}

func (s *Session) onCatalog(msg CatalogLoadedMsg) tea.Cmd {
	if msg.Err != nil {
		s.logger.Error("session.catalog.error", "error", msg.Err)
		return Notify(Error, "Error loading images: "+msg.Err.Error())
	}
	s.catalog = msg.Entries
	s.progress = msg.Progress
	if s.progress.Viewed == nil || s.progress.Updated == nil {
		s.progress = progress.FromWire(msg.Progress.ToWire())
	}
	s.logger.Info("session.catalog.ok", "count", len(s.catalog))
	var cmds []tea.Cmd
	if msg.ProgressErr != nil {
		s.logger.Warn("session.progress.error", "error", msg.ProgressErr)
		cmds = append(cmds, Notify(Error, "Progress unavailable: "+msg.ProgressErr.Error()))
	}
	if len(s.catalog) == 0 {
		cmds = append(cmds, Notify(Info, "No images with JSON sidecars found"))
		return tea.Batch(cmds...)
	}
	first := 0
	if s.start != "" {
		if i := s.IndexOf(s.start); i >= 0 {
			first = i
		} else {
			cmds = append(cmds, Notify(Error, fmt.Sprintf("no image %q", s.start)))
		}
	}
	cmds = append(cmds, s.LoadImage(first))
	return tea.Batch(cmds...)
}

func (s *Session) loadFailed(index int, err error) tea.Cmd {
	// invalidate the other half of this load
	s.seq++
	s.pendingDoc, s.pendingImg = nil, nil
	s.loading = -1
	if s.doc != nil {
		s.state = Displaying
	} else {
		s.state = Idle
	}
	id := ""
	if index >= 0 && index < len(s.catalog) {
		id = s.catalog[index].ID
	}
	s.logger.Error("session.load.error", "id", id, "error", err)
	return Notify(Error, fmt.Sprintf("Error loading %s: %v", id, err))
}

func (s *Session) tryDisplay() tea.Cmd {
	if s.pendingDoc == nil || s.pendingImg == nil {
		return nil
	}
	s.index = s.loading
	s.loading = -1
	s.doc, s.img = s.pendingDoc, s.pendingImg
	s.pendingDoc, s.pendingImg = nil, nil
	s.rev, s.savedRev, s.docSeq = 0, 0, s.seq
	if s.selected != "" && !s.doc.Has(s.selected) {
		s.selected = ""
	}

	b := s.img.Bounds()
	s.Viewport.SetSurface(b.Dx(), b.Dy(), s.dispW, s.dispH)
	s.Viewport.Reset()
	s.state = Displaying

	id := s.catalog[s.index].ID
	s.logger.Info("session.load.ok", "id", id, "index", s.index,
		"width", b.Dx(), "height", b.Dy(), "ocr", len(s.doc.OCR), "fields", s.doc.Len())

	idx := s.index
	shown := func() tea.Msg { return DisplayedMsg{Index: idx, ID: id} }
	if s.progress.Status(id) != progress.Unviewed {
		return shown
	}
	st := s.store
	return tea.Batch(shown, func() tea.Msg {
		ctx, cancel := s.ctx()
		defer cancel()
		return ProgressMarkedMsg{ID: id, Kind: progress.Viewed, Err: st.MarkViewed(ctx, id)}
	})
}

// SelectField makes name the target of clicks.
func (s *Session) SelectField(name string) error {
	if s.doc == nil || !s.doc.Has(name) {
		return fmt.Errorf("%w: %q", annotate.ErrUnknownField, name)
	}
	s.selected = name
	return nil
}

// CycleField moves the selection by delta through the field order.
func (s *Session) CycleField(delta int) {
	if s.doc == nil || s.doc.Len() == 0 {
		return
	}
	names := s.doc.Names()
	i := s.doc.Index(s.selected)
	if i < 0 {
		if delta > 0 {
			i = -1
		} else {
			i = 0
		}
	}
	n := len(names)
	s.selected = names[((i+delta)%n+n)%n]
}

// ClickAt assigns the OCR box under a displayed point to the selected field.
// It reports whether a box was hit.
func (s *Session) ClickAt(screen geom.Point) (bool, error) {
	if s.selected == "" {
		return false, ErrNoFieldSelected
	}
	if s.doc == nil {
		return false, nil
	}
	p := s.Viewport.ScreenToImage(screen)
	box := geom.FindBoxAt(p, s.doc.OCR)
	if box == nil {
		return false, nil
	}
	if err := s.doc.Assign(s.selected, box); err != nil {
		return false, err
	}
	s.rev++
	s.logger.Debug("session.assign", "field", s.selected, "x", p.X(), "y", p.Y())
	return true, nil
}

// ClearSelected empties the selected field. Without a selection it does
// nothing.
func (s *Session) ClearSelected() {
	if s.selected == "" || s.doc == nil {
		return
	}
	if box, _ := s.doc.Box(s.selected); box == nil {
		return
	}
	_ = s.doc.Clear(s.selected)
	s.rev++
}

// ResetView returns the viewport to zoom 1 and no pan.
func (s *Session) ResetView() {
	s.Viewport.Reset()
}

// Save sends the current document as it stands now.
func (s *Session) Save() tea.Cmd {
	cur, ok := s.Current()
	if !ok || s.doc == nil {
		return nil
	}
	data, err := s.doc.MarshalJSON()
	if err != nil {
		return Notify(Error, "Error saving changes: "+err.Error())
	}
	rev, docSeq, st, id := s.rev, s.docSeq, s.store, cur.ID
	s.logger.Info("session.save.start", "id", id, "bytes", len(data))
	return func() tea.Msg {
		ctx, cancel := s.ctx()
		defer cancel()
		return SavedMsg{ID: id, DocSeq: docSeq, Rev: rev, Err: st.SaveDocument(ctx, id, data)}
	}
}

func (s *Session) onSaved(msg SavedMsg) tea.Cmd {
	if msg.Err != nil {
		s.logger.Error("session.save.error", "id", msg.ID, "error", msg.Err)
		return Notify(Error, "Error saving changes: "+msg.Err.Error())
	}
	s.logger.Info("session.save.ok", "id", msg.ID)
	if msg.DocSeq == s.docSeq && msg.Rev > s.savedRev {
		s.savedRev = msg.Rev
	}
	st, id := s.store, msg.ID
	return tea.Batch(
		Notify(Info, "Changes saved successfully"),
		func() tea.Msg {
			ctx, cancel := s.ctx()
			defer cancel()
			return ProgressMarkedMsg{ID: id, Kind: progress.Updated, Err: st.MarkUpdated(ctx, id)}
		},
	)
}

func (s *Session) onMarked(msg ProgressMarkedMsg) tea.Cmd {
	if msg.Err != nil {
		s.logger.Warn("session.progress.error", "id", msg.ID, "kind", msg.Kind.String(), "error", msg.Err)
		return Notify(Error, "Progress update failed: "+msg.Err.Error())
	}
	switch msg.Kind {
	case progress.Viewed:
		s.progress.MarkViewed(msg.ID)
	case progress.Updated:
		s.progress.MarkUpdated(msg.ID)
	}
	return nil
}
