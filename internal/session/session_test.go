package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"sort"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"ocrlabel/internal/common"
	"ocrlabel/internal/geom"
	"ocrlabel/internal/progress"
	"ocrlabel/internal/store"
)

type fakeStore struct {
	mu      sync.Mutex
	entries []store.Entry
	docs    map[string][]byte
	images  map[string][]byte
	rec     progress.Record
	saveErr error
	marks   []string
	saves   int
}

func newFakeStore(t *testing.T, docs map[string]string) *fakeStore {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 20, 10))); err != nil {
		t.Fatal(err)
	}
	f := &fakeStore{docs: map[string][]byte{}, images: map[string][]byte{}, rec: progress.NewRecord()}
	for _, id := range sortedIDs(docs) {
		f.entries = append(f.entries, store.Entry{ID: id, ImagePath: id + ".png"})
		f.docs[id] = []byte(docs[id])
		f.images[id] = buf.Bytes()
	}
	return f
}

func sortedIDs(m map[string]string) []string {
	var ids []string
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (f *fakeStore) Catalog(context.Context) ([]store.Entry, error) { return f.entries, nil }

func (f *fakeStore) Image(_ context.Context, id string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.images[id]
	if !ok {
		return nil, common.NotFoundf("image %q", id)
	}
	return b, nil
}

func (f *fakeStore) Document(_ context.Context, id string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.docs[id]
	if !ok {
		return nil, common.NotFoundf("document %q", id)
	}
	return b, nil
}

func (f *fakeStore) SaveDocument(_ context.Context, id string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	if f.saveErr != nil {
		return f.saveErr
	}
	f.docs[id] = append([]byte(nil), data...)
	return nil
}

func (f *fakeStore) Progress(context.Context) (progress.Record, error) { return f.rec, nil }

func (f *fakeStore) MarkViewed(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marks = append(f.marks, "viewed:"+id)
	return nil
}

func (f *fakeStore) MarkUpdated(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marks = append(f.marks, "updated:"+id)
	return nil
}

// run drains cmd through s.Update and returns every message seen.
func run(s *Session, cmd tea.Cmd) []tea.Msg {
	var seen []tea.Msg
	queue := []tea.Cmd{cmd}
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		if c == nil {
			continue
		}
		msg := c()
		if batch, ok := msg.(tea.BatchMsg); ok {
			queue = append(queue, batch...)
			continue
		}
		seen = append(seen, msg)
		queue = append(queue, s.Update(msg))
	}
	return seen
}

func notices(msgs []tea.Msg) []NoticeMsg {
	var out []NoticeMsg
	for _, m := range msgs {
		if n, ok := m.(NoticeMsg); ok {
			out = append(out, n)
		}
	}
	return out
}

const inv001 = `{"ocr":[[[0,0],[10,0],[10,5],[0,5]]],"fields":{"total":null,"date":null}}`

func loaded(t *testing.T, docs map[string]string) (*Session, *fakeStore) {
	t.Helper()
	f := newFakeStore(t, docs)
	s := New(f, nil)
	run(s, s.LoadCatalog())
	if s.State() != Displaying || s.Index() != 0 {
		t.Fatalf("state %v index %d after catalog load", s.State(), s.Index())
	}
	return s, f
}

func TestAssignByClick(t *testing.T) {
	s, _ := loaded(t, map[string]string{"inv001": inv001})
	want := geom.Box{{0, 0}, {10, 0}, {10, 5}, {0, 5}}

	if err := s.SelectField("total"); err != nil {
		t.Fatal(err)
	}
	hit, err := s.ClickAt(geom.Point{5, 2})
	if err != nil || !hit {
		t.Fatalf("click = %v, %v", hit, err)
	}
	if got, _ := s.Document().Box("total"); !geom.BoxesEqual(got, want) {
		t.Fatalf("total = %v", got)
	}
	if !s.Dirty() {
		t.Fatalf("assign should mark the session dirty")
	}

	if err := s.SelectField("date"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.ClickAt(geom.Point{5, 2}); err != nil {
		t.Fatal(err)
	}
	if got, _ := s.Document().Box("date"); !geom.BoxesEqual(got, want) {
		t.Fatalf("date = %v", got)
	}
	if got, _ := s.Document().Box("total"); got != nil {
		t.Fatalf("total should revert to null, got %v", got)
	}

	if hit, _ := s.ClickAt(geom.Point{50, 50}); hit {
		t.Fatalf("click outside every box should miss")
	}
}

func TestClickWithoutSelection(t *testing.T) {
	s, _ := loaded(t, map[string]string{"inv001": inv001})
	before, _ := s.Document().MarshalJSON()
	if _, err := s.ClickAt(geom.Point{5, 2}); !errors.Is(err, ErrNoFieldSelected) {
		t.Fatalf("err = %v", err)
	}
	after, _ := s.Document().MarshalJSON()
	if !bytes.Equal(before, after) || s.Dirty() {
		t.Fatalf("document changed without a selection")
	}
	s.ClearSelected()
	if s.Dirty() {
		t.Fatalf("clear without selection must be a no-op")
	}
}

func TestClickHonoursDisplayScale(t *testing.T) {
	s, _ := loaded(t, map[string]string{"inv001": inv001})
	s.SetDisplay(10, 5) // image is 20x10
	_ = s.SelectField("total")
	if hit, _ := s.ClickAt(geom.Point{2.5, 1}); !hit {
		t.Fatalf("scaled click should land in the box")
	}
	if hit, _ := s.ClickAt(geom.Point{6, 1}); hit {
		t.Fatalf("(12,2) is outside the box")
	}
}

func TestResetView(t *testing.T) {
	s, _ := loaded(t, map[string]string{"inv001": inv001})
	s.Viewport.Zoom, s.Viewport.PanX, s.Viewport.PanY = 2.5, 40, -10
	s.ResetView()
	if v := s.Viewport; v.Zoom != 1 || v.PanX != 0 || v.PanY != 0 {
		t.Fatalf("viewport = %v", v)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	s, f := loaded(t, map[string]string{"inv001": inv001})
	_ = s.SelectField("total")
	_, _ = s.ClickAt(geom.Point{5, 2})
	payload, _ := s.Document().MarshalJSON()

	msgs := run(s, s.Save())
	if n := notices(msgs); len(n) != 1 || n[0].Level != Info {
		t.Fatalf("notices = %+v", n)
	}
	if s.Dirty() {
		t.Fatalf("saved session should be clean")
	}
	stored, _ := f.Document(context.Background(), "inv001")
	var a, b bytes.Buffer
	_ = json.Compact(&a, payload)
	_ = json.Compact(&b, stored)
	if a.String() != b.String() {
		t.Fatalf("stored %s, want %s", b.String(), a.String())
	}
	if !bytes.Contains(stored, []byte(`"date":null`)) {
		t.Fatalf("null field dropped: %s", stored)
	}
	if s.Status(0) != progress.Updated {
		t.Fatalf("status = %v", s.Status(0))
	}
}

func TestSaveFailureLeavesState(t *testing.T) {
	s, f := loaded(t, map[string]string{"inv001": inv001})
	f.saveErr = errors.New("disk full")
	_ = s.SelectField("total")
	_, _ = s.ClickAt(geom.Point{5, 2})

	msgs := run(s, s.Save())
	if n := notices(msgs); len(n) != 1 || n[0].Level != Error {
		t.Fatalf("notices = %+v", n)
	}
	if !s.Dirty() || s.Status(0) == progress.Updated {
		t.Fatalf("failed save must not mark clean or updated")
	}
	if got, _ := s.Document().Box("total"); got == nil {
		t.Fatalf("document lost its assignment")
	}
}

func TestNavigateBounds(t *testing.T) {
	s, _ := loaded(t, map[string]string{"a": inv001, "b": inv001})
	if s.CanPrev() || !s.CanNext() {
		t.Fatalf("first image nav state wrong")
	}
	if cmd := s.Navigate(-1); cmd != nil {
		t.Fatalf("navigate before first should be a no-op")
	}
	s.Viewport.Zoom = 3
	run(s, s.Navigate(1))
	if s.Index() != 1 || s.Viewport.Zoom != 1 {
		t.Fatalf("index %d zoom %v", s.Index(), s.Viewport.Zoom)
	}
	if cmd := s.Navigate(1); cmd != nil {
		t.Fatalf("navigate past last should be a no-op")
	}
	if cmd := s.LoadImage(7); cmd != nil {
		t.Fatalf("out of range load should be a no-op")
	}
}

func TestStaleLoadDropped(t *testing.T) {
	s, _ := loaded(t, map[string]string{
		"a": inv001,
		"b": `{"ocr":[],"fields":{"vendor":null}}`,
		"c": `{"ocr":[],"fields":{"iban":null}}`,
	})
	first := s.LoadImage(1)
	second := s.LoadImage(2)
	run(s, second)
	run(s, first)
	if s.Index() != 2 || !s.Document().Has("iban") {
		t.Fatalf("stale load won: index %d fields %v", s.Index(), s.Document().Names())
	}
}

func TestLoadFailureKeepsCurrent(t *testing.T) {
	s, f := loaded(t, map[string]string{"a": inv001, "b": inv001})
	delete(f.images, "b")
	msgs := run(s, s.Navigate(1))
	if n := notices(msgs); len(n) != 1 || n[0].Level != Error {
		t.Fatalf("notices = %+v", n)
	}
	if s.Index() != 0 || s.State() != Displaying || !s.CanNext() {
		t.Fatalf("index %d state %v", s.Index(), s.State())
	}
}

func TestMarkViewedOnce(t *testing.T) {
	s, f := loaded(t, map[string]string{"a": inv001, "b": inv001})
	run(s, s.Navigate(1))
	run(s, s.Navigate(-1))
	want := []string{"viewed:a", "viewed:b"}
	if len(f.marks) != len(want) || f.marks[0] != want[0] || f.marks[1] != want[1] {
		t.Fatalf("marks = %v", f.marks)
	}
	if s.Status(0) != progress.Viewed || s.Status(1) != progress.Viewed {
		t.Fatalf("statuses %v %v", s.Status(0), s.Status(1))
	}
}

func TestCycleField(t *testing.T) {
	s, _ := loaded(t, map[string]string{"inv001": inv001})
	s.CycleField(1)
	if s.Selected() != "total" {
		t.Fatalf("selected %q", s.Selected())
	}
	s.CycleField(1)
	s.CycleField(1)
	if s.Selected() != "total" {
		t.Fatalf("cycle should wrap, got %q", s.Selected())
	}
	s.CycleField(-1)
	if s.Selected() != "date" {
		t.Fatalf("selected %q", s.Selected())
	}
	if err := s.SelectField("nope"); err == nil {
		t.Fatalf("unknown field accepted")
	}
}

func TestEmptyCatalog(t *testing.T) {
	f := newFakeStore(t, nil)
	s := New(f, nil)
	msgs := run(s, s.LoadCatalog())
	if n := notices(msgs); len(n) != 1 || s.State() != Idle {
		t.Fatalf("notices %+v state %v", n, s.State())
	}
	if cmd := s.Save(); cmd != nil {
		t.Fatalf("save without a document should be nil")
	}
}

func TestStartID(t *testing.T) {
	docs := map[string]string{
		"a": `{"ocr":[],"fields":{"x":null}}`,
		"b": `{"ocr":[],"fields":{"x":null}}`,
	}
	s := New(newFakeStore(t, docs), nil)
	s.SetStart("b")
	run(s, s.LoadCatalog())
	if e, ok := s.Current(); !ok || e.ID != "b" {
		t.Fatalf("current %+v %v", e, ok)
	}

	s = New(newFakeStore(t, docs), nil)
	s.SetStart("zz")
	msgs := run(s, s.LoadCatalog())
	if e, ok := s.Current(); !ok || e.ID != "a" {
		t.Fatalf("unknown start should fall back to first, got %+v", e)
	}
	if n := notices(msgs); len(n) == 0 || n[0].Level != Error {
		t.Fatalf("want an error notice, got %+v", n)
	}
}
