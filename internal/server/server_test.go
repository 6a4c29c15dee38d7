package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ocrlabel/internal/annotate"
	"ocrlabel/internal/common"
	"ocrlabel/internal/store"
)

const sidecar = `{"ocr":[[[0,0],[10,0],[10,5],[0,5]]],"fields":{"total":null}}`

func newTestServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "inv001.png"), []byte("\x89PNG\r\n\x1a\nrest"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "inv001.json"), []byte(sidecar), 0o644); err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(New(store.NewDir(dir, nil, nil), 1024, nil))
	t.Cleanup(srv.Close)
	return srv, dir
}

func TestAPIRoundTrip(t *testing.T) {
	srv, dir := newTestServer(t)
	c := store.NewClient(srv.URL, time.Second, nil)
	ctx := context.Background()

	cat, err := c.Catalog(ctx)
	if err != nil || len(cat) != 1 || cat[0].ID != "inv001" {
		t.Fatalf("catalog = %+v, %v", cat, err)
	}
	img, err := c.Image(ctx, "inv001")
	if err != nil || !strings.HasPrefix(string(img), "\x89PNG") {
		t.Fatalf("image = %q, %v", img, err)
	}
	doc, err := c.Document(ctx, "inv001")
	if err != nil || string(doc) != sidecar {
		t.Fatalf("document = %s, %v", doc, err)
	}

	saved := `{"ocr":[[[0,0],[10,0],[10,5],[0,5]]],"fields":{"total":[[0,0],[10,0],[10,5],[0,5]],"date":null}}`
	if err := c.SaveDocument(ctx, "inv001", []byte(saved)); err != nil {
		t.Fatalf("save: %v", err)
	}
	raw, _ := os.ReadFile(filepath.Join(dir, "inv001.json"))
	if !strings.Contains(string(raw), "\n    \"fields\": {") {
		t.Fatalf("sidecar not indented with four spaces:\n%s", raw)
	}

	if err := c.MarkViewed(ctx, "inv001"); err != nil {
		t.Fatal(err)
	}
	if err := c.MarkUpdated(ctx, "inv001"); err != nil {
		t.Fatal(err)
	}
	rec, err := c.Progress(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Status("inv001").String() != "updated" {
		t.Fatalf("progress = %+v", rec.ToWire())
	}
}

func TestAPIErrors(t *testing.T) {
	srv, _ := newTestServer(t)
	c := store.NewClient(srv.URL, time.Second, nil)
	ctx := context.Background()

	if _, err := c.Document(ctx, "missing"); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("missing doc: %v", err)
	}
	if _, err := c.Image(ctx, "missing"); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("missing image: %v", err)
	}
	for _, body := range []string{`[1,2]`, `"doc"`, `{"ocr":`} {
		if err := c.SaveDocument(ctx, "inv001", []byte(body)); !errors.Is(err, common.ErrValidation) {
			t.Errorf("save %s: %v", body, err)
		}
	}

	resp, err := http.Post(srv.URL+"/api/progress/starred/inv001", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown kind status = %d", resp.StatusCode)
	}

	big := `{"pad":"` + strings.Repeat("x", 2048) + `"}`
	resp, err = http.Post(srv.URL+"/api/data/inv001", "application/json", strings.NewReader(big))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Errorf("oversized body status = %d", resp.StatusCode)
	}
}

func TestSaveLenientlyLoadedDocument(t *testing.T) {
	tests := []struct {
		name, src string
	}{
		{"ocr not a list", `{"ocr":"oops","fields":{"total":null,"date":null}}`},
		{"three corner field", `{"ocr":[[[0,0],[10,0],[10,5],[0,5]]],"fields":{"total":[[0,0],[1,0],[1,1]],"date":null}}`},
		{"bad point", `{"ocr":[[[0,0],[10,0],[10,5],[0,5]],[[1,2,3]]],"fields":{"total":"x","date":null}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, dir := newTestServer(t)
			if err := os.WriteFile(filepath.Join(dir, "inv001.json"), []byte(tt.src), 0o644); err != nil {
				t.Fatal(err)
			}
			c := store.NewClient(srv.URL, time.Second, nil)
			ctx := context.Background()

			data, err := c.Document(ctx, "inv001")
			if err != nil {
				t.Fatal(err)
			}
			doc, err := annotate.Parse(data)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if len(doc.OCR) > 0 {
				if err := doc.Assign("date", doc.OCR[0]); err != nil {
					t.Fatal(err)
				}
			}
			out, err := json.Marshal(doc)
			if err != nil {
				t.Fatal(err)
			}
			if err := c.SaveDocument(ctx, "inv001", out); err != nil {
				t.Fatalf("save through server: %v", err)
			}
			if err := store.NewDir(t.TempDir(), nil, nil).SaveDocument(ctx, "inv001", out); err != nil {
				t.Fatalf("directory store should accept the same bytes: %v", err)
			}
		})
	}
}

func TestCORS(t *testing.T) {
	srv, _ := newTestServer(t)
	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/api/images", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent || resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("preflight = %d %q", resp.StatusCode, resp.Header.Get("Access-Control-Allow-Origin"))
	}
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{common.NotFoundf("x"), http.StatusNotFound},
		{common.Invalidf("x"), http.StatusBadRequest},
		{common.NewAppError("V", "x", common.ErrValidation), http.StatusBadRequest},
		{errors.New("disk"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := StatusCode(tt.err); got != tt.want {
			t.Errorf("StatusCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
