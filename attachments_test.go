package micropub

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newMediaServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "bytes of %s", r.URL.Path)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestResolveAttachmentsRemoteURL(t *testing.T) {
	srv := newMediaServer(t)
	staging := t.TempDir()
	props := Properties{"photo": []any{srv.URL + "/img.jpg"}}

	atts, err := resolveAttachments(context.Background(), PostType{}, props, nil, staging, srv.Client())
	if err != nil {
		t.Fatalf("resolveAttachments failed: %v", err)
	}
	if len(atts) != 1 {
		t.Fatalf("got %d attachments, want 1", len(atts))
	}
	if atts[0].Filename != "img.jpg" || atts[0].Category != "photo" || atts[0].Template != "photo" {
		t.Errorf("descriptor = %+v", atts[0])
	}
	data, rerr := os.ReadFile(atts[0].Source)
	if rerr != nil {
		t.Fatalf("staged file missing: %v", rerr)
	}
	if string(data) != "bytes of /img.jpg" {
		t.Errorf("staged content = %q", data)
	}
}

func TestResolveAttachmentsAltText(t *testing.T) {
	srv := newMediaServer(t)
	props := Properties{
		"photo": []any{map[string]any{"value": srv.URL + "/pic.png", "alt": "a description"}},
	}

	atts, err := resolveAttachments(context.Background(), PostType{}, props, nil, t.TempDir(), srv.Client())
	if err != nil {
		t.Fatalf("resolveAttachments failed: %v", err)
	}
	if len(atts) != 1 || atts[0].Alt != "a description" {
		t.Errorf("attachments = %+v, want alt text carried over", atts)
	}
}

func TestResolveAttachmentsDisabledCategory(t *testing.T) {
	srv := newMediaServer(t)
	pt := PostType{Files: map[string]FileRule{"photo": {Disabled: true}}}
	props := Properties{"photo": []any{srv.URL + "/img.jpg"}}

	atts, err := resolveAttachments(context.Background(), pt, props, nil, t.TempDir(), srv.Client())
	if err != nil {
		t.Fatalf("resolveAttachments failed: %v", err)
	}
	if len(atts) != 0 {
		t.Errorf("disabled category yielded %d attachments", len(atts))
	}
}

func TestResolveAttachmentsSingleFileLimit(t *testing.T) {
	srv := newMediaServer(t)
	no := false
	pt := PostType{Files: map[string]FileRule{"photo": {Multiple: &no, Template: "image"}}}
	props := Properties{"photo": []any{srv.URL + "/a.jpg", srv.URL + "/b.jpg"}}

	atts, err := resolveAttachments(context.Background(), pt, props, nil, t.TempDir(), srv.Client())
	if err != nil {
		t.Fatalf("resolveAttachments failed: %v", err)
	}
	if len(atts) != 1 {
		t.Fatalf("got %d attachments, want 1", len(atts))
	}
	if atts[0].Filename != "a.jpg" || atts[0].Template != "image" {
		t.Errorf("descriptor = %+v", atts[0])
	}
}

// buildUploadForm assembles a parsed multipart form with one file part.
func buildUploadForm(t *testing.T, field, filename, content string) *multipart.Form {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(field, filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	w.Close()

	form, err := multipart.NewReader(&buf, w.Boundary()).ReadForm(32 << 20)
	if err != nil {
		t.Fatalf("ReadForm failed: %v", err)
	}
	t.Cleanup(func() { form.RemoveAll() })
	return form
}

func TestResolveAttachmentsUploadedFile(t *testing.T) {
	form := buildUploadForm(t, "photo", "Holiday Pic.JPG", "fake image data")

	atts, err := resolveAttachments(context.Background(), PostType{}, Properties{}, form, t.TempDir(), http.DefaultClient)
	if err != nil {
		t.Fatalf("resolveAttachments failed: %v", err)
	}
	if len(atts) != 1 {
		t.Fatalf("got %d attachments, want 1", len(atts))
	}
	if atts[0].Filename != "holiday-pic.jpg" {
		t.Errorf("filename = %q, want sanitized %q", atts[0].Filename, "holiday-pic.jpg")
	}
	data, rerr := os.ReadFile(atts[0].Source)
	if rerr != nil {
		t.Fatalf("staged file missing: %v", rerr)
	}
	if string(data) != "fake image data" {
		t.Errorf("staged content = %q", data)
	}
}

func TestCleanupStaging(t *testing.T) {
	staging := t.TempDir()
	oldDir := filepath.Join(staging, "aaaa1111")
	newDir := filepath.Join(staging, "bbbb2222")
	for _, d := range []string{oldDir, newDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	past := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(oldDir, past, past); err != nil {
		t.Fatal(err)
	}

	cleanupStaging(staging, 24*time.Hour, time.Now())

	if _, err := os.Stat(oldDir); !os.IsNotExist(err) {
		t.Error("expired staging dir should be removed")
	}
	if _, err := os.Stat(newDir); err != nil {
		t.Error("fresh staging dir should survive")
	}
}
