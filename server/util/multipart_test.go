package util

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
)

func multipartRequest(t *testing.T, files map[string]string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, content := range files {
		fw, err := mw.CreateFormFile("file", name)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := fw.Write([]byte(content)); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestParseMultipart(t *testing.T) {
	req := multipartRequest(t, map[string]string{
		"photo.png": "fake image bytes",
	})
	rr := httptest.NewRecorder()

	parsed, err := ParseMultipart(rr, req, 1<<20, 1<<20)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	defer parsed.CloseFiles()

	if len(parsed.Files) != 1 {
		t.Fatalf("parsed %d files, want 1", len(parsed.Files))
	}

	mf := parsed.Files[0]
	if mf.Header.Filename != "photo.png" {
		t.Errorf("filename = %q", mf.Header.Filename)
	}

	data, err := io.ReadAll(mf.File)
	if err != nil {
		t.Fatalf("read part: %v", err)
	}
	if string(data) != "fake image bytes" {
		t.Errorf("part content = %q", data)
	}
}

func TestParseMultipart_SkipsOversizedFiles(t *testing.T) {
	req := multipartRequest(t, map[string]string{
		"big.png":   "this file body is far too large for the limit",
		"small.png": "ok",
	})
	rr := httptest.NewRecorder()

	parsed, err := ParseMultipart(rr, req, 1<<20, 8)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	defer parsed.CloseFiles()

	if len(parsed.Files) != 1 {
		t.Fatalf("parsed %d files, want the small one only", len(parsed.Files))
	}
	if parsed.Files[0].Header.Filename != "small.png" {
		t.Errorf("kept %q, want small.png", parsed.Files[0].Header.Filename)
	}
}

func TestParseMultipart_NotMultipart(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString("{}"))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	if _, err := ParseMultipart(rr, req, 1<<20, 1<<20); err == nil {
		t.Fatal("expected error for a non-multipart body")
	}
}
