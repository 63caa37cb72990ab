package cloudinary

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSignSkipsUnsignedKeys(t *testing.T) {
	c := New("demo", "key", "secret", "")
	a := c.sign(map[string]string{"timestamp": "1", "api_key": "key", "folder": "students"})
	b := c.sign(map[string]string{"timestamp": "1", "api_key": "other", "folder": "students", "file": "x"})
	if a != b || len(a) != 40 {
		t.Fatalf("signatures %q %q", a, b)
	}
}

func TestUploadBytes(t *testing.T) {
	var form map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/demo/image/upload" {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		form = map[string]string{}
		for k, v := range r.MultipartForm.Value {
			form[k] = v[0]
		}
		if _, ok := r.MultipartForm.File["file"]; !ok {
			http.Error(w, "file missing", http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(UploadResult{PublicID: form["public_id"], SecureURL: "https://img/s001.jpg"})
	}))
	defer srv.Close()

	c := New("demo", "key", "secret", "students")
	c.Endpoint = srv.URL
	c.now = func() time.Time { return time.Unix(1700000000, 0) }

	res, err := c.UploadBytes(context.Background(), []byte("jpeg"), "s001.jpg", "student-s001")
	if err != nil {
		t.Fatal(err)
	}
	if res.SecureURL != "https://img/s001.jpg" || res.PublicID != "student-s001" {
		t.Fatalf("result = %+v", res)
	}
	if form["overwrite"] != "true" || form["timestamp"] != "1700000000" || form["folder"] != "students" {
		t.Fatalf("form = %v", form)
	}
	want := c.sign(map[string]string{"timestamp": "1700000000", "folder": "students", "public_id": "student-s001", "overwrite": "true"})
	if form["signature"] != want {
		t.Fatalf("signature = %q, want %q", form["signature"], want)
	}
}

func TestUploadReportsFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"Invalid Signature"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New("demo", "key", "secret", "")
	c.Endpoint = srv.URL
	if _, err := c.UploadDataURL(context.Background(), "data:image/png;base64,AAAA", ""); err == nil {
		t.Fatal("expected an error")
	}
}
