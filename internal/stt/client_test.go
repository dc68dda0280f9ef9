package stt

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestTranscribeLocalMode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "audio/wav" {
			t.Errorf("content type = %q", ct)
		}
		if got := r.URL.Query().Get("language"); got != "en" {
			t.Errorf("language = %q", got)
		}
		if got := r.URL.Query().Get("initial_prompt"); got != "Jarvis, listen." {
			t.Errorf("initial_prompt = %q", got)
		}
		if got := r.Header.Get("X-Correlation-ID"); got != "cid-1" {
			t.Errorf("correlation id = %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != "RIFFdata" {
			t.Errorf("body = %q", body)
		}
		w.Write([]byte(`{"text":"  hey jarvis  "}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, ModeLocal, "", "", time.Second)
	text, err := c.Transcribe(context.Background(), Request{
		Audio:         []byte("RIFFdata"),
		Language:      "en",
		Prompt:        "Jarvis, listen.",
		CorrelationID: "cid-1",
	})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "hey jarvis" {
		t.Fatalf("text = %q", text)
	}
}

func TestTranscribeRemoteModeMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if got := r.FormValue("model"); got != "whisper-1" {
			t.Errorf("model = %q", got)
		}
		if got := r.FormValue("language"); got != "pl" {
			t.Errorf("language = %q", got)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer tok" {
			t.Errorf("auth = %q", auth)
		}
		f, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
		} else {
			f.Close()
		}
		w.Write([]byte(`{"text":"czesc"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, ModeRemote, "whisper-1", "tok", time.Second)
	text, err := c.Transcribe(context.Background(), Request{Audio: []byte("RIFFdata"), Language: "pl"})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "czesc" {
		t.Fatalf("text = %q", text)
	}
}

func TestTranscribeRetriesServerErrors(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"text":"finally"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, ModeLocal, "", "", time.Second)
	text, err := c.Transcribe(context.Background(), Request{Audio: []byte("x")})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "finally" || attempts != 3 {
		t.Fatalf("text=%q attempts=%d", text, attempts)
	}
}

func TestTranscribeNoRetryOnClientError(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("bad audio"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, ModeLocal, "", "", time.Second)
	_, err := c.Transcribe(context.Background(), Request{Audio: []byte("x")})
	if err == nil || !strings.Contains(err.Error(), "status=400") {
		t.Fatalf("err = %v", err)
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1", attempts)
	}
}

func TestTranscribeMissingURL(t *testing.T) {
	c := NewClient("", ModeLocal, "", "", time.Second)
	if _, err := c.Transcribe(context.Background(), Request{Audio: []byte("x")}); err == nil {
		t.Fatal("expected error for unset url")
	}
}
