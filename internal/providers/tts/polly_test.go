package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSynthesizeStreamsChunksAndUsesCurrentVoice(t *testing.T) {
	voice := NewVoiceCell("Daniel")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req speechRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.VoiceId != "Daniel" {
			t.Fatalf("VoiceId = %q, want Daniel", req.VoiceId)
		}
		if req.OutputFormat != "pcm" || req.SampleRate != "8000" || req.Engine != "neural" {
			t.Fatalf("unexpected request shape: %+v", req)
		}
		if r.Header.Get("Authorization") == "" {
			t.Fatalf("expected a SigV4 Authorization header")
		}
		w.Write([]byte{1, 2, 3, 4})
		w.(http.Flusher).Flush()
		w.Write([]byte{5, 6})
	}))
	defer srv.Close()

	c := New("AKIAFAKE", "secretfake", voice)
	c.url = srv.URL

	var got bytes.Buffer
	err := c.Synthesize(context.Background(), "hello", func(chunk []byte) error {
		got.Write(chunk)
		return nil
	})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if !bytes.Equal(got.Bytes(), []byte{1, 2, 3, 4, 5, 6}) {
		t.Fatalf("got %v, want [1 2 3 4 5 6]", got.Bytes())
	}
}

func TestSynthesizeNonOKStatus(t *testing.T) {
	voice := NewVoiceCell("Daniel")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("bad signature"))
	}))
	defer srv.Close()

	c := New("AKIAFAKE", "secretfake", voice)
	c.url = srv.URL

	err := c.Synthesize(context.Background(), "hello", func([]byte) error { return nil })
	if err == nil {
		t.Fatalf("expected error on non-200 response")
	}
}

func TestVoiceCellDefaultAndSet(t *testing.T) {
	c := NewVoiceCell("Daniel")
	if c.Voice() != "Daniel" {
		t.Fatalf("Voice() = %q, want Daniel", c.Voice())
	}
	c.SetVoice("Olivia")
	if c.Voice() != "Olivia" {
		t.Fatalf("Voice() after SetVoice = %q, want Olivia", c.Voice())
	}
}
