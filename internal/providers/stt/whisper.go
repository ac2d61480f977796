// Package stt implements the streaming speech-to-text client: a chunked
// multipart upload of a WAV-wrapped mu-law stream (spec.md §4.8).
package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sync"

	"github.com/tcz/rotarygpt/internal/conversation"
	"github.com/tcz/rotarygpt/internal/wavhdr"
)

const (
	defaultURL = "https://api.openai.com/v1/audio/transcriptions"
	model      = "whisper-1"
	// boundary is fixed rather than randomly generated so every upload's
	// wire shape matches spec.md §6 byte-for-byte.
	boundary = "112FEUERNOTRUF110"
)

// Client opens a new streaming upload per call to StartUpload.
type Client struct {
	apiKey     string
	url        string
	httpClient *http.Client
}

// New builds a Client.
func New(apiKey string) *Client {
	return &Client{apiKey: apiKey, url: defaultURL, httpClient: http.DefaultClient}
}

// Upload is one in-flight streaming transcription request.
type Upload struct {
	mu        sync.Mutex
	finished  bool
	discarded bool

	pipeWriter *io.PipeWriter
	mpWriter   *multipart.Writer
	filePart   io.Writer

	cancel context.CancelFunc
	respCh chan uploadResult
}

type uploadResult struct {
	resp *http.Response
	err  error
}

// StartUpload opens a chunked multipart POST and writes the WAV header as
// the first bytes of the file part, ready to receive frames via AddFrame.
func (c *Client) StartUpload(ctx context.Context) (conversation.STTUpload, error) {
	pr, pw := io.Pipe()

	mpWriter := multipart.NewWriter(pw)
	if err := mpWriter.SetBoundary(boundary); err != nil {
		return nil, fmt.Errorf("stt: set boundary: %w", err)
	}

	reqCtx, cancel := context.WithCancel(ctx)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.url, pr)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("stt: build request: %w", err)
	}
	req.Header.Set("Content-Type", mpWriter.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	u := &Upload{
		pipeWriter: pw,
		mpWriter:   mpWriter,
		cancel:     cancel,
		respCh:     make(chan uploadResult, 1),
	}

	go func() {
		resp, err := c.httpClient.Do(req)
		u.respCh <- uploadResult{resp: resp, err: err}
	}()

	if err := mpWriter.WriteField("model", model); err != nil {
		u.Discard()
		return nil, fmt.Errorf("stt: write model field: %w", err)
	}
	part, err := mpWriter.CreateFormFile("file", "data.wav")
	if err != nil {
		u.Discard()
		return nil, fmt.Errorf("stt: create file part: %w", err)
	}
	u.filePart = part

	if _, err := u.filePart.Write(wavhdr.Header()); err != nil {
		u.Discard()
		return nil, fmt.Errorf("stt: write wav header: %w", err)
	}

	return u, nil
}

// AddFrame forwards one audio frame as part of the file upload. Frames
// added after Finish or Discard are ignored.
func (u *Upload) AddFrame(frame []byte) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.finished || u.discarded {
		return nil
	}
	_, err := u.filePart.Write(frame)
	return err
}

// Finish closes the multipart body, then reads the response to EOF and
// returns the transcript's text field (empty if absent or on any
// network/parse failure, per spec.md §7's "no transcript" disposition).
func (u *Upload) Finish(ctx context.Context) (string, error) {
	u.mu.Lock()
	if u.finished || u.discarded {
		u.mu.Unlock()
		return "", nil
	}
	u.finished = true
	u.mu.Unlock()

	if err := u.mpWriter.Close(); err != nil {
		u.pipeWriter.CloseWithError(err)
		return "", fmt.Errorf("stt: close multipart writer: %w", err)
	}
	if err := u.pipeWriter.Close(); err != nil {
		return "", fmt.Errorf("stt: close pipe: %w", err)
	}

	select {
	case result := <-u.respCh:
		if result.err != nil {
			return "", fmt.Errorf("stt: request failed: %w", result.err)
		}
		defer result.resp.Body.Close()

		body, err := io.ReadAll(result.resp.Body)
		if err != nil {
			return "", fmt.Errorf("stt: read response: %w", err)
		}
		if result.resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("stt: status %d: %s", result.resp.StatusCode, body)
		}

		var parsed struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(body, &parsed); err != nil {
			return "", fmt.Errorf("stt: parse response: %w", err)
		}
		return parsed.Text, nil
	case <-ctx.Done():
		u.cancel()
		return "", ctx.Err()
	}
}

// Discard aborts the connection without reading the response.
func (u *Upload) Discard() {
	u.mu.Lock()
	if u.discarded || u.finished {
		u.mu.Unlock()
		return
	}
	u.discarded = true
	u.mu.Unlock()

	u.cancel()
	u.pipeWriter.CloseWithError(fmt.Errorf("stt: upload discarded"))
}
