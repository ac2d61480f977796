// Package tts implements the streaming text-to-speech client: a SigV4-signed
// POST to Polly's streaming speech endpoint (spec.md §4.10).
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/signer/v4"

	"github.com/tcz/rotarygpt/internal/conversation"
)

const (
	region      = "eu-west-1"
	service     = "polly"
	defaultHost = "polly.eu-west-1.amazonaws.com"
	defaultURL  = "https://" + defaultHost + "/v1/speech"
	sampleRate  = "8000"
	engine      = "neural"
	format      = "pcm"
)

// VoiceCell is a single-writer, read-mostly process-wide cell holding the
// current Polly voice identifier. Reads snapshot the value at request-build
// time; writes come from the change_accent tool handler on the controller
// thread (spec.md §5, §4.10).
type VoiceCell struct {
	current atomicString
}

// NewVoiceCell creates a cell defaulting to voiceID.
func NewVoiceCell(voiceID string) *VoiceCell {
	c := &VoiceCell{}
	c.current.store(voiceID)
	return c
}

// SetVoice updates the current voice identifier.
func (c *VoiceCell) SetVoice(voiceID string) {
	c.current.store(voiceID)
}

// Voice returns a snapshot of the current voice identifier.
func (c *VoiceCell) Voice() string {
	return c.current.load()
}

// Client streams synthesized speech from Polly.
type Client struct {
	url        string
	httpClient *http.Client
	signer     *v4.Signer
	voice      *VoiceCell
}

// New builds a Client signing requests with the given static AWS
// credentials and reading the TTS voice from voice at request time.
func New(accessKey, secretKey string, voice *VoiceCell) *Client {
	creds := credentials.NewStaticCredentials(accessKey, secretKey, "")
	return &Client{
		url:        defaultURL,
		httpClient: http.DefaultClient,
		signer:     v4.NewSigner(creds),
		voice:      voice,
	}
}

type speechRequest struct {
	VoiceId      string `json:"VoiceId"`
	OutputFormat string `json:"OutputFormat"`
	SampleRate   string `json:"SampleRate"`
	Engine       string `json:"Engine"`
	Text         string `json:"Text"`
}

// Synthesize POSTs text to Polly and calls onChunk once per response body
// chunk (little-endian signed 16-bit linear PCM at 8kHz). onChunk returning
// an error aborts the stream.
func (c *Client) Synthesize(ctx context.Context, text string, onChunk func([]byte) error) error {
	payload, err := json.Marshal(speechRequest{
		VoiceId:      c.voice.Voice(),
		OutputFormat: format,
		SampleRate:   sampleRate,
		Engine:       engine,
		Text:         text,
	})
	if err != nil {
		return fmt.Errorf("tts: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("tts: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if _, err := c.signer.Sign(req, bytes.NewReader(payload), service, region, time.Now()); err != nil {
		return fmt.Errorf("tts: sign request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("tts: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("tts: status %d: %s", resp.StatusCode, body)
	}

	buf := make([]byte, 4096)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			if cbErr := onChunk(chunk); cbErr != nil {
				return cbErr
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("tts: read response body: %w", err)
		}
	}
}

var _ conversation.TTSClient = (*Client)(nil)
var _ conversation.VoiceSetter = (*VoiceCell)(nil)
