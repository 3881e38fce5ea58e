package speechapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"echopress/internal/language"
	"echopress/internal/transcript"
)

const maxErrorBody = 4096

// Config names the remote endpoints. DiarizationURL may be empty.
type Config struct {
	ASRURL         string
	DiarizationURL string
	Timeout        time.Duration
}

// Client uploads recordings to the configured speech services.
type Client struct {
	cfg  Config
	http *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// NewClient builds a client with a transport tuned for large uploads.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg.ASRURL = strings.TrimRight(strings.TrimSpace(cfg.ASRURL), "/")
	cfg.DiarizationURL = strings.TrimRight(strings.TrimSpace(cfg.DiarizationURL), "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Minute
	}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   time.Minute,
			KeepAlive: 3 * time.Minute,
		}).DialContext,
		MaxIdleConns:          32,
		IdleConnTimeout:       2 * time.Minute,
		TLSHandshakeTimeout:   time.Minute,
		ResponseHeaderTimeout: cfg.Timeout,
	}
	c := &Client{
		cfg:  cfg,
		http: &http.Client{Transport: transport, Timeout: cfg.Timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HasDiarizer reports whether a diarization endpoint is configured.
func (c *Client) HasDiarizer() bool {
	return c != nil && c.cfg.DiarizationURL != ""
}

type asrSegment struct {
	Start      float64  `json:"start"`
	End        float64  `json:"end"`
	Text       string   `json:"text"`
	Speaker    string   `json:"speaker"`
	Confidence *float64 `json:"confidence"`
}

type asrResponse struct {
	Language string       `json:"language"`
	Segments []asrSegment `json:"segments"`
}

// Recognize uploads audioPath to the ASR service.
func (c *Client) Recognize(ctx context.Context, audioPath, lang string) (transcript.Recognition, error) {
	var result transcript.Recognition
	if c.cfg.ASRURL == "" {
		return result, fmt.Errorf("asr: asr_url not configured")
	}
	fields := map[string]string{}
	if code := language.ToISO2(lang); code != "" {
		fields["language"] = code
	}
	var out asrResponse
	if err := c.upload(ctx, c.cfg.ASRURL+"/transcribe", audioPath, fields, &out); err != nil {
		return result, fmt.Errorf("asr: %w", err)
	}
	result.Language = out.Language
	result.Segments = make([]transcript.RecognizedSegment, 0, len(out.Segments))
	for _, seg := range out.Segments {
		result.Segments = append(result.Segments, transcript.RecognizedSegment{
			Start:      seg.Start,
			End:        seg.End,
			Text:       seg.Text,
			Speaker:    seg.Speaker,
			Confidence: seg.Confidence,
		})
	}
	return result, nil
}

type diarizationResponse struct {
	Segments []struct {
		Start   float64 `json:"start"`
		End     float64 `json:"end"`
		Speaker string  `json:"speaker"`
	} `json:"segments"`
	NumSpeakers int `json:"num_speakers"`
}

// Diarize uploads audioPath to the diarization service.
func (c *Client) Diarize(ctx context.Context, audioPath string) ([]transcript.SpeakerTurn, error) {
	if c.cfg.DiarizationURL == "" {
		return nil, fmt.Errorf("diarize: diarization_url not configured")
	}
	var out diarizationResponse
	if err := c.upload(ctx, c.cfg.DiarizationURL+"/diarize", audioPath, nil, &out); err != nil {
		return nil, fmt.Errorf("diarize: %w", err)
	}
	turns := make([]transcript.SpeakerTurn, 0, len(out.Segments))
	for _, seg := range out.Segments {
		turns = append(turns, transcript.SpeakerTurn{Start: seg.Start, End: seg.End, Speaker: seg.Speaker})
	}
	return turns, nil
}

// HealthCheck issues GET <asr_url>/health.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.cfg.ASRURL == "" {
		return fmt.Errorf("asr: asr_url not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.ASRURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("asr health: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("asr health: %s", resp.Status)
	}
	return nil
}

func (c *Client) upload(ctx context.Context, url, audioPath string, fields map[string]string, out any) error {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for key, value := range fields {
		if err := w.WriteField(key, value); err != nil {
			return fmt.Errorf("write field %s: %w", key, err)
		}
	}
	fw, err := w.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return fmt.Errorf("create form file: %w", err)
	}
	fd, err := os.Open(audioPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", audioPath, err)
	}
	defer fd.Close()
	if _, err := io.Copy(fw, fd); err != nil {
		return fmt.Errorf("copy audio: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
