// Package media bridges image and video generation backends. Pollinations
// images are addressed by URL and need no request; ComfyUI jobs are queued
// on a local instance and the queue receipt is returned as-is.
package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Backend identifies a media generation backend.
type Backend string

// Supported backends.
const (
	Pollinations Backend = "pollinations"
	ComfyUI      Backend = "comfyui"
)

// Defaults applied to zero-valued job fields.
const (
	DefaultComfyBaseURL = "http://127.0.0.1:8188"
	DefaultWidth        = 1024
	DefaultHeight       = 1024
	DefaultSeconds      = 5

	pollinationsBase = "https://image.pollinations.ai/prompt/"
)

var (
	// ErrPromptRequired is returned when a job has a blank prompt.
	ErrPromptRequired = errors.New("media: prompt is required")

	// ErrUnsupportedBackend is returned for a backend that cannot run the job.
	ErrUnsupportedBackend = errors.New("media: unsupported backend")
)

// maxErrorBody bounds how much of a failed backend response is kept.
const maxErrorBody = 4096

// BackendError reports a failed call to a media backend. StatusCode is
// zero when no response was received.
type BackendError struct {
	Backend    Backend
	StatusCode int
	Message    string
	Err        error
}

func (e *BackendError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("media: %s returned %d: %s", e.Backend, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("media: %s: %v", e.Backend, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// ImageJob describes one image generation request.
type ImageJob struct {
	Prompt         string  `json:"prompt"`
	NegativePrompt string  `json:"negative_prompt,omitempty"`
	Backend        Backend `json:"provider,omitempty"`
	Width          int     `json:"width,omitempty"`
	Height         int     `json:"height,omitempty"`
	Seed           *int64  `json:"seed,omitempty"`
	ComfyBaseURL   string  `json:"comfy_base_url,omitempty"`
}

// VideoJob describes one video generation request.
type VideoJob struct {
	Prompt       string  `json:"prompt"`
	ImageURL     string  `json:"image_url,omitempty"`
	Backend      Backend `json:"provider,omitempty"`
	Seconds      float64 `json:"seconds,omitempty"`
	ComfyBaseURL string  `json:"comfy_base_url,omitempty"`
}

// ImageMeta echoes the parameters a URL-addressed image was built with.
type ImageMeta struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Seed   *int64 `json:"seed"`
}

// Result is the outcome of a generation request: either a direct image
// URL or a backend queue receipt.
type Result struct {
	Backend  Backend         `json:"provider"`
	ImageURL string          `json:"image_url,omitempty"`
	Meta     *ImageMeta      `json:"meta,omitempty"`
	Queued   json.RawMessage `json:"queued,omitempty"`
	Message  string          `json:"message,omitempty"`
}

// Bridge dispatches media jobs to their backend.
type Bridge struct {
	client       *http.Client
	comfyBaseURL string
	logger       *slog.Logger
	seed         func() int64
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithHTTPClient sets the client used for ComfyUI requests.
func WithHTTPClient(c *http.Client) Option {
	return func(b *Bridge) { b.client = c }
}

// WithComfyBaseURL sets the ComfyUI address used when a job names none.
func WithComfyBaseURL(u string) Option {
	return func(b *Bridge) {
		if u != "" {
			b.comfyBaseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithLogger sets the bridge logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bridge) { b.logger = l }
}

// NewBridge creates a Bridge.
func NewBridge(opts ...Option) *Bridge {
	b := &Bridge{
		client:       &http.Client{Timeout: 30 * time.Second},
		comfyBaseURL: DefaultComfyBaseURL,
		logger:       slog.New(slog.DiscardHandler),
		seed:         func() int64 { return rand.Int64N(1_000_000_000) },
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// GenerateImage runs an image job. Pollinations is the default backend.
func (b *Bridge) GenerateImage(ctx context.Context, job ImageJob) (Result, error) {
	if strings.TrimSpace(job.Prompt) == "" {
		return Result{}, ErrPromptRequired
	}
	if job.Backend == "" {
		job.Backend = Pollinations
	}
	if job.Width <= 0 {
		job.Width = DefaultWidth
	}
	if job.Height <= 0 {
		job.Height = DefaultHeight
	}

	switch job.Backend {
	case Pollinations:
		return Result{
			Backend:  Pollinations,
			ImageURL: PollinationsURL(job),
			Meta:     &ImageMeta{Width: job.Width, Height: job.Height, Seed: job.Seed},
		}, nil
	case ComfyUI:
		seed := b.seed()
		if job.Seed != nil {
			seed = *job.Seed
		}
		receipt, err := b.queue(ctx, job.ComfyBaseURL, imageWorkflow(job, seed))
		if err != nil {
			return Result{}, err
		}
		b.logger.Info("image job queued", "backend", ComfyUI)
		return Result{
			Backend: ComfyUI,
			Queued:  receipt,
			Message: "Image generation queued in ComfyUI. Poll its history endpoint for the output file.",
		}, nil
	default:
		return Result{}, fmt.Errorf("%w: %q", ErrUnsupportedBackend, job.Backend)
	}
}

// GenerateVideo runs a video job. Only ComfyUI can render video.
func (b *Bridge) GenerateVideo(ctx context.Context, job VideoJob) (Result, error) {
	if strings.TrimSpace(job.Prompt) == "" {
		return Result{}, ErrPromptRequired
	}
	if job.Backend == "" {
		job.Backend = ComfyUI
	}
	if job.Backend != ComfyUI {
		return Result{}, fmt.Errorf("%w: video generation runs on comfyui only, got %q", ErrUnsupportedBackend, job.Backend)
	}
	if job.Seconds <= 0 {
		job.Seconds = DefaultSeconds
	}

	receipt, err := b.queue(ctx, job.ComfyBaseURL, videoWorkflow(job))
	if err != nil {
		return Result{}, err
	}
	b.logger.Info("video job queued", "backend", ComfyUI, "seconds", job.Seconds)
	return Result{
		Backend: ComfyUI,
		Queued:  receipt,
		Message: "Video generation queued in ComfyUI. Poll its history endpoint for the MP4 file.",
	}, nil
}

// PollinationsURL builds the image URL for job. The negative prompt is
// folded into the prompt text.
func PollinationsURL(job ImageJob) string {
	prompt := job.Prompt
	if job.NegativePrompt != "" {
		prompt += "\nNegative prompt: " + job.NegativePrompt
	}

	var sb strings.Builder
	sb.WriteString(pollinationsBase)
	sb.WriteString(strings.ReplaceAll(url.QueryEscape(strings.TrimSpace(prompt)), "+", "%20"))
	sb.WriteString("?width=" + strconv.Itoa(job.Width))
	sb.WriteString("&height=" + strconv.Itoa(job.Height))
	if job.Seed != nil {
		sb.WriteString("&seed=" + strconv.FormatInt(*job.Seed, 10))
	}
	sb.WriteString("&nologo=true")
	return sb.String()
}

func (b *Bridge) queue(ctx context.Context, baseURL string, wf workflow) (json.RawMessage, error) {
	if baseURL == "" {
		baseURL = b.comfyBaseURL
	}
	payload, err := json.Marshal(wf)
	if err != nil {
		return nil, fmt.Errorf("media: marshal workflow: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(baseURL, "/")+"/prompt", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("media: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &BackendError{Backend: ComfyUI, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &BackendError{
			Backend:    ComfyUI,
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(raw)),
		}
	}

	var receipt json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&receipt); err != nil {
		return nil, fmt.Errorf("media: decode comfyui receipt: %w", err)
	}
	return receipt, nil
}
