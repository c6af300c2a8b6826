// Package gemini adapts the Gemini API to the pipeline's transcription,
// identification, and boundary-refinement ports. Model responses are treated
// as untrusted structured input and validated field by field.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/generative-ai-go/genai"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

type Adapter struct {
	client   *genai.Client
	model    string
	videoFPS int
	timeout  time.Duration
	retries  int
	log      *logrus.Logger
	validate *validator.Validate
}

func New(ctx context.Context, apiKey, model string, videoFPS int, timeout time.Duration, retries int, log *logrus.Logger) (*Adapter, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	if model == "" {
		model = "gemini-3-flash-preview"
	}
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	if retries <= 0 {
		retries = 3
	}
	return &Adapter{
		client:   client,
		model:    model,
		videoFPS: videoFPS,
		timeout:  timeout,
		retries:  retries,
		log:      log,
		validate: validator.New(),
	}, nil
}

func (a *Adapter) Close() error { return a.client.Close() }

var mimeByExt = map[string]string{
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".avi":  "video/x-msvideo",
	".mkv":  "video/x-matroska",
	".webm": "video/webm",
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".m4a":  "audio/mp4",
	".aac":  "audio/aac",
	".ogg":  "audio/ogg",
	".flac": "audio/flac",
}

// uploadFile pushes a local media file to the Gemini Files API and waits for
// it to become ACTIVE. The caller owns deletion via deleteFile.
func (a *Adapter) uploadFile(ctx context.Context, path string) (*genai.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	mime := mimeByExt[strings.ToLower(filepath.Ext(path))]
	if mime == "" {
		mime = "application/octet-stream"
	}

	file, err := a.client.UploadFile(ctx, "", f, &genai.UploadFileOptions{MIMEType: mime})
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", path, err)
	}

	for file.State == genai.FileStateProcessing {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
		file, err = a.client.GetFile(ctx, file.Name)
		if err != nil {
			return nil, fmt.Errorf("poll %s: %w", path, err)
		}
	}
	if file.State == genai.FileStateFailed {
		return nil, fmt.Errorf("remote processing failed for %s", path)
	}
	return file, nil
}

func (a *Adapter) deleteFile(ctx context.Context, file *genai.File) {
	if file == nil {
		return
	}
	if err := a.client.DeleteFile(ctx, file.Name); err != nil {
		a.log.WithError(err).Warn("failed to delete uploaded file")
	}
}

// generate runs one structured-output model call under the request timeout.
func (a *Adapter) generate(ctx context.Context, schema *genai.Schema, parts ...genai.Part) (string, error) {
	model := a.client.GenerativeModel(a.model)
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = schema

	reqCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	resp, err := model.GenerateContent(reqCtx, parts...)
	if err != nil {
		return "", err
	}
	return responseText(resp)
}

// generateWithRetry retries transient failures with exponential backoff.
// Non-retryable API rejections surface immediately, and cancellation always
// wins over the retry budget.
func (a *Adapter) generateWithRetry(ctx context.Context, schema *genai.Schema, parts ...genai.Part) (string, error) {
	var lastErr error
	for attempt := 0; attempt < a.retries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt)) * time.Second
			a.log.WithFields(logrus.Fields{"attempt": attempt, "backoff": backoff.String()}).
				Warn("retrying gemini request")
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}
		out, err := a.generate(ctx, schema, parts...)
		if err == nil {
			return out, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !retryable(err) {
			return "", fmt.Errorf("gemini request rejected: %w", err)
		}
		lastErr = err
	}
	return "", fmt.Errorf("gemini request failed after %d attempts: %w", a.retries, lastErr)
}

// retryable reports whether a failed request may be retried: rate limiting,
// server-side errors, and transport failures are transient; any other API
// rejection (bad request, auth, quota exhausted for good) is final.
func retryable(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.Code == http.StatusTooManyRequests:
			return true
		case gerr.Code >= http.StatusInternalServerError:
			return true
		default:
			return false
		}
	}
	return true
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("empty model response")
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	s := strings.TrimSpace(b.String())
	if s == "" {
		return "", fmt.Errorf("model response has no text parts")
	}
	return s, nil
}
