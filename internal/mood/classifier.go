package mood

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Sentinel errors for classification outcomes.
var (
	// ErrNoFace is returned when the classifier found no face in the frame.
	ErrNoFace = errors.New("no face detected in frame")

	// ErrInvalidClassification is returned when the classifier response is
	// malformed: unknown label or confidence outside [0,1]. Invalid values
	// are a failure, never clamped.
	ErrInvalidClassification = errors.New("classifier returned an invalid result")

	// ErrClassifierUnavailable is returned when the classifier service cannot
	// be reached or reports an internal failure.
	ErrClassifierUnavailable = errors.New("mood classifier unavailable")
)

// Classifier turns one frame into a mood classification.
type Classifier interface {
	Classify(ctx context.Context, frame Frame) (Result, error)
}

// HTTPClassifier calls an external mood classifier service over JSON/HTTP.
// Every call is bounded by the configured timeout; a hung inference never
// blocks the caller indefinitely. The adapter does not retry.
type HTTPClassifier struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
}

// NewHTTPClassifier returns a classifier adapter for the service at baseURL.
func NewHTTPClassifier(baseURL string, timeout time.Duration) *HTTPClassifier {
	return &HTTPClassifier{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
	}
}

type predictRequest struct {
	ImageBase64 string `json:"image_base64"`
}

type predictResponse struct {
	Class       string             `json:"class"`
	Confidence  float64            `json:"confidence"`
	Predictions map[string]float64 `json:"predictions,omitempty"`
}

// Classify implements Classifier.
func (c *HTTPClassifier) Classify(ctx context.Context, frame Frame) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(predictRequest{
		ImageBase64: base64.StdEncoding.EncodeToString(frame.Data),
	})
	if err != nil {
		return Result{}, fmt.Errorf("encoding predict request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("building predict request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrClassifierUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Result{}, ErrNoFace
	case resp.StatusCode != http.StatusOK:
		return Result{}, fmt.Errorf("%w: status %d", ErrClassifierUnavailable, resp.StatusCode)
	}

	var pr predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidClassification, err)
	}

	if pr.Class == "" {
		return Result{}, ErrNoFace
	}

	label, ok := ParseLabel(pr.Class)
	if !ok {
		return Result{}, fmt.Errorf("%w: unknown label %q", ErrInvalidClassification, pr.Class)
	}
	if pr.Confidence < 0 || pr.Confidence > 1 {
		return Result{}, fmt.Errorf("%w: confidence %v out of range", ErrInvalidClassification, pr.Confidence)
	}

	return Result{Label: label, Confidence: pr.Confidence}, nil
}
