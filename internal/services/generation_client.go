package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Aram9574/KOLINK-VERSION-FINAL-sub006/internal/apierr"
	"github.com/Aram9574/KOLINK-VERSION-FINAL-sub006/internal/logger"
	"github.com/Aram9574/KOLINK-VERSION-FINAL-sub006/internal/types"
)

// GenerateResponse is the remote generation service's reply for one post.
// Gamification is the server-validated progression result; it is optional and
// authoritative when present.
type GenerateResponse struct {
	ID            string                   `json:"id"`
	Content       string                   `json:"content"`
	ViralScore    int                      `json:"viral_score"`
	ViralAnalysis types.ViralAnalysis      `json:"viral_analysis"`
	Gamification  *types.ProgressionResult `json:"gamification,omitempty"`
}

type GenerationClient interface {
	Generate(ctx context.Context, userID uuid.UUID, brandVoice string, params types.GenerationParams) (*GenerateResponse, error)
}

type generationClient struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	httpClient *http.Client
	maxRetries int
}

func NewGenerationClient(log *logger.Logger) (GenerationClient, error) {
	apiKey := os.Getenv("GENERATION_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("missing GENERATION_API_KEY")
	}

	baseURL := os.Getenv("GENERATION_API_URL")
	if baseURL == "" {
		baseURL = "https://api.kolink.app"
	}

	timeoutSec := 120
	if v := os.Getenv("GENERATION_TIMEOUT_SECONDS"); v != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed > 0 {
			timeoutSec = parsed
		}
	}

	maxRetries := 3
	if v := os.Getenv("GENERATION_MAX_RETRIES"); v != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed >= 0 {
			maxRetries = parsed
		}
	}

	return &generationClient{
		log:        log.With("service", "GenerationClient"),
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
		maxRetries: maxRetries,
	}, nil
}

type generationHTTPError struct {
	StatusCode int
	Body       string
}

func (e *generationHTTPError) Error() string {
	return fmt.Sprintf("generation http %d: %s", e.StatusCode, e.Body)
}

// Credit and rate-limit rejections are user-actionable and never retried
// automatically. Only transport faults and 5xx responses are retried.
func isRetryableGeneration(err error) bool {
	if err == nil {
		return false
	}
	var httpErr *generationHTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == 408 || (httpErr.StatusCode >= 500 && httpErr.StatusCode <= 599)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

func jitterSleep(base time.Duration) time.Duration {
	// +/- 20%
	if base <= 0 {
		return 0
	}
	j := 0.2
	delta := base.Seconds() * j
	low := base.Seconds() - delta
	high := base.Seconds() + delta
	if low < 0 {
		low = 0
	}
	v := low + rand.Float64()*(high-low)
	return time.Duration(v * float64(time.Second))
}

type generateRequest struct {
	UserID     string                 `json:"user_id"`
	BrandVoice string                 `json:"brand_voice,omitempty"`
	Params     types.GenerationParams `json:"params"`
}

func (c *generationClient) Generate(ctx context.Context, userID uuid.UUID, brandVoice string, params types.GenerationParams) (*GenerateResponse, error) {
	req := generateRequest{
		UserID:     userID.String(),
		BrandVoice: brandVoice,
		Params:     params,
	}

	var resp GenerateResponse
	if err := c.do(ctx, "POST", "/v1/posts/generate", req, &resp); err != nil {
		return nil, categorizeGenerationError(err)
	}
	if strings.TrimSpace(resp.Content) == "" {
		return nil, apierr.New(http.StatusBadGateway, apierr.CodeGenerationFailed, fmt.Errorf("generation returned empty content"))
	}
	return &resp, nil
}

// categorizeGenerationError maps upstream failures into the machine-readable
// taxonomy. Categories are detectable both by status code and by substring on
// the upstream body.
func categorizeGenerationError(err error) error {
	var httpErr *generationHTTPError
	if errors.As(err, &httpErr) {
		body := strings.ToLower(httpErr.Body)
		switch {
		case httpErr.StatusCode == http.StatusPaymentRequired || strings.Contains(body, apierr.CodeInsufficientCredits):
			return apierr.New(http.StatusPaymentRequired, apierr.CodeInsufficientCredits, err)
		case httpErr.StatusCode == http.StatusTooManyRequests || strings.Contains(body, apierr.CodeRateLimit):
			return apierr.New(http.StatusTooManyRequests, apierr.CodeRateLimit, err)
		}
	}
	return apierr.New(http.StatusBadGateway, apierr.CodeGenerationFailed, err)
}

func (c *generationClient) doOnce(ctx context.Context, method, path string, body any) (*http.Response, []byte, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}

	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &generationHTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}

func (c *generationClient) do(ctx context.Context, method, path string, body any, out any) error {
	backoff := 1 * time.Second

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		resp, raw, err := c.doOnce(ctx, method, path, body)
		if err == nil {
			if out == nil {
				return nil
			}
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return fmt.Errorf("generation decode error: %w; raw=%s", uErr, string(raw))
			}
			return nil
		}

		if !isRetryableGeneration(err) {
			return err
		}
		if attempt == c.maxRetries {
			return err
		}

		sleepFor := backoff
		if resp != nil {
			ra := strings.TrimSpace(resp.Header.Get("Retry-After"))
			if ra != "" {
				if secs, parseErr := strconv.Atoi(ra); parseErr == nil && secs > 0 {
					sleepFor = time.Duration(secs) * time.Second
				}
			}
		}
		if sleepFor > 10*time.Second {
			sleepFor = 10 * time.Second
		}
		sleepFor = jitterSleep(sleepFor)

		c.log.Warn("Generation request retrying",
			"path", path,
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)

		time.Sleep(sleepFor)
		backoff *= 2
	}

	return fmt.Errorf("unreachable retry loop")
}
