package pricing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"mime/multipart"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"pricer/internal"
	"pricer/internal/config"
)

// Client talks to the replacement-pricing service. The service is a black
// box: it accepts a file or a batch of item descriptions and answers with
// a discriminated ServiceResponse.
type Client struct {
	cfg        config.Config
	httpClient *http.Client
	limiter    *RateLimiter
	metrics    *Metrics
	cache      *lru.Cache[string, internal.RawResultRecord]
}

type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Errors  json.RawMessage `json:"errors"`
	Data    json.RawMessage `json:"data"`
}

// SubmitRequest carries one file submission.
type SubmitRequest struct {
	Filename      string
	Content       []byte
	Tolerance     int
	Mapping       internal.FieldMapping
	SelectedSheet string
}

func NewClient(cfg config.Config, metrics *Metrics) *Client {
	size := cfg.PricerCacheSize
	if size <= 0 {
		size = 256
	}
	cache, _ := lru.New[string, internal.RawResultRecord](size)

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: time.Duration(cfg.PricerTimeoutMs) * time.Millisecond},
		limiter:    NewRateLimiter(cfg.PricerRateLimRPS),
		metrics:    metrics,
		cache:      cache,
	}
}

// PriceFile submits a spreadsheet for pricing. The reply may ask for a
// sheet selection or a field mapping before any pricing happens.
func (c *Client) PriceFile(ctx context.Context, req SubmitRequest) (internal.ServiceResponse, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", req.Filename)
	if err != nil {
		return internal.ServiceResponse{}, err
	}
	if _, err := part.Write(req.Content); err != nil {
		return internal.ServiceResponse{}, err
	}
	_ = writer.WriteField("tolerancePercent", strconv.Itoa(req.Tolerance))
	if req.SelectedSheet != "" {
		_ = writer.WriteField("selectedSheet", req.SelectedSheet)
	}
	if len(req.Mapping) > 0 {
		mappingJSON, _ := json.Marshal(req.Mapping)
		_ = writer.WriteField("fieldMapping", string(mappingJSON))
	}
	if err := writer.Close(); err != nil {
		return internal.ServiceResponse{}, err
	}

	data, err := c.post(ctx, "price/file", body.Bytes(), writer.FormDataContentType())
	if err != nil {
		return internal.ServiceResponse{}, err
	}

	var resp internal.ServiceResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return internal.ServiceResponse{}, err
	}
	if resp.Type == internal.ResponseProcessingComplete {
		c.metrics.AddItems(len(resp.Results))
	}
	return resp, nil
}

// PriceDescriptions prices a flat batch of item descriptions. Used for
// image-sourced batches, which carry no tabular structure. Answers for
// previously seen descriptions come from an in-memory cache.
func (c *Client) PriceDescriptions(ctx context.Context, descriptions []string, tolerance int) ([]internal.RawResultRecord, error) {
	out := make([]internal.RawResultRecord, len(descriptions))
	missing := make([]string, 0, len(descriptions))
	missingIdx := make([]int, 0, len(descriptions))

	for i, desc := range descriptions {
		if cached, ok := c.cache.Get(cacheKey(desc)); ok {
			c.metrics.IncCacheHit()
			out[i] = cached
			continue
		}
		missing = append(missing, desc)
		missingIdx = append(missingIdx, i)
	}

	if len(missing) > 0 {
		payload, _ := json.Marshal(map[string]any{
			"itemDescriptions": missing,
			"tolerancePercent": tolerance,
		})
		data, err := c.post(ctx, "price/items", payload, "application/json")
		if err != nil {
			return nil, err
		}

		var resp internal.ServiceResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			return nil, err
		}
		if resp.Type != internal.ResponseProcessingComplete {
			return nil, fmt.Errorf("unexpected response type for description batch: %s", resp.Type)
		}
		if len(resp.Results) != len(missing) {
			return nil, fmt.Errorf("description batch size mismatch: sent %d got %d", len(missing), len(resp.Results))
		}

		for i, record := range resp.Results {
			out[missingIdx[i]] = record
			c.cache.Add(cacheKey(missing[i]), record)
		}
		c.metrics.AddItems(len(resp.Results))
	}

	return out, nil
}

func (c *Client) post(ctx context.Context, endpoint string, payload []byte, contentType string) ([]byte, error) {
	if strings.TrimSpace(c.cfg.PricerAPIToken) == "" {
		return nil, errors.New("missing PRICER_API_TOKEN")
	}

	endpointURL := strings.TrimRight(c.cfg.PricerAPIBaseURL, "/") + "/" + endpoint

	var lastErr error
	for attempt := 1; attempt <= 5; attempt++ {
		if err := c.limiter.WaitTurn(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpointURL, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.cfg.PricerAPIToken)
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Accept", "application/json")

		c.metrics.IncRequest(endpoint)
		start := time.Now()
		resp, err := c.httpClient.Do(req)
		c.metrics.ObserveDuration(time.Since(start))
		if err != nil {
			lastErr = classifyTransportErr(err)
			c.metrics.IncError(errorTypeLabel(lastErr))
			var timeout ErrTimeout
			if errors.As(lastErr, &timeout) {
				return nil, lastErr
			}
			if attempt < 5 {
				if err := c.backoff(ctx, attempt); err != nil {
					return nil, err
				}
			}
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			if isRetryableStatus(resp.StatusCode) && attempt < 5 {
				c.metrics.IncRetries()
				lastErr = ErrUpstream{Status: resp.StatusCode, Err: fmt.Errorf("retryable status")}
				if err := c.backoff(ctx, attempt); err != nil {
					return nil, err
				}
				continue
			}
			err := ErrUpstream{Status: resp.StatusCode, Err: fmt.Errorf("%s", strings.TrimSpace(string(body)))}
			c.metrics.IncError(errorTypeLabel(err))
			return nil, err
		}

		var apiResp apiResponse
		if err := json.Unmarshal(body, &apiResp); err != nil {
			return nil, err
		}
		if !apiResp.Success {
			err := ErrUpstream{Status: resp.StatusCode, Err: fmt.Errorf("unsuccessful: %s", string(apiResp.Errors))}
			c.metrics.IncError(errorTypeLabel(err))
			return nil, err
		}
		return apiResp.Data, nil
	}

	if lastErr == nil {
		lastErr = errors.New("pricing request failed")
	}
	return nil, lastErr
}

// backoff waits out the exponential retry delay for the given attempt,
// returning early if the context is done.
func (c *Client) backoff(ctx context.Context, attempt int) error {
	delay := time.Duration(500*(1<<(attempt-1))+rand.Intn(250)) * time.Millisecond
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func classifyTransportErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout{Err: err}
	}
	return err
}

func isRetryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func cacheKey(description string) string {
	return strings.ToLower(strings.Join(strings.Fields(description), " "))
}
