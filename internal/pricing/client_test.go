package pricing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"

	"pricer/internal"
	"pricer/internal/config"
)

func testClientConfig() config.Config {
	return config.Config{
		PricerAPIBaseURL: "https://pricer.test/api",
		PricerAPIToken:   "test-token",
		PricerRateLimRPS: 1000,
		PricerTimeoutMs:  5000,
		PricerCacheSize:  16,
	}
}

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c := NewClient(testClientConfig(), NewMetrics())
	httpmock.ActivateNonDefault(c.httpClient)
	t.Cleanup(httpmock.DeactivateAndReset)
	return c
}

func envelope(data string) string {
	return fmt.Sprintf(`{"success":true,"data":%s}`, data)
}

func TestPriceFileProcessingComplete(t *testing.T) {
	c := newTestClient(t)
	httpmock.RegisterResponder(http.MethodPost, "https://pricer.test/api/price/file",
		func(req *http.Request) (*http.Response, error) {
			if got := req.Header.Get("Authorization"); got != "Bearer test-token" {
				t.Fatalf("authorization=%q", got)
			}
			return httpmock.NewStringResponse(200, envelope(`{
				"type":"processing_complete",
				"processedRows":2,
				"results":[
					{"description":"Sony TV","status":"found","source":"bestbuy.com","price":499.99},
					{"Description":"Blender","Status":"estimated","Price":"$89.00"}
				]}`)), nil
		})

	resp, err := c.PriceFile(context.Background(), SubmitRequest{
		Filename:  "inventory.xlsx",
		Content:   []byte("fake"),
		Tolerance: 10,
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Type != internal.ResponseProcessingComplete {
		t.Fatalf("type=%s", resp.Type)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("results=%d", len(resp.Results))
	}
}

func TestPriceFileMappingRequired(t *testing.T) {
	c := newTestClient(t)
	httpmock.RegisterResponder(http.MethodPost, "https://pricer.test/api/price/file",
		httpmock.NewStringResponder(200, envelope(`{
			"type":"mapping_required",
			"missingFields":["Purchase Price"],
			"availableHeaders":["Item #","Description","Qty","Cost"]}`)))

	resp, err := c.PriceFile(context.Background(), SubmitRequest{Filename: "f.xlsx", Content: []byte("x")})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Type != internal.ResponseMappingRequired {
		t.Fatalf("type=%s", resp.Type)
	}
	if len(resp.MissingFields) != 1 || resp.MissingFields[0] != "Purchase Price" {
		t.Fatalf("missing=%v", resp.MissingFields)
	}
}

func TestPostRetriesRetryableStatus(t *testing.T) {
	c := newTestClient(t)
	calls := 0
	httpmock.RegisterResponder(http.MethodPost, "https://pricer.test/api/price/file",
		func(*http.Request) (*http.Response, error) {
			calls++
			if calls == 1 {
				return httpmock.NewStringResponse(503, "busy"), nil
			}
			return httpmock.NewStringResponse(200, envelope(`{"type":"processing_complete","results":[]}`)), nil
		})

	_, err := c.PriceFile(context.Background(), SubmitRequest{Filename: "f.xlsx", Content: []byte("x")})
	if err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Fatalf("calls=%d", calls)
	}
}

func TestPostBackoffHonorsCancellation(t *testing.T) {
	c := newTestClient(t)
	httpmock.RegisterResponder(http.MethodPost, "https://pricer.test/api/price/file",
		httpmock.NewStringResponder(503, "busy"))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := c.PriceFile(ctx, SubmitRequest{Filename: "f.xlsx", Content: []byte("x")})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %T %v", err, err)
	}
	// The first retry delay alone is at least 500ms; cancellation must cut
	// the wait short.
	if elapsed := time.Since(start); elapsed > 400*time.Millisecond {
		t.Fatalf("backoff outlived cancellation: %v", elapsed)
	}
	if httpmock.GetTotalCallCount() != 1 {
		t.Fatalf("calls=%d", httpmock.GetTotalCallCount())
	}
}

func TestPostNonRetryableStatus(t *testing.T) {
	c := newTestClient(t)
	httpmock.RegisterResponder(http.MethodPost, "https://pricer.test/api/price/file",
		httpmock.NewStringResponder(400, "bad request"))

	_, err := c.PriceFile(context.Background(), SubmitRequest{Filename: "f.xlsx", Content: []byte("x")})
	var upstream ErrUpstream
	if !errors.As(err, &upstream) {
		t.Fatalf("got %T %v", err, err)
	}
	if upstream.Status != 400 {
		t.Fatalf("status=%d", upstream.Status)
	}
	if httpmock.GetTotalCallCount() != 1 {
		t.Fatalf("calls=%d", httpmock.GetTotalCallCount())
	}
}

func TestPostTimeoutNotRetried(t *testing.T) {
	c := newTestClient(t)
	httpmock.RegisterResponder(http.MethodPost, "https://pricer.test/api/price/file",
		httpmock.NewErrorResponder(context.DeadlineExceeded))

	_, err := c.PriceFile(context.Background(), SubmitRequest{Filename: "f.xlsx", Content: []byte("x")})
	var timeout ErrTimeout
	if !errors.As(err, &timeout) {
		t.Fatalf("got %T %v", err, err)
	}
	if httpmock.GetTotalCallCount() != 1 {
		t.Fatalf("timeout must not be retried, calls=%d", httpmock.GetTotalCallCount())
	}
}

func TestPostUnsuccessfulEnvelope(t *testing.T) {
	c := newTestClient(t)
	httpmock.RegisterResponder(http.MethodPost, "https://pricer.test/api/price/file",
		httpmock.NewStringResponder(200, `{"success":false,"errors":["no credit"]}`))

	_, err := c.PriceFile(context.Background(), SubmitRequest{Filename: "f.xlsx", Content: []byte("x")})
	var upstream ErrUpstream
	if !errors.As(err, &upstream) {
		t.Fatalf("got %T %v", err, err)
	}
}

func TestPostRequiresToken(t *testing.T) {
	cfg := testClientConfig()
	cfg.PricerAPIToken = ""
	c := NewClient(cfg, NewMetrics())

	_, err := c.PriceFile(context.Background(), SubmitRequest{Filename: "f.xlsx", Content: []byte("x")})
	if err == nil {
		t.Fatal("expected missing-token error")
	}
}

func TestPriceDescriptionsCaches(t *testing.T) {
	c := newTestClient(t)
	httpmock.RegisterResponder(http.MethodPost, "https://pricer.test/api/price/items",
		httpmock.NewStringResponder(200, envelope(`{
			"type":"processing_complete",
			"results":[{"description":"Sony TV","status":"found","price":499.99}]}`)))

	first, err := c.PriceDescriptions(context.Background(), []string{"Sony TV"}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != 1 {
		t.Fatalf("results=%d", len(first))
	}

	// Same description again, normalized differently: served from cache.
	second, err := c.PriceDescriptions(context.Background(), []string{"  sony   tv "}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(second) != 1 || second[0]["description"] != "Sony TV" {
		t.Fatalf("cached result=%v", second[0])
	}
	if httpmock.GetTotalCallCount() != 1 {
		t.Fatalf("calls=%d", httpmock.GetTotalCallCount())
	}
}

func TestPriceDescriptionsSizeMismatch(t *testing.T) {
	c := newTestClient(t)
	httpmock.RegisterResponder(http.MethodPost, "https://pricer.test/api/price/items",
		httpmock.NewStringResponder(200, envelope(`{"type":"processing_complete","results":[]}`)))

	_, err := c.PriceDescriptions(context.Background(), []string{"Sony TV"}, 10)
	if err == nil {
		t.Fatal("expected size mismatch error")
	}
}
