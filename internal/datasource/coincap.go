package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/seenimoa/cryptodash/pkg/models"
)

// DefaultCoinCapURL is the public CoinCap v2 endpoint.
const DefaultCoinCapURL = "https://api.coincap.io/v2"

// CoinCapConfig configures a CoinCap client.
type CoinCapConfig struct {
	BaseURL    string
	APIKey     string        // sent as a bearer token when set
	Timeout    time.Duration // zero means no client timeout
	RatePerSec int           // zero disables rate limiting
	HTTPClient *http.Client  // overrides Timeout when set
}

// CoinCap fetches the asset listing and per-asset history from CoinCap.
type CoinCap struct {
	baseURL string
	apiKey  string
	client  *http.Client
	limiter *RateLimiter
}

// NewCoinCap creates a CoinCap client.
func NewCoinCap(cfg CoinCapConfig) *CoinCap {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultCoinCapURL
	}
	client := cfg.HTTPClient
	if client == nil {
		client = NewHTTPClient(cfg.Timeout)
	}
	var limiter *RateLimiter
	if cfg.RatePerSec > 0 {
		limiter = NewRateLimiter(cfg.RatePerSec, time.Second)
	}
	return &CoinCap{
		baseURL: base,
		apiKey:  cfg.APIKey,
		client:  client,
		limiter: limiter,
	}
}

// Name returns the data source name.
func (c *CoinCap) Name() string { return "CoinCap" }

// --- CoinCap API types ---

type ccAssetsResponse struct {
	Data      []models.Asset `json:"data"`
	Timestamp int64          `json:"timestamp"`
	Error     string         `json:"error,omitempty"`
}

type ccHistoryResponse struct {
	Data      []models.HistoricalPoint `json:"data"`
	Timestamp int64                    `json:"timestamp"`
	Error     string                   `json:"error,omitempty"`
}

// --- Public methods ---

// GetAssets returns the full current asset listing.
func (c *CoinCap) GetAssets(ctx context.Context) ([]models.Asset, error) {
	var resp ccAssetsResponse
	if err := c.getJSON(ctx, c.baseURL+"/assets", &resp); err != nil {
		return nil, fmt.Errorf("coincap assets: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("coincap assets: %w: %s", ErrMalformed, resp.Error)
	}
	if resp.Data == nil {
		return nil, fmt.Errorf("coincap assets: %w: missing data", ErrMalformed)
	}
	return resp.Data, nil
}

// GetHistory returns price points for assetID between start and end at the
// given interval (e.g. "d1").
func (c *CoinCap) GetHistory(ctx context.Context, assetID, interval string, start, end time.Time) ([]models.HistoricalPoint, error) {
	q := url.Values{}
	q.Set("interval", interval)
	q.Set("start", strconv.FormatInt(start.UnixMilli(), 10))
	q.Set("end", strconv.FormatInt(end.UnixMilli(), 10))
	u := fmt.Sprintf("%s/assets/%s/history?%s", c.baseURL, url.PathEscape(assetID), q.Encode())

	var resp ccHistoryResponse
	if err := c.getJSON(ctx, u, &resp); err != nil {
		return nil, fmt.Errorf("coincap history %s: %w", assetID, err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("coincap history %s: %w: %s", assetID, ErrMalformed, resp.Error)
	}
	if resp.Data == nil {
		return nil, fmt.Errorf("coincap history %s: %w: missing data", assetID, ErrMalformed)
	}
	return resp.Data, nil
}

func (c *CoinCap) getJSON(ctx context.Context, u string, v any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var headers map[string]string
	if c.apiKey != "" {
		headers = map[string]string{"Authorization": "Bearer " + c.apiKey}
	}

	body, err := doGet(ctx, c.client, u, headers)
	if err != nil {
		return err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}
