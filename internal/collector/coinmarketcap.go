package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"CryptoSentinel/internal/metrics"
	"CryptoSentinel/internal/model"
)

const listingsPath = "/v1/cryptocurrency/listings/latest"

// CoinMarketCapFetcher implements Fetcher using the CoinMarketCap Pro API.
type CoinMarketCapFetcher struct {
	APIKey string
	Client *resty.Client

	now func() time.Time
}

// NewCoinMarketCapFetcher creates a fetcher with a bounded timeout and optional proxy support.
func NewCoinMarketCapFetcher(baseURL, apiKey string, timeout time.Duration, proxyURL string) *CoinMarketCapFetcher {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if proxyURL != "" {
		client.SetProxy(proxyURL)
	}
	return &CoinMarketCapFetcher{
		APIKey: apiKey,
		Client: client,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (f *CoinMarketCapFetcher) Name() string { return "coinmarketcap" }

// listingResponse is the envelope of listings/latest. Assets are kept raw so that
// one malformed entry can be skipped without failing the whole payload.
type listingResponse struct {
	Status struct {
		ErrorCode    int    `json:"error_code"`
		ErrorMessage string `json:"error_message"`
	} `json:"status"`
	Data []json.RawMessage `json:"data"`
}

type cmcAsset struct {
	ID     *int64               `json:"id"`
	Name   string               `json:"name"`
	Symbol string               `json:"symbol"`
	Quote  map[string]*cmcQuote `json:"quote"`
}

type cmcQuote struct {
	Price            *decimal.Decimal `json:"price"`
	MarketCap        *float64         `json:"market_cap"`
	Volume24h        *float64         `json:"volume_24h"`
	PercentChange1h  *float64         `json:"percent_change_1h"`
	PercentChange24h *float64         `json:"percent_change_24h"`
	PercentChange7d  *float64         `json:"percent_change_7d"`
}

// Fetch requests the top `limit` assets converted to USD.
func (f *CoinMarketCapFetcher) Fetch(ctx context.Context, limit int) (*model.Snapshot, error) {
	if limit < 1 {
		return nil, &FetchError{Err: fmt.Errorf("limit must be positive, got %d", limit)}
	}

	start := time.Now()
	resp, err := f.Client.R().
		SetContext(ctx).
		SetHeader("X-CMC_PRO_API_KEY", f.APIKey).
		SetQueryParams(map[string]string{
			"limit":   strconv.Itoa(limit),
			"convert": "USD",
		}).
		Get(listingsPath)
	metrics.FetchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, &FetchError{Err: err}
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, &FetchError{StatusCode: resp.StatusCode(), Err: fmt.Errorf("body: %s", truncate(resp.String(), 500))}
	}

	snap, err := decodeListings(resp.Body(), f.now())
	if err != nil {
		return nil, &FetchError{Err: err}
	}
	logrus.WithField("assets", len(snap.Quotes)).Info("listings fetched")
	return snap, nil
}

// decodeListings turns a listings payload into a snapshot. Assets that fail validation
// are skipped with a warning; a payload with no usable asset is an error.
func decodeListings(body []byte, observedAt time.Time) (*model.Snapshot, error) {
	var envelope listingResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode listings: %w", err)
	}
	if envelope.Status.ErrorCode != 0 {
		return nil, fmt.Errorf("api error %d: %s", envelope.Status.ErrorCode, envelope.Status.ErrorMessage)
	}

	snap := &model.Snapshot{
		ObservedAt: observedAt,
		Quotes:     make([]model.AssetQuote, 0, len(envelope.Data)),
		Raw:        body,
	}
	for i, raw := range envelope.Data {
		q, err := decodeAsset(raw, observedAt)
		if err != nil {
			metrics.AssetsSkipped.Inc()
			logrus.WithFields(logrus.Fields{"index": i, "error": err}).Warn("skipping malformed asset")
			continue
		}
		snap.Quotes = append(snap.Quotes, q)
	}
	if len(snap.Quotes) == 0 {
		return nil, errors.New("listings contained no usable assets")
	}
	return snap, nil
}

func decodeAsset(raw json.RawMessage, observedAt time.Time) (model.AssetQuote, error) {
	var a cmcAsset
	if err := json.Unmarshal(raw, &a); err != nil {
		return model.AssetQuote{}, fmt.Errorf("decode asset: %w", err)
	}
	if a.ID == nil {
		return model.AssetQuote{}, errors.New("missing id")
	}
	if a.Symbol == "" {
		return model.AssetQuote{}, fmt.Errorf("asset %d: missing symbol", *a.ID)
	}
	usd := a.Quote["USD"]
	if usd == nil {
		return model.AssetQuote{}, fmt.Errorf("asset %s: missing USD quote", a.Symbol)
	}
	if usd.Price == nil {
		return model.AssetQuote{}, fmt.Errorf("asset %s: missing price", a.Symbol)
	}
	if usd.Price.IsNegative() {
		return model.AssetQuote{}, fmt.Errorf("asset %s: negative price %s", a.Symbol, usd.Price)
	}
	q := model.AssetQuote{
		ID:               *a.ID,
		Symbol:           a.Symbol,
		Name:             a.Name,
		Price:            *usd.Price,
		MarketCap:        orZero(usd.MarketCap),
		Volume24h:        orZero(usd.Volume24h),
		PercentChange1h:  orZero(usd.PercentChange1h),
		PercentChange24h: orZero(usd.PercentChange24h),
		PercentChange7d:  orZero(usd.PercentChange7d),
		ObservedAt:       observedAt,
	}
	if q.MarketCap < 0 {
		return model.AssetQuote{}, fmt.Errorf("asset %s: negative market cap %f", a.Symbol, q.MarketCap)
	}
	return q, nil
}

func orZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
