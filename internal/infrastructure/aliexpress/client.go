// Package aliexpress implements the structured API client and OAuth token
// exchange for the AliExpress open platform.
package aliexpress

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sourcing/backend/internal/domain/sourcing"
)

// API methods
const (
	MethodProductGet = "aliexpress.ds.product.get"
	MethodFeedGet    = "aliexpress.ds.recommend.feed.get"
)

// DefaultRating is used when a product payload carries no rating
const DefaultRating = 4.5

const maxDescriptionLength = 2000

// TokenSource supplies a valid access token for signed calls
type TokenSource interface {
	GetValidToken(ctx context.Context) (string, error)
}

// Client issues signed calls to the platform's RPC endpoint
type Client struct {
	config     *Config
	tokens     TokenSource
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
	now        func() time.Time
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithClock replaces the clock used for request timestamps
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient creates a new structured API client
func NewClient(config *Config, tokens TokenSource, logger *zap.Logger, opts ...ClientOption) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if tokens == nil {
		return nil, fmt.Errorf("aliexpress: token source is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		config: config,
		tokens: tokens,
		httpClient: &http.Client{
			Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(config.RequestsPerSecond), config.Burst),
		logger:  logger.Named("aliexpress"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ---------------------------------------------------------------------------
// Product
// ---------------------------------------------------------------------------

// FetchProduct retrieves one product by its numeric ID.
// Transport failures return *sourcing.TransportError and platform error
// payloads return *sourcing.PlatformApplicationError.
func (c *Client) FetchProduct(ctx context.Context, externalID string) (*sourcing.SourceListing, error) {
	if !IsNumericID(externalID) {
		return nil, fmt.Errorf("aliexpress: invalid product id %q", externalID)
	}

	body, err := c.call(ctx, MethodProductGet, map[string]string{
		"product_id":      externalID,
		"ship_to_country": c.config.ShipToCountry,
		"target_currency": c.config.TargetCurrency,
		"target_language": c.config.TargetLanguage,
	})
	if err != nil {
		return nil, err
	}

	raw, err := decodeLoose(body)
	if err != nil {
		return nil, err
	}
	if errResp := errorEnvelope(raw); errResp != nil {
		return nil, errResp.toDomain()
	}

	payload, ok := raw["aliexpress_ds_product_get_response"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: missing product response", sourcing.ErrInvalidResponse)
	}
	if code, _ := scalarString(payload["rsp_code"]); !isSuccessCode(flexString(code)) {
		msg, _ := scalarString(payload["rsp_msg"])
		return nil, &sourcing.PlatformApplicationError{Code: code, Message: msg}
	}
	result, ok := payload["result"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: missing product result", sourcing.ErrInvalidResponse)
	}

	return c.listingFromProduct(externalID, result), nil
}

// listingFromProduct maps a loosely structured product payload through the
// ordered field rules. Missing fields fall back to defaults.
func (c *Client) listingFromProduct(externalID string, result map[string]any) *sourcing.SourceListing {
	listing := &sourcing.SourceListing{
		ExternalID: externalID,
		DetailURL:  "https://www.aliexpress.com/item/" + externalID + ".html",
	}

	listing.Title, _, _ = FirstString(result, titleRules)

	if sale, ruleName, ok := FirstPrice(result, SalePriceRules); ok {
		listing.SalePriceMinor = sourcing.ToMinorUnits(sale)
		c.logger.Debug("Resolved sale price",
			zap.String("product_id", externalID),
			zap.String("rule", ruleName),
		)
	}
	if orig, _, ok := FirstPrice(result, OriginalPriceRules); ok {
		minor := sourcing.ToMinorUnits(orig)
		if minor > listing.SalePriceMinor {
			listing.OriginalPriceMinor = &minor
		}
	}

	rating := DefaultRating
	if v, _, ok := FirstString(result, ratingRules); ok {
		if r, err := strconv.ParseFloat(strings.TrimSuffix(v, "%"), 64); err == nil && r > 0 {
			rating = normalizeRating(r)
		}
	}
	listing.Rating = &rating

	if v, _, ok := FirstString(result, salesRules); ok {
		if n, ok := flexString(v).Int64(); ok {
			listing.SalesVolume = &n
		}
	}

	if v, _, ok := FirstString(result, imageRules); ok {
		images := splitImages(v)
		if len(images) > 0 {
			listing.MainImageURL = images[0]
			listing.ExtraImageURLs = images[1:]
		}
	}

	if v, _, ok := FirstString(result, descriptionRules); ok {
		listing.Description = htmlToText(v)
	}
	return listing
}

// ---------------------------------------------------------------------------
// Feeds
// ---------------------------------------------------------------------------

// FetchFeed retrieves one page of a recommendation feed.
// Transport and response failures are logged and yield an empty list so that
// callers merging several feeds can continue with partial data. Credential
// errors are returned since no other feed can succeed either.
func (c *Client) FetchFeed(ctx context.Context, feed sourcing.FeedName, count, page int) ([]sourcing.SourceListing, error) {
	listings, err := c.fetchFeed(ctx, feed, count, page)
	if err != nil {
		if sourcing.IsCredentialError(err) {
			return nil, err
		}
		c.logger.Warn("Feed request failed, returning empty result",
			zap.String("feed", feed.String()),
			zap.Int("count", count),
			zap.Int("page", page),
			zap.Error(err),
		)
		return []sourcing.SourceListing{}, nil
	}
	return listings, nil
}

func (c *Client) fetchFeed(ctx context.Context, feed sourcing.FeedName, count, page int) ([]sourcing.SourceListing, error) {
	if count <= 0 {
		return []sourcing.SourceListing{}, nil
	}
	if count > MaxFeedPageSize {
		count = MaxFeedPageSize
	}
	if page <= 0 {
		page = 1
	}

	body, err := c.call(ctx, MethodFeedGet, map[string]string{
		"feed_name":       feed.String(),
		"page_no":         strconv.Itoa(page),
		"page_size":       strconv.Itoa(count),
		"country":         c.config.ShipToCountry,
		"target_currency": c.config.TargetCurrency,
		"target_language": c.config.TargetLanguage,
	})
	if err != nil {
		return nil, err
	}

	var resp feedResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", sourcing.ErrInvalidResponse, err)
	}
	if resp.ErrorResponse != nil {
		return nil, resp.ErrorResponse.toDomain()
	}
	if resp.Response == nil {
		return nil, fmt.Errorf("%w: missing feed response", sourcing.ErrInvalidResponse)
	}
	if !isSuccessCode(resp.Response.RspCode) {
		return nil, &sourcing.PlatformApplicationError{
			Code:      resp.Response.RspCode.String(),
			Message:   resp.Response.RspMsg,
			RequestID: resp.Response.RequestID,
		}
	}
	if resp.Response.Result == nil || resp.Response.Result.Products == nil {
		return []sourcing.SourceListing{}, nil
	}

	items := resp.Response.Result.Products.Items
	listings := make([]sourcing.SourceListing, 0, len(items))
	for i := range items {
		if l, ok := listingFromFeedItem(&items[i], feed); ok {
			listings = append(listings, l)
		}
	}
	return listings, nil
}

func listingFromFeedItem(p *feedProduct, feed sourcing.FeedName) (sourcing.SourceListing, bool) {
	id := strings.TrimSpace(p.ProductID.String())
	if id == "" {
		return sourcing.SourceListing{}, false
	}

	l := sourcing.SourceListing{
		ExternalID:   id,
		Title:        p.ProductTitle,
		MainImageURL: p.MainImageURL,
		DetailURL:    p.DetailURL,
		Feed:         feed,
	}
	if l.DetailURL == "" {
		l.DetailURL = "https://www.aliexpress.com/item/" + id + ".html"
	}
	if p.SmallImageURLs != nil {
		l.ExtraImageURLs = p.SmallImageURLs.Values
	}
	if sale, ok := sourcing.ParsePrice(p.TargetSalePrice.String()); ok {
		l.SalePriceMinor = sourcing.ToMinorUnits(sale)
	}
	if orig, ok := sourcing.ParsePrice(p.TargetOriginalPrice.String()); ok {
		minor := sourcing.ToMinorUnits(orig)
		if minor > l.SalePriceMinor {
			l.OriginalPriceMinor = &minor
		}
	}
	if pct := strings.TrimSuffix(strings.TrimSpace(p.EvaluateRate), "%"); pct != "" {
		if r, err := strconv.ParseFloat(pct, 64); err == nil && r > 0 {
			rating := normalizeRating(r)
			l.Rating = &rating
		}
	}
	if n, ok := p.LatestVolume.Int64(); ok {
		l.SalesVolume = &n
	}
	return l, true
}

// ---------------------------------------------------------------------------
// Transport
// ---------------------------------------------------------------------------

// call signs and issues one RPC. Common parameters and the access token are
// added here.
func (c *Client) call(ctx context.Context, method string, methodParams map[string]string) ([]byte, error) {
	token, err := c.tokens.GetValidToken(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &sourcing.TransportError{Op: method, Err: err}
	}

	params := make(map[string]string, len(methodParams)+8)
	for k, v := range methodParams {
		params[k] = v
	}
	params["app_key"] = c.config.AppKey
	params["access_token"] = token
	params["method"] = method
	params["timestamp"] = strconv.FormatInt(c.now().UnixMilli(), 10)
	params["format"] = "json"
	params["v"] = "2.0"
	params["sign_method"] = "md5"
	params["sign"] = c.config.Sign(params)

	values := url.Values{}
	for k, v := range params {
		if v != "" {
			values.Set(k, v)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.APIBaseURL+"?"+values.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("aliexpress: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &sourcing.TransportError{Op: method, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &sourcing.TransportError{Op: method, Err: err}
	}
	if resp.StatusCode >= 400 {
		return nil, &sourcing.TransportError{Op: method, StatusCode: resp.StatusCode}
	}
	return body, nil
}

func decodeLoose(body []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", sourcing.ErrInvalidResponse, err)
	}
	return raw, nil
}

func errorEnvelope(raw map[string]any) *ErrorResponse {
	env, ok := raw["error_response"].(map[string]any)
	if !ok {
		return nil
	}
	code, _ := scalarString(env["code"])
	msg, _ := scalarString(env["msg"])
	subCode, _ := scalarString(env["sub_code"])
	subMsg, _ := scalarString(env["sub_msg"])
	requestID, _ := scalarString(env["request_id"])
	return &ErrorResponse{
		Code:      flexString(code),
		Msg:       msg,
		SubCode:   subCode,
		SubMsg:    subMsg,
		RequestID: requestID,
	}
}

// normalizeRating maps percentage ratings (e.g. 96.5) onto a 5-point scale
func normalizeRating(r float64) float64 {
	if r > 5 {
		r = r / 20
	}
	if r > 5 {
		return 5
	}
	return r
}

func splitImages(v string) []string {
	parts := strings.FieldsFunc(v, func(r rune) bool { return r == ';' || r == ',' })
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// htmlToText strips markup from product detail HTML
func htmlToText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	doc.Find("script, style").Remove()
	text := strings.Join(strings.Fields(doc.Text()), " ")
	if runes := []rune(text); len(runes) > maxDescriptionLength {
		text = string(runes[:maxDescriptionLength])
	}
	return text
}
