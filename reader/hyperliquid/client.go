package hyperliquid

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"quotelens/config"
	"quotelens/logger"
	"quotelens/models"
)

// Request type discriminators accepted by the info endpoint.
const (
	typeOpenOrders        = "openOrders"
	typeAllMids           = "allMids"
	typeClearinghouse     = "clearinghouseState"
	typeSpotClearinghouse = "spotClearinghouseState"
)

// ErrMalformedResponse marks an API reply whose shape did not match the
// documented schema. Callers treat it as fatal; no coercion is attempted.
var ErrMalformedResponse = errors.New("malformed info response")

// StatusError reports a non-2xx reply from the info endpoint.
type StatusError struct {
	Call   string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s request failed with status %d", e.Call, e.Status)
}

// Client issues the read-only info endpoint queries a snapshot run needs.
// Every query is a JSON POST to the same URL discriminated by a type field.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	attempts   int
	timeout    time.Duration
	log        *logger.Log
}

// retryDelay spaces the single retry the client performs on transient
// failures. Call volume is tiny, so no backoff beyond this.
const retryDelay = 500 * time.Millisecond

// NewClient builds a Client from the api section of the configuration.
func NewClient(cfg *config.Config) *Client {
	log := logger.GetLogger()

	transport := &http.Transport{
		MaxIdleConns:        4,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     30 * time.Second,
	}

	client := &Client{
		baseURL:    cfg.API.URL,
		httpClient: &http.Client{Transport: transport},
		limiter:    rate.NewLimiter(rate.Limit(cfg.API.RequestsPerSecond), cfg.API.BurstSize),
		attempts:   cfg.API.RetryAttempts,
		timeout:    cfg.API.Timeout.Std(),
		log:        log,
	}

	log.WithComponent("hyperliquid_client").WithFields(logger.Fields{
		"url":      cfg.API.URL,
		"timeout":  cfg.API.Timeout.Std(),
		"attempts": cfg.API.RetryAttempts,
	}).Debug("hyperliquid client initialized")

	return client
}

// OpenOrders fetches the user's resting orders.
func (c *Client) OpenOrders(ctx context.Context, user string) ([]models.RawOrder, error) {
	var wire []wireOrder
	if err := c.post(ctx, typeOpenOrders, infoRequest{Type: typeOpenOrders, User: user}, &wire); err != nil {
		return nil, err
	}

	orders := make([]models.RawOrder, 0, len(wire))
	for _, w := range wire {
		order, err := w.toOrder()
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, nil
}

// AllMids fetches the current mid price for every market.
func (c *Client) AllMids(ctx context.Context) (models.MidPrices, error) {
	var wire map[string]string
	if err := c.post(ctx, typeAllMids, infoRequest{Type: typeAllMids}, &wire); err != nil {
		return nil, err
	}
	if wire == nil {
		return nil, fmt.Errorf("%w: allMids returned no mapping", ErrMalformedResponse)
	}

	mids := make(models.MidPrices, len(wire))
	for market, raw := range wire {
		mid, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: mid for %s %q", ErrMalformedResponse, market, raw)
		}
		mids[market] = mid
	}
	return mids, nil
}

// Positions fetches the user's perpetual positions from the clearinghouse
// state.
func (c *Client) Positions(ctx context.Context, user string) ([]models.Position, error) {
	var wire clearinghouseStateResponse
	if err := c.post(ctx, typeClearinghouse, infoRequest{Type: typeClearinghouse, User: user}, &wire); err != nil {
		return nil, err
	}

	positions := make([]models.Position, 0, len(wire.AssetPositions))
	for _, ap := range wire.AssetPositions {
		pos, err := ap.Position.toPosition()
		if err != nil {
			return nil, err
		}
		positions = append(positions, pos)
	}
	return positions, nil
}

// SpotBalances fetches the user's spot token balances.
func (c *Client) SpotBalances(ctx context.Context, user string) ([]models.Balance, error) {
	var wire spotClearinghouseStateResponse
	if err := c.post(ctx, typeSpotClearinghouse, infoRequest{Type: typeSpotClearinghouse, User: user}, &wire); err != nil {
		return nil, err
	}

	balances := make([]models.Balance, 0, len(wire.Balances))
	for _, wb := range wire.Balances {
		bal, err := wb.toBalance()
		if err != nil {
			return nil, err
		}
		balances = append(balances, bal)
	}
	return balances, nil
}

// post issues one info query, retrying transient failures up to the
// configured attempt count. Decode failures are never retried: a malformed
// reply will not fix itself.
func (c *Client) post(ctx context.Context, call string, reqBody infoRequest, out interface{}) error {
	log := c.log.WithComponent("hyperliquid_client").WithFields(logger.Fields{"call": call})

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", call, err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		body, err := c.do(ctx, call, payload)
		if err == nil {
			if err := json.Unmarshal(body, out); err != nil {
				return fmt.Errorf("%w: decode %s reply: %v", ErrMalformedResponse, call, err)
			}
			return nil
		}

		lastErr = err
		if !isTransient(err) || attempt == c.attempts {
			break
		}

		log.WithError(err).WithFields(logger.Fields{"attempt": attempt}).Warn("transient fetch failure, retrying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryDelay):
		}
	}

	return lastErr
}

func (c *Client) do(ctx context.Context, call string, payload []byte) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", call, err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", call, err)
	}
	defer resp.Body.Close()

	logger.LogPerformanceEntry(c.log.WithComponent("hyperliquid_client"), "hyperliquid_client", "api_request", time.Since(start), logger.Fields{
		"call":   call,
		"status": resp.StatusCode,
	})

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{Call: call, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s reply: %w", call, err)
	}

	logger.IncrementFetch(call, len(body))
	return body, nil
}

// isTransient reports whether a fetch failure is worth one retry: transport
// errors, timeouts and server-side 5xx replies qualify. Client errors and
// malformed replies do not.
func isTransient(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Status >= 500
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
