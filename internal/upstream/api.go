package upstream

import (
	"context"
	"fmt"
	"net/url"

	"github.com/marketlens/marketlens/internal/config"
)

// API wraps a *Client with the three upstream endpoint groups this service
// consumes: Gamma market metadata, and CLOB order books / trades.
type API struct {
	client *Client
	cfg    *config.Config
}

// NewAPI constructs an API from the shared Client and Config.
func NewAPI(client *Client, cfg *config.Config) *API {
	return &API{client: client, cfg: cfg}
}

// FetchAllMarkets paginates through the Gamma API's /markets endpoint
// until a short page or the safety cap (§4.3 market sync).
func (a *API) FetchAllMarkets(ctx context.Context) ([]MarketDTO, error) {
	pageSize := a.cfg.Upstream.PageSize
	if pageSize <= 0 {
		pageSize = 500
	}
	safetyCap := a.cfg.Upstream.PageSafetyCap
	if safetyCap <= 0 {
		safetyCap = 50
	}

	return Paginate(ctx, pageSize, safetyCap, func(ctx context.Context, offset, limit int) ([]MarketDTO, error) {
		query := offsetQuery(offset, limit)
		query.Set("active", "true")

		var page []MarketDTO
		err := a.client.Get(ctx, a.cfg.Upstream.MetadataBaseURL, "/markets", query, false, &page)
		return page, err
	})
}

// FetchOrderBook fetches the CLOB /book ladder for a single token.
func (a *API) FetchOrderBook(ctx context.Context, tokenID string) (OrderBookDTO, error) {
	query := url.Values{"token_id": {tokenID}}
	var book OrderBookDTO
	err := a.client.Get(ctx, a.cfg.Upstream.BookBaseURL, "/book", query, false, &book)
	return book, err
}

// FetchRecentTrades fetches up to 5 pages of recent
// trades across the upstream's single paginated endpoint; callers filter
// to their tracked-token set locally (§4.3.c).
func (a *API) FetchRecentTrades(ctx context.Context) ([]TradeDTO, error) {
	pageSize := a.cfg.Upstream.PageSize
	if pageSize <= 0 {
		pageSize = 500
	}
	maxPages := 5

	return Paginate(ctx, pageSize, maxPages, func(ctx context.Context, offset, limit int) ([]TradeDTO, error) {
		query := offsetQuery(offset, limit)
		var page []TradeDTO
		err := a.client.Get(ctx, a.cfg.Upstream.TradesBaseURL, "/trades", query, false, &page)
		return page, err
	})
}

// FetchTradesForToken fetches recent trades scoped to one token, used when
// the per-token endpoint is signed and available (§6 Configuration).
func (a *API) FetchTradesForToken(ctx context.Context, tokenID string, limit int) ([]TradeDTO, error) {
	query := url.Values{"token_id": {tokenID}}
	query.Set("limit", fmt.Sprintf("%d", limit))
	var trades []TradeDTO
	err := a.client.Get(ctx, a.cfg.Upstream.TradesBaseURL, "/trades", query, a.cfg.AuthEnabled(), &trades)
	return trades, err
}
