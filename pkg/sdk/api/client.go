package api

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"github.com/betbot/goclob/internal/domain"
	"github.com/betbot/goclob/internal/engine"
	"github.com/betbot/goclob/pkg/orderbook"
)

// Client 撮合服务 HTTP API 的类型化客户端
type Client struct {
	client *resty.Client
}

func NewClient(host string) *Client {
	if strings.HasSuffix(host, "/") {
		host = host[:len(host)-1]
	}

	client := resty.New().
		SetBaseURL(host).
		SetTimeout(30 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(10 * time.Second)

	return &Client{client: client}
}

type apiError struct {
	Error string `json:"error"`
}

func (c *Client) post(ctx context.Context, endpoint string, body, out any) error {
	var apiErr apiError
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(out).
		SetError(&apiErr).
		Post(endpoint)
	return checkResponse(resp, err, &apiErr)
}

func (c *Client) get(ctx context.Context, endpoint string, params map[string]string, out any) error {
	var apiErr apiError
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(out).
		SetError(&apiErr).
		Get(endpoint)
	return checkResponse(resp, err, &apiErr)
}

func checkResponse(resp *resty.Response, err error, apiErr *apiError) error {
	if err != nil {
		return errors.Wrap(err, "request failed")
	}
	if resp.IsSuccess() {
		return nil
	}
	if apiErr.Error != "" {
		return errors.Errorf("http %d: %s", resp.StatusCode(), apiErr.Error)
	}
	return errors.Errorf("http %d: %s", resp.StatusCode(), resp.String())
}

// CreateMarket 创建市场
func (c *Client) CreateMarket(ctx context.Context, marketID uint32, authority, collateralAsset string, settlementDeadline int64, metaDataURL string) (*domain.Market, error) {
	var out struct {
		Market *domain.Market `json:"market"`
	}
	err := c.post(ctx, "/api/markets/", map[string]any{
		"market_id":           marketID,
		"authority":           authority,
		"collateral_asset":    collateralAsset,
		"settlement_deadline": settlementDeadline,
		"metadata_url":        metaDataURL,
	}, &out)
	return out.Market, err
}

// GetMarket 查询市场
func (c *Client) GetMarket(ctx context.Context, marketID uint32) (*domain.Market, error) {
	var out struct {
		Market *domain.Market `json:"market"`
	}
	err := c.get(ctx, fmt.Sprintf("/api/markets/%d/", marketID), nil, &out)
	return out.Market, err
}

// ListMarkets 列出全部市场
func (c *Client) ListMarkets(ctx context.Context) ([]*domain.Market, error) {
	var out struct {
		Markets []*domain.Market `json:"markets"`
	}
	err := c.get(ctx, "/api/markets/", nil, &out)
	return out.Markets, err
}

// Split 锁定抵押换取 token 对
func (c *Client) Split(ctx context.Context, marketID uint32, user string, amount uint64) error {
	return c.post(ctx, fmt.Sprintf("/api/markets/%d/split", marketID), map[string]any{
		"user": user, "amount": amount,
	}, nil)
}

// Merge 成对销毁 token 取回抵押，返回合并数量
func (c *Client) Merge(ctx context.Context, marketID uint32, user string) (uint64, error) {
	var out struct {
		Merged uint64 `json:"merged"`
	}
	err := c.post(ctx, fmt.Sprintf("/api/markets/%d/merge", marketID), map[string]any{
		"user": user,
	}, &out)
	return out.Merged, err
}

// Settle 设置结算结果（outcome: "yes" | "no" | "neither"）
func (c *Client) Settle(ctx context.Context, marketID uint32, caller, outcome string) error {
	return c.post(ctx, fmt.Sprintf("/api/markets/%d/settle", marketID), map[string]any{
		"caller": caller, "outcome": outcome,
	}, nil)
}

// Claim 兑付获胜 token，返回兑付数量
func (c *Client) Claim(ctx context.Context, marketID uint32, user string) (uint64, error) {
	var out struct {
		Paid uint64 `json:"paid"`
	}
	err := c.post(ctx, fmt.Sprintf("/api/markets/%d/claim", marketID), map[string]any{
		"user": user,
	}, &out)
	return out.Paid, err
}

// PlaceOrderRequest 下单参数
type PlaceOrderRequest struct {
	User           string   `json:"user"`
	Side           string   `json:"side"`
	TokenType      string   `json:"token_type"`
	Quantity       uint64   `json:"quantity"`
	Price          uint64   `json:"price"`
	MaxIterations  int      `json:"max_iterations"`
	Counterparties []string `json:"counterparties"`
}

// PlaceOrderResult 下单结果：订单本体与本次撮合的全部成交
type PlaceOrderResult struct {
	Order *domain.Order `json:"order"`
	Fills []engine.Fill `json:"fills"`
}

// PlaceOrder 下单
func (c *Client) PlaceOrder(ctx context.Context, marketID uint32, req PlaceOrderRequest) (*PlaceOrderResult, error) {
	var out PlaceOrderResult
	err := c.post(ctx, fmt.Sprintf("/api/markets/%d/orders", marketID), req, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CancelOrder 撤单，返回退还的托管数量
func (c *Client) CancelOrder(ctx context.Context, marketID uint32, user string, orderID uint64) (uint64, error) {
	var out struct {
		Refunded uint64 `json:"refunded"`
	}
	err := c.post(ctx, fmt.Sprintf("/api/markets/%d/orders/%d/cancel", marketID, orderID), map[string]any{
		"user": user,
	}, &out)
	return out.Refunded, err
}

// GetBook 查询订单簿
func (c *Client) GetBook(ctx context.Context, marketID uint32) (*orderbook.Book, error) {
	var out struct {
		Book *orderbook.Book `json:"book"`
	}
	err := c.get(ctx, fmt.Sprintf("/api/markets/%d/book", marketID), nil, &out)
	return out.Book, err
}

// GetStats 查询用户统计
func (c *Client) GetStats(ctx context.Context, marketID uint32, user string) (*domain.UserStats, error) {
	var out struct {
		Stats *domain.UserStats `json:"stats"`
	}
	err := c.get(ctx, fmt.Sprintf("/api/markets/%d/stats/%s", marketID, user), nil, &out)
	return out.Stats, err
}

// Trade 成交历史记录
type Trade struct {
	TradeID        string `json:"trade_id"`
	MarketID       uint32 `json:"market_id"`
	TokenType      string `json:"token_type"`
	TakerOrderID   uint64 `json:"taker_order_id"`
	MakerOrderID   uint64 `json:"maker_order_id"`
	Taker          string `json:"taker"`
	Maker          string `json:"maker"`
	TakerSide      string `json:"taker_side"`
	Price          uint64 `json:"price"`
	Quantity       uint64 `json:"quantity"`
	CollateralUsed uint64 `json:"collateral_used"`
	Timestamp      string `json:"ts"`
}

// ListTrades 查询成交历史
func (c *Client) ListTrades(ctx context.Context, marketID uint32, limit int) ([]Trade, error) {
	params := map[string]string{}
	if limit > 0 {
		params["limit"] = fmt.Sprintf("%d", limit)
	}
	var out struct {
		Trades []Trade `json:"trades"`
	}
	err := c.get(ctx, fmt.Sprintf("/api/markets/%d/trades", marketID), params, &out)
	return out.Trades, err
}

// Faucet 充值（演示/测试环境）
func (c *Client) Faucet(ctx context.Context, user, asset string, amount uint64) error {
	return c.post(ctx, "/api/faucet", map[string]any{
		"user": user, "asset": asset, "amount": amount,
	}, nil)
}

// Balance 查询账本余额
func (c *Client) Balance(ctx context.Context, user, asset string) (uint64, error) {
	var out struct {
		Balance uint64 `json:"balance"`
	}
	err := c.get(ctx, fmt.Sprintf("/api/balances/%s", user), map[string]string{"asset": asset}, &out)
	return out.Balance, err
}
