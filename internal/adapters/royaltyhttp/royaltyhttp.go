// Package royaltyhttp decorates an AssetCustody with royalty answers fetched
// from a remote royalty registry over HTTP. Lookup results are cached with a
// short TTL so repeated settlements on the same token do not hammer the
// oracle. Any transport or decoding failure surfaces as an error, which the
// engine recovers as "no royalty".
package royaltyhttp

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-resty/resty/v2"

	"github.com/nftmart/gomart/internal/ports"
	"github.com/nftmart/gomart/pkg/cache"
)

// royaltyAnswer 缓存的版税条目（按 bps 缓存，金额随成交价换算）
type royaltyAnswer struct {
	Recipient common.Address
	Bps       uint64
}

type royaltyResponse struct {
	Recipient  string `json:"recipient"`
	RoyaltyBps uint64 `json:"royalty_bps"`
}

// Oracle wraps a base AssetCustody, overriding RoyaltyOf with HTTP lookups.
type Oracle struct {
	ports.AssetCustody

	client *resty.Client
	cache  *cache.TTLCache[string, royaltyAnswer]
	maxBps uint64
}

// Config for the royalty oracle client.
type Config struct {
	BaseURL  string
	CacheTTL time.Duration
	Timeout  time.Duration
	MaxBps   uint64 // rate denominator, normally 10000
}

// New builds a royalty oracle decorator around base.
func New(base ports.AssetCustody, cfg Config) *Oracle {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Minute
	}
	if cfg.MaxBps == 0 {
		cfg.MaxBps = 10000
	}
	// resty 会自动从环境变量读取代理配置
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond)
	return &Oracle{
		AssetCustody: base,
		client:       client,
		cache:        cache.NewTTLCache[string, royaltyAnswer](cfg.CacheTTL),
		maxBps:       cfg.MaxBps,
	}
}

// RoyaltyOf implements ports.AssetCustody via the remote registry.
func (o *Oracle) RoyaltyOf(ctx context.Context, registry common.Address, tokenID *big.Int, salePrice *big.Int) (common.Address, *big.Int, error) {
	key := registry.Hex() + "/" + tokenID.String()
	answer, ok := o.cache.Get(key)
	if !ok {
		var body royaltyResponse
		resp, err := o.client.R().
			SetContext(ctx).
			SetQueryParam("registry", registry.Hex()).
			SetQueryParam("token_id", tokenID.String()).
			SetResult(&body).
			Get("/royalty")
		if err != nil {
			return common.Address{}, nil, fmt.Errorf("royaltyhttp: lookup: %w", err)
		}
		if resp.IsError() {
			return common.Address{}, nil, fmt.Errorf("royaltyhttp: lookup status %d", resp.StatusCode())
		}
		if !common.IsHexAddress(body.Recipient) {
			return common.Address{}, nil, fmt.Errorf("royaltyhttp: bad recipient %q", body.Recipient)
		}
		answer = royaltyAnswer{
			Recipient: common.HexToAddress(body.Recipient),
			Bps:       body.RoyaltyBps,
		}
		o.cache.Set(key, answer)
	}

	amount := new(big.Int).Mul(salePrice, new(big.Int).SetUint64(answer.Bps))
	amount.Div(amount, new(big.Int).SetUint64(o.maxBps))
	return answer.Recipient, amount, nil
}

var _ ports.AssetCustody = (*Oracle)(nil)
