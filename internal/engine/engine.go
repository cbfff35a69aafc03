// Package engine 实现挂单/出价/结算状态机
// 所有写操作经过同一把互斥锁全局串行化；每次调用要么完整生效要么完全不生效。
// 结算路径上的外部资产转移一律发生在本地状态提交之后，重入调用只能看到
// 已更新的状态，无法重放任何一笔支付。
package engine

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/nftmart/gomart/internal/domain"
	"github.com/nftmart/gomart/internal/events"
	"github.com/nftmart/gomart/internal/ports"
	"github.com/nftmart/gomart/internal/store"
	"github.com/nftmart/gomart/pkg/logger"
)

// Config 引擎参数（部署时确定，运行期不可变）
type Config struct {
	// EngineAccount 引擎在资产注册表和支付账本上的托管账户
	EngineAccount common.Address
	// PlatformOwner 平台手续费收款地址
	PlatformOwner common.Address
	// FeeBps 平台手续费率（bps）
	FeeBps uint64
	// BidBufferBps 最小加价比例（bps）
	BidBufferBps uint64
	// TimeBuffer 反狙击时间缓冲
	TimeBuffer time.Duration
	// MaxBps 比例分母（"max basis points"），默认 10000
	MaxBps uint64
	// DisplayDecimals 事件里可读金额的小数位数（USDC 口径默认 6）
	DisplayDecimals int32
}

// Engine 结算引擎
type Engine struct {
	mu sync.Mutex // 全局串行化：写操作互不交错

	cfg     Config
	store   *store.MarketStore
	custody ports.AssetCustody
	ledger  ports.PaymentLedger
	bus     *events.Bus
	clock   func() time.Time
	log     *logrus.Entry
}

// New 创建结算引擎
func New(cfg Config, st *store.MarketStore, custody ports.AssetCustody, ledger ports.PaymentLedger, bus *events.Bus) *Engine {
	if cfg.MaxBps == 0 {
		cfg.MaxBps = 10000
	}
	if cfg.DisplayDecimals == 0 {
		cfg.DisplayDecimals = 6
	}
	return &Engine{
		cfg:     cfg,
		store:   st,
		custody: custody,
		ledger:  ledger,
		bus:     bus,
		clock:   time.Now,
		log:     logger.WithField("component", "engine"),
	}
}

// SetClock 注入时钟（测试用）
func (e *Engine) SetClock(clock func() time.Time) {
	e.clock = clock
}

func (e *Engine) now() time.Time {
	return e.clock().UTC()
}

func (e *Engine) emit(ev events.Event) {
	if e.bus != nil {
		e.bus.Publish(ev)
	}
}

// ---- 只读查询（无副作用） ----

// GetListing 按 id 查询挂单
func (e *Engine) GetListing(id uint64) (*domain.Listing, error) {
	return e.store.GetListing(id)
}

// ListListings 返回全部挂单（含已结束的历史挂单）
func (e *Engine) ListListings() []*domain.Listing {
	return e.store.ListListings()
}

// GetListingBids 返回挂单的完整出价历史（尾项即当前领先者）
func (e *Engine) GetListingBids(id uint64) ([]domain.Bid, error) {
	if _, err := e.store.GetListing(id); err != nil {
		return nil, err
	}
	return e.store.Bids(id), nil
}

// GetStake 返回出价人在某挂单上的当前在押押金
func (e *Engine) GetStake(id uint64, bidder common.Address) (*big.Int, error) {
	if _, err := e.store.GetListing(id); err != nil {
		return nil, err
	}
	return e.store.Stake(id, bidder), nil
}

// ---- 分账计算 ----

// payout 一次结算的分账结果：fee + royalty + remainder == total
type payout struct {
	fee              *big.Int
	royalty          *big.Int
	royaltyRecipient common.Address
	remainder        *big.Int
}

// computePayout 计算平台手续费、版税和创建者所得
// 版税查询失败或为零时按无版税处理（版税是建议性的，不能阻塞结算）；
// 版税被封顶保证 fee + royalty ≤ total
func (e *Engine) computePayout(ctx context.Context, asset domain.AssetRef, total *big.Int) payout {
	fee := new(big.Int).Mul(total, new(big.Int).SetUint64(e.cfg.FeeBps))
	fee.Div(fee, new(big.Int).SetUint64(e.cfg.MaxBps))

	royalty := new(big.Int)
	var recipient common.Address
	if r, amount, err := e.custody.RoyaltyOf(ctx, asset.Registry, asset.TokenID, total); err != nil {
		e.log.WithField("registry", asset.Registry.Hex()).Debugf("版税查询失败，按无版税处理: %v", err)
	} else if amount != nil && amount.Sign() > 0 {
		recipient = r
		royalty.Set(amount)
	}

	// 封顶：royalty + fee ≤ total
	maxRoyalty := new(big.Int).Sub(total, fee)
	if royalty.Cmp(maxRoyalty) > 0 {
		royalty.Set(maxRoyalty)
	}

	remainder := new(big.Int).Sub(total, fee)
	remainder.Sub(remainder, royalty)
	return payout{fee: fee, royalty: royalty, royaltyRecipient: recipient, remainder: remainder}
}

// ---- 共用校验 ----

// validateAssetSide 校验创建者持有资产且已授权引擎转移
// Unique 校验当前持有人；MultiUnit 校验余额不少于 quantity（"at least" 口径）
func (e *Engine) validateAssetSide(ctx context.Context, asset domain.AssetRef, owner common.Address, quantity uint64) error {
	switch asset.Kind {
	case domain.KindUnique:
		actual, err := e.custody.OwnerOf(ctx, asset.Registry, asset.TokenID)
		if err != nil {
			return wrapValidation(err, "ownership lookup failed")
		}
		if actual != owner {
			return wrapValidationf("caller %s does not own the asset", owner.Hex())
		}
	case domain.KindMultiUnit:
		bal, err := e.custody.BalanceOf(ctx, asset.Registry, owner, asset.TokenID)
		if err != nil {
			return wrapValidation(err, "balance lookup failed")
		}
		if bal < quantity {
			return wrapValidationf("caller holds %d units, listing needs %d", bal, quantity)
		}
	default:
		return wrapValidationf("unknown asset kind %d", asset.Kind)
	}

	approved, err := e.custody.IsApproved(ctx, asset.Registry, owner, e.cfg.EngineAccount)
	if err != nil {
		return wrapValidation(err, "approval lookup failed")
	}
	if !approved {
		return wrapValidationf("engine is not approved to move %s's assets", owner.Hex())
	}
	return nil
}

// validateFunds 校验付款方余额和对引擎的授权额度都覆盖 amount
func (e *Engine) validateFunds(ctx context.Context, currency common.Address, payer common.Address, amount *big.Int) error {
	bal, err := e.ledger.BalanceOf(ctx, currency, payer)
	if err != nil {
		return wrapValidation(err, "balance lookup failed")
	}
	if bal.Cmp(amount) < 0 {
		return wrapValidationf("payer balance %s below required %s", bal, amount)
	}
	allowance, err := e.ledger.AllowanceOf(ctx, currency, payer, e.cfg.EngineAccount)
	if err != nil {
		return wrapValidation(err, "allowance lookup failed")
	}
	if allowance.Cmp(amount) < 0 {
		return wrapValidationf("payer allowance %s below required %s", allowance, amount)
	}
	return nil
}
