// 端到端沙盒演练：直售 + 反狙击拍卖
// 全部跑在内存适配器上，不落盘，用于手工验证结算引擎的资金流。
package main

import (
	"context"
	"flag"
	"math/big"
	"math/rand"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/nftmart/gomart/internal/adapters/memassets"
	"github.com/nftmart/gomart/internal/adapters/memledger"
	"github.com/nftmart/gomart/internal/domain"
	"github.com/nftmart/gomart/internal/engine"
	"github.com/nftmart/gomart/internal/events"
	"github.com/nftmart/gomart/internal/store"
	"github.com/nftmart/gomart/pkg/logger"
	"github.com/nftmart/gomart/pkg/sigchan"
	"github.com/nftmart/gomart/pkg/syncgroup"
)

var (
	platformOwner = common.HexToAddress("0x00000000000000000000000000000000000000Fe")
	engineAccount = common.HexToAddress("0x00000000000000000000000000000000000000E1")
	usdc          = common.HexToAddress("0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174")

	alice = common.HexToAddress("0x0000000000000000000000000000000000000A01")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000B02")
	carol = common.HexToAddress("0x0000000000000000000000000000000000000C03")
	dave  = common.HexToAddress("0x0000000000000000000000000000000000000D04")
)

// logSink 把事件打到日志，同时在拍卖落槌时发信号
type logSink struct {
	closed *sigchan.Chan
}

func (s *logSink) Publish(e events.Event) {
	logger.WithFields(logrus.Fields{
		"type":    string(e.Type),
		"listing": e.ListingID,
		"actor":   e.Actor.Hex(),
		"total":   e.DisplayTotal,
	}).Info("事件")
	if e.Type == events.TypeAuctionClosed || e.Type == events.TypeAuctionCanceled {
		s.closed.Emit()
	}
}

func main() {
	auctionWindow := flag.Duration("window", 3*time.Second, "auction window length")
	flag.Parse()

	if err := logger.Init(logger.Config{Level: "debug"}); err != nil {
		panic(err)
	}

	ctx := context.Background()

	custody := memassets.NewCustody()
	ledger := memledger.NewLedger(engineAccount)
	st, err := store.NewMarketStore(nil) // 纯内存，不持久化
	if err != nil {
		logger.Errorf("init store: %v", err)
		return
	}

	closed := sigchan.New(1)
	bus := events.NewBus(&logSink{closed: closed})
	eng := engine.New(engine.Config{
		EngineAccount: engineAccount,
		PlatformOwner: platformOwner,
		FeeBps:        250,
		BidBufferBps:  500,
		TimeBuffer:    *auctionWindow / 3, // 反狙击缓冲压短，便于观察延长
	}, st, custody, ledger, bus)

	nftRegistry := common.HexToAddress("0x0000000000000000000000000000000000001001")
	packRegistry := common.HexToAddress("0x0000000000000000000000000000000000001002")
	custody.RegisterRegistry(nftRegistry, domain.KindUnique, alice, 1000) // 10% 版税给 alice
	custody.RegisterRegistry(packRegistry, domain.KindMultiUnit, common.Address{}, 0)

	mustNil := func(err error) {
		if err != nil {
			logger.Errorf("演练失败: %v", err)
			panic(err)
		}
	}

	// 铸造和入金
	mustNil(custody.Mint(nftRegistry, alice, big.NewInt(7), 1))
	mustNil(custody.Mint(packRegistry, alice, big.NewInt(1), 10))
	mustNil(custody.SetApproval(nftRegistry, alice, engineAccount, true))
	mustNil(custody.SetApproval(packRegistry, alice, engineAccount, true))
	for _, acct := range []common.Address{bob, carol, dave} {
		ledger.Deposit(usdc, acct, big.NewInt(10_000_000_000)) // 10k USDC
		ledger.Approve(usdc, acct, engineAccount, big.NewInt(10_000_000_000))
	}

	// ---- 第一幕：多单位直售 ----
	sale, err := eng.CreateListing(ctx, engine.CreateListingRequest{
		Creator:   alice,
		Registry:  packRegistry,
		TokenID:   big.NewInt(1),
		Currency:  usdc,
		UnitPrice: big.NewInt(25_000_000), // 25 USDC / 件
		Duration:  time.Hour,
		Quantity:  10,
	})
	mustNil(err)
	_, err = eng.Buy(ctx, engine.BuyRequest{Buyer: bob, ListingID: sale.ID, Quantity: 4})
	mustNil(err)
	_, err = eng.Buy(ctx, engine.BuyRequest{Buyer: carol, ListingID: sale.ID, Quantity: 6})
	mustNil(err)

	// ---- 第二幕：反狙击拍卖 ----
	auction, err := eng.CreateListing(ctx, engine.CreateListingRequest{
		Creator:   alice,
		Registry:  nftRegistry,
		TokenID:   big.NewInt(7),
		Currency:  usdc,
		UnitPrice: big.NewInt(100_000_000), // 底价 100 USDC
		Duration:  *auctionWindow,
		Quantity:  1,
		IsAuction: true,
	})
	mustNil(err)

	// 三个竞拍人并发抬价；被顶掉的押金留在托管账户等提款
	grp := syncgroup.NewSyncGroup()
	for _, bidder := range []common.Address{bob, carol, dave} {
		grp.Go(func() {
			price := big.NewInt(100_000_000)
			for i := 0; i < 5; i++ {
				time.Sleep(time.Duration(rand.Intn(300)) * time.Millisecond)
				bump := new(big.Int).Div(price, big.NewInt(10))
				price = new(big.Int).Add(price, bump.Mul(bump, big.NewInt(int64(i+1))))
				if _, err := eng.Bid(ctx, engine.BidRequest{
					Bidder:    bidder,
					ListingID: auction.ID,
					UnitPrice: price,
					Quantity:  1,
				}); err != nil {
					logger.Debugf("%s 出价被拒: %v", bidder.Hex(), err)
				}
			}
		})
	}
	grp.Wait()

	// 窗口过期前反复尝试落槌；反狙击延长会让前几次被拒
	for {
		time.Sleep(200 * time.Millisecond)
		if err := eng.CloseAuction(ctx, auction.ID, dave); err == nil {
			break
		}
	}
	<-closed.C()

	// 落败者提回押金
	for _, bidder := range []common.Address{bob, carol, dave} {
		if refund, err := eng.Withdraw(ctx, auction.ID, bidder); err == nil {
			logger.Infof("%s 提回押金 %s", bidder.Hex(), refund.String())
		}
	}

	for _, acct := range []common.Address{alice, bob, carol, dave, platformOwner, engineAccount} {
		bal, _ := ledger.BalanceOf(ctx, usdc, acct)
		logger.Infof("期末余额 %s = %s", acct.Hex(), bal.String())
	}
}
