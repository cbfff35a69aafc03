// Package store 持有挂单序列与出价账本
// 挂单按 id 追加、按 id 原地更新；出价历史只追加；每个 (挂单, 出价人)
// 另有一份当前押金索引。没有任何包级可变状态，store 实例由引擎显式持有。
package store

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/nftmart/gomart/internal/domain"
)

// MarketStore 市场状态存储
// 内存为权威状态；配置了 DB 时每次提交同步落盘，重启后可恢复
type MarketStore struct {
	mu       sync.RWMutex
	listings []*domain.Listing
	bids     map[uint64][]domain.Bid
	stakes   map[uint64]map[common.Address]*big.Int
	db       *DB
}

// NewMarketStore 创建市场存储；db 可以为 nil（纯内存，测试用）
func NewMarketStore(db *DB) (*MarketStore, error) {
	s := &MarketStore{
		bids:   make(map[uint64][]domain.Bid),
		stakes: make(map[uint64]map[common.Address]*big.Int),
		db:     db,
	}
	if db != nil {
		listings, bids, stakes, err := db.loadAll()
		if err != nil {
			return nil, fmt.Errorf("store: restore: %w", err)
		}
		s.listings = listings
		if bids != nil {
			s.bids = bids
		}
		if stakes != nil {
			s.stakes = stakes
		}
	}
	return s, nil
}

// NextID 返回下一个将被分配的挂单 id
func (s *MarketStore) NextID() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.listings))
}

// AppendListing 追加新挂单并分配 id（id 即序号，永不复用）
func (s *MarketStore) AppendListing(l *domain.Listing) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uint64(len(s.listings))
	l.ID = id
	if err := s.db.commit(id, writeOp{listing: l, bidSeq: -1}); err != nil {
		return 0, fmt.Errorf("store: persist listing: %w", err)
	}
	s.listings = append(s.listings, l.Clone())
	return id, nil
}

// UpdateListing 原地更新已存在的挂单
func (s *MarketStore) UpdateListing(l *domain.Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l.ID >= uint64(len(s.listings)) {
		return domain.ErrListingNotFound
	}
	if err := s.db.commit(l.ID, writeOp{listing: l, bidSeq: -1}); err != nil {
		return fmt.Errorf("store: persist listing: %w", err)
	}
	s.listings[l.ID] = l.Clone()
	return nil
}

// CommitBid 提交一次出价：更新挂单（窗口可能被延长）、追加出价历史、
// 覆盖出价人的押金索引。所有写入在一次落盘事务内完成。
func (s *MarketStore) CommitBid(l *domain.Listing, bid domain.Bid) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l.ID >= uint64(len(s.listings)) {
		return domain.ErrListingNotFound
	}
	seq := len(s.bids[l.ID])
	op := writeOp{
		listing: l,
		bidSeq:  seq,
		bid:     &bid,
		stakes: map[common.Address]*big.Int{
			bid.Bidder: bid.Stake(),
		},
	}
	if err := s.db.commit(l.ID, op); err != nil {
		return fmt.Errorf("store: persist bid: %w", err)
	}
	s.listings[l.ID] = l.Clone()
	s.bids[l.ID] = append(s.bids[l.ID], bid.Clone())
	if s.stakes[l.ID] == nil {
		s.stakes[l.ID] = make(map[common.Address]*big.Int)
	}
	s.stakes[l.ID][bid.Bidder] = bid.Stake()
	return nil
}

// ZeroStake 清零某个出价人的押金索引（退款/结算前调用），并更新挂单
// l 为 nil 时只清押金
func (s *MarketStore) ZeroStake(id uint64, bidder common.Address, l *domain.Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id >= uint64(len(s.listings)) {
		return domain.ErrListingNotFound
	}
	op := writeOp{
		bidSeq: -1,
		stakes: map[common.Address]*big.Int{bidder: new(big.Int)},
	}
	if l != nil {
		op.listing = l
	}
	if err := s.db.commit(id, op); err != nil {
		return fmt.Errorf("store: persist stake: %w", err)
	}
	if l != nil {
		s.listings[id] = l.Clone()
	}
	if s.stakes[id] == nil {
		s.stakes[id] = make(map[common.Address]*big.Int)
	}
	s.stakes[id][bidder] = new(big.Int)
	return nil
}

// GetListing 按 id 查询挂单（返回拷贝）
func (s *MarketStore) GetListing(id uint64) (*domain.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id >= uint64(len(s.listings)) {
		return nil, domain.ErrListingNotFound
	}
	return s.listings[id].Clone(), nil
}

// ListListings 返回全部挂单（含历史挂单，返回拷贝）
func (s *MarketStore) ListListings() []*domain.Listing {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Listing, 0, len(s.listings))
	for _, l := range s.listings {
		out = append(out, l.Clone())
	}
	return out
}

// Bids 返回挂单的完整出价历史（返回拷贝）
func (s *MarketStore) Bids(id uint64) []domain.Bid {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := s.bids[id]
	out := make([]domain.Bid, 0, len(history))
	for _, b := range history {
		out = append(out, b.Clone())
	}
	return out
}

// Leader 返回当前领先出价（历史尾项）
// 出价历史的 totalStake 严格递增，尾项即最大值
func (s *MarketStore) Leader(id uint64) (domain.Bid, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := s.bids[id]
	if len(history) == 0 {
		return domain.Bid{}, false
	}
	return history[len(history)-1].Clone(), true
}

// Stake 返回出价人当前在押押金（无记录时为 0）
func (s *MarketStore) Stake(id uint64, bidder common.Address) *big.Int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if m := s.stakes[id]; m != nil {
		if v := m[bidder]; v != nil {
			return new(big.Int).Set(v)
		}
	}
	return new(big.Int)
}
