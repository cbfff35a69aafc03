package store

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/ethereum/go-ethereum/common"

	"github.com/nftmart/gomart/internal/domain"
)

// DB 是市场状态的 Badger 持久化层
// 键空间：
//
//	listing/<16位hex id>            -> JSON 挂单
//	bid/<16位hex id>/<8位hex seq>   -> JSON 出价
//	stake/<16位hex id>/<bidder hex> -> 十进制押金字符串
type DB struct {
	db *badger.DB
}

// OpenDB 打开（或创建）市场状态库
func OpenDB(path string) (*DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("marketdb: path is required")
	}
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("marketdb: open: %w", err)
	}
	return &DB{db: db}, nil
}

// Close 关闭数据库
func (d *DB) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

func listingKey(id uint64) []byte {
	return []byte(fmt.Sprintf("listing/%016x", id))
}

func bidKey(id uint64, seq int) []byte {
	return []byte(fmt.Sprintf("bid/%016x/%08x", id, seq))
}

func stakeKey(id uint64, bidder common.Address) []byte {
	return []byte(fmt.Sprintf("stake/%016x/%s", id, bidder.Hex()))
}

func setJSON(txn *badger.Txn, key []byte, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set(key, data)
}

// writeOp 单次提交中的一组写入，由 MarketStore 组装
type writeOp struct {
	listing *domain.Listing
	bidSeq  int // -1 表示没有新出价
	bid     *domain.Bid
	stakes  map[common.Address]*big.Int // 本次提交要覆盖的押金索引
}

// commit 在一个事务里落盘一次操作产生的所有写入
func (d *DB) commit(id uint64, op writeOp) error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Update(func(txn *badger.Txn) error {
		if op.listing != nil {
			if err := setJSON(txn, listingKey(id), op.listing); err != nil {
				return err
			}
		}
		if op.bid != nil && op.bidSeq >= 0 {
			if err := setJSON(txn, bidKey(id, op.bidSeq), op.bid); err != nil {
				return err
			}
		}
		for bidder, amount := range op.stakes {
			if err := txn.Set(stakeKey(id, bidder), []byte(amount.String())); err != nil {
				return err
			}
		}
		return nil
	})
}

// loadAll 启动时恢复全部市场状态
func (d *DB) loadAll() ([]*domain.Listing, map[uint64][]domain.Bid, map[uint64]map[common.Address]*big.Int, error) {
	listings := make(map[uint64]*domain.Listing)
	bids := make(map[uint64][]domain.Bid)
	stakes := make(map[uint64]map[common.Address]*big.Int)

	err := d.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := string(item.Key())
			err := item.Value(func(val []byte) error {
				switch {
				case strings.HasPrefix(key, "listing/"):
					var l domain.Listing
					if err := json.Unmarshal(val, &l); err != nil {
						return fmt.Errorf("marketdb: decode %s: %w", key, err)
					}
					listings[l.ID] = &l
				case strings.HasPrefix(key, "bid/"):
					var id uint64
					var seq int
					if _, err := fmt.Sscanf(key, "bid/%016x/%08x", &id, &seq); err != nil {
						return fmt.Errorf("marketdb: bad bid key %s: %w", key, err)
					}
					var b domain.Bid
					if err := json.Unmarshal(val, &b); err != nil {
						return fmt.Errorf("marketdb: decode %s: %w", key, err)
					}
					// 出价按 seq 升序写入，迭代器按键序返回，顺序天然正确
					bids[id] = append(bids[id], b)
				case strings.HasPrefix(key, "stake/"):
					parts := strings.Split(key, "/")
					if len(parts) != 3 {
						return fmt.Errorf("marketdb: bad stake key %s", key)
					}
					var id uint64
					if _, err := fmt.Sscanf(parts[1], "%016x", &id); err != nil {
						return fmt.Errorf("marketdb: bad stake key %s: %w", key, err)
					}
					amount, ok := new(big.Int).SetString(string(val), 10)
					if !ok {
						return fmt.Errorf("marketdb: bad stake value %q", string(val))
					}
					if stakes[id] == nil {
						stakes[id] = make(map[common.Address]*big.Int)
					}
					stakes[id][common.HexToAddress(parts[2])] = amount
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, nil, err
	}

	// 挂单按 id 还原成紧凑切片；id 即创建顺序
	out := make([]*domain.Listing, len(listings))
	for id, l := range listings {
		if id >= uint64(len(out)) {
			return nil, nil, nil, fmt.Errorf("marketdb: listing id %d out of range (%d listings)", id, len(out))
		}
		out[id] = l
	}
	for i, l := range out {
		if l == nil {
			return nil, nil, nil, fmt.Errorf("marketdb: missing listing id %d", i)
		}
	}
	return out, bids, stakes, nil
}
