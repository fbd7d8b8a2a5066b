package orderbook

import (
	"sort"

	"github.com/betbot/goclob/internal/domain"
)

// Book 每个市场一份的订单簿记录。
//
// 四条序列按各自方向的最优价排在最前：买单按价格降序（最高买价
// 优先），卖单按价格升序（最低卖价优先）。同价订单按插入顺序排
// 列（时间优先），Insert 用稳定的二分插入维护这一点，撮合过程中
// 只会在原位改 FilledQuantity 或删除已满订单，不会破坏排序。
type Book struct {
	MarketID    uint32         `json:"market_id"`
	NextOrderID uint64         `json:"next_order_id"`
	YesBuys     []domain.Order `json:"yes_buys"`
	YesSells    []domain.Order `json:"yes_sells"`
	NoBuys      []domain.Order `json:"no_buys"`
	NoSells     []domain.Order `json:"no_sells"`
}

// New 创建空订单簿
func New(marketID uint32) *Book {
	return &Book{MarketID: marketID}
}

// Sequence 返回指定 token/方向的序列指针
func (b *Book) Sequence(t domain.TokenType, s domain.OrderSide) *[]domain.Order {
	if t == domain.TokenTypeYes {
		if s == domain.OrderSideBuy {
			return &b.YesBuys
		}
		return &b.YesSells
	}
	if s == domain.OrderSideBuy {
		return &b.NoBuys
	}
	return &b.NoSells
}

// Insert 把订单插入到它所属序列的规范位置。
// 同价订单插到已有同价订单之后，保证时间优先。
func (b *Book) Insert(o domain.Order) {
	seq := b.Sequence(o.TokenType, o.Side)
	idx := sort.Search(len(*seq), func(i int) bool {
		if o.Side == domain.OrderSideBuy {
			return (*seq)[i].Price < o.Price
		}
		return (*seq)[i].Price > o.Price
	})
	*seq = append(*seq, domain.Order{})
	copy((*seq)[idx+1:], (*seq)[idx:])
	(*seq)[idx] = o
}

// Remove 从订单所属序列中按订单 ID 删除，返回是否找到。
func (b *Book) Remove(t domain.TokenType, s domain.OrderSide, orderID uint64) bool {
	seq := b.Sequence(t, s)
	for i := range *seq {
		if (*seq)[i].ID == orderID {
			*seq = append((*seq)[:i], (*seq)[i+1:]...)
			return true
		}
	}
	return false
}

// Find 在四条序列中按订单 ID 查找
func (b *Book) Find(orderID uint64) (*domain.Order, bool) {
	for _, seq := range []*[]domain.Order{&b.YesBuys, &b.YesSells, &b.NoBuys, &b.NoSells} {
		for i := range *seq {
			if (*seq)[i].ID == orderID {
				return &(*seq)[i], true
			}
		}
	}
	return nil, false
}

// TotalOrders 四条序列的订单总数
func (b *Book) TotalOrders() int {
	return len(b.YesBuys) + len(b.YesSells) + len(b.NoBuys) + len(b.NoSells)
}

// Normalize 把四条序列全部重排回规范顺序。
// 反序列化或外部写入后调用，排序是稳定的（同价保留原有相对顺序）。
func (b *Book) Normalize() {
	sortSide(b.YesBuys, domain.OrderSideBuy)
	sortSide(b.YesSells, domain.OrderSideSell)
	sortSide(b.NoBuys, domain.OrderSideBuy)
	sortSide(b.NoSells, domain.OrderSideSell)
}

func sortSide(seq []domain.Order, side domain.OrderSide) {
	sort.SliceStable(seq, func(i, j int) bool {
		if side == domain.OrderSideBuy {
			return seq[i].Price > seq[j].Price
		}
		return seq[i].Price < seq[j].Price
	})
}

// CheckSorted 校验四条序列是否都处于规范顺序（测试与不变量检查用）。
func (b *Book) CheckSorted() bool {
	return isSorted(b.YesBuys, domain.OrderSideBuy) &&
		isSorted(b.YesSells, domain.OrderSideSell) &&
		isSorted(b.NoBuys, domain.OrderSideBuy) &&
		isSorted(b.NoSells, domain.OrderSideSell)
}

func isSorted(seq []domain.Order, side domain.OrderSide) bool {
	for i := 1; i < len(seq); i++ {
		if side == domain.OrderSideBuy && seq[i-1].Price < seq[i].Price {
			return false
		}
		if side == domain.OrderSideSell && seq[i-1].Price > seq[i].Price {
			return false
		}
	}
	return true
}
