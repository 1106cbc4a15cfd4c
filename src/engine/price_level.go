package engine

import "container/list"

// PriceLevel is the FIFO queue of resting orders at one tick price.
// Arrival order in the queue is the time-priority contract.
type PriceLevel struct {
	Price     Ticks
	orders    *list.List // of *RestingOrder
	byID      map[int64]*list.Element
	totalSize int64
}

func NewPriceLevel(price Ticks) *PriceLevel {
	return &PriceLevel{
		Price:  price,
		orders: list.New(),
		byID:   make(map[int64]*list.Element),
	}
}

// QueuePosition describes where an order waits inside its level.
// SizeAhead includes the order's own remaining size.
type QueuePosition struct {
	Position  int
	SizeAhead int64
}

func (pl *PriceLevel) AddOrder(order *RestingOrder) {
	pl.byID[order.Order.ID] = pl.orders.PushBack(order)
	pl.totalSize += order.Remaining
}

func (pl *PriceLevel) RemoveOrder(orderID int64) (*RestingOrder, bool) {
	elem, ok := pl.byID[orderID]
	if !ok {
		return nil, false
	}
	order := pl.orders.Remove(elem).(*RestingOrder)
	delete(pl.byID, orderID)
	pl.totalSize -= order.Remaining
	return order, true
}

func (pl *PriceLevel) QueuePosition(orderID int64) (QueuePosition, bool) {
	if _, ok := pl.byID[orderID]; !ok {
		return QueuePosition{}, false
	}
	var pos QueuePosition
	for e := pl.orders.Front(); e != nil; e = e.Next() {
		o := e.Value.(*RestingOrder)
		pos.SizeAhead += o.Remaining
		if o.Order.ID == orderID {
			return pos, true
		}
		pos.Position++
	}
	return QueuePosition{}, false
}

// Head returns the oldest resting order, or nil when the level is empty.
func (pl *PriceLevel) Head() *RestingOrder {
	front := pl.orders.Front()
	if front == nil {
		return nil
	}
	return front.Value.(*RestingOrder)
}

// fill consumes qty from the order at the head of the queue and reports
// whether it was exhausted (and dropped from the level).
func (pl *PriceLevel) fill(qty int64) (*RestingOrder, bool) {
	head := pl.Head()
	head.Remaining -= qty
	pl.totalSize -= qty
	if head.Remaining > 0 {
		return head, false
	}
	pl.orders.Remove(pl.orders.Front())
	delete(pl.byID, head.Order.ID)
	return head, true
}

func (pl *PriceLevel) TotalSize() int64 {
	return pl.totalSize
}

func (pl *PriceLevel) Len() int {
	return pl.orders.Len()
}

func (pl *PriceLevel) Empty() bool {
	return pl.orders.Len() == 0
}

// Orders returns a copy of the queue, oldest first.
func (pl *PriceLevel) Orders() []RestingOrder {
	out := make([]RestingOrder, 0, pl.orders.Len())
	for e := pl.orders.Front(); e != nil; e = e.Next() {
		out = append(out, *e.Value.(*RestingOrder))
	}
	return out
}
