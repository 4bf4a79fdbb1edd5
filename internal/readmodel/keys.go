// Package readmodel defines the cache keys behind the order and rider read
// models. Keys are constructed through these helpers only; free-form strings
// would let a mutation's invalidation target drift from a reader's key.
package readmodel

// Key identifies one cached read-model entry.
type Key string

func (k Key) String() string { return string(k) }

// OrderList keys the cached order collection.
func OrderList() Key { return "orders" }

// OrderDetail keys a single cached order.
func OrderDetail(orderID string) Key { return Key("order:" + orderID) }

// RiderList keys the cached rider collection.
func RiderList() Key { return "riders" }
