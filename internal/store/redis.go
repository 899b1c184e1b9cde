package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// adjustCounterScript adds ARGV[1] to the integer at KEYS[1] unless the key is
// missing (-1) or the result would be negative (-2).
var adjustCounterScript = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if not current then
	return -1
end
local next = tonumber(current) + tonumber(ARGV[1])
if next < 0 then
	return -2
end
redis.call('SET', KEYS[1], next)
return next
`)

// Redis is a Store backed by a Redis server so that several processes can
// share one set of records. Counters (stock, loyalty points, promotion use,
// sequences) live in dedicated integer keys and are mutated atomically.
type Redis struct {
	R      *redis.Client
	Prefix string
}

// NewRedis wraps client. An empty prefix defaults to "toko".
func NewRedis(client *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = "toko"
	}
	return &Redis{R: client, Prefix: prefix}
}

var _ Store = (*Redis)(nil)

func (r *Redis) key(parts ...string) string {
	k := r.Prefix
	for _, p := range parts {
		k += ":" + p
	}
	return k
}

func (r *Redis) getJSON(ctx context.Context, key string, dst any, what string) error {
	raw, err := r.R.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("%s: %w", what, ErrNotFound)
		}
		return err
	}
	return json.Unmarshal(raw, dst)
}

func (r *Redis) setJSON(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return r.R.Set(ctx, key, raw, 0).Err()
}

func (r *Redis) adjust(ctx context.Context, key string, delta int, floorErr error, what string) (int, error) {
	res, err := adjustCounterScript.Run(ctx, r.R, []string{key}, delta).Int()
	if err != nil {
		return 0, err
	}
	switch res {
	case -1:
		return 0, fmt.Errorf("%s: %w", what, ErrNotFound)
	case -2:
		return 0, fmt.Errorf("%s: %w", what, floorErr)
	}
	return res, nil
}

func (r *Redis) GetProduct(ctx context.Context, id string) (Product, error) {
	var p Product
	what := "product " + id
	if err := r.getJSON(ctx, r.key("product", id), &p, what); err != nil {
		return Product{}, err
	}
	qty, err := r.R.Get(ctx, r.key("stock", id)).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return Product{}, err
	}
	p.Quantity = qty
	return p, nil
}

func (r *Redis) PutProduct(ctx context.Context, p Product) error {
	if p.Quantity < 0 {
		return ErrNegativeStock
	}
	qty := p.Quantity
	p.Quantity = 0
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	_, err = r.R.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.key("product", p.ID), raw, 0)
		pipe.Set(ctx, r.key("stock", p.ID), qty, 0)
		pipe.SAdd(ctx, r.key("products"), p.ID)
		return nil
	})
	return err
}

func (r *Redis) ListProducts(ctx context.Context) ([]Product, error) {
	ids, err := r.R.SMembers(ctx, r.key("products")).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	out := make([]Product, 0, len(ids))
	for _, id := range ids {
		p, err := r.GetProduct(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *Redis) AdjustStock(ctx context.Context, id string, delta int) (Product, error) {
	if _, err := r.adjust(ctx, r.key("stock", id), delta, ErrNegativeStock, "product "+id); err != nil {
		return Product{}, err
	}
	return r.GetProduct(ctx, id)
}

func (r *Redis) SetPrice(ctx context.Context, id string, price decimal.Decimal) (Product, error) {
	key := r.key("product", id)
	var p Product
	if err := r.getJSON(ctx, key, &p, "product "+id); err != nil {
		return Product{}, err
	}
	p.Price = price
	p.Quantity = 0
	if err := r.setJSON(ctx, key, p); err != nil {
		return Product{}, err
	}
	return r.GetProduct(ctx, id)
}

func (r *Redis) GetCustomer(ctx context.Context, id string) (Customer, error) {
	var c Customer
	if err := r.getJSON(ctx, r.key("customer", id), &c, "customer "+id); err != nil {
		return Customer{}, err
	}
	points, err := r.R.Get(ctx, r.key("loyalty", id)).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return Customer{}, err
	}
	c.LoyaltyPoints = points
	history, err := r.R.LRange(ctx, r.key("customer", id, "orders"), 0, -1).Result()
	if err != nil {
		return Customer{}, err
	}
	c.OrderHistory = make([]int64, 0, len(history))
	for _, raw := range history {
		orderID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		c.OrderHistory = append(c.OrderHistory, orderID)
	}
	return c, nil
}

func (r *Redis) PutCustomer(ctx context.Context, c Customer) error {
	if c.LoyaltyPoints < 0 {
		return ErrInsufficientPoints
	}
	points := c.LoyaltyPoints
	history := c.OrderHistory
	c.LoyaltyPoints = 0
	c.OrderHistory = nil
	raw, err := json.Marshal(c)
	if err != nil {
		return err
	}
	historyKey := r.key("customer", c.ID, "orders")
	_, err = r.R.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.key("customer", c.ID), raw, 0)
		pipe.Set(ctx, r.key("loyalty", c.ID), points, 0)
		pipe.SAdd(ctx, r.key("customers"), c.ID)
		pipe.Del(ctx, historyKey)
		for _, id := range history {
			pipe.RPush(ctx, historyKey, id)
		}
		return nil
	})
	return err
}

func (r *Redis) ListCustomers(ctx context.Context) ([]Customer, error) {
	ids, err := r.R.SMembers(ctx, r.key("customers")).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	out := make([]Customer, 0, len(ids))
	for _, id := range ids {
		c, err := r.GetCustomer(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *Redis) AdjustLoyalty(ctx context.Context, id string, delta int) (Customer, error) {
	if _, err := r.adjust(ctx, r.key("loyalty", id), delta, ErrInsufficientPoints, "customer "+id); err != nil {
		return Customer{}, err
	}
	return r.GetCustomer(ctx, id)
}

func (r *Redis) AppendOrderHistory(ctx context.Context, customerID string, orderID int64) error {
	n, err := r.R.Exists(ctx, r.key("customer", customerID)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("customer %s: %w", customerID, ErrNotFound)
	}
	return r.R.RPush(ctx, r.key("customer", customerID, "orders"), orderID).Err()
}

func (r *Redis) SetTier(ctx context.Context, customerID string, tier Tier) error {
	key := r.key("customer", customerID)
	var c Customer
	if err := r.getJSON(ctx, key, &c, "customer "+customerID); err != nil {
		return err
	}
	c.Tier = tier
	return r.setJSON(ctx, key, c)
}

func (r *Redis) GetSupplier(ctx context.Context, id string) (Supplier, error) {
	var s Supplier
	if err := r.getJSON(ctx, r.key("supplier", id), &s, "supplier "+id); err != nil {
		return Supplier{}, err
	}
	return s, nil
}

func (r *Redis) PutSupplier(ctx context.Context, s Supplier) error {
	return r.setJSON(ctx, r.key("supplier", s.ID), s)
}

func (r *Redis) GetPromotion(ctx context.Context, code string) (Promotion, error) {
	var p Promotion
	if err := r.getJSON(ctx, r.key("promotion", code), &p, "promotion "+code); err != nil {
		return Promotion{}, err
	}
	used, err := r.R.Get(ctx, r.key("promotion", code, "uses")).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return Promotion{}, err
	}
	p.UsedCount = used
	return p, nil
}

func (r *Redis) PutPromotion(ctx context.Context, p Promotion) error {
	used := p.UsedCount
	p.UsedCount = 0
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	_, err = r.R.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.key("promotion", p.Code), raw, 0)
		pipe.Set(ctx, r.key("promotion", p.Code, "uses"), used, 0)
		return nil
	})
	return err
}

func (r *Redis) IncrementPromotionUse(ctx context.Context, code string) (int, error) {
	n, err := r.R.Exists(ctx, r.key("promotion", code)).Result()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, fmt.Errorf("promotion %s: %w", code, ErrNotFound)
	}
	used, err := r.R.Incr(ctx, r.key("promotion", code, "uses")).Result()
	return int(used), err
}

func (r *Redis) NextOrderID(ctx context.Context) (int64, error) {
	return r.R.Incr(ctx, r.key("seq", "order")).Result()
}

func (r *Redis) GetOrder(ctx context.Context, id int64) (Order, error) {
	var o Order
	idStr := strconv.FormatInt(id, 10)
	if err := r.getJSON(ctx, r.key("order", idStr), &o, "order "+idStr); err != nil {
		return Order{}, err
	}
	return o, nil
}

func (r *Redis) PutOrder(ctx context.Context, o Order) error {
	raw, err := json.Marshal(o)
	if err != nil {
		return err
	}
	idStr := strconv.FormatInt(o.ID, 10)
	_, err = r.R.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.key("order", idStr), raw, 0)
		pipe.ZAdd(ctx, r.key("orders"), redis.Z{Score: float64(o.ID), Member: idStr})
		return nil
	})
	return err
}

func (r *Redis) ListOrders(ctx context.Context) ([]Order, error) {
	ids, err := r.R.ZRange(ctx, r.key("orders"), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Order, 0, len(ids))
	for _, idStr := range ids {
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			continue
		}
		o, err := r.GetOrder(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

func (r *Redis) NextShipmentID(ctx context.Context) (int64, error) {
	return r.R.Incr(ctx, r.key("seq", "shipment")).Result()
}

func (r *Redis) PutShipment(ctx context.Context, s Shipment) error {
	return r.setJSON(ctx, r.key("shipment", strconv.FormatInt(s.ID, 10)), s)
}

func (r *Redis) GetShipment(ctx context.Context, id int64) (Shipment, error) {
	var s Shipment
	idStr := strconv.FormatInt(id, 10)
	if err := r.getJSON(ctx, r.key("shipment", idStr), &s, "shipment "+idStr); err != nil {
		return Shipment{}, err
	}
	return s, nil
}

func (r *Redis) AppendInventoryLog(ctx context.Context, entry InventoryLogEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return r.R.RPush(ctx, r.key("inventory", "log"), raw).Err()
}

func (r *Redis) InventoryLog(ctx context.Context) ([]InventoryLogEntry, error) {
	rows, err := r.R.LRange(ctx, r.key("inventory", "log"), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]InventoryLogEntry, 0, len(rows))
	for _, row := range rows {
		var entry InventoryLogEntry
		if err := json.Unmarshal([]byte(row), &entry); err != nil {
			return nil, fmt.Errorf("decode inventory log: %w", err)
		}
		out = append(out, entry)
	}
	return out, nil
}
