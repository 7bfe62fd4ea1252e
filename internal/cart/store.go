package cart

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-storefront/internal/lock"
	"github.com/noah-isme/toko-storefront/internal/obs"
	"github.com/noah-isme/toko-storefront/internal/pricing"
)

var (
	// ErrNotFound indicates the requested cart line does not exist.
	ErrNotFound = errors.New("cart item not found")
	// ErrInvalidInput is returned when the provided payload is invalid.
	ErrInvalidInput = errors.New("invalid input")
)

// VariantRef describes the variant a line item was added with.
type VariantRef struct {
	Key     string            `json:"key"`
	Color   string            `json:"color,omitempty"`
	Options map[string]string `json:"options,omitempty"`
}

// Item is one cart slot. Two items share a slot iff their product id and
// variant key match exactly.
type Item struct {
	Slot           Slot          `json:"slot"`
	ID             int64         `json:"id"`
	Slug           string        `json:"slug"`
	Name           string        `json:"name"`
	UnitPrice      pricing.Money `json:"unitPrice"`
	ReferencePrice pricing.Money `json:"referencePrice"`
	Image          string        `json:"image,omitempty"`
	Qty            int           `json:"qty"`
	Stock          int           `json:"stock,omitempty"`
	Variant        *VariantRef   `json:"variant,omitempty"`
	VariantImage   string        `json:"variantImage,omitempty"`
	Seq            int64         `json:"-"`
}

// VariantKey returns the canonical variant key, or "" for base products.
func (it Item) VariantKey() string {
	if it.Variant == nil {
		return ""
	}
	return it.Variant.Key
}

// Line projects the item onto the pricing aggregator's input.
func (it Item) Line() pricing.Line {
	return pricing.Line{Qty: it.Qty, UnitPrice: it.UnitPrice, ReferencePrice: it.ReferencePrice}
}

// Slot is the opaque, URL-safe identity of a cart line.
type Slot string

// SlotOf derives the slot for a product id and variant key.
func SlotOf(id int64, variantKey string) Slot {
	raw := strconv.FormatInt(id, 10) + "|" + variantKey
	return Slot(base64.RawURLEncoding.EncodeToString([]byte(raw)))
}

// Parse returns the product id and variant key the slot was built from.
func (s Slot) Parse() (int64, string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(string(s))
	if err != nil {
		return 0, "", fmt.Errorf("decode slot: %w", ErrInvalidInput)
	}
	idPart, key, ok := strings.Cut(string(raw), "|")
	if !ok {
		return 0, "", fmt.Errorf("malformed slot: %w", ErrInvalidInput)
	}
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("malformed slot id: %w", ErrInvalidInput)
	}
	return id, key, nil
}

// Snapshot is a consistent view of the cart with its aggregate totals.
type Snapshot struct {
	Items  []Item         `json:"items"`
	Totals pricing.Totals `json:"totals"`
	Count  int            `json:"count"`
}

// NewSnapshot aggregates items into a snapshot.
func NewSnapshot(items []Item) Snapshot {
	lines := make([]pricing.Line, 0, len(items))
	count := 0
	for _, it := range items {
		lines = append(lines, it.Line())
		if it.Qty > 0 {
			count += it.Qty
		}
	}
	if items == nil {
		items = []Item{}
	}
	return Snapshot{Items: items, Totals: pricing.Aggregate(lines), Count: count}
}

// Observer is notified after every committed mutation of a session's cart.
type Observer func(ctx context.Context, sid string, snap Snapshot)

// Store is the single mutation API for session carts. Items live in a Redis
// hash per session; mutations of the same slot are serialised with a
// distributed lock so rapid repeated requests never lose updates.
type Store struct {
	R       *redis.Client
	Locker  lock.Locker
	LockTTL time.Duration
	TTL     time.Duration
	Logger  zerolog.Logger

	mu        sync.RWMutex
	observers map[int]Observer
	nextObs   int
}

func (s *Store) itemsKey(sid string) string { return "cart:" + sid + ":items" }
func (s *Store) seqKey(sid string) string   { return "cart:" + sid + ":seq" }
func (s *Store) lockKey(sid string, slot Slot) string {
	return "cart:" + sid + ":lock:" + string(slot)
}

func (s *Store) ttl() time.Duration {
	if s.TTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return s.TTL
}

func (s *Store) lockTTL() time.Duration {
	if s.LockTTL <= 0 {
		return 5 * time.Second
	}
	return s.LockTTL
}

func (s *Store) check(sid string) error {
	if s == nil || s.R == nil {
		return errors.New("cart store not configured")
	}
	if strings.TrimSpace(sid) == "" {
		return fmt.Errorf("session required: %w", ErrInvalidInput)
	}
	return nil
}

// Subscribe registers an observer and returns a function that removes it.
func (s *Store) Subscribe(fn Observer) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.observers == nil {
		s.observers = make(map[int]Observer)
	}
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

func (s *Store) notify(ctx context.Context, sid string, snap Snapshot) {
	s.mu.RLock()
	observers := make([]Observer, 0, len(s.observers))
	for _, fn := range s.observers {
		observers = append(observers, fn)
	}
	s.mu.RUnlock()
	for _, fn := range observers {
		fn(ctx, sid, snap)
	}
}

// Items returns the cart lines in the order they were first added.
func (s *Store) Items(ctx context.Context, sid string) ([]Item, error) {
	if err := s.check(sid); err != nil {
		return nil, err
	}
	raw, err := s.R.HGetAll(ctx, s.itemsKey(sid)).Result()
	if err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(raw))
	for field, data := range raw {
		it, err := decodeItem([]byte(data), Slot(field))
		if err != nil {
			s.Logger.Warn().Err(err).Str("slot", field).Msg("dropping unreadable cart item")
			continue
		}
		items = append(items, it)
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Seq < items[j].Seq })
	return items, nil
}

// Snapshot returns the cart lines with their aggregate totals.
func (s *Store) Snapshot(ctx context.Context, sid string) (Snapshot, error) {
	items, err := s.Items(ctx, sid)
	if err != nil {
		return Snapshot{}, err
	}
	return NewSnapshot(items), nil
}

// Add puts an item into the cart. Adding to an existing slot increases its
// quantity; a different variant of the same product is a separate slot.
func (s *Store) Add(ctx context.Context, sid string, item Item) (Snapshot, error) {
	if item.ID <= 0 {
		return Snapshot{}, fmt.Errorf("product id required: %w", ErrInvalidInput)
	}
	if item.Qty <= 0 {
		item.Qty = 1
	}
	if item.Qty > limit(item.Stock) {
		return Snapshot{}, ErrOutOfStock
	}
	slot := SlotOf(item.ID, item.VariantKey())
	return s.mutate(ctx, sid, slot, "add", func(cur *Item) (*Item, bool, error) {
		if cur != nil {
			if cur.Qty+item.Qty > limit(item.Stock) {
				return nil, false, ErrOutOfStock
			}
			cur.Qty += item.Qty
			cur.Stock = item.Stock
			return cur, true, nil
		}
		seq, err := s.R.Incr(ctx, s.seqKey(sid)).Result()
		if err != nil {
			return nil, false, err
		}
		next := item
		next.Slot = slot
		next.Seq = seq
		return &next, true, nil
	})
}

// Increment raises the slot's quantity by one, up to the stock recorded when
// the line was last added.
func (s *Store) Increment(ctx context.Context, sid string, slot Slot) (Snapshot, error) {
	return s.mutate(ctx, sid, slot, "increment", func(cur *Item) (*Item, bool, error) {
		if cur == nil {
			return nil, false, ErrNotFound
		}
		if cur.Qty >= limit(cur.Stock) {
			return nil, false, ErrOutOfStock
		}
		cur.Qty++
		return cur, true, nil
	})
}

// Decrement lowers the slot's quantity by one. Quantity never drops below 1;
// decrementing a single item leaves the cart unchanged and removal has to be
// requested explicitly.
func (s *Store) Decrement(ctx context.Context, sid string, slot Slot) (Snapshot, error) {
	return s.mutate(ctx, sid, slot, "decrement", func(cur *Item) (*Item, bool, error) {
		if cur == nil {
			return nil, false, ErrNotFound
		}
		if cur.Qty <= 1 {
			return cur, false, nil
		}
		cur.Qty--
		return cur, true, nil
	})
}

// Remove deletes the slot from the cart.
func (s *Store) Remove(ctx context.Context, sid string, slot Slot) (Snapshot, error) {
	return s.mutate(ctx, sid, slot, "remove", func(cur *Item) (*Item, bool, error) {
		if cur == nil {
			return nil, false, ErrNotFound
		}
		return nil, true, nil
	})
}

// Clear empties the cart.
func (s *Store) Clear(ctx context.Context, sid string) error {
	if err := s.check(sid); err != nil {
		return err
	}
	if err := s.R.Del(ctx, s.itemsKey(sid), s.seqKey(sid)).Err(); err != nil {
		return err
	}
	countMutation("clear")
	s.notify(ctx, sid, NewSnapshot(nil))
	return nil
}

func (s *Store) mutate(ctx context.Context, sid string, slot Slot, op string, fn func(cur *Item) (*Item, bool, error)) (Snapshot, error) {
	if err := s.check(sid); err != nil {
		return Snapshot{}, err
	}
	if _, _, err := slot.Parse(); err != nil {
		return Snapshot{}, err
	}
	changed := false
	err := s.Locker.WithLock(ctx, s.lockKey(sid, slot), s.lockTTL(), func(ctx context.Context) error {
		cur, err := s.load(ctx, sid, slot)
		if err != nil {
			return err
		}
		next, ok, err := fn(cur)
		if err != nil || !ok {
			return err
		}
		changed = true
		return s.save(ctx, sid, slot, next)
	})
	if err != nil {
		return Snapshot{}, err
	}
	snap, err := s.Snapshot(ctx, sid)
	if err != nil {
		return Snapshot{}, err
	}
	if changed {
		countMutation(op)
		s.notify(ctx, sid, snap)
	}
	return snap, nil
}

func (s *Store) load(ctx context.Context, sid string, slot Slot) (*Item, error) {
	data, err := s.R.HGet(ctx, s.itemsKey(sid), string(slot)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	it, err := decodeItem(data, slot)
	if err != nil {
		return nil, fmt.Errorf("decode cart item: %w", err)
	}
	return &it, nil
}

func (s *Store) save(ctx context.Context, sid string, slot Slot, it *Item) error {
	key := s.itemsKey(sid)
	pipe := s.R.TxPipeline()
	if it == nil {
		pipe.HDel(ctx, key, string(slot))
	} else {
		data, err := json.Marshal(record{Item: *it, Seq: it.Seq})
		if err != nil {
			return err
		}
		pipe.HSet(ctx, key, string(slot), data)
	}
	pipe.Expire(ctx, key, s.ttl())
	pipe.Expire(ctx, s.seqKey(sid), s.ttl())
	_, err := pipe.Exec(ctx)
	return err
}

// record is the persisted form of an item; it keeps the ordering sequence
// that the API form hides.
type record struct {
	Item
	Seq int64 `json:"seq"`
}

func decodeItem(data []byte, slot Slot) (Item, error) {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Item{}, err
	}
	it := rec.Item
	it.Slot = slot
	it.Seq = rec.Seq
	return it, nil
}

func countMutation(op string) {
	if obs.CartMutationsTotal != nil {
		obs.CartMutationsTotal.WithLabelValues(op).Inc()
	}
}
