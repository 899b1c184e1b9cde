// Package pricing composes the discount strategies over a cart in the fixed
// order bulk, membership, promotion, loyalty.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-checkout/internal/discount"
	"github.com/noah-isme/toko-checkout/internal/store"
)

var (
	// ErrStageApplied is returned when a stage runs a second time on one engine.
	ErrStageApplied = errors.New("pricing: stage already applied")
	// ErrStageOrder is returned when a stage runs before an earlier stage.
	ErrStageOrder = errors.New("pricing: stage out of order")
)

// Stage names a step of the pipeline.
type Stage string

const (
	StageBulk       Stage = "bulk"
	StageMembership Stage = "membership"
	StagePromotion  Stage = "promotion"
	StageLoyalty    Stage = "loyalty"
)

// Stages lists the pipeline in execution order.
var Stages = []Stage{StageBulk, StageMembership, StagePromotion, StageLoyalty}

// Records is the slice of the store the engine reads and mutates.
type Records interface {
	GetProduct(ctx context.Context, id string) (store.Product, error)
	GetPromotion(ctx context.Context, code string) (store.Promotion, error)
	IncrementPromotionUse(ctx context.Context, code string) (int, error)
	GetCustomer(ctx context.Context, id string) (store.Customer, error)
	AdjustLoyalty(ctx context.Context, id string, delta int) (store.Customer, error)
}

// StageResult describes one executed stage. Reason is set when the stage was
// a no-op for a business reason.
type StageResult struct {
	Stage       Stage           `json:"stage"`
	Applied     bool            `json:"applied"`
	Amount      decimal.Decimal `json:"amount"`
	Before      decimal.Decimal `json:"before"`
	After       decimal.Decimal `json:"after"`
	Reason      error           `json:"-"`
	PointsSpent int             `json:"pointsSpent,omitempty"`
	Detail      string          `json:"detail,omitempty"`
}

// Option customises an Engine.
type Option func(*Engine)

// WithBulkTiers replaces the default bulk tier table.
func WithBulkTiers(tiers []discount.BulkTier) Option {
	return func(e *Engine) { e.tiers = discount.NormalizeTiers(tiers) }
}

// WithClock overrides the time source used for promotion expiry.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLogger attaches a logger for stage decisions.
func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// Engine prices one cart. It is single-use: each stage runs at most once.
type Engine struct {
	records    Records
	lines      []store.Line
	categories []string
	quantity   int
	subtotal   decimal.Decimal
	running    decimal.Decimal
	tiers      []discount.BulkTier
	now        func() time.Time
	log        zerolog.Logger
	results    []StageResult
}

// New resolves every line against the catalog and computes the subtotal from
// the line price snapshots. Lines whose product no longer resolves contribute
// nothing.
func New(ctx context.Context, records Records, lines []store.Line, opts ...Option) (*Engine, error) {
	e := &Engine{
		records: records,
		lines:   append([]store.Line(nil), lines...),
		tiers:   discount.DefaultBulkTiers(),
		now:     time.Now,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}

	seen := make(map[string]struct{})
	subtotal := decimal.Zero
	for _, line := range e.lines {
		product, err := records.GetProduct(ctx, line.ProductID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				e.log.Debug().Str("product_id", line.ProductID).Msg("pricing_line_unresolved")
				continue
			}
			return nil, fmt.Errorf("pricing: lookup %s: %w", line.ProductID, err)
		}
		subtotal = subtotal.Add(line.Amount())
		if _, ok := seen[product.Category]; !ok {
			seen[product.Category] = struct{}{}
			e.categories = append(e.categories, product.Category)
		}
	}
	e.quantity = discount.TotalQuantity(e.lines)
	e.subtotal = subtotal
	e.running = subtotal
	return e, nil
}

// Subtotal is the undiscounted cart value.
func (e *Engine) Subtotal() decimal.Decimal { return e.subtotal }

// Running is the price after the stages run so far.
func (e *Engine) Running() decimal.Decimal { return e.running }

// FinalPrice is the running price once every stage has run.
func (e *Engine) FinalPrice() decimal.Decimal { return e.running }

// Complete reports whether all four stages have run.
func (e *Engine) Complete() bool { return len(e.results) == len(Stages) }

// Breakdown returns the executed stages in order.
func (e *Engine) Breakdown() []StageResult {
	out := make([]StageResult, len(e.results))
	copy(out, e.results)
	return out
}

// PointsSpent is the loyalty balance consumed by the loyalty stage.
func (e *Engine) PointsSpent() int {
	for _, r := range e.results {
		if r.Stage == StageLoyalty {
			return r.PointsSpent
		}
	}
	return 0
}

// PromotionApplied reports whether the promotion stage took effect.
func (e *Engine) PromotionApplied() bool {
	for _, r := range e.results {
		if r.Stage == StagePromotion {
			return r.Applied
		}
	}
	return false
}

func (e *Engine) begin(stage Stage) error {
	idx := -1
	for i, s := range Stages {
		if s == stage {
			idx = i
			break
		}
	}
	switch {
	case idx < len(e.results):
		return fmt.Errorf("%w: %s", ErrStageApplied, stage)
	case idx > len(e.results):
		return fmt.Errorf("%w: %s before %s", ErrStageOrder, stage, Stages[len(e.results)])
	}
	return nil
}

func (e *Engine) record(stage Stage, amount decimal.Decimal, reason error, mutate func(*StageResult)) StageResult {
	res := StageResult{Stage: stage, Before: e.running, Amount: decimal.Zero, Reason: reason}
	if reason == nil && amount.IsPositive() {
		res.Applied = true
		res.Amount = amount
		e.running = e.running.Sub(amount)
	}
	res.After = e.running
	if mutate != nil {
		mutate(&res)
	}
	e.results = append(e.results, res)
	ev := e.log.Debug().Str("stage", string(stage)).Bool("applied", res.Applied).Str("amount", res.Amount.String())
	if reason != nil {
		ev = ev.Str("reason", reason.Error())
	}
	ev.Msg("pricing_stage")
	return res
}

// ApplyBulk discounts the running price by the highest qualifying bulk tier.
func (e *Engine) ApplyBulk() (StageResult, error) {
	if err := e.begin(StageBulk); err != nil {
		return StageResult{}, err
	}
	amount, tier := discount.Bulk(e.running, e.tiers, e.quantity)
	return e.record(StageBulk, amount, nil, func(r *StageResult) {
		r.Detail = fmt.Sprintf("min_quantity=%d rate=%s", tier.MinQuantity, tier.Rate.String())
	}), nil
}

// ApplyMembership discounts the running price by the customer's tier rate.
func (e *Engine) ApplyMembership(customer store.Customer) (StageResult, error) {
	if err := e.begin(StageMembership); err != nil {
		return StageResult{}, err
	}
	amount := discount.Membership(e.running, customer.Tier)
	return e.record(StageMembership, amount, nil, func(r *StageResult) {
		r.Detail = string(customer.Tier)
	}), nil
}

// ApplyPromotion applies code when it resolves and qualifies, counting one use.
// Every non-qualifying path leaves the running price unchanged and is reported
// through StageResult.Reason.
func (e *Engine) ApplyPromotion(ctx context.Context, code string) (StageResult, error) {
	if err := e.begin(StagePromotion); err != nil {
		return StageResult{}, err
	}
	if code == "" {
		return e.record(StagePromotion, decimal.Zero, discount.ErrNoPromotionCode, nil), nil
	}
	promo, err := e.records.GetPromotion(ctx, code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return e.record(StagePromotion, decimal.Zero, discount.ErrPromotionNotFound, detail(code)), nil
		}
		return StageResult{}, fmt.Errorf("pricing: lookup promotion %s: %w", code, err)
	}
	if reason := discount.CheckPromotion(promo, e.now(), e.running, e.categories); reason != nil {
		return e.record(StagePromotion, decimal.Zero, reason, detail(code)), nil
	}
	if _, err := e.records.IncrementPromotionUse(ctx, code); err != nil {
		return StageResult{}, fmt.Errorf("pricing: count promotion %s: %w", code, err)
	}
	return e.record(StagePromotion, discount.Promotion(e.running, promo.Percent), nil, detail(code)), nil
}

// ApplyLoyalty redeems the customer's points against the running price and
// deducts them immediately. When the balance changed underneath and the
// guarded deduction fails, the stage is a no-op.
func (e *Engine) ApplyLoyalty(ctx context.Context, customerID string) (StageResult, error) {
	if err := e.begin(StageLoyalty); err != nil {
		return StageResult{}, err
	}
	customer, err := e.records.GetCustomer(ctx, customerID)
	if err != nil {
		return StageResult{}, fmt.Errorf("pricing: lookup customer %s: %w", customerID, err)
	}
	amount, points, reason := discount.Loyalty(e.running, customer.LoyaltyPoints)
	if reason != nil || points == 0 {
		return e.record(StageLoyalty, decimal.Zero, reason, nil), nil
	}
	if _, err := e.records.AdjustLoyalty(ctx, customerID, -points); err != nil {
		if errors.Is(err, store.ErrInsufficientPoints) {
			return e.record(StageLoyalty, decimal.Zero, fmt.Errorf("%w: %v", discount.ErrNotEnoughPoints, err), nil), nil
		}
		return StageResult{}, fmt.Errorf("pricing: spend loyalty %s: %w", customerID, err)
	}
	return e.record(StageLoyalty, amount, nil, func(r *StageResult) {
		r.PointsSpent = points
	}), nil
}

// ApplyAll runs every remaining stage in order and returns the final price.
func (e *Engine) ApplyAll(ctx context.Context, customer store.Customer, promotionCode string) (decimal.Decimal, error) {
	if len(e.results) > 0 {
		return decimal.Zero, fmt.Errorf("%w: pipeline already started", ErrStageApplied)
	}
	if _, err := e.ApplyBulk(); err != nil {
		return decimal.Zero, err
	}
	if _, err := e.ApplyMembership(customer); err != nil {
		return decimal.Zero, err
	}
	if _, err := e.ApplyPromotion(ctx, promotionCode); err != nil {
		return decimal.Zero, err
	}
	if _, err := e.ApplyLoyalty(ctx, customer.ID); err != nil {
		return decimal.Zero, err
	}
	return e.FinalPrice(), nil
}

func detail(code string) func(*StageResult) {
	return func(r *StageResult) { r.Detail = code }
}
