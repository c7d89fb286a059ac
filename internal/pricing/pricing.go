// Package pricing holds the plan table and promotion windows. A Catalog is a
// plain value built from configuration; callers pass "now" explicitly.
package pricing

import (
	"errors"
	"time"
)

type Tier string

const (
	TierStarter Tier = "starter"
	TierPro     Tier = "pro"
	TierHosted  Tier = "hosted"
)

var ErrUnknownPlan = errors.New("unknown plan")

type Plan struct {
	Tier        Tier
	Name        string
	Description string
}

// Catalog 은 요금표와 프로모션 마감 시각을 함께 담습니다.
type Catalog struct {
	Plans          map[Tier]Plan
	Regular        map[Tier]int64 // cents
	Discounted     map[Tier]int64 // cents, DiscountEndsAt 이전에만 적용
	DiscountEndsAt time.Time
	BogoEndsAt     time.Time // 이전이면 계정당 스토어 2개
	Currency       string
}

// Quote is the price for a plan at a given instant.
type Quote struct {
	Plan        Plan
	AmountCents int64
	Currency    string
	Discounted  bool
}

func DefaultCatalog(discountEndsAt, bogoEndsAt time.Time) Catalog {
	return Catalog{
		Plans: map[Tier]Plan{
			TierStarter: {Tier: TierStarter, Name: "GoSovereign Starter", Description: "Your own store on your GitHub and Vercel accounts"},
			TierPro:     {Tier: TierPro, Name: "GoSovereign Pro", Description: "Starter plus analytics and Stripe Connect payouts"},
			TierHosted:  {Tier: TierHosted, Name: "GoSovereign Hosted", Description: "Fully managed store hosted by GoSovereign"},
		},
		Regular: map[Tier]int64{
			TierStarter: 14900,
			TierPro:     29900,
			TierHosted:  49900,
		},
		Discounted: map[Tier]int64{
			TierStarter: 9900,
			TierPro:     19900,
			TierHosted:  34900,
		},
		DiscountEndsAt: discountEndsAt,
		BogoEndsAt:     bogoEndsAt,
		Currency:       "usd",
	}
}

func ParseTier(s string) (Tier, error) {
	t := Tier(s)
	switch t {
	case TierStarter, TierPro, TierHosted:
		return t, nil
	}
	return "", ErrUnknownPlan
}

func (c Catalog) DiscountActive(now time.Time) bool {
	return !c.DiscountEndsAt.IsZero() && now.Before(c.DiscountEndsAt)
}

func (c Catalog) BogoActive(now time.Time) bool {
	return !c.BogoEndsAt.IsZero() && now.Before(c.BogoEndsAt)
}

func (c Catalog) Quote(plan string, now time.Time) (Quote, error) {
	tier, err := ParseTier(plan)
	if err != nil {
		return Quote{}, err
	}
	p, ok := c.Plans[tier]
	if !ok {
		return Quote{}, ErrUnknownPlan
	}

	q := Quote{Plan: p, AmountCents: c.Regular[tier], Currency: c.Currency}
	if c.DiscountActive(now) {
		if amount, ok := c.Discounted[tier]; ok {
			q.AmountCents = amount
			q.Discounted = true
		}
	}
	return q, nil
}

// MaxStores is the number of stores one account may own.
func (c Catalog) MaxStores(now time.Time) int {
	if c.BogoActive(now) {
		return 2
	}
	return 1
}

// Features are the tier-gated flags injected into a deployed store.
type Features struct {
	CustomDomain    bool
	Analytics       bool
	StripeConnect   bool
	PrioritySupport bool
}

func FeaturesFor(t Tier) Features {
	switch t {
	case TierHosted:
		return Features{CustomDomain: true, Analytics: true, StripeConnect: true, PrioritySupport: true}
	case TierPro:
		return Features{CustomDomain: true, Analytics: true, StripeConnect: true}
	default:
		return Features{}
	}
}
