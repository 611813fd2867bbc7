package catalog

import (
	"context"
	"log/slog"

	"github.com/missionlab/payment-service/pkg/logger"
	"github.com/missionlab/payment-service/svc/billing"
	"github.com/missionlab/payment-service/svc/payment"
)

const catalogLockKey = "billing:catalog"

// Seed stores plans if the store holds none yet and reports how many were
// written. A store that already has plans is left untouched.
func Seed(ctx context.Context, store billing.Store, plans []billing.Plan) (int, error) {
	var written int
	err := store.Atomic(ctx, func(ctx context.Context, tx billing.Tx) error {
		written = 0
		if err := tx.Lock(ctx, catalogLockKey); err != nil {
			return err
		}
		existing, err := tx.ListPlans(ctx)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return nil
		}
		for _, p := range plans {
			p = p.Clone()
			p.ID = 0
			if err := tx.SavePlan(ctx, &p); err != nil {
				return err
			}
			written++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return written, nil
}

// SetActive toggles a plan's availability for new subscriptions.
func SetActive(ctx context.Context, store billing.Store, planID int64, active bool) (*billing.Plan, error) {
	var plan *billing.Plan
	err := store.Atomic(ctx, func(ctx context.Context, tx billing.Tx) error {
		if err := tx.Lock(ctx, catalogLockKey); err != nil {
			return err
		}
		var err error
		if plan, err = tx.GetPlan(ctx, planID); err != nil {
			return err
		}
		if plan.Active == active {
			return nil
		}
		plan.Active = active
		return tx.SavePlan(ctx, plan)
	})
	if err != nil {
		return nil, err
	}
	return plan, nil
}

// SyncProvider creates the provider product and the monthly and yearly
// prices of every active plan still missing them, and stores the returned
// references. Free cycles get no price. It reports how many plans changed.
// A failure stops the sync; references recorded before it are kept.
func SyncProvider(ctx context.Context, store billing.Store, provider payment.Provider, log *slog.Logger) (int, error) {
	if provider == nil {
		return 0, ErrNilProvider
	}
	if log == nil {
		log = slog.Default()
	}
	log = log.With(logger.Component("catalog"))

	plans, err := store.ListPlans(ctx)
	if err != nil {
		return 0, err
	}

	var synced int
	for _, plan := range plans {
		if !plan.Active {
			continue
		}
		changed, syncErr := syncPlan(ctx, provider, &plan)
		if changed {
			if err := savePlanRefs(ctx, store, plan); err != nil {
				return synced, err
			}
		}
		if syncErr != nil {
			return synced, syncErr
		}
		if !changed {
			continue
		}

		synced++
		log.InfoContext(ctx, "plan published to provider",
			logger.PlanID(plan.ID),
			slog.String("product_id", plan.ProviderProductID))
	}
	return synced, nil
}

func savePlanRefs(ctx context.Context, store billing.Store, plan billing.Plan) error {
	return store.Atomic(ctx, func(ctx context.Context, tx billing.Tx) error {
		if err := tx.Lock(ctx, catalogLockKey); err != nil {
			return err
		}
		current, err := tx.GetPlan(ctx, plan.ID)
		if err != nil {
			return err
		}
		current.ProviderProductID = plan.ProviderProductID
		current.ProviderMonthlyPriceID = plan.ProviderMonthlyPriceID
		current.ProviderYearlyPriceID = plan.ProviderYearlyPriceID
		return tx.SavePlan(ctx, current)
	})
}

func syncPlan(ctx context.Context, provider payment.Provider, plan *billing.Plan) (bool, error) {
	changed := false
	if plan.ProviderProductID == "" {
		id, err := provider.CreateProduct(ctx, payment.ProductRequest{Name: plan.Name, Description: plan.Description})
		if err != nil {
			return false, err
		}
		plan.ProviderProductID = id
		changed = true
	}

	for _, cycle := range []billing.BillingCycle{billing.CycleMonthly, billing.CycleYearly} {
		if plan.ProviderPriceFor(cycle) != "" || !plan.PriceFor(cycle).IsPositive() {
			continue
		}
		id, err := provider.CreatePrice(ctx, payment.PriceRequest{
			ProductID:   plan.ProviderProductID,
			Description: plan.Name + " " + string(cycle),
			Amount:      plan.PriceFor(cycle),
			Cycle:       cycle,
		})
		if err != nil {
			return changed, err
		}
		if cycle == billing.CycleYearly {
			plan.ProviderYearlyPriceID = id
		} else {
			plan.ProviderMonthlyPriceID = id
		}
		changed = true
	}
	return changed, nil
}
