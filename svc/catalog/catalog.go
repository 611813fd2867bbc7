package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/missionlab/payment-service/svc/billing"
)

//go:embed default.yaml
var defaultCatalog []byte

type file struct {
	Plans []entry `yaml:"plans"`
}

type entry struct {
	Name                string         `yaml:"name"`
	Tier                string         `yaml:"tier"`
	Description         string         `yaml:"description"`
	MonthlyPrice        string         `yaml:"monthly_price"`
	YearlyPrice         string         `yaml:"yearly_price"`
	MaxTeamMembers      int            `yaml:"max_team_members"`
	MaxMonthlyAttempts  int            `yaml:"max_monthly_attempts"`
	TicketLimit         int            `yaml:"ticket_limit"`
	RefillAmount        int            `yaml:"refill_amount"`
	RefillIntervalHours int            `yaml:"refill_interval_hours"`
	Features            map[string]any `yaml:"features"`
	Active              *bool          `yaml:"active"`
}

// Default returns the embedded catalog.
func Default() ([]billing.Plan, error) {
	return Parse(defaultCatalog)
}

// LoadFile reads a catalog from path. An empty path yields the default.
func LoadFile(path string) ([]billing.Plan, error) {
	if path == "" {
		return Default()
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	return Parse(b)
}

// Parse decodes and validates a YAML catalog. Plans are active unless the
// entry says otherwise.
func Parse(content []byte) ([]billing.Plan, error) {
	var f file
	if err := yaml.Unmarshal(content, &f); err != nil {
		return nil, errors.Join(ErrFailedToParseCatalog, err)
	}
	if len(f.Plans) == 0 {
		return nil, ErrEmptyCatalog
	}

	plans := make([]billing.Plan, 0, len(f.Plans))
	names := make(map[string]struct{}, len(f.Plans))
	for i, e := range f.Plans {
		p, err := e.plan()
		if err != nil {
			return nil, fmt.Errorf("%w: plan %d: %w", ErrInvalidPlan, i+1, err)
		}
		if _, dup := names[p.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate plan name %q", ErrInvalidPlan, p.Name)
		}
		names[p.Name] = struct{}{}
		plans = append(plans, p)
	}
	return plans, nil
}

func (e entry) plan() (billing.Plan, error) {
	if e.Name == "" {
		return billing.Plan{}, errors.New("name is required")
	}
	tier := billing.PlanTier(e.Tier)
	switch tier {
	case billing.TierEconomy, billing.TierBusiness, billing.TierFirst:
	default:
		return billing.Plan{}, fmt.Errorf("unknown tier %q", e.Tier)
	}

	monthly, err := decimal.NewFromString(e.MonthlyPrice)
	if err != nil {
		return billing.Plan{}, fmt.Errorf("monthly price: %w", err)
	}
	yearly, err := decimal.NewFromString(e.YearlyPrice)
	if err != nil {
		return billing.Plan{}, fmt.Errorf("yearly price: %w", err)
	}
	if monthly.IsNegative() || yearly.IsNegative() {
		return billing.Plan{}, errors.New("prices must not be negative")
	}
	if e.TicketLimit < 0 || e.RefillAmount < 0 || e.RefillIntervalHours < 0 {
		return billing.Plan{}, errors.New("ticket settings must not be negative")
	}
	if e.RefillAmount > 0 && e.RefillIntervalHours == 0 {
		return billing.Plan{}, errors.New("refill interval is required when refill amount is set")
	}

	active := true
	if e.Active != nil {
		active = *e.Active
	}
	return billing.Plan{
		Name:                e.Name,
		Tier:                tier,
		Description:         e.Description,
		MonthlyPrice:        monthly,
		YearlyPrice:         yearly,
		MaxTeamMembers:      e.MaxTeamMembers,
		MaxMonthlyAttempts:  e.MaxMonthlyAttempts,
		TicketLimit:         e.TicketLimit,
		RefillAmount:        e.RefillAmount,
		RefillIntervalHours: e.RefillIntervalHours,
		Features:            e.Features,
		Active:              active,
	}, nil
}
