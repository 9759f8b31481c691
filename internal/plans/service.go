// Package plans implements the account plan ladder and the pending
// upgrade workflow driven from the admin console.
package plans

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"brokerhub/internal/model"
	"brokerhub/internal/notify"
	"brokerhub/internal/store"
	"brokerhub/internal/types"
)

// Plan is one rung of the catalog.
type Plan struct {
	Code       types.PlanCode  `json:"code"`
	Name       string          `json:"name"`
	MinDeposit decimal.Decimal `json:"min_deposit"`
	MaxDeposit decimal.Decimal `json:"max_deposit"`
	DailyROI   string          `json:"daily_roi"`
}

// Catalog is the fixed plan ladder, cheapest first.
var Catalog = []Plan{
	{Code: types.PlanMini, Name: "Mini", MinDeposit: decimal.NewFromInt(100), MaxDeposit: decimal.NewFromInt(999), DailyROI: "1.2%"},
	{Code: types.PlanStarter, Name: "Starter", MinDeposit: decimal.NewFromInt(1000), MaxDeposit: decimal.NewFromInt(4999), DailyROI: "1.8%"},
	{Code: types.PlanBronze, Name: "Bronze", MinDeposit: decimal.NewFromInt(5000), MaxDeposit: decimal.NewFromInt(14999), DailyROI: "2.4%"},
	{Code: types.PlanSilver, Name: "Silver", MinDeposit: decimal.NewFromInt(15000), MaxDeposit: decimal.NewFromInt(49999), DailyROI: "3.0%"},
	{Code: types.PlanDiamond, Name: "Diamond", MinDeposit: decimal.NewFromInt(50000), MaxDeposit: decimal.NewFromInt(149999), DailyROI: "3.8%"},
	{Code: types.PlanGold, Name: "Gold", MinDeposit: decimal.NewFromInt(150000), MaxDeposit: decimal.NewFromInt(1000000), DailyROI: "4.5%"},
}

type Service struct {
	store    store.Store
	notifier notify.Dispatcher
	log      zerolog.Logger
}

func NewService(st store.Store, notifier notify.Dispatcher, log zerolog.Logger) *Service {
	return &Service{store: st, notifier: notifier, log: log}
}

// Status is the user's upgrade progress view.
type Status struct {
	CurrentPlan     types.PlanCode `json:"current_plan"`
	PendingPlan     types.PlanCode `json:"pending_plan,omitempty"`
	UpgradeProgress int            `json:"upgrade_progress"`
	UpgradeNote     string         `json:"upgrade_note,omitempty"`
}

func (s *Service) Status(ctx context.Context, userID string) (Status, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return Status{}, err
	}
	return Status{
		CurrentPlan:     u.CurrentPlan,
		PendingPlan:     u.PendingPlan,
		UpgradeProgress: u.UpgradeProgress,
		UpgradeNote:     u.UpgradeNote,
	}, nil
}

// SetInput is the admin's proposed plan state for a user.
type SetInput struct {
	CurrentPlan types.PlanCode
	PendingPlan types.PlanCode
	Progress    int
	Note        string
}

// Apply reconciles the admin's plan edit against the stored state.
// Progress reaching 100 with a pending plan finalizes the upgrade;
// clearing the pending plan without changing the current one declines
// it, with the note as the reason sent to the user.
func (s *Service) Apply(ctx context.Context, userID string, in SetInput) (*model.User, error) {
	if in.CurrentPlan != "" && !types.ValidPlan(in.CurrentPlan) {
		return nil, errors.New("unknown plan code")
	}
	if in.PendingPlan != "" && !types.ValidPlan(in.PendingPlan) {
		return nil, errors.New("unknown pending plan code")
	}
	if in.Progress < 0 || in.Progress > 100 {
		return nil, errors.New("progress must be between 0 and 100")
	}

	var out model.User
	var upgraded, declined bool
	var declinedPlan types.PlanCode
	err := s.store.Update(ctx, userID, func(txn store.Txn) error {
		u, err := txn.User()
		if err != nil {
			return err
		}
		prevPending := u.PendingPlan
		prevCurrent := u.CurrentPlan

		if in.CurrentPlan != "" {
			u.CurrentPlan = in.CurrentPlan
		}
		u.PendingPlan = in.PendingPlan
		u.UpgradeProgress = in.Progress
		u.UpgradeNote = in.Note

		upgraded, declined = false, false
		switch {
		case u.PendingPlan != "" && u.UpgradeProgress >= 100:
			u.CurrentPlan = u.PendingPlan
			u.PendingPlan = ""
			u.UpgradeProgress = 0
			u.UpgradeNote = ""
			upgraded = true
		case prevPending != "" && u.PendingPlan == "" && u.CurrentPlan == prevCurrent:
			declinedPlan = prevPending
			u.UpgradeProgress = 0
			declined = true
		}

		out = u
		return txn.SaveUser(u)
	})
	if err != nil {
		return nil, err
	}

	if upgraded {
		s.notifier.Notify(userID, types.EventPlanUpgraded, "Plan upgraded",
			"Your account was upgraded to the "+string(out.CurrentPlan)+" plan.")
	}
	if declined {
		body := "Your upgrade to the " + string(declinedPlan) + " plan was declined."
		if out.UpgradeNote != "" {
			body += " Reason: " + out.UpgradeNote
		}
		s.notifier.Notify(userID, types.EventPlanDeclined, "Plan upgrade declined", body)
	}
	return &out, nil
}
