package types

type PositionSide string

type PositionStatus string

type ActorKind string

type RequestKind string

type RequestStatus string

type TradeStatus string

type PlanCode string

type EventKind string

const (
	PositionSideBuy  PositionSide = "buy"
	PositionSideSell PositionSide = "sell"
)

const (
	PositionStatusOpen   PositionStatus = "open"
	PositionStatusClosed PositionStatus = "closed"
)

const (
	ActorUser  ActorKind = "user"
	ActorAdmin ActorKind = "admin"
)

const (
	RequestKindDeposit    RequestKind = "deposit"
	RequestKindWithdrawal RequestKind = "withdrawal"
)

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusApproved RequestStatus = "approved"
	RequestStatusRejected RequestStatus = "rejected"
)

const (
	TradeStatusPending   TradeStatus = "pending"
	TradeStatusPaid      TradeStatus = "paid"
	TradeStatusCompleted TradeStatus = "completed"
	TradeStatusCancelled TradeStatus = "cancelled"
)

const (
	PlanMini    PlanCode = "mini"
	PlanStarter PlanCode = "starter"
	PlanBronze  PlanCode = "bronze"
	PlanSilver  PlanCode = "silver"
	PlanDiamond PlanCode = "diamond"
	PlanGold    PlanCode = "gold"
)

const (
	EventDepositDecided    EventKind = "deposit_decided"
	EventWithdrawalDecided EventKind = "withdrawal_decided"
	EventPositionOpened    EventKind = "position_opened"
	EventPositionClosed    EventKind = "position_closed"
	EventKYCReviewed       EventKind = "kyc_reviewed"
	EventPlanUpgraded      EventKind = "plan_upgraded"
	EventPlanDeclined      EventKind = "plan_declined"
	EventBonusCredited     EventKind = "bonus_credited"
)

func ValidPlan(p PlanCode) bool {
	switch p {
	case PlanMini, PlanStarter, PlanBronze, PlanSilver, PlanDiamond, PlanGold:
		return true
	}
	return false
}

func ValidSide(s PositionSide) bool {
	return s == PositionSideBuy || s == PositionSideSell
}
