// Package models holds the compensation engine's persisted types:
// Partner, Package, Order, LedgerEntry, QueuedCommission and
// InsuranceAssignment, per spec §3.
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Metadata is a jsonb-backed bag of loosely-typed extra columns, the
// way eyeshade's transactions carry extra fields without overloading
// description.
type Metadata map[string]string

// Value implements driver.Valuer, encoding Metadata as jsonb.
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner, decoding jsonb into Metadata.
func (m *Metadata) Scan(src interface{}) error {
	if src == nil {
		*m = nil
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported type for Metadata: %T", src)
	}
	return json.Unmarshal(raw, m)
}

// Rank is a partner's current standing on the promotion ladder.
type Rank string

// Rank ladder, in ascending order. Index in this slice is the rank's
// monotonicity index for invariant 4 ("a partner's rank index never
// decreases").
const (
	RankStarter    Rank = "starter"
	RankAchiever   Rank = "achiever"
	RankLeader     Rank = "leader"
	RankProLeader  Rank = "pro_leader"
	RankChampion   Rank = "champion"
	RankLegend     Rank = "legend"
)

// RankOrder lists every rank from lowest to highest.
var RankOrder = []Rank{RankStarter, RankAchiever, RankLeader, RankProLeader, RankChampion, RankLegend}

// Index returns r's position in RankOrder, or -1 if unknown.
func (r Rank) Index() int {
	for i, known := range RankOrder {
		if known == r {
			return i
		}
	}
	return -1
}

// Partner is an enrolled account that can purchase, refer others and earn.
type Partner struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	ReferrerID     *uuid.UUID `db:"referrer_id" json:"referrerId,omitempty"`
	ReferralCode   string     `db:"referral_code" json:"referralCode"`
	Role           string     `db:"role" json:"role"`
	Rank           Rank       `db:"rank" json:"rank"`

	DirectSalesUnits int64           `db:"direct_sales_units" json:"directSalesUnits"`
	TeamSalesUnits   int64           `db:"team_sales_units" json:"teamSalesUnits"`
	TotalEarnings    decimal.Decimal `db:"total_earnings" json:"totalEarnings"`
	WalletBalance    decimal.Decimal `db:"wallet_balance" json:"walletBalance"`
	InsuranceAmount  decimal.Decimal `db:"insurance_amount" json:"insuranceAmount"`

	LastSaleAt *time.Time `db:"last_sale_at" json:"lastSaleAt,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"createdAt"`
}

// TotalSalesUnits is the figure the Rank Engine compares against the ladder.
func (p *Partner) TotalSalesUnits() int64 {
	return p.DirectSalesUnits + p.TeamSalesUnits
}

// Package is a purchasable product priced in currency units.
type Package struct {
	ID     uuid.UUID       `db:"id" json:"id"`
	Price  decimal.Decimal `db:"price" json:"price"`
	Active bool            `db:"active" json:"active"`
}

// OrderStatus is the lifecycle state of an Order.
type OrderStatus string

const (
	OrderPending  OrderStatus = "pending"
	OrderPaid     OrderStatus = "paid"
	OrderFailed   OrderStatus = "failed"
	OrderRefunded OrderStatus = "refunded"
)

// Terminal reports whether an order status no longer accepts transitions.
func (s OrderStatus) Terminal() bool {
	return s == OrderPaid || s == OrderFailed || s == OrderRefunded
}

// Order is a single purchase, normalised into sales units at creation.
type Order struct {
	ID                uuid.UUID       `db:"id" json:"id"`
	BuyerPartnerID    uuid.UUID       `db:"buyer_partner_id" json:"buyerPartnerId"`
	PackageID         uuid.UUID       `db:"package_id" json:"packageId"`
	Amount            decimal.Decimal `db:"amount" json:"amount"`
	SalesUnits        int64           `db:"sales_units" json:"salesUnits"`
	Status            OrderStatus     `db:"status" json:"status"`
	PaymentMethod     string          `db:"payment_method" json:"paymentMethod"`
	PaymentReference  *string         `db:"payment_reference" json:"paymentReference,omitempty"`
	CreatedAt         time.Time       `db:"created_at" json:"createdAt"`
	PaidAt            *time.Time      `db:"paid_at" json:"paidAt,omitempty"`
}

// LedgerEntryKind classifies a compensation transaction.
type LedgerEntryKind string

const (
	KindDirectReferral LedgerEntryKind = "direct_referral"
	KindTeamCommission LedgerEntryKind = "team_commission"
	KindRankBonus      LedgerEntryKind = "rank_bonus"
	KindPayout         LedgerEntryKind = "payout"
)

// LedgerEntryStatus is the lifecycle state of a LedgerEntry.
type LedgerEntryStatus string

const (
	LedgerPending   LedgerEntryStatus = "pending"
	LedgerApproved  LedgerEntryStatus = "approved"
	LedgerCancelled LedgerEntryStatus = "cancelled"
)

// LedgerEntry is the only legal record of a wallet or earnings change.
type LedgerEntry struct {
	ID           uuid.UUID         `db:"id" json:"id"`
	PartnerID    uuid.UUID         `db:"partner_id" json:"partnerId"`
	Kind         LedgerEntryKind   `db:"kind" json:"kind"`
	Amount       decimal.Decimal   `db:"amount" json:"amount"`
	Description  string            `db:"description" json:"description"`
	ReferenceID  *uuid.UUID        `db:"reference_id" json:"referenceId,omitempty"`
	Status       LedgerEntryStatus `db:"status" json:"status"`
	Metadata     Metadata          `db:"metadata" json:"metadata,omitempty"`
	CreatedAt    time.Time         `db:"created_at" json:"createdAt"`
	ProcessedAt  *time.Time        `db:"processed_at" json:"processedAt,omitempty"`
}

// QueuedCommissionStatus is the lifecycle state of a QueuedCommission.
type QueuedCommissionStatus string

const (
	QueuedPending   QueuedCommissionStatus = "pending"
	QueuedProcessed QueuedCommissionStatus = "processed"
	QueuedCancelled QueuedCommissionStatus = "cancelled"
)

// QueuedCommission is a not-yet-settled team commission line held until
// the weekly Settler run.
type QueuedCommission struct {
	ID            uuid.UUID              `db:"id" json:"id"`
	PartnerID     uuid.UUID              `db:"partner_id" json:"partnerId"`
	SourceOrderID uuid.UUID              `db:"source_order_id" json:"sourceOrderId"`
	Level         int                    `db:"level" json:"level"`
	SalesUnits    int64                  `db:"sales_units" json:"salesUnits"`
	Amount        decimal.Decimal        `db:"amount" json:"amount"`
	WindowStart   time.Time              `db:"window_start" json:"windowStart"`
	WindowEnd     time.Time              `db:"window_end" json:"windowEnd"`
	Status        QueuedCommissionStatus `db:"status" json:"status"`
	CreatedAt     time.Time              `db:"created_at" json:"createdAt"`
	ProcessedAt   *time.Time             `db:"processed_at" json:"processedAt,omitempty"`
}

// InsuranceAssignmentStatus is the lifecycle state of an InsuranceAssignment.
type InsuranceAssignmentStatus string

const (
	InsuranceActive    InsuranceAssignmentStatus = "active"
	InsuranceExpired   InsuranceAssignmentStatus = "expired"
	InsuranceCancelled InsuranceAssignmentStatus = "cancelled"
)

// InsuranceAssignment is a one-shot entitlement awarded exactly once per
// rank promotion.
type InsuranceAssignment struct {
	ID         uuid.UUID                 `db:"id" json:"id"`
	PartnerID  uuid.UUID                 `db:"partner_id" json:"partnerId"`
	Rank       Rank                      `db:"rank" json:"rank"`
	Amount     decimal.Decimal           `db:"amount" json:"amount"`
	AssignedAt time.Time                 `db:"assigned_at" json:"assignedAt"`
	Status     InsuranceAssignmentStatus `db:"status" json:"status"`
}

// DrainedGroup is one partner's aggregate over their pending
// QueuedCommission rows, the shape C4's drain_pending_grouped returns.
type DrainedGroup struct {
	PartnerID  uuid.UUID
	TotalAmount decimal.Decimal
	TotalUnits  int64
	RowCount    int
	RowIDs      []uuid.UUID
}

// Summary is the read-only compensation snapshot C10 returns.
type Summary struct {
	TotalEarnings            decimal.Decimal `json:"totalEarnings"`
	WalletBalance            decimal.Decimal `json:"walletBalance"`
	PendingPayouts           decimal.Decimal `json:"pendingPayouts"`
	DirectReferralBonus      decimal.Decimal `json:"directReferralBonus"`
	TeamCommission           decimal.Decimal `json:"teamCommission"`
	RankBonuses              decimal.Decimal `json:"rankBonuses"`
	PendingWeeklyCommissions decimal.Decimal `json:"pendingWeeklyCommissions"`
}
