package models

import "time"

// Airtable field names for the song_requests table.
const (
	FieldRequestID       = "request_id"
	FieldGigID           = "gig_id"
	FieldPhoneNumber     = "phone_number"
	FieldSongName        = "song_name"
	FieldCustomerID      = "customer_id"
	FieldPaymentMethodID = "payment_method_id"
	FieldBidAmount       = "bid_amount"
	FieldNotified        = "notified"
	FieldNotifiedAt      = "notified_at"

	FieldStripeConnectID = "stripe_connect_id"
)

// SongRequest is one bid for a song at one gig, as read from the request store.
// RecordID is the store's own record identifier and is what update calls key on.
type SongRequest struct {
	RecordID        string `json:"record_id"`
	RequestID       string `json:"request_id"`
	GigID           string `json:"gig_id"`
	PhoneNumber     string `json:"phone_number"`
	SongName        string `json:"song_name"`
	CustomerID      string `json:"customer_id"`
	PaymentMethodID string `json:"payment_method_id"`
	BidAmount       string `json:"bid_amount"` // decimal dollars, e.g. "5.00"
	Notified        bool   `json:"notified"`
}

// Gig is one live event a DJ is running. Immutable once provisioned.
type Gig struct {
	RecordID        string `json:"record_id"`
	GigID           string `json:"gig_id"`
	StripeConnectID string `json:"stripe_connect_id"`
}

// ChargeParams is the tuple submitted to the payment gateway for one settlement.
// Amounts are integer minor currency units (cents).
type ChargeParams struct {
	RequestID       string
	CustomerID      string
	PaymentMethodID string
	AmountMinor     int64
	FeeMinor        int64
	Destination     string
	// IdempotencyKey makes resubmissions of the same request collapse into a
	// single charge at the gateway.
	IdempotencyKey string
}

// ChargeResult is the gateway's answer to a successful charge.
type ChargeResult struct {
	ChargeID string
	Status   string
}

// Settlement pipeline stages, recorded in the audit log.
const (
	StageValidate   = "validate"
	StageResolveGig = "resolve_gig"
	StageCharge     = "charge"
	StageNotify     = "notify"
	StageCommit     = "commit"
)

const (
	SettlementSucceeded = "succeeded"
	SettlementFailed    = "failed"
	// SettlementPartial means the charge went through but a later stage did not.
	// These rows are the ones an operator has to reconcile by hand.
	SettlementPartial = "partial"
)

// SettlementLog is the per-attempt audit record persisted to Postgres.
type SettlementLog struct {
	ID          int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	RequestID   string    `json:"request_id" gorm:"index"`
	GigID       string    `json:"gig_id"`
	ChargeID    string    `json:"charge_id"`
	AmountMinor int64     `json:"amount_minor"`
	FeeMinor    int64     `json:"fee_minor"`
	Stage       string    `json:"stage"`
	Status      string    `json:"status" gorm:"index"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
}

type SettlementLogFilter struct {
	RequestID string
	Status    string
	Page      int
	PageSize  int
}
