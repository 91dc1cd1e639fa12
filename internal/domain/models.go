// Package domain defines the persistence models for customers, outbound
// messages, dispatch batches, and settings. These types are mapped with GORM
// and form the core data layer of the loyalty SMS backend.
package domain

import "time"

// Customer is a loyalty program member identified by their E.164-normalized
// phone number. Exactly one row exists per phone (upsert key); point balances
// are replaced wholesale on import, never merged.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - FirstName: customer first name used for message personalization.
//   - Phone: E.164-normalized number; unique, the import/lookup key.
//   - Points: current balance (never negative).
//   - PreviousPoints: balance immediately before the most recent import.
//   - RecentlyRedeemed: derived flag, true when the last import dropped the
//     balance across the redemption threshold. Never set directly.
//   - OptedOut: consent flag toggled by inbound STOP/START-class replies.
type Customer struct {
	ID               string    `json:"id"                gorm:"type:char(36);primaryKey"`
	FirstName        string    `json:"first_name"        gorm:"type:varchar(128);not null"`
	Phone            string    `json:"phone"             gorm:"type:varchar(20);not null;uniqueIndex:ux_customers_phone"`
	Points           int       `json:"points"            gorm:"not null;default:0;check:points >= 0"`
	PreviousPoints   int       `json:"previous_points"   gorm:"not null;default:0"`
	RecentlyRedeemed bool      `json:"recently_redeemed" gorm:"not null;default:false"`
	OptedOut         bool      `json:"opted_out"         gorm:"not null;default:false;index"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// TableName returns the database table name for Customer.
func (Customer) TableName() string { return "customers" }

// Message status values. A row records the outcome of a single send attempt
// and is immutable once created: "pending" is only ever observable if an
// attempt crashed between insert intent and outcome.
const (
	MessageStatusPending = "pending"
	MessageStatusSent    = "sent"
	MessageStatusFailed  = "failed"
	MessageStatusSkipped = "skipped"
)

// Message is the append-only record of one outbound send attempt. It is
// created exactly once per attempt by the dispatch engine and never mutated.
//
// CustomerID is nil when the message was sent to a raw phone number without a
// matching customer row. TwilioSID is the gateway-assigned identifier, present
// only for accepted sends.
type Message struct {
	ID           string     `json:"id"            gorm:"type:char(36);primaryKey"`
	CustomerID   *string    `json:"customer_id"   gorm:"type:char(36);index"`
	BatchID      *string    `json:"batch_id"      gorm:"type:char(36);index"`
	Phone        string     `json:"phone"         gorm:"type:varchar(20);not null;index"`
	Body         string     `json:"message_body"  gorm:"type:text;not null"`
	Status       string     `json:"status"        gorm:"type:varchar(16);not null;check:status IN ('pending','sent','failed','skipped')"`
	TwilioSID    *string    `json:"twilio_sid"    gorm:"type:varchar(64)"`
	ErrorMessage *string    `json:"error_message" gorm:"type:text"`
	SentAt       *time.Time `json:"sent_at"`
	CreatedAt    time.Time  `json:"created_at"    gorm:"index"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// DispatchBatch lifecycle states.
const (
	BatchStatusQueued    = "queued"
	BatchStatusRunning   = "running"
	BatchStatusCompleted = "completed"
	BatchStatusBlocked   = "blocked"
	BatchStatusFailed    = "failed"
)

// DispatchBatch tracks one invocation of the send pipeline. Asynchronous
// dispatches are created as "queued" and polled by ID while a background
// worker advances them; synchronous dispatches record their final state.
//
// Reason carries the block/abort explanation for batches that never sent
// anything (compliance window, missing credentials).
type DispatchBatch struct {
	ID          string     `json:"id"           gorm:"type:char(36);primaryKey"`
	Status      string     `json:"status"       gorm:"type:varchar(16);not null;index"`
	Template    string     `json:"template"     gorm:"type:text;not null"`
	Total       int        `json:"total"        gorm:"not null;default:0"`
	Sent        int        `json:"sent"         gorm:"not null;default:0"`
	Failed      int        `json:"failed"       gorm:"not null;default:0"`
	Reason      *string    `json:"reason"       gorm:"type:text"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

// TableName returns the database table name for DispatchBatch.
func (DispatchBatch) TableName() string { return "dispatch_batches" }

// Setting is a single row of the key-value application settings store:
// gateway credentials and the compliance window configuration. Values are
// read fresh at the start of every dispatch, never cached across invocations.
type Setting struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	Key       string    `json:"key"        gorm:"column:key;type:varchar(64);not null;uniqueIndex:ux_settings_key"`
	Value     string    `json:"value"      gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Setting.
func (Setting) TableName() string { return "settings" }

// Idempotency records a previously accepted dispatch request keyed by the
// client-supplied Idempotency-Key header. It lets the send endpoints replay
// the original batch on retry instead of sending the segment twice.
type Idempotency struct {
	ID        string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	Key       string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_idempotency_key"`
	BatchID   string    `gorm:"type:TEXT NOT NULL"`
	CreatedAt time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
