package paystack

import "encoding/json"

// Metadata is attached to initialize calls and echoed back on events so the
// reconciliation path can recover the originating user and video.
type Metadata struct {
	UserID       string `json:"user_id,omitempty"`
	VideoID      string `json:"video_id,omitempty"`
	Subscription bool   `json:"subscription,omitempty"`
}

// InitializeRequest is the transaction/initialize payload. Amount is in the
// currency's minor unit; Plan, when set, makes the charge open a subscription.
type InitializeRequest struct {
	Email       string   `json:"email"`
	Amount      int64    `json:"amount"`
	Reference   string   `json:"reference,omitempty"`
	Plan        string   `json:"plan,omitempty"`
	CallbackURL string   `json:"callback_url,omitempty"`
	Metadata    Metadata `json:"metadata,omitempty"`
}

type initializeResponse struct {
	Status  bool           `json:"status"`
	Message string         `json:"message"`
	Data    InitializeData `json:"data"`
}

// InitializeData carries the redirect target handed to the buyer.
type InitializeData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type verifyResponse struct {
	Status  bool       `json:"status"`
	Message string     `json:"message"`
	Data    VerifyData `json:"data"`
}

// VerifyData is the processor's record for a reference. Status is the
// processor vocabulary ("success", "failed", "abandoned", ...).
type VerifyData struct {
	ID        int64    `json:"id"`
	Status    string   `json:"status"`
	Reference string   `json:"reference"`
	Amount    int64    `json:"amount"`
	Customer  Customer `json:"customer"`
	Metadata  Metadata `json:"metadata"`
}

// Succeeded reports whether the processor confirmed the payment.
func (v VerifyData) Succeeded() bool {
	return v.Status == "success"
}

// Failed reports whether the processor recorded a definite failure, as
// opposed to a payment that is merely unconfirmed.
func (v VerifyData) Failed() bool {
	return v.Status == "failed" || v.Status == "abandoned"
}

// Customer identifies the paying party on the processor side.
type Customer struct {
	ID           int64  `json:"id,omitempty"`
	Email        string `json:"email"`
	CustomerCode string `json:"customer_code,omitempty"`
}

// Plan describes a subscription plan as configured on the processor.
type Plan struct {
	PlanCode string `json:"plan_code"`
	Name     string `json:"name"`
	Amount   int64  `json:"amount"`
	Interval string `json:"interval"`
	Status   string `json:"status"`
}

type planResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    Plan   `json:"data"`
}

type planListResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    []Plan `json:"data"`
}

// Event is the outer webhook envelope: a tagged union keyed on Event with
// the payload left raw until the type is known.
type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Webhook event types the platform understands. Anything else is
// acknowledged and ignored.
const (
	EventChargeSuccess        = "charge.success"
	EventSubscriptionCreate   = "subscription.create"
	EventSubscriptionNotRenew = "subscription.not_renew"
	EventSubscriptionDisable  = "subscription.disable"
	EventInvoiceUpdate        = "invoice.update"
)

// IsSubscriptionLifecycle reports whether the event type feeds the
// subscription projection.
func IsSubscriptionLifecycle(eventType string) bool {
	switch eventType {
	case EventSubscriptionCreate, EventSubscriptionNotRenew, EventSubscriptionDisable, EventInvoiceUpdate:
		return true
	default:
		return false
	}
}

// ChargeEventData is the charge.success payload.
type ChargeEventData struct {
	Reference string   `json:"reference"`
	Status    string   `json:"status"`
	Amount    int64    `json:"amount"`
	Customer  Customer `json:"customer"`
	Metadata  Metadata `json:"metadata"`
}

// SubscriptionEventData is the payload shared by subscription lifecycle
// events. NextPaymentDate doubles as the period end; nil means open-ended.
type SubscriptionEventData struct {
	SubscriptionCode string    `json:"subscription_code"`
	Status           string    `json:"status"`
	Plan             EventPlan `json:"plan"`
	Customer         Customer  `json:"customer"`
	Metadata         Metadata  `json:"metadata"`
	CreatedAt        string    `json:"createdAt"`
	NextPaymentDate  *string   `json:"next_payment_date"`
}

// EventPlan is the plan fragment embedded in subscription events.
type EventPlan struct {
	PlanCode string `json:"plan_code"`
	Name     string `json:"name"`
	Amount   int64  `json:"amount"`
}
