package payments

import "github.com/google/uuid"

// InitializeRequest is the payload for starting a one-off video payment.
type InitializeRequest struct {
	VideoID uuid.UUID `json:"video_id" validate:"required"`
}

// InitializeResponse carries the redirect target for a freshly opened
// transaction.
type InitializeResponse struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// PlanEntry is one plan as the processor reports it.
type PlanEntry struct {
	PlanCode string `json:"plan_code"`
	Name     string `json:"name"`
	Amount   int64  `json:"amount"`
	Interval string `json:"interval"`
	Status   string `json:"status"`
}

// PlanStatus is the admin diagnostic view of the processor plan setup:
// the configured code, whether the account actually carries it, and the
// full plan inventory for finding the right one when it does not.
type PlanStatus struct {
	PlanCode  string      `json:"plan_code"`
	PlanFound bool        `json:"plan_found"`
	Plan      *PlanEntry  `json:"plan,omitempty"`
	AllPlans  []PlanEntry `json:"all_plans"`
	KeyMode   string      `json:"key_mode"`
}
