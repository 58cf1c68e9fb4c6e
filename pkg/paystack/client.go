package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/adjeibohyen/tutorhub-backend/pkg/config"
	pkgerrors "github.com/adjeibohyen/tutorhub-backend/pkg/errors"
	"github.com/adjeibohyen/tutorhub-backend/pkg/logger"
)

// PlanCodePrefix is the processor's plan-code convention; configured plan
// codes are rejected before any network call when they don't match.
const PlanCodePrefix = "PLN_"

var errSecretKeyRequired = fmt.Errorf("paystack secret key is required")

// Client is a thin HTTP client over the processor's initialize/verify/plan
// APIs. It is stateless; every call carries a bounded timeout so a stalled
// processor surfaces as a dependency error instead of a hung request.
type Client struct {
	secretKey     string
	baseURL       string
	signingSecret string
	http          *http.Client
}

// NewClient validates the configured credentials and builds a client.
func NewClient(ctx context.Context, cfg config.PaystackConfig, logg *logger.Logger) (*Client, error) {
	secret := strings.TrimSpace(cfg.SecretKey)
	if secret == "" {
		return nil, errSecretKeyRequired
	}
	if !strings.HasPrefix(secret, "sk_test_") && !strings.HasPrefix(secret, "sk_live_") {
		return nil, fmt.Errorf("paystack secret key must start with sk_test_ or sk_live_")
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.paystack.co"
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}

	if logg != nil {
		logg.Info(ctx, fmt.Sprintf("paystack client initialized (%s)", cfg.KeyMode()))
	}

	return &Client{
		secretKey:     secret,
		baseURL:       baseURL,
		signingSecret: secret,
		http:          &http.Client{Timeout: timeout},
	}, nil
}

// SigningSecret returns the key used to authenticate inbound webhooks.
// Paystack signs webhooks with the account secret key itself.
func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.signingSecret
}

// ValidPlanCode reports whether the code matches the processor convention.
func ValidPlanCode(code string) bool {
	return strings.HasPrefix(code, PlanCodePrefix) && len(code) > len(PlanCodePrefix)
}

// InitializeTransaction opens a transaction and returns the authorization
// URL the buyer is redirected to.
func (c *Client) InitializeTransaction(ctx context.Context, req InitializeRequest) (*InitializeData, error) {
	var decoded initializeResponse
	if err := c.do(ctx, http.MethodPost, "/transaction/initialize", req, &decoded); err != nil {
		return nil, err
	}
	if !decoded.Status {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, firstNonEmpty(decoded.Message, "payment initialization failed"))
	}
	return &decoded.Data, nil
}

// VerifyTransaction fetches the processor's record for a reference. A
// transport failure is a dependency error; an unsuccessful payment is not
// an error at all, since the caller decides what an unconfirmed status means.
func (c *Client) VerifyTransaction(ctx context.Context, reference string) (*VerifyData, error) {
	if strings.TrimSpace(reference) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reference is required")
	}
	var decoded verifyResponse
	if err := c.do(ctx, http.MethodGet, "/transaction/verify/"+reference, nil, &decoded); err != nil {
		return nil, err
	}
	if !decoded.Status {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, firstNonEmpty(decoded.Message, "verification rejected"))
	}
	return &decoded.Data, nil
}

// FetchPlan looks up a single plan by code.
func (c *Client) FetchPlan(ctx context.Context, planCode string) (*Plan, error) {
	if !ValidPlanCode(planCode) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("plan code %q does not match %s convention", planCode, PlanCodePrefix))
	}
	var decoded planResponse
	if err := c.do(ctx, http.MethodGet, "/plan/"+planCode, nil, &decoded); err != nil {
		return nil, err
	}
	if !decoded.Status {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, firstNonEmpty(decoded.Message, "plan not found"))
	}
	return &decoded.Data, nil
}

// ListPlans returns every plan configured on the account.
func (c *Client) ListPlans(ctx context.Context) ([]Plan, error) {
	var decoded planListResponse
	if err := c.do(ctx, http.MethodGet, "/plan", nil, &decoded); err != nil {
		return nil, err
	}
	if !decoded.Status {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, firstNonEmpty(decoded.Message, "failed to list plans"))
	}
	return decoded.Data, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, dest any) error {
	var payload *bytes.Buffer
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode paystack request")
		}
		payload = bytes.NewBuffer(encoded)
	} else {
		payload = &bytes.Buffer{}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build paystack request")
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "paystack unreachable")
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode paystack response")
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
