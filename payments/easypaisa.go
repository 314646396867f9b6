package payments

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/gamersarena/GamersArena/ledger"
	"github.com/gamersarena/GamersArena/utils"
)

const easypaisaSuccessCode = "0000"

// EasypaisaClient talks to the Easypaisa merchant API. In sandbox mode it
// short-circuits initiation and skips callback signature checks so the flow
// can be exercised without merchant credentials.
type EasypaisaClient struct {
	storeID     string
	hashKey     string
	apiURL      string
	callbackURL string
	sandbox     bool
	httpClient  *http.Client
}

// NewEasypaisaClient builds a client. Sandbox mode is forced when no store id
// is configured.
func NewEasypaisaClient(storeID, hashKey, apiURL, callbackURL string, sandbox bool) *EasypaisaClient {
	return &EasypaisaClient{
		storeID:     storeID,
		hashKey:     hashKey,
		apiURL:      apiURL,
		callbackURL: callbackURL,
		sandbox:     sandbox || storeID == "",
		httpClient:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Method returns the payment method name this client settles
func (c *EasypaisaClient) Method() string { return "easypaisa" }

// Initiate sends an over-the-counter payment request to the user's mobile
func (c *EasypaisaClient) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	payload := map[string]string{
		"orderId":               req.ExternalRef,
		"storeId":               c.storeID,
		"transactionAmount":     req.AmountPKR.Round(0).String(),
		"transactionType":       "OTC",
		"mobileAccountNo":       normalizeMobile(req.MobileNumber),
		"emailAddress":          "",
		"tokenExpiry":           "20270101 235959",
		"merchantPaymentMethod": "",
		"postBackURL":           c.callbackURL,
	}
	payload["hashKey"] = c.sign(payload)

	if c.sandbox {
		utils.LogInfo("Easypaisa sandbox initiation for order %s", req.ExternalRef)
		return &InitiateResult{
			ExternalID: "EP-" + shortRef(req.ExternalRef),
			Message:    "Payment request sent (sandbox)",
			Sandbox:    true,
		}, nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/initiate", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("easypaisa request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("easypaisa returned HTTP %d", resp.StatusCode)
	}

	var out struct {
		ResponseCode  string `json:"responseCode"`
		ResponseDesc  string `json:"responseDesc"`
		TransactionID string `json:"transactionId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("easypaisa response: %w", err)
	}
	if out.ResponseCode != easypaisaSuccessCode {
		return nil, fmt.Errorf("easypaisa declined: %s", out.ResponseDesc)
	}
	return &InitiateResult{ExternalID: out.TransactionID, Message: "Payment request sent"}, nil
}

// ParseCallback verifies the callback hash and normalizes the payload.
// The hash covers every field except hashKey itself.
func (c *EasypaisaClient) ParseCallback(data map[string]any) (*SettlementEvent, error) {
	fields := make(map[string]string, len(data))
	var received string
	for k, v := range data {
		s := fmt.Sprint(v)
		if k == "hashKey" {
			received = s
			continue
		}
		fields[k] = s
	}

	if !c.sandbox {
		if received == "" {
			return nil, ledger.ErrAuthentication
		}
		expected := c.sign(fields)
		if subtle.ConstantTimeCompare([]byte(received), []byte(expected)) != 1 {
			return nil, ledger.ErrAuthentication
		}
	}

	orderID := fields["orderId"]
	if orderID == "" {
		return nil, fmt.Errorf("%w: callback missing orderId", ledger.ErrUnknownReference)
	}
	code := fields["transactionStatus"]
	return &SettlementEvent{
		ExternalRef:      orderID,
		Status:           statusFor(code, easypaisaSuccessCode),
		PaymentReference: fields["transactionId"],
		Cause:            fmt.Sprintf("Easypaisa status: %s", code),
	}, nil
}

// sign concatenates non-empty values in key order, appends the hash key, and
// returns the hex SHA-256 digest.
func (c *EasypaisaClient) sign(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	for _, k := range keys {
		if fields[k] != "" {
			buf.WriteString(fields[k])
		}
	}
	buf.WriteString(c.hashKey)

	sum := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:])
}

func shortRef(ref string) string {
	if len(ref) > 8 {
		return ref[:8]
	}
	return ref
}
