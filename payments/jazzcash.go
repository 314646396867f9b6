package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gamersarena/GamersArena/ledger"
	"github.com/gamersarena/GamersArena/utils"
)

const jazzcashSuccessCode = "000"

// jazzcashHashFields is the exact field list the secure hash covers, in the
// order JazzCash documents. Fields absent or empty are skipped.
var jazzcashHashFields = []string{
	"pp_Amount", "pp_BillReference", "pp_CNIC", "pp_Description",
	"pp_Language", "pp_MerchantID", "pp_MobileNumber", "pp_Password",
	"pp_TxnCurrency", "pp_TxnDateTime", "pp_TxnExpiryDateTime",
	"pp_TxnRefNo", "pp_TxnType", "pp_Version",
	"ppmpf_1", "ppmpf_2", "ppmpf_3", "ppmpf_4", "ppmpf_5",
}

// JazzCashClient talks to the JazzCash mobile account API
type JazzCashClient struct {
	merchantID string
	password   string
	hashKey    string
	apiURL     string
	sandbox    bool
	httpClient *http.Client
	now        func() time.Time
}

// NewJazzCashClient builds a client. Sandbox mode is forced when no merchant
// id is configured.
func NewJazzCashClient(merchantID, password, hashKey, apiURL string, sandbox bool) *JazzCashClient {
	return &JazzCashClient{
		merchantID: merchantID,
		password:   password,
		hashKey:    hashKey,
		apiURL:     apiURL,
		sandbox:    sandbox || merchantID == "",
		httpClient: &http.Client{Timeout: 30 * time.Second},
		now:        time.Now,
	}
}

// Method returns the payment method name this client settles
func (c *JazzCashClient) Method() string { return "jazzcash" }

// Initiate starts a mobile wallet debit against the user's JazzCash account
func (c *JazzCashClient) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	now := c.now()
	expiry := time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 59, 0, now.Location())

	payload := map[string]string{
		"pp_Version":           "1.1",
		"pp_TxnType":           "MWALLET",
		"pp_Language":          "EN",
		"pp_MerchantID":        c.merchantID,
		"pp_Password":          c.password,
		"pp_TxnRefNo":          req.ExternalRef,
		"pp_Amount":            req.AmountPKR.Shift(2).Round(0).String(),
		"pp_TxnCurrency":       "PKR",
		"pp_TxnDateTime":       now.Format("20060102150405"),
		"pp_TxnExpiryDateTime": expiry.Format("20060102150405"),
		"pp_BillReference":     "GamersArena",
		"pp_Description":       req.Description,
		"pp_MobileNumber":      normalizeMobile(req.MobileNumber),
		"pp_CNIC":              "",
		"ppmpf_1":              "",
		"ppmpf_2":              "",
		"ppmpf_3":              "",
		"ppmpf_4":              "",
		"ppmpf_5":              "",
	}
	payload["pp_SecureHash"] = c.sign(payload)

	if c.sandbox {
		utils.LogInfo("JazzCash sandbox initiation for ref %s", req.ExternalRef)
		return &InitiateResult{
			ExternalID: "JC-" + shortRef(req.ExternalRef),
			Message:    "Payment request sent (sandbox)",
			Sandbox:    true,
		}, nil
	}

	form := url.Values{}
	for k, v := range payload {
		form.Set(k, v)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("jazzcash request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("jazzcash returned HTTP %d", resp.StatusCode)
	}

	var out struct {
		ResponseCode    string `json:"pp_ResponseCode"`
		ResponseMessage string `json:"pp_ResponseMessage"`
		TxnRefNo        string `json:"pp_TxnRefNo"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("jazzcash response: %w", err)
	}
	if out.ResponseCode != jazzcashSuccessCode {
		return nil, fmt.Errorf("jazzcash declined: %s", out.ResponseMessage)
	}
	return &InitiateResult{ExternalID: out.TxnRefNo, Message: "Payment request sent"}, nil
}

// ParseCallback verifies the secure hash on a form-encoded callback and
// normalizes the payload
func (c *JazzCashClient) ParseCallback(form url.Values) (*SettlementEvent, error) {
	fields := make(map[string]string, len(form))
	for k := range form {
		fields[k] = form.Get(k)
	}

	if !c.sandbox {
		received := fields["pp_SecureHash"]
		if received == "" {
			return nil, ledger.ErrAuthentication
		}
		expected := c.sign(fields)
		if !hmac.Equal([]byte(strings.ToLower(received)), []byte(strings.ToLower(expected))) {
			return nil, ledger.ErrAuthentication
		}
	}

	refNo := fields["pp_TxnRefNo"]
	if refNo == "" {
		return nil, fmt.Errorf("%w: callback missing pp_TxnRefNo", ledger.ErrUnknownReference)
	}
	code := fields["pp_ResponseCode"]
	cause := fields["pp_ResponseMessage"]
	if cause == "" {
		cause = "JazzCash code: " + code
	}
	return &SettlementEvent{
		ExternalRef:      refNo,
		Status:           statusFor(code, jazzcashSuccessCode),
		PaymentReference: refNo,
		Cause:            cause,
	}, nil
}

// sign computes the HMAC-SHA256 secure hash: the integrity salt followed by
// each covered non-empty field value joined with ampersands, keyed with the
// same salt.
func (c *JazzCashClient) sign(fields map[string]string) string {
	var b strings.Builder
	b.WriteString(c.hashKey)
	for _, k := range jazzcashHashFields {
		if v, ok := fields[k]; ok && v != "" {
			b.WriteString("&")
			b.WriteString(v)
		}
	}
	mac := hmac.New(sha256.New, []byte(c.hashKey))
	mac.Write([]byte(b.String()))
	return hex.EncodeToString(mac.Sum(nil))
}
