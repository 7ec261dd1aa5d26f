package ercaspay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// ErrUnavailable marks transport and non-2xx failures. Callers may retry.
var ErrUnavailable = errors.New("ercaspay unavailable")

type Status string

const (
	StatusSuccess Status = "success"
	StatusPending Status = "pending"
	StatusFailed  Status = "failed"
)

// Gateway is the part of the Ercaspay API the wallet needs.
type Gateway interface {
	Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error)
	Verify(ctx context.Context, reference string) (*Verification, error)
}

type Config struct {
	BaseURL   string
	SecretKey string
	Timeout   time.Duration
}

type Client struct {
	httpClient *http.Client
	config     Config
}

type InitiateRequest struct {
	Amount        int64 // kobo
	Reference     string
	CustomerName  string
	CustomerEmail string
	RedirectURL   string
	Description   string
	UserID        string
}

type InitiateResult struct {
	PaymentReference     string
	TransactionReference string
	CheckoutURL          string
}

// Verification is the gateway's view of a transaction. Amount is the
// authoritative credited amount in kobo.
type Verification struct {
	Status               Status
	RawStatus            string
	Amount               int64
	TransactionReference string
	PaymentReference     string
	UserID               string
	CustomerEmail        string
}

type envelope struct {
	RequestSuccessful bool            `json:"requestSuccessful"`
	ResponseCode      string          `json:"responseCode"`
	ResponseMessage   string          `json:"responseMessage"`
	ResponseBody      json.RawMessage `json:"responseBody"`
}

type initiateBody struct {
	Amount         json.Number       `json:"amount"`
	PaymentRef     string            `json:"paymentReference"`
	PaymentMethods string            `json:"paymentMethods"`
	CustomerName   string            `json:"customerName"`
	CustomerEmail  string            `json:"customerEmail"`
	RedirectURL    string            `json:"redirectUrl"`
	Description    string            `json:"description,omitempty"`
	Currency       string            `json:"currency"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

type initiateResponse struct {
	PaymentReference     string `json:"paymentReference"`
	TransactionReference string `json:"transactionReference"`
	CheckoutURL          string `json:"checkoutUrl"`
}

type verifyResponse struct {
	Status        string          `json:"status"`
	Amount        decimal.Decimal `json:"amount"`
	TxReference   string          `json:"tx_reference"`
	ErcsReference string          `json:"ercs_reference"`
	Metadata      json.RawMessage `json:"metadata"`
	Customer      struct {
		Email string `json:"email"`
	} `json:"customer"`
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	cfg.Timeout = timeout
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		config:     cfg,
	}
}

func (c *Client) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	ctx, span := otel.Tracer("ercaspay").Start(ctx, "Initiate")
	defer span.End()
	span.SetAttributes(attribute.String("reference", req.Reference), attribute.Int64("amount", req.Amount))

	if req.Amount <= 0 {
		return nil, fmt.Errorf("validation error: amount must be > 0")
	}
	if strings.TrimSpace(req.Reference) == "" {
		return nil, fmt.Errorf("validation error: reference must be non-empty")
	}

	body := initiateBody{
		Amount:         json.Number(decimal.New(req.Amount, -2).StringFixed(2)),
		PaymentRef:     req.Reference,
		PaymentMethods: "card,bank-transfer,ussd",
		CustomerName:   req.CustomerName,
		CustomerEmail:  req.CustomerEmail,
		RedirectURL:    req.RedirectURL,
		Description:    req.Description,
		Currency:       "NGN",
	}
	if req.UserID != "" {
		body.Metadata = map[string]string{"userId": req.UserID}
	}

	var out initiateResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/payment/initiate", body, &out); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "initiate failed")
		return nil, err
	}
	if out.TransactionReference == "" || out.CheckoutURL == "" {
		err := fmt.Errorf("%w: initiate response missing transaction reference or checkout url", ErrUnavailable)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	zap.S().Infow("ercaspay transaction initiated", "reference", req.Reference, "transaction_reference", out.TransactionReference)
	return &InitiateResult{
		PaymentReference:     out.PaymentReference,
		TransactionReference: out.TransactionReference,
		CheckoutURL:          out.CheckoutURL,
	}, nil
}

func (c *Client) Verify(ctx context.Context, reference string) (*Verification, error) {
	ctx, span := otel.Tracer("ercaspay").Start(ctx, "Verify")
	defer span.End()
	span.SetAttributes(attribute.String("reference", reference))

	if strings.TrimSpace(reference) == "" {
		return nil, fmt.Errorf("validation error: reference must be non-empty")
	}

	var out verifyResponse
	path := "/api/v1/payment/transaction/verify/" + url.PathEscape(reference)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "verify failed")
		return nil, err
	}

	amount, err := ToKobo(out.Amount)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	v := &Verification{
		Status:               MapStatus(out.Status),
		RawStatus:            out.Status,
		Amount:               amount,
		TransactionReference: out.ErcsReference,
		PaymentReference:     out.TxReference,
		UserID:               metadataUserID(out.Metadata),
		CustomerEmail:        out.Customer.Email,
	}
	if v.TransactionReference == "" {
		v.TransactionReference = reference
	}
	span.SetAttributes(attribute.String("status", string(v.Status)), attribute.Int64("amount", v.Amount))
	return v, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	var reader io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode ercaspay request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build ercaspay request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.config.SecretKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		zap.S().Errorw("ercaspay call failed", "method", method, "path", path, "error", err)
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		zap.S().Errorw("ercaspay returned non-2xx status", "method", method, "path", path, "status", resp.StatusCode, "body", string(raw))
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("%w: failed to parse response: %v", ErrUnavailable, err)
	}
	if !env.RequestSuccessful {
		return fmt.Errorf("%w: %s (%s)", ErrUnavailable, env.ResponseMessage, env.ResponseCode)
	}
	if err := json.Unmarshal(env.ResponseBody, out); err != nil {
		return fmt.Errorf("%w: failed to parse response body: %v", ErrUnavailable, err)
	}
	return nil
}

// MapStatus folds Ercaspay's transaction statuses into three outcomes.
func MapStatus(raw string) Status {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "SUCCESSFUL", "SUCCESS", "PAID", "COMPLETED":
		return StatusSuccess
	case "PENDING", "PROCESSING", "INITIATED", "":
		return StatusPending
	default:
		return StatusFailed
	}
}

// ToKobo converts a naira amount with at most two decimal places.
func ToKobo(amount decimal.Decimal) (int64, error) {
	kobo := amount.Shift(2)
	if !kobo.IsInteger() {
		return 0, fmt.Errorf("invalid amount %s: more than two decimal places", amount.String())
	}
	if kobo.IsNegative() {
		return 0, fmt.Errorf("invalid amount %s: negative", amount.String())
	}
	return kobo.IntPart(), nil
}

// metadataUserID accepts metadata as an object or as a JSON-encoded string.
func metadataUserID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var meta map[string]any
	if err := json.Unmarshal(raw, &meta); err != nil {
		var s string
		if json.Unmarshal(raw, &s) != nil || json.Unmarshal([]byte(s), &meta) != nil {
			return ""
		}
	}
	for _, key := range []string{"userId", "user_id", "userID"} {
		if v, ok := meta[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
