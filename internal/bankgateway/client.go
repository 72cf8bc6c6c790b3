package bankgateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/finvoice/recurpay/internal/config"
	"github.com/finvoice/recurpay/internal/envelope"
	"github.com/finvoice/recurpay/internal/httpclient"
	"go.uber.org/zap"
)

// Gateway wraps the three bank operations behind the crypto envelope.
type Gateway interface {
	CreateMandate(ctx context.Context, req CreateMandateRequest) (*Result, error)
	ExecuteMandate(ctx context.Context, req ExecuteMandateRequest) (*Result, error)
	SendNotification(ctx context.Context, req NotifyRequest) (*Result, error)
}

type client struct {
	http     httpclient.Client
	envelope *envelope.Envelope
	log      *zap.Logger

	baseURL       string
	apiKey        string
	merchantID    string
	subMerchantID string
	terminalID    string
}

func NewClient(cfg config.BankConfig, http httpclient.Client, env *envelope.Envelope, log *zap.Logger) Gateway {
	return &client{
		http:          http,
		envelope:      env,
		log:           log.Named("bankgateway"),
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:        cfg.APIKey,
		merchantID:    cfg.MerchantID,
		subMerchantID: cfg.SubMerchantID,
		terminalID:    cfg.TerminalID,
	}
}

func (c *client) CreateMandate(ctx context.Context, req CreateMandateRequest) (*Result, error) {
	payload := map[string]string{
		"merchantId":     c.merchantID,
		"subMerchantId":  c.subMerchantID,
		"terminalId":     c.terminalID,
		"merchantTranId": req.MerchantTranID,
		"payerVa":        req.PayerVA,
		"payerName":      req.PayerName,
		"payerMobile":    req.PayerMobile,
		"amount":         req.Amount.StringFixed(2),
		"amountLimit":    req.Amount.StringFixed(2),
		"validityStart":  req.ValidityStart,
		"validityEnd":    req.ValidityEnd,
		"requestType":    "C",
		"frequency":      "MONTHLY",
		"autoExecute":    "N",
		"note":           req.Note,
	}
	return c.call(ctx, ServiceCreateMandate, req.MerchantTranID, payload)
}

func (c *client) ExecuteMandate(ctx context.Context, req ExecuteMandateRequest) (*Result, error) {
	payload := map[string]string{
		"merchantId":     c.merchantID,
		"subMerchantId":  c.subMerchantID,
		"terminalId":     c.terminalID,
		"merchantTranId": req.MerchantTranID,
		"UMN":            req.UMN,
		"payerVa":        req.PayerVA,
		"amount":         req.Amount.StringFixed(2),
		"seqNo":          strconv.Itoa(req.SequenceNumber),
		"remark":         "Recurring subscription charge",
	}
	return c.call(ctx, ServiceExecuteMandate, req.MerchantTranID, payload)
}

func (c *client) SendNotification(ctx context.Context, req NotifyRequest) (*Result, error) {
	payload := map[string]string{
		"merchantId":     c.merchantID,
		"subMerchantId":  c.subMerchantID,
		"merchantTranId": req.MerchantTranID,
		"UMN":            req.UMN,
		"payerVa":        req.PayerVA,
		"amount":         req.Amount.StringFixed(2),
		"seqNo":          strconv.Itoa(req.SequenceNumber),
		"executionDate":  req.ExecutionDate,
	}
	return c.call(ctx, ServiceMandateNotification, req.MerchantTranID, payload)
}

// call seals the plaintext payload, POSTs it to the service endpoint and opens
// the response. Transport failures and cleartext rejections come back as
// *APIError, decrypted rejections as *BusinessError.
func (c *client) call(ctx context.Context, service, requestID string, payload map[string]string) (*Result, error) {
	sealed, err := c.envelope.Encrypt(payload)
	if err != nil {
		// Fatal key-material fault, surfaced as-is so it is never retried.
		return nil, err
	}

	body, err := json.Marshal(requestEnvelope{
		RequestID:     requestID,
		Service:       service,
		EncryptedKey:  sealed.EncryptedKey,
		IV:            sealed.IV,
		EncryptedData: sealed.EncryptedData,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request envelope: %w", err)
	}

	resp, err := c.http.Send(ctx, &httpclient.Request{
		Method:  http.MethodPost,
		URL:     c.baseURL + "/" + service,
		Headers: map[string]string{"apikey": c.apiKey},
		Body:    body,
	})
	if err != nil {
		return nil, &APIError{Err: err}
	}
	if resp.StatusCode >= 400 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(resp.Body)}
	}

	var outer responseEnvelope
	if err := json.Unmarshal(resp.Body, &outer); err != nil {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(resp.Body)}
	}
	if outer.EncryptedData == "" {
		// Rejected before envelope processing; the body is cleartext.
		c.log.Warn("bank returned cleartext rejection",
			zap.String("service", service),
			zap.String("request_id", requestID),
			zap.String("response", outer.Response),
		)
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(resp.Body)}
	}

	plaintext, err := c.envelope.Decrypt(outer.EncryptedData, outer.EncryptedKey, outer.IV)
	if err != nil {
		return nil, err
	}

	var inner decryptedResponse
	if err := json.Unmarshal(plaintext, &inner); err != nil {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(plaintext)}
	}
	if !inner.ok() {
		return nil, &BusinessError{Code: inner.Response, Description: inner.Message}
	}

	return &Result{
		MerchantTranID:  inner.MerchantTranID,
		BankReferenceID: inner.BankRRN,
		UMN:             inner.UMN,
		ResponseCode:    inner.Response,
		Description:     inner.Message,
		Raw:             plaintext,
	}, nil
}
