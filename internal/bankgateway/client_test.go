package bankgateway

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"testing"

	"github.com/finvoice/recurpay/internal/config"
	"github.com/finvoice/recurpay/internal/envelope"
	"github.com/finvoice/recurpay/internal/httpclient"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeTransport struct {
	lastReq *httpclient.Request
	resp    *httpclient.Response
	err     error
}

func (f *fakeTransport) Send(ctx context.Context, req *httpclient.Request) (*httpclient.Response, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func newTestClient(t *testing.T, transport *fakeTransport) (Gateway, *envelope.Envelope) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	env := envelope.New(&key.PublicKey, key)
	cfg := config.BankConfig{
		BaseURL:       "https://bank.example.com/api/v1",
		APIKey:        "test-key",
		MerchantID:    "M0001",
		SubMerchantID: "SM0001",
		TerminalID:    "5411",
	}
	return NewClient(cfg, transport, env, zap.NewNop()), env
}

func sealedResponse(t *testing.T, env *envelope.Envelope, inner map[string]string) *httpclient.Response {
	t.Helper()
	sealed, err := env.Encrypt(inner)
	require.NoError(t, err)
	body, err := json.Marshal(responseEnvelope{
		EncryptedData: sealed.EncryptedData,
		EncryptedKey:  sealed.EncryptedKey,
		IV:            sealed.IV,
	})
	require.NoError(t, err)
	return &httpclient.Response{StatusCode: 200, Body: body}
}

func TestExecuteMandateSuccess(t *testing.T) {
	transport := &fakeTransport{}
	gw, env := newTestClient(t, transport)
	transport.resp = sealedResponse(t, env, map[string]string{
		"success":        "true",
		"response":       "92",
		"message":        "Transaction Successful",
		"merchantTranId": "TXN-1",
		"BankRRN":        "102231234567",
		"UMN":            "abc123@upi",
	})

	result, err := gw.ExecuteMandate(context.Background(), ExecuteMandateRequest{
		MerchantTranID: "TXN-1",
		UMN:            "abc123@upi",
		SequenceNumber: 3,
		Amount:         decimal.RequireFromString("499.00"),
		PayerVA:        "payer@upi",
	})
	require.NoError(t, err)
	require.Equal(t, "102231234567", result.BankReferenceID)
	require.Equal(t, "abc123@upi", result.UMN)
	require.Equal(t, "92", result.ResponseCode)

	require.Equal(t, "https://bank.example.com/api/v1/ExecuteMandate", transport.lastReq.URL)
	require.Equal(t, "test-key", transport.lastReq.Headers["apikey"])

	var outer requestEnvelope
	require.NoError(t, json.Unmarshal(transport.lastReq.Body, &outer))
	require.Equal(t, "TXN-1", outer.RequestID)
	require.Equal(t, ServiceExecuteMandate, outer.Service)

	plaintext, err := env.Decrypt(outer.EncryptedData, outer.EncryptedKey, outer.IV)
	require.NoError(t, err)
	var payload map[string]string
	require.NoError(t, json.Unmarshal(plaintext, &payload))
	require.Equal(t, "3", payload["seqNo"])
	require.Equal(t, "499.00", payload["amount"])
	require.Equal(t, "M0001", payload["merchantId"])
}

func TestCreateMandateBusinessRejection(t *testing.T) {
	transport := &fakeTransport{}
	gw, env := newTestClient(t, transport)
	transport.resp = sealedResponse(t, env, map[string]string{
		"success":  "false",
		"response": "5009",
		"message":  "Mandate not permitted for payer",
	})

	_, err := gw.CreateMandate(context.Background(), CreateMandateRequest{
		MerchantTranID: "TXN-2",
		Amount:         decimal.RequireFromString("100.00"),
		PayerVA:        "payer@upi",
	})
	var bizErr *BusinessError
	require.ErrorAs(t, err, &bizErr)
	require.Equal(t, "5009", bizErr.Code)
}

func TestSendNotificationCleartextRejection(t *testing.T) {
	transport := &fakeTransport{
		resp: &httpclient.Response{
			StatusCode: 200,
			Body:       []byte(`{"success":"false","response":"401","message":"invalid api key"}`),
		},
	}
	gw, _ := newTestClient(t, transport)

	_, err := gw.SendNotification(context.Background(), NotifyRequest{
		MerchantTranID: "TXN-3",
		Amount:         decimal.RequireFromString("100.00"),
	})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
}

func TestTransportFailureIsAPIError(t *testing.T) {
	transport := &fakeTransport{err: errors.New("dial timeout")}
	gw, _ := newTestClient(t, transport)

	_, err := gw.ExecuteMandate(context.Background(), ExecuteMandateRequest{
		MerchantTranID: "TXN-4",
		Amount:         decimal.RequireFromString("100.00"),
	})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.ErrorContains(t, err, "dial timeout")
}

func TestStringBooleanParsedCaseInsensitively(t *testing.T) {
	transport := &fakeTransport{}
	gw, env := newTestClient(t, transport)
	transport.resp = sealedResponse(t, env, map[string]string{
		"success":  "TRUE",
		"response": "92",
		"message":  "ok",
	})

	_, err := gw.ExecuteMandate(context.Background(), ExecuteMandateRequest{
		MerchantTranID: "TXN-5",
		Amount:         decimal.RequireFromString("10.00"),
	})
	require.NoError(t, err)
}
