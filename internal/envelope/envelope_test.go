package envelope

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestEnvelope(t *testing.T) *Envelope {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return New(&key.PublicKey, key)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	env := newTestEnvelope(t)

	payload := map[string]any{
		"merchantTranId": "TXN123",
		"amount":         "500.00",
		"payerVa":        "payer@upi",
		"nested":         map[string]any{"a": 1.0, "b": []any{"x", "y"}},
	}

	sealed, err := env.Encrypt(payload)
	require.NoError(t, err)
	require.NotEmpty(t, sealed.EncryptedKey)
	require.NotEmpty(t, sealed.IV)
	require.NotEmpty(t, sealed.EncryptedData)

	plaintext, err := env.Decrypt(sealed.EncryptedData, sealed.EncryptedKey, sealed.IV)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(plaintext, &got))
	require.Equal(t, "TXN123", got["merchantTranId"])
	require.Equal(t, "500.00", got["amount"])
	require.Equal(t, payload["nested"], got["nested"])
}

func TestDecryptRejectsWrongSessionKeyLength(t *testing.T) {
	env := newTestEnvelope(t)

	// Wrap a 24-byte key; the protocol requires exactly 16.
	longKey := make([]byte, 24)
	wrapped, err := rsa.EncryptPKCS1v15(rand.Reader, &env.privateKey.PublicKey, longKey)
	require.NoError(t, err)

	sealed, err := env.Encrypt(map[string]string{"ok": "1"})
	require.NoError(t, err)

	_, err = env.Decrypt(sealed.EncryptedData, base64.StdEncoding.EncodeToString(wrapped), sealed.IV)
	require.ErrorIs(t, err, ErrDecryption)
}

func TestDecryptEmbeddedIVFallback(t *testing.T) {
	env := newTestEnvelope(t)

	sealed, err := env.Encrypt(map[string]string{"hello": "world"})
	require.NoError(t, err)

	iv, err := base64.StdEncoding.DecodeString(sealed.IV)
	require.NoError(t, err)
	data, err := base64.StdEncoding.DecodeString(sealed.EncryptedData)
	require.NoError(t, err)

	// Same ciphertext with the IV prepended, decrypted without an explicit IV.
	embedded := base64.StdEncoding.EncodeToString(append(append([]byte{}, iv...), data...))

	explicit, err := env.Decrypt(sealed.EncryptedData, sealed.EncryptedKey, sealed.IV)
	require.NoError(t, err)
	fallback, err := env.Decrypt(embedded, sealed.EncryptedKey, "")
	require.NoError(t, err)
	require.JSONEq(t, string(explicit), string(fallback))
}

func TestDecryptRejectsNonJSONPlaintext(t *testing.T) {
	env := newTestEnvelope(t)

	sealed, err := env.Encrypt("plain string is valid JSON")
	require.NoError(t, err)
	// Valid JSON string round-trips fine.
	_, err = env.Decrypt(sealed.EncryptedData, sealed.EncryptedKey, sealed.IV)
	require.NoError(t, err)

	// Corrupt a ciphertext block so padding survives but the payload does not.
	data, err := base64.StdEncoding.DecodeString(sealed.EncryptedData)
	require.NoError(t, err)
	data[0] ^= 0xff
	_, err = env.Decrypt(base64.StdEncoding.EncodeToString(data), sealed.EncryptedKey, sealed.IV)
	require.ErrorIs(t, err, ErrDecryption)
}
