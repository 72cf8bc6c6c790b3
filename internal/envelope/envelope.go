package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
)

const (
	sessionKeySize = 16
	ivSize         = aes.BlockSize
)

// Sealed is the hybrid-encrypted wire form required by the bank: an RSA-wrapped
// AES session key, the CBC IV and the AES ciphertext, all base64.
type Sealed struct {
	EncryptedKey  string `json:"encryptedKey"`
	IV            string `json:"iv"`
	EncryptedData string `json:"encryptedData"`
}

// Envelope seals outbound payloads with the bank's RSA public key and opens
// inbound ones with the merchant's own private key. The key pair is loaded once
// at startup and shared across tenants.
type Envelope struct {
	bankPublicKey *rsa.PublicKey
	privateKey    *rsa.PrivateKey
}

func New(bankPublicKey *rsa.PublicKey, privateKey *rsa.PrivateKey) *Envelope {
	return &Envelope{bankPublicKey: bankPublicKey, privateKey: privateKey}
}

// Encrypt JSON-serializes payload and seals it under a fresh AES-128 session
// key and IV. Any underlying failure is a fatal key-material fault.
func (e *Envelope) Encrypt(payload any) (*Sealed, error) {
	plaintext, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal payload: %v", ErrEncryption, err)
	}

	sessionKey := make([]byte, sessionKeySize)
	if _, err := io.ReadFull(rand.Reader, sessionKey); err != nil {
		return nil, fmt.Errorf("%w: generate session key: %v", ErrEncryption, err)
	}
	iv := make([]byte, ivSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, fmt.Errorf("%w: generate iv: %v", ErrEncryption, err)
	}

	// The bank protocol mandates PKCS#1 v1.5, not OAEP.
	wrappedKey, err := rsa.EncryptPKCS1v15(rand.Reader, e.bankPublicKey, sessionKey)
	if err != nil {
		return nil, fmt.Errorf("%w: wrap session key: %v", ErrEncryption, err)
	}

	block, err := aes.NewCipher(sessionKey)
	if err != nil {
		return nil, fmt.Errorf("%w: aes cipher: %v", ErrEncryption, err)
	}
	padded := pkcs7Pad(plaintext, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return &Sealed{
		EncryptedKey:  base64.StdEncoding.EncodeToString(wrappedKey),
		IV:            base64.StdEncoding.EncodeToString(iv),
		EncryptedData: base64.StdEncoding.EncodeToString(ciphertext),
	}, nil
}

// Decrypt opens a sealed envelope and returns the JSON plaintext. An empty iv
// selects the embedded-IV wire variant: the first 16 bytes of the ciphertext
// are the IV and are stripped before AES decryption.
func (e *Envelope) Decrypt(encryptedData, encryptedKey, iv string) (json.RawMessage, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(encryptedData)
	if err != nil {
		return nil, fmt.Errorf("%w: decode data: %v", ErrDecryption, err)
	}
	wrappedKey, err := base64.StdEncoding.DecodeString(encryptedKey)
	if err != nil {
		return nil, fmt.Errorf("%w: decode key: %v", ErrDecryption, err)
	}

	sessionKey, err := rsa.DecryptPKCS1v15(nil, e.privateKey, wrappedKey)
	if err != nil {
		return nil, fmt.Errorf("%w: unwrap session key: %v", ErrDecryption, err)
	}
	if len(sessionKey) != sessionKeySize {
		return nil, fmt.Errorf("%w: session key is %d bytes, want %d", ErrDecryption, len(sessionKey), sessionKeySize)
	}

	var ivBytes []byte
	if iv == "" {
		if len(ciphertext) < ivSize {
			return nil, fmt.Errorf("%w: ciphertext shorter than embedded iv", ErrDecryption)
		}
		ivBytes, ciphertext = ciphertext[:ivSize], ciphertext[ivSize:]
	} else {
		ivBytes, err = base64.StdEncoding.DecodeString(iv)
		if err != nil {
			return nil, fmt.Errorf("%w: decode iv: %v", ErrDecryption, err)
		}
		if len(ivBytes) != ivSize {
			return nil, fmt.Errorf("%w: iv is %d bytes, want %d", ErrDecryption, len(ivBytes), ivSize)
		}
	}

	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext not block aligned", ErrDecryption)
	}

	block, err := aes.NewCipher(sessionKey)
	if err != nil {
		return nil, fmt.Errorf("%w: aes cipher: %v", ErrDecryption, err)
	}
	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, ivBytes).CryptBlocks(plaintext, ciphertext)

	plaintext, err = pkcs7Unpad(plaintext, aes.BlockSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryption, err)
	}
	if !json.Valid(plaintext) {
		return nil, fmt.Errorf("%w: plaintext is not valid JSON", ErrDecryption)
	}

	return json.RawMessage(plaintext), nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	pad := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+pad)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(pad)
	}
	return padded
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, fmt.Errorf("invalid padded length %d", len(data))
	}
	pad := int(data[len(data)-1])
	if pad == 0 || pad > blockSize || pad > len(data) {
		return nil, fmt.Errorf("invalid padding byte %d", pad)
	}
	for _, b := range data[len(data)-pad:] {
		if int(b) != pad {
			return nil, fmt.Errorf("inconsistent padding")
		}
	}
	return data[:len(data)-pad], nil
}
