package bankgateway

import "fmt"

// APIError is a transport-level failure: the HTTP call failed, timed out, or
// the bank rejected the request before envelope processing and returned a
// cleartext body. Retriable.
type APIError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("bank api error: %v", e.Err)
	}
	return fmt.Sprintf("bank api error: status %d: %s", e.StatusCode, e.Body)
}

func (e *APIError) Unwrap() error { return e.Err }

// BusinessError is a decrypted bank response whose success flag is not "true".
// Carries the bank's response code and description. Retriable per the
// lifecycle controller's policy.
type BusinessError struct {
	Code        string
	Description string
}

func (e *BusinessError) Error() string {
	return fmt.Sprintf("bank rejected request: code=%s desc=%s", e.Code, e.Description)
}
