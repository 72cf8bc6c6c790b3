package httpclient

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"
)

// Request represents an outbound HTTP request.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
}

// Response represents an HTTP response.
type Response struct {
	StatusCode int
	Body       []byte
}

// Client issues bounded-duration HTTP requests. The bank gateway depends on
// this interface so tests can swap the transport.
type Client interface {
	Send(ctx context.Context, req *Request) (*Response, error)
}

type defaultClient struct {
	client *http.Client
}

// New creates a Client with the given request timeout.
func New(timeout time.Duration) Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &defaultClient{
		client: &http.Client{Timeout: timeout},
	}
}

func (c *defaultClient) Send(ctx context.Context, req *Request) (*Response, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, err
	}
	if req.Body != nil {
		httpReq.ContentLength = int64(len(req.Body))
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       respBody,
	}, nil
}
