// Package fetch provides chain-specific clients that query a single RPC or REST endpoint per call.
// Endpoint selection and fallback live in the fallback package; every method here takes the
// endpoint URL it should talk to.
package fetch

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/yourorg/multichain-pay/internal/fallback"
)

// DefaultTimeout bounds a single upstream round trip
const DefaultTimeout = 10 * time.Second

// newRetryClient creates a new HTTP client with retry capabilities.
// Server errors and transport failures are retried against the same endpoint; rate limited
// or forbidden responses are handed straight back so the caller can move on to another one.
func newRetryClient(timeout time.Duration) *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.RetryMax = 2
	c.RetryWaitMin = 250 * time.Millisecond
	c.RetryWaitMax = 2 * time.Second
	c.HTTPClient.Timeout = timeout
	c.CheckRetry = checkRetry
	c.ErrorHandler = retryablehttp.PassthroughErrorHandler
	c.Logger = nil
	return c
}

// checkRetry never retries 429 or 403; everything else follows the library default
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if resp != nil && isEndpointRefusal(resp.StatusCode) {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

func isEndpointRefusal(status int) bool {
	return status == http.StatusTooManyRequests || status == http.StatusForbidden
}

// StandardClient converts a retryablehttp.Client to a standard http.Client
func StandardClient(retryClient *retryablehttp.Client) *http.Client {
	return retryClient.StandardClient()
}

// statusError turns a non-2xx HTTP status into a coded error
func statusError(resp *http.Response) error {
	return fallback.NewRPCError(resp.StatusCode, "%s", resp.Status)
}

// isContextError reports whether err came from the caller giving up
func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
