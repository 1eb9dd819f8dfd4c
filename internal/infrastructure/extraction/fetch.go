package extraction

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sourcing/backend/internal/domain/sourcing"
)

// sleepFunc waits for d or until ctx is done
type sleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// getHTML issues a GET and returns the body. Network failures and
// non-2xx responses become *sourcing.TransportError.
func getHTML(ctx context.Context, client *http.Client, op, target string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("extraction: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := client.Do(req)
	if err != nil {
		return "", &sourcing.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return "", &sourcing.TransportError{Op: op, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &sourcing.TransportError{Op: op, StatusCode: resp.StatusCode}
	}
	return string(body), nil
}
