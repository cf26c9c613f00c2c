package tracker

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"tableorder/internal/apperr"
	"tableorder/internal/domain"
)

// HTTPFetcher polls the tracking service for an order's current status.
type HTTPFetcher struct {
	base   string
	client *http.Client
}

func NewHTTPFetcher(base string) *HTTPFetcher {
	return &HTTPFetcher{
		base:   base,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (f *HTTPFetcher) FetchStatus(ctx context.Context, orderNumber string) (domain.OrderStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.base+"/orders/"+orderNumber, nil)
	if err != nil {
		return "", err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", apperr.Wrap(apperr.CodeNetworkFailure, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", apperr.New(apperr.CodeOrderNotFound)
	case resp.StatusCode != http.StatusOK:
		return "", apperr.Wrap(apperr.CodeServerInternal, fmt.Errorf("tracking service returned %d", resp.StatusCode))
	}

	var body struct {
		Success bool `json:"success"`
		Data    struct {
			Status domain.OrderStatus `json:"status"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", apperr.Wrap(apperr.CodeServerInternal, err)
	}
	if !body.Success {
		return "", apperr.New(apperr.CodeServerInternal)
	}
	return body.Data.Status, nil
}
