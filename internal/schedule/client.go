// Package schedule предоставляет клиент для внешней системы расписания студии.
package schedule

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

const (
	requestTimeout = 5 * time.Second
	retryMax       = 2
)

// Client инкапсулирует HTTP-взаимодействие с системой расписания.
type Client struct {
	baseURL    string
	httpClient *retryablehttp.Client
}

// BookingState описывает ответ системы расписания по одному занятию.
type BookingState struct {
	Booking string `json:"booking"`
	Status  string `json:"status"`
}

// NewClient создаёт HTTP-клиент для системы расписания по указанному адресу.
// Сетевые ошибки и ответы 5xx повторяются с экспоненциальной задержкой, 429 отдаётся вызывающему.
func NewClient(baseURL string) *Client {
	rc := retryablehttp.NewClient()
	rc.HTTPClient.Timeout = requestTimeout
	rc.RetryMax = retryMax
	rc.RetryWaitMin = 100 * time.Millisecond
	rc.RetryWaitMax = time.Second
	rc.Logger = nil
	rc.CheckRetry = checkRetry
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: rc,
	}
}

func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

// GetBookingState запрашивает фактический статус занятия.
// При ответе 429 возвращается время, через которое можно повторить запрос.
func (c *Client) GetBookingState(ctx context.Context, bookingID string) (*BookingState, int, time.Duration, error) {
	if c == nil || c.baseURL == "" {
		return nil, 0, 0, fmt.Errorf("schedule client not configured")
	}

	base := c.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	endpoint := fmt.Sprintf("%s/api/bookings/%s", base, url.PathEscape(bookingID))

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		retryAfter := time.Duration(0)
		if v := resp.Header.Get("Retry-After"); v != "" {
			if seconds, parseErr := strconv.Atoi(v); parseErr == nil {
				retryAfter = time.Duration(seconds) * time.Second
			}
		}
		return nil, resp.StatusCode, retryAfter, nil
	case http.StatusNoContent, http.StatusNotFound:
		return nil, resp.StatusCode, 0, nil
	case http.StatusOK:
	default:
		return nil, resp.StatusCode, 0, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var result BookingState
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, resp.StatusCode, 0, fmt.Errorf("decode response: %w", err)
	}

	return &result, resp.StatusCode, 0, nil
}
