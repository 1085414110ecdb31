package signaling

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pion/webrtc/v4"

	"github.com/tsonglew/webrtc-stream/internal/util"
)

// Client posts local offers to the answering server and returns its answers.
// It never retries: one offer yields exactly one request.
type Client struct {
	http *resty.Client
}

// NewClient creates a Client for the server at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetRetryCount(0),
	}
}

// Offer sends offer as {"sdp","type"} and decodes the response body as the
// remote description. The status code is not inspected: a body that is not
// a description fails to decode, whatever the status.
func (c *Client) Offer(ctx context.Context, offer webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	res, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(FromSessionDescription(offer)).
		Post(OfferPath)
	if err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("failed to post offer: %w", err)
	}
	util.LogDebug("offer posted, status %s", res.Status())

	var answer Description
	if err := json.Unmarshal(res.Body(), &answer); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("failed to decode answer (HTTP %d): %w", res.StatusCode(), err)
	}
	return answer.SessionDescription()
}
