package forward

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"main/internal/schema"
	"main/pkg/exception"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

const (
	forwardPath           = "/api/order"
	defaultDeliverTimeout = 10 * time.Second
)

// Forwarder delivers a persisted order to its tenant's downstream system.
// Implementations must not block the caller; delivery outcome is observed
// out of band and never reaches the submitting connection.
type Forwarder interface {
	Forward(ctx context.Context, order schema.Order)
}

// Option defines the HTTP forwarder configuration.
type Option struct {
	// Scheme is the downstream URL scheme. Optional; default "https".
	Scheme string
	// Host is the base API host; the tenant is prepended as a subdomain.
	Host string
	// Timeout bounds a single delivery attempt. Optional; default 10s.
	Timeout time.Duration
	// HTTPClient overrides the transport. Optional; default http.Client
	// with Timeout.
	HTTPClient *http.Client
	// OnDone observes the outcome of each attempt. Optional.
	OnDone func(order schema.Order, err error)
}

var _ Forwarder = (*Client)(nil)

// Client is the best-effort HTTP forwarder: one POST per order, no
// retries. Swapping in a retrying strategy means providing another
// Forwarder, not touching the ingestion path.
type Client struct {
	opt    Option
	client *http.Client
}

// New builds an HTTP forwarder.
func New(option Option) *Client {
	if option.Scheme == "" {
		option.Scheme = "https"
	}
	if option.Timeout <= 0 {
		option.Timeout = defaultDeliverTimeout
	}
	client := option.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: option.Timeout}
	}
	return &Client{opt: option, client: client}
}

// Forward launches a single delivery attempt and returns immediately.
func (c *Client) Forward(ctx context.Context, order schema.Order) {
	go func() {
		err := c.deliver(ctx, order)
		switch {
		case err == nil:
			logs.Infof("order %d forwarded to tenant %s", order.ID, order.Tenant)
		default:
			logs.Errorf("order %d forward failed, err: %+v", order.ID, err)
		}
		if c.opt.OnDone != nil {
			c.opt.OnDone(order, err)
		}
	}()
}

func (c *Client) deliver(ctx context.Context, order schema.Order) error {
	if order.Tenant == "" {
		return exception.ErrMissingTenant
	}

	payload, err := json.Marshal(order)
	if err != nil {
		return errors.Wrap(exception.ErrDeliveryRejected, err.Error())
	}

	url := c.endpoint(order.Tenant)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(exception.ErrDeliveryUnreachable, err.Error())
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Wrap(exception.ErrDeliveryUnreachable, err.Error())
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.Wrapf(exception.ErrDeliveryRejected, "status: %d, url: %s", resp.StatusCode, url)
	}
	return nil
}

func (c *Client) endpoint(tenant string) string {
	return c.opt.Scheme + "://" + tenant + "." + c.opt.Host + forwardPath
}
