package intasend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kat-co/vala"
	"github.com/nyaruka/phonenumbers"
	"github.com/pkg/errors"
	"github.com/sendgrid/rest"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/cbc-edu/eduplatform/core"
	"github.com/cbc-edu/eduplatform/core/payment"
)

const (
	DefaultBaseURL = "https://sandbox.intasend.com/api/v1"
	DefaultTimeout = 30 * time.Second

	publicKeyHeader = "X-IntaSend-Public-API-Key"
	phoneRegion     = "KE"
)

// Client talks to the IntaSend checkout API. Each call is a single request: no retries.
type Client struct {
	baseURL   string
	publicKey string
	rest      *rest.Client
	logger    core.Logger
}

var _ payment.Gateway = (*Client)(nil)

type Options struct {
	BaseURL   string
	PublicKey string
	Timeout   time.Duration
}

func NewClient(opts Options, logger core.Logger) (*Client, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	err := vala.BeginValidation().Validate(
		vala.IsNotNil(logger, "logger"),
		vala.StringNotEmpty(opts.BaseURL, "opts.BaseURL"),
	).Check()
	if err != nil {
		return nil, err
	}
	if _, err = url.ParseRequestURI(opts.BaseURL); err != nil {
		return nil, errors.Wrap(err, "parsing base URL")
	}

	return &Client{
		baseURL:   strings.TrimSuffix(opts.BaseURL, "/"),
		publicKey: opts.PublicKey,
		rest: &rest.Client{HTTPClient: &http.Client{
			Timeout:   opts.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}},
		logger: logger,
	}, nil
}

// NewClientFromConfig builds a Client out of the IntaSend section of conf.
func NewClientFromConfig(conf *core.Config, logger core.Logger) (*Client, error) {
	return NewClient(Options{
		BaseURL:   conf.IntaSend.BaseURL,
		PublicKey: conf.IntaSend.PublicKey,
		Timeout:   conf.IntaSend.Timeout,
	}, logger)
}

type checkoutBody struct {
	payment.CheckoutRequest
	Method   string `json:"method"`
	Provider string `json:"provider"`
}

// InitiatePayment creates an M-PESA checkout.
func (c *Client) InitiatePayment(ctx context.Context, req payment.CheckoutRequest) (payment.Checkout, error) {
	req.PhoneNumber = NormalizePhone(req.PhoneNumber)
	data, err := json.Marshal(checkoutBody{
		CheckoutRequest: req,
		Method:          payment.MethodMPesa,
		Provider:        payment.MethodMPesa,
	})
	if err != nil {
		return payment.Checkout{}, errors.Wrap(err, "encoding checkout request")
	}

	res, err := c.send(ctx, rest.Post, "/checkout/", data)
	if err != nil {
		c.logger.Error("IntaSend payment error", err)
		return payment.Checkout{}, errors.Wrap(err, "posting checkout")
	}
	if !isSuccess(res.StatusCode) {
		err := newGatewayError("Payment initiation", res)
		c.logger.Error("IntaSend payment error", err)
		return payment.Checkout{}, err
	}

	var co payment.Checkout
	if err = json.Unmarshal([]byte(res.Body), &co); err != nil {
		return payment.Checkout{}, errors.Wrap(err, "decoding checkout")
	}
	return co, nil
}

// CheckPaymentStatus fetches the checkout as is. The invoice state is extracted when the payload carries one.
func (c *Client) CheckPaymentStatus(ctx context.Context, checkoutID string) (payment.CheckoutStatus, error) {
	res, err := c.send(ctx, rest.Get, "/checkout/"+url.PathEscape(checkoutID)+"/", nil)
	if err != nil {
		c.logger.Error("Payment status check error", err)
		return payment.CheckoutStatus{}, errors.Wrap(err, "getting checkout")
	}
	if !isSuccess(res.StatusCode) {
		err := newGatewayError("Status check", res)
		c.logger.Error("Payment status check error", err)
		return payment.CheckoutStatus{}, err
	}

	status := payment.CheckoutStatus{Raw: json.RawMessage(res.Body)}
	var payload struct {
		State   string `json:"state"`
		Invoice *struct {
			State string `json:"state"`
		} `json:"invoice"`
	}
	if err = json.Unmarshal([]byte(res.Body), &payload); err == nil {
		status.State = payload.State
		if payload.Invoice != nil && payload.Invoice.State != "" {
			status.State = payload.Invoice.State
		}
	}
	return status, nil
}

func (c *Client) send(ctx context.Context, method rest.Method, path string, body []byte) (*rest.Response, error) {
	req := rest.Request{
		Method:  method,
		BaseURL: c.baseURL + path,
		Headers: map[string]string{
			"Accept":        "application/json",
			publicKeyHeader: c.publicKey,
		},
		Body: body,
	}
	if body != nil {
		req.Headers["Content-Type"] = "application/json"
	}
	return c.rest.SendWithContext(ctx, req)
}

func isSuccess(code int) bool {
	return code >= http.StatusOK && code < http.StatusMultipleChoices
}

func newGatewayError(op string, res *rest.Response) *payment.GatewayError {
	return &payment.GatewayError{
		Op:         op,
		StatusCode: res.StatusCode,
		StatusText: http.StatusText(res.StatusCode),
		Body:       res.Body,
	}
}

// NormalizePhone turns a Kenyan phone number into the MSISDN form M-PESA expects (2547XXXXXXXX).
// Numbers that cannot be parsed are returned unchanged.
func NormalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return phone
	}
	num, err := phonenumbers.Parse(phone, phoneRegion)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return phone
	}
	return strings.TrimPrefix(phonenumbers.Format(num, phonenumbers.E164), "+")
}
