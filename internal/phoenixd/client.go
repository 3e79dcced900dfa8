package phoenixd

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/imroc/req"
	zerrors "github.com/massmux/phoenixd-lnurl/internal/errors"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

type Client struct {
	url    string
	header req.Header
	r      *req.Req
	logger log.FieldLogger
}

type Option func(c *Client)

func WithLogger(logger log.FieldLogger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.r.SetClient(client)
	}
}

// NewClient returns a phoenixd api client. phoenixd uses http basic auth
// with an empty user name and the node's http password.
func NewClient(url, password string, opts ...Option) *Client {
	c := &Client{
		url: strings.TrimRight(url, "/"),
		header: req.Header{
			"Accept":        "application/json",
			"Authorization": "Basic " + base64.StdEncoding.EncodeToString([]byte(":"+password)),
		},
		r:      req.New(),
		logger: log.StandardLogger(),
	}
	c.r.SetTimeout(30 * time.Second)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateInvoice creates a bolt11 invoice, tagged with the given external id.
func (c *Client) CreateInvoice(ctx context.Context, params CreateInvoiceParams) (invoice CreateInvoiceResponse, err error) {
	if err = params.Validate(); err != nil {
		return
	}
	form := req.Param{
		"amountSat": strconv.FormatInt(params.AmountSat, 10),
	}
	if params.Description != "" {
		form["description"] = params.Description
	} else {
		form["descriptionHash"] = params.DescriptionHash
	}
	if params.ExternalID != "" {
		form["externalId"] = params.ExternalID
	}
	resp, err := c.r.Post(c.url+"/createinvoice", ctx, c.header, form)
	if err != nil {
		err = zerrors.Wrap(zerrors.BackendFailureError, "could not create invoice", err)
		return
	}
	if err = checkResponse(resp); err != nil {
		err = zerrors.Wrap(zerrors.BackendFailureError, "could not create invoice", err)
		return
	}
	if err = resp.ToJSON(&invoice); err != nil {
		err = zerrors.Wrap(zerrors.BackendFailureError, "could not create invoice", err)
		return
	}
	c.logger.WithField("externalId", params.ExternalID).
		Infof("[phoenixd] Created invoice %s...", short(invoice.Serialized))
	c.logger.Debugf("[phoenixd] Invoice: %+v", invoice)
	return
}

// IncomingPayment looks up a received payment by its payment hash.
func (c *Client) IncomingPayment(ctx context.Context, paymentHash string) (payment IncomingPayment, err error) {
	resp, err := c.r.Get(c.url+"/payments/incoming/"+paymentHash, ctx, c.header)
	if err != nil {
		err = zerrors.Wrap(zerrors.BackendFailureError, "could not fetch payment", err)
		return
	}
	if err = checkResponse(resp); err != nil {
		err = zerrors.Wrap(zerrors.BackendFailureError, "could not fetch payment", err)
		return
	}
	if err = resp.ToJSON(&payment); err != nil {
		err = zerrors.Wrap(zerrors.BackendFailureError, "could not fetch payment", err)
	}
	return
}

// checkResponse turns non-2xx answers into an Error. phoenixd answers
// with plain text most of the time and JSON for a few routes.
func checkResponse(resp *req.Resp) error {
	status := resp.Response().StatusCode
	if status < 300 {
		return nil
	}
	body := resp.Bytes()
	message := strings.TrimSpace(string(body))
	if gjson.ValidBytes(body) {
		for _, key := range []string{"message", "error", "reason"} {
			if v := gjson.GetBytes(body, key); v.Exists() {
				message = v.String()
				break
			}
		}
	}
	if message == "" {
		message = http.StatusText(status)
	}
	return Error{Status: status, Message: fmt.Sprintf("phoenixd returned %d: %s", status, message)}
}

func short(invoice string) string {
	if len(invoice) > 12 {
		return invoice[:12]
	}
	return invoice
}
