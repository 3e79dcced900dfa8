package phoenixd

import (
	"context"
	"time"
)

// DescriptionMaxLength is the longest plaintext invoice description phoenixd
// accepts.
const DescriptionMaxLength = 128

// Invoicer issues invoices and reports on settled payments. Client talks to
// a phoenixd node, MockClient serves fixtures.
type Invoicer interface {
	CreateInvoice(ctx context.Context, params CreateInvoiceParams) (CreateInvoiceResponse, error)
	IncomingPayment(ctx context.Context, paymentHash string) (IncomingPayment, error)
}

// CreateInvoiceParams carries exactly one of Description and
// DescriptionHash.
type CreateInvoiceParams struct {
	AmountSat       int64
	Description     string
	DescriptionHash string
	ExternalID      string
}

type CreateInvoiceResponse struct {
	AmountSat   int64  `json:"amountSat"`
	PaymentHash string `json:"paymentHash"`
	Serialized  string `json:"serialized"`
}

type IncomingPayment struct {
	PaymentHash string `json:"paymentHash"`
	Preimage    string `json:"preimage"`
	ExternalID  string `json:"externalId,omitempty"`
	Description string `json:"description,omitempty"`
	Invoice     string `json:"invoice"`
	IsPaid      bool   `json:"isPaid"`
	ReceivedSat int64  `json:"receivedSat"`
	Fees        int64  `json:"fees"`
	// unix milliseconds, as phoenixd reports them
	CompletedAt int64 `json:"completedAt,omitempty"`
	CreatedAt   int64 `json:"createdAt"`
}

func (p IncomingPayment) CompletedTime() time.Time {
	return time.UnixMilli(p.CompletedAt)
}

func (p IncomingPayment) CreatedTime() time.Time {
	return time.UnixMilli(p.CreatedAt)
}

const PaymentReceived = "payment_received"

// WebhookEvent is the body phoenixd posts to its configured webhook url.
type WebhookEvent struct {
	Type        string `json:"type"`
	AmountSat   int64  `json:"amountSat"`
	PaymentHash string `json:"paymentHash"`
	ExternalID  string `json:"externalId,omitempty"`
}

// Error is a non-2xx answer from phoenixd.
type Error struct {
	Status  int
	Message string
}

func (err Error) Error() string {
	return err.Message
}
