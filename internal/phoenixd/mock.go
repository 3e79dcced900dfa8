package phoenixd

import (
	"context"
	"sync"
	"time"

	zerrors "github.com/massmux/phoenixd-lnurl/internal/errors"
	log "github.com/sirupsen/logrus"
)

const (
	MockPaymentHash = "30cf1dfc68ab7c5cd1c79c060d26d001e361e42b19f8cc109178d49833259e92"
	MockInvoice     = "lntb1u1pnquurmpp5xr83mlrg4d79e5w8nsrq6fksq83kreptr8uvcyy3" +
		"0r2fsve9n6fqcqpjsp5ut3l5lvwpwyjcqf508nzdtze65zl2yycm45uee" +
		"elktu3phzv2fsq9q7sqqqqqqqqqqqqqqqqqqqsqqqqqysgqdrytddjyar" +
		"90p69ctmsd3skjm3z9s395ctsypekzar0wd5xjgja93djyar90p69ctmf" +
		"v3jkuarfve5k2u3z9s38xct5daeks6fzt4wsmqz9grzjqwfn3p9278ttz" +
		"zpe0e00uhyxhned3j5d9acqak5emwfpflp8z2cnflcdkeu6euv7gsqqqq" +
		"lgqqqqqeqqjqvyrulmkm8x58s9vahdm3z7jlj00pgl04xhfd0gjlm0e5e" +
		"z7llfg49ra6pl96808deh95ysvmxajhfse4033k2deh58mrgdjj8kz8s6" +
		"gpd82r8j"
)

// MockClient hands out a static testnet invoice and serves payments from
// an in-memory fixture table. Every created invoice is recorded as an unpaid
// payment under MockPaymentHash.
type MockClient struct {
	mu       sync.Mutex
	payments map[string]IncomingPayment
	logger   log.FieldLogger
	// Err, when set, is returned by every call.
	Err error
}

func NewMockClient(logger log.FieldLogger) *MockClient {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &MockClient{payments: make(map[string]IncomingPayment), logger: logger}
}

func (m *MockClient) CreateInvoice(_ context.Context, params CreateInvoiceParams) (CreateInvoiceResponse, error) {
	if err := params.Validate(); err != nil {
		return CreateInvoiceResponse{}, err
	}
	if m.Err != nil {
		return CreateInvoiceResponse{}, zerrors.Wrap(zerrors.BackendFailureError, "could not create invoice", m.Err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments[MockPaymentHash] = IncomingPayment{
		PaymentHash: MockPaymentHash,
		ExternalID:  params.ExternalID,
		Description: params.Description,
		Invoice:     MockInvoice,
		CreatedAt:   time.Now().UnixMilli(),
	}
	m.logger.WithField("externalId", params.ExternalID).
		Infof("[phoenixd] Created invoice %s...", short(MockInvoice))
	return CreateInvoiceResponse{
		AmountSat:   params.AmountSat,
		PaymentHash: MockPaymentHash,
		Serialized:  MockInvoice,
	}, nil
}

func (m *MockClient) IncomingPayment(_ context.Context, paymentHash string) (IncomingPayment, error) {
	if m.Err != nil {
		return IncomingPayment{}, zerrors.Wrap(zerrors.BackendFailureError, "could not fetch payment", m.Err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	payment, ok := m.payments[paymentHash]
	if !ok {
		return IncomingPayment{}, zerrors.Wrap(zerrors.BackendFailureError, "could not fetch payment",
			Error{Status: 404, Message: "payment not found"})
	}
	return payment, nil
}

// AddPayment installs or replaces a fixture payment.
func (m *MockClient) AddPayment(payment IncomingPayment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments[payment.PaymentHash] = payment
}

// Settle marks a recorded payment as paid.
func (m *MockClient) Settle(paymentHash, preimage string, receivedSat int64, completedAt time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	payment, ok := m.payments[paymentHash]
	if !ok {
		return false
	}
	payment.IsPaid = true
	payment.Preimage = preimage
	payment.ReceivedSat = receivedSat
	payment.CompletedAt = completedAt.UnixMilli()
	m.payments[paymentHash] = payment
	return true
}
