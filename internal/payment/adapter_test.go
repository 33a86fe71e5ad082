package payment

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	intent     Intent
	intentErr  error
	verifyErr  error
	intentReqs []IntentRequest
	verifyReqs []VerifyRequest
}

func (f *fakeBackend) CreateIntent(_ context.Context, req IntentRequest) (Intent, error) {
	f.intentReqs = append(f.intentReqs, req)
	if f.intentErr != nil {
		return Intent{}, f.intentErr
	}
	return f.intent, nil
}

func (f *fakeBackend) Verify(_ context.Context, req VerifyRequest) error {
	f.verifyReqs = append(f.verifyReqs, req)
	return f.verifyErr
}

// countingHost compte acquisitions et libérations effectives.
type countingHost struct {
	inner    *LocalHost
	acquired int
	released int
}

func newCountingHost() *countingHost { return &countingHost{inner: NewLocalHost()} }

func (h *countingHost) Acquire(ctx context.Context, key string) (Release, error) {
	release, err := h.inner.Acquire(ctx, key)
	if err != nil {
		return nil, err
	}
	h.acquired++
	return once(func() {
		h.released++
		release()
	}), nil
}

type scriptedWidget struct {
	result   WidgetResult
	err      error
	sessions []WidgetSession
}

func (w *scriptedWidget) Open(_ context.Context, s WidgetSession) (WidgetResult, error) {
	w.sessions = append(w.sessions, s)
	return w.result, w.err
}

type failingProbe struct{ err error }

func (p failingProbe) Check(context.Context) error { return p.err }

func successResult() WidgetResult {
	return WidgetResult{Outcome: OutcomeSuccess, GatewayOrderID: "order_1", PaymentID: "pay_1", Signature: "sig"}
}

func newRequest() Request {
	return Request{IdentityID: "user-1", Amount: 300000, Currency: "INR", Receipt: "ORD-1"}
}

func TestPay_Success(t *testing.T) {
	backend := &fakeBackend{intent: Intent{ID: "order_1", Amount: 300000, Currency: "INR"}}
	host := newCountingHost()
	widget := &scriptedWidget{result: successResult()}
	adapter := NewAdapter(backend, host, nil, "rzp_test")

	conf, err := adapter.Pay(context.Background(), newRequest(), widget)
	require.NoError(t, err)

	assert.Equal(t, "pay_1", conf.PaymentID)
	assert.Equal(t, int64(300000), conf.Amount)
	require.Len(t, backend.intentReqs, 1)
	assert.Equal(t, int64(300000), backend.intentReqs[0].Amount)
	assert.Equal(t, "ORD-1", backend.intentReqs[0].Receipt)
	require.Len(t, backend.verifyReqs, 1)
	assert.Equal(t, VerifyRequest{OrderID: "order_1", PaymentID: "pay_1", Signature: "sig"}, backend.verifyReqs[0])
	require.Len(t, widget.sessions, 1)
	assert.Equal(t, "rzp_test", widget.sessions[0].KeyID)
	assert.Equal(t, 1, host.acquired)
	assert.Equal(t, 1, host.released)
}

func TestPay_ReleasesHostOnEveryOutcome(t *testing.T) {
	tests := []struct {
		name      string
		widget    *scriptedWidget
		verifyErr error
		check     func(t *testing.T, err error)
	}{
		{
			name:   "dismissed",
			widget: &scriptedWidget{result: WidgetResult{Outcome: OutcomeDismissed}},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrCancelledByUser)
			},
		},
		{
			name:   "failed",
			widget: &scriptedWidget{result: WidgetResult{Outcome: OutcomeFailed, ErrorCode: "BAD_REQUEST_ERROR", ErrorReason: "card declined"}},
			check: func(t *testing.T, err error) {
				var pf *PaymentFailedError
				require.ErrorAs(t, err, &pf)
				assert.Equal(t, "card declined", pf.Reason)
			},
		},
		{
			name:      "verification rejected",
			widget:    &scriptedWidget{result: successResult()},
			verifyErr: errInvalidSignature,
			check: func(t *testing.T, err error) {
				var ve *VerificationError
				require.ErrorAs(t, err, &ve)
				assert.Equal(t, "pay_1", ve.PaymentID)
				assert.Contains(t, err.Error(), "pay_1")

				var pf *PaymentFailedError
				assert.False(t, errors.As(err, &pf))
			},
		},
		{
			name:   "widget error",
			widget: &scriptedWidget{err: context.Canceled},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, context.Canceled)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &fakeBackend{intent: Intent{ID: "order_1", Amount: 300000}, verifyErr: tt.verifyErr}
			host := newCountingHost()

			_, err := NewAdapter(backend, host, nil, "").Pay(context.Background(), newRequest(), tt.widget)
			require.Error(t, err)
			tt.check(t, err)
			assert.Equal(t, 1, host.acquired)
			assert.Equal(t, 1, host.released)

			// Le verrou est bien rendu : un nouveau paiement peut s'ouvrir
			release, err := host.Acquire(context.Background(), "user-1")
			require.NoError(t, err)
			release()
		})
	}
}

func TestPay_VerificationGuards(t *testing.T) {
	tests := []struct {
		name   string
		result WidgetResult
	}{
		{"foreign order id", WidgetResult{Outcome: OutcomeSuccess, GatewayOrderID: "order_other", PaymentID: "pay_1", Signature: "sig"}},
		{"missing signature", WidgetResult{Outcome: OutcomeSuccess, GatewayOrderID: "order_1", PaymentID: "pay_1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &fakeBackend{intent: Intent{ID: "order_1"}}

			_, err := NewAdapter(backend, newCountingHost(), nil, "").Pay(context.Background(), newRequest(), &scriptedWidget{result: tt.result})
			var ve *VerificationError
			assert.ErrorAs(t, err, &ve)
			assert.Empty(t, backend.verifyReqs)
		})
	}
}

func TestPay_GatewayUnavailable(t *testing.T) {
	backend := &fakeBackend{}
	host := newCountingHost()
	widget := &scriptedWidget{}

	_, err := NewAdapter(backend, host, failingProbe{err: errors.New("dns")}, "").Pay(context.Background(), newRequest(), widget)
	assert.ErrorIs(t, err, ErrGatewayUnavailable)
	assert.Empty(t, backend.intentReqs)
	assert.Zero(t, host.acquired)
}

func TestPay_IntentCreationFailure(t *testing.T) {
	tests := []struct {
		name    string
		backend *fakeBackend
	}{
		{"backend error", &fakeBackend{intentErr: &IntentCreationError{Status: 500, Err: errors.New("boom")}}},
		{"plain error", &fakeBackend{intentErr: errors.New("network")}},
		{"amount drift", &fakeBackend{intent: Intent{ID: "order_1", Amount: 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host := newCountingHost()
			widget := &scriptedWidget{}

			_, err := NewAdapter(tt.backend, host, nil, "").Pay(context.Background(), newRequest(), widget)
			var ice *IntentCreationError
			assert.ErrorAs(t, err, &ice)
			assert.Empty(t, widget.sessions)
			assert.Zero(t, host.acquired)
		})
	}
}

func TestPay_HostBusy(t *testing.T) {
	host := newCountingHost()
	release, err := host.Acquire(context.Background(), "user-1")
	require.NoError(t, err)
	defer release()

	widget := &scriptedWidget{result: successResult()}
	_, err = NewAdapter(&fakeBackend{intent: Intent{ID: "order_1"}}, host, nil, "").Pay(context.Background(), newRequest(), widget)
	assert.ErrorIs(t, err, ErrHostBusy)
	assert.Empty(t, widget.sessions)
}
