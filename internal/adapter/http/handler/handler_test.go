package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"solana-custody-gateway/internal/core/domain"
	"solana-custody-gateway/internal/core/ports"
	"solana-custody-gateway/internal/core/ports/mocks"
	"solana-custody-gateway/pkg/apperror"

	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const (
	testAddress     = "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin"
	testOpToken     = "op-token"
	testHookSecret  = "hook-secret"
	testPaymentUUID = "7f1e3c52-4a8b-4c11-9d5e-2b6f0a9c8d71"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	payments  *mocks.MockPaymentService
	processor *mocks.MockWebhookProcessor
	custody   *mocks.MockKeyCustodyService
	sweeper   *mocks.MockSweepService
	addresses *mocks.MockAddressService
	reporting *mocks.MockReportingService
	auth      *mocks.MockOperatorAuthService
	tokens    *mocks.MockTokenService
	monitor   *mocks.MockPaymentMonitor
	deps      RouterDeps
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctrl := gomock.NewController(t)
	env := &testEnv{
		payments:  mocks.NewMockPaymentService(ctrl),
		processor: mocks.NewMockWebhookProcessor(ctrl),
		custody:   mocks.NewMockKeyCustodyService(ctrl),
		sweeper:   mocks.NewMockSweepService(ctrl),
		addresses: mocks.NewMockAddressService(ctrl),
		reporting: mocks.NewMockReportingService(ctrl),
		auth:      mocks.NewMockOperatorAuthService(ctrl),
		tokens:    mocks.NewMockTokenService(ctrl),
		monitor:   mocks.NewMockPaymentMonitor(ctrl),
	}
	env.tokens.EXPECT().Validate(testOpToken).Return(&ports.TokenClaims{Operator: "alice"}, nil).AnyTimes()
	env.deps = RouterDeps{
		PaymentSvc:    env.payments,
		Processor:     env.processor,
		Custody:       env.custody,
		SweepSvc:      env.sweeper,
		AddressSvc:    env.addresses,
		ReportingSvc:  env.reporting,
		AuthSvc:       env.auth,
		TokenSvc:      env.tokens,
		Monitor:       env.monitor,
		WebhookSecret: testHookSecret,
		Logger:        zerolog.Nop(),
	}
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	SetupRouter(e.deps).ServeHTTP(w, req)
	return w
}

func (e *testEnv) admin(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return e.do(t, method, path, body, map[string]string{"Authorization": "Bearer " + testOpToken})
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data, ok := resp["data"].(map[string]interface{})
	require.True(t, ok, "body: %s", w.Body.String())
	return data
}

func assertErrorCode(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	assert.Equal(t, status, w.Code, w.Body.String())
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, code, resp["error_code"])
}

func testPayment() *domain.Payment {
	return &domain.Payment{
		ID:        uuid.MustParse(testPaymentUUID),
		Amount:    decimal.RequireFromString("0.5"),
		Currency:  domain.NativeCurrency,
		Address:   testAddress,
		Status:    domain.PaymentStatusPending,
		CreatedAt: testNow,
		UpdatedAt: testNow,
	}
}

// --- Payments ---

func TestCreatePayment_Success(t *testing.T) {
	env := newTestEnv(t)
	p := testPayment()
	orderID := "order-1"

	env.payments.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req ports.CreatePaymentRequest) (*domain.Payment, error) {
			assert.Equal(t, "0.5", req.Amount.String())
			assert.Equal(t, "SOL", req.Currency)
			require.NotNil(t, req.OrderID)
			assert.Equal(t, orderID, *req.OrderID)
			require.NotNil(t, req.MerchantID)
			assert.Equal(t, "shop.eu-1", *req.MerchantID)
			assert.JSONEq(t, `{"sku":"A1"}`, string(req.Metadata))
			return p, nil
		})
	env.monitor.EXPECT().Watch(p.ID, testAddress).Return(nil)

	w := env.do(t, http.MethodPost, "/api/v1/payments",
		`{"amount":"0.5","currency":"SOL","order_id":"order-1","merchant_id":"shop.eu-1","metadata":{"sku":"A1"}}`, nil)

	assert.Equal(t, http.StatusCreated, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, testPaymentUUID, data["id"])
	assert.Equal(t, testAddress, data["address"])
	assert.Equal(t, "0.5", data["amount"])
	assert.Equal(t, "pending", data["status"])
}

func TestCreatePayment_NumericAmount(t *testing.T) {
	env := newTestEnv(t)
	env.payments.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req ports.CreatePaymentRequest) (*domain.Payment, error) {
			assert.Equal(t, "0.25", req.Amount.String())
			return testPayment(), nil
		})
	env.monitor.EXPECT().Watch(gomock.Any(), gomock.Any()).Return(nil)

	w := env.do(t, http.MethodPost, "/api/v1/payments", `{"amount":0.25}`, nil)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestCreatePayment_MonitorFailureStillCreated(t *testing.T) {
	env := newTestEnv(t)
	env.payments.EXPECT().Create(gomock.Any(), gomock.Any()).Return(testPayment(), nil)
	env.monitor.EXPECT().Watch(gomock.Any(), gomock.Any()).Return(errors.New("monitor stopped"))

	w := env.do(t, http.MethodPost, "/api/v1/payments", `{"amount":"0.5"}`, nil)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestCreatePayment_NoMonitor(t *testing.T) {
	env := newTestEnv(t)
	env.deps.Monitor = nil
	env.payments.EXPECT().Create(gomock.Any(), gomock.Any()).Return(testPayment(), nil)

	w := env.do(t, http.MethodPost, "/api/v1/payments", `{"amount":"0.5"}`, nil)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestCreatePayment_ValidationError(t *testing.T) {
	env := newTestEnv(t)

	for _, body := range []string{`{}`, `{"amount":"abc"}`, `{"amount":"1","order_id":"bad id"}`,
		`{"amount":"1","merchant_id":"<b>shop</b>"}`, `not json`} {
		w := env.do(t, http.MethodPost, "/api/v1/payments", body, nil)
		assertErrorCode(t, w, http.StatusBadRequest, "PAY_002")
	}
}

func TestCreatePayment_ServiceError(t *testing.T) {
	env := newTestEnv(t)
	env.payments.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil, apperror.ErrUnsupportedCurrency("USDC"))

	w := env.do(t, http.MethodPost, "/api/v1/payments", `{"amount":"1","currency":"USDC"}`, nil)
	assertErrorCode(t, w, http.StatusBadRequest, "PAY_003")
}

func TestGetPayment(t *testing.T) {
	env := newTestEnv(t)
	env.payments.EXPECT().Get(gomock.Any(), uuid.MustParse(testPaymentUUID)).Return(testPayment(), nil)

	w := env.do(t, http.MethodGet, "/api/v1/payments/"+testPaymentUUID, nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, testAddress, decodeData(t, w)["address"])
}

func TestGetPayment_InvalidID(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/api/v1/payments/not-a-uuid", nil, nil)
	assertErrorCode(t, w, http.StatusBadRequest, "PAY_002")
}

func TestGetPayment_NotFound(t *testing.T) {
	env := newTestEnv(t)
	env.payments.EXPECT().Get(gomock.Any(), gomock.Any()).Return(nil, apperror.ErrNotFound("Payment"))

	w := env.do(t, http.MethodGet, "/api/v1/payments/"+testPaymentUUID, nil, nil)
	assertErrorCode(t, w, http.StatusNotFound, "PAY_004")
}

func TestPaymentStatus(t *testing.T) {
	env := newTestEnv(t)
	env.payments.EXPECT().StatusByAddress(gomock.Any(), testAddress).Return(&ports.PaymentStatusView{
		Payment:        testPayment(),
		CurrentBalance: decimal.RequireFromString("0.5"),
		IsPaid:         true,
	}, nil)

	w := env.do(t, http.MethodGet, "/api/v1/payments/status/"+testAddress, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, true, data["is_paid"])
	assert.Equal(t, "0.5", data["current_balance"])
}

func TestPaymentStatus_InvalidAddress(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/api/v1/payments/status/xyz", nil, nil)
	assertErrorCode(t, w, http.StatusBadRequest, "PAY_002")
}

// --- Helius webhook ---

const heliusBody = `[{"signature":"sig1","type":"TRANSFER","timestamp":1767268800,
  "nativeTransfers":[{"fromUserAccount":"payer","toUserAccount":"` + testAddress + `","amount":500000000}]}]`

func TestHeliusWebhook_RejectsBadSecret(t *testing.T) {
	env := newTestEnv(t)
	// Processor must not be reached.

	w := env.do(t, http.MethodPost, "/api/v1/webhooks/helius", heliusBody, map[string]string{"X-Webhook-Secret": "wrong"})
	assertErrorCode(t, w, http.StatusUnauthorized, "SEC_001")
}

func TestHeliusWebhook_Success(t *testing.T) {
	env := newTestEnv(t)
	env.processor.EXPECT().Process(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, events []domain.TransferEvent) (*ports.ProcessResult, error) {
			require.Len(t, events, 1)
			assert.Equal(t, "sig1", events[0].Signature)
			assert.Equal(t, []domain.NativeTransfer{{FromAddress: "payer", ToAddress: testAddress, Lamports: 500_000_000}}, events[0].Transfers)
			return &ports.ProcessResult{Transfers: 1, Completed: 1}, nil
		})

	w := env.do(t, http.MethodPost, "/api/v1/webhooks/helius", heliusBody, map[string]string{"X-Webhook-Secret": testHookSecret})
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, float64(1), data["completed"])
}

func TestHeliusWebhook_InvalidPayload(t *testing.T) {
	env := newTestEnv(t)
	env.deps.WebhookSecret = ""

	w := env.do(t, http.MethodPost, "/api/v1/webhooks/helius", `{"nativeTransfers":"nope"}`, nil)
	assertErrorCode(t, w, http.StatusBadRequest, "PAY_002")
}

func TestHeliusWebhook_ProcessingErrorAsksForRedelivery(t *testing.T) {
	env := newTestEnv(t)
	env.processor.EXPECT().Process(gomock.Any(), gomock.Any()).
		Return(&ports.ProcessResult{Transfers: 1}, errors.New("db down"))

	w := env.do(t, http.MethodPost, "/api/v1/webhooks/helius?secret="+testHookSecret, heliusBody, nil)
	assertErrorCode(t, w, http.StatusInternalServerError, "SYS_001")
}

func TestHeliusWebhook_BodyTooLarge(t *testing.T) {
	env := newTestEnv(t)
	env.deps.WebhookSecret = ""
	env.deps.MaxBodyBytes = 32

	w := env.do(t, http.MethodPost, "/api/v1/webhooks/helius", heliusBody, nil)
	assertErrorCode(t, w, http.StatusRequestEntityTooLarge, "SYS_003")
}

// --- Operator auth ---

func TestLogin_Success(t *testing.T) {
	env := newTestEnv(t)
	expiry := testNow.Add(12 * time.Hour)
	env.auth.EXPECT().Login(gomock.Any(), "alice", "correct horse").Return("jwt-token", expiry, nil)

	w := env.do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{"operator": "alice", "password": "correct horse"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "jwt-token", data["token"])
	assert.Equal(t, "Bearer", data["token_type"])
	assert.Equal(t, float64(expiry.Unix()), data["expiry"])
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestLogin_InvalidCredentials(t *testing.T) {
	env := newTestEnv(t)
	env.auth.EXPECT().Login(gomock.Any(), "alice", "wrong").Return("", time.Time{}, apperror.ErrInvalidCredentials())

	w := env.do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{"operator": "alice", "password": "wrong"}, nil)
	assertErrorCode(t, w, http.StatusUnauthorized, "AUTH_002")
}

func TestLogin_ValidationError(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{"operator": "alice"}, nil)
	assertErrorCode(t, w, http.StatusBadRequest, "PAY_002")
}

// --- Admin ---

func TestAdmin_RequiresToken(t *testing.T) {
	env := newTestEnv(t)
	env.tokens.EXPECT().Validate("forged").Return(nil, errors.New("signature invalid"))

	w := env.do(t, http.MethodGet, "/api/v1/admin/stats", nil, nil)
	assertErrorCode(t, w, http.StatusUnauthorized, "AUTH_001")

	w = env.do(t, http.MethodGet, "/api/v1/admin/stats", nil, map[string]string{"Authorization": "Bearer forged"})
	assertErrorCode(t, w, http.StatusUnauthorized, "AUTH_001")
}

func TestAdmin_DisabledWithoutOperators(t *testing.T) {
	env := newTestEnv(t)
	env.deps.AuthSvc = nil

	w := env.admin(t, http.MethodGet, "/api/v1/admin/stats", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = env.do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{"operator": "a", "password": "b"}, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProvisionMasterKey_ProvidedKey(t *testing.T) {
	env := newTestEnv(t)
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	env.custody.EXPECT().StoreMasterKey(gomock.Any(), key, 4).Return(key.PublicKey().String(), nil)

	w := env.admin(t, http.MethodPost, "/api/v1/admin/master-key", map[string]any{"private_key": key.String(), "parts": 4})
	require.Equal(t, http.StatusCreated, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, key.PublicKey().String(), data["address"])
	assert.NotContains(t, w.Body.String(), key.String())
}

func TestProvisionMasterKey_GeneratesWhenEmpty(t *testing.T) {
	env := newTestEnv(t)
	env.custody.EXPECT().StoreMasterKey(gomock.Any(), gomock.Any(), 0).DoAndReturn(
		func(_ context.Context, key solana.PrivateKey, _ int) (string, error) {
			assert.Len(t, key, 64)
			return key.PublicKey().String(), nil
		})

	w := env.admin(t, http.MethodPost, "/api/v1/admin/master-key", nil)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestProvisionMasterKey_InvalidKey(t *testing.T) {
	env := newTestEnv(t)
	w := env.admin(t, http.MethodPost, "/api/v1/admin/master-key", map[string]any{"private_key": "0OIl"})
	assertErrorCode(t, w, http.StatusBadRequest, "KEY_006")

	w = env.admin(t, http.MethodPost, "/api/v1/admin/master-key", map[string]any{"parts": 1})
	assertErrorCode(t, w, http.StatusBadRequest, "PAY_002")
}

func TestGetMasterKey(t *testing.T) {
	env := newTestEnv(t)
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	env.custody.EXPECT().RetrieveMasterKey(gomock.Any()).Return(key, nil)

	w := env.admin(t, http.MethodGet, "/api/v1/admin/master-key", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, key.PublicKey().String(), decodeData(t, w)["address"])
	assert.NotContains(t, w.Body.String(), key.String())
}

func TestGetMasterKey_NotProvisioned(t *testing.T) {
	env := newTestEnv(t)
	env.custody.EXPECT().RetrieveMasterKey(gomock.Any()).Return(nil, apperror.ErrNoKeyProvisioned(domain.ErrNoKeyProvisioned))

	w := env.admin(t, http.MethodGet, "/api/v1/admin/master-key", nil)
	assertErrorCode(t, w, http.StatusNotFound, "KEY_001")
}

func TestSweep(t *testing.T) {
	env := newTestEnv(t)
	env.sweeper.EXPECT().Sweep(gomock.Any(), testAddress).Return(&ports.SweepResult{
		Address:   testAddress,
		Signature: "sweep-sig",
		Amount:    499_995_000,
	}, nil)

	w := env.admin(t, http.MethodPost, "/api/v1/admin/sweeps/"+testAddress, nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "sweep-sig", data["signature"])
	assert.Equal(t, float64(499_995_000), data["amount"])
	assert.Equal(t, false, data["skipped"])
}

func TestSweep_Errors(t *testing.T) {
	env := newTestEnv(t)

	w := env.admin(t, http.MethodPost, "/api/v1/admin/sweeps/bogus", nil)
	assertErrorCode(t, w, http.StatusBadRequest, "PAY_002")

	env.sweeper.EXPECT().Sweep(gomock.Any(), testAddress).Return(nil, apperror.ErrSweepFailed(domain.ErrConfirmationTimeout))
	w = env.admin(t, http.MethodPost, "/api/v1/admin/sweeps/"+testAddress, nil)
	assertErrorCode(t, w, http.StatusBadGateway, "SWP_002")
}

func TestListSweeps(t *testing.T) {
	env := newTestEnv(t)
	failed := domain.SweepStatusFailed
	env.sweeper.EXPECT().History(gomock.Any(), ports.SweepListParams{Address: testAddress, Status: &failed, Limit: 10}).
		Return([]domain.SweepRecord{{ID: uuid.New(), FromAddress: testAddress, Status: failed, CreatedAt: testNow}}, nil)

	w := env.admin(t, http.MethodGet, "/api/v1/admin/sweeps?address="+testAddress+"&status=failed&limit=10", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data []domain.SweepRecord `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, testAddress, resp.Data[0].FromAddress)
}

func TestListSweeps_InvalidQuery(t *testing.T) {
	env := newTestEnv(t)
	w := env.admin(t, http.MethodGet, "/api/v1/admin/sweeps?status=pending", nil)
	assertErrorCode(t, w, http.StatusBadRequest, "PAY_002")
}

func TestCancelPayment(t *testing.T) {
	env := newTestEnv(t)
	id := uuid.MustParse(testPaymentUUID)
	env.payments.EXPECT().Cancel(gomock.Any(), id).Return(true, nil)
	env.monitor.EXPECT().Cancel(id).Return(true)

	w := env.admin(t, http.MethodPost, "/api/v1/admin/payments/"+testPaymentUUID+"/cancel", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "failed", decodeData(t, w)["status"])
}

func TestCancelPayment_NotPending(t *testing.T) {
	env := newTestEnv(t)
	env.payments.EXPECT().Cancel(gomock.Any(), gomock.Any()).Return(false, nil)

	w := env.admin(t, http.MethodPost, "/api/v1/admin/payments/"+testPaymentUUID+"/cancel", nil)
	assertErrorCode(t, w, http.StatusConflict, "PAY_001")
}

func TestDeactivateAddress_IsAudited(t *testing.T) {
	env := newTestEnv(t)
	auditSvc := mocks.NewMockAuditService(gomock.NewController(t))
	env.deps.AuditSvc = auditSvc

	env.addresses.EXPECT().Deactivate(gomock.Any(), testAddress).Return(nil)
	auditSvc.EXPECT().Log(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, entry *domain.AuditLog) {
		assert.Equal(t, domain.AuditActionDeactivateAddress, entry.Action)
		assert.Equal(t, "alice", entry.Operator)
		assert.Equal(t, testAddress, entry.ResourceID)
	})

	w := env.admin(t, http.MethodPost, "/api/v1/admin/addresses/"+testAddress+"/deactivate", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decodeData(t, w)["is_active"])
}

func TestDeactivateAddress_NotFound(t *testing.T) {
	env := newTestEnv(t)
	env.addresses.EXPECT().Deactivate(gomock.Any(), "unknown").Return(apperror.ErrNotFound("Address"))

	w := env.admin(t, http.MethodPost, "/api/v1/admin/addresses/unknown/deactivate", nil)
	assertErrorCode(t, w, http.StatusNotFound, "PAY_004")
}

func TestStats(t *testing.T) {
	env := newTestEnv(t)
	env.reporting.EXPECT().Stats(gomock.Any(), "week").Return(&domain.LedgerStats{
		Period:   "week",
		Payments: domain.PaymentStats{Completed: 3, CompletedVolume: decimal.RequireFromString("1.5")},
		Sweeps:   domain.SweepStats{Completed: 2, SweptLamports: 1_400_000_000},
	}, nil)

	w := env.admin(t, http.MethodGet, "/api/v1/admin/stats?period=week", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "week", data["period"])
	assert.Equal(t, "1.5", data["payments"].(map[string]interface{})["completed_volume"])
}

func TestStats_DefaultsToAll(t *testing.T) {
	env := newTestEnv(t)
	env.reporting.EXPECT().Stats(gomock.Any(), "all").Return(&domain.LedgerStats{Period: "all"}, nil)

	w := env.admin(t, http.MethodGet, "/api/v1/admin/stats", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

// --- Health, metrics, docs ---

func TestHealthCheck(t *testing.T) {
	ctrl := gomock.NewController(t)
	pg := mocks.NewMockHealthChecker(ctrl)
	pg.EXPECT().Name().Return("postgresql").AnyTimes()
	pg.EXPECT().Ping(gomock.Any()).Return(nil)
	rpc := mocks.NewMockHealthChecker(ctrl)
	rpc.EXPECT().Name().Return("solana-rpc").AnyTimes()
	rpc.EXPECT().Ping(gomock.Any()).Return(errors.New("node is behind"))

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)
	HealthCheck(pg, rpc)(c)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp["status"])
	deps := resp["dependencies"].(map[string]interface{})
	assert.Equal(t, "healthy", deps["postgresql"].(map[string]interface{})["status"])
	assert.Contains(t, deps["postgresql"], "latency_ms")
	assert.Equal(t, "unhealthy", deps["solana-rpc"].(map[string]interface{})["status"])
	assert.Equal(t, "node is behind", deps["solana-rpc"].(map[string]interface{})["error"])
}

func TestLiveness(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/health/live", nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"alive"}`, w.Body.String())
}

func TestHealthCheck_NoDependencies(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)

	HealthCheck()(c)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "custody_gateway_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()
	env.deps.Gatherer = reg

	w := env.do(t, http.MethodGet, "/metrics", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "custody_gateway_test_total 1")
}

func TestSwaggerUI(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/swagger", nil)

	SwaggerUI(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "/swagger/spec")
}

func TestSwaggerSpec(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/swagger/spec", nil)

	SwaggerSpec(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/api/v1/webhooks/helius")
	etag := w.Header().Get("ETag")
	require.NotEmpty(t, etag)

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/swagger/spec", nil)
	c.Request.Header.Set("If-None-Match", etag)

	SwaggerSpec(c)

	assert.Equal(t, http.StatusNotModified, w.Code)
	assert.Empty(t, w.Body.String())
}
