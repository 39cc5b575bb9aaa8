package handler

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fieldops/backend/internal/application/settlement"
	"github.com/fieldops/backend/internal/infrastructure/auth"
	"github.com/fieldops/backend/internal/infrastructure/persistence"
	"github.com/fieldops/backend/internal/infrastructure/persistence/models"
	"github.com/fieldops/backend/internal/infrastructure/storage"
	"github.com/fieldops/backend/internal/interfaces/http/dto"
	"github.com/fieldops/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testServer struct {
	router  *gin.Engine
	db      *gorm.DB
	storage *storage.MemoryStorage
}

type identity struct {
	userID uuid.UUID
	role   auth.Role
}

func adminUser() identity  { return identity{userID: uuid.New(), role: auth.RoleAdmin} }
func leaderUser() identity { return identity{userID: uuid.New(), role: auth.RoleTeamLeader} }

// newTestServer wires the real services over an in-memory sqlite database.
// Callers authenticate with the development identity headers.
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()

	db, err := gorm.Open(sqlite.Open("file::memory:?_foreign_keys=on"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.AllModels()...))

	invoiceRepo := persistence.NewGormInvoiceRepository(db)
	vaultRepo := persistence.NewGormVaultRepository(db)
	custodyRepo := persistence.NewGormCustodyAccountRepository(db)
	vaultTx := persistence.NewGormVaultTransactionRepository(db)
	custodyTx := persistence.NewGormCustodyTransactionRepository(db)
	scope := persistence.NewGormSettlementScope(db)
	numbers, err := persistence.NewSnowflakeNumberGenerator(1)
	require.NoError(t, err)

	proofs := storage.NewMemoryStorage("http://files.test/receipts")
	cancellation := settlement.NewCancellationService(scope)
	collection := settlement.NewCollectionService(invoiceRepo, scope, proofs, cancellation, nil)

	invoices := NewInvoiceHandler(settlement.NewInvoiceService(invoiceRepo, scope, numbers))
	collect := NewCollectionHandler(collection, cancellation)
	vaults := NewVaultHandler(settlement.NewTreasuryService(vaultRepo, vaultTx, scope))
	custody := NewCustodyHandler(settlement.NewCustodyService(custodyRepo, custodyTx, scope))
	reports := NewReportHandler(
		settlement.NewStatsService(persistence.NewGormInvoiceStatsReader(db), nil, 0),
		settlement.NewBonusService(persistence.NewGormBonusCalculator(db), nil, 0),
		settlement.NewReconciliationService(scope),
	)

	r := gin.New()
	api := r.Group("/api/v1")
	api.Use(middleware.JWTAuthMiddlewareWithConfig(middleware.JWTMiddlewareConfig{AllowHeaderIdentity: true}))

	api.POST("/invoices", invoices.Create)
	api.GET("/invoices", invoices.List)
	api.GET("/invoices/pending-review", invoices.PendingReview)
	api.GET("/invoices/number/:number", invoices.GetByNumber)
	api.GET("/invoices/:id", invoices.Get)
	api.PUT("/invoices/:id", invoices.Update)
	api.DELETE("/invoices/:id", invoices.Delete)
	api.POST("/invoices/:id/submit", invoices.Submit)
	api.POST("/invoices/:id/collect/cash", collect.CollectCash)
	api.POST("/invoices/:id/payment-proof", collect.SubmitProof)
	api.POST("/invoices/:id/collect/admin", middleware.RequireAdmin(), collect.CollectAdmin)
	api.POST("/invoices/:id/reject", middleware.RequireAdmin(), collect.Reject)
	api.POST("/invoices/:id/cancel", collect.Cancel)

	api.POST("/vaults", middleware.RequireAdmin(), vaults.Create)
	api.GET("/vaults", vaults.List)
	api.POST("/vaults/transfer", middleware.RequireAdmin(), vaults.Transfer)
	api.GET("/vaults/:id", vaults.Get)
	api.PUT("/vaults/:id", middleware.RequireAdmin(), vaults.Update)
	api.POST("/vaults/:id/adjust", middleware.RequireAdmin(), vaults.Adjust)
	api.GET("/vaults/:id/transactions", vaults.Transactions)

	api.POST("/custody", middleware.RequireAdmin(), custody.Create)
	api.GET("/custody", custody.List)
	api.GET("/custody/me", custody.Mine)
	api.GET("/custody/user/:user_id", custody.GetByUser)
	api.GET("/custody/:id", custody.Get)
	api.POST("/custody/:id/add", middleware.RequireAdmin(), custody.Add)
	api.POST("/custody/:id/deactivate", middleware.RequireAdmin(), custody.Deactivate)
	api.POST("/custody/:id/settle/vault", custody.SettleToVault)
	api.GET("/custody/:id/transactions", custody.Transactions)

	api.GET("/reports/invoice-stats", reports.InvoiceStats)
	api.GET("/reports/worker-bonuses", reports.WorkerBonuses)
	api.GET("/reports/reconciliation", reports.Reconciliation)

	return &testServer{router: r, db: db, storage: proofs}
}

func (s *testServer) do(t *testing.T, who identity, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return s.send(who, req)
}

func (s *testServer) upload(t *testing.T, who identity, path string, fields map[string]string, fileName string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if fileName != "" {
		fw, err := mw.CreateFormFile(ProofFormField, fileName)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return s.send(who, req)
}

func (s *testServer) send(who identity, req *http.Request) *httptest.ResponseRecorder {
	if who.userID != uuid.Nil {
		req.Header.Set(middleware.HeaderUserID, who.userID.String())
		req.Header.Set(middleware.HeaderUserRole, string(who.role))
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// dataAs decodes the data member of a success envelope into out
func dataAs[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var env struct {
		Success bool `json:"success"`
		Data    T    `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	require.True(t, env.Success, w.Body.String())
	return env.Data
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	resp := decodeEnvelope(t, w)
	require.False(t, resp.Success)
	require.NotNil(t, resp.Error, w.Body.String())
	return resp.Error.Code
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func path(parts ...string) string {
	return "/api/v1/" + strings.Join(parts, "/")
}

// Fixture builders drive the HTTP API itself so each helper doubles as a
// smoke test of its endpoint.

func (s *testServer) createVault(t *testing.T, admin identity, name string) settlement.VaultResponse {
	t.Helper()
	w := s.do(t, admin, http.MethodPost, path("vaults"), map[string]any{"name": name, "type": "main"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return dataAs[settlement.VaultResponse](t, w)
}

func (s *testServer) createCustody(t *testing.T, admin identity, holder identity) settlement.CustodyResponse {
	t.Helper()
	w := s.do(t, admin, http.MethodPost, path("custody"), map[string]any{
		"user_id":     holder.userID.String(),
		"holder_type": "team_leader",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return dataAs[settlement.CustodyResponse](t, w)
}

func (s *testServer) pendingInvoice(t *testing.T, who identity, unitPrice string, quantity int) settlement.InvoiceResponse {
	t.Helper()
	w := s.do(t, who, http.MethodPost, path("invoices"), map[string]any{
		"customer_id": uuid.NewString(),
		"items": []map[string]any{
			{"description": "AC maintenance", "quantity": quantity, "unit_price": unitPrice},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	inv := dataAs[settlement.InvoiceResponse](t, w)

	w = s.do(t, who, http.MethodPost, path("invoices", inv.ID.String(), "submit"), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return dataAs[settlement.InvoiceResponse](t, w)
}
