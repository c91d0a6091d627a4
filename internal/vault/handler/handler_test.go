package handler

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"derisk/internal/authority"
	"derisk/internal/vault/handler/mocks"
	"derisk/internal/vault/models"
	"derisk/pkg/domain"
	dErrors "derisk/pkg/domain-errors"
	"derisk/pkg/requestcontext"
)

const operator domain.AccountID = "0xoperator"

func newRouter(svc Service) http.Handler {
	h := New(svc, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(requestcontext.WithAccount(r.Context(), operator)))
		})
	})
	h.Register(r)
	h.RegisterAdmin(r)
	return r
}

func TestSnapshot(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockService(ctrl)
	svc.EXPECT().Snapshot(gomock.Any()).Return(models.Ledger{
		TotalAssets: 18_446_744_073_709_551_615, TotalShares: 10, SelfShares: 10,
	}, nil)

	rec := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/vault", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"total_assets":"18446744073709551615","total_shares":"10","self_shares":"10"}`, rec.Body.String())
}

func TestEmergencyWithdraw(t *testing.T) {
	t.Run("forwards the operator as principal", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		svc := mocks.NewMockService(ctrl)
		svc.EXPECT().EmergencyWithdraw(gomock.Any(), authority.As(operator), domain.AssetID("dai"), domain.AccountID("0xtreasury"), uint64(50)).Return(nil)

		body := `{"asset_id":"dai","recipient":"0xtreasury","amount":"50"}`
		rec := httptest.NewRecorder()
		newRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/vault/emergency-withdraw", strings.NewReader(body)))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("breaching pooled accounting is a conflict", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		svc := mocks.NewMockService(ctrl)
		svc.EXPECT().EmergencyWithdraw(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(dErrors.New(dErrors.CodeInvalidState, "withdrawal would breach pooled accounting: surplus is 0"))

		body := `{"asset_id":"usdc","recipient":"0xtreasury","amount":"50"}`
		rec := httptest.NewRecorder()
		newRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/vault/emergency-withdraw", strings.NewReader(body)))
		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestSetEngine(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockService(ctrl)
	svc.EXPECT().SetEngine(gomock.Any(), authority.As(operator), domain.AccountID("0xengine")).Return(nil)

	rec := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/admin/vault/engine", strings.NewReader(`{"engine":"0xengine"}`)))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestDeposit(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockService(ctrl)
	svc.EXPECT().DepositPremium(gomock.Any(), uint64(10_000)).Return(uint64(10_000), nil)
	svc.EXPECT().DepositPremium(gomock.Any(), uint64(5)).
		Return(uint64(0), dErrors.New(dErrors.CodeValidation, "deposit is not backed by vault assets"))

	rec := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/vault/deposit", strings.NewReader(`{"amount":"10000"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"shares":"10000"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/vault/deposit", strings.NewReader(`{"amount":"5"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
