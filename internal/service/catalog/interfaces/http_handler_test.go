package interfaces

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/trace/noop"

	"digigoods/internal/service/catalog/application"
	"digigoods/internal/service/catalog/domain"
)

type stubRepo struct {
	products []*domain.Product
	err      error
}

func (s stubRepo) FindByIDs(context.Context, []int64) ([]*domain.Product, error) { return s.products, s.err }
func (s stubRepo) FindAll(context.Context) ([]*domain.Product, error) { return s.products, s.err }
func (s stubRepo) DecrementStock(context.Context, int64, int) error { return s.err }

func serve(repo domain.ProductRepository) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	svc := application.NewProductService(repo, noop.NewTracerProvider().Tracer("test"))
	NewProductHandler(svc).RegisterRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/products", nil))
	return rec
}

func TestProductHandler_List(t *testing.T) {
	rec := serve(stubRepo{products: []*domain.Product{
		{ID: 1, Name: "E-book", Price: decimal.RequireFromString("100"), Stock: 3},
	}})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"id":1,"name":"E-book","price":100.00,"stock":3}]`, rec.Body.String())
}

func TestProductHandler_ListError(t *testing.T) {
	rec := serve(stubRepo{err: errors.New("db down")})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"failed to list products"}`, rec.Body.String())
}
