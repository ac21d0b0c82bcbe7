package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"digigoods/internal/pkg/metrics"
	catalog "digigoods/internal/service/catalog/domain"
	"digigoods/internal/service/order/domain"
	promotion "digigoods/internal/service/promotion/domain"
)

type mockUsers struct{ mock.Mock }

func (m *mockUsers) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	args := m.Called(ctx, id)
	u, _ := args.Get(0).(*domain.User)
	return u, args.Error(1)
}

type mockOrders struct{ mock.Mock }

func (m *mockOrders) Save(ctx context.Context, order *domain.Order) error {
	return m.Called(ctx, order).Error(0)
}

func (m *mockOrders) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	args := m.Called(ctx, id)
	o, _ := args.Get(0).(*domain.Order)
	return o, args.Error(1)
}

type mockCatalog struct{ mock.Mock }

func (m *mockCatalog) GetProductsByIDs(ctx context.Context, ids []int64) ([]*catalog.Product, error) {
	args := m.Called(ctx, ids)
	p, _ := args.Get(0).([]*catalog.Product)
	return p, args.Error(1)
}

func (m *mockCatalog) ValidateAndDecrementStock(ctx context.Context, ids []int64) error {
	return m.Called(ctx, ids).Error(0)
}

type mockDiscounts struct{ mock.Mock }

func (m *mockDiscounts) ValidateAndGetDiscounts(ctx context.Context, codes []string) ([]*promotion.Discount, error) {
	args := m.Called(ctx, codes)
	d, _ := args.Get(0).([]*promotion.Discount)
	return d, args.Error(1)
}

func (m *mockDiscounts) UpdateDiscountUsage(ctx context.Context, discounts []*promotion.Discount) error {
	return m.Called(ctx, discounts).Error(0)
}

// fakeTx 直接执行 fn，记录调用次数
type fakeTx struct{ calls int }

func (f *fakeTx) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	f.calls++
	return fn(ctx)
}

type fakeLocker struct {
	keys     []string
	released int
	err      error
}

func (l *fakeLocker) Acquire(_ context.Context, key string) (func(), error) {
	if l.err != nil {
		return nil, l.err
	}
	l.keys = append(l.keys, key)
	return func() { l.released++ }, nil
}

type fakeIdempotency struct {
	reserved map[string]bool
	released []string
}

func (f *fakeIdempotency) Reserve(_ context.Context, key string) (bool, error) {
	if f.reserved[key] {
		return false, nil
	}
	f.reserved[key] = true
	return true, nil
}

func (f *fakeIdempotency) Release(_ context.Context, key string) error {
	delete(f.reserved, key)
	f.released = append(f.released, key)
	return nil
}

type fakePublisher struct {
	events []*domain.OrderPlaced
	err    error
}

func (p *fakePublisher) PublishOrderPlaced(_ context.Context, e *domain.OrderPlaced) error {
	p.events = append(p.events, e)
	return p.err
}

type fixture struct {
	users     *mockUsers
	orders    *mockOrders
	catalog   *mockCatalog
	discounts *mockDiscounts
	tx        *fakeTx
}

func newFixture() *fixture {
	return &fixture{
		users:     new(mockUsers),
		orders:    new(mockOrders),
		catalog:   new(mockCatalog),
		discounts: new(mockDiscounts),
		tx:        new(fakeTx),
	}
}

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func (f *fixture) service(opts ...Option) *CheckoutService {
	opts = append([]Option{
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(func() string { return "order-1" }),
	}, opts...)
	return NewCheckoutService(f.users, f.orders, f.catalog, f.discounts, f.tx,
		domain.NewPricer(domain.DefaultMaxDiscountRatio), noop.NewTracerProvider().Tracer("test"), opts...)
}

func (f *fixture) assertExpectations(t *testing.T) {
	f.users.AssertExpectations(t)
	f.orders.AssertExpectations(t)
	f.catalog.AssertExpectations(t)
	f.discounts.AssertExpectations(t)
}

var (
	alice  = &domain.User{ID: 1, Username: "alice"}
	ebook  = &catalog.Product{ID: 1, Name: "E-book", Price: decimal.RequireFromString("100.00"), Stock: 10}
	course = &catalog.Product{ID: 2, Name: "Course", Price: decimal.RequireFromString("50.00"), Stock: 10}
)

func discountOf(code string, typ promotion.DiscountType, pct string, ids ...int64) *promotion.Discount {
	return &promotion.Discount{Code: code, Type: typ, Percentage: decimal.RequireFromString(pct), RemainingUses: 5, ApplicableProductIDs: ids}
}

// expectHappyPath 为一次完整成功的结算设置期望
func (f *fixture) expectHappyPath(ids []int64, products []*catalog.Product, codes []string, applied []*promotion.Discount) {
	f.users.On("FindByID", mock.Anything, int64(1)).Return(alice, nil)
	f.catalog.On("GetProductsByIDs", mock.Anything, ids).Return(products, nil)
	f.discounts.On("ValidateAndGetDiscounts", mock.Anything, codes).Return(applied, nil)
	f.catalog.On("ValidateAndDecrementStock", mock.Anything, ids).Return(nil)
	f.discounts.On("UpdateDiscountUsage", mock.Anything, applied).Return(nil)
	f.orders.On("Save", mock.Anything, mock.AnythingOfType("*domain.Order")).Return(nil)
}

func TestProcessCheckout_FinalPrices(t *testing.T) {
	tests := []struct {
		name     string
		ids      []int64
		products []*catalog.Product
		codes    []string
		applied  []*promotion.Discount
		want     string
	}{
		{
			name: "general discount", ids: []int64{1, 2}, products: []*catalog.Product{ebook, course},
			codes: []string{"SAVE20"}, applied: []*promotion.Discount{discountOf("SAVE20", promotion.DiscountTypeGeneral, "20")},
			want: "120.00",
		},
		{
			name: "product specific discount", ids: []int64{1, 2}, products: []*catalog.Product{ebook, course},
			codes: []string{"BOOK10"}, applied: []*promotion.Discount{discountOf("BOOK10", promotion.DiscountTypeProductSpecific, "10", 1)},
			want: "140.00",
		},
		{
			name: "sequential general discounts", ids: []int64{1}, products: []*catalog.Product{ebook},
			codes: []string{"A10", "B20"},
			applied: []*promotion.Discount{
				discountOf("A10", promotion.DiscountTypeGeneral, "10"),
				discountOf("B20", promotion.DiscountTypeGeneral, "20"),
			},
			want: "72.00",
		},
		{
			name: "no discount codes", ids: []int64{1, 2}, products: []*catalog.Product{ebook, course},
			codes: []string{}, applied: []*promotion.Discount{}, want: "150.00",
		},
		{
			name: "duplicate product ids", ids: []int64{1, 1, 2}, products: []*catalog.Product{ebook, course},
			codes: nil, applied: []*promotion.Discount{}, want: "250.00",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.expectHappyPath(tt.ids, tt.products, tt.codes, tt.applied)

			resp, err := f.service().ProcessCheckout(context.Background(), &CheckoutRequest{
				UserID: 1, ProductIDs: tt.ids, DiscountCodes: tt.codes,
			}, 1)
			require.NoError(t, err)
			assert.Equal(t, SuccessMessage, resp.Message)
			assert.Equal(t, tt.want, resp.FinalPrice.StringFixed(2))
			assert.Equal(t, "order-1", resp.OrderID)
			assert.Equal(t, 1, f.tx.calls)
			f.assertExpectations(t)
		})
	}
}

func TestProcessCheckout_SavesOrderDetail(t *testing.T) {
	f := newFixture()
	applied := []*promotion.Discount{discountOf("SAVE20", promotion.DiscountTypeGeneral, "20")}
	f.expectHappyPath([]int64{1, 1, 2}, []*catalog.Product{ebook, course}, []string{"SAVE20"}, applied)

	_, err := f.service().ProcessCheckout(context.Background(), &CheckoutRequest{
		UserID: 1, ProductIDs: []int64{1, 1, 2}, DiscountCodes: []string{"SAVE20"},
	}, 1)
	require.NoError(t, err)

	saved := f.orders.Calls[0].Arguments.Get(1).(*domain.Order)
	assert.Equal(t, "order-1", saved.ID)
	assert.Equal(t, int64(1), saved.UserID)
	assert.Equal(t, []int64{1, 1, 2}, saved.ProductIDs())
	assert.Equal(t, "250.00", saved.Subtotal.StringFixed(2))
	assert.Equal(t, "200.00", saved.FinalPrice.StringFixed(2))
	assert.Equal(t, "50.00", saved.DiscountTotal.StringFixed(2))
	assert.Equal(t, []string{"SAVE20"}, saved.DiscountCodes)
	assert.Equal(t, fixedNow, saved.CreatedAt)
}

func TestProcessCheckout_UnauthorizedTouchesNothing(t *testing.T) {
	f := newFixture()
	locker := &fakeLocker{}
	idem := &fakeIdempotency{reserved: map[string]bool{}}

	_, err := f.service(WithLocker(locker), WithIdempotencyStore(idem)).ProcessCheckout(context.Background(), &CheckoutRequest{
		UserID: 2, ProductIDs: []int64{1}, IdempotencyKey: "k1",
	}, 1)
	require.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Equal(t, "User cannot place order for another user", err.Error())

	assert.Zero(t, f.tx.calls)
	assert.Empty(t, locker.keys)
	assert.Empty(t, idem.reserved)
	f.users.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
	f.catalog.AssertNotCalled(t, "GetProductsByIDs", mock.Anything, mock.Anything)
	f.discounts.AssertNotCalled(t, "ValidateAndGetDiscounts", mock.Anything, mock.Anything)
}

func TestProcessCheckout_UserCheckedBeforeProducts(t *testing.T) {
	f := newFixture()
	f.users.On("FindByID", mock.Anything, int64(1)).Return(nil, domain.ErrUserNotFound)

	_, err := f.service().ProcessCheckout(context.Background(), &CheckoutRequest{UserID: 1, ProductIDs: []int64{1}}, 1)
	require.ErrorIs(t, err, domain.ErrUserNotFound)
	f.catalog.AssertNotCalled(t, "GetProductsByIDs", mock.Anything, mock.Anything)
	f.discounts.AssertNotCalled(t, "ValidateAndGetDiscounts", mock.Anything, mock.Anything)
	f.orders.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestProcessCheckout_UnknownProduct(t *testing.T) {
	f := newFixture()
	f.users.On("FindByID", mock.Anything, int64(1)).Return(alice, nil)
	f.catalog.On("GetProductsByIDs", mock.Anything, []int64{1, 99}).
		Return(nil, errors.Join(catalog.ErrProductNotFound, errors.New("id 99")))

	_, err := f.service().ProcessCheckout(context.Background(), &CheckoutRequest{UserID: 1, ProductIDs: []int64{1, 99}}, 1)
	require.ErrorIs(t, err, catalog.ErrProductNotFound)
	f.discounts.AssertNotCalled(t, "ValidateAndGetDiscounts", mock.Anything, mock.Anything)
}

func TestProcessCheckout_InvalidDiscountReportsFirstBadCode(t *testing.T) {
	f := newFixture()
	f.users.On("FindByID", mock.Anything, int64(1)).Return(alice, nil)
	f.catalog.On("GetProductsByIDs", mock.Anything, []int64{1}).Return([]*catalog.Product{ebook}, nil)
	f.discounts.On("ValidateAndGetDiscounts", mock.Anything, []string{"OLD", "NOPE"}).
		Return(nil, &promotion.InvalidDiscountError{Code: "OLD", Reason: promotion.ReasonExpired})

	_, err := f.service().ProcessCheckout(context.Background(), &CheckoutRequest{
		UserID: 1, ProductIDs: []int64{1}, DiscountCodes: []string{"OLD", "NOPE"},
	}, 1)
	require.ErrorIs(t, err, promotion.ErrInvalidDiscount)
	assert.Contains(t, err.Error(), "'OLD'")
	f.catalog.AssertNotCalled(t, "ValidateAndDecrementStock", mock.Anything, mock.Anything)
	f.orders.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestProcessCheckout_ExcessiveDiscountNeverWrites(t *testing.T) {
	f := newFixture()
	applied := []*promotion.Discount{
		discountOf("HALF", promotion.DiscountTypeGeneral, "50"),
		discountOf("MORE", promotion.DiscountTypeGeneral, "60"),
	}
	f.users.On("FindByID", mock.Anything, int64(1)).Return(alice, nil)
	f.catalog.On("GetProductsByIDs", mock.Anything, []int64{1}).Return([]*catalog.Product{ebook}, nil)
	f.discounts.On("ValidateAndGetDiscounts", mock.Anything, []string{"HALF", "MORE"}).Return(applied, nil)

	_, err := f.service().ProcessCheckout(context.Background(), &CheckoutRequest{
		UserID: 1, ProductIDs: []int64{1}, DiscountCodes: []string{"HALF", "MORE"},
	}, 1)
	require.ErrorIs(t, err, domain.ErrExcessiveDiscount)
	f.catalog.AssertNotCalled(t, "ValidateAndDecrementStock", mock.Anything, mock.Anything)
	f.discounts.AssertNotCalled(t, "UpdateDiscountUsage", mock.Anything, mock.Anything)
	f.orders.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestProcessCheckout_InsufficientStockSkipsSave(t *testing.T) {
	f := newFixture()
	f.users.On("FindByID", mock.Anything, int64(1)).Return(alice, nil)
	f.catalog.On("GetProductsByIDs", mock.Anything, []int64{1}).Return([]*catalog.Product{ebook}, nil)
	f.discounts.On("ValidateAndGetDiscounts", mock.Anything, []string(nil)).Return([]*promotion.Discount{}, nil)
	f.catalog.On("ValidateAndDecrementStock", mock.Anything, []int64{1}).Return(catalog.ErrInsufficientStock)

	_, err := f.service().ProcessCheckout(context.Background(), &CheckoutRequest{UserID: 1, ProductIDs: []int64{1}}, 1)
	require.ErrorIs(t, err, catalog.ErrInsufficientStock)
	f.discounts.AssertNotCalled(t, "UpdateDiscountUsage", mock.Anything, mock.Anything)
	f.orders.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestProcessCheckout_PublishesAfterCommit(t *testing.T) {
	f := newFixture()
	f.expectHappyPath([]int64{1}, []*catalog.Product{ebook}, nil, []*promotion.Discount{})
	pub := &fakePublisher{}

	_, err := f.service(WithEventPublisher(pub)).ProcessCheckout(context.Background(), &CheckoutRequest{UserID: 1, ProductIDs: []int64{1}}, 1)
	require.NoError(t, err)
	require.Len(t, pub.events, 1)
	assert.Equal(t, "order-1", pub.events[0].OrderID)
	assert.Equal(t, []int64{1}, pub.events[0].ProductIDs)
	assert.Equal(t, []string{}, pub.events[0].DiscountCodes)
}

func TestProcessCheckout_PublishFailureKeepsOrder(t *testing.T) {
	f := newFixture()
	f.expectHappyPath([]int64{1}, []*catalog.Product{ebook}, nil, []*promotion.Discount{})
	pub := &fakePublisher{err: errors.New("broker down")}

	resp, err := f.service(WithEventPublisher(pub)).ProcessCheckout(context.Background(), &CheckoutRequest{UserID: 1, ProductIDs: []int64{1}}, 1)
	require.NoError(t, err)
	assert.Equal(t, "100.00", resp.FinalPrice.StringFixed(2))
}

func TestProcessCheckout_NoPublishOnFailure(t *testing.T) {
	f := newFixture()
	f.users.On("FindByID", mock.Anything, int64(1)).Return(nil, domain.ErrUserNotFound)
	pub := &fakePublisher{}

	_, err := f.service(WithEventPublisher(pub)).ProcessCheckout(context.Background(), &CheckoutRequest{UserID: 1, ProductIDs: []int64{1}}, 1)
	require.Error(t, err)
	assert.Empty(t, pub.events)
}

func TestProcessCheckout_Lock(t *testing.T) {
	t.Run("held for the whole checkout", func(t *testing.T) {
		f := newFixture()
		f.expectHappyPath([]int64{1}, []*catalog.Product{ebook}, nil, []*promotion.Discount{})
		locker := &fakeLocker{}

		_, err := f.service(WithLocker(locker)).ProcessCheckout(context.Background(), &CheckoutRequest{UserID: 1, ProductIDs: []int64{1}}, 1)
		require.NoError(t, err)
		assert.Equal(t, []string{"checkout-user-1"}, locker.keys)
		assert.Equal(t, 1, locker.released)
	})

	t.Run("timeout aborts before the transaction", func(t *testing.T) {
		f := newFixture()
		locker := &fakeLocker{err: domain.ErrLockTimeout}

		_, err := f.service(WithLocker(locker)).ProcessCheckout(context.Background(), &CheckoutRequest{UserID: 1, ProductIDs: []int64{1}}, 1)
		require.ErrorIs(t, err, domain.ErrLockTimeout)
		assert.Zero(t, f.tx.calls)
	})
}

func TestProcessCheckout_Idempotency(t *testing.T) {
	t.Run("second submission is rejected", func(t *testing.T) {
		f := newFixture()
		f.expectHappyPath([]int64{1}, []*catalog.Product{ebook}, nil, []*promotion.Discount{})
		idem := &fakeIdempotency{reserved: map[string]bool{}}
		svc := f.service(WithIdempotencyStore(idem))
		req := &CheckoutRequest{UserID: 1, ProductIDs: []int64{1}, IdempotencyKey: "abc"}

		_, err := svc.ProcessCheckout(context.Background(), req, 1)
		require.NoError(t, err)
		assert.True(t, idem.reserved["1:abc"])

		_, err = svc.ProcessCheckout(context.Background(), req, 1)
		require.ErrorIs(t, err, domain.ErrDuplicateCheckout)
		assert.Equal(t, 1, f.tx.calls)
	})

	t.Run("failed checkout releases the key", func(t *testing.T) {
		f := newFixture()
		f.users.On("FindByID", mock.Anything, int64(1)).Return(nil, domain.ErrUserNotFound)
		idem := &fakeIdempotency{reserved: map[string]bool{}}

		_, err := f.service(WithIdempotencyStore(idem)).ProcessCheckout(context.Background(), &CheckoutRequest{
			UserID: 1, ProductIDs: []int64{1}, IdempotencyKey: "abc",
		}, 1)
		require.ErrorIs(t, err, domain.ErrUserNotFound)
		assert.Equal(t, []string{"1:abc"}, idem.released)
		assert.Empty(t, idem.reserved)
	})

	t.Run("duplicate does not release the original reservation", func(t *testing.T) {
		f := newFixture()
		idem := &fakeIdempotency{reserved: map[string]bool{"1:abc": true}}

		_, err := f.service(WithIdempotencyStore(idem)).ProcessCheckout(context.Background(), &CheckoutRequest{
			UserID: 1, ProductIDs: []int64{1}, IdempotencyKey: "abc",
		}, 1)
		require.ErrorIs(t, err, domain.ErrDuplicateCheckout)
		assert.Empty(t, idem.released)
	})
}

func TestProcessCheckout_Metrics(t *testing.T) {
	m := metrics.NewCheckoutMetrics(prometheus.NewRegistry())

	ok := newFixture()
	applied := []*promotion.Discount{discountOf("SAVE20", promotion.DiscountTypeGeneral, "20")}
	ok.expectHappyPath([]int64{1}, []*catalog.Product{ebook}, []string{"SAVE20"}, applied)
	_, err := ok.service(WithMetrics(m)).ProcessCheckout(context.Background(), &CheckoutRequest{
		UserID: 1, ProductIDs: []int64{1}, DiscountCodes: []string{"SAVE20"},
	}, 1)
	require.NoError(t, err)

	_, err = newFixture().service(WithMetrics(m)).ProcessCheckout(context.Background(), &CheckoutRequest{UserID: 2, ProductIDs: []int64{1}}, 1)
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("unauthorized")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DiscountsApplied.WithLabelValues("GENERAL")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.DiscountsApplied))
}

func TestGetOrder_HidesOtherUsersOrders(t *testing.T) {
	f := newFixture()
	f.orders.On("FindByID", mock.Anything, "order-1").Return(&domain.Order{ID: "order-1", UserID: 2}, nil)

	_, err := f.service().GetOrder(context.Background(), "order-1", 1)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)

	got, err := f.service().GetOrder(context.Background(), "order-1", 2)
	require.NoError(t, err)
	assert.Equal(t, "order-1", got.ID)
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "success"},
		{domain.ErrUnauthorized, "unauthorized"},
		{domain.ErrUserNotFound, "not_found"},
		{catalog.ErrProductNotFound, "not_found"},
		{&promotion.InvalidDiscountError{Code: "X", Reason: promotion.ReasonNotFound}, "invalid_discount"},
		{domain.ErrExcessiveDiscount, "excessive_discount"},
		{catalog.ErrInsufficientStock, "insufficient_stock"},
		{domain.ErrDuplicateCheckout, "duplicate"},
		{domain.ErrLockTimeout, "lock_timeout"},
		{errors.New("boom"), "error"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, Outcome(tt.err))
		})
	}
}
