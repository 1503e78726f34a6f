package service

import (
	"context"
	"testing"

	productserrors "teamup/internal/products/errors"
	"teamup/pkg/auth"
	"teamup/pkg/config"
	apperrors "teamup/pkg/errors"
	"teamup/pkg/logger"
	"teamup/pkg/model"
	"teamup/pkg/validation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

// memoryProductRepo keeps one product and enforces the version check the
// way the Mongo repository does.
type memoryProductRepo struct {
	product   model.Product
	saves     int
	conflicts int
	deleted   bool
	// lastFilter is the filter handed to the most recent Find.
	lastFilter model.ProductFilter
}

func (m *memoryProductRepo) Create(ctx context.Context, product *model.Product) error {
	product.ID = "64b7f0c2e4b0a1a2b3c4d0aa"
	m.product = *product
	return nil
}

func (m *memoryProductRepo) FindByID(ctx context.Context, id string) (*model.Product, error) {
	if id != m.product.ID || m.deleted {
		return nil, productserrors.ErrNotFound
	}
	p := m.product
	p.Reviews = append([]model.Review(nil), m.product.Reviews...)
	return &p, nil
}

func (m *memoryProductRepo) SaveReviews(ctx context.Context, product *model.Product) error {
	if m.conflicts > 0 {
		m.conflicts--
		m.product.Version++
		return productserrors.ErrVersionConflict
	}
	if product.Version != m.product.Version {
		return productserrors.ErrVersionConflict
	}
	m.saves++
	product.Version++
	m.product = *product
	return nil
}

func (m *memoryProductRepo) ReserveStock(ctx context.Context, id string, qty int) error {
	return nil
}

func (m *memoryProductRepo) RestoreStock(ctx context.Context, id string, qty int) error {
	return nil
}

func (m *memoryProductRepo) Find(ctx context.Context, filter model.ProductFilter, limit int, offset int64) ([]*model.Product, error) {
	m.lastFilter = filter
	if m.deleted || (filter.SellerID != "" && filter.SellerID != m.product.SellerID) {
		return []*model.Product{}, nil
	}
	p := m.product
	return []*model.Product{&p}, nil
}

func (m *memoryProductRepo) Count(ctx context.Context, filter model.ProductFilter) (int64, error) {
	if m.deleted || (filter.SellerID != "" && filter.SellerID != m.product.SellerID) {
		return 0, nil
	}
	return 1, nil
}

func (m *memoryProductRepo) FindIDsBySeller(ctx context.Context, sellerID string) ([]string, error) {
	if sellerID != m.product.SellerID {
		return nil, nil
	}
	return []string{m.product.ID}, nil
}

func (m *memoryProductRepo) Update(ctx context.Context, id string, set bson.M) (*model.Product, error) {
	if id != m.product.ID || m.deleted {
		return nil, productserrors.ErrNotFound
	}
	for k, v := range set {
		switch k {
		case "name":
			m.product.Name = v.(string)
		case "description":
			m.product.Description = v.(string)
		case "category":
			m.product.Category = v.(string)
		case "sport":
			m.product.Sport = v.(string)
		case "price":
			m.product.Price = v.(model.Money)
		case "stock":
			m.product.Stock = v.(int)
		}
	}
	m.product.Version++
	p := m.product
	return &p, nil
}

func (m *memoryProductRepo) Delete(ctx context.Context, id string) error {
	if id != m.product.ID || m.deleted {
		return productserrors.ErrNotFound
	}
	m.deleted = true
	return nil
}

var (
	seller = &auth.Principal{UserID: "64b7f0c2e4b0a1a2b3c4d555", Role: model.RoleSeller}
	alice  = &auth.Principal{UserID: "64b7f0c2e4b0a1a2b3c4d111", Role: model.RolePlayer}
	bob    = &auth.Principal{UserID: "64b7f0c2e4b0a1a2b3c4d222", Role: model.RoleUser}
	admin  = &auth.Principal{UserID: "64b7f0c2e4b0a1a2b3c4d333", Role: model.RoleAdmin}
)

func newTestService() (ProductService, *memoryProductRepo) {
	log := logger.Discard()
	repo := &memoryProductRepo{product: model.Product{
		ID:       "64b7f0c2e4b0a1a2b3c4d0aa",
		Name:     "Cricket Bat",
		SellerID: seller.UserID,
		Price:    model.MoneyFromFloat(49.99),
		Stock:    10,
		Reviews:  []model.Review{},
	}}
	return NewProductService(repo, validation.New(log), &config.Config{Log: log}), repo
}

func TestCreate(t *testing.T) {
	svc, _ := newTestService()

	product, err := svc.Create(context.Background(), seller, &model.ProductRequest{
		Name:        " Tennis  Racket ",
		Description: "Graphite frame",
		Price:       model.MoneyFromFloat(120),
		Category:    "Equipment",
		Sport:       "tennis",
		Stock:       5,
	})
	require.NoError(t, err)
	assert.Equal(t, "Tennis Racket", product.Name)
	assert.Equal(t, "equipment", product.Category)
	assert.Equal(t, seller.UserID, product.SellerID)
	assert.Equal(t, 0.0, product.Rating)

	_, err = svc.Create(context.Background(), alice, &model.ProductRequest{})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	_, err = svc.Create(context.Background(), seller, &model.ProductRequest{
		Name: "Freebie", Description: "x", Category: "other", Sport: "all",
	})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation), "price must be positive")
}

func TestReviews_RatingIsMeanOfReviews(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	id := repo.product.ID

	product, err := svc.AddReview(ctx, alice, id, &model.ReviewRequest{Rating: 5, Comment: "great"})
	require.NoError(t, err)
	assert.Equal(t, 5.0, product.Rating)

	product, err = svc.AddReview(ctx, bob, id, &model.ReviewRequest{Rating: 2})
	require.NoError(t, err)
	assert.Equal(t, 3.5, product.Rating)
	assert.Equal(t, 2, product.NumReviews)

	aliceReview := product.Reviews[0].ID
	product, err = svc.UpdateReview(ctx, alice, id, aliceReview, &model.ReviewRequest{Rating: 4})
	require.NoError(t, err)
	assert.Equal(t, 3.0, product.Rating)

	product, err = svc.DeleteReview(ctx, bob, id, product.Reviews[1].ID)
	require.NoError(t, err)
	assert.Equal(t, 4.0, product.Rating)

	product, err = svc.DeleteReview(ctx, admin, id, aliceReview)
	require.NoError(t, err)
	assert.Equal(t, 0.0, product.Rating, "no reviews means zero rating")
	assert.Empty(t, product.Reviews)
}

func TestAddReview_OnePerUser(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	_, err := svc.AddReview(ctx, alice, repo.product.ID, &model.ReviewRequest{Rating: 5})
	require.NoError(t, err)

	_, err = svc.AddReview(ctx, alice, repo.product.ID, &model.ReviewRequest{Rating: 1})
	require.Error(t, err)
	assert.True(t, apperrors.HasReason(err, apperrors.ReasonDuplicate))
	assert.Equal(t, 1, repo.saves)
}

func TestReviewOwnership(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	product, err := svc.AddReview(ctx, alice, repo.product.ID, &model.ReviewRequest{Rating: 5})
	require.NoError(t, err)
	reviewID := product.Reviews[0].ID

	_, err = svc.UpdateReview(ctx, bob, repo.product.ID, reviewID, &model.ReviewRequest{Rating: 1})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	_, err = svc.DeleteReview(ctx, bob, repo.product.ID, reviewID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	_, err = svc.UpdateReview(ctx, alice, repo.product.ID, "missing", &model.ReviewRequest{Rating: 1})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestReviews_RetryOnVersionConflict(t *testing.T) {
	svc, repo := newTestService()
	repo.conflicts = 2

	product, err := svc.AddReview(context.Background(), alice, repo.product.ID, &model.ReviewRequest{Rating: 3})
	require.NoError(t, err)
	assert.Equal(t, 3.0, product.Rating)
	assert.Equal(t, 1, repo.saves)
}

func TestReviews_GivesUpAfterRepeatedConflicts(t *testing.T) {
	svc, repo := newTestService()
	repo.conflicts = maxReviewAttempts

	_, err := svc.AddReview(context.Background(), alice, repo.product.ID, &model.ReviewRequest{Rating: 3})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))
	assert.Equal(t, 0, repo.saves)
}

func TestAddReview_InvalidRating(t *testing.T) {
	svc, repo := newTestService()
	_, err := svc.AddReview(context.Background(), alice, repo.product.ID, &model.ReviewRequest{Rating: 0})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}

func TestGetByID_NotFound(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.GetByID(context.Background(), "64b7f0c2e4b0a1a2b3c4d0ff")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestUpdate(t *testing.T) {
	name := "  Kashmir  Willow Bat "
	stock := 3
	zero := model.MoneyFromFloat(0)
	badSport := "curling"
	otherSeller := &auth.Principal{UserID: "64b7f0c2e4b0a1a2b3c4d888", Role: model.RoleSeller}

	tests := []struct {
		name     string
		who      *auth.Principal
		update   *model.ProductUpdate
		wantCode string
	}{
		{name: "owner renames and restocks", who: seller, update: &model.ProductUpdate{Name: &name, Stock: &stock}},
		{name: "admin may edit", who: admin, update: &model.ProductUpdate{Stock: &stock}},
		{name: "another seller", who: otherSeller, update: &model.ProductUpdate{Stock: &stock}, wantCode: apperrors.CodeForbidden},
		{name: "buyer", who: alice, update: &model.ProductUpdate{Stock: &stock}, wantCode: apperrors.CodeForbidden},
		{name: "zero price", who: seller, update: &model.ProductUpdate{Price: &zero}, wantCode: apperrors.CodeValidation},
		{name: "unknown sport", who: seller, update: &model.ProductUpdate{Sport: &badSport}, wantCode: apperrors.CodeValidation},
		{name: "nothing to change", who: seller, update: &model.ProductUpdate{}, wantCode: apperrors.CodeInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo := newTestService()
			product, err := svc.Update(context.Background(), tt.who, repo.product.ID, tt.update)
			if tt.wantCode != "" {
				assert.True(t, apperrors.HasCode(err, tt.wantCode), "got %v", err)
				assert.Equal(t, 10, repo.product.Stock)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 3, product.Stock)
			assert.Equal(t, int64(1), product.Version)
		})
	}

	svc, repo := newTestService()
	product, err := svc.Update(context.Background(), seller, repo.product.ID, &model.ProductUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Kashmir Willow Bat", product.Name)
}

func TestDelete(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	err := svc.Delete(ctx, bob, repo.product.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	require.NoError(t, svc.Delete(ctx, seller, repo.product.ID))
	_, err = svc.GetByID(ctx, repo.product.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	err = svc.Delete(ctx, seller, repo.product.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestList_NormalizesFilter(t *testing.T) {
	svc, repo := newTestService()

	products, total, err := svc.List(context.Background(), model.ProductFilter{Query: "ignored", Category: " Equipment ", Sport: "CRICKET"}, 10, 0)
	require.NoError(t, err)
	assert.Len(t, products, 1)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "equipment", repo.lastFilter.Category)
	assert.Equal(t, "cricket", repo.lastFilter.Sport)
	assert.Empty(t, repo.lastFilter.Query, "listing does not filter by text")

	low, high := model.MoneyFromFloat(50), model.MoneyFromFloat(10)
	_, _, err = svc.List(context.Background(), model.ProductFilter{MinPrice: &low, MaxPrice: &high}, 10, 0)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInput))
}

func TestSearch(t *testing.T) {
	svc, repo := newTestService()

	_, _, err := svc.Search(context.Background(), model.ProductFilter{Query: "   "}, 10, 0)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInput))

	products, _, err := svc.Search(context.Background(), model.ProductFilter{Query: "  cricket   bat "}, 10, 0)
	require.NoError(t, err)
	assert.Len(t, products, 1)
	assert.Equal(t, "cricket bat", repo.lastFilter.Query)
}
