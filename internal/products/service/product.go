package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"teamup/internal/access"
	productserrors "teamup/internal/products/errors"
	"teamup/internal/products/repository"
	"teamup/pkg/auth"
	"teamup/pkg/config"
	mongodb "teamup/pkg/db/mongo"
	apperrors "teamup/pkg/errors"
	"teamup/pkg/model"
	"teamup/pkg/sanitizer"
	"teamup/pkg/validation"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
)

// maxReviewAttempts bounds the read-modify-write retries on version conflicts.
const maxReviewAttempts = 3

type ProductService interface {
	Create(ctx context.Context, p *auth.Principal, req *model.ProductRequest) (*model.Product, error)
	GetByID(ctx context.Context, id string) (*model.Product, error)
	List(ctx context.Context, filter model.ProductFilter, limit int, offset int64) ([]*model.Product, int64, error)
	Search(ctx context.Context, filter model.ProductFilter, limit int, offset int64) ([]*model.Product, int64, error)
	Update(ctx context.Context, p *auth.Principal, id string, update *model.ProductUpdate) (*model.Product, error)
	Delete(ctx context.Context, p *auth.Principal, id string) error
	AddReview(ctx context.Context, p *auth.Principal, productID string, req *model.ReviewRequest) (*model.Product, error)
	UpdateReview(ctx context.Context, p *auth.Principal, productID, reviewID string, req *model.ReviewRequest) (*model.Product, error)
	DeleteReview(ctx context.Context, p *auth.Principal, productID, reviewID string) (*model.Product, error)
}

type productService struct {
	repo      repository.ProductRepository
	validator *validator.Validate
	cfg       *config.Config
}

func NewProductService(repo repository.ProductRepository, validator *validator.Validate, cfg *config.Config) ProductService {
	return &productService{
		repo:      repo,
		validator: validator,
		cfg:       cfg,
	}
}

func (s *productService) Create(ctx context.Context, p *auth.Principal, req *model.ProductRequest) (*model.Product, error) {
	if err := access.Authorize(p, access.ProductCreate); err != nil {
		return nil, err
	}
	log := s.cfg.Log.FromContext(ctx)

	req.Name = sanitizer.NormalizeName(req.Name)
	req.Description = strings.TrimSpace(req.Description)
	req.Category = sanitizer.NormalizeLabel(req.Category)
	req.Sport = sanitizer.NormalizeLabel(req.Sport)
	if err := validation.Request(s.validator, req); err != nil {
		log.Warn("Product validation failed", "error", err)
		return nil, err
	}

	product := &model.Product{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		SellerID:    p.UserID,
		Category:    req.Category,
		Sport:       req.Sport,
		Stock:       req.Stock,
		Reviews:     []model.Review{},
	}

	if err := s.repo.Create(ctx, product); err != nil {
		log.Error("Failed to create product", "error", err)
		return nil, apperrors.Internal("Failed to create product", err)
	}

	log.Info("Product created", "id", product.ID, "seller_id", product.SellerID, "stock", product.Stock)
	return product, nil
}

func (s *productService) GetByID(ctx context.Context, id string) (*model.Product, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Product ID cannot be empty")
	}

	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, productserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Product", id)
		}
		if errors.Is(err, productserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid product ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve product", err)
	}
	return product, nil
}

// List pages through the catalogue, newest first. Reviews are left out of
// listings.
func (s *productService) List(ctx context.Context, filter model.ProductFilter, limit int, offset int64) ([]*model.Product, int64, error) {
	filter.Query = ""
	return s.list(ctx, filter, limit, offset)
}

// Search is List narrowed by a free-text match on name and description.
func (s *productService) Search(ctx context.Context, filter model.ProductFilter, limit int, offset int64) ([]*model.Product, int64, error) {
	filter.Query = sanitizer.TrimAndNormalize(filter.Query)
	if filter.Query == "" {
		return nil, 0, apperrors.InvalidInput("'q' query parameter is required")
	}
	return s.list(ctx, filter, limit, offset)
}

func (s *productService) list(ctx context.Context, filter model.ProductFilter, limit int, offset int64) ([]*model.Product, int64, error) {
	filter.Category = sanitizer.NormalizeLabel(filter.Category)
	filter.Sport = sanitizer.NormalizeLabel(filter.Sport)
	if filter.MinPrice != nil && filter.MaxPrice != nil && filter.MinPrice.GreaterThan(filter.MaxPrice.Decimal) {
		return nil, 0, apperrors.InvalidInput("min_price cannot exceed max_price")
	}

	var total int64
	var products []*model.Product
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		total, errCount = s.repo.Count(ctx, filter)
	}()

	go func() {
		defer wg.Done()
		products, errFind = s.repo.Find(ctx, filter, limit, offset)
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, apperrors.Internal("Failed to count products", errCount)
	}
	if errFind != nil {
		return nil, 0, apperrors.Internal("Failed to retrieve products", errFind)
	}
	return products, total, nil
}

// Update changes catalogue fields on a product owned by the seller.
func (s *productService) Update(ctx context.Context, p *auth.Principal, id string, update *model.ProductUpdate) (*model.Product, error) {
	if err := access.Authorize(p, access.ProductManage); err != nil {
		return nil, err
	}
	log := s.cfg.Log.FromContext(ctx)

	set := bson.M{}
	if update.Name != nil {
		*update.Name = sanitizer.NormalizeName(*update.Name)
		set["name"] = *update.Name
	}
	if update.Description != nil {
		*update.Description = strings.TrimSpace(*update.Description)
		set["description"] = *update.Description
	}
	if update.Category != nil {
		*update.Category = sanitizer.NormalizeLabel(*update.Category)
		set["category"] = *update.Category
	}
	if update.Sport != nil {
		*update.Sport = sanitizer.NormalizeLabel(*update.Sport)
		set["sport"] = *update.Sport
	}
	if update.Price != nil {
		if !update.Price.IsPositive() {
			return nil, apperrors.Validation("Invalid price", map[string]any{"price": "must be greater than zero"})
		}
		set["price"] = *update.Price
	}
	if update.Stock != nil {
		set["stock"] = *update.Stock
	}
	if err := validation.Request(s.validator, update); err != nil {
		log.Warn("Product update validation failed", "id", id, "error", err)
		return nil, err
	}
	if len(set) == 0 {
		return nil, apperrors.InvalidInput("No fields to update")
	}

	product, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := access.RequireOwner(p, "product", product.SellerID); err != nil {
		return nil, err
	}

	updated, err := s.repo.Update(ctx, id, set)
	if err != nil {
		if errors.Is(err, productserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Product", id)
		}
		log.Error("Failed to update product", "id", id, "error", err)
		return nil, apperrors.Internal("Failed to update product", err)
	}

	log.Info("Product updated", "id", id, "fields", len(set), "by", p.UserID)
	return updated, nil
}

// Delete removes a product owned by the seller. Orders already placed keep
// their priced lines.
func (s *productService) Delete(ctx context.Context, p *auth.Principal, id string) error {
	if err := access.Authorize(p, access.ProductManage); err != nil {
		return err
	}
	log := s.cfg.Log.FromContext(ctx)

	product, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := access.RequireOwner(p, "product", product.SellerID); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, productserrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Product", id)
		}
		log.Error("Failed to delete product", "id", id, "error", err)
		return apperrors.Internal("Failed to delete product", err)
	}

	log.Info("Product deleted", "id", id, "by", p.UserID)
	return nil
}

func (s *productService) AddReview(ctx context.Context, p *auth.Principal, productID string, req *model.ReviewRequest) (*model.Product, error) {
	if err := access.Authorize(p, access.ProductReview); err != nil {
		return nil, err
	}
	if err := s.validateReview(req); err != nil {
		return nil, err
	}

	return s.mutateReviews(ctx, productID, func(product *model.Product) error {
		for _, r := range product.Reviews {
			if r.UserID == p.UserID {
				return apperrors.Duplicate("Product already reviewed")
			}
		}
		now := mongodb.Now()
		product.Reviews = append(product.Reviews, model.Review{
			ID:        uuid.NewString(),
			UserID:    p.UserID,
			Rating:    req.Rating,
			Comment:   req.Comment,
			CreatedAt: now,
			UpdatedAt: now,
		})
		return nil
	})
}

func (s *productService) UpdateReview(ctx context.Context, p *auth.Principal, productID, reviewID string, req *model.ReviewRequest) (*model.Product, error) {
	if err := access.Authorize(p, access.ProductReview); err != nil {
		return nil, err
	}
	if err := s.validateReview(req); err != nil {
		return nil, err
	}

	return s.mutateReviews(ctx, productID, func(product *model.Product) error {
		i, err := findReview(product, reviewID)
		if err != nil {
			return err
		}
		// Only the author may edit; admins moderate by deleting.
		if product.Reviews[i].UserID != p.UserID {
			return apperrors.Forbidden("Not authorized to edit this review")
		}
		product.Reviews[i].Rating = req.Rating
		product.Reviews[i].Comment = req.Comment
		product.Reviews[i].UpdatedAt = mongodb.Now()
		return nil
	})
}

func (s *productService) DeleteReview(ctx context.Context, p *auth.Principal, productID, reviewID string) (*model.Product, error) {
	if err := access.Authorize(p, access.ProductReview); err != nil {
		return nil, err
	}

	return s.mutateReviews(ctx, productID, func(product *model.Product) error {
		i, err := findReview(product, reviewID)
		if err != nil {
			return err
		}
		if err := access.RequireOwner(p, "review", product.Reviews[i].UserID); err != nil {
			return err
		}
		product.Reviews = append(product.Reviews[:i], product.Reviews[i+1:]...)
		return nil
	})
}

// mutateReviews applies fn to a fresh copy of the product, recomputes the
// rating and saves it guarded by the product version. A concurrent writer
// makes the save fail, and the mutation is replayed on the newer state.
func (s *productService) mutateReviews(ctx context.Context, productID string, fn func(*model.Product) error) (*model.Product, error) {
	log := s.cfg.Log.FromContext(ctx)

	for attempt := 1; attempt <= maxReviewAttempts; attempt++ {
		product, err := s.GetByID(ctx, productID)
		if err != nil {
			return nil, err
		}
		if err := fn(product); err != nil {
			return nil, err
		}
		product.RecomputeRating()

		err = s.repo.SaveReviews(ctx, product)
		if err == nil {
			log.Info("Product reviews updated", "id", product.ID, "rating", product.Rating, "num_reviews", product.NumReviews)
			return product, nil
		}
		if !errors.Is(err, productserrors.ErrVersionConflict) {
			log.Error("Failed to save product reviews", "id", productID, "error", err)
			return nil, apperrors.Internal("Failed to save review", err)
		}
		log.Debug("Product version conflict, retrying", "id", productID, "attempt", attempt)
	}

	return nil, apperrors.Conflict("Product is being modified concurrently, retry the request")
}

func (s *productService) validateReview(req *model.ReviewRequest) error {
	req.Comment = strings.TrimSpace(req.Comment)
	return validation.Request(s.validator, req)
}

func findReview(product *model.Product, reviewID string) (int, error) {
	for i, r := range product.Reviews {
		if r.ID == reviewID {
			return i, nil
		}
	}
	return -1, apperrors.NotFoundWithID("Review", reviewID)
}
