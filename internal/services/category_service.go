package services

import (
	"context"
	"strings"

	apperrors "tally/internal/errors"
	"tally/internal/models"
	"tally/internal/pagination"
	"tally/internal/store"
)

// categoryService handles category-related business logic.
type categoryService struct {
	store store.Store
}

// NewCategoryService creates a new CategoryServicer.
func NewCategoryService(st store.Store) CategoryServicer {
	return &categoryService{store: st}
}

// CreateCategory creates a new category
func (s *categoryService) CreateCategory(ctx context.Context, userID, name string, categoryType models.CategoryType) (*models.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "category name is required")
	}
	if !categoryType.Valid() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "category type must be income or expense")
	}

	category := &models.Category{UserID: userID, Name: name, Type: categoryType}
	err := s.store.WithinUnitOfWork(ctx, func(repo store.Repository) error {
		taken, err := repo.CategoryNameTaken(ctx, userID, name, "")
		if err != nil {
			return err
		}
		if taken {
			return apperrors.WithMessage(apperrors.ErrInvalidInput, "category with this name already exists")
		}
		return repo.CreateCategory(ctx, category)
	})
	if err != nil {
		return nil, err
	}
	return category, nil
}

// GetUserCategories retrieves a paginated list of categories for a user,
// optionally of one type.
func (s *categoryService) GetUserCategories(ctx context.Context, userID string, categoryType *models.CategoryType, page pagination.PageRequest) (*pagination.PageResponse[models.Category], error) {
	page.Defaults()

	categories, total, err := s.store.Reader().ListCategories(ctx, userID, categoryType, page)
	if err != nil {
		return nil, err
	}
	result := pagination.NewPageResponse(categories, page.Page, page.PageSize, total)
	return &result, nil
}

// GetCategoryByID retrieves a category by ID for a specific user
func (s *categoryService) GetCategoryByID(ctx context.Context, userID, categoryID string) (*models.Category, error) {
	return ownedCategory(ctx, s.store.Reader(), userID, categoryID)
}

// UpdateCategory renames a category. The type is fixed once created.
func (s *categoryService) UpdateCategory(ctx context.Context, userID, categoryID, name string) (*models.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "category name is required")
	}

	var category *models.Category
	err := s.store.WithinUnitOfWork(ctx, func(repo store.Repository) error {
		var err error
		if category, err = ownedCategory(ctx, repo, userID, categoryID); err != nil {
			return err
		}
		taken, err := repo.CategoryNameTaken(ctx, userID, name, categoryID)
		if err != nil {
			return err
		}
		if taken {
			return apperrors.WithMessage(apperrors.ErrInvalidInput, "category with this name already exists")
		}
		category.Name = name
		return repo.SaveCategory(ctx, category)
	})
	if err != nil {
		return nil, err
	}
	return category, nil
}

// DeleteCategory deletes a category nothing refers to.
func (s *categoryService) DeleteCategory(ctx context.Context, userID, categoryID string) error {
	return s.store.WithinUnitOfWork(ctx, func(repo store.Repository) error {
		if _, err := ownedCategory(ctx, repo, userID, categoryID); err != nil {
			return err
		}
		inUse, err := repo.CategoryInUse(ctx, categoryID)
		if err != nil {
			return err
		}
		if inUse {
			return apperrors.ErrCategoryInUse
		}
		return repo.DeleteCategory(ctx, categoryID)
	})
}
