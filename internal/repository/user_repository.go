package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/sitegen/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) FindOrCreateByEmail(ctx context.Context, email, fullName string) (*models.User, bool, error) {
	email = normalizeEmail(email)
	var user models.User
	result := r.db.WithContext(ctx).
		Where(models.User{Email: email}).
		Attrs(models.User{ID: uuid.New(), FullName: fullName, Role: models.RoleUser}).
		FirstOrCreate(&user)
	if result.Error != nil {
		// Lost a concurrent insert race; the row now exists.
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			existing, err := r.GetByEmail(ctx, email)
			return existing, false, err
		}
		return nil, false, fmt.Errorf("find or create user: %w", translate(result.Error))
	}
	return &user, result.RowsAffected > 0, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *UserRepository) TouchLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.updateColumn(ctx, id, "last_login_at", at)
}

func (r *UserRepository) SetRole(ctx context.Context, id uuid.UUID, role string) error {
	return r.updateColumn(ctx, id, "role", role)
}

func (r *UserRepository) updateColumn(ctx context.Context, id uuid.UUID, column string, value interface{}) error {
	result := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update(column, value)
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
