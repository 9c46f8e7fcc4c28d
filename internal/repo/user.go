package repo

import (
	"context"
	"errors"
	"strings"

	"github.com/Skotchmaster/quiz_platform/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (r *GormRepo) users(ctx context.Context, excludeDeleted bool) *gorm.DB {
	q := r.DB.WithContext(ctx).Model(&models.User{}).Preload("Role")
	if excludeDeleted {
		q = q.Where("is_deleted = ?", false)
	}
	return q
}

func (r *GormRepo) FindByEmail(ctx context.Context, email string, excludeDeleted bool) (*models.User, error) {
	var user models.User
	err := r.users(ctx, excludeDeleted).
		Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *GormRepo) FindByID(ctx context.Context, id uint, excludeDeleted bool) (*models.User, error) {
	var user models.User
	if err := r.users(ctx, excludeDeleted).Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// Save writes every column of the user row; the Role association is left alone.
func (r *GormRepo) Save(ctx context.Context, u *models.User) error {
	return r.DB.WithContext(ctx).Omit(clause.Associations).Save(u).Error
}

func (r *GormRepo) CreateUserIfNotExists(ctx context.Context, u *models.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	tx := r.DB.WithContext(ctx).
		Omit(clause.Associations).
		Where("LOWER(email) = ?", u.Email).
		FirstOrCreate(u)
	if tx.Error != nil {
		if isUniqueViolation(tx.Error) {
			return ErrUserAlreadyExist
		}
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return ErrUserAlreadyExist
	}
	return nil
}

func (r *GormRepo) RoleByName(ctx context.Context, name string) (*models.Role, error) {
	var role models.Role
	if err := r.DB.WithContext(ctx).Where("LOWER(name) = ?", strings.ToLower(name)).First(&role).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoleNotFound
		}
		return nil, err
	}
	return &role, nil
}

func (r *GormRepo) ListUsers(ctx context.Context, offset, limit int) (int64, []models.User, error) {
	var total int64
	if err := r.DB.WithContext(ctx).Model(&models.User{}).Where("is_deleted = ?", false).Count(&total).Error; err != nil {
		return 0, nil, err
	}

	items := make([]models.User, 0, limit)
	if err := r.users(ctx, true).Order("id ASC").Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		return 0, nil, err
	}
	return total, items, nil
}

// SearchUsers is the database fallback used when no search index is configured.
func (r *GormRepo) SearchUsers(ctx context.Context, q string, offset, limit int) (int64, []models.User, error) {
	pattern := "%" + strings.ToLower(strings.TrimSpace(q)) + "%"
	where := "LOWER(email) LIKE ? OR LOWER(full_name) LIKE ?"

	var total int64
	if err := r.DB.WithContext(ctx).Model(&models.User{}).
		Where("is_deleted = ?", false).
		Where(where, pattern, pattern).
		Count(&total).Error; err != nil {
		return 0, nil, err
	}

	items := make([]models.User, 0, limit)
	if err := r.users(ctx, true).
		Where(where, pattern, pattern).
		Order("id ASC").Offset(offset).Limit(limit).
		Find(&items).Error; err != nil {
		return 0, nil, err
	}
	return total, items, nil
}

func (r *GormRepo) FindByIDs(ctx context.Context, ids []uint) ([]models.User, error) {
	items := make([]models.User, 0, len(ids))
	if len(ids) == 0 {
		return items, nil
	}
	if err := r.users(ctx, true).Where("id IN ?", ids).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
