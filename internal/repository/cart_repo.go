package repository

import (
	"context"

	"paybridge/internal/domain"

	"gorm.io/gorm"
)

type CartRepository struct {
	db *gorm.DB
}

func NewCartRepository(db *gorm.DB) *CartRepository {
	return &CartRepository{db: db}
}

func (r *CartRepository) Create(ctx context.Context, c *domain.Cart) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *CartRepository) GetBySession(ctx context.Context, sessionID string) (*domain.Cart, error) {
	var c domain.Cart
	if err := r.db.WithContext(ctx).Preload("Items").Where("session_id = ?", sessionID).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// Clear empties the cart of a checkout session. Missing carts are not an error.
func (r *CartRepository) Clear(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sub := tx.Model(&domain.Cart{}).Select("id").Where("session_id = ?", sessionID)
		if err := tx.Where("cart_id IN (?)", sub).Delete(&domain.CartItem{}).Error; err != nil {
			return err
		}
		return tx.Where("session_id = ?", sessionID).Delete(&domain.Cart{}).Error
	})
}
