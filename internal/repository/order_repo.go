package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"paybridge/internal/domain"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrDuplicateReference  = errors.New("reference number already indexed")
	ErrReferenceAlreadySet = errors.New("order already has a payment reference")
)

type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// PaymentFinalization is the set of fields written when an order leaves
// pending. Empty fields are not written.
type PaymentFinalization struct {
	Status        domain.OrderStatus
	PaymentStatus string
	TransactionID string
	PaidTime      *time.Time
	AmountDetails datatypes.JSON
	Notes         []string
}

func (r *OrderRepository) Create(ctx context.Context, o *domain.Order) error {
	return r.db.WithContext(ctx).Create(o).Error
}

func (r *OrderRepository) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	var o domain.Order
	if err := r.db.WithContext(ctx).Preload("Items").First(&o, id).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *OrderRepository) GetWithNotes(ctx context.Context, id int64) (*domain.Order, error) {
	var o domain.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Notes", func(db *gorm.DB) *gorm.DB { return db.Order("id asc") }).
		First(&o, id).Error
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *OrderRepository) List(ctx context.Context, status domain.OrderStatus, limit, offset int) ([]domain.Order, int64, error) {
	q := r.db.WithContext(ctx).Model(&domain.Order{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var orders []domain.Order
	if err := q.Order("id desc").Limit(limit).Offset(offset).Find(&orders).Error; err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (r *OrderRepository) AddNote(ctx context.Context, orderID int64, note string) error {
	return r.db.WithContext(ctx).Create(&domain.OrderNote{OrderID: orderID, Note: note}).Error
}

// AddNoteIfPending appends a note only while the order is still pending.
// Touching the row first serialises the write with Finalize.
func (r *OrderRepository) AddNoteIfPending(ctx context.Context, orderID int64, note string) (bool, error) {
	var added bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.Order{}).
			Where("id = ? AND status = ?", orderID, domain.OrderPending).
			Update("updated_at", time.Now().UTC())
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		if err := tx.Create(&domain.OrderNote{OrderID: orderID, Note: note}).Error; err != nil {
			return err
		}
		added = true
		return nil
	})
	return added, err
}

// AttachReference indexes the processor reference and stamps it on the order.
// A reference is attached at most once per order.
func (r *OrderRepository) AttachReference(ctx context.Context, orderID int64, reference, redirectURL string, notes ...string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&domain.PaymentReference{ReferenceNumber: reference, OrderID: orderID}).Error; err != nil {
			if isUniqueConstraintError(err) {
				return fmt.Errorf("%w: %s", ErrDuplicateReference, reference)
			}
			return err
		}
		res := tx.Model(&domain.Order{}).
			Where("id = ? AND (reference_number = '' OR reference_number IS NULL)", orderID).
			Updates(map[string]interface{}{
				"reference_number": reference,
				"redirect_url":     redirectURL,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var existing int64
			if err := tx.Model(&domain.Order{}).Where("id = ?", orderID).Count(&existing).Error; err != nil {
				return err
			}
			if existing == 0 {
				return gorm.ErrRecordNotFound
			}
			return ErrReferenceAlreadySet
		}
		for _, n := range notes {
			if err := tx.Create(&domain.OrderNote{OrderID: orderID, Note: n}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// FindOrderByReference resolves a processor reference to a local order id.
func (r *OrderRepository) FindOrderByReference(ctx context.Context, reference string) (int64, error) {
	var ref domain.PaymentReference
	if err := r.db.WithContext(ctx).Where("reference_number = ?", reference).First(&ref).Error; err != nil {
		return 0, err
	}
	return ref.OrderID, nil
}

// Finalize moves a pending order to a terminal status. The conditional update
// is the only guard against double processing: it reports false when another
// writer already finalized the order.
func (r *OrderRepository) Finalize(ctx context.Context, orderID int64, f PaymentFinalization) (bool, error) {
	if !f.Status.IsTerminal() {
		return false, fmt.Errorf("finalize: %q is not a terminal status", f.Status)
	}
	var changed bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"status":     f.Status,
			"updated_at": time.Now().UTC(),
		}
		if f.PaymentStatus != "" {
			updates["payment_status"] = f.PaymentStatus
		}
		if f.TransactionID != "" {
			updates["transaction_id"] = f.TransactionID
		}
		if f.PaidTime != nil {
			updates["paid_time"] = *f.PaidTime
		}
		if len(f.AmountDetails) > 0 {
			updates["amount_details"] = f.AmountDetails
		}

		res := tx.Model(&domain.Order{}).
			Where("id = ? AND status = ?", orderID, domain.OrderPending).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var existing int64
			if err := tx.Model(&domain.Order{}).Where("id = ?", orderID).Count(&existing).Error; err != nil {
				return err
			}
			if existing == 0 {
				return gorm.ErrRecordNotFound
			}
			return nil
		}
		for _, n := range f.Notes {
			if err := tx.Create(&domain.OrderNote{OrderID: orderID, Note: n}).Error; err != nil {
				return err
			}
		}
		changed = true
		return nil
	})
	return changed, err
}

// ListStalePending returns pending orders that were sent to the processor but
// have not been reconciled since before cutoff.
func (r *OrderRepository) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]domain.Order, error) {
	var orders []domain.Order
	err := r.db.WithContext(ctx).
		Where("status = ? AND reference_number <> '' AND (transaction_id = '' OR transaction_id IS NULL) AND updated_at < ?", domain.OrderPending, cutoff).
		Order("updated_at asc").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}
