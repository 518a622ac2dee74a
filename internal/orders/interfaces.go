package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bookmarket-io/bookmarket-backend/pkg/db/models"
	"github.com/bookmarket-io/bookmarket-backend/pkg/pagination"
)

// Repository defines persistence operations for orders and their items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	NextOrderNumber(ctx context.Context) (int64, error)
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	Find(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params, filters ListFilters) (*OrderList, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	FindPendingBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error)
}
