package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/erp/bcsync/internal/domain/integration"
	"github.com/erp/bcsync/internal/domain/shared"
	"github.com/erp/bcsync/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// syncedModel is a pointer to a persistence model that maps to domain type T
type syncedModel[T any, M any] interface {
	*M
	ToDomain() *T
	FromDomain(*T)
}

// gormUpsertRepository implements integration.UpsertRepository for one model type.
// Rows are matched by external_id only.
type gormUpsertRepository[T any, M any, PM syncedModel[T, M]] struct {
	db *gorm.DB
}

// FindByExternalID returns shared.ErrNotFound when no row matches
func (r *gormUpsertRepository[T, M, PM]) FindByExternalID(ctx context.Context, externalID string) (*T, error) {
	var model M
	if err := r.db.WithContext(ctx).Where("external_id = ?", externalID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return PM(&model).ToDomain(), nil
}

// Create inserts the entity and writes the assigned id back into it
func (r *gormUpsertRepository[T, M, PM]) Create(ctx context.Context, entity *T) error {
	var model M
	PM(&model).FromDomain(entity)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return err
	}
	*entity = *PM(&model).ToDomain()
	return nil
}

// Update overwrites every mapped column of the row with the entity's id
func (r *gormUpsertRepository[T, M, PM]) Update(ctx context.Context, entity *T) error {
	var model M
	PM(&model).FromDomain(entity)
	res := r.db.WithContext(ctx).Model(&model).Select("*").Omit("id", "created_at").Updates(&model)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// count returns the number of stored rows
func (r *gormUpsertRepository[T, M, PM]) count(ctx context.Context) (int64, error) {
	var n int64
	var model M
	err := r.db.WithContext(ctx).Model(&model).Count(&n).Error
	return n, err
}

// GormItemRepository implements integration.ItemRepository
type GormItemRepository struct {
	gormUpsertRepository[integration.Item, models.ItemModel, *models.ItemModel]
}

// NewGormItemRepository creates a new GormItemRepository
func NewGormItemRepository(db *gorm.DB) *GormItemRepository {
	return &GormItemRepository{gormUpsertRepository[integration.Item, models.ItemModel, *models.ItemModel]{db: db}}
}

// Count returns the number of mirrored items
func (r *GormItemRepository) Count(ctx context.Context) (int64, error) {
	return r.count(ctx)
}

// GormPriceListRepository implements integration.PriceListRepository
type GormPriceListRepository struct {
	gormUpsertRepository[integration.PriceList, models.PriceListModel, *models.PriceListModel]
}

// NewGormPriceListRepository creates a new GormPriceListRepository
func NewGormPriceListRepository(db *gorm.DB) *GormPriceListRepository {
	return &GormPriceListRepository{gormUpsertRepository[integration.PriceList, models.PriceListModel, *models.PriceListModel]{db: db}}
}

// GormPriceListLineRepository implements integration.PriceListLineRepository
type GormPriceListLineRepository struct {
	gormUpsertRepository[integration.PriceListLine, models.PriceListLineModel, *models.PriceListLineModel]
}

// NewGormPriceListLineRepository creates a new GormPriceListLineRepository
func NewGormPriceListLineRepository(db *gorm.DB) *GormPriceListLineRepository {
	return &GormPriceListLineRepository{gormUpsertRepository[integration.PriceListLine, models.PriceListLineModel, *models.PriceListLineModel]{db: db}}
}

// FindByPriceList returns the lines of one local price list
func (r *GormPriceListLineRepository) FindByPriceList(ctx context.Context, priceListID string) ([]integration.PriceListLine, error) {
	var rows []models.PriceListLineModel
	if err := r.db.WithContext(ctx).
		Where("price_list_id = ?", priceListID).
		Order("external_id").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	lines := make([]integration.PriceListLine, 0, len(rows))
	for i := range rows {
		lines = append(lines, *rows[i].ToDomain())
	}
	return lines, nil
}

// GormCustomerRepository implements integration.CustomerRepository
type GormCustomerRepository struct {
	gormUpsertRepository[integration.Customer, models.CustomerModel, *models.CustomerModel]
}

// NewGormCustomerRepository creates a new GormCustomerRepository
func NewGormCustomerRepository(db *gorm.DB) *GormCustomerRepository {
	return &GormCustomerRepository{gormUpsertRepository[integration.Customer, models.CustomerModel, *models.CustomerModel]{db: db}}
}

// FindByPhoneNumber finds the customer a phone login belongs to.
// Spaces are ignored; the stored number must match otherwise exactly.
func (r *GormCustomerRepository) FindByPhoneNumber(ctx context.Context, phone string) (*integration.Customer, error) {
	phone = strings.ReplaceAll(phone, " ", "")
	if phone == "" {
		return nil, shared.NewDomainError("INVALID_PHONE", "Phone cannot be empty")
	}
	var model models.CustomerModel
	if err := r.db.WithContext(ctx).
		Where("REPLACE(phone_number, ' ', '') = ?", phone).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// GormSyncRunRepository implements integration.SyncRunRepository
type GormSyncRunRepository struct {
	db *gorm.DB
}

// NewGormSyncRunRepository creates a new GormSyncRunRepository
func NewGormSyncRunRepository(db *gorm.DB) *GormSyncRunRepository {
	return &GormSyncRunRepository{db: db}
}

// Save appends a run summary
func (r *GormSyncRunRepository) Save(ctx context.Context, run integration.SyncRun) error {
	var model models.SyncRunModel
	model.FromDomain(run)
	return r.db.WithContext(ctx).Create(&model).Error
}

// ListRecent returns the newest runs first
func (r *GormSyncRunRepository) ListRecent(ctx context.Context, limit int) ([]integration.SyncRun, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var rows []models.SyncRunModel
	if err := r.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	runs := make([]integration.SyncRun, 0, len(rows))
	for i := range rows {
		runs = append(runs, rows[i].ToDomain())
	}
	return runs, nil
}
