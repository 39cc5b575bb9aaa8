package persistence

import (
	"context"

	"github.com/fieldops/backend/internal/domain/shared"
	"github.com/fieldops/backend/internal/domain/treasury"
	"github.com/fieldops/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormCustodyAccountRepository implements treasury.CustodyAccountRepository.
// Soft-deleted accounts are excluded by gorm.DeletedAt.
type GormCustodyAccountRepository struct {
	db *gorm.DB
}

// NewGormCustodyAccountRepository creates a new GormCustodyAccountRepository
func NewGormCustodyAccountRepository(db *gorm.DB) *GormCustodyAccountRepository {
	return &GormCustodyAccountRepository{db: db}
}

func errCustodyAlreadyExists() error {
	return shared.NewConflictError("CUSTODY_ALREADY_EXISTS", "User already has an active custody account")
}

// FindByID finds a custody account by its ID
func (r *GormCustodyAccountRepository) FindByID(ctx context.Context, id uuid.UUID) (*treasury.CustodyAccount, error) {
	var model models.CustodyAccountModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "Custody account")
	}
	return model.ToDomain(), nil
}

// FindByIDForUpdate finds a custody account and locks its row
func (r *GormCustodyAccountRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*treasury.CustodyAccount, error) {
	var model models.CustodyAccountModel
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&model, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err, "Custody account")
	}
	return model.ToDomain(), nil
}

// FindActiveByUser returns the user's active account
func (r *GormCustodyAccountRepository) FindActiveByUser(ctx context.Context, userID uuid.UUID) (*treasury.CustodyAccount, error) {
	var model models.CustodyAccountModel
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		First(&model).Error
	if err != nil {
		return nil, notFound(err, "Active custody account")
	}
	return model.ToDomain(), nil
}

// FindByUser returns the user's active account, or the most recently created one
func (r *GormCustodyAccountRepository) FindByUser(ctx context.Context, userID uuid.UUID) (*treasury.CustodyAccount, error) {
	var model models.CustodyAccountModel
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("is_active DESC").
		Order("created_at DESC").
		First(&model).Error
	if err != nil {
		return nil, notFound(err, "Custody account")
	}
	return model.ToDomain(), nil
}

// HasActiveForUser reports whether the user owns an active account other than excludeID
func (r *GormCustodyAccountRepository) HasActiveForUser(ctx context.Context, userID uuid.UUID, excludeID *uuid.UUID) (bool, error) {
	query := r.db.WithContext(ctx).
		Model(&models.CustodyAccountModel{}).
		Where("user_id = ? AND is_active = ?", userID, true)
	if excludeID != nil {
		query = query.Where("id <> ?", *excludeID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// FindAll lists custody accounts matching the filter
func (r *GormCustodyAccountRepository) FindAll(ctx context.Context, filter treasury.CustodyFilter) ([]treasury.CustodyAccount, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.CustodyAccountModel{})
	if filter.HolderType != nil {
		query = query.Where("holder_type = ?", *filter.HolderType)
	}
	if filter.TeamID != nil {
		query = query.Where("team_id = ?", *filter.TeamID)
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.CustodyAccountModel
	if err := paginate(query, filter.Filter, CustodySortFields, "created_at").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return custodyToDomain(rows), total, nil
}

// ListAll returns every undeleted custody account
func (r *GormCustodyAccountRepository) ListAll(ctx context.Context) ([]treasury.CustodyAccount, error) {
	var rows []models.CustodyAccountModel
	if err := r.db.WithContext(ctx).Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return custodyToDomain(rows), nil
}

// Create inserts the account. The partial unique index on user_id turns a
// concurrent second active account into CUSTODY_ALREADY_EXISTS.
func (r *GormCustodyAccountRepository) Create(ctx context.Context, account *treasury.CustodyAccount) error {
	var model models.CustodyAccountModel
	model.FromDomain(account)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		if isUniqueViolation(err) {
			return errCustodyAlreadyExists()
		}
		return err
	}
	return nil
}

// Save writes the account's mutable columns, including the soft-delete mark
func (r *GormCustodyAccountRepository) Save(ctx context.Context, account *treasury.CustodyAccount) error {
	var model models.CustodyAccountModel
	model.FromDomain(account)
	result := r.db.WithContext(ctx).
		Model(&models.CustodyAccountModel{}).
		Where("id = ?", account.ID).
		Updates(map[string]any{
			"holder_type": model.HolderType,
			"team_id":     model.TeamID,
			"balance":     model.Balance,
			"is_active":   model.IsActive,
			"deleted_at":  model.DeletedAt,
			"version":     model.Version,
			"updated_at":  model.UpdatedAt,
		})
	if result.Error != nil {
		if isUniqueViolation(result.Error) {
			return errCustodyAlreadyExists()
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		return notFound(gorm.ErrRecordNotFound, "Custody account")
	}
	return nil
}

func custodyToDomain(rows []models.CustodyAccountModel) []treasury.CustodyAccount {
	accounts := make([]treasury.CustodyAccount, len(rows))
	for i := range rows {
		accounts[i] = *rows[i].ToDomain()
	}
	return accounts
}

// Ensure GormCustodyAccountRepository implements CustodyAccountRepository
var _ treasury.CustodyAccountRepository = (*GormCustodyAccountRepository)(nil)
