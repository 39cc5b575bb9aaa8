package persistence

import (
	"context"

	"github.com/fieldops/backend/internal/domain/treasury"
	"github.com/fieldops/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormVaultRepository implements treasury.VaultRepository using GORM
type GormVaultRepository struct {
	db *gorm.DB
}

// NewGormVaultRepository creates a new GormVaultRepository
func NewGormVaultRepository(db *gorm.DB) *GormVaultRepository {
	return &GormVaultRepository{db: db}
}

// FindByID finds a vault by its ID
func (r *GormVaultRepository) FindByID(ctx context.Context, id uuid.UUID) (*treasury.Vault, error) {
	var model models.VaultModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "Vault")
	}
	return model.ToDomain(), nil
}

// FindByIDForUpdate finds a vault and locks its row
func (r *GormVaultRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*treasury.Vault, error) {
	var model models.VaultModel
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&model, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err, "Vault")
	}
	return model.ToDomain(), nil
}

// FindAll lists vaults matching the filter
func (r *GormVaultRepository) FindAll(ctx context.Context, filter treasury.VaultFilter) ([]treasury.Vault, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.VaultModel{})
	if filter.Type != nil {
		query = query.Where("type = ?", *filter.Type)
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		query = query.Where("name LIKE ? OR name_ar LIKE ?", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.VaultModel
	if err := paginate(query, filter.Filter, VaultSortFields, "name").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return vaultsToDomain(rows), total, nil
}

// ListAll returns every vault
func (r *GormVaultRepository) ListAll(ctx context.Context) ([]treasury.Vault, error) {
	var rows []models.VaultModel
	if err := r.db.WithContext(ctx).Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return vaultsToDomain(rows), nil
}

// Create inserts a vault
func (r *GormVaultRepository) Create(ctx context.Context, vault *treasury.Vault) error {
	var model models.VaultModel
	model.FromDomain(vault)
	return r.db.WithContext(ctx).Create(&model).Error
}

// Save writes the vault's mutable columns
func (r *GormVaultRepository) Save(ctx context.Context, vault *treasury.Vault) error {
	var model models.VaultModel
	model.FromDomain(vault)
	result := r.db.WithContext(ctx).
		Model(&models.VaultModel{}).
		Where("id = ?", vault.ID).
		Updates(map[string]any{
			"name":       model.Name,
			"name_ar":    model.NameAr,
			"type":       model.Type,
			"balance":    model.Balance,
			"is_active":  model.IsActive,
			"version":    model.Version,
			"updated_at": model.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return notFound(gorm.ErrRecordNotFound, "Vault")
	}
	return nil
}

func vaultsToDomain(rows []models.VaultModel) []treasury.Vault {
	vaults := make([]treasury.Vault, len(rows))
	for i := range rows {
		vaults[i] = *rows[i].ToDomain()
	}
	return vaults
}

// Ensure GormVaultRepository implements VaultRepository
var _ treasury.VaultRepository = (*GormVaultRepository)(nil)
