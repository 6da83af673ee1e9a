package repository

import (
	"context"
	"strings"

	"messiahverse/internal/cache"
	"messiahverse/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserRepository defines the interface for user data operations.
// String-ID lookups resolve through the user_aliases table, so callers
// never need to know whether an identifier is a public ID or a
// provider-scoped one.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByAnyID(ctx context.Context, alias string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	Exists(ctx context.Context, id uint) (bool, error)

	UpsertAccount(ctx context.Context, account *models.Account) error
	CreateSession(ctx context.Context, session *models.Session) error
	DeleteSessionByTokenID(ctx context.Context, tokenID string) error

	DeleteSessions(ctx context.Context, userID uint) error
	DeleteAccounts(ctx context.Context, userID uint) error
	DeleteAliases(ctx context.Context, userID uint) error
	DeleteUser(ctx context.Context, userID uint) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// aliasesFor builds the alias rows written for a user: the public ID and
// the provider-scoped ID. Written at create/update time so reads stay a
// single indexed lookup.
func aliasesFor(user *models.User) []models.UserAlias {
	aliases := []models.UserAlias{
		{Alias: user.PublicID, UserID: user.ID},
	}
	if user.ProviderID != "" {
		aliases = append(aliases, models.UserAlias{Alias: user.ProviderID, UserID: user.ID})
	}
	return aliases
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(aliasesFor(user)).Error
	})
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByAnyID resolves any known string identifier to its user.
func (r *userRepository) GetByAnyID(ctx context.Context, alias string) (*models.User, error) {
	alias = strings.TrimSpace(alias)
	var row models.UserAlias
	if err := r.db.WithContext(ctx).First(&row, "alias = ?", alias).Error; err != nil {
		return nil, err
	}
	return r.GetByID(ctx, row.UserID)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "email = ?", email).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// profileAliases returns every string identifier the user can currently be
// looked up by. Anonymous profile reads cache under the alias that appeared
// in the URL, so invalidation has to cover all of them.
func (r *userRepository) profileAliases(ctx context.Context, userID uint) []string {
	var aliases []string
	r.db.WithContext(ctx).
		Model(&models.UserAlias{}).
		Where("user_id = ?", userID).
		Pluck("alias", &aliases)
	return aliases
}

func invalidateProfiles(ctx context.Context, aliases ...string) {
	for _, alias := range aliases {
		if alias != "" {
			cache.InvalidateProfile(ctx, alias)
		}
	}
}

func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(user).Error; err != nil {
			return err
		}
		// Provider ID can appear after the first sign-in; keep aliases current.
		return tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(aliasesFor(user)).Error
	})
	if err == nil {
		invalidateProfiles(ctx, append(r.profileAliases(ctx, user.ID),
			user.PublicID, user.ProviderID)...)
	}
	return err
}

func (r *userRepository) Exists(ctx context.Context, id uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Count(&count).Error
	return count > 0, err
}

func (r *userRepository) UpsertAccount(ctx context.Context, account *models.Account) error {
	var existing models.Account
	err := r.db.WithContext(ctx).
		First(&existing, "provider = ? AND provider_account_id = ?", account.Provider, account.ProviderAccountID).Error
	if err == nil {
		account.ID = existing.ID
		return nil
	}
	if err != gorm.ErrRecordNotFound {
		return err
	}
	return r.db.WithContext(ctx).Create(account).Error
}

func (r *userRepository) CreateSession(ctx context.Context, session *models.Session) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *userRepository) DeleteSessionByTokenID(ctx context.Context, tokenID string) error {
	return r.db.WithContext(ctx).
		Where("token_id = ?", tokenID).
		Delete(&models.Session{}).Error
}

func (r *userRepository) DeleteSessions(ctx context.Context, userID uint) error {
	return r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&models.Session{}).Error
}

func (r *userRepository) DeleteAccounts(ctx context.Context, userID uint) error {
	return r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&models.Account{}).Error
}

func (r *userRepository) DeleteAliases(ctx context.Context, userID uint) error {
	// Capture the alias strings before the rows go; cached profiles keyed
	// by them must not outlive the account.
	aliases := r.profileAliases(ctx, userID)
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&models.UserAlias{}).Error
	if err == nil {
		invalidateProfiles(ctx, aliases...)
	}
	return err
}

func (r *userRepository) DeleteUser(ctx context.Context, userID uint) error {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Delete(&models.User{}, userID).Error; err != nil {
		return err
	}
	invalidateProfiles(ctx, append(r.profileAliases(ctx, userID),
		user.PublicID, user.ProviderID)...)
	return nil
}
