package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/dhruv457457/AutoPay/pkg/types"
)

// sqlStore backs the Store interface with GORM over SQLite (local mode) or
// PostgreSQL. Both modes share the same model schema and upsert semantics.
type sqlStore struct {
	db *gorm.DB
}

func openSQLite(cfg LocalStorageConfig) (Store, error) {
	if dir := filepath.Dir(cfg.DatabasePath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	db, err := gorm.Open(sqlite.Open(cfg.DatabasePath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite database %s: %w", cfg.DatabasePath, err)
	}
	return newSQLStore(db)
}

func openPostgres(cfg PostgresStorageConfig) (Store, error) {
	dsn := cfg.DSN
	if dsn == "" {
		dsn = cfg.URL
	}
	if dsn == "" {
		sslMode := cfg.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		dsn = fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, sslMode)
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres database: %w", err)
	}
	return newSQLStore(db)
}

func newSQLStore(db *gorm.DB) (Store, error) {
	if err := db.AutoMigrate(&DelegationModel{}, &PaymentAttemptModel{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return &sqlStore{db: db}, nil
}

func (s *sqlStore) UpsertDelegation(ctx context.Context, subscriber string, d types.Delegation) (*types.StoredDelegation, error) {
	key, err := normalizeSubscriber(subscriber)
	if err != nil {
		return nil, err
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}

	model, err := delegationToModel(key, d)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "subscriber"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"delegate", "delegator", "authority", "caveats", "salt", "signature", "updated_at",
		}),
	}).Create(model).Error
	if err != nil {
		return nil, fmt.Errorf("upsert delegation: %w", err)
	}

	return s.GetDelegation(ctx, key)
}

func (s *sqlStore) GetDelegation(ctx context.Context, subscriber string) (*types.StoredDelegation, error) {
	key, err := normalizeSubscriber(subscriber)
	if err != nil {
		return nil, err
	}

	var model DelegationModel
	err = s.db.WithContext(ctx).Where("subscriber = ?", key).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &types.NotFoundError{Subscriber: key}
	}
	if err != nil {
		return nil, fmt.Errorf("get delegation: %w", err)
	}
	return modelToDelegation(&model)
}

func (s *sqlStore) ListDelegations(ctx context.Context) ([]*types.StoredDelegation, error) {
	var models []DelegationModel
	if err := s.db.WithContext(ctx).Order("updated_at DESC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("list delegations: %w", err)
	}
	out := make([]*types.StoredDelegation, 0, len(models))
	for i := range models {
		rec, err := modelToDelegation(&models[i])
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *sqlStore) DeleteDelegation(ctx context.Context, subscriber string) error {
	key, err := normalizeSubscriber(subscriber)
	if err != nil {
		return err
	}

	result := s.db.WithContext(ctx).Where("subscriber = ?", key).Delete(&DelegationModel{})
	if result.Error != nil {
		return fmt.Errorf("delete delegation: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return &types.NotFoundError{Subscriber: key}
	}
	return nil
}

func (s *sqlStore) CreatePaymentAttempt(ctx context.Context, attempt *types.PaymentAttempt) error {
	model, err := attemptToModel(attempt)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("create payment attempt: %w", err)
	}
	return nil
}

func (s *sqlStore) UpdatePaymentAttempt(ctx context.Context, attempt *types.PaymentAttempt) error {
	attempt.UpdatedAt = time.Now().UTC()
	model, err := attemptToModel(attempt)
	if err != nil {
		return err
	}
	result := s.db.WithContext(ctx).Model(&PaymentAttemptModel{}).Where("id = ?", model.ID).Updates(map[string]interface{}{
		"status":        model.Status,
		"user_op_hash":  model.UserOpHash,
		"tx_hash":       model.TxHash,
		"error_kind":    model.ErrorKind,
		"error_message": model.ErrorMessage,
		"completed_at":  model.CompletedAt,
		"updated_at":    model.UpdatedAt,
	})
	if result.Error != nil {
		return fmt.Errorf("update payment attempt: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("payment attempt %s not found", attempt.ID)
	}
	return nil
}

func (s *sqlStore) ListPaymentAttempts(ctx context.Context, filter types.AttemptFilter) ([]*types.PaymentAttempt, error) {
	query := s.db.WithContext(ctx).Model(&PaymentAttemptModel{})
	if filter.Subscriber != "" {
		query = query.Where("subscriber = ?", types.NormalizeAddress(filter.Subscriber))
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	query = query.Order("started_at DESC")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var models []PaymentAttemptModel
	if err := query.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("list payment attempts: %w", err)
	}
	out := make([]*types.PaymentAttempt, 0, len(models))
	for i := range models {
		attempt, err := modelToAttempt(&models[i])
		if err != nil {
			return nil, err
		}
		out = append(out, attempt)
	}
	return out, nil
}

func (s *sqlStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *sqlStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func delegationToModel(subscriber string, d types.Delegation) (*DelegationModel, error) {
	caveats := d.Caveats
	if caveats == nil {
		caveats = []types.Caveat{}
	}
	caveatsJSON, err := json.Marshal(caveats)
	if err != nil {
		return nil, fmt.Errorf("marshal caveats: %w", err)
	}
	authority := d.Authority
	if authority == "" {
		authority = types.RootAuthority
	}
	salt := d.Salt
	if salt == "" {
		salt = "0x"
	}
	return &DelegationModel{
		Subscriber: subscriber,
		Delegate:   types.NormalizeAddress(d.Delegate),
		Delegator:  types.NormalizeAddress(d.Delegator),
		Authority:  authority,
		Caveats:    caveatsJSON,
		Salt:       salt,
		Signature:  d.Signature,
	}, nil
}

func modelToDelegation(m *DelegationModel) (*types.StoredDelegation, error) {
	var caveats []types.Caveat
	if len(m.Caveats) > 0 {
		if err := json.Unmarshal(m.Caveats, &caveats); err != nil {
			return nil, fmt.Errorf("unmarshal caveats for %s: %w", m.Subscriber, err)
		}
	}
	return &types.StoredDelegation{
		Subscriber: m.Subscriber,
		Delegation: types.Delegation{
			Delegate:  m.Delegate,
			Delegator: m.Delegator,
			Authority: m.Authority,
			Caveats:   caveats,
			Salt:      m.Salt,
			Signature: m.Signature,
		},
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}, nil
}

func attemptToModel(a *types.PaymentAttempt) (*PaymentAttemptModel, error) {
	ids := a.SubscriptionIDs
	if ids == nil {
		ids = []string{}
	}
	idsJSON, err := json.Marshal(ids)
	if err != nil {
		return nil, fmt.Errorf("marshal subscription ids: %w", err)
	}
	return &PaymentAttemptModel{
		ID:              a.ID,
		Owner:           types.NormalizeAddress(a.Owner),
		Subscriber:      types.NormalizeAddress(a.Subscriber),
		SubscriptionIDs: idsJSON,
		Status:          a.Status,
		UserOpHash:      strPtrOrNil(a.UserOpHash),
		TxHash:          strPtrOrNil(a.TxHash),
		ErrorKind:       strPtrOrNil(a.ErrorKind),
		ErrorMessage:    strPtrOrNil(a.ErrorMessage),
		StartedAt:       a.StartedAt,
		CompletedAt:     a.CompletedAt,
		UpdatedAt:       a.UpdatedAt,
	}, nil
}

func modelToAttempt(m *PaymentAttemptModel) (*types.PaymentAttempt, error) {
	var ids []string
	if len(m.SubscriptionIDs) > 0 {
		if err := json.Unmarshal(m.SubscriptionIDs, &ids); err != nil {
			return nil, fmt.Errorf("unmarshal subscription ids for attempt %s: %w", m.ID, err)
		}
	}
	return &types.PaymentAttempt{
		ID:              m.ID,
		Owner:           m.Owner,
		Subscriber:      m.Subscriber,
		SubscriptionIDs: ids,
		Status:          m.Status,
		UserOpHash:      strOrEmpty(m.UserOpHash),
		TxHash:          strOrEmpty(m.TxHash),
		ErrorKind:       strOrEmpty(m.ErrorKind),
		ErrorMessage:    strOrEmpty(m.ErrorMessage),
		StartedAt:       m.StartedAt,
		CompletedAt:     m.CompletedAt,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}, nil
}

func strPtrOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
