package storage

import "time"

// DelegationModel is the at-rest form of a signed delegation. Subscriber is
// stored lower-cased and carries the unique key; an upsert on conflict
// rewrites the whole row.
type DelegationModel struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Subscriber string    `gorm:"column:subscriber;not null;uniqueIndex"`
	Delegate   string    `gorm:"column:delegate;not null"`
	Delegator  string    `gorm:"column:delegator;not null"`
	Authority  string    `gorm:"column:authority;not null"`
	Caveats    []byte    `gorm:"column:caveats;not null;default:'[]'"`
	Salt       string    `gorm:"column:salt;not null"`
	Signature  string    `gorm:"column:signature;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (DelegationModel) TableName() string { return "delegations" }

// PaymentAttemptModel records one processed payment group for the activity
// feed. SubscriptionIDs is a JSON array of the obligation ids in the batch.
type PaymentAttemptModel struct {
	ID              string     `gorm:"column:id;primaryKey"`
	Owner           string     `gorm:"column:owner;not null;index"`
	Subscriber      string     `gorm:"column:subscriber;not null;index"`
	SubscriptionIDs []byte     `gorm:"column:subscription_ids;not null;default:'[]'"`
	Status          string     `gorm:"column:status;not null;index"`
	UserOpHash      *string    `gorm:"column:user_op_hash"`
	TxHash          *string    `gorm:"column:tx_hash"`
	ErrorKind       *string    `gorm:"column:error_kind"`
	ErrorMessage    *string    `gorm:"column:error_message"`
	StartedAt       time.Time  `gorm:"column:started_at;not null;index"`
	CompletedAt     *time.Time `gorm:"column:completed_at"`
	CreatedAt       time.Time  `gorm:"column:created_at;autoCreateTime;index"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (PaymentAttemptModel) TableName() string { return "payment_attempts" }
