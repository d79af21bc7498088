package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mdtanrikulu/dnssec-oracle/config"
	"github.com/mdtanrikulu/dnssec-oracle/log"
)

type bindingEntry struct {
	Kind      string `gorm:"primaryKey"`
	Number    uint8  `gorm:"primaryKey;autoIncrement:false"`
	Handler   string
	UpdatedAt time.Time
}

func (bindingEntry) TableName() string {
	return "bindings"
}

type anchorSetEntry struct {
	Version   uint64 `gorm:"primaryKey;autoIncrement:false"`
	Records   string
	CreatedAt time.Time
}

func (anchorSetEntry) TableName() string {
	return "anchor_sets"
}

type auditEntry struct {
	ID     uint      `gorm:"primaryKey"`
	Time   time.Time `gorm:"index"`
	Actor  string    `gorm:"index"`
	Action string
	Target string
	Detail string
}

func (auditEntry) TableName() string {
	return "audit_trail"
}

// DatabaseStore persists the state in a SQL database
type DatabaseStore struct {
	db *gorm.DB
}

// NewDatabaseStore opens the database and migrates the schema
func NewDatabaseStore(ctx context.Context, target gorm.Dialector, cfg config.Store) (*DatabaseStore, error) {
	var db *gorm.DB

	err := connect(ctx, cfg, func() (err error) {
		db, err = gorm.Open(target, &gorm.Config{})

		return err
	})
	if err != nil {
		return nil, fmt.Errorf("can't create database connection: %w", err)
	}

	if db.Dialector.Name() == "sqlite" {
		// every connection to an in-memory sqlite database opens a new database
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}

		sqlDB.SetMaxOpenConns(1)
	}

	// Migrate the schema
	if err := db.AutoMigrate(&bindingEntry{}, &anchorSetEntry{}, &auditEntry{}); err != nil {
		return nil, fmt.Errorf("can't perform auto migration: %w", err)
	}

	log.PrefixedLog("store").Infof("using %s database", db.Dialector.Name())

	return &DatabaseStore{db: db}, nil
}

// SaveBinding implements `Store`
func (d *DatabaseStore) SaveBinding(ctx context.Context, b Binding) error {
	return d.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&bindingEntry{
			Kind:      b.Kind.String(),
			Number:    b.ID,
			Handler:   b.Handler,
			UpdatedAt: b.UpdatedAt,
		}).Error
}

// Bindings implements `Store`
func (d *DatabaseStore) Bindings(ctx context.Context, kind Kind) ([]Binding, error) {
	var entries []bindingEntry

	err := d.db.WithContext(ctx).
		Where("kind = ?", kind.String()).
		Order("number").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}

	res := make([]Binding, len(entries))
	for i, e := range entries {
		res[i] = Binding{Kind: kind, ID: e.Number, Handler: e.Handler, UpdatedAt: e.UpdatedAt}
	}

	return res, nil
}

// SaveAnchors implements `Store`
func (d *DatabaseStore) SaveAnchors(ctx context.Context, set AnchorSet) error {
	return d.db.WithContext(ctx).Create(&anchorSetEntry{
		Version:   set.Version,
		Records:   strings.Join(set.Records, "\n"),
		CreatedAt: set.CreatedAt,
	}).Error
}

// LatestAnchors implements `Store`
func (d *DatabaseStore) LatestAnchors(ctx context.Context) (*AnchorSet, error) {
	var entries []anchorSetEntry

	if err := d.db.WithContext(ctx).Order("version desc").Limit(1).Find(&entries).Error; err != nil {
		return nil, err
	}

	if len(entries) == 0 {
		return nil, nil
	}

	return &AnchorSet{
		Version:   entries[0].Version,
		Records:   strings.Split(entries[0].Records, "\n"),
		CreatedAt: entries[0].CreatedAt,
	}, nil
}

// Audit implements `Store`
func (d *DatabaseStore) Audit(ctx context.Context, entry AuditEntry) error {
	return d.db.WithContext(ctx).Create(&auditEntry{
		Time:   entry.Time,
		Actor:  entry.Actor,
		Action: entry.Action.String(),
		Target: entry.Target,
		Detail: entry.Detail,
	}).Error
}

// AuditTrail implements `Store`
func (d *DatabaseStore) AuditTrail(ctx context.Context, limit int) ([]AuditEntry, error) {
	var entries []auditEntry

	tx := d.db.WithContext(ctx).Order("id desc")
	if limit > 0 {
		tx = tx.Limit(limit)
	}

	if err := tx.Find(&entries).Error; err != nil {
		return nil, err
	}

	res := make([]AuditEntry, 0, len(entries))

	for _, e := range entries {
		action, err := ParseAction(e.Action)
		if err != nil {
			return nil, err
		}

		res = append(res, AuditEntry{
			Time:   e.Time,
			Actor:  e.Actor,
			Action: action,
			Target: e.Target,
			Detail: e.Detail,
		})
	}

	return res, nil
}

// Close implements `Store`
func (d *DatabaseStore) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}
