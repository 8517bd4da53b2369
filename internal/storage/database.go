/*
 * Copyright 2025 Sen Wang
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package storage

import (
	"context"
	"errors"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/artifact-registry/registryd/internal/types"
)

// DatabaseBackend implements Backend on a relational database. Single-key
// atomicity comes from row-level unique constraints and transactions.
type DatabaseBackend struct {
	config        DatabaseBackendConfig
	db            *gorm.DB
	storage       *databaseStorageMap
	global        *databaseGlobalMap
	artifactRules *databaseMultiMap
	globalRules   *databaseRuleMap
}

// NewDatabaseBackend creates a new database backend instance. If dbOverride
// is non-nil, it is used (for testing) and schema migration is skipped.
func NewDatabaseBackend(config DatabaseBackendConfig, dbOverride ...*gorm.DB) (*DatabaseBackend, error) {
	var db *gorm.DB
	var err error
	if len(dbOverride) > 0 && dbOverride[0] != nil {
		db = dbOverride[0]
	} else {
		db, err = gorm.Open(
			postgres.New(postgres.Config{
				DriverName: config.Driver,
				DSN:        config.ConnectionString,
			}),
			&gorm.Config{TranslateError: true},
		)
		if err != nil {
			return nil, err
		}

		// Set connection pool settings
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		if config.MaxConnections > 0 {
			sqlDB.SetMaxOpenConns(config.MaxConnections)
		}
		if config.MaxIdleTime > 0 {
			sqlDB.SetConnMaxIdleTime(time.Duration(config.MaxIdleTime) * time.Second)
		}

		if err := db.AutoMigrate(
			&ArtifactEntry{},
			&VersionEntry{},
			&GlobalEntry{},
			&ArtifactRuleEntry{},
			&GlobalRuleEntry{},
			&SequenceEntry{},
		); err != nil {
			return nil, err
		}
	}
	return &DatabaseBackend{
		config:        config,
		db:            db,
		storage:       &databaseStorageMap{db: db},
		global:        &databaseGlobalMap{db: db},
		artifactRules: &databaseMultiMap{db: db},
		globalRules:   &databaseRuleMap{db: db},
	}, nil
}

// Storage returns the content map
func (db *DatabaseBackend) Storage() StorageMap { return db.storage }

// Global returns the globalId index
func (db *DatabaseBackend) Global() GlobalMap { return db.global }

// ArtifactRules returns the per-artifact rule map
func (db *DatabaseBackend) ArtifactRules() MultiMap { return db.artifactRules }

// GlobalRules returns the global rule map
func (db *DatabaseBackend) GlobalRules() RuleMap { return db.globalRules }

// NextGlobalID increments and returns the sequence row in one statement
func (db *DatabaseBackend) NextGlobalID(ctx context.Context) (int64, error) {
	var value int64
	err := db.db.WithContext(ctx).Raw(
		`INSERT INTO sequence_entries (name, value) VALUES (?, 1)
		 ON CONFLICT (name) DO UPDATE SET value = sequence_entries.value + 1
		 RETURNING value`,
		globalIDSequence,
	).Scan(&value).Error
	if err != nil {
		return 0, err
	}
	return value, nil
}

// Close closes the underlying connection pool
func (db *DatabaseBackend) Close() error {
	sqlDB, err := db.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// HealthCheck pings the database
func (db *DatabaseBackend) HealthCheck(ctx context.Context) error {
	sqlDB, err := db.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// databaseStorageMap is the database-backed StorageMap
type databaseStorageMap struct {
	db *gorm.DB
}

func (m *databaseStorageMap) loadIndex(tx *gorm.DB, key types.ArtifactKey) (VersionIndex, error) {
	var rows []VersionEntry
	if err := tx.Where("group_id = ? AND artifact_id = ?", key.GroupID, key.ArtifactID).Find(&rows).Error; err != nil {
		return nil, err
	}
	index := make(VersionIndex, len(rows))
	for _, row := range rows {
		record, err := decodeRecord(row.Record)
		if err != nil {
			return nil, err
		}
		index[row.Version] = record
	}
	return index, nil
}

func (m *databaseStorageMap) Get(ctx context.Context, key types.ArtifactKey) (VersionIndex, error) {
	tx := m.db.WithContext(ctx)

	var count int64
	if err := tx.Model(&ArtifactEntry{}).
		Where("group_id = ? AND artifact_id = ?", key.GroupID, key.ArtifactID).
		Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}
	return m.loadIndex(tx, key)
}

func (m *databaseStorageMap) Compute(ctx context.Context, key types.ArtifactKey) (VersionIndex, error) {
	var index VersionIndex
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entry := ArtifactEntry{GroupID: key.GroupID, ArtifactID: key.ArtifactID}
		if err := tx.Where("group_id = ? AND artifact_id = ?", key.GroupID, key.ArtifactID).
			FirstOrCreate(&entry).Error; err != nil {
			return err
		}
		var err error
		index, err = m.loadIndex(tx, key)
		return err
	})
	if err != nil {
		return nil, err
	}
	return index, nil
}

func (m *databaseStorageMap) CreateVersion(ctx context.Context, key types.ArtifactKey, version int64, record types.VersionRecord) error {
	data, err := encodeRecord(record)
	if err != nil {
		return err
	}
	row := VersionEntry{
		GroupID:    key.GroupID,
		ArtifactID: key.ArtifactID,
		Version:    version,
		GlobalID:   record.GlobalID(),
		Record:     data,
	}
	err = m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entry := ArtifactEntry{GroupID: key.GroupID, ArtifactID: key.ArtifactID}
		if err := tx.Where("group_id = ? AND artifact_id = ?", key.GroupID, key.ArtifactID).
			FirstOrCreate(&entry).Error; err != nil {
			return err
		}
		return tx.Create(&row).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrVersionExists
	}
	return err
}

func (m *databaseStorageMap) putField(ctx context.Context, key types.ArtifactKey, version *int64, field, value string) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row VersionEntry
		query := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("group_id = ? AND artifact_id = ?", key.GroupID, key.ArtifactID)
		if version != nil {
			query = query.Where("version = ?", *version)
		} else {
			query = query.Order("version DESC")
		}
		if err := query.First(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				if version != nil {
					return ErrVersionAbsent
				}
				return ErrArtifactAbsent
			}
			return err
		}

		record, err := decodeRecord(row.Record)
		if err != nil {
			return err
		}
		record[field] = value
		data, err := encodeRecord(record)
		if err != nil {
			return err
		}
		return tx.Model(&VersionEntry{}).Where("id = ?", row.ID).Update("record", data).Error
	})
}

func (m *databaseStorageMap) Put(ctx context.Context, key types.ArtifactKey, field, value string) error {
	return m.putField(ctx, key, nil, field, value)
}

func (m *databaseStorageMap) PutVersion(ctx context.Context, key types.ArtifactKey, version int64, field, value string) error {
	return m.putField(ctx, key, &version, field, value)
}

func (m *databaseStorageMap) Remove(ctx context.Context, key types.ArtifactKey) (VersionIndex, error) {
	var index VersionIndex
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("group_id = ? AND artifact_id = ?", key.GroupID, key.ArtifactID).
			Delete(&ArtifactEntry{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		var err error
		index, err = m.loadIndex(tx, key)
		if err != nil {
			return err
		}
		return tx.Where("group_id = ? AND artifact_id = ?", key.GroupID, key.ArtifactID).
			Delete(&VersionEntry{}).Error
	})
	if err != nil {
		return nil, err
	}
	return index, nil
}

func (m *databaseStorageMap) RemoveVersion(ctx context.Context, key types.ArtifactKey, version int64) (int64, error) {
	var globalID int64
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row VersionEntry
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("group_id = ? AND artifact_id = ? AND version = ?", key.GroupID, key.ArtifactID, version).
			First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrVersionAbsent
		}
		if err != nil {
			return err
		}
		globalID = row.GlobalID
		return tx.Delete(&VersionEntry{}, row.ID).Error
	})
	if err != nil {
		return 0, err
	}
	return globalID, nil
}

func (m *databaseStorageMap) RemoveVersionField(ctx context.Context, key types.ArtifactKey, version int64, field string) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row VersionEntry
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("group_id = ? AND artifact_id = ? AND version = ?", key.GroupID, key.ArtifactID, version).
			First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrVersionAbsent
		}
		if err != nil {
			return err
		}

		record, err := decodeRecord(row.Record)
		if err != nil {
			return err
		}
		if _, present := record[field]; !present {
			return nil
		}
		delete(record, field)
		data, err := encodeRecord(record)
		if err != nil {
			return err
		}
		return tx.Model(&VersionEntry{}).Where("id = ?", row.ID).Update("record", data).Error
	})
}

func (m *databaseStorageMap) KeySet(ctx context.Context) ([]types.ArtifactKey, error) {
	var rows []ArtifactEntry
	if err := m.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	keys := make([]types.ArtifactKey, 0, len(rows))
	for _, row := range rows {
		keys = append(keys, types.ArtifactKey{GroupID: row.GroupID, ArtifactID: row.ArtifactID})
	}
	return keys, nil
}

// databaseGlobalMap is the database-backed globalId index
type databaseGlobalMap struct {
	db *gorm.DB
}

func (m *databaseGlobalMap) Get(ctx context.Context, globalID int64) (*TupleID, error) {
	var row GlobalEntry
	err := m.db.WithContext(ctx).Where("global_id = ?", globalID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &TupleID{GroupID: row.GroupID, ArtifactID: row.ArtifactID, Version: row.Version}, nil
}

func (m *databaseGlobalMap) Put(ctx context.Context, globalID int64, tuple TupleID) error {
	row := GlobalEntry{
		GlobalID:   globalID,
		GroupID:    tuple.GroupID,
		ArtifactID: tuple.ArtifactID,
		Version:    tuple.Version,
	}
	return m.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "global_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"group_id", "artifact_id", "version"}),
	}).Create(&row).Error
}

func (m *databaseGlobalMap) Remove(ctx context.Context, globalID int64) error {
	return m.db.WithContext(ctx).Where("global_id = ?", globalID).Delete(&GlobalEntry{}).Error
}

// databaseMultiMap is the database-backed per-artifact rule map
type databaseMultiMap struct {
	db *gorm.DB
}

func (m *databaseMultiMap) Get(ctx context.Context, key types.ArtifactKey, rule types.RuleType) (string, bool, error) {
	var row ArtifactRuleEntry
	err := m.db.WithContext(ctx).
		Where("group_id = ? AND artifact_id = ? AND rule = ?", key.GroupID, key.ArtifactID, string(rule)).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return row.Config, true, nil
}

func (m *databaseMultiMap) PutIfAbsent(ctx context.Context, key types.ArtifactKey, rule types.RuleType, value string) (string, bool, error) {
	var prev string
	var present bool
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row ArtifactRuleEntry
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("group_id = ? AND artifact_id = ? AND rule = ?", key.GroupID, key.ArtifactID, string(rule)).
			First(&row).Error
		if err == nil {
			prev, present = row.Config, true
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return tx.Create(&ArtifactRuleEntry{
			GroupID:    key.GroupID,
			ArtifactID: key.ArtifactID,
			Rule:       string(rule),
			Config:     value,
		}).Error
	})
	if err != nil {
		return "", false, err
	}
	return prev, present, nil
}

func (m *databaseMultiMap) PutIfPresent(ctx context.Context, key types.ArtifactKey, rule types.RuleType, value string) (string, bool, error) {
	var prev string
	var present bool
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row ArtifactRuleEntry
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("group_id = ? AND artifact_id = ? AND rule = ?", key.GroupID, key.ArtifactID, string(rule)).
			First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		prev, present = row.Config, true
		return tx.Model(&ArtifactRuleEntry{}).Where("id = ?", row.ID).Update("config", value).Error
	})
	if err != nil {
		return "", false, err
	}
	return prev, present, nil
}

func (m *databaseMultiMap) Remove(ctx context.Context, key types.ArtifactKey, rule types.RuleType) (string, bool, error) {
	var prev string
	var present bool
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row ArtifactRuleEntry
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("group_id = ? AND artifact_id = ? AND rule = ?", key.GroupID, key.ArtifactID, string(rule)).
			First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		prev, present = row.Config, true
		return tx.Delete(&ArtifactRuleEntry{}, row.ID).Error
	})
	if err != nil {
		return "", false, err
	}
	return prev, present, nil
}

func (m *databaseMultiMap) RemoveAll(ctx context.Context, key types.ArtifactKey) error {
	return m.db.WithContext(ctx).
		Where("group_id = ? AND artifact_id = ?", key.GroupID, key.ArtifactID).
		Delete(&ArtifactRuleEntry{}).Error
}

func (m *databaseMultiMap) Keys(ctx context.Context, key types.ArtifactKey) ([]types.RuleType, error) {
	var names []string
	err := m.db.WithContext(ctx).Model(&ArtifactRuleEntry{}).
		Where("group_id = ? AND artifact_id = ?", key.GroupID, key.ArtifactID).
		Pluck("rule", &names).Error
	if err != nil {
		return nil, err
	}
	rules := make([]types.RuleType, 0, len(names))
	for _, name := range names {
		rules = append(rules, types.RuleType(name))
	}
	return rules, nil
}

// databaseRuleMap is the database-backed global rule map
type databaseRuleMap struct {
	db *gorm.DB
}

func (m *databaseRuleMap) Get(ctx context.Context, rule types.RuleType) (string, bool, error) {
	var row GlobalRuleEntry
	err := m.db.WithContext(ctx).Where("rule = ?", string(rule)).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return row.Config, true, nil
}

func (m *databaseRuleMap) Put(ctx context.Context, rule types.RuleType, value string) error {
	row := GlobalRuleEntry{Rule: string(rule), Config: value}
	return m.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "rule"}},
		DoUpdates: clause.AssignmentColumns([]string{"config"}),
	}).Create(&row).Error
}

func (m *databaseRuleMap) PutIfAbsent(ctx context.Context, rule types.RuleType, value string) (string, bool, error) {
	var prev string
	var present bool
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row GlobalRuleEntry
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("rule = ?", string(rule)).First(&row).Error
		if err == nil {
			prev, present = row.Config, true
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return tx.Create(&GlobalRuleEntry{Rule: string(rule), Config: value}).Error
	})
	if err != nil {
		return "", false, err
	}
	return prev, present, nil
}

func (m *databaseRuleMap) ContainsKey(ctx context.Context, rule types.RuleType) (bool, error) {
	var count int64
	err := m.db.WithContext(ctx).Model(&GlobalRuleEntry{}).
		Where("rule = ?", string(rule)).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (m *databaseRuleMap) Remove(ctx context.Context, rule types.RuleType) (string, bool, error) {
	var prev string
	var present bool
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row GlobalRuleEntry
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("rule = ?", string(rule)).First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		prev, present = row.Config, true
		return tx.Delete(&GlobalRuleEntry{}, row.ID).Error
	})
	if err != nil {
		return "", false, err
	}
	return prev, present, nil
}

func (m *databaseRuleMap) Keys(ctx context.Context) ([]types.RuleType, error) {
	var names []string
	err := m.db.WithContext(ctx).Model(&GlobalRuleEntry{}).Pluck("rule", &names).Error
	if err != nil {
		return nil, err
	}
	rules := make([]types.RuleType, 0, len(names))
	for _, name := range names {
		rules = append(rules, types.RuleType(name))
	}
	return rules, nil
}

func (m *databaseRuleMap) Clear(ctx context.Context) error {
	return m.db.WithContext(ctx).Where("rule IS NOT NULL").Delete(&GlobalRuleEntry{}).Error
}
