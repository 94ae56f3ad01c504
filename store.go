package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// MemberRecord links a Discord account to an osu! account. Both ids are
// unique across the table; the indexes are what make concurrent duplicate
// registrations fail at commit time instead of racing past the lookup.
// RoleLabel is a snapshot taken at registration and is not kept in sync
// with the member's roles afterward.
type MemberRecord struct {
	DiscordID string    `gorm:"primaryKey" json:"discord_id"`
	OsuID     string    `gorm:"uniqueIndex;not null" json:"osu_id"`
	Username  string    `json:"username"`
	RoleLabel string    `json:"role_label"`
	CreatedAt time.Time `json:"registered_at"`
}

var errDuplicateKey = errors.New("duplicate key")

type memberStore struct {
	db *gorm.DB
}

func openMemberStore(path string) (*memberStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Discard,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open member store: %w", err)
	}
	if err := db.AutoMigrate(&MemberRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate member store: %w", err)
	}
	return &memberStore{db: db}, nil
}

// findByEither returns any record holding discordID as its Discord id or
// osuID as its osu! id, or nil when no such record exists.
func (s *memberStore) findByEither(ctx context.Context, discordID, osuID string) (*MemberRecord, error) {
	var rec MemberRecord
	err := s.db.WithContext(ctx).Where("discord_id = ? OR osu_id = ?", discordID, osuID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, &PersistenceError{Op: "lookup", Err: err}
	}
	return &rec, nil
}

func (s *memberStore) insert(ctx context.Context, rec *MemberRecord) error {
	err := s.db.WithContext(ctx).Create(rec).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return errDuplicateKey
	}
	if err != nil {
		return &PersistenceError{Op: "insert", Err: err}
	}
	return nil
}

func (s *memberStore) delete(ctx context.Context, discordID string) error {
	res := s.db.WithContext(ctx).Delete(&MemberRecord{}, "discord_id = ?", discordID)
	if res.Error != nil {
		return &PersistenceError{Op: "delete", Err: res.Error}
	}
	if res.RowsAffected == 0 {
		return ErrNotRegistered
	}
	return nil
}

func (s *memberStore) all(ctx context.Context) ([]MemberRecord, error) {
	var recs []MemberRecord
	if err := s.db.WithContext(ctx).Order("created_at").Find(&recs).Error; err != nil {
		return nil, &PersistenceError{Op: "list", Err: err}
	}
	return recs, nil
}
