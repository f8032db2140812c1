// Package sqlstore keeps the shared tables in SQLite through gorm. Each
// guarded write runs in one transaction on a single connection, so the
// compare and the write cannot interleave with another writer.
package sqlstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cp25sy5-modjot/ledger-service/internal/ports"
	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Row is one row of one sheet. Cells hold the JSON encoded string cells.
type Row struct {
	ID        uint   `gorm:"primaryKey"`
	Sheet     string `gorm:"index:idx_sheet_seq,priority:1;not null"`
	Seq       int64  `gorm:"index:idx_sheet_seq,priority:2;not null"`
	Cells     string `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Store struct {
	DB *gorm.DB
}

// Open connects to the SQLite database at dsn and migrates the schema.
func Open(dsn string) (*Store, error) {
	config := &gorm.Config{
		NowFunc: func() time.Time {
			return time.Now().In(time.UTC)
		},
		Logger: &logger{Logger: log.Logger},
	}

	db, err := gorm.Open(sqlite.Open(dsn), config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database object: %w", err)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)

	// One connection serializes transactions and avoids SQLITE_BUSY.
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(Row{}); err != nil {
		return nil, fmt.Errorf("error during DB migration: %w", err)
	}

	return &Store{DB: db}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Table returns the sheet with the given name. Sheets need no creation.
func (s *Store) Table(name string) *Table {
	return &Table{db: s.DB, name: name}
}

type Table struct {
	db   *gorm.DB
	name string
}

func (t *Table) Name() string { return t.name }

func (t *Table) ordered(tx *gorm.DB) *gorm.DB {
	return tx.Model(&Row{}).Where(&Row{Sheet: t.name}).Order("seq, id")
}

func (t *Table) Header(ctx context.Context) ([]string, error) {
	var r Row
	err := t.ordered(t.db.WithContext(ctx)).Take(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeCells(r.Cells)
}

func (t *Table) ReadAll(ctx context.Context) ([][]string, error) {
	var rows []Row
	if err := t.ordered(t.db.WithContext(ctx)).Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		cells, err := decodeCells(r.Cells)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", t.name, r.ID, err)
		}
		out = append(out, cells)
	}
	return out, nil
}

func (t *Table) Append(ctx context.Context, row []string) (int, error) {
	cells, err := json.Marshal(row)
	if err != nil {
		return 0, err
	}

	var pos int64
	err = t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var last struct{ Max int64 }
		if err := tx.Model(&Row{}).Where(&Row{Sheet: t.name}).Select("COALESCE(MAX(seq), 0) AS max").Scan(&last).Error; err != nil {
			return err
		}
		if err := tx.Model(&Row{}).Where(&Row{Sheet: t.name}).Count(&pos).Error; err != nil {
			return err
		}
		return tx.Create(&Row{Sheet: t.name, Seq: last.Max + 1, Cells: string(cells)}).Error
	})
	if err != nil {
		return 0, err
	}
	return int(pos), nil
}

func (t *Table) Update(ctx context.Context, pos int, expect, row []string) error {
	cells, err := json.Marshal(row)
	if err != nil {
		return err
	}
	return t.guarded(ctx, pos, expect, func(tx *gorm.DB, r *Row) error {
		return tx.Model(r).Update("cells", string(cells)).Error
	})
}

func (t *Table) Delete(ctx context.Context, pos int, expect []string) error {
	return t.guarded(ctx, pos, expect, func(tx *gorm.DB, r *Row) error {
		return tx.Delete(r).Error
	})
}

// guarded runs write on the row at pos inside a transaction, after checking
// the row still holds expect.
func (t *Table) guarded(ctx context.Context, pos int, expect []string, write func(*gorm.DB, *Row) error) error {
	if pos <= 0 {
		return fmt.Errorf("%s: position %d is not a data row", t.name, pos)
	}

	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var r Row
		err := t.ordered(tx).Offset(pos).Limit(1).Take(&r).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.ErrRowChanged
		}
		if err != nil {
			return err
		}

		cells, err := decodeCells(r.Cells)
		if err != nil {
			return err
		}
		if !ports.SameRow(cells, expect) {
			return ports.ErrRowChanged
		}
		return write(tx, &r)
	})
}

func decodeCells(s string) ([]string, error) {
	var cells []string
	if err := json.Unmarshal([]byte(s), &cells); err != nil {
		return nil, fmt.Errorf("invalid cells: %w", err)
	}
	return cells, nil
}
