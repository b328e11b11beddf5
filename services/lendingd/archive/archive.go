package archive

import (
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"lendchain/core/events"
	"lendchain/native/lending"
)

// EventRecord is one archived engine event. Addresses are stored in bech32
// form and large values as decimal strings so the rows stay greppable.
type EventRecord struct {
	ID           string `gorm:"primaryKey;size:36"`
	Type         string `gorm:"index;size:64"`
	Slot         uint64 `gorm:"index"`
	Market       string `gorm:"size:90"`
	Reserve      string `gorm:"size:90"`
	Obligation   string `gorm:"size:90"`
	Account      string `gorm:"size:90"`
	Amount       uint64
	ResultAmount uint64
	Detail       string `gorm:"size:256"`
	CreatedAt    time.Time
}

// Archive persists engine events to a local SQLite database. It implements
// events.Emitter so it slots into the engine's fan-out alongside the
// websocket hub.
type Archive struct {
	db    *gorm.DB
	clock func() uint64
}

// Open creates or migrates the archive database at path.
func Open(path string, clock func() uint64) (*Archive, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	if err := db.AutoMigrate(&EventRecord{}); err != nil {
		return nil, fmt.Errorf("migrate archive: %w", err)
	}
	if clock == nil {
		clock = func() uint64 { return 0 }
	}
	return &Archive{db: db, clock: clock}, nil
}

// Emit writes the event as a row. Insert failures are swallowed: the archive
// is an observer and must never fail an engine operation.
func (a *Archive) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	record := EventRecord{
		ID:        uuid.NewString(),
		Type:      evt.EventType(),
		Slot:      a.clock(),
		CreatedAt: time.Now().UTC(),
	}
	switch e := evt.(type) {
	case lending.MarketEvent:
		record.Market = e.Market.String()
		record.Account = e.Owner.String()
	case lending.ReserveEvent:
		record.Reserve = e.Reserve.String()
		record.Market = e.Market.String()
		record.Detail = e.MarketPrice
		record.Amount = e.AvailableAmount
	case lending.ObligationEvent:
		record.Obligation = e.Obligation.String()
		record.Account = e.Owner.String()
		record.Detail = fmt.Sprintf("deposited=%s borrowed=%s", e.DepositedValue, e.BorrowedValue)
	case lending.FlowEvent:
		record.Reserve = e.Reserve.String()
		if !e.Obligation.IsZero() {
			record.Obligation = e.Obligation.String()
		}
		record.Account = e.Account.String()
		record.Amount = e.Amount
		record.ResultAmount = e.ResultAmount
	}
	_ = a.db.Create(&record).Error
}

// Recent returns the newest events, capped at limit.
func (a *Archive) Recent(limit int) ([]EventRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var records []EventRecord
	err := a.db.Order("created_at desc").Limit(limit).Find(&records).Error
	return records, err
}

// ByObligation returns archived events touching one obligation.
func (a *Archive) ByObligation(obligation string, limit int) ([]EventRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var records []EventRecord
	err := a.db.Where("obligation = ?", obligation).
		Order("created_at desc").Limit(limit).Find(&records).Error
	return records, err
}

// Close releases the underlying database handle.
func (a *Archive) Close() error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
