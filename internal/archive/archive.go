package archive

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"main/internal/bus"
	"main/internal/schema"

	"github.com/yanun0323/logs"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultQueueSize = 1024

// Record is the reporting projection of an accepted order. Payload keeps
// the full JSON snapshot; the indexed columns exist for querying.
type Record struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement:false"`
	Tenant      string `gorm:"index"`
	OrderStatus int
	Payload     []byte
	UpdatedAt   time.Time
}

// TableName keeps the table name singular-free and explicit.
func (Record) TableName() string { return "order_archive" }

// Sink persists one archive record.
type Sink interface {
	Save(ctx context.Context, rec Record) error
}

// GormSink writes records through gorm with upsert-on-id semantics,
// mirroring the store's last-write-wins snapshots.
type GormSink struct {
	db *gorm.DB
}

// NewGormSink builds a sink and prepares the archive table.
func NewGormSink(db *gorm.DB) (*GormSink, error) {
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, err
	}
	return &GormSink{db: db}, nil
}

// Save upserts the record by order id.
func (s *GormSink) Save(ctx context.Context, rec Record) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(&rec).Error
}

// Archiver drains accepted orders from a bounded queue into the sink,
// off the ingestion path.
type Archiver struct {
	queue   *bus.Queue
	sink    Sink
	onDrop  func()
	wg      sync.WaitGroup
	started sync.Once
}

// Option defines archiver knobs.
type Option struct {
	// QueueSize caps buffered orders. Optional; default 1024.
	QueueSize int
	// OnDrop observes queue-overflow drops. Optional.
	OnDrop func()
}

// New builds an archiver over the given sink.
func New(sink Sink, option ...Option) *Archiver {
	var opt Option
	if len(option) != 0 {
		opt = option[0]
	}
	if opt.QueueSize <= 0 {
		opt.QueueSize = defaultQueueSize
	}
	return &Archiver{
		queue:  bus.NewQueue(opt.QueueSize),
		sink:   sink,
		onDrop: opt.OnDrop,
	}
}

// Publish hands an accepted order to the archive queue without blocking.
// Overflow drops the archive copy, never the ingestion path.
func (a *Archiver) Publish(order schema.Order) {
	if a == nil {
		return
	}
	if err := a.queue.TryPublish(bus.Event{Order: order.Clone()}); err != nil {
		logs.Warnf("archive drop order %d, err: %+v", order.ID, err)
		if a.onDrop != nil {
			a.onDrop()
		}
	}
}

// Start launches the drain loop. The loop exits once ctx is done or the
// queue is closed and drained.
func (a *Archiver) Start(ctx context.Context) {
	if a == nil {
		return
	}
	a.started.Do(func() {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.queue.Run(ctx, func(e bus.Event) {
				rec, err := toRecord(e.Order)
				if err != nil {
					logs.Errorf("archive encode order %d, err: %+v", e.Order.ID, err)
					return
				}
				if err := a.sink.Save(ctx, rec); err != nil {
					logs.Errorf("archive save order %d, err: %+v", e.Order.ID, err)
				}
			})
		}()
	})
}

// Close stops intake and waits for queued orders to drain.
func (a *Archiver) Close() {
	if a == nil {
		return
	}
	a.queue.Close()
	a.wg.Wait()
}

func toRecord(order schema.Order) (Record, error) {
	payload, err := json.Marshal(order)
	if err != nil {
		return Record{}, err
	}
	return Record{
		ID:          order.ID,
		Tenant:      order.Tenant,
		OrderStatus: order.OrderStatus,
		Payload:     payload,
		UpdatedAt:   time.Now().UTC(),
	}, nil
}
