package models

import (
	"database/sql/driver"
	"time"
)

// PrintJobStatus represents the lifecycle state of a queued print job
type PrintJobStatus string

const (
	PrintJobPending   PrintJobStatus = "pending"
	PrintJobDelivered PrintJobStatus = "delivered"
	PrintJobAbandoned PrintJobStatus = "abandoned"
)

func (s PrintJobStatus) String() string {
	return string(s)
}

func (s *PrintJobStatus) Scan(value interface{}) error {
	*s = PrintJobStatus(value.(string))
	return nil
}

func (s PrintJobStatus) Value() (driver.Value, error) {
	return string(s), nil
}

// PrintJob is a receipt that could not be delivered to any printer and
// is waiting for a later delivery attempt
type PrintJob struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	JobID       string         `gorm:"uniqueIndex;not null" json:"job_id"`
	OrderID     uint           `gorm:"index" json:"order_id"`
	Payload     []byte         `gorm:"type:blob" json:"-"`
	PlainText   bool           `json:"plain_text"`
	Attempts    int            `gorm:"default:0" json:"attempts"`
	Status      PrintJobStatus `gorm:"index;default:pending" json:"status"`
	LastError   string         `json:"last_error,omitempty"`
	EnqueuedAt  time.Time      `json:"enqueued_at"`
	DeliveredAt *time.Time     `json:"delivered_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// PrintResult describes the outcome of a print request. Success only
// means the receipt left through some channel (or was queued); Method
// tells the caller which one.
type PrintResult struct {
	Success     bool     `json:"success"`
	Method      string   `json:"method"`
	Message     string   `json:"message,omitempty"`
	Filename    string   `json:"filename,omitempty"`
	Attempts    int      `json:"attempts,omitempty"`
	Queued      bool     `json:"queued,omitempty"`
	JobID       string   `json:"job_id,omitempty"`
	Diagnostics []string `json:"diagnostics,omitempty"`
	Error       string   `json:"error,omitempty"`
}
