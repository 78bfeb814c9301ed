package models

import (
	"time"
)

// GL period statuses. Transitions are owned by the accounting close workflow;
// this service only ever reads them.
const (
	PeriodOpen   = "OPEN"
	PeriodClosed = "CLOSED"
	PeriodLocked = "LOCKED"
)

type GLPeriod struct {
	ID       string    `json:"id" db:"id"`
	TenantID string    `json:"tenant_id" db:"tenant_id"`
	StartsOn time.Time `json:"starts_on" db:"starts_on"`
	EndsOn   time.Time `json:"ends_on" db:"ends_on"`
	Status   string    `json:"status" db:"status"`
}
