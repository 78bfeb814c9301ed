package services

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/campreserv/ledger/internal/models"
)

// A cached CLOSED or LOCKED status can only over-reject, which fails safe. A
// cached OPEN status can accept postings into a period that just closed, so
// its cache life is kept to a few seconds.
const (
	periodCacheTTL     = 5 * time.Minute
	periodOpenCacheTTL = 5 * time.Second
)

// GLPeriodService is the read-side guard over gl_periods. Period close and
// lock transitions are owned by the accounting close workflow; the posting
// engine consults this guard before every write.
type GLPeriodService struct {
	db    *sql.DB
	redis *redis.Client
}

func NewGLPeriodService(db *sql.DB, redisClient *redis.Client) *GLPeriodService {
	return &GLPeriodService{db: db, redis: redisClient}
}

// Status returns the period status covering date for the tenant. A date not
// covered by any period row is treated as open.
func (ps *GLPeriodService) Status(ctx context.Context, tenantID string, date time.Time) (string, error) {
	day := date.Format("2006-01-02")
	cacheKey := fmt.Sprintf("gl_period:%s:%s", tenantID, day)

	if ps.redis != nil {
		if cached, err := ps.redis.Get(ctx, cacheKey).Result(); err == nil {
			return cached, nil
		}
	}

	var status string
	err := ps.db.QueryRowContext(ctx, `
		SELECT status FROM gl_periods
		WHERE tenant_id = $1 AND starts_on <= $2 AND ends_on >= $2
		ORDER BY starts_on DESC
		LIMIT 1`, tenantID, day).Scan(&status)
	if err == sql.ErrNoRows {
		status = models.PeriodOpen
	} else if err != nil {
		return "", fmt.Errorf("gl period lookup: %w", err)
	}

	if ps.redis != nil {
		ttl := periodCacheTTL
		if status == models.PeriodOpen {
			ttl = periodOpenCacheTTL
		}
		if err := ps.redis.Set(ctx, cacheKey, status, ttl).Err(); err != nil {
			log.Printf("[GL_PERIOD] Cache write failed for %s: %v", cacheKey, err)
		}
	}

	return status, nil
}

// IsOpen reports whether postings dated at date are accepted for the tenant.
func (ps *GLPeriodService) IsOpen(ctx context.Context, tenantID string, date time.Time) (bool, error) {
	status, err := ps.Status(ctx, tenantID, date)
	if err != nil {
		return false, err
	}
	return status == models.PeriodOpen, nil
}

// AssertOpen fails with a PeriodClosedError when the target date falls in a
// closed or locked period.
func (ps *GLPeriodService) AssertOpen(ctx context.Context, tenantID string, date time.Time) error {
	status, err := ps.Status(ctx, tenantID, date)
	if err != nil {
		return err
	}
	if status != models.PeriodOpen {
		return &PeriodClosedError{TenantID: tenantID, Date: date, Status: status}
	}
	return nil
}
