package repository

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/domain"
)

// Postgres error codes the store reacts to.
const (
	pgUniqueViolation = "23505"
	pgAdminShutdown   = "57P01"
	pgCannotConnect   = "57P03"
)

// translate maps a driver error onto the domain taxonomy. Errors it does not
// recognise are wrapped with op for context.
func translate(op string, err error) error {
	if err == nil {
		return nil
	}
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if isUnavailable(err) {
		return domain.NewStoreUnavailableError(fmt.Errorf("%s: %w", op, err))
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return domain.NewConflictError(fmt.Sprintf("%s: %s", op, pgErr.ConstraintName))
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.NewConflictError(op + ": duplicate key")
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isUnavailable(err error) bool {
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgAdminShutdown ||
			pgErr.Code == pgCannotConnect ||
			strings.HasPrefix(pgErr.Code, "08")
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return pgconn.SafeToRetry(err)
}
