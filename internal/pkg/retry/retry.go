package retry

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// backoffIntervals описывает интервалы ожидания между повторными попытками.
// Они короче типичного таймаута пробы, чтобы повтор укладывался в него.
var backoffIntervals = []time.Duration{200 * time.Millisecond, 500 * time.Millisecond, 1 * time.Second}

// IsRetriableNetError проверяет, является ли ошибка сетевой и «временной».
func IsRetriableNetError(err error) bool {
	var netErr net.Error
	if !errors.As(err, &netErr) {
		return false
	}
	if netErr.Timeout() {
		return true
	}
	lowerMsg := strings.ToLower(err.Error())
	if strings.Contains(lowerMsg, "connection refused") ||
		strings.Contains(lowerMsg, "connection reset") ||
		strings.Contains(lowerMsg, "network is unreachable") {
		return true
	}
	return false
}

// IsRetriablePGError проверяет, является ли ошибка PostgreSQL из категории "08" (Connection Exception)
// или "57P03" (cannot_connect_now, сервер ещё стартует).
func IsRetriablePGError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if len(pgErr.Code) >= 2 && pgErr.Code[:2] == "08" {
			return true
		}
		if pgErr.Code == "57P03" {
			return true
		}
	}
	return false
}

// IsRetriable reports whether err is worth another attempt.
func IsRetriable(err error) bool {
	return IsRetriableNetError(err) || IsRetriablePGError(err)
}

// DoWithRetry делает до len(backoffIntervals)+1 попыток вызвать fn().
// Ожидание между попытками прерывается отменой ctx; в этом случае
// возвращается последняя ошибка fn.
func DoWithRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	for i := 0; i <= len(backoffIntervals); i++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsRetriable(err) {
			return err
		}

		if i < len(backoffIntervals) {
			timer := time.NewTimer(backoffIntervals[i])
			select {
			case <-ctx.Done():
				timer.Stop()
				return lastErr
			case <-timer.C:
			}
		}
	}

	return lastErr
}
