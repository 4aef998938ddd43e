package lifecycle

import (
	"context"
	"fmt"
	"time"

	"futures_bot/internal/models"
	"futures_bot/pkg/logger"
)

const backoffBase = 250 * time.Millisecond

// Policy — ограниченный ретрай транзиентных ошибок биржи.
// Критичные шаги (плечо, вход) ходят с fail-fast политикой, шаги внутри
// итерации управления — с короткой: итерация и так самовосстанавливается.
type Policy struct {
	MaxAttempts int
	MaxInterval time.Duration
}

var (
	fastPolicy   = Policy{MaxAttempts: 10, MaxInterval: 2 * time.Second}
	loosePolicy  = Policy{MaxAttempts: 3, MaxInterval: 2 * time.Second}
	cancelPolicy = Policy{MaxAttempts: 5, MaxInterval: 2 * time.Second}
)

// Transient — лимиты запросов и рассинхрон часов; всё остальное ретраем
// не лечится и отдаётся вызывающему сразу.
func Transient(err error) bool {
	switch models.Code(err) {
	case models.CodeRateLimited, models.CodeClockDrift:
		return true
	}
	return false
}

func (p Policy) Do(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if attempt > 0 {
			logger.Info("%s: transient error, retry %d/%d: %v", op, attempt, p.MaxAttempts-1, err)
			t := time.NewTimer(backoff(attempt, p.MaxInterval))
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}

		if err = fn(); err == nil {
			return nil
		}
		if !Transient(err) {
			return err
		}
	}
	return fmt.Errorf("%s: %d attempts exhausted: %w", op, p.MaxAttempts, err)
}

// backoff — экспонента от базы, с потолком max.
func backoff(attempt int, max time.Duration) time.Duration {
	if attempt < 1 {
		return backoffBase
	}
	if attempt > 20 {
		return max
	}
	d := backoffBase * time.Duration(1<<(attempt-1))
	if d > max {
		return max
	}
	return d
}
