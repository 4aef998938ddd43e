// Package sched — подложка долговечного исполнения: WAL задач в Postgres,
// чекпоинты состояния и перезапускаемый пул воркеров. Оркестратор потребляет
// только контракт Starter/Timer/Checkpoints: исполнение минимум однажды,
// дедупликация по id задачи, отменяемые таймеры.
package sched

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// ErrDuplicate — по этому id уже есть активная задача. Так подложка
// гарантирует максимум один жизненный цикл на TradeIdentity.
var ErrDuplicate = errors.New("sched: task already active")

type Kind string

// Handler исполняет задачу одного вида. params — сырой JSON из WAL.
// Возврат nil завершает задачу; ошибка помечает её failed. Упавший процесс
// оставляет задачу active, и пул подхватит её после рестарта.
type Handler func(ctx context.Context, taskID string, params []byte) error

type Starter interface {
	Start(ctx context.Context, id string, kind Kind, params any) error
}

type Timer interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type Checkpoints interface {
	SaveState(ctx context.Context, taskID string, state any) error
	LoadState(ctx context.Context, taskID string, state any) (bool, error)
}

type TaskRow struct {
	ID     string
	Kind   Kind
	Params []byte
}

// Store — персистентная часть подложки.
type Store interface {
	InsertActive(ctx context.Context, id string, kind Kind, params []byte) error
	ListActive(ctx context.Context) ([]TaskRow, error)
	MarkDone(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error

	SaveCheckpoint(ctx context.Context, taskID string, state []byte) error
	LoadCheckpoint(ctx context.Context, taskID string) ([]byte, bool, error)
}
