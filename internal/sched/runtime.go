package sched

import (
	"context"
	"sync"
	"time"

	"futures_bot/pkg/logger"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
)

// Runtime — пул воркеров поверх Store. Один процесс: дедупликация по id
// держится в памяти, персистентность — в WAL. После рестарта активные
// задачи подхватываются циклом poll.
type Runtime struct {
	store Store

	mu       sync.Mutex
	handlers map[Kind]Handler
	running  map[string]struct{}

	wg      sync.WaitGroup
	baseCtx context.Context
	cancel  context.CancelFunc
}

func NewRuntime(store Store) *Runtime {
	baseCtx, cancel := context.WithCancel(context.Background())
	return &Runtime{
		store:    store,
		handlers: make(map[Kind]Handler),
		running:  make(map[string]struct{}),
		baseCtx:  baseCtx,
		cancel:   cancel,
	}
}

func (r *Runtime) Register(kind Kind, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[kind] = h
}

// Start пишет задачу в WAL и сразу запускает её в пуле.
// Активный дубликат id — ErrDuplicate.
func (r *Runtime) Start(ctx context.Context, id string, kind Kind, params any) error {
	raw, err := sonic.Marshal(params)
	if err != nil {
		return errors.Wrap(err, "marshal task params")
	}
	if err := r.store.InsertActive(ctx, id, kind, raw); err != nil {
		return err
	}
	r.spawn(id, kind, raw)
	return nil
}

// Run — цикл подложки: подбирает активные задачи из WAL (после рестарта и
// от внешних диспатчеров) до отмены контекста.
func (r *Runtime) Run(ctx context.Context, pollInterval time.Duration) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		rows, err := r.store.ListActive(ctx)
		if err != nil {
			logger.Error("sched: list active tasks: %v", err)
		}
		for _, row := range rows {
			r.spawn(row.ID, row.Kind, row.Params)
		}

		select {
		case <-ctx.Done():
			return
		case <-r.baseCtx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Stop отменяет воркеров и дожидается их выхода.
func (r *Runtime) Stop() {
	r.cancel()
	r.wg.Wait()
}

func (r *Runtime) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.running)
}

func (r *Runtime) spawn(id string, kind Kind, params []byte) {
	r.mu.Lock()
	if _, ok := r.running[id]; ok {
		r.mu.Unlock()
		return
	}
	h, ok := r.handlers[kind]
	if !ok {
		r.mu.Unlock()
		logger.Error("sched: no handler for kind %q (task %s)", kind, id)
		return
	}
	r.running[id] = struct{}{}
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			r.mu.Lock()
			delete(r.running, id)
			r.mu.Unlock()
		}()

		// Контекст воркера не наследует poll-контекст: задача живёт
		// до собственного завершения или Stop().
		err := h(r.baseCtx, id, params)
		if err == context.Canceled || errors.Is(err, context.Canceled) {
			// Останов процесса: задача остаётся active и возобновится
			// с последнего чекпоинта после рестарта.
			return
		}

		// Статусы пишем уже вне контекста воркера.
		ctx, cancelMark := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelMark()

		if err != nil {
			logger.Error("sched: task %s failed: %v", id, err)
			if mErr := r.store.MarkFailed(ctx, id); mErr != nil {
				logger.Error("sched: mark failed %s: %v", id, mErr)
			}
			return
		}
		if mErr := r.store.MarkDone(ctx, id); mErr != nil {
			logger.Error("sched: mark done %s: %v", id, mErr)
		}
	}()
}

// Sleep — отменяемый таймер; компьют не держим, просыпаемся по дедлайну.
func (r *Runtime) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (r *Runtime) SaveState(ctx context.Context, taskID string, state any) error {
	raw, err := sonic.Marshal(state)
	if err != nil {
		return errors.Wrap(err, "marshal checkpoint")
	}
	return r.store.SaveCheckpoint(ctx, taskID, raw)
}

func (r *Runtime) LoadState(ctx context.Context, taskID string, state any) (bool, error) {
	raw, ok, err := r.store.LoadCheckpoint(ctx, taskID)
	if err != nil || !ok {
		return false, err
	}
	if err := sonic.Unmarshal(raw, state); err != nil {
		return false, errors.Wrap(err, "unmarshal checkpoint")
	}
	return true, nil
}
