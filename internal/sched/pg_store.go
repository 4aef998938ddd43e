package sched

import (
	"context"
	"futures_bot/pkg/db"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

type PgStore struct {
	db db.TxManager
}

func NewPgStore(m db.TxManager) *PgStore {
	return &PgStore{db: m}
}

// InsertActive кладёт задачу в WAL. Повторный запуск поверх активной —
// ErrDuplicate; поверх завершённой — задача переактивируется с новыми params.
func (s *PgStore) InsertActive(ctx context.Context, id string, kind Kind, params []byte) (err error) {
	return s.db.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		var status string
		err := tx.QueryRow(ctxTx,
			`SELECT status FROM sched_tasks WHERE id = $1 FOR UPDATE`, id,
		).Scan(&status)

		switch {
		case err == pgx.ErrNoRows:
			_, err = tx.Exec(ctxTx,
				`INSERT INTO sched_tasks (id, kind, params, status) VALUES ($1, $2, $3, 'active')`,
				id, string(kind), params,
			)
			return errors.Wrap(err, "insert task")
		case err != nil:
			return errors.Wrap(err, "select task")
		}

		if status == "active" {
			return ErrDuplicate
		}

		_, err = tx.Exec(ctxTx,
			`UPDATE sched_tasks SET kind = $2, params = $3, status = 'active', updated_at = now() WHERE id = $1`,
			id, string(kind), params,
		)
		if err != nil {
			return errors.Wrap(err, "reactivate task")
		}
		// Чекпоинт прошлой жизни этого id больше не актуален.
		_, err = tx.Exec(ctxTx, `DELETE FROM sched_checkpoints WHERE task_id = $1`, id)
		return errors.Wrap(err, "clear stale checkpoint")
	})
}

func (s *PgStore) ListActive(ctx context.Context) ([]TaskRow, error) {
	rows, err := s.db.Conn().Query(ctx,
		`SELECT id, kind, params FROM sched_tasks WHERE status = 'active' ORDER BY created_at`,
	)
	if err != nil {
		return nil, errors.Wrap(err, "list active tasks")
	}
	defer rows.Close()

	var out []TaskRow
	for rows.Next() {
		var t TaskRow
		var kind string
		if err := rows.Scan(&t.ID, &kind, &t.Params); err != nil {
			return nil, errors.Wrap(err, "scan task row")
		}
		t.Kind = Kind(kind)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *PgStore) MarkDone(ctx context.Context, id string) error {
	return s.setStatus(ctx, id, "done")
}

func (s *PgStore) MarkFailed(ctx context.Context, id string) error {
	return s.setStatus(ctx, id, "failed")
}

func (s *PgStore) setStatus(ctx context.Context, id, status string) error {
	return s.db.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctxTx,
			`UPDATE sched_tasks SET status = $2, updated_at = now() WHERE id = $1`,
			id, status,
		)
		if err != nil {
			return errors.Wrapf(err, "mark task %s", status)
		}
		_, err = tx.Exec(ctxTx, `DELETE FROM sched_checkpoints WHERE task_id = $1`, id)
		return errors.Wrap(err, "clear checkpoint")
	})
}

func (s *PgStore) SaveCheckpoint(ctx context.Context, taskID string, state []byte) error {
	_, err := s.db.Conn().Exec(ctx,
		`INSERT INTO sched_checkpoints (task_id, state, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (task_id) DO UPDATE SET state = EXCLUDED.state, updated_at = now()`,
		taskID, state,
	)
	return errors.Wrap(err, "save checkpoint")
}

func (s *PgStore) LoadCheckpoint(ctx context.Context, taskID string) ([]byte, bool, error) {
	var state []byte
	err := s.db.Conn().QueryRow(ctx,
		`SELECT state FROM sched_checkpoints WHERE task_id = $1`, taskID,
	).Scan(&state)
	if err == pgx.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "load checkpoint")
	}
	return state, true, nil
}
