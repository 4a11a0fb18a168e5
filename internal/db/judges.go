package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"ai-judge/internal/evaluation"
)

const judgeColumns = `id, name, system_prompt, model_name, active, created_at`

func (s *Store) CreateJudge(ctx context.Context, j evaluation.Judge) (*evaluation.Judge, error) {
	var r judgeRow
	err := s.db.GetContext(ctx, &r, `
		insert into judges(name, system_prompt, model_name, active)
		values($1,$2,$3,$4) returning `+judgeColumns,
		j.Name, j.SystemPrompt, j.ModelName, j.Active)
	if err != nil {
		return nil, translate(err)
	}
	out := r.domain()
	return &out, nil
}

// UpsertJudge creates j or overwrites the judge with the same name.
func (s *Store) UpsertJudge(ctx context.Context, j evaluation.Judge) (*evaluation.Judge, error) {
	var r judgeRow
	err := s.db.GetContext(ctx, &r, `
		insert into judges(name, system_prompt, model_name, active)
		values($1,$2,$3,$4)
		on conflict (name) do update set
		  system_prompt = excluded.system_prompt,
		  model_name = excluded.model_name,
		  active = excluded.active
		returning `+judgeColumns,
		j.Name, j.SystemPrompt, j.ModelName, j.Active)
	if err != nil {
		return nil, translate(err)
	}
	if !r.Active {
		if _, err := s.db.ExecContext(ctx, `delete from judge_assignments where judge_id=$1`, r.ID); err != nil {
			return nil, err
		}
	}
	out := r.domain()
	return &out, nil
}

func (s *Store) ListJudges(ctx context.Context) ([]evaluation.Judge, error) {
	var rows []judgeRow
	if err := s.db.SelectContext(ctx, &rows, `select `+judgeColumns+` from judges order by created_at desc, id desc`); err != nil {
		return nil, err
	}
	out := make([]evaluation.Judge, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.domain())
	}
	return out, nil
}

func (s *Store) GetJudge(ctx context.Context, id int64) (*evaluation.Judge, error) {
	var r judgeRow
	err := s.db.GetContext(ctx, &r, `select `+judgeColumns+` from judges where id=$1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("judge %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	out := r.domain()
	return &out, nil
}

// UpdateJudge applies p. Deactivating a judge deletes its assignments in
// the same transaction.
func (s *Store) UpdateJudge(ctx context.Context, id int64, p JudgePatch) (*evaluation.Judge, error) {
	var r judgeRow
	err := WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var sets []string
		var args []any
		set := func(col string, v any) {
			args = append(args, v)
			sets = append(sets, fmt.Sprintf("%s=$%d", col, len(args)))
		}
		if p.Name != nil {
			set("name", *p.Name)
		}
		if p.SystemPrompt != nil {
			set("system_prompt", *p.SystemPrompt)
		}
		if p.ModelName != nil {
			set("model_name", *p.ModelName)
		}
		if p.Active != nil {
			set("active", *p.Active)
		}

		var err error
		if p.empty() {
			err = tx.GetContext(ctx, &r, `select `+judgeColumns+` from judges where id=$1`, id)
		} else {
			args = append(args, id)
			err = tx.GetContext(ctx, &r,
				fmt.Sprintf(`update judges set %s where id=$%d returning %s`, strings.Join(sets, ", "), len(args), judgeColumns),
				args...)
		}
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("judge %d: %w", id, ErrNotFound)
		}
		if err != nil {
			return translate(err)
		}

		if p.Active != nil && !*p.Active {
			if _, err := tx.ExecContext(ctx, `delete from judge_assignments where judge_id=$1`, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := r.domain()
	return &out, nil
}

// DeleteJudge removes the judge. Its assignments and evaluations go with it.
func (s *Store) DeleteJudge(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `delete from judges where id=$1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("judge %d: %w", id, ErrNotFound)
	}
	return nil
}
