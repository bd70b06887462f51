package audit

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// WindowParams selects a slice of the timeline.
type WindowParams struct {
	From   time.Time
	To     time.Time
	Actor  string
	Entity string
	Action string
	Offset int
	Limit  int
}

// PGRepository reads audit_logs.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (p WindowParams) where() (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, strings.ReplaceAll(cond, "?", "$"+strconv.Itoa(len(args))))
	}
	if !p.From.IsZero() {
		add("a.occurred_at >= ?", p.From)
	}
	if !p.To.IsZero() {
		// inclusive of the whole end day
		add("a.occurred_at < ?", p.To.AddDate(0, 0, 1))
	}
	if p.Actor != "" {
		add("u.username ILIKE ?", "%"+p.Actor+"%")
	}
	if p.Entity != "" {
		add("a.entity = ?", p.Entity)
	}
	if p.Action != "" {
		add("a.action = ?", p.Action)
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// Window returns up to Limit rows after Offset, newest first. Limit 0 means all.
func (r *PGRepository) Window(ctx context.Context, p WindowParams) ([]TimelineRow, error) {
	where, args := p.where()
	sql := `SELECT a.occurred_at, COALESCE(u.username, 'system'), a.action, a.entity, a.entity_id, a.meta::text
FROM audit_logs a LEFT JOIN users u ON u.id = a.actor_id` + where + ` ORDER BY a.occurred_at DESC, a.id DESC`
	if p.Limit > 0 {
		args = append(args, p.Limit, p.Offset)
		sql += " LIMIT $" + strconv.Itoa(len(args)-1) + " OFFSET $" + strconv.Itoa(len(args))
	}
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (TimelineRow, error) {
		var t TimelineRow
		err := row.Scan(&t.At, &t.Actor, &t.Action, &t.Entity, &t.EntityID, &t.Meta)
		return t, err
	})
}
