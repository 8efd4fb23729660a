package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true. If Postgres is down the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search executes a UNION ALL query across projects and orders using
// plainto_tsquery and ts_rank, with ts_headline for snippets. The vectors are
// computed on the fly; both tables are small enough that a generated column
// is not worth the migration.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	tsQuery := "plainto_tsquery('english', $1)"
	args := []any{q.Text}
	argN := 2

	var subQueries []string

	// Projects sub-query
	if q.FilterType == "" || q.FilterType == ResultProject {
		projVector := "to_tsvector('english', p.name)"
		projWhere := projVector + " @@ " + tsQuery
		if q.FilterOwnerID != "" {
			projWhere += fmt.Sprintf(" AND p.owner_id = $%d", argN)
			args = append(args, q.FilterOwnerID)
			argN++
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'project'::text AS type, p.id, p.name AS title,
				ts_headline('english', p.name, %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				p.owner_id,
				''::text AS status,
				ts_rank(%s, %s) AS rank
			FROM projects p
			WHERE %s`, tsQuery, projVector, tsQuery, projWhere))
	}

	// Orders sub-query
	if q.FilterType == "" || q.FilterType == ResultOrder {
		orderVector := "to_tsvector('english', o.contact_name || ' ' || o.contact_email || ' ' || o.selected_template)"
		orderWhere := orderVector + " @@ " + tsQuery
		if q.FilterStatus != "" {
			orderWhere += fmt.Sprintf(" AND o.status = $%d", argN)
			args = append(args, q.FilterStatus)
			argN++
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'order'::text AS type, o.id, o.contact_name AS title,
				ts_headline('english', o.contact_email, %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				''::text AS owner_id,
				o.status,
				ts_rank(%s, %s) AS rank
			FROM orders o
			WHERE %s`, tsQuery, orderVector, tsQuery, orderWhere))
	}

	if len(subQueries) == 0 {
		return nil, 0, nil
	}

	countSQL := fmt.Sprintf("SELECT count(*) FROM (%s) sub",
		strings.Join(subQueries, " UNION ALL "))

	dataSQL := fmt.Sprintf(`SELECT type, id, title, snippet, owner_id, status
		FROM (%s) sub
		ORDER BY rank DESC
		LIMIT %d OFFSET %d`,
		strings.Join(subQueries, " UNION ALL "),
		limit, offset)

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var typ string
		if err := rows.Scan(&typ, &r.ID, &r.Title, &r.Snippet, &r.OwnerID, &r.Status); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Type = ResultType(typ)
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns all searchable records for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]ProjectRecord, []OrderRecord, error) {
	projRows, err := p.db.QueryContext(ctx, `
		SELECT id, name, owner_id
		FROM projects
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load projects: %w", err)
	}
	defer projRows.Close()

	projects := make([]ProjectRecord, 0)
	for projRows.Next() {
		var pr ProjectRecord
		if err := projRows.Scan(&pr.ID, &pr.Name, &pr.OwnerID); err != nil {
			return nil, nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, pr)
	}
	if err := projRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate projects: %w", err)
	}

	orderRows, err := p.db.QueryContext(ctx, `
		SELECT id, contact_name, contact_email, selected_template, plan, status
		FROM orders
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load orders: %w", err)
	}
	defer orderRows.Close()

	orders := make([]OrderRecord, 0)
	for orderRows.Next() {
		var o OrderRecord
		if err := orderRows.Scan(&o.ID, &o.ContactName, &o.ContactEmail, &o.Template, &o.Plan, &o.Status); err != nil {
			return nil, nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := orderRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate orders: %w", err)
	}

	return projects, orders, nil
}
