package problems

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/leetrack/backend/internal/models"
)

// ErrNotFound — the referenced problem does not exist.
var ErrNotFound = errors.New("problem not found")

// ErrDuplicateName — problem names are unique.
var ErrDuplicateName = errors.New("a problem with that name already exists")

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const problemCols = `id, name, COALESCE(link, ''), mastery, insight, last_reviewed, review_count, created_at, updated_at`

// ── Problem CRUD ────────────────────────────────────────

func (s *Store) List(state *models.MasteryState) ([]models.Problem, error) {
	var rows *sql.Rows
	var err error

	if state != nil {
		rows, err = s.db.Query(
			fmt.Sprintf(`SELECT %s FROM problems WHERE mastery = $1 ORDER BY id`, problemCols),
			*state,
		)
	} else {
		rows, err = s.db.Query(
			fmt.Sprintf(`SELECT %s FROM problems ORDER BY id`, problemCols),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("list problems: %w", err)
	}
	defer rows.Close()

	var problems []models.Problem
	var ids []int64
	for rows.Next() {
		var p models.Problem
		if err := scanProblem(rows, &p); err != nil {
			return nil, fmt.Errorf("scan problem: %w", err)
		}
		problems = append(problems, p)
		ids = append(ids, p.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	topics, err := s.topicsFor(ids)
	if err != nil {
		return nil, err
	}
	for i := range problems {
		problems[i].Topics = topics[problems[i].ID]
	}
	return problems, nil
}

func (s *Store) Get(id int64) (*models.Problem, error) {
	var p models.Problem
	err := scanProblem(s.db.QueryRow(
		fmt.Sprintf(`SELECT %s FROM problems WHERE id = $1`, problemCols), id), &p)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get problem: %w", err)
	}

	topics, err := s.topicsFor([]int64{id})
	if err != nil {
		return nil, err
	}
	p.Topics = topics[id]
	return &p, nil
}

func (s *Store) Create(ctx context.Context, name, link string, topicNames []string) (*models.Problem, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRow(
		`INSERT INTO problems (name, link) VALUES ($1, NULLIF($2, '')) RETURNING id`,
		name, link,
	).Scan(&id)
	if err != nil {
		if strings.Contains(err.Error(), "problems_name_key") {
			return nil, ErrDuplicateName
		}
		return nil, fmt.Errorf("insert problem: %w", err)
	}

	if err := replaceTopicsTx(tx, id, topicNames); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.Get(id)
}

// Patch applies a partial update. Columns are drawn from a fixed allowed
// set; nothing request-controlled ever reaches the SQL text.
func (s *Store) Patch(id int64, req models.PatchProblemRequest) (*models.Problem, error) {
	type field struct {
		column string
		value  interface{}
	}
	var fields []field
	if req.Name != nil {
		fields = append(fields, field{"name", *req.Name})
	}
	if req.Link != nil {
		fields = append(fields, field{"link", *req.Link})
	}
	if req.Insight != nil {
		fields = append(fields, field{"insight", *req.Insight})
	}
	if len(fields) == 0 {
		return s.Get(id)
	}

	setClauses := make([]string, len(fields))
	args := make([]interface{}, 0, len(fields)+1)
	for i, f := range fields {
		setClauses[i] = fmt.Sprintf("%s = $%d", f.column, i+1)
		args = append(args, f.value)
	}
	args = append(args, id)

	res, err := s.db.Exec(
		fmt.Sprintf(`UPDATE problems SET %s, updated_at = NOW() WHERE id = $%d`,
			strings.Join(setClauses, ", "), len(fields)+1),
		args...,
	)
	if err != nil {
		if strings.Contains(err.Error(), "problems_name_key") {
			return nil, ErrDuplicateName
		}
		return nil, fmt.Errorf("patch problem: %w", err)
	}
	affected, err := res.RowsAffected()
	if err == nil && affected == 0 {
		return nil, ErrNotFound
	}
	return s.Get(id)
}

// Delete removes a problem and everything hanging off it. Attempts,
// selection rows and topic links go with it via the schema's cascades.
func (s *Store) Delete(id int64) error {
	res, err := s.db.Exec(`DELETE FROM problems WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete problem: %w", err)
	}
	affected, err := res.RowsAffected()
	if err == nil && affected == 0 {
		return ErrNotFound
	}
	return err
}

// ── Topics ──────────────────────────────────────────────

func (s *Store) ListTopics() ([]models.Topic, error) {
	rows, err := s.db.Query(`SELECT id, name FROM topics ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	defer rows.Close()

	var topics []models.Topic
	for rows.Next() {
		var t models.Topic
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, fmt.Errorf("scan topic: %w", err)
		}
		topics = append(topics, t)
	}
	return topics, rows.Err()
}

// SetTopics replaces a problem's tag set, creating unknown topics.
func (s *Store) SetTopics(ctx context.Context, problemID int64, names []string) (*models.Problem, error) {
	if _, err := s.Get(problemID); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM problem_topics WHERE problem_id = $1`, problemID); err != nil {
		return nil, fmt.Errorf("clear topics: %w", err)
	}
	if err := replaceTopicsTx(tx, problemID, names); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.Get(problemID)
}

func replaceTopicsTx(tx *sql.Tx, problemID int64, names []string) error {
	for _, name := range normalizeTopicNames(names) {
		var topicID int64
		err := tx.QueryRow(
			`INSERT INTO topics (name) VALUES ($1)
			 ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
			 RETURNING id`,
			name,
		).Scan(&topicID)
		if err != nil {
			return fmt.Errorf("upsert topic %q: %w", name, err)
		}
		if _, err := tx.Exec(
			`INSERT INTO problem_topics (problem_id, topic_id) VALUES ($1, $2)
			 ON CONFLICT DO NOTHING`,
			problemID, topicID,
		); err != nil {
			return fmt.Errorf("link topic %q: %w", name, err)
		}
	}
	return nil
}

func (s *Store) topicsFor(problemIDs []int64) (map[int64][]models.Topic, error) {
	result := make(map[int64][]models.Topic)
	if len(problemIDs) == 0 {
		return result, nil
	}

	placeholders := make([]string, len(problemIDs))
	args := make([]interface{}, len(problemIDs))
	for i, id := range problemIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}

	rows, err := s.db.Query(
		fmt.Sprintf(`SELECT pt.problem_id, t.id, t.name
		 FROM problem_topics pt
		 JOIN topics t ON t.id = pt.topic_id
		 WHERE pt.problem_id IN (%s)
		 ORDER BY t.name`, strings.Join(placeholders, ",")),
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("topics for problems: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var problemID int64
		var t models.Topic
		if err := rows.Scan(&problemID, &t.ID, &t.Name); err != nil {
			return nil, fmt.Errorf("scan topic: %w", err)
		}
		result[problemID] = append(result[problemID], t)
	}
	return result, rows.Err()
}

// ── Attempts ────────────────────────────────────────────

func (s *Store) AttemptsFor(problemID int64) ([]models.Attempt, error) {
	if _, err := s.Get(problemID); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(
		`SELECT id, problem_id, outcome, created_at
		 FROM attempts WHERE problem_id = $1 ORDER BY created_at DESC`,
		problemID,
	)
	if err != nil {
		return nil, fmt.Errorf("attempts: %w", err)
	}
	defer rows.Close()

	var attempts []models.Attempt
	for rows.Next() {
		var a models.Attempt
		if err := rows.Scan(&a.ID, &a.ProblemID, &a.Outcome, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// ── Insight ─────────────────────────────────────────────

func (s *Store) SaveInsight(problemID int64, insight string) error {
	res, err := s.db.Exec(
		`UPDATE problems SET insight = $1, updated_at = NOW() WHERE id = $2`,
		insight, problemID,
	)
	if err != nil {
		return fmt.Errorf("save insight: %w", err)
	}
	affected, err := res.RowsAffected()
	if err == nil && affected == 0 {
		return ErrNotFound
	}
	return err
}

// ── Import ──────────────────────────────────────────────

// ImportRow is one validated CSV line ready to be applied.
type ImportRow struct {
	Name         string
	Link         string
	Mastery      models.MasteryState
	Insight      string
	LastReviewed *time.Time
	ReviewCount  int
	Topics       []string
}

// Import upserts rows by problem name in one transaction.
func (s *Store) Import(ctx context.Context, importRows []ImportRow) (*models.ImportResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result := &models.ImportResult{}
	for _, row := range importRows {
		var id int64
		var inserted bool
		err := tx.QueryRow(
			`INSERT INTO problems (name, link, mastery, insight, last_reviewed, review_count)
			 VALUES ($1, NULLIF($2, ''), $3, NULLIF($4, ''), $5, $6)
			 ON CONFLICT (name) DO UPDATE SET
			     link = EXCLUDED.link,
			     mastery = EXCLUDED.mastery,
			     insight = EXCLUDED.insight,
			     last_reviewed = EXCLUDED.last_reviewed,
			     review_count = EXCLUDED.review_count,
			     updated_at = NOW()
			 RETURNING id, (xmax = 0)`,
			row.Name, row.Link, row.Mastery, row.Insight, row.LastReviewed, row.ReviewCount,
		).Scan(&id, &inserted)
		if err != nil {
			return nil, fmt.Errorf("import %q: %w", row.Name, err)
		}

		if len(row.Topics) > 0 {
			if _, err := tx.Exec(`DELETE FROM problem_topics WHERE problem_id = $1`, id); err != nil {
				return nil, fmt.Errorf("import %q topics: %w", row.Name, err)
			}
			if err := replaceTopicsTx(tx, id, row.Topics); err != nil {
				return nil, err
			}
		}

		if inserted {
			result.Imported++
		} else {
			result.Updated++
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit import: %w", err)
	}
	return result, nil
}

func scanProblem(row interface{ Scan(...interface{}) error }, p *models.Problem) error {
	return row.Scan(&p.ID, &p.Name, &p.Link, &p.Mastery, &p.Insight,
		&p.LastReviewed, &p.ReviewCount, &p.CreatedAt, &p.UpdatedAt)
}

func normalizeTopicNames(names []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
