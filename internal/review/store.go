package review

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/leetrack/backend/internal/models"
)

// SQLStore implements Store on PostgreSQL.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

const problemCols = `id, name, COALESCE(link, ''), mastery, insight, last_reviewed, review_count, created_at, updated_at`

const problemColsP = `p.id, p.name, COALESCE(p.link, ''), p.mastery, p.insight, p.last_reviewed, p.review_count, p.created_at, p.updated_at`

func scanProblem(row interface{ Scan(...interface{}) error }) (*models.Problem, error) {
	var p models.Problem
	err := row.Scan(&p.ID, &p.Name, &p.Link, &p.Mastery, &p.Insight,
		&p.LastReviewed, &p.ReviewCount, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func dateArg(t time.Time) string {
	return t.Format("2006-01-02")
}

// ── Settings ────────────────────────────────────────────

func (s *SQLStore) DailyProblemCount() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT daily_problem_count FROM settings WHERE id = 1`).Scan(&n)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("settings row missing")
	}
	if err != nil {
		return 0, fmt.Errorf("get daily count: %w", err)
	}
	return n, nil
}

func (s *SQLStore) SetDailyProblemCount(n int) error {
	res, err := s.db.Exec(`UPDATE settings SET daily_problem_count = $1 WHERE id = 1`, n)
	if err != nil {
		return fmt.Errorf("set daily count: %w", err)
	}
	affected, err := res.RowsAffected()
	if err == nil && affected == 0 {
		return fmt.Errorf("settings row missing")
	}
	return err
}

// ── Problems ────────────────────────────────────────────

func (s *SQLStore) GetProblem(id int64) (*models.Problem, error) {
	p, err := scanProblem(s.db.QueryRow(
		fmt.Sprintf(`SELECT %s FROM problems WHERE id = $1`, problemCols), id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get problem: %w", err)
	}
	return p, nil
}

func (s *SQLStore) ProblemCounts() (int, int, error) {
	var total, mastered int
	err := s.db.QueryRow(
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE mastery = 'high') FROM problems`,
	).Scan(&total, &mastered)
	if err != nil {
		return 0, 0, fmt.Errorf("problem counts: %w", err)
	}
	return total, mastered, nil
}

// ── Selections ──────────────────────────────────────────

func (s *SQLStore) SelectionsOn(date time.Time) ([]models.SelectionEntry, error) {
	rows, err := s.db.Query(
		fmt.Sprintf(`SELECT %s, ds.completed
		 FROM daily_selections ds
		 JOIN problems p ON p.id = ds.problem_id
		 WHERE ds.selected_on = $1
		 ORDER BY ds.id`, problemColsP),
		dateArg(date),
	)
	if err != nil {
		return nil, fmt.Errorf("selections on %s: %w", dateArg(date), err)
	}
	defer rows.Close()

	var entries []models.SelectionEntry
	var ids []int64
	for rows.Next() {
		var e models.SelectionEntry
		if err := rows.Scan(&e.Problem.ID, &e.Problem.Name, &e.Problem.Link,
			&e.Problem.Mastery, &e.Problem.Insight, &e.Problem.LastReviewed,
			&e.Problem.ReviewCount, &e.Problem.CreatedAt, &e.Problem.UpdatedAt,
			&e.Completed); err != nil {
			return nil, fmt.Errorf("scan selection: %w", err)
		}
		entries = append(entries, e)
		ids = append(ids, e.Problem.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Attach topics for display.
	topicRows, err := s.topicRowsFor(ids)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		entries[i].Problem.Topics = topicRows[entries[i].Problem.ID]
	}
	return entries, nil
}

func (s *SQLStore) SelectionFor(date time.Time, problemID int64) (*models.DailySelection, error) {
	var ds models.DailySelection
	err := s.db.QueryRow(
		`SELECT id, problem_id, selected_on, completed
		 FROM daily_selections WHERE selected_on = $1 AND problem_id = $2`,
		dateArg(date), problemID,
	).Scan(&ds.ID, &ds.ProblemID, &ds.SelectedOn, &ds.Completed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("selection for problem %d: %w", problemID, err)
	}
	return &ds, nil
}

func (s *SQLStore) InsertSelections(ctx context.Context, date time.Time, problemIDs []int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, id := range problemIDs {
		if _, err := tx.Exec(
			`INSERT INTO daily_selections (problem_id, selected_on) VALUES ($1, $2)`,
			id, dateArg(date),
		); err != nil {
			return fmt.Errorf("insert selection %d: %w", id, err)
		}
	}
	return tx.Commit()
}

// RegenerateSelections replaces the date's selection set. Delete and
// re-insert commit together or not at all.
func (s *SQLStore) RegenerateSelections(ctx context.Context, date time.Time, problemIDs []int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`DELETE FROM daily_selections WHERE selected_on = $1`, dateArg(date),
	); err != nil {
		return fmt.Errorf("delete selections: %w", err)
	}
	for _, id := range problemIDs {
		if _, err := tx.Exec(
			`INSERT INTO daily_selections (problem_id, selected_on) VALUES ($1, $2)`,
			id, dateArg(date),
		); err != nil {
			return fmt.Errorf("insert selection %d: %w", id, err)
		}
	}
	return tx.Commit()
}

func (s *SQLStore) SwapSelection(ctx context.Context, date time.Time, oldProblemID, newProblemID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`DELETE FROM daily_selections
		 WHERE selected_on = $1 AND problem_id = $2 AND completed = FALSE`,
		dateArg(date), oldProblemID,
	)
	if err != nil {
		return fmt.Errorf("delete old selection: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotInSelection
	}

	if _, err := tx.Exec(
		`INSERT INTO daily_selections (problem_id, selected_on) VALUES ($1, $2)`,
		newProblemID, dateArg(date),
	); err != nil {
		return fmt.Errorf("insert replacement: %w", err)
	}
	return tx.Commit()
}

// ── Eligibility Pools ───────────────────────────────────

// $1 is the date, $2 toggles the selection exclusion.
const notSelectedClause = `($2 = FALSE OR NOT EXISTS (
	SELECT 1 FROM daily_selections ds
	WHERE ds.problem_id = p.id AND ds.selected_on = $1
))`

func (s *SQLStore) PoolNew(date time.Time, excludeSelected bool) ([]models.Problem, error) {
	return s.queryPool(
		fmt.Sprintf(`SELECT %s FROM problems p
		 WHERE p.mastery = 'new' AND %s
		 ORDER BY p.id`, problemColsP, notSelectedClause),
		dateArg(date), excludeSelected,
	)
}

func (s *SQLStore) PoolReview(date time.Time, excludeSelected bool) ([]models.Problem, error) {
	return s.queryPool(
		fmt.Sprintf(`SELECT %s FROM problems p
		 WHERE ((p.mastery = 'low' AND (p.last_reviewed IS NULL OR p.last_reviewed <= $1::date - 3))
		     OR (p.mastery = 'mid' AND (p.last_reviewed IS NULL OR p.last_reviewed <= $1::date - 7)))
		   AND %s
		 ORDER BY p.id`, problemColsP, notSelectedClause),
		dateArg(date), excludeSelected,
	)
}

func (s *SQLStore) PoolMastered(date time.Time, excludeSelected bool) ([]models.Problem, error) {
	return s.queryPool(
		fmt.Sprintf(`SELECT %s FROM problems p
		 WHERE p.mastery = 'high' AND (p.last_reviewed IS NULL OR p.last_reviewed <= $1::date - 14)
		   AND %s
		 ORDER BY p.id`, problemColsP, notSelectedClause),
		dateArg(date), excludeSelected,
	)
}

func (s *SQLStore) queryPool(query string, args ...interface{}) ([]models.Problem, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("pool query: %w", err)
	}
	defer rows.Close()

	var pool []models.Problem
	for rows.Next() {
		p, err := scanProblem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pool problem: %w", err)
		}
		pool = append(pool, *p)
	}
	return pool, rows.Err()
}

// ── Topics ──────────────────────────────────────────────

func (s *SQLStore) TopicsFor(problemIDs []int64) (map[int64][]string, error) {
	topicRows, err := s.topicRowsFor(problemIDs)
	if err != nil {
		return nil, err
	}
	names := make(map[int64][]string, len(topicRows))
	for id, topics := range topicRows {
		for _, t := range topics {
			names[id] = append(names[id], t.Name)
		}
	}
	return names, nil
}

func (s *SQLStore) topicRowsFor(problemIDs []int64) (map[int64][]models.Topic, error) {
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

// ── Review Transaction ──────────────────────────────────

func (s *SQLStore) ApplyReview(ctx context.Context, problemID int64, next models.MasteryState, outcome models.Outcome, date time.Time, completeSelection bool, insight *string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var res sql.Result
	if insight != nil {
		res, err = tx.Exec(
			`UPDATE problems
			 SET mastery = $1, last_reviewed = $2, review_count = review_count + 1,
			     insight = $3, updated_at = NOW()
			 WHERE id = $4`,
			next, dateArg(date), *insight, problemID,
		)
	} else {
		res, err = tx.Exec(
			`UPDATE problems
			 SET mastery = $1, last_reviewed = $2, review_count = review_count + 1,
			     updated_at = NOW()
			 WHERE id = $3`,
			next, dateArg(date), problemID,
		)
	}
	if err != nil {
		return fmt.Errorf("update problem: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}

	if _, err := tx.Exec(
		`INSERT INTO attempts (problem_id, outcome) VALUES ($1, $2)`,
		problemID, outcome,
	); err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}

	if completeSelection {
		res, err := tx.Exec(
			`UPDATE daily_selections SET completed = TRUE
			 WHERE selected_on = $1 AND problem_id = $2 AND completed = FALSE`,
			dateArg(date), problemID,
		)
		if err != nil {
			return fmt.Errorf("complete selection: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrNotInSelection
		}
	}

	return tx.Commit()
}

// ── Aggregation ─────────────────────────────────────────

func (s *SQLStore) SelectionDays() ([]DayCompletion, error) {
	rows, err := s.db.Query(
		`SELECT selected_on, COUNT(*), COUNT(*) FILTER (WHERE completed)
		 FROM daily_selections
		 GROUP BY selected_on
		 ORDER BY selected_on DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("selection days: %w", err)
	}
	defer rows.Close()

	var days []DayCompletion
	for rows.Next() {
		var d DayCompletion
		if err := rows.Scan(&d.Date, &d.Total, &d.Completed); err != nil {
			return nil, fmt.Errorf("scan day: %w", err)
		}
		days = append(days, d)
	}
	return days, rows.Err()
}

func (s *SQLStore) ReadyForReviewCount(date time.Time) (int, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM problems p
		 WHERE (p.mastery = 'low' AND (p.last_reviewed IS NULL OR p.last_reviewed <= $1::date - 3))
		    OR (p.mastery = 'mid' AND (p.last_reviewed IS NULL OR p.last_reviewed <= $1::date - 7))
		    OR (p.mastery = 'high' AND (p.last_reviewed IS NULL OR p.last_reviewed <= $1::date - 14))`,
		dateArg(date),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ready for review count: %w", err)
	}
	return count, nil
}

