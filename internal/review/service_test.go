package review

import (
	"context"
	"math/rand"
	"sort"
	"testing"
	"time"

	"github.com/leetrack/backend/internal/models"
)

// memStore is an in-memory Store used to exercise the orchestrator without
// a database. Eligibility reuses the same DueForReview predicate the SQL
// queries encode.
type memStore struct {
	dailyCount int
	problems   map[int64]*models.Problem
	topics     map[int64][]string
	selections []*models.DailySelection
	attempts   []models.Attempt
	nextSelID  int64
}

func newMemStore(dailyCount int) *memStore {
	return &memStore{
		dailyCount: dailyCount,
		problems:   make(map[int64]*models.Problem),
		topics:     make(map[int64][]string),
	}
}

func (m *memStore) addProblem(id int64, state models.MasteryState, lastReviewed *time.Time, topics ...string) {
	m.problems[id] = &models.Problem{ID: id, Name: "p", Mastery: state, LastReviewed: lastReviewed}
	if len(topics) > 0 {
		m.topics[id] = topics
	}
}

func (m *memStore) DailyProblemCount() (int, error) { return m.dailyCount, nil }
func (m *memStore) SetDailyProblemCount(n int) error {
	m.dailyCount = n
	return nil
}

func (m *memStore) GetProblem(id int64) (*models.Problem, error) {
	p, ok := m.problems[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) ProblemCounts() (int, int, error) {
	mastered := 0
	for _, p := range m.problems {
		if p.Mastery == models.MasteryHigh {
			mastered++
		}
	}
	return len(m.problems), mastered, nil
}

func (m *memStore) selectedOn(date time.Time, problemID int64) *models.DailySelection {
	for _, s := range m.selections {
		if s.SelectedOn.Equal(dateOnly(date)) && s.ProblemID == problemID {
			return s
		}
	}
	return nil
}

func (m *memStore) SelectionsOn(date time.Time) ([]models.SelectionEntry, error) {
	var entries []models.SelectionEntry
	for _, s := range m.selections {
		if s.SelectedOn.Equal(dateOnly(date)) {
			entries = append(entries, models.SelectionEntry{
				Problem:   *m.problems[s.ProblemID],
				Completed: s.Completed,
			})
		}
	}
	return entries, nil
}

func (m *memStore) SelectionFor(date time.Time, problemID int64) (*models.DailySelection, error) {
	if s := m.selectedOn(date, problemID); s != nil {
		cp := *s
		return &cp, nil
	}
	return nil, nil
}

func (m *memStore) pool(date time.Time, excludeSelected bool, member func(*models.Problem) bool) []models.Problem {
	var out []models.Problem
	for _, p := range m.problems {
		if member(p) && (!excludeSelected || m.selectedOn(date, p.ID) == nil) {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memStore) PoolNew(date time.Time, excludeSelected bool) ([]models.Problem, error) {
	return m.pool(date, excludeSelected, func(p *models.Problem) bool {
		return p.Mastery == models.MasteryNew
	}), nil
}

func (m *memStore) PoolReview(date time.Time, excludeSelected bool) ([]models.Problem, error) {
	return m.pool(date, excludeSelected, func(p *models.Problem) bool {
		return (p.Mastery == models.MasteryLow || p.Mastery == models.MasteryMid) &&
			DueForReview(p.Mastery, p.LastReviewed, date)
	}), nil
}

func (m *memStore) PoolMastered(date time.Time, excludeSelected bool) ([]models.Problem, error) {
	return m.pool(date, excludeSelected, func(p *models.Problem) bool {
		return p.Mastery == models.MasteryHigh && DueForReview(p.Mastery, p.LastReviewed, date)
	}), nil
}

func (m *memStore) TopicsFor(problemIDs []int64) (map[int64][]string, error) {
	out := make(map[int64][]string)
	for _, id := range problemIDs {
		if t, ok := m.topics[id]; ok {
			out[id] = t
		}
	}
	return out, nil
}

func (m *memStore) InsertSelections(_ context.Context, date time.Time, problemIDs []int64) error {
	for _, id := range problemIDs {
		m.nextSelID++
		m.selections = append(m.selections, &models.DailySelection{
			ID: m.nextSelID, ProblemID: id, SelectedOn: dateOnly(date),
		})
	}
	return nil
}

func (m *memStore) RegenerateSelections(ctx context.Context, date time.Time, problemIDs []int64) error {
	var kept []*models.DailySelection
	for _, s := range m.selections {
		if !s.SelectedOn.Equal(dateOnly(date)) {
			kept = append(kept, s)
		}
	}
	m.selections = kept
	return m.InsertSelections(ctx, date, problemIDs)
}

func (m *memStore) SwapSelection(_ context.Context, date time.Time, oldID, newID int64) error {
	old := m.selectedOn(date, oldID)
	if old == nil || old.Completed {
		return ErrNotInSelection
	}
	var kept []*models.DailySelection
	for _, s := range m.selections {
		if s != old {
			kept = append(kept, s)
		}
	}
	m.selections = kept
	return m.InsertSelections(context.Background(), date, []int64{newID})
}

func (m *memStore) ApplyReview(_ context.Context, problemID int64, next models.MasteryState, outcome models.Outcome, date time.Time, completeSelection bool, insight *string) error {
	p, ok := m.problems[problemID]
	if !ok {
		return ErrNotFound
	}
	var sel *models.DailySelection
	if completeSelection {
		sel = m.selectedOn(date, problemID)
		if sel == nil || sel.Completed {
			return ErrNotInSelection
		}
	}

	d := dateOnly(date)
	p.Mastery = next
	p.LastReviewed = &d
	p.ReviewCount++
	if insight != nil {
		p.Insight = insight
	}
	m.attempts = append(m.attempts, models.Attempt{
		ProblemID: problemID, Outcome: outcome, CreatedAt: date,
	})
	if sel != nil {
		sel.Completed = true
	}
	return nil
}

func (m *memStore) SelectionDays() ([]DayCompletion, error) {
	byDate := make(map[time.Time]*DayCompletion)
	for _, s := range m.selections {
		d, ok := byDate[s.SelectedOn]
		if !ok {
			d = &DayCompletion{Date: s.SelectedOn}
			byDate[s.SelectedOn] = d
		}
		d.Total++
		if s.Completed {
			d.Completed++
		}
	}
	var days []DayCompletion
	for _, d := range byDate {
		days = append(days, *d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date.After(days[j].Date) })
	return days, nil
}

func (m *memStore) ReadyForReviewCount(date time.Time) (int, error) {
	count := 0
	for _, p := range m.problems {
		if DueForReview(p.Mastery, p.LastReviewed, date) {
			count++
		}
	}
	return count, nil
}

// ── Fixtures ────────────────────────────────────────────

var testNow = time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

func newTestService(store Store) *Service {
	return NewServiceAt(store,
		func() time.Time { return testNow },
		rand.New(rand.NewSource(99)))
}

func selectionIDs(entries []models.SelectionEntry) map[int64]bool {
	ids := make(map[int64]bool, len(entries))
	for _, e := range entries {
		ids[e.Problem.ID] = true
	}
	return ids
}

// ── Tests ───────────────────────────────────────────────

func TestTodayGeneratesAndIsIdempotent(t *testing.T) {
	store := newMemStore(3)
	for id := int64(1); id <= 6; id++ {
		store.addProblem(id, models.MasteryNew, nil)
	}
	svc := newTestService(store)

	first, err := svc.Today(context.Background())
	if err != nil {
		t.Fatalf("Today: %v", err)
	}
	if len(first) != 3 {
		t.Fatalf("got %d selections, want 3", len(first))
	}
	for _, e := range first {
		if e.Completed {
			t.Errorf("fresh selection for problem %d already completed", e.Problem.ID)
		}
	}

	second, err := svc.Today(context.Background())
	if err != nil {
		t.Fatalf("second Today: %v", err)
	}
	firstIDs, secondIDs := selectionIDs(first), selectionIDs(second)
	if len(secondIDs) != len(firstIDs) {
		t.Fatalf("second call changed selection size")
	}
	for id := range firstIDs {
		if !secondIDs[id] {
			t.Errorf("second call dropped problem %d", id)
		}
	}
}

func TestTodayDrawsFromAllPools(t *testing.T) {
	store := newMemStore(5)
	for id := int64(1); id <= 4; id++ {
		store.addProblem(id, models.MasteryNew, nil)
	}
	for id := int64(5); id <= 7; id++ {
		store.addProblem(id, models.MasteryLow, nil)
	}
	old := testNow.AddDate(0, 0, -20)
	store.addProblem(8, models.MasteryHigh, &old)
	svc := newTestService(store)

	entries, err := svc.Today(context.Background())
	if err != nil {
		t.Fatalf("Today: %v", err)
	}
	if len(entries) != 5 {
		t.Fatalf("got %d selections, want 5", len(entries))
	}

	byState := make(map[models.MasteryState]int)
	for _, e := range entries {
		byState[e.Problem.Mastery]++
	}
	// Quota for 5 is 3 new / 2 review / 0 mastered, and both pools have supply.
	if byState[models.MasteryNew] != 3 || byState[models.MasteryLow] != 2 {
		t.Errorf("selection mix = %v, want 3 new + 2 low", byState)
	}
}

func TestPoolsExcludeTodaysSelection(t *testing.T) {
	store := newMemStore(3)
	for id := int64(1); id <= 5; id++ {
		store.addProblem(id, models.MasteryNew, nil)
	}
	svc := newTestService(store)

	entries, err := svc.Today(context.Background())
	if err != nil {
		t.Fatalf("Today: %v", err)
	}
	selected := selectionIDs(entries)

	pools, err := svc.Pools()
	if err != nil {
		t.Fatalf("Pools: %v", err)
	}
	for _, p := range pools.New {
		if selected[p.ID] {
			t.Errorf("problem %d is selected today but still in the new pool", p.ID)
		}
	}
	if len(pools.New) != 5-len(entries) {
		t.Errorf("new pool has %d problems, want %d", len(pools.New), 5-len(entries))
	}

	// Once the date's selections are gone, the problems reappear.
	if err := store.RegenerateSelections(context.Background(), testNow, nil); err != nil {
		t.Fatal(err)
	}
	pools, err = svc.Pools()
	if err != nil {
		t.Fatalf("Pools after delete: %v", err)
	}
	if len(pools.New) != 5 {
		t.Errorf("new pool has %d problems after delete, want 5", len(pools.New))
	}

	// A different date never saw the exclusion.
	tomorrow := NewServiceAt(store,
		func() time.Time { return testNow.AddDate(0, 0, 1) },
		rand.New(rand.NewSource(7)))
	if _, err := svc.Today(context.Background()); err != nil {
		t.Fatal(err)
	}
	pools, err = tomorrow.Pools()
	if err != nil {
		t.Fatal(err)
	}
	if len(pools.New) != 5 {
		t.Errorf("other-date new pool has %d problems, want 5", len(pools.New))
	}
}

func TestRefreshRegenerates(t *testing.T) {
	store := newMemStore(4)
	for id := int64(1); id <= 10; id++ {
		store.addProblem(id, models.MasteryNew, nil)
	}
	svc := newTestService(store)

	if _, err := svc.Today(context.Background()); err != nil {
		t.Fatal(err)
	}

	entries, err := svc.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("refresh produced %d selections, want 4", len(entries))
	}
	if len(store.selections) != 4 {
		t.Errorf("store holds %d selection rows, want 4 (old batch deleted)", len(store.selections))
	}
}

func TestRefreshRedrawsFromFullPool(t *testing.T) {
	store := newMemStore(3)
	store.addProblem(1, models.MasteryNew, nil)
	store.addProblem(2, models.MasteryNew, nil)
	store.addProblem(3, models.MasteryNew, nil)
	svc := newTestService(store)

	if _, err := svc.Today(context.Background()); err != nil {
		t.Fatal(err)
	}

	// Supply equals the daily count, so a refresh that correctly treats
	// the day as empty must re-select all three problems.
	entries, err := svc.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	ids := selectionIDs(entries)
	if len(ids) != 3 || !ids[1] || !ids[2] || !ids[3] {
		t.Errorf("refresh selected %v, want problems 1, 2, 3", ids)
	}
}

func TestRefreshFailureLeavesSelectionIntact(t *testing.T) {
	store := newMemStore(3)
	store.addProblem(1, models.MasteryNew, nil)
	store.addProblem(2, models.MasteryNew, nil)
	store.addProblem(3, models.MasteryNew, nil)
	svc := newTestService(store)

	before, err := svc.Today(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	// Corrupt the stored count underneath the range check so generation
	// fails after the refresh has started.
	store.dailyCount = 2
	if _, err := svc.Refresh(context.Background()); err == nil {
		t.Fatal("expected refresh to fail on a corrupt daily count")
	}

	after, err := store.SelectionsOn(testNow)
	if err != nil {
		t.Fatal(err)
	}
	if len(after) != len(before) {
		t.Fatalf("failed refresh changed selection size from %d to %d", len(before), len(after))
	}
	beforeIDs, afterIDs := selectionIDs(before), selectionIDs(after)
	for id := range beforeIDs {
		if !afterIDs[id] {
			t.Errorf("failed refresh dropped problem %d", id)
		}
	}
}

func TestRecordCompletion(t *testing.T) {
	store := newMemStore(3)
	store.addProblem(1, models.MasteryNew, nil)
	store.addProblem(2, models.MasteryNew, nil)
	store.addProblem(3, models.MasteryNew, nil)
	svc := newTestService(store)

	if _, err := svc.Today(context.Background()); err != nil {
		t.Fatal(err)
	}

	p, err := svc.RecordCompletion(context.Background(), 2, models.OutcomeMid)
	if err != nil {
		t.Fatalf("RecordCompletion: %v", err)
	}
	if p.Mastery != models.MasteryMid {
		t.Errorf("mastery = %s, want mid", p.Mastery)
	}
	if p.ReviewCount != 1 {
		t.Errorf("review_count = %d, want 1", p.ReviewCount)
	}
	if p.LastReviewed == nil || !p.LastReviewed.Equal(dateOnly(testNow)) {
		t.Errorf("last_reviewed = %v, want today", p.LastReviewed)
	}
	if len(store.attempts) != 1 || store.attempts[0].Outcome != models.OutcomeMid {
		t.Errorf("attempts = %+v, want one mid attempt", store.attempts)
	}
	sel, _ := store.SelectionFor(testNow, 2)
	if !sel.Completed {
		t.Error("selection entry not marked completed")
	}

	// Streak stays 0 until every entry of the day is completed.
	if streak, _ := svc.Streak(); streak != 0 {
		t.Errorf("streak = %d before full completion, want 0", streak)
	}
	if _, err := svc.RecordCompletion(context.Background(), 1, models.OutcomeLow); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.RecordCompletion(context.Background(), 3, models.OutcomeHigh); err != nil {
		t.Fatal(err)
	}
	if streak, _ := svc.Streak(); streak != 1 {
		t.Errorf("streak = %d after full completion, want 1", streak)
	}
}

func TestRecordCompletionInvalidOutcomeLeavesStateUntouched(t *testing.T) {
	store := newMemStore(3)
	store.addProblem(1, models.MasteryLow, nil)
	store.addProblem(2, models.MasteryNew, nil)
	store.addProblem(3, models.MasteryNew, nil)
	svc := newTestService(store)

	if _, err := svc.Today(context.Background()); err != nil {
		t.Fatal(err)
	}

	before := *store.problems[1]
	attemptsBefore := len(store.attempts)
	selBefore, _ := store.SelectionFor(testNow, 1)

	_, err := svc.RecordCompletion(context.Background(), 1, models.Outcome("purple"))
	if err == nil {
		t.Fatal("expected invalid outcome error")
	}

	after := *store.problems[1]
	if after.Mastery != before.Mastery || after.ReviewCount != before.ReviewCount {
		t.Errorf("problem mutated on invalid outcome: before %+v after %+v", before, after)
	}
	if len(store.attempts) != attemptsBefore {
		t.Error("attempt recorded on invalid outcome")
	}
	selAfter, _ := store.SelectionFor(testNow, 1)
	if selAfter.Completed != selBefore.Completed {
		t.Error("selection completed flag mutated on invalid outcome")
	}
}

func TestRecordCompletionErrors(t *testing.T) {
	store := newMemStore(3)
	store.addProblem(1, models.MasteryNew, nil)
	store.addProblem(2, models.MasteryNew, nil)
	store.addProblem(3, models.MasteryNew, nil)
	recent := testNow.AddDate(0, 0, -1)
	store.addProblem(4, models.MasteryLow, &recent) // exists, but not due and not selected
	svc := newTestService(store)

	if _, err := svc.Today(context.Background()); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.RecordCompletion(context.Background(), 99, models.OutcomeLow); err != ErrNotFound {
		t.Errorf("unknown problem: got %v, want ErrNotFound", err)
	}

	// Problem 4 exists but three "new" problems filled the day.
	entries, _ := store.SelectionsOn(testNow)
	if selectionIDs(entries)[4] {
		t.Skip("fixture assumption broken: problem 4 was selected")
	}
	if _, err := svc.RecordCompletion(context.Background(), 4, models.OutcomeLow); err != ErrNotInSelection {
		t.Errorf("unselected problem: got %v, want ErrNotInSelection", err)
	}

	if _, err := svc.RecordCompletion(context.Background(), 1, models.OutcomeMid); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.RecordCompletion(context.Background(), 1, models.OutcomeMid); err != ErrAlreadyCompleted {
		t.Errorf("double completion: got %v, want ErrAlreadyCompleted", err)
	}
}

func TestManualReviewIndependentOfSelection(t *testing.T) {
	store := newMemStore(3)
	store.addProblem(1, models.MasteryMid, nil)
	svc := newTestService(store)

	insight := "two pointers from both ends"
	p, err := svc.ManualReview(context.Background(), 1, models.OutcomeLow, &insight)
	if err != nil {
		t.Fatalf("ManualReview: %v", err)
	}
	// MID + LOW promotes to HIGH through the shared transition.
	if p.Mastery != models.MasteryHigh {
		t.Errorf("mastery = %s, want high", p.Mastery)
	}
	if p.Insight == nil || *p.Insight != insight {
		t.Errorf("insight = %v, want %q", p.Insight, insight)
	}
	if p.ReviewCount != 1 {
		t.Errorf("review_count = %d, want 1", p.ReviewCount)
	}
	if len(store.selections) != 0 {
		t.Error("manual review created selection rows")
	}
}

func TestReplace(t *testing.T) {
	store := newMemStore(3)
	for id := int64(1); id <= 6; id++ {
		store.addProblem(id, models.MasteryNew, nil)
	}
	svc := newTestService(store)

	entries, err := svc.Today(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	victim := entries[0].Problem.ID
	others := selectionIDs(entries)

	replacement, err := svc.Replace(context.Background(), victim)
	if err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if others[replacement.ID] {
		t.Errorf("replacement %d was already selected today", replacement.ID)
	}

	after, _ := store.SelectionsOn(testNow)
	afterIDs := selectionIDs(after)
	if afterIDs[victim] {
		t.Error("replaced problem still selected")
	}
	if !afterIDs[replacement.ID] {
		t.Error("replacement missing from selection")
	}
	if len(after) != len(entries) {
		t.Errorf("selection size changed from %d to %d", len(entries), len(after))
	}
}

func TestReplaceCompletedEntryRejected(t *testing.T) {
	store := newMemStore(3)
	for id := int64(1); id <= 6; id++ {
		store.addProblem(id, models.MasteryNew, nil)
	}
	svc := newTestService(store)

	entries, _ := svc.Today(context.Background())
	victim := entries[0].Problem.ID
	if _, err := svc.RecordCompletion(context.Background(), victim, models.OutcomeHigh); err != nil {
		t.Fatal(err)
	}

	rowsBefore := len(store.selections)
	if _, err := svc.Replace(context.Background(), victim); err != ErrAlreadyCompleted {
		t.Errorf("got %v, want ErrAlreadyCompleted", err)
	}
	if len(store.selections) != rowsBefore {
		t.Error("selection rows changed on rejected replace")
	}
}

func TestReplaceExhaustion(t *testing.T) {
	store := newMemStore(3)
	store.addProblem(1, models.MasteryNew, nil)
	store.addProblem(2, models.MasteryNew, nil)
	store.addProblem(3, models.MasteryNew, nil)
	svc := newTestService(store)

	entries, _ := svc.Today(context.Background())
	if len(entries) != 3 {
		t.Fatalf("want all 3 problems selected, got %d", len(entries))
	}

	if _, err := svc.Replace(context.Background(), entries[0].Problem.ID); err != ErrNoEligibleProblem {
		t.Errorf("got %v, want ErrNoEligibleProblem", err)
	}
	after, _ := store.SelectionsOn(testNow)
	if len(after) != 3 {
		t.Errorf("selection mutated on failed replace")
	}
}

func TestStats(t *testing.T) {
	store := newMemStore(3)
	store.addProblem(1, models.MasteryNew, nil)
	store.addProblem(2, models.MasteryLow, nil)
	old := testNow.AddDate(0, 0, -30)
	store.addProblem(3, models.MasteryHigh, &old)
	store.addProblem(4, models.MasteryHigh, &testNow)
	svc := newTestService(store)

	stats, err := svc.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalProblems != 4 {
		t.Errorf("total = %d, want 4", stats.TotalProblems)
	}
	if stats.MasteredCount != 2 {
		t.Errorf("mastered = %d, want 2", stats.MasteredCount)
	}
	// Ready: low/null and high/30d ago; the freshly reviewed high is not due.
	if stats.ReadyForReview != 2 {
		t.Errorf("ready = %d, want 2", stats.ReadyForReview)
	}
	if stats.CurrentStreak != 0 {
		t.Errorf("streak = %d, want 0", stats.CurrentStreak)
	}
}

func TestStatsCountsProblemsSelectedToday(t *testing.T) {
	store := newMemStore(3)
	store.addProblem(1, models.MasteryNew, nil)
	store.addProblem(2, models.MasteryNew, nil)
	store.addProblem(3, models.MasteryLow, nil)
	svc := newTestService(store)

	// Quota for 3 is 2 new / 1 review, so the only due problem lands in
	// today's selection and drops out of the review pool.
	if _, err := svc.Today(context.Background()); err != nil {
		t.Fatal(err)
	}
	entries, _ := store.SelectionsOn(testNow)
	if !selectionIDs(entries)[3] {
		t.Fatal("fixture assumption broken: problem 3 was not selected")
	}
	pools, err := svc.Pools()
	if err != nil {
		t.Fatal(err)
	}
	if len(pools.Review) != 0 {
		t.Fatalf("review pool = %v, want empty while problem 3 is selected", pools.Review)
	}

	// The ready count is a snapshot metric: being selected today does
	// not remove a problem from it.
	stats, err := svc.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.ReadyForReview != 1 {
		t.Errorf("ready = %d, want 1 (selected problems still count)", stats.ReadyForReview)
	}
}

func TestSetDailyProblemCountValidation(t *testing.T) {
	store := newMemStore(5)
	svc := newTestService(store)

	for _, n := range []int{2, 11, 0, -3} {
		if err := svc.SetDailyProblemCount(n); err == nil {
			t.Errorf("SetDailyProblemCount(%d) should fail", n)
		}
	}
	if err := svc.SetDailyProblemCount(7); err != nil {
		t.Errorf("SetDailyProblemCount(7): %v", err)
	}
	if n, _ := svc.DailyProblemCount(); n != 7 {
		t.Errorf("daily count = %d, want 7", n)
	}
}
