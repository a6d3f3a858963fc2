package problems

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/leetrack/backend/internal/models"
)

var csvHeader = []string{"name", "link", "mastery", "insight", "last_reviewed", "review_count", "topics"}

const csvDateLayout = "2006-01-02"

// WriteCSV renders problems in the interchange format, topics joined with ";".
func WriteCSV(w io.Writer, problems []models.Problem) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, p := range problems {
		lastReviewed := ""
		if p.LastReviewed != nil {
			lastReviewed = p.LastReviewed.Format(csvDateLayout)
		}
		insight := ""
		if p.Insight != nil {
			insight = *p.Insight
		}
		topicNames := make([]string, len(p.Topics))
		for i, t := range p.Topics {
			topicNames[i] = t.Name
		}

		record := []string{
			p.Name,
			p.Link,
			string(p.Mastery),
			insight,
			lastReviewed,
			strconv.Itoa(p.ReviewCount),
			strings.Join(topicNames, ";"),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// ParseCSV reads the interchange format back into import rows. Errors
// carry the 1-based line number so a bad row is easy to find.
func ParseCSV(r io.Reader) ([]ImportRow, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty file")
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	col, err := headerIndex(header)
	if err != nil {
		return nil, err
	}

	var rows []ImportRow
	line := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		row, err := parseRecord(record, col)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("no data rows")
	}
	return rows, nil
}

func headerIndex(header []string) (map[string]int, error) {
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := col["name"]; !ok {
		return nil, fmt.Errorf("header missing required column %q", "name")
	}
	return col, nil
}

func parseRecord(record []string, col map[string]int) (ImportRow, error) {
	get := func(name string) string {
		i, ok := col[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	row := ImportRow{
		Name:    get("name"),
		Link:    get("link"),
		Insight: get("insight"),
		Mastery: models.MasteryNew,
	}
	if row.Name == "" {
		return row, fmt.Errorf("name is required")
	}

	if m := get("mastery"); m != "" {
		state := models.MasteryState(strings.ToLower(m))
		if !models.ValidMasteryStates[state] {
			return row, fmt.Errorf("invalid mastery %q", m)
		}
		row.Mastery = state
	}

	if d := get("last_reviewed"); d != "" {
		t, err := time.Parse(csvDateLayout, d)
		if err != nil {
			return row, fmt.Errorf("invalid last_reviewed %q (want YYYY-MM-DD)", d)
		}
		row.LastReviewed = &t
	}

	if c := get("review_count"); c != "" {
		n, err := strconv.Atoi(c)
		if err != nil || n < 0 {
			return row, fmt.Errorf("invalid review_count %q", c)
		}
		row.ReviewCount = n
	}

	if topics := get("topics"); topics != "" {
		row.Topics = strings.Split(topics, ";")
	}
	return row, nil
}
