// Package plan serves daily workout content from published spreadsheets.
package plan

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

var (
	ErrEmptyPlan   = errors.New("workout plan is empty")
	ErrInvalidDay  = errors.New("invalid plan day")
	ErrUnavailable = errors.New("workout plan unavailable")
)

type Exercise struct {
	Name  string `json:"name"`
	Sets  int    `json:"sets"`
	Reps  string `json:"reps"`
	Notes string `json:"notes,omitempty"`
}

type Day struct {
	Day       int        `json:"day"`
	Exercises []Exercise `json:"exercises"`
}

// Plan holds days ordered by day number.
type Plan struct {
	Days []Day `json:"days"`
}

// Day returns the content for day n. Days past the end of the plan repeat the last day.
func (p *Plan) Day(n int) (Day, bool, error) {
	if n < 1 {
		return Day{}, false, fmt.Errorf("%w: %d", ErrInvalidDay, n)
	}
	if p == nil || len(p.Days) == 0 {
		return Day{}, false, ErrEmptyPlan
	}
	for _, d := range p.Days {
		if d.Day == n {
			return d, false, nil
		}
	}
	last := p.Days[len(p.Days)-1]
	if n > last.Day {
		return last, true, nil
	}
	// a gap in the sheet, treat it as rest
	return Day{Day: n, Exercises: []Exercise{}}, false, nil
}

// Parse reads rows of day,exercise,sets,reps,notes. A header row is skipped
// and so are rows without a numeric day.
func Parse(r io.Reader) (*Plan, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	byDay := map[int]*Day{}
	line := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read plan line %d: %w", line, err)
		}
		if len(record) < 2 {
			continue
		}

		dayNumber, err := strconv.Atoi(strings.TrimSpace(record[0]))
		if err != nil || dayNumber < 1 {
			continue
		}
		name := strings.TrimSpace(record[1])
		if name == "" {
			continue
		}

		exercise := Exercise{Name: name}
		if len(record) > 2 {
			if sets, err := strconv.Atoi(strings.TrimSpace(record[2])); err == nil {
				exercise.Sets = sets
			}
		}
		if len(record) > 3 {
			exercise.Reps = strings.TrimSpace(record[3])
		}
		if len(record) > 4 {
			exercise.Notes = strings.TrimSpace(record[4])
		}

		d, ok := byDay[dayNumber]
		if !ok {
			d = &Day{Day: dayNumber}
			byDay[dayNumber] = d
		}
		d.Exercises = append(d.Exercises, exercise)
	}

	if len(byDay) == 0 {
		return nil, ErrEmptyPlan
	}

	p := &Plan{Days: make([]Day, 0, len(byDay))}
	for _, d := range byDay {
		p.Days = append(p.Days, *d)
	}
	sort.Slice(p.Days, func(i, j int) bool {
		return p.Days[i].Day < p.Days[j].Day
	})
	return p, nil
}
