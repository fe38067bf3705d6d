package challenge

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ChallengeLength is the number of consecutive days needed to finish the challenge.
const ChallengeLength = 45

// Routine can be one of:
//   - Home
//   - Gym
//   - Custom (requires a custom sheet URL)
type Routine string

const (
	RoutineHome   Routine = "Home"
	RoutineGym    Routine = "Gym"
	RoutineCustom Routine = "Custom"
)

func (r Routine) String() string {
	return string(r)
}

func (r Routine) IsValid() bool {
	switch r {
	case RoutineHome, RoutineGym, RoutineCustom:
		return true
	default:
		return false
	}
}

func ParseRoutine(value string) (Routine, error) {
	for _, r := range []Routine{RoutineHome, RoutineGym, RoutineCustom} {
		if strings.EqualFold(value, r.String()) {
			return r, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidRoutine, value)
}

// Profile (DB level type) is one per user. current_day, streak and the
// challenge flag are only ever written inside the engine's transactions.
type Profile struct {
	UserID           string
	Name             string
	Age              int
	Gender           string
	WeightKg         float64
	WeightUpdatedAt  *time.Time
	Routine          Routine
	CustomSheetURL   *string
	CurrentDay       int
	Streak           int
	LastWorkoutDate  *string
	LastActivityDate *string
	TutorialSeen     bool

	ChallengeCompleted   bool
	ChallengeCompletedAt *time.Time
	ReviewSubmitted      bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Consistent reports whether the day pointer and the streak agree.
func (p *Profile) Consistent() bool {
	return p.CurrentDay-1 == p.Streak
}

// Session is a contiguous run of a single routine. At most one per user is open.
type Session struct {
	ID             int64
	UserID         string
	Routine        Routine
	StartDate      time.Time
	EndDate        *time.Time
	DaysCompleted  int
	StreakAchieved int
}

func (s *Session) IsOpen() bool {
	return s.EndDate == nil
}

// Completion is an append-only record of a finished workout day.
type Completion struct {
	ID          int64
	UserID      string
	SessionID   int64
	DayNumber   int
	WindowLabel string
	CompletedAt time.Time
}

type NewProfileParams struct {
	UserID         string  `json:"-"`
	Name           string  `json:"name"`
	Age            int     `json:"age"`
	Gender         string  `json:"gender"`
	WeightKg       float64 `json:"weightKg"`
	Routine        Routine `json:"routine"`
	CustomSheetURL *string `json:"customSheetUrl,omitempty"`
}

func (p NewProfileParams) Validate() error {
	if strings.TrimSpace(p.UserID) == "" {
		return fmt.Errorf("%w: user id empty", ErrInvalidInput)
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name empty", ErrInvalidInput)
	}
	return nil
}

func validateRoutine(routine Routine, customSheetURL *string, sheetHosts SheetHosts) error {
	if !routine.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidRoutine, routine)
	}
	if routine != RoutineCustom {
		return nil
	}
	if customSheetURL == nil || strings.TrimSpace(*customSheetURL) == "" {
		return fmt.Errorf("%w: custom routine needs a sheet url", ErrInvalidRoutine)
	}
	return sheetHosts.Check(*customSheetURL)
}

// DefaultSheetHosts are used when no plan sheet hosts are configured.
var DefaultSheetHosts = []string{"docs.google.com"}

// SheetHosts is the allow-list of hosts a custom plan sheet may be fetched from.
type SheetHosts map[string]bool

func NewSheetHosts(hosts []string) SheetHosts {
	if len(hosts) == 0 {
		hosts = DefaultSheetHosts
	}
	sheetHosts := make(SheetHosts, len(hosts))
	for _, h := range hosts {
		sheetHosts[strings.ToLower(strings.TrimSpace(h))] = true
	}
	return sheetHosts
}

// Check accepts only plain https urls on the default port whose host is allowed.
func (h SheetHosts) Check(rawURL string) error {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return fmt.Errorf("%w: sheet url: %w", ErrInvalidRoutine, err)
	}
	if u.Scheme != "https" {
		return fmt.Errorf("%w: sheet url must be https", ErrInvalidRoutine)
	}
	if u.User != nil {
		return fmt.Errorf("%w: sheet url must not carry credentials", ErrInvalidRoutine)
	}
	if port := u.Port(); port != "" && port != "443" {
		return fmt.Errorf("%w: sheet url port %s not allowed", ErrInvalidRoutine, port)
	}
	if !h[strings.ToLower(u.Hostname())] {
		return fmt.Errorf("%w: sheet host %q not allowed", ErrInvalidRoutine, u.Hostname())
	}
	return nil
}

// ProfileView is the read model exposed to the UI.
type ProfileView struct {
	Name               string  `json:"name"`
	CurrentDay         int     `json:"currentDay"`
	Streak             int     `json:"streak"`
	Routine            Routine `json:"routine"`
	CustomSheetURL     *string `json:"customSheetUrl,omitempty"`
	LastWorkoutDate    *string `json:"lastWorkoutDate,omitempty"`
	ChallengeCompleted bool    `json:"challengeCompleted"`
	ShowReviewPrompt   bool    `json:"showReviewPrompt"`
	TutorialSeen       bool    `json:"tutorialSeen"`
}

func NewProfileView(p *Profile) *ProfileView {
	view := &ProfileView{
		Name:               p.Name,
		CurrentDay:         p.CurrentDay,
		Streak:             p.Streak,
		Routine:            p.Routine,
		LastWorkoutDate:    p.LastWorkoutDate,
		ChallengeCompleted: p.ChallengeCompleted,
		ShowReviewPrompt:   p.ChallengeCompleted && !p.ReviewSubmitted,
		TutorialSeen:       p.TutorialSeen,
	}
	if p.Routine == RoutineCustom {
		view.CustomSheetURL = p.CustomSheetURL
	}
	return view
}

// SessionView is the session history read model.
type SessionView struct {
	Routine        Routine    `json:"routine"`
	StartDate      time.Time  `json:"startDate"`
	EndDate        *time.Time `json:"endDate"`
	DaysCompleted  int        `json:"daysCompleted"`
	StreakAchieved int        `json:"streakAchieved"`
}

func NewSessionView(s Session) SessionView {
	return SessionView{
		Routine:        s.Routine,
		StartDate:      s.StartDate,
		EndDate:        s.EndDate,
		DaysCompleted:  s.DaysCompleted,
		StreakAchieved: s.StreakAchieved,
	}
}

// CompletionResult describes the outcome of RecordCompletion.
type CompletionResult struct {
	Recorded           bool         `json:"recorded"`
	Duplicate          bool         `json:"duplicate"`
	ChallengeCompleted bool         `json:"challengeCompleted"`
	WindowLabel        string       `json:"windowLabel"`
	Profile            *ProfileView `json:"profile"`
}

// SweepResult is reported by the inactivity sweep for observability.
type SweepResult struct {
	WindowLabel string `json:"windowLabel"`
	Candidates  int    `json:"candidates"`
	UsersReset  int    `json:"usersReset"`
	Failed      int    `json:"failed"`
}

type Review struct {
	UserID    string    `json:"-"`
	Rating    int       `json:"rating"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}
