package challenge

import "time"

// The functions below are the only in-memory writers of current_day, streak
// and the session snapshot. The repo persists what they produce inside the
// same transaction that locked the rows.

// applyCompletion advances the profile by one day and mirrors the streak into
// the open session. Returns true when this completion finished the challenge
// for the first time.
func applyCompletion(p *Profile, open *Session, windowLabel string, now time.Time) bool {
	p.CurrentDay++
	p.Streak++
	label := windowLabel
	p.LastWorkoutDate = &label
	p.LastActivityDate = &label
	p.UpdatedAt = now

	open.DaysCompleted = p.Streak
	if p.Streak > open.StreakAchieved {
		open.StreakAchieved = p.Streak
	}

	if p.Streak >= ChallengeLength && !p.ChallengeCompleted {
		p.ChallengeCompleted = true
		completedAt := now
		p.ChallengeCompletedAt = &completedAt
		return true
	}
	return false
}

// closeSession freezes the session snapshot at the profile's pre-reset values.
func closeSession(p *Profile, open *Session, now time.Time) {
	open.DaysCompleted = p.Streak
	if p.Streak > open.StreakAchieved {
		open.StreakAchieved = p.Streak
	}
	end := now
	open.EndDate = &end
}

// restart puts the profile back to day one on the given routine and returns the
// session that should be opened for it.
func restart(p *Profile, routine Routine, customSheetURL *string, now time.Time) *Session {
	p.Routine = routine
	p.CustomSheetURL = customSheetURL
	p.CurrentDay = 1
	p.Streak = 0
	p.UpdatedAt = now

	return &Session{
		UserID:    p.UserID,
		Routine:   routine,
		StartDate: now,
	}
}

// missedWindow reports whether the profile has a live streak but no activity
// since before the cutoff label (the window preceding the current one).
func missedWindow(p *Profile, cutoffLabel string) bool {
	if p.Streak <= 0 {
		return false
	}
	if p.LastActivityDate == nil {
		return true
	}
	// labels are YYYY-MM-DD, lexical order is chronological
	return *p.LastActivityDate < cutoffLabel
}

func sameRoutine(p *Profile, routine Routine, customSheetURL *string) bool {
	if p.Routine != routine {
		return false
	}
	if routine != RoutineCustom {
		return true
	}
	if p.CustomSheetURL == nil || customSheetURL == nil {
		return p.CustomSheetURL == customSheetURL
	}
	return *p.CustomSheetURL == *customSheetURL
}
