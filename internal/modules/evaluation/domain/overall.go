package domain

type OverallStats struct {
	Total            int
	Excellent        int
	Good             int
	Pass             int
	FailCount        int
	ExcellentRate    float64
	GoodOrBetterRate float64
	SuccessRate      float64
	// Accuracy is the mean session accuracy percent.
	Accuracy float64
}

func OverallStatsOf(sessions []SessionResult) OverallStats {
	s := OverallStats{Total: len(sessions)}
	if s.Total == 0 {
		return s
	}
	var accuracy float64
	for _, r := range sessions {
		switch r.Grade {
		case SessionExcellent:
			s.Excellent++
		case SessionGood:
			s.Good++
		case SessionPass:
			s.Pass++
		case SessionNeedWork:
			s.FailCount++
		}
		accuracy += r.AccuracyPercent
	}
	total := float64(s.Total)
	s.ExcellentRate = float64(s.Excellent) / total
	s.GoodOrBetterRate = float64(s.Excellent+s.Good) / total
	s.SuccessRate = float64(s.Excellent+s.Good+s.Pass) / total
	s.Accuracy = accuracy / total
	return s
}

// EvaluateOverall grades a cycle. Any needWork session caps the grade at C.
// An empty cycle grades E.
func EvaluateOverall(sessions []SessionResult) (OverallGrade, OverallStats) {
	s := OverallStatsOf(sessions)
	if s.Total == 0 {
		return OverallE, s
	}
	if s.FailCount > 0 {
		switch {
		case s.SuccessRate >= 0.875 && s.GoodOrBetterRate >= 0.75:
			return OverallC, s
		case s.SuccessRate >= 0.75:
			return OverallD, s
		default:
			return OverallE, s
		}
	}
	switch {
	case s.ExcellentRate >= 0.5:
		return OverallS, s
	case s.ExcellentRate >= 0.25:
		return OverallA, s
	case s.GoodOrBetterRate >= 0.875:
		return OverallA, s
	case s.GoodOrBetterRate >= 0.5:
		return OverallB, s
	default:
		return OverallC, s
	}
}
