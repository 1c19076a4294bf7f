package document

// Overview aggregates dashboard metrics over a filtered document set.
type Overview struct {
	Total       int64
	InProgress  int64
	Completed   int64
	SuccessRate float64
	AvgScore    float64
}

// DocumentStat is the minimal projection the aggregates need.
type DocumentStat struct {
	Status Status
	Score  int
}

// ComputeOverview derives the dashboard counters from the filtered set.
// Success rate is completed/total*100; the average score runs over every
// document in the set, not only completed ones.
func ComputeOverview(docs []DocumentStat) Overview {
	var ov Overview
	var scoreSum int64
	for _, d := range docs {
		ov.Total++
		scoreSum += int64(d.Score)
		switch d.Status {
		case StatusProcessing, StatusPending:
			ov.InProgress++
		case StatusCompleted:
			ov.Completed++
		}
	}
	if ov.Total > 0 {
		ov.SuccessRate = float64(ov.Completed) / float64(ov.Total) * 100
		ov.AvgScore = float64(scoreSum) / float64(ov.Total)
	}
	return ov
}
