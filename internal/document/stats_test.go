package document

import "testing"

func TestComputeOverview(t *testing.T) {
	docs := []DocumentStat{
		{Status: StatusCompleted, Score: 80},
		{Status: StatusCompleted, Score: 90},
		{Status: StatusCompleted, Score: 70},
		{Status: StatusProcessing, Score: 0},
	}

	ov := ComputeOverview(docs)
	if ov.Total != 4 {
		t.Errorf("total = %d", ov.Total)
	}
	if ov.Completed != 3 {
		t.Errorf("completed = %d", ov.Completed)
	}
	if ov.InProgress != 1 {
		t.Errorf("in progress = %d", ov.InProgress)
	}
	if ov.SuccessRate != 75.0 {
		t.Errorf("success rate = %v, want 75.0", ov.SuccessRate)
	}
	if ov.AvgScore != 60.0 {
		t.Errorf("avg score = %v, want 60.0 (mean over all 4)", ov.AvgScore)
	}
}

func TestComputeOverviewEmpty(t *testing.T) {
	ov := ComputeOverview(nil)
	if ov.Total != 0 || ov.SuccessRate != 0 || ov.AvgScore != 0 {
		t.Errorf("empty set should yield zero overview, got %+v", ov)
	}
}
