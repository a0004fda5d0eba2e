package metrics

import (
	"encoding/json"
	"math"
	"sync"
	"testing"
)

func TestCollector_SnapshotCountsIncrements(t *testing.T) {
	c := NewCollector()

	c.IncRequests()
	c.IncSuccessful()
	c.IncUsersCreated()

	s := c.Snapshot()
	if s.TotalRequests != 1 || s.SuccessfulRequests != 1 || s.TotalUsersCreated != 1 {
		t.Fatalf("unexpected snapshot: %+v", s)
	}
	if s.SuccessRate() != 100 {
		t.Fatalf("expected success rate 100, got %v", s.SuccessRate())
	}
}

func TestSnapshot_SuccessRate(t *testing.T) {
	// variáveis, não constantes: constantes são avaliadas com precisão exata
	one, three := 1.0, 3.0
	cases := []struct {
		total, ok uint64
		want      float64
	}{
		{0, 0, 0},
		{2, 1, 50},
		{3, 0, 0},
		{4, 3, 75},
		{3, 1, one / three * 100},
		{math.MaxUint64, math.MaxUint64, 100},
		{math.MaxUint64, math.MaxUint64 / 4, 25},
		{1 << 62, 1 << 61, 50},
	}
	for _, tc := range cases {
		s := Snapshot{TotalRequests: tc.total, SuccessfulRequests: tc.ok}
		if got := s.SuccessRate(); got != tc.want {
			t.Fatalf("SuccessRate(%d/%d): expected %v, got %v", tc.ok, tc.total, tc.want, got)
		}
	}
}

func TestSnapshot_ReportRoundsRate(t *testing.T) {
	s := Snapshot{TotalRequests: 3, SuccessfulRequests: 1}
	data, err := json.Marshal(s.Report())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out["success_rate"] != 33.33 {
		t.Fatalf("expected success_rate=33.33, got %v", out["success_rate"])
	}
	if out["total_requests"] != float64(3) {
		t.Fatalf("expected flattened total_requests=3, got %v", out["total_requests"])
	}
}

func TestCollector_ConcurrentIncrementsSettle(t *testing.T) {
	c := NewCollector()
	const workers, perWorker = 16, 500

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				c.IncRequests()
				if j%2 == 0 {
					c.IncSuccessful()
				} else {
					c.IncFailed()
				}
			}
		}()
	}
	wg.Wait()

	s := c.Snapshot()
	if s.TotalRequests != workers*perWorker {
		t.Fatalf("expected total %d, got %d", workers*perWorker, s.TotalRequests)
	}
	if s.SuccessfulRequests+s.FailedRequests != s.TotalRequests {
		t.Fatalf("after all increments finish, successful+failed must equal total: %+v", s)
	}
}
