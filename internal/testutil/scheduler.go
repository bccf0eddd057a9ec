package testutil

import "sync"

// ScheduledJob is a metadata sync request captured by RecordingScheduler.
type ScheduledJob struct {
	BookmarkID string
	URL        string
}

// RecordingScheduler records Schedule calls instead of running them.
type RecordingScheduler struct {
	mu   sync.Mutex
	jobs []ScheduledJob
}

func NewRecordingScheduler() *RecordingScheduler {
	return &RecordingScheduler{}
}

func (s *RecordingScheduler) Schedule(bookmarkID, url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, ScheduledJob{BookmarkID: bookmarkID, URL: url})
}

// Jobs returns a copy of the recorded requests in call order.
func (s *RecordingScheduler) Jobs() []ScheduledJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ScheduledJob(nil), s.jobs...)
}
