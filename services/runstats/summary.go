package runstats

type Summary struct {
	Runs               int
	NewJobsFound       int
	DownloadSuccessful int
	DownloadFailed     int
	MetadataGenerated  int
	ParsedJobs         int
	First              string
	Last               string
}

// Summarize aggregates a slice of events for display. downstream
// consumers compute their own rates; nothing here is persisted.
func Summarize(events []Event) Summary {
	var s Summary
	s.Runs = len(events)
	for i, e := range events {
		s.NewJobsFound += e.NewJobsFound
		s.DownloadSuccessful += e.DownloadSuccessful
		s.DownloadFailed += e.DownloadFailed
		s.MetadataGenerated += e.MetadataGenerated
		s.ParsedJobs += e.ParsedJobs
		if i == 0 {
			s.First = e.Timestamp
		}
		s.Last = e.Timestamp
	}
	return s
}

func (s Summary) SuccessRate() float64 {
	attempts := s.DownloadSuccessful + s.DownloadFailed
	if attempts == 0 {
		return 0
	}
	return float64(s.DownloadSuccessful) / float64(attempts)
}
