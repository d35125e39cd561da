package pipeline

// Stats tracks aggregate counters across a batch run.
type Stats struct {
	// Total is the number of inputs found: images, archives or masks.
	Total     int
	Processed int
	Skipped   int
	Failed    int
	// Empty counts channels where no spots were found.
	Empty        int
	Written      int
	BytesWritten int64
}

// OK reports whether no item failed.
func (s *Stats) OK() bool {
	return s.Failed == 0
}
