package reportview

// Store holds the last fetched snapshot and the fetch generation counter. It is owned by
// a Controller and is not safe for concurrent use on its own.
type Store struct {
	reports    []Report
	index      map[string]int
	generation uint64
}

func NewStore() *Store {
	return &Store{index: make(map[string]int)}
}

// NextGeneration hands out the token for a new fetch. Any earlier token becomes stale.
func (s *Store) NextGeneration() uint64 {
	s.generation++
	return s.generation
}

func (s *Store) Generation() uint64 {
	return s.generation
}

func (s *Store) IsCurrent(generation uint64) bool {
	return generation == s.generation
}

// Replace swaps in a new snapshot if generation is still the latest one handed out.
func (s *Store) Replace(generation uint64, reports []Report) bool {
	if !s.IsCurrent(generation) {
		return false
	}
	s.reports = append([]Report{}, reports...)
	s.reindex()
	return true
}

// Reports returns a copy of the snapshot in backend order.
func (s *Store) Reports() []Report {
	return append([]Report{}, s.reports...)
}

func (s *Store) Get(id string) (Report, bool) {
	i, ok := s.index[id]
	if !ok {
		return Report{}, false
	}
	return s.reports[i], true
}

// Patch replaces the entry with the same id in place. Unknown ids are ignored.
func (s *Store) Patch(report Report) bool {
	i, ok := s.index[report.ID]
	if !ok {
		return false
	}
	s.reports[i] = report
	return true
}

func (s *Store) Remove(id string) bool {
	i, ok := s.index[id]
	if !ok {
		return false
	}
	s.reports = append(s.reports[:i:i], s.reports[i+1:]...)
	s.reindex()
	return true
}

func (s *Store) Len() int {
	return len(s.reports)
}

func (s *Store) reindex() {
	s.index = make(map[string]int, len(s.reports))
	for i, report := range s.reports {
		s.index[report.ID] = i
	}
}
