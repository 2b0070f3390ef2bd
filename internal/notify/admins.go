package notify

import (
	"slices"
	"sync/atomic"
)

// AdminSet is the operator allow-list. It is replaced wholesale on config reload.
type AdminSet struct {
	ids atomic.Pointer[[]int64]
}

func NewAdminSet(ids []int64) *AdminSet {
	s := &AdminSet{}
	s.Replace(ids)
	return s
}

// Replace swaps the allow-list, dropping duplicates and non-positive ids.
func (s *AdminSet) Replace(ids []int64) {
	clean := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id > 0 && !slices.Contains(clean, id) {
			clean = append(clean, id)
		}
	}
	s.ids.Store(&clean)
}

// IDs returns a snapshot in configuration order.
func (s *AdminSet) IDs() []int64 {
	if s == nil {
		return nil
	}
	ptr := s.ids.Load()
	if ptr == nil {
		return nil
	}
	return slices.Clone(*ptr)
}

func (s *AdminSet) Contains(id int64) bool {
	if s == nil {
		return false
	}
	ptr := s.ids.Load()
	return ptr != nil && slices.Contains(*ptr, id)
}

func (s *AdminSet) Len() int {
	if s == nil {
		return 0
	}
	ptr := s.ids.Load()
	if ptr == nil {
		return 0
	}
	return len(*ptr)
}
