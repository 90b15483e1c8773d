package term

import (
	"sort"
	"strings"
)

type CurationStatus string

const (
	StatusPreProposed   CurationStatus = "Pre-proposed"
	StatusProposed      CurationStatus = "Proposed"
	StatusToBeDiscussed CurationStatus = "To Be Discussed"
	StatusInDiscussion  CurationStatus = "In Discussion"
	StatusDiscussed     CurationStatus = "Discussed"
	StatusPublished     CurationStatus = "Published"
	StatusObsolete      CurationStatus = "Obsolete"
	StatusExternal      CurationStatus = "External"
)

var knownStatuses = []CurationStatus{
	StatusPreProposed, StatusProposed, StatusToBeDiscussed, StatusInDiscussion,
	StatusDiscussed, StatusPublished, StatusObsolete, StatusExternal,
}

// ParseCurationStatus maps a sheet value onto a known status, case-insensitively.
// Unknown values are kept verbatim.
func ParseCurationStatus(raw string) CurationStatus {
	s := strings.TrimSpace(raw)
	for _, k := range knownStatuses {
		if strings.EqualFold(string(k), s) {
			return k
		}
	}
	return CurationStatus(s)
}

// StatusSet is a set of curation statuses used for the discard/ignore policy knobs.
type StatusSet map[CurationStatus]struct{}

func NewStatusSet(statuses ...CurationStatus) StatusSet {
	s := make(StatusSet, len(statuses))
	for _, st := range statuses {
		if st == "" {
			continue
		}
		s[ParseCurationStatus(string(st))] = struct{}{}
	}
	return s
}

func (s StatusSet) Has(st CurationStatus) bool {
	if len(s) == 0 || st == "" {
		return false
	}
	_, ok := s[st]
	return ok
}

func (s StatusSet) List() []CurationStatus {
	out := make([]CurationStatus, 0, len(s))
	for _, k := range knownStatuses {
		if s.Has(k) {
			out = append(out, k)
		}
	}
	var extra []CurationStatus
	for k := range s {
		known := false
		for _, kk := range knownStatuses {
			if kk == k {
				known = true
				break
			}
		}
		if !known {
			extra = append(extra, k)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return append(out, extra...)
}
