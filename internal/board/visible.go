package board

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"patientboard/internal/model"
)

// DefaultFlagship is the hospital whose "T<n>" wards sort by number.
const DefaultFlagship = "UCH"

// Filter selects and orders the visible rows.
type Filter struct {
	Tag      string
	Hospital string
	Ward     string
	Flagship string
}

// Match reports whether p belongs on the board: its location carries Tag and its hospital and
// ward contain the (case-insensitive) queries.
func (f Filter) Match(p *model.Patient) bool {
	if p == nil {
		return false
	}
	loc := p.Location()
	if !loc.Tags[f.Tag] {
		return false
	}
	if !containsFold(loc.Hospital, f.Hospital) {
		return false
	}
	return containsFold(loc.Ward, f.Ward)
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

// ComputeVisible returns the matching patients in board order. It never mutates its input
// and equal rows keep their input order.
func ComputeVisible(patients []*model.Patient, f Filter) []*model.Patient {
	out := make([]*model.Patient, 0, len(patients))
	for _, p := range patients {
		if f.Match(p) {
			out = append(out, p)
		}
	}
	flagship := f.Flagship
	if flagship == "" {
		flagship = DefaultFlagship
	}
	sort.SliceStable(out, func(i, j int) bool {
		return comparePatients(out[i], out[j], flagship) < 0
	})
	return out
}

// comparePatients orders by category rank, hospital, ward and bed. A key that compares as NaN
// (non-numeric bed, mixed ward kinds) counts as equal and falls through to the next key.
func comparePatients(a, b *model.Patient, flagship string) int {
	la, lb := a.Location(), b.Location()
	keysA := patientKeys(la, flagship)
	keysB := patientKeys(lb, flagship)
	for i := range keysA {
		if c := compareKeys(keysA[i], keysB[i]); c != 0 {
			return c
		}
	}
	return 0
}

var numberedWard = regexp.MustCompile(`^T\d+`)

func patientKeys(loc model.Location, flagship string) [4]sortKey {
	ward := strKey(loc.Ward)
	if loc.Hospital == flagship && numberedWard.MatchString(loc.Ward) {
		ward = numKey(parseLeadingInt(loc.Ward[1:]))
	}
	return [4]sortKey{
		numKey(float64(model.CategoryRank(loc.Category))),
		strKey(loc.Hospital),
		ward,
		numKey(parseLeadingInt(loc.Bed)),
	}
}

type sortKey struct {
	numeric bool
	num     float64
	str     string
}

func numKey(f float64) sortKey { return sortKey{numeric: true, num: f} }

func strKey(s string) sortKey { return sortKey{str: s} }

func (k sortKey) number() float64 {
	if k.numeric {
		return k.num
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(k.str), 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

func compareKeys(a, b sortKey) int {
	if !a.numeric && !b.numeric {
		return strings.Compare(a.str, b.str)
	}
	x, y := a.number(), b.number()
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	default:
		// Equal, or either side is NaN.
		return 0
	}
}

// parseLeadingInt reads an optionally signed run of leading digits ("12A" -> 12). Anything
// else is NaN.
func parseLeadingInt(s string) float64 {
	s = strings.TrimLeft(s, " \t\n\r")
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	start := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == start {
		return math.NaN()
	}
	n, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		return math.NaN()
	}
	return n
}
