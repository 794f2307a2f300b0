package generate

import (
	"sort"
)

// Injection tells an editor how to build a virtual document for one embedded
// region: Prefix + source[Start:End] + Suffix, concatenated across all
// injections of a kind. Start and End are UTF-16 offsets into the source.
type Injection struct {
	Kind   RangeKind `json:"kind"`
	Start  int       `json:"start"`
	End    int       `json:"end"`
	Prefix string    `json:"prefix"`
	Suffix string    `json:"suffix"`
}

var injectionKinds = []RangeKind{RangePython, RangeHTML}

// ComputeInjections derives injections from ranges over code. Ranges are
// grouped by kind and ordered by source position. Each prefix is the generated
// text between the previous range and this one; only the last range of a kind
// carries a suffix, the rest of the generated code.
func ComputeInjections(code string, ranges []Range) []Injection {
	out := []Injection{}
	for _, kind := range injectionKinds {
		var group []Range
		for _, r := range ranges {
			if r.Kind == kind && r.NeedsInjection {
				group = append(group, r)
			}
		}
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].SourceStart < group[j].SourceStart
		})

		prevEnd := 0
		for i, r := range group {
			inj := Injection{
				Kind:  kind,
				Start: r.SourceStartUTF16,
				End:   r.SourceEndUTF16,
			}
			if prevEnd < r.GeneratedStart {
				inj.Prefix = code[prevEnd:r.GeneratedStart]
			}
			if i == len(group)-1 && r.GeneratedEnd <= len(code) {
				inj.Suffix = code[r.GeneratedEnd:]
			}
			if r.GeneratedEnd > prevEnd {
				prevEnd = r.GeneratedEnd
			}
			out = append(out, inj)
		}
	}
	return out
}
