// Package myers implements a structural byte-level diff: the shortest
// edit script between two byte sequences, reduced to Replace spans,
// plus patch/revert/squash over that representation.
package myers

import (
	"sort"

	"golang.org/x/xerrors"
)

// Replace is a single substitution span: bytes old[OldIdx:OldIdx+OldLen]
// become new[NewIdx:NewIdx+NewLen]. OldLen or NewLen may be zero (a
// pure insert or pure delete respectively).
type Replace struct {
	OldIdx, OldLen int
	NewIdx, NewLen int
}

// Diff is a structural diff between two byte sequences: the
// concatenation of every deleted span (OldText) and of every inserted
// span (NewText), in Replaces order, plus the spans themselves.
type Diff struct {
	OldText  []byte
	NewText  []byte
	Replaces []Replace
}

// FromCompare computes the shortest edit script between old and new
// using Myers' O(ND) algorithm (each byte treated as one element of
// the matched sequence) and coalesces the resulting insert/delete runs
// into Replace spans.
func FromCompare(old, new []byte) Diff {
	ops := shortestEditScript(old, new)
	replaces := opsToReplaces(ops)
	return buildDiff(old, new, replaces)
}

// FromCreate builds the diff representing new content appearing where
// none existed before.
func FromCreate(new []byte) Diff {
	if len(new) == 0 {
		return Diff{}
	}
	return Diff{NewText: append([]byte(nil), new...), Replaces: []Replace{{OldIdx: 0, OldLen: 0, NewIdx: 0, NewLen: len(new)}}}
}

// FromDelete builds the diff representing old content disappearing
// entirely.
func FromDelete(old []byte) Diff {
	if len(old) == 0 {
		return Diff{}
	}
	return Diff{OldText: append([]byte(nil), old...), Replaces: []Replace{{OldIdx: 0, OldLen: len(old), NewIdx: 0, NewLen: 0}}}
}

func buildDiff(old, new []byte, replaces []Replace) Diff {
	var oldText, newText []byte
	for _, r := range replaces {
		oldText = append(oldText, old[r.OldIdx:r.OldIdx+r.OldLen]...)
		newText = append(newText, new[r.NewIdx:r.NewIdx+r.NewLen]...)
	}
	return Diff{OldText: oldText, NewText: newText, Replaces: replaces}
}

// Patch applies d to old, producing new.
func (d Diff) Patch(old []byte) ([]byte, error) {
	out := make([]byte, 0, len(old))
	oldPos, newTextPos := 0, 0
	for i, r := range d.Replaces {
		if r.OldIdx < oldPos || r.OldIdx+r.OldLen > len(old) {
			return nil, xerrors.Errorf("myers: patch: replace %d out of bounds (old len %d)", i, len(old))
		}
		if newTextPos+r.NewLen > len(d.NewText) {
			return nil, xerrors.Errorf("myers: patch: replace %d exceeds new_text", i)
		}
		out = append(out, old[oldPos:r.OldIdx]...)
		out = append(out, d.NewText[newTextPos:newTextPos+r.NewLen]...)
		newTextPos += r.NewLen
		oldPos = r.OldIdx + r.OldLen
	}
	out = append(out, old[oldPos:]...)
	return out, nil
}

// Revert applies d in reverse to new, recovering old.
func (d Diff) Revert(new []byte) ([]byte, error) {
	out := make([]byte, 0, len(new))
	newPos, oldTextPos := 0, 0
	for i, r := range d.Replaces {
		if r.NewIdx < newPos || r.NewIdx+r.NewLen > len(new) {
			return nil, xerrors.Errorf("myers: revert: replace %d out of bounds (new len %d)", i, len(new))
		}
		if oldTextPos+r.OldLen > len(d.OldText) {
			return nil, xerrors.Errorf("myers: revert: replace %d exceeds old_text", i)
		}
		out = append(out, new[newPos:r.NewIdx]...)
		out = append(out, d.OldText[oldTextPos:oldTextPos+r.OldLen]...)
		oldTextPos += r.OldLen
		newPos = r.NewIdx + r.NewLen
	}
	out = append(out, new[newPos:]...)
	return out, nil
}

type opTag int

const (
	opEq opTag = iota
	opDel
	opIns
)

type op struct {
	tag opTag
}

// shortestEditScript computes the Myers SES between a and b as a
// sequence of equal/delete/insert operations, one per element.
func shortestEditScript(a, b []byte) []op {
	n, m := len(a), len(b)
	max := n + m
	if max == 0 {
		return nil
	}
	offset := max
	v := make([]int, 2*max+1)
	var trace [][]int

traceLoop:
	for d := 0; d <= max; d++ {
		snapshot := make([]int, len(v))
		copy(snapshot, v)
		trace = append(trace, snapshot)
		for k := -d; k <= d; k += 2 {
			var x int
			if k == -d || (k != d && v[offset+k-1] < v[offset+k+1]) {
				x = v[offset+k+1]
			} else {
				x = v[offset+k-1] + 1
			}
			y := x - k
			for x < n && y < m && a[x] == b[y] {
				x++
				y++
			}
			v[offset+k] = x
			if x >= n && y >= m {
				break traceLoop
			}
		}
	}

	var ops []op
	x, y := n, m
	for dd := len(trace) - 1; dd >= 0; dd-- {
		vPrev := trace[dd]
		k := x - y
		var prevK int
		if k == -dd || (k != dd && vPrev[offset+k-1] < vPrev[offset+k+1]) {
			prevK = k + 1
		} else {
			prevK = k - 1
		}
		prevX := vPrev[offset+prevK]
		prevY := prevX - prevK
		for x > prevX && y > prevY {
			ops = append(ops, op{opEq})
			x--
			y--
		}
		if dd > 0 {
			if x == prevX {
				ops = append(ops, op{opIns})
			} else {
				ops = append(ops, op{opDel})
			}
		}
		x, y = prevX, prevY
	}
	// reverse
	for i, j := 0, len(ops)-1; i < j; i, j = i+1, j-1 {
		ops[i], ops[j] = ops[j], ops[i]
	}
	return ops
}

func opsToReplaces(ops []op) []Replace {
	var replaces []Replace
	oldCursor, newCursor := 0, 0
	pending := false
	var rOldStart, rNewStart int
	flush := func() {
		if pending {
			replaces = append(replaces, Replace{
				OldIdx: rOldStart, OldLen: oldCursor - rOldStart,
				NewIdx: rNewStart, NewLen: newCursor - rNewStart,
			})
			pending = false
		}
	}
	for _, o := range ops {
		switch o.tag {
		case opEq:
			flush()
			oldCursor++
			newCursor++
		case opDel:
			if !pending {
				pending = true
				rOldStart, rNewStart = oldCursor, newCursor
			}
			oldCursor++
		case opIns:
			if !pending {
				pending = true
				rOldStart, rNewStart = oldCursor, newCursor
			}
			newCursor++
		}
	}
	flush()
	return replaces
}

// endpoint kinds used by Squash's sweep over the shared v1 axis.
type endpointKind int

const (
	baseOpen endpointKind = iota
	squashOpen
	baseClose
	squashClose
)

type endpoint struct {
	pos  int
	kind endpointKind
	idx  int // index into base.Replaces or squashing.Replaces
}

// Squash composes base (v0->v1) and squashing (v1->v2) into a single
// v0->v2 diff, without reconstructing v1. It sweeps the shared v1 axis
// using four endpoint kinds per the two replace lists, tracking three
// logical cursors (v0, v1, v2) and a depth counter that is nonzero
// exactly while at least one of the two diffs has an open replace; a
// contiguous nonzero run becomes one merged Replace in the result.
func Squash(base, squashing Diff) (Diff, error) {
	var events []endpoint
	for i, r := range base.Replaces {
		events = append(events, endpoint{pos: r.NewIdx, kind: baseOpen, idx: i})
		events = append(events, endpoint{pos: r.NewIdx + r.NewLen, kind: baseClose, idx: i})
	}
	for i, r := range squashing.Replaces {
		events = append(events, endpoint{pos: r.OldIdx, kind: squashOpen, idx: i})
		events = append(events, endpoint{pos: r.OldIdx + r.OldLen, kind: squashClose, idx: i})
	}
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].pos != events[j].pos {
			return events[i].pos < events[j].pos
		}
		return rank(events[i].kind) < rank(events[j].kind)
	})

	var (
		result Diff

		v0Cursor, v2Cursor int
		lastPos             int
		baseActive          bool
		squashActive        bool

		baseOldTextCum, baseNewTextCum     int
		squashOldTextCum, squashNewTextCum int

		curBaseNewBase   int
		curSquashOldBase int
		curBaseReplace   Replace
		curSquashReplace Replace

		inRun                  bool
		runOldStart, runNewStart int
		runOld, runNew         []byte
	)

	flushGap := func(pos int) error {
		gap := pos - lastPos
		if gap < 0 {
			return xerrors.Errorf("myers: squash: non-monotonic sweep")
		}
		switch {
		case baseActive && !squashActive:
			if inRun {
				start := curBaseNewBase + (lastPos - curBaseReplace.NewIdx)
				runNew = append(runNew, base.NewText[start:start+gap]...)
			}
			v2Cursor += gap
		case squashActive && !baseActive:
			if inRun {
				start := curSquashOldBase + (lastPos - curSquashReplace.OldIdx)
				runOld = append(runOld, squashing.OldText[start:start+gap]...)
			}
			v0Cursor += gap
		case !baseActive && !squashActive:
			v0Cursor += gap
			v2Cursor += gap
		}
		lastPos = pos
		return nil
	}

	for _, ev := range events {
		if err := flushGap(ev.pos); err != nil {
			return Diff{}, err
		}
		prevDepth := depthOf(baseActive, squashActive)

		switch ev.kind {
		case baseOpen:
			r := base.Replaces[ev.idx]
			baseActive = true
			v0Cursor = r.OldIdx
			curBaseNewBase = baseNewTextCum
			curBaseReplace = r
		case squashOpen:
			r := squashing.Replaces[ev.idx]
			squashActive = true
			curSquashOldBase = squashOldTextCum
			curSquashReplace = r
		case baseClose:
			r := base.Replaces[ev.idx]
			if inRun {
				runOld = append(runOld, base.OldText[baseOldTextCum:baseOldTextCum+r.OldLen]...)
			}
			baseOldTextCum += r.OldLen
			baseNewTextCum += r.NewLen
			v0Cursor = r.OldIdx + r.OldLen
			baseActive = false
		case squashClose:
			r := squashing.Replaces[ev.idx]
			if inRun {
				runNew = append(runNew, squashing.NewText[squashNewTextCum:squashNewTextCum+r.NewLen]...)
			}
			squashOldTextCum += r.OldLen
			squashNewTextCum += r.NewLen
			v2Cursor = r.NewIdx + r.NewLen
			squashActive = false
		}

		newDepth := depthOf(baseActive, squashActive)
		if prevDepth == 0 && newDepth > 0 {
			inRun = true
			runOldStart, runNewStart = v0Cursor, v2Cursor
			runOld, runNew = nil, nil
		} else if prevDepth > 0 && newDepth == 0 {
			result.Replaces = append(result.Replaces, Replace{
				OldIdx: runOldStart, OldLen: v0Cursor - runOldStart,
				NewIdx: runNewStart, NewLen: v2Cursor - runNewStart,
			})
			result.OldText = append(result.OldText, runOld...)
			result.NewText = append(result.NewText, runNew...)
			inRun = false
		}
	}

	return result, nil
}

func rank(k endpointKind) int {
	switch k {
	case baseOpen, squashOpen:
		return 0
	default:
		return 1
	}
}

func depthOf(baseActive, squashActive bool) int {
	d := 0
	if baseActive {
		d++
	}
	if squashActive {
		d++
	}
	return d
}

