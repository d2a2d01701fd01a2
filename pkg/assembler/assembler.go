package assembler

import (
	"encoding/json"
	"strings"
)

// defaultType is what a slot's Type defaults to when no fragment ever
// supplies one.
const defaultType = "function"

type slot struct {
	id        *string
	name      string
	arguments strings.Builder
	typ       string
	emitted   bool
}

// readyToEmit reports whether the slot currently satisfies the emission
// predicate: a non-empty name and arguments that parse as JSON once
// whitespace-trimmed.
func (s *slot) readyToEmit() bool {
	if s.emitted || s.name == "" {
		return false
	}
	args := strings.TrimSpace(s.arguments.String())
	if args == "" {
		return false
	}
	return json.Valid([]byte(args))
}

func (s *slot) toCall(index int) *AssembledCall {
	id := ""
	if s.id != nil {
		id = *s.id
	}
	typ := s.typ
	if typ == "" {
		typ = defaultType
	}
	return &AssembledCall{
		Index:     index,
		ID:        id,
		Type:      typ,
		Name:      s.name,
		Arguments: strings.TrimSpace(s.arguments.String()),
	}
}

// Assembler merges fragments into complete tool calls, one slot per
// index. It is not safe for concurrent use from multiple goroutines; a
// single upstream stream feeds it sequentially, as the design requires.
type Assembler struct {
	slots map[int]*slot
	order []int
}

// New creates an empty Assembler.
func New() *Assembler {
	return &Assembler{slots: make(map[int]*slot)}
}

// Ingest merges fragment into its slot and returns the AssembledCall if
// this fragment caused the slot to become ready. A slot emits at most
// once: later fragments at the same index are merged but never
// re-trigger emission.
func (a *Assembler) Ingest(f Fragment) *AssembledCall {
	s, ok := a.slots[f.Index]
	if !ok {
		s = &slot{}
		a.slots[f.Index] = s
		a.order = append(a.order, f.Index)
	}

	if f.IDSet {
		s.id = f.ID
	}
	if f.NameSet {
		s.name = f.Name
	}
	if f.TypeSet {
		s.typ = f.Type
	}
	if f.ArgumentsDelta != "" {
		s.arguments.WriteString(f.ArgumentsDelta)
	}

	if s.readyToEmit() {
		s.emitted = true
		return s.toCall(f.Index)
	}
	return nil
}

// Flush is called on upstream completion: every slot not yet emitted
// gets one final predicate check. Slots that still don't validate are
// discarded silently, never emitted partially. Returns emitted calls in
// the order their slots were first seen.
func (a *Assembler) Flush() []*AssembledCall {
	var out []*AssembledCall
	for _, index := range a.order {
		s := a.slots[index]
		if s.readyToEmit() {
			s.emitted = true
			out = append(out, s.toCall(index))
		}
	}
	return out
}
