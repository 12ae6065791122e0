package rpapi

// Stage is one step of a route's chain. Stages are connected as a linked list by n.
// When a route serves a request it calls the first stage's F with a continuation that
// runs the next stage, so every stage decides whether the chain goes on.
// Name is logged with the results of the stage.
type Stage struct {
	Name string  // Name of the stage, for logging
	F    RawFunc // Function to execute
	n    *Stage  // Next stage
}

// Next returns the stage that runs after s, or nil.
func (s *Stage) Next() *Stage {
	return s.n
}

type Chain struct {
	First *Stage
	Last  *Stage
	Len   int
}

// Chains are defined by sending the first Stage in to the First function and then each
// following Stage into the Then function:
//
//	chain := First(stage0).Then(stage1).Then(stage2) ...
func First(s *Stage) *Chain {
	return &Chain{
		First: s,
		Last:  s,
		Len:   1,
	}
}

func (ch *Chain) Then(n *Stage) *Chain {
	if ch.First == nil {
		ch.First = n
	} else {
		ch.Last.n = n
	}
	ch.Last = n
	ch.Len++
	return ch
}

// Append concatenates chains defined by the above First+Then method. Empty chains are
// skipped. The first non-empty chain is extended in place.
func Append(chains ...*Chain) *Chain {
	var ch *Chain
	for _, next := range chains {
		if next == nil || next.First == nil {
			continue
		}
		if ch == nil {
			ch = next
			continue
		}
		ch.Last.n = next.First
		ch.Last = next.Last
		ch.Len += next.Len
	}
	if ch == nil {
		return &Chain{}
	}
	return ch
}

// Names lists the stage names in execution order.
func (ch *Chain) Names() []string {
	names := make([]string, 0, ch.Len)
	for s := ch.First; s != nil; s = s.n {
		names = append(names, s.Name)
	}
	return names
}

// stages builds a chain from handlers, skipping the zero ones.
func stages(hs ...Handler) *Chain {
	ch := &Chain{}
	for _, h := range hs {
		if h.IsZero() {
			continue
		}
		ch.Then(&Stage{Name: h.name, F: h.normalize()})
	}
	return ch
}
