package rpapi

import "strings"

// StageName generates a label such as
// `find(["users"], ["id"])`
// from the inputs StageName("find", "users", "id")
func StageName(name string, args ...string) string {
	var b strings.Builder
	b.WriteString(name)
	b.WriteString("(")
	for i, arg := range args {
		b.WriteString(`["` + arg + `"]`)
		if i < len(args)-1 {
			b.WriteString(", ")
		}
	}
	b.WriteString(")")
	return b.String()
}

// hook names h after its place in the chain unless the caller already named it.
func hook(h Handler, name string) Handler {
	if h.IsZero() || h.name != "" {
		return h
	}
	return h.Named(name)
}
