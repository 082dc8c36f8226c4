package command

// Leaves returns every leaf reachable from cmd in execution order.
//
// Branches yield First then Second; Sequences yield elements in order. A
// leaf reachable through several paths is returned once, at its first
// position. Nil commands have no leaves.
func Leaves(cmd Command) []Leaf {
	var out []Leaf
	seen := make(map[Leaf]bool)
	var walk func(Command)
	walk = func(c Command) {
		switch v := c.(type) {
		case nil:
			return
		case Leaf:
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		case Composite:
			for _, child := range v.Commands() {
				walk(child)
			}
		}
	}
	walk(cmd)
	return out
}

// Count returns the number of distinct leaves reachable from cmd.
func Count(cmd Command) int {
	return len(Leaves(cmd))
}
