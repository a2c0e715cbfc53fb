package engine

// LockGraph holds the run guard of g, simulating a run in progress
func LockGraph(g *Graph) func() {
	g.mu.Lock()
	return g.mu.Unlock
}

// Share is exported for testing
var Share = share
