package ml

// evaluate walks a validated tree to its leaf. Children always follow their
// parent, so the walk terminates in at most len(nodes) steps.
func (t *Tree) evaluate(x []float64) float64 {
	i := 0
	for {
		node := t.Nodes[i]
		if node.Leaf {
			return node.Value
		}
		if x[node.Feature] <= node.Threshold {
			i = node.Left
		} else {
			i = node.Right
		}
	}
}
