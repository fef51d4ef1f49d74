package main

// ===========================================================================
// WHAT'S GOING ON HERE
// ===========================================================================
//
// This file implements reverse-mode automatic differentiation over a graph
// of scalar values. It is the foundation everything else is built on: the
// transformer forward pass is expressed as tens of thousands of scalar
// operations, and one backward pass computes the gradient of the loss with
// respect to every parameter.
//
// INTENTION:
// Make backpropagation visible at the level of individual numbers. There
// are no tensors here, no vectorized kernels — just values, the operations
// that produced them, and the chain rule.
//
// THE CHAIN RULE, MECHANICALLY:
//
// Every operation records, for each operand, the local derivative of its
// output with respect to that operand, evaluated at the current values:
//
//   c = a * b   =>   ∂c/∂a = b,  ∂c/∂b = a
//   c = exp(a)  =>   ∂c/∂a = exp(a)
//
// The backward pass seeds the root's gradient with 1 and pushes gradients
// down the graph: each operand accumulates localDerivative × parentGradient,
// summed over every parent that references it.
//
// THE ARENA:
//
// Nodes live in one flat slice owned by a Graph; a Val is a stable integer
// index into it. This buys three things over a pointer-per-node design:
//
//   1. Allocation is an append, and discarding an entire forward pass is a
//      slice truncation (see Reset) — no garbage for the GC to chase.
//   2. Eager construction makes creation order a topological order: every
//      operand index is smaller than its node's index. The backward pass is
//      a single reverse scan, no explicit sort needed.
//   3. Visited bookkeeping is a per-node pass id compared against a counter
//      that increments once per backward call. Repeated backward passes
//      over overlapping subgraphs never allocate or clear a visited set.
//
// Parameters are ordinary nodes created before MarkParams(); they survive
// Reset and keep their gradient accumulators across passes. The engine
// never zeroes a gradient on its own — that is the caller's job between
// optimization steps.
//
// NUMERIC POLICY:
//
// Log of a non-positive value and division by zero produce NaN or ±Inf and
// propagate through the graph instead of panicking. Early in training a
// softmax can momentarily see such values and recover; a hard failure here
// would turn a transient into a crash. Degenerate results surface to the
// caller as a non-finite loss.
//
// ===========================================================================

import "math"

// Val identifies a scalar node within its Graph. Indices are stable for the
// life of the node.
type Val int32

const noOperand Val = -1

// node is a single scalar in the expression graph: its value, its gradient
// accumulator, and up to two operand indices with the local derivative of
// this node with respect to each.
type node struct {
	data float64
	grad float64

	a, b   Val     // operand indices, noOperand if absent
	da, db float64 // ∂(this node)/∂a, ∂(this node)/∂b at construction values

	pass uint64 // last backward pass that reached this node
}

// Graph owns an arena of scalar nodes and builds the expression DAG eagerly
// as operations are applied. Not safe for concurrent use.
type Graph struct {
	nodes []node
	pass  uint64

	// Nodes below this watermark are parameters: they survive Reset and
	// their gradients persist until the caller zeroes them.
	params int
}

// NewGraph returns an empty expression graph.
func NewGraph() *Graph {
	return &Graph{nodes: make([]node, 0, 4096)}
}

func (g *Graph) push(data float64, a, b Val, da, db float64) Val {
	g.nodes = append(g.nodes, node{data: data, a: a, b: b, da: da, db: db})
	return Val(len(g.nodes) - 1)
}

// Const creates a leaf node holding x.
func (g *Graph) Const(x float64) Val {
	return g.push(x, noOperand, noOperand, 0, 0)
}

// Data returns the value held by v.
func (g *Graph) Data(v Val) float64 { return g.nodes[v].data }

// Grad returns the gradient accumulated on v by backward passes.
func (g *Graph) Grad(v Val) float64 { return g.nodes[v].grad }

// SetData overwrites the value of a leaf. This exists for the optimizer's
// in-place parameter updates; interior nodes are never rewritten.
func (g *Graph) SetData(v Val, x float64) { g.nodes[v].data = x }

// ZeroGrad clears the gradient accumulators of the given nodes. Called by
// the trainer after each update; the engine never resets gradients itself.
func (g *Graph) ZeroGrad(vs []Val) {
	for _, v := range vs {
		g.nodes[v].grad = 0
	}
}

// MarkParams freezes everything created so far as permanent. Reset will
// truncate back to this point, discarding all later nodes.
func (g *Graph) MarkParams() { g.params = len(g.nodes) }

// Reset discards every transient node built since MarkParams, reclaiming
// the arena for the next forward pass. Parameters and their gradients are
// untouched.
func (g *Graph) Reset() { g.nodes = g.nodes[:g.params] }

// Len reports the number of live nodes, parameters included.
func (g *Graph) Len() int { return len(g.nodes) }

// Add returns a + b.
func (g *Graph) Add(a, b Val) Val {
	return g.push(g.nodes[a].data+g.nodes[b].data, a, b, 1, 1)
}

// Sub returns a - b.
func (g *Graph) Sub(a, b Val) Val {
	return g.push(g.nodes[a].data-g.nodes[b].data, a, b, 1, -1)
}

// Mul returns a * b.
func (g *Graph) Mul(a, b Val) Val {
	ad, bd := g.nodes[a].data, g.nodes[b].data
	return g.push(ad*bd, a, b, bd, ad)
}

// Neg returns -a.
func (g *Graph) Neg(a Val) Val {
	return g.push(-g.nodes[a].data, a, noOperand, -1, 0)
}

// Pow returns a^p for a constant exponent p.
func (g *Graph) Pow(a Val, p float64) Val {
	ad := g.nodes[a].data
	return g.push(math.Pow(ad, p), a, noOperand, p*math.Pow(ad, p-1), 0)
}

// Div returns a / b, expressed as a * b^-1. A zero divisor yields ±Inf or
// NaN and propagates (see the numeric policy above).
func (g *Graph) Div(a, b Val) Val {
	return g.Mul(a, g.Pow(b, -1))
}

// Log returns ln(a). A non-positive operand yields NaN or -Inf rather than
// an error.
func (g *Graph) Log(a Val) Val {
	ad := g.nodes[a].data
	return g.push(math.Log(ad), a, noOperand, 1/ad, 0)
}

// Exp returns e^a.
func (g *Graph) Exp(a Val) Val {
	ed := math.Exp(g.nodes[a].data)
	return g.push(ed, a, noOperand, ed, 0)
}

// ReLU returns max(0, a).
func (g *Graph) ReLU(a Val) Val {
	ad := g.nodes[a].data
	if ad > 0 {
		return g.push(ad, a, noOperand, 1, 0)
	}
	return g.push(0, a, noOperand, 0, 0)
}

// Backward accumulates ∂root/∂node into the gradient of every node that
// root depends on.
//
// The arena guarantees operand indices are smaller than their parents', so
// a single scan from the root index downward visits nodes in reverse
// topological order. The pass id restricts the scan to nodes actually
// reachable from the root, and guarantees each is processed exactly once
// per pass even when shared by many parents.
func (g *Graph) Backward(root Val) {
	g.pass++

	rn := &g.nodes[root]
	rn.pass = g.pass
	rn.grad += 1

	for i := int(root); i >= 0; i-- {
		n := &g.nodes[i]
		if n.pass != g.pass {
			continue // not reachable from root
		}
		if n.a != noOperand {
			c := &g.nodes[n.a]
			c.pass = g.pass
			c.grad += n.da * n.grad
		}
		if n.b != noOperand {
			c := &g.nodes[n.b]
			c.pass = g.pass
			c.grad += n.db * n.grad
		}
	}
}
