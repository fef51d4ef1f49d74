package main

// ===========================================================================
// KV CACHE
// ===========================================================================
//
// The forward pass processes one token at a time. For each new position,
// attention needs the key and value vectors of every earlier position —
// and those never change once computed. So each layer's keys and values
// are written into this cache as they are produced, and attention reads
// back positions 0..current.
//
// Two properties fall out of this design:
//
//   - Causality is structural. Position t's scores are computed against the
//     cache contents at the time, which is exactly positions 0..t. There is
//     no mask matrix because there is nothing to mask.
//   - Capacity is fixed. The cache is sized to the model's context length
//     up front; a position beyond it is a programming error, not a resize.
//
// The slots hold graph node indices, not floats: during training the
// backward pass flows through cached keys and values into the projection
// weights of earlier positions. A cache is scoped to a single document
// pass or a single generation call and is reset (or discarded) afterwards,
// together with the transient part of the graph.
//
// ===========================================================================

// KVCache stores per-layer key/value vectors indexed by position.
type KVCache struct {
	keys   [][][]Val // [layer][position][dim]
	values [][][]Val
	filled int // positions written so far
}

// NewKVCache creates an empty cache for numLayers layers and at most
// contextSize positions.
func NewKVCache(numLayers, contextSize int) *KVCache {
	c := &KVCache{
		keys:   make([][][]Val, numLayers),
		values: make([][][]Val, numLayers),
	}
	for i := range c.keys {
		c.keys[i] = make([][]Val, contextSize)
		c.values[i] = make([][]Val, contextSize)
	}
	return c
}

// Put stores the key and value vectors for one layer at one position.
// Must be called before attention reads that position.
func (c *KVCache) Put(layer, pos int, k, v []Val) {
	if pos >= len(c.keys[layer]) {
		panic("kv cache: position beyond context size")
	}
	c.keys[layer][pos] = k
	c.values[layer][pos] = v
	if pos+1 > c.filled {
		c.filled = pos + 1
	}
}

// Key returns the cached key vector for a layer and position.
func (c *KVCache) Key(layer, pos int) []Val { return c.keys[layer][pos] }

// Value returns the cached value vector for a layer and position.
func (c *KVCache) Value(layer, pos int) []Val { return c.values[layer][pos] }

// Len reports the number of positions written.
func (c *KVCache) Len() int { return c.filled }

// Reset empties the cache for reuse within the same graph scope. Slot
// contents are overwritten by subsequent Puts.
func (c *KVCache) Reset() { c.filled = 0 }
