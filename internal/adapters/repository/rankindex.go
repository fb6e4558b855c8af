package repository

import (
	"math/rand/v2"
)

// Treap ordered by rank: points DESC, then creation sequence ASC, then user id
// ASC. In-order traversal yields the leaderboard from best to worst. Subtree
// sizes make "how many accounts have more points" an O(log n) descent.

type rankKey struct {
	points int64
	seq    uint64
	id     string
}

// before reports whether a ranks ahead of b.
func (a rankKey) before(b rankKey) bool {
	if a.points != b.points {
		return a.points > b.points
	}
	if a.seq != b.seq {
		return a.seq < b.seq
	}
	return a.id < b.id
}

type node struct {
	key   rankKey
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

func insert(n *node, k rankKey, prio uint64) *node {
	if n == nil {
		return &node{key: k, prio: prio, size: 1}
	}
	if k.before(n.key) {
		n.left = insert(n.left, k, prio)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, k, prio)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, k rankKey) *node {
	if n == nil {
		return nil
	}
	switch {
	case k == n.key:
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, k)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, k)
		}
	case k.before(n.key):
		n.left = deleteNode(n.left, k)
	default:
		n.right = deleteNode(n.right, k)
	}
	fix(n)
	return n
}

// countAbove counts keys with strictly more points.
func countAbove(n *node, points int64) int {
	count := 0
	for n != nil {
		if n.key.points > points {
			count += 1 + nsize(n.left)
			n = n.right
		} else {
			n = n.left
		}
	}
	return count
}

// collectTop appends up to limit keys in rank order.
func collectTop(n *node, limit int, out *[]rankKey) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectTop(n.left, limit, out)
	if len(*out) < limit {
		*out = append(*out, n.key)
	}
	if len(*out) < limit {
		collectTop(n.right, limit, out)
	}
}

// rankIndex is not safe for concurrent use; the owning store guards it.
type rankIndex struct {
	root *node
	rng  *rand.Rand
}

func newRankIndex() *rankIndex {
	return &rankIndex{rng: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))} //nolint:gosec // treap priorities
}

func (ix *rankIndex) put(k rankKey) { ix.root = insert(ix.root, k, ix.rng.Uint64()) }

func (ix *rankIndex) remove(k rankKey) { ix.root = deleteNode(ix.root, k) }

func (ix *rankIndex) countAbove(points int64) int { return countAbove(ix.root, points) }

func (ix *rankIndex) top(limit int) []rankKey {
	out := make([]rankKey, 0, min(limit, nsize(ix.root)))
	collectTop(ix.root, limit, &out)
	return out
}

func (ix *rankIndex) size() int { return nsize(ix.root) }

func (ix *rankIndex) reset() { ix.root = nil }
