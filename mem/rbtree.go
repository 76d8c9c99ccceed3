package mem

type rbColor bool

const (
	red   rbColor = false
	black rbColor = true
)

// An rbNode is an address separator. The range from its key up to the next
// separator belongs to mapping, or to nobody when mapping is nil.
type rbNode struct {
	key     uint64
	mapping *Mapping
	color   rbColor

	left, right, parent *rbNode
}

// separatorTree is a red-black tree of address separators.
type separatorTree struct {
	root *rbNode
	size int
}

// floor returns the separator with the greatest key not above addr.
func (t *separatorTree) floor(addr uint64) *rbNode {
	var best *rbNode

	for n := t.root; n != nil; {
		switch {
		case n.key == addr:
			return n
		case n.key < addr:
			best = n
			n = n.right
		default:
			n = n.left
		}
	}

	return best
}

// ceiling returns the separator with the smallest key not below addr.
func (t *separatorTree) ceiling(addr uint64) *rbNode {
	var best *rbNode

	for n := t.root; n != nil; {
		switch {
		case n.key == addr:
			return n
		case n.key > addr:
			best = n
			n = n.left
		default:
			n = n.right
		}
	}

	return best
}

func (t *separatorTree) first() *rbNode {
	n := t.root
	if n == nil {
		return nil
	}

	for n.left != nil {
		n = n.left
	}

	return n
}

func successor(n *rbNode) *rbNode {
	if n.right != nil {
		n = n.right
		for n.left != nil {
			n = n.left
		}

		return n
	}

	p := n.parent
	for p != nil && n == p.right {
		n, p = p, p.parent
	}

	return p
}

// insert adds a separator. If the key exists, the existing node is returned
// and nothing changes.
func (t *separatorTree) insert(key uint64, m *Mapping) (*rbNode, bool) {
	var parent *rbNode

	link := &t.root
	for *link != nil {
		parent = *link

		switch {
		case key == parent.key:
			return parent, false
		case key < parent.key:
			link = &parent.left
		default:
			link = &parent.right
		}
	}

	n := &rbNode{key: key, mapping: m, color: red, parent: parent}
	*link = n
	t.size++
	t.fixInsert(n)

	return n, true
}

func colorOf(n *rbNode) rbColor {
	if n == nil {
		return black
	}

	return n.color
}

func (t *separatorTree) fixInsert(n *rbNode) {
	for colorOf(n.parent) == red {
		p := n.parent
		g := p.parent

		if p == g.left {
			uncle := g.right
			if colorOf(uncle) == red {
				p.color, uncle.color, g.color = black, black, red
				n = g

				continue
			}

			if n == p.right {
				n = p
				t.rotateLeft(n)
				p = n.parent
			}

			p.color, g.color = black, red
			t.rotateRight(g)
		} else {
			uncle := g.left
			if colorOf(uncle) == red {
				p.color, uncle.color, g.color = black, black, red
				n = g

				continue
			}

			if n == p.left {
				n = p
				t.rotateRight(n)
				p = n.parent
			}

			p.color, g.color = black, red
			t.rotateLeft(g)
		}
	}

	t.root.color = black
}

func (t *separatorTree) replaceChild(old, new *rbNode) {
	p := old.parent
	new.parent = p

	switch {
	case p == nil:
		t.root = new
	case p.left == old:
		p.left = new
	default:
		p.right = new
	}
}

func (t *separatorTree) rotateLeft(x *rbNode) {
	y := x.right
	x.right = y.left

	if y.left != nil {
		y.left.parent = x
	}

	t.replaceChild(x, y)
	y.left = x
	x.parent = y
}

func (t *separatorTree) rotateRight(x *rbNode) {
	y := x.left
	x.left = y.right

	if y.right != nil {
		y.right.parent = x
	}

	t.replaceChild(x, y)
	y.right = x
	x.parent = y
}

// blackHeight returns the number of black nodes on every root to leaf path,
// or -1 if the red-black rules are broken.
func (t *separatorTree) blackHeight() int {
	if colorOf(t.root) != black {
		return -1
	}

	return blackHeightOf(t.root)
}

func blackHeightOf(n *rbNode) int {
	if n == nil {
		return 1
	}

	if n.color == red && (colorOf(n.left) == red || colorOf(n.right) == red) {
		return -1
	}

	l, r := blackHeightOf(n.left), blackHeightOf(n.right)
	if l < 0 || l != r {
		return -1
	}

	if n.color == black {
		return l + 1
	}

	return l
}
