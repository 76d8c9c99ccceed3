package mem

import (
	"fmt"
	"strconv"

	"github.com/pkg/errors"

	"github.com/sarchlab/sparta/param"
	"github.com/sarchlab/sparta/tree"
)

// MemoryObjectNode is an observable memory object that lives in the device
// tree.
type MemoryObjectNode struct {
	*BlockingMemoryIFNode
	Object *MemoryObject
}

// NewMemoryObjectNode creates a memory object and wraps it.
func NewMemoryObjectNode(
	name string,
	blockSize, size uint64,
	fill uint64,
	fillSize int,
) (*MemoryObjectNode, error) {
	o, err := NewMemoryObject(name, blockSize, size, fill, fillSize)
	if err != nil {
		return nil, err
	}

	return &MemoryObjectNode{
		BlockingMemoryIFNode: NewBlockingMemoryIFNode(name, o),
		Object:               o,
	}, nil
}

func powerOfTwo(v uint64) (bool, string) {
	if v == 0 || v&(v-1) != 0 {
		return false, fmt.Sprintf("%d is not a power of two", v)
	}

	return true, ""
}

// MemoryObjectFactory builds a MemoryObjectNode from the parameters
// block_size, size, fill and fill_size.
var MemoryObjectFactory = &tree.Factory{
	TypeName: "memory_object",
	ParamsFunc: func(location string) *param.Set {
		s := param.NewSet(location)

		param.New(s, "block_size", uint64(64), "block size in bytes").
			AddValidator(powerOfTwo)
		param.New(s, "size", uint64(1<<20), "size in bytes")
		param.New(s, "fill", uint64(0), "fill pattern of unwritten bytes")
		param.New(s, "fill_size", int64(1), "fill pattern size in bytes")

		s.AddValidator("size_multiple_of_block", func(s *param.Set) (bool, string) {
			bs, _ := param.Lookup[uint64](s, "block_size")
			size, _ := param.Lookup[uint64](s, "size")

			if bs.Peek() == 0 || size.Peek()%bs.Peek() != 0 {
				return false, "size must be a multiple of block_size"
			}

			return true, ""
		})

		return s
	},
	CreateFunc: func(n *tree.Node) (any, error) {
		ps := n.Params()
		bs, _ := param.Lookup[uint64](ps, "block_size")
		size, _ := param.Lookup[uint64](ps, "size")
		fill, _ := param.Lookup[uint64](ps, "fill")
		fillSize, _ := param.Lookup[int64](ps, "fill_size")

		return NewMemoryObjectNode(n.Location(),
			bs.Get(), size.Get(), fill.Get(), int(fillSize.Get()))
	},
}

// MemoryMapFactory builds a SimpleMemoryMapNode. The mappings parameter is a
// table of rows [start, end, destination node, destination offset], where
// the destination is a dotted path below the root. Mappings are added when
// binding, after every destination exists.
var MemoryMapFactory = &tree.Factory{
	TypeName: "memory_map",
	ParamsFunc: func(location string) *param.Set {
		s := param.NewSet(location)

		param.New(s, "block_size", uint64(64), "block size in bytes").
			AddValidator(powerOfTwo)
		param.New(s, "size", uint64(1<<32), "size of the mapped address space")
		param.New(s, "mappings", [][]string{}, "rows of start, end, destination, offset")

		return s
	},
	CreateFunc: func(n *tree.Node) (any, error) {
		ps := n.Params()
		bs, _ := param.Lookup[uint64](ps, "block_size")
		size, _ := param.Lookup[uint64](ps, "size")

		// The rows are used when binding, once the destinations exist.
		rows, _ := param.Lookup[[][]string](ps, "mappings")
		rows.Get()

		return NewSimpleMemoryMapNode(n.Location(), bs.Get(), size.Get()), nil
	},
	EarlyFunc: func(n *tree.Node) error {
		m, _ := tree.ResourceAs[*SimpleMemoryMapNode](n)
		rows, _ := param.Lookup[[][]string](n.Params(), "mappings")

		for _, row := range rows.Peek() {
			if err := addMappingRow(n, m, row); err != nil {
				return errors.Wrapf(err, "mapping %v of %s", row, n.Location())
			}
		}

		return nil
	},
}

func addMappingRow(n *tree.Node, m *SimpleMemoryMapNode, row []string) error {
	if len(row) != 4 {
		return fmt.Errorf("want 4 columns, got %d", len(row))
	}

	var nums [3]uint64

	for i, col := range []int{0, 1, 3} {
		v, err := strconv.ParseUint(row[col], 0, 64)
		if err != nil {
			return err
		}

		nums[i] = v
	}

	destNode, err := n.Root().GetChild(row[2])
	if err != nil {
		return err
	}

	dest, ok := tree.ResourceAs[BlockingMemoryIF](destNode)
	if !ok {
		return fmt.Errorf("%s is not a memory interface", destNode.Location())
	}

	return m.AddMapping(nums[0], nums[1], dest, nums[2])
}
