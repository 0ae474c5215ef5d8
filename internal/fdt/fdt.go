package fdt

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/EduardoA3677/twrpdtgen/internal/blob"
)

// Magic is the big-endian magic word opening every blob.
const Magic = 0xd00dfeed

// Structure block tokens.
const (
	tokenBeginNode = 0x1
	tokenEndNode   = 0x2
	tokenProp      = 0x3
	tokenNop       = 0x4
	tokenEnd       = 0x9
)

const headerSize = 40 // through size_dt_struct

// FormatError reports a blob that could not be decoded: bad magic, an
// unrecognized structure token, or a reference outside a block.
type FormatError struct {
	Offset int
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("device tree blob at offset %d: %s", e.Offset, e.Reason)
}

// Handle indexes a node within its Tree's arena.
type Handle int

// Property is one name/value pair on a node. Value is the raw bytes
// from the blob; interpretation is the caller's.
type Property struct {
	Name  string
	Value []byte
}

// Node is one device tree node. Children are handles into the owning
// Tree's arena.
type Node struct {
	Name       string
	Path       string
	Properties []Property
	Children   []Handle
}

// Property returns the raw value of the named property.
func (n *Node) Property(name string) ([]byte, bool) {
	for i := range n.Properties {
		if n.Properties[i].Name == name {
			return n.Properties[i].Value, true
		}
	}
	return nil, false
}

// Tree is a parsed blob: an arena of nodes. Root is the first
// top-level node; blobs occasionally carry further top-level siblings
// (board variants), reachable via Roots.
type Tree struct {
	nodes []Node
	roots []Handle
	Root  Handle
}

// Roots returns every top-level node in blob order. Well-formed blobs
// have exactly one; variant-carrying blobs have more.
func (t *Tree) Roots() []Handle {
	return t.roots
}

// Node resolves a handle. Handles are only valid for the Tree that
// produced them.
func (t *Tree) Node(h Handle) *Node {
	return &t.nodes[h]
}

// Len returns the number of nodes in the arena.
func (t *Tree) Len() int { return len(t.nodes) }

// Lookup walks the tree by absolute path ("/a/b").
func (t *Tree) Lookup(path string) (*Node, bool) {
	if len(t.nodes) == 0 {
		return nil, false
	}
	h := t.Root
	if path == "/" || path == "" {
		return t.Node(h), true
	}
	for _, seg := range splitPath(path) {
		found := false
		for _, ch := range t.Node(h).Children {
			if t.Node(ch).Name == seg {
				h = ch
				found = true
				break
			}
		}
		if !found {
			return nil, false
		}
	}
	return t.Node(h), true
}

// CompatibleNodes returns the handles of every top-level node carrying
// a "compatible" property: each top-level node itself, then its direct
// children that have one. Order follows the blob, so the first handle
// is the primary variant and the rest are alternates.
func (t *Tree) CompatibleNodes() []Handle {
	var out []Handle
	for _, root := range t.roots {
		if _, ok := t.Node(root).Property("compatible"); ok {
			out = append(out, root)
		}
		for _, ch := range t.Node(root).Children {
			if _, ok := t.Node(ch).Property("compatible"); ok {
				out = append(out, ch)
			}
		}
	}
	return out
}

// Parse decodes a single blob. Trailing bytes after the declared
// totalsize (page padding, or a following concatenated blob) are
// ignored; use ParseAll to walk them.
func Parse(data []byte) (*Tree, error) {
	tree, _, err := parseOne(data)
	return tree, err
}

// ParseAll decodes a dtb section that may hold several blobs back to
// back, stepping by each blob's declared totalsize. Padding between and
// after blobs is skipped.
func ParseAll(data []byte) ([]*Tree, error) {
	var trees []*Tree
	pos := 0
	for {
		// Skip alignment padding between blobs.
		for pos < len(data) && data[pos] == 0 {
			pos++
		}
		if len(data)-pos < headerSize {
			break
		}
		tree, size, err := parseOne(data[pos:])
		if err != nil {
			if len(trees) > 0 {
				// A trailing partial blob does not invalidate the
				// variants already decoded.
				break
			}
			return nil, err
		}
		trees = append(trees, tree)
		pos += size
	}
	if len(trees) == 0 {
		return nil, &FormatError{Offset: pos, Reason: "no device tree blob found"}
	}
	return trees, nil
}

func parseOne(data []byte) (*Tree, int, error) {
	r := blob.NewReader(data)

	magic, err := r.ReadU32(binary.BigEndian)
	if err != nil {
		return nil, 0, &FormatError{Offset: 0, Reason: "blob shorter than header"}
	}
	if magic != Magic {
		return nil, 0, &FormatError{Offset: 0, Reason: fmt.Sprintf("bad magic %#08x, want %#08x", magic, uint32(Magic))}
	}
	totalSize, err := r.ReadU32(binary.BigEndian)
	if err != nil {
		return nil, 0, &FormatError{Offset: 4, Reason: "blob shorter than header"}
	}
	offStruct, err := r.ReadU32(binary.BigEndian)
	if err != nil {
		return nil, 0, &FormatError{Offset: 8, Reason: "blob shorter than header"}
	}
	offStrings, err := r.ReadU32(binary.BigEndian)
	if err != nil {
		return nil, 0, &FormatError{Offset: 12, Reason: "blob shorter than header"}
	}
	if err := r.Skip(4 + 4 + 4 + 4); err != nil { // off_mem_rsvmap, version, last_comp_version, boot_cpuid_phys
		return nil, 0, &FormatError{Offset: r.Offset(), Reason: "blob shorter than header"}
	}
	sizeStrings, err := r.ReadU32(binary.BigEndian)
	if err != nil {
		return nil, 0, &FormatError{Offset: 32, Reason: "blob shorter than header"}
	}
	sizeStruct, err := r.ReadU32(binary.BigEndian)
	if err != nil {
		return nil, 0, &FormatError{Offset: 36, Reason: "blob shorter than header"}
	}

	if int(totalSize) > len(data) || totalSize < headerSize {
		return nil, 0, &FormatError{Offset: 4, Reason: fmt.Sprintf("declared size %d outside blob of %d bytes", totalSize, len(data))}
	}
	if int(offStruct)+int(sizeStruct) > int(totalSize) {
		return nil, 0, &FormatError{Offset: 8, Reason: "structure block outside blob"}
	}
	if int(offStrings)+int(sizeStrings) > int(totalSize) {
		return nil, 0, &FormatError{Offset: 12, Reason: "strings block outside blob"}
	}
	strs := data[offStrings : offStrings+sizeStrings]

	tree := &Tree{}
	sr := blob.NewReader(data[offStruct : offStruct+sizeStruct])
	var stack []Handle

	for {
		tokOff := int(offStruct) + sr.Offset()
		tok, err := sr.ReadU32(binary.BigEndian)
		if err != nil {
			return nil, 0, &FormatError{Offset: tokOff, Reason: "structure block ends without END token"}
		}
		switch tok {
		case tokenBeginNode:
			name, err := sr.ReadCString()
			if err != nil {
				return nil, 0, &FormatError{Offset: tokOff, Reason: "unterminated node name"}
			}
			if err := sr.Align(4); err != nil {
				return nil, 0, &FormatError{Offset: tokOff, Reason: "truncated node name padding"}
			}
			h := Handle(len(tree.nodes))
			node := Node{Name: name}
			if len(stack) == 0 {
				node.Path = "/"
				tree.roots = append(tree.roots, h)
			} else {
				parent := tree.Node(stack[len(stack)-1])
				if parent.Path == "/" {
					node.Path = "/" + name
				} else {
					node.Path = parent.Path + "/" + name
				}
				parent.Children = append(parent.Children, h)
			}
			tree.nodes = append(tree.nodes, node)
			stack = append(stack, h)

		case tokenEndNode:
			if len(stack) == 0 {
				return nil, 0, &FormatError{Offset: tokOff, Reason: "END_NODE without matching BEGIN_NODE"}
			}
			stack = stack[:len(stack)-1]

		case tokenProp:
			if len(stack) == 0 {
				return nil, 0, &FormatError{Offset: tokOff, Reason: "property outside any node"}
			}
			length, err := sr.ReadU32(binary.BigEndian)
			if err != nil {
				return nil, 0, &FormatError{Offset: tokOff, Reason: "truncated property header"}
			}
			nameOff, err := sr.ReadU32(binary.BigEndian)
			if err != nil {
				return nil, 0, &FormatError{Offset: tokOff, Reason: "truncated property header"}
			}
			if int(nameOff) >= len(strs) {
				return nil, 0, &FormatError{Offset: tokOff, Reason: fmt.Sprintf("property name offset %d outside strings block of %d bytes", nameOff, len(strs))}
			}
			value, err := sr.ReadBytes(int(length))
			if err != nil {
				return nil, 0, &FormatError{Offset: tokOff, Reason: "truncated property value"}
			}
			if err := sr.Align(4); err != nil {
				return nil, 0, &FormatError{Offset: tokOff, Reason: "truncated property padding"}
			}
			node := tree.Node(stack[len(stack)-1])
			node.Properties = append(node.Properties, Property{
				Name:  cString(strs[nameOff:]),
				Value: value,
			})

		case tokenNop:
			// skip

		case tokenEnd:
			if len(stack) != 0 {
				return nil, 0, &FormatError{Offset: tokOff, Reason: fmt.Sprintf("END token with %d unclosed nodes", len(stack))}
			}
			if len(tree.nodes) == 0 {
				return nil, 0, &FormatError{Offset: tokOff, Reason: "blob contains no nodes"}
			}
			tree.Root = tree.roots[0]
			return tree, int(totalSize), nil

		default:
			return nil, 0, &FormatError{Offset: tokOff, Reason: fmt.Sprintf("unrecognized structure token %#x", tok)}
		}
	}
}

// PropString interprets a property value as a single NUL-terminated
// string.
func PropString(v []byte) string {
	return cString(v)
}

// PropStrings interprets a property value as a NUL-separated string
// list, the encoding of "compatible" properties.
func PropStrings(v []byte) []string {
	var out []string
	for _, part := range bytes.Split(bytes.TrimRight(v, "\x00"), []byte{0}) {
		if len(part) > 0 {
			out = append(out, string(part))
		}
	}
	return out
}

// PropU32 interprets a property value as a big-endian cell.
func PropU32(v []byte) (uint32, bool) {
	if len(v) != 4 {
		return 0, false
	}
	return binary.BigEndian.Uint32(v), true
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}

func splitPath(path string) []string {
	var segs []string
	start := 0
	for i := 0; i <= len(path); i++ {
		if i == len(path) || path[i] == '/' {
			if i > start {
				segs = append(segs, path[start:i])
			}
			start = i + 1
		}
	}
	return segs
}
