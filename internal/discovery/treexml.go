package discovery

import (
	"encoding/xml"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidTree is returned when a TREEXML document cannot be parsed.
var ErrInvalidTree = errors.New("discovery: invalid tree document")

// xmlNode is a generic element used for tolerant traversal. C-Gate
// versions differ in whether addresses arrive as attributes
// (<Group Address="4">) or child elements (<GroupAddress>4</GroupAddress>),
// so the walk checks both.
type xmlNode struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Children []xmlNode  `xml:",any"`
	Text     string     `xml:",chardata"`
}

// field returns the first attribute or child element matching any of
// the given names.
func (n xmlNode) field(names ...string) (string, bool) {
	for _, attr := range n.Attrs {
		for _, name := range names {
			if attr.Name.Local == name {
				return strings.TrimSpace(attr.Value), true
			}
		}
	}
	for _, child := range n.Children {
		for _, name := range names {
			if child.XMLName.Local == name {
				return strings.TrimSpace(child.Text), true
			}
		}
	}
	return "", false
}

// findAll returns every descendant element with the given name.
func (n xmlNode) findAll(name string) []xmlNode {
	var out []xmlNode
	for _, child := range n.Children {
		if child.XMLName.Local == name {
			out = append(out, child)
		}
		out = append(out, child.findAll(name)...)
	}
	return out
}

// TreeGroup is one group found in a network tree.
type TreeGroup struct {
	Network int
	App     int
	Group   int

	// Label is the TagName from the C-Bus project, possibly empty.
	Label string
}

// Address returns the group in "network/app/group" form.
func (g TreeGroup) Address() string {
	return fmt.Sprintf("%d/%d/%d", g.Network, g.App, g.Group)
}

// Tree is a parsed TREEXML document for one network.
type Tree struct {
	Network int

	// Name is the network's TagName, possibly empty.
	Name string

	Groups []TreeGroup
}

// ParseTree parses a TREEXML document for the given network.
//
// Groups are gathered from every Application element; groups without a
// usable address are skipped rather than failing the whole document.
func ParseTree(network int, doc string) (*Tree, error) {
	var root xmlNode
	if err := xml.Unmarshal([]byte(doc), &root); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTree, err)
	}

	tree := &Tree{Network: network}

	// The root may itself be the Network element, or wrap one.
	netNode := root
	if root.XMLName.Local != "Network" {
		if nodes := root.findAll("Network"); len(nodes) > 0 {
			netNode = nodes[0]
		}
	}
	if name, ok := netNode.field("TagName", "Name"); ok {
		tree.Name = name
	}

	seen := make(map[string]struct{})
	for _, appNode := range root.findAll("Application") {
		appStr, ok := appNode.field("Address", "ApplicationAddress")
		if !ok {
			continue
		}
		app, err := strconv.Atoi(appStr)
		if err != nil || app < 0 || app > 255 {
			continue
		}

		for _, groupNode := range appNode.findAll("Group") {
			groupStr, ok := groupNode.field("Address", "GroupAddress")
			if !ok {
				continue
			}
			group, err := strconv.Atoi(groupStr)
			if err != nil || group < 0 || group > 255 {
				continue
			}

			tg := TreeGroup{Network: network, App: app, Group: group}
			if label, ok := groupNode.field("TagName", "Label"); ok {
				tg.Label = label
			}

			// Some project dumps repeat groups across sub-elements.
			if _, dup := seen[tg.Address()]; dup {
				continue
			}
			seen[tg.Address()] = struct{}{}
			tree.Groups = append(tree.Groups, tg)
		}
	}

	return tree, nil
}
