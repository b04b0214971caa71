package discovery

import (
	"errors"
	"testing"
)

const attributeStyleTree = `<?xml version="1.0" encoding="utf-8"?>
<Network Address="254" TagName="House">
  <Application Address="56" TagName="Lighting">
    <Group Address="4" TagName="Kitchen Downlights"/>
    <Group Address="5" TagName="Lounge"/>
  </Application>
  <Application Address="203">
    <Group Address="7" TagName="Blind East"/>
  </Application>
</Network>`

const elementStyleTree = `<?xml version="1.0" encoding="utf-8"?>
<Installation>
  <Network>
    <Address>254</Address>
    <TagName>House</TagName>
    <Application>
      <ApplicationAddress>56</ApplicationAddress>
      <Group>
        <GroupAddress>4</GroupAddress>
        <TagName>Kitchen Downlights</TagName>
      </Group>
    </Application>
  </Network>
</Installation>`

func TestParseTreeAttributeStyle(t *testing.T) {
	tree, err := ParseTree(254, attributeStyleTree)
	if err != nil {
		t.Fatalf("ParseTree: %v", err)
	}

	if tree.Network != 254 || tree.Name != "House" {
		t.Errorf("tree = network %d name %q", tree.Network, tree.Name)
	}
	if len(tree.Groups) != 3 {
		t.Fatalf("got %d groups, want 3", len(tree.Groups))
	}

	first := tree.Groups[0]
	if first.Address() != "254/56/4" || first.Label != "Kitchen Downlights" {
		t.Errorf("first group = %s %q", first.Address(), first.Label)
	}

	last := tree.Groups[2]
	if last.App != 203 || last.Group != 7 || last.Label != "Blind East" {
		t.Errorf("last group = %+v", last)
	}
}

func TestParseTreeElementStyle(t *testing.T) {
	tree, err := ParseTree(254, elementStyleTree)
	if err != nil {
		t.Fatalf("ParseTree: %v", err)
	}

	if tree.Name != "House" {
		t.Errorf("Name = %q, want House", tree.Name)
	}
	if len(tree.Groups) != 1 {
		t.Fatalf("got %d groups, want 1", len(tree.Groups))
	}
	g := tree.Groups[0]
	if g.Address() != "254/56/4" || g.Label != "Kitchen Downlights" {
		t.Errorf("group = %s %q", g.Address(), g.Label)
	}
}

func TestParseTreeSkipsBadEntries(t *testing.T) {
	doc := `<Network Address="254">
  <Application Address="56">
    <Group Address="4"/>
    <Group Address="999"/>
    <Group TagName="no address"/>
    <Group Address="4" TagName="duplicate"/>
  </Application>
  <Application>
    <Group Address="1"/>
  </Application>
</Network>`

	tree, err := ParseTree(254, doc)
	if err != nil {
		t.Fatalf("ParseTree: %v", err)
	}
	if len(tree.Groups) != 1 {
		t.Fatalf("got %d groups, want 1 (bad entries skipped): %+v", len(tree.Groups), tree.Groups)
	}
	if tree.Groups[0].Address() != "254/56/4" {
		t.Errorf("group = %s", tree.Groups[0].Address())
	}
	// An unlabelled group has an empty label, not a fabricated one.
	if tree.Groups[0].Label != "" {
		t.Errorf("Label = %q, want empty", tree.Groups[0].Label)
	}
}

func TestParseTreeInvalidXML(t *testing.T) {
	if _, err := ParseTree(254, "<Network><unclosed"); !errors.Is(err, ErrInvalidTree) {
		t.Errorf("error = %v, want ErrInvalidTree", err)
	}
}
