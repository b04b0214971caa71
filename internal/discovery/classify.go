package discovery

// Component is a Home Assistant component type.
type Component string

// Components the bridge announces.
const (
	ComponentLight        Component = "light"
	ComponentSwitch       Component = "switch"
	ComponentCover        Component = "cover"
	ComponentBinarySensor Component = "binary_sensor"
)

// appLighting is the standard C-Bus lighting application, always
// announced as a dimmable light.
const appLighting = 56

// Classifier maps C-Bus application IDs to Home Assistant components.
//
// The lighting application is always a dimmable light, regardless of
// the configured lists. Other applications are matched against the
// explicit lists in priority order (cover, switch, relay, PIR); relays
// surface as plain switches. Applications in no list are not announced.
type Classifier struct {
	cover map[int]struct{}
	sw    map[int]struct{}
	relay map[int]struct{}
	pir   map[int]struct{}
}

// NewClassifier builds a classifier from the configured application ID
// lists.
func NewClassifier(cover, sw, relay, pir []int) *Classifier {
	return &Classifier{
		cover: toSet(cover),
		sw:    toSet(sw),
		relay: toSet(relay),
		pir:   toSet(pir),
	}
}

func toSet(ids []int) map[int]struct{} {
	set := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// Classify returns the component for an application ID, or false when
// the application should not be announced.
func (c *Classifier) Classify(app int) (Component, bool) {
	switch {
	case app == appLighting:
		return ComponentLight, true
	case contains(c.cover, app):
		return ComponentCover, true
	case contains(c.sw, app):
		return ComponentSwitch, true
	case contains(c.relay, app):
		return ComponentSwitch, true
	case contains(c.pir, app):
		return ComponentBinarySensor, true
	default:
		return "", false
	}
}

func contains(set map[int]struct{}, id int) bool {
	_, ok := set[id]
	return ok
}

// ParseComponent maps a label-file type override to a component.
// Accepts the component names plus the aliases "pir" and "relay".
func ParseComponent(s string) (Component, bool) {
	switch Component(s) {
	case ComponentLight, ComponentSwitch, ComponentCover, ComponentBinarySensor:
		return Component(s), true
	}
	switch s {
	case "pir", "motion":
		return ComponentBinarySensor, true
	case "relay":
		return ComponentSwitch, true
	default:
		return "", false
	}
}
