// Package gesture recognizes touch gestures by matching samples against
// range-based patterns.
package gesture

// Kind identifies a gesture pattern. Built-in kinds are declared below;
// custom kinds are registered at runtime under their own names.
type Kind string

// Built-in gesture kinds, in registration order.
const (
	Tap            Kind = "tap"
	LongPress      Kind = "longPress"
	DoubleTap      Kind = "doubleTap"
	SwipeUp        Kind = "swipeUp"
	SwipeDown      Kind = "swipeDown"
	SwipeLeft      Kind = "swipeLeft"
	SwipeRight     Kind = "swipeRight"
	PinchIn        Kind = "pinchIn"
	PinchOut       Kind = "pinchOut"
	TwoFingerTap   Kind = "twoFingerTap"
	ThreeFingerTap Kind = "threeFingerTap"
	EdgeSwipeLeft  Kind = "edgeSwipeLeft"
	EdgeSwipeRight Kind = "edgeSwipeRight"
	CornerTap      Kind = "cornerTap"
)

// Type is the coarse shape of a gesture.
type Type string

// Coarse gesture types.
const (
	TypeTouch     Type = "touch"
	TypeSwipe     Type = "swipe"
	TypePinch     Type = "pinch"
	TypeEdgeSwipe Type = "edgeSwipe"
	TypeCorner    Type = "cornerTap"
)

// Types lists the coarse types a pattern may declare.
var Types = []Type{TypeTouch, TypeSwipe, TypePinch, TypeEdgeSwipe, TypeCorner}

// Edge is a screen edge.
type Edge string

// Screen edges.
const (
	EdgeLeft   Edge = "left"
	EdgeRight  Edge = "right"
	EdgeTop    Edge = "top"
	EdgeBottom Edge = "bottom"
)

// Corner is a screen corner.
type Corner string

// Screen corners.
const (
	CornerTopLeft     Corner = "topLeft"
	CornerTopRight    Corner = "topRight"
	CornerBottomLeft  Corner = "bottomLeft"
	CornerBottomRight Corner = "bottomRight"
)

// Action is what a recognized gesture triggers.
type Action string

// Actions bound by the built-in patterns.
const (
	ActionClick           Action = "click"
	ActionContextMenu     Action = "contextMenu"
	ActionDoubleClick     Action = "doubleClick"
	ActionScrollUp        Action = "scrollUp"
	ActionScrollDown      Action = "scrollDown"
	ActionNavigateBack    Action = "navigateBack"
	ActionNavigateForward Action = "navigateForward"
	ActionZoomOut         Action = "zoomOut"
	ActionZoomIn          Action = "zoomIn"
	ActionRightClick      Action = "rightClick"
	ActionShowMenu        Action = "showMenu"
	ActionQuickAction     Action = "quickAction"
)

func validType(t Type) bool {
	for _, v := range Types {
		if v == t {
			return true
		}
	}
	return false
}

// Builtins returns fresh copies of the built-in patterns in registration
// order.
func Builtins() []Pattern {
	swipe := func(k Kind, lo, hi float64, action Action, alts ...string) Pattern {
		return Pattern{
			Kind:         k,
			Type:         TypeSwipe,
			Direction:    rng(lo, hi),
			Distance:     rng(50, 500),
			Velocity:     rng(0.2, 3.0),
			Action:       action,
			Alternatives: alts,
		}
	}
	return []Pattern{
		{Kind: Tap, Type: TypeTouch, Fingers: 1, Duration: rng(50, 300), Movement: rng(0, 10), Action: ActionClick, Alternatives: []string{"click", "space", "enter"}},
		{Kind: LongPress, Type: TypeTouch, Fingers: 1, Duration: rng(800, 2000), Movement: rng(0, 15), Action: ActionContextMenu, Alternatives: []string{"rightClick", "ctrl+click"}},
		{Kind: DoubleTap, Type: TypeTouch, Fingers: 1, Duration: rng(50, 200), Interval: rng(50, 400), Movement: rng(0, 20), Action: ActionDoubleClick, Alternatives: []string{"doubleClick", "enter"}},
		swipe(SwipeUp, 80, 100, ActionScrollUp, "arrowUp", "pageUp", "wheelUp"),
		swipe(SwipeDown, 260, 280, ActionScrollDown, "arrowDown", "pageDown", "wheelDown"),
		swipe(SwipeLeft, 170, 190, ActionNavigateBack, "arrowLeft", "backspace", "escape"),
		swipe(SwipeRight, -10, 10, ActionNavigateForward, "arrowRight", "tab", "enter"),
		{Kind: PinchIn, Type: TypePinch, Fingers: 2, Scale: rng(0.5, 1.0), Action: ActionZoomOut, Alternatives: []string{"ctrl+-", "minus"}},
		{Kind: PinchOut, Type: TypePinch, Fingers: 2, Scale: rng(1.0, 2.0), Action: ActionZoomIn, Alternatives: []string{"ctrl+=", "plus"}},
		{Kind: TwoFingerTap, Type: TypeTouch, Fingers: 2, Duration: rng(50, 300), Movement: rng(0, 20), Action: ActionRightClick, Alternatives: []string{"rightClick", "contextMenu"}},
		{Kind: ThreeFingerTap, Type: TypeTouch, Fingers: 3, Duration: rng(50, 300), Movement: rng(0, 30), Action: ActionShowMenu, Alternatives: []string{"alt", "menu", "F10"}},
		{Kind: EdgeSwipeLeft, Type: TypeEdgeSwipe, Edge: EdgeLeft, Distance: rng(30, 100), Action: ActionNavigateBack, OneHandedOnly: true, Alternatives: []string{"swipeRight"}},
		{Kind: EdgeSwipeRight, Type: TypeEdgeSwipe, Edge: EdgeRight, Distance: rng(30, 100), Action: ActionShowMenu, OneHandedOnly: true, Alternatives: []string{"longPress"}},
		{Kind: CornerTap, Type: TypeCorner, Corner: CornerTopRight, Size: &[2]float64{50, 50}, Action: ActionQuickAction, OneHandedOnly: true, Alternatives: []string{"doubleTap"}},
	}
}

// IsBuiltin reports whether k names a built-in pattern.
func IsBuiltin(k Kind) bool {
	switch k {
	case Tap, LongPress, DoubleTap,
		SwipeUp, SwipeDown, SwipeLeft, SwipeRight,
		PinchIn, PinchOut, TwoFingerTap, ThreeFingerTap,
		EdgeSwipeLeft, EdgeSwipeRight, CornerTap:
		return true
	}
	return false
}
