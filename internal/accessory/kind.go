package accessory

import (
	"fmt"
	"strings"
)

// Kind selects how the accessory presents itself to the automation framework.
type Kind string

// Supported accessory kinds.
const (
	KindOutlet Kind = "outlet"
	KindLight  Kind = "light"
	KindSwitch Kind = "switch"
)

// ParseKind returns the Kind named by s. An empty string selects KindOutlet.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return KindOutlet, nil
	case KindOutlet, KindLight, KindSwitch:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q (want outlet, light or switch)", ErrInvalidKind, s)
	}
}

// Component is the Home Assistant entity component used for the kind.
func (k Kind) Component() string {
	if k == KindLight {
		return "light"
	}
	return "switch"
}

// DeviceClass is the Home Assistant device class, empty when none applies.
func (k Kind) DeviceClass() string {
	switch k {
	case KindOutlet:
		return "outlet"
	case KindSwitch:
		return "switch"
	default:
		return ""
	}
}
