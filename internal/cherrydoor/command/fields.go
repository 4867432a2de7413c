package command

import "strconv"

type field uint8

const (
	fieldOpen field = iota
	fieldClose
	fieldOpenFor
	fieldDisplayText
	fieldDisplayTextFor
	fieldSetColor
	fieldSetColorFor
	fieldPlaySound
	fieldBacklightOn
	fieldBacklightOff
)

// fieldOrder is both the bit order (highest first) and the token order.
var fieldOrder = [...]field{
	fieldOpen,
	fieldClose,
	fieldOpenFor,
	fieldDisplayText,
	fieldDisplayTextFor,
	fieldSetColor,
	fieldSetColorFor,
	fieldPlaySound,
	fieldBacklightOn,
	fieldBacklightOff,
}

var fieldBits = [...]uint16{
	fieldOpen:           0x200,
	fieldClose:          0x100,
	fieldOpenFor:        0x80,
	fieldDisplayText:    0x40,
	fieldDisplayTextFor: 0x20,
	fieldSetColor:       0x10,
	fieldSetColorFor:    0x8,
	fieldPlaySound:      0x4,
	fieldBacklightOn:    0x2,
	fieldBacklightOff:   0x1,
}

type group struct {
	name   string
	fields []field
}

// At most one field of each group may be set in a frame.
var exclusiveGroups = []group{
	{name: "open", fields: []field{fieldOpen, fieldClose, fieldOpenFor}},
	{name: "display", fields: []field{fieldDisplayText, fieldDisplayTextFor}},
	{name: "color", fields: []field{fieldSetColor, fieldSetColorFor}},
	{name: "backlight", fields: []field{fieldBacklightOn, fieldBacklightOff}},
}

func (c Command) isSet(f field) bool {
	switch f {
	case fieldOpen:
		return c.open != nil
	case fieldClose:
		return c.close != nil
	case fieldOpenFor:
		return c.openFor != nil
	case fieldDisplayText:
		return c.displayText != nil
	case fieldDisplayTextFor:
		return c.displayTextFor != nil
	case fieldSetColor:
		return c.setColor != nil
	case fieldSetColorFor:
		return c.setColorFor != nil
	case fieldPlaySound:
		return c.playSound != nil
	case fieldBacklightOn:
		return c.backlightOn != nil
	case fieldBacklightOff:
		return c.backlightOff != nil
	}
	return false
}

// flagged reports whether f contributes its bit to the mask. A boolean
// field that was explicitly set to false occupies its group but sets no bit.
func (c Command) flagged(f field) bool {
	switch f {
	case fieldOpen:
		return c.open != nil && *c.open
	case fieldClose:
		return c.close != nil && *c.close
	case fieldBacklightOn:
		return c.backlightOn != nil && *c.backlightOn
	case fieldBacklightOff:
		return c.backlightOff != nil && *c.backlightOff
	}
	return c.isSet(f)
}

// tokens returns the payload tokens of f, nil when f is unset or carries no
// payload.
func (c Command) tokens(f field) []string {
	switch f {
	case fieldOpenFor:
		if c.openFor != nil {
			return []string{itoa(*c.openFor)}
		}
	case fieldDisplayText:
		if c.displayText != nil {
			return []string{*c.displayText}
		}
	case fieldDisplayTextFor:
		if c.displayTextFor != nil {
			return []string{c.displayTextFor.text, itoa(c.displayTextFor.time)}
		}
	case fieldSetColor:
		if c.setColor != nil {
			return []string{c.setColor.Hex()}
		}
	case fieldSetColorFor:
		if c.setColorFor != nil {
			return []string{c.setColorFor.color.Hex(), itoa(c.setColorFor.time)}
		}
	case fieldPlaySound:
		if c.playSound != nil {
			return []string{itoa(*c.playSound)}
		}
	}
	return nil
}

func itoa(v int32) string { return strconv.FormatInt(int64(v), 10) }
