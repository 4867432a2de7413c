// Package command builds outbound instruction frames for the cherry door
// controller.
//
// A frame is a decimal bitmask naming the actions present, followed by the
// payload tokens of those actions, every element terminated by a semicolon:
//
//	<mask>;<token>;<token>;...;
//
// Commands are values. Each builder method returns a modified copy, so a
// Command can be composed in any order and encoded without further mutation.
package command

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrConflict is matched (via errors.Is) by every BuildError.
var ErrConflict = errors.New("command conflict")

// conflictMessage is the fixed text the firmware tooling expects to see.
const conflictMessage = "Command contains elements that cannot coexist."

// BuildError reports that two or more mutually exclusive actions were
// requested in the same frame. Group names the first offending group.
type BuildError struct {
	Group string
}

func (e *BuildError) Error() string { return conflictMessage }

func (e *BuildError) Unwrap() error { return ErrConflict }

// Color is an RGB triplet.
type Color struct {
	R, G, B uint8
}

// Hex renders the colour as "#rrggbb", two lowercase digits per channel.
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

type timedText struct {
	text string
	time int32
}

type timedColor struct {
	color Color
	time  int32
}

// Command is one outbound frame. The zero value is an empty frame.
type Command struct {
	open           *bool
	close          *bool
	openFor        *int32
	displayText    *string
	displayTextFor *timedText
	setColor       *Color
	setColorFor    *timedColor
	playSound      *int32
	backlightOn    *bool
	backlightOff   *bool
}

// New returns an empty command.
func New() Command { return Command{} }

func ptr[T any](v T) *T { return &v }

// Open unlocks the door.
func (c Command) Open() Command {
	c.open = ptr(true)
	return c
}

// Close locks the door.
func (c Command) Close() Command {
	c.close = ptr(true)
	return c
}

// OpenFor unlocks the door for the given time; the value is forwarded to the
// firmware as is.
func (c Command) OpenFor(time int32) Command {
	c.openFor = ptr(time)
	return c
}

func (c Command) DisplayText(text string) Command {
	c.displayText = ptr(text)
	return c
}

func (c Command) DisplayTextFor(text string, time int32) Command {
	c.displayTextFor = &timedText{text: text, time: time}
	return c
}

func (c Command) SetColor(r, g, b uint8) Command {
	c.setColor = &Color{R: r, G: g, B: b}
	return c
}

func (c Command) SetColorFor(r, g, b uint8, time int32) Command {
	c.setColorFor = &timedColor{color: Color{R: r, G: g, B: b}, time: time}
	return c
}

func (c Command) PlaySound(soundID int32) Command {
	c.playSound = ptr(soundID)
	return c
}

func (c Command) BacklightOn() Command {
	c.backlightOn = ptr(true)
	return c
}

func (c Command) BacklightOff() Command {
	c.backlightOff = ptr(true)
	return c
}

// Encode validates the command and renders the wire frame.
//
// No output is produced when any exclusivity group holds more than one
// action; the error is then a *BuildError.
func (c Command) Encode() (string, error) {
	if err := c.validate(); err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(strconv.FormatUint(uint64(c.Mask()), 10))
	b.WriteByte(';')
	for _, f := range fieldOrder {
		for _, tok := range c.tokens(f) {
			b.WriteString(tok)
			b.WriteByte(';')
		}
	}
	return b.String(), nil
}

// Mask returns the OR of the bits of every field that is set. Boolean
// fields only count when true.
func (c Command) Mask() uint16 {
	var mask uint16
	for _, f := range fieldOrder {
		if c.flagged(f) {
			mask |= fieldBits[f]
		}
	}
	return mask
}

// IsEmpty reports whether no field has been set.
func (c Command) IsEmpty() bool {
	for _, f := range fieldOrder {
		if c.isSet(f) {
			return false
		}
	}
	return true
}

func (c Command) validate() error {
	for _, g := range exclusiveGroups {
		n := 0
		for _, f := range g.fields {
			if c.isSet(f) {
				n++
			}
		}
		if n > 1 {
			return &BuildError{Group: g.name}
		}
	}
	return nil
}
