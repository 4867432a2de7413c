package command

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type jsonTimedText struct {
	Text string `json:"text"`
	Time int32  `json:"time"`
}

type jsonColor struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

type jsonTimedColor struct {
	R    uint8 `json:"r"`
	G    uint8 `json:"g"`
	B    uint8 `json:"b"`
	Time int32 `json:"time"`
}

// jsonCommand is the external JSON shape of a Command. Absent keys are
// unset fields.
type jsonCommand struct {
	Open           *bool           `json:"open,omitempty"`
	Close          *bool           `json:"close,omitempty"`
	OpenFor        *int32          `json:"open_for,omitempty"`
	DisplayText    *string         `json:"display_text,omitempty"`
	DisplayTextFor *jsonTimedText  `json:"display_text_for,omitempty"`
	SetColor       *jsonColor      `json:"set_color,omitempty"`
	SetColorFor    *jsonTimedColor `json:"set_color_for,omitempty"`
	PlaySound      *int32          `json:"play_sound,omitempty"`
	BacklightOn    *bool           `json:"backlight_on,omitempty"`
	BacklightOff   *bool           `json:"backlight_off,omitempty"`
}

func (c Command) MarshalJSON() ([]byte, error) {
	jc := jsonCommand{
		Open:         c.open,
		Close:        c.close,
		OpenFor:      c.openFor,
		DisplayText:  c.displayText,
		PlaySound:    c.playSound,
		BacklightOn:  c.backlightOn,
		BacklightOff: c.backlightOff,
	}
	if c.displayTextFor != nil {
		jc.DisplayTextFor = &jsonTimedText{Text: c.displayTextFor.text, Time: c.displayTextFor.time}
	}
	if c.setColor != nil {
		jc.SetColor = &jsonColor{R: c.setColor.R, G: c.setColor.G, B: c.setColor.B}
	}
	if c.setColorFor != nil {
		col := c.setColorFor.color
		jc.SetColorFor = &jsonTimedColor{R: col.R, G: col.G, B: col.B, Time: c.setColorFor.time}
	}
	return json.Marshal(jc)
}

// UnmarshalJSON replaces c with the decoded command. Unknown keys are an
// error.
func (c *Command) UnmarshalJSON(data []byte) error {
	var jc jsonCommand
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&jc); err != nil {
		return fmt.Errorf("decode command: %w", err)
	}

	out := Command{
		open:         jc.Open,
		close:        jc.Close,
		openFor:      jc.OpenFor,
		displayText:  jc.DisplayText,
		playSound:    jc.PlaySound,
		backlightOn:  jc.BacklightOn,
		backlightOff: jc.BacklightOff,
	}
	if jc.DisplayTextFor != nil {
		out.displayTextFor = &timedText{text: jc.DisplayTextFor.Text, time: jc.DisplayTextFor.Time}
	}
	if jc.SetColor != nil {
		out.setColor = &Color{R: jc.SetColor.R, G: jc.SetColor.G, B: jc.SetColor.B}
	}
	if jc.SetColorFor != nil {
		out.setColorFor = &timedColor{
			color: Color{R: jc.SetColorFor.R, G: jc.SetColorFor.G, B: jc.SetColorFor.B},
			time:  jc.SetColorFor.Time,
		}
	}

	*c = out
	return nil
}
