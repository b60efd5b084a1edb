// Package parser: JSONParser handles the JSON wire format.
package parser

import (
	"encoding/json"
	"time"

	"QuadPilot/internal/model"
)

// JSONParser implements Parser using JSON serialization.
type JSONParser struct{}

// NewJSONParser creates a new JSON parser.
func NewJSONParser() *JSONParser { return &JSONParser{} }

// jsonCommand is the wire shape; the action travels by name and the timestamp
// as unix milliseconds so non-Go senders do not need RFC3339 formatting.
type jsonCommand struct {
	AxisX  float64 `json:"axis_x"`
	AxisY  float64 `json:"axis_y"`
	Height float64 `json:"height"`
	Action string  `json:"action"`
	TsMs   int64   `json:"ts_ms"`
}

// EncodeCommand encodes a RawCommand into a JSON string.
func (p *JSONParser) EncodeCommand(c model.RawCommand) (string, error) {
	b, err := json.Marshal(jsonCommand{
		AxisX:  c.AxisX,
		AxisY:  c.AxisY,
		Height: c.Height,
		Action: c.Action.String(),
		TsMs:   c.Timestamp.UnixMilli(),
	})
	return string(b), err
}

// DecodeCommand decodes a JSON string into a RawCommand.
func (p *JSONParser) DecodeCommand(s string) (model.RawCommand, error) {
	var w jsonCommand
	if err := json.Unmarshal([]byte(s), &w); err != nil {
		return model.RawCommand{}, err
	}
	action, err := model.ParseAction(w.Action)
	if err != nil {
		return model.RawCommand{}, err
	}
	return model.RawCommand{
		AxisX:     w.AxisX,
		AxisY:     w.AxisY,
		Height:    w.Height,
		Action:    action,
		Timestamp: time.UnixMilli(w.TsMs),
	}, nil
}
