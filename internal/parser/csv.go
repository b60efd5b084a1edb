// Package parser: CSVParser handles the compact comma-separated wire format.
package parser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"QuadPilot/internal/model"
)

// CSVParser implements Parser using CSV format.
// Example command line: 0.500000,-0.250000,1.000000,none,1771070400000
// Fields: AXIS_X,AXIS_Y,HEIGHT,ACTION,TS_UNIX_MS
type CSVParser struct{}

// NewCSVParser creates a new CSV parser instance.
func NewCSVParser() *CSVParser { return &CSVParser{} }

// EncodeCommand converts a RawCommand into a CSV line.
func (p *CSVParser) EncodeCommand(c model.RawCommand) (string, error) {
	line := fmt.Sprintf("%.6f,%.6f,%.6f,%s,%d",
		c.AxisX, c.AxisY, c.Height, c.Action, c.Timestamp.UnixMilli())
	return line, nil
}

// DecodeCommand parses a CSV command line into a RawCommand.
func (p *CSVParser) DecodeCommand(line string) (model.RawCommand, error) {
	fields := strings.Split(strings.TrimSpace(line), ",")
	if len(fields) != 5 {
		return model.RawCommand{}, fmt.Errorf("expected 5 fields, got %d", len(fields))
	}

	x, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return model.RawCommand{}, errors.New("invalid axis_x")
	}
	y, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return model.RawCommand{}, errors.New("invalid axis_y")
	}
	h, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return model.RawCommand{}, errors.New("invalid height")
	}
	action, err := model.ParseAction(fields[3])
	if err != nil {
		return model.RawCommand{}, err
	}
	ms, err := strconv.ParseInt(fields[4], 10, 64)
	if err != nil {
		return model.RawCommand{}, errors.New("invalid timestamp")
	}

	return model.RawCommand{
		AxisX:     x,
		AxisY:     y,
		Height:    h,
		Action:    action,
		Timestamp: time.UnixMilli(ms),
	}, nil
}
