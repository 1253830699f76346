// Package solomon parses Solomon-format VRPTW benchmark instances into the
// structured problem representation the solver consumes.
package solomon

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"vrptw/internal/model"
)

const (
	headerLine    = 4 // "<vehicle count> <capacity>"
	customersFrom = 9 // first customer row
	customerCols  = 7 // id x y demand ready due service
)

// Parse reads a Solomon instance: line 5 carries the vehicle count and the
// uniform fleet capacity, customer rows of seven integers start at line 10
// with the depot first. Rows with the wrong column count are skipped, as
// the reference datasets contain banner and blank lines; a malformed header
// is fatal.
func Parse(r io.Reader) (model.ProblemIn, error) {
	var out model.ProblemIn
	var vehicleCount, capacity int
	headerSeen := false

	sc := bufio.NewScanner(r)
	for lineNo := 0; sc.Scan(); lineNo++ {
		line := strings.TrimSpace(sc.Text())
		if lineNo == headerLine {
			fields := strings.Fields(line)
			if len(fields) != 2 {
				return out, fmt.Errorf("solomon: header line %d: want 2 fields, got %d", headerLine+1, len(fields))
			}
			var err error
			if vehicleCount, err = strconv.Atoi(fields[0]); err != nil {
				return out, fmt.Errorf("solomon: vehicle count: %w", err)
			}
			if capacity, err = strconv.Atoi(fields[1]); err != nil {
				return out, fmt.Errorf("solomon: capacity: %w", err)
			}
			headerSeen = true
			continue
		}
		if lineNo < customersFrom || line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != customerCols {
			continue
		}
		vals := make([]int, customerCols)
		bad := false
		for i, f := range fields {
			v, err := strconv.Atoi(f)
			if err != nil {
				bad = true
				break
			}
			vals[i] = v
		}
		if bad {
			continue
		}
		out.Customers = append(out.Customers, model.CustomerIn{
			ID: vals[0], X: vals[1], Y: vals[2], Demand: vals[3],
			ReadyTime: vals[4], DueDate: vals[5], ServiceTime: vals[6],
		})
	}
	if err := sc.Err(); err != nil {
		return out, fmt.Errorf("solomon: read: %w", err)
	}
	if !headerSeen {
		return out, fmt.Errorf("solomon: missing header line %d", headerLine+1)
	}
	if len(out.Customers) == 0 {
		return out, fmt.Errorf("solomon: no customer rows")
	}
	if vehicleCount <= 0 || capacity <= 0 {
		return out, fmt.Errorf("solomon: invalid fleet %d x capacity %d", vehicleCount, capacity)
	}

	out.Vehicles = make([]model.VehicleIn, vehicleCount)
	for i := range out.Vehicles {
		out.Vehicles[i] = model.VehicleIn{ID: i, Capacity: capacity}
	}
	out.Depot = 0
	return out, nil
}
