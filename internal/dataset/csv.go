package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"truckplan/internal/model"
)

// CSV loaders for the three input tables. Headers are matched
// case-insensitively; each loader fails fast on a missing required
// column rather than guessing.

type header struct {
	idx map[string]int
}

func readHeader(rec []string) header {
	h := header{idx: map[string]int{}}
	for i, name := range rec {
		h.idx[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return h
}

func (h header) require(cols ...string) error {
	missing := []string{}
	for _, c := range cols {
		if _, ok := h.idx[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return validationf("missing columns: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (h header) str(rec []string, col string) string {
	return strings.TrimSpace(rec[h.idx[col]])
}

func (h header) float(rec []string, col string) (float64, error) {
	raw := h.str(rec, col)
	v, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
	if err != nil {
		return 0, validationf("column %s: bad number %q", col, raw)
	}
	return v, nil
}

func openCSV(path string) (*csv.Reader, *os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	return r, f, nil
}

// LoadDestinations reads the destination facility table (shift window
// and sorting rate per facility) into t.
func (t *Tables) LoadDestinations(path string) error {
	r, f, err := openCSV(path)
	if err != nil {
		return err
	}
	defer f.Close()

	rec, err := r.Read()
	if err != nil {
		return fmt.Errorf("read %s header: %w", path, err)
	}
	h := readHeader(rec)
	if err := h.require("facility_id", "shift_start", "shift_end", "sort_rate_per_hour"); err != nil {
		return err
	}
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		fac := model.Facility{ID: h.str(rec, "facility_id")}
		if _, ok := h.idx["name"]; ok {
			fac.Name = h.str(rec, "name")
		}
		if fac.ShiftStart, err = h.float(rec, "shift_start"); err != nil {
			return err
		}
		if fac.ShiftEnd, err = h.float(rec, "shift_end"); err != nil {
			return err
		}
		if fac.SortRate, err = h.float(rec, "sort_rate_per_hour"); err != nil {
			return err
		}
		if _, ok := h.idx["lat"]; ok {
			fac.Lat, _ = h.float(rec, "lat")
			fac.Lng, _ = h.float(rec, "lng")
		}
		t.Destinations[fac.ID] = fac
	}
	t.NormalizeShifts()
	return nil
}

// LoadConsignments reads the consignment table into t. release_hour is
// the planned end of loading at the origin, in hours of day.
func (t *Tables) LoadConsignments(path string) error {
	r, f, err := openCSV(path)
	if err != nil {
		return err
	}
	defer f.Close()

	rec, err := r.Read()
	if err != nil {
		return fmt.Errorf("read %s header: %w", path, err)
	}
	h := readHeader(rec)
	if err := h.require("id", "origin_id", "destination_id", "release_hour", "quantity"); err != nil {
		return err
	}
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		c := model.Consignment{
			ID:          h.str(rec, "id"),
			Origin:      h.str(rec, "origin_id"),
			Destination: h.str(rec, "destination_id"),
		}
		if c.ReleaseHour, err = h.float(rec, "release_hour"); err != nil {
			return err
		}
		if c.Quantity, err = h.float(rec, "quantity"); err != nil {
			return err
		}
		t.Consignments = append(t.Consignments, c)
	}
	return nil
}

// LoadLanes reads the lane table (measured road travel time and
// distance per directed facility pair) into t.
func (t *Tables) LoadLanes(path string) error {
	r, f, err := openCSV(path)
	if err != nil {
		return err
	}
	defer f.Close()

	rec, err := r.Read()
	if err != nil {
		return fmt.Errorf("read %s header: %w", path, err)
	}
	h := readHeader(rec)
	if err := h.require("origin_id", "destination_id", "travel_sec"); err != nil {
		return err
	}
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		l := model.Lane{
			Origin:      h.str(rec, "origin_id"),
			Destination: h.str(rec, "destination_id"),
		}
		if l.TravelSec, err = h.float(rec, "travel_sec"); err != nil {
			return err
		}
		if _, ok := h.idx["distance_m"]; ok {
			if l.DistanceM, err = h.float(rec, "distance_m"); err != nil {
				return err
			}
		}
		t.Lanes[LaneKey{Origin: l.Origin, Destination: l.Destination}] = l
	}
	return nil
}

// Load reads all three tables from dir using the default file names.
func Load(dir string) (*Tables, error) {
	t := NewTables()
	if err := t.LoadDestinations(dir + "/destinations.csv"); err != nil {
		return nil, err
	}
	if err := t.LoadConsignments(dir + "/consignments.csv"); err != nil {
		return nil, err
	}
	if err := t.LoadLanes(dir + "/lanes.csv"); err != nil {
		return nil, err
	}
	return t, nil
}
