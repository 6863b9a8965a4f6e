package datasets

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/pkg/errors"
)

// flights.csv is the monthly international airline passenger totals, 1949-1960
//
//go:embed flights.csv
var flightsCSV []byte

// Flight is one month of the passenger table
type Flight struct {
	Year       int
	Month      string
	Passengers float64
}

// Flights returns the embedded table
func Flights() ([]Flight, error) {
	return ParseFlights(bytes.NewReader(flightsCSV))
}

// LoadFlights reads a year,month,passengers CSV from path
func LoadFlights(path string) ([]Flight, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open flights csv %s", path)
	}
	defer f.Close()
	flights, err := ParseFlights(f)
	return flights, errors.Wrapf(err, "parse flights csv %s", path)
}

// ParseFlights reads the flights table; the header row is required
func ParseFlights(r io.Reader) ([]Flight, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 3
	if _, err := reader.Read(); err != nil {
		return nil, errors.Wrap(err, "read header")
	}

	var out []Flight
	for line := 2; ; line++ {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		year, err := strconv.Atoi(rec[0])
		if err != nil {
			return nil, errors.Wrapf(err, "line %d: year", line)
		}
		passengers, err := strconv.ParseFloat(rec[2], 64)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d: passengers", line)
		}
		out = append(out, Flight{Year: year, Month: rec[1], Passengers: passengers})
	}
	return out, nil
}

// Passengers extracts the passenger series
func Passengers(flights []Flight) []float64 {
	out := make([]float64, len(flights))
	for i, f := range flights {
		out[i] = f.Passengers
	}
	return out
}
