// Command bulletin parses NOAA SWPC products from local files and prints
// their decoded contents. It exercises the same parsers the engine uses, so
// an operator can inspect a bulletin offline before pointing the engine at a
// new feed snapshot.
//
// Usage:
//
//	go run ./cmd/bulletin -product 3day   -file 3-day-forecast.txt
//	go run ./cmd/bulletin -product outlook -file 27-day-outlook.txt
//	go run ./cmd/bulletin -product grid   -file ovation_aurora_latest.json -lat 64.95 -lon -147.76
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/auroralabs/aurora-alerts/internal/domain"
)

func main() {
	product := flag.String("product", "", "product to parse: 3day, outlook, or grid")
	file := flag.String("file", "", "path to the product file")
	lat := flag.Float64("lat", 0, "latitude for grid lookup (grid product only)")
	lon := flag.Float64("lon", 0, "longitude for grid lookup (grid product only)")
	flag.Parse()

	if *product == "" || *file == "" {
		flag.Usage()
		os.Exit(1)
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read %s: %v\n", *file, err)
		os.Exit(1)
	}

	var runErr error
	switch *product {
	case "3day":
		runErr = printThreeDay(data)
	case "outlook":
		runErr = printOutlook(data)
	case "grid":
		runErr = printGrid(data, *lat, *lon, flagWasSet("lat") || flagWasSet("lon"))
	default:
		fmt.Fprintf(os.Stderr, "unknown product %q (want 3day, outlook, or grid)\n", *product)
		os.Exit(1)
	}
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "%v\n", runErr)
		os.Exit(1)
	}
}

func flagWasSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

func printThreeDay(data []byte) error {
	days, err := domain.ParseThreeDayForecast(string(data))
	if err != nil {
		return err
	}

	for _, day := range days {
		fmt.Printf("%s\n", day.Date)
		for _, r := range day.Readings {
			fmt.Printf("  %-8s %5.2f\n", r.TimeSlot, r.KpIndex)
		}
	}
	return nil
}

func printOutlook(data []byte) error {
	readings, err := domain.ParseOutlook(string(data))
	if err != nil {
		return err
	}

	fmt.Printf("%-12s %11s %10s %11s\n", "date", "radio flux", "A index", "largest Kp")
	for _, r := range readings {
		fmt.Printf("%-12s %11d %10d %11d\n", r.Date, r.RadioFlux, r.PlanetaryIndex, r.LargestKpIndex)
	}
	return nil
}

func printGrid(data []byte, lat, lon float64, lookup bool) error {
	grid, err := domain.ParseGrid(data)
	if err != nil {
		return err
	}

	fmt.Printf("observation time: %s\n", grid.ObservationTime())
	fmt.Printf("forecast time:    %s\n", grid.ForecastTime())
	fmt.Printf("lattice points:   %d\n", grid.Len())

	if !lookup {
		return nil
	}

	result, err := grid.Nearest(domain.AuroraQuery{Lat: lat, Lon: lon})
	if err != nil {
		return err
	}
	fmt.Printf("nearest to (%.2f, %.2f): lattice (%.0f, %.0f) probability %.0f%%\n",
		lat, lon, result.Lat, result.Lon, result.Probability)
	return nil
}
