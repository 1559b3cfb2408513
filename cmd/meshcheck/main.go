// Command meshcheck inspects a model output directory without touching the
// database. It loads the map, classification and history files the way the
// ingester does and reports, per phase, anything that would make an
// ingestion pass fail or silently drop data.
//
// Usage:
//
//	go run ./cmd/meshcheck -dir storage/output -project-type 0
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"

	"github.com/couchcryptid/flood-mesh-etl/internal/adapter/netcdf"
	"github.com/couchcryptid/flood-mesh-etl/internal/domain"
)

// phase tracks pass/fail for a check phase.
type phase struct {
	name   string
	errors []string
	notes  []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) notef(format string, args ...any) {
	p.notes = append(p.notes, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	dir := flag.String("dir", "", "model output directory")
	projectType := flag.Int("project-type", int(domain.ProjectPrecomputed), "project type the run belongs to (0 precomputed, 1 real-time)")
	mapSuffix := flag.String("map-suffix", netcdf.DefaultLayout.MapSuffix, "suffix of the map file")
	clmSuffix := flag.String("classification-suffix", netcdf.DefaultLayout.ClassificationSuffix, "suffix of the classification file")
	hisSuffix := flag.String("history-suffix", netcdf.DefaultLayout.HistorySuffix, "suffix of the history file")
	flag.Parse()

	if *dir == "" {
		flag.Usage()
		os.Exit(1)
	}

	layout := netcdf.Layout{MapSuffix: *mapSuffix, ClassificationSuffix: *clmSuffix, HistorySuffix: *hisSuffix}
	if code := run(*dir, domain.ProjectType(*projectType), layout); code != 0 {
		os.Exit(code)
	}
}

func run(dir string, typ domain.ProjectType, layout netcdf.Layout) int {
	first, err := typ.FirstPersistedTimestep()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	ctx := context.Background()
	reader := netcdf.NewReader(layout, slog.New(slog.NewTextHandler(io.Discard, nil)))

	mapDS, mapErr := reader.ReadMap(ctx, dir)
	hisDS, hisErr := reader.ReadHistory(ctx, dir)

	phases := []*phase{
		checkFiles(mapErr, hisErr),
		checkMap(mapDS, mapErr, first),
		checkFaces(mapDS, mapErr),
		checkHistory(hisDS, hisErr, first),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-32s %s\n", p.name, status)
		for _, n := range p.notes {
			fmt.Printf("      %s\n", n)
		}
	}

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nOutput directory is ready for ingestion.")
		return 0
	}
	fmt.Println("\nCheck FAILED.")
	return 1
}

func checkFiles(mapErr, hisErr error) *phase {
	p := &phase{name: "Phase 1: Files"}
	if mapErr != nil {
		p.errorf("map dataset: %v", mapErr)
	}
	if hisErr != nil {
		p.errorf("history dataset: %v", hisErr)
	}
	return p
}

func checkMap(ds domain.MapDataset, loadErr error, first int) *phase {
	p := &phase{name: "Phase 2: Map dataset"}
	if loadErr != nil {
		p.notef("skipped, map dataset did not load")
		return p
	}
	if err := ds.Validate(); err != nil {
		p.errorf("%v", err)
		return p
	}
	checkTimeAxis(p, ds.Time, first)

	nonFinite := 0
	for _, row := range ds.WaterDepth {
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				nonFinite++
			}
		}
	}
	if nonFinite > 0 {
		p.notef("%d water depth values are not finite and will be skipped as dry", nonFinite)
	}

	for t, row := range ds.Risk {
		for i, v := range row {
			if v != math.Trunc(v) || domain.RiskLevel(v).Label() == "unknown" {
				p.errorf("risk at timestep %d face %d is %v, expected one of 1..4", t, i, v)
				return p
			}
		}
	}
	return p
}

func checkFaces(ds domain.MapDataset, loadErr error) *phase {
	p := &phase{name: "Phase 3: Mesh faces"}
	if loadErr != nil {
		p.notef("skipped, map dataset did not load")
		return p
	}
	if err := ds.Mesh.Validate(); err != nil {
		p.errorf("%v", err)
		return p
	}

	counts := make(map[domain.FaceShape]int)
	for i := 0; i < ds.Mesh.Faces(); i++ {
		_, shape, err := ds.Mesh.FacePolygon(i)
		if err != nil {
			p.errorf("%v", err)
			continue
		}
		counts[shape]++
	}
	p.notef("%d nodes, %d faces: %d triangles, %d quads, %d unsupported",
		len(ds.Mesh.NodeLon), ds.Mesh.Faces(),
		counts[domain.FaceTriangle], counts[domain.FaceQuad], counts[domain.FaceUnsupported])
	return p
}

func checkHistory(ds domain.HistoryDataset, loadErr error, first int) *phase {
	p := &phase{name: "Phase 4: History dataset"}
	if loadErr != nil {
		p.notef("skipped, history dataset did not load")
		return p
	}
	if err := ds.Validate(); err != nil {
		p.errorf("%v", err)
		return p
	}
	checkTimeAxis(p, ds.Time, first)

	seen := make(map[string]int, ds.Stations())
	for j, raw := range ds.StationNames {
		name := domain.StationName(raw)
		if name == "" {
			p.errorf("station %d has an empty name", j)
			continue
		}
		if prev, ok := seen[name]; ok {
			p.errorf("stations %d and %d share the name %q", prev, j, name)
			continue
		}
		seen[name] = j
	}
	p.notef("%d stations", ds.Stations())
	return p
}

func checkTimeAxis(p *phase, axis domain.TimeAxis, first int) {
	times, err := axis.Seconds()
	if err != nil {
		p.errorf("%v", err)
		return
	}
	for i := 1; i < len(times); i++ {
		if times[i] <= times[i-1] {
			p.errorf("time axis is not increasing at step %d", i)
			return
		}
	}
	if len(times) <= first {
		p.errorf("time axis has %d steps, nothing is persisted before step %d", len(times), first)
		return
	}
	p.notef("%d timesteps, persisting %s .. %s",
		len(times)-first, domain.Decode(times[first]), domain.Decode(times[len(times)-1]))
}
