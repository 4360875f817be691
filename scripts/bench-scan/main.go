// bench-scan measures index build and scan time and heap use on synthetic
// archives, one scan per worker count.
//
// Usage:
//
//	go run ./scripts/bench-scan --classes 20000 --members 20 --workers 1,4,8 \
//	  --profile-dir docs/profiles/scan
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"strconv"
	"strings"
	"time"

	"github.com/Sumatoshi-tech/annoscan/internal/classgen"
	"github.com/Sumatoshi-tech/annoscan/pkg/archive"
	"github.com/Sumatoshi-tech/annoscan/pkg/scan"
)

const benchAnnotation = "org.example.bench.Restricted"

type heapSnapshot struct {
	label     string
	elapsed   time.Duration
	heapInUse uint64
	heapSys   uint64
	numGC     uint32
}

func main() {
	classes := flag.Int("classes", 5000, "Application classes to scan")
	members := flag.Int("members", 20, "Annotated methods in the library")
	workerList := flag.String("workers", "1,"+strconv.Itoa(runtime.NumCPU()), "Comma-separated scan worker counts")
	profileDir := flag.String("profile-dir", "", "Directory to write heap profiles")
	cpuProfile := flag.Bool("cpu-profile", false, "Write CPU profile to profile-dir/cpu.prof")

	flag.Parse()

	if *profileDir == "" {
		log.Fatal("--profile-dir is required")
	}

	workers, err := parseWorkers(*workerList)
	if err != nil {
		log.Fatalf("parse --workers: %v", err)
	}

	err = os.MkdirAll(*profileDir, 0o755)
	if err != nil {
		log.Fatalf("mkdir profile-dir: %v", err)
	}

	if *cpuProfile {
		cpuPath := filepath.Join(*profileDir, "cpu.prof")

		cpuFile, cpuErr := os.Create(cpuPath)
		if cpuErr != nil {
			log.Fatalf("create cpu profile: %v", cpuErr)
		}
		defer cpuFile.Close()

		startErr := pprof.StartCPUProfile(cpuFile)
		if startErr != nil {
			log.Fatalf("start cpu profile: %v", startErr)
		}

		defer pprof.StopCPUProfile()

		log.Printf("CPU profiling enabled -> %s", cpuPath)
	}

	lib, app := filepath.Join(*profileDir, "lib.jar"), filepath.Join(*profileDir, "app.jar")

	err = writeFixtures(lib, app, *classes, *members)
	if err != nil {
		log.Fatalf("write fixtures: %v", err)
	}

	log.Printf("generated %d application classes against %d annotated methods", *classes, *members)

	var snapshots []heapSnapshot

	takeSnapshot := func(label string, elapsed time.Duration) {
		runtime.GC()
		runtime.GC()

		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		snapshots = append(snapshots, heapSnapshot{
			label:     label,
			elapsed:   elapsed,
			heapInUse: m.HeapInuse,
			heapSys:   m.HeapSys,
			numGC:     m.NumGC,
		})
		log.Printf("  [heap] %-30s inuse=%6.1f MB  sys=%6.1f MB  %v",
			label, float64(m.HeapInuse)/1e6, float64(m.HeapSys)/1e6, elapsed)
	}

	writeHeapProfile := func(name string) {
		path := filepath.Join(*profileDir, name)

		f, ferr := os.Create(path)
		if ferr != nil {
			log.Printf("warning: create heap profile %s: %v", path, ferr)

			return
		}
		defer f.Close()

		perr := pprof.WriteHeapProfile(f)
		if perr != nil {
			log.Printf("warning: write heap profile %s: %v", path, perr)
		}
	}

	ctx := context.Background()

	takeSnapshot("before_build", 0)

	start := time.Now()

	built, err := archive.BuildIndex(ctx, []string{lib}, archive.BuildOptions{Targets: []string{benchAnnotation}})
	if err != nil {
		log.Fatalf("build index: %v", err)
	}

	takeSnapshot("after_build", time.Since(start))
	writeHeapProfile("heap_after_build.prof")

	for _, n := range workers {
		start = time.Now()

		res, scanErr := scan.Run(ctx, built.Index, []string{app}, scan.Options{Workers: n})
		if scanErr != nil {
			log.Fatalf("scan with %d workers: %v", n, scanErr)
		}

		label := fmt.Sprintf("scan_workers_%d", n)
		takeSnapshot(label, time.Since(start))
		writeHeapProfile("heap_" + label + ".prof")

		log.Printf("  %d usages in %d classes", res.Usages.Len(), res.Classes)
	}

	fmt.Println()
	fmt.Println("=== Timeline ===")
	fmt.Printf("%-30s %12s %10s %10s %6s\n", "Phase", "Elapsed", "InUse(MB)", "Sys(MB)", "GCs")
	fmt.Println("------------------------------+------------+----------+----------+------")

	for _, s := range snapshots {
		fmt.Printf("%-30s %12v %10.1f %10.1f %6d\n",
			s.label, s.elapsed.Round(time.Microsecond), float64(s.heapInUse)/1e6, float64(s.heapSys)/1e6, s.numGC)
	}
}

// writeFixtures writes a library whose methods carry benchAnnotation and an
// application in which every class calls one of them.
func writeFixtures(lib, app string, classes, members int) error {
	api := classgen.New("org/example/bench/Api")
	for i := range members {
		api.Method("call"+strconv.Itoa(i), "()V", benchAnnotation)
	}

	err := classgen.Jar{}.Add(api).Write(lib)
	if err != nil {
		return err
	}

	jar := classgen.Jar{}

	for i := range classes {
		c := classgen.New(fmt.Sprintf("com/example/app/C%06d", i))
		c.MethodRef("org/example/bench/Api", "call"+strconv.Itoa(i%max(members, 1)), "()V")
		c.Method("run", "()V")
		jar.Add(c)
	}

	return jar.Write(app)
}

func parseWorkers(list string) ([]int, error) {
	var workers []int

	for field := range strings.SplitSeq(list, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil {
			return nil, err
		}

		if n < 1 {
			return nil, fmt.Errorf("worker count %d must be positive", n)
		}

		workers = append(workers, n)
	}

	return workers, nil
}
