// Command ssmpack converts text exports of a trained shape model into the
// SSM.bin artifact read by bivssm.
//
// Export the three datasets of SSM.h5 with numpy.savetxt, then run
//
//	ssmpack -components components.txt -mean mean.txt -variance explained_variance.txt -out model/SSM.bin
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"bivssm/pkg/ssm"
	"bivssm/pkg/vtk"
)

func main() {
	components := flag.String("components", "", "Text file with one mode per row (K x 3V)")
	mean := flag.String("mean", "", "Text file with the 3V mean coordinates")
	variance := flag.String("variance", "", "Text file with the K explained variances")
	out := flag.String("out", ssm.ModelFile, "Output artifact path")
	modes := flag.Int("modes", 0, "Keep only the leading modes (0 keeps all)")
	mesh := flag.String("mesh", "", "Optional reference mesh to check the vertex count against")
	flag.Parse()

	if *components == "" || *mean == "" || *variance == "" {
		flag.Usage()
		os.Exit(1)
	}

	files := make([]*os.File, 0, 3)
	for _, path := range []string{*components, *mean, *variance} {
		f, err := os.Open(path)
		if err != nil {
			log.Fatalf("Failed to open input: %v", err)
		}
		defer f.Close()
		files = append(files, f)
	}

	a, err := ssm.ArtifactFromText(files[0], files[1], files[2], *modes)
	if err != nil {
		log.Fatalf("Failed to read shape model: %v", err)
	}
	k, n := a.Components.Dims()

	if *mesh != "" {
		m, err := vtk.ReadFile(*mesh)
		if err != nil {
			log.Fatalf("Failed to read reference mesh: %v", err)
		}
		if 3*m.NumPoints() != n {
			log.Fatalf("Reference mesh has %d points, shape model has %d", m.NumPoints(), n/3)
		}
	}

	if err := os.MkdirAll(filepath.Dir(*out), 0755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}
	if err := ssm.WriteArtifactFile(*out, a); err != nil {
		log.Fatalf("Failed to write artifact: %v", err)
	}
	fmt.Printf("Wrote %s: %d modes, %d vertices\n", *out, k, n/3)
}
