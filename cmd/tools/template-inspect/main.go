// Command template-inspect decodes a binary fingerprint template file
// and prints its header, minutia points, and content hash. The input
// may be the raw binary template or its base64 encoding.
package main

import (
	"encoding/base64"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/kweli-data/minutiae.registry/internal/template"
)

func main() {
	showPoints := flag.Bool("points", true, "print decoded minutia points")
	flag.Parse()

	if flag.NArg() != 1 {
		log.Fatal("usage: template-inspect [-points=false] <template-file>")
	}

	data, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		log.Fatalf("failed to read template: %v", err)
	}

	if !template.IsEncoded(data) {
		// Maybe a base64-encoded template saved as text.
		decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(data)))
		if err != nil || !template.IsEncoded(decoded) {
			log.Fatal("input is not a fingerprint template")
		}
		data = decoded
	}

	hdr, err := template.ParseHeader(data)
	if err != nil {
		log.Fatalf("failed to parse header: %v", err)
	}

	fmt.Printf("declared length:  %d (actual %d)\n", hdr.Length, len(data))
	fmt.Printf("format version:   0x%08X\n", hdr.Version)
	fmt.Printf("image dimensions: %dx%d\n", hdr.Width, hdr.Height)
	fmt.Printf("resolution:       %dx%d px/cm\n", hdr.XResolution, hdr.YResolution)
	fmt.Printf("finger quality:   %d\n", hdr.Quality)
	fmt.Printf("minutia count:    %d\n", hdr.MinutiaCount)

	points, err := template.Decode(data)
	if err != nil {
		log.Fatalf("failed to decode minutiae: %v", err)
	}
	if len(points) != int(hdr.MinutiaCount) {
		fmt.Printf("warning: header declares %d minutiae, decoded %d\n", hdr.MinutiaCount, len(points))
	}

	if *showPoints {
		fmt.Println()
		for i, p := range points {
			fmt.Printf("%3d: x=%3d y=%3d theta=%3d\n", i, p.X, p.Y, p.Theta)
		}
	}

	fmt.Printf("\ncontent hash: %s\n", template.Hash(points))
}
