package main

import (
	"archive/zip"
	"context"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"text/template"
	"time"

	"github.com/sigmatch/sigmatch/catalog"
	"github.com/sigmatch/sigmatch/identify"
	"github.com/sigmatch/sigmatch/loader"
)

const matchTemplate = `{{.Object}}	{{.FormatPUID}}	{{.FormatName}}	{{.SignatureName}}	{{.Elapsed}}
`
const noMatchTemplate = `{{.Object}}	-	(no match)	-	{{.Elapsed}}
`
const errorTemplate = `{{.Object}}	-	ERROR: {{.Err}}	-	{{.Elapsed}}
`

func main() {
	var sigFile, scanPath string
	var bufSize, concurrency int
	var instrument, extensionHint bool
	flag.StringVar(&sigFile, "sig", "", "path to a catalog DSL file")
	flag.StringVar(&scanPath, "path", "", "directory or zip archive to scan")
	flag.IntVar(&bufSize, "bufsize", 4096, "Sampler head/tail buffer size")
	flag.IntVar(&concurrency, "concurrency", 4, "number of objects processed in parallel")
	flag.BoolVar(&instrument, "instrument", false, "collect per-Format/per-Signature timing")
	flag.BoolVar(&extensionHint, "ext-hint", false, "restrict matching by file extension when the Catalog declares one")
	flag.Parse()

	if sigFile == "" || scanPath == "" {
		fmt.Fprintf(os.Stderr, "usage: sigmatch -sig <catalog.sig> -path <dir-or-zip>\n")
		os.Exit(1)
	}

	specs, err := loader.New().ParseFile(sigFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error parsing catalog: %v\n", err)
		os.Exit(1)
	}

	compileStart := time.Now()
	cat, err := catalog.Compile(specs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error compiling catalog: %v\n", err)
		os.Exit(1)
	}
	compileTime := time.Since(compileStart)

	objects, closeAll, err := collectObjects(scanPath, bufSize)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error collecting objects: %v\n", err)
		os.Exit(1)
	}
	defer closeAll()

	driver := identify.New(cat, identify.Config{
		BufferSize:    bufSize,
		Concurrency:   concurrency,
		Instrument:    instrument,
		ExtensionHint: extensionHint,
	}, compileTime)

	matchTmpl := template.Must(template.New("match").Parse(matchTemplate))
	noMatchTmpl := template.Must(template.New("nomatch").Parse(noMatchTemplate))
	errorTmpl := template.Must(template.New("error").Parse(errorTemplate))

	sink := identify.SinkFunc(func(r identify.Record) error {
		switch r.Kind {
		case identify.MatchRecord:
			return matchTmpl.Execute(os.Stdout, r)
		case identify.NoMatchRecord:
			return noMatchTmpl.Execute(os.Stdout, r)
		default:
			return errorTmpl.Execute(os.Stderr, r)
		}
	})

	summary, err := driver.Run(context.Background(), objects, sink)
	if err != nil {
		fmt.Fprintf(os.Stderr, "batch error: %v\n", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "\n%d formats loaded (%v), %d objects in %v (%.1f objects/sec)\n",
		summary.FormatsLoaded, summary.CompileTime, summary.ObjectsScanned, summary.WallTime, summary.ObjectsPerSec)
	if instrument {
		fmt.Fprintln(os.Stderr, "\ntop formats by accumulated match time:")
		for _, e := range summary.TopFormats {
			fmt.Fprintf(os.Stderr, "  %-20s %v (%d objects)\n", e.Label, e.Total, e.Count)
		}
		fmt.Fprintln(os.Stderr, "\ntop signatures by accumulated match time:")
		for _, e := range summary.TopSignatures {
			fmt.Fprintf(os.Stderr, "  %-20s %v (%d objects)\n", e.Label, e.Total, e.Count)
		}
	}
}

// collectObjects resolves scanPath into a batch of identify.Objects: a
// directory is walked recursively (each file a random-access Object), a
// .zip archive yields one streaming Object per entry (exercising the
// Sampler's forward-only mode, since zip.File readers cannot seek).
func collectObjects(scanPath string, bufSize int) ([]identify.Object, func(), error) {
	info, err := os.Stat(scanPath)
	if err != nil {
		return nil, func() {}, err
	}

	if !info.IsDir() && filepath.Ext(scanPath) == ".zip" {
		return collectZipObjects(scanPath)
	}

	var objects []identify.Object
	var files []*os.File
	closeAll := func() {
		for _, f := range files {
			f.Close()
		}
	}

	err = filepath.WalkDir(scanPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return nil
		}
		if d.IsDir() {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error stat-ing %s: %v\n", path, err)
			return nil
		}
		f, err := os.Open(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error opening %s: %v\n", path, err)
			return nil
		}
		files = append(files, f)
		objects = append(objects, identify.Object{Name: path, Size: fi.Size(), ReaderAt: f})
		return nil
	})
	if err != nil {
		closeAll()
		return nil, func() {}, err
	}
	return objects, closeAll, nil
}

func collectZipObjects(archivePath string) ([]identify.Object, func(), error) {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, func() {}, err
	}

	var objects []identify.Object
	for _, entry := range zr.File {
		if entry.FileInfo().IsDir() {
			continue
		}
		rc, err := entry.Open()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error opening zip entry %s: %v\n", entry.Name, err)
			continue
		}
		objects = append(objects, identify.Object{
			Name:   archivePath + "!" + entry.Name,
			Size:   int64(entry.UncompressedSize64),
			Reader: rc,
		})
	}
	return objects, func() { zr.Close() }, nil
}
