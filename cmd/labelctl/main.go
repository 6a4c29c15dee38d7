// Command labelctl checks, exports and renders annotation sidecars without the
// terminal UI.
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"ocrlabel/internal/annotate"
	"ocrlabel/internal/common"
	"ocrlabel/internal/export"
	"ocrlabel/internal/render"
	"ocrlabel/internal/schema"
	"ocrlabel/internal/store"
)

const usage = `usage: labelctl <command> [flags]

commands:
  validate [-data dir] [file.json ...]   check sidecars against the document schema
  export   [-data dir] -format csv|xlsx|geojson [-out file]
  render   [-data dir] -id id [-out file.png] [-width px]
  schema                                 print the document JSON Schema
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}
	logger := common.NewLogger(stderr, os.Getenv("OCRLABEL_LOG_LEVEL"))
	ctx := context.Background()

	var err error
	switch args[0] {
	case "validate":
		err = runValidate(ctx, args[1:], stdout, logger)
	case "export":
		err = runExport(ctx, args[1:], stdout, logger)
	case "render":
		err = runRender(ctx, args[1:], stdout, logger)
	case "schema":
		_, err = stdout.Write(schema.Source())
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "labelctl: unknown command %q\n%s", args[0], usage)
		return 2
	}
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "labelctl %s: %v\n", args[0], err)
		return 1
	}
	return 0
}

func dataFlag(fs *flag.FlagSet) *string {
	def := os.Getenv("OCRLABEL_DATA_DIR")
	if def == "" {
		def = "./data"
	}
	return fs.String("data", def, "directory of images and JSON sidecars")
}

func runValidate(ctx context.Context, args []string, stdout io.Writer, logger *slog.Logger) error {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	dir := dataFlag(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	files := fs.Args()
	if len(files) == 0 {
		entries, err := store.NewDir(*dir, nil, logger).Catalog(ctx)
		if err != nil {
			return err
		}
		for _, e := range entries {
			files = append(files, filepath.Join(*dir, e.ID+".json"))
		}
	}

	bad := 0
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err == nil {
			err = schema.Validate(data)
		}
		if err != nil {
			bad++
			fmt.Fprintf(stdout, "FAIL %s: %v\n", f, err)
			continue
		}
		fmt.Fprintf(stdout, "ok   %s\n", f)
	}
	if bad > 0 {
		return common.NewAppError("VALIDATION", fmt.Sprintf("%d of %d documents invalid", bad, len(files)), common.ErrValidation)
	}
	return nil
}

func runExport(ctx context.Context, args []string, stdout io.Writer, logger *slog.Logger) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	dir := dataFlag(fs)
	format := fs.String("format", "csv", "csv, xlsx or geojson")
	out := fs.String("out", "", "output file (default stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	rows, err := export.Collect(ctx, store.NewDir(*dir, nil, logger), logger)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	switch strings.ToLower(*format) {
	case "csv":
		err = export.WriteCSV(&buf, rows)
	case "xlsx":
		var b []byte
		if b, err = export.XLSX(rows); err == nil {
			buf.Write(b)
		}
	case "geojson":
		var b []byte
		if b, err = export.GeoJSON(rows); err == nil {
			buf.Write(b)
		}
	default:
		return common.Invalidf("unknown format %q", *format)
	}
	if err != nil {
		return err
	}
	logger.Info("export.done", "format", *format, "rows", len(rows))
	return writeOut(*out, buf.Bytes(), stdout)
}

func runRender(ctx context.Context, args []string, stdout io.Writer, logger *slog.Logger) error {
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	dir := dataFlag(fs)
	id := fs.String("id", "", "image id (required)")
	out := fs.String("out", "", "output PNG (default <id>.annotated.png)")
	width := fs.Int("width", 0, "downscale to this width, keeping aspect (0 = native)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return common.Invalidf("-id is required")
	}

	st := store.NewDir(*dir, nil, logger)
	raw, err := st.Image(ctx, *id)
	if err != nil {
		return err
	}
	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("decode image %q: %w", *id, err)
	}
	data, err := st.Document(ctx, *id)
	if err != nil {
		return err
	}
	doc, err := annotate.Parse(data)
	if err != nil {
		return err
	}

	dst, err := render.RenderImage(src, doc, render.DefaultOptions())
	if err != nil {
		return err
	}
	if b := dst.Bounds(); *width > 0 && *width < b.Dx() {
		small := image.NewRGBA(image.Rect(0, 0, *width, max(1, b.Dy()**width/b.Dx())))
		render.Fit(small, dst)
		dst = small
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return err
	}
	if *out == "" {
		*out = *id + ".annotated.png"
	}
	return writeOut(*out, buf.Bytes(), stdout)
}

func writeOut(path string, data []byte, stdout io.Writer) error {
	if path == "" || path == "-" {
		_, err := stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
