package main

import (
	"errors"
	"flag"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/tingold/gojp2"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	"golang.org/x/sync/errgroup"
)

const usage = `usage: gojp2 <command> [flags] args

commands:
  info    <file>...                      print geometry, tile grid and header size
  region  -x X -y Y -w W -h H <file>     print the streamable region for a request
  convert [-o dir] [-tile WxH] <in>...   convert PNG/JPEG/GIF/TIFF/BMP images to JPEG 2000
  extract -x X -y Y -w W -h H <in> <out.png>
                                         decode a region into a PNG

every command accepts -config <file.toml>
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	var err error
	switch os.Args[1] {
	case "info":
		err = runInfo(os.Args[2:])
	case "region":
		err = runRegion(os.Args[2:])
	case "convert":
		err = runConvert(os.Args[2:])
	case "extract":
		err = runExtract(os.Args[2:])
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s: %v", os.Args[1], err)
	}
}

// env is the configuration shared by all commands.
type env struct {
	config *gojp2.Config
	logger gojp2.Logger
	cache  *gojp2.TileCache
}

func newEnv(configPath string) (*env, error) {
	cfg, err := gojp2.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	return &env{
		config: cfg,
		logger: cfg.Logging.NewLogger(),
		cache:  gojp2.NewTileCache(cfg.Cache.SizeMB),
	}, nil
}

func (e *env) newImageIO(name string) *gojp2.JP2ImageIO {
	io := gojp2.NewJP2ImageIO(
		gojp2.WithConfig(e.config),
		gojp2.WithLogger(e.logger),
		gojp2.WithTileCache(e.cache),
	)
	io.SetFileName(name)
	return io
}

type regionFlags struct {
	x, y, w, h int
}

func (r *regionFlags) register(fs *flag.FlagSet) {
	fs.IntVar(&r.x, "x", 0, "region start column")
	fs.IntVar(&r.y, "y", 0, "region start row")
	fs.IntVar(&r.w, "w", 0, "region width (0 = to the right edge)")
	fs.IntVar(&r.h, "h", 0, "region height (0 = to the bottom edge)")
}

func (r *regionFlags) region(g gojp2.Geometry) gojp2.Region {
	w, h := r.w, r.h
	if w == 0 {
		w = g.Dimensions[0] - r.x
	}
	if h == 0 {
		h = g.Dimensions[1] - r.y
	}
	return gojp2.NewRegion2D(r.x, r.y, w, h)
}

func runInfo(args []string) error {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	configPath := fs.String("config", "", "TOML configuration file")
	fs.Parse(args)
	if fs.NArg() == 0 {
		return errors.New("no input files")
	}
	e, err := newEnv(*configPath)
	if err != nil {
		return err
	}
	defer e.logger.Shutdown()

	for _, name := range fs.Args() {
		io := e.newImageIO(name)
		if err := io.ReadImageInformation(); err != nil {
			return err
		}
		g := io.Geometry()
		header, err := io.HeaderSize()
		if err != nil {
			io.Close()
			return err
		}
		fmt.Printf("%s\n", name)
		fmt.Printf("  size:        %d x %d\n", g.Dimensions[0], g.Dimensions[1])
		fmt.Printf("  pixel:       %s, %d x %s (%d bits)\n", g.PixelType, g.Components, g.ComponentType, g.BitDepth)
		fmt.Printf("  tiles:       %d x %d (%d tiles)\n", g.TileSize[0], g.TileSize[1], g.NumTiles)
		fmt.Printf("  resolutions: %d\n", g.NumResolutions)
		fmt.Printf("  header size: %d bytes (%s)\n", header, humanize.Bytes(uint64(header)))
		fmt.Printf("  decoded:     %s\n", humanize.Bytes(uint64(g.BufferSize(g.LargestPossibleRegion()))))
		if err := io.Close(); err != nil {
			return err
		}
	}
	return nil
}

func runRegion(args []string) error {
	fs := flag.NewFlagSet("region", flag.ExitOnError)
	configPath := fs.String("config", "", "TOML configuration file")
	var rf regionFlags
	rf.register(fs)
	fs.Parse(args)
	if fs.NArg() != 1 {
		return errors.New("expected exactly one input file")
	}
	e, err := newEnv(*configPath)
	if err != nil {
		return err
	}
	defer e.logger.Shutdown()

	io := e.newImageIO(fs.Arg(0))
	defer io.Close()
	if err := io.ReadImageInformation(); err != nil {
		return err
	}
	g := io.Geometry()
	requested := rf.region(g)
	streamable, err := io.GenerateStreamableReadRegion(requested)
	if err != nil {
		return err
	}
	bound := g.RegionBound(streamable)
	fmt.Printf("requested:  %s\n", requested)
	fmt.Printf("streamable: %s\n", streamable)
	fmt.Printf("physical:   [%g %g] - [%g %g]\n", bound.Min[0], bound.Min[1], bound.Max[0], bound.Max[1])
	fmt.Printf("buffer:     %s\n", humanize.Bytes(uint64(g.BufferSize(streamable))))
	return nil
}

func parseTileSize(s string) (int, int, error) {
	w, h, found := strings.Cut(strings.ToLower(s), "x")
	if !found {
		h = w
	}
	tw, err := strconv.Atoi(w)
	if err != nil {
		return 0, 0, fmt.Errorf("bad tile size %q", s)
	}
	th, err := strconv.Atoi(h)
	if err != nil {
		return 0, 0, fmt.Errorf("bad tile size %q", s)
	}
	return tw, th, nil
}

func runConvert(args []string) error {
	fs := flag.NewFlagSet("convert", flag.ExitOnError)
	configPath := fs.String("config", "", "TOML configuration file")
	outDir := fs.String("o", ".", "output directory")
	tile := fs.String("tile", "", "tile size WxH (default from config)")
	ext := fs.String("ext", ".jp2", "output extension (.jp2 or .j2k)")
	jobs := fs.Int("j", runtime.NumCPU(), "number of files converted concurrently")
	fs.Parse(args)
	if fs.NArg() == 0 {
		return errors.New("no input files")
	}
	e, err := newEnv(*configPath)
	if err != nil {
		return err
	}
	defer e.logger.Shutdown()

	tw, th := 0, 0
	if *tile != "" {
		if tw, th, err = parseTileSize(*tile); err != nil {
			return err
		}
	}

	var g errgroup.Group
	g.SetLimit(max(*jobs, 1))
	for _, in := range fs.Args() {
		in := in
		out := filepath.Join(*outDir, strings.TrimSuffix(filepath.Base(in), filepath.Ext(in))+*ext)
		g.Go(func() error {
			start := time.Now()
			if err := convertFile(e, in, out, tw, th); err != nil {
				return fmt.Errorf("%s: %w", in, err)
			}
			e.logger.Infof("Converted %s -> %s in %s\n", in, out, time.Since(start))
			return nil
		})
	}
	return g.Wait()
}

// convertFile writes an image one tile row at a time.
func convertFile(e *env, in, out string, tileWidth, tileHeight int) error {
	f, err := os.Open(in)
	if err != nil {
		return err
	}
	img, format, err := image.Decode(f)
	f.Close()
	if err != nil {
		return err
	}
	geom, buf, err := gojp2.BufferFromImage(img)
	if err != nil {
		return err
	}
	if geom.ComponentType == gojp2.UInt16 {
		e.logger.Warningf("%s has 16-bit samples, writing 8 bits\n", in)
		geom, buf = gojp2.Reduce8(geom, buf)
	}

	io := e.newImageIO(out)
	if !io.CanWrite(out) {
		return fmt.Errorf("%w: %s", gojp2.ErrUnsupportedFormat, out)
	}
	if tileWidth > 0 {
		if err := io.SetTileSize(tileWidth, tileHeight); err != nil {
			return err
		}
	}
	if err := io.SetGeometry(geom); err != nil {
		return err
	}
	if err := io.WriteImageInformation(); err != nil {
		return err
	}

	width, height := geom.Dimensions[0], geom.Dimensions[1]
	rowBytes := width * geom.PixelBytes()
	step := io.Geometry().TileSize[1]
	for y := 0; y < height; y += step {
		h := min(step, height-y)
		io.SetIORegion(gojp2.NewRegion2D(0, y, width, h))
		if err := io.Write(buf[y*rowBytes : (y+h)*rowBytes]); err != nil {
			io.Close()
			return err
		}
	}
	if err := io.Close(); err != nil {
		return err
	}
	fmt.Printf("%s (%s, %dx%d) -> %s\n", in, format, width, height, out)
	return nil
}

func runExtract(args []string) error {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	configPath := fs.String("config", "", "TOML configuration file")
	exact := fs.Bool("exact", false, "crop to the requested region instead of the streamable region")
	var rf regionFlags
	rf.register(fs)
	fs.Parse(args)
	if fs.NArg() != 2 {
		return errors.New("expected an input file and an output PNG")
	}
	e, err := newEnv(*configPath)
	if err != nil {
		return err
	}
	defer e.logger.Shutdown()

	io := e.newImageIO(fs.Arg(0))
	defer io.Close()
	if err := io.ReadImageInformation(); err != nil {
		return err
	}
	geom := io.Geometry()
	requested := rf.region(geom)
	buf, streamable, err := io.ReadRegion(requested)
	if err != nil {
		return err
	}
	img, err := gojp2.ImageFromBuffer(buf, streamable, geom)
	if err != nil {
		return err
	}
	if *exact {
		if s, ok := img.(interface {
			SubImage(image.Rectangle) image.Image
		}); ok {
			img = s.SubImage(requested.Rectangle())
		}
	}

	out, err := os.Create(fs.Arg(1))
	if err != nil {
		return err
	}
	if err := png.Encode(out, img); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	fmt.Printf("%s %s -> %s\n", fs.Arg(0), img.Bounds(), fs.Arg(1))
	return nil
}
