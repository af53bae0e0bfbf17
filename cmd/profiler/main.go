// profiler runs uc2 decryption workloads under the Go profilers.
package main

import (
	"bytes"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // intentional profiling endpoint
	"os"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
	"time"

	"github.com/felixge/fgprof"
	"github.com/spf13/pflag"

	"github.com/meigma/uc2"
	"github.com/meigma/uc2/internal/blockcipher"
	"github.com/meigma/uc2/internal/testutil"
	"github.com/meigma/uc2/texture"
)

const (
	pkgName   = "profile.pkg"
	indexName = "1b87c6b551e518d11114ee21b7645a47.pkg"
	entryKey  = "profile-entry-key"
	dataKey   = "profile-data-key"
)

type config struct {
	mode        string
	files       int
	fileSize    int
	plainEvery  int
	partial     int
	tfo         bool
	fgProfile   string
	duration    time.Duration
	iterations  int
	pprofAddr   string
	cpuProfile  string
	memProfile  string
	traceFile   string
	textureSize int
}

//nolint:unused // sink variables prevent compiler optimizations in profiling
var (
	sinkBytes []byte
	sinkCount int
)

//nolint:gocognit,gocyclo // main function complexity is acceptable for CLI tool
func main() {
	cfg := parseFlags()

	if cfg.pprofAddr != "" {
		go func() {
			log.Printf("pprof listening on %s", cfg.pprofAddr)
			//nolint:gosec // intentional pprof server without timeouts for profiling
			if err := http.ListenAndServe(cfg.pprofAddr, nil); err != nil {
				log.Printf("pprof server error: %v", err)
			}
		}()
	}

	w, err := newWorkload(cfg)
	if err != nil {
		log.Fatal(err)
	}

	var stopFG func() error
	if cfg.fgProfile != "" {
		fgFile, fgErr := os.Create(cfg.fgProfile)
		if fgErr != nil {
			log.Fatal(fgErr)
		}
		stopFG = fgprof.Start(fgFile, fgprof.FormatPprof)
		defer func() {
			if err := stopFG(); err != nil {
				log.Printf("fgprof stop error: %v", err)
			}
			_ = fgFile.Close()
		}()
	}

	if cfg.cpuProfile != "" {
		cpuFile, cpuErr := os.Create(cfg.cpuProfile)
		if cpuErr != nil {
			log.Fatal(cpuErr) //nolint:gocritic // exitAfterDefer is intentional - cleanup is best-effort
		}
		if cpuErr = pprof.StartCPUProfile(cpuFile); cpuErr != nil {
			log.Fatal(cpuErr)
		}
		defer func() {
			pprof.StopCPUProfile()
			_ = cpuFile.Close()
		}()
	}

	if cfg.traceFile != "" {
		traceFile, traceErr := os.Create(cfg.traceFile)
		if traceErr != nil {
			log.Fatal(traceErr)
		}
		if traceErr = trace.Start(traceFile); traceErr != nil {
			log.Fatal(traceErr)
		}
		defer func() {
			trace.Stop()
			_ = traceFile.Close()
		}()
	}

	stats, err := runProfile(cfg, w)
	if err != nil {
		log.Fatal(err)
	}

	if cfg.memProfile != "" {
		runtime.GC()
		f, err := os.Create(cfg.memProfile)
		if err != nil {
			log.Fatal(err)
		}
		if err := pprof.WriteHeapProfile(f); err != nil {
			log.Fatal(err)
		}
		_ = f.Close()
	}

	fmt.Printf("mode=%s ops=%d bytes=%d elapsed=%s throughput=%.2f MB/s\n",
		cfg.mode,
		stats.ops,
		stats.bytes,
		stats.elapsed,
		float64(stats.bytes)/(1024*1024)/stats.elapsed.Seconds(),
	)
}

// workload holds the pristine encrypted inputs. Decryption works in place,
// so every op copies its input into scratch first.
type workload struct {
	pkg     []byte
	index   []byte
	texture []byte
	scratch []byte
}

func newWorkload(cfg config) (*workload, error) {
	files := make([]testutil.PkgFile, cfg.files)
	for i := range files {
		files[i] = testutil.PkgFile{
			Path:  fmt.Sprintf(`data\dir%02d\file%05d.bin`, i%16, i),
			Data:  testutil.Pattern(cfg.fileSize, byte(i)),
			Plain: cfg.plainEvery > 0 && i%cfg.plainEvery == 0,
		}
	}
	built, err := testutil.BuildPkg(testutil.PkgFixture{
		Name:     pkgName,
		EntryKey: entryKey,
		DataKey:  dataKey,
		TFO:      cfg.tfo,
		Hash:     "00000000000000000000000000000000",
		Files:    files,
	})
	if err != nil {
		return nil, fmt.Errorf("build pkg: %w", err)
	}

	lines := make([]string, 0, cfg.files+1)
	lines = append(lines, indexName)
	for i := range cfg.files {
		lines = append(lines, fmt.Sprintf("%08x.pkg", i))
	}
	index, err := testutil.BuildIndex(testutil.IndexFixture{
		Name:   indexName,
		Lines:  lines,
		Cipher: blockcipher.AES,
		Keys:   testutil.Keys(),
	})
	if err != nil {
		return nil, fmt.Errorf("build index: %w", err)
	}

	var chunks []testutil.TextureChunk
	for left := cfg.textureSize; left > 0; {
		n := min(left, 1<<20)
		chunks = append(chunks, testutil.TextureChunk{
			Data:       bytes.Repeat([]byte{byte(len(chunks))}, n),
			Compressed: true,
		})
		left -= n
	}
	tex, err := testutil.BuildTexture(chunks)
	if err != nil {
		return nil, fmt.Errorf("build texture: %w", err)
	}

	return &workload{
		pkg:     built.Data,
		index:   index,
		texture: tex,
		scratch: make([]byte, max(len(built.Data), len(index))),
	}, nil
}

func (w *workload) fresh(src []byte) []byte {
	buf := w.scratch[:len(src)]
	copy(buf, src)
	return buf
}

func (w *workload) openPkg(cfg config) (*uc2.Pkg, error) {
	p, err := uc2.NewPkg(pkgName, w.fresh(w.pkg),
		uc2.WithTFO(cfg.tfo),
		uc2.WithEntryKey(entryKey),
		uc2.WithDataKey(dataKey),
	)
	if err != nil {
		return nil, err
	}
	if err := p.DecryptHeader(); err != nil {
		return nil, err
	}
	if err := p.Parse(); err != nil {
		return nil, err
	}
	return p, nil
}

type profileStats struct {
	ops     int
	bytes   int64
	elapsed time.Duration
}

//nolint:gocognit,gocyclo,gocritic // complexity is inherent to multi-mode profiler dispatch; hugeParam acceptable for profiler
func runProfile(cfg config, w *workload) (profileStats, error) {
	start := time.Now()
	ops := 0
	var byteCount int64

	shouldContinue := func() bool {
		if cfg.iterations > 0 {
			return ops < cfg.iterations
		}
		return time.Since(start) < cfg.duration
	}

	switch cfg.mode {
	case "parse":
		for shouldContinue() {
			p, err := w.openPkg(cfg)
			if err != nil {
				return profileStats{}, err
			}
			sinkCount = len(p.Entries())
			byteCount += int64(len(w.pkg))
			ops++
		}
	case "decrypt":
		for shouldContinue() {
			p, err := w.openPkg(cfg)
			if err != nil {
				return profileStats{}, err
			}
			for _, e := range p.Entries() {
				data, err := e.DecryptFile(0)
				if err != nil {
					return profileStats{}, err
				}
				sinkBytes = data
				byteCount += int64(len(data))
			}
			ops++
		}
	case "partial":
		for shouldContinue() {
			p, err := w.openPkg(cfg)
			if err != nil {
				return profileStats{}, err
			}
			for _, e := range p.Entries() {
				n := min(uint64(cfg.partial), e.DecryptedSize()) //nolint:gosec // flag is validated non-negative
				data, err := e.DecryptFile(n)
				if err != nil {
					return profileStats{}, err
				}
				sinkBytes = data
				byteCount += int64(len(data))
			}
			ops++
		}
	case "index":
		for shouldContinue() {
			idx := uc2.NewIndex(indexName, w.fresh(w.index), uc2.WithKeyCollection(testutil.Keys()))
			if err := idx.ValidateHeader(); err != nil {
				return profileStats{}, err
			}
			if _, err := idx.Parse(); err != nil {
				return profileStats{}, err
			}
			sinkCount = idx.Len()
			byteCount += int64(len(w.index))
			ops++
		}
	case "texture":
		tex, err := texture.New(w.texture)
		if err != nil {
			return profileStats{}, err
		}
		out := make([]byte, tex.OriginalSize())
		for shouldContinue() {
			if err := tex.Decompress(out); err != nil {
				return profileStats{}, err
			}
			sinkBytes = out
			byteCount += int64(len(out))
			ops++
		}
	default:
		return profileStats{}, fmt.Errorf("unknown mode %q", cfg.mode)
	}

	return profileStats{ops: ops, bytes: byteCount, elapsed: time.Since(start)}, nil
}

func parseFlags() config {
	var cfg config
	pflag.StringVar(&cfg.mode, "mode", "decrypt", "mode: parse, decrypt, partial, index, texture")
	pflag.IntVar(&cfg.files, "files", 512, "number of pkg entries")
	pflag.IntVar(&cfg.fileSize, "file-size", 64<<10, "entry size in bytes")
	pflag.IntVar(&cfg.plainEvery, "plain-every", 0, "store every nth entry unencrypted (0: none)")
	pflag.IntVar(&cfg.partial, "partial", 4<<10, "bytes decrypted per entry in partial mode")
	pflag.BoolVar(&cfg.tfo, "tfo", false, "use the TFO pkg layout")
	pflag.IntVar(&cfg.textureSize, "texture-size", 4<<20, "decompressed texture size in bytes")
	pflag.StringVar(&cfg.fgProfile, "fgprofile", "", "write fgprof (wall clock) profile to file")
	pflag.DurationVar(&cfg.duration, "duration", 10*time.Second, "duration to run (ignored if iterations > 0)")
	pflag.IntVar(&cfg.iterations, "iterations", 0, "number of iterations to run")
	pflag.StringVar(&cfg.pprofAddr, "pprof-addr", "", "pprof listen address (e.g. :6060)")
	pflag.StringVar(&cfg.cpuProfile, "cpuprofile", "", "write CPU profile to file")
	pflag.StringVar(&cfg.memProfile, "memprofile", "", "write heap profile to file")
	pflag.StringVar(&cfg.traceFile, "trace", "", "write trace to file")
	pflag.Parse()
	if cfg.files < 0 || cfg.fileSize < 0 || cfg.partial < 0 || cfg.textureSize < 0 {
		log.Fatal("sizes must not be negative")
	}
	return cfg
}
