package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/meigma/uc2"
	"github.com/meigma/uc2/internal/extract"
	"github.com/meigma/uc2/internal/sizing"
	"github.com/meigma/uc2/texture"
)

func runIndex(_ context.Context, e *env, args []string) error {
	var opts options
	fs := pflag.NewFlagSet("index", pflag.ContinueOnError)
	opts.addFlags(fs)
	if done, err := parseFlags(fs, args, e, "index [flags] <index file>"); done || err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: index takes exactly one file", errUsage)
	}
	if err := opts.resolve(fs); err != nil {
		return err
	}
	keys, err := opts.keyCollection()
	if err != nil {
		return err
	}

	path := fs.Arg(0)
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	name := opts.indexName
	if name == "" {
		name = filepath.Base(path)
	}

	idx := uc2.NewIndex(name, data, uc2.WithKeyCollection(keys), uc2.WithIndexLogger(opts.logger(e.stderr)))
	if err := idx.ValidateHeader(); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if _, err := idx.Parse(); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	for _, n := range idx.Filenames() {
		fmt.Fprintln(e.stdout, n)
	}
	return nil
}

func runList(_ context.Context, e *env, args []string) error {
	var opts options
	var noDigest bool
	fs := pflag.NewFlagSet("list", pflag.ContinueOnError)
	opts.addFlags(fs)
	fs.BoolVar(&noDigest, "no-digest", false, "skip decrypting entries to compute digests")
	if done, err := parseFlags(fs, args, e, "list [flags] <pkg>"); done || err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: list takes exactly one pkg", errUsage)
	}
	if err := opts.resolve(fs); err != nil {
		return err
	}

	p, err := openPkg(fs.Arg(0), &opts, e)
	if err != nil {
		return err
	}
	var inspectOpts []uc2.InspectOption
	if noDigest {
		inspectOpts = append(inspectOpts, uc2.InspectWithoutDigests())
	}
	res, err := uc2.Inspect(p, inspectOpts...)
	if err != nil {
		return fmt.Errorf("%s: %w", fs.Arg(0), err)
	}

	tw := tabwriter.NewWriter(e.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tOFFSET\tENCRYPTED\tSIZE\tSTORED\tDIGEST")
	for _, ent := range res.Entries() {
		fmt.Fprintf(tw, "%s\t%d\t%t\t%d\t%d\t%s\n",
			ent.Path, ent.Offset, ent.Encrypted, ent.DecryptedSize, ent.EncryptedSize, ent.Digest)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "%d files, %d encrypted, %d bytes\n",
		res.FileCount(), res.EncryptedCount(), res.TotalDecryptedSize())
	return nil
}

func runExtract(ctx context.Context, e *env, args []string) error {
	var opts options
	var outDir, tarPath string
	var overwrite, best bool
	fs := pflag.NewFlagSet("extract", pflag.ContinueOnError)
	opts.addFlags(fs)
	fs.StringVarP(&outDir, "output", "o", "", "destination directory")
	fs.StringVar(&tarPath, "tar", "", "write a tar archive instead; .zst and .lz4 suffixes compress it")
	fs.BoolVar(&overwrite, "overwrite", false, "replace files that already exist in the destination")
	fs.BoolVar(&best, "best", false, "use the slowest, smallest tar compression")
	if done, err := parseFlags(fs, args, e, "extract [flags] (-o <dir> | --tar <file>) <pkg>..."); done || err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("%w: extract needs at least one pkg", errUsage)
	}
	if (outDir == "") == (tarPath == "") {
		return fmt.Errorf("%w: exactly one of --output and --tar is required", errUsage)
	}
	if err := opts.resolve(fs); err != nil {
		return err
	}

	sink, closeOut, err := openSink(outDir, tarPath, overwrite, best)
	if err != nil {
		return err
	}
	err = extractAll(ctx, sink, fs.Args(), &opts, e)
	if cerr := sink.Close(); err == nil {
		err = cerr
	}
	if cerr := closeOut(); err == nil {
		err = cerr
	}
	return err
}

func openSink(outDir, tarPath string, overwrite, best bool) (extract.Sink, func() error, error) {
	if outDir != "" {
		s, err := extract.NewFileSink(outDir, extract.WithOverwrite(overwrite))
		if err != nil {
			return nil, nil, err
		}
		return s, func() error { return nil }, nil
	}

	f, err := os.Create(tarPath) //nolint:gosec // path is chosen by the operator
	if err != nil {
		return nil, nil, err
	}
	s, err := extract.NewTarSink(f, extract.CompressionForPath(tarPath), extract.WithBestCompression(best))
	if err != nil {
		_ = f.Close()
		return nil, nil, err
	}
	return s, f.Close, nil
}

// extractAll decrypts the pkg files in parallel. Every pkg is read into its
// own buffer, so entries of different pkg files never share state.
func extractAll(ctx context.Context, sink extract.Sink, paths []string, opts *options, e *env) error {
	logger := opts.logger(e.stderr)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.jobs)
	for _, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			n, err := extractPkg(ctx, sink, path, opts, e)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			logger.Info("extracted", "pkg", path, "files", n)
			return nil
		})
	}
	return g.Wait()
}

func extractPkg(ctx context.Context, sink extract.Sink, path string, opts *options, e *env) (int, error) {
	p, err := openPkg(path, opts, e)
	if err != nil {
		return 0, err
	}
	defer p.ReleaseDataBuffer()

	if err := p.DecryptHeader(); err != nil {
		return 0, err
	}
	if err := p.Parse(); err != nil {
		return 0, err
	}

	n := 0
	for _, ent := range p.Entries() {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if !sink.ShouldProcess(ent.Path()) {
			continue
		}
		content, err := ent.DecryptFile(0)
		if err != nil {
			return n, err
		}
		if err := sink.Put(ent.Path(), content); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func openPkg(path string, opts *options, e *env) (*uc2.Pkg, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is chosen by the operator
	if err != nil {
		return nil, err
	}
	return uc2.NewPkg(filepath.Base(path), data,
		uc2.WithTFO(opts.tfo),
		uc2.WithEntryKey(opts.entryKey),
		uc2.WithDataKey(opts.dataKey),
		uc2.WithPkgLogger(opts.logger(e.stderr)),
	)
}

func runDecrypt(_ context.Context, e *env, args []string) error {
	var opts options
	var out string
	fs := pflag.NewFlagSet("decrypt", pflag.ContinueOnError)
	opts.addFlags(fs)
	fs.StringVarP(&out, "output", "o", "", "output file (default: stdout)")
	if done, err := parseFlags(fs, args, e, "decrypt [flags] [-o <out>] <encrypted file>"); done || err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: decrypt takes exactly one file", errUsage)
	}
	if err := opts.resolve(fs); err != nil {
		return err
	}
	keys, err := opts.keyCollection()
	if err != nil {
		return err
	}

	path := fs.Arg(0)
	data, err := os.ReadFile(path) //nolint:gosec // path is chosen by the operator
	if err != nil {
		return err
	}
	f, err := uc2.NewEncryptedFile(filepath.Base(path), data, keys,
		uc2.WithEncryptedFileLogger(opts.logger(e.stderr)))
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	plain, err := f.Decrypt()
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if out == "" {
		_, err = e.stdout.Write(plain)
		return err
	}
	return os.WriteFile(out, plain, 0o644) //nolint:gosec // output is a regular user file
}

func runTexture(_ context.Context, e *env, args []string) error {
	fs := pflag.NewFlagSet("texture", pflag.ContinueOnError)
	if done, err := parseFlags(fs, args, e, "texture <in> <out>"); done || err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return fmt.Errorf("%w: texture takes an input and an output file", errUsage)
	}

	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}
	tex, err := texture.New(data)
	if err != nil {
		return fmt.Errorf("%s: %w", fs.Arg(0), err)
	}
	size, err := sizing.ToInt(tex.OriginalSize(), uc2.ErrSizeOverflow)
	if err != nil {
		return fmt.Errorf("%s: %w", fs.Arg(0), err)
	}
	out := make([]byte, size)
	if err := tex.Decompress(out); err != nil {
		return fmt.Errorf("%s: %w", fs.Arg(0), err)
	}
	return os.WriteFile(fs.Arg(1), out, 0o644) //nolint:gosec // output is a regular user file
}

func runVersion(_ context.Context, e *env, _ []string) error {
	fmt.Fprintf(e.stdout, "uc2 %s\n", uc2.Version)
	return nil
}
