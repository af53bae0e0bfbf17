// Package uc2 decrypts and parses the archive formats of a family of online
// games: index files, pkg containers and standalone encrypted files.
//
// All three formats share one building block: a CBC block cipher keyed by an
// MD5 digest of a fixed key collection (or a provider key) and the artifact's
// own file name. The library never performs file I/O. Callers read a file
// into memory and hand the buffer over; decryption happens in place and
// results are returned as sub-slices of that same buffer.
//
// # Index files
//
// An index lists the pkg files of a provider:
//
//	idx := uc2.NewIndex("1b87c6b551e518d11114ee21b7645a47.pkg", data,
//	    uc2.WithKeyCollection(keys),
//	)
//	if err := idx.ValidateHeader(); err != nil {
//	    return err
//	}
//	if _, err := idx.Parse(); err != nil {
//	    return err
//	}
//	for _, name := range idx.Filenames() {
//	    fmt.Println(name)
//	}
//
// # Pkg files
//
// A pkg holds many entries. The header and the entry table are decrypted with
// the provider's entry key, each entry with a key derived from the data key:
//
//	p, err := uc2.NewPkg(name, data,
//	    uc2.WithEntryKey(entryKey),
//	    uc2.WithDataKey(dataKey),
//	)
//	if err != nil {
//	    return err
//	}
//	if err := p.DecryptHeader(); err != nil {
//	    return err
//	}
//	if err := p.Parse(); err != nil {
//	    return err
//	}
//	for _, e := range p.Entries() {
//	    content, err := e.DecryptFile(0)
//	    ...
//	}
//
// Pkg files written by later game versions use a smaller header and 64-bit
// sizes; select that layout with [WithTFO].
//
// # Buffer ownership
//
// Every returned slice aliases the caller's buffer. Replacing the buffer with
// [Pkg.SetDataBuffer] invalidates slices returned by earlier calls. An
// artifact must not be used from more than one goroutine at a time.
package uc2
