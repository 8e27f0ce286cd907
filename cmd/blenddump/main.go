/*
Copyright 2020 Google LLC

Use of this source code is governed by a BSD-style
license that can be found in the LICENSE file or at
https://developers.google.com/open-source/licenses/bsd
*/

// Command blenddump prints the structure and contents of a .blend file.
package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"sort"

	"github.com/google/blendfile"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func run(args []string, out io.Writer) error {
	fs := newFlagSet()
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("need 1 argument")
	}

	cfg, err := LoadConfig(viper.New(), fs)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	name := fs.Arg(0)
	f, err := blendfile.OpenFile(name, &blendfile.Options{
		Logger:    logger.Named("blendfile"),
		ListLimit: cfg.List.Limit,
	})
	if err != nil {
		return errors.Wrapf(err, "open %s", name)
	}
	defer f.Close()

	d := &dumper{out: out, f: f, logger: logger}
	return d.dump(&cfg.Dump)
}

type dumper struct {
	out    io.Writer
	f      *blendfile.File
	logger *zap.Logger
}

func (d *dumper) dump(c *DumpConfig) error {
	if c.Header {
		fmt.Fprintf(d.out, "** HEADER **\n%s\n", d.f.Header())
	}
	if c.Blocks {
		d.dumpBlocks()
	}
	if c.DNA {
		d.dumpDNA(c.Prefix)
	}
	for _, code := range c.Codes {
		fmt.Fprintf(d.out, "** CODE %s **\n", code)
		if err := d.dumpInstances(d.f.ByCode(code)); err != nil {
			return errors.Wrapf(err, "code %s", code)
		}
	}
	for _, typ := range c.Types {
		fmt.Fprintf(d.out, "** TYPE %s **\n", typ)
		if err := d.dumpInstances(d.f.ByType(typ)); err != nil {
			return errors.Wrapf(err, "type %s", typ)
		}
	}
	if c.Stats {
		d.dumpStats()
	}
	return nil
}

func (d *dumper) dumpBlocks() {
	fmt.Fprintf(d.out, "** BLOCKS **\n")
	dna := d.f.DNA()
	for i := range d.f.Blocks() {
		b := &d.f.Blocks()[i]
		typ := "-"
		if int(b.SDNAIndex) < len(dna.Structs) && b.Code != blendfile.CodeDNA {
			typ = dna.StructName(int(b.SDNAIndex))
		}
		fmt.Fprintf(d.out, "%s %s\n", b, typ)
	}
}

func (d *dumper) dumpDNA(prefix string) {
	fmt.Fprintf(d.out, "** DNA **\n")
	for _, l := range d.f.StructsWithPrefix(prefix) {
		fmt.Fprintf(d.out, "struct %s (%d bytes)\n", l.Name, l.Size)
		for _, fd := range l.Fields {
			fmt.Fprintf(d.out, "  %4d %-12s %s\n", fd.Offset, fd.TypeName, fd.FieldName)
		}
	}
}

func (d *dumper) dumpInstances(it blendfile.Iterator) error {
	for {
		var inst blendfile.Instance
		ok, err := it.Next(&inst)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		fmt.Fprintf(d.out, "%s @0x%x\n", inst.Describe(), inst.Address())
		fields := inst.Fields()
		for k := range fields {
			fmt.Fprintf(d.out, "  %s = %s\n", fields[k].FieldName, d.value(inst, &fields[k]))
		}
	}
}

// value formats a field for display. Read errors are logged and shown
// inline, they do not abort the dump.
func (d *dumper) value(inst blendfile.Instance, fd *blendfile.Field) string {
	var (
		v   interface{}
		err error
	)
	name := fd.Name
	switch {
	case fd.IsPointer() && len(fd.Dims) == 0:
		var addr uint64
		addr, err = inst.Pointer(name)
		v = fmt.Sprintf("0x%x", addr)
	case fd.IsPointer():
		v = fmt.Sprintf("[%d pointers]", fd.Len())
	case fd.BaseKind() == blendfile.KindStruct:
		v = "{" + fd.TypeName + "}"
	case len(fd.Dims) > 0 && fd.ElemSize == 1 && fd.BaseKind() != blendfile.KindOpaque:
		var s string
		s, err = inst.String(name)
		v = fmt.Sprintf("%q", s)
	case len(fd.Dims) > 0:
		v = fmt.Sprintf("[%d x %s]", fd.Len(), fd.TypeName)
	case fd.BaseKind() == blendfile.KindUint && fd.ElemSize == 8:
		v, err = inst.Uint64(name)
	case fd.BaseKind() == blendfile.KindInt || fd.BaseKind() == blendfile.KindUint:
		v, err = inst.Int(name)
	case fd.BaseKind() == blendfile.KindFloat && fd.ElemSize == 4:
		v, err = inst.Float32(name)
	case fd.BaseKind() == blendfile.KindFloat && fd.ElemSize == 8:
		v, err = inst.Float64(name)
	default:
		v = "<" + fd.TypeName + ">"
	}
	if err != nil {
		d.logger.Warn("read field", zap.String("instance", inst.Describe()), zap.String("field", name), zap.Error(err))
		return "<" + err.Error() + ">"
	}
	return fmt.Sprint(v)
}

func (d *dumper) dumpStats() {
	st := d.f.Stats()
	fmt.Fprintf(d.out, "** STATS **\n%d blocks, %d bytes\n", st.Blocks, st.Bytes)
	codes := make([]string, 0, len(st.BlockStats))
	for c := range st.BlockStats {
		codes = append(codes, c.String())
	}
	sort.Strings(codes)
	for _, c := range codes {
		bs := st.BlockStats[blendfile.Code(c)]
		fmt.Fprintf(d.out, "%-4s %6d blocks %8d elements %10d bytes\n",
			c, bs.Blocks, bs.Elements, bs.Bytes)
	}
}
