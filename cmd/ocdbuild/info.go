package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/gogpu/ocgfx/ocd"
)

func runInfo(args []string) error {
	flags := flag.NewFlagSet("info", flag.ContinueOnError)
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: ocdbuild info <file.ocd>")
		return flag.ErrHelp
	}
	path := flags.Arg(0)
	data, kind, err := ocd.Load(os.DirFS(filepath.Dir(path)), filepath.Base(path))
	if err != nil {
		return err
	}
	return describe(os.Stdout, data, kind)
}

func describe(w io.Writer, data []byte, kind ocd.ResourceType) error {
	fmt.Fprintf(w, "type: %v (%d bytes)\n", kind, len(data))
	switch kind {
	case ocd.TypeImage:
		img, err := ocd.ReadImage(data)
		if err != nil {
			return err
		}
		describeImage(w, img, "")
		return nil
	case ocd.TypeScene:
		s, err := ocd.ReadScene(data)
		if err != nil {
			return err
		}
		return describeScene(w, s)
	default:
		return errors.Newf("no description for %v resources", kind)
	}
}

func describeImage(w io.Writer, img *ocd.Image, indent string) {
	fmt.Fprintf(w, "%sformat: %v, %d mips\n", indent, img.Format, len(img.Mips))
	for i, m := range img.Mips {
		fmt.Fprintf(w, "%s  mip %d: %dx%d, %d bytes at %d\n", indent, i, m.Width, m.Height, m.Size, m.Offset)
	}
}

func describeScene(w io.Writer, s *ocd.Scene) error {
	fmt.Fprintf(w, "subresources: %d\n", len(s.Subresources))
	for i, sr := range s.Subresources {
		idx := uint32(i)
		if sr.Internal() {
			fmt.Fprintf(w, "  %d: embedded, %d bytes\n", i, sr.DataSize)
			continue
		}
		path, err := s.SubresourcePath(idx)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "  %d: %s\n", i, path)
	}
	fmt.Fprintf(w, "objects: %d\n", len(s.Objects))

	var walk func(idx uint32, depth int) error
	walk = func(idx uint32, depth int) error {
		name, err := s.ObjectName(idx)
		if err != nil {
			return err
		}
		o := s.Objects[idx]
		indent := strings.Repeat("  ", depth+1)
		fmt.Fprintf(w, "%s%s position %v scale %v\n", indent, name, o.Position, o.Scale)
		for _, c := range s.ObjectComponents(idx) {
			if err := describeComponent(w, s, c, indent+"  "); err != nil {
				return err
			}
		}
		for _, child := range s.Children(idx) {
			if err := walk(child, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	for _, root := range s.Children(ocd.ObjectNone) {
		if err := walk(root, 0); err != nil {
			return err
		}
	}
	return nil
}

func describeComponent(w io.Writer, s *ocd.Scene, c ocd.Component, indent string) error {
	switch c.Type {
	case ocd.ComponentTypeScene:
		idx, err := s.SceneSubresource(c)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%sscene component: subresource %d\n", indent, idx)
	case ocd.ComponentTypeMesh:
		groups, err := s.MeshGroups(c)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%smesh component: %d groups\n", indent, len(groups))
		for i, g := range groups {
			material := "none"
			if g.MaterialIndex != ocd.NoSubresource {
				material = fmt.Sprint(g.MaterialIndex)
			}
			fmt.Fprintf(w, "%s  group %d: primitive %d, %d vertices, %d indices, material %s\n",
				indent, i, g.Primitive, g.VertexCount, g.IndexCount, material)
		}
	default:
		fmt.Fprintf(w, "%scomponent type %d, %d bytes\n", indent, c.Type, c.DataSize)
	}
	return nil
}
