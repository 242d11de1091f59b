// Command ocdbuild writes and inspects OCD resource files.
//
// Usage:
//
//	ocdbuild image -in photo.png -out photo.ocd [-format rgba8|srgba8] [-mips] [-max 1024]
//	ocdbuild cube -out cube.ocd [-texture photo.ocd]
//	ocdbuild info file.ocd
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/cockroachdb/errors"
)

var logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

type command struct {
	name  string
	usage string
	run   func(args []string) error
}

var commands = []command{
	{"image", "convert a PNG, JPEG, GIF, BMP, TIFF or WebP file to an OCD image", runImage},
	{"cube", "write a sample scene of textured cubes", runCube},
	{"info", "describe an OCD file", runInfo},
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: ocdbuild <command> [flags]")
	fmt.Fprintln(os.Stderr)
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %-6s %s\n", c.name, c.usage)
	}
}

func main() {
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}
	name := flag.Arg(0)
	for _, c := range commands {
		if c.name != name {
			continue
		}
		if err := c.run(flag.Args()[1:]); err != nil {
			if errors.Is(err, flag.ErrHelp) {
				os.Exit(2)
			}
			logger.Error("ocdbuild failed", "command", name, "err", err)
			os.Exit(1)
		}
		return
	}
	fmt.Fprintf(os.Stderr, "ocdbuild: unknown command %q\n", name)
	usage()
	os.Exit(2)
}

// writeFile writes data to path, creating or truncating it.
func writeFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	logger.Info("wrote", "path", path, "bytes", len(data))
	return nil
}
