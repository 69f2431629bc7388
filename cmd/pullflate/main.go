// Command pullflate decodes a ZLIB stream from a file or stdin and
// writes the decompressed bytes to stdout, pulling one byte at a time
// through the core engine to demonstrate that the pull contract alone
// is enough to make forward progress.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/pullflate/pullflate/capnslog"
	"github.com/pullflate/pullflate/config"
	"github.com/pullflate/pullflate/sdlog"
	"github.com/pullflate/pullflate/zlib"
)

var pflog = capnslog.NewPackageLogger("github.com/pullflate/pullflate", "pullflate")

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("pullflate", flag.ContinueOnError)
	span := fs.Int("span", 4096, "size in bytes of the output buffer used when draining decoded bytes to stdout")
	loglevel := fs.String("loglevel", "INFO", "log verbosity: CRITICAL, ERROR, WARNING, NOTICE, INFO, DEBUG, TRACE")
	journal := fs.Bool("journal", false, "log to the systemd journal instead of stderr")
	configPath := fs.String("config", "", "optional YAML file supplying defaults for flags left unset on the command line")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *configPath != "" {
		raw, err := os.ReadFile(*configPath)
		if err != nil {
			fmt.Fprintf(stderr, "pullflate: reading config: %v\n", err)
			return 1
		}
		settings, err := config.Parse(raw)
		if err != nil {
			fmt.Fprintf(stderr, "pullflate: %v\n", err)
			return 1
		}
		if err := settings.ApplyToFlags(fs); err != nil {
			fmt.Fprintf(stderr, "pullflate: %v\n", err)
			return 1
		}
	}

	if *journal {
		capnslog.SetFormatter(sdlog.NewJournalFormatter("pullflate"))
	} else {
		capnslog.SetFormatter(capnslog.NewStringFormatter(stderr))
	}
	level, err := capnslog.ParseLevel(*loglevel)
	if err != nil {
		fmt.Fprintf(stderr, "pullflate: %v\n", err)
		return 1
	}
	capnslog.MustRepoLogger("github.com/pullflate/pullflate").SetGlobalLogLevel(level)

	if *span <= 0 {
		fmt.Fprintln(stderr, "pullflate: -span must be positive")
		return 1
	}

	var in io.ByteReader
	if fs.NArg() > 0 {
		f, err := os.Open(fs.Arg(0))
		if err != nil {
			fmt.Fprintf(stderr, "pullflate: %v\n", err)
			return 1
		}
		defer f.Close()
		in = bufio.NewReader(f)
	} else {
		in = bufio.NewReader(stdin)
	}

	z, err := zlib.NewReader(in)
	if err != nil {
		pflog.Errorf("opening zlib stream: %v", err)
		fmt.Fprintf(stderr, "pullflate: %v\n", err)
		return 1
	}

	out := bufio.NewWriterSize(stdout, *span)
	buf := make([]byte, 0, *span)
	for {
		b, ok, err := z.Next()
		if err != nil {
			out.Flush()
			pflog.Errorf("decoding: %v", err)
			fmt.Fprintf(stderr, "pullflate: %v\n", err)
			return 1
		}
		if !ok {
			break
		}
		buf = append(buf, b)
		if len(buf) == cap(buf) {
			out.Write(buf)
			buf = buf[:0]
		}
	}
	out.Write(buf)
	if err := out.Flush(); err != nil {
		pflog.Errorf("writing output: %v", err)
		return 1
	}
	return 0
}
