// Command enclookup converts integer ids to tokens and back using the key
// in ENCLOOKUP_SECRET_KEY.
//
//	enclookup encode 1 2 3
//	enclookup decode nfqcgn4trg3voqphs2chtz45ae
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	_ "github.com/joho/godotenv/autoload"
	"github.com/rs/zerolog"

	"github.com/paraglidehq/enclookup"
	"github.com/paraglidehq/enclookup/internal/cliutil"
	"github.com/paraglidehq/enclookup/internal/config"
)

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] encode|decode VALUE...\n", os.Args[0])
	flag.PrintDefaults()
}

func run(ctx context.Context, w io.Writer, c *enclookup.Cipher, op string, args []string) error {
	log := zerolog.Ctx(ctx)

	var convert func(string) (string, error)
	switch op {
	case "encode":
		convert = func(s string) (string, error) {
			id, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return "", fmt.Errorf("%q is not a 64-bit integer", s)
			}
			return c.Encode(id)
		}
	case "decode":
		convert = func(s string) (string, error) {
			id, err := c.Decode(s)
			if err != nil {
				return "", err
			}
			return strconv.FormatInt(id, 10), nil
		}
	default:
		return fmt.Errorf("unknown command %q", op)
	}

	failed := 0
	for _, arg := range args {
		out, err := convert(arg)
		if err != nil {
			log.Error().Err(err).Msgf("Failed to %s argument", op)
			failed++
			continue
		}
		fmt.Fprintln(w, out)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d values failed to %s", failed, len(args), op)
	}
	return nil
}

func main() {
	flag.Usage = usage

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(2)
	}
	cliutil.RegisterLoggingFlags(flag.CommandLine, &cfg.LoggingConfig)
	flag.Parse()

	if flag.NArg() < 2 {
		usage()
		os.Exit(2)
	}

	ctx, err := cliutil.SetupLogging(context.Background(), &cfg.LoggingConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(2)
	}

	c, err := cfg.Cipher()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(2)
	}

	if err := run(ctx, os.Stdout, c, flag.Arg(0), flag.Args()[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}
