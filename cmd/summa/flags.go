package main

import (
	"flag"
	"fmt"
	"io"
	"strconv"

	"github.com/ekisa-team/summa/internal/input"
)

// verbosity counts repeated -v flags.
type verbosity int

func (v *verbosity) String() string {
	return strconv.Itoa(int(*v))
}

func (v *verbosity) Set(s string) error {
	on, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	if on {
		*v++
	}

	return nil
}

func (v *verbosity) IsBoolFlag() bool {
	return true
}

type options struct {
	verbose         verbosity
	contextExponent int
	contextSet      bool
	modelPath       string
	configPath      string
	metricsFile     string
	version         bool
	inputPath       string
}

func parseFlags(args []string, output io.Writer) (*options, error) {
	var o options

	fs := flag.NewFlagSet("summa", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: summa [-v]... [-c N] [-p MODEL] [-config FILE] [-metrics-file FILE] [PATH]")
		fmt.Fprintln(fs.Output(), "\nSummarizes PATH (default: stdin) with a local Llama 2 chat model.")
		fs.PrintDefaults()
	}

	fs.Var(&o.verbose, "v", "Increase log verbosity (repeatable)")
	fs.IntVar(&o.contextExponent, "c", 11, "Context size as a power of two")
	fs.StringVar(&o.modelPath, "p", "", "Path to the model file, bypassing discovery")
	fs.StringVar(&o.modelPath, "model-path", "", "Alias for -p")
	fs.StringVar(&o.configPath, "config", "", "Path to config file")
	fs.StringVar(&o.metricsFile, "metrics-file", "", "Write run metrics to this Prometheus textfile")
	fs.BoolVar(&o.version, "version", false, "Print the version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "c" {
			o.contextSet = true
		}
	})

	switch fs.NArg() {
	case 0:
		o.inputPath = input.Stdin
	case 1:
		o.inputPath = fs.Arg(0)
	default:
		fs.Usage()
		return nil, fmt.Errorf("expected at most one PATH, got %d", fs.NArg())
	}

	return &o, nil
}
