// Package main provides the patchsim command line.
//
// patchsim loads the frame patches and speed hints of one title, reports
// on them and, given a RAM image, drives the frame hook from a virtual
// timer for a number of frames:
//
//	patchsim -default Sys/GameSettings -user User/GameSettings -title GALE01 -check
//	patchsim -db patches.db -title GALE01 -image ram.raw -raw-base 0x80000000 -frames 60 -out ram.out
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
)

type options struct {
	defaultDir string
	userDir    string
	title      string
	dbPath     string
	importDB   bool
	check      bool
	dump       bool
	image      string
	rawBase    string
	timingPath string
	frames     int
	sp         string
	out        string
	sync       bool
	verbosity  int
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	opts, fs, err := parseFlags(args, stderr)
	if err != nil {
		return 2
	}

	log := newLogger(stderr, opts.verbosity)

	var cmdErr error
	switch {
	case opts.importDB:
		cmdErr = runImport(opts, stdout, log)
	case opts.check:
		var ok bool
		ok, cmdErr = runCheck(opts, stdout, log)
		if cmdErr == nil && !ok {
			return 1
		}
	case opts.dump:
		cmdErr = runDump(opts, stdout, log)
	case opts.image != "":
		cmdErr = runImage(opts, stdout, log)
	default:
		fmt.Fprintf(stderr, "Usage: patchsim [options] -check | -dump | -import | -image <ram>\n")
		fmt.Fprintf(stderr, "\nOptions:\n")
		fs.PrintDefaults()
		return 2
	}

	if cmdErr != nil {
		fmt.Fprintf(stderr, "Error: %v\n", cmdErr)
		return 1
	}

	return 0
}

func parseFlags(args []string, stderr io.Writer) (*options, *flag.FlagSet, error) {
	opts := &options{}

	fs := flag.NewFlagSet("patchsim", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&opts.defaultDir, "default", "", "Directory of the distributed game settings")
	fs.StringVar(&opts.userDir, "user", "", "Directory of the user's game settings")
	fs.StringVar(&opts.title, "title", "", "Title ID, e.g. GALE01")
	fs.StringVar(&opts.dbPath, "db", "", "Patch database; replaces -default and -user as the source")
	fs.BoolVar(&opts.importDB, "import", false, "Import -default and -user settings of -title into -db")
	fs.BoolVar(&opts.check, "check", false, "Load the title and report lines that do not decode")
	fs.BoolVar(&opts.dump, "dump", false, "Print the loaded patches as JSON")
	fs.StringVar(&opts.image, "image", "", "PowerPC ELF or raw RAM image to run the frame hook against")
	fs.StringVar(&opts.rawBase, "raw-base", "", "Treat -image as a raw RAM dump loaded at this address")
	fs.StringVar(&opts.timingPath, "timing", "", "Path to timer configuration JSON file")
	fs.IntVar(&opts.frames, "frames", -1, "Number of frames to run (> 0); overrides the timer configuration, which runs 60 when unlimited")
	fs.StringVar(&opts.sp, "sp", "", "Initial stack pointer; overrides the image's")
	fs.StringVar(&opts.out, "out", "", "Write RAM to this file after the run")
	fs.BoolVar(&opts.sync, "sync", false, "Take codes from the synchronized source")
	fs.IntVar(&opts.verbosity, "v", 0, "Log verbosity")

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	return opts, fs, nil
}

func newLogger(w io.Writer, verbosity int) logr.Logger {
	return funcr.New(func(prefix, args string) {
		if prefix != "" {
			fmt.Fprintf(w, "%s: %s\n", prefix, args)
			return
		}
		fmt.Fprintln(w, args)
	}, funcr.Options{Verbosity: verbosity})
}
