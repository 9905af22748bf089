package main

import (
	"bufio"
	"fmt"
	"os"
	"runtime"
	"strings"

	logger "github.com/opencoff/go-logger"
	flag "github.com/opencoff/pflag"

	"github.com/MattiKrause/duplis/internal/sizeparse"
	"github.com/MattiKrause/duplis/internal/source"
	"github.com/MattiKrause/duplis/internal/targetlog"
)

type consumerMode int

const (
	consumerDryRun consumerMode = iota
	consumerUnconditional
	consumerInteractive
	consumerPairwise
	consumerSetwise
)

// cliConfig is the parsed, validated command line.
type cliConfig struct {
	roots []string

	recurse        bool
	followSymlinks bool
	readStdin      bool

	consumerMode consumerMode

	delete     bool
	reHardlink bool
	reSymlink  bool

	noContentEq bool
	permEq      bool

	orderBy string

	minSize    uint64
	maxSize    uint64
	nonZero    bool
	skipHidden bool

	extAllow      map[string]bool
	extDeny       map[string]bool
	pathBlacklist []string

	threads int

	logPriority       logger.Priority
	disallowedTargets []string
	verbose           bool
}

// parseCLI parses argv (not including argv[0]) into a validated
// cliConfig.
func parseCLI(argv []string) (*cliConfig, error) {
	fs := flag.NewFlagSet(z, flag.ContinueOnError)

	var (
		recurse, symlink, readin, immediate, interactive bool
		woutMode                                         string
		del, rehard, resym                               bool
		nocontenteq, permeq                              bool
		orderby                                          string
		minsize, maxsize                                 string
		nonzero, skiphidden                              bool
		extbl, extwl, pathbl, pathblloc                  string
		threads                                          string
		loginfo, setloginfo                              string
		verbose                                          bool
	)

	fs.BoolVarP(&recurse, "recurse", "r", false, "Recurse into subdirectories")
	fs.BoolVarP(&symlink, "symlink", "s", false, "Follow symlinks while walking")
	fs.BoolVarP(&readin, "readin", "", false, "Read candidate paths from stdin instead of walking DIRS")

	fs.BoolVarP(&immediate, "immediate", "u", false, "Act on every set without prompting (unconditional)")
	fs.BoolVarP(&interactive, "interactive", "i", false, "Prompt before acting on each duplicate")
	fs.StringVarP(&woutMode, "wout", "", "", "Emit machine-readable output: `pairwise` or `setwise`")

	fs.BoolVarP(&del, "delete", "d", false, "Delete duplicates")
	fs.BoolVarP(&rehard, "rehardlink", "l", false, "Replace duplicates with a hardlink to the original")
	fs.BoolVarP(&resym, "resymlink", "L", false, "Replace duplicates with a symlink to the original")

	fs.BoolVarP(&nocontenteq, "nocontenteq", "c", false, "Skip byte-wise content verification (composite hash only)")
	fs.BoolVarP(&permeq, "permeq", "p", false, "Require matching POSIX permission bits")

	fs.StringVarP(&orderby, "orderby", "o", "modtime", "Comma separated ordering stack in decreasing importance, 'r' prefix reverses")

	fs.StringVarP(&minsize, "minsize", "", "", "Minimum file size (e.g. 4KiB, 0x1000)")
	fs.StringVarP(&maxsize, "maxsize", "", "", "Maximum file size")
	fs.BoolVarP(&nonzero, "nonzero", "Z", false, "Ignore empty files")
	fs.BoolVarP(&skiphidden, "skiphidden", "H", false, "Ignore hidden files (dot-prefixed names)")

	fs.StringVarP(&extbl, "extbl", "", "", "Comma separated extension blacklist ('~' = no extension)")
	fs.StringVarP(&extwl, "extwl", "", "", "Comma separated extension whitelist ('~' = no extension)")
	fs.StringVarP(&pathbl, "pathbl", "", "", "Comma separated path-prefix blacklist")
	fs.StringVarP(&pathblloc, "pathblloc", "", "", "File containing newline separated path-prefix blacklist")

	fs.StringVarP(&threads, "threads", "t", "0", "Number of hashing workers (0 = 2x NumCPU)")

	fs.StringVarP(&loginfo, "loginfo", "", "", "Comma separated list of log targets to show (default: all)")
	fs.StringVarP(&setloginfo, "setloginfo", "", "", "Comma separated list of log targets to suppress")
	fs.BoolVarP(&verbose, "verbose", "v", false, "Increase log verbosity")

	fs.SetOutput(os.Stderr)

	if err := fs.Parse(argv); err != nil {
		return nil, err
	}

	roots := fs.Args()
	if !readin && len(roots) == 0 {
		return nil, fmt.Errorf("at least one directory is required (or pass --readin)")
	}
	for i, r := range roots {
		abs, err := source.Canonicalize(r)
		if err != nil {
			return nil, fmt.Errorf("canonicalising %q: %w", r, err)
		}
		roots[i] = abs
	}

	cli := &cliConfig{
		roots:          roots,
		recurse:        recurse,
		followSymlinks: symlink,
		readStdin:      readin,
		delete:         del,
		reHardlink:     rehard,
		reSymlink:      resym,
		noContentEq:    nocontenteq,
		permEq:         permeq,
		orderBy:        orderby,
		nonZero:        nonzero,
		skipHidden:     skiphidden,
		verbose:        verbose,
	}

	if err := cli.setActionMode(del, rehard, resym); err != nil {
		return nil, err
	}
	if err := cli.setConsumerMode(immediate, interactive, woutMode); err != nil {
		return nil, err
	}

	var err error
	if minsize != "" {
		if cli.minSize, err = sizeparse.ParseSize(minsize); err != nil {
			return nil, fmt.Errorf("--minsize: %w", err)
		}
	}
	if maxsize != "" {
		if cli.maxSize, err = sizeparse.ParseSize(maxsize); err != nil {
			return nil, fmt.Errorf("--maxsize: %w", err)
		}
	}

	cli.extDeny = splitExtSet(extbl)
	cli.extAllow = splitExtSet(extwl)
	if cli.extAllow != nil && cli.extDeny != nil {
		return nil, fmt.Errorf("--extbl and --extwl are mutually exclusive")
	}

	if pathbl != "" {
		cli.pathBlacklist = strings.Split(pathbl, ",")
	}
	if pathblloc != "" {
		extra, err := readLines(pathblloc)
		if err != nil {
			return nil, fmt.Errorf("--pathblloc: %w", err)
		}
		cli.pathBlacklist = append(cli.pathBlacklist, extra...)
	}

	nthreads, err := sizeparse.ParseNumber(threads)
	if err != nil {
		return nil, fmt.Errorf("--threads: %w", err)
	}
	if nthreads == 0 {
		nthreads = uint64(runtime.NumCPU() * 2)
	}
	cli.threads = int(nthreads)

	cli.logPriority = logger.LOG_INFO
	if verbose {
		cli.logPriority = logger.LOG_DEBUG
	}
	if loginfo != "" {
		cli.disallowedTargets, err = invertTargetList(loginfo)
		if err != nil {
			return nil, err
		}
	}
	if setloginfo != "" {
		extra := strings.Split(setloginfo, ",")
		for _, t := range extra {
			if !targetlog.ValidTarget(t) {
				return nil, fmt.Errorf("unknown log target %q", t)
			}
		}
		cli.disallowedTargets = append(cli.disallowedTargets, extra...)
	}

	return cli, nil
}

func (c *cliConfig) setActionMode(del, rehard, resym bool) error {
	n := boolCount(del, rehard, resym)
	if n > 1 {
		return fmt.Errorf("--delete, --rehardlink, and --resymlink are mutually exclusive")
	}
	return nil
}

func (c *cliConfig) setConsumerMode(immediate, interactive bool, wout string) error {
	n := boolCount(immediate, interactive, wout != "")
	if n > 1 {
		return fmt.Errorf("--immediate, --interactive, and --wout are mutually exclusive")
	}
	switch {
	case immediate:
		c.consumerMode = consumerUnconditional
	case interactive:
		c.consumerMode = consumerInteractive
	case wout == "pairwise":
		c.consumerMode = consumerPairwise
	case wout == "setwise":
		c.consumerMode = consumerSetwise
	case wout != "":
		return fmt.Errorf("--wout must be 'pairwise' or 'setwise', got %q", wout)
	default:
		c.consumerMode = consumerDryRun
	}
	return nil
}

// readLines reads newline separated path-prefix entries from a
// blacklist file, for --pathblloc.
func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line != "" {
			out = append(out, line)
		}
	}
	return out, sc.Err()
}

func boolCount(bs ...bool) int {
	n := 0
	for _, b := range bs {
		if b {
			n++
		}
	}
	return n
}

func splitExtSet(csv string) map[string]bool {
	if csv == "" {
		return nil
	}
	out := make(map[string]bool)
	for _, e := range strings.Split(csv, ",") {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "~" {
			e = ""
		}
		out[e] = true
	}
	return out
}

// invertTargetList validates a --loginfo allow-list and converts it
// into the disallow-list the logger wrapper actually filters on.
func invertTargetList(csv string) ([]string, error) {
	allowed := make(map[string]bool)
	for _, t := range strings.Split(csv, ",") {
		t = strings.TrimSpace(t)
		if !targetlog.ValidTarget(t) {
			return nil, fmt.Errorf("unknown log target %q", t)
		}
		allowed[t] = true
	}
	var disallowed []string
	for _, t := range targetlog.AllTargets {
		if !allowed[t] {
			disallowed = append(disallowed, t)
		}
	}
	return disallowed, nil
}
