// duplis finds sets of byte-identical files under one or more
// directories (or read from stdin) and, per set, optionally deletes,
// hardlinks, or symlinks the duplicates against a chosen original.
package main

import (
	"bufio"
	"fmt"
	"os"
	"path"
	"runtime"

	flag "github.com/opencoff/pflag"

	"github.com/MattiKrause/duplis/internal/action"
	"github.com/MattiKrause/duplis/internal/consumer"
	"github.com/MattiKrause/duplis/internal/engine"
	"github.com/MattiKrause/duplis/internal/filters"
	"github.com/MattiKrause/duplis/internal/order"
	"github.com/MattiKrause/duplis/internal/refiner"
	"github.com/MattiKrause/duplis/internal/source"
	"github.com/MattiKrause/duplis/internal/targetlog"
)

var z = path.Base(os.Args[0])

const (
	exitOK = iota
	exitCLIError
	exitLoggerError
	exitFatalAction
)

func main() {
	os.Exit(run())
}

func run() int {
	cli, err := parseCLI(os.Args[1:])
	if err != nil {
		if err == flag.ErrHelp {
			return exitOK
		}
		fmt.Fprintf(os.Stderr, "%s: %s\n", z, err)
		return exitCLIError
	}

	log, err := targetlog.New(os.Stderr, cli.logPriority, z, cli.disallowedTargets)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: logger init: %s\n", z, err)
		return exitLoggerError
	}
	defer log.Close()

	plan, err := buildPlan(cli, log)
	if err != nil {
		log.Error(targetlog.TargetConfig, "%v", err)
		return exitCLIError
	}

	if err := plan.Run(); err != nil {
		if err == engine.ErrAlreadyReported {
			return exitFatalAction
		}
		log.Error(targetlog.TargetConfig, "%v", err)
		return exitFatalAction
	}
	return exitOK
}

// plan is the fully assembled pipeline: a set of roots to walk (or
// stdin to read), the filter chain, the hashing engine, the ordering
// stack, and the consumer that will receive each finished set.
type plan struct {
	cli     *cliConfig
	log     *targetlog.Logger
	filter  filters.Chain
	chain   *refiner.Chain
	orders  order.Stack
	consume consumer.Consumer
}

func buildPlan(cli *cliConfig, log *targetlog.Logger) (*plan, error) {
	filter := buildFilterChain(cli)

	var refiners []refiner.Refiner
	if !cli.noContentEq {
		refiners = append(refiners, refiner.ContentEqual{})
	}
	if cli.permEq {
		refiners = append(refiners, refiner.PermissionEqual{})
	}
	chain := refiner.NewChain(refiners...)

	orders, err := order.ParseStack(cli.orderBy)
	if err != nil {
		return nil, err
	}

	act, err := buildAction(cli)
	if err != nil {
		return nil, err
	}

	cons, err := buildConsumer(cli, act, log)
	if err != nil {
		return nil, err
	}

	return &plan{cli: cli, log: log, filter: filter, chain: chain, orders: orders, consume: cons}, nil
}

func buildFilterChain(cli *cliConfig) filters.Chain {
	var names []filters.NameFilter
	var metas []filters.MetaFilter

	if len(cli.extAllow) > 0 || len(cli.extDeny) > 0 {
		names = append(names, filters.ExtensionFilter{Allow: cli.extAllow, Deny: cli.extDeny})
	}
	if len(cli.pathBlacklist) > 0 {
		names = append(names, filters.PathPrefixFilter{Blacklist: cli.pathBlacklist})
	}
	if cli.skipHidden {
		names = append(names, filters.HiddenFilter{Enabled: true})
	}
	if cli.minSize > 0 {
		metas = append(metas, filters.MinSizeFilter{Min: cli.minSize})
	}
	if cli.maxSize > 0 {
		metas = append(metas, filters.MaxSizeFilter{Max: cli.maxSize})
	}
	if cli.nonZero {
		metas = append(metas, filters.NonZeroFilter{Enabled: true})
	}
	return filters.Chain{Names: names, Metas: metas}
}

func buildAction(cli *cliConfig) (action.Action, error) {
	switch {
	case cli.delete:
		return action.Delete{}, nil
	case cli.reHardlink:
		return action.ReplaceWithHardlink{}, nil
	case cli.reSymlink:
		return action.ReplaceWithSymlink{}, nil
	default:
		return action.DebugPrint{Out: os.Stdout}, nil
	}
}

func buildConsumer(cli *cliConfig, act action.Action, log *targetlog.Logger) (consumer.Consumer, error) {
	switch cli.consumerMode {
	case consumerInteractive:
		return consumer.Interactive{Act: act, In: bufio.NewScanner(os.Stdin), Out: os.Stdout, Log: log}, nil
	case consumerPairwise:
		return &consumer.MachineReadablePairwise{Out: os.Stdout, Log: log}, nil
	case consumerSetwise:
		return consumer.MachineReadableSet{Out: os.Stdout, Log: log}, nil
	case consumerUnconditional:
		return consumer.Unconditional{Act: act, Log: log}, nil
	default:
		return consumer.DryRun{Out: os.Stdout, Verbose: cli.verbose}, nil
	}
}

// Run executes the full pipeline: discover candidate paths, hash and
// group them, order each completed set, and hand it to the consumer.
func (p *plan) Run() error {
	raw := make(chan string, workerQueueDepth(p.cli.threads))
	paths := make(chan string, workerQueueDepth(p.cli.threads))

	eng := engine.New(p.log, p.chain, p.cli.threads)

	errCh := make(chan error, 1)
	go func() {
		errCh <- eng.Run(paths)
	}()

	// dedup sink sits between discovery and hashing so the same
	// path discovered twice (e.g. via an overlapping symlink) is
	// only ever hashed once.
	dedupWg := make(chan struct{})
	go func() {
		defer close(dedupWg)
		defer close(paths)
		sink := source.NewDedupSink(true)
		for path := range raw {
			if sink.Put(path) {
				paths <- path
			}
		}
	}()

	if p.cli.readStdin {
		ls := source.NewLineSource(p.filter, p.log)
		ls.Read(os.Stdin, raw)
	} else {
		dw := source.NewDirWalker(source.DirWalkOptions{
			Recurse:        p.cli.recurse,
			FollowSymlinks: p.cli.followSymlinks,
			Concurrency:    runtime.NumCPU(),
			Filter:         p.filter,
		}, p.log, raw)
		dw.Walk(p.cli.roots)
	}
	<-dedupWg

	if err := <-errCh; err != nil {
		return err
	}

	for _, set := range eng.Sets() {
		ordered, err := p.orders.Apply(set)
		if err != nil {
			p.log.Error(targetlog.TargetFileSet, "ordering failed: %v", err)
			return engine.ErrAlreadyReported
		}
		if len(ordered) < 2 {
			continue
		}
		if err := p.consume.Consume(ordered); err != nil {
			return err
		}
	}
	return nil
}

func workerQueueDepth(threads int) int {
	if threads <= 1 {
		return 1
	}
	return 128
}
