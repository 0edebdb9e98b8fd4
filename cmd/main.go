package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/ergochat/readline"

	"github.com/nashtsai/tikv"
)

var completer = readline.NewPrefixCompleter(
	readline.PcItem("help"),
	readline.PcItem("regions"),
	readline.PcItem("show"),
	readline.PcItem("ranges"),
	readline.PcItem("scan"),
	readline.PcItem("destroy"),
	readline.PcItem("exit"),
	readline.PcItem("quit"),
)

func filterInput(r rune) (rune, bool) {
	switch r {
	// block CtrlZ feature
	case readline.CharCtrlZ:
		return r, false
	}
	return r, true
}

func showRegions(store *tikv.Store) {
	regions := store.Regions()
	sort.Slice(regions, func(i, j int) bool { return regions[i].ID < regions[j].ID })
	for _, desc := range regions {
		fmt.Println(desc.String())
	}
	fmt.Printf("%d region(s)\n", len(regions))
}

func showReplica(store *tikv.Store, id uint64) error {
	meta, ok := store.Replica(id)
	if !ok {
		return fmt.Errorf("no replica for region %d", id)
	}
	fmt.Println(meta.Region.String())
	state, err := meta.LoadTruncatedState()
	if err != nil {
		return err
	}
	meta.Truncated = &state
	first, err := meta.FirstIndex()
	if err != nil {
		return err
	}
	last, err := meta.LoadLastIndex()
	if err != nil {
		return err
	}
	applied, err := meta.LoadAppliedIndex(store.Engine())
	if err != nil {
		return err
	}
	fmt.Printf("truncated: index %d term %d\n", state.Index, state.Term)
	fmt.Printf("first %d last %d applied %d\n", first, last, applied)
	return nil
}

func showRanges(store *tikv.Store, id uint64) error {
	meta, ok := store.Replica(id)
	if !ok {
		return fmt.Errorf("no replica for region %d", id)
	}
	names := [3]string{"raft", "meta", "data"}
	for i, r := range meta.KeyRanges() {
		fmt.Printf("%s\t[% x, % x)\n", names[i], r.Start, r.End)
	}
	return nil
}

func scanRegion(store *tikv.Store, id uint64) error {
	meta, ok := store.Replica(id)
	if !ok {
		return fmt.Errorf("no replica for region %d", id)
	}
	snap := store.Engine().NewSnap()
	defer func() { _ = snap.Close() }()
	var keys, bytes int
	err := meta.SnapScan(snap, func(key, value []byte) (bool, error) {
		keys++
		bytes += len(key) + len(value)
		return true, nil
	})
	if err != nil {
		return err
	}
	sum, err := tikv.SnapChecksum(meta, snap)
	if err != nil {
		return err
	}
	fmt.Printf("%d key(s), %d byte(s), xxhash %016x\n", keys, bytes, sum)
	return nil
}

func parseID(arg string) (uint64, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(arg), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad region id %q", arg)
	}
	return id, nil
}

func main() {
	if len(os.Args) < 2 {
		_, _ = fmt.Fprintln(os.Stderr, "Usage: tikv <store-dir>")
		os.Exit(-2)
	}

	store, err := tikv.Open(os.Args[1], tikv.Options{})
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(-1)
	}
	defer func() { _ = store.Close() }()

	l, err := readline.NewEx(&readline.Config{
		Prompt:          "◌ ",
		HistoryFile:     "/tmp/readline.tmp",
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",

		HistorySearchFold:   true,
		FuncFilterInputRune: filterInput,
	})
	if err != nil {
		panic(err)
	}
	defer l.Close()
	l.CaptureExitSignal()

	fmt.Printf("store %s\n", store.Ident().StoreID)

	for {
		line, rerr := l.Readline()
		if errors.Is(rerr, readline.ErrInterrupt) {
			continue
		}
		if rerr == io.EOF {
			break
		}
		cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
		err = nil
		switch cmd {
		case "":
		case "regions":
			showRegions(store)
		case "show":
			var id uint64
			if id, err = parseID(arg); err == nil {
				err = showReplica(store, id)
			}
		case "ranges":
			var id uint64
			if id, err = parseID(arg); err == nil {
				err = showRanges(store, id)
			}
		case "scan":
			var id uint64
			if id, err = parseID(arg); err == nil {
				err = scanRegion(store, id)
			}
		case "destroy":
			var id uint64
			if id, err = parseID(arg); err == nil {
				err = store.DestroyRegion(id)
			}
		case "help":
			fmt.Println("regions | show <id> | ranges <id> | scan <id> | destroy <id> | exit")
		case "exit", "quit":
			return
		default:
			err = fmt.Errorf("unknown command %q", cmd)
		}
		if err != nil {
			_, _ = fmt.Fprintln(os.Stderr, err.Error())
		}
	}
}
