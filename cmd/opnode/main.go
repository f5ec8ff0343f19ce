// Command opnode runs a single replicated-log node over gRPC, wiring
// either an in-memory or a bbolt-backed store to an omnipaxos.Node and
// exposing a line-oriented stdin interface to append and read entries.
// It's the spiritual equivalent of the reference server's cmd/kv demo.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/AbyelT/omnipaxos/omnipaxos"
	"github.com/AbyelT/omnipaxos/storage"
	"github.com/AbyelT/omnipaxos/storage/boltstore"
	"github.com/AbyelT/omnipaxos/storage/memstore"
	"github.com/AbyelT/omnipaxos/transport/grpctransport"
	"go.uber.org/zap"
)

func main() {
	var (
		pid        = flag.Uint64("pid", 0, "this node's id, must be non-zero")
		configID   = flag.Uint64("config-id", 1, "configuration id this node belongs to")
		listenAddr = flag.String("listen", "127.0.0.1:7000", "address the BLE transport listens on; SP listens one port higher")
		peersFlag  = flag.String("peers", "", "comma-separated pid=host:port list of every other replica's BLE address")
		dataPath   = flag.String("data", "", "bbolt file path; empty uses an in-memory store")
		priority   = flag.Uint64("priority", 0, "leader-election priority tiebreak")
		logPath    = flag.String("log-file", "", "optional file path to additionally write logs to, alongside stderr")
	)
	flag.Parse()

	logger, err := buildLogger(*logPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "opnode: failed to build logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	if err := run(sugar, *pid, uint32(*configID), *listenAddr, *peersFlag, *dataPath, *priority); err != nil {
		sugar.Fatalw("opnode exited with error", "error", err)
	}
}

func run(logger *zap.SugaredLogger, pid uint64, configID uint32, listenAddr, peersFlag, dataPath string, priority uint64) error {
	if pid == 0 {
		return fmt.Errorf("opnode: -pid is required and must be non-zero")
	}
	peerEntries, err := parsePeers(peersFlag)
	if err != nil {
		return err
	}

	spListenAddr, err := bumpPort(listenAddr, 1)
	if err != nil {
		return fmt.Errorf("opnode: listen address: %w", err)
	}

	blePeers := map[uint64]string{}
	spPeers := map[uint64]string{}
	var peerIDs []uint64
	for _, pe := range peerEntries {
		spAddr, err := bumpPort(pe.addr, 1)
		if err != nil {
			return fmt.Errorf("opnode: peer %d address: %w", pe.pid, err)
		}
		blePeers[pe.pid] = pe.addr
		spPeers[pe.pid] = spAddr
		peerIDs = append(peerIDs, pe.pid)
	}

	bleTrans, err := grpctransport.New(pid, listenAddr, blePeers, 64, logger)
	if err != nil {
		return fmt.Errorf("opnode: ble transport: %w", err)
	}
	spTrans, err := grpctransport.New(pid, spListenAddr, spPeers, 64, logger)
	if err != nil {
		return fmt.Errorf("opnode: sp transport: %w", err)
	}
	go func() {
		if err := bleTrans.Serve(); err != nil {
			logger.Debugw("ble transport server stopped", "error", err)
		}
	}()
	go func() {
		if err := spTrans.Serve(); err != nil {
			logger.Debugw("sp transport server stopped", "error", err)
		}
	}()
	defer bleTrans.Close()
	defer spTrans.Close()

	backend, closeBackend, err := openBackend[string, string](dataPath)
	if err != nil {
		return fmt.Errorf("opnode: storage: %w", err)
	}
	defer closeBackend()

	cfg := omnipaxos.Config[string, string]{
		Pid:                  pid,
		Peers:                peerIDs,
		ConfigID:             configID,
		BufferSize:           64,
		Priority:             priority,
		HBDelay:              100 * time.Millisecond,
		InitialLeaderTimeout: 500 * time.Millisecond,
		SnapshotHandler:      concatSnapshotHandler{},
	}
	node, err := omnipaxos.New[string, string](cfg, backend, bleTrans, spTrans, logger)
	if err != nil {
		return fmt.Errorf("opnode: node: %w", err)
	}
	node.Run()
	defer node.Stop(5 * time.Second)

	logger.Infow("node started", "pid", pid, "ble_addr", listenAddr, "sp_addr", spListenAddr)

	return repl(node, terminalSignalCh())
}

// openBackend opens a bbolt-backed store at path, or an in-memory store
// when path is empty, returning a closer that's a no-op for memstore.
func openBackend[T any, S any](path string) (storage.Storage[T, S], func(), error) {
	if path == "" {
		return memstore.New[T, S](), func() {}, nil
	}
	backend, err := boltstore.Open[T, S](path)
	if err != nil {
		return nil, nil, err
	}
	return backend, func() { backend.Close() }, nil
}

// terminalSignalCh returns a channel that fires when the process receives
// a signal that usually indicates it should shut down.
func terminalSignalCh() <-chan os.Signal {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	return ch
}

// repl drives a tiny stdin command loop: "append <text>", "read <idx>",
// "leader", and "quit", until EOF, "quit", or a terminal signal.
func repl(node *omnipaxos.Node[string, string], stopSig <-chan os.Signal) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-stopSig:
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if handleCommand(node, line) {
				return nil
			}
		}
	}
}

func handleCommand(node *omnipaxos.Node[string, string], line string) (quit bool) {
	fields := strings.SplitN(strings.TrimSpace(line), " ", 2)
	if len(fields) == 0 || fields[0] == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	switch fields[0] {
	case "append":
		if len(fields) < 2 {
			fmt.Println("usage: append <text>")
			return false
		}
		if err := node.Append(ctx, fields[1]); err != nil {
			fmt.Println("error:", err)
			return false
		}
		fmt.Println("ok")
	case "read":
		if len(fields) < 2 {
			fmt.Println("usage: read <idx>")
			return false
		}
		idx, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			fmt.Println("error:", err)
			return false
		}
		val, err := node.Read(ctx, idx)
		if err != nil {
			fmt.Println("error:", err)
			return false
		}
		fmt.Println(val)
	case "leader":
		fmt.Printf("%+v\n", node.CurrentLeader())
	case "decided":
		fmt.Println(node.DecidedIdx())
	case "quit", "exit":
		return true
	default:
		fmt.Println("unknown command:", fields[0])
	}
	return false
}
