// Command meshctl is a thin client over the mesh protocol: it dials a
// node, subscribes to a chain, and either streams events to stdout or
// feeds one event read from stdin.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/certen-mesh/atechain/pkg/comms"
	"github.com/certen-mesh/atechain/pkg/crypto"
	"github.com/certen-mesh/atechain/pkg/event"
	"github.com/certen-mesh/atechain/pkg/mesh"
	"github.com/certen-mesh/atechain/pkg/mesh/client"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "subscribe":
		err = runSubscribe(os.Args[2:])
	case "feed":
		err = runFeed(os.Args[2:])
	case "lock":
		err = runLock(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "meshctl: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: meshctl <subscribe|feed|lock> -addr host:port -chain name [...]")
}

func dial(addr string) (*client.Client, error) {
	conn, err := net.DialTimeout("tcp", addr, 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	mc := mesh.NewStreamConn(conn, comms.WireJSON, nil)
	return client.New(mc), nil
}

func runSubscribe(args []string) error {
	fs := flag.NewFlagSet("subscribe", flag.ExitOnError)
	addr := fs.String("addr", "127.0.0.1:5000", "mesh node address")
	chainKey := fs.String("chain", "", "chain name to subscribe to")
	fs.Parse(args)
	if *chainKey == "" {
		return fmt.Errorf("-chain is required")
	}

	c, err := dial(*addr)
	if err != nil {
		return err
	}
	defer c.Close()

	sub, err := c.Subscribe(*chainKey, nil)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	for ev := range sub.Events {
		enc.Encode(struct {
			Data string `json:"data"`
		}{Data: string(ev.Data)})
	}
	return nil
}

func runFeed(args []string) error {
	fs := flag.NewFlagSet("feed", flag.ExitOnError)
	addr := fs.String("addr", "127.0.0.1:5000", "mesh node address")
	chainKey := fs.String("chain", "", "chain name to feed into")
	fs.Parse(args)
	if *chainKey == "" {
		return fmt.Errorf("-chain is required")
	}

	c, err := dial(*addr)
	if err != nil {
		return err
	}
	defer c.Close()

	if _, err := c.Subscribe(*chainKey, nil); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	payload, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && payload == "" {
		return fmt.Errorf("read payload from stdin: %w", err)
	}

	key := crypto.MustNewPrimaryKey()
	ev := event.New(event.Metadata{Core: []event.Entry{event.EntryData(key)}}, []byte(payload))
	if err := c.Feed(crypto.MustNewPrimaryKey(), []event.Event{ev}); err != nil {
		return fmt.Errorf("feed: %w", err)
	}
	fmt.Fprintf(os.Stdout, "fed key %s\n", key)
	return nil
}

func runLock(args []string) error {
	fs := flag.NewFlagSet("lock", flag.ExitOnError)
	addr := fs.String("addr", "127.0.0.1:5000", "mesh node address")
	chainKey := fs.String("chain", "", "chain to subscribe to before locking")
	fs.Parse(args)
	if *chainKey == "" {
		return fmt.Errorf("-chain is required")
	}

	c, err := dial(*addr)
	if err != nil {
		return err
	}
	defer c.Close()

	if _, err := c.Subscribe(*chainKey, nil); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	key := crypto.MustNewPrimaryKey()
	ok, err := c.Lock(key)
	if err != nil {
		return fmt.Errorf("lock: %w", err)
	}
	fmt.Fprintf(os.Stdout, "locked %s: %v\n", key, ok)
	return nil
}
