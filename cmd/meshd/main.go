// Command meshd runs a mesh node: it hosts the chains named in a topology
// file, accepts subscriber connections over the tcp carrier, and serves
// the ws/wss carrier over HTTP using the same wire protocol.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gorilla/websocket"

	"github.com/certen-mesh/atechain/pkg/chain"
	"github.com/certen-mesh/atechain/pkg/comms"
	"github.com/certen-mesh/atechain/pkg/config"
	"github.com/certen-mesh/atechain/pkg/mesh"
	"github.com/certen-mesh/atechain/pkg/mesh/server"
)

func main() {
	fs := flag.NewFlagSet("meshd", flag.ExitOnError)
	topologyPath := fs.String("topology", "", "path to a mesh topology YAML file (optional)")
	wsPath := fs.String("ws-path", "/mesh", "HTTP path the ws/wss carrier listens on")
	fs.Parse(os.Args[1:])

	if err := run(*topologyPath, *wsPath); err != nil {
		fmt.Fprintf(os.Stderr, "meshd: %v\n", err)
		os.Exit(1)
	}
}

func run(topologyPath, wsPath string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load env config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	flow := server.AlwaysCreate
	srv := server.NewServer(flow, nil)

	if topologyPath != "" {
		topology, err := config.LoadMeshConfig(topologyPath)
		if err != nil {
			return fmt.Errorf("load topology: %w", err)
		}
		if err := topology.Validate(); err != nil {
			return err
		}
		for _, cc := range topology.Chains {
			dir := cc.StorageDir
			if !filepath.IsAbs(dir) {
				dir = filepath.Join(cfg.DataDir, dir)
			}
			c, err := chain.OpenDurable(dir, cc.Name)
			if err != nil {
				return fmt.Errorf("open chain %q: %w", cc.Name, err)
			}
			srv.Register(cc.Name, c)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 2)
	go func() { errCh <- serveTCP(ctx, cfg.ListenAddr, srv) }()
	go func() { errCh <- serveWS(ctx, wsAddr(cfg.ListenAddr), wsPath, srv) }()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// wsAddr derives the HTTP listen address for the ws/wss carrier by
// offsetting the tcp carrier's port by one, so both can run from a single
// ListenAddr setting without a port collision.
func wsAddr(tcpAddr string) string {
	host, port, err := net.SplitHostPort(tcpAddr)
	if err != nil {
		return tcpAddr
	}
	var p int
	fmt.Sscanf(port, "%d", &p)
	return net.JoinHostPort(host, fmt.Sprint(p+1))
}

func serveTCP(ctx context.Context, addr string, srv *server.Server) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen tcp %s: %w", addr, err)
	}
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		go func() {
			defer conn.Close()
			mc := mesh.NewStreamConn(conn, comms.WireJSON, nil)
			if err := srv.HandleConn(ctx, mc); err != nil {
				srv.Logger().Printf("tcp session ended: %v", err)
			}
		}()
	}
}

func serveWS(ctx context.Context, addr, path string, srv *server.Server) error {
	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		wsConn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer wsConn.Close()
		mc := mesh.NewStreamConn(mesh.NewWebSocketReadWriter(wsConn), comms.WireJSON, nil)
		if err := srv.HandleConn(r.Context(), mc); err != nil {
			srv.Logger().Printf("ws session ended: %v", err)
		}
	})

	httpSrv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		httpSrv.Close()
	}()
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
