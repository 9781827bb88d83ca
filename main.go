package main

import (
	"context"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"lobbyrelay/server"
)

// lobbyrelay 入口：UDP 大厅/对局中继 + WebSocket 网关与管理接口
func main() {
	var configPath string
	flag.StringVar(&configPath, "config", ".", "directory containing config.yaml")
	flag.Parse()

	cfg, err := server.LoadConfig(configPath)
	if err != nil {
		panic(err)
	}
	if err := server.InitLogger(cfg); err != nil {
		panic(err)
	}
	defer server.SyncLogger()

	srv, err := server.New(cfg)
	if err != nil {
		server.Log.Fatalf("creating server: %v", err)
	}

	udp, err := server.ListenUDP(cfg.UDPAddr, cfg.MaxDatagramSize)
	if err != nil {
		server.Log.Fatalf("listen: %v", err)
	}
	srv.AddTransport(udp.Addr().Network(), udp)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		server.Log.Infof("lobbyrelay listening on udp %s", udp.Addr())
		if err := udp.Serve(ctx, srv); err != nil {
			server.Log.Errorf("udp serve: %v", err)
		}
	}()

	var httpSrv *http.Server
	if cfg.HTTPAddr != "" {
		gw := server.NewWSGateway(srv)
		httpSrv = &http.Server{Addr: cfg.HTTPAddr, Handler: srv.AdminMux(gw)}
		go func() {
			server.Log.Infof("websocket gateway and admin on %s", cfg.HTTPAddr)
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				server.Log.Fatalf("listen: %v", err)
			}
		}()
	}

	// 优雅退出（Ctrl+C）
	<-ctx.Done()
	server.Log.Info("Shutting down...")
	if httpSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = httpSrv.Shutdown(shutdownCtx)
		cancel()
	}
	srv.Close()
	_ = udp.Close()
}
