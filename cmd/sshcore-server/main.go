package main

// Command sshcore-server is the accept loop and connection dispatcher
// around the core handshake; both are out of core scope per spec.md §1
// and live only here.
import (
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bfix-edu/sshcore/config"
	"github.com/bfix-edu/sshcore/handshake"
	"github.com/bfix-edu/sshcore/logger"
	"github.com/bfix-edu/sshcore/session"
)

func main() {
	var (
		addr       string
		baseDir    string
		metricsBind string
		reject     bool
	)
	flag.StringVar(&addr, "addr", ":2222", "address to listen on")
	flag.StringVar(&baseDir, "base-dir", defaultBaseDir(), "directory holding host_key, users.json, authorized_keys_*")
	flag.StringVar(&metricsBind, "metrics", "", "if set, serve Prometheus metrics on this address")
	flag.BoolVar(&reject, "reject-on-mismatch", false, "reject connections whose host key changed (server-side no-op placeholder for symmetry with the client flag)")
	flag.Parse()

	reg := prometheus.NewRegistry()
	cfg := config.Config{BaseDir: baseDir, Registerer: reg}

	if metricsBind != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			logger.Println(logger.INFO, "[server] metrics listening on "+metricsBind)
			if err := http.ListenAndServe(metricsBind, mux); err != nil {
				logger.Println(logger.ERROR, "[server] metrics server: "+err.Error())
			}
		}()
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		fmt.Fprintln(os.Stderr, "listen:", err)
		os.Exit(1)
	}
	logger.Println(logger.INFO, "[server] listening on "+addr)

	for {
		conn, err := listener.Accept()
		if err != nil {
			logger.Println(logger.ERROR, "[server] accept: "+err.Error())
			continue
		}
		go serveConnection(conn, cfg)
	}
}

func serveConnection(conn net.Conn, cfg config.Config) {
	defer conn.Close()
	s, err := handshake.RunServer(conn, cfg)
	if err != nil {
		logger.Println(logger.WARN, "[server] handshake failed: "+err.Error())
		return
	}
	if err := session.Loop(s, session.EchoHandler{}); err != nil {
		logger.Println(logger.WARN, "[server] session loop: "+err.Error())
	}
}

func defaultBaseDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ssh_edu"
	}
	return home + string(os.PathSeparator) + ".ssh_edu"
}
