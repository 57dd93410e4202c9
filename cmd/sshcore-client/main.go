package main

// Command sshcore-client is the interactive terminal front end around
// the core handshake and session loop; both are out of core scope per
// spec.md §1 and live only here.
import (
	"bufio"
	"flag"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/bfix-edu/sshcore/auth"
	"github.com/bfix-edu/sshcore/config"
	"github.com/bfix-edu/sshcore/handshake"
	"github.com/bfix-edu/sshcore/logger"
)

func main() {
	var (
		addr     string
		baseDir  string
		username string
		password string
		reject   bool
	)
	flag.StringVar(&addr, "addr", "localhost:2222", "server address")
	flag.StringVar(&baseDir, "base-dir", defaultBaseDir(), "directory holding known_hosts")
	flag.StringVar(&username, "user", "testuser", "username")
	flag.StringVar(&password, "password", "testpass", "password")
	flag.BoolVar(&reject, "reject-on-mismatch", false, "reject the connection if the server's host key changed since the last visit")
	flag.Parse()

	cfg := config.Config{BaseDir: baseDir, RejectOnMismatch: reject, Hostname: hostnameFromAddr(addr)}
	req := auth.Request{Username: username, Method: auth.MethodPassword, Secret: []byte(password)}

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		fmt.Fprintln(os.Stderr, "dial:", err)
		os.Exit(1)
	}
	defer conn.Close()

	s, err := handshake.RunClient(conn, cfg, req)
	if err != nil {
		fmt.Fprintln(os.Stderr, "handshake:", err)
		os.Exit(1)
	}
	logger.Println(logger.INFO, "[client] session established, type 'exit' to quit")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		if err := s.SendMessage([]byte(line)); err != nil {
			fmt.Fprintln(os.Stderr, "send:", err)
			return
		}
		if strings.TrimSpace(line) == "exit" {
			return
		}
		reply, err := s.ReceiveMessage()
		if err != nil {
			fmt.Fprintln(os.Stderr, "receive:", err)
			return
		}
		fmt.Println(string(reply))
	}
}

// hostnameFromAddr strips the port from a dial address for use as the
// known_hosts key, so two servers on different ports of the same host
// still share a TOFU entry while two different hosts never collide.
// Falls back to the address as given if it has no port.
func hostnameFromAddr(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

func defaultBaseDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ssh_edu"
	}
	return home + string(os.PathSeparator) + ".ssh_edu"
}
