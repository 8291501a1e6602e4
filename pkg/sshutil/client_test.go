package sshutil

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

type testServer struct {
	addr    string
	hostKey ssh.Signer
}

// startSSHServer runs a minimal in-process SSH server accepting user
// "dns" with password "hunter2". Sessions support exec (a tiny
// hardcoded shell) and the sftp subsystem backed by the real
// filesystem.
func startSSHServer(t *testing.T) *testServer {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generating host key: %v", err)
	}
	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		t.Fatalf("building signer: %v", err)
	}

	config := &ssh.ServerConfig{
		PasswordCallback: func(conn ssh.ConnMetadata, password []byte) (*ssh.Permissions, error) {
			if conn.User() == "dns" && string(password) == "hunter2" {
				return nil, nil
			}
			return nil, fmt.Errorf("unknown credentials for %s", conn.User())
		},
	}
	config.AddHostKey(signer)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listening: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go handleTestConn(conn, config)
		}
	}()

	return &testServer{addr: ln.Addr().String(), hostKey: signer}
}

func handleTestConn(conn net.Conn, config *ssh.ServerConfig) {
	sshConn, chans, reqs, err := ssh.NewServerConn(conn, config)
	if err != nil {
		return
	}
	defer sshConn.Close()

	go ssh.DiscardRequests(reqs)

	for newChan := range chans {
		if newChan.ChannelType() != "session" {
			newChan.Reject(ssh.UnknownChannelType, "unsupported channel type")
			continue
		}
		channel, requests, err := newChan.Accept()
		if err != nil {
			continue
		}
		go handleTestSession(channel, requests)
	}
}

func handleTestSession(channel ssh.Channel, requests <-chan *ssh.Request) {
	defer channel.Close()

	for req := range requests {
		switch req.Type {
		case "exec":
			var payload struct{ Command string }
			if err := ssh.Unmarshal(req.Payload, &payload); err != nil {
				req.Reply(false, nil)
				continue
			}
			req.Reply(true, nil)
			status := runTestCommand(channel, payload.Command)
			channel.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{status}))
			return
		case "subsystem":
			var payload struct{ Name string }
			if err := ssh.Unmarshal(req.Payload, &payload); err != nil || payload.Name != "sftp" {
				req.Reply(false, nil)
				continue
			}
			req.Reply(true, nil)
			server, err := sftp.NewServer(channel)
			if err != nil {
				return
			}
			server.Serve()
			return
		default:
			if req.WantReply {
				req.Reply(false, nil)
			}
		}
	}
}

func runTestCommand(channel ssh.Channel, command string) uint32 {
	switch {
	case strings.HasPrefix(command, "echo "):
		fmt.Fprintln(channel, strings.TrimPrefix(command, "echo "))
		return 0
	case command == "true":
		return 0
	case command == "sleep":
		time.Sleep(2 * time.Second)
		return 0
	case command == "false":
		fmt.Fprintln(channel.Stderr(), "refused")
		return 1
	default:
		fmt.Fprintf(channel.Stderr(), "unknown command: %s\n", command)
		return 127
	}
}

func testConfig(t *testing.T, addr string) *Config {
	t.Helper()

	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("splitting address %s: %v", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("parsing port %s: %v", portStr, err)
	}

	return &Config{
		Host:     host,
		Port:     port,
		User:     "dns",
		Password: "hunter2",
		Timeout:  2 * time.Second,
	}
}

func connectedClient(t *testing.T) *Client {
	t.Helper()

	srv := startSSHServer(t)
	client, err := NewClient(testConfig(t, srv.addr))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	return client
}

func TestNewClient_Validation(t *testing.T) {
	t.Run("nil config", func(t *testing.T) {
		if _, err := NewClient(nil); err == nil {
			t.Fatal("expected error for nil config")
		}
	})

	t.Run("invalid config", func(t *testing.T) {
		_, err := NewClient(&Config{Host: "ns1.example.com"})
		if err == nil {
			t.Fatal("expected error for config without user")
		}
		if !strings.Contains(err.Error(), "invalid config") {
			t.Errorf("error = %q, want invalid config prefix", err)
		}
	})

	t.Run("valid", func(t *testing.T) {
		client, err := NewClient(&Config{Host: "ns1.example.com", User: "dns", Password: "x"})
		if err != nil {
			t.Fatalf("NewClient: %v", err)
		}
		if client.IsConnected() {
			t.Error("new client reports connected")
		}
	})

	t.Run("nil logger keeps default", func(t *testing.T) {
		client, err := NewClient(&Config{Host: "ns1.example.com", User: "dns", Password: "x"}, WithLogger(nil))
		if err != nil {
			t.Fatalf("NewClient: %v", err)
		}
		if client.logger == nil {
			t.Error("logger is nil")
		}
	})
}

func TestClient_Connect(t *testing.T) {
	srv := startSSHServer(t)

	client, err := NewClient(testConfig(t, srv.addr))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if !client.IsConnected() {
		t.Error("IsConnected = false after Connect")
	}
}

func TestClient_Connect_WrongPassword(t *testing.T) {
	srv := startSSHServer(t)

	cfg := testConfig(t, srv.addr)
	cfg.Password = "wrong"

	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	err = client.Connect(context.Background())
	if !errors.Is(err, ErrAuthenticationFailed) {
		t.Errorf("Connect error = %v, want ErrAuthenticationFailed", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected = true after failed Connect")
	}
}

func TestClient_Connect_AlreadyConnected(t *testing.T) {
	client := connectedClient(t)

	if err := client.Connect(context.Background()); !errors.Is(err, ErrAlreadyConnected) {
		t.Errorf("second Connect error = %v, want ErrAlreadyConnected", err)
	}
}

func TestClient_Connect_Refused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listening: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	client, err := NewClient(testConfig(t, addr))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	if err := client.Connect(context.Background()); err == nil {
		t.Fatal("expected error connecting to closed port")
	}
}

func TestClient_Connect_KnownHosts(t *testing.T) {
	srv := startSSHServer(t)

	line := knownhosts.Line([]string{srv.addr}, srv.hostKey.PublicKey())
	knownHostsFile := filepath.Join(t.TempDir(), "known_hosts")
	if err := os.WriteFile(knownHostsFile, []byte(line+"\n"), 0o600); err != nil {
		t.Fatalf("writing known_hosts: %v", err)
	}

	cfg := testConfig(t, srv.addr)
	cfg.KnownHostsFile = knownHostsFile

	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect with pinned host key: %v", err)
	}
}

func TestClient_Connect_KnownHostsMismatch(t *testing.T) {
	srv := startSSHServer(t)

	_, otherPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	otherSigner, err := ssh.NewSignerFromKey(otherPriv)
	if err != nil {
		t.Fatalf("building signer: %v", err)
	}

	line := knownhosts.Line([]string{srv.addr}, otherSigner.PublicKey())
	knownHostsFile := filepath.Join(t.TempDir(), "known_hosts")
	if err := os.WriteFile(knownHostsFile, []byte(line+"\n"), 0o600); err != nil {
		t.Fatalf("writing known_hosts: %v", err)
	}

	cfg := testConfig(t, srv.addr)
	cfg.KnownHostsFile = knownHostsFile

	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	if err := client.Connect(context.Background()); err == nil {
		client.Close()
		t.Fatal("expected host key mismatch error")
	}
}

func TestClient_GetConnection_NotConnected(t *testing.T) {
	client, err := NewClient(&Config{Host: "ns1.example.com", User: "dns", Password: "x"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	if _, err := client.GetConnection(); !errors.Is(err, ErrNotConnected) {
		t.Errorf("GetConnection error = %v, want ErrNotConnected", err)
	}
}

func TestClient_GetConnection(t *testing.T) {
	client := connectedClient(t)

	conn, err := client.GetConnection()
	if err != nil {
		t.Fatalf("GetConnection: %v", err)
	}
	if conn == nil {
		t.Fatal("GetConnection returned nil connection")
	}
}

func TestClient_Close_Idempotent(t *testing.T) {
	client := connectedClient(t)

	if err := client.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected = true after Close")
	}
	if err := client.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestClient_Reconnect(t *testing.T) {
	client := connectedClient(t)

	if err := client.Reconnect(context.Background()); err != nil {
		t.Fatalf("Reconnect: %v", err)
	}
	if !client.IsConnected() {
		t.Error("IsConnected = false after Reconnect")
	}
}
