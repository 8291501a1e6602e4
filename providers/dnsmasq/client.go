package dnsmasq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"gitlab.bluewillows.net/root/zonedit/pkg/provider"
)

// Markers delimiting the managed block. Everything between them is
// owned by zonedit; everything outside is preserved byte for byte.
const (
	blockBegin = "# BEGIN zonedit managed records"
	blockEnd   = "# END zonedit managed records"
)

// Record is one managed dnsmasq directive in parsed form.
type Record struct {
	FQDN  string
	Kind  provider.RecordKind
	Value string
}

// FileSystem abstracts the config file location: local disk or SFTP.
type FileSystem interface {
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte, perm os.FileMode) error
	MkdirAll(path string, perm os.FileMode) error
}

// CommandRunner executes the reload command.
type CommandRunner interface {
	Run(ctx context.Context, command string) error
}

type osFileSystem struct{}

func (osFileSystem) ReadFile(path string) ([]byte, error) { return os.ReadFile(path) }

func (osFileSystem) WriteFile(path string, data []byte, perm os.FileMode) error {
	return os.WriteFile(path, data, perm)
}

func (osFileSystem) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

type osCommandRunner struct{}

func (osCommandRunner) Run(ctx context.Context, command string) error {
	out, err := exec.CommandContext(ctx, "sh", "-c", command).CombinedOutput()
	if err != nil {
		return fmt.Errorf("command failed: %w, output: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Directive formats dnsmasq understands for the supported kinds.
var (
	addressPattern = regexp.MustCompile(`^address=/([^/]+)/(.+)$`)
	cnamePattern   = regexp.MustCompile(`^cname=([^,]+),(.+)$`)
	txtPattern     = regexp.MustCompile(`^txt-record=([^,]+),(.*)$`)
)

// Client rewrites the managed block of a dnsmasq config file. The rest
// of the file, dnsmasq options and hand-kept records alike, is never
// touched.
type Client struct {
	path   string
	reload string
	fs     FileSystem
	runner CommandRunner
	logger *slog.Logger

	mu sync.Mutex
}

// ClientOption is a functional option for configuring the Client.
type ClientOption func(*Client)

// WithLogger sets a custom logger for the client.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithFileSystem replaces the local-disk filesystem, typically with an
// SFTP-backed one.
func WithFileSystem(fs FileSystem) ClientOption {
	return func(c *Client) {
		if fs != nil {
			c.fs = fs
		}
	}
}

// WithRunner replaces the local shell runner, typically with an
// SSH-backed one.
func WithRunner(runner CommandRunner) ClientOption {
	return func(c *Client) {
		if runner != nil {
			c.runner = runner
		}
	}
}

// NewClient creates a client for one config file. reload may be empty
// to skip reloading after writes.
func NewClient(path, reload string, opts ...ClientOption) *Client {
	c := &Client{
		path:   path,
		reload: reload,
		fs:     osFileSystem{},
		runner: osCommandRunner{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Path returns the config file path.
func (c *Client) Path() string {
	return c.path
}

// List returns the records currently in the managed block.
func (c *Client) List() ([]Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, block, _, err := c.load()
	if err != nil {
		return nil, err
	}
	return c.parseBlock(block), nil
}

// Upsert replaces any managed lines for the record's name and kind
// with a single new line.
func (c *Client) Upsert(rec Record) error {
	line, err := formatLine(rec)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	head, block, tail, err := c.load()
	if err != nil {
		return err
	}

	block = append(removeMatching(block, rec.FQDN, rec.Kind), line)
	if err := c.write(head, block, tail); err != nil {
		return err
	}

	c.logger.Debug("managed block updated",
		slog.String("path", c.path),
		slog.String("fqdn", rec.FQDN),
		slog.String("kind", string(rec.Kind)),
	)
	return nil
}

// Delete removes managed lines for the name and kind, reporting
// whether any line was removed.
func (c *Client) Delete(fqdn string, kind provider.RecordKind) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	head, block, tail, err := c.load()
	if err != nil {
		return false, err
	}

	kept := removeMatching(block, fqdn, kind)
	if len(kept) == len(block) {
		return false, nil
	}

	if err := c.write(head, kept, tail); err != nil {
		return false, err
	}

	c.logger.Debug("managed block updated",
		slog.String("path", c.path),
		slog.String("fqdn", fqdn),
		slog.String("kind", string(kind)),
	)
	return true, nil
}

// Reload runs the configured reload command so dnsmasq picks up the
// rewritten config. An empty command skips the step.
func (c *Client) Reload(ctx context.Context) error {
	if c.reload == "" {
		c.logger.Debug("no reload command configured, skipping")
		return nil
	}

	c.logger.Debug("reloading dnsmasq",
		slog.String("command", c.reload),
	)

	if err := c.runner.Run(ctx, c.reload); err != nil {
		return fmt.Errorf("reload command: %w", err)
	}
	return nil
}

// load reads the config and splits it around the managed block. A
// missing file is an empty config.
func (c *Client) load() (head, block, tail []string, err error) {
	data, err := c.fs.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, nil, nil
		}
		return nil, nil, nil, fmt.Errorf("reading %s: %w", c.path, err)
	}
	return splitManaged(string(data))
}

// Parser states for splitManaged.
const (
	beforeBlock = iota
	inBlock
	afterBlock
)

// splitManaged separates the lines before, inside, and after the
// managed block. The markers themselves belong to neither part. A
// config without markers is all head.
func splitManaged(content string) (head, block, tail []string, err error) {
	lines := strings.Split(content, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	state := beforeBlock
	for _, line := range lines {
		switch state {
		case beforeBlock:
			if strings.TrimSpace(line) == blockBegin {
				state = inBlock
				continue
			}
			head = append(head, line)
		case inBlock:
			if strings.TrimSpace(line) == blockEnd {
				state = afterBlock
				continue
			}
			block = append(block, line)
		case afterBlock:
			tail = append(tail, line)
		}
	}

	if state == inBlock {
		return nil, nil, nil, fmt.Errorf("managed block is missing its end marker %q", blockEnd)
	}
	return head, block, tail, nil
}

// parseBlock extracts records from managed lines, warning about lines
// it cannot attribute to a record.
func (c *Client) parseBlock(block []string) []Record {
	var records []Record
	for _, line := range block {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		rec, ok := parseLine(trimmed)
		if !ok {
			c.logger.Warn("unrecognized line in managed block",
				slog.String("path", c.path),
				slog.String("line", trimmed),
			)
			continue
		}
		records = append(records, rec)
	}
	return records
}

// parseLine reads one dnsmasq directive back into a record.
func parseLine(line string) (Record, bool) {
	if m := addressPattern.FindStringSubmatch(line); m != nil {
		addr, err := netip.ParseAddr(m[2])
		if err != nil {
			return Record{}, false
		}
		kind := provider.KindA
		if !addr.Is4() {
			kind = provider.KindAAAA
		}
		return Record{FQDN: m[1], Kind: kind, Value: m[2]}, true
	}
	if m := cnamePattern.FindStringSubmatch(line); m != nil {
		return Record{FQDN: m[1], Kind: provider.KindCNAME, Value: m[2]}, true
	}
	if m := txtPattern.FindStringSubmatch(line); m != nil {
		return Record{FQDN: m[1], Kind: provider.KindTXT, Value: provider.StripQuotes(m[2])}, true
	}
	return Record{}, false
}

// formatLine renders a record as the dnsmasq directive for its kind.
func formatLine(rec Record) (string, error) {
	switch rec.Kind {
	case provider.KindA, provider.KindAAAA:
		return fmt.Sprintf("address=/%s/%s", rec.FQDN, rec.Value), nil
	case provider.KindCNAME:
		return fmt.Sprintf("cname=%s,%s", rec.FQDN, rec.Value), nil
	case provider.KindTXT:
		return fmt.Sprintf("txt-record=%s,%s", rec.FQDN, provider.EnsureQuotes(rec.Value)), nil
	}
	return "", fmt.Errorf("no dnsmasq directive for %s records", rec.Kind)
}

// removeMatching drops managed lines for the name and kind. Lines that
// do not parse are kept.
func removeMatching(block []string, fqdn string, kind provider.RecordKind) []string {
	kept := make([]string, 0, len(block))
	for _, line := range block {
		rec, ok := parseLine(strings.TrimSpace(line))
		if ok && strings.EqualFold(rec.FQDN, fqdn) && rec.Kind == kind {
			continue
		}
		kept = append(kept, line)
	}
	return kept
}

// write reassembles the config with the markers always present and
// hands it to the filesystem.
func (c *Client) write(head, block, tail []string) error {
	var b strings.Builder
	for _, line := range head {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteString(blockBegin)
	b.WriteByte('\n')
	for _, line := range block {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteString(blockEnd)
	b.WriteByte('\n')
	for _, line := range tail {
		b.WriteString(line)
		b.WriteByte('\n')
	}

	if dir := filepath.Dir(c.path); dir != "." && dir != "/" {
		if err := c.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}
	if err := c.fs.WriteFile(c.path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", c.path, err)
	}
	return nil
}
