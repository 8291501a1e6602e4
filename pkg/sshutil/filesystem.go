package sshutil

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"sync"

	"github.com/pkg/sftp"
)

// SFTPFileSystem reads and writes files on the remote host over an
// SFTP session opened on an existing Client connection.
type SFTPFileSystem struct {
	client *Client
	logger *slog.Logger

	mu         sync.RWMutex
	sftpClient *sftp.Client
}

// SFTPOption configures an SFTPFileSystem.
type SFTPOption func(*SFTPFileSystem)

// WithSFTPLogger sets the logger for filesystem operations.
func WithSFTPLogger(logger *slog.Logger) SFTPOption {
	return func(fs *SFTPFileSystem) {
		if logger != nil {
			fs.logger = logger
		}
	}
}

// NewSFTPFileSystem wraps an SSH client. The client must be connected
// before Connect is called here.
func NewSFTPFileSystem(client *Client, opts ...SFTPOption) *SFTPFileSystem {
	fs := &SFTPFileSystem{
		client: client,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(fs)
	}
	return fs
}

// Connect opens the SFTP subsystem. Calling it on an open session is a
// no-op.
func (fs *SFTPFileSystem) Connect(ctx context.Context) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.sftpClient != nil {
		return nil
	}

	conn, err := fs.client.GetConnection()
	if err != nil {
		return err
	}

	sftpClient, err := sftp.NewClient(conn)
	if err != nil {
		return fmt.Errorf("opening sftp session: %w", err)
	}
	fs.sftpClient = sftpClient

	fs.logger.Debug("sftp session established")
	return nil
}

// Close shuts the SFTP session down. The SSH connection stays open for
// its owner to close.
func (fs *SFTPFileSystem) Close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.sftpClient == nil {
		return nil
	}

	err := fs.sftpClient.Close()
	fs.sftpClient = nil

	fs.logger.Debug("sftp session closed")
	return err
}

func (fs *SFTPFileSystem) get() (*sftp.Client, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	if fs.sftpClient == nil {
		return nil, ErrNotConnected
	}
	return fs.sftpClient, nil
}

// ReadFile returns the contents of the remote file. Missing files
// satisfy errors.Is(err, os.ErrNotExist).
func (fs *SFTPFileSystem) ReadFile(filePath string) ([]byte, error) {
	client, err := fs.get()
	if err != nil {
		return nil, err
	}

	f, err := client.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", filePath, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", filePath, err)
	}

	fs.logger.Debug("read remote file",
		slog.String("path", filePath),
		slog.Int("bytes", len(data)),
	)

	return data, nil
}

// WriteFile replaces the remote file, creating parent directories as
// needed.
func (fs *SFTPFileSystem) WriteFile(filePath string, data []byte, perm os.FileMode) error {
	client, err := fs.get()
	if err != nil {
		return err
	}

	if dir := path.Dir(filePath); dir != "." && dir != "/" {
		if err := client.MkdirAll(dir); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}

	f, err := client.OpenFile(filePath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return fmt.Errorf("opening %s for write: %w", filePath, err)
	}
	defer f.Close()

	n, err := f.Write(data)
	if err != nil {
		return fmt.Errorf("writing %s: %w", filePath, err)
	}
	if n != len(data) {
		return fmt.Errorf("short write to %s: %d of %d bytes", filePath, n, len(data))
	}

	if err := client.Chmod(filePath, perm); err != nil {
		fs.logger.Warn("setting file mode failed",
			slog.String("path", filePath),
			slog.String("error", err.Error()),
		)
	}

	fs.logger.Debug("wrote remote file",
		slog.String("path", filePath),
		slog.Int("bytes", len(data)),
	)

	return nil
}

// Stat returns file info for the remote path.
func (fs *SFTPFileSystem) Stat(filePath string) (os.FileInfo, error) {
	client, err := fs.get()
	if err != nil {
		return nil, err
	}

	info, err := client.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", filePath, err)
	}
	return info, nil
}

// MkdirAll creates the remote directory and any missing parents.
func (fs *SFTPFileSystem) MkdirAll(dirPath string, perm os.FileMode) error {
	client, err := fs.get()
	if err != nil {
		return err
	}

	if err := client.MkdirAll(dirPath); err != nil {
		return fmt.Errorf("creating directory %s: %w", dirPath, err)
	}

	if err := client.Chmod(dirPath, perm); err != nil {
		fs.logger.Warn("setting directory mode failed",
			slog.String("path", dirPath),
			slog.String("error", err.Error()),
		)
	}

	return nil
}
