// Package sshutil provides the SSH and SFTP plumbing for backends
// that manage DNS records through files on a remote host.
//
// Three pieces cooperate:
//
//   - [Client] owns the SSH connection, with keepalives and optional
//     known_hosts verification.
//   - [SFTPFileSystem] exposes file operations on the remote host over
//     that connection.
//   - [SSHCommandRunner] executes remote commands, typically the
//     reload command after a config rewrite.
//
// A typical session:
//
//	client, err := sshutil.NewClient(&sshutil.Config{
//		Host:    "ns1.internal",
//		User:    "dns",
//		KeyFile: "/etc/zonedit/id_ed25519",
//	})
//	if err != nil {
//		return err
//	}
//	if err := client.Connect(ctx); err != nil {
//		return err
//	}
//	defer client.Close()
//
//	fs := sshutil.NewSFTPFileSystem(client)
//	if err := fs.Connect(ctx); err != nil {
//		return err
//	}
//	defer fs.Close()
//
//	data, err := fs.ReadFile("/etc/dnsmasq.d/zonedit.conf")
//
// Host keys are not verified unless Config.KnownHostsFile points at an
// OpenSSH known_hosts file. Leave verification off only on trusted
// networks.
package sshutil
