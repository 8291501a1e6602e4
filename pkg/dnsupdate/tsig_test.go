package dnsupdate

import (
	"testing"

	"github.com/miekg/dns"
)

func TestNewTSIG(t *testing.T) {
	tests := []struct {
		name      string
		keyName   string
		secret    string
		algorithm string
		wantName  string
		wantAlg   string
		wantErr   bool
	}{
		{
			name:     "defaults to sha256",
			keyName:  "zonedit.",
			secret:   "c2VjcmV0",
			wantName: "zonedit.",
			wantAlg:  dns.HmacSHA256,
		},
		{
			name:     "name gains trailing dot",
			keyName:  "zonedit",
			secret:   "c2VjcmV0",
			wantName: "zonedit.",
			wantAlg:  dns.HmacSHA256,
		},
		{
			name:      "sha512 alias",
			keyName:   "zonedit.",
			secret:    "c2VjcmV0",
			algorithm: "sha512",
			wantName:  "zonedit.",
			wantAlg:   dns.HmacSHA512,
		},
		{
			name:      "md5 case insensitive",
			keyName:   "zonedit.",
			secret:    "c2VjcmV0",
			algorithm: "HMAC-MD5",
			wantName:  "zonedit.",
			wantAlg:   dns.HmacMD5,
		},
		{
			name:    "missing name",
			secret:  "c2VjcmV0",
			wantErr: true,
		},
		{
			name:    "missing secret",
			keyName: "zonedit.",
			wantErr: true,
		},
		{
			name:    "secret not base64",
			keyName: "zonedit.",
			secret:  "not base64!!!",
			wantErr: true,
		},
		{
			name:      "unknown algorithm",
			keyName:   "zonedit.",
			secret:    "c2VjcmV0",
			algorithm: "crc32",
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := NewTSIG(tt.keyName, tt.secret, tt.algorithm)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if key.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", key.Name, tt.wantName)
			}
			if key.Algorithm != tt.wantAlg {
				t.Errorf("Algorithm = %q, want %q", key.Algorithm, tt.wantAlg)
			}
		})
	}
}

func TestTSIG_ApplyToMessage(t *testing.T) {
	key, err := NewTSIG("zonedit", "c2VjcmV0", "")
	if err != nil {
		t.Fatalf("NewTSIG: %v", err)
	}

	msg := new(dns.Msg)
	msg.SetUpdate("example.com.")
	key.ApplyToMessage(msg)

	sig := msg.IsTsig()
	if sig == nil {
		t.Fatal("message carries no TSIG RR")
	}
	if sig.Hdr.Name != "zonedit." {
		t.Errorf("TSIG name = %q, want %q", sig.Hdr.Name, "zonedit.")
	}
	if sig.Algorithm != dns.HmacSHA256 {
		t.Errorf("TSIG algorithm = %q, want %q", sig.Algorithm, dns.HmacSHA256)
	}
	if sig.TimeSigned == 0 {
		t.Error("TSIG TimeSigned is zero")
	}
}

func TestTSIG_ApplyToClient(t *testing.T) {
	key, err := NewTSIG("zonedit.", "c2VjcmV0", "")
	if err != nil {
		t.Fatalf("NewTSIG: %v", err)
	}

	client := new(dns.Client)
	key.ApplyToClient(client)

	if got := client.TsigSecret["zonedit."]; got != "c2VjcmV0" {
		t.Errorf("TsigSecret[zonedit.] = %q, want %q", got, "c2VjcmV0")
	}
}

func TestTSIG_SecretMap(t *testing.T) {
	key := &TSIG{Name: "zonedit.", Secret: "c2VjcmV0", Algorithm: dns.HmacSHA256}
	m := key.SecretMap()
	if len(m) != 1 || m["zonedit."] != "c2VjcmV0" {
		t.Errorf("SecretMap() = %v, want single zonedit. entry", m)
	}
}
