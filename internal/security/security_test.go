package security

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestSealOpenRoundTrip(t *testing.T) {
	key, err := GenerateKey(KeySize)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	for _, plaintext := range []string{"", "a", "imgur-client-id-0123456789abcdef", strings.Repeat("x", 4096)} {
		sealed, err := Seal(key, plaintext)
		if err != nil {
			t.Fatalf("Seal(%q): %v", plaintext, err)
		}
		if sealed == plaintext && plaintext != "" {
			t.Errorf("Seal(%q) returned plaintext unchanged", plaintext)
		}

		opened, err := Open(key, sealed)
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		if opened != plaintext {
			t.Errorf("Open = %q, want %q", opened, plaintext)
		}
	}
}

func TestSealProducesDistinctCiphertexts(t *testing.T) {
	key, err := GenerateKey(KeySize)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	a, err := Seal(key, "same plaintext")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	b, err := Seal(key, "same plaintext")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if a == b {
		t.Error("two Seal calls produced identical output; nonce is not random")
	}
}

func TestOpenWrongKey(t *testing.T) {
	key1, _ := GenerateKey(KeySize)
	key2, _ := GenerateKey(KeySize)

	sealed, err := Seal(key1, "secret credential")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	if _, err := Open(key2, sealed); err == nil {
		t.Error("Open with wrong key succeeded, want error")
	}
}

func TestOpenRejectsGarbage(t *testing.T) {
	key, _ := GenerateKey(KeySize)

	tests := []string{
		"not base64 !!!",
		"",
		"YWJj", // valid base64, too short for a nonce
	}
	for _, sealed := range tests {
		if _, err := Open(key, sealed); err == nil {
			t.Errorf("Open(%q) succeeded, want error", sealed)
		}
	}
}

func TestLoadMachineKeyCreates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "machine.key")

	key, err := LoadMachineKey(path)
	if err != nil {
		t.Fatalf("LoadMachineKey: %v", err)
	}
	if len(key) != KeySize {
		t.Fatalf("key length = %d, want %d", len(key), KeySize)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat key file: %v", err)
	}
	if runtime.GOOS != "windows" && info.Mode().Perm() != PermSecretFile {
		t.Errorf("key file mode = %04o, want %04o", info.Mode().Perm(), PermSecretFile)
	}
}

func TestLoadMachineKeyStable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "machine.key")

	first, err := LoadMachineKey(path)
	if err != nil {
		t.Fatalf("LoadMachineKey: %v", err)
	}
	second, err := LoadMachineKey(path)
	if err != nil {
		t.Fatalf("LoadMachineKey (reload): %v", err)
	}
	if !SecureCompare(first, second) {
		t.Error("reloaded machine key differs from the created one")
	}
}

func TestLoadMachineKeyRejectsLoosePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("no Unix permissions on Windows")
	}

	path := filepath.Join(t.TempDir(), "machine.key")
	if _, err := LoadMachineKey(path); err != nil {
		t.Fatalf("LoadMachineKey: %v", err)
	}
	if err := os.Chmod(path, 0644); err != nil {
		t.Fatalf("chmod: %v", err)
	}

	if _, err := LoadMachineKey(path); err == nil {
		t.Error("LoadMachineKey accepted a world-readable key file")
	}
}

func TestDeriveKeyWithLabelSeparation(t *testing.T) {
	master, _ := GenerateKey(KeySize)

	a, err := DeriveKeyWithLabel(master, "credential", KeySize)
	if err != nil {
		t.Fatalf("DeriveKeyWithLabel: %v", err)
	}
	b, err := DeriveKeyWithLabel(master, "other", KeySize)
	if err != nil {
		t.Fatalf("DeriveKeyWithLabel: %v", err)
	}
	if SecureCompare(a, b) {
		t.Error("different labels derived the same key")
	}

	again, err := DeriveKeyWithLabel(master, "credential", KeySize)
	if err != nil {
		t.Fatalf("DeriveKeyWithLabel: %v", err)
	}
	if !SecureCompare(a, again) {
		t.Error("same label derived different keys")
	}
}

func TestGenerateKeyRejectsSmallSizes(t *testing.T) {
	if _, err := GenerateKey(8); err == nil {
		t.Error("GenerateKey(8) succeeded, want error")
	}
}

func TestSecureCompare(t *testing.T) {
	tests := []struct {
		a, b  []byte
		equal bool
	}{
		{[]byte("hello"), []byte("hello"), true},
		{[]byte("hello"), []byte("world"), false},
		{[]byte("hello"), []byte("hell"), false},
		{[]byte{}, []byte{}, true},
		{nil, nil, true},
		{[]byte("a"), nil, false},
	}

	for _, tt := range tests {
		got := SecureCompare(tt.a, tt.b)
		if got != tt.equal {
			t.Errorf("SecureCompare(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.equal)
		}
	}
}

func TestWriteSecretFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "secret.bin")

	if err := WriteSecretFile(path, []byte("first")); err != nil {
		t.Fatalf("WriteSecretFile: %v", err)
	}
	if err := WriteSecretFile(path, []byte("second")); err != nil {
		t.Fatalf("WriteSecretFile (overwrite): %v", err)
	}

	data, err := ReadSecretFile(path, 0)
	if err != nil {
		t.Fatalf("ReadSecretFile: %v", err)
	}
	if string(data) != "second" {
		t.Errorf("contents = %q, want %q", data, "second")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp.") {
			t.Errorf("temp file %s left behind", e.Name())
		}
	}
}

func TestReadSecretFileSizeLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.bin")
	if err := WriteSecretFile(path, make([]byte, 128)); err != nil {
		t.Fatalf("WriteSecretFile: %v", err)
	}

	if _, err := ReadSecretFile(path, 64); err == nil {
		t.Error("ReadSecretFile accepted a file over the size limit")
	}
}
