package crypto

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/truemarket/internal/domain"
)

// Well-known hardhat account #0.
const (
	testKey   = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	testOwner = "0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266"
)

func TestSigner_Address(t *testing.T) {
	s, err := NewSigner("0x" + testKey)
	require.NoError(t, err)

	addr, err := s.Address(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testOwner, addr)

	ok, err := s.ContainsKey(context.Background(), "0xF39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.ContainsKey(context.Background(), "not-an-address")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSigner_SignRecover(t *testing.T) {
	s, err := NewSigner(testKey)
	require.NoError(t, err)

	msg := []byte("linera block proposal")
	sig, err := s.Sign(context.Background(), testOwner, msg)
	require.NoError(t, err)
	assert.Len(t, sig, 2+130)

	owner, err := RecoverOwner(msg, sig)
	require.NoError(t, err)
	assert.Equal(t, testOwner, owner)
}

func TestSigner_SignUnknownOwner(t *testing.T) {
	s, err := GenerateSigner()
	require.NoError(t, err)

	_, err = s.Sign(context.Background(), testOwner, []byte("x"))
	assert.ErrorIs(t, err, domain.ErrUnknownOwner)
}

func TestNewSigner_InvalidKey(t *testing.T) {
	_, err := NewSigner("zz")
	assert.Error(t, err)
}

func TestLoadSigner(t *testing.T) {
	blob, err := EncryptKey(testKey, "hunter2")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "key.json")
	require.NoError(t, os.WriteFile(path, blob, 0o600))

	s, err := LoadSigner(KeyConfig{EncryptedKeyPath: path, KeyPassword: "hunter2"})
	require.NoError(t, err)
	addr, _ := s.Address(context.Background())
	assert.Equal(t, testOwner, addr)

	_, err = LoadSigner(KeyConfig{EncryptedKeyPath: path, KeyPassword: "wrong"})
	assert.Error(t, err)

	_, err = LoadSigner(KeyConfig{})
	assert.Error(t, err)

	eph, err := LoadSigner(KeyConfig{Ephemeral: true})
	require.NoError(t, err)
	addr, _ = eph.Address(context.Background())
	assert.Len(t, addr, 42)
}

func TestLoadSigner_EphemeralPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet", "key.json")
	cfg := KeyConfig{EncryptedKeyPath: path, KeyPassword: "pw", Ephemeral: true}

	first, err := LoadSigner(cfg)
	require.NoError(t, err)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	second, err := LoadSigner(cfg)
	require.NoError(t, err)
	a, _ := first.Address(context.Background())
	b, _ := second.Address(context.Background())
	assert.Equal(t, a, b)
}

func TestDecryptKey_Rejects(t *testing.T) {
	_, err := EncryptKey(testKey, "")
	assert.ErrorIs(t, err, errEmptyPassword)
	_, err = EncryptKey("abcd", "pw")
	assert.Error(t, err)
	_, err = DecryptKey([]byte(`{"version":2}`), "pw")
	assert.ErrorContains(t, err, "unsupported key file version")
}

func TestNormalizeOwner(t *testing.T) {
	assert.Equal(t, "0xabcd", NormalizeOwner(" ABCD "))
	assert.Equal(t, "0xabcd", NormalizeOwner("0xAbCd"))
}
