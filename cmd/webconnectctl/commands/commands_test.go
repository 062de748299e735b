package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/better-wallet/webconnect/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCommand()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestPair(t *testing.T) {
	out, err := run(t, "", "pair", "safe-wc:8a5e5bdc-a0e4-4702-ba63-8f1a5655744f@1?bridge=https%3A%2F%2Fbridge.walletconnect.org&key=4179")
	require.NoError(t, err)

	var u struct {
		Topic   string `json:"topic"`
		Version string `json:"version"`
		Bridge  string `json:"bridge"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &u))
	assert.Equal(t, "8a5e5bdc-a0e4-4702-ba63-8f1a5655744f", u.Topic)
	assert.Equal(t, "1", u.Version)
	assert.Equal(t, "https://bridge.walletconnect.org", u.Bridge)

	_, err = run(t, "", "pair", "https://example.com")
	assert.Error(t, err)
}

func TestSession(t *testing.T) {
	session := `{
		"url": {"topic": "t1", "version": "1", "bridge": "https://bridge.walletconnect.org", "key": "ab"},
		"dAppInfo": {"peerId": "dapp", "peerMeta": {"name": "Safe Web", "url": "https://app.safe.global", "icons": []}},
		"walletInfo": {"approved": true, "accounts": ["0x9858EfFD232B4033E47d90003D41EC34EcaEda94"], "chainId": 0, "peerId": "wallet", "peerMeta": {"name": "Safe", "url": "", "icons": []}}
	}`

	t.Setenv("DEFAULT_CHAIN_ID", "100")
	out, err := run(t, session, "session", "-")
	require.NoError(t, err)

	var conn types.Connection
	require.NoError(t, json.Unmarshal([]byte(out), &conn))
	assert.Equal(t, types.ConnectionStatusApproved, conn.Status)
	require.NotNil(t, conn.ChainID)
	assert.Equal(t, 100, *conn.ChainID)
	require.Len(t, conn.Accounts, 1)
	require.NotNil(t, conn.RemotePeer)
	assert.Equal(t, "Safe Web", conn.RemotePeer.Name)

	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte(session), 0o600))
	_, err = run(t, "", "session", path)
	require.NoError(t, err)

	_, err = run(t, "{", "session", "-")
	assert.Error(t, err)
}

func TestMessage(t *testing.T) {
	out, err := run(t, "", "message", "0x9858EfFD232B4033E47d90003D41EC34EcaEda94", "--at", "2024-03-01T10:15:00Z")
	require.NoError(t, err)
	// 2024-03-01T10:15:00Z is 1709288100 seconds, hour bucket 474802
	assert.Contains(t, out, "preimage: 0x9858EfFD232B4033E47d90003D41EC34EcaEda94474802\n")
	assert.Contains(t, out, "hash:     0x")

	_, err = run(t, "", "message", "nope")
	assert.Error(t, err)
	_, err = run(t, "", "message", "0x9858EfFD232B4033E47d90003D41EC34EcaEda94", "--at", "yesterday")
	assert.Error(t, err)
}

func TestChains(t *testing.T) {
	t.Setenv("CHAIN_IDS", "")
	out, err := run(t, "", "chains")
	require.NoError(t, err)
	assert.Equal(t, strings.Join(types.DefaultDelegateChains, "\n")+"\n", out)

	path := filepath.Join(t.TempDir(), "webconnect.toml")
	require.NoError(t, os.WriteFile(path, []byte(`chain_ids = ["1", "5"]`), 0o600))
	out, err = run(t, "", "--config", path, "chains")
	require.NoError(t, err)
	assert.Equal(t, "1\n5\n", out)
}
