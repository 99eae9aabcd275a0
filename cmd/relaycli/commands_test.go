package main

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bitcoinrelay/relaynode/frame"
	"github.com/bitcoinrelay/relaynode/netutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

// The command tests share the package level loggers, so none of them run in
// parallel.

// newConfigFile writes an empty configuration file and returns its path.
func newConfigFile(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "relaycli.conf")
	require.NoError(t, os.WriteFile(path, nil, 0600))

	return path
}

// runApp runs relaycli against the configuration file at path with file
// logging disabled, so the user's directories are never touched.
func runApp(path string, args ...string) error {
	base := []string{
		"relaycli", "--configfile", path, "--nologfile",
		"--debuglevel", "off",
	}

	return newApp().Run(append(base, args...))
}

// TestCommandsMissingConfig asserts an explicitly named configuration file
// must exist.
func TestCommandsMissingConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.conf")

	err := runApp(path, "varint", "encode", "1")
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestHashingCommands runs the hashing commands over valid and invalid input.
func TestHashingCommands(t *testing.T) {
	path := newConfigFile(t)
	dir := t.TempDir()

	var header bytes.Buffer
	err := chaincfg.MainNetParams.GenesisBlock.Header.Serialize(&header)
	require.NoError(t, err)

	block := filepath.Join(dir, "block")
	require.NoError(t, os.WriteFile(block, header.Bytes(), 0600))

	empty := filepath.Join(dir, "empty")
	require.NoError(t, os.WriteFile(empty, nil, 0600))

	require.NoError(t, runApp(path, "hash", block, empty))
	require.NoError(t, runApp(path, "hash", "--hex", "--raw", "00", "0102"))
	require.NoError(t, runApp(path, "hash", "--table", block))
	require.Error(t, runApp(path, "hash", "--hex", "zz"))
	require.Error(t, runApp(path, "hash", filepath.Join(dir, "absent")))

	genesis := chaincfg.MainNetParams.GenesisHash.String()
	require.NoError(t, runApp(path, "pairhash", genesis, genesis))
	require.Error(t, runApp(path, "pairhash", genesis, "xyz"))

	require.NoError(t, runApp(path, "blockhash", block))
	require.Error(t, runApp(path, "blockhash", "--offset", "1", block))
}

// TestEncodingCommands runs the varint and framing commands.
func TestEncodingCommands(t *testing.T) {
	path := newConfigFile(t)

	require.NoError(t, runApp(path, "varint", "encode", "0x10000"))
	require.Error(t, runApp(path, "varint", "encode", "many"))
	require.NoError(t, runApp(path, "varint", "decode", "fd0100"))
	require.Error(t, runApp(path, "varint", "decode", "fe0100"))

	require.NoError(t, runApp(path, "frame", "--command", "ping",
		"--payload", "0102030405060708", "--full"))
	require.Error(t, runApp(path, "frame", "--command", "thirteenbytes"))

	msg, err := frame.Encode(wire.MainNet, "ping", []byte{1, 2, 3})
	require.NoError(t, err)

	require.NoError(t, runApp(path, "decodeheader", hex.EncodeToString(msg)))
	require.NoError(t, runApp(path, "decodeheader",
		hex.EncodeToString(msg[:frame.HeaderSize])))
	require.Error(t, runApp(path, "--network", "testnet3", "decodeheader",
		hex.EncodeToString(msg)))
	require.Error(t, runApp(path, "decodeheader",
		hex.EncodeToString(msg[:20])))

	require.NoError(t, runApp(path, "relayheader", "--version", "test"))
	version, err := frame.EncodeRelayVersion(frame.RelayVersion, "v1")
	require.NoError(t, err)
	require.NoError(t, runApp(path, "relayheader",
		hex.EncodeToString(version)))
	require.Error(t, runApp(path, "relayheader", "00000000"))
}

// TestSendCommand sends a ping to a local listener and waits for its pong.
func TestSendCommand(t *testing.T) {
	path := newConfigFile(t)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	errChan := make(chan error, 1)
	go func() {
		conn, err := l.Accept()
		if err != nil {
			errChan <- err
			return
		}
		defer conn.Close()

		// Regtest shares its magic with btcd's wire.TestNet.
		h, payload, err := netutil.ReadMessage(conn, wire.TestNet, 0)
		if err != nil {
			errChan <- err
			return
		}
		if h.CommandString() != "ping" {
			errChan <- fmt.Errorf("unexpected command %q",
				h.CommandString())
			return
		}

		errChan <- netutil.WriteMessage(conn, wire.TestNet, "pong", payload)
	}()

	nonce := []byte{8, 7, 6, 5, 4, 3, 2, 1}
	err = runApp(path, "--network", "regtest", "send",
		"--peer", l.Addr().String(), "--command", "ping",
		"--payload", hex.EncodeToString(nonce), "--wait")
	require.NoError(t, err)
	require.NoError(t, <-errChan)
}

// TestSendCommandTimeout asserts --wait gives up on a peer that never
// replies.
func TestSendCommandTimeout(t *testing.T) {
	path := newConfigFile(t)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		// Read the ping, then stay silent.
		_, _, _ = netutil.ReadMessage(conn, wire.MainNet, 0)
		<-done
	}()

	start := time.Now()
	err = runApp(path, "send", "--peer", l.Addr().String(),
		"--command", "ping", "--wait", "--timeout", "200ms")
	require.ErrorIs(t, err, os.ErrDeadlineExceeded)
	require.Less(t, time.Since(start), 5*time.Second)
}
