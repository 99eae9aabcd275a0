package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bitcoinrelay/relaynode/dsha"
	"github.com/bitcoinrelay/relaynode/frame"
	"github.com/bitcoinrelay/relaynode/netutil"
	"github.com/bitcoinrelay/relaynode/varint"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli"
	"golang.org/x/sync/errgroup"
)

func printJSON(resp interface{}) {
	b, err := json.MarshalIndent(resp, "", "    ")
	if err != nil {
		fatal(err)
	}

	fmt.Printf("%s\n", b)
}

// digestString renders d in display order, or in internal byte order when raw
// is set.
func digestString(d dsha.Digest, raw bool) string {
	if raw {
		return hex.EncodeToString(d[:])
	}

	return d.String()
}

var rawFlag = cli.BoolFlag{
	Name:  "raw",
	Usage: "print digests in internal byte order instead of display order",
}

var hashCommand = cli.Command{
	Name:      "hash",
	Category:  "Hashing",
	Usage:     "Compute the double SHA-256 of files or hex strings.",
	ArgsUsage: "input [input...]",
	Description: `
	Compute the double SHA-256 digest of each input. Inputs are file paths
	unless --hex is set, in which case they are hex encoded byte strings.
	Inputs are hashed concurrently, bounded by the configured number of
	workers.`,
	Flags: []cli.Flag{
		cli.BoolFlag{
			Name:  "hex",
			Usage: "treat the arguments as hex encoded bytes",
		},
		cli.BoolFlag{
			Name:  "table",
			Usage: "print the results as a table instead of JSON",
		},
		rawFlag,
	},
	Action: actionDecorator(hash),
}

type hashResult struct {
	Input  string `json:"input"`
	Size   int    `json:"size"`
	Digest string `json:"digest"`
}

func hash(ctx *cli.Context, cfg *config) error {
	args := ctx.Args()
	if !args.Present() {
		return cli.ShowCommandHelp(ctx, "hash")
	}

	isHex := ctx.Bool("hex")
	raw := ctx.Bool("raw")
	results := make([]hashResult, len(args))

	var g errgroup.Group
	g.SetLimit(cfg.Workers)
	for i, arg := range args {
		i, arg := i, arg
		g.Go(func() error {
			var (
				data []byte
				err  error
			)
			if isHex {
				data, err = hex.DecodeString(arg)
			} else {
				data, err = os.ReadFile(arg)
			}
			if err != nil {
				return fmt.Errorf("unable to read %s: %w", arg, err)
			}

			results[i] = hashResult{
				Input:  arg,
				Size:   len(data),
				Digest: digestString(dsha.Sum(data), raw),
			}
			rcliLog.Debugf("Hashed %d bytes of %s", len(data), arg)

			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if !ctx.Bool("table") {
		printJSON(results)
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Input", "Size", "Digest"})
	for _, r := range results {
		t.AppendRow(table.Row{r.Input, r.Size, r.Digest})
	}
	t.Render()

	return nil
}

var pairHashCommand = cli.Command{
	Name:      "pairhash",
	Category:  "Hashing",
	Usage:     "Hash the concatenation of two digests.",
	ArgsUsage: "left right",
	Description: `
	Compute the double SHA-256 of left followed by right, as done when
	building a merkle tree. Both digests are given in display order.`,
	Flags:  []cli.Flag{rawFlag},
	Action: actionDecorator(pairHash),
}

func pairHash(ctx *cli.Context, _ *config) error {
	if ctx.NArg() != 2 {
		return cli.ShowCommandHelp(ctx, "pairhash")
	}

	left, err := dsha.ParseDigest(ctx.Args().Get(0))
	if err != nil {
		return fmt.Errorf("invalid left digest: %w", err)
	}
	right, err := dsha.ParseDigest(ctx.Args().Get(1))
	if err != nil {
		return fmt.Errorf("invalid right digest: %w", err)
	}

	d := dsha.SumPair(&left, &right)
	printJSON(struct {
		Digest string `json:"digest"`
	}{
		Digest: digestString(d, ctx.Bool("raw")),
	})

	return nil
}

var blockHashCommand = cli.Command{
	Name:      "blockhash",
	Category:  "Hashing",
	Usage:     "Compute the hash of a serialized block header.",
	ArgsUsage: "block-file",
	Description: `
	Hash the 80 byte block header found at --offset inside block-file. The
	file may hold the header alone or a header followed by transactions.`,
	Flags: []cli.Flag{
		cli.IntFlag{
			Name:  "offset",
			Usage: "byte offset of the header within the file",
		},
		cli.BoolFlag{
			Name:  "hex",
			Usage: "the file holds the block as hex text",
		},
		rawFlag,
	},
	Action: actionDecorator(blockHash),
}

func blockHash(ctx *cli.Context, _ *config) error {
	if ctx.NArg() != 1 {
		return cli.ShowCommandHelp(ctx, "blockhash")
	}

	block, err := os.ReadFile(ctx.Args().First())
	if err != nil {
		return err
	}
	if ctx.Bool("hex") {
		block, err = hex.DecodeString(strings.TrimSpace(string(block)))
		if err != nil {
			return fmt.Errorf("invalid hex block: %w", err)
		}
	}

	d, err := dsha.BlockHash(block, ctx.Int("offset"))
	if err != nil {
		return err
	}

	printJSON(struct {
		Hash string `json:"hash"`
	}{
		Hash: digestString(d, ctx.Bool("raw")),
	})

	return nil
}

var varintCommand = cli.Command{
	Name:     "varint",
	Category: "Encoding",
	Usage:    "Encode and decode variable length integers.",
	Subcommands: []cli.Command{
		{
			Name:      "encode",
			Usage:     "Encode an unsigned integer.",
			ArgsUsage: "value",
			Action:    actionDecorator(varintEncode),
		},
		{
			Name:      "decode",
			Usage:     "Decode a hex encoded integer.",
			ArgsUsage: "hex",
			Description: `
	Decode the integer at the front of the given bytes. Non-canonical
	encodings are accepted and reported as such.`,
			Action: actionDecorator(varintDecode),
		},
	},
}

func varintEncode(ctx *cli.Context, _ *config) error {
	if ctx.NArg() != 1 {
		return cli.ShowCommandHelp(ctx, "encode")
	}

	v, err := strconv.ParseUint(ctx.Args().First(), 0, 64)
	if err != nil {
		return fmt.Errorf("invalid value: %w", err)
	}

	printJSON(struct {
		Value   uint64 `json:"value"`
		Encoded string `json:"encoded"`
	}{
		Value:   v,
		Encoded: hex.EncodeToString(varint.Encode(v)),
	})

	return nil
}

func varintDecode(ctx *cli.Context, _ *config) error {
	if ctx.NArg() != 1 {
		return cli.ShowCommandHelp(ctx, "decode")
	}

	b, err := hex.DecodeString(ctx.Args().First())
	if err != nil {
		return fmt.Errorf("invalid hex: %w", err)
	}

	v, n, err := varint.DecodeBytes(b)
	if err != nil {
		return err
	}

	printJSON(struct {
		Value     uint64 `json:"value"`
		Size      int    `json:"size"`
		Canonical bool   `json:"canonical"`
		Remaining int    `json:"remaining"`
	}{
		Value:     v,
		Size:      n,
		Canonical: varint.IsCanonical(v, n),
		Remaining: len(b) - n,
	})

	return nil
}

// readPayload returns the payload given by --payload (hex) or --payloadfile.
func readPayload(ctx *cli.Context) ([]byte, error) {
	switch {
	case ctx.IsSet("payload") && ctx.IsSet("payloadfile"):
		return nil, errors.New("payload and payloadfile are mutually " +
			"exclusive")

	case ctx.IsSet("payloadfile"):
		return os.ReadFile(ctx.String("payloadfile"))

	default:
		return hex.DecodeString(ctx.String("payload"))
	}
}

var payloadFlags = []cli.Flag{
	cli.StringFlag{
		Name:  "command",
		Usage: "the message command, at most 12 ASCII bytes",
	},
	cli.StringFlag{
		Name:  "payload",
		Usage: "the hex encoded payload",
	},
	cli.StringFlag{
		Name:      "payloadfile",
		Usage:     "read the payload from this file",
		TakesFile: true,
	},
}

var frameCommand = cli.Command{
	Name:     "frame",
	Category: "Encoding",
	Usage:    "Build the header for a peer-to-peer message.",
	Description: `
	Print the 24 byte header that frames the payload under the given command
	for the configured network. With --full the payload is appended.`,
	Flags: append([]cli.Flag{
		cli.BoolFlag{
			Name:  "full",
			Usage: "print the header followed by the payload",
		},
	}, payloadFlags...),
	Action: actionDecorator(frameMessage),
}

func frameMessage(ctx *cli.Context, cfg *config) error {
	if !ctx.IsSet("command") {
		return cli.ShowCommandHelp(ctx, "frame")
	}

	payload, err := readPayload(ctx)
	if err != nil {
		return err
	}

	h, err := frame.New(cfg.params.Net, ctx.String("command"), payload)
	if err != nil {
		return err
	}
	rcliLog.Debugf("Framed %v", h)

	hdr := h.Bytes()
	out := hdr[:]
	if ctx.Bool("full") {
		out = append(out, payload...)
	}

	printJSON(struct {
		Command  string `json:"command"`
		Length   uint32 `json:"length"`
		Checksum string `json:"checksum"`
		Message  string `json:"message"`
	}{
		Command:  h.CommandString(),
		Length:   h.Length,
		Checksum: hex.EncodeToString(h.Checksum[:]),
		Message:  hex.EncodeToString(out),
	})

	return nil
}

var decodeHeaderCommand = cli.Command{
	Name:      "decodeheader",
	Category:  "Encoding",
	Usage:     "Decode a hex encoded message header.",
	ArgsUsage: "hex",
	Description: `
	Decode the 24 byte message header at the front of the given bytes. When
	the header is followed by its payload, the payload length and checksum
	are verified as well.`,
	Action: actionDecorator(decodeHeader),
}

func decodeHeader(ctx *cli.Context, cfg *config) error {
	if ctx.NArg() != 1 {
		return cli.ShowCommandHelp(ctx, "decodeheader")
	}

	b, err := hex.DecodeString(ctx.Args().First())
	if err != nil {
		return fmt.Errorf("invalid hex: %w", err)
	}

	h, err := frame.Decode(b)
	if err != nil {
		return err
	}

	resp := struct {
		Network  string `json:"network"`
		Command  string `json:"command"`
		Length   uint32 `json:"length"`
		Checksum string `json:"checksum"`
		Verified bool   `json:"verified"`
	}{
		Network:  h.Magic.String(),
		Command:  h.CommandString(),
		Length:   h.Length,
		Checksum: hex.EncodeToString(h.Checksum[:]),
	}

	if rest := b[frame.HeaderSize:]; len(rest) > 0 {
		if err := h.Verify(cfg.params.Net, rest); err != nil {
			return err
		}
		resp.Verified = true
	}

	printJSON(resp)

	return nil
}

var relayHeaderCommand = cli.Command{
	Name:      "relayheader",
	Category:  "Encoding",
	Usage:     "Encode or decode a relay protocol header.",
	ArgsUsage: "[hex]",
	Description: `
	Without arguments, print the relay VERSION message carrying --version.
	With a hex argument, decode the 12 byte relay header at its front.`,
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:  "version",
			Usage: "the version string to announce",
			Value: "relaycli",
		},
	},
	Action: actionDecorator(relayHeader),
}

func relayHeader(ctx *cli.Context, _ *config) error {
	if ctx.NArg() == 0 {
		msg, err := frame.EncodeRelayVersion(
			frame.RelayVersion, ctx.String("version"),
		)
		if err != nil {
			return err
		}

		printJSON(struct {
			Message string `json:"message"`
		}{
			Message: hex.EncodeToString(msg),
		})

		return nil
	}

	b, err := hex.DecodeString(ctx.Args().First())
	if err != nil {
		return fmt.Errorf("invalid hex: %w", err)
	}

	h, err := frame.DecodeRelayHeader(b)
	if err != nil {
		return err
	}

	resp := struct {
		Type    string `json:"type"`
		Length  uint32 `json:"length"`
		Version string `json:"version,omitempty"`
	}{
		Type:   h.Type.String(),
		Length: h.Length,
	}

	body := b[frame.RelayHeaderSize:]
	if h.Type == frame.RelayVersion || h.Type == frame.RelayMaxVersion {
		n := min(len(body), int(h.Length))
		resp.Version = frame.SanitizeVersion(string(body[:n]))
	}

	printJSON(resp)

	return nil
}

var sendCommand = cli.Command{
	Name:     "send",
	Category: "Network",
	Usage:    "Send a framed message to a peer.",
	Description: `
	Connect to the peer, send the payload framed under --command for the
	configured network and, with --wait, print the first message the peer
	sends back.`,
	Flags: append([]cli.Flag{
		cli.StringFlag{
			Name: "peer",
			Usage: "the peer as host[:port]; the network's default " +
				"port is used when omitted",
		},
		cli.BoolFlag{
			Name:  "wait",
			Usage: "wait for and print one reply",
		},
		cli.DurationFlag{
			Name: "timeout",
			Usage: "how long --wait waits for the reply; defaults " +
				"to the dial timeout",
		},
	}, payloadFlags...),
	Action: actionDecorator(send),
}

func send(ctx *cli.Context, cfg *config) error {
	if !ctx.IsSet("peer") || !ctx.IsSet("command") {
		return cli.ShowCommandHelp(ctx, "send")
	}

	payload, err := readPayload(ctx)
	if err != nil {
		return err
	}

	host, port, err := net.SplitHostPort(ctx.String("peer"))
	if err != nil {
		host, port = ctx.String("peer"), cfg.params.DefaultPort
	}

	ctxc, cancel := context.WithTimeout(
		context.Background(), cfg.DialTimeout,
	)
	defer cancel()

	resolver := net.DefaultResolver
	addr, err := netutil.LookupAddress(ctxc, resolver, host)
	if err != nil {
		return fmt.Errorf("unable to resolve %s: %w", host, err)
	}
	ip := net.IP(addr[:])
	target := net.JoinHostPort(ip.String(), port)

	rcliLog.Infof("Connecting to %s (%s)", target,
		netutil.HostName(ctxc, resolver, ip))

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctxc, "tcp", target)
	if err != nil {
		return err
	}
	defer conn.Close()

	command := ctx.String("command")
	err = netutil.WriteMessage(conn, cfg.params.Net, command, payload)
	if err != nil {
		return err
	}
	rcliLog.Infof("Sent %s with %d byte payload", command, len(payload))

	if !ctx.Bool("wait") {
		return nil
	}

	timeout := cfg.DialTimeout
	if ctx.IsSet("timeout") {
		timeout = ctx.Duration("timeout")
	}
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}

	h, reply, err := netutil.ReadMessage(
		conn, cfg.params.Net, cfg.MaxPayload,
	)
	if err != nil {
		return err
	}

	printJSON(struct {
		Command string `json:"command"`
		Length  uint32 `json:"length"`
		Payload string `json:"payload"`
	}{
		Command: h.CommandString(),
		Length:  h.Length,
		Payload: hex.EncodeToString(reply),
	})

	return nil
}
