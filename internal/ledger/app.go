// Package ledger speaks the Ethereum application protocol of Ledger devices
// over a transport.Session.
package ledger

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/illarion/walletlock/internal/transport"
)

type opcode byte

const (
	claEthereum = 0xE0

	opRetrieveAddress  opcode = 0x02 // public key and address for a BIP-32 path
	opSignTransaction  opcode = 0x04 // sign a transaction after user confirmation
	opGetConfiguration opcode = 0x06 // app flags and version

	p1DirectlyFetchAddress = 0x00
	p1ShowFetchAddress     = 0x01
	p1InitTransactionData  = 0x00
	p1ContTransactionData  = 0x80
	p2DiscardChainCode     = 0x00
	p2ReturnChainCode      = 0x01

	signatureLength = 65
	chainCodeLength = 32
)

var errInvalidReply = errors.New("invalid reply")

// App drives the Ethereum app on a connected device.
type App struct {
	session *transport.Session
}

// NewApp returns an App over session.
func NewApp(session *transport.Session) *App {
	return &App{session: session}
}

// Session returns the underlying session.
func (a *App) Session() *transport.Session {
	return a.session
}

type request struct {
	op     opcode
	p1, p2 byte
	data   []byte
}

func (r request) APDU() transport.APDU {
	return transport.APDU{CLA: claEthereum, INS: byte(r.op), P1: r.p1, P2: r.p2, Data: r.data}
}

// Configuration is the reply to a configuration request.
//
//	Flags (optional) | major | minor | patch
type Configuration struct {
	Flags   Option[byte]
	Version [3]byte
}

// ArbitraryDataEnabled reports the user's contract data setting.
func (c Configuration) ArbitraryDataEnabled() bool {
	return c.Flags.OrElse(0)&0x01 != 0
}

func (c Configuration) VersionString() string {
	return fmt.Sprintf("%d.%d.%d", c.Version[0], c.Version[1], c.Version[2])
}

func (c *Configuration) Decode(data []byte) error {
	switch len(data) {
	case 3:
		c.Flags = None[byte]()
		copy(c.Version[:], data)
	case 4:
		c.Flags = Some(data[0])
		copy(c.Version[:], data[1:])
	default:
		return fmt.Errorf("%w: configuration of %d bytes", errInvalidReply, len(data))
	}
	return nil
}

// Address is the reply to an address request.
//
//	pubkey len | pubkey | address len | address (hex ascii) | chain code (optional)
type Address struct {
	PublicKey []byte
	Address   string // 0x-prefixed hex
	ChainCode Option[[chainCodeLength]byte]
}

func (a *Address) Decode(data []byte) error {
	if len(data) < 1 || len(data) < 1+int(data[0]) {
		return fmt.Errorf("%w: reply lacks public key entry", errInvalidReply)
	}
	a.PublicKey = append([]byte(nil), data[1:1+int(data[0])]...)
	data = data[1+int(data[0]):]

	if len(data) < 1 || len(data) < 1+int(data[0]) {
		return fmt.Errorf("%w: reply lacks address entry", errInvalidReply)
	}
	hexstr := string(data[1 : 1+int(data[0])])
	if _, err := hex.DecodeString(hexstr); err != nil || len(hexstr) != 40 {
		return fmt.Errorf("%w: address %q", errInvalidReply, hexstr)
	}
	a.Address = "0x" + strings.ToLower(hexstr)
	data = data[1+int(data[0]):]

	switch len(data) {
	case 0:
		a.ChainCode = None[[chainCodeLength]byte]()
	case chainCodeLength:
		var cc [chainCodeLength]byte
		copy(cc[:], data)
		a.ChainCode = Some(cc)
	default:
		return fmt.Errorf("%w: %d trailing bytes", errInvalidReply, len(data))
	}
	return nil
}

// Signature holds the recoverable ECDSA signature returned by the device.
type Signature struct {
	V byte
	R [32]byte
	S [32]byte
}

// Bytes returns R || S || V.
func (s Signature) Bytes() []byte {
	out := make([]byte, 0, signatureLength)
	out = append(out, s.R[:]...)
	out = append(out, s.S[:]...)
	return append(out, s.V)
}

func (s *Signature) Decode(data []byte) error {
	if len(data) != signatureLength {
		return fmt.Errorf("%w: reply lacks signature", errInvalidReply)
	}
	s.V = data[0]
	copy(s.R[:], data[1:33])
	copy(s.S[:], data[33:65])
	return nil
}

// Configuration requests the app version and flags.
func (a *App) Configuration(ctx context.Context) (Configuration, error) {
	var cfg Configuration
	err := a.session.SendRequest(ctx, request{op: opGetConfiguration}, &cfg)
	return cfg, err
}

// Address derives the address at path. With display set the device shows
// it and waits for confirmation. With chainCode set the reply includes it.
func (a *App) Address(ctx context.Context, path DerivationPath, display, chainCode bool) (Address, error) {
	req := request{op: opRetrieveAddress, p1: p1DirectlyFetchAddress, p2: p2DiscardChainCode, data: path.encode()}
	if display {
		req.p1 = p1ShowFetchAddress
	}
	if chainCode {
		req.p2 = p2ReturnChainCode
	}
	var addr Address
	err := a.session.SendRequest(ctx, req, &addr)
	return addr, err
}

// SignTransaction sends the path and the opaque transaction payload in
// chunks of at most 255 bytes and returns the signature from the last reply.
// The session is held for all chunks.
func (a *App) SignTransaction(ctx context.Context, path DerivationPath, payload []byte) (Signature, error) {
	if len(payload) == 0 {
		return Signature{}, errors.New("empty transaction payload")
	}
	data := append(path.encode(), payload...)

	var sig Signature
	err := a.session.Sequence(ctx, func(tx transport.Sender) error {
		p1 := byte(p1InitTransactionData)
		for len(data) > 0 {
			n := min(transport.MaxAPDUData, len(data))
			chunk := data[:n]
			data = data[n:]

			var resp transport.Response
			if len(data) == 0 {
				resp = &sig
			}
			if err := tx.Send(request{op: opSignTransaction, p1: p1, data: chunk}, resp); err != nil {
				return err
			}
			p1 = p1ContTransactionData
		}
		return nil
	})
	return sig, err
}
