package core

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/illarion/walletlock/internal/config"
	"github.com/illarion/walletlock/internal/hid"
	"github.com/illarion/walletlock/internal/ledger"
	"github.com/illarion/walletlock/internal/transport"
)

// ConnectHardware opens the first device matching cfg and wraps it in a
// transport session. reg may be nil.
func ConnectHardware(cfg config.Hardware, log *zap.Logger, reg prometheus.Registerer) (*transport.Session, error) {
	filter := hid.LedgerFilter()
	if cfg.VendorID != 0 {
		filter.VendorID = uint16(cfg.VendorID)
	}
	filter.Interface = cfg.Interface

	dev, err := hid.Open(filter)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	log.Debug("Hardware device opened", zap.Stringer("device", dev.Info()))

	framer := transport.LedgerFramer()
	if cfg.ReportSize > 0 {
		framer.ReportSize = cfg.ReportSize
	}
	opts := []transport.SessionOption{
		transport.WithFramer(framer),
		transport.WithLogger(log),
	}
	if reg != nil {
		opts = append(opts, transport.WithMetrics(transport.NewMetrics(reg)))
	}
	if cfg.AcquireTimeoutSec > 0 {
		opts = append(opts, transport.WithAcquireTimeout(time.Duration(cfg.AcquireTimeoutSec)*time.Second))
	}
	return transport.NewSession(dev, opts...), nil
}

// HardwareAddress asks the device for the address at path.
func (m *Manager) HardwareAddress(ctx context.Context, session *transport.Session, path string, display bool) (ledger.Address, error) {
	p, err := ledger.ParsePath(path)
	if err != nil {
		return ledger.Address{}, err
	}
	addr, err := ledger.NewApp(session).Address(ctx, p, display, false)
	if err != nil {
		m.log.Warn("Hardware address request failed", zap.Error(err))
		return ledger.Address{}, err
	}
	return addr, nil
}

// SignWithHardware has the device sign payload with the key at path. The
// payload is passed through unchanged.
func (m *Manager) SignWithHardware(ctx context.Context, session *transport.Session, path string, payload []byte) (ledger.Signature, error) {
	p, err := ledger.ParsePath(path)
	if err != nil {
		return ledger.Signature{}, err
	}
	sig, err := ledger.NewApp(session).SignTransaction(ctx, p, payload)
	if err != nil {
		if code, ok := transport.IsRejected(err); ok {
			m.log.Info("Device rejected signing", zap.Uint16("status", code))
		} else {
			m.log.Warn("Hardware signing failed", zap.Error(err))
		}
		return ledger.Signature{}, err
	}
	m.log.Info("Payload signed on device", zap.String("path", p.String()), zap.Int("bytes", len(payload)))
	return sig, nil
}

// AddHardwareWallet records the device account at path as a wallet. No
// secret is stored.
func (m *Manager) AddHardwareWallet(ctx context.Context, session *transport.Session, name, path string) (WalletInfo, error) {
	addr, err := m.HardwareAddress(ctx, session, path, false)
	if err != nil {
		return WalletInfo{}, err
	}
	info, err := m.register(WalletInfo{
		Name:           name,
		Kind:           KindHardware,
		Address:        addr.Address,
		DerivationPath: path,
	}, nil)
	if err != nil {
		return WalletInfo{}, fmt.Errorf("failed to add hardware wallet: %w", err)
	}

	m.log.Info("Wallet created", zap.Int("wallet", info.Number), zap.String("kind", string(info.Kind)))
	m.notify(EventCreated, info.Number)
	return info, nil
}
