package cmd

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/illarion/walletlock/internal/core"
	"github.com/illarion/walletlock/internal/ledger"
	"github.com/illarion/walletlock/internal/transport"
)

// withDevice opens the configured hardware wallet, runs fn and logs
// transport counters when debugging.
func withDevice(env *Env, fn func(*transport.Session)) {
	registry := prometheus.NewRegistry()
	session, err := core.ConnectHardware(env.Config.Hardware, env.Log, registry)
	if err != nil {
		HandleError(err)
	}
	defer session.Close()

	fn(session)

	if env.Debug {
		logMetrics(env.Log, registry)
	}
}

func logMetrics(log *zap.Logger, g prometheus.Gatherer) {
	families, err := g.Gather()
	if err != nil {
		log.Debug("Failed to gather metrics", zap.Error(err))
		return
	}
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			fields := []zap.Field{zap.String("metric", mf.GetName())}
			for _, l := range metric.GetLabel() {
				fields = append(fields, zap.String(l.GetName(), l.GetValue()))
			}
			switch {
			case metric.GetCounter() != nil:
				fields = append(fields, zap.Float64("value", metric.GetCounter().GetValue()))
			case metric.GetHistogram() != nil:
				fields = append(fields,
					zap.Uint64("count", metric.GetHistogram().GetSampleCount()),
					zap.Float64("sum", metric.GetHistogram().GetSampleSum()))
			}
			log.Debug("Transport metric", fields...)
		}
	}
}

func pathOrDefault(env *Env, path string) string {
	if path == "" {
		return env.Config.Wallet.DerivationPath
	}
	return path
}

// LedgerInfo prints the Ethereum app version and flags
func LedgerInfo(ctx context.Context, env *Env) {
	withDevice(env, func(s *transport.Session) {
		cfg, err := ledger.NewApp(s).Configuration(ctx)
		if err != nil {
			HandleError(err)
		}
		fmt.Printf("Ethereum app %s\n", cfg.VersionString())
		fmt.Printf("  arbitrary data signing: %v\n", cfg.ArbitraryDataEnabled())
	})
}

// LedgerAddress prints the address at path. With display the device shows
// it for confirmation first.
func LedgerAddress(ctx context.Context, env *Env, path string, display bool) {
	m := env.OpenManager()
	defer m.Close()

	withDevice(env, func(s *transport.Session) {
		if display {
			fmt.Println("Confirm the address on the device")
		}
		addr, err := m.HardwareAddress(ctx, s, pathOrDefault(env, path), display)
		if err != nil {
			HandleError(err)
		}
		fmt.Println(addr.Address)
	})
}

// LedgerAdd records the device account at path as a hardware wallet
func LedgerAdd(ctx context.Context, env *Env, name, path string) {
	m := env.OpenManager()
	defer m.Close()

	withDevice(env, func(s *transport.Session) {
		info, err := m.AddHardwareWallet(ctx, s, name, pathOrDefault(env, path))
		if err != nil {
			HandleError(err)
		}
		fmt.Printf("✓ Added hardware wallet %d (%s) %s\n", info.Number, info.Name, info.Address)
	})
}

// LedgerSign has the device sign an opaque transaction payload given as
// hex, or read as hex from file when file is set.
func LedgerSign(ctx context.Context, env *Env, path, payloadHex, file string) {
	payload, err := readPayload(payloadHex, file)
	if err != nil {
		HandleError(err)
	}

	m := env.OpenManager()
	defer m.Close()

	withDevice(env, func(s *transport.Session) {
		fmt.Println("Review and confirm the transaction on the device")
		sig, err := m.SignWithHardware(ctx, s, pathOrDefault(env, path), payload)
		if err != nil {
			HandleError(err)
		}
		fmt.Printf("v: %d\n", sig.V)
		fmt.Printf("r: %s\n", hex.EncodeToString(sig.R[:]))
		fmt.Printf("s: %s\n", hex.EncodeToString(sig.S[:]))
		fmt.Printf("signature: 0x%s\n", hex.EncodeToString(sig.Bytes()))
	})
}

func readPayload(payloadHex, file string) ([]byte, error) {
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read payload: %w", err)
		}
		payloadHex = string(data)
	}
	payloadHex = strings.TrimPrefix(strings.TrimSpace(payloadHex), "0x")
	if payloadHex == "" {
		return nil, fmt.Errorf("empty payload")
	}
	payload, err := hex.DecodeString(payloadHex)
	if err != nil {
		return nil, fmt.Errorf("payload is not hex: %w", err)
	}
	return payload, nil
}
