package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/tyler-smith/go-bip39"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/illarion/walletlock/internal/config"
	"github.com/illarion/walletlock/internal/crypto"
	"github.com/illarion/walletlock/internal/git"
	"github.com/illarion/walletlock/internal/keyring"
	"github.com/illarion/walletlock/internal/securestore"
	"github.com/illarion/walletlock/internal/seedcipher"
	"github.com/illarion/walletlock/internal/storage"
	"github.com/illarion/walletlock/internal/transport"
)

const (
	walletCountKey       = "wallet_count"
	walletInfoKeyFmt     = "wallet_info_%d"
	installationInfo     = "walletlock-installation"
	installationSecretSz = 32
)

var (
	ErrNotInitialized   = errors.New("walletlock not initialized")
	ErrAlreadyExists    = errors.New("walletlock already exists")
	ErrPasswordRequired = errors.New("password required")
	ErrWalletNotFound   = errors.New("wallet not found")
	ErrInvalidMnemonic  = errors.New("invalid mnemonic")
	ErrTooManyAttempts  = errors.New("too many failed attempts, try again later")
	ErrNotSoftware      = errors.New("wallet has no local seed")

	ErrWrongPassword  = seedcipher.ErrWrongPassword
	ErrStorageCorrupt = storage.ErrStorageCorrupt
	ErrNoKey          = crypto.ErrNoKey
	ErrDeviceNotFound = transport.ErrDeviceNotFound
	ErrProtocol       = transport.ErrProtocol
)

// Manager orchestrates wallet creation, unlocking and signing.
type Manager struct {
	store      *securestore.Store
	cipher     *seedcipher.Cipher
	log        *zap.Logger
	limiter    *rate.Limiter
	dispatcher *Dispatcher

	kdf            crypto.KDF
	laneHash       crypto.HashStrategy
	protector      keyring.Protector
	derivationPath string
	storePath      string
	backend        string

	mu sync.Mutex // serializes wallet numbering

	obsMu        sync.RWMutex
	observers    map[int]Observer
	nextObserver int
}

// Option configures a Manager.
type Option func(*Manager)

func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.log = l }
}

func WithKDF(k crypto.KDF) Option {
	return func(m *Manager) { m.kdf = k }
}

func WithLaneHash(h crypto.HashStrategy) Option {
	return func(m *Manager) { m.laneHash = h }
}

// WithProtector sets the platform layer applied around sealed seeds.
func WithProtector(p keyring.Protector) Option {
	return func(m *Manager) { m.protector = p }
}

// WithUnlockLimit allows perMinute failed password attempts with burst.
// Zero disables throttling.
func WithUnlockLimit(perMinute float64, burst int) Option {
	return func(m *Manager) {
		if perMinute <= 0 || burst <= 0 {
			m.limiter = nil
			return
		}
		m.limiter = rate.NewLimiter(rate.Limit(perMinute/60), burst)
	}
}

// WithDispatcher delivers observer events through d.
func WithDispatcher(d *Dispatcher) Option {
	return func(m *Manager) { m.dispatcher = d }
}

// WithDerivationPath sets the path recorded for new software wallets.
func WithDerivationPath(p string) Option {
	return func(m *Manager) { m.derivationPath = p }
}

func withStoreInfo(path, backend string) Option {
	return func(m *Manager) { m.storePath, m.backend = path, backend }
}

// NewManager builds a manager over store. The store's root secret is
// created if needed; the seed cipher is salted with a secret derived from it.
func NewManager(store *securestore.Store, opts ...Option) (*Manager, error) {
	m := &Manager{
		store:          store,
		log:            zap.NewNop(),
		kdf:            crypto.DefaultKDF(),
		laneHash:       crypto.HashSHA384,
		protector:      keyring.NopProtector{},
		derivationPath: "m/44'/60'/0'/0/0",
		observers:      make(map[int]Observer),
	}
	for _, opt := range opts {
		opt(m)
	}

	if err := m.loadCipher(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) loadCipher() error {
	if err := m.store.EnsureRootSecret(); err != nil {
		return fmt.Errorf("failed to load root secret: %w", err)
	}
	secret, err := m.store.DeriveSecret(installationInfo, installationSecretSz)
	if err != nil {
		return err
	}
	defer crypto.ClearBytes(secret)

	if m.cipher != nil {
		m.cipher.Destroy()
	}
	m.cipher = seedcipher.New(secret,
		seedcipher.WithKDF(m.kdf),
		seedcipher.WithLaneHash(m.laneHash),
		seedcipher.WithProtector(m.protector),
	)
	return nil
}

// Init creates a new store as described by cfg.
func Init(cfg *config.Config, opts ...Option) (*Manager, error) {
	if cfg.Store.Backend != storage.BackendMemory {
		if _, err := os.Stat(cfg.Store.Path); err == nil {
			return nil, ErrAlreadyExists
		}
	}
	return open(cfg, opts)
}

// Open opens the existing store described by cfg.
func Open(cfg *config.Config, opts ...Option) (*Manager, error) {
	if cfg.Store.Backend != storage.BackendMemory {
		if _, err := os.Stat(cfg.Store.Path); err != nil {
			return nil, ErrNotInitialized
		}
	}
	return open(cfg, opts)
}

func open(cfg *config.Config, opts []Option) (*Manager, error) {
	sub, err := storage.OpenBackend(cfg.Store.Backend, cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	var protector keyring.Protector = keyring.NopProtector{}
	if cfg.Protect.Keyring {
		inst, ok := sub.(storage.Installation)
		if !ok {
			sub.Close()
			return nil, fmt.Errorf("backend %s has no installation id", cfg.Store.Backend)
		}
		id, err := inst.GetOrCreateInstallationID()
		if err != nil {
			sub.Close()
			return nil, fmt.Errorf("failed to get installation id: %w", err)
		}
		protector = keyring.NewKeyringProtector(id)
	}

	base := []Option{
		WithKDF(cfg.KDFParams()),
		WithLaneHash(cfg.LaneHash()),
		WithProtector(protector),
		WithUnlockLimit(cfg.Unlock.AttemptsPerMinute, cfg.Unlock.Burst),
		WithDerivationPath(cfg.Wallet.DerivationPath),
		withStoreInfo(cfg.Store.Path, cfg.Store.Backend),
	}
	store := securestore.New(sub, protector)
	m, err := NewManager(store, append(base, opts...)...)
	if err != nil {
		store.Close()
		return nil, err
	}
	return m, nil
}

// Close zeroes cached secrets and closes the store.
func (m *Manager) Close() error {
	if m.cipher != nil {
		m.cipher.Destroy()
	}
	if kp, ok := m.protector.(*keyring.KeyringProtector); ok {
		kp.Forget()
	}
	return m.store.Close()
}

func walletInfoKey(n int) string {
	return fmt.Sprintf(walletInfoKeyFmt, n)
}

func (m *Manager) walletCount() (int, error) {
	s, err := m.store.GetString(walletCountKey)
	if errors.Is(err, securestore.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: wallet count %q", ErrStorageCorrupt, s)
	}
	return n, nil
}

// Wallet returns the description of wallet n.
func (m *Manager) Wallet(n int) (WalletInfo, error) {
	var info WalletInfo
	err := m.store.GetJSON(walletInfoKey(n), &info)
	if errors.Is(err, securestore.ErrNotFound) {
		return info, fmt.Errorf("%w: %d", ErrWalletNotFound, n)
	}
	return info, err
}

// Wallets lists every wallet. No password is needed.
func (m *Manager) Wallets() ([]WalletInfo, error) {
	count, err := m.walletCount()
	if err != nil {
		return nil, err
	}
	var wallets []WalletInfo
	for n := 0; n < count; n++ {
		info, err := m.Wallet(n)
		if errors.Is(err, ErrWalletNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		wallets = append(wallets, info)
	}
	return wallets, nil
}

// register assigns the next wallet number, stores info and bumps the count.
// save persists kind-specific data under that number before info is written.
func (m *Manager) register(info WalletInfo, save func(n int) error) (WalletInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, err := m.walletCount()
	if err != nil {
		return WalletInfo{}, err
	}
	info.Number = n
	info.Created = time.Now().UTC()

	if save != nil {
		if err := save(n); err != nil {
			return WalletInfo{}, err
		}
	}
	if err := m.store.SetJSON(walletInfoKey(n), info); err != nil {
		return WalletInfo{}, fmt.Errorf("failed to store wallet info: %w", err)
	}
	if err := m.store.SetString(walletCountKey, strconv.Itoa(n+1)); err != nil {
		return WalletInfo{}, fmt.Errorf("failed to store wallet count: %w", err)
	}
	return info, nil
}

// NewMnemonic returns a fresh BIP-39 mnemonic with bits of entropy.
func NewMnemonic(bits int) (string, error) {
	entropy, err := bip39.NewEntropy(bits)
	if err != nil {
		return "", fmt.Errorf("failed to generate entropy: %w", err)
	}
	defer crypto.ClearBytes(entropy)
	return bip39.NewMnemonic(entropy)
}

// CreateWallet derives the seed from mnemonic, seals it under password and
// stores it as a new software wallet.
func (m *Manager) CreateWallet(ctx context.Context, name, mnemonic string, password []byte) (WalletInfo, error) {
	if len(password) == 0 {
		return WalletInfo{}, ErrPasswordRequired
	}
	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, "")
	if err != nil {
		return WalletInfo{}, fmt.Errorf("%w: %v", ErrInvalidMnemonic, err)
	}

	var rec *seedcipher.Record
	err = crypto.WithSecret(seed, func(s *crypto.Secret) error {
		return s.Use(func(b []byte) error {
			var err error
			rec, err = m.cipher.Encrypt(ctx, b, password, m.derivationPath)
			return err
		})
	})
	if err != nil {
		return WalletInfo{}, err
	}

	info, err := m.register(WalletInfo{
		Name:           name,
		Kind:           KindSoftware,
		DerivationPath: m.derivationPath,
	}, func(n int) error {
		return rec.Save(m.store, n)
	})
	if err != nil {
		return WalletInfo{}, err
	}

	m.log.Info("Wallet created", zap.Int("wallet", info.Number), zap.String("kind", string(info.Kind)))
	m.notify(EventCreated, info.Number)
	return info, nil
}

func (m *Manager) throttled() bool {
	return m.limiter != nil && m.limiter.Tokens() < 1
}

func (m *Manager) recordFailure(n int, err error) {
	if !errors.Is(err, ErrWrongPassword) {
		return
	}
	if m.limiter != nil {
		m.limiter.Allow()
	}
	m.log.Warn("Wrong password", zap.Int("wallet", n))
}

func (m *Manager) loadSoftware(n int) (WalletInfo, *seedcipher.Record, error) {
	info, err := m.Wallet(n)
	if err != nil {
		return info, nil, err
	}
	if info.Kind != KindSoftware {
		return info, nil, fmt.Errorf("%w: wallet %d is %s", ErrNotSoftware, n, info.Kind)
	}
	rec, err := seedcipher.Load(m.store, n)
	if err != nil {
		return info, nil, err
	}
	return info, rec, nil
}

// decryptSeed checks throttling, loads wallet n and decrypts its seed. The
// caller owns the returned secret.
func (m *Manager) decryptSeed(ctx context.Context, n int, password []byte) (WalletInfo, *crypto.Secret, error) {
	if len(password) == 0 {
		return WalletInfo{}, nil, ErrPasswordRequired
	}
	if m.throttled() {
		return WalletInfo{}, nil, ErrTooManyAttempts
	}

	info, rec, err := m.loadSoftware(n)
	if err != nil {
		return info, nil, err
	}
	seed, err := m.cipher.Decrypt(ctx, rec, password)
	if err != nil {
		m.recordFailure(n, err)
		return info, nil, err
	}
	return info, seed, nil
}

// Unlock decrypts the seed of wallet n. The returned handle owns the seed
// and must be closed.
func (m *Manager) Unlock(ctx context.Context, n int, password []byte) (*UnlockedWallet, error) {
	info, seed, err := m.decryptSeed(ctx, n, password)
	if err != nil {
		return nil, err
	}

	w := &UnlockedWallet{
		info: info,
		seed: seed,
		onClose: func() {
			m.log.Debug("Wallet locked", zap.Int("wallet", n))
			m.notify(EventLocked, n)
		},
	}
	m.log.Info("Wallet unlocked", zap.Int("wallet", n))
	m.notify(EventUnlocked, n)
	return w, nil
}

// ChangePassword re-encrypts wallet n under newPassword.
func (m *Manager) ChangePassword(ctx context.Context, n int, oldPassword, newPassword []byte) error {
	if len(oldPassword) == 0 || len(newPassword) == 0 {
		return ErrPasswordRequired
	}
	if m.throttled() {
		return ErrTooManyAttempts
	}

	_, rec, err := m.loadSoftware(n)
	if err != nil {
		return err
	}
	moved, err := m.cipher.Reencrypt(ctx, rec, oldPassword, newPassword)
	if err != nil {
		m.recordFailure(n, err)
		return err
	}
	if err := moved.Save(m.store, n); err != nil {
		return err
	}

	m.log.Info("Wallet password changed", zap.Int("wallet", n))
	m.notify(EventPasswordChanged, n)
	return nil
}

// DeleteWallet removes wallet n. Software wallets require the password.
func (m *Manager) DeleteWallet(ctx context.Context, n int, password []byte) error {
	info, err := m.Wallet(n)
	if err != nil {
		return err
	}
	if info.Kind == KindSoftware {
		_, seed, err := m.decryptSeed(ctx, n, password)
		if err != nil {
			return err
		}
		seed.Destroy()
		if err := seedcipher.Remove(m.store, n); err != nil {
			return err
		}
	}
	if err := m.store.Delete(walletInfoKey(n)); err != nil {
		return fmt.Errorf("failed to delete wallet info: %w", err)
	}

	m.log.Info("Wallet deleted", zap.Int("wallet", n))
	m.notify(EventDeleted, n)
	return nil
}

// StatusInfo summarizes the store. No password is needed.
type StatusInfo struct {
	StorePath    string
	Backend      string
	Modified     time.Time
	Wallets      int
	KDF          crypto.KDF
	LaneHash     crypto.HashStrategy
	Protected    bool
	Algorithm    string
	Installation string
	GitStatus    *git.StoreStatus
}

// Status reports store details and git exposure of the store file.
func (m *Manager) Status(ctx context.Context) (*StatusInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	wallets, err := m.Wallets()
	if err != nil {
		return nil, err
	}

	status := &StatusInfo{
		StorePath: m.storePath,
		Backend:   m.backend,
		Wallets:   len(wallets),
		KDF:       m.kdf,
		LaneHash:  m.laneHash,
		Algorithm: "AES-256-GCM (seed), XChaCha20-Poly1305 (entries)",
	}
	_, status.Protected = m.protector.(*keyring.KeyringProtector)

	sub := m.store.Substrate()
	if db, ok := sub.(*storage.Storage); ok {
		if modified, err := db.GetModified(); err == nil {
			status.Modified = modified
		}
	}
	if inst, ok := sub.(storage.Installation); ok {
		if id, err := inst.GetOrCreateInstallationID(); err == nil {
			status.Installation = id
		}
	}

	if m.storePath != "" && m.backend == storage.BackendBolt {
		if gs, err := git.CheckStore(m.storePath); err == nil && gs.IsRepo {
			status.GitStatus = gs
		}
	}
	return status, nil
}

// Reset deletes the root secret and every entry, then starts over with a
// fresh root secret. Every wallet is lost. It must not run concurrently
// with other operations.
func (m *Manager) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	count, err := m.walletCount()
	if err != nil {
		m.log.Warn("Wallet count unreadable, resetting anyway", zap.Error(err))
	}
	if err := m.store.Reset(); err != nil {
		return err
	}
	if err := m.loadCipher(); err != nil {
		return err
	}
	m.log.Warn("Store reset", zap.Int("wallets", count))
	for n := 0; n < count; n++ {
		m.notify(EventDeleted, n)
	}
	return nil
}

// Compact reclaims unused space in the store, if the backend supports it.
func (m *Manager) Compact() error {
	c, ok := m.store.Substrate().(storage.Compactor)
	if !ok {
		return nil
	}
	return c.Compact()
}
