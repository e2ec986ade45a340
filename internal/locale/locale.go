// Package locale reconciles the user's (language, currency) pair from three
// sources: the authoritative profile on the backend, device-local
// persistence, and the browser-reported locale. The profile wins once the
// user is authenticated; the local copy is a fallback, never a source of
// truth; the browser locale only ever produces a suggestion.
package locale

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"streamhub/internal/api"
)

// Storage keys in device-local persistence.
const (
	KeyLanguage = "language"
	KeyCurrency = "currency"
)

// Baseline defaults applied when no source has a stored preference.
const (
	DefaultLanguage = "en"
	DefaultCurrency = "USD"
)

var (
	// ErrUnsupportedLanguage is returned by SetLanguage for codes outside the
	// supported set. The previous value is left unchanged.
	ErrUnsupportedLanguage = errors.New("unsupported language code")
	// ErrUnsupportedCurrency is the currency counterpart.
	ErrUnsupportedCurrency = errors.New("unsupported currency code")
)

var supportedLanguages = map[string]struct{}{
	"en": {}, "es": {}, "fr": {}, "de": {}, "pt": {}, "ja": {}, "ko": {}, "zh": {},
}

var supportedCurrencies = map[string]struct{}{
	"USD": {}, "EUR": {}, "GBP": {}, "BRL": {}, "JPY": {}, "KRW": {},
}

// LanguageSupported reports membership in the supported language set.
func LanguageSupported(code string) bool {
	_, ok := supportedLanguages[code]
	return ok
}

// CurrencySupported reports membership in the supported currency set.
func CurrencySupported(code string) bool {
	_, ok := supportedCurrencies[code]
	return ok
}

// Preference is the authoritative pair exposed to the rest of the app.
type Preference struct {
	Language string
	Currency string
}

// Storage is device-local key/value persistence (the localStorage analogue).
type Storage interface {
	Get(key string) (string, bool)
	Set(key, value string) error
}

// ProfileAPI reads and writes the backend profile copy. Satisfied by
// *api.Client.
type ProfileAPI interface {
	FetchPreferences(ctx context.Context) (*api.LocalePreferences, error)
	SavePreferences(ctx context.Context, prefs api.LocalePreferences) error
}

// Manager holds the reconciled preference and applies updates.
type Manager struct {
	storage Storage
	profile ProfileAPI
	logger  *slog.Logger

	mu            sync.Mutex
	pref          Preference
	suggestion    string
	authenticated bool
}

func NewManager(storage Storage, profile ProfileAPI, logger *slog.Logger) *Manager {
	return &Manager{
		storage: storage,
		profile: profile,
		logger:  logger,
		pref:    Preference{Language: DefaultLanguage, Currency: DefaultCurrency},
	}
}

// Load reconciles the initial preference. Precedence: authenticated profile
// (written through to local persistence), then local persistence, then
// defaults plus a detection-based suggestion derived from acceptLanguage.
// The suggestion is surfaced via Suggestion and never applied silently.
func (m *Manager) Load(ctx context.Context, authenticated bool, acceptLanguage string) Preference {
	m.mu.Lock()
	m.authenticated = authenticated
	m.mu.Unlock()

	if authenticated {
		remote, err := m.profile.FetchPreferences(ctx)
		if err == nil && remote != nil {
			pref := m.applyRemote(*remote)
			return pref
		}
		m.logger.Warn("profile preference fetch failed, falling back to local", "error", err)
	}

	lang, haveLang := m.storage.Get(KeyLanguage)
	cur, haveCur := m.storage.Get(KeyCurrency)

	m.mu.Lock()
	defer m.mu.Unlock()

	if haveLang && LanguageSupported(lang) {
		m.pref.Language = lang
	}
	if haveCur && CurrencySupported(cur) {
		m.pref.Currency = cur
	}

	if !haveLang {
		if detected := DetectLanguage(acceptLanguage); detected != "" && detected != m.pref.Language {
			m.suggestion = detected
		}
	}
	return m.pref
}

// applyRemote adopts the profile values and writes them through to local
// persistence, overriding whatever was cached there.
func (m *Manager) applyRemote(remote api.LocalePreferences) Preference {
	m.mu.Lock()
	if LanguageSupported(remote.Language) {
		m.pref.Language = remote.Language
	}
	if CurrencySupported(remote.Currency) {
		m.pref.Currency = remote.Currency
	}
	pref := m.pref
	m.mu.Unlock()

	if err := m.storage.Set(KeyLanguage, pref.Language); err != nil {
		m.logger.Warn("persist language", "error", err)
	}
	if err := m.storage.Set(KeyCurrency, pref.Currency); err != nil {
		m.logger.Warn("persist currency", "error", err)
	}
	return pref
}

// Preference returns the current reconciled pair.
func (m *Manager) Preference() Preference {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pref
}

// Suggestion returns the detected-language hint, or "" when there is none.
func (m *Manager) Suggestion() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.suggestion
}

// SetLanguage applies a supported language code: in-memory and local
// persistence synchronously, then a fire-and-forget profile write when
// authenticated. A remote failure is logged, not retried, and never rolls
// back the local change.
func (m *Manager) SetLanguage(ctx context.Context, code string) error {
	if !LanguageSupported(code) {
		return ErrUnsupportedLanguage
	}

	m.mu.Lock()
	m.pref.Language = code
	m.suggestion = ""
	pref := m.pref
	authenticated := m.authenticated
	m.mu.Unlock()

	if err := m.storage.Set(KeyLanguage, code); err != nil {
		return err
	}

	if authenticated {
		go m.saveRemote(ctx, pref)
	}
	return nil
}

// SetCurrency is the currency counterpart of SetLanguage.
func (m *Manager) SetCurrency(ctx context.Context, code string) error {
	if !CurrencySupported(code) {
		return ErrUnsupportedCurrency
	}

	m.mu.Lock()
	m.pref.Currency = code
	pref := m.pref
	authenticated := m.authenticated
	m.mu.Unlock()

	if err := m.storage.Set(KeyCurrency, code); err != nil {
		return err
	}

	if authenticated {
		go m.saveRemote(ctx, pref)
	}
	return nil
}

func (m *Manager) saveRemote(ctx context.Context, pref Preference) {
	err := m.profile.SavePreferences(context.WithoutCancel(ctx), api.LocalePreferences{
		Language: pref.Language,
		Currency: pref.Currency,
	})
	if err != nil {
		m.logger.Warn("profile preference write failed", "error", err)
	}
}
