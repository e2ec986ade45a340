package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"streamhub/internal/auth"
	"streamhub/internal/locale"
	"streamhub/internal/store"
)

type PreferenceHandler struct {
	prefStore *store.PreferenceStore
	logger    *slog.Logger
}

func NewPreferenceHandler(ps *store.PreferenceStore, logger *slog.Logger) *PreferenceHandler {
	return &PreferenceHandler{prefStore: ps, logger: logger}
}

type localePreferences struct {
	Language string `json:"language"`
	Currency string `json:"currency"`
}

// GetLocale handles GET /api/preferences/locale. Missing keys fall back to
// the platform defaults.
func (h *PreferenceHandler) GetLocale(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	values, err := h.prefStore.GetLocale(userID)
	if err != nil {
		h.logger.Error("get locale preferences", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load preferences")
		return
	}

	prefs := localePreferences{
		Language: locale.DefaultLanguage,
		Currency: locale.DefaultCurrency,
	}
	if v := values[store.PrefLanguage]; v != "" {
		prefs.Language = v
	}
	if v := values[store.PrefCurrency]; v != "" {
		prefs.Currency = v
	}
	writeData(w, http.StatusOK, prefs)
}

// PutLocale handles PUT /api/preferences/locale. Both fields are validated
// against the supported sets before anything is written.
func (h *PreferenceHandler) PutLocale(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var prefs localePreferences
	if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if !locale.LanguageSupported(prefs.Language) {
		writeError(w, http.StatusBadRequest, "unsupported language code")
		return
	}
	if !locale.CurrencySupported(prefs.Currency) {
		writeError(w, http.StatusBadRequest, "unsupported currency code")
		return
	}

	if err := h.prefStore.Set(userID, store.PrefLanguage, prefs.Language); err != nil {
		h.logger.Error("save language preference", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save preferences")
		return
	}
	if err := h.prefStore.Set(userID, store.PrefCurrency, prefs.Currency); err != nil {
		h.logger.Error("save currency preference", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save preferences")
		return
	}

	writeData(w, http.StatusOK, prefs)
}

// SuggestLanguage handles GET /api/preferences/suggest-language. It maps the
// Accept-Language header to the closest supported code without storing
// anything.
func (h *PreferenceHandler) SuggestLanguage(w http.ResponseWriter, r *http.Request) {
	suggestion := locale.DetectLanguage(r.Header.Get("Accept-Language"))
	writeData(w, http.StatusOK, map[string]string{"language": suggestion})
}
