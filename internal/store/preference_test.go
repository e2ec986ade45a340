package store

import "testing"

func TestPreferenceSetAndGet(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "alice@example.com", "alice")
	s := NewPreferenceStore(db)

	if err := s.Set(user.ID, PrefLanguage, "fr"); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, err := s.Get(user.ID, PrefLanguage)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "fr" {
		t.Errorf("language = %q, want fr", got)
	}

	// Upsert overwrites
	if err := s.Set(user.ID, PrefLanguage, "de"); err != nil {
		t.Fatalf("set again: %v", err)
	}
	got, _ = s.Get(user.ID, PrefLanguage)
	if got != "de" {
		t.Errorf("language = %q, want de", got)
	}
}

func TestPreferenceGetMissing(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "alice@example.com", "alice")
	s := NewPreferenceStore(db)

	got, err := s.Get(user.ID, PrefCurrency)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "" {
		t.Errorf("expected empty value for missing key, got %q", got)
	}
}

func TestPreferenceGetLocale(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "alice@example.com", "alice")
	s := NewPreferenceStore(db)

	s.Set(user.ID, PrefLanguage, "ja")
	s.Set(user.ID, PrefCurrency, "JPY")
	s.Set(user.ID, "theme", "dark") // unrelated key stays out

	locale, err := s.GetLocale(user.ID)
	if err != nil {
		t.Fatalf("get locale: %v", err)
	}
	if locale[PrefLanguage] != "ja" || locale[PrefCurrency] != "JPY" {
		t.Errorf("locale = %v", locale)
	}
	if _, ok := locale["theme"]; ok {
		t.Error("unexpected non-locale key in result")
	}
}
