package store

import (
	"database/sql"

	"github.com/skycastapp/skycast/internal/errors"
)

// Setting keys the rest of the application depends on.
const (
	KeyBackgroundImagePath = "BackgroundImagePath"
	KeyLastSelectedCity    = "LastSelectedCity"
	KeyUseDarkTheme        = "UseDarkTheme"
	KeyLanguage            = "Language"
)

// GetSetting returns the value for key. The second return value is false
// if the key has never been set.
func (s *Store) GetSetting(key string) (string, bool, error) {
	db, err := s.DB()
	if err != nil {
		return "", false, err
	}
	defer db.Close()

	var value string
	err = db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.NewStorage("read setting", err)
	}
	return value, true, nil
}

// PutSetting stores key=value, replacing any existing value.
func (s *Store) PutSetting(key, value string) error {
	db, err := s.DB()
	if err != nil {
		return err
	}
	defer db.Close()

	_, err = db.Exec(`
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return errors.NewStorage("write setting", err)
	}
	return nil
}

// DeleteSetting removes key. Deleting a missing key is not an error.
func (s *Store) DeleteSetting(key string) error {
	db, err := s.DB()
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := db.Exec(`DELETE FROM settings WHERE key = ?`, key); err != nil {
		return errors.NewStorage("delete setting", err)
	}
	return nil
}

// BackgroundImagePath returns the user-set custom background path, or ""
// if none is configured.
func (s *Store) BackgroundImagePath() (string, error) {
	value, _, err := s.GetSetting(KeyBackgroundImagePath)
	return value, err
}

// SetBackgroundImagePath stores the custom background path.
func (s *Store) SetBackgroundImagePath(path string) error {
	return s.PutSetting(KeyBackgroundImagePath, path)
}

// LastSelectedCity returns the most recently viewed city, or "".
func (s *Store) LastSelectedCity() (string, error) {
	value, _, err := s.GetSetting(KeyLastSelectedCity)
	return value, err
}

// SetLastSelectedCity stores the most recently viewed city.
func (s *Store) SetLastSelectedCity(city string) error {
	return s.PutSetting(KeyLastSelectedCity, city)
}

// UseDarkTheme reports the theme preference. Defaults to true when unset.
func (s *Store) UseDarkTheme() (bool, error) {
	value, ok, err := s.GetSetting(KeyUseDarkTheme)
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}
	return value == "true", nil
}

// SetUseDarkTheme stores the theme preference.
func (s *Store) SetUseDarkTheme(dark bool) error {
	value := "false"
	if dark {
		value = "true"
	}
	return s.PutSetting(KeyUseDarkTheme, value)
}

// Language returns the UI language code. Defaults to "en" when unset.
func (s *Store) Language() (string, error) {
	value, ok, err := s.GetSetting(KeyLanguage)
	if err != nil {
		return "", err
	}
	if !ok {
		return "en", nil
	}
	return value, nil
}

// SetLanguage stores the UI language code.
func (s *Store) SetLanguage(lang string) error {
	return s.PutSetting(KeyLanguage, lang)
}
