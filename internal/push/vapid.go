package push

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/findme/internal/logger"
)

// VAPIDKeys — пара ключей Web Push (VAPID). Subject — контакт отправителя (mailto: или https:).
type VAPIDKeys struct {
	PublicKey  string `json:"public_key"`
	PrivateKey string `json:"private_key"`
	Subject    string `json:"subject,omitempty"`
}

const (
	defaultVAPIDKeysPath = "config/vapid.json"
	defaultVAPIDSubject  = "mailto:support@findme.local"
)

var errEmptyKeys = errors.New("vapid: empty keys")

// EnsureVAPIDKeys загружает ключи из файла, при отсутствии генерирует и сохраняет.
// Путь: аргумент, затем VAPID_KEYS_FILE, затем config/vapid.json.
func EnsureVAPIDKeys(path string) (*VAPIDKeys, error) {
	if path == "" {
		path = os.Getenv("VAPID_KEYS_FILE")
	}
	if path == "" {
		path = defaultVAPIDKeysPath
	}
	keys, err := loadVAPIDKeys(path)
	if err == nil {
		return keys, nil
	}
	pub, priv, err := webpush.GenerateVAPIDKeys()
	if err != nil {
		return nil, err
	}
	keys = &VAPIDKeys{PublicKey: pub, PrivateKey: priv, Subject: subjectFromEnv()}
	if err := saveVAPIDKeys(path, keys); err != nil {
		logger.Errorf("push: не удалось сохранить VAPID-ключи в %s: %v", path, err)
		return keys, nil
	}
	logger.Infof("push: VAPID-ключи сгенерированы, %s", path)
	return keys, nil
}

func subjectFromEnv() string {
	if s := os.Getenv("VAPID_SUBJECT"); s != "" {
		return s
	}
	return defaultVAPIDSubject
}

func loadVAPIDKeys(path string) (*VAPIDKeys, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var keys VAPIDKeys
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, err
	}
	if keys.PublicKey == "" || keys.PrivateKey == "" {
		return nil, errEmptyKeys
	}
	if keys.Subject == "" {
		keys.Subject = subjectFromEnv()
	}
	return &keys, nil
}

func saveVAPIDKeys(path string, keys *VAPIDKeys) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(keys, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
