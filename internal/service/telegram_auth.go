package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	telegramMaxAge  = time.Hour
	telegramMaxSkew = 5 * time.Minute

	// TelegramParticipantPrefix id участника из Telegram: "tg:<user id>"
	TelegramParticipantPrefix = "tg:"
)

// TelegramVerifier принимает init data Telegram WebApp как токен.
// Участник - поле user.id, подписанное HMAC от токена бота.
type TelegramVerifier struct {
	botToken string
	now      func() time.Time
}

var _ Verifier = (*TelegramVerifier)(nil)

func NewTelegramVerifier(botToken string) *TelegramVerifier {
	return &TelegramVerifier{botToken: botToken, now: time.Now}
}

func (v *TelegramVerifier) Verify(_ context.Context, token string) (string, error) {
	values, ok := ValidateTelegramInitData(token, v.botToken, v.now())
	if !ok {
		return "", fmt.Errorf("%w: bad telegram init data", ErrInvalidToken)
	}

	var user struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal([]byte(values.Get("user")), &user); err != nil || user.ID == 0 {
		return "", fmt.Errorf("%w: telegram user missing", ErrInvalidToken)
	}
	return TelegramParticipantPrefix + strconv.FormatInt(user.ID, 10), nil
}

// ValidateTelegramInitData проверяет HMAC init_data и свежесть auth_date
// (не старше часа, не более 5 минут из будущего)
func ValidateTelegramInitData(initData, botToken string, now time.Time) (url.Values, bool) {
	values, err := url.ParseQuery(initData)
	if err != nil {
		return nil, false
	}

	hash := values.Get("hash")
	if hash == "" {
		return nil, false
	}
	values.Del("hash")

	provided, err := hex.DecodeString(hash)
	if err != nil {
		return nil, false
	}
	if !hmac.Equal(telegramSignature(values, botToken), provided) {
		return nil, false
	}

	authDate, err := strconv.ParseInt(values.Get("auth_date"), 10, 64)
	if err != nil {
		return nil, false
	}
	age := now.Sub(time.Unix(authDate, 0))
	if age > telegramMaxAge || age < -telegramMaxSkew {
		return nil, false
	}

	return values, true
}

// telegramSignature ключ - HMAC("WebAppData", botToken), данные - пары k=v по алфавиту через \n
func telegramSignature(values url.Values, botToken string) []byte {
	pairs := make([]string, 0, len(values))
	for k, v := range values {
		pairs = append(pairs, k+"="+strings.Join(v, ""))
	}
	sort.Strings(pairs)

	secretKey := hmac.New(sha256.New, []byte("WebAppData"))
	secretKey.Write([]byte(botToken))

	h := hmac.New(sha256.New, secretKey.Sum(nil))
	h.Write([]byte(strings.Join(pairs, "\n")))
	return h.Sum(nil)
}
