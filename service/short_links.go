package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/luximus/flowbot/logger"
	"github.com/luximus/flowbot/persistence"
)

const SHORT_CODE_LENGTH = 6

const DefaultShortLinkTTL = 10 * time.Minute

const shortCodeAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// ShortLinkService hands out expiring short codes for long URLs, used to keep the OAuth
// authorization link readable in a chat message.
type ShortLinkService struct {
	dao     persistence.ShortLinkDao
	baseURL string
	ttl     time.Duration
}

func NewShortLinkService(dao persistence.ShortLinkDao, baseURL string, ttl time.Duration) *ShortLinkService {
	if ttl <= 0 {
		ttl = DefaultShortLinkTTL
	}
	return &ShortLinkService{
		dao:     dao,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		ttl:     ttl,
	}
}

// Create stores longURL under a fresh code and returns the public short URL.
func (s *ShortLinkService) Create(ctx context.Context, longURL string) (string, error) {
	code, err := generateShortCode(SHORT_CODE_LENGTH)
	if err != nil {
		return "", err
	}
	if err := s.dao.SaveLink(ctx, code, longURL, s.ttl); err != nil {
		logger.Error("error saving short link", zap.String("code", code), zap.Error(err))
		return "", err
	}
	return s.baseURL + "/" + code, nil
}

// Resolve returns the long URL of code, or persistence.ErrNotFound once it expired.
func (s *ShortLinkService) Resolve(ctx context.Context, code string) (string, error) {
	return s.dao.GetLink(ctx, code)
}

func generateShortCode(length int) (string, error) {
	var sb strings.Builder
	limit := big.NewInt(int64(len(shortCodeAlphabet)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("generate short code: %w", err)
		}
		sb.WriteByte(shortCodeAlphabet[n.Int64()])
	}
	return sb.String(), nil
}
