package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789_-"

	shortCodeLength    = 8
	fallbackCodeLength = 12

	maxIDGenerationAttempts = 5
)

var aliasPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{3,50}$`)

// reservedAliases collide with top-level routes.
var reservedAliases = map[string]bool{
	"api":      true,
	"download": true,
	"healthz":  true,
	"metrics":  true,
}

// CodeChecker reports whether a short code is already taken.
type CodeChecker interface {
	ShortCodeExists(ctx context.Context, code string) (bool, error)
}

// CodeGenerator assigns short codes to new links.
type CodeGenerator struct {
	checker CodeChecker
	random  func(n int) string
	logger  *zap.Logger
}

func NewCodeGenerator(checker CodeChecker) *CodeGenerator {
	return &CodeGenerator{
		checker: checker,
		random:  randomCode,
		logger:  zap.L().With(zap.String("component", "CodeGenerator")),
	}
}

// Assign returns alias when it is valid and free, or a fresh random code
// when alias is empty.
func (g *CodeGenerator) Assign(ctx context.Context, alias string) (string, error) {
	alias = strings.TrimSpace(alias)
	if alias == "" {
		return g.generate(ctx)
	}

	if !validAlias(alias) {
		return "", ErrInvalidAlias
	}
	exists, err := g.checker.ShortCodeExists(ctx, alias)
	if err != nil {
		return "", err
	}
	if exists {
		return "", ErrAliasTaken
	}
	return alias, nil
}

// generate tries short codes first and falls back to longer ones after
// repeated collisions.
func (g *CodeGenerator) generate(ctx context.Context) (string, error) {
	for _, length := range []int{shortCodeLength, fallbackCodeLength} {
		for attempt := 0; attempt < maxIDGenerationAttempts; attempt++ {
			code := g.random(length)
			exists, err := g.checker.ShortCodeExists(ctx, code)
			if err != nil {
				return "", err
			}
			if !exists {
				return code, nil
			}
			g.logger.Debug("Short code collision", zap.String("short_code", code), zap.Int("attempt", attempt+1))
		}
		g.logger.Warn("Short code space congested, trying longer codes", zap.Int("length", length))
	}
	return "", ErrIDGenerationMax
}

func validAlias(alias string) bool {
	return aliasPattern.MatchString(alias) && !reservedAliases[strings.ToLower(alias)]
}

func randomCode(n int) string {
	return randomString(n, codeAlphabet)
}

func randomString(n int, alphabet string) string {
	out := make([]byte, n)
	max := big.NewInt(int64(len(alphabet)))
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic(fmt.Sprintf("failed to generate random number: %v", err))
		}
		out[i] = alphabet[idx.Int64()]
	}
	return string(out)
}
