package service

import (
	"context"
	"fmt"
	"time"

	"solana-custody-gateway/internal/core/ports"
	"solana-custody-gateway/pkg/apperror"

	"github.com/rs/zerolog"
)

// OperatorAuthServiceImpl implements ports.OperatorAuthService against a
// static set of operators configured as name -> argon2id hash.
type OperatorAuthServiceImpl struct {
	operators map[string]string
	hashSvc   ports.HashService
	tokenSvc  ports.TokenService
	log       zerolog.Logger

	// decoy is verified for unknown operators so both paths cost the same.
	decoy string
}

// NewOperatorAuthService creates a new OperatorAuthServiceImpl.
func NewOperatorAuthService(
	operators map[string]string,
	hashSvc ports.HashService,
	tokenSvc ports.TokenService,
	log zerolog.Logger,
) (*OperatorAuthServiceImpl, error) {
	decoy, err := hashSvc.Hash("decoy-operator-password")
	if err != nil {
		return nil, fmt.Errorf("hash decoy: %w", err)
	}
	return &OperatorAuthServiceImpl{
		operators: operators,
		hashSvc:   hashSvc,
		tokenSvc:  tokenSvc,
		log:       log,
		decoy:     decoy,
	}, nil
}

// Login validates operator credentials and returns a bearer token.
func (s *OperatorAuthServiceImpl) Login(_ context.Context, operator, password string) (string, time.Time, error) {
	encoded, known := s.operators[operator]
	if !known {
		encoded = s.decoy
	}

	valid, err := s.hashSvc.Verify(password, encoded)
	if err != nil {
		s.log.Error().Err(err).Str("operator", operator).Msg("operator hash is malformed")
		return "", time.Time{}, apperror.ErrInvalidCredentials()
	}
	if !known || !valid {
		s.log.Warn().Str("operator", operator).Msg("operator login rejected")
		return "", time.Time{}, apperror.ErrInvalidCredentials()
	}

	token, expiry, err := s.tokenSvc.Generate(operator)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("generate token: %w", err))
	}

	s.log.Info().Str("operator", operator).Msg("operator logged in")
	return token, expiry, nil
}
