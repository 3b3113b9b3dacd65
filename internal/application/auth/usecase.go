package auth

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/tlotliso/sbm-api/internal/application/dto"
	"github.com/tlotliso/sbm-api/internal/application/usecase"
	"github.com/tlotliso/sbm-api/internal/domain"
	"github.com/tlotliso/sbm-api/internal/domain/repository"
	"github.com/tlotliso/sbm-api/internal/domain/schema"
	"github.com/tlotliso/sbm-api/pkg/jwt"
)

// JWTConfig configuración para generación de tokens.
type JWTConfig struct {
	Secret     string
	ExpMinutes int
	Issuer     string
}

// BcryptHasher hashea passwords con bcrypt.
type BcryptHasher struct {
	Cost int
}

// Hash implementa usecase.SecretHasher.
func (h BcryptHasher) Hash(plain string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// AuthUseCase casos de uso de autenticación: registro, login y perfil propio.
type AuthUseCase struct {
	entities *usecase.EntityService
	tx       repository.TxRunner
	jwtCfg   JWTConfig
}

// NewAuthUseCase construye el caso de uso de auth.
func NewAuthUseCase(entities *usecase.EntityService, tx repository.TxRunner, jwtCfg JWTConfig) *AuthUseCase {
	return &AuthUseCase{entities: entities, tx: tx, jwtCfg: jwtCfg}
}

// RegisterUser crea un usuario a través del servicio de entidades (valida, hashea y persiste).
// Devuelve UniqueConstraintError si el username ya existe.
func (uc *AuthUseCase) RegisterUser(ctx context.Context, in dto.RegisterRequest) (schema.Record, error) {
	payload := schema.Payload{
		"username":    in.Username,
		"password":    in.Password,
		"companyName": in.CompanyName,
	}
	optional := map[string]*string{
		"businessType": in.BusinessType,
		"webLink":      in.WebLink,
		"logo":         in.Logo,
		"about":        in.About,
		"contactInfo":  in.ContactInfo,
		"location":     in.Location,
	}
	for name, v := range optional {
		if v != nil {
			payload[name] = *v
		}
	}
	return uc.entities.Create(ctx, schema.KindUser, payload, 0)
}

// Login verifica username/password, genera JWT y retorna token + usuario.
func (uc *AuthUseCase) Login(ctx context.Context, in dto.LoginRequest) (*dto.LoginResponse, error) {
	var user schema.Record
	err := uc.tx.Run(ctx, func(ctx context.Context, tx repository.EntityTx) error {
		rows, err := tx.List(ctx, schema.KindUser, repository.ListFilter{
			Equals: map[string]any{"username": in.Username},
			Limit:  1,
		})
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return domain.ErrUserNotFound
		}
		user = rows[0]
		return nil
	})
	if err != nil {
		return nil, err
	}
	hash, _ := user.String("password")
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(in.Password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, domain.ErrUnauthorized
		}
		return nil, err
	}
	token, err := jwt.Generate(uc.jwtCfg.Secret, user.ID(), in.Username, uc.jwtCfg.Issuer, uc.jwtCfg.ExpMinutes)
	if err != nil {
		return nil, err
	}
	s, _ := uc.entities.Registry().Schema(schema.KindUser)
	return &dto.LoginResponse{Token: token, User: user.Public(s)}, nil
}

// Me perfil del usuario autenticado (sin password).
func (uc *AuthUseCase) Me(ctx context.Context, userID int64) (schema.Record, error) {
	return uc.entities.Get(ctx, schema.KindUser, userID, userID)
}
