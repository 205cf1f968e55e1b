// Package flows orquesta los flujos de lifecycle que combinan purpose tokens
// con el side record del user store.
//
// Diseño de dos capas: la firma prueba que el token lo emitimos nosotros y
// que no venció; el side record (un único token pendiente por usuario por
// propósito) prueba que es EL token vigente. Re-emitir pisa el side record,
// con lo cual un token viejo con firma válida queda inutilizable.
package flows

import (
	"context"
	"errors"
	"time"

	"github.com/dropDatabas3/tokensmith/internal/email"
	"github.com/dropDatabas3/tokensmith/internal/metrics"
	"github.com/dropDatabas3/tokensmith/internal/observability/logger"
	"github.com/dropDatabas3/tokensmith/internal/security/password"
	"github.com/dropDatabas3/tokensmith/internal/security/purposetoken"
	tokens "github.com/dropDatabas3/tokensmith/internal/security/token"
	"github.com/dropDatabas3/tokensmith/internal/store"
)

// Errores terminales de confirmación. El caller pide un token nuevo.
var (
	ErrTokenInvalid  = errors.New("flows: token invalid")
	ErrTokenExpired  = errors.New("flows: token expired")
	ErrTokenConsumed = errors.New("flows: token already consumed or superseded")
	ErrUserNotFound  = errors.New("flows: user not found")
)

// Paths de confirmación que se embeben en los links de email.
const (
	PathVerifyEmail     = "/v1/auth/verify-email"
	PathResetPassword   = "/v1/auth/reset"
	PathConfirmPassword = "/v1/auth/password-change/confirm"
	PathConfirmEmail    = "/v1/auth/email-change/confirm"
)

// Service arma tokens, mantiene side records y dispara los emails de cada flujo.
type Service struct {
	Store   store.Store
	Tokens  *purposetoken.Service
	Sender  email.Sender
	BaseURL string

	// Params de hashing para passwords nuevos (reset/change).
	HashParams password.Params

	now func() time.Time
}

func New(st store.Store, pts *purposetoken.Service, sender email.Sender, baseURL string) *Service {
	return &Service{
		Store:      st,
		Tokens:     pts,
		Sender:     sender,
		BaseURL:    baseURL,
		HashParams: password.Default,
		now:        time.Now,
	}
}

// --- Emisión ---

// issueAndRecord emite el token firmado y sobreescribe el side record.
// El side record guarda el hash del token, no el valor en claro.
func (s *Service) issueAndRecord(ctx context.Context, userID int64, purpose purposetoken.Purpose, payload purposetoken.Payload) (string, error) {
	tok, err := s.Tokens.Issue(purpose, payload)
	if err != nil {
		return "", err
	}
	exp := s.now().UTC().Add(purpose.TTL())
	if err := s.Store.SetTokenFields(ctx, userID, string(purpose), tokens.SHA256Base64URL(tok), exp); err != nil {
		return "", err
	}
	return tok, nil
}

// sendMail renderiza y envía. Una falla de entrega se loguea y NO revierte la
// emisión: el token sigue vigente y el resend queda siempre disponible.
func (s *Service) sendMail(ctx context.Context, to, username string, purpose purposetoken.Purpose, link string) {
	msg, err := email.Render(string(purpose), email.Vars{
		Username: username,
		Link:     link,
		TTL:      purpose.TTL().String(),
	})
	log := logger.From(ctx).With(logger.Component("flows"), logger.Purpose(string(purpose)))
	if err != nil {
		metrics.EmailsSent.WithLabelValues(string(purpose), "error").Inc()
		log.Error("template render failed", logger.Err(err))
		return
	}
	if err := s.Sender.Send(to, msg.Subject, msg.HTMLBody, msg.TextBody); err != nil {
		metrics.EmailsSent.WithLabelValues(string(purpose), "error").Inc()
		log.Warn("delivery failed, token stays valid", logger.Err(err))
		return
	}
	metrics.EmailsSent.WithLabelValues(string(purpose), "ok").Inc()
}

// StartEmailVerification emite (o re-emite) el token de verificación y manda
// el email. Re-emitir supersede el token anterior del mismo propósito.
func (s *Service) StartEmailVerification(ctx context.Context, userID int64) error {
	u, ok, err := s.Store.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUserNotFound
	}
	tok, err := s.issueAndRecord(ctx, userID, purposetoken.PurposeEmailVerification, purposetoken.Payload{
		UserID: userID,
		Email:  u.Email,
	})
	if err != nil {
		return err
	}
	link := email.BuildLink(s.BaseURL, PathVerifyEmail, tok, userID)
	s.sendMail(ctx, u.Email, u.Username, purposetoken.PurposeEmailVerification, link)
	return nil
}

// StartPasswordReset resuelve el email y emite el token de reset.
// found=false no es error: el caller responde 204 igual para no enumerar usuarios.
func (s *Service) StartPasswordReset(ctx context.Context, emailAddr string) (found bool, err error) {
	userID, ok, err := s.Store.LookupUserIDByEmail(ctx, emailAddr)
	if err != nil || !ok {
		return false, err
	}
	u, ok, err := s.Store.GetUserByID(ctx, userID)
	if err != nil || !ok {
		return false, err
	}
	tok, err := s.issueAndRecord(ctx, userID, purposetoken.PurposePasswordReset, purposetoken.Payload{
		UserID: userID,
		Email:  u.Email,
	})
	if err != nil {
		return true, err
	}
	link := email.BuildLink(s.BaseURL, PathResetPassword, tok, userID)
	s.sendMail(ctx, u.Email, u.Username, purposetoken.PurposePasswordReset, link)
	return true, nil
}

// StartPasswordChange emite el token de cambio de password para un usuario
// autenticado. El password nuevo viaja dentro del token como PHC, nunca en claro.
func (s *Service) StartPasswordChange(ctx context.Context, userID int64, newPassword string) error {
	u, ok, err := s.Store.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUserNotFound
	}
	phc, err := password.Hash(s.HashParams, newPassword)
	if err != nil {
		return err
	}
	tok, err := s.issueAndRecord(ctx, userID, purposetoken.PurposePasswordChange, purposetoken.Payload{
		UserID:          userID,
		NewPasswordHash: phc,
	})
	if err != nil {
		return err
	}
	link := email.BuildLink(s.BaseURL, PathConfirmPassword, tok, userID)
	s.sendMail(ctx, u.Email, u.Username, purposetoken.PurposePasswordChange, link)
	return nil
}

// StartEmailChange emite el token de cambio de email. El email de confirmación
// va a la dirección NUEVA: probar posesión de la casilla destino.
func (s *Service) StartEmailChange(ctx context.Context, userID int64, newEmail string) error {
	u, ok, err := s.Store.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUserNotFound
	}
	tok, err := s.issueAndRecord(ctx, userID, purposetoken.PurposeEmailChange, purposetoken.Payload{
		UserID:   userID,
		NewEmail: newEmail,
	})
	if err != nil {
		return err
	}
	link := email.BuildLink(s.BaseURL, PathConfirmEmail, tok, userID)
	s.sendMail(ctx, newEmail, u.Username, purposetoken.PurposeEmailChange, link)
	return nil
}

// --- Confirmación ---

// consume valida la firma y después consume el side record con un
// compare-and-delete del store. Chequeo y borrado van en una sola operación:
// dos confirms concurrentes presentando el mismo token ven exactamente un
// consumo exitoso. El cambio de estado del caller corre después; el token
// queda quemado aunque ese cambio posterior falle.
func (s *Service) consume(ctx context.Context, raw string, purpose purposetoken.Purpose) (purposetoken.Payload, error) {
	payload, err := s.Tokens.Verify(raw, purpose)
	if err != nil {
		switch {
		case errors.Is(err, purposetoken.ErrExpired):
			return purposetoken.Payload{}, ErrTokenExpired
		default:
			return purposetoken.Payload{}, ErrTokenInvalid
		}
	}

	// Segunda capa: ¿sigue siendo el token pendiente? Si no, otro confirm
	// ya lo consumió o una re-emisión lo supersedió.
	consumed, err := s.Store.ConsumeTokenFields(ctx, payload.UserID, string(purpose), tokens.SHA256Base64URL(raw))
	if err != nil {
		return purposetoken.Payload{}, err
	}
	if !consumed {
		metrics.PurposeTokenVerifications.WithLabelValues(string(purpose), "consumed").Inc()
		return purposetoken.Payload{}, ErrTokenConsumed
	}
	return payload, nil
}

// ConfirmEmailVerification consume el token y marca el email como verificado.
func (s *Service) ConfirmEmailVerification(ctx context.Context, raw string) (int64, error) {
	payload, err := s.consume(ctx, raw, purposetoken.PurposeEmailVerification)
	if err != nil {
		return 0, err
	}
	if err := s.Store.SetEmailVerified(ctx, payload.UserID); err != nil {
		return 0, err
	}
	logger.From(ctx).Info("email verified",
		logger.Component("flows"), logger.UserID(payload.UserID))
	return payload.UserID, nil
}

// ConfirmPasswordReset consume el token de reset y fija el password nuevo.
func (s *Service) ConfirmPasswordReset(ctx context.Context, raw, newPassword string) (int64, error) {
	payload, err := s.consume(ctx, raw, purposetoken.PurposePasswordReset)
	if err != nil {
		return 0, err
	}
	phc, err := password.Hash(s.HashParams, newPassword)
	if err != nil {
		return 0, err
	}
	if err := s.Store.UpdatePasswordHash(ctx, payload.UserID, phc); err != nil {
		return 0, err
	}
	logger.From(ctx).Info("password reset",
		logger.Component("flows"), logger.UserID(payload.UserID))
	return payload.UserID, nil
}

// ConfirmPasswordChange aplica el PHC que viajó firmado en el token.
func (s *Service) ConfirmPasswordChange(ctx context.Context, raw string) (int64, error) {
	payload, err := s.consume(ctx, raw, purposetoken.PurposePasswordChange)
	if err != nil {
		return 0, err
	}
	if err := s.Store.UpdatePasswordHash(ctx, payload.UserID, payload.NewPasswordHash); err != nil {
		return 0, err
	}
	logger.From(ctx).Info("password changed",
		logger.Component("flows"), logger.UserID(payload.UserID))
	return payload.UserID, nil
}

// ConfirmEmailChange aplica la dirección nueva que viajó firmada en el token.
// El email queda sin verificar hasta que pase de nuevo por verificación.
func (s *Service) ConfirmEmailChange(ctx context.Context, raw string) (int64, error) {
	payload, err := s.consume(ctx, raw, purposetoken.PurposeEmailChange)
	if err != nil {
		return 0, err
	}
	if err := s.Store.UpdateEmail(ctx, payload.UserID, payload.NewEmail); err != nil {
		return 0, err
	}
	logger.From(ctx).Info("email changed",
		logger.Component("flows"), logger.UserID(payload.UserID), logger.Email(payload.NewEmail))
	return payload.UserID, nil
}
