package purposetoken

import (
	"errors"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"

	"github.com/dropDatabas3/tokensmith/internal/metrics"
)

// Purpose etiqueta el único flujo de lifecycle para el que vale un token.
type Purpose string

const (
	PurposeEmailVerification Purpose = "email_verification"
	PurposePasswordReset     Purpose = "password_reset"
	PurposePasswordChange    Purpose = "password_change"
	PurposeEmailChange       Purpose = "email_change"
)

// Purposes lista todos los propósitos soportados.
var Purposes = []Purpose{
	PurposeEmailVerification,
	PurposePasswordReset,
	PurposePasswordChange,
	PurposeEmailChange,
}

// TTL devuelve la vigencia del token según el propósito.
func (p Purpose) TTL() time.Duration {
	if p == PurposeEmailVerification {
		return 24 * time.Hour
	}
	return time.Hour
}

// Valid reporta si p es un propósito conocido.
func (p Purpose) Valid() bool {
	switch p {
	case PurposeEmailVerification, PurposePasswordReset, PurposePasswordChange, PurposeEmailChange:
		return true
	}
	return false
}

// Fallas tipadas de Verify. Nunca exponen material de claves ni stack traces.
var (
	ErrBadSignature = errors.New("purposetoken: bad signature")
	ErrExpired      = errors.New("purposetoken: expired")
	ErrMalformed    = errors.New("purposetoken: malformed token")
	ErrUnknown      = errors.New("purposetoken: unknown purpose")
)

// Payload es el contenido firmado de un purpose token.
// Los campos opcionales aplican según el propósito:
// Email (verificación), NewEmail (cambio de email),
// NewPasswordHash (cambio de password; viaja el PHC, nunca el plano).
type Payload struct {
	UserID          int64  `json:"uid"`
	Email           string `json:"email,omitempty"`
	NewEmail        string `json:"new_email,omitempty"`
	NewPasswordHash string `json:"new_phc,omitempty"`
}

type claims struct {
	Payload
	Purpose string `json:"purpose"`
	jwtv5.RegisteredClaims
}

// Config son los secretos de firma. Cada propósito puede tener secreto propio;
// si no, se cae al DefaultSecret compartido.
type Config struct {
	DefaultSecret []byte
	Secrets       map[Purpose][]byte
}

// Service emite y verifica purpose tokens HMAC-firmados con expiry embebido.
// Stateless: seguro para uso concurrente.
type Service struct {
	cfg Config
	now func() time.Time
}

func New(cfg Config) *Service {
	return &Service{cfg: cfg, now: time.Now}
}

// secretFor elige el secreto del propósito, con fallback al default.
// Un token acuñado para un propósito jamás verifica contra otro: si ambos
// comparten el default, el claim "purpose" corta igual la verificación cruzada.
func (s *Service) secretFor(p Purpose) []byte {
	if sec, ok := s.cfg.Secrets[p]; ok && len(sec) > 0 {
		return sec
	}
	return s.cfg.DefaultSecret
}

// Issue firma payload con el secreto del propósito y expiry = now + TTL(purpose).
func (s *Service) Issue(purpose Purpose, payload Payload) (string, error) {
	if !purpose.Valid() {
		return "", ErrUnknown
	}
	now := s.now().UTC()
	cl := claims{
		Payload: payload,
		Purpose: string(purpose),
		RegisteredClaims: jwtv5.RegisteredClaims{
			IssuedAt:  jwtv5.NewNumericDate(now),
			NotBefore: jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(now.Add(purpose.TTL())),
		},
	}
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, cl)
	signed, err := tk.SignedString(s.secretFor(purpose))
	if err != nil {
		return "", err
	}
	metrics.PurposeTokensIssued.WithLabelValues(string(purpose)).Inc()
	return signed, nil
}

// Verify valida firma y expiry contra el secreto del propósito y devuelve el payload.
// Fallas: ErrBadSignature | ErrExpired | ErrMalformed.
func (s *Service) Verify(token string, purpose Purpose) (Payload, error) {
	if !purpose.Valid() {
		return Payload{}, ErrUnknown
	}
	var cl claims
	_, err := jwtv5.ParseWithClaims(token, &cl,
		func(t *jwtv5.Token) (any, error) {
			return s.secretFor(purpose), nil
		},
		jwtv5.WithValidMethods([]string{"HS256"}),
		jwtv5.WithTimeFunc(s.now),
	)
	if err != nil {
		out := s.mapError(err)
		metrics.PurposeTokenVerifications.WithLabelValues(string(purpose), outcomeLabel(out)).Inc()
		return Payload{}, out
	}

	// El claim "purpose" tiene que coincidir: cubre el caso de dos propósitos
	// compartiendo el secreto default.
	if cl.Purpose != string(purpose) {
		metrics.PurposeTokenVerifications.WithLabelValues(string(purpose), "bad_signature").Inc()
		return Payload{}, ErrBadSignature
	}

	metrics.PurposeTokenVerifications.WithLabelValues(string(purpose), "ok").Inc()
	return cl.Payload, nil
}

func (s *Service) mapError(err error) error {
	switch {
	case errors.Is(err, jwtv5.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwtv5.ErrTokenMalformed):
		return ErrMalformed
	default:
		// firma inválida, método inesperado, nbf futuro: todo cae acá
		return ErrBadSignature
	}
}

func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrMalformed):
		return "malformed"
	default:
		return "bad_signature"
	}
}
