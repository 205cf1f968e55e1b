package session

import (
	"errors"
	"net/http"
	"strings"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"

	"github.com/dropDatabas3/tokensmith/internal/metrics"
)

// DefaultCookieName es la cookie donde viaja el token de sesión.
const DefaultCookieName = "ts_session"

// DefaultTTL es la vigencia de una sesión emitida por Issue.
const DefaultTTL = 24 * time.Hour

// Errores de autenticación. El caller DEBE distinguirlos en la respuesta:
// ErrUnauthorized → 401 (no presentó credencial),
// ErrForbidden → 403 (presentó credencial inválida o vencida).
var (
	ErrUnauthorized = errors.New("session: no credential presented")
	ErrForbidden    = errors.New("session: invalid or expired credential")
)

// Identity es la identidad del caller decodificada de la sesión.
//
// Admin refleja el claim firmado pero NO resuelve a una identidad
// administrativa fija: quien autorice operaciones de admin tiene que
// verificar el principal real contra el user store.
type Identity struct {
	UserID   int64
	Username string
	Admin    bool
}

type sessionClaims struct {
	UserID   int64  `json:"uid"`
	Username string `json:"username"`
	Admin    bool   `json:"is_admin,omitempty"`
	jwtv5.RegisteredClaims
}

// Authenticator valida tokens de sesión en requests entrantes.
// Primero lee la cookie de sesión; si no está, cae al header Bearer.
type Authenticator struct {
	Secret     []byte
	CookieName string
	TTL        time.Duration

	now func() time.Time
}

func New(secret []byte) *Authenticator {
	return &Authenticator{
		Secret:     secret,
		CookieName: DefaultCookieName,
		TTL:        DefaultTTL,
		now:        time.Now,
	}
}

// Issue firma un token de sesión para la identidad dada.
func (a *Authenticator) Issue(id Identity) (string, error) {
	now := a.now().UTC()
	cl := sessionClaims{
		UserID:   id.UserID,
		Username: id.Username,
		Admin:    id.Admin,
		RegisteredClaims: jwtv5.RegisteredClaims{
			IssuedAt:  jwtv5.NewNumericDate(now),
			NotBefore: jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(now.Add(a.ttl())),
		},
	}
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, cl)
	return tk.SignedString(a.Secret)
}

func (a *Authenticator) ttl() time.Duration {
	if a.TTL > 0 {
		return a.TTL
	}
	return DefaultTTL
}

// Authenticate extrae y valida la credencial de sesión del request.
// Sin credencial → ErrUnauthorized. Credencial presente pero mala → ErrForbidden.
func (a *Authenticator) Authenticate(r *http.Request) (Identity, error) {
	raw := a.rawToken(r)
	if raw == "" {
		metrics.SessionAuth.WithLabelValues("unauthorized").Inc()
		return Identity{}, ErrUnauthorized
	}

	id, err := a.Parse(raw)
	if err != nil {
		metrics.SessionAuth.WithLabelValues("forbidden").Inc()
		return Identity{}, err
	}
	metrics.SessionAuth.WithLabelValues("ok").Inc()
	return id, nil
}

// Parse valida un token de sesión crudo y devuelve la identidad.
// Todos los fallos de firma/expiry colapsan en ErrForbidden: el detalle se
// loguea server-side, nunca viaja al cliente.
func (a *Authenticator) Parse(raw string) (Identity, error) {
	var cl sessionClaims
	tok, err := jwtv5.ParseWithClaims(raw, &cl,
		func(t *jwtv5.Token) (any, error) { return a.Secret, nil },
		jwtv5.WithValidMethods([]string{"HS256"}),
		jwtv5.WithTimeFunc(a.now),
	)
	if err != nil || !tok.Valid {
		return Identity{}, ErrForbidden
	}
	return Identity{UserID: cl.UserID, Username: cl.Username, Admin: cl.Admin}, nil
}

// rawToken lee la cookie primero y el header Bearer como fallback.
func (a *Authenticator) rawToken(r *http.Request) string {
	name := a.CookieName
	if name == "" {
		name = DefaultCookieName
	}
	if ck, err := r.Cookie(name); err == nil && strings.TrimSpace(ck.Value) != "" {
		return strings.TrimSpace(ck.Value)
	}
	ah := strings.TrimSpace(r.Header.Get("Authorization"))
	if ah != "" && strings.HasPrefix(strings.ToLower(ah), "bearer ") {
		return strings.TrimSpace(ah[len("Bearer "):])
	}
	return ""
}
