package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Métricas Prometheus del lifecycle de credenciales. Definidas en un paquete
// propio para evitar ciclos de import entre security y HTTP.

var (
	KeyRotations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "apikey_rotations_total",
		Help: "Rotaciones de API key por slot y resultado (ok|cooldown|error)",
	}, []string{"slot", "outcome"})

	PurposeTokensIssued = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "purpose_tokens_issued_total",
		Help: "Purpose tokens emitidos por propósito",
	}, []string{"purpose"})

	PurposeTokenVerifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "purpose_token_verifications_total",
		Help: "Verificaciones de purpose tokens por propósito y resultado (ok|bad_signature|expired|malformed|consumed)",
	}, []string{"purpose", "outcome"})

	CSRFValidations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "csrf_validations_total",
		Help: "Validaciones CSRF por resultado (ok|mismatch)",
	}, []string{"outcome"})

	EmailsSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lifecycle_emails_total",
		Help: "Emails de lifecycle enviados por propósito y resultado (ok|error)",
	}, []string{"purpose", "outcome"})

	SessionAuth = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "session_auth_total",
		Help: "Autenticaciones de sesión por resultado (ok|unauthorized|forbidden)",
	}, []string{"outcome"})
)

// Register registra todas las métricas en el registry dado (o el default si es nil).
// Tolera AlreadyRegisteredError para permitir múltiples inicializaciones en tests.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{
		KeyRotations,
		PurposeTokensIssued,
		PurposeTokenVerifications,
		CSRFValidations,
		EmailsSent,
		SessionAuth,
	} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
