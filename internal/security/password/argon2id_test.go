package password

import (
	"strings"
	"testing"
)

// Params chicos para que el test no pague el costo de producción.
var testParams = Params{Memory: 8 * 1024, Time: 1, Parallelism: 1, KeyLen: 32}

func TestHashVerify_RoundTrip(t *testing.T) {
	t.Parallel()
	phc, err := Hash(testParams, "MiClave123!")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !strings.HasPrefix(phc, "$argon2id$v=19$") {
		t.Fatalf("formato PHC inesperado: %q", phc)
	}
	if !Verify("MiClave123!", phc) {
		t.Fatalf("el password correcto debe verificar")
	}
	if Verify("OtraClave", phc) {
		t.Fatalf("un password incorrecto no debe verificar")
	}
}

func TestHash_SaltedPerCall(t *testing.T) {
	t.Parallel()
	a, _ := Hash(testParams, "misma-clave")
	b, _ := Hash(testParams, "misma-clave")
	if a == b {
		t.Fatalf("dos hashes del mismo password deben diferir por el salt")
	}
}

func TestHash_EmptyPasswordRejected(t *testing.T) {
	t.Parallel()
	if _, err := Hash(testParams, ""); err == nil {
		t.Fatalf("password vacío debe fallar")
	}
}

func TestVerify_MalformedPHC(t *testing.T) {
	t.Parallel()
	for _, phc := range []string{
		"",
		"no-es-phc",
		"$argon2i$v=19$m=8192,t=1,p=1$c2FsdA$ZGs", // variante equivocada
		"$argon2id$v=19$m=8192,t=1,p=1$!!!$ZGs",   // salt no-base64
	} {
		if Verify("clave", phc) {
			t.Fatalf("PHC malformado no debe verificar: %q", phc)
		}
	}
}
