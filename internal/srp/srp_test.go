package srp

import (
	"crypto/rand"
	"crypto/sha1"
	"crypto/subtle"
	"math/big"
	"testing"

	"golang.org/x/crypto/pbkdf2"

	"github.com/nlowe/acpctl/internal/acperrors"
	"github.com/nlowe/acpctl/internal/cflplist"
)

// referenceServer re-derives the server side of the handshake independently
// of the Client implementation, so the test exercises two separate
// implementations of the same math rather than checking the client against
// itself.
type referenceServer struct {
	salt []byte
	b    *big.Int
	B    *big.Int
	v    *big.Int
	n    int
}

func newReferenceServer(t *testing.T, password string) *referenceServer {
	t.Helper()

	s := &referenceServer{n: (group.BitLen() + 7) / 8}
	s.salt = make([]byte, 16)
	if _, err := rand.Read(s.salt); err != nil {
		t.Fatalf("salt: %v", err)
	}

	inner := sha1Sum([]byte(Identity + ":" + password))
	h := sha1.New()
	h.Write(s.salt)
	h.Write(inner)
	x := new(big.Int).SetBytes(h.Sum(nil))
	s.v = new(big.Int).Exp(generator, x, group)

	bBuf := make([]byte, 32)
	if _, err := rand.Read(bBuf); err != nil {
		t.Fatalf("b: %v", err)
	}
	s.b = new(big.Int).SetBytes(bBuf)

	k := hashInts(group.Bytes(), pad(generator, s.n))
	gb := new(big.Int).Exp(generator, s.b, group)
	s.B = new(big.Int).Mod(new(big.Int).Add(new(big.Int).Mul(k, s.v), gb), group)
	return s
}

func (s *referenceServer) challenge() cflplist.Value {
	d := cflplist.NewDict()
	d.Set("salt", cflplist.Bytes(s.salt))
	d.Set("generator", cflplist.Bytes(pad(generator, s.n)))
	d.Set("publicKey", cflplist.Bytes(pad(s.B, s.n)))
	d.Set("modulus", cflplist.Bytes(pad(group, s.n)))
	return d
}

// verify computes the server's view of K and M1 from the client's S3
// message, returning the shared key and the server's M2 proof.
func (s *referenceServer) verify(t *testing.T, s3 cflplist.Value) (k []byte, m2 []byte) {
	t.Helper()

	aVal, ok := s3.Get("publicKey")
	if !ok {
		t.Fatal("s3 missing publicKey")
	}
	A := new(big.Int).SetBytes(aVal.Data)

	u := hashInts(pad(A, s.n), pad(s.B, s.n))
	// S = (A * v^u) ^ b mod N
	vu := new(big.Int).Exp(s.v, u, group)
	base := new(big.Int).Mod(new(big.Int).Mul(A, vu), group)
	S := new(big.Int).Exp(base, s.b, group)
	k = sha1Sum(S.Bytes())

	hN := sha1Sum(group.Bytes())
	hG := sha1Sum(pad(generator, s.n))
	hNxorG := xorBytes(hN, hG)
	hI := sha1Sum([]byte(Identity))

	h := sha1.New()
	h.Write(hNxorG)
	h.Write(hI)
	h.Write(s.salt)
	h.Write(pad(A, s.n))
	h.Write(pad(s.B, s.n))
	h.Write(k)
	expectedM1 := h.Sum(nil)

	respVal, ok := s3.Get("response")
	if !ok {
		t.Fatal("s3 missing response")
	}
	if subtle.ConstantTimeCompare(respVal.Data, expectedM1) != 1 {
		t.Fatalf("client M1 does not match server-computed M1")
	}

	h2 := sha1.New()
	h2.Write(pad(A, s.n))
	h2.Write(expectedM1)
	h2.Write(k)
	m2 = h2.Sum(nil)
	return k, m2
}

func TestHandshakeAgainstReferenceServer(t *testing.T) {
	password := "hunter2"

	client, err := NewClient(password)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	server := newReferenceServer(t, password)

	s1 := client.Hello()
	if v, ok := s1.Get("state"); !ok || v.Int != 1 {
		t.Fatalf("Hello() state = %+v, ok=%v", v, ok)
	}
	if v, ok := s1.Get("username"); !ok || v.Str != Identity {
		t.Fatalf("Hello() username = %+v, ok=%v", v, ok)
	}

	s3, err := client.HandleChallenge(server.challenge())
	if err != nil {
		t.Fatalf("HandleChallenge: %v", err)
	}
	if v, ok := s3.Get("state"); !ok || v.Int != 3 {
		t.Fatalf("s3 state = %+v, ok=%v", v, ok)
	}

	serverK, m2 := server.verify(t, s3)

	ivVal, _ := s3.Get("iv")
	if len(ivVal.Data) != 16 {
		t.Fatalf("client iv length = %d, want 16", len(ivVal.Data))
	}

	serverIV := make([]byte, 16)
	if _, err := rand.Read(serverIV); err != nil {
		t.Fatalf("serverIV: %v", err)
	}

	s4 := cflplist.NewDict()
	s4.Set("response", cflplist.Bytes(m2))
	s4.Set("iv", cflplist.Bytes(serverIV))

	clientKey, serverKey, clientIV, gotServerIV, err := client.HandleVerify(s4)
	if err != nil {
		t.Fatalf("HandleVerify: %v", err)
	}

	if len(clientKey) != 16 || len(serverKey) != 16 {
		t.Fatalf("derived key lengths = %d/%d, want 16/16", len(clientKey), len(serverKey))
	}
	if !bytesEqual(gotServerIV[:], serverIV) {
		t.Errorf("server iv mismatch")
	}
	if !bytesEqual(clientIV[:], ivVal.Data) {
		t.Errorf("client iv mismatch")
	}

	wantClientKey := pbkdf2.Key(serverK, encryptionKeySalt0, 5, 16, sha1.New)
	wantServerKey := pbkdf2.Key(serverK, encryptionKeySalt1, 7, 16, sha1.New)
	if !bytesEqual(clientKey, wantClientKey) {
		t.Errorf("clientKey = %x, want %x", clientKey, wantClientKey)
	}
	if !bytesEqual(serverKey, wantServerKey) {
		t.Errorf("serverKey = %x, want %x", serverKey, wantServerKey)
	}
}

func TestHandshakeRejectsBadM2(t *testing.T) {
	password := "hunter2"

	client, err := NewClient(password)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	server := newReferenceServer(t, password)
	s3, err := client.HandleChallenge(server.challenge())
	if err != nil {
		t.Fatalf("HandleChallenge: %v", err)
	}
	server.verify(t, s3) // advance server state, proof checked separately above

	s4 := cflplist.NewDict()
	s4.Set("response", cflplist.Bytes(make([]byte, 20)))
	s4.Set("iv", cflplist.Bytes(make([]byte, 16)))

	_, _, _, _, err = client.HandleVerify(s4)
	if err == nil {
		t.Fatal("expected AuthError for zeroed M2")
	}
	authErr, ok := err.(*acperrors.AuthError)
	if !ok {
		t.Fatalf("expected *acperrors.AuthError, got %T", err)
	}
	if authErr.Reason != "M2" {
		t.Errorf("AuthError.Reason = %q, want %q", authErr.Reason, "M2")
	}
}

func TestHandshakeRejectsWrongModulus(t *testing.T) {
	client, err := NewClient("hunter2")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	bad := cflplist.NewDict()
	bad.Set("salt", cflplist.Bytes(make([]byte, 16)))
	bad.Set("generator", cflplist.Bytes(pad(generator, client.n)))
	bad.Set("publicKey", cflplist.Bytes([]byte{0x02}))
	bad.Set("modulus", cflplist.Bytes([]byte{0x05}))

	_, err = client.HandleChallenge(bad)
	if err == nil {
		t.Fatal("expected AuthError for unexpected modulus")
	}
	authErr, ok := err.(*acperrors.AuthError)
	if !ok {
		t.Fatalf("expected *acperrors.AuthError, got %T", err)
	}
	if authErr.Reason != "modulus" {
		t.Errorf("AuthError.Reason = %q, want %q", authErr.Reason, "modulus")
	}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
