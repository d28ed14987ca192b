// Package srp implements the SRP-6a authentication client used to establish
// a shared session key with an ACP base station, specialised to the
// deployment's fixed group, hash, and identity.
package srp

import (
	"crypto/rand"
	"crypto/sha1"
	"crypto/subtle"
	"fmt"
	"math/big"

	"golang.org/x/crypto/pbkdf2"

	"github.com/nlowe/acpctl/internal/acperrors"
	"github.com/nlowe/acpctl/internal/cflplist"
)

// Identity is the fixed SRP username for every ACP deployment.
const Identity = "admin"

// group is the RFC 3526 Group 5 1536-bit MODP prime, the modulus used by
// HAP-style SRP deployments. The client treats this as the sole trusted
// constant and rejects any peer-supplied modulus that doesn't match it.
var group = mustParseHex(
	"FFFFFFFF FFFFFFFF C90FDAA2 2168C234 C4C6628B 80DC1CD1" +
		"29024E08 8A67CC74 020BBEA6 3B139B22 514A0879 8E3404DD" +
		"EF9519B3 CD3A431B 302B0A6D F25F1437 4FE1356D 6D51C245" +
		"E485B576 625E7EC6 F44C42E9 A637ED6B 0BFF5CB6 F406B7ED" +
		"EE386BFB 5A899FA5 AE9F2411 7C4B1FE6 49286651 ECE45B3D" +
		"C2007CB8 A163BF05 98DA4836 1C55D39A 69163FA8 FD24CF5F" +
		"83655D23 DCA3AD96 1C62F356 208552BB 9ED52907 7096966D" +
		"670C354E 4ABC9804 F1746C08 CA237327 FFFFFFFF FFFFFFFF",
)

var generator = big.NewInt(2)

// encryptionKeySalt0/1 derive the client->server / server->client AES-128
// keys from the SRP shared secret K (see internal/cipher).
var (
	encryptionKeySalt0 = mustDecodeHex("F072FA3F66B410A135FAE8E6D1D43D5F")
	encryptionKeySalt1 = mustDecodeHex("BD0682C9FE79325BC73655F4174B996C")
)

func mustParseHex(s string) *big.Int {
	n := new(big.Int)
	clean := removeSpaces(s)
	if _, ok := n.SetString(clean, 16); !ok {
		panic(fmt.Sprintf("srp: invalid modulus constant"))
	}
	return n
}

func removeSpaces(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != ' ' {
			out = append(out, s[i])
		}
	}
	return string(out)
}

func mustDecodeHex(s string) []byte {
	b := make([]byte, len(s)/2)
	for i := range b {
		hi := hexNibble(s[2*i])
		lo := hexNibble(s[2*i+1])
		b[i] = hi<<4 | lo
	}
	return b
}

func hexNibble(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	default:
		panic("srp: invalid hex constant")
	}
}

// Client drives the five-stage SRP-6a handshake from the connecting side.
type Client struct {
	password string

	privateKey *big.Int // a
	publicKey  *big.Int // A

	n int // byte length of the modulus, used for PAD()

	m1 []byte // client proof, retained to verify the server's M2
	k  []byte // shared session key K, available once verified

	clientIV [16]byte
	serverIV [16]byte
}

// NewClient creates an SRP client for password, drawing the 24-byte client
// private key from crypto/rand.
func NewClient(password string) (*Client, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return nil, &acperrors.AuthError{Stage: 1, Reason: "failed to generate client private key: " + err.Error()}
	}

	c := &Client{
		password:   password,
		privateKey: new(big.Int).SetBytes(buf),
		n:          (group.BitLen() + 7) / 8,
	}
	return c, nil
}

// Hello builds the S1 message: {state: 1, username: "admin"}.
func (c *Client) Hello() cflplist.Value {
	d := cflplist.NewDict()
	d.Set("state", cflplist.Int(1))
	d.Set("username", cflplist.String(Identity))
	return d
}

// HandleChallenge consumes the S2 response ({salt, generator, publicKey,
// modulus}), computes the client's public key and proof, and returns the S3
// message ({iv, publicKey, state: 3, response}).
func (c *Client) HandleChallenge(resp cflplist.Value) (cflplist.Value, error) {
	saltVal, ok := resp.Get("salt")
	if !ok {
		return cflplist.Value{}, &acperrors.AuthError{Stage: 2, Reason: "missing salt"}
	}
	bVal, ok := resp.Get("publicKey")
	if !ok {
		return cflplist.Value{}, &acperrors.AuthError{Stage: 2, Reason: "missing publicKey"}
	}
	nVal, ok := resp.Get("modulus")
	if !ok {
		return cflplist.Value{}, &acperrors.AuthError{Stage: 2, Reason: "missing modulus"}
	}

	salt := saltVal.Data
	B := new(big.Int).SetBytes(bVal.Data)
	N := new(big.Int).SetBytes(nVal.Data)

	if N.Cmp(group) != 0 {
		return cflplist.Value{}, &acperrors.AuthError{Stage: 2, Reason: "modulus"}
	}
	if genVal, ok := resp.Get("generator"); ok {
		if toBigInt(genVal).Cmp(generator) != 0 {
			return cflplist.Value{}, &acperrors.AuthError{Stage: 2, Reason: "generator"}
		}
	}

	zero := big.NewInt(0)
	if new(big.Int).Mod(B, group).Cmp(zero) == 0 {
		return cflplist.Value{}, &acperrors.AuthError{Stage: 2, Reason: "server public key is 0 mod N"}
	}

	A := new(big.Int).Exp(generator, c.privateKey, group)
	c.publicKey = A

	u := hashInts(c.pad(A), c.pad(B))
	if u.Cmp(zero) == 0 {
		return cflplist.Value{}, &acperrors.AuthError{Stage: 2, Reason: "scrambling parameter is 0"}
	}

	x := c.computeX(salt)
	k := hashInts(group.Bytes(), pad(generator, c.n))

	// S = (B - k*g^x) ^ (a + u*x) mod N
	gx := new(big.Int).Exp(generator, x, group)
	t1 := new(big.Int).Mod(new(big.Int).Sub(B, new(big.Int).Mul(k, gx)), group)
	if t1.Sign() < 0 {
		t1.Add(t1, group)
	}
	exp := new(big.Int).Add(c.privateKey, new(big.Int).Mul(u, x))
	S := new(big.Int).Exp(t1, exp, group)

	c.k = sha1Sum(S.Bytes())

	hN := sha1Sum(group.Bytes())
	hG := sha1Sum(pad(generator, c.n))
	hNxorG := xorBytes(hN, hG)
	hI := sha1Sum([]byte(Identity))

	h := sha1.New()
	h.Write(hNxorG)
	h.Write(hI)
	h.Write(salt)
	h.Write(c.pad(A))
	h.Write(c.pad(B))
	h.Write(c.k)
	c.m1 = h.Sum(nil)

	if _, err := rand.Read(c.clientIV[:]); err != nil {
		return cflplist.Value{}, &acperrors.AuthError{Stage: 3, Reason: "failed to generate client iv: " + err.Error()}
	}

	d := cflplist.NewDict()
	d.Set("iv", cflplist.Bytes(c.clientIV[:]))
	d.Set("publicKey", cflplist.Bytes(c.pad(A)))
	d.Set("state", cflplist.Int(3))
	d.Set("response", cflplist.Bytes(c.m1))
	return d, nil
}

// HandleVerify consumes the S4 response ({response: M2, iv: server_iv}),
// verifies the server's proof, and derives the directional encryption keys.
// On success it returns the client->server key, server->client key, and the
// two IVs exchanged during the handshake.
func (c *Client) HandleVerify(resp cflplist.Value) (clientKey, serverKey []byte, clientIV, serverIV [16]byte, err error) {
	m2Val, ok := resp.Get("response")
	if !ok {
		return nil, nil, clientIV, serverIV, &acperrors.AuthError{Stage: 4, Reason: "missing response"}
	}
	ivVal, ok := resp.Get("iv")
	if !ok {
		return nil, nil, clientIV, serverIV, &acperrors.AuthError{Stage: 4, Reason: "missing iv"}
	}
	if len(ivVal.Data) != 16 {
		return nil, nil, clientIV, serverIV, &acperrors.AuthError{Stage: 4, Reason: "server iv must be 16 bytes"}
	}

	h := sha1.New()
	h.Write(c.pad(c.publicKey))
	h.Write(c.m1)
	h.Write(c.k)
	expectedM2 := h.Sum(nil)

	if subtle.ConstantTimeCompare(m2Val.Data, expectedM2) != 1 {
		return nil, nil, clientIV, serverIV, &acperrors.AuthError{Stage: 5, Reason: "M2"}
	}

	clientKey = pbkdf2.Key(c.k, encryptionKeySalt0, 5, 16, sha1.New)
	serverKey = pbkdf2.Key(c.k, encryptionKeySalt1, 7, 16, sha1.New)

	copy(serverIV[:], ivVal.Data)
	c.serverIV = serverIV
	clientIV = c.clientIV
	return clientKey, serverKey, clientIV, serverIV, nil
}

func (c *Client) computeX(salt []byte) *big.Int {
	inner := sha1Sum([]byte(Identity + ":" + c.password))
	h := sha1.New()
	h.Write(salt)
	h.Write(inner)
	return new(big.Int).SetBytes(h.Sum(nil))
}

func (c *Client) pad(v *big.Int) []byte {
	return pad(v, c.n)
}

func pad(v *big.Int, length int) []byte {
	b := v.Bytes()
	if len(b) >= length {
		return b
	}
	out := make([]byte, length)
	copy(out[length-len(b):], b)
	return out
}

// toBigInt tolerates the peer encoding a small numeric field (such as the
// SRP generator) as either a CFL int or a raw big-endian byte string.
func toBigInt(v cflplist.Value) *big.Int {
	if v.Kind == cflplist.KindInt {
		return big.NewInt(v.Int)
	}
	return new(big.Int).SetBytes(v.Data)
}

func hashInts(a, b []byte) *big.Int {
	h := sha1.New()
	h.Write(a)
	h.Write(b)
	return new(big.Int).SetBytes(h.Sum(nil))
}

func sha1Sum(b []byte) []byte {
	h := sha1.Sum(b)
	return h[:]
}

func xorBytes(a, b []byte) []byte {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		out[i] = a[i] ^ b[i]
	}
	return out
}
