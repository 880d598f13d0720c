package activitypub

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"code.superseriousbusiness.org/httpsig"
)

var (
	postSignedHeaders = []string{"(request-target)", "host", "date", "digest"}
	getSignedHeaders  = []string{"(request-target)", "host", "date"}
)

// SignRequest signs an outgoing HTTP request with the given private key.
// body must be the exact request body for POSTs so the Digest header matches; nil for GETs.
// keyId format: "https://example.com/users/alice#main-key"
func SignRequest(req *http.Request, privateKey *rsa.PrivateKey, keyId string, body []byte) error {
	headers := getSignedHeaders
	if body != nil {
		headers = postSignedHeaders
	}
	signer, err := httpsig.NewSigner(
		httpsig.RSA_SHA256,
		httpsig.DigestSha256,
		headers,
		httpsig.Signature,
		0,
	)
	if err != nil {
		return fmt.Errorf("failed to create signer: %w", err)
	}

	return signer.SignRequest(privateKey, keyId, req, body)
}

var (
	keyIdRegex   = regexp.MustCompile(`keyId="([^"]+)"`)
	headersRegex = regexp.MustCompile(`(?:^|[\s,])headers="([^"]*)"`)
)

func signatureHeader(req *http.Request) string {
	if header := req.Header.Get("Signature"); header != "" {
		return header
	}
	return req.Header.Get("Authorization")
}

// SignatureKeyID returns the keyId claimed by the Signature header of an incoming request,
// before any verification
func SignatureKeyID(req *http.Request) (string, error) {
	m := keyIdRegex.FindStringSubmatch(signatureHeader(req))
	if m == nil {
		return "", fmt.Errorf("missing signature keyId")
	}
	return m[1], nil
}

// SignedHeaders lists the headers the signature of an incoming request claims to cover.
// A signature without a headers parameter covers only date.
func SignedHeaders(req *http.Request) []string {
	m := headersRegex.FindStringSubmatch(signatureHeader(req))
	if m == nil {
		return []string{"date"}
	}
	return strings.Fields(strings.ToLower(m[1]))
}

// VerifyRequest verifies the HTTP signature on an incoming request.
// Returns the actor URI derived from the keyId.
func VerifyRequest(req *http.Request, publicKeyPem string) (string, error) {
	verifier, err := httpsig.NewVerifier(req)
	if err != nil {
		return "", fmt.Errorf("failed to create verifier: %w", err)
	}

	rsaPubKey, err := ParsePublicKey(publicKeyPem)
	if err != nil {
		return "", err
	}

	keyId, err := verifier.Verify(rsaPubKey, httpsig.RSA_SHA256)
	if err != nil {
		return "", fmt.Errorf("signature verification failed: %w", err)
	}

	// "https://example.com/users/alice#main-key" -> "https://example.com/users/alice"
	return strings.Split(keyId, "#")[0], nil
}

// ParsePrivateKey converts a PEM string to *rsa.PrivateKey, accepting PKCS#1 and PKCS#8
func ParsePrivateKey(pemString string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemString))
	if block == nil {
		return nil, fmt.Errorf("failed to parse PEM block")
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("not an RSA private key")
	}
	return key, nil
}

// ParsePublicKey converts a PEM string to *rsa.PublicKey, accepting PKIX and PKCS#1
func ParsePublicKey(pemString string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemString))
	if block == nil {
		return nil, fmt.Errorf("failed to parse PEM block")
	}

	if block.Type == "RSA PUBLIC KEY" {
		return x509.ParsePKCS1PublicKey(block.Bytes)
	}

	pubKey, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}

	rsaPubKey, ok := pubKey.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("not an RSA public key")
	}

	return rsaPubKey, nil
}
