package util

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"html"
	"log"
	"regexp"
	"strings"

	"github.com/charmbracelet/ssh"
	"github.com/mattn/go-runewidth"
	gossh "golang.org/x/crypto/ssh"
)

//go:embed version.txt
var embeddedVersion string

var (
	markdownLinkRegex = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)
	hashtagRegex      = regexp.MustCompile(`(?:^|\s)#([\p{L}\p{N}_]+)`)
	urlRegex          = regexp.MustCompile(`^https?://[^\s]+$`)
)

type RsaKeyPair struct {
	Private string
	Public  string
}

func LogPublicKey(s ssh.Session) {
	log.Printf("%s@%s opened a new ssh-session..", s.User(), s.LocalAddr())
}

func PublicKeyToString(s ssh.PublicKey) string {
	return strings.TrimSpace(string(gossh.MarshalAuthorizedKey(s)))
}

func PkToHash(pk string) string {
	h := sha256.New()
	h.Write([]byte(pk))
	return hex.EncodeToString(h.Sum(nil))
}

func GetVersion() string {
	return strings.TrimSpace(embeddedVersion)
}

func GetNameAndVersion() string {
	return fmt.Sprintf("%s / %s", Name, GetVersion())
}

func PrettyPrint(i interface{}) string {
	s, _ := json.MarshalIndent(i, "", " ")
	return string(s)
}

// GeneratePemKeypair creates the RSA key pair used to sign federated requests.
// Private key is PKCS#8, public key PKIX.
func GeneratePemKeypair() *RsaKeyPair {
	bitSize := 4096

	key, err := rsa.GenerateKey(rand.Reader, bitSize)
	if err != nil {
		panic(err)
	}

	pkcs8Bytes, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		panic(err)
	}

	keyPEM := pem.EncodeToMemory(
		&pem.Block{
			Type:  "PRIVATE KEY",
			Bytes: pkcs8Bytes,
		},
	)

	pkixBytes, err := x509.MarshalPKIXPublicKey(key.Public())
	if err != nil {
		panic(err)
	}

	pubPEM := pem.EncodeToMemory(
		&pem.Block{
			Type:  "PUBLIC KEY",
			Bytes: pkixBytes,
		},
	)

	return &RsaKeyPair{Private: string(keyPEM), Public: string(pubPEM)}
}

// TextToHTML escapes plain text typed by a local user, converts Markdown links [text](url)
// to anchors and wraps the result in a paragraph.
func TextToHTML(text string) string {
	var b strings.Builder
	lastIndex := 0
	for _, m := range markdownLinkRegex.FindAllStringSubmatchIndex(text, -1) {
		b.WriteString(html.EscapeString(text[lastIndex:m[0]]))
		linkText := html.EscapeString(text[m[2]:m[3]])
		linkURL := html.EscapeString(text[m[4]:m[5]])
		fmt.Fprintf(&b, `<a href="%s" target="_blank" rel="noopener noreferrer">%s</a>`, linkURL, linkText)
		lastIndex = m[1]
	}
	b.WriteString(html.EscapeString(text[lastIndex:]))
	return "<p>" + strings.ReplaceAll(b.String(), "\n", "<br>") + "</p>"
}

// ParseHashtags returns the distinct lowercase hashtags in text, in order of appearance
func ParseHashtags(text string) []string {
	seen := make(map[string]bool)
	var tags []string
	for _, m := range hashtagRegex.FindAllStringSubmatch(text, -1) {
		tag := strings.ToLower(m[1])
		if seen[tag] {
			continue
		}
		seen[tag] = true
		tags = append(tags, tag)
	}
	return tags
}

// IsURL checks if a given string is a valid HTTP or HTTPS URL
func IsURL(text string) bool {
	return urlRegex.MatchString(strings.TrimSpace(text))
}

// Truncate shortens s to at most width terminal cells, appending an ellipsis when cut
func Truncate(s string, width int) string {
	return runewidth.Truncate(s, width, "…")
}
