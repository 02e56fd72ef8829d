package discord

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/bwmarrin/discordgo"
)

// ErrUnauthorized marks a request that failed signature verification.
var ErrUnauthorized = errors.New("unauthorized")

const (
	headerSignature = "X-Signature-Ed25519"
	headerTimestamp = "X-Signature-Timestamp"

	maxInteractionBody = 1 << 20
)

// Verifier authenticates interaction deliveries with the application's public key.
type Verifier struct {
	key ed25519.PublicKey
}

// NewVerifier decodes the hex public key shown in the developer portal.
func NewVerifier(hexKey string) (*Verifier, error) {
	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("discord: decode public key: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("discord: public key is %d bytes, want %d", len(raw), ed25519.PublicKeySize)
	}
	return &Verifier{key: ed25519.PublicKey(raw)}, nil
}

// Verify checks the signature over timestamp and body, then decodes the interaction.
// Every failure wraps ErrUnauthorized.
func (v *Verifier) Verify(r *http.Request) (*discordgo.Interaction, error) {
	if r.Header.Get(headerSignature) == "" || r.Header.Get(headerTimestamp) == "" {
		return nil, fmt.Errorf("%w: missing signature headers", ErrUnauthorized)
	}
	r.Body = http.MaxBytesReader(nil, r.Body, maxInteractionBody)
	if !discordgo.VerifyInteraction(r, v.key) {
		return nil, fmt.Errorf("%w: invalid request signature", ErrUnauthorized)
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrUnauthorized, err)
	}
	var interaction discordgo.Interaction
	if err := json.Unmarshal(body, &interaction); err != nil {
		return nil, fmt.Errorf("%w: invalid body: %v", ErrUnauthorized, err)
	}
	return &interaction, nil
}
