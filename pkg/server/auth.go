package server

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

const (
	// headerSigner carries the caller's base58 public key.
	headerSigner = "X-Signer"
	// headerSignature carries the base64 ed25519 signature over the raw
	// request body.
	headerSignature = "X-Signature"

	// maxBodyBytes bounds request bodies; the largest legitimate payload
	// is a claim with a full-depth proof, well under this.
	maxBodyBytes = 1 << 20
)

type signerContextKey struct{}

// SignerFromContext returns the authenticated caller identity set by
// requireSigner.
func SignerFromContext(ctx context.Context) (solana.PublicKey, bool) {
	signer, ok := ctx.Value(signerContextKey{}).(solana.PublicKey)
	return signer, ok
}

// SignBody produces the signature header value for a request body, for
// clients and tests.
func SignBody(key solana.PrivateKey, body []byte) (string, error) {
	sig, err := key.Sign(body)
	if err != nil {
		return "", fmt.Errorf("failed to sign body: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sig[:]), nil
}

// verifyEd25519Signature verifies an ed25519 signature over message, with
// the public key in base58 and the signature in base64.
func verifyEd25519Signature(publicKeyBase58 string, message []byte, signatureBase64 string) (bool, error) {
	publicKeyBytes, err := base58.Decode(publicKeyBase58)
	if err != nil {
		return false, fmt.Errorf("failed to decode public key: %w", err)
	}
	if len(publicKeyBytes) != ed25519.PublicKeySize {
		return false, fmt.Errorf("invalid public key size: expected %d, got %d", ed25519.PublicKeySize, len(publicKeyBytes))
	}

	signatureBytes, err := base64.StdEncoding.DecodeString(signatureBase64)
	if err != nil {
		// Try URL-safe base64
		signatureBytes, err = base64.URLEncoding.DecodeString(signatureBase64)
		if err != nil {
			// Try raw base64 (without padding)
			signatureBytes, err = base64.RawStdEncoding.DecodeString(signatureBase64)
			if err != nil {
				return false, fmt.Errorf("failed to decode signature: %w", err)
			}
		}
	}
	if len(signatureBytes) != ed25519.SignatureSize {
		return false, fmt.Errorf("invalid signature size: expected %d, got %d", ed25519.SignatureSize, len(signatureBytes))
	}

	return ed25519.Verify(ed25519.PublicKey(publicKeyBytes), message, signatureBytes), nil
}

// requireSigner authenticates the caller: the body must be signed by the
// key named in the signer header. The verified identity is what the core
// trusts as the claimant or admin; nothing downstream re-checks it.
func (s *Server) requireSigner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		signerHeader := r.Header.Get(headerSigner)
		signatureHeader := r.Header.Get(headerSignature)
		if signerHeader == "" || signatureHeader == "" {
			writeError(w, http.StatusUnauthorized, "missing_signature", "signer and signature headers are required")
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			writeError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body exceeds limit")
			return
		}

		valid, err := verifyEd25519Signature(signerHeader, body, signatureHeader)
		if err != nil {
			s.log.Debug("auth: malformed signature", "error", err)
			writeError(w, http.StatusUnauthorized, "invalid_signature", "signature could not be verified")
			return
		}
		if !valid {
			writeError(w, http.StatusUnauthorized, "invalid_signature", "signature does not match signer")
			return
		}

		signer, err := solana.PublicKeyFromBase58(signerHeader)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_signer", "signer is not a valid public key")
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(body))
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), signerContextKey{}, signer)))
	})
}
