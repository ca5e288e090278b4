package authserver

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"os"
	"time"

	"github.com/marmos91/telebridge/internal/apperr"
	"github.com/marmos91/telebridge/internal/logger"
)

// certificate loads the configured PEM pair, falling back to a
// generated self-signed certificate when the pair is absent.
func (s *Server) certificate() (tls.Certificate, error) {
	if fileExists(s.config.CertFile) && fileExists(s.config.KeyFile) {
		cert, err := tls.LoadX509KeyPair(s.config.CertFile, s.config.KeyFile)
		if err != nil {
			return tls.Certificate{}, apperr.Wrapf(apperr.Validation, err,
				"failed to load certificate pair %s, %s", s.config.CertFile, s.config.KeyFile)
		}
		return cert, nil
	}

	logger.Info("Certificate pair not found, generating a self-signed one",
		"cert", s.config.CertFile,
		"key", s.config.KeyFile,
	)

	return selfSignedCertificate()
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// selfSignedCertificate issues a throwaway certificate for the loopback
// names browsers hit during login. Browsers warn on it; the page is only
// ever opened by the operator.
func selfSignedCertificate() (tls.Certificate, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return tls.Certificate{}, apperr.Wrap(apperr.Internal, "failed to generate certificate key", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 62))
	if err != nil {
		return tls.Certificate{}, apperr.Wrap(apperr.Internal, "failed to generate certificate serial", err)
	}

	template := x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: "telebridge"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		DNSNames:     []string{"localhost"},
		IPAddresses:  []net.IP{net.IPv4(127, 0, 0, 1)},
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return tls.Certificate{}, apperr.Wrap(apperr.Internal, "failed to create certificate", err)
	}

	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return tls.Certificate{}, apperr.Wrap(apperr.Internal, "failed to marshal certificate key", err)
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})

	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return tls.Certificate{}, apperr.Wrap(apperr.Internal, "failed to assemble certificate pair", err)
	}

	return cert, nil
}
