package crypto

import (
	"fmt"
	"net"
	"os"
	"time"

	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"path/filepath"

	"github.com/pkg/errors"
)

// Structs

// PKI holds a root certificate and key that
// replica certificates are signed with.
type PKI struct {
	Dir       string
	RSABits   int
	NotBefore time.Time
	NotAfter  time.Time
	rootCert  *x509.Certificate
	rootKey   *rsa.PrivateKey
}

// Functions

// certTemplate returns a certificate template that
// has all default values for our certificates already set.
func certTemplate(nBef time.Time, nAft time.Time) (*x509.Certificate, error) {

	// For serial number generation we need a biggest
	// number to mark the range of the serial number.
	serialNumberLimit := new(big.Int).Lsh(big.NewInt(1), 128)

	serialNumber, err := rand.Int(rand.Reader, serialNumberLimit)
	if err != nil {
		return nil, errors.Wrap(err, "could not generate random serial number")
	}

	return &x509.Certificate{
		SignatureAlgorithm:    x509.SHA512WithRSA,
		SerialNumber:          serialNumber,
		Subject:               pkix.Name{Organization: []string{"lwwdict internal PKI"}},
		NotBefore:             nBef,
		NotAfter:              nAft,
		BasicConstraintsValid: true,
	}, nil
}

// NewPKI generates a fresh root key pair and certificate
// valid from nBef to nAft and stores both in dir as
// root-cert.pem and root-key.pem.
func NewPKI(dir string, rsaBits int, nBef time.Time, nAft time.Time) (*PKI, error) {

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, errors.Wrapf(err, "failed to create PKI directory '%s'", dir)
	}

	rootKey, err := rsa.GenerateKey(rand.Reader, rsaBits)
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate root key")
	}

	rootTemplate, err := certTemplate(nBef, nAft)
	if err != nil {
		return nil, err
	}

	// Set specific certificate values for a root certificate.
	rootTemplate.IsCA = true
	rootTemplate.KeyUsage = x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment | x509.KeyUsageCertSign
	rootTemplate.ExtKeyUsage = []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth}

	rootCertDER, err := x509.CreateCertificate(rand.Reader, rootTemplate, rootTemplate, &rootKey.PublicKey, rootKey)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create DER byte representation of root certificate")
	}

	// Parse root certificate again so that we can sign with it.
	rootCert, err := x509.ParseCertificate(rootCertDER)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse DER root certificate to x509 certificate")
	}

	pki := &PKI{
		Dir:       dir,
		RSABits:   rsaBits,
		NotBefore: nBef,
		NotAfter:  nAft,
		rootCert:  rootCert,
		rootKey:   rootKey,
	}

	if err := writePEM(pki.RootCertPath(), "CERTIFICATE", rootCertDER, 0644); err != nil {
		return nil, err
	}

	if err := writePEM(filepath.Join(dir, "root-key.pem"), "RSA PRIVATE KEY", x509.MarshalPKCS1PrivateKey(rootKey), 0600); err != nil {
		return nil, err
	}

	return pki, nil
}

// RootCertPath returns where the root certificate is stored.
func (pki *PKI) RootCertPath() string {
	return filepath.Join(pki.Dir, "root-cert.pem")
}

// CertPaths returns where certificate and key of
// replica name are stored.
func (pki *PKI) CertPaths(name string) (string, string) {
	return filepath.Join(pki.Dir, fmt.Sprintf("%s-cert.pem", name)), filepath.Join(pki.Dir, fmt.Sprintf("%s-key.pem", name))
}

// CreateReplicaCert performs all needed actions in order
// to obtain a replica's key pair and certificate signed by
// the root certificate. Hosts may be IP addresses or DNS
// names the replica is reachable under.
func (pki *PKI) CreateReplicaCert(name string, hosts []string) error {

	key, err := rsa.GenerateKey(rand.Reader, pki.RSABits)
	if err != nil {
		return errors.Wrapf(err, "failed to generate key for %s", name)
	}

	template, err := certTemplate(pki.NotBefore, pki.NotAfter)
	if err != nil {
		return err
	}

	// Set specific certificate values for a replica certificate.
	template.Subject.CommonName = name
	template.KeyUsage = x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment
	template.ExtKeyUsage = []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth}

	for _, host := range hosts {

		if ip := net.ParseIP(host); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else if host != "" {
			template.DNSNames = append(template.DNSNames, host)
		}
	}

	certDER, err := x509.CreateCertificate(rand.Reader, template, pki.rootCert, &key.PublicKey, pki.rootKey)
	if err != nil {
		return errors.Wrapf(err, "failed to create DER byte representation of certificate for %s", name)
	}

	certPath, keyPath := pki.CertPaths(name)

	if err := writePEM(certPath, "CERTIFICATE", certDER, 0644); err != nil {
		return err
	}

	return writePEM(keyPath, "RSA PRIVATE KEY", x509.MarshalPKCS1PrivateKey(key), 0600)
}

// writePEM encodes der as PEM block of type blockType
// and syncs it to a file at path.
func writePEM(path string, blockType string, der []byte, perm os.FileMode) error {

	f, err := os.OpenFile(path, (os.O_WRONLY | os.O_CREATE | os.O_TRUNC), perm)
	if err != nil {
		return errors.Wrapf(err, "failed to open file '%s'", path)
	}
	defer f.Close()

	if err := pem.Encode(f, &pem.Block{Type: blockType, Bytes: der}); err != nil {
		return errors.Wrapf(err, "failed to write PEM block to '%s'", path)
	}

	return f.Sync()
}
