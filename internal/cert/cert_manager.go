package cert

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const caKeyFile = "ca-key.pem"

// Manager хранит локальный CA и выпускает им сертификаты для перехватываемых хостов
type Manager struct {
	ca     *x509.Certificate
	caKey  *rsa.PrivateKey
	certs  map[string]*tls.Certificate
	mu     sync.RWMutex
	caFile string
}

// NewCertManager загружает CA из caFile (ключ рядом, ca-key.pem) или создаёт новый
func NewCertManager(caFile string) (*Manager, error) {
	if caFile == "" {
		return nil, errors.New("CA certificate path is empty")
	}

	cm := &Manager{
		certs:  make(map[string]*tls.Certificate),
		caFile: caFile,
	}

	if err := cm.loadCA(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load CA from %s: %w", caFile, err)
		}
		if err := cm.generateCA(); err != nil {
			return nil, fmt.Errorf("failed to generate CA: %w", err)
		}
		log.Info().Msgf("🔐 Generated new CA certificate: %s", caFile)
	} else {
		log.Info().Msgf("🔐 Loaded CA certificate: %s", caFile)
	}

	return cm, nil
}

func (cm *Manager) keyPath() string {
	return filepath.Join(filepath.Dir(cm.caFile), caKeyFile)
}

func (cm *Manager) generateCA() error {
	caKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return err
	}

	ca := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().Unix()),
		Subject: pkix.Name{
			Organization: []string{"Gemini Analyzer Proxy CA"},
			CommonName:   "Gemini Analyzer Root CA",
		},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().AddDate(10, 0, 0),
		IsCA:                  true,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth, x509.ExtKeyUsageServerAuth},
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
	}

	caBytes, err := x509.CreateCertificate(rand.Reader, ca, ca, &caKey.PublicKey, caKey)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(cm.caFile), 0o755); err != nil {
		return err
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: caBytes})
	if err := os.WriteFile(cm.caFile, certPEM, 0o644); err != nil {
		return err
	}

	keyPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(caKey),
	})
	if err := os.WriteFile(cm.keyPath(), keyPEM, 0o600); err != nil {
		return err
	}

	// сертификат перечитываем, чтобы Raw совпадал с файлом
	parsed, err := x509.ParseCertificate(caBytes)
	if err != nil {
		return err
	}

	cm.ca = parsed
	cm.caKey = caKey
	return nil
}

func (cm *Manager) loadCA() error {
	certPEM, err := os.ReadFile(cm.caFile)
	if err != nil {
		return err
	}

	block, _ := pem.Decode(certPEM)
	if block == nil {
		return errors.New("no PEM block in CA certificate")
	}

	ca, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return err
	}

	keyPEM, err := os.ReadFile(cm.keyPath())
	if err != nil {
		return err
	}

	keyBlock, _ := pem.Decode(keyPEM)
	if keyBlock == nil {
		return errors.New("no PEM block in CA key")
	}

	caKey, err := x509.ParsePKCS1PrivateKey(keyBlock.Bytes)
	if err != nil {
		return err
	}

	cm.ca = ca
	cm.caKey = caKey
	return nil
}

// GetCertificate возвращает (и кэширует) сертификат для host
func (cm *Manager) GetCertificate(host string) (*tls.Certificate, error) {
	cm.mu.RLock()
	if cert, ok := cm.certs[host]; ok {
		cm.mu.RUnlock()
		return cert, nil
	}
	cm.mu.RUnlock()

	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cert, ok := cm.certs[host]; ok {
		return cert, nil
	}

	certKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}

	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, err
	}

	template := &x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			Organization: []string{"Gemini Analyzer Proxy"},
			CommonName:   host,
		},
		NotBefore:   time.Now().Add(-time.Hour),
		NotAfter:    time.Now().AddDate(1, 0, 0), // 1 год
		KeyUsage:    x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}

	if ip := net.ParseIP(host); ip != nil {
		template.IPAddresses = []net.IP{ip}
	} else {
		template.DNSNames = []string{host}
	}

	certBytes, err := x509.CreateCertificate(rand.Reader, template, cm.ca, &certKey.PublicKey, cm.caKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign certificate for %s: %w", host, err)
	}

	cert := &tls.Certificate{
		Certificate: [][]byte{certBytes, cm.ca.Raw},
		PrivateKey:  certKey,
	}
	cm.certs[host] = cert

	return cert, nil
}

// CertPool - пул с нашим CA, для клиентов, которым нужно доверять прокси
func (cm *Manager) CertPool() *x509.CertPool {
	pool := x509.NewCertPool()
	pool.AddCert(cm.ca)
	return pool
}

func (cm *Manager) GetCAPath() string {
	return cm.caFile
}
