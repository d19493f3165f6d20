package main

import (
	"net"
	"time"

	"github.com/numbleroot/lwwdict/config"
	"github.com/numbleroot/lwwdict/crypto"
)

// Generated certificates are valid for one year
// and use 4096 bit RSA keys.
const (
	pkiRSABits  = 4096
	pkiValidFor = 365 * 24 * time.Hour
)

// generatePKI creates a root certificate in dir and signs
// a certificate for the configured replica and each of its
// peers, valid for the hosts of their sync addresses.
func generatePKI(conf *config.Config, dir string, now time.Time) error {
	return generatePKIWithBits(conf, dir, now, pkiRSABits)
}

func generatePKIWithBits(conf *config.Config, dir string, now time.Time, rsaBits int) error {

	pki, err := crypto.NewPKI(dir, rsaBits, now, now.Add(pkiValidFor))
	if err != nil {
		return err
	}

	replicas := map[string]string{
		conf.Replica.Name: conf.Replica.ListenSyncAddr,
	}

	for name, addr := range conf.Replica.Peers {
		replicas[name] = addr
	}

	for name, addr := range replicas {

		hosts := []string{"localhost"}

		if host, _, err := net.SplitHostPort(addr); err == nil && host != "" {
			hosts = append(hosts, host)
		}

		err := pki.CreateReplicaCert(name, hosts)
		if err != nil {
			return err
		}
	}

	return nil
}
