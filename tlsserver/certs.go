package tlsserver

import (
	"fmt"
	"os"
)

func readFile(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("tlsserver: read %s: %w", path, err)
	}
	return b, nil
}

// loadCertChain concatenates the leaf certificate with an optional
// intermediate chain file, mirroring SslConfig's separate
// certfile/chainfile fields being loaded together by
// SslContext::loadCertificates.
func loadCertChain(certFile, chainFile string) ([]byte, error) {
	leaf, err := readFile(certFile)
	if err != nil {
		return nil, err
	}
	if chainFile == "" {
		return leaf, nil
	}
	chain, err := readFile(chainFile)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(leaf)+1+len(chain))
	out = append(out, leaf...)
	out = append(out, '\n')
	out = append(out, chain...)
	return out, nil
}
