package cmd

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/embedsh/embedsh/core/config"
)

const (
	configName  = "config.yaml"
	hostKeyName = "host_key"
)

// initCmd writes a default configuration and host key into a directory.
var initCmd = &cobra.Command{
	Use:   "init [DIR]",
	Short: "Write a default configuration and SSH host key.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		dir := "."
		if len(args) == 1 {
			dir = args[0]
		}
		if err := os.MkdirAll(dir, 0700); err != nil {
			return err
		}

		keyPath := filepath.Join(dir, hostKeyName)
		if err := writeHostKey(keyPath); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Wrote host key: %s\n", keyPath)

		cfg := config.Default()
		cfg.SSH.HostKeyPath = keyPath

		contents, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		cfgFile := filepath.Join(dir, configName)
		if err := os.WriteFile(cfgFile, contents, 0600); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Wrote config: %s\n", cfgFile)
		return nil
	},
}

// writeHostKey generates an ed25519 key and stores it as PKCS#8 PEM.
func writeHostKey(path string) error {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return err
	}

	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return err
	}

	block := &pem.Block{Type: "PRIVATE KEY", Bytes: der}
	return os.WriteFile(path, pem.EncodeToMemory(block), 0600)
}

func init() {
	rootCmd.AddCommand(initCmd)
}
